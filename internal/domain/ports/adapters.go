// Package ports defines the small capability interfaces every external
// collaborator family implements. Polymorphism over
// indexers/downloaders/metadata providers is via a small capability
// interface per family; variants are registered in a static map at
// startup.
package ports

import (
	"context"
	"time"
)

// SearchQuery is the request shape an indexer adapter receives.
type SearchQuery struct {
	CatalogID  string
	Title      string
	Year       int
	Categories []string
}

// RawRelease is a single result from an indexer adapter, before the
// search coordinator turns it into a domain.ReleaseCandidate.
type RawRelease struct {
	Title       string
	SizeBytes   int64
	PublishedAt time.Time
	Seeders     int
	Leechers    int
	DownloadURI string
	Freeleech   bool
	InfoHash    string
}

// IndexerAdapter is the contract every indexer provider implements.
type IndexerAdapter interface {
	Name() string
	Search(ctx context.Context, query SearchQuery) ([]RawRelease, error)
	Test(ctx context.Context) error
}

// ExternalTorrentState is the download-client-normalized state a
// DownloadClientAdapter reports.
type ExternalTorrentState string

const (
	ExternalQueued      ExternalTorrentState = "queued"
	ExternalDownloading ExternalTorrentState = "downloading"
	ExternalPaused      ExternalTorrentState = "paused"
	ExternalCompleted   ExternalTorrentState = "completed"
	ExternalError       ExternalTorrentState = "error"
	ExternalMissing     ExternalTorrentState = "missing"
)

// ExternalTorrent is a single download-client-reported torrent/nzb.
type ExternalTorrent struct {
	ExternalID string
	State      ExternalTorrentState
	Progress   float64
	SavePath   string
	Files      []string
}

// AddOptions carries submission-time options for DownloadClientAdapter.Add.
type AddOptions struct {
	Category string
}

// DownloadClientAdapter is the contract the download supervisor drives.
type DownloadClientAdapter interface {
	Add(ctx context.Context, uri string, opts AddOptions) (externalID string, err error)
	List(ctx context.Context, category string) ([]ExternalTorrent, error)
	Remove(ctx context.Context, externalID string, deleteFiles bool) error
}

// MetadataLookup is the display metadata a MetadataAdapter returns; used
// for naming-template substitution only, never on the decision path.
type MetadataLookup struct {
	Title    string
	Year     int
	Runtime  int
	Genres   []string
	Poster   string
	Overview string
}

// MetadataAdapter is the contract the (out-of-core) metadata collaborator
// implements.
type MetadataAdapter interface {
	Lookup(ctx context.Context, catalogID string) (MetadataLookup, error)
}
