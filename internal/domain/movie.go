package domain

import "time"

// MovieStatus is a Movie's lifecycle state.
type MovieStatus string

const (
	MovieWanted     MovieStatus = "wanted"
	MovieDownloading MovieStatus = "downloading"
	MovieAvailable  MovieStatus = "available"
	MovieExcluded   MovieStatus = "excluded"
)

// BestFile is a Movie's current best on-disk release, or nil if none.
type BestFile struct {
	Path        string
	SizeBytes   int64
	Fingerprint string
	Quality     ParsedQuality
	ImportedAt  time.Time
}

// Movie is a stable, monitored library entry. Created by the
// library-management collaborator; the acquisition coordinator updates
// Status (and Title/Year on metadata refresh), the import pipeline sets
// BestFile and Status, and the user sets Monitored and ProfileID.
type Movie struct {
	ID         string
	CatalogID  string // e.g. TMDB id
	Title      string
	Year       int
	Monitored  bool
	ProfileID  string
	BestFile   *BestFile
	Status     MovieStatus
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// NewMovie constructs a Movie enforcing the invariant that a profile
// must be assigned at creation.
func NewMovie(id, catalogID, title string, year int, profileID string, now time.Time) (Movie, error) {
	if catalogID == "" || profileID == "" {
		return Movie{}, Classify(Validation, ErrInvalidMovie)
	}
	return Movie{
		ID:        id,
		CatalogID: catalogID,
		Title:     title,
		Year:      year,
		Monitored: true,
		ProfileID: profileID,
		Status:    MovieWanted,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// IsAvailable enforces the invariant "a movie is Available iff it has a
// non-null best file and that file exists on disk" at the Go-type
// level; the disk-existence half is verified by the caller (repository
// layer / import pipeline), this only checks the in-memory half.
func (m Movie) IsAvailable() bool {
	return m.Status == MovieAvailable && m.BestFile != nil
}
