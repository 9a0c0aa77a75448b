package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ReleaseCandidate is a non-persisted search result carrying everything
// the decision engine needs to rank it.
type ReleaseCandidate struct {
	IndexerID   string
	Title       string
	SizeBytes   int64
	PublishedAt time.Time
	Seeders     int
	Leechers    int
	DownloadURI string
	Freeleech   bool
	InfoHash    string // preferred fingerprint source when present
	Quality     ParsedQuality
}

var titleNormalizer = regexp.MustCompile(`[^a-z0-9]+`)

func normalizeTitle(title string) string {
	lower := strings.ToLower(title)
	return strings.Trim(titleNormalizer.ReplaceAllString(lower, " "), " ")
}

// Fingerprint is the content-addressed identifier used for dedup,
// blocklisting, and selection audit: the torrent info-hash when
// available, else sha256(normalize(title)+size).
func (c ReleaseCandidate) Fingerprint() string {
	if hash := strings.ToLower(strings.TrimSpace(c.InfoHash)); hash != "" {
		return hash
	}
	sum := sha256.Sum256([]byte(normalizeTitle(c.Title) + "|" + strconv.FormatInt(c.SizeBytes, 10)))
	return hex.EncodeToString(sum[:])
}

// SaneSize reports whether the candidate's size falls within [min, max].
// A zero bound is treated as unset on that side.
func (c ReleaseCandidate) SaneSize(min, max int64) bool {
	if c.SizeBytes <= 0 {
		return false
	}
	if min > 0 && c.SizeBytes < min {
		return false
	}
	if max > 0 && c.SizeBytes > max {
		return false
	}
	return true
}
