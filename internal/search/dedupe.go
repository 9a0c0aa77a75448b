package search

import "github.com/reelwatch/orchestrator/internal/domain"

// Dedupe merges candidates sharing a content fingerprint, keeping the
// one that wins the tie-break: (1) higher seeders; (2) more recent
// publish time; (3) lexicographically smaller indexer id.
func Dedupe(candidates []domain.ReleaseCandidate) []domain.ReleaseCandidate {
	best := make(map[string]domain.ReleaseCandidate, len(candidates))
	order := make([]string, 0, len(candidates))
	for _, c := range candidates {
		fp := c.Fingerprint()
		existing, ok := best[fp]
		if !ok {
			best[fp] = c
			order = append(order, fp)
			continue
		}
		if wins(c, existing) {
			best[fp] = c
		}
	}
	merged := make([]domain.ReleaseCandidate, 0, len(order))
	for _, fp := range order {
		merged = append(merged, best[fp])
	}
	return merged
}

// wins reports whether candidate beats incumbent under the dedup
// tie-break order.
func wins(candidate, incumbent domain.ReleaseCandidate) bool {
	if candidate.Seeders != incumbent.Seeders {
		return candidate.Seeders > incumbent.Seeders
	}
	if !candidate.PublishedAt.Equal(incumbent.PublishedAt) {
		return candidate.PublishedAt.After(incumbent.PublishedAt)
	}
	return candidate.IndexerID < incumbent.IndexerID
}

// SanityFilter drops candidates with a missing title or an out-of-band
// size.
func SanityFilter(candidates []domain.ReleaseCandidate, minBytes, maxBytes int64) []domain.ReleaseCandidate {
	out := make([]domain.ReleaseCandidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Title == "" {
			continue
		}
		if !c.SaneSize(minBytes, maxBytes) {
			continue
		}
		out = append(out, c)
	}
	return out
}
