package decision

import (
	"github.com/reelwatch/orchestrator/internal/domain"
)

// sizeFitness applies a piecewise penalty for a candidate's size
// falling outside the tier rule's expected band. Inside the band: 0.
// Outside: a penalty proportional to how far outside, capped so a wildly
// oversized or undersized release cannot dominate the score.
func sizeFitness(sizeBytes, minBytes, maxBytes int64) int {
	switch {
	case minBytes > 0 && sizeBytes < minBytes:
		deficit := minBytes - sizeBytes
		return -penaltyFor(deficit, minBytes)
	case maxBytes > 0 && sizeBytes > maxBytes:
		excess := sizeBytes - maxBytes
		return -penaltyFor(excess, maxBytes)
	default:
		return 0
	}
}

// penaltyFor scales a deviation against its reference size into a
// capped integer penalty: 1 point per 10% deviation, capped at 10.
func penaltyFor(deviation, reference int64) int {
	if reference <= 0 {
		return 0
	}
	pct := int(deviation * 100 / reference / 10)
	if pct > 10 {
		pct = 10
	}
	if pct < 0 {
		pct = 0
	}
	return pct
}

// properBonus scales a candidate's proper/repack escalation by its
// tier rank, so an identical PROPER is worth more at a higher tier
// (matching the spec's "proportional to tier" rule).
func properBonus(unit int, tier domain.ProperTier, tierRank int) int {
	return unit * int(tier) * (tierRank + 1)
}
