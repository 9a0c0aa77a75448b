package domain

import (
	"regexp"
	"strings"
)

// ReputationTier is the trust level assigned to a scene group.
type ReputationTier string

const (
	ReputationLegendary ReputationTier = "legendary"
	ReputationTrusted   ReputationTier = "trusted"
	ReputationStandard  ReputationTier = "standard"
	ReputationUnknown   ReputationTier = "unknown"
	ReputationUntrusted ReputationTier = "untrusted"
)

// ReputationRecord is a persisted, offline-analyzer-produced trust score
// for a scene group. Read-only to the decision engine.
type ReputationRecord struct {
	GroupKey string // canonicalized group name, see CanonicalGroupName
	Tier     ReputationTier
	Score    int
}

var groupSeparators = regexp.MustCompile(`[._\-]+`)

// CanonicalGroupName normalizes a scene group name to a stable lookup
// key: case-insensitive, dot/underscore/hyphen runs collapsed to a
// single space, leading/trailing bracket characters trimmed (a bracketed
// tag inside the name is kept). Both the reputation store and the
// decision engine must use this function so "NTb", "NTB", and "[NTb]"
// resolve to the same key; "N.T.B" becomes "n t b", a different key.
func CanonicalGroupName(raw string) string {
	name := strings.TrimSpace(raw)
	name = strings.Trim(name, "[]{}()")
	name = groupSeparators.ReplaceAllString(name, " ")
	name = strings.Join(strings.Fields(name), " ")
	return strings.ToLower(name)
}
