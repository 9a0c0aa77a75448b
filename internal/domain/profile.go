package domain

import "math"

// RequiredFormatScore is the sentinel score value marking a custom
// format rule as required: missing it disqualifies a candidate outright
// rather than merely subtracting points.
const RequiredFormatScore = math.MinInt32

// TierRule is a Quality Profile's policy for one quality tier: whether
// releases in that tier are acceptable at all, and whether they should
// be preferred when otherwise tied.
type TierRule struct {
	Tier       Tier
	Allowed    bool
	Preferred  bool
	BaseScore  int
	MinBytes   int64 // expected-size band floor for size-fitness scoring, 0 = no floor
	MaxBytes   int64 // expected-size band ceiling, 0 = no ceiling
}

// FormatPredicate matches a ParsedQuality against a named custom format
// rule. Implementations are pure and side-effect free.
type FormatPredicate func(ParsedQuality) bool

// CustomFormatRule is a named predicate over parsed quality fields with
// an associated score. A Score of RequiredFormatScore marks the rule as
// a must-match gate rather than a scoring contribution.
type CustomFormatRule struct {
	Name      string
	Predicate FormatPredicate
	Score     int
}

func (r CustomFormatRule) Required() bool { return r.Score == RequiredFormatScore }

// QualityProfile is the user-defined policy determining which releases
// are acceptable and how they are scored.
type QualityProfile struct {
	ID              string
	Name            string
	Tiers           []TierRule
	Cutoff          Tier
	MinFormatScore  int
	CustomFormats   []CustomFormatRule
	UpgradeAllowed  bool
	FreeleechBias   int // added to score when a candidate is freeleech and this is nonzero
	PreferredBonus  int // added when a candidate's tier is marked preferred
	ProperBonusUnit int // multiplied by ProperTier and tier rank for the proper/repack bonus
}

// TierRule looks up the rule for a tier; ok is false if the tier is not
// named in the profile at all (treated as not-allowed).
func (p QualityProfile) TierRule(tier Tier) (TierRule, bool) {
	for _, t := range p.Tiers {
		if t.Tier == tier {
			return t, true
		}
	}
	return TierRule{}, false
}

// TierRank returns the rule's position in the profile's ordered tier
// list, used as the "higher tier" ordinal in tie-breaks and the
// upgrade-strictly-improves check. Higher index means higher quality,
// matching the profile's declared ordering (lowest tier first).
func (p QualityProfile) TierRank(tier Tier) int {
	for i, t := range p.Tiers {
		if t.Tier == tier {
			return i
		}
	}
	return -1
}

// CutoffReached reports whether a tier has reached or passed the
// profile's configured cutoff.
func (p QualityProfile) CutoffReached(tier Tier) bool {
	cutoffRank := p.TierRank(p.Cutoff)
	if cutoffRank < 0 {
		return false
	}
	return p.TierRank(tier) >= cutoffRank
}
