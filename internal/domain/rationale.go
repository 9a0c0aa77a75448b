package domain

// CandidateRationale is the per-candidate explanation the decision
// engine produces: tier, component scores, and disqualification reason
// if any. Every decision must be explainable after the fact.
type CandidateRationale struct {
	Fingerprint    string
	Tier           Tier
	AllowedScore   int
	PreferredBonus int
	FormatScore    int
	ReputationAdj  int
	SizeFitness    int
	FreeleechBonus int
	ProperBonus    int
	TotalScore     int
	Disqualified   bool
	Disqualifier   string // reason, empty if not disqualified
}

// Rationale is the full, structured explanation for a decision round:
// every candidate considered plus the winning reasons, stored alongside
// the resulting queue job for audit and the history view.
type Rationale struct {
	MovieID        string
	Candidates     []CandidateRationale
	WinningFPrint  string // fingerprint of the selected candidate, "" if none
	WinningReasons []string
	NoSelectReason string // populated when WinningFPrint == ""
}
