// Package decision implements the Decision Engine: given a movie, its
// quality profile, its current best file (if any), and a set of
// Release Candidates, it selects at most one candidate to download and
// returns a structured, explainable rationale alongside the selection.
package decision

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/reelwatch/orchestrator/internal/domain"
	"github.com/reelwatch/orchestrator/internal/domain/ports"
	"github.com/reelwatch/orchestrator/internal/metrics"
	"github.com/reelwatch/orchestrator/internal/parser"
)

// Engine is a pure-ish decision function wrapped with its two read-only
// collaborators: the reputation store and the blocklist.
type Engine struct {
	reputation ports.ReputationRepository
	blocklist  ports.BlocklistRepository
	log        zerolog.Logger
}

type Option func(*Engine)

func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

func New(reputation ports.ReputationRepository, blocklist ports.BlocklistRepository, opts ...Option) *Engine {
	e := &Engine{reputation: reputation, blocklist: blocklist, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type scored struct {
	candidate domain.ReleaseCandidate
	quality   domain.ParsedQuality
	tier      domain.Tier
	tierRank  int
	rationale domain.CandidateRationale
}

// Decide runs the full ranking algorithm and returns the rationale plus
// the winning candidate, or a nil candidate if nothing was selected.
func (e *Engine) Decide(ctx context.Context, movie domain.Movie, profile domain.QualityProfile, candidates []domain.ReleaseCandidate, now time.Time) (domain.Rationale, *domain.ReleaseCandidate) {
	rationale := domain.Rationale{MovieID: movie.ID}

	scoredCandidates := make([]scored, 0, len(candidates))
	blocklistedCount := 0
	for _, c := range candidates {
		q := parser.Parse(c.Title)
		tier := q.TierKey()
		rank := profile.TierRank(tier)

		cr := domain.CandidateRationale{Fingerprint: c.Fingerprint(), Tier: tier}

		if e.isBlocked(ctx, c.Fingerprint(), now) {
			cr.Disqualified = true
			cr.Disqualifier = "blocklisted"
			blocklistedCount++
			rationale.Candidates = append(rationale.Candidates, cr)
			continue
		}

		rule, allowed := profile.TierRule(tier)
		if !allowed || !rule.Allowed {
			cr.Disqualified = true
			cr.Disqualifier = "tier_not_allowed"
			rationale.Candidates = append(rationale.Candidates, cr)
			continue
		}

		score, disqualifier := e.scoreCandidate(ctx, c, q, rule, profile, rank)
		cr.AllowedScore = rule.BaseScore
		if rule.Preferred {
			cr.PreferredBonus = profile.PreferredBonus
		}
		cr.FormatScore = score.formatScore
		cr.ReputationAdj = score.reputationAdj
		cr.SizeFitness = score.sizeFitness
		cr.FreeleechBonus = score.freeleechBonus
		cr.ProperBonus = score.properBonus
		cr.TotalScore = score.total

		if disqualifier != "" {
			cr.Disqualified = true
			cr.Disqualifier = disqualifier
			rationale.Candidates = append(rationale.Candidates, cr)
			continue
		}

		if score.total < profile.MinFormatScore {
			cr.Disqualified = true
			cr.Disqualifier = "below_minimum_score"
			rationale.Candidates = append(rationale.Candidates, cr)
			continue
		}

		rationale.Candidates = append(rationale.Candidates, cr)
		scoredCandidates = append(scoredCandidates, scored{candidate: c, quality: q, tier: tier, tierRank: rank, rationale: cr})
	}
	preFilterCount := len(scoredCandidates)

	if movie.BestFile != nil {
		if !profile.UpgradeAllowed {
			rationale.NoSelectReason = "upgrades_disabled"
			metrics.DecisionOutcomesTotal.WithLabelValues("disqualified").Inc()
			return rationale, nil
		}
		bestTier := movie.BestFile.Quality.TierKey()
		if profile.CutoffReached(bestTier) {
			rationale.NoSelectReason = "cutoff_reached"
			metrics.DecisionOutcomesTotal.WithLabelValues("disqualified").Inc()
			return rationale, nil
		}
		bestRank := profile.TierRank(bestTier)
		bestScore := 0
		if bestRule, ok := profile.TierRule(bestTier); ok {
			asCandidate := domain.ReleaseCandidate{SizeBytes: movie.BestFile.SizeBytes}
			breakdown, _ := e.scoreCandidate(ctx, asCandidate, movie.BestFile.Quality, bestRule, profile, bestRank)
			bestScore = breakdown.total
		}
		filtered := scoredCandidates[:0]
		for _, sc := range scoredCandidates {
			if sc.tierRank > bestRank {
				filtered = append(filtered, sc)
				continue
			}
			// a lower tier never improves; an equal tier only improves
			// with a strictly higher score than the current best file.
			if sc.tierRank == bestRank && sc.rationale.TotalScore > bestScore {
				filtered = append(filtered, sc)
			}
		}
		scoredCandidates = filtered
	}

	if len(scoredCandidates) == 0 {
		// Only attribute the empty result to blocklisting when nothing
		// survived the per-candidate loop in the first place; a set
		// that was later emptied by the best-file upgrade comparison
		// failed to improve, it wasn't blocklisted.
		if preFilterCount == 0 && len(candidates) > 0 && blocklistedCount == len(candidates) {
			rationale.NoSelectReason = "all_blocklisted"
			metrics.DecisionOutcomesTotal.WithLabelValues("all_blocklisted").Inc()
			return rationale, nil
		}
		rationale.NoSelectReason = "no_candidates"
		metrics.DecisionOutcomesTotal.WithLabelValues("no_candidates").Inc()
		return rationale, nil
	}

	winner := pickWinner(scoredCandidates)
	rationale.WinningFPrint = winner.candidate.Fingerprint()
	rationale.WinningReasons = winningReasons(winner)
	metrics.DecisionOutcomesTotal.WithLabelValues("selected").Inc()

	result := winner.candidate
	result.Quality = winner.quality
	return rationale, &result
}

func (e *Engine) isBlocked(ctx context.Context, fingerprint string, now time.Time) bool {
	if e.blocklist == nil {
		return false
	}
	blocked, err := e.blocklist.IsBlocked(ctx, fingerprint, now)
	if err != nil {
		e.log.Warn().Err(err).Str("fingerprint", fingerprint).Msg("blocklist lookup failed, treating as not blocked")
		return false
	}
	return blocked
}

type scoreBreakdown struct {
	formatScore    int
	reputationAdj  int
	sizeFitness    int
	freeleechBonus int
	properBonus    int
	total          int
}

func (e *Engine) scoreCandidate(ctx context.Context, c domain.ReleaseCandidate, q domain.ParsedQuality, rule domain.TierRule, profile domain.QualityProfile, tierRank int) (scoreBreakdown, string) {
	total := rule.BaseScore
	if rule.Preferred {
		total += profile.PreferredBonus
	}

	formatScore := 0
	for _, fmt := range profile.CustomFormats {
		if !fmt.Predicate(q) {
			if fmt.Required() {
				return scoreBreakdown{}, "missing_required_format:" + fmt.Name
			}
			continue
		}
		if fmt.Required() {
			continue
		}
		formatScore += fmt.Score
	}
	total += formatScore

	reputationAdj := e.reputationAdjustment(ctx, q.Group)
	total += reputationAdj

	fitness := sizeFitness(c.SizeBytes, rule.MinBytes, rule.MaxBytes)
	total += fitness

	freeleech := 0
	if c.Freeleech && profile.FreeleechBias != 0 {
		freeleech = profile.FreeleechBias
		total += freeleech
	}

	proper := properBonus(profile.ProperBonusUnit, q.ProperTier, tierRank)
	total += proper

	return scoreBreakdown{
		formatScore:    formatScore,
		reputationAdj:  reputationAdj,
		sizeFitness:    fitness,
		freeleechBonus: freeleech,
		properBonus:    proper,
		total:          total,
	}, ""
}

func (e *Engine) reputationAdjustment(ctx context.Context, group string) int {
	if e.reputation == nil || group == "" {
		return 0
	}
	canonical := domain.CanonicalGroupName(group)
	rec, err := e.reputation.Get(ctx, canonical)
	if err != nil {
		return 0
	}
	return rec.Score
}

func pickWinner(candidates []scored) scored {
	best := candidates[0]
	for _, c := range candidates[1:] {
		if better(c, best) {
			best = c
		}
	}
	return best
}

// better implements step 8's tie-break: (1) higher score, (2) higher
// tier, (3) smaller size (closer to the expected band's floor), (4)
// newer publish time, (5) deterministic fingerprint comparison.
func better(a, b scored) bool {
	if a.rationale.TotalScore != b.rationale.TotalScore {
		return a.rationale.TotalScore > b.rationale.TotalScore
	}
	if a.tierRank != b.tierRank {
		return a.tierRank > b.tierRank
	}
	if a.candidate.SizeBytes != b.candidate.SizeBytes {
		return a.candidate.SizeBytes < b.candidate.SizeBytes
	}
	if !a.candidate.PublishedAt.Equal(b.candidate.PublishedAt) {
		return a.candidate.PublishedAt.After(b.candidate.PublishedAt)
	}
	return a.candidate.Fingerprint() < b.candidate.Fingerprint()
}

func winningReasons(winner scored) []string {
	reasons := []string{"highest_score"}
	if winner.rationale.PreferredBonus > 0 {
		reasons = append(reasons, "preferred_tier")
	}
	if winner.rationale.FreeleechBonus > 0 {
		reasons = append(reasons, "freeleech")
	}
	if winner.rationale.ProperBonus > 0 {
		reasons = append(reasons, "proper_or_repack")
	}
	if winner.rationale.ReputationAdj > 0 {
		reasons = append(reasons, "trusted_group")
	}
	return reasons
}
