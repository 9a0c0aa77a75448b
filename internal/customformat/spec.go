// Package customformat compiles a persisted custom format definition
// into the domain.CustomFormatRule predicate the decision engine scores
// candidates against. Predicates cannot round-trip through a document
// store directly, so a custom format is stored as a small condition
// list and compiled to a closure on load.
package customformat

import (
	"strings"

	"github.com/reelwatch/orchestrator/internal/domain"
)

// Field names one of ParsedQuality's matchable attributes.
type Field string

const (
	FieldResolution Field = "resolution"
	FieldSource     Field = "source"
	FieldVideoCodec Field = "video_codec"
	FieldAudioCodec Field = "audio_codec"
	FieldHDR        Field = "hdr"
	FieldEdition    Field = "edition"
	FieldGroup      Field = "group"
	FieldProper     Field = "proper" // Value ignored; matches ProperTier > 0
	FieldLanguage   Field = "language"
)

// Condition matches one field against one of a set of acceptable
// values (case-insensitive). All Conditions in a Spec must match for
// the compiled predicate to return true.
type Condition struct {
	Field  Field
	Values []string
}

func (c Condition) matches(q domain.ParsedQuality) bool {
	switch c.Field {
	case FieldResolution:
		return containsFold(c.Values, string(q.Resolution))
	case FieldSource:
		return containsFold(c.Values, string(q.Source))
	case FieldVideoCodec:
		return containsFold(c.Values, q.VideoCodec)
	case FieldAudioCodec:
		return containsFold(c.Values, q.AudioCodec)
	case FieldHDR:
		for _, v := range c.Values {
			for _, h := range q.HDR {
				if strings.EqualFold(string(h), v) {
					return true
				}
			}
		}
		return false
	case FieldEdition:
		return containsFold(c.Values, q.Edition)
	case FieldGroup:
		return containsFold(c.Values, domain.CanonicalGroupName(q.Group))
	case FieldProper:
		return q.ProperTier > 0
	case FieldLanguage:
		for _, v := range c.Values {
			for _, l := range q.Languages {
				if strings.EqualFold(l, v) {
					return true
				}
			}
		}
		return false
	default:
		return false
	}
}

func containsFold(values []string, target string) bool {
	for _, v := range values {
		if strings.EqualFold(v, target) {
			return true
		}
	}
	return false
}

// Spec is the persisted shape of a custom format: a name, a score (or
// domain.RequiredFormatScore to mark it a must-match gate), and the
// AND of its Conditions.
type Spec struct {
	Name       string
	Score      int
	Conditions []Condition
}

// Compile builds the domain.CustomFormatRule this Spec describes. An
// empty Conditions list never matches, since a format with no criteria
// carries no information worth scoring.
func (s Spec) Compile() domain.CustomFormatRule {
	conditions := s.Conditions
	return domain.CustomFormatRule{
		Name:  s.Name,
		Score: s.Score,
		Predicate: func(q domain.ParsedQuality) bool {
			if len(conditions) == 0 {
				return false
			}
			for _, c := range conditions {
				if !c.matches(q) {
					return false
				}
			}
			return true
		},
	}
}
