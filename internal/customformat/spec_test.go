package customformat

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/reelwatch/orchestrator/internal/domain"
)

func TestCompile_AllConditionsMustMatch(t *testing.T) {
	spec := Spec{
		Name:  "remux-dv",
		Score: 25,
		Conditions: []Condition{
			{Field: FieldSource, Values: []string{"bluray_remux"}},
			{Field: FieldHDR, Values: []string{"dolby_vision"}},
		},
	}
	rule := spec.Compile()

	assert.True(t, rule.Predicate(domain.ParsedQuality{
		Source: domain.SourceBlurayRemux,
		HDR:    []domain.HDRFormat{domain.DV},
	}))
	assert.False(t, rule.Predicate(domain.ParsedQuality{
		Source: domain.SourceBlurayRemux,
		HDR:    []domain.HDRFormat{domain.HDR10},
	}))
}

func TestCompile_GroupConditionUsesCanonicalName(t *testing.T) {
	spec := Spec{
		Name:       "trusted-group",
		Score:      10,
		Conditions: []Condition{{Field: FieldGroup, Values: []string{"ntb"}}},
	}
	rule := spec.Compile()

	assert.True(t, rule.Predicate(domain.ParsedQuality{Group: "NTb"}))
	assert.False(t, rule.Predicate(domain.ParsedQuality{Group: "EVO"}))
}

func TestCompile_RequiredScoreSentinelSurvivesCompile(t *testing.T) {
	spec := Spec{Name: "must-be-proper", Score: domain.RequiredFormatScore, Conditions: []Condition{{Field: FieldProper}}}
	rule := spec.Compile()

	assert.True(t, rule.Required())
	assert.True(t, rule.Predicate(domain.ParsedQuality{ProperTier: domain.ProperTierProper}))
	assert.False(t, rule.Predicate(domain.ParsedQuality{ProperTier: domain.ProperTierOriginal}))
}

func TestCompile_EmptyConditionsNeverMatches(t *testing.T) {
	rule := Spec{Name: "empty"}.Compile()
	assert.False(t, rule.Predicate(domain.ParsedQuality{}))
}
