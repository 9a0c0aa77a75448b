package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/reelwatch/orchestrator/internal/domain"
)

func TestParse_BlurayRemux2160p(t *testing.T) {
	q := Parse("Movie.Title.2024.2160p.BluRay.REMUX.HDR10.DTS-HD.MA.7.1-GROUPX")
	assert.Equal(t, domain.Resolution2160p, q.Resolution)
	assert.Equal(t, domain.SourceBlurayRemux, q.Source)
	assert.True(t, q.HasHDR(domain.HDR10))
	assert.Equal(t, "GROUPX", q.Group)
}

func TestParse_WebDL1080p(t *testing.T) {
	q := Parse("Some.Movie.2023.1080p.WEB-DL.DDP5.1.H.264-TEAM")
	assert.Equal(t, domain.Resolution1080p, q.Resolution)
	assert.Equal(t, domain.SourceWEBDL, q.Source)
	assert.Equal(t, "TEAM", q.Group)
}

func TestParse_ProperAndRepack(t *testing.T) {
	proper := Parse("Movie.2024.1080p.BluRay.PROPER-GROUP")
	assert.Equal(t, domain.ProperTierProper, proper.ProperTier)

	repack := Parse("Movie.2024.1080p.BluRay.REPACK-GROUP")
	assert.Equal(t, domain.ProperTierRepack, repack.ProperTier)

	original := Parse("Movie.2024.1080p.BluRay-GROUP")
	assert.Equal(t, domain.ProperTierOriginal, original.ProperTier)
}

func TestParse_UnknownFieldsDefaultGracefully(t *testing.T) {
	q := Parse("some random text with no markers")
	assert.Equal(t, domain.ResolutionUnknow, q.Resolution)
	assert.Equal(t, domain.SourceUnknown, q.Source)
	assert.Empty(t, q.Group)
}

func TestParse_DolbyVisionDetected(t *testing.T) {
	q := Parse("Movie.2024.2160p.WEB-DL.DV.HDR-GROUP")
	assert.True(t, q.HasHDR(domain.DV))
}

func TestParse_EditionDetected(t *testing.T) {
	q := Parse("Movie.2024.Extended.1080p.BluRay-GROUP")
	assert.Equal(t, "extended", q.Edition)
}
