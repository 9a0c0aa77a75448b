package naming

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/reelwatch/orchestrator/internal/domain"
)

func TestRender_DefaultTemplate(t *testing.T) {
	values := Values{Title: "Arrival", Year: 2016, Resolution: domain.Resolution1080p, Source: domain.SourceBluray}
	got := Render(DefaultTemplate, values)
	assert.Equal(t, "Arrival (2016)/Arrival (2016) - 1080p bluray", got)
}

func TestRender_EditionAddsBracketSuffix(t *testing.T) {
	values := Values{Title: "Blade Runner", Year: 1982, Resolution: domain.Resolution2160p, Source: domain.SourceBlurayRemux, Edition: "final cut"}
	got := Render(DefaultTemplate, values)
	assert.Equal(t, "Blade Runner (1982)/Blade Runner (1982) - 2160p bluray_remux [Final Cut]", got)
}

func TestRender_SanitizesIllegalPathCharacters(t *testing.T) {
	values := Values{Title: "Se7en: Director's Cut?", Year: 1995, Resolution: domain.Resolution1080p, Source: domain.SourceWEBDL}
	got := Render("{title}", values)
	assert.NotContains(t, got, ":")
	assert.NotContains(t, got, "?")
}

func TestValuesFor_BuildsFromMovieAndQuality(t *testing.T) {
	movie := domain.Movie{Title: "Arrival", Year: 2016, CatalogID: "tmdb-329865"}
	quality := domain.ParsedQuality{Resolution: domain.Resolution1080p, Source: domain.SourceBluray, Group: "GROUP"}
	values := ValuesFor(movie, quality)
	assert.Equal(t, "Arrival", values.Title)
	assert.Equal(t, "tmdb-329865", values.CatalogID)
	assert.Equal(t, "GROUP", values.Group)
}
