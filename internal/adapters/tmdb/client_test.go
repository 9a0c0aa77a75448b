package tmdb

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reelwatch/orchestrator/internal/domain"
)

func TestLookup_BuildsMetadataFromMovieDetails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/movie/329865", r.URL.Path)
		assert.Equal(t, "testkey", r.URL.Query().Get("api_key"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"title": "Arrival",
			"release_date": "2016-11-10",
			"runtime": 116,
			"poster_path": "/poster.jpg",
			"overview": "A linguist works with the military.",
			"genres": [{"name": "Drama"}, {"name": "Science Fiction"}]
		}`))
	}))
	defer server.Close()

	client := New(Config{APIKey: "testkey", BaseURL: server.URL})
	lookup, err := client.Lookup(context.Background(), "329865")
	require.NoError(t, err)
	assert.Equal(t, "Arrival", lookup.Title)
	assert.Equal(t, 2016, lookup.Year)
	assert.Equal(t, 116, lookup.Runtime)
	assert.Equal(t, []string{"Drama", "Science Fiction"}, lookup.Genres)
	assert.Equal(t, posterBaseURL+"/poster.jpg", lookup.Poster)
}

func TestLookup_NotFoundIsClassified(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := New(Config{APIKey: "testkey", BaseURL: server.URL})
	_, err := client.Lookup(context.Background(), "0")
	require.Error(t, err)
	assert.Equal(t, domain.NotFound, domain.ClassOf(err))
}

func TestLookup_UpstreamErrorIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := New(Config{APIKey: "testkey", BaseURL: server.URL})
	_, err := client.Lookup(context.Background(), "1")
	require.Error(t, err)
	assert.Equal(t, domain.Transient, domain.ClassOf(err))
}

func TestYearFromDate(t *testing.T) {
	assert.Equal(t, 2016, yearFromDate("2016-11-10"))
	assert.Equal(t, 0, yearFromDate(""))
	assert.Equal(t, 0, yearFromDate("ab"))
}

func TestPosterURL(t *testing.T) {
	assert.Equal(t, "", posterURL(""))
	assert.Equal(t, posterBaseURL+"/x.jpg", posterURL("/x.jpg"))
}
