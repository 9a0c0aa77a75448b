package torznab

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reelwatch/orchestrator/internal/domain/ports"
)

func TestParseTorznabResponseReadsNamespacedAttrs(t *testing.T) {
	payload := []byte(`<?xml version="1.0" encoding="UTF-8"?>
<rss xmlns:torznab="http://torznab.com/schemas/2015/feed">
  <channel>
    <item>
      <title>Arrival.2016.1080p.BluRay.x264-GROUP</title>
      <guid>magnet:?xt=urn:btih:0123456789abcdef0123456789abcdef01234567&amp;dn=Arrival</guid>
      <pubDate>Fri, 13 Feb 2026 12:00:00 +0000</pubDate>
      <torznab:attr name="seeders" value="123"/>
      <torznab:attr name="peers" value="150"/>
      <torznab:attr name="size" value="8589934592"/>
      <torznab:attr name="infohash" value="0123456789ABCDEF0123456789ABCDEF01234567"/>
    </item>
  </channel>
</rss>`)

	items, err := parseTorznabResponse(payload)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.NotEmpty(t, items[0].Attrs)
}

func TestItemToRelease_BuildsCoreFields(t *testing.T) {
	items, err := parseTorznabResponse([]byte(`<?xml version="1.0"?>
<rss xmlns:torznab="http://torznab.com/schemas/2015/feed">
  <channel>
    <item>
      <title>Arrival.2016.1080p.BluRay.x264-GROUP</title>
      <guid>magnet:?xt=urn:btih:0123456789abcdef0123456789abcdef01234567&amp;dn=Arrival</guid>
      <pubDate>Fri, 13 Feb 2026 12:00:00 +0000</pubDate>
      <torznab:attr name="seeders" value="123"/>
      <torznab:attr name="size" value="8589934592"/>
      <torznab:attr name="infohash" value="0123456789ABCDEF0123456789ABCDEF01234567"/>
    </item>
  </channel>
</rss>`))
	require.NoError(t, err)
	require.Len(t, items, 1)

	release, ok := itemToRelease(items[0])
	require.True(t, ok)
	assert.Equal(t, "Arrival.2016.1080p.BluRay.x264-GROUP", release.Title)
	assert.Equal(t, "0123456789abcdef0123456789abcdef01234567", release.InfoHash)
	assert.EqualValues(t, 8589934592, release.SizeBytes)
	assert.Equal(t, 123, release.Seeders)
}

func TestItemToRelease_RejectsEmptyTitle(t *testing.T) {
	_, ok := itemToRelease(torznabItem{Title: "  ", Link: "https://example.test/1"})
	require.False(t, ok)
}

func TestSearch_ParsesLiveResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "search", r.URL.Query().Get("t"))
		assert.Contains(t, r.URL.Query().Get("q"), "Arrival")
		w.Header().Set("Content-Type", "application/xml")
		w.Write([]byte(`<?xml version="1.0"?>
<rss xmlns:torznab="http://torznab.com/schemas/2015/feed">
  <channel>
    <item>
      <title>Arrival.2016.1080p.BluRay.x264-GROUP</title>
      <guid>magnet:?xt=urn:btih:0123456789abcdef0123456789abcdef01234567</guid>
      <torznab:attr name="seeders" value="50"/>
      <torznab:attr name="size" value="8589934592"/>
    </item>
  </channel>
</rss>`))
	}))
	defer server.Close()

	provider := New(Config{Name: "indexer1", Endpoint: server.URL})
	releases, err := provider.Search(context.Background(), ports.SearchQuery{Title: "Arrival", Year: 2016})
	require.NoError(t, err)
	require.Len(t, releases, 1)
	assert.Equal(t, int64(8589934592), releases[0].SizeBytes)
}

func TestSearch_NoEndpointIsValidationError(t *testing.T) {
	provider := New(Config{Name: "indexer1"})
	_, err := provider.Search(context.Background(), ports.SearchQuery{Title: "Arrival"})
	require.Error(t, err)
}
