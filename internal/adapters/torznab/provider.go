// Package torznab implements ports.IndexerAdapter against a Torznab/RSS
// search endpoint (Jackett/Prowlarr and native Torznab indexers share
// the same wire format).
package torznab

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/reelwatch/orchestrator/internal/domain"
	"github.com/reelwatch/orchestrator/internal/domain/ports"
)

const defaultUserAgent = "reelwatch-orchestrator/1.0"

type Config struct {
	Name      string
	Endpoint  string
	APIKey    string
	UserAgent string
	Client    *http.Client
}

// Provider is a ports.IndexerAdapter over one Torznab endpoint.
type Provider struct {
	name      string
	endpoint  string
	apiKey    string
	userAgent string
	client    *http.Client
}

func New(cfg Config) *Provider {
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &Provider{
		name:      strings.ToLower(strings.TrimSpace(cfg.Name)),
		endpoint:  strings.TrimSpace(cfg.Endpoint),
		apiKey:    strings.TrimSpace(cfg.APIKey),
		userAgent: userAgent,
		client:    client,
	}
}

func (p *Provider) Name() string { return p.name }

func (p *Provider) Test(ctx context.Context) error {
	_, err := p.search(ctx, ports.SearchQuery{Title: "test"})
	return err
}

func (p *Provider) Search(ctx context.Context, query ports.SearchQuery) ([]ports.RawRelease, error) {
	return p.search(ctx, query)
}

func (p *Provider) search(ctx context.Context, query ports.SearchQuery) ([]ports.RawRelease, error) {
	if p.endpoint == "" {
		return nil, domain.Classify(domain.Validation, fmt.Errorf("torznab indexer %q has no endpoint configured", p.name))
	}

	uri, err := url.Parse(p.endpoint)
	if err != nil {
		return nil, domain.Classify(domain.Validation, fmt.Errorf("invalid torznab endpoint: %w", err))
	}
	q := uri.Query()
	q.Set("t", "search")
	searchTerm := strings.TrimSpace(query.Title)
	if query.Year > 0 {
		searchTerm = fmt.Sprintf("%s %d", searchTerm, query.Year)
	}
	q.Set("q", searchTerm)
	if q.Get("extended") == "" {
		q.Set("extended", "1")
	}
	if q.Get("apikey") == "" && p.apiKey != "" {
		q.Set("apikey", p.apiKey)
	}
	uri.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri.String(), nil)
	if err != nil {
		return nil, domain.Classify(domain.Internal, err)
	}
	req.Header.Set("User-Agent", p.userAgent)
	req.Header.Set("Accept", "application/xml,text/xml,application/rss+xml")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, domain.Classify(domain.Transient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, domain.Classify(domain.Transient, fmt.Errorf("torznab indexer %q HTTP %d: %s", p.name, resp.StatusCode, strings.TrimSpace(string(body))))
	}

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 8*1024*1024))
	if err != nil {
		return nil, domain.Classify(domain.Transient, err)
	}

	items, err := parseTorznabResponse(payload)
	if err != nil {
		return nil, domain.Classify(domain.Internal, err)
	}

	results := make([]ports.RawRelease, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		release, ok := itemToRelease(item)
		if !ok {
			continue
		}
		key := release.InfoHash
		if key == "" {
			key = release.DownloadURI
		}
		if key == "" {
			continue
		}
		if _, exists := seen[key]; exists {
			continue
		}
		seen[key] = struct{}{}
		results = append(results, release)
	}
	return results, nil
}

func itemToRelease(item torznabItem) (ports.RawRelease, bool) {
	title := strings.TrimSpace(item.Title)
	if title == "" {
		return ports.RawRelease{}, false
	}

	attrs := make(map[string]string, len(item.Attrs))
	for _, attr := range item.Attrs {
		key := strings.ToLower(strings.TrimSpace(attr.Name))
		if key == "" {
			continue
		}
		if _, exists := attrs[key]; exists {
			continue
		}
		attrs[key] = strings.TrimSpace(attr.Value)
	}

	downloadURI := firstNonEmpty(item.Enclosure.URL, item.Link, item.Guid)
	infoHash := strings.ToLower(strings.TrimSpace(attrs["infohash"]))
	if infoHash == "" && strings.HasPrefix(strings.ToLower(downloadURI), "magnet:?") {
		infoHash = extractInfoHashFromMagnet(downloadURI)
	}
	if downloadURI == "" {
		return ports.RawRelease{}, false
	}

	sizeBytes := parseI64(attrs["size"])
	if sizeBytes <= 0 {
		sizeBytes = item.Enclosure.Length
	}

	seeders := parseInt(attrs["seeders"])
	leechers := parseInt(attrs["leechers"])
	if leechers == 0 {
		if peers := parseInt(attrs["peers"]); peers > seeders {
			leechers = peers - seeders
		}
	}

	var publishedAt time.Time
	if parsed := parsePubDate(item.PubDate); parsed != nil {
		publishedAt = *parsed
	}

	_, freeleech := attrs["downloadvolumefactor"]
	if freeleech {
		freeleech = attrs["downloadvolumefactor"] == "0"
	}

	return ports.RawRelease{
		Title:       title,
		SizeBytes:   sizeBytes,
		PublishedAt: publishedAt,
		Seeders:     seeders,
		Leechers:    leechers,
		DownloadURI: downloadURI,
		Freeleech:   freeleech,
		InfoHash:    infoHash,
	}, true
}

type torznabResponse struct {
	Channel torznabChannel `xml:"channel"`
}

type torznabChannel struct {
	Items []torznabItem `xml:"item"`
}

type torznabItem struct {
	Title     string           `xml:"title"`
	Guid      string           `xml:"guid"`
	Link      string           `xml:"link"`
	PubDate   string           `xml:"pubDate"`
	Enclosure torznabEnclosure `xml:"enclosure"`
	Attrs     []torznabAttr    `xml:"attr"`
}

type torznabEnclosure struct {
	URL    string `xml:"url,attr"`
	Length int64  `xml:"length,attr"`
}

type torznabAttr struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

func parseTorznabResponse(payload []byte) ([]torznabItem, error) {
	var rss torznabResponse
	if err := xml.Unmarshal(payload, &rss); err != nil {
		return nil, fmt.Errorf("invalid torznab XML: %w", err)
	}
	return rss.Channel.Items, nil
}

func extractInfoHashFromMagnet(rawMagnet string) string {
	parsed, err := url.Parse(strings.TrimSpace(rawMagnet))
	if err != nil {
		return ""
	}
	xt := parsed.Query().Get("xt")
	const prefix = "urn:btih:"
	if idx := strings.Index(strings.ToLower(xt), prefix); idx >= 0 {
		return strings.ToLower(xt[idx+len(prefix):])
	}
	return ""
}

func firstNonEmpty(candidates ...string) string {
	for _, c := range candidates {
		if strings.TrimSpace(c) != "" {
			return c
		}
	}
	return ""
}

func parseInt(raw string) int {
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0
	}
	return v
}

func parseI64(raw string) int64 {
	v, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0
	}
	return v
}

func parsePubDate(raw string) *time.Time {
	value := strings.TrimSpace(raw)
	if value == "" {
		return nil
	}
	formats := []string{time.RFC1123Z, time.RFC1123, time.RFC822Z, time.RFC822, time.RFC3339}
	for _, format := range formats {
		if parsed, err := time.Parse(format, value); err == nil {
			utc := parsed.UTC()
			return &utc
		}
	}
	return nil
}
