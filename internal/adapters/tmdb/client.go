// Package tmdb implements ports.MetadataAdapter against the TMDB REST
// API, with a Redis front cache: a catalog id is looked up externally
// at most once per TTL, since naming-template metadata is stable
// between imports.
package tmdb

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/reelwatch/orchestrator/internal/domain"
	"github.com/reelwatch/orchestrator/internal/domain/ports"
)

const (
	defaultBaseURL  = "https://api.themoviedb.org/3"
	posterBaseURL   = "https://image.tmdb.org/t/p/w300"
	redisCacheKey   = "reelwatch:tmdb:"
	defaultCacheTTL = 7 * 24 * time.Hour
)

type movieDetails struct {
	Title       string  `json:"title"`
	ReleaseDate string  `json:"release_date"`
	Runtime     int     `json:"runtime"`
	PosterPath  string  `json:"poster_path"`
	Overview    string  `json:"overview"`
	Genres      []genre `json:"genres"`
}

type genre struct {
	Name string `json:"name"`
}

// Client is a ports.MetadataAdapter against the TMDB REST API.
type Client struct {
	apiKey   string
	baseURL  string
	http     *http.Client
	redis    *redis.Client
	cacheTTL time.Duration
}

type Config struct {
	APIKey   string
	BaseURL  string
	HTTP     *http.Client
	Redis    *redis.Client
	CacheTTL time.Duration
}

func New(cfg Config) *Client {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	httpClient := cfg.HTTP
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &Client{
		apiKey:   strings.TrimSpace(cfg.APIKey),
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     httpClient,
		redis:    cfg.Redis,
		cacheTTL: ttl,
	}
}

func (c *Client) Lookup(ctx context.Context, catalogID string) (ports.MetadataLookup, error) {
	cacheKey := redisCacheKey + catalogID

	if c.redis != nil {
		if data, err := c.redis.Get(ctx, cacheKey).Bytes(); err == nil {
			var cached ports.MetadataLookup
			if json.Unmarshal(data, &cached) == nil {
				return cached, nil
			}
		}
	}

	params := url.Values{"api_key": {c.apiKey}}
	reqURL := fmt.Sprintf("%s/movie/%s?%s", c.baseURL, url.PathEscape(catalogID), params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return ports.MetadataLookup{}, domain.Classify(domain.Internal, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return ports.MetadataLookup{}, domain.Classify(domain.Transient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ports.MetadataLookup{}, domain.Classify(domain.NotFound, domain.ErrNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return ports.MetadataLookup{}, domain.Classify(domain.Transient, fmt.Errorf("tmdb HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 512*1024))
	if err != nil {
		return ports.MetadataLookup{}, domain.Classify(domain.Transient, err)
	}

	var details movieDetails
	if err := json.Unmarshal(body, &details); err != nil {
		return ports.MetadataLookup{}, domain.Classify(domain.Internal, err)
	}

	genres := make([]string, 0, len(details.Genres))
	for _, g := range details.Genres {
		genres = append(genres, g.Name)
	}
	lookup := ports.MetadataLookup{
		Title:    details.Title,
		Year:     yearFromDate(details.ReleaseDate),
		Runtime:  details.Runtime,
		Genres:   genres,
		Poster:   posterURL(details.PosterPath),
		Overview: details.Overview,
	}

	if c.redis != nil {
		if data, err := json.Marshal(lookup); err == nil {
			_ = c.redis.Set(ctx, cacheKey, data, c.cacheTTL).Err()
		}
	}

	return lookup, nil
}

func yearFromDate(date string) int {
	if len(date) < 4 {
		return 0
	}
	year, err := strconv.Atoi(date[:4])
	if err != nil {
		return 0
	}
	return year
}

func posterURL(path string) string {
	if path == "" {
		return ""
	}
	return posterBaseURL + path
}
