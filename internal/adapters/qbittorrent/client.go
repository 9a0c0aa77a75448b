// Package qbittorrent implements ports.DownloadClientAdapter against the
// qBittorrent WebAPI v2: cookie-based login, multipart add by magnet
// URI, and the torrents/info polling shape the download supervisor
// drives on every tick.
package qbittorrent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/reelwatch/orchestrator/internal/domain"
	"github.com/reelwatch/orchestrator/internal/domain/ports"
)

var stateMap = map[string]ports.ExternalTorrentState{
	"downloading":  ports.ExternalDownloading,
	"metaDL":       ports.ExternalDownloading,
	"forcedDL":     ports.ExternalDownloading,
	"stalledDL":    ports.ExternalDownloading,
	"checkingDL":   ports.ExternalDownloading,
	"allocating":   ports.ExternalQueued,
	"queuedDL":     ports.ExternalQueued,
	"uploading":    ports.ExternalCompleted,
	"stalledUP":    ports.ExternalCompleted,
	"forcedUP":     ports.ExternalCompleted,
	"queuedUP":     ports.ExternalCompleted,
	"checkingUP":   ports.ExternalCompleted,
	"pausedDL":     ports.ExternalPaused,
	"pausedUP":     ports.ExternalCompleted,
	"error":        ports.ExternalError,
	"missingFiles": ports.ExternalMissing,
	"unknown":      ports.ExternalError,
}

// torrentInfo is the qBittorrent WebAPI v2 torrents/info shape.
type torrentInfo struct {
	Hash       string  `json:"hash"`
	State      string  `json:"state"`
	Progress   float64 `json:"progress"`
	SavePath   string  `json:"save_path"`
	ContentPat string  `json:"content_path"`
}

// Client is a ports.DownloadClientAdapter against a real qBittorrent
// WebAPI v2 instance. It logs in once, on first use; a later 403 (for
// example after the session cookie expires) is returned as an error and
// does not trigger a new login.
type Client struct {
	baseURL    string
	username   string
	password   string
	httpClient *http.Client

	mu         sync.Mutex
	authedOnce bool
}

func New(baseURL, username, password string, timeout time.Duration) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, domain.Classify(domain.Internal, err)
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		username:   username,
		password:   password,
		httpClient: &http.Client{Timeout: timeout, Jar: jar},
	}, nil
}

func (c *Client) login(ctx context.Context) error {
	form := url.Values{"username": {c.username}, "password": {c.password}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v2/auth/login", strings.NewReader(form.Encode()))
	if err != nil {
		return domain.Classify(domain.Internal, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.Classify(domain.Transient, err)
	}
	defer drain(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return domain.Classify(domain.Transient, fmt.Errorf("qbittorrent login: status %d", resp.StatusCode))
	}
	c.authedOnce = true
	return nil
}

func (c *Client) ensureAuthed(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.authedOnce {
		return nil
	}
	return c.login(ctx)
}

// Add submits a magnet or torrent-file URI and returns the info-hash as
// the external ID. The add endpoint returns no identifier, so the hash
// is read from the URI's btih parameter; for a URI without one the
// torrent is still submitted and Add returns a Validation error.
func (c *Client) Add(ctx context.Context, uri string, opts ports.AddOptions) (string, error) {
	if err := c.ensureAuthed(ctx); err != nil {
		return "", err
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if err := writer.WriteField("urls", uri); err != nil {
		return "", domain.Classify(domain.Internal, err)
	}
	if opts.Category != "" {
		if err := writer.WriteField("category", opts.Category); err != nil {
			return "", domain.Classify(domain.Internal, err)
		}
	}
	if err := writer.Close(); err != nil {
		return "", domain.Classify(domain.Internal, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v2/torrents/add", &body)
	if err != nil {
		return "", domain.Classify(domain.Internal, err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", domain.Classify(domain.Transient, err)
	}
	defer drain(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return "", domain.Classify(domain.Transient, fmt.Errorf("qbittorrent add: status %d", resp.StatusCode))
	}

	hash := infoHashFromURI(uri)
	if hash == "" {
		return "", domain.Classify(domain.Validation, domain.ErrNoInfoHash)
	}
	return hash, nil
}

func (c *Client) List(ctx context.Context, category string) ([]ports.ExternalTorrent, error) {
	if err := c.ensureAuthed(ctx); err != nil {
		return nil, err
	}

	q := url.Values{}
	if category != "" {
		q.Set("category", category)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v2/torrents/info?"+q.Encode(), nil)
	if err != nil {
		return nil, domain.Classify(domain.Internal, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, domain.Classify(domain.Transient, err)
	}
	defer drain(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, domain.Classify(domain.Transient, fmt.Errorf("qbittorrent list: status %d", resp.StatusCode))
	}

	var items []torrentInfo
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, domain.Classify(domain.Transient, err)
	}

	out := make([]ports.ExternalTorrent, 0, len(items))
	for _, t := range items {
		state, ok := stateMap[t.State]
		if !ok {
			state = ports.ExternalError
		}
		files := []string{}
		if t.ContentPat != "" {
			files = append(files, t.ContentPat)
		}
		out = append(out, ports.ExternalTorrent{
			ExternalID: t.Hash,
			State:      state,
			Progress:   t.Progress,
			SavePath:   t.SavePath,
			Files:      files,
		})
	}
	return out, nil
}

func (c *Client) Remove(ctx context.Context, externalID string, deleteFiles bool) error {
	if err := c.ensureAuthed(ctx); err != nil {
		return err
	}

	form := url.Values{"hashes": {externalID}, "deleteFiles": {fmt.Sprintf("%v", deleteFiles)}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v2/torrents/delete", strings.NewReader(form.Encode()))
	if err != nil {
		return domain.Classify(domain.Internal, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.Classify(domain.Transient, err)
	}
	defer drain(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return domain.Classify(domain.Transient, fmt.Errorf("qbittorrent remove: status %d", resp.StatusCode))
	}
	return nil
}

func infoHashFromURI(uri string) string {
	const marker = "btih:"
	idx := strings.Index(strings.ToLower(uri), marker)
	if idx < 0 {
		return ""
	}
	rest := uri[idx+len(marker):]
	end := strings.IndexAny(rest, "&")
	if end >= 0 {
		rest = rest[:end]
	}
	return strings.ToLower(rest)
}

func drain(body io.ReadCloser) {
	io.Copy(io.Discard, body)
	body.Close()
}
