// Package ingest posts normalized articles to the ingest sink and exposes
// the sink's URL-existence check used as the authoritative duplicate gate.
package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"aipulse/crawler/internal/models"
)

const (
	defaultTimeout = 30 * time.Second
	maxErrorBody   = 4 << 10

	secretHeader = "x-ingest-secret"
)

// Error is a sink rejection carrying the response body as diagnostics.
// Ingest failures are item-level and never retried by this client.
type Error struct {
	StatusCode int
	Body       string
}

func (e *Error) Error() string {
	return fmt.Sprintf("ingest rejected with status %d: %s", e.StatusCode, e.Body)
}

// Result is the sink's acceptance response. Inserted=false means the sink
// already had the article and treated the POST as a duplicate.
type Result struct {
	ID       string
	Inserted bool
}

// Client talks to the ingest sink.
type Client struct {
	http   *http.Client
	apiURL string
	secret string
}

// New creates an ingest client for the given sink URL and shared secret.
// A timeout of zero uses the default 30s.
func New(apiURL, secret string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		http:   &http.Client{Timeout: timeout},
		apiURL: strings.TrimRight(apiURL, "/"),
		secret: secret,
	}
}

// Ingest posts one normalized article. A 2xx response decodes into a
// Result; anything else returns an *Error with the response body.
func (c *Client) Ingest(ctx context.Context, art models.NormalizedArticle) (Result, error) {
	payload, err := json.Marshal(art)
	if err != nil {
		return Result{}, fmt.Errorf("encoding article: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(payload))
	if err != nil {
		return Result{}, fmt.Errorf("building ingest request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(secretHeader, c.secret)

	resp, err := c.http.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("posting article %s: %w", art.URL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return Result{}, fmt.Errorf("reading ingest response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Result{}, &Error{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	// The sink may serialize ids as numbers or strings.
	var decoded struct {
		ID       any  `json:"id"`
		Inserted bool `json:"inserted"`
	}
	if err := json.Unmarshal(body, &decoded); err != nil {
		return Result{}, fmt.Errorf("decoding ingest response: %w", err)
	}
	return Result{ID: fmt.Sprint(decoded.ID), Inserted: decoded.Inserted}, nil
}

// Exists asks the sink whether it already has an article for the URL.
// Callers treat an error as "unknown" and proceed; the sink still
// deduplicates on POST.
func (c *Client) Exists(ctx context.Context, articleURL string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.apiURL+"/exists?url="+url.QueryEscape(articleURL), nil)
	if err != nil {
		return false, fmt.Errorf("building exists request: %w", err)
	}
	req.Header.Set(secretHeader, c.secret)

	resp, err := c.http.Do(req)
	if err != nil {
		return false, fmt.Errorf("checking existence of %s: %w", articleURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return false, fmt.Errorf("exists check for %s: status %d", articleURL, resp.StatusCode)
	}

	var decoded struct {
		Exists bool `json:"exists"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return false, fmt.Errorf("decoding exists response: %w", err)
	}
	return decoded.Exists, nil
}
