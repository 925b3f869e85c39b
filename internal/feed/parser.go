// Package feed turns RSS 2.0 / Atom XML into a uniform sequence of feed
// items ready for the crawl pipeline.
package feed

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/rs/zerolog/log"

	"aipulse/crawler/internal/models"
)

const (
	defaultTimeout = 30 * time.Second
	maxFeedBody    = 10 << 20 // 10MB

	acceptHeader = "application/rss+xml, application/atom+xml, application/xml;q=0.9, text/xml;q=0.8, */*;q=0.1"
	userAgent    = "aipulse-crawler/1.0 (+https://aipulse.dev)"
)

// Error wraps a source-level feed failure (unreachable or malformed feed).
type Error struct {
	URL string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("feed %s: %v", e.URL, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Parser fetches and parses feeds.
type Parser struct {
	client  *http.Client
	timeout time.Duration
}

// NewParser creates a feed parser. A timeout of zero uses the default 30s.
func NewParser(timeout time.Duration) *Parser {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Parser{
		client:  &http.Client{Timeout: timeout},
		timeout: timeout,
	}
}

// Fetch downloads a feed URL and parses it into items. A non-2xx response
// or an undetectable feed format is a source-level error.
func (p *Parser) Fetch(ctx context.Context, feedURL string) ([]models.FeedItem, error) {
	reqCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, &Error{URL: feedURL, Err: err}
	}
	req.Header.Set("Accept", acceptHeader)
	req.Header.Set("User-Agent", userAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, &Error{URL: feedURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &Error{URL: feedURL, Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBody))
	if err != nil {
		return nil, &Error{URL: feedURL, Err: fmt.Errorf("reading body: %w", err)}
	}

	items, err := p.Parse(body)
	if err != nil {
		return nil, &Error{URL: feedURL, Err: err}
	}
	return items, nil
}

// Parse converts raw RSS/Atom XML into feed items. The universal parser
// detects the schema from the document root (rss/channel vs feed/entry);
// an unknown root is a parse failure. Items whose URL does not resolve to
// an absolute http(s) address are dropped.
func (p *Parser) Parse(raw []byte) ([]models.FeedItem, error) {
	parsed, err := gofeed.NewParser().Parse(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parsing feed: %w", err)
	}

	items := make([]models.FeedItem, 0, len(parsed.Items))
	for _, it := range parsed.Items {
		link := extractURL(it)
		if link == "" {
			log.Debug().Str("title", it.Title).Msg("Dropping feed item without absolute URL")
			continue
		}
		items = append(items, models.FeedItem{
			Title:       it.Title,
			Link:        link,
			GUID:        it.GUID,
			PublishedAt: extractPublishedAt(it),
			Content:     it.Content,
			Snippet:     it.Description,
			Categories:  it.Categories,
		})
	}
	return items, nil
}

// extractURL prefers the item link and falls back to the guid; either must
// parse as an absolute http(s) URL or the item is unusable.
func extractURL(it *gofeed.Item) string {
	for _, candidate := range []string{it.Link, it.GUID} {
		u, err := url.Parse(candidate)
		if err != nil {
			continue
		}
		if u.IsAbs() && (u.Scheme == "http" || u.Scheme == "https") {
			return candidate
		}
	}
	return ""
}

// extractPublishedAt uses the published timestamp, then updated, else now.
func extractPublishedAt(it *gofeed.Item) time.Time {
	if it.PublishedParsed != nil {
		return *it.PublishedParsed
	}
	if it.UpdatedParsed != nil {
		return *it.UpdatedParsed
	}
	return time.Now()
}

// ExtractContent picks the richest content variant available on an item.
func ExtractContent(it models.FeedItem) string {
	if it.Content != "" {
		return it.Content
	}
	return it.Snippet
}

// FilterItems drops items missing a URL or title, drops items older than
// maxAge, sorts the remainder by published time descending, and caps the
// result at limit.
func FilterItems(items []models.FeedItem, maxAge time.Duration, limit int) []models.FeedItem {
	cutoff := time.Now().Add(-maxAge)

	kept := make([]models.FeedItem, 0, len(items))
	for _, it := range items {
		if it.Link == "" || it.Title == "" {
			continue
		}
		if maxAge > 0 && it.PublishedAt.Before(cutoff) {
			continue
		}
		kept = append(kept, it)
	}

	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].PublishedAt.After(kept[j].PublishedAt)
	})

	if limit > 0 && len(kept) > limit {
		kept = kept[:limit]
	}
	return kept
}
