package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

const (
	scrapeTimeout    = 20 * time.Second
	scrapeMaxBody    = 4 << 20 // 4MB of HTML
	scrapeMaxContent = 10000   // characters of cleaned text
)

// Scrape is the last-resort fallback: fetch the raw page and reduce it to
// readable text by discarding boilerplate blocks and markup.
func (f *Fetcher) Scrape(ctx context.Context, rawURL string) (string, error) {
	reqCtx, cancel := context.WithTimeout(ctx, scrapeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("scrape request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("scrape %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("scrape %s: unexpected status %d", rawURL, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, scrapeMaxBody))
	if err != nil {
		return "", fmt.Errorf("scrape %s: parse html: %w", rawURL, err)
	}

	return CleanHTML(doc), nil
}

// CleanHTML strips boilerplate blocks and markup from a parsed page,
// collapses whitespace, and caps the result.
func CleanHTML(doc *goquery.Document) string {
	doc.Find("script, style, nav, header, footer, aside").Remove()

	text := doc.Find("body").Text()
	if text == "" {
		text = doc.Text()
	}

	text = strings.Join(strings.Fields(text), " ")
	if utf8.RuneCountInString(text) > scrapeMaxContent {
		runes := []rune(text)
		text = string(runes[:scrapeMaxContent])
	}
	return text
}
