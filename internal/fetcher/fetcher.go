// Package fetcher obtains full-text article content from a reader/extraction
// service, with classified retries and a scraped-HTML fallback chain.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"aipulse/crawler/internal/models"
)

const (
	defaultTimeout = 30 * time.Second
	maxContentBody = 2 << 20 // 2MB of extracted text is plenty

	userAgent = "aipulse-crawler/1.0 (+https://aipulse.dev)"
)

// Source types eligible for full-text extraction. Media-first sources
// (podcast, video, twitter) keep their feed-provided content.
var crawlableTypes = map[string]struct{}{
	models.SourceTypeArticle:    {},
	models.SourceTypeBlog:       {},
	models.SourceTypeNews:       {},
	models.SourceTypeNewsletter: {},
	models.SourceTypeWeChat:     {},
}

// Eligible reports whether a source's items should go through the reader
// service at all.
func Eligible(src models.Source) bool {
	if !src.NeedCrawl {
		return false
	}
	_, ok := crawlableTypes[src.Type]
	return ok
}

// Fetcher calls the reader/extraction service with retry and backoff.
type Fetcher struct {
	client       *http.Client
	readerPrefix string
	timeout      time.Duration
	maxRetries   int
	limiter      *rate.Limiter

	// sleep is swappable so retry tests don't wait out real backoff.
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a fetcher. readerPrefix is the reader-service URL prefix the
// protocol-stripped target URL is appended to. maxRetries is the total
// number of attempts per URL.
func New(readerPrefix string, timeout time.Duration, maxRetries int) *Fetcher {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if maxRetries <= 0 {
		maxRetries = 1
	}
	return &Fetcher{
		client:       &http.Client{Timeout: timeout},
		readerPrefix: readerPrefix,
		timeout:      timeout,
		maxRetries:   maxRetries,
		// Stay polite to the shared reader service.
		limiter: rate.NewLimiter(rate.Limit(4), 8),
		sleep:   sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Fetch retrieves extracted full-text for rawURL through the reader
// service. Retryable failures (network, timeout, 429, 5xx) back off and
// retry up to the attempt budget; any other 4xx aborts immediately.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	var lastErr error
	for attempt := 0; attempt < f.maxRetries; attempt++ {
		if attempt > 0 {
			delay := RetryDelay(lastErr, attempt)
			log.Debug().
				Str("url", rawURL).
				Int("attempt", attempt).
				Dur("delay", delay).
				Msg("Backing off before fetch retry")
			if err := f.sleep(ctx, delay); err != nil {
				return "", err
			}
		}

		if err := f.limiter.Wait(ctx); err != nil {
			return "", err
		}

		content, err := f.fetchOnce(ctx, rawURL)
		if err == nil {
			return content, nil
		}
		lastErr = err

		if !IsRetryable(err) {
			return "", err
		}
		log.Warn().Err(err).Str("url", rawURL).Int("attempt", attempt+1).Msg("Retryable fetch failure")
	}
	return "", lastErr
}

func (f *Fetcher) fetchOnce(ctx context.Context, rawURL string) (string, error) {
	readerURL := f.readerPrefix + stripProtocol(rawURL)

	reqCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, readerURL, nil)
	if err != nil {
		return "", &FetchError{StatusCode: statusNetwork, URL: rawURL, Err: err}
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/plain, text/markdown;q=0.9, */*;q=0.1")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", &FetchError{StatusCode: classifyTransportError(err), URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &FetchError{StatusCode: resp.StatusCode, URL: rawURL}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxContentBody))
	if err != nil {
		return "", &FetchError{StatusCode: classifyTransportError(err), URL: rawURL, Err: err}
	}

	content := strings.TrimSpace(string(body))
	if content == "" || isErrorMarker(content) {
		// The reader answered 200 but extraction failed upstream.
		return "", &FetchError{StatusCode: http.StatusBadGateway, URL: rawURL, Err: fmt.Errorf("empty or error-marker body")}
	}
	return content, nil
}

// FetchContent runs the full fallback chain for one item: reader service
// with retries, then the item's feed-provided content, then a best-effort
// scrape of the raw page. An empty outcome everywhere is an item failure.
func (f *Fetcher) FetchContent(ctx context.Context, rawURL, feedContent string) (string, error) {
	content, err := f.Fetch(ctx, rawURL)
	if err == nil {
		return content, nil
	}
	log.Warn().Err(err).Str("url", rawURL).Msg("Reader fetch failed, trying fallbacks")

	if strings.TrimSpace(feedContent) != "" {
		return feedContent, nil
	}

	scraped, scrapeErr := f.Scrape(ctx, rawURL)
	if scrapeErr == nil && scraped != "" {
		return scraped, nil
	}
	if scrapeErr != nil {
		log.Debug().Err(scrapeErr).Str("url", rawURL).Msg("Scrape fallback failed")
	}

	return "", fmt.Errorf("no content for %s after fallbacks: %w", rawURL, err)
}

// stripProtocol removes the scheme so the URL can be appended to the
// reader-service prefix.
func stripProtocol(rawURL string) string {
	rawURL = strings.TrimPrefix(rawURL, "https://")
	rawURL = strings.TrimPrefix(rawURL, "http://")
	return rawURL
}

func classifyTransportError(err error) int {
	if errors.Is(err, context.DeadlineExceeded) {
		return statusTimeout
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return statusTimeout
	}
	return statusNetwork
}

// isErrorMarker detects reader-service bodies that report an upstream
// extraction failure instead of content.
func isErrorMarker(content string) bool {
	firstLine := content
	if i := strings.IndexByte(firstLine, '\n'); i >= 0 {
		firstLine = firstLine[:i]
	}
	firstLine = strings.ToLower(strings.TrimSpace(firstLine))
	return strings.HasPrefix(firstLine, "error") || strings.HasPrefix(firstLine, "{\"error")
}
