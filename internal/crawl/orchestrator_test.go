package crawl

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aipulse/crawler/internal/analyzer"
	"aipulse/crawler/internal/config"
	"aipulse/crawler/internal/database"
	"aipulse/crawler/internal/feed"
	"aipulse/crawler/internal/fetcher"
	"aipulse/crawler/internal/ingest"
	"aipulse/crawler/internal/models"
	"aipulse/crawler/internal/registry"
)

// fakeSink is an httptest ingest sink that records POSTed articles and
// reports configured URLs as duplicates.
type fakeSink struct {
	srv       *httptest.Server
	posts     atomic.Int32
	dupURLs   map[string]bool
	knownURLs map[string]bool
}

func newFakeSink(t *testing.T) *fakeSink {
	t.Helper()
	s := &fakeSink{
		dupURLs:   map[string]bool{},
		knownURLs: map[string]bool{},
	}
	s.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/exists":
			json.NewEncoder(w).Encode(map[string]bool{
				"exists": s.knownURLs[r.URL.Query().Get("url")],
			})
		case r.Method == http.MethodPost:
			s.posts.Add(1)
			var art models.NormalizedArticle
			require.NoError(t, json.NewDecoder(r.Body).Decode(&art))
			json.NewEncoder(w).Encode(map[string]any{
				"id":       fmt.Sprintf("art-%d", s.posts.Load()),
				"inserted": !s.dupURLs[art.URL],
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(s.srv.Close)
	return s
}

func feedXML(items ...string) string {
	return `<?xml version="1.0"?><rss version="2.0"><channel><title>Test</title>` +
		strings.Join(items, "") + `</channel></rss>`
}

func feedItem(title, link string) string {
	return fmt.Sprintf(`<item><title>%s</title><link>%s</link><guid>%s</guid></item>`, title, link, link)
}

func newTestOrchestrator(t *testing.T, readerPrefix string, sink *fakeSink) (*Orchestrator, *registry.Registry) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "crawl.db")
	db, err := database.NewDB(database.NewConfig(dbPath))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	reg := registry.New(db)
	cfg := &config.Config{
		SourcesPerBatch: 20,
		ItemsPerSource:  10,
		Concurrency:     2,
	}

	o := New(
		reg,
		feed.NewParser(5*time.Second),
		fetcher.New(readerPrefix, 5*time.Second, 1),
		analyzer.NewCascadeWith(analyzer.Heuristic{}),
		ingest.New(sink.srv.URL, "test-secret", 0),
		cfg,
	)
	return o, reg
}

func addSource(t *testing.T, reg *registry.Registry, feedURL, srcType string, needCrawl bool) int64 {
	t.Helper()
	src := models.NewSource()
	src.Name = "test source " + feedURL
	src.URL = feedURL
	src.Type = srcType
	src.NeedCrawl = needCrawl
	inserted, err := reg.InsertSource(context.Background(), src)
	require.NoError(t, err)
	require.True(t, inserted)

	sources, err := reg.ListSources(context.Background())
	require.NoError(t, err)
	return sources[len(sources)-1].ID
}

func TestRunBatchMixedOutcomes(t *testing.T) {
	reader := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "Distinct extracted body for %s with enough words to fingerprint cleanly", r.URL.Path)
	}))
	defer reader.Close()

	sink := newFakeSink(t)

	feedSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, feedXML(
			feedItem("Fresh model release announced", "https://news.example.com/fresh"),
			feedItem("Quarterly earnings beat expectations", "https://news.example.com/dup"),
		))
	}))
	defer feedSrv.Close()

	// The sink already holds /dup and reports it on POST.
	sink.dupURLs["https://news.example.com/dup"] = true

	o, reg := newTestOrchestrator(t, reader.URL+"/", sink)
	id := addSource(t, reg, feedSrv.URL, models.SourceTypeArticle, true)

	result, err := o.RunBatch(context.Background(), time.Now())
	require.NoError(t, err)

	require.Equal(t, 1, result.Sources)
	m := result.PerSource[id]
	assert.Equal(t, 1, m.OK)
	assert.Equal(t, 1, m.Skipped)
	assert.Equal(t, 0, m.Failed)
	assert.Equal(t, 2, m.Total)
	assert.Equal(t, int32(2), sink.posts.Load())

	// A fully successful crawl resets error state.
	src, err := reg.GetSource(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 0, src.ErrorCount)
	assert.True(t, src.LastSuccessAt.Valid)
}

func TestRunBatchSkipsReaderForNonCrawlSources(t *testing.T) {
	var readerCalls atomic.Int32
	reader := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		readerCalls.Add(1)
		fmt.Fprint(w, "should never be requested")
	}))
	defer reader.Close()

	sink := newFakeSink(t)

	feedSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, feedXML(
			feedItem("Podcast episode on alignment research", "https://pod.example.com/ep1"),
		))
	}))
	defer feedSrv.Close()

	o, reg := newTestOrchestrator(t, reader.URL+"/", sink)
	addSource(t, reg, feedSrv.URL, models.SourceTypePodcast, false)

	result, err := o.RunBatch(context.Background(), time.Now())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Totals.OK)
	assert.Equal(t, int32(0), readerCalls.Load(), "non-crawl sources must not hit the reader")
	assert.Equal(t, int32(1), sink.posts.Load())
}

func TestRunBatchFeedFailureIsolated(t *testing.T) {
	reader := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "Extracted text body with plenty of distinct words in it")
	}))
	defer reader.Close()

	sink := newFakeSink(t)

	goodFeed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, feedXML(feedItem("Working source article", "https://ok.example.com/a")))
	}))
	defer goodFeed.Close()

	badFeed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer badFeed.Close()

	o, reg := newTestOrchestrator(t, reader.URL+"/", sink)
	goodID := addSource(t, reg, goodFeed.URL, models.SourceTypeArticle, true)
	badID := addSource(t, reg, badFeed.URL, models.SourceTypeArticle, true)

	result, err := o.RunBatch(context.Background(), time.Now())
	require.NoError(t, err)

	require.Equal(t, 2, result.Sources)
	assert.Equal(t, 1, result.PerSource[goodID].OK)
	assert.Equal(t, 1, result.PerSource[badID].Failed)

	// The failing feed increments error_count; the healthy one is untouched.
	bad, err := reg.GetSource(context.Background(), badID)
	require.NoError(t, err)
	assert.Equal(t, 1, bad.ErrorCount)

	good, err := reg.GetSource(context.Background(), goodID)
	require.NoError(t, err)
	assert.Equal(t, 0, good.ErrorCount)
}

func TestRunBatchDeduplicatesWithinBatch(t *testing.T) {
	reader := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "Shared article body used by both duplicate entries in the feed")
	}))
	defer reader.Close()

	sink := newFakeSink(t)

	feedSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Same article twice with differing tracking params.
		fmt.Fprint(w, feedXML(
			feedItem("Startup funding round closes", "https://news.example.com/round"),
			feedItem("Funding round closes for startup", "https://news.example.com/round?utm_source=rss"),
		))
	}))
	defer feedSrv.Close()

	o, reg := newTestOrchestrator(t, reader.URL+"/", sink)
	id := addSource(t, reg, feedSrv.URL, models.SourceTypeArticle, true)

	result, err := o.RunBatch(context.Background(), time.Now())
	require.NoError(t, err)

	m := result.PerSource[id]
	assert.Equal(t, 1, m.OK)
	assert.Equal(t, 1, m.Skipped)
	assert.Equal(t, int32(1), sink.posts.Load(), "duplicate must not be posted")
}

func TestRunBatchExistenceGateSkips(t *testing.T) {
	var readerCalls atomic.Int32
	reader := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		readerCalls.Add(1)
		fmt.Fprint(w, "Body text")
	}))
	defer reader.Close()

	sink := newFakeSink(t)
	sink.knownURLs["https://news.example.com/already-known"] = true

	feedSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, feedXML(
			feedItem("Previously ingested analysis piece", "https://news.example.com/already-known"),
		))
	}))
	defer feedSrv.Close()

	o, reg := newTestOrchestrator(t, reader.URL+"/", sink)
	addSource(t, reg, feedSrv.URL, models.SourceTypeArticle, true)

	result, err := o.RunBatch(context.Background(), time.Now())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Totals.Skipped)
	assert.Equal(t, int32(0), readerCalls.Load(), "known articles skip content fetch")
	assert.Equal(t, int32(0), sink.posts.Load())
}

func TestRunBatchNoDueSources(t *testing.T) {
	sink := newFakeSink(t)
	o, _ := newTestOrchestrator(t, "http://127.0.0.1:0/", sink)

	result, err := o.RunBatch(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, 0, result.Sources)
	assert.Empty(t, result.PerSource)
}
