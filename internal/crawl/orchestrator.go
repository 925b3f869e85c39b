// Package crawl orchestrates batches of source crawls: bounded fan-out,
// per-source failure isolation, and metrics aggregation.
package crawl

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"aipulse/crawler/internal/analyzer"
	"aipulse/crawler/internal/config"
	"aipulse/crawler/internal/dedup"
	"aipulse/crawler/internal/feed"
	"aipulse/crawler/internal/fetcher"
	"aipulse/crawler/internal/ingest"
	"aipulse/crawler/internal/models"
	"aipulse/crawler/internal/registry"
)

// itemOutcome classifies what happened to one feed item.
type itemOutcome int

const (
	outcomeOK itemOutcome = iota
	outcomeSkipped
	outcomeFailed
)

// BatchResult aggregates one orchestrator run.
type BatchResult struct {
	PerSource map[int64]models.CrawlMetrics
	Totals    models.CrawlMetrics
	Sources   int
}

// Orchestrator fans out per-source crawls under a concurrency bound.
type Orchestrator struct {
	reg      *registry.Registry
	parser   *feed.Parser
	fetcher  *fetcher.Fetcher
	analyzer *analyzer.Cascade
	sink     *ingest.Client
	cfg      *config.Config

	// Running batch counters for progress logging
	ok            atomic.Int64
	skipped       atomic.Int64
	failed        atomic.Int64
	activeWorkers atomic.Int32
}

// New wires an orchestrator from its collaborators.
func New(reg *registry.Registry, parser *feed.Parser, f *fetcher.Fetcher, cascade *analyzer.Cascade, sink *ingest.Client, cfg *config.Config) *Orchestrator {
	return &Orchestrator{
		reg:      reg,
		parser:   parser,
		fetcher:  f,
		analyzer: cascade,
		sink:     sink,
		cfg:      cfg,
	}
}

type sourceResult struct {
	sourceID int64
	metrics  models.CrawlMetrics
}

// RunBatch selects due sources and crawls them with a bounded worker pool.
// Every source's outcome is captured individually; a failing source never
// halts its siblings. The metrics map is written only by the collector
// after each source's task completes.
func (o *Orchestrator) RunBatch(ctx context.Context, now time.Time) (*BatchResult, error) {
	var types []string
	if o.cfg.PriorityOnly {
		types = o.cfg.PriorityTypes
	}

	sources, err := o.reg.DueSources(ctx, now, types, o.cfg.SourcesPerBatch)
	if err != nil {
		return nil, fmt.Errorf("selecting due sources: %w", err)
	}
	if len(sources) == 0 {
		log.Info().Msg("No sources due for crawling")
		return &BatchResult{PerSource: map[int64]models.CrawlMetrics{}}, nil
	}

	concurrency := o.cfg.Concurrency
	if concurrency <= 0 {
		concurrency = config.DefaultConcurrency
	}
	log.Info().
		Int("sources", len(sources)).
		Int("concurrency", concurrency).
		Msg("Starting crawl batch")

	o.ok.Store(0)
	o.skipped.Store(0)
	o.failed.Store(0)

	progressTicker := time.NewTicker(time.Minute)
	defer progressTicker.Stop()
	progressDone := make(chan struct{})
	go func() {
		for {
			select {
			case <-progressTicker.C:
				log.Info().
					Int64("ok", o.ok.Load()).
					Int64("skipped", o.skipped.Load()).
					Int64("failed", o.failed.Load()).
					Int32("active_workers", o.activeWorkers.Load()).
					Msg("Batch progress")
			case <-progressDone:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
	defer close(progressDone)

	srcQueue := make(chan models.Source)
	results := make(chan sourceResult, len(sources))

	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o.activeWorkers.Add(1)
			defer o.activeWorkers.Add(-1)
			for src := range srcQueue {
				results <- sourceResult{
					sourceID: src.ID,
					metrics:  o.crawlSource(ctx, src),
				}
			}
		}()
	}

	go func() {
		defer close(srcQueue)
		for _, src := range sources {
			select {
			case srcQueue <- src:
			case <-ctx.Done():
				log.Info().Err(ctx.Err()).Msg("Context cancelled during source queuing")
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	result := &BatchResult{
		PerSource: make(map[int64]models.CrawlMetrics, len(sources)),
	}
	for res := range results {
		result.PerSource[res.sourceID] = res.metrics
		result.Totals.Add(res.metrics)
		result.Sources++
	}

	log.Info().
		Int("sources", result.Sources).
		Int("ok", result.Totals.OK).
		Int("skipped", result.Totals.Skipped).
		Int("failed", result.Totals.Failed).
		Int("total", result.Totals.Total).
		Msg("Crawl batch finished")

	return result, nil
}

// crawlSource processes one source end to end and reports its metrics
// exactly once. Panics are contained here so a misbehaving source only
// costs itself.
func (o *Orchestrator) crawlSource(ctx context.Context, src models.Source) (metrics models.CrawlMetrics) {
	started := time.Now()
	var crawlErr error

	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Int64("source_id", src.ID).
				Str("url", src.URL).
				Interface("panic", r).
				Msg("Source crawl panicked")
			metrics.Failed++
			metrics.Total++
			crawlErr = fmt.Errorf("panic: %v", r)
		}

		metrics.Duration = time.Since(started)
		o.finishSource(ctx, src, started, metrics, crawlErr)
	}()

	log.Info().
		Int64("source_id", src.ID).
		Str("name", src.Name).
		Str("url", src.URL).
		Msg("Crawling source")

	items, err := o.parser.Fetch(ctx, src.URL)
	if err != nil {
		log.Warn().Err(err).Int64("source_id", src.ID).Msg("Feed fetch failed")
		metrics.Failed++
		metrics.Total++
		crawlErr = err
		return
	}

	items = feed.FilterItems(items, o.cfg.MaxItemAge, o.cfg.ItemsPerSource)
	seen := dedup.NewBatchSeen()

	// Items run in filtered/sorted order; one item's failure never
	// aborts the remainder.
	for _, item := range items {
		switch o.processItem(ctx, src, item, seen) {
		case outcomeOK:
			metrics.OK++
			o.ok.Add(1)
		case outcomeSkipped:
			metrics.Skipped++
			o.skipped.Add(1)
		case outcomeFailed:
			metrics.Failed++
			o.failed.Add(1)
		}
		metrics.Total++
	}
	return
}

// finishSource applies the single per-source status update and records the
// crawl history row.
func (o *Orchestrator) finishSource(ctx context.Context, src models.Source, started time.Time, metrics models.CrawlMetrics, crawlErr error) {
	updateCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
	defer cancel()

	success := crawlErr == nil && metrics.Failed == 0
	delta := metrics.Failed
	if crawlErr != nil {
		delta = 1
	}

	if err := o.reg.UpdateCrawlStatus(updateCtx, src.ID, started, success, delta); err != nil {
		log.Error().Err(err).Int64("source_id", src.ID).Msg("Failed to update crawl status")
	}

	rec := &models.CrawlRecord{
		SourceID:   src.ID,
		StartedAt:  started,
		OK:         metrics.OK,
		Skipped:    metrics.Skipped,
		Failed:     metrics.Failed,
		DurationMS: metrics.Duration.Milliseconds(),
	}
	if crawlErr != nil {
		rec.ErrMsg = sql.NullString{String: crawlErr.Error(), Valid: true}
	}
	if err := o.reg.RecordCrawl(updateCtx, rec); err != nil {
		log.Error().Err(err).Int64("source_id", src.ID).Msg("Failed to record crawl history")
	}

	log.Info().
		Int64("source_id", src.ID).
		Int("ok", metrics.OK).
		Int("skipped", metrics.Skipped).
		Int("failed", metrics.Failed).
		Dur("duration", metrics.Duration).
		Msg("Source crawl finished")
}

// processItem runs the per-item pipeline: dedup gates, content fetch,
// analysis, ingest.
func (o *Orchestrator) processItem(ctx context.Context, src models.Source, item models.FeedItem, seen *dedup.BatchSeen) itemOutcome {
	if item.Link == "" || item.Title == "" {
		return outcomeSkipped
	}

	normURL := dedup.NormalizeURL(item.Link)
	if seen.SeenURL(normURL) {
		log.Debug().Str("url", normURL).Msg("Duplicate URL within batch")
		return outcomeSkipped
	}
	if seen.SimilarTitle(item.Title) {
		log.Debug().Str("title", item.Title).Msg("Near-duplicate title within batch")
		return outcomeSkipped
	}

	// Authoritative gate: don't spend fetch/analysis work on articles the
	// sink already has. A failed check degrades to "unknown" and proceeds.
	exists, err := o.sink.Exists(ctx, normURL)
	if err != nil {
		log.Debug().Err(err).Str("url", normURL).Msg("Existence check unavailable")
	} else if exists {
		return outcomeSkipped
	}

	content := feed.ExtractContent(item)
	if fetcher.Eligible(src) {
		fetched, err := o.fetcher.FetchContent(ctx, item.Link, content)
		if err != nil {
			log.Warn().Err(err).Str("url", item.Link).Msg("Content fetch failed")
			return outcomeFailed
		}
		content = fetched
	}

	if content != "" && seen.SeenContent(content) {
		log.Debug().Str("url", normURL).Msg("Near-duplicate content within batch")
		return outcomeSkipped
	}

	analysis := o.analyzer.Analyze(ctx, analyzer.Input{
		Title:          item.Title,
		Content:        content,
		SourceName:     src.Name,
		SourceCategory: src.Category,
	})

	article := models.NormalizedArticle{
		URL:            normURL,
		Title:          item.Title,
		SourceID:       src.ID,
		SourceName:     src.Name,
		SourceURL:      src.URL,
		SourceType:     src.Type,
		SourceCategory: src.Category,
		SourceLanguage: src.Language,
		PublishedAt:    item.PublishedAt,
		CrawledAt:      time.Now(),
		Summary:        analysis.Summary,
		OneLine:        analysis.OneLine,
		Content:        content,
		ContentFormat:  feed.GuessContentFormat(content),
		Category:       analysis.Category,
		Tags:           analysis.Tags,
		Importance:     analysis.Importance,
		Sentiment:      analysis.Sentiment,
		Language:       analysis.Language,
	}

	res, err := o.sink.Ingest(ctx, article)
	if err != nil {
		log.Warn().Err(err).Str("url", normURL).Msg("Ingest failed")
		return outcomeFailed
	}
	if !res.Inserted {
		log.Debug().Str("url", normURL).Str("id", res.ID).Msg("Sink reported duplicate")
		return outcomeSkipped
	}
	return outcomeOK
}
