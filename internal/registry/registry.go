// Package registry is the system of record for crawl sources. It selects
// due sources for a batch, applies crawl-status updates, and keeps a
// per-source crawl history.
package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"aipulse/crawler/internal/database"
	"aipulse/crawler/internal/models"
)

// Registry provides scheduling and status operations over the sources table.
type Registry struct {
	db *database.DB
}

// New creates a registry backed by an existing database connection.
func New(db *database.DB) *Registry {
	return &Registry{db: db}
}

// DueSources returns active sources whose crawl interval has elapsed (or
// that have never been crawled), optionally restricted to a type allow-list,
// ordered by error_count ascending then last_crawled_at ascending with
// never-crawled sources first, capped at limit. The ordering favors healthy
// sources and, among equally healthy ones, the stalest; error-prone sources
// still surface once sufficiently stale.
func (r *Registry) DueSources(ctx context.Context, now time.Time, types []string, limit int) ([]models.Source, error) {
	// strftime('%s') yields TEXT; both sides must be CAST to INTEGER or
	// SQLite orders the INTEGER left side before any TEXT right side and
	// the comparison is always true.
	query := `
		SELECT * FROM sources
		WHERE status = 'active'
		  AND (last_crawled_at IS NULL
		       OR CAST(strftime('%s', last_crawled_at) AS INTEGER) + crawl_frequency_seconds
		          <= CAST(strftime('%s', ?) AS INTEGER))`
	args := []any{now.UTC()}

	if len(types) > 0 {
		inQuery, inArgs, err := sqlx.In(` AND type IN (?)`, types)
		if err != nil {
			return nil, fmt.Errorf("failed to build type filter: %w", err)
		}
		query += inQuery
		args = append(args, inArgs...)
	}

	// SQLite sorts NULLs first on ASC, which is exactly the staleness
	// ordering we want for never-crawled sources.
	query += ` ORDER BY error_count ASC, last_crawled_at ASC LIMIT ?`
	args = append(args, limit)

	var sources []models.Source
	if err := r.db.SelectContext(ctx, &sources, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to query due sources: %w", err)
	}
	return sources, nil
}

// UpdateCrawlStatus applies the outcome of a finished source crawl.
// crawledAt is the crawl start time. On success the error counter resets
// and last_success_at advances; on failure error_count grows by delta
// (callers pass 1 for a feed-level failure or the failed-item count).
func (r *Registry) UpdateCrawlStatus(ctx context.Context, id int64, crawledAt time.Time, success bool, errorCountDelta int) error {
	now := time.Now().UTC()

	var err error
	if success {
		_, err = r.db.ExecContext(ctx, `
			UPDATE sources
			SET last_crawled_at = ?, last_success_at = ?, error_count = 0, updated_at = ?
			WHERE id = ?`,
			crawledAt.UTC(), now, now, id)
	} else {
		if errorCountDelta <= 0 {
			errorCountDelta = 1
		}
		_, err = r.db.ExecContext(ctx, `
			UPDATE sources
			SET last_crawled_at = ?, error_count = error_count + ?, updated_at = ?
			WHERE id = ?`,
			crawledAt.UTC(), errorCountDelta, now, id)
	}
	if err != nil {
		return fmt.Errorf("failed to update crawl status for source %d: %w", id, err)
	}
	return nil
}

// InsertSource adds a source, ignoring duplicates by URL. It returns true
// when a row was actually inserted.
func (r *Registry) InsertSource(ctx context.Context, src *models.Source) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO sources (name, url, type, category, language, crawl_frequency_seconds, need_crawl, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(url) DO NOTHING`,
		src.Name, src.URL, src.Type, src.Category, src.Language,
		src.CrawlFrequency, src.NeedCrawl, src.Status,
		src.CreatedAt.UTC(), src.UpdatedAt.UTC())
	if err != nil {
		return false, fmt.Errorf("failed to insert source %s: %w", src.URL, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected for source %s: %w", src.URL, err)
	}
	return affected > 0, nil
}

// GetSource fetches a single source by id.
func (r *Registry) GetSource(ctx context.Context, id int64) (*models.Source, error) {
	var src models.Source
	err := r.db.GetContext(ctx, &src, "SELECT * FROM sources WHERE id = ?", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("source %d not found", id)
		}
		return nil, fmt.Errorf("failed to get source %d: %w", id, err)
	}
	return &src, nil
}

// ListSources returns all sources ordered by id.
func (r *Registry) ListSources(ctx context.Context) ([]models.Source, error) {
	var sources []models.Source
	if err := r.db.SelectContext(ctx, &sources, "SELECT * FROM sources ORDER BY id ASC"); err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}
	return sources, nil
}

// RecordCrawl appends one crawl-history row for a finished source crawl.
func (r *Registry) RecordCrawl(ctx context.Context, rec *models.CrawlRecord) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO crawls (source_id, started_at, ok, skipped, failed, duration_ms, err, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.SourceID, rec.StartedAt.UTC(), rec.OK, rec.Skipped, rec.Failed,
		rec.DurationMS, rec.ErrMsg, time.Now().UTC())
	if err != nil {
		log.Error().Err(err).Int64("source_id", rec.SourceID).Msg("Failed to record crawl")
		return fmt.Errorf("failed to record crawl for source %d: %w", rec.SourceID, err)
	}
	return nil
}
