package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"aipulse/crawler/internal/database"
	"aipulse/crawler/internal/models"
)

// CrawlRepository defines read access to the crawl history.
type CrawlRepository interface {
	FetchCrawls(ctx context.Context, limit int, since *time.Time, cursorTimestamp *time.Time, cursorID *int64) ([]models.CrawlRecord, error)
}

// sqlxRepository implements CrawlRepository using sqlx.
type sqlxRepository struct {
	db *database.DB
}

// NewRepository creates a new repository instance.
func NewRepository(db *database.DB) CrawlRepository {
	return &sqlxRepository{db: db}
}

// FetchCrawls retrieves crawl records created strictly after a point in
// time, by timestamp or by keyset cursor. The (created_at, id) ordering
// must stay consistent for cursor pagination to work.
func (r *sqlxRepository) FetchCrawls(ctx context.Context, limit int, since *time.Time, cursorTimestamp *time.Time, cursorID *int64) ([]models.CrawlRecord, error) {
	var records []models.CrawlRecord
	var query string
	var args []any

	const baseQuery = `SELECT * FROM crawls `
	const orderBy = ` ORDER BY created_at ASC, id ASC LIMIT ?`

	switch {
	case cursorTimestamp != nil && cursorID != nil:
		query = baseQuery + `WHERE (created_at > ?) OR (created_at = ? AND id > ?)` + orderBy
		args = append(args, cursorTimestamp.UTC(), cursorTimestamp.UTC(), *cursorID, limit)
	case since != nil:
		query = baseQuery + `WHERE created_at > ?` + orderBy
		args = append(args, since.UTC(), limit)
	default:
		return nil, fmt.Errorf("either 'since' or cursor parameters must be provided")
	}

	err := r.db.SelectContext(ctx, &records, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return []models.CrawlRecord{}, nil
		}
		return nil, fmt.Errorf("database query failed: %w", err)
	}

	return records, nil
}
