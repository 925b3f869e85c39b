package models

import (
	"database/sql"
	"time"
)

// CrawlMetrics counts item outcomes for a single source crawl.
type CrawlMetrics struct {
	OK       int           `json:"ok"`
	Skipped  int           `json:"skipped"`
	Failed   int           `json:"failed"`
	Total    int           `json:"total"`
	Duration time.Duration `json:"duration"`
}

// Add folds another metrics value into the receiver. Duration is summed;
// batch totals report cumulative source time, not wall time.
func (m *CrawlMetrics) Add(other CrawlMetrics) {
	m.OK += other.OK
	m.Skipped += other.Skipped
	m.Failed += other.Failed
	m.Total += other.Total
	m.Duration += other.Duration
}

// CrawlRecord represents a row in the 'crawls' table, one per source crawl.
type CrawlRecord struct {
	ID         int64          `db:"id" json:"id"`
	SourceID   int64          `db:"source_id" json:"sourceId"`
	StartedAt  time.Time      `db:"started_at" json:"startedAt"`
	OK         int            `db:"ok" json:"ok"`
	Skipped    int            `db:"skipped" json:"skipped"`
	Failed     int            `db:"failed" json:"failed"`
	DurationMS int64          `db:"duration_ms" json:"durationMs"`
	ErrMsg     sql.NullString `db:"err" json:"-"`
	CreatedAt  time.Time      `db:"created_at" json:"createdAt"`
}
