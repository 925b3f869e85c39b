package models

import (
	"database/sql"
	"time"
)

// Source types understood by the pipeline.
const (
	SourceTypeArticle    = "article"
	SourceTypeBlog       = "blog"
	SourceTypeNews       = "news"
	SourceTypePodcast    = "podcast"
	SourceTypeVideo      = "video"
	SourceTypeTwitter    = "twitter"
	SourceTypeNewsletter = "newsletter"
	SourceTypeWeChat     = "wechat"
)

var sourceTypes = map[string]struct{}{
	SourceTypeArticle:    {},
	SourceTypeBlog:       {},
	SourceTypeNews:       {},
	SourceTypePodcast:    {},
	SourceTypeVideo:      {},
	SourceTypeTwitter:    {},
	SourceTypeNewsletter: {},
	SourceTypeWeChat:     {},
}

// ValidSourceType reports whether t is a known source type.
func ValidSourceType(t string) bool {
	_, ok := sourceTypes[t]
	return ok
}

// Source represents a row in the 'sources' table
type Source struct {
	ID             int64        `db:"id" json:"id"`
	Name           string       `db:"name" json:"name"`
	URL            string       `db:"url" json:"url"`
	Type           string       `db:"type" json:"type"`
	Category       string       `db:"category" json:"category"`
	Language       string       `db:"language" json:"language"`
	CrawlFrequency int          `db:"crawl_frequency_seconds" json:"crawlFrequencySeconds"`
	NeedCrawl      bool         `db:"need_crawl" json:"needCrawl"`
	Status         string       `db:"status" json:"status"`
	ErrorCount     int          `db:"error_count" json:"errorCount"`
	LastCrawledAt  sql.NullTime `db:"last_crawled_at" json:"-"`
	LastSuccessAt  sql.NullTime `db:"last_success_at" json:"-"`
	CreatedAt      time.Time    `db:"created_at" json:"-"`
	UpdatedAt      time.Time    `db:"updated_at" json:"-"`
}

// NewSource creates a new Source with default values
func NewSource() *Source {
	now := time.Now()
	return &Source{
		Type:           SourceTypeArticle,
		Language:       "en",
		CrawlFrequency: 3600,
		Status:         "active",
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}
