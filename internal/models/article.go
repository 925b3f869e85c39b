package models

import "time"

// Content formats attached to a normalized article.
const (
	FormatHTML     = "html"
	FormatMarkdown = "markdown"
	FormatText     = "text"
)

// FeedItem is a single entry parsed out of an RSS or Atom document.
// Items are transient: produced per parse, never persisted.
type FeedItem struct {
	Title       string
	Link        string
	GUID        string
	PublishedAt time.Time
	Content     string // content:encoded (RSS) or <content> (Atom)
	Snippet     string // description or summary
	Categories  []string
}

// NormalizedArticle is the flattened payload posted to the ingest sink.
// URL and Title are non-empty and URL is an absolute http(s) URL by the
// time one of these is built.
type NormalizedArticle struct {
	URL            string    `json:"url"`
	Title          string    `json:"title"`
	SourceID       int64     `json:"sourceId"`
	SourceName     string    `json:"sourceName"`
	SourceURL      string    `json:"sourceUrl"`
	SourceType     string    `json:"sourceType"`
	SourceCategory string    `json:"sourceCategory"`
	SourceLanguage string    `json:"sourceLanguage"`
	PublishedAt    time.Time `json:"publishedAt"`
	CrawledAt      time.Time `json:"crawledAt"`
	Summary        *string   `json:"summary"`
	OneLine        *string   `json:"oneLine"`
	Content        string    `json:"content"`
	ContentFormat  string    `json:"contentFormat"`
	Category       *string   `json:"category"`
	Tags           []string  `json:"tags"`
	Importance     int       `json:"importance"`
	Sentiment      string    `json:"sentiment"`
	Language       string    `json:"language"`
}
