package models

// Sentiments recognized by the pipeline.
const (
	SentimentPositive = "positive"
	SentimentNeutral  = "neutral"
	SentimentNegative = "negative"
)

// Languages recognized by the pipeline.
const (
	LanguageEnglish = "en"
	LanguageChinese = "zh"
)

// Analysis is the classification result attached to an article.
// Fields are sanitized before an Analysis leaves the analyzer: summary
// is capped at 500 chars, oneLine at 140, category at 50, tags at 10
// entries of 50 chars each (deduplicated case-insensitively), importance
// is clamped to [0,100], and sentiment/language are restricted to the
// constants above.
type Analysis struct {
	Summary    *string  `json:"summary"`
	OneLine    *string  `json:"oneLine"`
	Category   *string  `json:"category"`
	Tags       []string `json:"tags"`
	Importance int      `json:"importance"`
	Sentiment  string   `json:"sentiment"`
	Language   string   `json:"language"`
}
