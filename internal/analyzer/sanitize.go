package analyzer

import (
	"encoding/json"
	"strings"
	"unicode/utf8"

	"aipulse/crawler/internal/models"
)

const (
	maxSummaryLen  = 500
	maxOneLineLen  = 140
	maxCategoryLen = 50
	maxTagLen      = 50
	maxTags        = 10

	defaultImportance = 50
)

// sanitize converts a loosely typed provider result into an Analysis that
// honors every invariant: length caps, importance clamped to [0,100], tag
// dedup and cap, and enum restriction on sentiment and language. Malformed
// or missing fields fall back to safe defaults.
func sanitize(fields map[string]any, fallbackLang string) models.Analysis {
	a := models.Analysis{
		Summary:    capString(stringField(fields, "summary"), maxSummaryLen),
		OneLine:    capString(stringField(fields, "oneLine"), maxOneLineLen),
		Category:   capString(stringField(fields, "category"), maxCategoryLen),
		Tags:       sanitizeTags(fields["tags"]),
		Importance: clampImportance(fields["importance"]),
		Sentiment:  sanitizeSentiment(stringField(fields, "sentiment")),
		Language:   sanitizeLanguage(stringField(fields, "language"), fallbackLang),
	}
	return a
}

func stringField(fields map[string]any, key string) string {
	v, ok := fields[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}

// capString truncates to a rune budget; empty strings become nil.
func capString(s string, max int) *string {
	if s == "" {
		return nil
	}
	if utf8.RuneCountInString(s) > max {
		runes := []rune(s)
		s = string(runes[:max])
	}
	return &s
}

func sanitizeTags(raw any) []string {
	list, ok := raw.([]any)
	if !ok {
		return nil
	}

	seen := make(map[string]struct{})
	var tags []string
	for _, entry := range list {
		tag, ok := entry.(string)
		if !ok {
			continue
		}
		tag = strings.TrimSpace(tag)
		if tag == "" || utf8.RuneCountInString(tag) > maxTagLen {
			continue
		}
		key := strings.ToLower(tag)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		tags = append(tags, tag)
		if len(tags) >= maxTags {
			break
		}
	}
	return tags
}

func clampImportance(raw any) int {
	importance := defaultImportance
	switch v := raw.(type) {
	case float64:
		importance = int(v)
	case int:
		importance = v
	case json.Number:
		if n, err := v.Int64(); err == nil {
			importance = int(n)
		}
	case string:
		var f float64
		if err := json.Unmarshal([]byte(strings.TrimSpace(v)), &f); err == nil {
			importance = int(f)
		}
	}

	if importance < 0 {
		return 0
	}
	if importance > 100 {
		return 100
	}
	return importance
}

func sanitizeSentiment(s string) string {
	switch strings.ToLower(s) {
	case models.SentimentPositive:
		return models.SentimentPositive
	case models.SentimentNegative:
		return models.SentimentNegative
	default:
		return models.SentimentNeutral
	}
}

func sanitizeLanguage(s, fallback string) string {
	switch strings.ToLower(s) {
	case models.LanguageEnglish:
		return models.LanguageEnglish
	case models.LanguageChinese:
		return models.LanguageChinese
	}
	if fallback == models.LanguageChinese {
		return models.LanguageChinese
	}
	return models.LanguageEnglish
}
