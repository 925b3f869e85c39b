package analyzer

import (
	"unicode"

	"aipulse/crawler/internal/models"
)

const (
	languageSampleRunes = 4000
	cjkDensityThreshold = 0.10
)

// DetectLanguage classifies title+content as zh when CJK ideographs make
// up more than 10% of the first 4,000 characters, else en.
func DetectLanguage(title, content string) string {
	sample := title + " " + content

	var total, cjk int
	for _, r := range sample {
		if total >= languageSampleRunes {
			break
		}
		if unicode.IsSpace(r) {
			continue
		}
		total++
		if unicode.Is(unicode.Han, r) {
			cjk++
		}
	}

	if total > 0 && float64(cjk)/float64(total) > cjkDensityThreshold {
		return models.LanguageChinese
	}
	return models.LanguageEnglish
}
