package analyzer

import (
	"fmt"
	"unicode/utf8"
)

// buildPrompt renders the shared analysis prompt. Content is truncated to
// keep provider calls inside token budgets.
func buildPrompt(in Input) string {
	content := in.Content
	if utf8.RuneCountInString(content) > maxPromptContent {
		runes := []rune(content)
		content = string(runes[:maxPromptContent])
	}

	return fmt.Sprintf(`You are a news analyst. Analyze the article below and answer with a single JSON object, no other text:
{"summary": "<=500 char summary", "oneLine": "<=140 char one-liner", "category": "one of release|research|security|business|policy|news", "tags": ["up to 10 short tags"], "importance": <0-100 integer>, "sentiment": "positive|neutral|negative", "language": "en|zh"}

Write summary and oneLine in language %q.

Source: %s (%s)
Title: %s

Content:
%s`, in.Language, in.SourceName, in.SourceCategory, in.Title, content)
}
