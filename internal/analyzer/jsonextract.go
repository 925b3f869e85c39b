package analyzer

import (
	"encoding/json"
	"fmt"
)

// extractJSONBlock finds the first balanced {...} block in free text.
// Providers wrap their JSON in prose and markdown fences; this scanner is
// string- and escape-aware so braces inside values don't break matching.
func extractJSONBlock(s string) (string, bool) {
	start := -1
	depth := 0
	inString := false
	escaped := false

	for i, r := range s {
		if start == -1 {
			if r == '{' {
				start = i
				depth = 1
			}
			continue
		}

		if escaped {
			escaped = false
			continue
		}
		switch r {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return s[start : i+1], true
				}
			}
		}
	}
	return "", false
}

// parseProviderResponse pulls the JSON block out of a provider's text
// response and decodes it into loosely typed fields for the sanitizer.
func parseProviderResponse(text string) (map[string]any, error) {
	block, ok := extractJSONBlock(text)
	if !ok {
		return nil, fmt.Errorf("no JSON block in response")
	}

	var fields map[string]any
	if err := json.Unmarshal([]byte(block), &fields); err != nil {
		return nil, fmt.Errorf("decoding response JSON: %w", err)
	}
	return fields, nil
}
