package analyzer

import (
	"context"
	"regexp"
	"strings"
	"unicode/utf8"

	"aipulse/crawler/internal/models"
)

// Heuristic is the rule-based fallback classifier. It makes no network
// calls and never fails, guaranteeing an Analysis even with no provider
// configured.
type Heuristic struct{}

func (Heuristic) Name() string { return "heuristic" }

const (
	heuristicSummaryLen = 600
	heuristicMaxTags    = 8
	minTagLen           = 3
	maxHeuristicTagLen  = 24

	baseImportance            = 50
	bonusCategoryMatch        = 10
	bonusLabMention           = 10
	bonusModelFamilyMention   = 8
	bonusLaunchVerb           = 6
	bonusSecurityIncidentWord = 5
)

// Ordered category checks over the title; first match wins.
var categoryChecks = []struct {
	category string
	re       *regexp.Regexp
}{
	{"release", regexp.MustCompile(`(?i)\b(releas\w*|launch\w*|unveil\w*|introduc\w*|announc\w*|ship(s|ped|ping)?|roll(s|ed|ing)? out|now available|general availability|ga\b)`)},
	{"research", regexp.MustCompile(`(?i)\b(research|paper|study|benchmark\w*|dataset|arxiv|preprint|findings?)\b`)},
	{"security", regexp.MustCompile(`(?i)\b(security|vulnerab\w*|exploit\w*|breach\w*|cve-\d+|jailbreak\w*|malware|phishing)\b`)},
	{"business", regexp.MustCompile(`(?i)\b(funding|raises?|raised|ipo|acquisition|acquir\w*|merger|valuation|invest\w*|revenue|layoffs?)\b`)},
	{"policy", regexp.MustCompile(`(?i)\b(policy|regulat\w*|legislation|lawsuit|law|compliance|governance|ban(s|ned)?|executive order|antitrust)\b`)},
}

var (
	labMentionRe   = regexp.MustCompile(`(?i)\b(openai|anthropic|deepmind|google|meta|microsoft|mistral|nvidia|xai|hugging ?face|baidu|alibaba|tencent|bytedance|stability ai)\b`)
	modelFamilyRe  = regexp.MustCompile(`(?i)\b(gpt-?[0-9o]*|claude|gemini|llama|qwen|deepseek|grok|mixtral|stable diffusion|sora|whisper|dall-?e)\b`)
	launchVerbRe   = regexp.MustCompile(`(?i)\b(launch\w*|releas\w*|unveil\w*|announc\w*|introduc\w*|ship(s|ped|ping)?|debut\w*)\b`)
	securityWordRe = regexp.MustCompile(`(?i)\b(breach\w*|exploit\w*|vulnerab\w*|leak\w*|attack\w*|compromis\w*)\b`)
)

// Analyze classifies by keyword rules over the title and first chunk of
// the content. Sentiment stays neutral; rule signals are not strong enough
// to call polarity.
func (Heuristic) Analyze(_ context.Context, in Input) (models.Analysis, error) {
	fields := map[string]any{
		"summary":    firstRunes(in.Content, heuristicSummaryLen),
		"oneLine":    firstRunes(in.Title, maxOneLineLen),
		"category":   classifyTitle(in.Title),
		"tags":       titleTags(in.Title),
		"importance": scoreImportance(in),
		"sentiment":  models.SentimentNeutral,
		"language":   in.Language,
	}
	return sanitize(fields, in.Language), nil
}

func firstRunes(s string, n int) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}

func classifyTitle(title string) string {
	for _, check := range categoryChecks {
		if check.re.MatchString(title) {
			return check.category
		}
	}
	return "news"
}

// titleTags derives tags from the cleaned title: deduplicated lowercase
// tokens between 3 and 24 runes, capped at 8.
func titleTags(title string) []any {
	cleaned := nonAlnumRe.ReplaceAllString(strings.ToLower(title), " ")

	seen := make(map[string]struct{})
	var tags []any
	for _, token := range strings.Fields(cleaned) {
		n := utf8.RuneCountInString(token)
		if n < minTagLen || n > maxHeuristicTagLen {
			continue
		}
		if _, dup := seen[token]; dup {
			continue
		}
		seen[token] = struct{}{}
		tags = append(tags, token)
		if len(tags) >= heuristicMaxTags {
			break
		}
	}
	return tags
}

var nonAlnumRe = regexp.MustCompile(`[^\p{L}\p{N}\s]+`)

func scoreImportance(in Input) int {
	score := baseImportance
	title := in.Title

	if in.SourceCategory != "" && strings.EqualFold(classifyTitle(title), in.SourceCategory) {
		score += bonusCategoryMatch
	}
	if labMentionRe.MatchString(title) {
		score += bonusLabMention
	}
	if modelFamilyRe.MatchString(title) {
		score += bonusModelFamilyMention
	}
	if launchVerbRe.MatchString(title) {
		score += bonusLaunchVerb
	}
	if securityWordRe.MatchString(title) {
		score += bonusSecurityIncidentWord
	}
	return score
}
