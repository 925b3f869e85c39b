// Package analyzer classifies and scores article content. It cascades
// through configured AI providers and always lands on a heuristic
// classifier, so every article gets a sanitized Analysis no matter what
// the providers return.
package analyzer

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"aipulse/crawler/internal/config"
	"aipulse/crawler/internal/models"
)

const (
	providerTimeout  = 30 * time.Second
	maxPromptContent = 12000
)

// Input carries everything an analyzer strategy needs about one article.
type Input struct {
	Title          string
	Content        string
	SourceName     string
	SourceCategory string
	Language       string
}

// Analyzer is one strategy in the cascade. Implementations return a raw
// result that the cascade sanitizes; errors make the cascade move on to
// the next strategy.
type Analyzer interface {
	Name() string
	Analyze(ctx context.Context, in Input) (models.Analysis, error)
}

// Cascade runs an ordered list of strategies and takes the first success.
// The final strategy is always the heuristic analyzer, which cannot fail,
// so Analyze always produces a result.
type Cascade struct {
	chain []Analyzer
}

// NewCascade builds the provider chain from configuration. Providers are
// included only when their credentials are configured; the heuristic
// analyzer is always appended last.
func NewCascade(cfg *config.Config) *Cascade {
	var chain []Analyzer
	if cfg.AnthropicAPIKey != "" {
		chain = append(chain, NewAnthropic(cfg.AnthropicAPIKey, cfg.AnthropicModel))
	}
	if cfg.OpenAIAPIKey != "" {
		chain = append(chain, NewOpenAI(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.OpenAIModel))
	}
	chain = append(chain, Heuristic{})
	return &Cascade{chain: chain}
}

// NewCascadeWith builds a cascade from an explicit strategy list.
func NewCascadeWith(chain ...Analyzer) *Cascade {
	return &Cascade{chain: chain}
}

// Analyze runs the cascade. Provider failures are logged and recovered by
// trying the next strategy; there is no retry within a single strategy.
func (c *Cascade) Analyze(ctx context.Context, in Input) models.Analysis {
	if in.Language == "" {
		in.Language = DetectLanguage(in.Title, in.Content)
	}

	for _, a := range c.chain {
		result, err := a.Analyze(ctx, in)
		if err != nil {
			log.Warn().
				Err(err).
				Str("analyzer", a.Name()).
				Str("title", in.Title).
				Msg("Analyzer failed, falling through")
			continue
		}
		return result
	}

	// Unreachable with the heuristic in the chain, but never crash: hand
	// back a fully defaulted result.
	return sanitize(map[string]any{}, in.Language)
}
