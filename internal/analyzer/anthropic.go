package analyzer

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"aipulse/crawler/internal/models"
)

// AnthropicAnalyzer calls the Anthropic Messages API.
type AnthropicAnalyzer struct {
	client anthropic.Client
	model  string
}

// NewAnthropic creates the Anthropic-backed strategy.
func NewAnthropic(apiKey, model string) *AnthropicAnalyzer {
	return &AnthropicAnalyzer{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

func (a *AnthropicAnalyzer) Name() string { return "anthropic" }

// Analyze sends the shared prompt and sanitizes whatever comes back. Any
// transport, API, or parse failure is returned so the cascade can fall
// through to the next strategy.
func (a *AnthropicAnalyzer) Analyze(ctx context.Context, in Input) (models.Analysis, error) {
	callCtx, cancel := context.WithTimeout(ctx, providerTimeout)
	defer cancel()

	msg, err := a.client.Messages.New(callCtx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: 1024,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(buildPrompt(in))),
		},
	})
	if err != nil {
		return models.Analysis{}, fmt.Errorf("anthropic call: %w", err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}

	fields, err := parseProviderResponse(sb.String())
	if err != nil {
		return models.Analysis{}, fmt.Errorf("anthropic response: %w", err)
	}
	return sanitize(fields, in.Language), nil
}
