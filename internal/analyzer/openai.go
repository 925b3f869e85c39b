package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"aipulse/crawler/internal/models"
)

// OpenAIAnalyzer calls any OpenAI-compatible chat-completions endpoint.
// The base URL is configurable so DeepSeek and other compatible providers
// slot in without code changes.
type OpenAIAnalyzer struct {
	client  *http.Client
	baseURL string
	apiKey  string
	model   string
}

// NewOpenAI creates the OpenAI-compatible strategy.
func NewOpenAI(baseURL, apiKey, model string) *OpenAIAnalyzer {
	return &OpenAIAnalyzer{
		client:  &http.Client{Timeout: providerTimeout},
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
	}
}

func (o *OpenAIAnalyzer) Name() string { return "openai" }

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Analyze posts the shared prompt to /chat/completions and sanitizes the
// result. Failures bubble up so the cascade can fall through.
func (o *OpenAIAnalyzer) Analyze(ctx context.Context, in Input) (models.Analysis, error) {
	payload, err := json.Marshal(chatRequest{
		Model:       o.model,
		Messages:    []chatMessage{{Role: "user", Content: buildPrompt(in)}},
		Temperature: 0.2,
	})
	if err != nil {
		return models.Analysis{}, fmt.Errorf("encoding request: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, providerTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, o.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return models.Analysis{}, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.client.Do(req)
	if err != nil {
		return models.Analysis{}, fmt.Errorf("openai call: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return models.Analysis{}, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return models.Analysis{}, fmt.Errorf("openai call: status %d: %s", resp.StatusCode, firstLine(body))
	}

	var decoded chatResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return models.Analysis{}, fmt.Errorf("decoding response: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return models.Analysis{}, fmt.Errorf("empty choices in response")
	}

	fields, err := parseProviderResponse(decoded.Choices[0].Message.Content)
	if err != nil {
		return models.Analysis{}, fmt.Errorf("openai response: %w", err)
	}
	return sanitize(fields, in.Language), nil
}

func firstLine(b []byte) string {
	s := strings.TrimSpace(string(b))
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
