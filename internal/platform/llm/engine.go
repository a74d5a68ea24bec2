// Package llm defines the provider-neutral contract for hosted model calls.
// Provider adapters live in subpackages; router picks one per model id.
package llm

import (
	"context"
	"strings"
)

type Request struct {
	// Model is a provider model id, optionally prefixed "provider:".
	Model       string
	System      string
	User        string
	MaxTokens   int
	Temperature *float64
	// JSON asks the provider for a single JSON object when it supports a
	// native mode; prompts should still demand JSON explicitly.
	JSON bool
}

type Response struct {
	Text         string
	Model        string
	Provider     string
	InputTokens  int
	OutputTokens int
	FinishReason string
}

// HitTokenLimit reports whether a provider finish reason means the output
// token limit stopped generation.
func (r Response) HitTokenLimit() bool {
	switch strings.ToLower(strings.TrimSpace(r.FinishReason)) {
	case "length", "max_tokens", "max_output_tokens":
		return true
	}
	return false
}

// Engine sends one prompt and returns the complete text. Adapters never retry.
type Engine interface {
	Generate(ctx context.Context, req Request) (Response, error)
	// Stream forwards text deltas as they arrive and returns the assembled
	// response. onDelta may be nil.
	Stream(ctx context.Context, req Request, onDelta func(delta string)) (Response, error)
}

// SplitModel separates an explicit "provider:model" id. Ids without a known
// prefix are returned unchanged with an empty provider.
func SplitModel(model string) (provider string, id string) {
	model = strings.TrimSpace(model)
	if i := strings.Index(model, ":"); i > 0 {
		p := strings.ToLower(model[:i])
		switch p {
		case ProviderOpenAI, ProviderAnthropic, ProviderGemini, ProviderPerplexity, ProviderMock:
			return p, strings.TrimSpace(model[i+1:])
		}
	}
	return "", model
}

const (
	ProviderOpenAI     = "openai"
	ProviderAnthropic  = "anthropic"
	ProviderGemini     = "gemini"
	ProviderPerplexity = "perplexity"
	ProviderMock       = "mock"
)

// EstimateTokens is a rough four-characters-per-token count used when a
// provider omits usage.
func EstimateTokens(text string) int {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0
	}
	n := len([]rune(text))
	return (n + 3) / 4
}

func FloatPtr(v float64) *float64 { return &v }
