// Package oaichat adapts OpenAI-compatible chat completion endpoints, such as
// Perplexity's, to llm.Engine.
package oaichat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/yungbote/amicus-backend/internal/pkg/logger"
	"github.com/yungbote/amicus-backend/internal/platform/llm"
	"github.com/yungbote/amicus-backend/internal/utils"
)

type Config struct {
	// Provider names the upstream in errors and metrics.
	Provider            string
	APIKey              string
	KeyEnv              string
	BaseURL             string
	ChatCompletionsPath string
	Model               string
	Timeout             time.Duration
	// JSONMode sends response_format json_object when a request asks for JSON.
	JSONMode bool
}

// PerplexityConfigFromEnv configures the Perplexity Sonar endpoint.
func PerplexityConfigFromEnv(log *logger.Logger) Config {
	return Config{
		Provider:            llm.ProviderPerplexity,
		APIKey:              utils.GetEnv("PERPLEXITY_API_KEY", "", log),
		KeyEnv:              "PERPLEXITY_API_KEY",
		BaseURL:             utils.GetEnv("PERPLEXITY_BASE_URL", "https://api.perplexity.ai", log),
		ChatCompletionsPath: "/chat/completions",
		Model:               utils.GetEnv("PERPLEXITY_MODEL", "sonar-pro", log),
		Timeout:             utils.GetEnvAsSeconds("LLM_TIMEOUT_SECONDS", 600*time.Second, log),
	}
}

type Engine struct {
	log        *logger.Logger
	cfg        Config
	baseURL    string
	httpClient *http.Client
}

func New(cfg Config, log *logger.Logger) (*Engine, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("oaichat: base_url required")
	}
	if strings.TrimSpace(cfg.Provider) == "" {
		cfg.Provider = "oaichat"
	}
	if strings.TrimSpace(cfg.ChatCompletionsPath) == "" {
		cfg.ChatCompletionsPath = "/v1/chat/completions"
	}
	if cfg.KeyEnv == "" {
		cfg.KeyEnv = "API key"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 600 * time.Second
	}

	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &Engine{
		log:        log.With("client", cfg.Provider),
		cfg:        cfg,
		baseURL:    baseURL,
		httpClient: &http.Client{Transport: tr, Timeout: cfg.Timeout},
	}, nil
}

// NewWithHTTPClient is intended for tests; it avoids network access by using a custom RoundTripper.
func NewWithHTTPClient(cfg Config, log *logger.Logger, httpClient *http.Client) (*Engine, error) {
	e, err := New(cfg, log)
	if err != nil {
		return nil, err
	}
	if httpClient != nil {
		e.httpClient = httpClient
	}
	return e, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	Temperature    *float64       `json:"temperature,omitempty"`
	MaxTokens      int            `json:"max_tokens,omitempty"`
	Stream         bool           `json:"stream,omitempty"`
	ResponseFormat map[string]any `json:"response_format,omitempty"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

type chatCompletionResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content,omitempty"`
		} `json:"message,omitempty"`
		Text         string `json:"text,omitempty"`
		FinishReason string `json:"finish_reason,omitempty"`
	} `json:"choices"`
	Usage *chatUsage `json:"usage,omitempty"`
}

type chatCompletionStreamChunk struct {
	Model   string `json:"model"`
	Choices []struct {
		Delta struct {
			Content string `json:"content,omitempty"`
		} `json:"delta,omitempty"`
		Text         string `json:"text,omitempty"`
		FinishReason string `json:"finish_reason,omitempty"`
	} `json:"choices"`
	Usage *chatUsage `json:"usage,omitempty"`
	Error any        `json:"error,omitempty"`
}

func (e *Engine) buildRequest(req llm.Request, stream bool) chatCompletionRequest {
	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = e.cfg.Model
	}
	out := chatCompletionRequest{
		Model:       model,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Stream:      stream,
	}
	if s := strings.TrimSpace(req.System); s != "" {
		out.Messages = append(out.Messages, chatMessage{Role: "system", Content: s})
	}
	out.Messages = append(out.Messages, chatMessage{Role: "user", Content: req.User})
	if req.JSON && e.cfg.JSONMode {
		out.ResponseFormat = map[string]any{"type": "json_object"}
	}
	return out
}

func extractChatText(resp chatCompletionResponse) (string, string) {
	for _, c := range resp.Choices {
		if strings.TrimSpace(c.Message.Content) != "" {
			return c.Message.Content, c.FinishReason
		}
		if strings.TrimSpace(c.Text) != "" {
			return c.Text, c.FinishReason
		}
	}
	return "", ""
}

func (e *Engine) Generate(ctx context.Context, req llm.Request) (llm.Response, error) {
	if e.cfg.APIKey == "" {
		return llm.Response{}, llm.MissingKey(e.cfg.Provider, e.cfg.KeyEnv)
	}
	body := e.buildRequest(req, false)
	rc, err := e.post(ctx, body, "application/json")
	if err != nil {
		return llm.Response{}, err
	}
	defer rc.Close()

	var resp chatCompletionResponse
	if err := json.NewDecoder(rc).Decode(&resp); err != nil {
		return llm.Response{}, &llm.Error{Provider: e.cfg.Provider, Kind: llm.KindUpstream, Message: "decode response", Err: err}
	}
	text, finish := extractChatText(resp)
	if strings.TrimSpace(text) == "" {
		return llm.Response{}, llm.Empty(e.cfg.Provider)
	}
	out := llm.Response{Text: text, Model: body.Model, Provider: e.cfg.Provider, FinishReason: finish}
	if resp.Model != "" {
		out.Model = resp.Model
	}
	if resp.Usage != nil {
		out.InputTokens = resp.Usage.PromptTokens
		out.OutputTokens = resp.Usage.CompletionTokens
	}
	return out, nil
}

func (e *Engine) Stream(ctx context.Context, req llm.Request, onDelta func(delta string)) (llm.Response, error) {
	if e.cfg.APIKey == "" {
		return llm.Response{}, llm.MissingKey(e.cfg.Provider, e.cfg.KeyEnv)
	}
	body := e.buildRequest(req, true)
	rc, err := e.post(ctx, body, "text/event-stream")
	if err != nil {
		return llm.Response{}, err
	}
	defer rc.Close()

	out := llm.Response{Model: body.Model, Provider: e.cfg.Provider}
	var full strings.Builder
	err = llm.ReadSSE(rc, func(_ string, data string) error {
		data = strings.TrimSpace(data)
		if data == "" || data == "[DONE]" {
			return nil
		}
		var chunk chatCompletionStreamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			return nil
		}
		if chunk.Error != nil {
			b, _ := json.Marshal(chunk.Error)
			return llm.NewError(e.cfg.Provider, llm.KindUpstream, "stream error: "+string(b))
		}
		if chunk.Model != "" {
			out.Model = chunk.Model
		}
		if chunk.Usage != nil {
			out.InputTokens = chunk.Usage.PromptTokens
			out.OutputTokens = chunk.Usage.CompletionTokens
		}
		for _, c := range chunk.Choices {
			if c.FinishReason != "" {
				out.FinishReason = c.FinishReason
			}
			delta := c.Delta.Content
			if delta == "" {
				delta = c.Text
			}
			if delta == "" {
				continue
			}
			full.WriteString(delta)
			if onDelta != nil {
				onDelta(delta)
			}
		}
		return nil
	})
	if err != nil {
		return llm.Response{}, llm.Classify(e.cfg.Provider, err)
	}
	out.Text = full.String()
	if strings.TrimSpace(out.Text) == "" {
		return llm.Response{}, llm.Empty(e.cfg.Provider)
	}
	return out, nil
}

func (e *Engine) post(ctx context.Context, body chatCompletionRequest, accept string) (io.ReadCloser, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, &llm.Error{Provider: e.cfg.Provider, Kind: llm.KindInvalidRequest, Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+e.cfg.ChatCompletionsPath, &buf)
	if err != nil {
		return nil, &llm.Error{Provider: e.cfg.Provider, Kind: llm.KindInvalidRequest, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", accept)
	req.Header.Set("Authorization", "Bearer "+e.cfg.APIKey)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, llm.Classify(e.cfg.Provider, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		_ = resp.Body.Close()
		return nil, llm.FromStatus(e.cfg.Provider, resp.StatusCode, string(raw))
	}
	return resp.Body, nil
}

var _ llm.Engine = (*Engine)(nil)
