// Package anthropic adapts the Anthropic Messages API to llm.Engine.
package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/yungbote/amicus-backend/internal/pkg/logger"
	"github.com/yungbote/amicus-backend/internal/platform/llm"
	"github.com/yungbote/amicus-backend/internal/utils"
)

const (
	provider         = llm.ProviderAnthropic
	apiVersion       = "2023-06-01"
	defaultMaxTokens = 16000
	jsonInstruction  = "Respond with a single JSON object and nothing else."
)

type Config struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
	Timeout   time.Duration
}

func ConfigFromEnv(log *logger.Logger) Config {
	return Config{
		APIKey:    utils.GetEnv("ANTHROPIC_API_KEY", "", log),
		BaseURL:   utils.GetEnv("ANTHROPIC_BASE_URL", "https://api.anthropic.com/v1", log),
		Model:     utils.GetEnv("ANTHROPIC_MODEL", "claude-sonnet-4-5", log),
		MaxTokens: utils.GetEnvAsInt("ANTHROPIC_MAX_TOKENS", defaultMaxTokens, log),
		Timeout:   utils.GetEnvAsSeconds("LLM_TIMEOUT_SECONDS", 600*time.Second, log),
	}
}

type Client struct {
	log        *logger.Logger
	cfg        Config
	baseURL    string
	httpClient *http.Client
}

func New(cfg Config, log *logger.Logger) *Client {
	return NewWithHTTPClient(cfg, log, nil)
}

func NewWithHTTPClient(cfg Config, log *logger.Logger, httpClient *http.Client) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 600 * time.Second
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		log:        log.With("client", "Anthropic"),
		cfg:        cfg,
		baseURL:    strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		httpClient: httpClient,
	}
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesRequest struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	System      string    `json:"system,omitempty"`
	Messages    []message `json:"messages"`
	Temperature *float64  `json:"temperature,omitempty"`
	Stream      bool      `json:"stream,omitempty"`
}

type usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type messagesResponse struct {
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      usage  `json:"usage"`
}

type errorEnvelope struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) buildRequest(req llm.Request, stream bool) messagesRequest {
	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = c.cfg.Model
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.cfg.MaxTokens
	}
	system := strings.TrimSpace(req.System)
	if req.JSON {
		if system != "" {
			system += "\n\n"
		}
		system += jsonInstruction
	}
	return messagesRequest{
		Model:       model,
		MaxTokens:   maxTokens,
		System:      system,
		Messages:    []message{{Role: "user", Content: req.User}},
		Temperature: req.Temperature,
		Stream:      stream,
	}
}

func (c *Client) Generate(ctx context.Context, req llm.Request) (llm.Response, error) {
	if c.cfg.APIKey == "" {
		return llm.Response{}, llm.MissingKey(provider, "ANTHROPIC_API_KEY")
	}
	body := c.buildRequest(req, false)
	rc, err := c.post(ctx, body)
	if err != nil {
		return llm.Response{}, err
	}
	defer rc.Close()

	var resp messagesResponse
	if err := json.NewDecoder(rc).Decode(&resp); err != nil {
		return llm.Response{}, &llm.Error{Provider: provider, Kind: llm.KindUpstream, Message: "decode response", Err: err}
	}
	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if strings.TrimSpace(text.String()) == "" {
		return llm.Response{}, llm.Empty(provider)
	}
	model := resp.Model
	if model == "" {
		model = body.Model
	}
	return llm.Response{
		Text:         text.String(),
		Model:        model,
		Provider:     provider,
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
		FinishReason: resp.StopReason,
	}, nil
}

type streamEvent struct {
	Type    string `json:"type"`
	Message struct {
		Model string `json:"model"`
		Usage usage  `json:"usage"`
	} `json:"message"`
	Delta struct {
		Type       string `json:"type"`
		Text       string `json:"text"`
		StopReason string `json:"stop_reason"`
	} `json:"delta"`
	Usage usage `json:"usage"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) Stream(ctx context.Context, req llm.Request, onDelta func(delta string)) (llm.Response, error) {
	if c.cfg.APIKey == "" {
		return llm.Response{}, llm.MissingKey(provider, "ANTHROPIC_API_KEY")
	}
	body := c.buildRequest(req, true)
	rc, err := c.post(ctx, body)
	if err != nil {
		return llm.Response{}, err
	}
	defer rc.Close()

	out := llm.Response{Model: body.Model, Provider: provider}
	var full strings.Builder
	err = llm.ReadSSE(rc, func(event string, data string) error {
		var ev streamEvent
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			return nil
		}
		typ := ev.Type
		if typ == "" {
			typ = event
		}
		switch typ {
		case "message_start":
			if ev.Message.Model != "" {
				out.Model = ev.Message.Model
			}
			out.InputTokens = ev.Message.Usage.InputTokens
		case "content_block_delta":
			if ev.Delta.Type == "text_delta" && ev.Delta.Text != "" {
				full.WriteString(ev.Delta.Text)
				if onDelta != nil {
					onDelta(ev.Delta.Text)
				}
			}
		case "message_delta":
			if ev.Delta.StopReason != "" {
				out.FinishReason = ev.Delta.StopReason
			}
			if ev.Usage.OutputTokens > 0 {
				out.OutputTokens = ev.Usage.OutputTokens
			}
		case "error":
			kind := llm.KindUpstream
			if ev.Error.Type == "rate_limit_error" {
				kind = llm.KindRateLimit
			}
			return llm.NewError(provider, kind, ev.Error.Type+": "+ev.Error.Message)
		}
		return nil
	})
	if err != nil {
		return llm.Response{}, llm.Classify(provider, err)
	}
	out.Text = full.String()
	if strings.TrimSpace(out.Text) == "" {
		return llm.Response{}, llm.Empty(provider)
	}
	return out, nil
}

func (c *Client) post(ctx context.Context, body messagesRequest) (io.ReadCloser, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, &llm.Error{Provider: provider, Kind: llm.KindInvalidRequest, Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages", &buf)
	if err != nil {
		return nil, &llm.Error{Provider: provider, Kind: llm.KindInvalidRequest, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.cfg.APIKey)
	req.Header.Set("anthropic-version", apiVersion)
	if body.Stream {
		req.Header.Set("Accept", "text/event-stream")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, llm.Classify(provider, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		_ = resp.Body.Close()
		msg := string(raw)
		var env errorEnvelope
		if json.Unmarshal(raw, &env) == nil && env.Error.Message != "" {
			msg = env.Error.Type + ": " + env.Error.Message
		}
		return nil, llm.FromStatus(provider, resp.StatusCode, msg)
	}
	return resp.Body, nil
}

var _ llm.Engine = (*Client)(nil)
