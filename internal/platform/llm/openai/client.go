// Package openai adapts the OpenAI Responses API to llm.Engine.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/yungbote/amicus-backend/internal/pkg/logger"
	"github.com/yungbote/amicus-backend/internal/platform/llm"
	"github.com/yungbote/amicus-backend/internal/utils"
)

const provider = llm.ProviderOpenAI

type Config struct {
	APIKey       string
	BaseURL      string
	Model        string
	Timeout      time.Duration
	Temperature  *float64
	NoTempModels string
}

func ConfigFromEnv(log *logger.Logger) Config {
	cfg := Config{
		APIKey:       utils.GetEnv("OPENAI_API_KEY", "", log),
		BaseURL:      utils.GetEnv("OPENAI_BASE_URL", "https://api.openai.com", log),
		Model:        utils.GetEnv("OPENAI_MODEL", "gpt-4.1", log),
		Timeout:      utils.GetEnvAsSeconds("LLM_TIMEOUT_SECONDS", 600*time.Second, log),
		NoTempModels: utils.GetEnv("OPENAI_NO_TEMPERATURE_MODELS", "o1*,o3*,o4*,gpt-5*", log),
	}
	if !utils.GetEnvAsBool("OPENAI_DISABLE_TEMPERATURE", false, log) {
		t := utils.GetEnvAsFloat("OPENAI_TEMPERATURE", 0.3, log)
		cfg.Temperature = &t
	}
	return cfg
}

type Client struct {
	log        *logger.Logger
	cfg        Config
	baseURL    string
	httpClient *http.Client

	noTempModels   map[string]bool
	noTempPrefixes []string

	// Models that rejected temperature at runtime.
	noTempMu   sync.RWMutex
	noTempSeen map[string]bool
}

func New(cfg Config, log *logger.Logger) *Client {
	return NewWithHTTPClient(cfg, log, nil)
}

// NewWithHTTPClient is intended for tests; it avoids network access by using a custom RoundTripper.
func NewWithHTTPClient(cfg Config, log *logger.Logger, httpClient *http.Client) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 600 * time.Second
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	m, p := parseNoTempModelRules(cfg.NoTempModels)
	return &Client{
		log:            log.With("client", "OpenAI"),
		cfg:            cfg,
		baseURL:        strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		httpClient:     httpClient,
		noTempModels:   m,
		noTempPrefixes: p,
		noTempSeen:     map[string]bool{},
	}
}

type inputMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responsesRequest struct {
	Model           string         `json:"model"`
	Input           []inputMessage `json:"input"`
	Text            *textOptions   `json:"text,omitempty"`
	Temperature     *float64       `json:"temperature,omitempty"`
	MaxOutputTokens int            `json:"max_output_tokens,omitempty"`
	Stream          bool           `json:"stream,omitempty"`
}

type textOptions struct {
	Format map[string]any `json:"format,omitempty"`
}

type responsesResponse struct {
	Model  string `json:"model"`
	Status string `json:"status"`
	Output []struct {
		Type    string `json:"type"`
		Role    string `json:"role,omitempty"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text,omitempty"`
		} `json:"content,omitempty"`
	} `json:"output"`
	IncompleteDetails *struct {
		Reason string `json:"reason"`
	} `json:"incomplete_details,omitempty"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func extractOutputText(resp responsesResponse) string {
	var out strings.Builder
	for _, item := range resp.Output {
		if item.Type == "message" && item.Role == "assistant" {
			for _, c := range item.Content {
				if c.Type == "output_text" && c.Text != "" {
					out.WriteString(c.Text)
				}
			}
		}
	}
	return out.String()
}

func finishReason(resp responsesResponse) string {
	if resp.IncompleteDetails != nil && resp.IncompleteDetails.Reason != "" {
		return resp.IncompleteDetails.Reason
	}
	return resp.Status
}

func (c *Client) buildRequest(req llm.Request, stream bool) responsesRequest {
	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = c.cfg.Model
	}
	body := responsesRequest{
		Model:           model,
		MaxOutputTokens: req.MaxTokens,
		Stream:          stream,
	}
	if s := strings.TrimSpace(req.System); s != "" {
		body.Input = append(body.Input, inputMessage{Role: "system", Content: s})
	}
	body.Input = append(body.Input, inputMessage{Role: "user", Content: req.User})
	if req.JSON {
		body.Text = &textOptions{Format: map[string]any{"type": "json_object"}}
	}
	temp := req.Temperature
	if temp == nil {
		temp = c.cfg.Temperature
	}
	if temp != nil && !c.modelIsNoTemp(model) {
		body.Temperature = temp
	}
	return body
}

func (c *Client) Generate(ctx context.Context, req llm.Request) (llm.Response, error) {
	if c.cfg.APIKey == "" {
		return llm.Response{}, llm.MissingKey(provider, "OPENAI_API_KEY")
	}
	body := c.buildRequest(req, false)

	raw, err := c.post(ctx, body, "application/json")
	if err != nil && body.Temperature != nil && isUnsupportedTemperature(err) {
		c.noteNoTempModel(body.Model)
		body.Temperature = nil
		raw, err = c.post(ctx, body, "application/json")
	}
	if err != nil {
		return llm.Response{}, err
	}
	defer raw.Close()

	var resp responsesResponse
	if err := json.NewDecoder(raw).Decode(&resp); err != nil {
		return llm.Response{}, &llm.Error{Provider: provider, Kind: llm.KindUpstream, Message: "decode response", Err: err}
	}
	text := extractOutputText(resp)
	if strings.TrimSpace(text) == "" {
		return llm.Response{}, llm.Empty(provider)
	}
	return llm.Response{
		Text:         text,
		Model:        firstNonEmpty(resp.Model, body.Model),
		Provider:     provider,
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
		FinishReason: finishReason(resp),
	}, nil
}

// Stream reads output_text deltas from the Responses event stream.
func (c *Client) Stream(ctx context.Context, req llm.Request, onDelta func(delta string)) (llm.Response, error) {
	if c.cfg.APIKey == "" {
		return llm.Response{}, llm.MissingKey(provider, "OPENAI_API_KEY")
	}
	body := c.buildRequest(req, true)

	raw, err := c.post(ctx, body, "text/event-stream")
	if err != nil && body.Temperature != nil && isUnsupportedTemperature(err) {
		c.noteNoTempModel(body.Model)
		body.Temperature = nil
		raw, err = c.post(ctx, body, "text/event-stream")
	}
	if err != nil {
		return llm.Response{}, err
	}
	defer raw.Close()

	out := llm.Response{Model: body.Model, Provider: provider}
	var full strings.Builder
	err = llm.ReadSSE(raw, func(event string, data string) error {
		data = strings.TrimSpace(data)
		if data == "" || data == "[DONE]" {
			return nil
		}
		var obj struct {
			Type     string            `json:"type"`
			Delta    string            `json:"delta"`
			Error    json.RawMessage   `json:"error"`
			Response responsesResponse `json:"response"`
		}
		if err := json.Unmarshal([]byte(data), &obj); err != nil {
			return nil
		}
		evt := strings.TrimSpace(event)
		if obj.Type != "" {
			evt = obj.Type
		}
		switch {
		case strings.Contains(evt, "output_text.delta"):
			if obj.Delta == "" {
				return nil
			}
			full.WriteString(obj.Delta)
			if onDelta != nil {
				onDelta(obj.Delta)
			}
		case evt == "response.completed" || evt == "response.incomplete":
			out.InputTokens = obj.Response.Usage.InputTokens
			out.OutputTokens = obj.Response.Usage.OutputTokens
			out.FinishReason = finishReason(obj.Response)
			if obj.Response.Model != "" {
				out.Model = obj.Response.Model
			}
		case evt == "error" || evt == "response.failed":
			msg := string(obj.Error)
			if msg == "" {
				msg = data
			}
			return llm.NewError(provider, llm.KindUpstream, "stream error: "+msg)
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

// post returns the open body of a 2xx response.
func (c *Client) post(ctx context.Context, body responsesRequest, accept string) (io.ReadCloser, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, &llm.Error{Provider: provider, Kind: llm.KindInvalidRequest, Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/responses", &buf)
	if err != nil {
		return nil, &llm.Error{Provider: provider, Kind: llm.KindInvalidRequest, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", accept)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, llm.Classify(provider, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		_ = resp.Body.Close()
		return nil, llm.FromStatus(provider, resp.StatusCode, string(raw))
	}
	return resp.Body, nil
}

func normalizeModelKey(m string) string {
	return strings.ToLower(strings.TrimSpace(m))
}

// parseNoTempModelRules reads a comma-separated list; a "*" suffix marks a prefix rule.
func parseNoTempModelRules(raw string) (map[string]bool, []string) {
	m := map[string]bool{}
	var prefixes []string
	for _, part := range strings.Split(raw, ",") {
		s := normalizeModelKey(part)
		if s == "" {
			continue
		}
		if strings.HasSuffix(s, "*") {
			p := strings.TrimSpace(strings.TrimRight(strings.TrimSuffix(s, "*"), "-_./:"))
			if p != "" {
				prefixes = append(prefixes, p)
			}
			continue
		}
		m[s] = true
	}
	return m, prefixes
}

func (c *Client) modelIsNoTemp(model string) bool {
	m := normalizeModelKey(model)
	if m == "" {
		return false
	}
	if c.noTempModels[m] {
		return true
	}
	for _, p := range c.noTempPrefixes {
		if strings.HasPrefix(m, p) {
			return true
		}
	}
	c.noTempMu.RLock()
	defer c.noTempMu.RUnlock()
	return c.noTempSeen[m]
}

func (c *Client) noteNoTempModel(model string) {
	m := normalizeModelKey(model)
	if m == "" {
		return
	}
	c.noTempMu.Lock()
	c.noTempSeen[m] = true
	c.noTempMu.Unlock()
	c.log.Warn("model rejected temperature; omitting from now on", "model", m)
}

func isUnsupportedTemperature(err error) bool {
	if llm.KindOf(err) != llm.KindInvalidRequest {
		return false
	}
	msg := strings.ToLower(err.Error())
	if !strings.Contains(msg, "temperature") {
		return false
	}
	for _, s := range []string{"unsupported", "unknown parameter", "not supported", "does not support", "only the default"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

var _ llm.Engine = (*Client)(nil)

func (c *Client) String() string { return fmt.Sprintf("openai(%s)", c.cfg.Model) }
