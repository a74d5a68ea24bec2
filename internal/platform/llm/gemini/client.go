// Package gemini adapts the Google Gen AI SDK to llm.Engine.
package gemini

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"google.golang.org/genai"

	"github.com/yungbote/amicus-backend/internal/pkg/logger"
	"github.com/yungbote/amicus-backend/internal/platform/llm"
	"github.com/yungbote/amicus-backend/internal/utils"
)

const provider = llm.ProviderGemini

type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

func ConfigFromEnv(log *logger.Logger) Config {
	return Config{
		APIKey:  utils.GetEnv("GEMINI_API_KEY", "", log),
		BaseURL: utils.GetEnv("GEMINI_BASE_URL", "", log),
		Model:   utils.GetEnv("GEMINI_MODEL", "gemini-2.5-pro", log),
		Timeout: utils.GetEnvAsSeconds("LLM_TIMEOUT_SECONDS", 600*time.Second, log),
	}
}

// Client builds the SDK client lazily so a missing key surfaces per call.
type Client struct {
	log        *logger.Logger
	cfg        Config
	httpClient *http.Client

	once    sync.Once
	sdk     *genai.Client
	initErr error
}

func New(cfg Config, log *logger.Logger) *Client {
	return NewWithHTTPClient(cfg, log, nil)
}

func NewWithHTTPClient(cfg Config, log *logger.Logger, httpClient *http.Client) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 600 * time.Second
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{log: log.With("client", "Gemini"), cfg: cfg, httpClient: httpClient}
}

func (c *Client) client(ctx context.Context) (*genai.Client, error) {
	if c.cfg.APIKey == "" {
		return nil, llm.MissingKey(provider, "GEMINI_API_KEY")
	}
	c.once.Do(func() {
		cc := &genai.ClientConfig{
			APIKey:     c.cfg.APIKey,
			Backend:    genai.BackendGeminiAPI,
			HTTPClient: c.httpClient,
		}
		if c.cfg.BaseURL != "" {
			cc.HTTPOptions = genai.HTTPOptions{BaseURL: c.cfg.BaseURL}
		}
		c.sdk, c.initErr = genai.NewClient(ctx, cc)
	})
	if c.initErr != nil {
		return nil, &llm.Error{Provider: provider, Kind: llm.KindInvalidRequest, Message: "init client", Err: c.initErr}
	}
	return c.sdk, nil
}

func (c *Client) prepare(req llm.Request) (string, []*genai.Content, *genai.GenerateContentConfig) {
	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = c.cfg.Model
	}
	cfg := &genai.GenerateContentConfig{}
	if s := strings.TrimSpace(req.System); s != "" {
		cfg.SystemInstruction = genai.NewContentFromText(s, genai.RoleUser)
	}
	if req.Temperature != nil {
		cfg.Temperature = genai.Ptr(float32(*req.Temperature))
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.JSON {
		cfg.ResponseMIMEType = "application/json"
	}
	contents := []*genai.Content{genai.NewContentFromText(req.User, genai.RoleUser)}
	return model, contents, cfg
}

func (c *Client) Generate(ctx context.Context, req llm.Request) (llm.Response, error) {
	sdk, err := c.client(ctx)
	if err != nil {
		return llm.Response{}, err
	}
	model, contents, cfg := c.prepare(req)
	resp, err := sdk.Models.GenerateContent(ctx, model, contents, cfg)
	if err != nil {
		return llm.Response{}, classify(err)
	}
	out := toResponse(model, resp)
	if strings.TrimSpace(out.Text) == "" {
		return llm.Response{}, llm.Empty(provider)
	}
	return out, nil
}

func (c *Client) Stream(ctx context.Context, req llm.Request, onDelta func(delta string)) (llm.Response, error) {
	sdk, err := c.client(ctx)
	if err != nil {
		return llm.Response{}, err
	}
	model, contents, cfg := c.prepare(req)

	out := llm.Response{Model: model, Provider: provider}
	var full strings.Builder
	for chunk, err := range sdk.Models.GenerateContentStream(ctx, model, contents, cfg) {
		if err != nil {
			return llm.Response{}, classify(err)
		}
		part := toResponse(model, chunk)
		if part.Text != "" {
			full.WriteString(part.Text)
			if onDelta != nil {
				onDelta(part.Text)
			}
		}
		if part.InputTokens > 0 {
			out.InputTokens = part.InputTokens
		}
		if part.OutputTokens > 0 {
			out.OutputTokens = part.OutputTokens
		}
		if part.FinishReason != "" {
			out.FinishReason = part.FinishReason
		}
		if part.Model != "" {
			out.Model = part.Model
		}
	}
	out.Text = full.String()
	if strings.TrimSpace(out.Text) == "" {
		return llm.Response{}, llm.Empty(provider)
	}
	return out, nil
}

func toResponse(model string, resp *genai.GenerateContentResponse) llm.Response {
	out := llm.Response{Model: model, Provider: provider}
	if resp == nil {
		return out
	}
	out.Text = resp.Text()
	if resp.ModelVersion != "" {
		out.Model = resp.ModelVersion
	}
	if resp.UsageMetadata != nil {
		out.InputTokens = int(resp.UsageMetadata.PromptTokenCount)
		out.OutputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	if len(resp.Candidates) > 0 && resp.Candidates[0] != nil {
		out.FinishReason = string(resp.Candidates[0].FinishReason)
	}
	return out
}

func classify(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return llm.FromStatus(provider, apiErr.Code, apiErr.Status+": "+apiErr.Message)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return llm.FromStatus(provider, apiErrPtr.Code, apiErrPtr.Status+": "+apiErrPtr.Message)
	}
	return llm.Classify(provider, err)
}

var _ llm.Engine = (*Client)(nil)
