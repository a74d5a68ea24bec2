// Package router dispatches llm requests to a provider engine by model id.
package router

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/yungbote/amicus-backend/internal/observability"
	"github.com/yungbote/amicus-backend/internal/pkg/ctxutil"
	"github.com/yungbote/amicus-backend/internal/pkg/logger"
	"github.com/yungbote/amicus-backend/internal/platform/llm"
	"github.com/yungbote/amicus-backend/internal/platform/llm/anthropic"
	"github.com/yungbote/amicus-backend/internal/platform/llm/gemini"
	"github.com/yungbote/amicus-backend/internal/platform/llm/mock"
	"github.com/yungbote/amicus-backend/internal/platform/llm/oaichat"
	"github.com/yungbote/amicus-backend/internal/platform/llm/openai"
)

type Router struct {
	log     *logger.Logger
	engines map[string]llm.Engine
	metrics *observability.Metrics
}

func New(log *logger.Logger, engines map[string]llm.Engine, metrics *observability.Metrics) *Router {
	cp := make(map[string]llm.Engine, len(engines))
	for k, v := range engines {
		cp[strings.ToLower(k)] = v
	}
	return &Router{log: log.With("component", "LLMRouter"), engines: cp, metrics: metrics}
}

// NewFromEnv registers every provider. Providers without credentials still
// register; calls to them fail with an auth error.
func NewFromEnv(log *logger.Logger, metrics *observability.Metrics) (*Router, error) {
	pplx, err := oaichat.New(oaichat.PerplexityConfigFromEnv(log), log)
	if err != nil {
		return nil, err
	}
	return New(log, map[string]llm.Engine{
		llm.ProviderOpenAI:     openai.New(openai.ConfigFromEnv(log), log),
		llm.ProviderAnthropic:  anthropic.New(anthropic.ConfigFromEnv(log), log),
		llm.ProviderGemini:     gemini.New(gemini.ConfigFromEnv(log), log),
		llm.ProviderPerplexity: pplx,
		llm.ProviderMock:       mock.New(),
	}, metrics), nil
}

// ProviderFor maps a model id to its provider. An explicit "provider:" prefix
// wins over the name-based guess.
func ProviderFor(model string) (provider string, id string) {
	if p, rest := llm.SplitModel(model); p != "" {
		return p, rest
	}
	id = strings.TrimSpace(model)
	m := strings.ToLower(id)
	switch {
	case strings.HasPrefix(m, "gpt-"), strings.HasPrefix(m, "o1"), strings.HasPrefix(m, "o3"),
		strings.HasPrefix(m, "o4"), strings.HasPrefix(m, "chatgpt"):
		return llm.ProviderOpenAI, id
	case strings.HasPrefix(m, "claude"):
		return llm.ProviderAnthropic, id
	case strings.HasPrefix(m, "gemini"):
		return llm.ProviderGemini, id
	case strings.HasPrefix(m, "sonar"):
		return llm.ProviderPerplexity, id
	case strings.HasPrefix(m, "mock"):
		return llm.ProviderMock, id
	}
	return "", id
}

func (r *Router) resolve(req llm.Request) (llm.Engine, string, llm.Request, error) {
	provider, id := ProviderFor(req.Model)
	if provider == "" {
		return nil, "", req, llm.NewError("router", llm.KindInvalidRequest, "unknown model "+req.Model)
	}
	eng, ok := r.engines[provider]
	if !ok || eng == nil {
		return nil, provider, req, llm.NewError(provider, llm.KindInvalidRequest, "provider not configured")
	}
	req.Model = id
	return eng, provider, req, nil
}

func (r *Router) Generate(ctx context.Context, req llm.Request) (llm.Response, error) {
	return r.call(ctx, req, "generate", func(ctx context.Context, eng llm.Engine, req llm.Request) (llm.Response, error) {
		return eng.Generate(ctx, req)
	})
}

func (r *Router) Stream(ctx context.Context, req llm.Request, onDelta func(delta string)) (llm.Response, error) {
	return r.call(ctx, req, "stream", func(ctx context.Context, eng llm.Engine, req llm.Request) (llm.Response, error) {
		return eng.Stream(ctx, req, onDelta)
	})
}

func (r *Router) call(
	ctx context.Context,
	req llm.Request,
	op string,
	fn func(context.Context, llm.Engine, llm.Request) (llm.Response, error),
) (llm.Response, error) {
	eng, provider, req, err := r.resolve(req)
	if err != nil {
		return llm.Response{}, err
	}

	ctx, span := observability.Tracer().Start(ctx, "llm."+op)
	defer span.End()
	span.SetAttributes(
		attribute.String("llm.provider", provider),
		attribute.String("llm.model", req.Model),
		attribute.Bool("llm.json", req.JSON),
	)

	start := time.Now()
	resp, err := fn(ctx, eng, req)
	dur := time.Since(start)

	status := "ok"
	if err != nil {
		status = string(llm.KindOf(err))
		if status == "" {
			status = "error"
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, status)
	} else {
		span.SetAttributes(
			attribute.Int("llm.input_tokens", resp.InputTokens),
			attribute.Int("llm.output_tokens", resp.OutputTokens),
		)
	}
	r.metrics.ObserveLLMRequest(provider, req.Model, status, dur, resp.InputTokens, resp.OutputTokens)

	fields := append([]interface{}{
		"provider", provider,
		"model", req.Model,
		"op", op,
		"status", status,
		"duration_ms", dur.Milliseconds(),
		"input_tokens", resp.InputTokens,
		"output_tokens", resp.OutputTokens,
	}, ctxutil.TraceFields(ctx)...)
	if err != nil {
		r.log.Warn("llm call failed", append(fields, "error", err)...)
		return llm.Response{}, err
	}
	r.log.Debug("llm call", fields...)
	return resp, nil
}

var _ llm.Engine = (*Router)(nil)
