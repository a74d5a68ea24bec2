package oaichat

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/yungbote/amicus-backend/internal/pkg/logger"
	"github.com/yungbote/amicus-backend/internal/platform/llm"
)

type roundTripperFunc func(req *http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) { return f(req) }

func perplexity() Config {
	return Config{
		Provider:            llm.ProviderPerplexity,
		APIKey:              "pplx",
		BaseURL:             "http://upstream",
		ChatCompletionsPath: "/chat/completions",
		Model:               "sonar-pro",
	}
}

func TestGenerate(t *testing.T) {
	client := &http.Client{Transport: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
		if req.URL.Path != "/chat/completions" {
			t.Fatalf("unexpected path: %s", req.URL.Path)
		}
		var in chatCompletionRequest
		if err := json.NewDecoder(req.Body).Decode(&in); err != nil {
			t.Fatalf("decode req: %v", err)
		}
		if in.Model != "sonar-pro" || len(in.Messages) != 2 || in.ResponseFormat != nil {
			t.Fatalf("request=%+v", in)
		}
		b := []byte(`{"model":"sonar-pro","choices":[{"message":{"content":"answer"},"finish_reason":"stop"}],"usage":{"prompt_tokens":8,"completion_tokens":1}}`)
		return &http.Response{StatusCode: 200, Body: io.NopCloser(bytes.NewReader(b))}, nil
	})}

	e, err := NewWithHTTPClient(perplexity(), logger.Nop(), client)
	if err != nil {
		t.Fatalf("NewWithHTTPClient: %v", err)
	}
	resp, err := e.Generate(context.Background(), llm.Request{System: "s", User: "u", JSON: true})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if resp.Text != "answer" || resp.Provider != llm.ProviderPerplexity || resp.InputTokens != 8 || resp.FinishReason != "stop" {
		t.Fatalf("resp=%+v", resp)
	}
}

func TestStream(t *testing.T) {
	stream := "data: {\"choices\":[{\"delta\":{\"content\":\"a\"}}]}\n\n" +
		"data: {\"choices\":[{\"delta\":{\"content\":\"b\"},\"finish_reason\":\"stop\"}]}\n\n" +
		"data: [DONE]\n\n"
	client := &http.Client{Transport: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
		return &http.Response{StatusCode: 200, Body: io.NopCloser(strings.NewReader(stream))}, nil
	})}
	e, _ := NewWithHTTPClient(perplexity(), logger.Nop(), client)
	var n int
	resp, err := e.Stream(context.Background(), llm.Request{User: "u"}, func(string) { n++ })
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if resp.Text != "ab" || n != 2 || resp.FinishReason != "stop" {
		t.Fatalf("resp=%+v n=%d", resp, n)
	}
}

func TestErrors(t *testing.T) {
	if _, err := New(Config{}, logger.Nop()); err == nil {
		t.Fatalf("expected base_url error")
	}
	cfg := perplexity()
	cfg.APIKey = ""
	cfg.KeyEnv = "PERPLEXITY_API_KEY"
	e, _ := New(cfg, logger.Nop())
	_, err := e.Generate(context.Background(), llm.Request{User: "u"})
	if llm.KindOf(err) != llm.KindAuth || !strings.Contains(err.Error(), "PERPLEXITY_API_KEY") {
		t.Fatalf("err=%v", err)
	}

	client := &http.Client{Transport: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
		return &http.Response{StatusCode: 502, Body: io.NopCloser(strings.NewReader("bad gateway"))}, nil
	})}
	e, _ = NewWithHTTPClient(perplexity(), logger.Nop(), client)
	_, err = e.Generate(context.Background(), llm.Request{User: "u"})
	if llm.KindOf(err) != llm.KindUpstream || !llm.IsRetryable(err) {
		t.Fatalf("err=%v", err)
	}
}
