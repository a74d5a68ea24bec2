package gemini

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/yungbote/amicus-backend/internal/pkg/logger"
	"github.com/yungbote/amicus-backend/internal/platform/llm"
)

func TestGenerateMissingKey(t *testing.T) {
	c := New(Config{Model: "gemini-2.5-pro"}, logger.Nop())
	_, err := c.Generate(context.Background(), llm.Request{User: "u"})
	if llm.KindOf(err) != llm.KindAuth {
		t.Fatalf("err=%v", err)
	}
}

func TestGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "gemini-test:generateContent") {
			t.Errorf("path=%s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"hello brief"}]},"finishReason":"STOP"}],"usageMetadata":{"promptTokenCount":4,"candidatesTokenCount":2}}`))
	}))
	defer srv.Close()

	c := New(Config{APIKey: "k", BaseURL: srv.URL, Model: "gemini-test"}, logger.Nop())
	resp, err := c.Generate(context.Background(), llm.Request{System: "sys", User: "u", JSON: true, Temperature: llm.FloatPtr(0.2)})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if resp.Text != "hello brief" || resp.InputTokens != 4 || resp.OutputTokens != 2 || resp.FinishReason != "STOP" {
		t.Fatalf("resp=%+v", resp)
	}
}

func TestGenerateMapsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"code":429,"message":"quota","status":"RESOURCE_EXHAUSTED"}}`))
	}))
	defer srv.Close()

	c := New(Config{APIKey: "k", BaseURL: srv.URL, Model: "gemini-test"}, logger.Nop())
	_, err := c.Generate(context.Background(), llm.Request{User: "u"})
	if llm.KindOf(err) != llm.KindRateLimit {
		t.Fatalf("err=%v", err)
	}
}
