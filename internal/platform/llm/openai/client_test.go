package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/yungbote/amicus-backend/internal/pkg/logger"
	"github.com/yungbote/amicus-backend/internal/platform/llm"
)

type roundTripperFunc func(req *http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) { return f(req) }

func respond(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(bytes.NewReader([]byte(body))),
	}
}

func testConfig() Config {
	t := 0.3
	return Config{APIKey: "sk-test", BaseURL: "http://upstream", Model: "gpt-4.1", Temperature: &t, NoTempModels: "o3*"}
}

func TestGenerate(t *testing.T) {
	client := &http.Client{Transport: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
		if req.URL.Path != "/v1/responses" {
			t.Fatalf("unexpected path: %s", req.URL.Path)
		}
		if got := req.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Fatalf("auth header=%q", got)
		}
		var in responsesRequest
		if err := json.NewDecoder(req.Body).Decode(&in); err != nil {
			t.Fatalf("decode req: %v", err)
		}
		if in.Model != "gpt-4.1" || len(in.Input) != 2 || in.Input[0].Role != "system" {
			t.Fatalf("request=%+v", in)
		}
		if in.Temperature == nil || *in.Temperature != 0.3 {
			t.Fatalf("temperature=%v", in.Temperature)
		}
		if in.Text == nil || in.Text.Format["type"] != "json_object" {
			t.Fatalf("json mode not requested: %+v", in.Text)
		}
		return respond(200, `{"model":"gpt-4.1-2025","status":"completed","output":[{"type":"message","role":"assistant","content":[{"type":"output_text","text":"{\"brief\":\"x\"}"}]}],"usage":{"input_tokens":11,"output_tokens":7}}`), nil
	})}

	c := NewWithHTTPClient(testConfig(), logger.Nop(), client)
	resp, err := c.Generate(context.Background(), llm.Request{System: "sys", User: "user", JSON: true})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if resp.Text != `{"brief":"x"}` || resp.Model != "gpt-4.1-2025" || resp.InputTokens != 11 || resp.OutputTokens != 7 {
		t.Fatalf("resp=%+v", resp)
	}
	if resp.Provider != llm.ProviderOpenAI || resp.FinishReason != "completed" {
		t.Fatalf("resp=%+v", resp)
	}
}

func TestGenerateOmitsTemperatureForReasoningModels(t *testing.T) {
	client := &http.Client{Transport: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
		var in responsesRequest
		_ = json.NewDecoder(req.Body).Decode(&in)
		if in.Temperature != nil {
			t.Fatalf("temperature sent to %s", in.Model)
		}
		return respond(200, `{"output":[{"type":"message","role":"assistant","content":[{"type":"output_text","text":"ok"}]}]}`), nil
	})}
	c := NewWithHTTPClient(testConfig(), logger.Nop(), client)
	if _, err := c.Generate(context.Background(), llm.Request{Model: "o3-mini", User: "u"}); err != nil {
		t.Fatalf("Generate: %v", err)
	}
}

func TestGenerateRetriesOnceWithoutRejectedTemperature(t *testing.T) {
	var calls int32
	client := &http.Client{Transport: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
		n := atomic.AddInt32(&calls, 1)
		var in responsesRequest
		_ = json.NewDecoder(req.Body).Decode(&in)
		if n == 1 {
			if in.Temperature == nil {
				t.Fatalf("first call should carry temperature")
			}
			return respond(400, `{"error":{"message":"Unsupported parameter: 'temperature' is not supported with this model."}}`), nil
		}
		if in.Temperature != nil {
			t.Fatalf("second call should omit temperature")
		}
		return respond(200, `{"output":[{"type":"message","role":"assistant","content":[{"type":"output_text","text":"ok"}]}]}`), nil
	})}
	c := NewWithHTTPClient(testConfig(), logger.Nop(), client)
	if _, err := c.Generate(context.Background(), llm.Request{Model: "gpt-x", User: "u"}); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !c.modelIsNoTemp("gpt-x") {
		t.Fatalf("model should be remembered as no-temperature")
	}
}

func TestGenerateErrors(t *testing.T) {
	c := NewWithHTTPClient(Config{BaseURL: "http://upstream"}, logger.Nop(), nil)
	if _, err := c.Generate(context.Background(), llm.Request{User: "u"}); llm.KindOf(err) != llm.KindAuth {
		t.Fatalf("missing key: %v", err)
	}

	cases := []struct {
		status int
		body   string
		kind   llm.Kind
	}{
		{429, `{"error":{"message":"slow down"}}`, llm.KindRateLimit},
		{503, `unavailable`, llm.KindUpstream},
		{200, `{"output":[]}`, llm.KindEmptyResponse},
	}
	for _, tc := range cases {
		client := &http.Client{Transport: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
			return respond(tc.status, tc.body), nil
		})}
		c := NewWithHTTPClient(testConfig(), logger.Nop(), client)
		_, err := c.Generate(context.Background(), llm.Request{User: "u"})
		if llm.KindOf(err) != tc.kind {
			t.Fatalf("status %d: err=%v want kind %s", tc.status, err, tc.kind)
		}
	}
}

func TestStream(t *testing.T) {
	stream := strings.Join([]string{
		`event: response.output_text.delta`,
		`data: {"type":"response.output_text.delta","delta":"Hel"}`,
		``,
		`event: response.output_text.delta`,
		`data: {"type":"response.output_text.delta","delta":"lo"}`,
		``,
		`event: response.completed`,
		`data: {"type":"response.completed","response":{"model":"gpt-4.1","status":"completed","usage":{"input_tokens":3,"output_tokens":2}}}`,
		``,
	}, "\n")
	client := &http.Client{Transport: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
		if req.Header.Get("Accept") != "text/event-stream" {
			t.Fatalf("accept=%q", req.Header.Get("Accept"))
		}
		return &http.Response{StatusCode: 200, Body: io.NopCloser(strings.NewReader(stream))}, nil
	})}
	c := NewWithHTTPClient(testConfig(), logger.Nop(), client)
	var deltas []string
	resp, err := c.Stream(context.Background(), llm.Request{User: "u"}, func(d string) { deltas = append(deltas, d) })
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if resp.Text != "Hello" || len(deltas) != 2 || resp.OutputTokens != 2 {
		t.Fatalf("resp=%+v deltas=%v", resp, deltas)
	}
}
