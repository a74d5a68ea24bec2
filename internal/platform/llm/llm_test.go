package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestFromStatusKinds(t *testing.T) {
	cases := []struct {
		status int
		kind   Kind
		retry  bool
	}{
		{401, KindAuth, false},
		{403, KindAuth, false},
		{429, KindRateLimit, true},
		{400, KindInvalidRequest, false},
		{404, KindInvalidRequest, false},
		{408, KindTimeout, true},
		{500, KindUpstream, true},
		{529, KindUpstream, true},
	}
	for _, tc := range cases {
		err := FromStatus("openai", tc.status, "boom")
		if err.Kind != tc.kind {
			t.Fatalf("status %d: kind=%s want %s", tc.status, err.Kind, tc.kind)
		}
		if IsRetryable(err) != tc.retry {
			t.Fatalf("status %d: retryable=%v", tc.status, IsRetryable(err))
		}
		if err.HTTPStatusCode() != tc.status {
			t.Fatalf("status %d: HTTPStatusCode=%d", tc.status, err.HTTPStatusCode())
		}
	}
}

func TestClassify(t *testing.T) {
	if KindOf(Classify("x", context.Canceled)) != KindCanceled {
		t.Fatalf("canceled not classified")
	}
	if KindOf(Classify("x", fmt.Errorf("wrap: %w", context.DeadlineExceeded))) != KindTimeout {
		t.Fatalf("deadline not classified")
	}
	if KindOf(Classify("x", errors.New("connection reset"))) != KindNetwork {
		t.Fatalf("plain error should be network")
	}
	orig := Empty("x")
	if got := Classify("y", fmt.Errorf("wrap: %w", orig)); KindOf(got) != KindEmptyResponse {
		t.Fatalf("existing llm error should pass through, got %v", got)
	}
	if IsRetryable(Empty("x")) || IsRetryable(MissingKey("x", "KEY")) {
		t.Fatalf("empty/auth must not be retryable")
	}
	if KindOf(errors.New("foreign")) != "" {
		t.Fatalf("foreign error should have no kind")
	}
}

func TestSplitModel(t *testing.T) {
	cases := map[string][2]string{
		"anthropic:claude-sonnet-4": {"anthropic", "claude-sonnet-4"},
		"gpt-4.1":                   {"", "gpt-4.1"},
		"perplexity:sonar-pro":      {"perplexity", "sonar-pro"},
		"weird:thing":               {"", "weird:thing"},
	}
	for in, want := range cases {
		p, id := SplitModel(in)
		if p != want[0] || id != want[1] {
			t.Fatalf("SplitModel(%q)=(%q,%q)", in, p, id)
		}
	}
}

func TestReadSSE(t *testing.T) {
	stream := ": comment\n" +
		"event: a\n" +
		"data: {\"x\":1}\n\n" +
		"data: line1\n" +
		"data: line2\n\n" +
		"event: tail\n" +
		"data: last"
	var got []string
	err := ReadSSE(strings.NewReader(stream), func(event, data string) error {
		got = append(got, event+"|"+data)
		return nil
	})
	if err != nil {
		t.Fatalf("ReadSSE: %v", err)
	}
	want := []string{"a|{\"x\":1}", "|line1\nline2", "tail|last"}
	if len(got) != len(want) {
		t.Fatalf("events=%v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event %d=%q want %q", i, got[i], want[i])
		}
	}

	stop := errors.New("stop")
	err = ReadSSE(strings.NewReader("data: 1\n\ndata: 2\n\n"), func(string, string) error { return stop })
	if !errors.Is(err, stop) {
		t.Fatalf("expected callback error, got %v", err)
	}
}

func TestHitTokenLimit(t *testing.T) {
	for _, r := range []string{"length", "max_tokens", "MAX_TOKENS", "max_output_tokens"} {
		if !(Response{FinishReason: r}).HitTokenLimit() {
			t.Fatalf("%q should be a token limit stop", r)
		}
	}
	for _, r := range []string{"", "stop", "end_turn", "STOP", "completed"} {
		if (Response{FinishReason: r}).HitTokenLimit() {
			t.Fatalf("%q is not a token limit stop", r)
		}
	}
	if err := Truncated("anthropic"); !IsRetryable(err) {
		t.Fatalf("truncation should be retryable")
	}
}
