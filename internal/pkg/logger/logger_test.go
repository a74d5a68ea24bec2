package logger

import (
	"strings"
	"testing"
)

func TestSanitizeKVsRedactsCredentials(t *testing.T) {
	out := sanitizeKVs([]interface{}{"api_key", "sk-123", "output_tokens", 42, "model", "claude"})
	if len(out) != 6 {
		t.Fatalf("len=%d", len(out))
	}
	if out[1] != "[REDACTED]" {
		t.Fatalf("api_key not redacted: %v", out[1])
	}
	if out[3] != 42 {
		t.Fatalf("output_tokens should pass through, got %v", out[3])
	}
	if out[5] != "claude" {
		t.Fatalf("model changed: %v", out[5])
	}
}

func TestSanitizeKVsTruncatesLongText(t *testing.T) {
	long := strings.Repeat("a", maxTextValueLen*3)
	out := sanitizeKVs([]interface{}{"brief", long})
	s, ok := out[1].(string)
	if !ok {
		t.Fatalf("expected string, got %T", out[1])
	}
	if len(s) >= len(long) {
		t.Fatalf("expected truncation, len=%d", len(s))
	}
	if !strings.HasSuffix(s, "bytes)") {
		t.Fatalf("unexpected suffix: %q", s[len(s)-20:])
	}
}

func TestSanitizeKVsOddLength(t *testing.T) {
	out := sanitizeKVs([]interface{}{"job_id", "j1", "dangling"})
	if len(out) != 3 || out[2] != "dangling" {
		t.Fatalf("unexpected: %#v", out)
	}
}
