package httpx

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"
)

type statusErr int

func (e statusErr) Error() string       { return fmt.Sprintf("status %d", int(e)) }
func (e statusErr) HTTPStatusCode() int { return int(e) }

func TestIsRetryableError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"canceled", context.Canceled, false},
		{"deadline", context.DeadlineExceeded, true},
		{"429", statusErr(429), true},
		{"503", statusErr(503), true},
		{"401", statusErr(401), false},
		{"wrapped 500", fmt.Errorf("call: %w", statusErr(500)), true},
		{"plain", fmt.Errorf("boom"), false},
	}
	for _, tc := range cases {
		if got := IsRetryableError(tc.err); got != tc.want {
			t.Fatalf("%s: got=%v want=%v", tc.name, got, tc.want)
		}
	}
}

func TestRetryAfterDuration(t *testing.T) {
	resp := &http.Response{Header: http.Header{"Retry-After": []string{"7"}}}
	if got := RetryAfterDuration(resp, time.Second, time.Minute); got != 7*time.Second {
		t.Fatalf("got=%s", got)
	}
	if got := RetryAfterDuration(resp, time.Second, 3*time.Second); got != 3*time.Second {
		t.Fatalf("cap not applied: %s", got)
	}
	if got := RetryAfterDuration(nil, 2*time.Second, 0); got != 2*time.Second {
		t.Fatalf("fallback: %s", got)
	}
}

func TestBackoffAndJitter(t *testing.T) {
	if got := Backoff(1, time.Second, time.Minute); got != time.Second {
		t.Fatalf("attempt1=%s", got)
	}
	if got := Backoff(3, time.Second, time.Minute); got != 4*time.Second {
		t.Fatalf("attempt3=%s", got)
	}
	if got := Backoff(40, time.Second, time.Minute); got != time.Minute {
		t.Fatalf("cap=%s", got)
	}
	for i := 0; i < 50; i++ {
		j := Jitter(10*time.Second, 0.2)
		if j < 8*time.Second || j > 12*time.Second {
			t.Fatalf("jitter out of range: %s", j)
		}
	}
}
