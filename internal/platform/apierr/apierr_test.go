package apierr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	apperrors "github.com/yungbote/amicus-backend/internal/pkg/errors"
	"github.com/yungbote/amicus-backend/internal/platform/llm"
)

func TestFromClassifies(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"explicit", fmt.Errorf("start: %w", Invalid("missing_outline", "approved outline required")), http.StatusBadRequest, "missing_outline"},
		{"not found", fmt.Errorf("load: %w", apperrors.ErrNotFound), http.StatusNotFound, "not_found"},
		{"conflict", apperrors.ErrConflict, http.StatusConflict, "conflict"},
		{"rate limit", llm.NewError("openai", llm.KindRateLimit, "slow"), http.StatusTooManyRequests, "upstream_rate_limited"},
		{"auth", llm.NewError("anthropic", llm.KindAuth, "bad key"), http.StatusBadGateway, "upstream_auth"},
		{"other", errors.New("boom"), http.StatusInternalServerError, "internal"},
	}
	for _, tc := range cases {
		got := From(tc.err, "internal")
		if got.Status != tc.status || got.Code != tc.code {
			t.Fatalf("%s: status=%d code=%s", tc.name, got.Status, got.Code)
		}
	}
	if From(nil, "x") != nil {
		t.Fatalf("nil error should map to nil")
	}
}

func TestHelpersKeepSentinels(t *testing.T) {
	if !errors.Is(NotFound("case_not_found", "case"), apperrors.ErrNotFound) {
		t.Fatalf("NotFound lost sentinel")
	}
	if !errors.Is(Conflict("job_not_restartable", "running"), apperrors.ErrConflict) {
		t.Fatalf("Conflict lost sentinel")
	}
}
