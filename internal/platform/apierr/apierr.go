// Package apierr carries an HTTP status and a stable error code alongside a
// service error so handlers can respond without inspecting messages.
package apierr

import (
	"errors"
	"fmt"
	"net/http"

	apperrors "github.com/yungbote/amicus-backend/internal/pkg/errors"
	"github.com/yungbote/amicus-backend/internal/pkg/httpx"
	"github.com/yungbote/amicus-backend/internal/platform/llm"
)

type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) HTTPStatusCode() int { return e.Status }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

// Invalid wraps msg with ErrInvalidArgument.
func Invalid(code string, msg string) *Error {
	return New(http.StatusBadRequest, code, fmt.Errorf("%w: %s", apperrors.ErrInvalidArgument, msg))
}

func NotFound(code string, msg string) *Error {
	return New(http.StatusNotFound, code, fmt.Errorf("%w: %s", apperrors.ErrNotFound, msg))
}

func Conflict(code string, msg string) *Error {
	return New(http.StatusConflict, code, fmt.Errorf("%w: %s", apperrors.ErrConflict, msg))
}

// From classifies err. An *Error anywhere in the chain wins; otherwise the
// domain sentinels and model adapter errors pick the status, and anything
// else is a 500 with fallbackCode.
func From(err error, fallbackCode string) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) && ae != nil {
		return ae
	}
	switch {
	case errors.Is(err, apperrors.ErrInvalidArgument):
		return New(http.StatusBadRequest, "invalid_argument", err)
	case errors.Is(err, apperrors.ErrNotFound):
		return New(http.StatusNotFound, "not_found", err)
	case errors.Is(err, apperrors.ErrConflict):
		return New(http.StatusConflict, "conflict", err)
	}
	var le *llm.Error
	if errors.As(err, &le) && le != nil {
		switch le.Kind {
		case llm.KindRateLimit:
			return New(http.StatusTooManyRequests, "upstream_rate_limited", err)
		case llm.KindTimeout:
			return New(http.StatusGatewayTimeout, "upstream_timeout", err)
		default:
			return New(http.StatusBadGateway, "upstream_"+string(le.Kind), err)
		}
	}
	var sc httpx.HTTPStatusCoder
	if errors.As(err, &sc) && sc.HTTPStatusCode() >= 400 {
		return New(sc.HTTPStatusCode(), fallbackCode, err)
	}
	return New(http.StatusInternalServerError, fallbackCode, err)
}
