package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

type Kind string

const (
	KindNetwork        Kind = "network"
	KindAuth           Kind = "auth"
	KindRateLimit      Kind = "rate_limit"
	KindEmptyResponse  Kind = "empty_response"
	KindUpstream       Kind = "upstream"
	KindInvalidRequest Kind = "invalid_request"
	KindTimeout        Kind = "timeout"
	KindCanceled       Kind = "canceled"
)

// Error is the single error type returned by every adapter.
type Error struct {
	Provider   string
	Kind       Kind
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	if e == nil {
		return "llm error"
	}
	var b strings.Builder
	b.WriteString(e.Provider)
	b.WriteString(" ")
	b.WriteString(string(e.Kind))
	if e.StatusCode > 0 {
		fmt.Fprintf(&b, " (http %d)", e.StatusCode)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	} else if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) HTTPStatusCode() int {
	if e == nil {
		return 0
	}
	return e.StatusCode
}

func NewError(provider string, kind Kind, msg string) *Error {
	return &Error{Provider: provider, Kind: kind, Message: msg}
}

// Empty reports a response that carried no usable text.
func Empty(provider string) *Error {
	return NewError(provider, KindEmptyResponse, "model returned no text")
}

// Truncated reports a reply cut off by the output token limit. It is
// retryable; a second attempt usually finishes.
func Truncated(provider string) *Error {
	return NewError(provider, KindUpstream, "truncated response")
}

// MissingKey reports absent credentials at call time.
func MissingKey(provider string, envKey string) *Error {
	return NewError(provider, KindAuth, "missing "+envKey)
}

// FromStatus maps an upstream HTTP failure to an Error. body is trimmed.
func FromStatus(provider string, status int, body string) *Error {
	kind := KindUpstream
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		kind = KindAuth
	case status == http.StatusTooManyRequests:
		kind = KindRateLimit
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		kind = KindTimeout
	case status >= 500:
		kind = KindUpstream
	case status >= 400:
		kind = KindInvalidRequest
	}
	body = strings.TrimSpace(body)
	if len(body) > 2048 {
		body = body[:2048]
	}
	return &Error{Provider: provider, Kind: kind, StatusCode: status, Message: body}
}

// Classify wraps a transport or context failure. An existing *Error passes through.
func Classify(provider string, err error) error {
	if err == nil {
		return nil
	}
	var le *Error
	if errors.As(err, &le) {
		return err
	}
	kind := KindNetwork
	switch {
	case errors.Is(err, context.Canceled):
		kind = KindCanceled
	case errors.Is(err, context.DeadlineExceeded):
		kind = KindTimeout
	default:
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			kind = KindTimeout
		}
	}
	return &Error{Provider: provider, Kind: kind, Err: err}
}

// KindOf returns the kind of an adapter error, or "" for foreign errors.
func KindOf(err error) Kind {
	var le *Error
	if errors.As(err, &le) && le != nil {
		return le.Kind
	}
	return ""
}

// IsRetryable reports whether repeating the same call may succeed.
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case KindNetwork, KindRateLimit, KindUpstream, KindTimeout:
		return true
	default:
		return false
	}
}
