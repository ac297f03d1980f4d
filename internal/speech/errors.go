package speech

import (
	"context"
	"errors"
	"fmt"
)

// Kind discriminates pipeline errors so callers can match on category
// instead of message text.
type Kind string

const (
	KindUnknown         Kind = "unknown"
	KindConfiguration   Kind = "configuration"
	KindRateLimited     Kind = "rate_limited"
	KindRemoteService   Kind = "remote_service"
	KindEmptyResult     Kind = "empty_result"
	KindInputTooLarge   Kind = "input_too_large"
	KindFallbackTimeout Kind = "fallback_timeout"
	KindFallbackService Kind = "fallback_service"
	KindCancelled       Kind = "cancelled"
)

// Sentinels for errors.Is matching by kind.
var (
	ErrConfiguration   = &Error{Kind: KindConfiguration}
	ErrRateLimited     = &Error{Kind: KindRateLimited}
	ErrRemoteService   = &Error{Kind: KindRemoteService}
	ErrEmptyResult     = &Error{Kind: KindEmptyResult}
	ErrInputTooLarge   = &Error{Kind: KindInputTooLarge}
	ErrFallbackTimeout = &Error{Kind: KindFallbackTimeout}
	ErrFallbackService = &Error{Kind: KindFallbackService}
)

// Error is the tagged error type shared by every pipeline component.
type Error struct {
	// Kind is the error category.
	Kind Kind

	// Service names the remote service or component that raised the error
	// (e.g., "tts", "gateway", "assemblyai").
	Service string

	// StatusCode is the HTTP status returned by the remote service, if any.
	StatusCode int

	// Message is a human-readable description.
	Message string

	// Cause is the underlying error, if any.
	Cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Service != "" {
		msg = e.Service + ": " + msg
	}
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches another *Error by kind. A target carrying a Service must also
// match on Service.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Service == "" || t.Service == e.Service
}

// ConfigurationError reports a missing or invalid credential or setting.
func ConfigurationError(format string, args ...any) *Error {
	return &Error{Kind: KindConfiguration, Message: fmt.Sprintf(format, args...)}
}

// RemoteError builds an error for a non-success response from service.
// HTTP 429 becomes KindRateLimited; everything else is KindRemoteService.
func RemoteError(service string, status int, body string) *Error {
	kind := KindRemoteService
	msg := "request failed"
	if status == 429 {
		kind = KindRateLimited
		msg = "rate limited"
	}
	if body != "" {
		msg += ": " + body
	}
	return &Error{Kind: kind, Service: service, StatusCode: status, Message: msg}
}

// MalformedResponse reports a response body that could not be used.
func MalformedResponse(service, what string, cause error) *Error {
	return &Error{Kind: KindRemoteService, Service: service, Message: what, Cause: cause}
}

// TransportError tags a failure to reach or read from service. When ctx is
// done the context error is returned instead, so a cancelled run reads as
// cancelled while a client timeout stays a remote failure.
func TransportError(ctx context.Context, service, what string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return &Error{Kind: KindRemoteService, Service: service, Message: what, Cause: err}
}

// KindOf returns the kind of err. Context errors map to KindCancelled; any
// other foreign error is KindUnknown.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindCancelled
	}
	return KindUnknown
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// AsFallback re-tags err as a fallback-scoped failure so the orchestrator can
// recover from it. Timeouts keep KindFallbackTimeout.
func AsFallback(service string, err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) && (e.Kind == KindFallbackService || e.Kind == KindFallbackTimeout) {
		return e
	}
	status := 0
	if errors.As(err, &e) {
		status = e.StatusCode
	}
	return &Error{Kind: KindFallbackService, Service: service, StatusCode: status, Message: "transcription failed", Cause: err}
}
