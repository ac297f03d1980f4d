// Package transport defines the interface for pluggable inbound transports.
//
// Each transport (gRPC, HTTP) accepts a document plus per-request settings,
// hands them to the pipeline through a Handler and returns the terminal
// outcome to its caller.
package transport

import (
	"context"
	"net/http"

	"github.com/nadzzz/readaloud/internal/speech"
)

// Handler runs one document through the pipeline. main wires it to
// pipeline.Speak.
type Handler func(ctx context.Context, document string, settings speech.Settings) speech.Outcome

// Transport is the interface that every transport adapter must implement.
type Transport interface {
	// Name returns the transport identifier (e.g., "grpc", "http").
	Name() string

	// Listen starts accepting requests and passes them to the handler.
	// It blocks until the context is cancelled.
	Listen(ctx context.Context, handler Handler) error

	// Close gracefully shuts down the transport, draining in-flight work.
	Close() error
}

// HTTPStatus maps a failure kind to the status code returned to HTTP callers.
func HTTPStatus(kind speech.Kind) int {
	switch kind {
	case speech.KindConfiguration, speech.KindEmptyResult, speech.KindInputTooLarge:
		return http.StatusUnprocessableEntity
	case speech.KindRateLimited, speech.KindRemoteService, speech.KindFallbackService, speech.KindFallbackTimeout:
		return http.StatusBadGateway
	case speech.KindCancelled:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
