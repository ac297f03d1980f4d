// Package normalizer defines the interface for LLM-based text normalization.
//
// A normalizer turns structured document text (markdown, HTML remnants, PDF
// extraction output) into plain, speakable prose. The instruction sent to the
// model is a versioned data resource (see Prompt), so backends only differ in
// how they reach a model. Readaloud ships with three backends: an
// OpenAI-compatible AI gateway, Anthropic, and a self-hosted local model.
package normalizer

import (
	"context"
)

// Opts carries per-call credentials.
type Opts struct {
	// APIKey authenticates the request. Keyless backends ignore it.
	APIKey string
}

// Normalizer converts document text to plain speakable text.
type Normalizer interface {
	// Name returns the backend identifier (e.g., "gateway", "anthropic", "local").
	Name() string

	// Normalize returns the cleaned text for document. It fails with a
	// speech.Error of kind rate_limited on HTTP 429 and remote_service for
	// other failures, including empty or malformed responses.
	Normalize(ctx context.Context, document string, opts Opts) (string, error)

	// Close releases any resources held by the normalizer.
	Close() error
}
