// Package gateway implements the Normalizer against an OpenAI-compatible AI
// gateway using the Chat Completions API.
package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/nadzzz/readaloud/internal/config"
	"github.com/nadzzz/readaloud/internal/normalizer"
	"github.com/nadzzz/readaloud/internal/speech"
)

const (
	serviceName    = "gateway"
	defaultBaseURL = "https://ai-gateway.vercel.sh/v1"
	defaultModel   = "openai/gpt-4o-mini"
)

// Normalizer sends documents to the gateway's chat completions endpoint.
type Normalizer struct {
	baseURL string
	model   string
	prompt  *normalizer.Prompt
	client  *http.Client
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(n *Normalizer) { n.client = c }
}

// WithBaseURL overrides the configured base URL.
func WithBaseURL(u string) Option {
	return func(n *Normalizer) { n.baseURL = u }
}

// New creates a gateway normalizer from config.
func New(cfg config.GatewayConfig, prompt *normalizer.Prompt, opts ...Option) *Normalizer {
	n := &Normalizer{
		baseURL: cfg.BaseURL,
		model:   cfg.Model,
		prompt:  prompt,
		client:  &http.Client{},
	}
	if n.baseURL == "" {
		n.baseURL = defaultBaseURL
	}
	if n.model == "" {
		n.model = defaultModel
	}
	if n.prompt == nil {
		n.prompt = normalizer.DefaultPrompt()
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Name returns the backend identifier.
func (n *Normalizer) Name() string { return serviceName }

// Normalize sends one user message containing the rendered prompt and the
// document, and returns the first choice's content.
func (n *Normalizer) Normalize(ctx context.Context, document string, opts normalizer.Opts) (string, error) {
	cc := openai.DefaultConfig(opts.APIKey)
	cc.BaseURL = strings.TrimRight(n.baseURL, "/")
	cc.HTTPClient = n.client
	client := openai.NewClientWithConfig(cc)

	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: n.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: n.prompt.Render(document)},
		},
	})
	if err != nil {
		return "", mapError(err)
	}

	if len(resp.Choices) == 0 {
		return "", speech.MalformedResponse(serviceName, "empty response: no choices", nil)
	}
	content := resp.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", speech.MalformedResponse(serviceName, "empty response: blank content", nil)
	}

	slog.Debug("gateway normalization complete",
		"model", n.model,
		"input_length", len(document),
		"output_length", len(content),
		"total_tokens", resp.Usage.TotalTokens)
	return content, nil
}

// Close releases idle connections.
func (n *Normalizer) Close() error {
	n.client.CloseIdleConnections()
	return nil
}

// mapError converts go-openai failures into tagged errors carrying the HTTP status.
func mapError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
		return speech.RemoteError(serviceName, apiErr.HTTPStatusCode, apiErr.Message)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return speech.RemoteError(serviceName, reqErr.HTTPStatusCode, strings.TrimSpace(string(reqErr.Body)))
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &speech.Error{Kind: speech.KindRemoteService, Service: serviceName, Message: "chat completion request failed", Cause: err}
}
