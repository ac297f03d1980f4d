// Package anthropic implements the Normalizer using Anthropic's Messages API.
package anthropic

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/nadzzz/readaloud/internal/config"
	"github.com/nadzzz/readaloud/internal/normalizer"
	"github.com/nadzzz/readaloud/internal/speech"
)

const (
	serviceName      = "anthropic"
	defaultModel     = "claude-3-5-haiku-latest"
	defaultMaxTokens = 8192
)

// Normalizer sends documents to the Messages API.
type Normalizer struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	prompt    *normalizer.Prompt
}

// New creates an Anthropic normalizer from config. The SDK's own retries are
// disabled; rate-limit retry is applied by normalizer.WithRetry.
func New(cfg config.AnthropicConfig, prompt *normalizer.Prompt, httpClient *http.Client) *Normalizer {
	reqOpts := []option.RequestOption{option.WithMaxRetries(0)}
	if cfg.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.BaseURL))
	}
	if httpClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(httpClient))
	}

	n := &Normalizer{
		client:    anthropic.NewClient(reqOpts...),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		prompt:    prompt,
	}
	if n.model == "" {
		n.model = defaultModel
	}
	if n.maxTokens <= 0 {
		n.maxTokens = defaultMaxTokens
	}
	if n.prompt == nil {
		n.prompt = normalizer.DefaultPrompt()
	}
	return n
}

// Name returns the backend identifier.
func (n *Normalizer) Name() string { return serviceName }

// Normalize sends the rendered prompt and document as one user message and
// joins the text blocks of the reply.
func (n *Normalizer) Normalize(ctx context.Context, document string, opts normalizer.Opts) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(n.model),
		MaxTokens: n.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(n.prompt.Render(document))),
		},
	}

	resp, err := n.client.Messages.New(ctx, params, option.WithAPIKey(opts.APIKey))
	if err != nil {
		return "", mapError(err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	content := sb.String()
	if strings.TrimSpace(content) == "" {
		return "", speech.MalformedResponse(serviceName, "empty response: no text content", nil)
	}

	slog.Debug("anthropic normalization complete",
		"model", n.model,
		"input_tokens", resp.Usage.InputTokens,
		"output_tokens", resp.Usage.OutputTokens)
	return content, nil
}

// Close is a no-op.
func (n *Normalizer) Close() error { return nil }

func mapError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return speech.RemoteError(serviceName, apiErr.StatusCode, strings.TrimSpace(apiErr.RawJSON()))
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &speech.Error{Kind: speech.KindRemoteService, Service: serviceName, Message: "messages request failed", Cause: err}
}
