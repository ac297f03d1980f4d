// Package local implements the Normalizer using a self-hosted model.
//
// It speaks either Ollama's /api/generate format or any OpenAI-compatible
// chat endpoint (Ollama, vLLM, llama.cpp server), chosen by the endpoint path.
package local

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/nadzzz/readaloud/internal/config"
	"github.com/nadzzz/readaloud/internal/normalizer"
	"github.com/nadzzz/readaloud/internal/speech"
)

const serviceName = "local"

// Normalizer uses a self-hosted LLM endpoint.
type Normalizer struct {
	endpoint string
	model    string
	prompt   *normalizer.Prompt
	client   *http.Client
}

// New creates a new local normalizer from config.
func New(cfg config.LocalConfig, prompt *normalizer.Prompt, client *http.Client) *Normalizer {
	model := cfg.Model
	if model == "" {
		model = "llama3"
	}
	if prompt == nil {
		prompt = normalizer.DefaultPrompt()
	}
	if client == nil {
		client = &http.Client{}
	}
	return &Normalizer{
		endpoint: cfg.Endpoint,
		model:    model,
		prompt:   prompt,
		client:   client,
	}
}

// Name returns the backend identifier.
func (n *Normalizer) Name() string { return serviceName }

// Keyless reports that a self-hosted model needs no API key.
func (n *Normalizer) Keyless() bool { return true }

// Normalize sends the rendered prompt to the local LLM endpoint.
func (n *Normalizer) Normalize(ctx context.Context, document string, opts normalizer.Opts) (string, error) {
	message := n.prompt.Render(document)

	var reqBody map[string]any
	if strings.HasSuffix(n.endpoint, "/api/generate") {
		reqBody = map[string]any{
			"model":  n.model,
			"prompt": message,
			"stream": false,
		}
	} else {
		reqBody = map[string]any{
			"model": n.model,
			"messages": []map[string]string{
				{"role": "user", "content": message},
			},
			"stream": false,
		}
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshalling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if opts.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+opts.APIKey)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return "", &speech.Error{Kind: speech.KindRemoteService, Service: serviceName, Message: "request failed", Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", speech.RemoteError(serviceName, resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	respData, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading LLM response: %w", err)
	}

	content, err := extractContent(respData)
	if err != nil {
		return "", speech.MalformedResponse(serviceName, "malformed response", err)
	}
	if strings.TrimSpace(content) == "" {
		return "", speech.MalformedResponse(serviceName, "empty response", nil)
	}

	slog.Debug("local normalization complete", "model", n.model, "output_length", len(content))
	return content, nil
}

// Close is a no-op for the local normalizer.
func (n *Normalizer) Close() error { return nil }

// extractContent reads either an OpenAI-style choices array or Ollama's
// "response" field.
func extractContent(data []byte) (string, error) {
	var resp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Response string `json:"response"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) > 0 {
		return resp.Choices[0].Message.Content, nil
	}
	return resp.Response, nil
}
