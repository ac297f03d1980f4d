// Package http implements the HTTP transport for readaloud.
//
// This transport exposes a REST API that reads a document aloud. Callers
// either POST a JSON envelope carrying the text and settings, or the raw
// document bytes (plain text, markdown or PDF) with settings in headers.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/nadzzz/readaloud/internal/config"
	_ "github.com/nadzzz/readaloud/internal/docs" // registers the OpenAPI spec
	"github.com/nadzzz/readaloud/internal/document"
	"github.com/nadzzz/readaloud/internal/speech"
	"github.com/nadzzz/readaloud/internal/transport"
)

// Header names carrying settings for raw document uploads.
const (
	HeaderTTSKey           = "X-Readaloud-TTS-Key"
	HeaderGatewayKey       = "X-Readaloud-Gateway-Key"
	HeaderTranscriptionKey = "X-Readaloud-Transcription-Key"
	HeaderVoice            = "X-Readaloud-Voice"
	HeaderFallback         = "X-Readaloud-Fallback"
)

const defaultMaxBody = 20 << 20

// SpeakRequest is the JSON body accepted by POST /v1/speak.
type SpeakRequest struct {
	Text     string          `json:"text"`
	Settings speech.Settings `json:"settings"`
}

// Transport implements transport.Transport over HTTP.
type Transport struct {
	port    int
	maxBody int64
	server  *http.Server
}

// New creates a new HTTP transport from its config section.
func New(cfg config.HTTPConfig) *Transport {
	maxBody := cfg.MaxBody
	if maxBody <= 0 {
		maxBody = defaultMaxBody
	}
	return &Transport{port: cfg.Port, maxBody: maxBody}
}

// Name returns the transport identifier.
func (t *Transport) Name() string { return "http" }

// Router builds the chi router serving the API and its Swagger UI.
func (t *Transport) Router(handler transport.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	r.Post("/v1/speak", func(w http.ResponseWriter, req *http.Request) {
		t.handleSpeak(w, req, handler)
	})

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))
	return r
}

// Listen starts the HTTP server and routes incoming requests to the handler.
func (t *Transport) Listen(ctx context.Context, handler transport.Handler) error {
	t.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", t.port),
		Handler:           t.Router(handler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("http transport listening", "port", t.port)

	go func() {
		<-ctx.Done()
		slog.Info("http transport shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = t.server.Shutdown(shutdownCtx)
	}()

	if err := t.server.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("http listen: %w", err)
	}
	return nil
}

// handleSpeak processes a POST /v1/speak request.
//
// @Summary     Read a document aloud
// @Description Normalizes the document for speech, synthesizes it chunk by chunk and returns
// @Description base64 audio with word timings. Send JSON, or the raw document bytes with settings
// @Description in X-Readaloud-* headers.
// @Tags        speak
// @Accept      json
// @Accept      plain
// @Accept      text/markdown
// @Accept      application/pdf
// @Produce     json
// @Param       request  body      SpeakRequest  true  "Document text and settings (JSON). For raw uploads, POST the document bytes directly."
// @Param       X-Readaloud-TTS-Key            header  string  false  "TTS API key (raw uploads)"
// @Param       X-Readaloud-Gateway-Key        header  string  false  "AI gateway API key (raw uploads)"
// @Param       X-Readaloud-Transcription-Key  header  string  false  "Transcription API key (raw uploads)"
// @Param       X-Readaloud-Voice              header  string  false  "Voice identifier (raw uploads)"
// @Param       X-Readaloud-Fallback           header  bool    false  "Use transcription fallback for timings (raw uploads)"
// @Success     200  {object}  speech.Outcome  "Audio and word timings"
// @Failure     400  {string}  string          "Invalid request body or headers"
// @Failure     413  {string}  string          "Request body too large"
// @Failure     415  {string}  string          "Unsupported document type"
// @Failure     422  {object}  speech.Outcome  "Missing credentials, empty or oversized document"
// @Failure     502  {object}  speech.Outcome  "A remote service failed"
// @Failure     503  {object}  speech.Outcome  "The run was cancelled"
// @Router      /v1/speak [post]
func (t *Transport) handleSpeak(w http.ResponseWriter, r *http.Request, handler transport.Handler) {
	r.Body = http.MaxBytesReader(w, r.Body, t.maxBody)

	text, settings, status, err := t.decode(r)
	if err != nil {
		http.Error(w, err.Error(), status)
		return
	}

	outcome := handler(r.Context(), text, settings)

	status = http.StatusOK
	if outcome.Failed != nil {
		status = transport.HTTPStatus(outcome.Failed.Kind)
		slog.Warn("speak request failed",
			"request_id", chimiddleware.GetReqID(r.Context()),
			"run_id", outcome.Failed.RunID,
			"kind", outcome.Failed.Kind,
			"status", status)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(outcome)
}

// decode reads the document and settings from r. On error it also returns
// the status code to answer with.
func (t *Transport) decode(r *http.Request) (string, speech.Settings, int, error) {
	contentType := r.Header.Get("Content-Type")
	if isJSON(contentType) {
		var req SpeakRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return "", speech.Settings{}, bodyStatus(err), fmt.Errorf("invalid json: %w", err)
		}
		return req.Text, req.Settings, 0, nil
	}

	docType, err := document.TypeFromContentType(contentType)
	if err != nil {
		return "", speech.Settings{}, http.StatusUnsupportedMediaType, err
	}

	settings, err := settingsFromHeaders(r.Header)
	if err != nil {
		return "", speech.Settings{}, http.StatusBadRequest, err
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		return "", speech.Settings{}, bodyStatus(err), fmt.Errorf("reading document: %w", err)
	}

	text, err := document.Extract(data, docType)
	if err != nil {
		return "", speech.Settings{}, http.StatusBadRequest, err
	}
	return text, settings, 0, nil
}

func settingsFromHeaders(h http.Header) (speech.Settings, error) {
	s := speech.Settings{
		TTSAPIKey:           h.Get(HeaderTTSKey),
		GatewayAPIKey:       h.Get(HeaderGatewayKey),
		TranscriptionAPIKey: h.Get(HeaderTranscriptionKey),
		Voice:               h.Get(HeaderVoice),
	}
	if v := h.Get(HeaderFallback); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return speech.Settings{}, fmt.Errorf("invalid %s header: %q", HeaderFallback, v)
		}
		s.UseTranscriptionFallback = speech.Bool(b)
	}
	return s, nil
}

func isJSON(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	return err == nil && mt == "application/json"
}

func bodyStatus(err error) int {
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}

// Close gracefully shuts down the HTTP server.
func (t *Transport) Close() error {
	if t.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return t.server.Shutdown(ctx)
	}
	return nil
}
