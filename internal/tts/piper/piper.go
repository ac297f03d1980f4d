// Package piper implements the TTS Synthesizer using a Piper Wyoming protocol server.
//
// Piper is a fast, local neural text-to-speech system. The linuxserver/piper
// container exposes the Wyoming protocol on TCP port 10200. Piper does not
// report word timings, so results carry only audio and its measured duration.
//
// Wyoming protocol format (per event):
//
//	<json_length> <payload_length>\n
//	<json_bytes>\n
//	<payload_bytes>   (if payload_length > 0)
package piper

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/nadzzz/readaloud/internal/audio"
	"github.com/nadzzz/readaloud/internal/config"
	"github.com/nadzzz/readaloud/internal/speech"
	"github.com/nadzzz/readaloud/internal/tts"
)

const (
	serviceName  = "piper"
	defaultModel = "en_US-lessac-medium"

	// Upper bounds on one Wyoming frame.
	maxEventJSON    = 1 << 20
	maxEventPayload = 16 << 20
)

// defaultVoices maps logical voice names to Piper voice models.
var defaultVoices = map[string]string{
	speech.DefaultVoice: defaultModel,
	"en-GB-standard":    "en_GB-alan-medium",
	"fr-FR-standard":    "fr_FR-siwis-medium",
	"de-DE-standard":    "de_DE-thorsten-medium",
	"es-ES-standard":    "es_ES-mls_10246-low",
}

// Synthesizer implements tts.Synthesizer using the Wyoming protocol.
type Synthesizer struct {
	endpoint string            // host:port of the Piper Wyoming server
	voices   map[string]string // lower-cased logical voice -> Piper model
}

// New creates a new Piper synthesizer from config.
func New(cfg config.PiperConfig) *Synthesizer {
	voices := make(map[string]string, len(defaultVoices)+len(cfg.Voices))
	for k, v := range defaultVoices {
		voices[strings.ToLower(k)] = v
	}
	// viper lower-cases map keys, so lookups are case-insensitive.
	for k, v := range cfg.Voices {
		voices[strings.ToLower(k)] = v
	}

	endpoint := strings.TrimPrefix(cfg.Endpoint, "tcp://")
	endpoint = strings.TrimPrefix(endpoint, "http://")

	return &Synthesizer{endpoint: endpoint, voices: voices}
}

// Name returns the backend identifier.
func (s *Synthesizer) Name() string { return serviceName }

// Keyless reports that Piper needs no API key.
func (s *Synthesizer) Keyless() bool { return true }

// voiceModel resolves a logical voice name to a Piper model.
func (s *Synthesizer) voiceModel(voice string) string {
	if voice == "" {
		voice = speech.DefaultVoice
	}
	if m, ok := s.voices[strings.ToLower(voice)]; ok {
		return m
	}
	return voice
}

// Synthesize sends text to the Piper server and returns synthesized audio as WAV.
func (s *Synthesizer) Synthesize(ctx context.Context, text string, opts tts.SynthesizeOpts) (*tts.SynthesizeResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, &speech.Error{Kind: speech.KindEmptyResult, Service: serviceName, Message: "empty text for synthesis"}
	}
	if s.endpoint == "" {
		return nil, speech.ConfigurationError("no piper endpoint configured")
	}

	voice := s.voiceModel(opts.Voice)
	slog.Debug("piper synthesize", "text_length", len(text), "voice", voice, "endpoint", s.endpoint)

	dialer := net.Dialer{Timeout: 10 * time.Second}
	conn, err := dialer.DialContext(ctx, "tcp", s.endpoint)
	if err != nil {
		return nil, speech.TransportError(ctx, serviceName, "connecting", err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	} else {
		_ = conn.SetDeadline(time.Now().Add(30 * time.Second))
	}

	synthEvent := wyomingEvent{
		Type: "synthesize",
		Data: map[string]any{
			"text":  text,
			"voice": map[string]any{"name": voice},
		},
	}
	if err := writeEvent(conn, synthEvent, nil); err != nil {
		return nil, speech.TransportError(ctx, serviceName, "sending synthesize event", err)
	}

	// audio-start -> audio-chunk* -> audio-stop
	r := bufio.NewReader(conn)
	var (
		pcm    bytes.Buffer
		format = audio.Format{SampleRate: 22050, Channels: 1, BytesPerSample: 2}
	)
	for {
		evt, payload, err := readEvent(r)
		if err != nil {
			return nil, speech.TransportError(ctx, serviceName, "reading event", err)
		}

		switch evt.Type {
		case "audio-start":
			if rate, ok := evt.Data["rate"].(float64); ok {
				format.SampleRate = int(rate)
			}
			if ch, ok := evt.Data["channels"].(float64); ok {
				format.Channels = int(ch)
			}
			if w, ok := evt.Data["width"].(float64); ok {
				format.BytesPerSample = int(w)
			}
			slog.Debug("piper audio-start", "rate", format.SampleRate, "channels", format.Channels, "width", format.BytesPerSample)

		case "audio-chunk":
			pcm.Write(payload)

		case "audio-stop":
			var duration float64
			if br := format.ByteRate(); br > 0 {
				duration = float64(pcm.Len()) / float64(br)
			}
			slog.Debug("piper audio-stop", "pcm_bytes", pcm.Len(), "duration", duration)
			return &tts.SynthesizeResult{
				Audio:       audio.PCMToWAV(pcm.Bytes(), format.SampleRate, format.Channels, format.BytesPerSample),
				ContentType: "audio/wav",
				SampleRate:  format.SampleRate,
				Channels:    format.Channels,
				Duration:    duration,
			}, nil

		case "error":
			msg := "unknown error"
			if t, ok := evt.Data["text"].(string); ok {
				msg = t
			}
			return nil, &speech.Error{Kind: speech.KindRemoteService, Service: serviceName, Message: msg}

		default:
			slog.Debug("piper unknown event", "type", evt.Type)
		}
	}
}

// Close is a no-op; connections are per-request.
func (s *Synthesizer) Close() error { return nil }

type wyomingEvent struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data,omitempty"`
}

// writeEvent frames evt and payload as one Wyoming event and writes it in a
// single call.
func writeEvent(w io.Writer, evt wyomingEvent, payload []byte) error {
	header, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshalling event: %w", err)
	}

	var frame bytes.Buffer
	fmt.Fprintf(&frame, "%d %d\n", len(header), len(payload))
	frame.Write(header)
	frame.WriteByte('\n')
	frame.Write(payload)

	_, err = w.Write(frame.Bytes())
	return err
}

// readEvent reads one Wyoming event and its payload.
func readEvent(r *bufio.Reader) (*wyomingEvent, []byte, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return nil, nil, fmt.Errorf("reading header: %w", err)
	}

	fields := strings.Fields(line)
	if len(fields) != 2 {
		return nil, nil, fmt.Errorf("invalid wyoming header: %q", line)
	}
	jsonLen, err := strconv.Atoi(fields[0])
	if err != nil {
		return nil, nil, fmt.Errorf("parsing json length: %w", err)
	}
	payloadLen, err := strconv.Atoi(fields[1])
	if err != nil {
		return nil, nil, fmt.Errorf("parsing payload length: %w", err)
	}
	if jsonLen < 0 || jsonLen > maxEventJSON || payloadLen < 0 || payloadLen > maxEventPayload {
		return nil, nil, fmt.Errorf("wyoming frame lengths out of range: %q", strings.TrimSpace(line))
	}

	// JSON body plus its trailing newline.
	body := make([]byte, jsonLen+1)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, nil, fmt.Errorf("reading json: %w", err)
	}

	var evt wyomingEvent
	if err := json.Unmarshal(body[:jsonLen], &evt); err != nil {
		return nil, nil, fmt.Errorf("unmarshalling event: %w", err)
	}

	var payload []byte
	if payloadLen > 0 {
		payload = make([]byte, payloadLen)
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, nil, fmt.Errorf("reading payload: %w", err)
		}
	}
	return &evt, payload, nil
}
