package tts

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nadzzz/readaloud/internal/audio"
	"github.com/nadzzz/readaloud/internal/speech"
)

// Combined is the stitched output of a multi-chunk synthesis run.
type Combined struct {
	Audio       []byte
	ContentType string
	Words       []speech.WordTiming

	// Duration is the summed measured duration, 0 if any chunk was unmeasured.
	Duration float64
}

// SynthesizeAll synthesizes chunks strictly in order and joins the results.
//
// A running offset starts at zero. Every word a chunk returns is shifted by
// the offset. After a chunk that returned words, the offset becomes the end
// of the last emitted word. After a chunk with no words the offset advances by
// the chunk's measured duration if the backend reported one, and otherwise
// stays where it was.
//
// Any chunk failure aborts the run; no partial result is returned.
func SynthesizeAll(ctx context.Context, s Synthesizer, chunks []string, opts SynthesizeOpts) (*Combined, error) {
	if len(chunks) == 0 {
		return nil, &speech.Error{Kind: speech.KindEmptyResult, Service: "tts", Message: "nothing to synthesize"}
	}

	var (
		buffers     [][]byte
		words       []speech.WordTiming
		contentType string
		offset      float64
		total       float64
		measured    = true
	)

	for i, text := range chunks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		res, err := s.Synthesize(ctx, text, opts)
		if err != nil {
			return nil, fmt.Errorf("synthesizing chunk %d/%d: %w", i+1, len(chunks), err)
		}

		if i == 0 {
			contentType = res.ContentType
		}
		buffers = append(buffers, res.Audio)

		for _, w := range res.Words {
			words = append(words, w.Shift(offset))
		}

		switch {
		case len(res.Words) > 0:
			offset = words[len(words)-1].End
		case res.Duration > 0:
			offset += res.Duration
		default:
			slog.Debug("chunk returned no timings, offset not advanced", "chunk", i, "offset", offset)
		}

		if res.Duration > 0 {
			total += res.Duration
		} else {
			measured = false
		}

		slog.Debug("chunk synthesized",
			"chunk", i,
			"chars", len(text),
			"audio_bytes", len(res.Audio),
			"words", len(res.Words),
			"offset", offset)
	}

	joined, err := audio.Concat(contentType, buffers)
	if err != nil {
		return nil, &speech.Error{Kind: speech.KindRemoteService, Service: s.Name(), Message: "joining chunk audio", Cause: err}
	}

	if !measured {
		total = 0
	}
	return &Combined{
		Audio:       joined,
		ContentType: contentType,
		Words:       words,
		Duration:    total,
	}, nil
}

// Result converts c into the transportable speech.Result.
func (c *Combined) Result() speech.Result {
	return speech.NewResult(c.Audio, c.ContentType, c.Words, c.Duration)
}
