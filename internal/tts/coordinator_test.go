package tts

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadzzz/readaloud/internal/audio"
	"github.com/nadzzz/readaloud/internal/speech"
)

// fakeSynth returns canned results keyed by chunk text.
type fakeSynth struct {
	results map[string]*SynthesizeResult
	errs    map[string]error
	calls   []string
	opts    []SynthesizeOpts
}

func (f *fakeSynth) Name() string { return "fake" }

func (f *fakeSynth) Synthesize(_ context.Context, text string, opts SynthesizeOpts) (*SynthesizeResult, error) {
	f.calls = append(f.calls, text)
	f.opts = append(f.opts, opts)
	if err := f.errs[text]; err != nil {
		return nil, err
	}
	return f.results[text], nil
}

func (f *fakeSynth) Close() error { return nil }

func mp3(words ...speech.WordTiming) func(data string) *SynthesizeResult {
	return func(data string) *SynthesizeResult {
		return &SynthesizeResult{Audio: []byte(data), ContentType: "audio/mpeg", Words: words}
	}
}

func TestSynthesizeAll_OffsetsSecondChunk(t *testing.T) {
	s := &fakeSynth{results: map[string]*SynthesizeResult{
		"hi":    mp3(speech.WordTiming{Word: "hi", Start: 0, End: 0.5})("A"),
		"there": mp3(speech.WordTiming{Word: "there", Start: 0, End: 0.4})("B"),
	}}

	c, err := SynthesizeAll(context.Background(), s, []string{"hi", "there"}, SynthesizeOpts{Voice: "v1", APIKey: "k"})
	require.NoError(t, err)

	assert.Equal(t, []string{"hi", "there"}, s.calls)
	assert.Equal(t, "AB", string(c.Audio))
	assert.Equal(t, "audio/mpeg", c.ContentType)
	require.Len(t, c.Words, 2)
	assert.Equal(t, speech.WordTiming{Word: "hi", Start: 0, End: 0.5}, c.Words[0])
	assert.Equal(t, "there", c.Words[1].Word)
	assert.InDelta(t, 0.5, c.Words[1].Start, 1e-9)
	assert.InDelta(t, 0.9, c.Words[1].End, 1e-9)
	assert.Equal(t, SynthesizeOpts{Voice: "v1", APIKey: "k"}, s.opts[1])
}

func TestSynthesizeAll_MonotonicStarts(t *testing.T) {
	s := &fakeSynth{results: map[string]*SynthesizeResult{}}
	var chunks []string
	for _, name := range []string{"a", "b", "c", "d"} {
		chunks = append(chunks, name)
		s.results[name] = mp3(
			speech.WordTiming{Word: name + "1", Start: 0.1, End: 0.3},
			speech.WordTiming{Word: name + "2", Start: 0.35, End: 0.8},
		)(name)
	}

	c, err := SynthesizeAll(context.Background(), s, chunks, SynthesizeOpts{})
	require.NoError(t, err)
	require.Len(t, c.Words, 8)
	for i := 1; i < len(c.Words); i++ {
		assert.GreaterOrEqual(t, c.Words[i].Start, c.Words[i-1].Start)
	}
	assert.InDelta(t, 3.2, c.Words[7].End, 1e-9)
}

func TestSynthesizeAll_ZeroWordChunkKeepsStaleOffset(t *testing.T) {
	s := &fakeSynth{results: map[string]*SynthesizeResult{
		"one":   mp3(speech.WordTiming{Word: "one", Start: 0, End: 1})("1"),
		"quiet": mp3()("2"),
		"three": mp3(speech.WordTiming{Word: "three", Start: 0, End: 1})("3"),
	}}

	c, err := SynthesizeAll(context.Background(), s, []string{"one", "quiet", "three"}, SynthesizeOpts{})
	require.NoError(t, err)
	require.Len(t, c.Words, 2)
	// No duration was reported for "quiet", so "three" lands right after "one".
	assert.InDelta(t, 1.0, c.Words[1].Start, 1e-9)
	assert.Zero(t, c.Duration)
}

func TestSynthesizeAll_ZeroWordChunkAdvancesByMeasuredDuration(t *testing.T) {
	wav := func(seconds int) []byte { return audio.PCMToWAV(make([]byte, 200*seconds), 100, 1, 2) }
	s := &fakeSynth{results: map[string]*SynthesizeResult{
		"one": {Audio: wav(1), ContentType: "audio/wav", Duration: 1,
			Words: []speech.WordTiming{{Word: "one", Start: 0, End: 0.8}}},
		"quiet": {Audio: wav(2), ContentType: "audio/wav", Duration: 2},
		"three": {Audio: wav(1), ContentType: "audio/wav", Duration: 1,
			Words: []speech.WordTiming{{Word: "three", Start: 0.1, End: 0.6}}},
	}}

	c, err := SynthesizeAll(context.Background(), s, []string{"one", "quiet", "three"}, SynthesizeOpts{})
	require.NoError(t, err)
	require.Len(t, c.Words, 2)
	assert.InDelta(t, 2.9, c.Words[1].Start, 1e-9)
	assert.InDelta(t, 4.0, c.Duration, 1e-9)
	assert.InDelta(t, 4.0, audio.Duration("audio/wav", c.Audio), 1e-9)
}

func TestSynthesizeAll_ChunkFailureIsFatal(t *testing.T) {
	boom := speech.RemoteError("httpapi", 500, "down")
	s := &fakeSynth{
		results: map[string]*SynthesizeResult{"a": mp3()("A")},
		errs:    map[string]error{"b": boom},
	}

	c, err := SynthesizeAll(context.Background(), s, []string{"a", "b", "c"}, SynthesizeOpts{})
	assert.Nil(t, c)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"a", "b"}, s.calls)
}

func TestSynthesizeAll_NoChunks(t *testing.T) {
	_, err := SynthesizeAll(context.Background(), &fakeSynth{}, nil, SynthesizeOpts{})
	assert.ErrorIs(t, err, speech.ErrEmptyResult)
}

func TestSynthesizeAll_StopsWhenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := &fakeSynth{}
	_, err := SynthesizeAll(ctx, s, []string{"a"}, SynthesizeOpts{})
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Empty(t, s.calls)
}

func TestCombined_Result(t *testing.T) {
	c := &Combined{Audio: []byte("xyz"), ContentType: "audio/mpeg", Words: []speech.WordTiming{{Word: "a"}}}
	r := c.Result()
	assert.Equal(t, "eHl6", r.Audio)
	assert.Len(t, r.Words, 1)
}
