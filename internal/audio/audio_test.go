package audio

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConcat_CompressedIsByteJoin(t *testing.T) {
	out, err := Concat("audio/mpeg", [][]byte{[]byte("ab"), []byte("cd"), []byte("e")})
	require.NoError(t, err)
	assert.Equal(t, "abcde", string(out))
}

func TestConcat_WAVMergesPCM(t *testing.T) {
	a := PCMToWAV(bytes.Repeat([]byte{1}, 200), 100, 1, 2)
	b := PCMToWAV(bytes.Repeat([]byte{2}, 100), 100, 1, 2)

	out, err := Concat("audio/wav", [][]byte{a, b})
	require.NoError(t, err)

	f, pcm, err := ParseWAV(out)
	require.NoError(t, err)
	assert.Equal(t, Format{SampleRate: 100, Channels: 1, BytesPerSample: 2}, f)
	assert.Len(t, pcm, 300)
	assert.Equal(t, byte(1), pcm[0])
	assert.Equal(t, byte(2), pcm[299])
	assert.InDelta(t, 1.5, Duration("audio/wav", out), 1e-9)
}

func TestConcat_WAVFormatMismatch(t *testing.T) {
	a := PCMToWAV([]byte{0, 0}, 16000, 1, 2)
	b := PCMToWAV([]byte{0, 0}, 22050, 1, 2)

	_, err := Concat("audio/wav", [][]byte{a, b})
	assert.Error(t, err)
}

func TestConcat_WAVRejectsGarbage(t *testing.T) {
	_, err := Concat("audio/x-wav", [][]byte{[]byte("not audio")})
	assert.ErrorIs(t, err, ErrNotWAV)
}

func TestDuration(t *testing.T) {
	wav := PCMToWAV(make([]byte, 44100), 22050, 1, 2)
	assert.InDelta(t, 1.0, Duration("audio/wav", wav), 1e-9)
	assert.Zero(t, Duration("audio/mpeg", wav))
	assert.Zero(t, Duration("audio/wav", []byte("junk")))
}

func TestParseWAV_SkipsUnknownChunks(t *testing.T) {
	wav := PCMToWAV([]byte{9, 9, 9, 9}, 8000, 1, 2)
	// Insert a LIST chunk with an odd size between fmt and data.
	list := []byte{'L', 'I', 'S', 'T', 3, 0, 0, 0, 'a', 'b', 'c', 0}
	withList := append(append(append([]byte{}, wav[:36]...), list...), wav[36:]...)

	f, pcm, err := ParseWAV(withList)
	require.NoError(t, err)
	assert.Equal(t, 8000, f.SampleRate)
	assert.Equal(t, []byte{9, 9, 9, 9}, pcm)
}
