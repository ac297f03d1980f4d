// Package audio joins per-chunk audio buffers into one payload.
//
// Compressed formats (MP3, Opus, AAC) are frame based and can be joined by
// byte concatenation. WAV buffers each carry their own RIFF header, so they
// are unwrapped to PCM, joined, and rewrapped with a single header.
package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

// ErrNotWAV is returned when a buffer does not start with a RIFF/WAVE header.
var ErrNotWAV = errors.New("not a RIFF/WAVE buffer")

// Format describes a PCM stream.
type Format struct {
	SampleRate     int
	Channels       int
	BytesPerSample int
}

// ByteRate returns the number of PCM bytes per second of audio.
func (f Format) ByteRate() int {
	return f.SampleRate * f.Channels * f.BytesPerSample
}

// IsWAV reports whether contentType names a WAV container.
func IsWAV(contentType string) bool {
	ct := strings.ToLower(contentType)
	return strings.Contains(ct, "wav") || strings.Contains(ct, "wave")
}

// Concat joins parts in order. WAV parts must share one PCM format.
func Concat(contentType string, parts [][]byte) ([]byte, error) {
	if !IsWAV(contentType) {
		return bytes.Join(parts, nil), nil
	}

	var (
		pcm    bytes.Buffer
		format Format
	)
	for i, part := range parts {
		f, data, err := ParseWAV(part)
		if err != nil {
			return nil, fmt.Errorf("chunk %d: %w", i, err)
		}
		if i == 0 {
			format = f
		} else if f != format {
			return nil, fmt.Errorf("chunk %d: format %+v differs from %+v", i, f, format)
		}
		pcm.Write(data)
	}
	if len(parts) == 0 {
		return nil, nil
	}
	return PCMToWAV(pcm.Bytes(), format.SampleRate, format.Channels, format.BytesPerSample), nil
}

// Duration returns the playback length in seconds of a WAV buffer, or 0 for
// any other content type.
func Duration(contentType string, data []byte) float64 {
	if !IsWAV(contentType) {
		return 0
	}
	f, pcm, err := ParseWAV(data)
	if err != nil || f.ByteRate() == 0 {
		return 0
	}
	return float64(len(pcm)) / float64(f.ByteRate())
}

// ParseWAV walks the RIFF chunks of a WAV buffer and returns its PCM format
// and the payload of the "data" chunk.
func ParseWAV(b []byte) (Format, []byte, error) {
	if len(b) < 12 || string(b[0:4]) != "RIFF" || string(b[8:12]) != "WAVE" {
		return Format{}, nil, ErrNotWAV
	}

	var (
		f       Format
		haveFmt bool
	)
	pos := 12
	for pos+8 <= len(b) {
		id := string(b[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(b[pos+4 : pos+8]))
		body := pos + 8
		end := body + size
		if end > len(b) {
			// Streams written before the final size was known carry a bogus
			// length; take what is there.
			end = len(b)
		}

		switch id {
		case "fmt ":
			if end-body < 16 {
				return Format{}, nil, fmt.Errorf("short fmt chunk (%d bytes)", end-body)
			}
			f.Channels = int(binary.LittleEndian.Uint16(b[body+2 : body+4]))
			f.SampleRate = int(binary.LittleEndian.Uint32(b[body+4 : body+8]))
			f.BytesPerSample = int(binary.LittleEndian.Uint16(b[body+14:body+16])) / 8
			haveFmt = true
		case "data":
			if !haveFmt {
				return Format{}, nil, errors.New("data chunk before fmt chunk")
			}
			return f, b[body:end], nil
		}

		// Chunks are word aligned.
		pos = end + size%2
	}
	return Format{}, nil, errors.New("no data chunk")
}

// PCMToWAV wraps raw little-endian PCM data in a WAV container.
func PCMToWAV(pcm []byte, sampleRate, channels, bytesPerSample int) []byte {
	dataLen := len(pcm)
	fileLen := 36 + dataLen // 44-byte header minus 8 bytes for RIFF header = 36

	buf := &bytes.Buffer{}
	buf.Grow(44 + dataLen)

	// RIFF header
	buf.WriteString("RIFF")
	_ = binary.Write(buf, binary.LittleEndian, uint32(fileLen))
	buf.WriteString("WAVE")

	// fmt subchunk
	buf.WriteString("fmt ")
	_ = binary.Write(buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(buf, binary.LittleEndian, uint16(1)) // PCM
	_ = binary.Write(buf, binary.LittleEndian, uint16(channels))
	_ = binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	byteRate := sampleRate * channels * bytesPerSample
	_ = binary.Write(buf, binary.LittleEndian, uint32(byteRate))
	blockAlign := channels * bytesPerSample
	_ = binary.Write(buf, binary.LittleEndian, uint16(blockAlign))
	_ = binary.Write(buf, binary.LittleEndian, uint16(bytesPerSample*8))

	// data subchunk
	buf.WriteString("data")
	_ = binary.Write(buf, binary.LittleEndian, uint32(dataLen))
	buf.Write(pcm)

	return buf.Bytes()
}
