// Package chunk splits normalized text into bounded pieces for TTS submission.
//
// Chunks break at sentence boundaries where possible. A sentence longer than
// the limit is split between words, and a single word longer than the limit
// is cut at the limit, so no content is ever dropped.
package chunk

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultMaxLen is the default chunk length limit in characters.
const DefaultMaxLen = 1800

// Split returns the ordered chunks covering text. Each chunk is at most
// maxLen characters (runes). Whitespace between sentences is collapsed to a
// single space. Blank input yields no chunks.
func Split(text string, maxLen int) []string {
	if maxLen <= 0 {
		maxLen = DefaultMaxLen
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var (
		chunks  []string
		current strings.Builder
		curLen  int
	)
	flush := func() {
		if curLen > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
			curLen = 0
		}
	}

	for _, sentence := range Sentences(text) {
		for _, piece := range fit(sentence, maxLen) {
			n := utf8.RuneCountInString(piece)
			if curLen > 0 && curLen+1+n > maxLen {
				flush()
			}
			if curLen > 0 {
				current.WriteByte(' ')
				curLen++
			}
			current.WriteString(piece)
			curLen += n
		}
	}
	flush()
	return chunks
}

// Sentences splits text after '.', '!' or '?' when followed by whitespace.
// Each returned sentence is trimmed and non-empty.
func Sentences(text string) []string {
	var (
		out   []string
		start int
	)
	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if (r == '.' || r == '!' || r == '?') && i+1 < len(runes) && unicode.IsSpace(runes[i+1]) {
			if s := strings.TrimSpace(string(runes[start : i+1])); s != "" {
				out = append(out, s)
			}
			start = i + 1
		}
	}
	if s := strings.TrimSpace(string(runes[start:])); s != "" {
		out = append(out, s)
	}
	return out
}

// fit breaks a sentence that exceeds maxLen into word runs of at most maxLen.
// Whitespace inside an oversized sentence collapses to single spaces.
func fit(sentence string, maxLen int) []string {
	if utf8.RuneCountInString(sentence) <= maxLen {
		return []string{sentence}
	}

	var (
		pieces  []string
		current strings.Builder
		curLen  int
	)
	for _, word := range strings.Fields(sentence) {
		for _, part := range hardCut(word, maxLen) {
			n := utf8.RuneCountInString(part)
			if curLen > 0 && curLen+1+n > maxLen {
				pieces = append(pieces, current.String())
				current.Reset()
				curLen = 0
			}
			if curLen > 0 {
				current.WriteByte(' ')
				curLen++
			}
			current.WriteString(part)
			curLen += n
		}
	}
	if curLen > 0 {
		pieces = append(pieces, current.String())
	}
	return pieces
}

// hardCut splits word into consecutive runs of maxLen runes.
func hardCut(word string, maxLen int) []string {
	runes := []rune(word)
	if len(runes) <= maxLen {
		return []string{word}
	}
	var parts []string
	for i := 0; i < len(runes); i += maxLen {
		end := min(i+maxLen, len(runes))
		parts = append(parts, string(runes[i:end]))
	}
	return parts
}
