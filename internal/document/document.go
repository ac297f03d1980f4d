// Package document turns uploaded files into the document text the pipeline
// reads aloud. Plain text and markdown pass through unchanged (markup is the
// normalizer's job); PDFs are reduced to their page text.
package document

import (
	"bytes"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

// Type identifies a supported document format.
type Type string

const (
	TypeText     Type = "txt"
	TypeMarkdown Type = "md"
	TypePDF      Type = "pdf"
)

// ErrUnsupported is returned for formats the loader cannot read.
var ErrUnsupported = errors.New("unsupported document type")

// TypeFromName infers the document type from a file name's extension.
func TypeFromName(name string) (Type, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".txt", ".text", "":
		return TypeText, nil
	case ".md", ".markdown":
		return TypeMarkdown, nil
	case ".pdf":
		return TypePDF, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupported, filepath.Ext(name))
	}
}

// TypeFromContentType infers the document type from a MIME type.
func TypeFromContentType(contentType string) (Type, error) {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrUnsupported, contentType)
	}
	switch mt {
	case "text/plain":
		return TypeText, nil
	case "text/markdown", "text/x-markdown":
		return TypeMarkdown, nil
	case "application/pdf":
		return TypePDF, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupported, mt)
	}
}

// Load reads the file at path and extracts its text.
func Load(path string) (string, error) {
	t, err := TypeFromName(path)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading document: %w", err)
	}
	return Extract(data, t)
}

// Extract returns the text content of data.
func Extract(data []byte, t Type) (string, error) {
	switch t {
	case TypeText, TypeMarkdown:
		if !utf8.Valid(data) {
			return "", fmt.Errorf("document is not valid UTF-8")
		}
		return string(bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))), nil
	case TypePDF:
		return extractPDF(data)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupported, t)
	}
}

// extractPDF returns the plain text of every page. The pdf package panics on
// some malformed inputs; those panics are returned as errors.
func extractPDF(data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("opening pdf: %w", err)
	}

	var buf strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("reading pdf page %d: %w", i, err)
		}
		buf.WriteString(pageText)
		buf.WriteString("\n\n")
	}
	return strings.TrimSpace(buf.String()), nil
}
