package extractor

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"legalrag/internal/domain"
	"legalrag/internal/port"
)

const (
	MimePDF      = "application/pdf"
	MimeText     = "text/plain"
	MimeMarkdown = "text/markdown"
	MimeJSON     = "application/json"
)

// MultiExtractor dispatches to an extractor by MIME type. Unknown or generic
// types are sniffed from the content first.
type MultiExtractor struct {
	byType map[string]port.TextExtractor
	text   port.TextExtractor
}

func NewMultiExtractor() *MultiExtractor {
	text := NewPlainTextExtractor()
	return &MultiExtractor{
		byType: map[string]port.TextExtractor{
			MimePDF:  NewPDFExtractor(),
			MimeJSON: text,
		},
		text: text,
	}
}

// Register adds or replaces the extractor for a MIME type.
func (m *MultiExtractor) Register(mimeType string, e port.TextExtractor) {
	m.byType[mimeType] = e
}

func (m *MultiExtractor) Extract(ctx context.Context, data []byte, mimeType string) (string, error) {
	mediaType := normalize(mimeType)
	if mediaType == "" || mediaType == "application/octet-stream" {
		mediaType = normalize(http.DetectContentType(data))
	}

	if e, ok := m.byType[mediaType]; ok {
		return e.Extract(ctx, data, mediaType)
	}
	if strings.HasPrefix(mediaType, "text/") {
		return m.text.Extract(ctx, data, mediaType)
	}

	return "", fmt.Errorf("%w: %s", domain.ErrUnsupportedFormat, mimeType)
}

// MimeTypeFromPath guesses a MIME type from a file extension.
func MimeTypeFromPath(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".md", ".markdown":
		return MimeMarkdown
	case ".txt":
		return MimeText
	case ".pdf":
		return MimePDF
	}
	return mime.TypeByExtension(ext)
}

func normalize(mimeType string) string {
	if mimeType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(mimeType))
	}
	return mediaType
}
