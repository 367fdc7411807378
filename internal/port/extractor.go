package port

import "context"

// TextExtractor turns raw file bytes into plain text.
type TextExtractor interface {
	Extract(ctx context.Context, data []byte, mimeType string) (string, error)
}
