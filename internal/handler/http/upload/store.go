package upload

import (
	"context"
	"io"
	"log/slog"
)

// ImageStore persists accepted images. Delivery to an image CDN is outside
// this service; production wiring uses LogStore until a store is configured.
type ImageStore interface {
	Put(ctx context.Context, key, contentType string, r io.Reader) (int64, error)
}

// LogStore drains the image and logs its key. Nothing is kept.
type LogStore struct {
	Logger *slog.Logger
}

// Put reads r to the end and returns the number of bytes consumed.
func (s LogStore) Put(ctx context.Context, key, contentType string, r io.Reader) (int64, error) {
	n, err := io.Copy(io.Discard, r)
	if err != nil {
		return n, err
	}
	s.Logger.InfoContext(ctx, "image accepted",
		slog.String("key", key),
		slog.String("content_type", contentType),
		slog.Int64("bytes", n))
	return n, nil
}
