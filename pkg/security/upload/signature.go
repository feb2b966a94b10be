package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
)

// SniffLength is the number of leading bytes needed to recognise every
// supported format (WEBP needs 12).
const SniffLength = 12

// Format is an image format recognised by its magic bytes.
type Format string

const (
	FormatJPEG Format = "jpeg"
	FormatPNG  Format = "png"
	FormatGIF  Format = "gif"
	FormatWEBP Format = "webp"
)

// MIMEType returns the canonical content type for f.
func (f Format) MIMEType() string {
	return "image/" + string(f)
}

var (
	jpegMagic = []byte{0xFF, 0xD8, 0xFF}
	pngMagic  = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}
	gifMagic  = []byte{0x47, 0x49, 0x46}
	riffMagic = []byte{0x52, 0x49, 0x46, 0x46}
	webpMagic = []byte{0x57, 0x45, 0x42, 0x50}
)

// Sniff identifies the format from a byte prefix. Buffers shorter than a
// signature never match that signature.
func Sniff(b []byte) (Format, bool) {
	switch {
	case bytes.HasPrefix(b, jpegMagic):
		return FormatJPEG, true
	case bytes.HasPrefix(b, pngMagic):
		return FormatPNG, true
	case bytes.HasPrefix(b, gifMagic):
		return FormatGIF, true
	case len(b) >= 12 && bytes.Equal(b[0:4], riffMagic) && bytes.Equal(b[8:12], webpMagic):
		return FormatWEBP, true
	}
	return "", false
}

// MatchSignature reports whether b starts with a supported image signature.
func MatchSignature(b []byte) bool {
	_, ok := Sniff(b)
	return ok
}

// ReadPrefix reads at most SniffLength bytes from r. A short stream is not an
// error; the returned slice is simply shorter.
//
// The read runs on its own goroutine so ctx can bound it; a reader that
// ignores cancellation keeps that goroutine until the read returns.
func ReadPrefix(ctx context.Context, r io.Reader) ([]byte, error) {
	type result struct {
		buf []byte
		err error
	}
	done := make(chan result, 1)

	go func() {
		buf := make([]byte, SniffLength)
		n, err := io.ReadFull(r, buf)
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			err = nil
		}
		done <- result{buf: buf[:n], err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-done:
		if res.err != nil {
			return nil, fmt.Errorf("read upload prefix: %w", res.err)
		}
		return res.buf, nil
	}
}

// ValidateSignature reads the byte prefix of r and reports whether it is a
// supported image. A truncated stream is "not an image", never inconclusive.
func ValidateSignature(ctx context.Context, r io.Reader) (bool, error) {
	prefix, err := ReadPrefix(ctx, r)
	if err != nil {
		return false, err
	}
	return MatchSignature(prefix), nil
}
