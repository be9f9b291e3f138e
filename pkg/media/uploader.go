// Package media stores image attachments and profile pictures sent as data
// URIs and returns the public URL they are served from.
package media

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

var (
	ErrInvalidDataURI = errors.New("invalid data URI")
	ErrNotImage       = errors.New("payload is not an image")
	ErrTooLarge       = errors.New("payload too large")
)

// Uploader turns an image reference into a stored public URL.
type Uploader interface {
	Upload(ctx context.Context, image string) (string, error)
}

// LocalUploader writes images under dir and serves them from baseURL.
type LocalUploader struct {
	dir      string
	baseURL  string
	maxBytes int64
}

// NewLocalUploader creates dir if needed. baseURL is the URL prefix dir is
// served under, e.g. "http://localhost:3000/uploads".
func NewLocalUploader(dir, baseURL string, maxBytes int64) (*LocalUploader, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &LocalUploader{dir: dir, baseURL: strings.TrimRight(baseURL, "/"), maxBytes: maxBytes}, nil
}

// Upload stores a base64 data URI and returns its URL. http(s) URLs are
// already hosted and come back unchanged.
func (u *LocalUploader) Upload(ctx context.Context, image string) (string, error) {
	if strings.HasPrefix(image, "http://") || strings.HasPrefix(image, "https://") {
		return image, nil
	}

	data, err := DecodeDataURI(image)
	if err != nil {
		return "", err
	}
	if u.maxBytes > 0 && int64(len(data)) > u.maxBytes {
		return "", ErrTooLarge
	}

	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") {
		return "", fmt.Errorf("%w: detected %s", ErrNotImage, mt.String())
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}

	name := uuid.NewString() + mt.Extension()
	if err := os.WriteFile(filepath.Join(u.dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("store upload: %w", err)
	}
	return u.baseURL + "/" + name, nil
}

// DecodeDataURI returns the payload of a base64 "data:<type>;base64,<data>"
// URI.
func DecodeDataURI(uri string) ([]byte, error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return nil, ErrInvalidDataURI
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok || !strings.HasSuffix(meta, ";base64") {
		return nil, ErrInvalidDataURI
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDataURI, err)
	}
	if len(data) == 0 {
		return nil, ErrInvalidDataURI
	}
	return data, nil
}
