// Package storage keeps uploaded food item images either in an S3-compatible
// bucket or on local disk.
package storage

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// MaxImageSize is the largest accepted upload.
const MaxImageSize = 10 << 20

var ErrUnsupportedType = errors.New("only JPEG, PNG and WebP images are allowed")

var allowedTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

// ImageStore persists an image and hands back the URL clients should use.
type ImageStore interface {
	Save(ctx context.Context, contentType string, r io.Reader, size int64) (string, error)
	Delete(ctx context.Context, url string) error
}

// ExtensionFor returns the file extension for an allowed image type.
func ExtensionFor(contentType string) (string, error) {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	ext, ok := allowedTypes[ct]
	if !ok {
		return "", ErrUnsupportedType
	}
	return ext, nil
}

func objectName(contentType string) (string, error) {
	ext, err := ExtensionFor(contentType)
	if err != nil {
		return "", err
	}
	return uuid.NewString() + ext, nil
}

// nameFromURL returns the last path element of an image URL.
func nameFromURL(url string) string {
	return filepath.Base(strings.TrimRight(url, "/"))
}
