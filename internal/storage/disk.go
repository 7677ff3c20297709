package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// DiskStore writes images into a local directory served under /uploads/.
type DiskStore struct {
	dir     string
	baseURL string
}

func NewDiskStore(dir string) *DiskStore {
	return &DiskStore{dir: dir, baseURL: "/uploads/"}
}

// Dir is the directory the HTTP file server should expose.
func (s *DiskStore) Dir() string { return s.dir }

func (s *DiskStore) Save(ctx context.Context, contentType string, r io.Reader, size int64) (string, error) {
	name, err := objectName(contentType)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create upload folder: %w", err)
	}

	path := filepath.Join(s.dir, name)
	out, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	written, err := io.Copy(out, io.LimitReader(r, MaxImageSize+1))
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err == nil && written > MaxImageSize {
		err = fmt.Errorf("image exceeds %d bytes", MaxImageSize)
	}
	if err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to write file: %w", err)
	}

	logrus.WithFields(logrus.Fields{"file": name, "bytes": written}).Info("Image stored on disk")
	return s.baseURL + name, nil
}

func (s *DiskStore) Delete(ctx context.Context, url string) error {
	err := os.Remove(filepath.Join(s.dir, nameFromURL(url)))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}
