package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/Dias221467/FoodRescue/internal/config"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioStore wraps MinIO/S3 interactions for food item images.
type MinioStore struct {
	client  *minio.Client
	bucket  string
	baseURL string
}

// NewMinioStore creates a MinIO client from the Config.
func NewMinioStore(cfg *config.Config) (*MinioStore, error) {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio: %w", err)
	}

	base := cfg.MinioPublicURL
	if base == "" {
		scheme := "http"
		if cfg.MinioUseSSL {
			scheme = "https"
		}
		base = fmt.Sprintf("%s://%s", scheme, cfg.MinioEndpoint)
	}
	return &MinioStore{
		client:  client,
		bucket:  cfg.MinioBucket,
		baseURL: strings.TrimRight(base, "/") + "/" + cfg.MinioBucket + "/",
	}, nil
}

// EnsureBucket makes sure the image bucket exists before use.
func (s *MinioStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("make bucket %s: %w", s.bucket, err)
		}
	}
	return nil
}

func (s *MinioStore) Save(ctx context.Context, contentType string, r io.Reader, size int64) (string, error) {
	if size > MaxImageSize {
		return "", fmt.Errorf("image exceeds %d bytes", MaxImageSize)
	}
	name, err := objectName(contentType)
	if err != nil {
		return "", err
	}
	opts := minio.PutObjectOptions{ContentType: contentType}
	if _, err := s.client.PutObject(ctx, s.bucket, name, r, size, opts); err != nil {
		return "", fmt.Errorf("upload image: %w", err)
	}
	return s.baseURL + name, nil
}

func (s *MinioStore) Delete(ctx context.Context, url string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, nameFromURL(url), minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove image: %w", err)
	}
	return nil
}
