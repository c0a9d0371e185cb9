package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/mdhv11/cardwiz/config"
)

const maxDocumentSize = 20 * 1024 * 1024 // 20MB

var allowedDocumentExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
	".pdf":  true,
}

// BlobStorage stores uploaded documents and hands out read URLs.
type BlobStorage interface {
	UploadDocument(ctx context.Context, userID int64, filename string, reader io.Reader, size int64, contentType string) (string, error)
	PresignedURL(ctx context.Context, key string) (string, error)
	Bucket() string
}

// objectAPI is the slice of the MinIO client the storage layer actually uses.
type objectAPI interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	PresignedGetObject(ctx context.Context, bucketName, objectName string, expires time.Duration, reqParams url.Values) (*url.URL, error)
}

// MinioStorage is the MinIO-backed BlobStorage. A missing bucket on upload is
// a supported recovery path: create the bucket, then retry the put once. The
// upload body is buffered so the retry replays it from the start.
type MinioStorage struct {
	client objectAPI
	bucket string
	config *config.MinioConfig
}

func NewMinioStorage(cfg *config.MinioConfig) (*MinioStorage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	return &MinioStorage{
		client: client,
		bucket: cfg.Bucket,
		config: cfg,
	}, nil
}

// EnsureBucket creates the bucket if it doesn't exist
func (s *MinioStorage) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}

	if !exists {
		err = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{})
		if err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return nil
}

// UploadDocument validates the file and stores it under a generated key.
func (s *MinioStorage) UploadDocument(ctx context.Context, userID int64, filename string, reader io.Reader, size int64, contentType string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedDocumentExtensions[ext] {
		return "", fmt.Errorf("%w: invalid document type, allowed: jpg, jpeg, png, webp, pdf", ErrValidation)
	}
	if size <= 0 {
		return "", fmt.Errorf("%w: file is empty", ErrValidation)
	}
	if size > maxDocumentSize {
		return "", fmt.Errorf("%w: document size exceeds maximum of %d MB", ErrValidation, maxDocumentSize/(1024*1024))
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("%w: failed to read upload: %v", ErrValidation, err)
	}

	key := fmt.Sprintf("documents/%d/%s%s", userID, uuid.New().String(), ext)

	_, err = s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil && isNoSuchBucket(err) {
		slog.Warn("bucket not found, creating and retrying upload once", "bucket", s.bucket)
		if err := s.EnsureBucket(ctx); err != nil {
			return "", fmt.Errorf("%w: %v", ErrIntegration, err)
		}
		_, err = s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
			ContentType: contentType,
		})
	}
	if err != nil {
		return "", fmt.Errorf("%w: failed to upload document: %v", ErrIntegration, err)
	}

	return key, nil
}

// PresignedURL generates a presigned read URL for the object with expiration
func (s *MinioStorage) PresignedURL(ctx context.Context, key string) (string, error) {
	expiry := time.Duration(s.config.PresignExpire) * time.Hour
	url, err := s.client.PresignedGetObject(ctx, s.bucket, key, expiry, nil)
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}

	return url.String(), nil
}

func (s *MinioStorage) Bucket() string {
	return s.bucket
}

func isNoSuchBucket(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.Code == "NoSuchBucket" || resp.StatusCode == 404
}
