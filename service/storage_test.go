package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"

	"github.com/mdhv11/cardwiz/config"
)

type recordedPut struct {
	key  string
	body []byte
	size int64
}

type fakeObjectAPI struct {
	puts         []recordedPut
	failFirstPut error
	putErr       error
	bucketExists bool
	madeBucket   bool
}

func (f *fakeObjectAPI) PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	body, err := io.ReadAll(reader)
	if err != nil {
		return minio.UploadInfo{}, err
	}
	first := len(f.puts) == 0
	f.puts = append(f.puts, recordedPut{key: objectName, body: body, size: objectSize})
	if first && f.failFirstPut != nil {
		return minio.UploadInfo{}, f.failFirstPut
	}
	if f.putErr != nil {
		return minio.UploadInfo{}, f.putErr
	}
	return minio.UploadInfo{Bucket: bucketName, Key: objectName, Size: objectSize}, nil
}

func (f *fakeObjectAPI) BucketExists(ctx context.Context, bucketName string) (bool, error) {
	return f.bucketExists, nil
}

func (f *fakeObjectAPI) MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error {
	f.madeBucket = true
	f.bucketExists = true
	return nil
}

func (f *fakeObjectAPI) PresignedGetObject(ctx context.Context, bucketName, objectName string, expires time.Duration, reqParams url.Values) (*url.URL, error) {
	return url.Parse("http://storage/" + bucketName + "/" + objectName)
}

func newTestStorage(api *fakeObjectAPI) *MinioStorage {
	return &MinioStorage{
		client: api,
		bucket: "cardwiz-docs",
		config: &config.MinioConfig{PresignExpire: 1},
	}
}

func TestUploadDocument(t *testing.T) {
	api := &fakeObjectAPI{bucketExists: true}
	s := newTestStorage(api)

	content := "pdf-bytes"
	key, err := s.UploadDocument(context.Background(), 7, "statement.pdf", strings.NewReader(content), int64(len(content)), "application/pdf")
	if err != nil {
		t.Fatalf("UploadDocument failed: %v", err)
	}
	if !strings.HasPrefix(key, "documents/7/") || !strings.HasSuffix(key, ".pdf") {
		t.Errorf("Unexpected object key: %s", key)
	}
	if len(api.puts) != 1 {
		t.Fatalf("Expected 1 put, got %d", len(api.puts))
	}
	if string(api.puts[0].body) != content {
		t.Errorf("Expected full body stored, got %q", api.puts[0].body)
	}
}

func TestUploadDocumentRetriesWithFullBodyAfterBucketCreate(t *testing.T) {
	api := &fakeObjectAPI{
		failFirstPut: minio.ErrorResponse{Code: "NoSuchBucket", StatusCode: 404},
	}
	s := newTestStorage(api)

	content := "pdf-bytes-that-must-survive-the-retry"
	key, err := s.UploadDocument(context.Background(), 7, "terms.pdf", strings.NewReader(content), int64(len(content)), "application/pdf")
	if err != nil {
		t.Fatalf("Expected upload to recover, got %v", err)
	}
	if !api.madeBucket {
		t.Error("Expected bucket created before retry")
	}
	if len(api.puts) != 2 {
		t.Fatalf("Expected 2 puts, got %d", len(api.puts))
	}
	if api.puts[1].key != key {
		t.Errorf("Expected retry under the same key %s, got %s", key, api.puts[1].key)
	}
	// The first attempt consumed its reader; the retry must still carry the
	// complete body.
	if !bytes.Equal(api.puts[1].body, []byte(content)) {
		t.Errorf("Expected retried put to replay the full body, got %q", api.puts[1].body)
	}
	if api.puts[1].size != int64(len(content)) {
		t.Errorf("Expected retried size %d, got %d", len(content), api.puts[1].size)
	}
}

func TestUploadDocumentOtherErrorNotRetried(t *testing.T) {
	api := &fakeObjectAPI{
		bucketExists: true,
		putErr:       minio.ErrorResponse{Code: "AccessDenied", StatusCode: 403},
	}
	s := newTestStorage(api)

	_, err := s.UploadDocument(context.Background(), 7, "terms.pdf", strings.NewReader("x"), 1, "application/pdf")
	if !errors.Is(err, ErrIntegration) {
		t.Fatalf("Expected integration error, got %v", err)
	}
	if len(api.puts) != 1 {
		t.Errorf("Expected no retry for non-bucket errors, got %d puts", len(api.puts))
	}
	if api.madeBucket {
		t.Error("Expected no bucket creation for non-bucket errors")
	}
}

func TestUploadDocumentValidation(t *testing.T) {
	s := newTestStorage(&fakeObjectAPI{bucketExists: true})

	tests := []struct {
		name     string
		filename string
		size     int64
	}{
		{"disallowed extension", "malware.exe", 10},
		{"empty file", "statement.pdf", 0},
		{"oversized file", "statement.pdf", maxDocumentSize + 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.UploadDocument(context.Background(), 7, tt.filename, strings.NewReader("x"), tt.size, "application/pdf")
			if !errors.Is(err, ErrValidation) {
				t.Errorf("Expected validation error, got %v", err)
			}
		})
	}
}
