package ingestion

import (
	"context"
	"io"

	gcs "cloud.google.com/go/storage"
	"github.com/rotisserie/eris"
)

// GCSStorage implements StorageClient using Google Cloud Storage.
type GCSStorage struct {
	client *gcs.Client
	bucket string
}

// NewGCSStorage creates a GCS-backed StorageClient.
// It uses Application Default Credentials (works with Workload Identity, SA keys, gcloud auth).
func NewGCSStorage(ctx context.Context, bucket string) (*GCSStorage, error) {
	if bucket == "" {
		return nil, eris.New("gcs: bucket is required")
	}
	client, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "create gcs client")
	}
	return &GCSStorage{client: client, bucket: bucket}, nil
}

func (s *GCSStorage) put(ctx context.Context, key, contentType string, data []byte) (string, error) {
	w := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(data); err != nil {
		w.Close()
		return "", eris.Wrapf(err, "gcs write %s", key)
	}
	if err := w.Close(); err != nil {
		return "", eris.Wrapf(err, "gcs close %s", key)
	}
	return key, nil
}

func (s *GCSStorage) get(ctx context.Context, key string) ([]byte, error) {
	r, err := s.client.Bucket(s.bucket).Object(key).NewReader(ctx)
	if err != nil {
		return nil, eris.Wrapf(err, "gcs read %s", key)
	}
	defer r.Close()
	return io.ReadAll(r)
}

func (s *GCSStorage) PutUpload(ctx context.Context, uploadID string, data []byte) (string, error) {
	return s.put(ctx, uploadKey(uploadID), contentTypeCSV, data)
}

func (s *GCSStorage) GetUpload(ctx context.Context, uploadID string) ([]byte, error) {
	return s.get(ctx, uploadKey(uploadID))
}

func (s *GCSStorage) PutExport(ctx context.Context, accountID, exportID string, data []byte) (string, error) {
	return s.put(ctx, exportKey(accountID, exportID), contentTypeJSON, data)
}

func (s *GCSStorage) GetExport(ctx context.Context, accountID, exportID string) ([]byte, error) {
	return s.get(ctx, exportKey(accountID, exportID))
}
