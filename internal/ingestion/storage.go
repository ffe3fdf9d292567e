// Package ingestion loads accounts from CSV uploads and archives raw uploads
// and history exports to blob storage.
package ingestion

import (
	"context"
	"os"
	"path"
	"path/filepath"

	"github.com/rotisserie/eris"
)

// StorageClient abstracts blob storage for raw uploads and history exports.
// Put methods return the object key that was written.
type StorageClient interface {
	PutUpload(ctx context.Context, uploadID string, data []byte) (string, error)
	GetUpload(ctx context.Context, uploadID string) ([]byte, error)
	PutExport(ctx context.Context, accountID, exportID string, data []byte) (string, error)
	GetExport(ctx context.Context, accountID, exportID string) ([]byte, error)
}

const (
	contentTypeCSV  = "text/csv"
	contentTypeJSON = "application/json"
)

// uploadKey and exportKey define the object layout shared by every backend.
func uploadKey(uploadID string) string {
	return path.Join("uploads", uploadID+".csv")
}

func exportKey(accountID, exportID string) string {
	return path.Join("exports", accountID, exportID+".json")
}

// LocalStorage implements StorageClient using the local filesystem.
// Useful for development and testing.
type LocalStorage struct {
	BaseDir string
}

// NewLocalStorage creates a LocalStorage rooted at the given directory.
func NewLocalStorage(baseDir string) *LocalStorage {
	return &LocalStorage{BaseDir: baseDir}
}

func (s *LocalStorage) path(key string) string {
	return filepath.Join(s.BaseDir, filepath.FromSlash(key))
}

func (s *LocalStorage) put(key string, data []byte) (string, error) {
	p := s.path(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return "", eris.Wrap(err, "create directory")
	}
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return "", eris.Wrapf(err, "write %s", key)
	}
	return key, nil
}

func (s *LocalStorage) get(key string) ([]byte, error) {
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		return nil, eris.Wrapf(err, "read %s", key)
	}
	return data, nil
}

// PutUpload stores a raw CSV upload.
func (s *LocalStorage) PutUpload(_ context.Context, uploadID string, data []byte) (string, error) {
	return s.put(uploadKey(uploadID), data)
}

// GetUpload retrieves a raw CSV upload.
func (s *LocalStorage) GetUpload(_ context.Context, uploadID string) ([]byte, error) {
	return s.get(uploadKey(uploadID))
}

// PutExport stores an account history export.
func (s *LocalStorage) PutExport(_ context.Context, accountID, exportID string, data []byte) (string, error) {
	return s.put(exportKey(accountID, exportID), data)
}

// GetExport retrieves an account history export.
func (s *LocalStorage) GetExport(_ context.Context, accountID, exportID string) ([]byte, error) {
	return s.get(exportKey(accountID, exportID))
}

// StorageOptions selects a blob storage backend.
type StorageOptions struct {
	Backend   string // local, s3 or gcs
	LocalPath string
	Bucket    string
	S3        S3Config
}

// NewStorage builds the StorageClient named by opts.Backend.
func NewStorage(ctx context.Context, opts StorageOptions) (StorageClient, error) {
	switch opts.Backend {
	case "local", "":
		return NewLocalStorage(opts.LocalPath), nil
	case "s3":
		cfg := opts.S3
		if cfg.Bucket == "" {
			cfg.Bucket = opts.Bucket
		}
		return NewS3Storage(ctx, cfg)
	case "gcs":
		return NewGCSStorage(ctx, opts.Bucket)
	default:
		return nil, eris.Errorf("unknown storage backend %q", opts.Backend)
	}
}
