package ingestion

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

func TestLocalStoragePutGetUpload(t *testing.T) {
	dir := t.TempDir()
	s := NewLocalStorage(dir)
	ctx := context.Background()

	data := []byte("name,arr,segment\nAcme,1000,SMB\n")
	key, err := s.PutUpload(ctx, "up1", data)
	if err != nil {
		t.Fatalf("PutUpload: %v", err)
	}
	if key != "uploads/up1.csv" {
		t.Errorf("PutUpload key = %q", key)
	}

	got, err := s.GetUpload(ctx, "up1")
	if err != nil {
		t.Fatalf("GetUpload: %v", err)
	}
	if string(got) != string(data) {
		t.Errorf("GetUpload = %q, want %q", got, data)
	}

	// Verify file path layout
	expectedPath := filepath.Join(dir, "uploads", "up1.csv")
	if _, err := os.Stat(expectedPath); err != nil {
		t.Errorf("expected file at %s: %v", expectedPath, err)
	}
}

func TestLocalStoragePutGetExport(t *testing.T) {
	dir := t.TempDir()
	s := NewLocalStorage(dir)
	ctx := context.Background()

	data := []byte(`{"history":[]}`)
	key, err := s.PutExport(ctx, "acct1", "exp1", data)
	if err != nil {
		t.Fatalf("PutExport: %v", err)
	}
	if key != "exports/acct1/exp1.json" {
		t.Errorf("PutExport key = %q", key)
	}

	got, err := s.GetExport(ctx, "acct1", "exp1")
	if err != nil {
		t.Fatalf("GetExport: %v", err)
	}
	if string(got) != string(data) {
		t.Errorf("GetExport = %q, want %q", got, data)
	}
}

func TestLocalStorageGetNotFound(t *testing.T) {
	s := NewLocalStorage(t.TempDir())

	if _, err := s.GetUpload(context.Background(), "nonexistent"); err == nil {
		t.Error("expected error for nonexistent upload")
	}
}

type fakeS3 struct {
	objects map[string][]byte
	types   map[string]string
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)] = data
	f.types[aws.ToString(in.Key)] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, os.ErrNotExist
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func TestS3StorageKeys(t *testing.T) {
	fake := &fakeS3{objects: map[string][]byte{}, types: map[string]string{}}
	s := &S3Storage{client: fake, bucket: "health"}
	ctx := context.Background()

	if _, err := s.PutUpload(ctx, "up1", []byte("a,b")); err != nil {
		t.Fatalf("PutUpload: %v", err)
	}
	if _, err := s.PutExport(ctx, "acct1", "exp1", []byte("{}")); err != nil {
		t.Fatalf("PutExport: %v", err)
	}

	if _, ok := fake.objects["health/uploads/up1.csv"]; !ok {
		t.Errorf("upload not stored under expected key: %v", fake.objects)
	}
	if fake.types["uploads/up1.csv"] != "text/csv" {
		t.Errorf("upload content type = %q", fake.types["uploads/up1.csv"])
	}
	if fake.types["exports/acct1/exp1.json"] != "application/json" {
		t.Errorf("export content type = %q", fake.types["exports/acct1/exp1.json"])
	}

	got, err := s.GetExport(ctx, "acct1", "exp1")
	if err != nil {
		t.Fatalf("GetExport: %v", err)
	}
	if string(got) != "{}" {
		t.Errorf("GetExport = %q", got)
	}
	if _, err := s.GetUpload(ctx, "missing"); err == nil {
		t.Error("expected error for missing object")
	}
}

func TestNewStorage(t *testing.T) {
	ctx := context.Background()

	st, err := NewStorage(ctx, StorageOptions{Backend: "local", LocalPath: t.TempDir()})
	if err != nil {
		t.Fatalf("NewStorage(local): %v", err)
	}
	if _, ok := st.(*LocalStorage); !ok {
		t.Errorf("NewStorage(local) = %T", st)
	}

	if _, err := NewStorage(ctx, StorageOptions{Backend: "ftp"}); err == nil {
		t.Error("expected error for unknown backend")
	}
	if _, err := NewStorage(ctx, StorageOptions{Backend: "s3"}); err == nil {
		t.Error("expected error for s3 without bucket")
	}
}
