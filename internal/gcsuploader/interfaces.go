// Package gcsuploader stores ledger backups in a Google Cloud Storage bucket.
package gcsuploader

import (
	"context"
	"fmt"
	"path"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/dvloznov/voice-ledger/internal/backup"
)

// BackupStore uploads artifacts under Prefix in Bucket and reads them back
// from gs:// URIs. It holds one client for its lifetime.
type BackupStore struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewBackupStore creates the storage client.
func NewBackupStore(ctx context.Context, bucket, prefix string, opts ...option.ClientOption) (*BackupStore, error) {
	if bucket == "" {
		return nil, fmt.Errorf("NewBackupStore: bucket is required")
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("NewBackupStore: create storage client: %w", err)
	}
	return &BackupStore{client: client, bucket: bucket, prefix: prefix}, nil
}

// Close releases the storage client.
func (s *BackupStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// ObjectName is the object path an artifact called name is stored at.
func (s *BackupStore) ObjectName(name string) string {
	return path.Join(s.prefix, name)
}

func (s *BackupStore) Save(ctx context.Context, name string, data []byte) (string, error) {
	object := s.ObjectName(name)
	if err := UploadBytes(ctx, s.client, s.bucket, object, "application/json", data); err != nil {
		return "", fmt.Errorf("BackupStore.Save: %w", err)
	}
	return "gs://" + s.bucket + "/" + object, nil
}

func (s *BackupStore) Load(ctx context.Context, location string) ([]byte, error) {
	return FetchFromGCS(ctx, s.client, location)
}

var (
	_ backup.Store  = (*BackupStore)(nil)
	_ backup.Loader = (*BackupStore)(nil)
)
