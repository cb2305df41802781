package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Store persists an encoded artifact and returns where it went.
type Store interface {
	Save(ctx context.Context, name string, data []byte) (string, error)
}

// Loader reads an artifact back from a location returned by Save.
type Loader interface {
	Load(ctx context.Context, location string) ([]byte, error)
}

// LocalStore writes artifacts into a directory.
type LocalStore struct {
	Dir string
}

func (s LocalStore) Save(_ context.Context, name string, data []byte) (string, error) {
	dir := s.Dir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("LocalStore.Save: %w", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("LocalStore.Save: %w", err)
	}
	return path, nil
}

func (s LocalStore) Load(_ context.Context, location string) ([]byte, error) {
	data, err := os.ReadFile(location)
	if err != nil {
		return nil, fmt.Errorf("LocalStore.Load: %w", err)
	}
	return data, nil
}

// Fetch reads location from remote when it is a gs:// URI and from the
// local filesystem otherwise.
func Fetch(ctx context.Context, location string, remote Loader) ([]byte, error) {
	if strings.HasPrefix(location, "gs://") {
		if remote == nil {
			return nil, fmt.Errorf("backup.Fetch: no remote store configured for %s", location)
		}
		return remote.Load(ctx, location)
	}
	return LocalStore{}.Load(ctx, location)
}

var (
	_ Store  = LocalStore{}
	_ Loader = LocalStore{}
)
