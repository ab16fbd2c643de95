package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/haasonsaas/helmsman/internal/apperr"
)

// LocalStorage stores objects as files under a base directory. Each
// object is a <key> content file plus a <key>.meta.json sidecar.
type LocalStorage struct {
	dir string
}

func NewLocalStorage(dir string) (*LocalStorage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &LocalStorage{dir: dir}, nil
}

func (s *LocalStorage) Put(_ context.Context, fileName string, content io.Reader) (*Metadata, error) {
	key := uuid.NewString()

	f, err := os.Create(s.contentPath(key))
	if err != nil {
		return nil, err
	}
	size, err := io.Copy(f, content)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(s.contentPath(key))
		return nil, err
	}

	meta := &Metadata{Key: key, FileName: filepath.Base(fileName), Size: size}
	payload, err := json.Marshal(meta)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(s.metaPath(key), payload, 0o644); err != nil {
		os.Remove(s.contentPath(key))
		return nil, err
	}
	return meta, nil
}

func (s *LocalStorage) Get(_ context.Context, key string) (io.ReadCloser, *Metadata, error) {
	payload, err := os.ReadFile(s.metaPath(key))
	if os.IsNotExist(err) {
		return nil, nil, apperr.NotFound("file %s not found", key)
	}
	if err != nil {
		return nil, nil, err
	}
	var meta Metadata
	if err := json.Unmarshal(payload, &meta); err != nil {
		return nil, nil, fmt.Errorf("corrupt metadata for %s: %w", key, err)
	}

	f, err := os.Open(s.contentPath(key))
	if os.IsNotExist(err) {
		return nil, nil, apperr.NotFound("file %s not found", key)
	}
	if err != nil {
		return nil, nil, err
	}
	return f, &meta, nil
}

func (s *LocalStorage) Delete(_ context.Context, key string) error {
	if err := os.Remove(s.contentPath(key)); err != nil && !os.IsNotExist(err) {
		return err
	}
	if err := os.Remove(s.metaPath(key)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Base strips path separators so a key can never escape the directory.
func (s *LocalStorage) contentPath(key string) string {
	return filepath.Join(s.dir, filepath.Base(key))
}

func (s *LocalStorage) metaPath(key string) string {
	return filepath.Join(s.dir, filepath.Base(key)+".meta.json")
}
