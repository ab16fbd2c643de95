// Package storage moves file content between the host and the session
// sandboxes: user uploads, produced deliverables, and tool screenshots.
package storage

import (
	"context"
	"io"
)

// Metadata describes a stored object.
type Metadata struct {
	Key      string `json:"key"`
	FileName string `json:"file_name"`
	Size     int64  `json:"size"`
}

// FileStorage is a flat keyed blob store.
type FileStorage interface {
	// Put stores content under a fresh key derived from fileName.
	Put(ctx context.Context, fileName string, content io.Reader) (*Metadata, error)
	// Get opens the object for reading. The caller closes it.
	Get(ctx context.Context, key string) (io.ReadCloser, *Metadata, error)
	Delete(ctx context.Context, key string) error
}
