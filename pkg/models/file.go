package models

import "github.com/google/uuid"

// File records an uploaded or produced file. Key is the opaque handle into
// the file storage backend; Filepath is the absolute path inside the
// session's sandbox once the file has been synced there.
type File struct {
	ID        string `json:"id"`
	FileName  string `json:"file_name,omitempty"`
	Filepath  string `json:"filepath,omitempty"`
	Key       string `json:"key,omitempty"`
	Extension string `json:"extension,omitempty"`
	MimeType  string `json:"mime_type,omitempty"`
	Size      int64  `json:"size,omitempty"`
}

// NewFile returns a File with a fresh id.
func NewFile() *File {
	return &File{ID: uuid.NewString()}
}
