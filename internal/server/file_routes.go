package server

import (
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strconv"

	"github.com/haasonsaas/helmsman/internal/apperr"
	"github.com/haasonsaas/helmsman/pkg/models"
)

// maxUploadMemory bounds how much of a multipart upload is buffered in
// memory before spilling to disk.
const maxUploadMemory = 32 << 20

// handleUploadFile stores one multipart upload and returns its file
// record. The storage key doubles as the file id.
func (s *Server) handleUploadFile(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		s.writeError(w, apperr.BadRequest("parse multipart form: %v", err))
		return
	}
	content, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, apperr.Validation("form field %q is required", "file"))
		return
	}
	defer content.Close()

	meta, err := s.files.Put(r.Context(), header.Filename, content)
	if err != nil {
		s.writeError(w, err)
		return
	}

	file := &models.File{
		ID:        meta.Key,
		FileName:  meta.FileName,
		Key:       meta.Key,
		Extension: path.Ext(meta.FileName),
		MimeType:  header.Header.Get("Content-Type"),
		Size:      meta.Size,
	}
	s.logger.Info("file uploaded", "file_id", file.ID, "file_name", file.FileName, "size", file.Size)
	s.writeJSON(w, http.StatusOK, file)
}

func (s *Server) handleFileInfo(w http.ResponseWriter, r *http.Request) {
	content, meta, err := s.files.Get(r.Context(), r.PathValue("file_id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	content.Close()

	s.writeJSON(w, http.StatusOK, &models.File{
		ID:        meta.Key,
		FileName:  meta.FileName,
		Key:       meta.Key,
		Extension: path.Ext(meta.FileName),
		Size:      meta.Size,
	})
}

func (s *Server) handleFileDownload(w http.ResponseWriter, r *http.Request) {
	content, meta, err := s.files.Get(r.Context(), r.PathValue("file_id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	defer content.Close()

	contentType := mime.TypeByExtension(path.Ext(meta.FileName))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.FormatInt(meta.Size, 10))
	// RFC 5987 encoding keeps non-ASCII file names intact.
	w.Header().Set("Content-Disposition", "attachment; filename*=utf-8''"+url.PathEscape(meta.FileName))

	if _, err := io.Copy(w, content); err != nil {
		s.logger.Warn("download interrupted", "file_id", meta.Key, "error", err)
	}
}
