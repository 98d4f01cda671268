package httpserver

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/fairyhunter13/mainalyze/internal/domain"
	"github.com/fairyhunter13/mainalyze/internal/usecase"
	"github.com/fairyhunter13/mainalyze/internal/validation"
)

// multipartMemory is how much of a form is buffered before spilling to disk.
const multipartMemory = 32 << 20

// UploadHandler stores answer-sheet files sent as repeated "files" parts.
// Each file is judged on its own; the request fails only when none is kept.
func (s *Server) UploadHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
			writeError(w, r, fmt.Errorf("%w: content-type must be multipart/form-data", domain.ErrInvalidArgument))
			return
		}
		maxBytes, maxFiles := s.uploadLimits()
		// headroom for part headers; per-file limits are enforced by the service
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes*int64(maxFiles)+1<<20)
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			var mbe *http.MaxBytesError
			if errors.As(err, &mbe) {
				writeError(w, r, fmt.Errorf("%w: upload exceeds %d files of %d MB", domain.ErrFileTooLarge, maxFiles, maxBytes>>20))
				return
			}
			writeError(w, r, fmt.Errorf("%w: malformed multipart body", domain.ErrInvalidArgument))
			return
		}
		defer func() { _ = r.MultipartForm.RemoveAll() }()

		headers := r.MultipartForm.File["files"]
		files := make([]usecase.IncomingFile, 0, len(headers))
		opened := make([]multipart.File, 0, len(headers))
		defer func() {
			for _, f := range opened {
				_ = f.Close()
			}
		}()
		for _, fh := range headers {
			f, err := fh.Open()
			if err != nil {
				writeError(w, r, fmt.Errorf("op=upload.open: %w", err))
				return
			}
			opened = append(opened, f)
			files = append(files, usecase.IncomingFile{Name: fh.Filename, Size: fh.Size, Body: f})
		}

		out, err := s.Uploads.Ingest(r.Context(), mustPrincipal(r).UserID, files)
		if err != nil {
			if vs := validation.Violations(err); len(vs) > 0 && len(out.Errors) > 0 {
				writeJSON(w, http.StatusBadRequest, map[string]any{"error": "No files were uploaded", "details": out.Errors})
				return
			}
			writeError(w, r, err)
			return
		}
		body := map[string]any{"success": true, "urls": out.URLs}
		if len(out.Errors) > 0 {
			body["errors"] = out.Errors
		}
		writeJSON(w, http.StatusOK, body)
	}
}

func (s *Server) uploadLimits() (int64, int) {
	maxBytes := s.Cfg.MaxUploadBytes()
	if maxBytes <= 0 {
		maxBytes = usecase.DefaultMaxUploadBytes
	}
	maxFiles := s.Cfg.MaxUploadFiles
	if maxFiles <= 0 {
		maxFiles = usecase.DefaultMaxUploadFiles
	}
	return maxBytes, maxFiles
}
