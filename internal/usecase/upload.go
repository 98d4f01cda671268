package usecase

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/oklog/ulid/v2"

	"github.com/fairyhunter13/mainalyze/internal/adapter/observability"
	"github.com/fairyhunter13/mainalyze/internal/domain"
	obsctx "github.com/fairyhunter13/mainalyze/internal/observability"
	"github.com/fairyhunter13/mainalyze/internal/validation"
)

// Default upload limits.
const (
	DefaultMaxUploadBytes = 10 << 20
	DefaultMaxUploadFiles = 10
)

// IncomingFile is one part of a multipart upload. The declared name and
// type are informational only; acceptance is decided on the content.
type IncomingFile struct {
	Name string
	Size int64
	Body io.Reader
}

// UploadOutcome lists the stored files' public URLs and per-file errors.
type UploadOutcome struct {
	URLs   []string `json:"urls"`
	Errors []string `json:"errors,omitempty"`
}

// UploadService checks answer-sheet uploads and stores the accepted ones.
type UploadService struct {
	Store    domain.ObjectStore
	MaxBytes int64
	MaxFiles int
}

// NewUploadService constructs an UploadService with the given limits.
func NewUploadService(store domain.ObjectStore, maxBytes int64, maxFiles int) UploadService {
	return UploadService{Store: store, MaxBytes: maxBytes, MaxFiles: maxFiles}
}

func (s UploadService) limits() (int64, int) {
	maxBytes, maxFiles := s.MaxBytes, s.MaxFiles
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	if maxFiles <= 0 {
		maxFiles = DefaultMaxUploadFiles
	}
	return maxBytes, maxFiles
}

// Ingest handles every file independently. It fails as a whole only when no
// file was stored, carrying each file's reason as a violation.
func (s UploadService) Ingest(ctx domain.Context, userID string, files []IncomingFile) (UploadOutcome, error) {
	maxBytes, maxFiles := s.limits()
	if len(files) == 0 {
		return UploadOutcome{}, validation.Fail("files", "REQUIRED", "at least one file is required")
	}
	if len(files) > maxFiles {
		return UploadOutcome{}, validation.Fail("files", "MAX", fmt.Sprintf("must contain at most %d items", maxFiles))
	}
	lg := obsctx.LoggerFromContext(ctx)
	out := UploadOutcome{URLs: []string{}}
	for _, f := range files {
		url, err := s.ingestOne(ctx, userID, f, maxBytes)
		if err != nil {
			observability.UploadOutcome("rejected")
			lg.Info("upload rejected", slog.String("file", f.Name), slog.Any("error", err))
			out.Errors = append(out.Errors, fmt.Sprintf("%s: %s", displayName(f.Name), reasonOf(err)))
			continue
		}
		observability.UploadOutcome("stored")
		out.URLs = append(out.URLs, url)
	}
	if len(out.URLs) == 0 {
		ve := &validation.Error{}
		for _, e := range out.Errors {
			ve.Violations = append(ve.Violations, validation.Violation{Field: "files", Code: "REJECTED", Message: e})
		}
		return out, ve
	}
	return out, nil
}

func (s UploadService) ingestOne(ctx domain.Context, userID string, f IncomingFile, maxBytes int64) (string, error) {
	if f.Size > maxBytes {
		return "", fmt.Errorf("%w: larger than %s", domain.ErrFileTooLarge, sizeLabel(maxBytes))
	}
	data, err := io.ReadAll(io.LimitReader(f.Body, maxBytes+1))
	if err != nil {
		return "", fmt.Errorf("read: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return "", fmt.Errorf("%w: larger than %s", domain.ErrFileTooLarge, sizeLabel(maxBytes))
	}
	if len(data) == 0 {
		return "", fmt.Errorf("%w: empty file", domain.ErrInvalidArgument)
	}
	mt := mimetype.Detect(data)
	ct, _, _ := strings.Cut(mt.String(), ";")
	ext, ok := domain.AllowedUploadMIME[ct]
	if !ok {
		return "", fmt.Errorf("%w: %s is not an accepted file type", domain.ErrUnsupportedMedia, ct)
	}
	key := userID + "/" + ulid.Make().String() + ext
	obj, err := s.Store.Put(ctx, key, ct, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("store: %w", err)
	}
	if obj.URL != "" {
		return obj.URL, nil
	}
	return s.Store.PublicURL(key), nil
}

func reasonOf(err error) string {
	switch {
	case errors.Is(err, domain.ErrFileTooLarge), errors.Is(err, domain.ErrUnsupportedMedia), errors.Is(err, domain.ErrInvalidArgument):
		return err.Error()
	default:
		return "upload failed"
	}
}

func sizeLabel(n int64) string {
	if n >= 1<<20 && n%(1<<20) == 0 {
		return fmt.Sprintf("%d MB", n>>20)
	}
	return fmt.Sprintf("%d bytes", n)
}

func displayName(name string) string {
	if name = strings.TrimSpace(name); name == "" {
		return "file"
	}
	return name
}
