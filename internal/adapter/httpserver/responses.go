package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/fairyhunter13/mainalyze/internal/domain"
	"github.com/fairyhunter13/mainalyze/internal/validation"
)

// maxJSONBody caps JSON request bodies.
const maxJSONBody = 1 << 20

type errorBody struct {
	Error   string                 `json:"error"`
	Details []validation.Violation `json:"details,omitempty"`
}

type rateLimitBody struct {
	Error      string `json:"error"`
	RetryAfter int    `json:"retryAfter"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError is the single place where domain errors become HTTP responses.
// Server-side failures are logged and answered with a generic message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := http.StatusInternalServerError, errorBody{Error: "Internal server error"}
	switch {
	case errors.Is(err, domain.ErrUnauthenticated):
		status, body.Error = http.StatusUnauthorized, "Unauthorized"
	case errors.Is(err, domain.ErrForbidden):
		status, body.Error = http.StatusForbidden, "Forbidden"
	case errors.Is(err, domain.ErrFileTooLarge):
		status, body.Error = http.StatusRequestEntityTooLarge, clientMessage(err, domain.ErrFileTooLarge, "Payload too large")
	case errors.Is(err, domain.ErrUnsupportedMedia):
		status, body.Error = http.StatusUnsupportedMediaType, clientMessage(err, domain.ErrUnsupportedMedia, "Unsupported media type")
	case errors.Is(err, domain.ErrInvalidArgument):
		status = http.StatusBadRequest
		if vs := validation.Violations(err); len(vs) > 0 {
			body = errorBody{Error: "Validation failed", Details: vs}
		} else {
			body.Error = clientMessage(err, domain.ErrInvalidArgument, "Invalid request")
		}
	case errors.Is(err, domain.ErrNotFound):
		status, body.Error = http.StatusNotFound, "Not found"
	case errors.Is(err, domain.ErrConflict):
		status, body.Error = http.StatusConflict, clientMessage(err, domain.ErrConflict, "Conflict")
	case errors.Is(err, domain.ErrRateLimited):
		status, body.Error = http.StatusTooManyRequests, "Too many requests"
	case errors.Is(err, domain.ErrUpstreamTimeout):
		status, body.Error = http.StatusServiceUnavailable, "AI service timed out, please try again"
	case errors.Is(err, domain.ErrUpstreamRateLimit):
		status, body.Error = http.StatusServiceUnavailable, "AI service is busy, please try again shortly"
	case errors.Is(err, domain.ErrUpstream), errors.Is(err, domain.ErrSchemaInvalid):
		status, body.Error = http.StatusBadGateway, "AI service returned an unusable response"
	}

	lg := LoggerFrom(r)
	if status >= 500 {
		lg.Error("request failed", slog.Int("status", status), slog.Any("error", err))
	} else {
		lg.Debug("request rejected", slog.Int("status", status), slog.Any("error", err))
	}
	writeJSON(w, status, body)
}

// clientMessage returns the detail written after the sentinel, without the
// op= chain that precedes it.
func clientMessage(err, sentinel error, fallback string) string {
	s := err.Error()
	marker := sentinel.Error() + ": "
	if i := strings.LastIndex(s, marker); i >= 0 {
		if msg := strings.TrimSpace(s[i+len(marker):]); msg != "" {
			return msg
		}
	}
	return fallback
}

// decodeJSON reads a single JSON object. Type mismatches and syntax errors
// are reported without field details; validation runs afterwards.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		var mbe *http.MaxBytesError
		switch {
		case errors.As(err, &mbe):
			return fmt.Errorf("%w: request body too large", domain.ErrFileTooLarge)
		case errors.Is(err, io.EOF):
			return fmt.Errorf("%w: request body is empty", domain.ErrInvalidArgument)
		}
		return fmt.Errorf("%w: invalid JSON body", domain.ErrInvalidArgument)
	}
	if dec.More() {
		return fmt.Errorf("%w: invalid JSON body", domain.ErrInvalidArgument)
	}
	return nil
}

// bindJSON decodes and validates a request DTO.
func bindJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	if err := decodeJSON(w, r, dst); err != nil {
		return err
	}
	return validation.Struct(dst)
}
