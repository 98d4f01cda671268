package shared

import (
	"context"
	"errors"

	"github.com/fairyhunter13/mainalyze/internal/domain"
)

// FailureCode maps a pipeline error to a stable code for error_message.
func FailureCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, domain.ErrSchemaInvalid):
		return domain.FailureSchemaInvalid
	case errors.Is(err, domain.ErrUpstreamRateLimit):
		return domain.FailureUpstreamRateLimit
	case errors.Is(err, domain.ErrUpstreamTimeout), errors.Is(err, context.DeadlineExceeded):
		return domain.FailureUpstreamTimeout
	case errors.Is(err, domain.ErrUpstream):
		return domain.FailureUpstreamError
	case errors.Is(err, domain.ErrFileTooLarge), errors.Is(err, domain.ErrNotFound):
		return domain.FailureFileUnavailable
	case errors.Is(err, domain.ErrInvalidArgument), errors.Is(err, domain.ErrUnsupportedMedia):
		return domain.FailureInvalidArgument
	default:
		return domain.FailureInternal
	}
}
