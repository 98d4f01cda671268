package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorConstants(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"ErrInvalidArgument", ErrInvalidArgument, "invalid argument"},
		{"ErrUnauthenticated", ErrUnauthenticated, "authentication required"},
		{"ErrNotFound", ErrNotFound, "not found"},
		{"ErrConflict", ErrConflict, "conflict"},
		{"ErrFileTooLarge", ErrFileTooLarge, "file too large"},
		{"ErrUpstreamTimeout", ErrUpstreamTimeout, "upstream timeout"},
		{"ErrSchemaInvalid", ErrSchemaInvalid, "schema invalid"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Error() != tt.expected {
				t.Errorf("Expected %s to be %q, got %q", tt.name, tt.expected, tt.err.Error())
			}
		})
	}
}

func TestWrappedErrorsKeepIdentity(t *testing.T) {
	wrapped := fmt.Errorf("op=evaluation.complete: %w", ErrConflict)
	if !errors.Is(wrapped, ErrConflict) {
		t.Fatalf("expected wrapped error to match ErrConflict")
	}
	if errors.Is(wrapped, ErrNotFound) {
		t.Fatalf("wrapped conflict must not match ErrNotFound")
	}
}
