package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Pruner deletes rows older than a cutoff.
type Pruner interface {
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// CleanupService enforces the audit log retention window.
type CleanupService struct {
	Audit         Pruner
	RetentionDays int
	now           func() time.Time
}

// NewCleanupService creates a cleanup service; retention defaults to 180 days.
func NewCleanupService(audit Pruner, retentionDays int) *CleanupService {
	if retentionDays <= 0 {
		retentionDays = 180
	}
	return &CleanupService{Audit: audit, RetentionDays: retentionDays, now: time.Now}
}

// CleanupOldData prunes audit entries past the retention window.
func (s *CleanupService) CleanupOldData(ctx context.Context) error {
	cutoff := s.now().AddDate(0, 0, -s.RetentionDays)
	n, err := s.Audit.PruneBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("op=cleanup.audit: %w", err)
	}
	slog.Info("data cleanup completed",
		slog.Int64("deleted_audit_entries", n),
		slog.Time("cutoff", cutoff),
	)
	return nil
}

// RunPeriodic runs CleanupOldData now and then every interval until ctx ends.
func (s *CleanupService) RunPeriodic(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if err := s.CleanupOldData(ctx); err != nil {
		slog.Error("initial cleanup failed", slog.Any("error", err))
	}
	for {
		select {
		case <-ctx.Done():
			slog.Info("cleanup service stopping")
			return
		case <-ticker.C:
			if err := s.CleanupOldData(ctx); err != nil {
				slog.Error("periodic cleanup failed", slog.Any("error", err))
			}
		}
	}
}
