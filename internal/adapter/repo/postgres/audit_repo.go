package postgres

import (
	"encoding/json"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/fairyhunter13/mainalyze/internal/domain"
)

// AuditRepo appends admin actions to admin_audit_logs.
type AuditRepo struct{ Pool PgxPool }

// NewAuditRepo constructs an AuditRepo.
func NewAuditRepo(p PgxPool) *AuditRepo { return &AuditRepo{Pool: p} }

var _ domain.AuditRepository = (*AuditRepo)(nil)

// Record inserts one audit entry.
func (r *AuditRepo) Record(ctx domain.Context, e domain.AuditEntry) error {
	ctx, span := otel.Tracer("repo.audit").Start(ctx, "audit.Record")
	defer span.End()
	details := e.Details
	if details == nil {
		details = map[string]any{}
	}
	raw, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("op=audit.record: %w", err)
	}
	created := e.CreatedAt
	if created.IsZero() {
		created = now()
	}
	q := `INSERT INTO admin_audit_logs (admin_id, action, resource_type, resource_id, details, ip_address, created_at) VALUES ($1,$2,$3,$4,$5,$6,$7)`
	if _, err := r.Pool.Exec(ctx, q, e.AdminID, e.Action, e.ResourceType, e.ResourceID, string(raw), e.IPAddress, created); err != nil {
		return fmt.Errorf("op=audit.record: %w", err)
	}
	return nil
}

// PruneBefore deletes entries older than cutoff and reports how many.
func (r *AuditRepo) PruneBefore(ctx domain.Context, cutoff time.Time) (int64, error) {
	ctx, span := otel.Tracer("repo.audit").Start(ctx, "audit.PruneBefore")
	defer span.End()
	tag, err := r.Pool.Exec(ctx, `DELETE FROM admin_audit_logs WHERE created_at < $1`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("op=audit.prune: %w", err)
	}
	return tag.RowsAffected(), nil
}
