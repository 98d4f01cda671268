package usecase

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/fairyhunter13/mainalyze/internal/domain"
	obsctx "github.com/fairyhunter13/mainalyze/internal/observability"
)

// Audited admin actions.
const (
	ActionListUsers      = "list_users"
	ActionViewUser       = "view_user"
	ActionUpdateUserRole = "update_user_role"
)

// Actor is the admin performing an action.
type Actor struct {
	ID string
	IP string
}

// AdminService serves the admin surface. Every call checks the actor's
// is_admin flag and leaves an audit entry.
type AdminService struct {
	Profiles domain.ProfileRepository
	Audit    domain.AuditRepository
}

// NewAdminService constructs an AdminService.
func NewAdminService(p domain.ProfileRepository, a domain.AuditRepository) AdminService {
	return AdminService{Profiles: p, Audit: a}
}

// RequireAdmin returns ErrForbidden unless id belongs to an admin.
func (s AdminService) RequireAdmin(ctx domain.Context, id string) error {
	p, err := s.Profiles.Get(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("%w: admin access required", domain.ErrForbidden)
		}
		return fmt.Errorf("op=admin.require: %w", err)
	}
	if !p.IsAdmin {
		return fmt.Errorf("%w: admin access required", domain.ErrForbidden)
	}
	return nil
}

// ListUsers returns one page of profiles with activity counts and the total.
func (s AdminService) ListUsers(ctx domain.Context, actor Actor, limit, offset int) ([]domain.UserStats, int64, error) {
	if err := s.RequireAdmin(ctx, actor.ID); err != nil {
		return nil, 0, err
	}
	limit, offset = Page(limit, offset)
	users, total, err := s.Profiles.ListWithStats(ctx, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("op=admin.list_users: %w", err)
	}
	s.record(ctx, actor, ActionListUsers, "", map[string]any{"limit": limit, "offset": offset, "returned": len(users)})
	return users, total, nil
}

// GetUser returns one profile with activity counts.
func (s AdminService) GetUser(ctx domain.Context, actor Actor, id string) (domain.UserStats, error) {
	if err := s.RequireAdmin(ctx, actor.ID); err != nil {
		return domain.UserStats{}, err
	}
	u, err := s.Profiles.GetWithStats(ctx, id)
	if err != nil {
		return domain.UserStats{}, fmt.Errorf("op=admin.get_user: %w", err)
	}
	s.record(ctx, actor, ActionViewUser, id, nil)
	return u, nil
}

// SetAdmin grants or revokes admin rights.
func (s AdminService) SetAdmin(ctx domain.Context, actor Actor, id string, isAdmin bool) (domain.Profile, error) {
	if err := s.RequireAdmin(ctx, actor.ID); err != nil {
		return domain.Profile{}, err
	}
	if id == actor.ID && !isAdmin {
		return domain.Profile{}, fmt.Errorf("%w: admins cannot revoke their own access", domain.ErrConflict)
	}
	p, err := s.Profiles.SetAdmin(ctx, id, isAdmin)
	if err != nil {
		return domain.Profile{}, fmt.Errorf("op=admin.set_admin: %w", err)
	}
	s.record(ctx, actor, ActionUpdateUserRole, id, map[string]any{"is_admin": isAdmin})
	return p, nil
}

// record writes the audit row and an "audit" log line. A failed write is
// logged; the action itself already happened.
func (s AdminService) record(ctx domain.Context, actor Actor, action, resourceID string, details map[string]any) {
	lg := obsctx.LoggerFromContext(ctx)
	lg.Info("audit",
		slog.String("admin_id", actor.ID),
		slog.String("action", action),
		slog.String("resource_type", "user"),
		slog.String("resource_id", resourceID),
		slog.String("ip", actor.IP),
		slog.Any("details", details))
	if s.Audit == nil {
		return
	}
	err := s.Audit.Record(ctx, domain.AuditEntry{
		AdminID:      actor.ID,
		Action:       action,
		ResourceType: "user",
		ResourceID:   resourceID,
		Details:      details,
		IPAddress:    actor.IP,
	})
	if err != nil {
		lg.Error("audit write failed", slog.String("action", action), slog.Any("error", err))
	}
}
