package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"

	"github.com/fairyhunter13/mainalyze/internal/domain"
)

const profileColumns = `p.id, p.email, p.full_name, p.exam_preparing_for, p.is_admin, p.created_at, p.updated_at`

const profileStatsColumns = profileColumns + `,
	(SELECT count(*) FROM mains_evaluations e WHERE e.user_id = p.id),
	(SELECT count(*) FROM prelims_sessions s WHERE s.user_id = p.id)`

// ProfileRepo persists user profiles.
type ProfileRepo struct{ Pool PgxPool }

// NewProfileRepo constructs a ProfileRepo.
func NewProfileRepo(p PgxPool) *ProfileRepo { return &ProfileRepo{Pool: p} }

var _ domain.ProfileRepository = (*ProfileRepo)(nil)

// Get loads a profile by user id.
func (r *ProfileRepo) Get(ctx domain.Context, id string) (domain.Profile, error) {
	ctx, span := otel.Tracer("repo.profiles").Start(ctx, "profiles.Get")
	defer span.End()
	p, err := scanProfile(r.Pool.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles p WHERE p.id=$1`, id))
	if err != nil {
		return domain.Profile{}, fmt.Errorf("op=profile.get: %w", err)
	}
	return p, nil
}

// Ensure creates the profile on first sight and returns the stored row.
func (r *ProfileRepo) Ensure(ctx domain.Context, id, email string) (domain.Profile, error) {
	ctx, span := otel.Tracer("repo.profiles").Start(ctx, "profiles.Ensure")
	defer span.End()
	ts := now()
	q := `INSERT INTO profiles (id, email, created_at, updated_at) VALUES ($1,$2,$3,$3) ON CONFLICT (id) DO NOTHING`
	if _, err := r.Pool.Exec(ctx, q, id, email, ts); err != nil {
		return domain.Profile{}, fmt.Errorf("op=profile.ensure: %w", err)
	}
	return r.Get(ctx, id)
}

// Update changes the user-editable fields; nil fields are left alone.
func (r *ProfileRepo) Update(ctx domain.Context, id string, upd domain.ProfileUpdate) (domain.Profile, error) {
	ctx, span := otel.Tracer("repo.profiles").Start(ctx, "profiles.Update")
	defer span.End()
	q := `UPDATE profiles p SET full_name=COALESCE($2, p.full_name), exam_preparing_for=COALESCE($3, p.exam_preparing_for), updated_at=$4 WHERE p.id=$1 RETURNING ` + profileColumns
	prof, err := scanProfile(r.Pool.QueryRow(ctx, q, id, upd.FullName, upd.ExamPreparingFor, now()))
	if err != nil {
		return domain.Profile{}, fmt.Errorf("op=profile.update: %w", err)
	}
	return prof, nil
}

// SetAdmin grants or revokes the admin role.
func (r *ProfileRepo) SetAdmin(ctx domain.Context, id string, isAdmin bool) (domain.Profile, error) {
	ctx, span := otel.Tracer("repo.profiles").Start(ctx, "profiles.SetAdmin")
	defer span.End()
	q := `UPDATE profiles p SET is_admin=$2, updated_at=$3 WHERE p.id=$1 RETURNING ` + profileColumns
	prof, err := scanProfile(r.Pool.QueryRow(ctx, q, id, isAdmin, now()))
	if err != nil {
		return domain.Profile{}, fmt.Errorf("op=profile.set_admin: %w", err)
	}
	return prof, nil
}

// ListWithStats pages through profiles with activity counts, newest first.
func (r *ProfileRepo) ListWithStats(ctx domain.Context, limit, offset int) ([]domain.UserStats, int64, error) {
	ctx, span := otel.Tracer("repo.profiles").Start(ctx, "profiles.ListWithStats")
	defer span.End()
	var total int64
	if err := r.Pool.QueryRow(ctx, `SELECT count(*) FROM profiles`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("op=profile.list_stats: %w", err)
	}
	q := `SELECT ` + profileStatsColumns + ` FROM profiles p ORDER BY p.created_at DESC LIMIT $1 OFFSET $2`
	rows, err := r.Pool.Query(ctx, q, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("op=profile.list_stats: %w", err)
	}
	defer rows.Close()
	out := []domain.UserStats{}
	for rows.Next() {
		u, err := scanUserStats(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("op=profile.list_stats: %w", err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("op=profile.list_stats: %w", err)
	}
	return out, total, nil
}

// GetWithStats loads one profile with activity counts.
func (r *ProfileRepo) GetWithStats(ctx domain.Context, id string) (domain.UserStats, error) {
	ctx, span := otel.Tracer("repo.profiles").Start(ctx, "profiles.GetWithStats")
	defer span.End()
	u, err := scanUserStats(r.Pool.QueryRow(ctx, `SELECT `+profileStatsColumns+` FROM profiles p WHERE p.id=$1`, id))
	if err != nil {
		return domain.UserStats{}, fmt.Errorf("op=profile.get_stats: %w", err)
	}
	return u, nil
}

func scanProfile(row scanner) (domain.Profile, error) {
	var p domain.Profile
	if err := row.Scan(&p.ID, &p.Email, &p.FullName, &p.ExamPreparingFor, &p.IsAdmin, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Profile{}, domain.ErrNotFound
		}
		return domain.Profile{}, err
	}
	return p, nil
}

func scanUserStats(row scanner) (domain.UserStats, error) {
	var u domain.UserStats
	var mains, prelims int64
	err := row.Scan(&u.ID, &u.Email, &u.FullName, &u.ExamPreparingFor, &u.IsAdmin, &u.CreatedAt, &u.UpdatedAt, &mains, &prelims)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.UserStats{}, domain.ErrNotFound
		}
		return domain.UserStats{}, err
	}
	u.MainsEvaluationsCount = int(mains)
	u.PrelimsSessionsCount = int(prelims)
	return u, nil
}
