package postgres

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"

	"github.com/fairyhunter13/mainalyze/internal/domain"
)

const evaluationColumns = `id, user_id, question, answer_text, answer_files, status, evaluation_result, error_message, created_at, updated_at`

// EvaluationRepo persists Mains evaluation jobs in mains_evaluations.
type EvaluationRepo struct{ Pool PgxPool }

// NewEvaluationRepo constructs an EvaluationRepo.
func NewEvaluationRepo(p PgxPool) *EvaluationRepo { return &EvaluationRepo{Pool: p} }

var _ domain.EvaluationRepository = (*EvaluationRepo)(nil)

// Create inserts a pending job. ID and timestamps are filled when empty.
func (r *EvaluationRepo) Create(ctx domain.Context, j domain.EvaluationJob) (domain.EvaluationJob, error) {
	ctx, span := otel.Tracer("repo.evaluations").Start(ctx, "evaluations.Create")
	defer span.End()
	if len(j.AnswerFiles) == 0 {
		return domain.EvaluationJob{}, fmt.Errorf("op=evaluation.create: %w: no answer files", domain.ErrInvalidArgument)
	}
	if j.ID == "" {
		j.ID = uuid.New().String()
	}
	j.Status = domain.EvaluationPending
	j.Result = nil
	j.ErrorMessage = ""
	ts := now()
	j.CreatedAt, j.UpdatedAt = ts, ts
	var answer *string
	if j.AnswerText != "" {
		answer = &j.AnswerText
	}
	q := `INSERT INTO mains_evaluations (id, user_id, question, answer_text, answer_files, status, created_at, updated_at) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`
	if _, err := r.Pool.Exec(ctx, q, j.ID, j.UserID, j.Question, answer, j.AnswerFiles, string(j.Status), j.CreatedAt, j.UpdatedAt); err != nil {
		return domain.EvaluationJob{}, fmt.Errorf("op=evaluation.create: %w", err)
	}
	return j, nil
}

// Get loads a job by id regardless of owner.
func (r *EvaluationRepo) Get(ctx domain.Context, id string) (domain.EvaluationJob, error) {
	ctx, span := otel.Tracer("repo.evaluations").Start(ctx, "evaluations.Get")
	defer span.End()
	q := `SELECT ` + evaluationColumns + ` FROM mains_evaluations WHERE id=$1`
	j, err := scanEvaluation(r.Pool.QueryRow(ctx, q, id))
	if err != nil {
		return domain.EvaluationJob{}, fmt.Errorf("op=evaluation.get: %w", err)
	}
	return j, nil
}

// GetForUser loads a job owned by userID.
func (r *EvaluationRepo) GetForUser(ctx domain.Context, id, userID string) (domain.EvaluationJob, error) {
	ctx, span := otel.Tracer("repo.evaluations").Start(ctx, "evaluations.GetForUser")
	defer span.End()
	q := `SELECT ` + evaluationColumns + ` FROM mains_evaluations WHERE id=$1 AND user_id=$2`
	j, err := scanEvaluation(r.Pool.QueryRow(ctx, q, id, userID))
	if err != nil {
		return domain.EvaluationJob{}, fmt.Errorf("op=evaluation.get_for_user: %w", err)
	}
	return j, nil
}

// ListForUser returns the user's jobs, newest first.
func (r *EvaluationRepo) ListForUser(ctx domain.Context, userID string, limit, offset int) ([]domain.EvaluationJob, error) {
	ctx, span := otel.Tracer("repo.evaluations").Start(ctx, "evaluations.ListForUser")
	defer span.End()
	q := `SELECT ` + evaluationColumns + ` FROM mains_evaluations WHERE user_id=$1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	return r.list(ctx, "op=evaluation.list", q, userID, limit, offset)
}

// CountForUser counts the user's jobs.
func (r *EvaluationRepo) CountForUser(ctx domain.Context, userID string) (int64, error) {
	ctx, span := otel.Tracer("repo.evaluations").Start(ctx, "evaluations.CountForUser")
	defer span.End()
	var n int64
	if err := r.Pool.QueryRow(ctx, `SELECT count(*) FROM mains_evaluations WHERE user_id=$1`, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("op=evaluation.count: %w", err)
	}
	return n, nil
}

// Complete moves a pending job to completed with its result.
func (r *EvaluationRepo) Complete(ctx domain.Context, id string, result domain.EvaluationResult, question string) error {
	ctx, span := otel.Tracer("repo.evaluations").Start(ctx, "evaluations.Complete")
	defer span.End()
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("op=evaluation.complete: %w", err)
	}
	q := `UPDATE mains_evaluations SET status='completed', evaluation_result=$2, question=$3, error_message='', updated_at=$4 WHERE id=$1 AND status='pending'`
	tag, err := r.Pool.Exec(ctx, q, id, string(raw), question, now())
	if err != nil {
		return fmt.Errorf("op=evaluation.complete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("op=evaluation.complete: %w", r.missOrConflict(ctx, id))
	}
	return nil
}

// Fail moves a pending job to failed with a diagnostic reason.
func (r *EvaluationRepo) Fail(ctx domain.Context, id, reason string) error {
	ctx, span := otel.Tracer("repo.evaluations").Start(ctx, "evaluations.Fail")
	defer span.End()
	q := `UPDATE mains_evaluations SET status='failed', error_message=$2, updated_at=$3 WHERE id=$1 AND status='pending'`
	tag, err := r.Pool.Exec(ctx, q, id, reason, now())
	if err != nil {
		return fmt.Errorf("op=evaluation.fail: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("op=evaluation.fail: %w", r.missOrConflict(ctx, id))
	}
	return nil
}

// Delete removes a job owned by userID; mentor notes cascade.
func (r *EvaluationRepo) Delete(ctx domain.Context, id, userID string) error {
	ctx, span := otel.Tracer("repo.evaluations").Start(ctx, "evaluations.Delete")
	defer span.End()
	tag, err := r.Pool.Exec(ctx, `DELETE FROM mains_evaluations WHERE id=$1 AND user_id=$2`, id, userID)
	if err != nil {
		return fmt.Errorf("op=evaluation.delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("op=evaluation.delete: %w", domain.ErrNotFound)
	}
	return nil
}

// ListStalePending returns pending jobs created before olderThan, oldest first.
func (r *EvaluationRepo) ListStalePending(ctx domain.Context, olderThan time.Time, limit int) ([]domain.EvaluationJob, error) {
	ctx, span := otel.Tracer("repo.evaluations").Start(ctx, "evaluations.ListStalePending")
	defer span.End()
	q := `SELECT ` + evaluationColumns + ` FROM mains_evaluations WHERE status='pending' AND created_at < $1 ORDER BY created_at ASC LIMIT $2`
	return r.list(ctx, "op=evaluation.list_stale", q, olderThan.UTC(), limit)
}

func (r *EvaluationRepo) list(ctx domain.Context, op, q string, args ...any) ([]domain.EvaluationJob, error) {
	rows, err := r.Pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()
	out := []domain.EvaluationJob{}
	for rows.Next() {
		j, err := scanEvaluation(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		out = append(out, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

// missOrConflict explains a guarded UPDATE that touched no rows.
func (r *EvaluationRepo) missOrConflict(ctx domain.Context, id string) error {
	var status string
	err := r.Pool.QueryRow(ctx, `SELECT status FROM mains_evaluations WHERE id=$1`, id).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: evaluation already %s", domain.ErrConflict, status)
}

func scanEvaluation(row scanner) (domain.EvaluationJob, error) {
	var (
		j       domain.EvaluationJob
		answer  *string
		status  string
		resultB []byte
	)
	if err := row.Scan(&j.ID, &j.UserID, &j.Question, &answer, &j.AnswerFiles, &status, &resultB, &j.ErrorMessage, &j.CreatedAt, &j.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.EvaluationJob{}, domain.ErrNotFound
		}
		return domain.EvaluationJob{}, err
	}
	if answer != nil {
		j.AnswerText = *answer
	}
	st, err := domain.ParseEvaluationStatus(status)
	if err != nil {
		return domain.EvaluationJob{}, err
	}
	j.Status = st
	if len(resultB) > 0 {
		var res domain.EvaluationResult
		if err := json.Unmarshal(resultB, &res); err != nil {
			return domain.EvaluationJob{}, fmt.Errorf("decode evaluation_result: %w", err)
		}
		j.Result = &res
	}
	return j, nil
}
