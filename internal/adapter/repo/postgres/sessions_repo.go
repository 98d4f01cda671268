package postgres

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"

	"github.com/fairyhunter13/mainalyze/internal/domain"
)

const sessionColumns = `id, user_id, topic, difficulty, questions, user_answers, score, created_at`

// SessionRepo persists Prelims practice sessions in prelims_sessions.
type SessionRepo struct{ Pool PgxPool }

// NewSessionRepo constructs a SessionRepo.
func NewSessionRepo(p PgxPool) *SessionRepo { return &SessionRepo{Pool: p} }

var _ domain.SessionRepository = (*SessionRepo)(nil)

// Create inserts an ungraded session.
func (r *SessionRepo) Create(ctx domain.Context, s domain.PracticeSession) (domain.PracticeSession, error) {
	ctx, span := otel.Tracer("repo.sessions").Start(ctx, "sessions.Create")
	defer span.End()
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	s.UserAnswers, s.Score = nil, nil
	s.CreatedAt = now()
	qs, err := json.Marshal(s.Questions)
	if err != nil {
		return domain.PracticeSession{}, fmt.Errorf("op=session.create: %w", err)
	}
	q := `INSERT INTO prelims_sessions (id, user_id, topic, difficulty, questions, created_at) VALUES ($1,$2,$3,$4,$5,$6)`
	if _, err := r.Pool.Exec(ctx, q, s.ID, s.UserID, s.Topic, string(s.Difficulty), string(qs), s.CreatedAt); err != nil {
		return domain.PracticeSession{}, fmt.Errorf("op=session.create: %w", err)
	}
	return s, nil
}

// GetForUser loads a session owned by userID.
func (r *SessionRepo) GetForUser(ctx domain.Context, id, userID string) (domain.PracticeSession, error) {
	ctx, span := otel.Tracer("repo.sessions").Start(ctx, "sessions.GetForUser")
	defer span.End()
	q := `SELECT ` + sessionColumns + ` FROM prelims_sessions WHERE id=$1 AND user_id=$2`
	s, err := scanSession(r.Pool.QueryRow(ctx, q, id, userID))
	if err != nil {
		return domain.PracticeSession{}, fmt.Errorf("op=session.get_for_user: %w", err)
	}
	return s, nil
}

// ListForUser returns the user's sessions, newest first.
func (r *SessionRepo) ListForUser(ctx domain.Context, userID string, limit, offset int) ([]domain.PracticeSession, error) {
	ctx, span := otel.Tracer("repo.sessions").Start(ctx, "sessions.ListForUser")
	defer span.End()
	q := `SELECT ` + sessionColumns + ` FROM prelims_sessions WHERE user_id=$1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	rows, err := r.Pool.Query(ctx, q, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("op=session.list: %w", err)
	}
	defer rows.Close()
	out := []domain.PracticeSession{}
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("op=session.list: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=session.list: %w", err)
	}
	return out, nil
}

// CountForUser counts the user's sessions.
func (r *SessionRepo) CountForUser(ctx domain.Context, userID string) (int64, error) {
	ctx, span := otel.Tracer("repo.sessions").Start(ctx, "sessions.CountForUser")
	defer span.End()
	var n int64
	if err := r.Pool.QueryRow(ctx, `SELECT count(*) FROM prelims_sessions WHERE user_id=$1`, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("op=session.count: %w", err)
	}
	return n, nil
}

// Grade stores answers and score once. Grading again is a conflict.
func (r *SessionRepo) Grade(ctx domain.Context, id, userID string, answers map[int]domain.Option, score int) error {
	ctx, span := otel.Tracer("repo.sessions").Start(ctx, "sessions.Grade")
	defer span.End()
	if answers == nil {
		answers = map[int]domain.Option{}
	}
	raw, err := json.Marshal(answers)
	if err != nil {
		return fmt.Errorf("op=session.grade: %w", err)
	}
	q := `UPDATE prelims_sessions SET user_answers=$3, score=$4 WHERE id=$1 AND user_id=$2 AND score IS NULL`
	tag, err := r.Pool.Exec(ctx, q, id, userID, string(raw), score)
	if err != nil {
		return fmt.Errorf("op=session.grade: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	var exists bool
	if err := r.Pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM prelims_sessions WHERE id=$1 AND user_id=$2)`, id, userID).Scan(&exists); err != nil {
		return fmt.Errorf("op=session.grade: %w", err)
	}
	if !exists {
		return fmt.Errorf("op=session.grade: %w", domain.ErrNotFound)
	}
	return fmt.Errorf("op=session.grade: %w: session already graded", domain.ErrConflict)
}

// Delete removes a session owned by userID; explanations cascade.
func (r *SessionRepo) Delete(ctx domain.Context, id, userID string) error {
	ctx, span := otel.Tracer("repo.sessions").Start(ctx, "sessions.Delete")
	defer span.End()
	tag, err := r.Pool.Exec(ctx, `DELETE FROM prelims_sessions WHERE id=$1 AND user_id=$2`, id, userID)
	if err != nil {
		return fmt.Errorf("op=session.delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("op=session.delete: %w", domain.ErrNotFound)
	}
	return nil
}

func scanSession(row scanner) (domain.PracticeSession, error) {
	var (
		s          domain.PracticeSession
		difficulty string
		questionsB []byte
		answersB   []byte
	)
	if err := row.Scan(&s.ID, &s.UserID, &s.Topic, &difficulty, &questionsB, &answersB, &s.Score, &s.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.PracticeSession{}, domain.ErrNotFound
		}
		return domain.PracticeSession{}, err
	}
	d, err := domain.ParseDifficulty(difficulty)
	if err != nil {
		return domain.PracticeSession{}, err
	}
	s.Difficulty = d
	if err := json.Unmarshal(questionsB, &s.Questions); err != nil {
		return domain.PracticeSession{}, fmt.Errorf("decode questions: %w", err)
	}
	if len(answersB) > 0 {
		if err := json.Unmarshal(answersB, &s.UserAnswers); err != nil {
			return domain.PracticeSession{}, fmt.Errorf("decode user_answers: %w", err)
		}
	}
	return s, nil
}
