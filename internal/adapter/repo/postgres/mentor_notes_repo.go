package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"

	"github.com/fairyhunter13/mainalyze/internal/domain"
)

// MentorNoteRepo stores cached explanations and guidance. Each note kind
// lives in its own table with a unique (parent, index) pair.
type MentorNoteRepo struct{ Pool PgxPool }

// NewMentorNoteRepo constructs a MentorNoteRepo.
func NewMentorNoteRepo(p PgxPool) *MentorNoteRepo { return &MentorNoteRepo{Pool: p} }

var _ domain.MentorNoteRepository = (*MentorNoteRepo)(nil)

// Find loads the note for key or returns ErrNotFound.
func (r *MentorNoteRepo) Find(ctx domain.Context, key domain.NoteKey) (domain.MentorNote, error) {
	ctx, span := otel.Tracer("repo.mentor_notes").Start(ctx, "mentor_notes.Find")
	defer span.End()
	var q string
	switch key.Kind {
	case domain.NotePrelimsExplanation:
		q = `SELECT explanation, '', created_at FROM prelims_personalized_explanations WHERE session_id=$1 AND question_index=$2`
	case domain.NoteMainsGuidance:
		q = `SELECT mentor_response, action_item_text, created_at FROM mains_mentor_guidance WHERE evaluation_id=$1 AND action_item_index=$2`
	default:
		return domain.MentorNote{}, fmt.Errorf("op=mentor_note.find: %w: unknown kind %q", domain.ErrInvalidArgument, key.Kind)
	}
	n := domain.MentorNote{Key: key}
	if err := r.Pool.QueryRow(ctx, q, key.ParentID, key.ItemIndex).Scan(&n.Body, &n.ItemText, &n.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.MentorNote{}, fmt.Errorf("op=mentor_note.find: %w", domain.ErrNotFound)
		}
		return domain.MentorNote{}, fmt.Errorf("op=mentor_note.find: %w", err)
	}
	return n, nil
}

// Insert stores the note; an existing note for the key is kept.
func (r *MentorNoteRepo) Insert(ctx domain.Context, n domain.MentorNote) error {
	ctx, span := otel.Tracer("repo.mentor_notes").Start(ctx, "mentor_notes.Insert")
	defer span.End()
	var (
		q    string
		args []any
	)
	switch n.Key.Kind {
	case domain.NotePrelimsExplanation:
		q = `INSERT INTO prelims_personalized_explanations (session_id, question_index, explanation, created_at) VALUES ($1,$2,$3,$4) ON CONFLICT (session_id, question_index) DO NOTHING`
		args = []any{n.Key.ParentID, n.Key.ItemIndex, n.Body, now()}
	case domain.NoteMainsGuidance:
		q = `INSERT INTO mains_mentor_guidance (evaluation_id, action_item_index, action_item_text, mentor_response, created_at) VALUES ($1,$2,$3,$4,$5) ON CONFLICT (evaluation_id, action_item_index) DO NOTHING`
		args = []any{n.Key.ParentID, n.Key.ItemIndex, n.ItemText, n.Body, now()}
	default:
		return fmt.Errorf("op=mentor_note.insert: %w: unknown kind %q", domain.ErrInvalidArgument, n.Key.Kind)
	}
	if _, err := r.Pool.Exec(ctx, q, args...); err != nil {
		return fmt.Errorf("op=mentor_note.insert: %w", err)
	}
	return nil
}
