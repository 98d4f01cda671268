package domain

import (
	"io"
	"time"
)

// EvaluationRepository persists Mains evaluation jobs.
type EvaluationRepository interface {
	Create(ctx Context, job EvaluationJob) (EvaluationJob, error)
	Get(ctx Context, id string) (EvaluationJob, error)
	// GetForUser returns ErrNotFound when the job belongs to someone else.
	GetForUser(ctx Context, id, userID string) (EvaluationJob, error)
	ListForUser(ctx Context, userID string, limit, offset int) ([]EvaluationJob, error)
	CountForUser(ctx Context, userID string) (int64, error)
	// Complete and Fail only apply to pending jobs; otherwise ErrConflict.
	Complete(ctx Context, id string, result EvaluationResult, question string) error
	Fail(ctx Context, id, reason string) error
	Delete(ctx Context, id, userID string) error
	ListStalePending(ctx Context, olderThan time.Time, limit int) ([]EvaluationJob, error)
}

// SessionRepository persists Prelims practice sessions.
type SessionRepository interface {
	Create(ctx Context, s PracticeSession) (PracticeSession, error)
	GetForUser(ctx Context, id, userID string) (PracticeSession, error)
	ListForUser(ctx Context, userID string, limit, offset int) ([]PracticeSession, error)
	CountForUser(ctx Context, userID string) (int64, error)
	// Grade writes answers and score once; a second call yields ErrConflict.
	Grade(ctx Context, id, userID string, answers map[int]Option, score int) error
	Delete(ctx Context, id, userID string) error
}

// MentorNoteRepository stores cached AI elaborations keyed by NoteKey.
type MentorNoteRepository interface {
	Find(ctx Context, key NoteKey) (MentorNote, error)
	// Insert keeps the first writer's note when two race on the same key.
	Insert(ctx Context, note MentorNote) error
}

// ProfileRepository persists user profiles.
type ProfileRepository interface {
	Get(ctx Context, id string) (Profile, error)
	Ensure(ctx Context, id, email string) (Profile, error)
	Update(ctx Context, id string, upd ProfileUpdate) (Profile, error)
	SetAdmin(ctx Context, id string, isAdmin bool) (Profile, error)
	ListWithStats(ctx Context, limit, offset int) ([]UserStats, int64, error)
	GetWithStats(ctx Context, id string) (UserStats, error)
}

// AuditRepository records admin actions.
type AuditRepository interface {
	Record(ctx Context, e AuditEntry) error
	PruneBefore(ctx Context, cutoff time.Time) (int64, error)
}

// ObjectStore persists uploaded files.
type ObjectStore interface {
	Put(ctx Context, key, contentType string, r io.Reader) (StoredObject, error)
	PublicURL(key string) string
}

// FileFetcher dereferences a file reference into bytes.
type FileFetcher interface {
	Fetch(ctx Context, ref string, maxBytes int64) (FetchedFile, error)
}

// Dispatcher hands an evaluation to the background processor durably.
type Dispatcher interface {
	Dispatch(ctx Context, task EvaluateTask) error
}

// AIClient performs one model call and returns the raw text.
type AIClient interface {
	Generate(ctx Context, req GenerateRequest) (string, error)
}

// StatusNotifier fans out job status changes to interested readers.
type StatusNotifier interface {
	Publish(ctx Context, ev StatusEvent) error
	// Subscribe returns a channel closed when ctx ends, plus a cancel func.
	Subscribe(ctx Context, evaluationID string) (<-chan StatusEvent, func(), error)
}

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() time.Time { return time.Now() }
