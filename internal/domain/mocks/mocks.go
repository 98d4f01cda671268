// Package mocks provides testify mocks for the domain ports.
package mocks

import (
	"context"
	"io"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/fairyhunter13/mainalyze/internal/domain"
)

// EvaluationRepository mocks domain.EvaluationRepository.
type EvaluationRepository struct{ mock.Mock }

func (m *EvaluationRepository) Create(ctx context.Context, job domain.EvaluationJob) (domain.EvaluationJob, error) {
	args := m.Called(ctx, job)
	if fn, ok := args.Get(0).(func(context.Context, domain.EvaluationJob) domain.EvaluationJob); ok {
		return fn(ctx, job), args.Error(1)
	}
	return args.Get(0).(domain.EvaluationJob), args.Error(1)
}

func (m *EvaluationRepository) Get(ctx context.Context, id string) (domain.EvaluationJob, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(domain.EvaluationJob), args.Error(1)
}

func (m *EvaluationRepository) GetForUser(ctx context.Context, id, userID string) (domain.EvaluationJob, error) {
	args := m.Called(ctx, id, userID)
	return args.Get(0).(domain.EvaluationJob), args.Error(1)
}

func (m *EvaluationRepository) ListForUser(ctx context.Context, userID string, limit, offset int) ([]domain.EvaluationJob, error) {
	args := m.Called(ctx, userID, limit, offset)
	jobs, _ := args.Get(0).([]domain.EvaluationJob)
	return jobs, args.Error(1)
}

func (m *EvaluationRepository) CountForUser(ctx context.Context, userID string) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *EvaluationRepository) Complete(ctx context.Context, id string, result domain.EvaluationResult, question string) error {
	return m.Called(ctx, id, result, question).Error(0)
}

func (m *EvaluationRepository) Fail(ctx context.Context, id, reason string) error {
	return m.Called(ctx, id, reason).Error(0)
}

func (m *EvaluationRepository) Delete(ctx context.Context, id, userID string) error {
	return m.Called(ctx, id, userID).Error(0)
}

func (m *EvaluationRepository) ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]domain.EvaluationJob, error) {
	args := m.Called(ctx, olderThan, limit)
	jobs, _ := args.Get(0).([]domain.EvaluationJob)
	return jobs, args.Error(1)
}

// SessionRepository mocks domain.SessionRepository.
type SessionRepository struct{ mock.Mock }

func (m *SessionRepository) Create(ctx context.Context, s domain.PracticeSession) (domain.PracticeSession, error) {
	args := m.Called(ctx, s)
	if fn, ok := args.Get(0).(func(context.Context, domain.PracticeSession) domain.PracticeSession); ok {
		return fn(ctx, s), args.Error(1)
	}
	return args.Get(0).(domain.PracticeSession), args.Error(1)
}

func (m *SessionRepository) GetForUser(ctx context.Context, id, userID string) (domain.PracticeSession, error) {
	args := m.Called(ctx, id, userID)
	return args.Get(0).(domain.PracticeSession), args.Error(1)
}

func (m *SessionRepository) ListForUser(ctx context.Context, userID string, limit, offset int) ([]domain.PracticeSession, error) {
	args := m.Called(ctx, userID, limit, offset)
	out, _ := args.Get(0).([]domain.PracticeSession)
	return out, args.Error(1)
}

func (m *SessionRepository) CountForUser(ctx context.Context, userID string) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *SessionRepository) Grade(ctx context.Context, id, userID string, answers map[int]domain.Option, score int) error {
	return m.Called(ctx, id, userID, answers, score).Error(0)
}

func (m *SessionRepository) Delete(ctx context.Context, id, userID string) error {
	return m.Called(ctx, id, userID).Error(0)
}

// MentorNoteRepository mocks domain.MentorNoteRepository.
type MentorNoteRepository struct{ mock.Mock }

func (m *MentorNoteRepository) Find(ctx context.Context, key domain.NoteKey) (domain.MentorNote, error) {
	args := m.Called(ctx, key)
	return args.Get(0).(domain.MentorNote), args.Error(1)
}

func (m *MentorNoteRepository) Insert(ctx context.Context, note domain.MentorNote) error {
	return m.Called(ctx, note).Error(0)
}

// ProfileRepository mocks domain.ProfileRepository.
type ProfileRepository struct{ mock.Mock }

func (m *ProfileRepository) Get(ctx context.Context, id string) (domain.Profile, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(domain.Profile), args.Error(1)
}

func (m *ProfileRepository) Ensure(ctx context.Context, id, email string) (domain.Profile, error) {
	args := m.Called(ctx, id, email)
	return args.Get(0).(domain.Profile), args.Error(1)
}

func (m *ProfileRepository) Update(ctx context.Context, id string, upd domain.ProfileUpdate) (domain.Profile, error) {
	args := m.Called(ctx, id, upd)
	return args.Get(0).(domain.Profile), args.Error(1)
}

func (m *ProfileRepository) SetAdmin(ctx context.Context, id string, isAdmin bool) (domain.Profile, error) {
	args := m.Called(ctx, id, isAdmin)
	return args.Get(0).(domain.Profile), args.Error(1)
}

func (m *ProfileRepository) ListWithStats(ctx context.Context, limit, offset int) ([]domain.UserStats, int64, error) {
	args := m.Called(ctx, limit, offset)
	out, _ := args.Get(0).([]domain.UserStats)
	return out, args.Get(1).(int64), args.Error(2)
}

func (m *ProfileRepository) GetWithStats(ctx context.Context, id string) (domain.UserStats, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(domain.UserStats), args.Error(1)
}

// AuditRepository mocks domain.AuditRepository.
type AuditRepository struct{ mock.Mock }

func (m *AuditRepository) Record(ctx context.Context, e domain.AuditEntry) error {
	return m.Called(ctx, e).Error(0)
}

func (m *AuditRepository) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

// ObjectStore mocks domain.ObjectStore.
type ObjectStore struct{ mock.Mock }

func (m *ObjectStore) Put(ctx context.Context, key, contentType string, r io.Reader) (domain.StoredObject, error) {
	args := m.Called(ctx, key, contentType, r)
	return args.Get(0).(domain.StoredObject), args.Error(1)
}

func (m *ObjectStore) PublicURL(key string) string {
	return m.Called(key).String(0)
}

// FileFetcher mocks domain.FileFetcher.
type FileFetcher struct{ mock.Mock }

func (m *FileFetcher) Fetch(ctx context.Context, ref string, maxBytes int64) (domain.FetchedFile, error) {
	args := m.Called(ctx, ref, maxBytes)
	return args.Get(0).(domain.FetchedFile), args.Error(1)
}

// Dispatcher mocks domain.Dispatcher.
type Dispatcher struct{ mock.Mock }

func (m *Dispatcher) Dispatch(ctx context.Context, task domain.EvaluateTask) error {
	return m.Called(ctx, task).Error(0)
}

// AIClient mocks domain.AIClient.
type AIClient struct{ mock.Mock }

func (m *AIClient) Generate(ctx context.Context, req domain.GenerateRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

// StatusNotifier mocks domain.StatusNotifier.
type StatusNotifier struct{ mock.Mock }

func (m *StatusNotifier) Publish(ctx context.Context, ev domain.StatusEvent) error {
	return m.Called(ctx, ev).Error(0)
}

func (m *StatusNotifier) Subscribe(ctx context.Context, evaluationID string) (<-chan domain.StatusEvent, func(), error) {
	args := m.Called(ctx, evaluationID)
	ch, _ := args.Get(0).(<-chan domain.StatusEvent)
	cancel, _ := args.Get(1).(func())
	return ch, cancel, args.Error(2)
}
