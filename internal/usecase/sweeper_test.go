package usecase_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/mainalyze/internal/domain"
	"github.com/fairyhunter13/mainalyze/internal/domain/mocks"
	"github.com/fairyhunter13/mainalyze/internal/usecase"
)

func TestSweepOnce_FailsStaleJobs(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	jobs := &mocks.EvaluationRepository{}
	notifier := &mocks.StatusNotifier{}
	jobs.On("ListStalePending", mock.Anything, now.Add(-15*time.Minute), 50).
		Return([]domain.EvaluationJob{{ID: "e1"}, {ID: "e2"}, {ID: "e3"}}, nil)
	jobs.On("Fail", mock.Anything, "e1", mock.MatchedBy(func(r string) bool { return r == domain.FailureReason(domain.FailureStuck) })).Return(nil)
	jobs.On("Fail", mock.Anything, "e2", mock.Anything).Return(domain.ErrConflict)
	jobs.On("Fail", mock.Anything, "e3", mock.Anything).Return(nil)
	notifier.On("Publish", mock.Anything, mock.MatchedBy(func(ev domain.StatusEvent) bool {
		return ev.Status == domain.EvaluationFailed && ev.EvaluationID != "e2"
	})).Return(nil).Twice()

	s := usecase.StuckSweeper{Jobs: jobs, Notifier: notifier, Age: 15 * time.Minute, Batch: 50, FailPolicy: fastPolicy, Now: func() time.Time { return now }}
	n, err := s.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	jobs.AssertNumberOfCalls(t, "Fail", 3)
	notifier.AssertExpectations(t)
}

func TestSweepOnce_ListError(t *testing.T) {
	jobs := &mocks.EvaluationRepository{}
	jobs.On("ListStalePending", mock.Anything, mock.Anything, usecase.DefaultSweepBatch).Return(nil, errors.New("db down"))
	_, err := usecase.StuckSweeper{Jobs: jobs, Age: time.Minute}.SweepOnce(context.Background())
	assert.Error(t, err)
}

func TestMarkFailed_RetriesThenGivesUp(t *testing.T) {
	jobs := &mocks.EvaluationRepository{}
	jobs.On("Fail", mock.Anything, "e1", mock.Anything).Return(errors.New("timeout"))
	err := usecase.MarkFailed(context.Background(), jobs, "e1", "boom", fastPolicy)
	require.Error(t, err)
	jobs.AssertNumberOfCalls(t, "Fail", 3)
}

func TestMarkFailed_ConflictIsFinal(t *testing.T) {
	jobs := &mocks.EvaluationRepository{}
	jobs.On("Fail", mock.Anything, "e1", mock.Anything).Return(domain.ErrConflict)
	err := usecase.MarkFailed(context.Background(), jobs, "e1", "boom", fastPolicy)
	assert.ErrorIs(t, err, domain.ErrConflict)
	jobs.AssertNumberOfCalls(t, "Fail", 1)
}

func TestMarkFailed_TruncatesReason(t *testing.T) {
	jobs := &mocks.EvaluationRepository{}
	jobs.On("Fail", mock.Anything, "e1", mock.MatchedBy(func(r string) bool { return len([]rune(r)) == 1001 && strings.HasSuffix(r, "…") })).Return(nil).Once()
	long := make([]rune, 5000)
	for i := range long {
		long[i] = 'x'
	}
	require.NoError(t, usecase.MarkFailed(context.Background(), jobs, "e1", string(long), fastPolicy))
	jobs.AssertExpectations(t)
}
