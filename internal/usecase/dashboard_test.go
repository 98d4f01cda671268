package usecase_test

import (
	"context"
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

func TestDashboard_MergesNewestFirst(t *testing.T) {
	jobs := &mocks.EvaluationRepository{}
	sessions := &mocks.SessionRepository{}
	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	at := func(h int) time.Time { return base.Add(time.Duration(h) * time.Hour) }

	jobs.On("CountForUser", mock.Anything, "u1").Return(int64(7), nil)
	sessions.On("CountForUser", mock.Anything, "u1").Return(int64(4), nil)
	jobs.On("ListForUser", mock.Anything, "u1", usecase.RecentActivityLimit, 0).Return([]domain.EvaluationJob{
		{ID: "e3", Question: strings.Repeat("q", 150), Status: domain.EvaluationPending, CreatedAt: at(9)},
		{ID: "e2", Question: "short", Status: domain.EvaluationCompleted, CreatedAt: at(5)},
		{ID: "e1", Question: "old", Status: domain.EvaluationFailed, CreatedAt: at(1)},
	}, nil)
	sessions.On("ListForUser", mock.Anything, "u1", usecase.RecentActivityLimit, 0).Return([]domain.PracticeSession{
		{ID: "s3", Topic: "Economy", Difficulty: domain.DifficultyUPSCLevel, CreatedAt: at(8)},
		{ID: "s2", Topic: "History", CreatedAt: at(4)},
		{ID: "s1", Topic: "Art", CreatedAt: at(0)},
	}, nil)

	d, err := usecase.NewDashboardService(jobs, sessions).Summary(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(7), d.MainsEvaluations)
	assert.Equal(t, int64(4), d.PrelimsSessions)

	var ids []string
	for _, a := range d.RecentActivity {
		ids = append(ids, a.ID)
	}
	assert.Equal(t, []string{"e3", "s3", "e2", "s2", "e1"}, ids)
	assert.Equal(t, "mains", d.RecentActivity[0].Type)
	assert.Equal(t, strings.Repeat("q", 100)+"…", d.RecentActivity[0].Title)
	assert.Equal(t, "prelims", d.RecentActivity[1].Type)
	assert.Equal(t, "Economy", d.RecentActivity[1].Title)
}

func TestDashboard_EmptyUser(t *testing.T) {
	jobs := &mocks.EvaluationRepository{}
	sessions := &mocks.SessionRepository{}
	jobs.On("CountForUser", mock.Anything, "u1").Return(int64(0), nil)
	sessions.On("CountForUser", mock.Anything, "u1").Return(int64(0), nil)
	jobs.On("ListForUser", mock.Anything, "u1", mock.Anything, 0).Return(nil, nil)
	sessions.On("ListForUser", mock.Anything, "u1", mock.Anything, 0).Return(nil, nil)

	d, err := usecase.NewDashboardService(jobs, sessions).Summary(context.Background(), "u1")
	require.NoError(t, err)
	assert.NotNil(t, d.RecentActivity)
	assert.Empty(t, d.RecentActivity)
}
