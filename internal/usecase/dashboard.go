package usecase

import (
	"fmt"
	"sort"

	"github.com/fairyhunter13/mainalyze/internal/domain"
	"github.com/fairyhunter13/mainalyze/pkg/textx"
)

// RecentActivityLimit caps the dashboard feed.
const RecentActivityLimit = 5

// Dashboard summarises the caller's activity.
type Dashboard struct {
	MainsEvaluations int64             `json:"mains_evaluations"`
	PrelimsSessions  int64             `json:"prelims_sessions"`
	RecentActivity   []domain.Activity `json:"recent_activity"`
}

// DashboardService builds the dashboard from both activity tables.
type DashboardService struct {
	Jobs     domain.EvaluationRepository
	Sessions domain.SessionRepository
}

// NewDashboardService constructs a DashboardService.
func NewDashboardService(j domain.EvaluationRepository, s domain.SessionRepository) DashboardService {
	return DashboardService{Jobs: j, Sessions: s}
}

// Summary returns counts and the most recent evaluations and sessions merged
// newest first.
func (s DashboardService) Summary(ctx domain.Context, userID string) (Dashboard, error) {
	var d Dashboard
	var err error
	if d.MainsEvaluations, err = s.Jobs.CountForUser(ctx, userID); err != nil {
		return Dashboard{}, fmt.Errorf("op=dashboard.summary: %w", err)
	}
	if d.PrelimsSessions, err = s.Sessions.CountForUser(ctx, userID); err != nil {
		return Dashboard{}, fmt.Errorf("op=dashboard.summary: %w", err)
	}
	jobs, err := s.Jobs.ListForUser(ctx, userID, RecentActivityLimit, 0)
	if err != nil {
		return Dashboard{}, fmt.Errorf("op=dashboard.summary: %w", err)
	}
	sessions, err := s.Sessions.ListForUser(ctx, userID, RecentActivityLimit, 0)
	if err != nil {
		return Dashboard{}, fmt.Errorf("op=dashboard.summary: %w", err)
	}

	feed := make([]domain.Activity, 0, len(jobs)+len(sessions))
	for _, j := range jobs {
		feed = append(feed, domain.Activity{
			ID:        j.ID,
			Type:      "mains",
			Title:     textx.Truncate(j.Question, 100),
			Status:    j.Status,
			CreatedAt: j.CreatedAt,
		})
	}
	for _, ps := range sessions {
		feed = append(feed, domain.Activity{
			ID:         ps.ID,
			Type:       "prelims",
			Title:      ps.Topic,
			Difficulty: ps.Difficulty,
			CreatedAt:  ps.CreatedAt,
		})
	}
	sort.SliceStable(feed, func(a, b int) bool { return feed[a].CreatedAt.After(feed[b].CreatedAt) })
	if len(feed) > RecentActivityLimit {
		feed = feed[:RecentActivityLimit]
	}
	d.RecentActivity = feed
	return d, nil
}
