// Package usecase contains application business logic services.
package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/fairyhunter13/mainalyze/internal/adapter/observability"
	"github.com/fairyhunter13/mainalyze/internal/domain"
	obsctx "github.com/fairyhunter13/mainalyze/internal/observability"
)

// SubmitMessage accompanies a freshly accepted evaluation.
const SubmitMessage = "Evaluation started. AI is analyzing your answer from the uploaded files."

// DefaultWatchPollInterval is how often Watch re-reads the job.
const DefaultWatchPollInterval = 3 * time.Second

// MainsService creates evaluation jobs, hands them to the worker and serves
// them back to their owner.
type MainsService struct {
	Jobs       domain.EvaluationRepository
	Dispatcher domain.Dispatcher
	Notifier   domain.StatusNotifier
	FailPolicy domain.RetryPolicy

	PollInterval time.Duration
}

// NewMainsService constructs a MainsService.
func NewMainsService(jobs domain.EvaluationRepository, d domain.Dispatcher, n domain.StatusNotifier, p domain.RetryPolicy) MainsService {
	return MainsService{Jobs: jobs, Dispatcher: d, Notifier: n, FailPolicy: p, PollInterval: DefaultWatchPollInterval}
}

// SubmitInput is a validated submission.
type SubmitInput struct {
	Question    string
	AnswerText  string
	AnswerFiles []string
}

// Submit creates a pending job and dispatches it without waiting for the
// evaluation. When dispatch fails the job is marked failed and still
// returned, so the caller sees what happened to it.
func (s MainsService) Submit(ctx domain.Context, userID string, in SubmitInput) (domain.EvaluationJob, error) {
	if userID == "" {
		return domain.EvaluationJob{}, domain.ErrUnauthenticated
	}
	if len(in.AnswerFiles) == 0 {
		return domain.EvaluationJob{}, fmt.Errorf("%w: at least one answer file is required", domain.ErrInvalidArgument)
	}
	question := strings.TrimSpace(in.Question)
	if question == "" {
		question = domain.PendingQuestionPlaceholder
	}
	job, err := s.Jobs.Create(ctx, domain.EvaluationJob{
		UserID:      userID,
		Question:    question,
		AnswerText:  strings.TrimSpace(in.AnswerText),
		AnswerFiles: in.AnswerFiles,
	})
	if err != nil {
		return domain.EvaluationJob{}, fmt.Errorf("op=mains.submit: %w", err)
	}
	lg := obsctx.LoggerFromContext(ctx).With(slog.String("evaluation_id", job.ID))

	task := domain.EvaluateTask{
		EvaluationID:       job.ID,
		UserID:             userID,
		AnswerFiles:        job.AnswerFiles,
		ProvidedQuestion:   strings.TrimSpace(in.Question),
		ProvidedAnswerText: job.AnswerText,
		RequestID:          obsctx.RequestIDFromContext(ctx),
	}
	if err := s.Dispatcher.Dispatch(ctx, task); err != nil {
		lg.Error("dispatch failed, compensating", slog.Any("error", err))
		observability.FailJob(observability.JobEvaluate, "dispatch")
		reason := domain.FailureReason(domain.FailureDispatch)
		// the request context may be the reason dispatch failed
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if cerr := MarkFailed(cctx, s.Jobs, job.ID, reason, s.FailPolicy); cerr != nil {
			lg.Error("compensation failed, job left pending for the sweeper", slog.Any("error", cerr))
			return job, nil
		}
		job.Status = domain.EvaluationFailed
		job.ErrorMessage = reason
		return job, nil
	}
	lg.Info("evaluation submitted", slog.Int("files", len(job.AnswerFiles)))
	return job, nil
}

// Get returns the caller's job; another user's job is ErrNotFound.
func (s MainsService) Get(ctx domain.Context, userID, id string) (domain.EvaluationJob, error) {
	job, err := s.Jobs.GetForUser(ctx, id, userID)
	if err != nil {
		return domain.EvaluationJob{}, fmt.Errorf("op=mains.get: %w", err)
	}
	return job, nil
}

// List returns the caller's jobs, newest first.
func (s MainsService) List(ctx domain.Context, userID string, limit, offset int) ([]domain.EvaluationJob, error) {
	limit, offset = Page(limit, offset)
	jobs, err := s.Jobs.ListForUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("op=mains.list: %w", err)
	}
	return jobs, nil
}

// Delete removes the caller's job and its cached guidance.
func (s MainsService) Delete(ctx domain.Context, userID, id string) error {
	if err := s.Jobs.Delete(ctx, id, userID); err != nil {
		return fmt.Errorf("op=mains.delete: %w", err)
	}
	return nil
}

// ETag is a weak validator that changes whenever the job's visible state does.
func ETag(job domain.EvaluationJob) string {
	h := sha256.Sum256([]byte(job.ID + "|" + string(job.Status) + "|" + strconv.FormatInt(job.UpdatedAt.UnixNano(), 10)))
	return `W/"` + hex.EncodeToString(h[:8]) + `"`
}

// Watch streams the job's current status and then its terminal transition.
// Events come from the notifier when one is configured, with the repository
// re-read on every poll tick as a backstop. The channel closes after a
// terminal event or when ctx ends.
func (s MainsService) Watch(ctx domain.Context, userID, id string) (<-chan domain.StatusEvent, error) {
	job, err := s.Jobs.GetForUser(ctx, id, userID)
	if err != nil {
		return nil, fmt.Errorf("op=mains.watch: %w", err)
	}
	var (
		sub  <-chan domain.StatusEvent
		stop = func() {}
	)
	if !job.Status.Terminal() && s.Notifier != nil {
		ch, cancel, err := s.Notifier.Subscribe(ctx, id)
		if err != nil {
			obsctx.LoggerFromContext(ctx).Warn("status subscribe failed, polling only", slog.Any("error", err))
		} else {
			sub, stop = ch, cancel
			// re-read so a transition between the first read and the subscribe is not lost
			if job, err = s.Jobs.GetForUser(ctx, id, userID); err != nil {
				stop()
				return nil, fmt.Errorf("op=mains.watch: %w", err)
			}
		}
	}

	out := make(chan domain.StatusEvent, 2)
	out <- eventOf(job)
	if job.Status.Terminal() {
		stop()
		close(out)
		return out, nil
	}

	interval := s.PollInterval
	if interval <= 0 {
		interval = DefaultWatchPollInterval
	}
	go func() {
		defer close(out)
		defer stop()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					sub = nil
					continue
				}
				if ev.Status.Terminal() {
					out <- ev
					return
				}
			case <-ticker.C:
				cur, err := s.Jobs.GetForUser(ctx, id, userID)
				if err != nil {
					obsctx.LoggerFromContext(ctx).Warn("status poll failed", slog.Any("error", err))
					if ctx.Err() != nil {
						return
					}
					continue
				}
				if cur.Status.Terminal() {
					out <- eventOf(cur)
					return
				}
			}
		}
	}()
	return out, nil
}

func eventOf(job domain.EvaluationJob) domain.StatusEvent {
	return domain.StatusEvent{EvaluationID: job.ID, Status: job.Status, UpdatedAt: job.UpdatedAt}
}

// Page clamps list paging parameters.
func Page(limit, offset int) (int, int) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
