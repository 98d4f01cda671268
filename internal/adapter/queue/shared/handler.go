// Package shared holds the evaluation pipeline run by every queue driver.
package shared

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fairyhunter13/mainalyze/internal/adapter/ai"
	"github.com/fairyhunter13/mainalyze/internal/adapter/observability"
	"github.com/fairyhunter13/mainalyze/internal/domain"
	obsctx "github.com/fairyhunter13/mainalyze/internal/observability"
	"github.com/fairyhunter13/mainalyze/internal/prompts"
	"github.com/fairyhunter13/mainalyze/internal/usecase"
	"github.com/fairyhunter13/mainalyze/internal/validation"
)

// Pipeline stages, used as the failure metric label.
const (
	StageFetch  = "fetch"
	StagePrompt = "prompt"
	StageModel  = "model"
	StageParse  = "parse"
	StageStore  = "store"
)

// DefaultMaxFileBytes caps one answer file.
const DefaultMaxFileBytes = 10 << 20

// Handler evaluates one submitted answer: it fetches the answer files, asks
// the model for feedback and moves the job to completed or failed.
type Handler struct {
	Jobs     domain.EvaluationRepository
	Files    domain.FileFetcher
	AI       domain.AIClient
	Prompts  *prompts.Catalogue
	Notifier domain.StatusNotifier

	MaxFileBytes int64
	FailPolicy   domain.RetryPolicy
}

type stageError struct {
	stage string
	err   error
}

func (e *stageError) Error() string { return e.stage + ": " + e.err.Error() }
func (e *stageError) Unwrap() error { return e.err }

func fatal(stage string, err error) error { return &stageError{stage: stage, err: err} }

// HandleEvaluate runs the pipeline for task. A missing job is returned as an
// error; a job that is already terminal is skipped. Pipeline failures are
// recorded on the job and also returned so the driver can log them.
func (h *Handler) HandleEvaluate(ctx context.Context, task domain.EvaluateTask) error {
	tracer := otel.Tracer("queue.handler")
	ctx, span := tracer.Start(ctx, "HandleEvaluate",
		trace.WithAttributes(attribute.String("evaluation.id", task.EvaluationID)))
	defer span.End()

	ctx = obsctx.ContextWithRequestID(ctx, task.RequestID)
	lg := obsctx.LoggerFromContext(ctx).With(
		slog.String("evaluation_id", task.EvaluationID),
		slog.String("request_id", task.RequestID),
	)
	ctx = obsctx.ContextWithLogger(ctx, lg)

	job, err := h.Jobs.Get(ctx, task.EvaluationID)
	if err != nil {
		lg.Error("load evaluation failed", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "load")
		return fmt.Errorf("op=worker.load: %w", err)
	}
	if job.Status.Terminal() {
		lg.Info("evaluation already terminal, skipping", slog.String("status", string(job.Status)))
		return nil
	}

	observability.StartProcessingJob(observability.JobEvaluate)
	start := time.Now()
	lg.Info("evaluation started", slog.Int("files", len(job.AnswerFiles)))

	result, err := h.evaluate(ctx, job, task)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, stageOf(err))
		h.fail(ctx, job.ID, err)
		return fmt.Errorf("op=worker.evaluate: %w", err)
	}

	question := resolveQuestion(result.ExtractedQuestion, task.ProvidedQuestion, job.Question)
	if err := h.Jobs.Complete(ctx, job.ID, result, question); err != nil {
		if errors.Is(err, domain.ErrConflict) || errors.Is(err, domain.ErrNotFound) {
			// someone else (sweeper, delete) got there first
			lg.Warn("evaluation moved on before completion", slog.Any("error", err))
			observability.FinishProcessingJob(observability.JobEvaluate)
			return nil
		}
		err = fatal(StageStore, err)
		span.RecordError(err)
		h.fail(ctx, job.ID, err)
		return fmt.Errorf("op=worker.complete: %w", err)
	}

	observability.CompleteJob(observability.JobEvaluate)
	observability.ObserveEvaluationScore(result.Score, result.MarksAllocated)
	h.publish(ctx, job.ID, domain.EvaluationCompleted)
	lg.Info("evaluation completed",
		slog.Float64("score", result.Score),
		slog.Duration("duration", time.Since(start)))
	return nil
}

func (h *Handler) evaluate(ctx context.Context, job domain.EvaluationJob, task domain.EvaluateTask) (domain.EvaluationResult, error) {
	refs := task.AnswerFiles
	if len(refs) == 0 {
		refs = job.AnswerFiles
	}
	attachments := h.fetchAll(ctx, refs)
	if len(attachments) == 0 {
		return domain.EvaluationResult{}, fatal(StageFetch,
			fmt.Errorf("%w: none of %d answer files could be read", domain.ErrNotFound, len(refs)))
	}

	providedQuestion := task.ProvidedQuestion
	if providedQuestion == "" && job.Question != domain.PendingQuestionPlaceholder {
		providedQuestion = job.Question
	}
	answerText := task.ProvidedAnswerText
	if answerText == "" {
		answerText = job.AnswerText
	}
	prompt, entry, err := h.Prompts.Render(prompts.EvaluateMains, prompts.EvaluateData{
		Question:   providedQuestion,
		AnswerText: answerText,
	})
	if err != nil {
		return domain.EvaluationResult{}, fatal(StagePrompt, err)
	}

	raw, err := h.AI.Generate(ctx, domain.GenerateRequest{
		Operation:       "evaluate",
		Model:           entry.Model,
		Prompt:          prompt,
		Attachments:     attachments,
		Temperature:     entry.Temperature,
		TopK:            entry.TopK,
		TopP:            entry.TopP,
		MaxOutputTokens: entry.MaxOutputTokens,
		JSON:            entry.JSON,
	})
	if err != nil {
		return domain.EvaluationResult{}, fatal(StageModel, err)
	}

	var result domain.EvaluationResult
	if err := ai.DecodeJSON(raw, &result); err != nil {
		return domain.EvaluationResult{}, fatal(StageParse, err)
	}
	if err := validation.Struct(&result); err != nil {
		return domain.EvaluationResult{}, fatal(StageParse, fmt.Errorf("%w: %v", domain.ErrSchemaInvalid, err))
	}
	return result, nil
}

// fetchAll returns the usable files in order. Unreadable or oversized files
// are skipped with a warning.
func (h *Handler) fetchAll(ctx context.Context, refs []string) []domain.Attachment {
	lg := obsctx.LoggerFromContext(ctx)
	limit := h.MaxFileBytes
	if limit <= 0 {
		limit = DefaultMaxFileBytes
	}
	out := make([]domain.Attachment, 0, len(refs))
	for i, ref := range refs {
		f, err := h.Files.Fetch(ctx, ref, limit)
		if err != nil {
			lg.Warn("answer file skipped", slog.Int("index", i), slog.Any("error", err))
			continue
		}
		if len(f.Data) == 0 {
			lg.Warn("answer file empty", slog.Int("index", i), slog.String("file", f.Name))
			continue
		}
		out = append(out, domain.Attachment{
			MIMEType: domain.ResolveMIME(f.ContentType, f.Name),
			Data:     f.Data,
		})
	}
	return out
}

func (h *Handler) fail(ctx context.Context, id string, cause error) {
	lg := obsctx.LoggerFromContext(ctx)
	stage := stageOf(cause)
	code := FailureCode(cause)
	reason := domain.FailureReason(code)
	lg.Error("evaluation failed", slog.String("stage", stage), slog.String("failure_code", code), slog.Any("error", cause))

	observability.FailJob(observability.JobEvaluate, stage)
	observability.FinishProcessingJob(observability.JobEvaluate)

	if err := usecase.MarkFailed(ctx, h.Jobs, id, reason, h.FailPolicy); err != nil {
		lg.Error("mark evaluation failed gave up", slog.Any("error", err))
		return
	}
	h.publish(ctx, id, domain.EvaluationFailed)
}

func (h *Handler) publish(ctx context.Context, id string, status domain.EvaluationStatus) {
	if h.Notifier == nil {
		return
	}
	ev := domain.StatusEvent{EvaluationID: id, Status: status, UpdatedAt: time.Now().UTC()}
	if err := h.Notifier.Publish(ctx, ev); err != nil {
		obsctx.LoggerFromContext(ctx).Warn("status publish failed", slog.Any("error", err))
	}
}

func stageOf(err error) string {
	var se *stageError
	if errors.As(err, &se) {
		return se.stage
	}
	return "unknown"
}

// resolveQuestion prefers the question read off the answer sheet, then the
// one the student typed. The placeholder is never kept on a completed job.
func resolveQuestion(extracted, provided, prior string) string {
	for _, q := range []string{extracted, provided, prior} {
		q = strings.TrimSpace(q)
		if q != "" && q != domain.PendingQuestionPlaceholder {
			return q
		}
	}
	return domain.FallbackExtractedQuestion
}
