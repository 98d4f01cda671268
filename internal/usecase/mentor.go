package usecase

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/fairyhunter13/mainalyze/internal/adapter/observability"
	"github.com/fairyhunter13/mainalyze/internal/domain"
	obsctx "github.com/fairyhunter13/mainalyze/internal/observability"
	"github.com/fairyhunter13/mainalyze/internal/prompts"
)

// NoteCache stores one AI elaboration per (kind, parent, index).
type NoteCache struct {
	Notes domain.MentorNoteRepository
}

// GetOrCreate returns the stored note for key, or calls generate once and
// stores its output. cached reports whether the note came from storage.
// Two concurrent misses may both generate; the store keeps the first.
func (c NoteCache) GetOrCreate(ctx domain.Context, key domain.NoteKey, itemText string, generate func(domain.Context) (string, error)) (string, bool, error) {
	lg := obsctx.LoggerFromContext(ctx)
	note, err := c.Notes.Find(ctx, key)
	switch {
	case err == nil:
		observability.MentorNoteLookup(string(key.Kind), true)
		return note.Body, true, nil
	case errors.Is(err, domain.ErrNotFound):
	default:
		// a broken cache should not block the answer
		lg.Warn("mentor note lookup failed", slog.String("kind", string(key.Kind)), slog.Any("error", err))
	}
	observability.MentorNoteLookup(string(key.Kind), false)

	body, err := generate(ctx)
	if err != nil {
		return "", false, err
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return "", false, fmt.Errorf("%w: empty mentor note", domain.ErrUpstream)
	}
	if err := c.Notes.Insert(ctx, domain.MentorNote{Key: key, ItemText: itemText, Body: body}); err != nil {
		lg.Error("mentor note insert failed",
			slog.String("kind", string(key.Kind)),
			slog.String("parent_id", key.ParentID),
			slog.Int("index", key.ItemIndex),
			slog.Any("error", err))
	}
	return body, false, nil
}

// MentorService answers follow-up questions about an evaluation's action items.
type MentorService struct {
	Jobs    domain.EvaluationRepository
	Cache   NoteCache
	AI      domain.AIClient
	Prompts *prompts.Catalogue
}

// NewMentorService constructs a MentorService.
func NewMentorService(jobs domain.EvaluationRepository, notes domain.MentorNoteRepository, ai domain.AIClient, p *prompts.Catalogue) MentorService {
	return MentorService{Jobs: jobs, Cache: NoteCache{Notes: notes}, AI: ai, Prompts: p}
}

// GuidanceInput is a validated guidance request.
type GuidanceInput struct {
	EvaluationID    string
	ActionItemIndex int
	ActionItemText  string
}

// Guidance expands one action item. The evaluation must belong to the caller
// before anything is looked up or generated.
func (s MentorService) Guidance(ctx domain.Context, userID string, in GuidanceInput) (string, bool, error) {
	if _, err := s.Jobs.GetForUser(ctx, in.EvaluationID, userID); err != nil {
		return "", false, fmt.Errorf("op=mentor.guidance: %w", err)
	}
	key := domain.NoteKey{Kind: domain.NoteMainsGuidance, ParentID: in.EvaluationID, ItemIndex: in.ActionItemIndex}
	text, cached, err := s.Cache.GetOrCreate(ctx, key, in.ActionItemText, func(ctx domain.Context) (string, error) {
		return generateText(ctx, s.AI, s.Prompts, prompts.MentorGuidance, "mentor", prompts.MentorData{ActionItem: in.ActionItemText})
	})
	if err != nil {
		return "", false, fmt.Errorf("op=mentor.guidance: %w", err)
	}
	return text, cached, nil
}

// generateText renders a plain-text prompt and makes one model call.
func generateText(ctx domain.Context, ai domain.AIClient, cat *prompts.Catalogue, name, operation string, data any) (string, error) {
	prompt, entry, err := cat.Render(name, data)
	if err != nil {
		return "", err
	}
	return ai.Generate(ctx, domain.GenerateRequest{
		Operation:       operation,
		Model:           entry.Model,
		Prompt:          prompt,
		Temperature:     entry.Temperature,
		TopK:            entry.TopK,
		TopP:            entry.TopP,
		MaxOutputTokens: entry.MaxOutputTokens,
		JSON:            entry.JSON,
	})
}
