package usecase

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/fairyhunter13/mainalyze/internal/adapter/ai"
	"github.com/fairyhunter13/mainalyze/internal/domain"
	obsctx "github.com/fairyhunter13/mainalyze/internal/observability"
	"github.com/fairyhunter13/mainalyze/internal/prompts"
	"github.com/fairyhunter13/mainalyze/internal/validation"
)

// PrelimsService generates, grades and explains practice sessions.
type PrelimsService struct {
	Sessions domain.SessionRepository
	AI       domain.AIClient
	Prompts  *prompts.Catalogue
	Cache    NoteCache
}

// NewPrelimsService constructs a PrelimsService.
func NewPrelimsService(sessions domain.SessionRepository, notes domain.MentorNoteRepository, ai domain.AIClient, p *prompts.Catalogue) PrelimsService {
	return PrelimsService{Sessions: sessions, AI: ai, Prompts: p, Cache: NoteCache{Notes: notes}}
}

// GenerateInput is a validated generation request.
type GenerateInput struct {
	Topic        string
	Difficulty   domain.Difficulty
	NumQuestions int
}

// generatedQuestions is the shape the model must return.
type generatedQuestions struct {
	Questions []domain.Question `json:"questions" validate:"min=1,max=5,dive"`
}

// Normalize lower-cases option letters so "B" and "b" both pass.
func (g *generatedQuestions) Normalize() {
	for i := range g.Questions {
		q := &g.Questions[i]
		q.CorrectAnswer = domain.Option(strings.ToLower(strings.TrimSpace(string(q.CorrectAnswer))))
		q.Question = strings.TrimSpace(q.Question)
	}
}

// Generate asks the model for questions and stores them as a new session.
// Nothing is stored when the model fails or returns a bad shape.
func (s PrelimsService) Generate(ctx domain.Context, userID string, in GenerateInput) (domain.PracticeSession, error) {
	prompt, entry, err := s.Prompts.Render(prompts.GeneratePrelims, prompts.GenerateData{
		Count:      in.NumQuestions,
		Topic:      in.Topic,
		Difficulty: in.Difficulty.Describe(),
	})
	if err != nil {
		return domain.PracticeSession{}, fmt.Errorf("op=prelims.generate: %w", err)
	}
	raw, err := s.AI.Generate(ctx, domain.GenerateRequest{
		Operation:       "generate",
		Model:           entry.Model,
		Prompt:          prompt,
		Temperature:     entry.Temperature,
		TopK:            entry.TopK,
		TopP:            entry.TopP,
		MaxOutputTokens: entry.MaxOutputTokens,
		JSON:            entry.JSON,
	})
	if err != nil {
		return domain.PracticeSession{}, fmt.Errorf("op=prelims.generate: %w", err)
	}
	var out generatedQuestions
	if err := ai.DecodeJSON(raw, &out); err != nil {
		return domain.PracticeSession{}, fmt.Errorf("op=prelims.generate: %w", err)
	}
	if err := validation.Struct(&out); err != nil {
		return domain.PracticeSession{}, fmt.Errorf("op=prelims.generate: %w: %v", domain.ErrSchemaInvalid, err)
	}
	if len(out.Questions) != in.NumQuestions {
		obsctx.LoggerFromContext(ctx).Warn("model returned a different question count",
			slog.Int("requested", in.NumQuestions), slog.Int("returned", len(out.Questions)))
	}
	sess, err := s.Sessions.Create(ctx, domain.PracticeSession{
		UserID:     userID,
		Topic:      in.Topic,
		Difficulty: in.Difficulty,
		Questions:  out.Questions,
	})
	if err != nil {
		return domain.PracticeSession{}, fmt.Errorf("op=prelims.generate: %w", err)
	}
	return sess, nil
}

// Grade scores answers once. A second submission is ErrConflict.
func (s PrelimsService) Grade(ctx domain.Context, userID, id string, answers map[int]domain.Option) (domain.PracticeSession, error) {
	sess, err := s.Sessions.GetForUser(ctx, id, userID)
	if err != nil {
		return domain.PracticeSession{}, fmt.Errorf("op=prelims.grade: %w", err)
	}
	if sess.Graded() {
		return domain.PracticeSession{}, fmt.Errorf("op=prelims.grade: %w: session already graded", domain.ErrConflict)
	}
	normalized := make(map[int]domain.Option, len(answers))
	for i, a := range answers {
		o, err := domain.ParseOption(string(a))
		if err != nil {
			return domain.PracticeSession{}, fmt.Errorf("op=prelims.grade: %w", err)
		}
		normalized[i] = o
	}
	if err := domain.ValidateAnswers(sess.Questions, normalized); err != nil {
		return domain.PracticeSession{}, fmt.Errorf("op=prelims.grade: %w", err)
	}
	score := domain.Score(sess.Questions, normalized)
	if err := s.Sessions.Grade(ctx, id, userID, normalized, score); err != nil {
		return domain.PracticeSession{}, fmt.Errorf("op=prelims.grade: %w", err)
	}
	sess.UserAnswers = normalized
	sess.Score = &score
	return sess, nil
}

// ExplainInput is a validated request to explain a wrong answer.
type ExplainInput struct {
	SessionID     string
	QuestionIndex int
	Question      string
	CorrectAnswer string
	UserAnswer    string
	CorrectOption string
	UserOption    string
}

// Explain returns a personalised explanation for one question of the
// caller's session, generating it on first request.
func (s PrelimsService) Explain(ctx domain.Context, userID string, in ExplainInput) (string, bool, error) {
	sess, err := s.Sessions.GetForUser(ctx, in.SessionID, userID)
	if err != nil {
		return "", false, fmt.Errorf("op=prelims.explain: %w", err)
	}
	if in.QuestionIndex < 0 || in.QuestionIndex >= len(sess.Questions) {
		return "", false, validation.Fail("questionIndex", "RANGE", fmt.Sprintf("questionIndex must be below %d", len(sess.Questions)))
	}
	key := domain.NoteKey{Kind: domain.NotePrelimsExplanation, ParentID: in.SessionID, ItemIndex: in.QuestionIndex}
	text, cached, err := s.Cache.GetOrCreate(ctx, key, in.Question, func(ctx domain.Context) (string, error) {
		return generateText(ctx, s.AI, s.Prompts, prompts.ExplainWrongAnswer, "explain", prompts.ExplainData{
			Question:      in.Question,
			CorrectAnswer: in.CorrectAnswer,
			CorrectOption: strings.ToUpper(in.CorrectOption),
			UserAnswer:    in.UserAnswer,
			UserOption:    strings.ToUpper(in.UserOption),
		})
	})
	if err != nil {
		return "", false, fmt.Errorf("op=prelims.explain: %w", err)
	}
	return text, cached, nil
}

// Get returns the caller's session.
func (s PrelimsService) Get(ctx domain.Context, userID, id string) (domain.PracticeSession, error) {
	sess, err := s.Sessions.GetForUser(ctx, id, userID)
	if err != nil {
		return domain.PracticeSession{}, fmt.Errorf("op=prelims.get: %w", err)
	}
	return sess, nil
}

// List returns the caller's sessions, newest first.
func (s PrelimsService) List(ctx domain.Context, userID string, limit, offset int) ([]domain.PracticeSession, error) {
	limit, offset = Page(limit, offset)
	out, err := s.Sessions.ListForUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("op=prelims.list: %w", err)
	}
	return out, nil
}

// Delete removes the caller's session and its explanations.
func (s PrelimsService) Delete(ctx domain.Context, userID, id string) error {
	if err := s.Sessions.Delete(ctx, id, userID); err != nil {
		return fmt.Errorf("op=prelims.delete: %w", err)
	}
	return nil
}
