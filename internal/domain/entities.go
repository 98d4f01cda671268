// Package domain holds the core entities, error taxonomy and ports of the
// exam-preparation service. It has no dependencies on adapters.
package domain

import (
	"context"
	"errors"
	"time"
)

// Error taxonomy (sentinels)
var (
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrUnauthenticated   = errors.New("authentication required")
	ErrForbidden         = errors.New("forbidden")
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrRateLimited       = errors.New("rate limited")
	ErrFileTooLarge      = errors.New("file too large")
	ErrUnsupportedMedia  = errors.New("unsupported media type")
	ErrUpstream          = errors.New("upstream failure")
	ErrUpstreamTimeout   = errors.New("upstream timeout")
	ErrUpstreamRateLimit = errors.New("upstream rate limit")
	ErrSchemaInvalid     = errors.New("schema invalid")
	ErrInternal          = errors.New("internal error")
)

// Context is an alias so ports read the same across packages.
type Context = context.Context

// PendingQuestionPlaceholder is stored when the user did not type the question.
const PendingQuestionPlaceholder = "Question will be extracted from uploaded files"

// FallbackExtractedQuestion is used when neither the model nor the user supplied a question.
const FallbackExtractedQuestion = "Question extracted from image"

// EvaluationJob is one submitted Mains answer awaiting or holding AI feedback.
type EvaluationJob struct {
	ID           string            `json:"id"`
	UserID       string            `json:"user_id"`
	Question     string            `json:"question"`
	AnswerText   string            `json:"answer_text,omitempty"`
	AnswerFiles  []string          `json:"answer_files"`
	Status       EvaluationStatus  `json:"status"`
	Result       *EvaluationResult `json:"evaluation_result"`
	ErrorMessage string            `json:"error_message,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// EvaluationResult is the structured feedback produced by the model.
type EvaluationResult struct {
	Score                float64  `json:"score" validate:"gte=0"`
	ExtractedQuestion    string   `json:"extracted_question,omitempty"`
	MarksAllocated       *float64 `json:"marks_allocated,omitempty" validate:"omitempty,gt=0"`
	WordLimit            *int     `json:"word_limit,omitempty" validate:"omitempty,gte=0"`
	ActualWordCount      *int     `json:"actual_word_count,omitempty" validate:"omitempty,gte=0"`
	Structure            string   `json:"structure" validate:"required"`
	ContentQuality       string   `json:"content_quality" validate:"required"`
	Presentation         string   `json:"presentation" validate:"required"`
	AdherenceToWordLimit string   `json:"adherence_to_word_limit,omitempty"`
	KeyStrengths         []string `json:"key_strengths,omitempty"`
	KeyWeaknesses        []string `json:"key_weaknesses,omitempty"`
	Suggestions          []string `json:"suggestions" validate:"omitempty,dive,required"`
}

// Question is one generated multiple-choice item. Immutable once generated.
type Question struct {
	Question      string  `json:"question" validate:"required"`
	Options       Options `json:"options"`
	CorrectAnswer Option  `json:"correct_answer" validate:"required,oneof=a b c d"`
	Explanation   string  `json:"explanation"`
}

// Options holds the four answer texts.
type Options struct {
	A string `json:"a" validate:"required"`
	B string `json:"b" validate:"required"`
	C string `json:"c" validate:"required"`
	D string `json:"d" validate:"required"`
}

// Text returns the option text for o.
func (o Options) Text(opt Option) string {
	switch opt {
	case OptionA:
		return o.A
	case OptionB:
		return o.B
	case OptionC:
		return o.C
	case OptionD:
		return o.D
	}
	return ""
}

// PracticeSession is one batch of generated MCQs and, once graded, the user's answers.
type PracticeSession struct {
	ID          string         `json:"id"`
	UserID      string         `json:"user_id"`
	Topic       string         `json:"topic"`
	Difficulty  Difficulty     `json:"difficulty"`
	Questions   []Question     `json:"questions"`
	UserAnswers map[int]Option `json:"user_answers,omitempty"`
	Score       *int           `json:"score"`
	CreatedAt   time.Time      `json:"created_at"`
}

// Graded reports whether answers were submitted.
func (s PracticeSession) Graded() bool { return s.Score != nil && s.UserAnswers != nil }

// NoteKind distinguishes the two cached mentor-note families.
type NoteKind string

const (
	NotePrelimsExplanation NoteKind = "prelims_explanation"
	NoteMainsGuidance      NoteKind = "mains_guidance"
)

// NoteKey identifies at most one cached note.
type NoteKey struct {
	Kind      NoteKind
	ParentID  string
	ItemIndex int
}

// MentorNote is a cached AI elaboration.
type MentorNote struct {
	Key       NoteKey
	ItemText  string
	Body      string
	CreatedAt time.Time
}

// Profile is one row per authenticated user.
type Profile struct {
	ID               string    `json:"id"`
	Email            string    `json:"email"`
	FullName         *string   `json:"full_name"`
	ExamPreparingFor *string   `json:"exam_preparing_for"`
	IsAdmin          bool      `json:"is_admin"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// ProfileUpdate carries the user-editable profile fields; nil means unchanged.
type ProfileUpdate struct {
	FullName         *string
	ExamPreparingFor *string
}

// UserStats is a profile joined with per-user activity counts.
type UserStats struct {
	Profile
	MainsEvaluationsCount int `json:"mains_evaluations_count"`
	PrelimsSessionsCount  int `json:"prelims_sessions_count"`
}

// AuditEntry records one admin action.
type AuditEntry struct {
	AdminID      string
	Action       string
	ResourceType string
	ResourceID   string
	Details      map[string]any
	IPAddress    string
	CreatedAt    time.Time
}

// Activity is one row of the dashboard's recent-activity feed.
type Activity struct {
	ID         string           `json:"id"`
	Type       string           `json:"type"`
	Title      string           `json:"title"`
	Status     EvaluationStatus `json:"status,omitempty"`
	Difficulty Difficulty       `json:"difficulty,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
}

// EvaluateTask is the handoff record between orchestrator and worker.
type EvaluateTask struct {
	EvaluationID       string   `json:"evaluation_id"`
	UserID             string   `json:"user_id"`
	AnswerFiles        []string `json:"answer_files"`
	ProvidedQuestion   string   `json:"provided_question,omitempty"`
	ProvidedAnswerText string   `json:"provided_answer_text,omitempty"`
	RequestID          string   `json:"request_id,omitempty"`
}

// StatusEvent announces a job status change.
type StatusEvent struct {
	EvaluationID string           `json:"evaluation_id"`
	Status       EvaluationStatus `json:"status"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// StoredObject is a file persisted in object storage.
type StoredObject struct {
	Key         string
	URL         string
	ContentType string
	Size        int64
}

// FetchedFile is a dereferenced file reference.
type FetchedFile struct {
	Name        string
	ContentType string
	Data        []byte
}

// Attachment is binary content sent inline to the model.
type Attachment struct {
	MIMEType string
	Data     []byte
}

// GenerateRequest is a single model invocation.
type GenerateRequest struct {
	// Operation labels metrics and logs (evaluate, generate, explain, mentor).
	Operation       string
	Model           string
	Prompt          string
	Attachments     []Attachment
	Temperature     float32
	TopK            int
	TopP            float32
	MaxOutputTokens int
	JSON            bool
}
