package httpserver

import (
	"strings"

	"github.com/fairyhunter13/mainalyze/internal/domain"
	"github.com/fairyhunter13/mainalyze/internal/usecase"
	"github.com/fairyhunter13/mainalyze/pkg/textx"
)

// EvaluateRequest is the body of POST /api/evaluate-answer.
type EvaluateRequest struct {
	Question    string   `json:"question" validate:"max=2000"`
	AnswerText  string   `json:"answerText" validate:"max=5000"`
	AnswerFiles []string `json:"answerFiles" validate:"required,min=1,max=10,dive,http_url"`
}

// Normalize trims the free text and file references.
func (r *EvaluateRequest) Normalize() {
	r.Question = textx.Clean(r.Question)
	r.AnswerText = textx.Clean(r.AnswerText)
	for i := range r.AnswerFiles {
		r.AnswerFiles[i] = strings.TrimSpace(r.AnswerFiles[i])
	}
}

func (r EvaluateRequest) input() usecase.SubmitInput {
	return usecase.SubmitInput{Question: r.Question, AnswerText: r.AnswerText, AnswerFiles: r.AnswerFiles}
}

// GenerateRequest is the body of POST /api/generate-questions.
type GenerateRequest struct {
	Topic        string `json:"topic" validate:"required,min=3,max=200,topic"`
	NumQuestions int    `json:"numQuestions" validate:"min=1,max=5"`
	Difficulty   string `json:"difficulty" validate:"required,oneof=conceptual application upsc_level"`
}

// Normalize trims the topic and lower-cases the difficulty.
func (r *GenerateRequest) Normalize() {
	r.Topic = textx.Clean(r.Topic)
	r.Difficulty = strings.ToLower(strings.TrimSpace(r.Difficulty))
}

func (r GenerateRequest) input() usecase.GenerateInput {
	return usecase.GenerateInput{Topic: r.Topic, Difficulty: domain.Difficulty(r.Difficulty), NumQuestions: r.NumQuestions}
}

// ExplainRequest is the body of POST /api/explain-wrong-answer.
type ExplainRequest struct {
	SessionID     string `json:"sessionId" validate:"required,uuid"`
	QuestionIndex *int   `json:"questionIndex" validate:"required,gte=0"`
	Question      string `json:"question" validate:"required,min=10,max=2000"`
	CorrectAnswer string `json:"correctAnswer" validate:"required,min=1,max=1000"`
	UserAnswer    string `json:"userAnswer" validate:"required,min=1,max=1000"`
	CorrectOption string `json:"correctOption" validate:"required,option"`
	UserOption    string `json:"userOption" validate:"required,option"`
}

// Normalize trims every text field.
func (r *ExplainRequest) Normalize() {
	r.SessionID = strings.TrimSpace(r.SessionID)
	r.Question = textx.Clean(r.Question)
	r.CorrectAnswer = textx.Clean(r.CorrectAnswer)
	r.UserAnswer = textx.Clean(r.UserAnswer)
	r.CorrectOption = strings.TrimSpace(r.CorrectOption)
	r.UserOption = strings.TrimSpace(r.UserOption)
}

func (r ExplainRequest) input() usecase.ExplainInput {
	return usecase.ExplainInput{
		SessionID:     r.SessionID,
		QuestionIndex: *r.QuestionIndex,
		Question:      r.Question,
		CorrectAnswer: r.CorrectAnswer,
		UserAnswer:    r.UserAnswer,
		CorrectOption: r.CorrectOption,
		UserOption:    r.UserOption,
	}
}

// MentorRequest is the body of POST /api/mentor-guidance.
type MentorRequest struct {
	EvaluationID    string `json:"evaluationId" validate:"required,uuid"`
	ActionItemIndex *int   `json:"actionItemIndex" validate:"required,gte=0"`
	ActionItemText  string `json:"actionItemText" validate:"required,min=10,max=1000"`
}

func (r *MentorRequest) Normalize() {
	r.EvaluationID = strings.TrimSpace(r.EvaluationID)
	r.ActionItemText = textx.Clean(r.ActionItemText)
}

func (r MentorRequest) input() usecase.GuidanceInput {
	return usecase.GuidanceInput{EvaluationID: r.EvaluationID, ActionItemIndex: *r.ActionItemIndex, ActionItemText: r.ActionItemText}
}

// GradeRequest is the body of POST /api/prelims/sessions/{id}/answers.
// Keys are question indices.
type GradeRequest struct {
	Answers map[int]string `json:"answers" validate:"required,dive,option"`
}

func (r *GradeRequest) Normalize() {
	for k, v := range r.Answers {
		r.Answers[k] = strings.TrimSpace(v)
	}
}

func (r GradeRequest) answers() map[int]domain.Option {
	out := make(map[int]domain.Option, len(r.Answers))
	for k, v := range r.Answers {
		out[k] = domain.Option(strings.ToLower(v))
	}
	return out
}

// ProfileRequest is the body of PATCH /api/profile. Absent fields are kept.
type ProfileRequest struct {
	FullName         *string `json:"full_name" validate:"omitempty,min=2,max=100,personname"`
	ExamPreparingFor *string `json:"exam_preparing_for" validate:"omitempty,max=100"`
}

func (r *ProfileRequest) Normalize() {
	r.FullName = textx.CleanPtr(r.FullName)
	r.ExamPreparingFor = textx.CleanPtr(r.ExamPreparingFor)
}

func (r ProfileRequest) update() domain.ProfileUpdate {
	return domain.ProfileUpdate{FullName: r.FullName, ExamPreparingFor: r.ExamPreparingFor}
}

// RoleRequest is the body of PATCH /api/admin/users/{userId}.
type RoleRequest struct {
	IsAdmin *bool `json:"is_admin" validate:"required"`
}
