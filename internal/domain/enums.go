package domain

import (
	"fmt"
	"strings"
)

// EvaluationStatus is the closed set of job states.
type EvaluationStatus string

const (
	EvaluationPending   EvaluationStatus = "pending"
	EvaluationCompleted EvaluationStatus = "completed"
	EvaluationFailed    EvaluationStatus = "failed"
)

// Valid reports whether s is one of the known states.
func (s EvaluationStatus) Valid() bool {
	switch s {
	case EvaluationPending, EvaluationCompleted, EvaluationFailed:
		return true
	}
	return false
}

// Terminal reports whether no further transition is allowed from s.
func (s EvaluationStatus) Terminal() bool {
	return s == EvaluationCompleted || s == EvaluationFailed
}

// CanTransitionTo allows only pending->completed and pending->failed.
func (s EvaluationStatus) CanTransitionTo(next EvaluationStatus) bool {
	return s == EvaluationPending && next.Terminal()
}

// ParseEvaluationStatus converts a stored value into an EvaluationStatus.
func ParseEvaluationStatus(v string) (EvaluationStatus, error) {
	s := EvaluationStatus(v)
	if !s.Valid() {
		return "", fmt.Errorf("%w: unknown evaluation status %q", ErrInvalidArgument, v)
	}
	return s, nil
}

// Difficulty is the closed set of practice difficulty levels.
type Difficulty string

const (
	DifficultyConceptual  Difficulty = "conceptual"
	DifficultyApplication Difficulty = "application"
	DifficultyUPSCLevel   Difficulty = "upsc_level"
)

// Valid reports whether d is a known level.
func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyConceptual, DifficultyApplication, DifficultyUPSCLevel:
		return true
	}
	return false
}

// Describe returns the wording used when asking the model for questions.
func (d Difficulty) Describe() string {
	switch d {
	case DifficultyConceptual:
		return "basic conceptual understanding level"
	case DifficultyApplication:
		return "application and analytical level"
	case DifficultyUPSCLevel:
		return "actual UPSC Prelims standard with high difficulty and tricky options"
	}
	return string(d)
}

// ParseDifficulty converts user or stored input into a Difficulty.
func ParseDifficulty(v string) (Difficulty, error) {
	d := Difficulty(v)
	if !d.Valid() {
		return "", fmt.Errorf("%w: unknown difficulty %q", ErrInvalidArgument, v)
	}
	return d, nil
}

// Option is one of the four MCQ choices, always lower case.
type Option string

const (
	OptionA Option = "a"
	OptionB Option = "b"
	OptionC Option = "c"
	OptionD Option = "d"
)

// ParseOption accepts a-d in either case.
func ParseOption(v string) (Option, error) {
	o := Option(strings.ToLower(strings.TrimSpace(v)))
	switch o {
	case OptionA, OptionB, OptionC, OptionD:
		return o, nil
	}
	return "", fmt.Errorf("%w: unknown option %q", ErrInvalidArgument, v)
}
