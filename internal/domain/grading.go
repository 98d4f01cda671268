package domain

import "fmt"

// Score counts the answers that match each question's correct option.
// Unanswered and out-of-range indices contribute nothing.
func Score(questions []Question, answers map[int]Option) int {
	score := 0
	for i, q := range questions {
		if a, ok := answers[i]; ok && a == q.CorrectAnswer {
			score++
		}
	}
	return score
}

// ValidateAnswers checks answer indices against the question count.
func ValidateAnswers(questions []Question, answers map[int]Option) error {
	for i, a := range answers {
		if i < 0 || i >= len(questions) {
			return fmt.Errorf("%w: answer index %d out of range", ErrInvalidArgument, i)
		}
		if _, err := ParseOption(string(a)); err != nil {
			return err
		}
	}
	return nil
}
