// Package validation wraps go-playground/validator with the project's
// custom tags and a violation list that maps onto HTTP 400 responses.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/fairyhunter13/mainalyze/internal/domain"
)

var (
	topicRe      = regexp.MustCompile(`^[a-zA-Z0-9\s,.-]+$`)
	optionRe     = regexp.MustCompile(`^[a-dA-D]$`)
	personNameRe = regexp.MustCompile(`^[a-zA-Z\s.'-]+$`)
)

var (
	vldOnce sync.Once
	vld     *validator.Validate
)

func get() *validator.Validate {
	vldOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				return f.Name
			}
			return name
		})
		_ = v.RegisterValidation("topic", matches(topicRe))
		_ = v.RegisterValidation("option", matches(optionRe))
		_ = v.RegisterValidation("personname", matches(personNameRe))
		v.RegisterStructValidation(scoreWithinMarks, domain.EvaluationResult{})
		vld = v
	})
	return vld
}

func matches(re *regexp.Regexp) validator.Func {
	return func(fl validator.FieldLevel) bool {
		return re.MatchString(fl.Field().String())
	}
}

// scoreWithinMarks rejects a model result that awards more than the question
// is worth.
func scoreWithinMarks(sl validator.StructLevel) {
	r, ok := sl.Current().Interface().(domain.EvaluationResult)
	if !ok || r.MarksAllocated == nil {
		return
	}
	if r.Score > *r.MarksAllocated {
		sl.ReportError(r.Score, "score", "Score", "ltemarks", strconv.FormatFloat(*r.MarksAllocated, 'f', -1, 64))
	}
}

// Violation is one failed rule on one field.
type Violation struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error lists every violation found in a value.
type Error struct {
	Violations []Violation
}

func (e *Error) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, v.Field+": "+v.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Unwrap lets errors.Is(err, domain.ErrInvalidArgument) succeed.
func (e *Error) Unwrap() error { return domain.ErrInvalidArgument }

// Normalizer is implemented by request DTOs that trim or clean their fields.
type Normalizer interface {
	Normalize()
}

// Struct normalizes v when possible, then checks its tags.
// It returns nil or *Error.
func Struct(v any) error {
	if n, ok := v.(Normalizer); ok {
		n.Normalize()
	}
	err := get().Struct(v)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err)
	}
	out := &Error{Violations: make([]Violation, 0, len(ve))}
	for _, fe := range ve {
		out.Violations = append(out.Violations, Violation{
			Field:   fieldPath(fe),
			Code:    strings.ToUpper(fe.Tag()),
			Message: message(fe),
		})
	}
	return out
}

// Violations extracts the violation list from err, if any.
func Violations(err error) []Violation {
	var ve *Error
	if errors.As(err, &ve) {
		return ve.Violations
	}
	return nil
}

// Fail builds a single-violation error for checks that tags cannot express.
func Fail(field, code, msg string) error {
	return &Error{Violations: []Violation{{Field: field, Code: code, Message: msg}}}
}

func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func message(fe validator.FieldError) string {
	param := fe.Param()
	counted := fe.Kind() == reflect.String || fe.Kind() == reflect.Slice || fe.Kind() == reflect.Map
	unit := ""
	if fe.Kind() == reflect.String {
		unit = " characters"
	} else if counted {
		unit = " items"
	}
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		if counted {
			return "must contain at least " + param + unit
		}
		return "must be at least " + param
	case "max":
		if counted {
			return "must contain at most " + param + unit
		}
		return "must be at most " + param
	case "gte":
		return "must be at least " + param
	case "lte":
		return "must be at most " + param
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(param, " ", ", ")
	case "url", "http_url":
		return "must be a valid URL"
	case "uuid", "uuid4":
		return "must be a valid UUID"
	case "topic":
		return "may contain only letters, numbers, spaces, commas, periods and hyphens"
	case "option":
		return "must be one of a, b, c, d"
	case "personname":
		return "may contain only letters, spaces, periods, apostrophes and hyphens"
	case "ltemarks":
		return "must not exceed marks_allocated (" + param + ")"
	case "dive":
		return "is invalid"
	}
	return "failed " + fe.Tag() + " check"
}
