package patient

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound               = errors.New("patient not found")
	ErrValidationFailed       = errors.New("validation failed")
	ErrDuplicateLoginID       = errors.New("login id already in use")
	ErrCollisionExhausted     = errors.New("could not allocate a unique login id")
	ErrAuthFailed             = errors.New("invalid login credentials")
	ErrConcurrentModification = errors.New("diet chart history was modified concurrently")
)

// Violation is a single failed field rule.
type Violation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError reports every rule a profile input violated.
type ValidationError struct {
	Violations []Violation `json:"violations"`
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		msgs[i] = fmt.Sprintf("%s: %s", v.Field, v.Message)
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidationFailed
}

func (e *ValidationError) add(field, msg string) {
	e.Violations = append(e.Violations, Violation{Field: field, Message: msg})
}
