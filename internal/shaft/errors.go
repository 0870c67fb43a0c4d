package shaft

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput marks caller errors detected before any simulation
	// starts: empty repertoires or impulse sequences, degenerate pieces,
	// non-positive widths. Validation errors wrap it.
	ErrInvalidInput = errors.New("invalid input")

	// ErrOutOfBounds is returned by Grid accessors for columns outside [0, W).
	ErrOutOfBounds = errors.New("column out of bounds")

	// ErrInvariantViolation marks a bug in the simulator. It is never
	// transient: retrying with the same inputs reproduces it.
	ErrInvariantViolation = errors.New("internal invariant violation")
)

// invalidf wraps ErrInvalidInput with a formatted message.
func invalidf(format string, args ...interface{}) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrInvalidInput)
}

// InvariantError describes which operation broke a simulator invariant.
type InvariantError struct {
	Op     string
	Detail string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Op, ErrInvariantViolation, e.Detail)
}

// Is lets errors.Is(err, ErrInvariantViolation) match.
func (e *InvariantError) Is(target error) bool {
	return target == ErrInvariantViolation
}

// Invariantf builds an InvariantError for op.
func Invariantf(op, format string, args ...interface{}) error {
	return &InvariantError{Op: op, Detail: fmt.Sprintf(format, args...)}
}
