package captcha

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// SolutionLength is the fixed length of every portal captcha.
const SolutionLength = 6

// ErrRejected is returned when the OCR output does not look like a captcha
// solution. Callers must fetch a new challenge rather than retry OCR.
var ErrRejected = errors.New("captcha solution rejected")

// Recognizer turns an image into text. It is the OCR collaborator.
type Recognizer interface {
	Recognize(ctx context.Context, image []byte) (string, error)
}

// RecognizerFunc adapts a function to Recognizer.
type RecognizerFunc func(ctx context.Context, image []byte) (string, error)

func (f RecognizerFunc) Recognize(ctx context.Context, image []byte) (string, error) {
	return f(ctx, image)
}

// Solver runs OCR on a preprocessed captcha and validates the result.
type Solver struct {
	recognizer Recognizer
}

// NewSolver creates a Solver backed by recognizer.
func NewSolver(recognizer Recognizer) *Solver {
	return &Solver{recognizer: recognizer}
}

// Solve returns a validated solution or an error wrapping ErrRejected.
func (s *Solver) Solve(ctx context.Context, image []byte) (string, error) {
	text, err := s.recognizer.Recognize(ctx, image)
	if err != nil {
		return "", fmt.Errorf("recognize captcha: %w", err)
	}
	solution := Normalize(text)
	if err := Validate(solution); err != nil {
		return "", err
	}
	return solution, nil
}

// Normalize strips all whitespace, including newlines, from OCR output.
func Normalize(text string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, text)
}

// Validate accepts exactly SolutionLength ASCII letters or digits.
func Validate(solution string) error {
	if len(solution) != SolutionLength {
		return fmt.Errorf("%w: %q has length %d", ErrRejected, solution, len(solution))
	}
	for i := 0; i < len(solution); i++ {
		c := solution[i]
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z') {
			return fmt.Errorf("%w: %q contains %q", ErrRejected, solution, c)
		}
	}
	return nil
}
