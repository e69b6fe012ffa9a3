package captcha

import (
	"context"
	"errors"
	"testing"
)

func TestSolverValidation(t *testing.T) {
	tests := []struct {
		name    string
		ocr     string
		want    string
		wantErr bool
	}{
		{name: "clean", ocr: "AB12C3", want: "AB12C3"},
		{name: "lowercase", ocr: "ab12c3", want: "ab12c3"},
		{name: "whitespace and newline", ocr: " AB 12\nC3\n", want: "AB12C3"},
		{name: "too short", ocr: "AB12C", wantErr: true},
		{name: "too long", ocr: "AB12C34", wantErr: true},
		{name: "punctuation", ocr: "AB12C!", wantErr: true},
		{name: "non ascii", ocr: "AB12Cé", wantErr: true},
		{name: "empty", ocr: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSolver(RecognizerFunc(func(ctx context.Context, image []byte) (string, error) {
				return tt.ocr, nil
			}))
			got, err := s.Solve(context.Background(), nil)
			if tt.wantErr {
				if !errors.Is(err, ErrRejected) {
					t.Fatalf("expected ErrRejected, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Solve returned error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestSolverPropagatesRecognizerError(t *testing.T) {
	boom := errors.New("engine down")
	s := NewSolver(RecognizerFunc(func(ctx context.Context, image []byte) (string, error) {
		return "", boom
	}))
	_, err := s.Solve(context.Background(), nil)
	if !errors.Is(err, boom) {
		t.Fatalf("expected recognizer error, got %v", err)
	}
	if errors.Is(err, ErrRejected) {
		t.Fatal("engine failure must not be reported as a rejected solution")
	}
}
