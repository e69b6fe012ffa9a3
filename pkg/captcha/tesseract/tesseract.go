package tesseract

import (
	"context"
	"fmt"
	"strings"

	"github.com/nguyenkhoa0721/lookup-bank/pkg/captcha"
	"github.com/otiai10/gosseract/v2"
)

var _ captcha.Recognizer = (*Recognizer)(nil)

const alphanumeric = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// Recognizer implements captcha.Recognizer with gosseract. A new client is
// created per call since gosseract clients are not safe for concurrent use.
type Recognizer struct {
	clientFactory func() *gosseract.Client
	languages     []string
	mode          gosseract.PageSegMode
}

// Option customizes a Recognizer.
type Option func(*Recognizer)

// WithLanguages sets the tesseract languages.
func WithLanguages(langs ...string) Option {
	return func(r *Recognizer) { r.languages = langs }
}

// WithPageSegMode overrides the page segmentation mode.
func WithPageSegMode(mode gosseract.PageSegMode) Option {
	return func(r *Recognizer) { r.mode = mode }
}

// ParsePageSegMode maps a configured mode name to a tesseract page
// segmentation mode. An empty name selects single_line.
func ParsePageSegMode(name string) (gosseract.PageSegMode, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "single_line":
		return gosseract.PSM_SINGLE_LINE, nil
	case "sparse_text":
		return gosseract.PSM_SPARSE_TEXT, nil
	case "single_word":
		return gosseract.PSM_SINGLE_WORD, nil
	default:
		return 0, fmt.Errorf("unknown page segmentation mode %q", name)
	}
}

// New defaults to single-line recognition in English.
func New(opts ...Option) *Recognizer {
	r := &Recognizer{
		clientFactory: gosseract.NewClient,
		languages:     []string{"eng"},
		mode:          gosseract.PSM_SINGLE_LINE,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Recognize implements captcha.Recognizer.
func (r *Recognizer) Recognize(ctx context.Context, image []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	c := r.clientFactory()
	defer c.Close()

	if err := c.SetPageSegMode(r.mode); err != nil {
		return "", fmt.Errorf("set page seg mode: %w", err)
	}
	if len(r.languages) > 0 {
		if err := c.SetLanguage(r.languages...); err != nil {
			return "", fmt.Errorf("set languages: %w", err)
		}
	}
	if err := c.SetWhitelist(alphanumeric); err != nil {
		return "", fmt.Errorf("set whitelist: %w", err)
	}
	if err := c.SetImageFromBytes(image); err != nil {
		return "", fmt.Errorf("set image: %w", err)
	}
	text, err := c.Text()
	if err != nil {
		return "", fmt.Errorf("recognize text: %w", err)
	}
	return text, nil
}
