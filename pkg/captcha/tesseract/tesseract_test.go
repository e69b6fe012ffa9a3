package tesseract

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os/exec"
	"strings"
	"testing"

	"github.com/nguyenkhoa0721/lookup-bank/pkg/captcha"
	"github.com/otiai10/gosseract/v2"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

func ensureTesseractAvailable(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("tesseract"); err != nil {
		t.Skip("tesseract not installed in PATH")
	}
}

func TestTesseractRecognizerReadsRenderedText(t *testing.T) {
	ensureTesseractAvailable(t)

	small := image.NewRGBA(image.Rect(0, 0, 60, 20))
	draw.Draw(small, small.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	d := &font.Drawer{
		Dst:  small,
		Src:  image.Black,
		Face: basicfont.Face7x13,
		Dot:  fixed.P(6, 15),
	}
	d.DrawString("HELLO7")

	big := image.NewRGBA(image.Rect(0, 0, 240, 80))
	draw.NearestNeighbor.Scale(big, big.Bounds(), small, small.Bounds(), draw.Src, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, big); err != nil {
		t.Fatalf("encode png: %v", err)
	}

	text, err := New().Recognize(context.Background(), buf.Bytes())
	if err != nil {
		t.Fatalf("Recognize returned error: %v", err)
	}
	if !strings.Contains(strings.ToUpper(captcha.Normalize(text)), "HELLO") {
		t.Fatalf("unexpected OCR output: %q", text)
	}
}

func TestTesseractRecognizerHonorsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New().Recognize(ctx, nil); err == nil {
		t.Fatal("expected context error")
	}
}

func TestParsePageSegMode(t *testing.T) {
	tests := []struct {
		name    string
		want    gosseract.PageSegMode
		wantErr bool
	}{
		{name: "", want: gosseract.PSM_SINGLE_LINE},
		{name: "single_line", want: gosseract.PSM_SINGLE_LINE},
		{name: " Sparse_Text ", want: gosseract.PSM_SPARSE_TEXT},
		{name: "single_word", want: gosseract.PSM_SINGLE_WORD},
		{name: "auto", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePageSegMode(tt.name)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tt.name)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Fatalf("expected %v, got %v (%v)", tt.want, got, err)
			}
		})
	}
}
