/**
 * @description
 * Captcha image normalization. The portal draws its captcha glyphs over a
 * speckled, anti-aliased background using a small fixed palette; flattening
 * those colors to white before OCR is what makes tesseract usable on it.
 *
 * @dependencies
 * - golang.org/x/image/draw: pixel format conversion and upscaling.
 */
package captcha

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strconv"
	"strings"

	"golang.org/x/image/draw"
)

// ColorPass replaces every pixel whose RGB exactly equals Target with Replacement.
type ColorPass struct {
	Target      color.NRGBA
	Replacement color.NRGBA
}

// DefaultPalette is the ordered list of target → replacement colors tuned to the
// portal's captcha. Order matters: later colors only surface once earlier
// passes have flattened the anti-aliasing around them.
var DefaultPalette = [][2]string{
	{"#847069", "#ffffff"},
	{"#ffe3d5", "#ffffff"},
	{"#ffc9b0", "#ffffff"},
	{"#ffdac8", "#ffffff"},
	{"#c4a89e", "#ffffff"},
	{"#f4e3dd", "#ffffff"},
}

// ParseColorPass builds a pass from two hex colors ("#rrggbb" or "rrggbb").
func ParseColorPass(target, replacement string) (ColorPass, error) {
	t, err := parseHexColor(target)
	if err != nil {
		return ColorPass{}, err
	}
	r, err := parseHexColor(replacement)
	if err != nil {
		return ColorPass{}, err
	}
	return ColorPass{Target: t, Replacement: r}, nil
}

// ParsePalette converts a list of hex pairs into passes, preserving order.
func ParsePalette(pairs [][2]string) ([]ColorPass, error) {
	passes := make([]ColorPass, 0, len(pairs))
	for _, p := range pairs {
		pass, err := ParseColorPass(p[0], p[1])
		if err != nil {
			return nil, err
		}
		passes = append(passes, pass)
	}
	return passes, nil
}

func parseHexColor(s string) (color.NRGBA, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) != 6 {
		return color.NRGBA{}, fmt.Errorf("invalid hex color %q", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid hex color %q: %w", s, err)
	}
	return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
}

// Preprocessor applies the color passes and an optional integer upscale.
type Preprocessor struct {
	passes []ColorPass
	scale  int
}

// NewPreprocessor creates a Preprocessor. A scale below 2 disables upscaling.
func NewPreprocessor(passes []ColorPass, scale int) *Preprocessor {
	if scale < 1 {
		scale = 1
	}
	return &Preprocessor{passes: passes, scale: scale}
}

// NewDefaultPreprocessor uses DefaultPalette.
func NewDefaultPreprocessor(scale int) *Preprocessor {
	passes, err := ParsePalette(DefaultPalette)
	if err != nil {
		panic(err)
	}
	return NewPreprocessor(passes, scale)
}

// Process decodes raw, flattens the palette and returns a PNG.
func (p *Preprocessor) Process(raw []byte) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode captcha image: %w", err)
	}

	b := src.Bounds()
	img := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(img, img.Bounds(), src, b.Min, draw.Src)

	for _, pass := range p.passes {
		applyPass(img, pass)
	}

	var out image.Image = img
	if p.scale > 1 {
		scaled := image.NewNRGBA(image.Rect(0, 0, b.Dx()*p.scale, b.Dy()*p.scale))
		draw.NearestNeighbor.Scale(scaled, scaled.Bounds(), img, img.Bounds(), draw.Src, nil)
		out = scaled
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, out); err != nil {
		return nil, fmt.Errorf("encode captcha image: %w", err)
	}
	return buf.Bytes(), nil
}

func applyPass(img *image.NRGBA, pass ColorPass) {
	pix := img.Pix
	for i := 0; i+3 < len(pix); i += 4 {
		if pix[i] == pass.Target.R && pix[i+1] == pass.Target.G && pix[i+2] == pass.Target.B {
			pix[i] = pass.Replacement.R
			pix[i+1] = pass.Replacement.G
			pix[i+2] = pass.Replacement.B
			pix[i+3] = pass.Replacement.A
		}
	}
}

// DecodeImageString decodes the portal's base64 image field, tolerating a data URI prefix.
func DecodeImageString(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if idx := strings.Index(s, ","); strings.HasPrefix(s, "data:") && idx >= 0 {
		s = s[idx+1:]
	}
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode captcha base64: %w", err)
	}
	return raw, nil
}
