package captcha

import (
	"bytes"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func decodePNG(t *testing.T, data []byte) image.Image {
	t.Helper()
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode png: %v", err)
	}
	return img
}

func nrgbaAt(img image.Image, x, y int) color.NRGBA {
	return color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
}

func TestParseColorPass(t *testing.T) {
	pass, err := ParseColorPass("#847069", "ffffff")
	if err != nil {
		t.Fatalf("ParseColorPass returned error: %v", err)
	}
	want := color.NRGBA{R: 0x84, G: 0x70, B: 0x69, A: 0xff}
	if pass.Target != want {
		t.Fatalf("expected target %v, got %v", want, pass.Target)
	}
	if pass.Replacement != (color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}) {
		t.Fatalf("unexpected replacement %v", pass.Replacement)
	}

	for _, bad := range []string{"", "#fff", "#gggggg", "#1234567"} {
		if _, err := ParseColorPass(bad, "#ffffff"); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestPreprocessorReplacesOnlyTargetColors(t *testing.T) {
	noise := color.NRGBA{R: 0x84, G: 0x70, B: 0x69, A: 0xff}
	ink := color.NRGBA{R: 0x10, G: 0x20, B: 0x30, A: 0xff}

	img := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	img.SetNRGBA(0, 0, noise)
	img.SetNRGBA(1, 0, ink)

	p := NewDefaultPreprocessor(1)
	out, err := p.Process(encodePNG(t, img))
	if err != nil {
		t.Fatalf("Process returned error: %v", err)
	}
	got := decodePNG(t, out)

	if c := nrgbaAt(got, 0, 0); c != (color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}) {
		t.Fatalf("expected noise pixel to be white, got %v", c)
	}
	if c := nrgbaAt(got, 1, 0); c != ink {
		t.Fatalf("expected ink pixel to be untouched, got %v", c)
	}
}

func TestPreprocessorAppliesPassesInOrder(t *testing.T) {
	first, _ := ParseColorPass("#aa0000", "#00bb00")
	second, _ := ParseColorPass("#00bb00", "#ffffff")

	img := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	img.SetNRGBA(0, 0, color.NRGBA{R: 0xaa, A: 0xff})
	raw := encodePNG(t, img)

	out, err := NewPreprocessor([]ColorPass{first, second}, 1).Process(raw)
	if err != nil {
		t.Fatalf("Process returned error: %v", err)
	}
	if c := nrgbaAt(decodePNG(t, out), 0, 0); c != (color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}) {
		t.Fatalf("expected chained passes to end at white, got %v", c)
	}

	out, err = NewPreprocessor([]ColorPass{second, first}, 1).Process(raw)
	if err != nil {
		t.Fatalf("Process returned error: %v", err)
	}
	if c := nrgbaAt(decodePNG(t, out), 0, 0); c != (color.NRGBA{G: 0xbb, A: 0xff}) {
		t.Fatalf("expected reversed passes to stop at green, got %v", c)
	}
}

func TestPreprocessorUpscales(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 3, 2))
	out, err := NewPreprocessor(nil, 3).Process(encodePNG(t, img))
	if err != nil {
		t.Fatalf("Process returned error: %v", err)
	}
	b := decodePNG(t, out).Bounds()
	if b.Dx() != 9 || b.Dy() != 6 {
		t.Fatalf("expected 9x6 image, got %dx%d", b.Dx(), b.Dy())
	}
}

func TestPreprocessorRejectsGarbage(t *testing.T) {
	if _, err := NewDefaultPreprocessor(1).Process([]byte("not an image")); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestDecodeImageString(t *testing.T) {
	payload := []byte{0x89, 'P', 'N', 'G'}
	enc := base64.StdEncoding.EncodeToString(payload)

	for _, in := range []string{enc, "data:image/png;base64," + enc, " " + enc + "\n"} {
		got, err := DecodeImageString(in)
		if err != nil {
			t.Fatalf("DecodeImageString(%q) returned error: %v", in, err)
		}
		if !bytes.Equal(got, payload) {
			t.Fatalf("unexpected payload %v", got)
		}
	}

	if _, err := DecodeImageString("!!!"); err == nil || errors.Is(err, ErrRejected) {
		t.Fatalf("expected base64 error, got %v", err)
	}
}
