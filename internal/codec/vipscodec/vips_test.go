package vipscodec

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math/rand"
	"os"
	"testing"

	"github.com/davidbyttow/govips/v2/vips"

	"squeeze/internal/codec"
	"squeeze/pkg/imgutil"
)

func TestMain(m *testing.M) {
	code := m.Run()
	Shutdown()
	os.Exit(code)
}

func startOrSkip(t *testing.T) *Vips {
	t.Helper()
	v, err := New()
	if err != nil {
		t.Skipf("libvips unavailable: %v", err)
	}
	return v
}

func loadPNG(t *testing.T, img image.Image) *vipsImage {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	ref, err := vips.NewImageFromBuffer(buf.Bytes())
	if err != nil {
		t.Fatalf("load png: %v", err)
	}
	return &vipsImage{ref: ref}
}

func noise(w, h int, alpha uint8) *image.NRGBA {
	rng := rand.New(rand.NewSource(7))
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(rng.Intn(256)), G: uint8(rng.Intn(256)), B: uint8(rng.Intn(256)), A: alpha})
		}
	}
	return img
}

func TestPrepareFlattensAlphaForJPEG(t *testing.T) {
	v := startOrSkip(t)
	src := loadPNG(t, noise(16, 16, 128))
	defer src.Close()
	if !src.HasAlpha() {
		t.Fatal("source should carry alpha")
	}

	prepared, err := v.Prepare(src, imgutil.FormatJPEG)
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	defer prepared.Close()

	if prepared.HasAlpha() {
		t.Fatal("JPEG raster should be flattened")
	}
	if !src.HasAlpha() {
		t.Fatal("prepare must not modify its input")
	}
}

func TestPrepareKeepsGrayAlphaForWEBP(t *testing.T) {
	v := startOrSkip(t)
	gray := image.NewGray(image.Rect(0, 0, 16, 16))
	for i := range gray.Pix {
		gray.Pix[i] = uint8(i)
	}
	src := loadPNG(t, gray)
	defer src.Close()
	if err := src.ref.AddAlpha(); err != nil {
		t.Fatalf("add alpha: %v", err)
	}

	prepared, err := v.Prepare(src, imgutil.FormatWEBP)
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	defer prepared.Close()

	ref := prepared.(*vipsImage).ref
	if !ref.HasAlpha() {
		t.Fatal("WEBP raster should keep alpha")
	}
	if ref.Interpretation() != vips.InterpretationSRGB || ref.Bands() != 4 {
		t.Fatalf("expected 4-band sRGB, got %v with %d bands", ref.Interpretation(), ref.Bands())
	}
}

func TestEncodeWEBPMethodChangesOutput(t *testing.T) {
	v := startOrSkip(t)
	src := loadPNG(t, noise(64, 64, 255))
	defer src.Close()

	fast, err := v.Encode(src, imgutil.FormatWEBP, codec.EncodeOptions{Quality: 75, Method: 0, UseMethod: true})
	if err != nil {
		t.Fatalf("encode method 0: %v", err)
	}
	dense, err := v.Encode(src, imgutil.FormatWEBP, codec.EncodeOptions{Quality: 75, Method: 6, UseMethod: true})
	if err != nil {
		t.Fatalf("encode method 6: %v", err)
	}
	if bytes.Equal(fast, dense) {
		t.Fatal("method should change the WEBP output")
	}
	if kind, _ := imgutil.DetectHeader(dense); kind != imgutil.KindWEBP {
		t.Fatalf("output is %s, want webp", kind)
	}
}

func TestEncodeHEIFRejectsMethod(t *testing.T) {
	v := startOrSkip(t)
	src := loadPNG(t, noise(8, 8, 255))
	defer src.Close()

	_, err := v.Encode(src, imgutil.FormatHEIF, codec.EncodeOptions{Quality: 50, Method: 4, UseMethod: true})
	if !errors.Is(err, codec.ErrUnsupportedParam) {
		t.Fatalf("expected ErrUnsupportedParam, got %v", err)
	}
}

func TestForeignImageRejected(t *testing.T) {
	v := startOrSkip(t)
	native := codec.WrapImage(noise(4, 4, 255))

	if _, err := v.Prepare(native, imgutil.FormatJPEG); !errors.Is(err, codec.ErrForeignImage) {
		t.Fatalf("prepare: expected ErrForeignImage, got %v", err)
	}
	if _, err := v.Encode(native, imgutil.FormatJPEG, codec.EncodeOptions{Quality: 50}); !errors.Is(err, codec.ErrForeignImage) {
		t.Fatalf("encode: expected ErrForeignImage, got %v", err)
	}
}

func TestResize(t *testing.T) {
	v := startOrSkip(t)
	src := loadPNG(t, noise(40, 20, 255))
	defer src.Close()

	out, err := v.Resize(src, 20, 10)
	if err != nil {
		t.Fatalf("resize: %v", err)
	}
	defer out.Close()
	if out.Width() != 20 || out.Height() != 10 {
		t.Fatalf("got %dx%d", out.Width(), out.Height())
	}
}
