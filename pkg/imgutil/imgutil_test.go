package imgutil

import (
	"bytes"
	"testing"
)

func TestDetectHeader(t *testing.T) {
	pad := func(b []byte) []byte {
		out := make([]byte, headerLen)
		copy(out, b)
		return out
	}

	tests := []struct {
		name   string
		header []byte
		want   Kind
	}{
		{"jpeg", pad([]byte{0xff, 0xd8, 0xff, 0xe0}), KindJPEG},
		{"png", pad(pngSig), KindPNG},
		{"tiff le", pad(tiffSigLE), KindTIFF},
		{"tiff be", pad(tiffSigBE), KindTIFF},
		{"webp", []byte("RIFF\x10\x00\x00\x00WEBP"), KindWEBP},
		{"heic", []byte("\x00\x00\x00\x18ftypheic"), KindHEIF},
		{"avif is not heif", []byte("\x00\x00\x00\x18ftypavif"), KindUnknown},
		{"bmp", pad([]byte("BM6\x00")), KindBMP},
		{"text", []byte("hello world!"), KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DetectHeader(tt.header)
			if err != nil {
				t.Fatalf("detect: %v", err)
			}
			if got != tt.want {
				t.Fatalf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestDetectHeaderTooShort(t *testing.T) {
	if _, err := DetectHeader([]byte{0xff, 0xd8}); err == nil {
		t.Fatal("expected error for short header")
	}
	if _, err := SniffReader(bytes.NewReader([]byte{0xff})); err == nil {
		t.Fatal("expected error for short reader")
	}
}

func TestParseFormat(t *testing.T) {
	tests := map[string]Format{
		"jpeg": FormatJPEG,
		"JPG":  FormatJPEG,
		"png":  FormatPNG,
		"WebP": FormatWEBP,
		"heic": FormatHEIF,
		"HEIF": FormatHEIF,
	}
	for in, want := range tests {
		got, err := ParseFormat(in)
		if err != nil {
			t.Fatalf("%s: %v", in, err)
		}
		if got != want {
			t.Fatalf("%s: got %s, want %s", in, got, want)
		}
	}
	if _, err := ParseFormat("gif"); err == nil {
		t.Fatal("expected error for gif")
	}
}

func TestFormatTraits(t *testing.T) {
	if !FormatPNG.Lossless() || FormatWEBP.Lossless() {
		t.Fatal("only PNG should be lossless")
	}
	if FormatJPEG.SupportsAlpha() || FormatHEIF.SupportsAlpha() || !FormatWEBP.SupportsAlpha() {
		t.Fatal("alpha support mismatch")
	}
	if !FormatWEBP.HasMethod() || FormatJPEG.HasMethod() {
		t.Fatal("method knob mismatch")
	}
	if FormatHEIF.Extension() != ".heic" || FormatJPEG.Extension() != ".jpg" {
		t.Fatal("extension mismatch")
	}
}

func TestIsSupportedInput(t *testing.T) {
	for _, p := range []string{"a.JPG", "b/c.jpeg", "x.heif", "y.TIFF", "z.bmp"} {
		if !IsSupportedInput(p) {
			t.Fatalf("%s should be supported", p)
		}
	}
	for _, p := range []string{"a.gif", "notes.txt", "noext"} {
		if IsSupportedInput(p) {
			t.Fatalf("%s should not be supported", p)
		}
	}
}
