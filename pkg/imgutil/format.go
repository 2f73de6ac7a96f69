package imgutil

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"
)

// Format is an output encoding the transcoder can target.
type Format string

const (
	FormatJPEG Format = "JPEG"
	FormatPNG  Format = "PNG"
	FormatWEBP Format = "WEBP"
	FormatHEIF Format = "HEIF"
)

// Formats lists every output format in display order.
var Formats = []Format{FormatJPEG, FormatPNG, FormatWEBP, FormatHEIF}

// InputExtensions lists the file extensions picked up during discovery.
var InputExtensions = []string{".jpg", ".jpeg", ".png", ".webp", ".tiff", ".bmp", ".heic", ".heif"}

// ParseFormat maps a user supplied name onto a Format. HEIC is accepted as
// an alias of HEIF and JPG as an alias of JPEG.
func ParseFormat(name string) (Format, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "JPEG", "JPG":
		return FormatJPEG, nil
	case "PNG":
		return FormatPNG, nil
	case "WEBP":
		return FormatWEBP, nil
	case "HEIF", "HEIC":
		return FormatHEIF, nil
	default:
		return "", fmt.Errorf("unsupported output format %q (use JPEG, PNG, WEBP or HEIF)", name)
	}
}

// Extension returns the canonical output extension, including the dot.
func (f Format) Extension() string {
	switch f {
	case FormatPNG:
		return ".png"
	case FormatWEBP:
		return ".webp"
	case FormatHEIF:
		return ".heic"
	default:
		return ".jpg"
	}
}

// Lossless reports whether the encoder ignores the quality knob.
func (f Format) Lossless() bool {
	return f == FormatPNG
}

// SupportsAlpha reports whether the format can carry an alpha channel.
func (f Format) SupportsAlpha() bool {
	return f == FormatPNG || f == FormatWEBP
}

// HasMethod reports whether the encoder exposes an effort/density knob.
func (f Format) HasMethod() bool {
	return f == FormatWEBP
}

// IsSupportedInput reports whether path carries one of InputExtensions.
func IsSupportedInput(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return slices.Contains(InputExtensions, ext)
}
