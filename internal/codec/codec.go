// Package codec defines the raster codec boundary used by the search: a
// Codec decodes files, prepares rasters for a target format, and encodes
// them at a given quality; a Resampler resizes them. Two backends exist:
// Native (Go decoders, JPEG/PNG output) in this package and the libvips
// backend in codec/vipscodec.
package codec

import (
	"errors"
	"fmt"
	"regexp"

	"squeeze/pkg/imgutil"
)

var (
	// ErrUnsupportedParam marks an encoder rejecting an optional knob such
	// as the WEBP effort level. Callers may retry without the knob.
	ErrUnsupportedParam = errors.New("unsupported encoder parameter")
	// ErrUnsupportedFormat marks a format the backend cannot read or write.
	ErrUnsupportedFormat = errors.New("unsupported format")
	// ErrForeignImage is returned when an Image from another backend is
	// passed in.
	ErrForeignImage = errors.New("image belongs to a different codec backend")
)

// Image is a decoded raster owned by exactly one backend.
type Image interface {
	Width() int
	Height() int
	HasAlpha() bool
	// Close releases the pixel buffer. The Image must not be used after.
	Close()
}

// EncodeOptions are the per-trial encoder parameters.
type EncodeOptions struct {
	Quality int // 1-100; ignored by lossless formats.
	// Method is the effort/density level, applied only when UseMethod is set.
	Method    int
	UseMethod bool
}

// Codec decodes and encodes rasters.
type Codec interface {
	// Name identifies the backend in logs and reports.
	Name() string
	// CanEncode reports whether format can be produced.
	CanEncode(format imgutil.Format) bool
	Decode(path string) (Image, error)
	// Prepare returns a raster suitable for encoding as format: alpha is
	// flattened onto white when the format cannot carry it, and palette
	// rasters are expanded. The input is not modified; the caller owns
	// both images.
	Prepare(img Image, format imgutil.Format) (Image, error)
	Encode(img Image, format imgutil.Format, opts EncodeOptions) ([]byte, error)
}

// Resampler resizes rasters. The kernel is the backend's choice.
type Resampler interface {
	Resize(img Image, width, height int) (Image, error)
}

// Backend is a Codec that can also resample its own images.
type Backend interface {
	Codec
	Resampler
}

// Encoder messages that mean an optional argument was not understood.
var reUnsupportedParam = regexp.MustCompile(
	`(?i)unknown (argument|parameter|option)|` +
		`no property named|` +
		`(reduction[_-]?)?effort.*(not supported|invalid|unknown)|` +
		`unexpected keyword argument`)

// ClassifyEncodeError wraps err with ErrUnsupportedParam when the encoder
// message says an optional argument was rejected. Other errors pass through.
func ClassifyEncodeError(err error) error {
	if err == nil || errors.Is(err, ErrUnsupportedParam) {
		return err
	}
	if reUnsupportedParam.MatchString(err.Error()) {
		return fmt.Errorf("%w: %v", ErrUnsupportedParam, err)
	}
	return err
}
