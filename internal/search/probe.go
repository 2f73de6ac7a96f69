package search

import (
	"errors"
	"fmt"

	"squeeze/internal/codec"
	"squeeze/internal/logger"
	"squeeze/pkg/imgutil"
)

// NoMethod is the method value of trials made without the effort knob.
const NoMethod = -1

// Encoder is the part of codec.Codec the probe needs.
type Encoder interface {
	Encode(img codec.Image, format imgutil.Format, opts codec.EncodeOptions) ([]byte, error)
}

// Prober encodes one prepared image at requested parameters and measures the
// result. It is not safe for concurrent use.
type Prober struct {
	enc      Encoder
	img      codec.Image
	format   imgutil.Format
	methodOK bool
	calls    int
}

// NewProber binds enc to an image already prepared for format.
func NewProber(enc Encoder, img codec.Image, format imgutil.Format) *Prober {
	return &Prober{
		enc:      enc,
		img:      img,
		format:   format,
		methodOK: format.HasMethod(),
	}
}

// Calls is the number of Probe invocations so far.
func (p *Prober) Calls() int { return p.calls }

// MethodSupported reports whether the method knob is still in use. It turns
// false for the rest of the image once the encoder rejects it.
func (p *Prober) MethodSupported() bool { return p.methodOK }

// Probe encodes at quality and, when supported, method. A method below zero
// means none. If the encoder rejects the method it is retried once without.
func (p *Prober) Probe(quality, method int) (Trial, error) {
	p.calls++

	opts := codec.EncodeOptions{Quality: quality}
	if method >= 0 && p.methodOK {
		opts.Method = method
		opts.UseMethod = true
	}

	data, err := p.enc.Encode(p.img, p.format, opts)
	if err != nil && opts.UseMethod && errors.Is(err, codec.ErrUnsupportedParam) {
		logger.Warn("Encoder rejected method, retrying without it",
			"format", p.format, "quality", quality, "method", method, "error", err)
		p.methodOK = false
		opts.Method, opts.UseMethod = 0, false
		data, err = p.enc.Encode(p.img, p.format, opts)
	}
	if err != nil {
		return Trial{}, fmt.Errorf("encode %s at quality %d: %w", p.format, quality, err)
	}

	used := NoMethod
	if opts.UseMethod {
		used = opts.Method
	}
	return Trial{
		Quality: quality,
		Method:  used,
		SizeKB:  float64(len(data)) / 1024,
		Payload: data,
	}, nil
}
