// Package vipscodec implements the codec backend on top of libvips. It is the
// only backend that writes WEBP and HEIF and reads HEIF input.
package vipscodec

import (
	"fmt"
	"sync"

	"github.com/davidbyttow/govips/v2/vips"

	"squeeze/internal/codec"
	"squeeze/internal/logger"
	"squeeze/pkg/imgutil"
)

var (
	startMu sync.Mutex
	started bool
)

// Start initializes libvips once per process. libvips reports a failed
// init by panicking inside govips; that is turned into an error so callers
// can fall back to the native backend.
func Start() (err error) {
	startMu.Lock()
	defer startMu.Unlock()

	if started {
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("libvips startup failed: %v", r)
		}
	}()

	vipsLogLevel := vips.LogLevelWarning
	if logger.DebugEnabled() {
		vipsLogLevel = vips.LogLevelInfo
	}
	vips.LoggingSettings(func(domain string, level vips.LogLevel, msg string) {
		switch level {
		case vips.LogLevelError, vips.LogLevelCritical:
			logger.Error("libvips", "domain", domain, "message", msg)
		case vips.LogLevelWarning:
			logger.Warn("libvips", "domain", domain, "message", msg)
		default:
			logger.Debug("libvips", "domain", domain, "message", msg)
		}
	}, vipsLogLevel)

	// Trials run one at a time against a single raster.
	vips.Startup(&vips.Config{
		ConcurrencyLevel: 1,
		MaxCacheMem:      50 * 1024 * 1024,
		MaxCacheSize:     100,
	})

	started = true
	logger.Debug("libvips initialized", "version", vips.Version)
	return nil
}

// Shutdown releases libvips. No Vips images may be used afterwards.
func Shutdown() {
	startMu.Lock()
	defer startMu.Unlock()

	if started {
		vips.Shutdown()
		started = false
	}
}

// Vips is the libvips backend. Start must have succeeded before use.
type Vips struct{}

var _ codec.Backend = (*Vips)(nil)

// New returns the libvips backend, starting libvips if needed.
func New() (*Vips, error) {
	if err := Start(); err != nil {
		return nil, err
	}
	return &Vips{}, nil
}

type vipsImage struct {
	ref *vips.ImageRef
}

func (v *vipsImage) Width() int { return v.ref.Width() }

func (v *vipsImage) Height() int { return v.ref.Height() }

func (v *vipsImage) HasAlpha() bool { return v.ref.HasAlpha() }

func (v *vipsImage) Close() {
	if v.ref != nil {
		v.ref.Close()
		v.ref = nil
	}
}

func (c *Vips) Name() string { return "vips" }

func (c *Vips) CanEncode(format imgutil.Format) bool {
	switch format {
	case imgutil.FormatJPEG, imgutil.FormatPNG, imgutil.FormatWEBP, imgutil.FormatHEIF:
		return true
	default:
		return false
	}
}

func (c *Vips) Decode(path string) (codec.Image, error) {
	ref, err := vips.LoadImageFromFile(path, vips.NewImportParams())
	if err != nil {
		return nil, fmt.Errorf("vips failed to load image: %w", err)
	}
	if err := ref.AutoRotate(); err != nil {
		ref.Close()
		return nil, fmt.Errorf("vips auto-rotate failed: %w", err)
	}
	return &vipsImage{ref: ref}, nil
}

func (c *Vips) Prepare(img codec.Image, format imgutil.Format) (codec.Image, error) {
	vi, ok := img.(*vipsImage)
	if !ok {
		return nil, codec.ErrForeignImage
	}

	ref, err := vi.ref.Copy()
	if err != nil {
		return nil, err
	}

	switch {
	case ref.HasAlpha() && !format.SupportsAlpha():
		err = ref.Flatten(&vips.Color{R: 255, G: 255, B: 255})
	case isGrayOrPalette(ref) && format.SupportsAlpha():
		err = ref.ToColorSpace(vips.InterpretationSRGB)
	}
	if err != nil {
		ref.Close()
		return nil, fmt.Errorf("prepare for %s: %w", format, err)
	}
	return &vipsImage{ref: ref}, nil
}

// isGrayOrPalette matches the luminance(+alpha) rasters libvips produces for
// gray and palette PNG input.
func isGrayOrPalette(ref *vips.ImageRef) bool {
	switch ref.Interpretation() {
	case vips.InterpretationBW, vips.InterpretationGrey16:
		return true
	default:
		return false
	}
}

func (c *Vips) Encode(img codec.Image, format imgutil.Format, opts codec.EncodeOptions) ([]byte, error) {
	vi, ok := img.(*vipsImage)
	if !ok {
		return nil, codec.ErrForeignImage
	}

	var (
		out []byte
		err error
	)
	switch format {
	case imgutil.FormatJPEG:
		p := vips.NewJpegExportParams()
		p.Quality = opts.Quality
		p.OptimizeCoding = true
		p.StripMetadata = true
		out, _, err = vi.ref.ExportJpeg(p)
	case imgutil.FormatPNG:
		p := vips.NewPngExportParams()
		p.Compression = 9
		p.StripMetadata = true
		out, _, err = vi.ref.ExportPng(p)
	case imgutil.FormatWEBP:
		p := vips.NewWebpExportParams()
		p.Quality = opts.Quality
		p.StripMetadata = true
		if opts.UseMethod {
			p.ReductionEffort = opts.Method
		}
		out, _, err = vi.ref.ExportWebp(p)
	case imgutil.FormatHEIF:
		if opts.UseMethod {
			return nil, fmt.Errorf("%w: method for %s", codec.ErrUnsupportedParam, format)
		}
		p := vips.NewHeifExportParams()
		p.Quality = opts.Quality
		out, _, err = vi.ref.ExportHeif(p)
	default:
		return nil, fmt.Errorf("%w: %s", codec.ErrUnsupportedFormat, format)
	}
	if err != nil {
		return nil, codec.ClassifyEncodeError(fmt.Errorf("vips %s export: %w", format, err))
	}
	return out, nil
}

func (c *Vips) Resize(img codec.Image, width, height int) (codec.Image, error) {
	vi, ok := img.(*vipsImage)
	if !ok {
		return nil, codec.ErrForeignImage
	}

	ref, err := vi.ref.Copy()
	if err != nil {
		return nil, err
	}
	hscale := float64(width) / float64(ref.Width())
	vscale := float64(height) / float64(ref.Height())
	if err := ref.ResizeWithVScale(hscale, vscale, vips.KernelLanczos3); err != nil {
		ref.Close()
		return nil, fmt.Errorf("vips resize failed: %w", err)
	}
	return &vipsImage{ref: ref}, nil
}
