package codec

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"os"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"squeeze/internal/logger"
	"squeeze/pkg/imgutil"
)

// Native is a pure Go backend. It reads JPEG, PNG, WEBP, TIFF and BMP and
// writes JPEG and PNG. HEIF input and WEBP/HEIF output need the libvips
// backend.
type Native struct{}

var _ Backend = (*Native)(nil)

// NewNative returns the pure Go backend.
func NewNative() *Native {
	return &Native{}
}

type nativeImage struct {
	img   image.Image
	alpha bool
}

func (n *nativeImage) Width() int { return n.img.Bounds().Dx() }

func (n *nativeImage) Height() int { return n.img.Bounds().Dy() }

func (n *nativeImage) HasAlpha() bool { return n.alpha }

func (n *nativeImage) Close() {}

// WrapImage adopts an in-memory raster as a Native image.
func WrapImage(img image.Image) Image {
	return &nativeImage{img: img, alpha: hasAlpha(img)}
}

func (c *Native) Name() string { return "native" }

func (c *Native) CanEncode(format imgutil.Format) bool {
	return format == imgutil.FormatJPEG || format == imgutil.FormatPNG
}

func (c *Native) Decode(path string) (Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	kind, err := imgutil.SniffReader(file)
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if kind == imgutil.KindHEIF {
		return nil, fmt.Errorf("%w: %s input needs the vips backend", ErrUnsupportedFormat, kind)
	}

	orientation := 1
	if kind == imgutil.KindJPEG || kind == imgutil.KindTIFF {
		if o, err := readOrientation(file); err != nil {
			logger.Debug("EXIF orientation unreadable", "path", path, "error", err)
		} else {
			orientation = o
		}
	}

	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	img, format, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", kind, err)
	}
	logger.Debug("Decoded image", "path", path, "format", format, "orientation", orientation)

	return WrapImage(applyOrientation(img, orientation)), nil
}

func (c *Native) Prepare(img Image, format imgutil.Format) (Image, error) {
	ni, ok := img.(*nativeImage)
	if !ok {
		return nil, ErrForeignImage
	}

	_, paletted := ni.img.(*image.Paletted)
	switch {
	case ni.alpha && !format.SupportsAlpha():
		return &nativeImage{img: flattenOnWhite(ni.img)}, nil
	case paletted && format.SupportsAlpha():
		return &nativeImage{img: imaging.Clone(ni.img), alpha: ni.alpha}, nil
	case paletted:
		return &nativeImage{img: flattenOnWhite(ni.img)}, nil
	default:
		return ni, nil
	}
}

func (c *Native) Encode(img Image, format imgutil.Format, opts EncodeOptions) ([]byte, error) {
	ni, ok := img.(*nativeImage)
	if !ok {
		return nil, ErrForeignImage
	}
	if opts.UseMethod {
		return nil, fmt.Errorf("%w: method is not available for %s in the native backend", ErrUnsupportedParam, format)
	}

	var buf bytes.Buffer
	switch format {
	case imgutil.FormatJPEG:
		if err := jpeg.Encode(&buf, ni.img, &jpeg.Options{Quality: opts.Quality}); err != nil {
			return nil, err
		}
	case imgutil.FormatPNG:
		enc := png.Encoder{CompressionLevel: png.BestCompression}
		if err := enc.Encode(&buf, ni.img); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: %s output needs the vips backend", ErrUnsupportedFormat, format)
	}
	return buf.Bytes(), nil
}

func (c *Native) Resize(img Image, width, height int) (Image, error) {
	ni, ok := img.(*nativeImage)
	if !ok {
		return nil, ErrForeignImage
	}
	return &nativeImage{
		img:   imaging.Resize(ni.img, width, height, imaging.Lanczos),
		alpha: ni.alpha,
	}, nil
}

// hasAlpha reports whether the raster carries any non-opaque pixel
// capability. Opaque RGBA rasters (the PNG decoder's output for RGB files)
// count as alpha-free.
func hasAlpha(img image.Image) bool {
	switch m := img.(type) {
	case *image.Gray, *image.Gray16, *image.YCbCr, *image.CMYK:
		return false
	case *image.Paletted:
		for _, c := range m.Palette {
			if _, _, _, a := c.RGBA(); a != 0xffff {
				return true
			}
		}
		return false
	}
	if o, ok := img.(interface{ Opaque() bool }); ok {
		return !o.Opaque()
	}
	return true
}

func flattenOnWhite(img image.Image) image.Image {
	b := img.Bounds()
	bg := imaging.New(b.Dx(), b.Dy(), color.White)
	return imaging.Overlay(bg, img, image.Pt(0, 0), 1.0)
}
