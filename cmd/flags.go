package cmd

import (
	"fmt"

	"github.com/spf13/pflag"

	"squeeze/internal/codec"
	"squeeze/internal/codec/vipscodec"
	"squeeze/internal/config"
	"squeeze/internal/logger"
	"squeeze/pkg/imgutil"
)

// searchFlags are shared by run and fit.
type searchFlags struct {
	cfg     config.Config
	scale   config.ScaleSpec
	format  string
	naming  string
	backend string
	mode    string
	logic   string
}

func newSearchFlags() *searchFlags {
	return &searchFlags{cfg: config.DefaultConfig()}
}

func (f *searchFlags) bind(fs *pflag.FlagSet) {
	d := config.DefaultConfig()

	fs.Float64VarP(&f.cfg.TargetKB, "target-kb", "t", d.TargetKB, "target size per file in KB")
	fs.StringVarP(&f.cfg.OutputDir, "output", "o", d.OutputDir, "destination folder")
	fs.StringVarP(&f.format, "format", "f", string(d.Format), "output format: JPEG, PNG, WEBP or HEIF")
	fs.StringVar(&f.naming, "naming", string(d.Naming), "output naming: folder or prefix")
	fs.IntVar(&f.cfg.MethodDefault, "method", d.MethodDefault, "WEBP method used during the quality search (0-6)")
	fs.IntVar(&f.cfg.TuningThreshold, "tuning-threshold", d.TuningThreshold, "tune the WEBP method when the result is below this percent of the target")
	fs.StringVar(&f.backend, "backend", string(d.Backend), "codec backend: auto, vips or native")
	fs.BoolVar(&f.cfg.StripCopies, "strip-copies", false, "drop EXIF/XMP/IPTC from JPEG and PNG files copied without re-encoding")

	fs.StringVar(&f.mode, "scale", string(config.ScaleOff), "resize before encoding: off, percent or fit")
	fs.Float64Var(&f.scale.Percent, "percent", 100, "scale percentage for --scale percent")
	fs.IntVar(&f.scale.Width, "width", 0, "maximum width for --scale fit (0 = unbounded)")
	fs.IntVar(&f.scale.Height, "height", 0, "maximum height for --scale fit (0 = unbounded)")
	fs.BoolVar(&f.scale.Condition.Enabled, "scale-if", false, "only scale images that meet the minimum dimensions")
	fs.IntVar(&f.scale.Condition.MinWidth, "min-width", 0, "width threshold for --scale-if")
	fs.IntVar(&f.scale.Condition.MinHeight, "min-height", 0, "height threshold for --scale-if")
	fs.StringVar(&f.logic, "scale-logic", string(config.LogicOr), "combine the --scale-if thresholds with and/or")

	fs.StringVar(&f.cfg.LogDir, "log-dir", d.LogDir, "folder for the text log and the workbook")
	fs.StringVar(&f.cfg.LogFile, "log-file", d.LogFile, "text log name; the workbook shares its stem")
	fs.StringVar(&f.cfg.MetricsFile, "metrics-file", "", "write prometheus metrics in textfile format")
}

// build validates the flags and returns the run configuration.
func (f *searchFlags) build() (config.Config, config.ScaleSpec, error) {
	cfg := f.cfg
	cfg.Verbose = verbose

	format, err := imgutil.ParseFormat(f.format)
	if err != nil {
		return cfg, f.scale, err
	}
	cfg.Format = format
	cfg.Naming = config.NamingMode(f.naming)
	cfg.Backend = config.Backend(f.backend)
	if err := cfg.Validate(); err != nil {
		return cfg, f.scale, err
	}

	spec := f.scale
	spec.Mode = config.ScaleMode(f.mode)
	spec.Condition.Logic = config.Logic(f.logic)
	if err := spec.Validate(); err != nil {
		return cfg, spec, err
	}
	return cfg, spec, nil
}

// openBackend returns the selected codec and a release function. Auto falls
// back to the native codec when libvips cannot start.
func openBackend(choice config.Backend, format imgutil.Format) (codec.Backend, func(), error) {
	noop := func() {}
	switch choice {
	case config.BackendNative:
		return codec.NewNative(), noop, nil
	case config.BackendVips:
		v, err := vipscodec.New()
		if err != nil {
			return nil, noop, err
		}
		return v, vipscodec.Shutdown, nil
	default:
		v, err := vipscodec.New()
		if err == nil {
			return v, vipscodec.Shutdown, nil
		}
		native := codec.NewNative()
		if !native.CanEncode(format) {
			return nil, noop, fmt.Errorf("%s output needs libvips: %w", format, err)
		}
		logger.Warn("libvips unavailable, using the native codec", "error", err)
		return native, noop, nil
	}
}
