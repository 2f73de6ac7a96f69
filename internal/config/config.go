// Package config holds the immutable run configuration: defaults, scale
// settings, and validation. A Config is built once from CLI flags and then
// passed by value into the orchestrator and search.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"squeeze/pkg/imgutil"
)

// NamingMode selects how output paths are derived from input paths.
type NamingMode string

const (
	NamingFolder NamingMode = "folder" // <out>/<KB>/<rel dir>/<stem><ext> (default).
	NamingPrefix NamingMode = "prefix" // <out>/<rel dir>/<stem>_<KB>kb<ext>.
)

// Backend selects the codec implementation.
type Backend string

const (
	BackendAuto   Backend = "auto"   // libvips when it starts, pure Go otherwise (default).
	BackendVips   Backend = "vips"   // libvips via govips; required for WEBP/HEIF output.
	BackendNative Backend = "native" // Go decoders; JPEG and PNG output only.
)

// Config holds all settings for one batch run.
type Config struct {
	// Paths.
	InputDir  string // Default: "in".
	OutputDir string // Default: "out".

	// Target.
	TargetKB float64        // Default: 200.
	Format   imgutil.Format // Default: WEBP.
	Naming   NamingMode     // Default: folder.

	// Encoder tuning.
	MethodDefault   int // Default: 6 (WEBP effort, 0=fast .. 6=densest).
	TuningThreshold int // Default: 95. Method tuning runs below this % of target.
	Backend         Backend

	// StripCopies drops EXIF/XMP/IPTC segments from JPEG and PNG files that
	// are copied through because they already fit the target.
	StripCopies bool

	// Logging and reports.
	LogDir      string // Default: "logs".
	LogFile     string // Default: "log.txt"; the workbook shares its stem.
	MetricsFile string // Optional prometheus textfile path.
	Verbose     bool
	NoTUI       bool
}

// DefaultConfig returns the defaults used before flags are applied.
func DefaultConfig() Config {
	return Config{
		InputDir:        "in",
		OutputDir:       "out",
		TargetKB:        200,
		Format:          imgutil.FormatWEBP,
		Naming:          NamingFolder,
		MethodDefault:   6,
		TuningThreshold: 95,
		Backend:         BackendAuto,
		LogDir:          "logs",
		LogFile:         "log.txt",
	}
}

// MaxMethod is the densest WEBP effort level.
const MaxMethod = 6

// Validate checks enum fields and numeric ranges.
func (c Config) Validate() error {
	if c.TargetKB <= 0 {
		return errors.New("target size must be positive")
	}
	if _, err := imgutil.ParseFormat(string(c.Format)); err != nil {
		return err
	}

	switch c.Naming {
	case NamingFolder, NamingPrefix:
	default:
		return fmt.Errorf("invalid naming mode %q (use 'folder' or 'prefix')", c.Naming)
	}

	switch c.Backend {
	case BackendAuto, BackendVips, BackendNative:
	default:
		return fmt.Errorf("invalid backend %q (use 'auto', 'vips' or 'native')", c.Backend)
	}

	if c.MethodDefault < 0 || c.MethodDefault > MaxMethod {
		return fmt.Errorf("method must be between 0 and %d", MaxMethod)
	}
	if c.TuningThreshold < 0 || c.TuningThreshold > 100 {
		return errors.New("tuning threshold must be between 0 and 100")
	}
	if c.InputDir == "" || c.OutputDir == "" {
		return errors.New("input and output directories are required")
	}
	return nil
}

// ValidatePaths rejects an output directory equal to the input directory.
// A nested output directory is allowed; discovery skips it.
func (c Config) ValidatePaths() error {
	in, err := filepath.Abs(c.InputDir)
	if err != nil {
		return err
	}
	out, err := filepath.Abs(c.OutputDir)
	if err != nil {
		return err
	}
	if filepath.Clean(in) == filepath.Clean(out) {
		return errors.New("output directory must differ from input directory")
	}
	return nil
}

// Threshold returns TuningThreshold as a fraction.
func (c Config) Threshold() float64 {
	return float64(c.TuningThreshold) / 100
}

// TargetLabel is the KB label used in output names ("200", "150.5").
func (c Config) TargetLabel() string {
	return strconv.FormatFloat(c.TargetKB, 'f', -1, 64)
}

// LogPath returns the text log location.
func (c Config) LogPath() string {
	if c.LogFile == "" {
		return ""
	}
	return filepath.Join(c.LogDir, c.LogFile)
}

// ReportPath returns the workbook location next to the text log.
func (c Config) ReportPath() string {
	name := c.LogFile
	if name == "" {
		name = "log.txt"
	}
	return filepath.Join(c.LogDir, strings.TrimSuffix(name, filepath.Ext(name))+".xlsx")
}
