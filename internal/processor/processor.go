package processor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"squeeze/internal/codec"
	"squeeze/internal/config"
	"squeeze/internal/control"
	"squeeze/internal/logger"
	"squeeze/internal/metrics"
	"squeeze/internal/report"
	"squeeze/internal/scale"
	"squeeze/internal/search"
	"squeeze/pkg/imgutil"
)

// Run compresses every supported file under cfg.InputDir into
// cfg.OutputDir, one file at a time. Per-file failures are logged and
// counted; they do not end the batch. A stop request ends the batch with
// Summary.Stopped set and a nil error: rows and outputs written so far stay
// valid.
func Run(ctx context.Context, cfg config.Config, spec config.ScaleSpec, deps Deps) (Summary, []report.Row, error) {
	summary := Summary{}

	if deps.Backend == nil {
		return summary, nil, errors.New("no codec backend")
	}
	if !deps.Backend.CanEncode(cfg.Format) {
		return summary, nil, fmt.Errorf("%w: the %s backend cannot write %s", codec.ErrUnsupportedFormat, deps.Backend.Name(), cfg.Format)
	}
	if err := cfg.ValidatePaths(); err != nil {
		return summary, nil, err
	}
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return summary, nil, err
	}

	jobs, err := Discover(cfg.InputDir, cfg.OutputDir)
	if err != nil {
		return summary, nil, err
	}
	summary.Total = len(jobs)
	deps.send(ProgressUpdate{TotalDelta: len(jobs)})

	logger.Info("Image Compression Log",
		"target_kb", cfg.TargetKB, "format", cfg.Format, "naming", cfg.Naming,
		"backend", deps.Backend.Name(), "files", len(jobs))
	if len(jobs) == 0 {
		logger.Warn("No supported image files found", "input", cfg.InputDir)
		return summary, nil, nil
	}

	obs := &fileObserver{next: deps.Observer, updates: deps.Updates}
	rows := make([]report.Row, 0, len(jobs))
	outputs := make(map[string]string, len(jobs))

loop:
	for i, job := range jobs {
		switch deps.Controller.Checkpoint(ctx) {
		case control.Stop:
			summary.Stopped = true
			logger.Info("Stopped by user", "remaining", len(jobs)-i)
			break loop
		case control.Skip:
			summary.Skipped++
			metrics.FilesTotal.WithLabelValues(metrics.OutcomeSkipped).Inc()
			logger.Info("Skipped by user", "file", job.RelPath)
			deps.send(ProgressUpdate{SkippedDelta: 1})
			obs.OnProgress(i+1, len(jobs))
			continue
		}

		deps.send(ProgressUpdate{Current: job.RelPath})
		row, err := processFile(ctx, cfg, spec, deps, obs, job)

		var intr *control.Interrupt
		switch {
		case errors.As(err, &intr) && intr.Signal == control.Stop:
			summary.Stopped = true
			logger.Info("Stopped by user", "file", job.RelPath, "remaining", len(jobs)-i)
			break loop
		case errors.As(err, &intr):
			summary.Skipped++
			metrics.FilesTotal.WithLabelValues(metrics.OutcomeSkipped).Inc()
			logger.Info("Skipped by user", "file", job.RelPath)
			deps.send(ProgressUpdate{SkippedDelta: 1})
		case err != nil:
			summary.Failed++
			metrics.FilesTotal.WithLabelValues(metrics.OutcomeFailed).Inc()
			logger.Error("Error processing file", "file", job.RelPath, "error", err)
			deps.send(ProgressUpdate{ErrorDelta: 1})
		default:
			if prev, ok := outputs[row.Output]; ok {
				logger.Warn("Output overwritten by a later input", "output", row.Output, "previous", prev, "file", job.RelPath)
			}
			outputs[row.Output] = job.RelPath

			out := int64(row.OutputKB * 1024)
			summary.Processed++
			summary.BytesIn += job.Size
			summary.BytesOut += out
			if row.Copied {
				summary.Copied++
			}
			metrics.BytesIn.Add(float64(job.Size))
			metrics.BytesOut.Add(float64(out))
			metrics.FileDuration.WithLabelValues(string(cfg.Format)).Observe(row.Elapsed.Seconds())
			rows = append(rows, row)
			deps.send(ProgressUpdate{ProcessedDelta: 1, BytesInDelta: job.Size, BytesOutDelta: out})
		}
		obs.OnProgress(i+1, len(jobs))
	}

	if summary.Stopped {
		metrics.BatchStopped.Set(1)
	} else {
		metrics.BatchStopped.Set(0)
	}
	logger.Info("Batch finished",
		"processed", summary.Processed, "copied", summary.Copied, "skipped", summary.Skipped,
		"failed", summary.Failed, "stopped", summary.Stopped)
	return summary, rows, nil
}

func processFile(ctx context.Context, cfg config.Config, spec config.ScaleSpec, deps Deps, obs *fileObserver, job Job) (report.Row, error) {
	start := time.Now()
	originalKB := float64(job.Size) / 1024
	row := report.Row{File: job.RelPath, OriginalKB: originalKB}

	logger.Info("Processing", "file", job.RelPath, "original_kb", round2(originalKB))

	if originalKB <= cfg.TargetKB {
		kind := imgutil.KindUnknown
		if cfg.StripCopies {
			var err error
			if kind, err = sniffKnown(job.Path); err != nil {
				return row, err
			}
		}
		row.Output = copyRel(cfg, job)
		written, err := copyThrough(job.Path, filepath.Join(cfg.OutputDir, filepath.FromSlash(row.Output)), kind, cfg.StripCopies)
		if err != nil {
			return row, err
		}
		row.Copied = true
		row.OutputKB = float64(written) / 1024
		row.Elapsed = time.Since(start)
		metrics.FilesTotal.WithLabelValues(metrics.OutcomeCopied).Inc()
		logger.Info("No compression needed, copied to output", "file", job.RelPath, "saved_as", row.Output)
		return row, nil
	}

	if _, err := sniffKnown(job.Path); err != nil {
		return row, err
	}
	res, err := compress(ctx, cfg, spec, deps, obs, job)
	if err != nil {
		return row, err
	}

	row.Output = OutputRel(cfg, job)
	if err := writeFileAtomic(OutputPath(cfg, job), res.Payload); err != nil {
		return row, err
	}
	row.Quality = res.Quality
	row.Method = res.Method
	row.OutputKB = res.SizeKB
	row.Elapsed = time.Since(start)

	metrics.FilesTotal.WithLabelValues(metrics.OutcomeEncoded).Inc()
	metrics.TrialsPerFile.Observe(float64(res.Trials))
	if res.BestEffort {
		metrics.BestEffortTotal.Inc()
		logger.Warn("Target unreachable, kept the smallest encode", "file", job.RelPath, "size_kb", round2(res.SizeKB))
	}
	logger.Info("Compressed",
		"file", job.RelPath, "quality", row.QualityLabel(), "method", row.MethodLabel(),
		"output_kb", round2(row.OutputKB), "reduction_pct", round2(row.Reduction()),
		"trials", res.Trials, "saved_as", row.Output)
	return row, nil
}

func sniffKnown(path string) (imgutil.Kind, error) {
	kind, err := imgutil.SniffFile(path)
	if err != nil {
		return kind, err
	}
	if kind == imgutil.KindUnknown {
		return kind, errors.New("unrecognized image data")
	}
	return kind, nil
}

func compress(ctx context.Context, cfg config.Config, spec config.ScaleSpec, deps Deps, obs search.Observer, job Job) (search.Result, error) {
	img, err := deps.Backend.Decode(job.Path)
	if err != nil {
		return search.Result{}, err
	}
	defer img.Close()

	scaled, resized, err := scale.Apply(img, spec, deps.Backend)
	if err != nil {
		return search.Result{}, fmt.Errorf("scale: %w", err)
	}
	if resized {
		defer scaled.Close()
		metrics.ScaledTotal.Inc()
		logger.Info("Scaled", "file", job.RelPath,
			"from", fmt.Sprintf("%dx%d", img.Width(), img.Height()),
			"to", fmt.Sprintf("%dx%d", scaled.Width(), scaled.Height()))
	}

	prepared, err := deps.Backend.Prepare(scaled, cfg.Format)
	if err != nil {
		return search.Result{}, err
	}
	defer prepared.Close()

	prober := search.NewProber(deps.Backend, prepared, cfg.Format)
	opts := search.Options{
		InitialQuality:  InitialQuality(cfg.TargetKB, float64(job.Size)/1024),
		MethodDefault:   cfg.MethodDefault,
		TuningThreshold: cfg.Threshold(),
	}
	return search.Search(ctx, prober, search.Target{SizeKB: cfg.TargetKB, Format: cfg.Format}, opts, deps.Controller, obs)
}

// InitialQuality is the bootstrap guess: the target/original ratio scaled by
// 1.5, as a percentage clamped to [1, 100].
func InitialQuality(targetKB, originalKB float64) int {
	if originalKB <= 0 {
		return search.MaxQuality
	}
	q := int(100 * targetKB / originalKB * 1.5)
	return min(search.MaxQuality, max(search.MinQuality, q))
}

// copyRel names a verbatim copy. It follows the configured naming but keeps
// the source extension, since the bytes are not re-encoded.
func copyRel(cfg config.Config, job Job) string {
	rel := OutputRel(cfg, job)
	return strings.TrimSuffix(rel, path.Ext(rel)) + path.Ext(job.RelPath)
}

// copyThrough copies src to dest, optionally dropping metadata segments,
// and returns the number of bytes written.
func copyThrough(src, dest string, kind imgutil.Kind, strip bool) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	cw := &countingWriter{}
	err = writeAtomic(dest, func(w io.Writer) error {
		cw.w = w
		if strip && canStrip(kind) {
			return stripMetadata(kind, in, cw)
		}
		_, err := io.Copy(cw, in)
		return err
	})
	return cw.n, err
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

func writeFileAtomic(dest string, data []byte) error {
	return writeAtomic(dest, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}

// writeAtomic writes through a temp file in the destination directory and
// renames it into place.
func writeAtomic(dest string, fill func(io.Writer) error) error {
	destDir := filepath.Dir(dest)
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return err
	}

	tmpFile, err := os.CreateTemp(destDir, "squeeze-*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmpFile.Name())

	if err := fill(tmpFile); err != nil {
		_ = tmpFile.Close()
		return err
	}
	if err := tmpFile.Chmod(0o644); err != nil {
		_ = tmpFile.Close()
		return err
	}
	if err := tmpFile.Sync(); err != nil {
		_ = tmpFile.Close()
		return err
	}
	if err := tmpFile.Close(); err != nil {
		return err
	}
	return replaceFile(tmpFile.Name(), dest)
}

func replaceFile(tmpPath, destPath string) error {
	if err := os.Rename(tmpPath, destPath); err == nil {
		return nil
	}
	if err := os.Remove(destPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	return os.Rename(tmpPath, destPath)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Fit runs one file through the same copy-or-compress path as a batch and
// writes its output under cfg.OutputDir using the configured naming.
func Fit(ctx context.Context, cfg config.Config, spec config.ScaleSpec, deps Deps, file string) (report.Row, error) {
	if deps.Backend == nil {
		return report.Row{}, errors.New("no codec backend")
	}
	if !deps.Backend.CanEncode(cfg.Format) {
		return report.Row{}, fmt.Errorf("%w: the %s backend cannot write %s", codec.ErrUnsupportedFormat, deps.Backend.Name(), cfg.Format)
	}

	info, err := os.Stat(file)
	if err != nil {
		return report.Row{}, err
	}
	if info.IsDir() {
		return report.Row{}, fmt.Errorf("%s is a directory", file)
	}
	if !imgutil.IsSupportedInput(file) {
		return report.Row{}, fmt.Errorf("%w: %s", codec.ErrUnsupportedFormat, filepath.Ext(file))
	}

	job := Job{Path: file, RelPath: filepath.Base(file), Size: info.Size()}
	obs := &fileObserver{next: deps.Observer, updates: deps.Updates}
	deps.send(ProgressUpdate{TotalDelta: 1, Current: job.RelPath})
	return processFile(ctx, cfg, spec, deps, obs, job)
}
