package search

import (
	"context"

	"squeeze/internal/control"
	"squeeze/internal/logger"
)

// Tune spends leftover budget on the method knob. It only runs for formats
// with a method, for results that fit, and when best is smaller than
// target*TuningThreshold. Methods below MethodDefault are tried at the fixed
// quality; the largest size still within target wins, and the first method
// that overshoots ends the loop.
func Tune(ctx context.Context, p *Prober, best Result, target Target, opts Options, ctrl *control.Controller, obs Observer) (Result, error) {
	if !target.Format.HasMethod() || best.BestEffort || !p.MethodSupported() {
		return best, nil
	}
	if best.SizeKB >= target.SizeKB*opts.TuningThreshold {
		return best, nil
	}

	logger.Debug("Tuning method", "quality", best.Quality, "size_kb", best.SizeKB, "target_kb", target.SizeKB)
	for method := opts.MethodDefault - 1; method >= 0; method-- {
		if err := ctrl.Check(ctx); err != nil {
			return Result{}, err
		}
		if obs != nil {
			obs.OnQualityTried(best.Quality)
		}

		t, err := p.Probe(best.Quality, method)
		if err != nil {
			return Result{}, err
		}
		if !p.MethodSupported() {
			break
		}
		if obs != nil {
			obs.OnSizeMeasured(t.SizeKB)
		}
		logger.Debug("Method trial", "quality", best.Quality, "method", method, "size_kb", t.SizeKB)

		if t.SizeKB > target.SizeKB {
			break
		}
		if t.SizeKB > best.SizeKB {
			best.Payload = t.Payload
			best.SizeKB = t.SizeKB
			best.Method = method
		}
	}

	best.Trials = p.Calls()
	return best, nil
}
