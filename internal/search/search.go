// Package search finds the encoder quality (and WEBP method) whose output
// lands as close to a target size as possible without exceeding it, using a
// bounded number of trial encodes.
//
// The size of an encode is treated as roughly exponential in quality. The
// search bootstraps from a caller guess, brackets the target with one probe
// at an extreme, and then interpolates inside the tightest bracket found in
// the full history until the bracket closes or the trial budget runs out.
package search

import (
	"context"
	"errors"
	"math"

	"squeeze/internal/control"
	"squeeze/internal/logger"
	"squeeze/pkg/imgutil"
)

const (
	// The converge loop runs while its counter, seeded with the number of
	// trials already made, stays at or below this.
	maxConvergeCount = 10
	initialStep      = 50.0
	// A measurement within this fraction of the target drops the step to 1.
	snapMargin = 0.10
)

// Observer receives progress callbacks. Nil observers are allowed and the
// search never depends on them.
type Observer interface {
	OnQualityTried(quality int)
	OnSizeMeasured(sizeKB float64)
	OnProgress(done, total int)
}

// Target is the size budget and output format of a run.
type Target struct {
	SizeKB float64
	Format imgutil.Format
}

// Options tune one search.
type Options struct {
	// InitialQuality seeds the bootstrap probe; it is clamped to [1, 100].
	InitialQuality int
	// MethodDefault is the WEBP method used during the quality search and
	// the starting point of method tuning.
	MethodDefault int
	// TuningThreshold is a fraction of the target. Method tuning only runs
	// when the best size is below target*TuningThreshold.
	TuningThreshold float64
}

func DefaultOptions() Options {
	return Options{InitialQuality: 95, MethodDefault: 6, TuningThreshold: 0.95}
}

// Result is the chosen encode.
type Result struct {
	Payload []byte
	Quality int
	SizeKB  float64
	Method  int // NoMethod when the format has no method knob
	// BestEffort is set when no trial fit the target and the smallest one
	// was returned instead.
	BestEffort bool
	// Trials counts probe calls, method tuning included.
	Trials int
}

func resultFrom(t Trial, bestEffort bool, calls int) Result {
	return Result{
		Payload:    t.Payload,
		Quality:    t.Quality,
		SizeKB:     t.SizeKB,
		Method:     t.Method,
		BestEffort: bestEffort,
		Trials:     calls,
	}
}

// Search runs the quality search and then method tuning for the image bound
// to p. A Stop or Skip from ctrl is returned as a *control.Interrupt.
// Lossless formats are encoded once and returned as is.
func Search(ctx context.Context, p *Prober, target Target, opts Options, ctrl *control.Controller, obs Observer) (Result, error) {
	if target.SizeKB <= 0 {
		return Result{}, errors.New("target size must be positive")
	}

	s := &searcher{
		ctx:    ctx,
		p:      p,
		target: target.SizeKB,
		method: NoMethod,
		ctrl:   ctrl,
		obs:    obs,
		hist:   NewHistory(),
	}

	if target.Format.Lossless() {
		t, err := s.probe(MaxQuality)
		if err != nil {
			return Result{}, err
		}
		return resultFrom(t, t.SizeKB > target.SizeKB, p.Calls()), nil
	}

	if target.Format.HasMethod() && opts.MethodDefault >= 0 {
		s.method = opts.MethodDefault
	}

	best, err := s.run(opts.InitialQuality)
	if err != nil {
		return Result{}, err
	}
	return Tune(ctx, p, best, target, opts, ctrl, obs)
}

type searcher struct {
	ctx    context.Context
	p      *Prober
	target float64
	method int
	ctrl   *control.Controller
	obs    Observer
	hist   *History
}

// probe is the suspension point plus one trial encode.
func (s *searcher) probe(quality int) (Trial, error) {
	if err := s.ctrl.Check(s.ctx); err != nil {
		return Trial{}, err
	}
	if s.obs != nil {
		s.obs.OnQualityTried(quality)
	}

	t, err := s.p.Probe(quality, s.method)
	if err != nil {
		return Trial{}, err
	}
	if s.obs != nil {
		s.obs.OnSizeMeasured(t.SizeKB)
	}
	logger.Debug("Trial", "quality", quality, "method", t.Method, "size_kb", t.SizeKB, "target_kb", s.target)

	if err := s.hist.Add(t); err != nil {
		return Trial{}, err
	}
	s.hist.Prune(s.target)
	return t, nil
}

func (s *searcher) run(initial int) (Result, error) {
	boot, err := s.probe(clampQuality(initial))
	if err != nil {
		return Result{}, err
	}

	if boot.SizeKB > s.target {
		if !s.hist.Tried(MinQuality) {
			low, err := s.probe(MinQuality)
			if err != nil {
				return Result{}, err
			}
			if low.SizeKB > s.target {
				logger.Debug("Target unreachable at minimum quality", "size_kb", low.SizeKB, "target_kb", s.target)
				return resultFrom(low, true, s.p.Calls()), nil
			}
		}
	} else if !s.hist.Tried(MaxQuality) {
		high, err := s.probe(MaxQuality)
		if err != nil {
			return Result{}, err
		}
		if high.SizeKB <= s.target {
			return resultFrom(high, false, s.p.Calls()), nil
		}
	}

	if err := s.converge(); err != nil {
		return Result{}, err
	}

	best, fits := SelectBest(s.hist.Trials(), s.target)
	return resultFrom(best, !fits, s.p.Calls()), nil
}

func (s *searcher) converge() error {
	step := initialStep
	for count := s.hist.Len(); step >= 1 && count <= maxConvergeCount; {
		count++

		b := s.hist.Bracket(s.target)
		if b.Complete() && b.Gap() <= 1 {
			break
		}

		next := s.predict(b, step)
		if s.hist.Tried(next) {
			if !b.Complete() {
				step /= 2
				continue
			}
			next = (b.Lower.Quality + b.Higher.Quality) / 2
			if s.hist.Tried(next) {
				step /= 2
				continue
			}
		}

		t, err := s.probe(next)
		if err != nil {
			return err
		}
		if math.Abs(t.SizeKB-s.target) < s.target*snapMargin {
			step = 1
		} else {
			step = math.Max(1, step/2)
		}
	}
	return nil
}

func (s *searcher) predict(b Bracket, step float64) int {
	switch {
	case b.Complete():
		q := Interpolate(b.Lower.Quality, b.Lower.SizeKB, b.Higher.Quality, b.Higher.SizeKB, s.target)
		return clampQuality(int(math.Round(q)))
	case b.Lower != nil:
		return min(MaxQuality, b.Lower.Quality+int(step))
	case b.Higher != nil:
		return max(MinQuality, b.Higher.Quality-int(step))
	default:
		return (MinQuality + MaxQuality) / 2
	}
}

// Interpolate fits size = A*e^(B*quality) through (qLow, sLow) and
// (qHigh, sHigh) and solves for the quality giving sTarget. Degenerate
// inputs (equal sizes, equal qualities, non-positive sizes) return qLow.
func Interpolate(qLow int, sLow float64, qHigh int, sHigh float64, sTarget float64) float64 {
	if sHigh == sLow || qHigh == qLow || sLow <= 0 || sHigh <= 0 || sTarget <= 0 {
		return float64(qLow)
	}
	b := (math.Log(sHigh) - math.Log(sLow)) / float64(qHigh-qLow)
	if b == 0 {
		return float64(qLow)
	}
	lnA := math.Log(sLow) - b*float64(qLow)
	q := (math.Log(sTarget) - lnA) / b
	if math.IsNaN(q) || math.IsInf(q, 0) {
		return float64(qLow)
	}
	return q
}

func clampQuality(q int) int {
	return min(MaxQuality, max(MinQuality, q))
}
