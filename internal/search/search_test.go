package search

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"
	"testing"

	"squeeze/internal/codec"
	"squeeze/internal/control"
	"squeeze/pkg/imgutil"
)

// curveEncoder produces payloads whose length follows sizeKB.
type curveEncoder struct {
	sizeKB       func(opts codec.EncodeOptions) float64
	rejectMethod bool
	fail         error
	calls        []codec.EncodeOptions
}

func (e *curveEncoder) Encode(_ codec.Image, _ imgutil.Format, opts codec.EncodeOptions) ([]byte, error) {
	e.calls = append(e.calls, opts)
	if e.fail != nil {
		return nil, e.fail
	}
	if e.rejectMethod && opts.UseMethod {
		return nil, fmt.Errorf("%w: no property named `effort'", codec.ErrUnsupportedParam)
	}
	return make([]byte, int(e.sizeKB(opts)*1024)), nil
}

// sizeOf recomputes the size the encoder produced for call i.
func (e *curveEncoder) sizeOf(i int) float64 {
	return float64(int(e.sizeKB(e.calls[i])*1024)) / 1024
}

func exponential(opts codec.EncodeOptions) float64 {
	return 2 * math.Exp(0.04*float64(opts.Quality))
}

func noisy(opts codec.EncodeOptions) float64 {
	q := float64(opts.Quality)
	return 2 * math.Exp(0.04*q) * (1 + 0.08*math.Sin(q))
}

func testImage() codec.Image {
	return codec.WrapImage(image.NewRGBA(image.Rect(0, 0, 1, 1)))
}

func newTestProber(enc *curveEncoder, format imgutil.Format) *Prober {
	return NewProber(enc, testImage(), format)
}

func TestInterpolate(t *testing.T) {
	q := Interpolate(10, 500, 80, 50, 200)

	b := (math.Log(50) - math.Log(500)) / 70
	lnA := math.Log(500) - b*10
	want := (math.Log(200) - lnA) / b
	if math.Abs(q-want) > 1e-9 {
		t.Fatalf("got %.6f, want %.6f", q, want)
	}

	predicted := math.Round(q)
	if predicted != 38 {
		t.Fatalf("rounded prediction = %v, want 38", predicted)
	}
	size := math.Exp(lnA + b*predicted)
	if math.Abs(size-200)/200 > 0.05 {
		t.Fatalf("S(%v) = %.2f, not close to target", predicted, size)
	}
}

func TestInterpolateDegenerate(t *testing.T) {
	tests := []struct {
		name              string
		qLow, qHigh       int
		sLow, sHigh, sTgt float64
	}{
		{"equal sizes", 10, 80, 100, 100, 50},
		{"equal qualities", 40, 40, 100, 200, 150},
		{"zero size", 10, 80, 0, 100, 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Interpolate(tt.qLow, tt.sLow, tt.qHigh, tt.sHigh, tt.sTgt); got != float64(tt.qLow) {
				t.Fatalf("got %v, want %d", got, tt.qLow)
			}
		})
	}
}

func TestSearchBoundedAndBestUnder(t *testing.T) {
	curves := map[string]func(codec.EncodeOptions) float64{
		"exponential": exponential,
		"noisy":       noisy,
	}
	for name, curve := range curves {
		for _, initial := range []int{-5, 1, 37, 95, 100, 150} {
			for target := 1.0; target <= 130; target += 3.5 {
				enc := &curveEncoder{sizeKB: curve}
				p := newTestProber(enc, imgutil.FormatJPEG)
				opts := Options{InitialQuality: initial, MethodDefault: 6, TuningThreshold: 0.95}

				res, err := Search(context.Background(), p, Target{SizeKB: target, Format: imgutil.FormatJPEG}, opts, nil, nil)
				if err != nil {
					t.Fatalf("%s initial=%d target=%.1f: %v", name, initial, target, err)
				}
				if p.Calls() > 12 {
					t.Fatalf("%s initial=%d target=%.1f: %d probes", name, initial, target, p.Calls())
				}
				if res.Trials != p.Calls() {
					t.Fatalf("Trials=%d, Calls=%d", res.Trials, p.Calls())
				}
				if res.Method != NoMethod {
					t.Fatalf("JPEG result should carry no method, got %d", res.Method)
				}
				if int(res.SizeKB*1024) != len(res.Payload) {
					t.Fatalf("payload length %d does not match size %.3f KB", len(res.Payload), res.SizeKB)
				}

				seen := map[int]bool{}
				bestUnder, smallest := -1.0, math.Inf(1)
				for i, call := range enc.calls {
					if seen[call.Quality] {
						t.Fatalf("quality %d probed twice", call.Quality)
					}
					seen[call.Quality] = true
					s := enc.sizeOf(i)
					if s <= target && s > bestUnder {
						bestUnder = s
					}
					smallest = math.Min(smallest, s)
				}

				if bestUnder >= 0 {
					if res.BestEffort || res.SizeKB != bestUnder {
						t.Fatalf("%s initial=%d target=%.1f: got %.3f (best effort %v), best under is %.3f",
							name, initial, target, res.SizeKB, res.BestEffort, bestUnder)
					}
				} else if !res.BestEffort || res.SizeKB != smallest {
					t.Fatalf("%s initial=%d target=%.1f: unreachable target should return smallest %.3f, got %.3f",
						name, initial, target, smallest, res.SizeKB)
				}
			}
		}
	}
}

func TestSearchUnreachableTarget(t *testing.T) {
	enc := &curveEncoder{sizeKB: exponential}
	p := newTestProber(enc, imgutil.FormatJPEG)

	res, err := Search(context.Background(), p, Target{SizeKB: 1, Format: imgutil.FormatJPEG}, DefaultOptions(), nil, nil)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if res.Quality != 1 || !res.BestEffort {
		t.Fatalf("expected best-effort quality 1, got q=%d best effort=%v", res.Quality, res.BestEffort)
	}
	if p.Calls() != 2 {
		t.Fatalf("expected bootstrap + quality 1, got %d probes", p.Calls())
	}
}

func TestSearchMaxQualityFits(t *testing.T) {
	enc := &curveEncoder{sizeKB: exponential}
	p := newTestProber(enc, imgutil.FormatJPEG)

	res, err := Search(context.Background(), p, Target{SizeKB: 500, Format: imgutil.FormatJPEG}, Options{InitialQuality: 60}, nil, nil)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if res.Quality != 100 || p.Calls() != 2 {
		t.Fatalf("expected quality 100 after 2 probes, got q=%d after %d", res.Quality, p.Calls())
	}
}

func TestSearchScenarioOversizedGuess(t *testing.T) {
	// 800 KB original, 200 KB target, a guess of 150 clamps to 100.
	curve := func(opts codec.EncodeOptions) float64 {
		return 20 * math.Exp(0.0235*float64(opts.Quality))
	}
	enc := &curveEncoder{sizeKB: curve}
	p := newTestProber(enc, imgutil.FormatJPEG)

	res, err := Search(context.Background(), p, Target{SizeKB: 200, Format: imgutil.FormatJPEG}, Options{InitialQuality: 150}, nil, nil)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if enc.calls[0].Quality != 100 || enc.calls[1].Quality != 1 {
		t.Fatalf("expected probes 100 then 1, got %d then %d", enc.calls[0].Quality, enc.calls[1].Quality)
	}
	if res.SizeKB > 200 || res.BestEffort {
		t.Fatalf("result %.2f KB exceeds target", res.SizeKB)
	}
	for i := range enc.calls {
		if s := enc.sizeOf(i); s <= 200 && s > res.SizeKB {
			t.Fatalf("quality %d gave %.2f KB, better than chosen %.2f KB", enc.calls[i].Quality, s, res.SizeKB)
		}
	}
	if p.Calls() > 12 {
		t.Fatalf("%d probes", p.Calls())
	}
}

func TestSearchLosslessSingleProbe(t *testing.T) {
	var sizes []float64
	for _, target := range []float64{0.5, 10, 5000} {
		enc := &curveEncoder{sizeKB: func(codec.EncodeOptions) float64 { return 42 }}
		p := newTestProber(enc, imgutil.FormatPNG)

		res, err := Search(context.Background(), p, Target{SizeKB: target, Format: imgutil.FormatPNG}, DefaultOptions(), nil, nil)
		if err != nil {
			t.Fatalf("search: %v", err)
		}
		if p.Calls() != 1 {
			t.Fatalf("lossless search made %d probes", p.Calls())
		}
		if res.Method != NoMethod || res.Quality != MaxQuality {
			t.Fatalf("unexpected lossless result q=%d method=%d", res.Quality, res.Method)
		}
		if enc.calls[0].UseMethod {
			t.Fatal("lossless probe used a method")
		}
		sizes = append(sizes, res.SizeKB)
	}
	if sizes[0] != sizes[1] || sizes[1] != sizes[2] {
		t.Fatalf("lossless sizes differ: %v", sizes)
	}
}

type skipAfter struct {
	ctrl  *control.Controller
	after int
	tried int
}

func (s *skipAfter) OnQualityTried(int) {
	s.tried++
	if s.tried == s.after {
		s.ctrl.RequestSkip()
	}
}
func (s *skipAfter) OnSizeMeasured(float64) {}
func (s *skipAfter) OnProgress(int, int)    {}

func TestSearchSkipBeforeConverge(t *testing.T) {
	ctrl := control.New()
	obs := &skipAfter{ctrl: ctrl, after: 2}
	enc := &curveEncoder{sizeKB: exponential}
	p := newTestProber(enc, imgutil.FormatJPEG)

	_, err := Search(context.Background(), p, Target{SizeKB: 40, Format: imgutil.FormatJPEG}, Options{InitialQuality: 95}, ctrl, obs)

	var intr *control.Interrupt
	if !errors.As(err, &intr) || intr.Signal != control.Skip {
		t.Fatalf("expected skip interrupt, got %v", err)
	}
	if p.Calls() != 2 {
		t.Fatalf("expected no probes after the skip, got %d total", p.Calls())
	}
	if ctrl.ConsumeSkip() {
		t.Fatal("skip should have been consumed by the search")
	}
}

func TestSearchStopOnCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	enc := &curveEncoder{sizeKB: exponential}
	p := newTestProber(enc, imgutil.FormatJPEG)
	_, err := Search(ctx, p, Target{SizeKB: 40, Format: imgutil.FormatJPEG}, DefaultOptions(), control.New(), nil)

	var intr *control.Interrupt
	if !errors.As(err, &intr) || intr.Signal != control.Stop {
		t.Fatalf("expected stop interrupt, got %v", err)
	}
	if p.Calls() != 0 {
		t.Fatalf("no probe should run, got %d", p.Calls())
	}
}

func TestSearchRetriesWithoutRejectedMethod(t *testing.T) {
	enc := &curveEncoder{sizeKB: exponential, rejectMethod: true}
	p := newTestProber(enc, imgutil.FormatWEBP)

	res, err := Search(context.Background(), p, Target{SizeKB: 40, Format: imgutil.FormatWEBP}, DefaultOptions(), nil, nil)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if !enc.calls[0].UseMethod || enc.calls[1].UseMethod {
		t.Fatalf("expected one rejected call then a retry without method: %+v", enc.calls[:2])
	}
	for _, c := range enc.calls[1:] {
		if c.UseMethod {
			t.Fatal("method should stay disabled after rejection")
		}
	}
	if p.MethodSupported() {
		t.Fatal("prober still reports method support")
	}
	if res.Method != NoMethod {
		t.Fatalf("result method = %d, want %d", res.Method, NoMethod)
	}
	if res.SizeKB > 40 {
		t.Fatalf("result %.2f KB over target", res.SizeKB)
	}
}

func TestSearchFatalEncodeError(t *testing.T) {
	boom := errors.New("encoder crashed")
	enc := &curveEncoder{sizeKB: exponential, fail: boom}
	p := newTestProber(enc, imgutil.FormatWEBP)

	_, err := Search(context.Background(), p, Target{SizeKB: 40, Format: imgutil.FormatWEBP}, DefaultOptions(), nil, nil)
	if !errors.Is(err, boom) {
		t.Fatalf("expected encoder error, got %v", err)
	}
	if len(enc.calls) != 1 {
		t.Fatalf("non-parameter errors must not be retried, got %d calls", len(enc.calls))
	}
}

func TestSearchRejectsNonPositiveTarget(t *testing.T) {
	p := newTestProber(&curveEncoder{sizeKB: exponential}, imgutil.FormatJPEG)
	if _, err := Search(context.Background(), p, Target{SizeKB: 0, Format: imgutil.FormatJPEG}, DefaultOptions(), nil, nil); err == nil {
		t.Fatal("expected error for zero target")
	}
}
