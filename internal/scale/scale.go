// Package scale decides whether and to what size an image is resized before
// the quality search. The resampling kernel belongs to the codec backend.
package scale

import (
	"math"

	"squeeze/internal/codec"
	"squeeze/internal/config"
)

// ConditionMet evaluates the size gate. A disabled condition always passes.
// Each axis is active when its threshold is positive and met when the
// dimension strictly exceeds it. OR needs any active axis met; AND needs
// every active axis met and at least one active axis.
func ConditionMet(width, height int, cond config.Condition) bool {
	if !cond.Enabled {
		return true
	}

	wActive := cond.MinWidth > 0
	hActive := cond.MinHeight > 0
	wMet := width > cond.MinWidth
	hMet := height > cond.MinHeight

	switch cond.Logic {
	case config.LogicOr:
		return (wActive && wMet) || (hActive && hMet)
	case config.LogicAnd:
		passW := !wActive || wMet
		passH := !hActive || hMet
		return passW && passH && (wActive || hActive)
	default:
		return false
	}
}

// Decide returns the target dimensions for an image of width x height and
// whether a resize is needed.
func Decide(width, height int, spec config.ScaleSpec) (int, int, bool) {
	if spec.Off() || width <= 0 || height <= 0 {
		return width, height, false
	}
	if !ConditionMet(width, height, spec.Condition) {
		return width, height, false
	}

	var nw, nh int
	switch spec.Mode {
	case config.ScalePercent:
		nw = max(1, int(math.Floor(float64(width)*spec.Percent/100)))
		nh = max(1, int(math.Floor(float64(height)*spec.Percent/100)))
	case config.ScaleFit:
		nw, nh = fit(width, height, spec.Width, spec.Height)
	default:
		return width, height, false
	}

	if nw == width && nh == height {
		return width, height, false
	}
	return nw, nh, true
}

// fit shrinks width x height into boxW x boxH keeping the aspect ratio. It
// never enlarges. A zero box side leaves that axis unbounded.
func fit(width, height, boxW, boxH int) (int, int) {
	if boxW <= 0 {
		boxW = width
	}
	if boxH <= 0 {
		boxH = height
	}
	if width <= boxW && height <= boxH {
		return width, height
	}

	ratio := math.Min(float64(boxW)/float64(width), float64(boxH)/float64(height))
	nw := max(1, int(math.Round(float64(width)*ratio)))
	nh := max(1, int(math.Round(float64(height)*ratio)))
	return min(nw, boxW), min(nh, boxH)
}

// Apply resizes img when spec calls for it. The returned image is a new
// raster when resized is true; the caller then owns both.
func Apply(img codec.Image, spec config.ScaleSpec, r codec.Resampler) (out codec.Image, resized bool, err error) {
	nw, nh, ok := Decide(img.Width(), img.Height(), spec)
	if !ok {
		return img, false, nil
	}
	out, err = r.Resize(img, nw, nh)
	if err != nil {
		return nil, false, err
	}
	return out, true, nil
}
