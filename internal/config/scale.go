package config

import (
	"errors"
	"fmt"
)

// ScaleMode selects the pre-encode resize strategy.
type ScaleMode string

const (
	ScaleOff     ScaleMode = "off"     // No resizing (default).
	ScalePercent ScaleMode = "percent" // Scale both axes by Percent.
	ScaleFit     ScaleMode = "fit"     // Fit within Width x Height, keeping aspect ratio.
)

// Logic combines the width and height conditions.
type Logic string

const (
	LogicAnd Logic = "and"
	LogicOr  Logic = "or"
)

// Condition gates scaling on the source dimensions. A threshold of zero
// leaves that axis inactive.
type Condition struct {
	Enabled   bool
	MinWidth  int
	MinHeight int
	Logic     Logic
}

// ScaleSpec describes optional resizing applied before the search.
type ScaleSpec struct {
	Mode      ScaleMode
	Percent   float64
	Width     int
	Height    int
	Condition Condition
}

// Validate checks the fields used by the selected mode.
func (s ScaleSpec) Validate() error {
	switch s.Mode {
	case "", ScaleOff:
	case ScalePercent:
		if s.Percent <= 0 {
			return errors.New("scale percent must be positive")
		}
	case ScaleFit:
		if s.Width <= 0 && s.Height <= 0 {
			return errors.New("fit scaling needs a width or a height")
		}
		if s.Width < 0 || s.Height < 0 {
			return errors.New("fit dimensions must not be negative")
		}
	default:
		return fmt.Errorf("invalid scale mode %q (use 'off', 'percent' or 'fit')", s.Mode)
	}

	if s.Condition.Enabled {
		switch s.Condition.Logic {
		case LogicAnd, LogicOr:
		default:
			return fmt.Errorf("invalid condition logic %q (use 'and' or 'or')", s.Condition.Logic)
		}
		if s.Condition.MinWidth < 0 || s.Condition.MinHeight < 0 {
			return errors.New("condition thresholds must not be negative")
		}
	}
	return nil
}

// Off reports whether no scaling is requested.
func (s ScaleSpec) Off() bool {
	return s.Mode == "" || s.Mode == ScaleOff
}
