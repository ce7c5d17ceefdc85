package doseresponse

import (
	"fmt"
	"math"
)

// Model selects the dose-response curve to fit.
type Model string

const (
	// FourParameter fits top, bottom, EC50 and the Hill slope.
	FourParameter Model = "4pl"

	// ThreeParameter fixes the Hill slope at 1.
	ThreeParameter Model = "3pl"
)

func (m Model) nParams() int {
	if m == ThreeParameter {
		return 3
	}
	return 4
}

// Bounds is an inclusive interval that a fitted parameter is held within.
type Bounds struct {
	Low  float64 `yaml:"low"`
	High float64 `yaml:"high"`
}

func (b Bounds) clamp(v float64) float64 {
	return math.Max(b.Low, math.Min(b.High, v))
}

// Config controls classification and curve fitting for one sample.
type Config struct {
	// Threshold is the percentage infected at which the titer is read off the
	// fitted curve.
	Threshold float64 `yaml:"threshold"`

	// WeakThreshold is the upper bound of the weak inhibition band.
	WeakThreshold float64 `yaml:"weak_threshold"`

	Model Model `yaml:"model"`

	// MaxMSE is the largest mean squared error (in squared percentage points)
	// for which a fitted curve is trusted. Fits above it are reported as
	// failed, with their parameters and error retained. Zero disables the
	// check.
	MaxMSE float64 `yaml:"max_mse"`

	// Top and Bottom asymptotes, in percentage infected, are held within
	// these bounds. The default pins Bottom at 0: after background
	// subtraction, full neutralisation is 0% infected.
	TopBounds    Bounds `yaml:"top_bounds"`
	BottomBounds Bounds `yaml:"bottom_bounds"`

	// SlopeBounds limits the Hill slope of the four parameter model.
	SlopeBounds Bounds `yaml:"slope_bounds"`

	// MaxEvaluations caps objective evaluations when refining the best grid
	// point.
	MaxEvaluations int `yaml:"max_evaluations"`

	// GridSize is the number of points sampled across the tested dilution
	// range when searching for the threshold crossing.
	GridSize int `yaml:"grid_size"`
}

// DefaultConfig returns the settings used for the standard assay.
func DefaultConfig() Config {
	return Config{
		Threshold:      50,
		WeakThreshold:  60,
		Model:          FourParameter,
		MaxMSE:         400,
		TopBounds:      Bounds{Low: 0, High: 200},
		BottomBounds:   Bounds{Low: 0, High: 0},
		SlopeBounds:    Bounds{Low: 0.1, High: 10},
		MaxEvaluations: 20000,
		GridSize:       1000,
	}
}

// Validate checks that the settings are usable.
func (c Config) Validate() error {
	if c.Threshold <= 0 {
		return fmt.Errorf("threshold must be positive, got %v", c.Threshold)
	}
	if c.WeakThreshold < c.Threshold {
		return fmt.Errorf("weak_threshold (%v) must not be below threshold (%v)", c.WeakThreshold, c.Threshold)
	}
	if c.Model != FourParameter && c.Model != ThreeParameter {
		return fmt.Errorf("model must be %q or %q, got %q", FourParameter, ThreeParameter, c.Model)
	}
	if c.MaxMSE < 0 {
		return fmt.Errorf("max_mse must not be negative, got %v", c.MaxMSE)
	}
	for name, b := range map[string]Bounds{
		"top_bounds":    c.TopBounds,
		"bottom_bounds": c.BottomBounds,
		"slope_bounds":  c.SlopeBounds,
	} {
		if b.Low > b.High {
			return fmt.Errorf("%s: low (%v) is above high (%v)", name, b.Low, b.High)
		}
	}
	if c.SlopeBounds.Low <= 0 {
		return fmt.Errorf("slope_bounds must be positive, got %v", c.SlopeBounds.Low)
	}
	if c.MaxEvaluations < 100 {
		return fmt.Errorf("max_evaluations must be at least 100, got %d", c.MaxEvaluations)
	}
	if c.GridSize < 2 {
		return fmt.Errorf("grid_size must be at least 2, got %d", c.GridSize)
	}
	return nil
}
