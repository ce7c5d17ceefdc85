// Package doseresponse turns one sample's percentage infected measurements
// into a neutralization titer. Samples at the extremes are classified by
// heuristics; everything else is fit with a sigmoidal dose-response curve and
// the titer is read off where that curve crosses the threshold.
//
// Dilutions are fractions (1/40 = 0.025). Titers are reported as reciprocal
// dilutions (40, 160, ...).
package doseresponse

import (
	"fmt"
	"math"
	"sort"

	"gopkg.in/guregu/null.v3"
)

// Point is one replicate measurement of a sample.
type Point struct {
	Dilution           float64
	PercentageInfected float64
}

// ModelParams are the parameters of a fitted curve.
type ModelParams struct {
	Top    float64
	Bottom float64

	// EC50 is the dilution (as a fraction) at the midpoint between Top and
	// Bottom.
	EC50 float64

	// HillSlope is not set for the three parameter model, whose slope is
	// fixed at 1.
	HillSlope null.Float
}

// Slope returns the effective Hill slope.
func (p ModelParams) Slope() float64 {
	if p.HillSlope.Valid {
		return p.HillSlope.Float64
	}
	return 1
}

// At evaluates the curve at dilution x. Percentage infected falls from Top
// for very dilute samples towards Bottom for concentrated ones:
//
//	y = Bottom + (Top - Bottom) / (1 + 10^((log10(x) - log10(EC50)) * slope))
func (p ModelParams) At(x float64) float64 {
	if x <= 0 {
		return p.Top
	}
	return curve(math.Log10(x), p.Top, p.Bottom, math.Log10(p.EC50), p.Slope())
}

func (p ModelParams) String() string {
	if p.HillSlope.Valid {
		return fmt.Sprintf("top=%.3f bottom=%.3f ec50=%.6g hillslope=%.3f", p.Top, p.Bottom, p.EC50, p.HillSlope.Float64)
	}
	return fmt.Sprintf("top=%.3f bottom=%.3f ec50=%.6g", p.Top, p.Bottom, p.EC50)
}

func curve(logX, top, bottom, logEC50, slope float64) float64 {
	return bottom + (top-bottom)/(1+math.Pow(10, (logX-logEC50)*slope))
}

// level is all replicates measured at one dilution.
type level struct {
	Dilution float64
	Values   []float64
}

// levels groups points by dilution, ordered from most dilute to most
// concentrated.
func levels(points []Point) []level {
	byDilution := make(map[float64][]float64)
	for _, p := range points {
		byDilution[p.Dilution] = append(byDilution[p.Dilution], p.PercentageInfected)
	}

	out := make([]level, 0, len(byDilution))
	for d, v := range byDilution {
		out = append(out, level{Dilution: d, Values: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Dilution < out[j].Dilution })

	return out
}

// dilutionRange returns the smallest and largest tested dilution.
func dilutionRange(points []Point) (min, max float64) {
	min, max = math.Inf(1), math.Inf(-1)
	for _, p := range points {
		if p.Dilution < min {
			min = p.Dilution
		}
		if p.Dilution > max {
			max = p.Dilution
		}
	}
	return min, max
}
