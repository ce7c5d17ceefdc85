package doseresponse

import (
	"errors"

	"gonum.org/v1/gonum/floats"
)

// ErrNoIntersect is returned when the curve does not cross the threshold
// within the tested dilutions.
var ErrNoIntersect = errors.New("doseresponse: curve does not cross the threshold within the tested dilutions")

// bisectionSteps refines the bracketing grid interval well below the
// precision that titers are reported at.
const bisectionSteps = 60

// FindIntersect returns the dilution in [xMin, xMax] at which the curve
// crosses threshold. The range is sampled at gridSize evenly spaced dilutions
// (in linear dilution space); the first sign change is then refined by
// bisection. Extrapolating beyond the range is never done.
func FindIntersect(params ModelParams, xMin, xMax, threshold float64, gridSize int) (float64, error) {
	if gridSize < 2 {
		gridSize = 2
	}
	if !(xMin > 0) || xMax < xMin {
		return 0, ErrNoIntersect
	}

	grid := floats.Span(make([]float64, gridSize), xMin, xMax)

	diff := func(x float64) float64 { return params.At(x) - threshold }

	prevX, prev := grid[0], diff(grid[0])
	if prev == 0 {
		return prevX, nil
	}
	for _, x := range grid[1:] {
		d := diff(x)
		if d == 0 {
			return x, nil
		}
		if (d < 0) != (prev < 0) {
			return bisect(diff, prevX, x), nil
		}
		prevX, prev = x, d
	}

	return 0, ErrNoIntersect
}

func bisect(f func(float64) float64, lo, hi float64) float64 {
	fLo := f(lo)
	for i := 0; i < bisectionSteps; i++ {
		mid := (lo + hi) / 2
		fMid := f(mid)
		if fMid == 0 {
			return mid
		}
		if (fMid < 0) == (fLo < 0) {
			lo, fLo = mid, fMid
		} else {
			hi = mid
		}
	}
	return (lo + hi) / 2
}
