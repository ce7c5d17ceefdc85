package doseresponse

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat"
	"gopkg.in/guregu/null.v3"
)

// ErrTooFewPoints is returned when there are fewer distinct observations
// than free parameters.
var ErrTooFewPoints = errors.New("doseresponse: too few points to fit the model")

// Spacing of the starting grid, in log10 dilution for the EC50 and in Hill
// slope units for the slope. The EC50 is searched one decade beyond the
// tested dilutions on either side.
const (
	ec50Step    = 0.01
	ec50Margin  = 1.0
	slopeStep   = 0.05
	refineSize  = 0.05
	convergeTol = 1e-10
)

// Fit finds the curve parameters minimizing the squared error against the
// points, and returns them together with the mean squared error of the fit.
//
// For a given EC50 and Hill slope the curve is linear in its asymptotes, so
// those are solved exactly within cfg.TopBounds and cfg.BottomBounds. The
// EC50 and slope are chosen by a grid search over the tested dilutions, and
// the best grid point is then refined with Nelder-Mead. A refinement that
// stops at the evaluation limit is still used if it improved on the grid.
func Fit(points []Point, cfg Config) (ModelParams, float64, error) {
	nParams := cfg.Model.nParams()
	if len(points) < nParams || len(levels(points)) < 2 {
		return ModelParams{}, 0, ErrTooFewPoints
	}

	p := profile{
		logX:   make([]float64, len(points)),
		y:      make([]float64, len(points)),
		g:      make([]float64, len(points)),
		top:    cfg.TopBounds,
		bottom: cfg.BottomBounds,
	}
	for i, pt := range points {
		if pt.Dilution <= 0 {
			return ModelParams{}, 0, fmt.Errorf("doseresponse: dilution must be positive, got %v", pt.Dilution)
		}
		p.logX[i] = math.Log10(pt.Dilution)
		p.y[i] = pt.PercentageInfected
	}

	slopes := []float64{1}
	if nParams == 4 {
		slopes = grid(cfg.SlopeBounds.Low, cfg.SlopeBounds.High, slopeStep)
	}
	centers := grid(floats.Min(p.logX)-ec50Margin, floats.Max(p.logX)+ec50Margin, ec50Step)

	best := fitState{mse: math.Inf(1)}
	for _, c := range centers {
		for _, s := range slopes {
			if st := p.at(c, s); st.mse < best.mse {
				best = st
			}
		}
	}
	if math.IsInf(best.mse, 1) {
		return ModelParams{}, 0, fmt.Errorf("doseresponse: no finite fit over the parameter grid")
	}

	// Refine the EC50, and the slope for the four parameter model.
	objective := func(theta []float64) float64 {
		s := 1.0
		if nParams == 4 {
			s = cfg.SlopeBounds.clamp(theta[1])
		}
		return p.at(theta[0], s).mse
	}
	start := []float64{best.logEC50}
	if nParams == 4 {
		start = append(start, best.slope)
	}
	res, _ := optimize.Minimize(
		optimize.Problem{Func: objective},
		start,
		&optimize.Settings{
			FuncEvaluations: cfg.MaxEvaluations,
			Converger: &optimize.FunctionConverge{
				Absolute:   convergeTol,
				Relative:   convergeTol,
				Iterations: 50,
			},
		},
		&optimize.NelderMead{SimplexSize: refineSize},
	)
	if res != nil && !math.IsNaN(res.F) && res.F < best.mse {
		s := 1.0
		if nParams == 4 {
			s = cfg.SlopeBounds.clamp(res.X[1])
		}
		best = p.at(res.X[0], s)
	}

	params := ModelParams{
		Top:    best.top,
		Bottom: best.bottom,
		EC50:   math.Pow(10, best.logEC50),
	}
	if nParams == 4 {
		params.HillSlope = null.FloatFrom(best.slope)
	}

	return params, MeanSquaredError(params, points), nil
}

// MeanSquaredError of the curve against the points.
func MeanSquaredError(params ModelParams, points []Point) float64 {
	if len(points) == 0 {
		return math.NaN()
	}
	sq := make([]float64, len(points))
	for i, p := range points {
		r := p.PercentageInfected - params.At(p.Dilution)
		sq[i] = r * r
	}
	return stat.Mean(sq, nil)
}

func grid(low, high, step float64) []float64 {
	n := int(math.Floor((high-low)/step+1e-9)) + 1
	if n < 2 {
		return []float64{low}
	}
	return floats.Span(make([]float64, n), low, low+float64(n-1)*step)
}

type fitState struct {
	logEC50, slope float64
	top, bottom    float64
	mse            float64
}

// profile is the squared error of the curve with its asymptotes solved for a
// given EC50 and slope.
type profile struct {
	logX, y, g  []float64
	top, bottom Bounds
}

func (p *profile) at(logEC50, slope float64) fitState {
	// y = top*g + bottom*(1-g)
	for i, x := range p.logX {
		p.g[i] = 1 / (1 + math.Pow(10, (x-logEC50)*slope))
	}

	var gg, hh, gh, gy, hy float64
	for i, g := range p.g {
		h := 1 - g
		gg += g * g
		hh += h * h
		gh += g * h
		gy += g * p.y[i]
		hy += h * p.y[i]
	}

	// The error is convex in (top, bottom): the minimum is either the
	// unconstrained one or lies on an edge of the bounds.
	type pair struct{ top, bottom float64 }
	candidates := make([]pair, 0, 5)
	if det := gg*hh - gh*gh; math.Abs(det) > 1e-12 {
		t := (gy*hh - hy*gh) / det
		b := (hy*gg - gy*gh) / det
		if t >= p.top.Low && t <= p.top.High && b >= p.bottom.Low && b <= p.bottom.High {
			candidates = append(candidates, pair{t, b})
		}
	}
	for _, t := range []float64{p.top.Low, p.top.High} {
		b := p.bottom.Low
		if hh > 0 {
			b = p.bottom.clamp((hy - t*gh) / hh)
		}
		candidates = append(candidates, pair{t, b})
	}
	for _, b := range []float64{p.bottom.Low, p.bottom.High} {
		t := p.top.Low
		if gg > 0 {
			t = p.top.clamp((gy - b*gh) / gg)
		}
		candidates = append(candidates, pair{t, b})
	}

	best := fitState{logEC50: logEC50, slope: slope, mse: math.Inf(1)}
	for _, c := range candidates {
		var sse float64
		for i, g := range p.g {
			r := p.y[i] - (c.bottom + (c.top-c.bottom)*g)
			sse += r * r
		}
		mse := sse / float64(len(p.y))
		if mse < best.mse {
			best.top, best.bottom, best.mse = c.top, c.bottom, mse
		}
	}
	return best
}
