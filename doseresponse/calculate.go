package doseresponse

import (
	"gopkg.in/guregu/null.v3"
)

// Outcome is the result of modelling one sample.
type Outcome struct {
	Method Method

	// Result is either a titer (positive reciprocal dilution) or a negative
	// Code. See IsTiter.
	Result float64

	// Params is nil when no curve was fit.
	Params *ModelParams

	// MSE is only valid when a curve was fit.
	MSE null.Float
}

// Titer returns the titer and true when the result is numeric.
func (o Outcome) Titer() (float64, bool) {
	return o.Result, IsTiter(o.Result)
}

// Code returns the categorical result and true when the result is not a
// titer.
func (o Outcome) Code() (Code, bool) {
	return CodeOf(o.Result)
}

// Calculate classifies a sample. Heuristics run first; only when they cannot
// decide is a curve fit. A fitted curve yields a titer when it crosses the
// threshold inside the tested dilutions and its error is acceptable.
// Otherwise the sample is reported as complete inhibition (curve entirely
// below the threshold) or as a failed fit. Fitting problems are never
// returned as errors.
func Calculate(points []Point, cfg Config) Outcome {
	if code, decided := Heuristics(points, cfg.Threshold, cfg.WeakThreshold); decided {
		return Outcome{Method: heuristicMethod(code), Result: code.Value()}
	}

	params, mse, err := Fit(points, cfg)
	if err != nil {
		return failed()
	}

	out := Outcome{
		Method: MethodModelFit,
		Params: &params,
		MSE:    null.FloatFrom(mse),
	}

	// The curve must fall as antibody concentration rises.
	if params.Top <= params.Bottom {
		return out.asFailed()
	}

	if cfg.MaxMSE > 0 && mse > cfg.MaxMSE {
		return out.asFailed()
	}

	xMin, xMax := dilutionRange(points)
	x, err := FindIntersect(params, xMin, xMax, cfg.Threshold, cfg.GridSize)
	if err == nil {
		out.Result = 1 / x
		return out
	}

	// Without a crossing the monotone curve is entirely on one side of the
	// threshold; its most dilute end is its highest point.
	if params.At(xMin) < cfg.Threshold {
		out.Result = CompleteInhibition.Value()
		return out
	}

	// Only samples with a replicate below the threshold get this far, so a
	// curve entirely above it does not describe the data.
	return out.asFailed()
}

func failed() Outcome {
	return Outcome{Method: MethodFailedToFit, Result: FailedToFit.Value()}
}

func (o Outcome) asFailed() Outcome {
	o.Method = MethodFailedToFit
	o.Result = FailedToFit.Value()
	return o
}
