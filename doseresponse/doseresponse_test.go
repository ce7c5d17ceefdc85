package doseresponse

import (
	"errors"
	"math"
	"testing"

	"gopkg.in/guregu/null.v3"
)

const (
	threshold     = 50.0
	weakThreshold = 60.0

	// Acceptable percentage difference between expected and observed titers
	epsilon = 15.0

	// Largest mean squared error expected for a clean fit
	msePass = 100.0
)

// 1/2560, 1/640, 1/160 and 1/40, each in duplicate
var dilutions = []float64{
	0.000391, 0.000391,
	0.001563, 0.001563,
	0.006250, 0.006250,
	0.025000, 0.025000,
}

func toPoints(values []float64) []Point {
	out := make([]Point, len(values))
	for i, v := range values {
		out[i] = Point{Dilution: dilutions[i], PercentageInfected: v}
	}
	return out
}

func percentDifference(x, y float64) float64 {
	return math.Abs(x-y) / math.Abs((x+y)/2) * 100
}

func TestHeuristics(t *testing.T) {
	for _, v := range []struct {
		Name     string
		Values   []float64
		Expected Code
		Decided  bool
	}{
		{
			Name:     "weak inhibition",
			Values:   []float64{116.263735, 93.992355, 113.685992, 97.030688, 122.177319, 103.793316, 52.342949, 61.026772},
			Expected: WeakInhibition,
			Decided:  true,
		},
		{
			Name:     "no inhibition",
			Values:   []float64{98.729667, 100.0, 100.0, 97.147718, 94.675382, 100.0, 94.496768, 100.0},
			Expected: NoInhibition,
			Decided:  true,
		},
		{
			Name:     "complete inhibition",
			Values:   []float64{12.1, 9.8, 4.2, 3.3, 0.5, 0.1, 0, 0},
			Expected: CompleteInhibition,
			Decided:  true,
		},
		{
			Name:    "needs a model",
			Values:  []float64{100.556437, 102.200186, 104.246412, 96.365569, 110.787072, 118.955933, 44.517334, 54.988952},
			Decided: false,
		},
	} {
		code, decided := Heuristics(toPoints(v.Values), threshold, weakThreshold)
		if decided != v.Decided {
			t.Errorf("%s: decided=%v, expected %v", v.Name, decided, v.Decided)
			continue
		}
		if decided && code != v.Expected {
			t.Errorf("%s: got %s, expected %s", v.Name, code, v.Expected)
		}
	}
}

func TestHeuristicsNoPoints(t *testing.T) {
	code, decided := Heuristics(nil, threshold, weakThreshold)
	if !decided || code != FailedToFit {
		t.Errorf("Got %s (%v) for an empty sample", code, decided)
	}
}

func TestNoInhibitionSkipsFit(t *testing.T) {
	cfg := DefaultConfig()
	out := Calculate(toPoints([]float64{98.7, 100, 100, 97.1, 94.7, 100, 94.5, 100}), cfg)
	if out.Method != MethodHeuristicNoInhibition {
		t.Fatalf("Got method %q", out.Method)
	}
	if out.Params != nil || out.MSE.Valid {
		t.Errorf("Heuristic result should not carry model parameters: %+v", out)
	}
	if c, ok := out.Code(); !ok || c != NoInhibition {
		t.Errorf("Got result %v", out.Result)
	}
}

func TestCalculateKnownTiters(t *testing.T) {
	cfg := DefaultConfig()

	for _, v := range []struct {
		Name     string
		Values   []float64
		Expected float64
		CheckMSE bool
	}{
		{"good inhibition", []float64{100.556437, 102.200186, 80.246412, 82.365569, 60.787072, 54.955933, 12.517334, 13.988952}, 150, true},
		{"391", []float64{104.163, 91.075, 78.954, 77.688, 8.487, 8.092, 3.657, -0.475}, 391, true},
		{"184", []float64{120.524, 118.954, 123.209, 119.373, 20.256, 14.863, 0.540, -0.412}, 184, true},
		{"381", []float64{94.035, 84.759, 76.207, 76.039, 9.250, 7.387, -0.079, -0.354}, 381, true},
		{"47", []float64{119.075, 114.617, 138.538, 111.016, 116.646, 95.939, 46.947, 34.030}, 47, true},

		// Noisy replicates: only the titer is checked.
		{"276.79", []float64{102.49, 81.806, 55.429, 98.461, 40.68, 18.898, 3.05, 6.08}, 276.79, false},
		{"156.71", []float64{109.148, 105.54, 134.41, 99.04, 51.856, 45.926, 18.601, 8.999}, 156.71, false},

		// Top asymptote barely above the threshold.
		{"1675", []float64{59.712, 58.014, 13.587, 6.521, 0.272, 0.0245, 0.541, -0.10698}, 1675, true},
	} {
		out := Calculate(toPoints(v.Values), cfg)
		if out.Method != MethodModelFit {
			t.Errorf("%s: expected %q, got %q (result %s)", v.Name, MethodModelFit, out.Method, Describe(out.Result))
			continue
		}
		titer, ok := out.Titer()
		if !ok {
			t.Errorf("%s: expected a titer, got %s", v.Name, Describe(out.Result))
			continue
		}
		if d := percentDifference(titer, v.Expected); d >= epsilon {
			t.Errorf("%s: titer %.2f differs from %.2f by %.1f%% (%s)", v.Name, titer, v.Expected, d, out.Params)
		}
		if v.CheckMSE && (!out.MSE.Valid || out.MSE.Float64 >= msePass) {
			t.Errorf("%s: unexpected MSE %v", v.Name, out.MSE)
		}
		if out.Params == nil || !out.Params.HillSlope.Valid {
			t.Errorf("%s: expected four fitted parameters, got %v", v.Name, out.Params)
		}
	}
}

func TestFitStaysWithinBounds(t *testing.T) {
	cfg := DefaultConfig()

	for _, values := range [][]float64{
		{119.075, 114.617, 138.538, 111.016, 116.646, 95.939, 46.947, 34.030},
		{59.712, 58.014, 13.587, 6.521, 0.272, 0.0245, 0.541, -0.10698},
		{120.524, 118.954, 123.209, 119.373, 20.256, 14.863, 0.540, -0.412},
	} {
		params, _, err := Fit(toPoints(values), cfg)
		if err != nil {
			t.Fatal(err)
		}
		if params.Bottom < cfg.BottomBounds.Low || params.Bottom > cfg.BottomBounds.High {
			t.Errorf("Bottom %.3f outside %+v", params.Bottom, cfg.BottomBounds)
		}
		if params.Top < cfg.TopBounds.Low || params.Top > cfg.TopBounds.High {
			t.Errorf("Top %.3f outside %+v", params.Top, cfg.TopBounds)
		}
		if s := params.HillSlope.Float64; s < cfg.SlopeBounds.Low || s > cfg.SlopeBounds.High {
			t.Errorf("Hill slope %.3f outside %+v", s, cfg.SlopeBounds)
		}
	}
}

// A refinement cut short by the evaluation limit still yields the best curve
// found so far.
func TestFitEvaluationLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxEvaluations = 100

	out := Calculate(toPoints([]float64{100.556437, 102.200186, 80.246412, 82.365569, 60.787072, 54.955933, 12.517334, 13.988952}), cfg)
	titer, ok := out.Titer()
	if !ok {
		t.Fatalf("Expected a titer, got %s via %q", Describe(out.Result), out.Method)
	}
	if d := percentDifference(titer, 150); d >= epsilon {
		t.Errorf("Titer %.2f", titer)
	}
}

// A two-fold ladder from 1/40 to 1/5120 with one replicate each
var ladder = []float64{1.0 / 5120, 1.0 / 2560, 1.0 / 1280, 1.0 / 640, 1.0 / 320, 1.0 / 160, 1.0 / 80, 1.0 / 40}

// Generate data from known curves and check that the fitter recovers both the
// EC50 and the titer read off the generating curve.
func TestCalculateRoundTrip(t *testing.T) {
	cfg := DefaultConfig()

	for _, truth := range []ModelParams{
		{Top: 100, Bottom: 0, EC50: 1.0 / 333, HillSlope: null.FloatFrom(1)},
		{Top: 105, Bottom: 3, EC50: 1.0 / 1000, HillSlope: null.FloatFrom(2)},
		{Top: 98, Bottom: 1, EC50: 1.0 / 150, HillSlope: null.FloatFrom(1.5)},
	} {
		points := make([]Point, len(ladder))
		for i, d := range ladder {
			points[i] = Point{Dilution: d, PercentageInfected: truth.At(d)}
		}

		x, err := FindIntersect(truth, ladder[0], ladder[len(ladder)-1], threshold, cfg.GridSize)
		if err != nil {
			t.Fatalf("%s: generating curve has no crossing: %v", truth, err)
		}
		expected := 1 / x

		out := Calculate(points, cfg)
		titer, ok := out.Titer()
		if !ok {
			t.Fatalf("%s: expected a titer, got %s via %q", truth, Describe(out.Result), out.Method)
		}
		if d := percentDifference(titer, expected); d >= epsilon {
			t.Errorf("%s: titer %.2f, expected %.2f (%.1f%%)", truth, titer, expected, d)
		}
		if d := percentDifference(1/out.Params.EC50, 1/truth.EC50); d >= epsilon {
			t.Errorf("%s: EC50 recovered as %s", truth, out.Params)
		}
		if out.MSE.Float64 >= msePass {
			t.Errorf("%s: MSE %.3f", truth, out.MSE.Float64)
		}
	}
}

func TestCalculateThreeParameter(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Model = ThreeParameter

	truth := ModelParams{Top: 100, Bottom: 0, EC50: 1.0 / 400}
	values := make([]float64, len(dilutions))
	for i, d := range dilutions {
		values[i] = truth.At(d)
	}

	out := Calculate(toPoints(values), cfg)
	titer, ok := out.Titer()
	if !ok {
		t.Fatalf("Expected a titer, got %s", Describe(out.Result))
	}
	if d := percentDifference(titer, 400); d >= epsilon {
		t.Errorf("Titer %.2f", titer)
	}
	if out.Params.HillSlope.Valid {
		t.Error("Three parameter fit should not report a Hill slope")
	}
}

// Noisy data where the original analysis accepted either outcome. The fit is
// poor and must be flagged as such.
func TestShouldBeCompleteOrFail(t *testing.T) {
	out := Calculate(toPoints([]float64{99.90, 26.05, 4.099, 37.047, 51.86, 68.83, 49.118, 39.655}), DefaultConfig())

	code, ok := out.Code()
	if !ok || (code != CompleteInhibition && code != FailedToFit) {
		t.Fatalf("Got %s", Describe(out.Result))
	}
	if !out.MSE.Valid || out.MSE.Float64 <= msePass {
		t.Errorf("Expected a high MSE to be reported, got %v", out.MSE)
	}
}

// A sample whose curve would only reach the threshold at dilutions more dilute
// than those tested must not be given a titer.
func TestCrossingOutsideRange(t *testing.T) {
	out := Calculate(toPoints([]float64{55, 35, 10, 8, 3, 2, 1, 0}), DefaultConfig())

	if _, ok := out.Titer(); ok {
		t.Fatalf("Got titer %.2f", out.Result)
	}
	code, _ := out.Code()
	if code != CompleteInhibition && code != FailedToFit {
		t.Errorf("Got %s", code)
	}
}

func TestFindIntersect(t *testing.T) {
	p := ModelParams{Top: 100, Bottom: 0, EC50: 0.002, HillSlope: null.FloatFrom(1)}

	x, err := FindIntersect(p, 0.000391, 0.025, 50, 1000)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(x-0.002) > 1e-9 {
		t.Errorf("Got crossing at %v", x)
	}

	if _, err := FindIntersect(p, 0.005, 0.025, 50, 1000); !errors.Is(err, ErrNoIntersect) {
		t.Errorf("Expected ErrNoIntersect, got %v", err)
	}
}

func TestFitTooFewPoints(t *testing.T) {
	_, _, err := Fit([]Point{{0.025, 10}, {0.025, 12}, {0.00625, 40}}, DefaultConfig())
	if !errors.Is(err, ErrTooFewPoints) {
		t.Errorf("Expected ErrTooFewPoints, got %v", err)
	}
}

func TestResultMapping(t *testing.T) {
	m := ResultMapping()
	if m[-999] != "no inhibition" || m[-666] != "complete inhibition" {
		t.Errorf("Unexpected mapping %v", m)
	}

	// Callers get their own copy
	m[-999] = "changed"
	if ResultMapping()[-999] != "no inhibition" {
		t.Error("ResultMapping shares state between calls")
	}

	if IsTiter(FailedToFit.Value()) || !IsTiter(40) {
		t.Error("IsTiter mismatch")
	}
	if len(Codes()) != 4 || Codes()[0] != NoInhibition {
		t.Errorf("Codes() = %v", Codes())
	}
}

func TestConfigValidate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatal(err)
	}

	cfg := DefaultConfig()
	cfg.WeakThreshold = 40
	if cfg.Validate() == nil {
		t.Error("Expected weak threshold below threshold to be rejected")
	}

	cfg = DefaultConfig()
	cfg.SlopeBounds = Bounds{Low: 5, High: 1}
	if cfg.Validate() == nil {
		t.Error("Expected inverted slope bounds to be rejected")
	}

	cfg = DefaultConfig()
	cfg.Model = "5pl"
	if cfg.Validate() == nil {
		t.Error("Expected unknown model to be rejected")
	}
}
