package assay

import (
	"fmt"
	"sort"

	"github.com/FrancisCrickInstitute/plaque-assay/doseresponse"
	"github.com/FrancisCrickInstitute/plaque-assay/failure"
	"github.com/FrancisCrickInstitute/plaque-assay/qc"
	"github.com/FrancisCrickInstitute/plaque-assay/well"
)

// Sample is one antibody sample measured across the dilution ladder. Its QC
// and curve fit are computed by NewSample.
type Sample struct {
	Name string

	positiveControl bool
	points          []doseresponse.Point
	outcome         doseresponse.Outcome
	failures        failure.List
}

// NewSample checks the replicates of a sample for consistency, classifies it,
// and checks positive controls against their accepted titer range.
func NewSample(name string, points []doseresponse.Point, cfg Config) *Sample {
	s := &Sample{
		Name:            name,
		positiveControl: well.NewSet(cfg.PositiveControlWells...).Contains(name),
		points:          make([]doseresponse.Point, len(points)),
	}
	copy(s.points, points)
	sort.SliceStable(s.points, func(i, j int) bool { return s.points[i].Dilution < s.points[j].Dilution })

	if f, failed := qc.DuplicateDifferences(name, s.points, cfg.DuplicateTolerance); failed {
		s.failures = append(s.failures, f)
	}

	s.outcome = classify(s.points, cfg.Model)

	if s.positiveControl {
		if f, failed := qc.PositiveControlRange(name, s.outcome.Result, cfg.PositiveControlTiter.Low, cfg.PositiveControlTiter.High); failed {
			s.failures = append(s.failures, f)
		}
	}

	return s
}

// classify is replaced in tests.
var classify = doseresponse.Calculate

// ReasonUnclassified is recorded for a sample whose classification panicked.
const ReasonUnclassified = "sample could not be classified"

// buildSample is NewSample, except that a panic while classifying becomes a
// failed fit of that sample alone.
func buildSample(name string, points []doseresponse.Point, cfg Config) (s *Sample) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		s = &Sample{
			Name:            name,
			positiveControl: well.NewSet(cfg.PositiveControlWells...).Contains(name),
			points:          make([]doseresponse.Point, len(points)),
			outcome: doseresponse.Outcome{
				Method: doseresponse.MethodFailedToFit,
				Result: doseresponse.FailedToFit.Value(),
			},
			failures: failure.List{
				failure.Sample(failure.ModelKind, name, fmt.Sprintf("%s: %v", ReasonUnclassified, r)),
			},
		}
		copy(s.points, points)
	}()
	return NewSample(name, points, cfg)
}

// IsPositiveControl reports whether the sample is a positive control.
func (s *Sample) IsPositiveControl() bool { return s.positiveControl }

// Outcome is the classification of the sample.
func (s *Sample) Outcome() doseresponse.Outcome {
	out := s.outcome
	if out.Params != nil {
		params := *out.Params
		out.Params = &params
	}
	return out
}

// Result is the titer, or a negative doseresponse.Code.
func (s *Sample) Result() float64 { return s.outcome.Result }

// Points returns a copy of the replicates, ordered by dilution.
func (s *Sample) Points() []doseresponse.Point {
	out := make([]doseresponse.Point, len(s.points))
	copy(out, s.points)
	return out
}

// Failures returns a copy of the sample-level failures.
func (s *Sample) Failures() failure.List {
	out := make(failure.List, len(s.failures))
	copy(out, s.failures)
	return out
}
