// Package qc holds the quality control rules applied to plates and samples.
// Each rule inspects its inputs and returns failure records; rules never
// short-circuit one another and never return errors.
package qc

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/FrancisCrickInstitute/plaque-assay/doseresponse"
	"github.com/FrancisCrickInstitute/plaque-assay/failure"
	"github.com/FrancisCrickInstitute/plaque-assay/well"
	"github.com/montanaflynn/stats"
)

const (
	ReasonCellAreaControls = "cell region area outside expected range for control wells"
	ReasonCellAreaWell     = "cell region area outside expected range"
	ReasonHighBackground   = "high fluorescent background in DAPI channel"
	ReasonInfectionRange   = "plate fail due to infection outside optimal range"
	ReasonDuplicates       = "2 or more duplicates differ"
	ReasonPositiveControl  = "positive control titer outside expected range"
)

// WellValue is one feature measured in one well.
type WellValue struct {
	Well  string
	Value float64
}

func values(wells []WellValue) []float64 {
	out := make([]float64, 0, len(wells))
	for _, v := range wells {
		out = append(out, v.Value)
	}
	return out
}

// CellAreaOutliers flags wells whose cell region area, as a ratio of the plate
// median, falls outside [low, high]. Every outlier gets a well failure. If any
// outlier sits in the control column, the plate also fails.
func CellAreaOutliers(plate string, wells []WellValue, controlColumn int, low, high float64) (plateFailures, wellFailures []failure.Failure) {
	median, err := stats.Median(values(wells))
	if err != nil || median == 0 || math.IsNaN(median) {
		return nil, nil
	}

	var controlOutliers []string
	for _, v := range wells {
		ratio := v.Value / median
		if ratio >= low && ratio <= high {
			continue
		}

		wellFailures = append(wellFailures, failure.Well(plate, v.Well, ReasonCellAreaWell))
		if well.Column(v.Well) == controlColumn {
			controlOutliers = append(controlOutliers, v.Well)
		}
	}

	if len(controlOutliers) > 0 {
		sort.Strings(controlOutliers)
		plateFailures = append(plateFailures, failure.Plate(failure.CellAreaPlateKind, plate, controlOutliers, ReasonCellAreaControls))
	}

	return plateFailures, wellFailures
}

// HighBackground flags wells whose DAPI background intensity exceeds the plate
// median by more than factor. It never fails the plate.
func HighBackground(plate string, wells []WellValue, factor float64) []failure.Failure {
	median, err := stats.Median(values(wells))
	if err != nil {
		return nil
	}
	limit := median * factor

	var out []failure.Failure
	for _, v := range wells {
		if v.Value > limit {
			out = append(out, failure.Well(plate, v.Well, ReasonHighBackground))
		}
	}
	return out
}

// InfectionRange fails the plate when the median background-subtracted plaque
// area of its virus-only wells lies outside [low, high]. A plate without
// virus-only measurements (NaN median) also fails.
func InfectionRange(plate string, virusOnlyMedian, low, high float64, wells []string) (failure.Failure, bool) {
	if virusOnlyMedian >= low && virusOnlyMedian <= high {
		return failure.Failure{}, false
	}
	return failure.Plate(failure.InfectionPlateKind, plate, wells, ReasonInfectionRange), true
}

// DuplicateDifferences flags a sample when any two replicates at the same
// dilution differ by more than tolerance percentage points. At most one
// failure is produced per sample.
func DuplicateDifferences(sample string, points []doseresponse.Point, tolerance float64) (failure.Failure, bool) {
	byDilution := make(map[float64][]float64)
	for _, p := range points {
		byDilution[p.Dilution] = append(byDilution[p.Dilution], p.PercentageInfected)
	}

	var offending []float64
	for dilution, v := range byDilution {
		if spread(v) > tolerance {
			offending = append(offending, dilution)
		}
	}
	if len(offending) == 0 {
		return failure.Failure{}, false
	}

	sort.Float64s(offending)
	labels := make([]string, len(offending))
	for i, d := range offending {
		labels[i] = fmt.Sprintf("1/%.0f", 1/d)
	}

	reason := fmt.Sprintf("%s by more than %g percentage points at dilution %s", ReasonDuplicates, tolerance, strings.Join(labels, ", "))
	return failure.Sample(failure.DuplicateKind, sample, reason), true
}

// spread is the largest absolute difference between any two values.
func spread(v []float64) float64 {
	if len(v) < 2 {
		return 0
	}
	lo, hi := v[0], v[0]
	for _, x := range v[1:] {
		lo = math.Min(lo, x)
		hi = math.Max(hi, x)
	}
	return hi - lo
}

// PositiveControlRange flags a positive control sample whose result is not a
// titer within [low, high].
func PositiveControlRange(sample string, result, low, high float64) (failure.Failure, bool) {
	if doseresponse.IsTiter(result) && result >= low && result <= high {
		return failure.Failure{}, false
	}

	reason := fmt.Sprintf("%s [%g, %g]: %s", ReasonPositiveControl, low, high, doseresponse.Describe(result))
	return failure.Sample(failure.PositiveControlKind, sample, reason), true
}
