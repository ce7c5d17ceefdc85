package doseresponse

// Heuristics classifies samples whose raw values make curve fitting
// pointless. The boolean is false when no decision could be made and the
// sample needs a model fit.
//
//   - No inhibition: every replicate at the most concentrated dilution is
//     above weakThreshold.
//   - Weak inhibition: no replicate anywhere drops below threshold, but the
//     most concentrated dilution reaches the weak band.
//   - Complete inhibition: every replicate at every dilution is below
//     threshold.
//
// A sample with no points cannot be classified or fit and is reported as
// FailedToFit.
func Heuristics(points []Point, threshold, weakThreshold float64) (Code, bool) {
	lv := levels(points)
	if len(lv) == 0 {
		return FailedToFit, true
	}

	concentrated := lv[len(lv)-1].Values

	if allAbove(concentrated, weakThreshold) {
		return NoInhibition, true
	}

	allAtOrAboveThreshold, allBelowThreshold := true, true
	for _, p := range points {
		if p.PercentageInfected < threshold {
			allAtOrAboveThreshold = false
		} else {
			allBelowThreshold = false
		}
	}

	if allAtOrAboveThreshold {
		return WeakInhibition, true
	}

	if allBelowThreshold {
		return CompleteInhibition, true
	}

	return 0, false
}

func allAbove(values []float64, limit float64) bool {
	for _, v := range values {
		if v <= limit {
			return false
		}
	}
	return len(values) > 0
}
