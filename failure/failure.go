// Package failure describes quality control failures. Failures are data, not
// errors: a plate or sample that fails QC still produces results, they are
// just annotated with the reasons recorded here.
package failure

import (
	"fmt"
	"strings"
)

// Kind identifies which QC rule produced a failure.
type Kind int

const (
	// WellKind is an advisory failure of a single well. The well's data point
	// is excluded from curve fitting downstream.
	WellKind Kind = iota

	// CellAreaPlateKind fails the whole plate because one or more control
	// wells had a cell region area outside of the expected range.
	CellAreaPlateKind

	// InfectionPlateKind fails the whole plate because the virus-only wells
	// were outside of the optimal infection range.
	InfectionPlateKind

	// DuplicateKind flags a sample whose replicates disagree.
	DuplicateKind

	// PositiveControlKind flags a positive control sample whose titer was
	// outside of its accepted range.
	PositiveControlKind

	// ModelKind flags a sample that could not be classified at all.
	ModelKind
)

func (k Kind) String() string {
	switch k {
	case WellKind:
		return "well"
	case CellAreaPlateKind:
		return "cell_area_plate"
	case InfectionPlateKind:
		return "infection_plate"
	case DuplicateKind:
		return "duplicate"
	case PositiveControlKind:
		return "positive_control"
	case ModelKind:
		return "model"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Severity is the scope that a failure invalidates.
type Severity int

const (
	WellLevel Severity = iota
	PlateLevel
	SampleLevel
)

func (s Severity) String() string {
	switch s {
	case WellLevel:
		return "well"
	case PlateLevel:
		return "plate"
	case SampleLevel:
		return "sample"
	}
	return fmt.Sprintf("Severity(%d)", int(s))
}

// Severity is derived from the kind, so it can never disagree with it.
func (k Kind) Severity() Severity {
	switch k {
	case CellAreaPlateKind, InfectionPlateKind:
		return PlateLevel
	case DuplicateKind, PositiveControlKind, ModelKind:
		return SampleLevel
	}
	return WellLevel
}

// Failure is a single QC failure. Which identifiers are populated depends on
// the Kind: well failures carry Plate and Well, plate failures carry Plate and
// the offending Wells, and sample failures carry the sample name in Well.
type Failure struct {
	Kind   Kind
	Plate  string
	Well   string
	Wells  []string
	Reason string
}

// Severity of the failure.
func (f Failure) Severity() Severity {
	return f.Kind.Severity()
}

// Subject returns the identifier of the thing that failed: the plate for
// plate-level failures, otherwise the well or sample.
func (f Failure) Subject() string {
	if f.Severity() == PlateLevel {
		return f.Plate
	}
	return f.Well
}

func (f Failure) String() string {
	switch f.Severity() {
	case PlateLevel:
		return fmt.Sprintf("plate %s failed (%s): %s [%s]", f.Plate, f.Kind, f.Reason, strings.Join(f.Wells, ","))
	case SampleLevel:
		return fmt.Sprintf("sample %s failed (%s): %s", f.Well, f.Kind, f.Reason)
	}
	return fmt.Sprintf("well %s on plate %s failed: %s", f.Well, f.Plate, f.Reason)
}

// Well creates a well-level failure.
func Well(plate, well, reason string) Failure {
	return Failure{Kind: WellKind, Plate: plate, Well: well, Reason: reason}
}

// Plate creates a plate-level failure of the given kind.
func Plate(kind Kind, plate string, wells []string, reason string) Failure {
	cp := make([]string, len(wells))
	copy(cp, wells)
	return Failure{Kind: kind, Plate: plate, Wells: cp, Reason: reason}
}

// Sample creates a sample-level failure of the given kind.
func Sample(kind Kind, sample, reason string) Failure {
	return Failure{Kind: kind, Well: sample, Reason: reason}
}

// List is an append-only collection of failures.
type List []Failure

// PlateFailed reports whether any failure in the list invalidates a plate.
func (l List) PlateFailed() bool {
	for _, f := range l {
		if f.Severity() == PlateLevel {
			return true
		}
	}
	return false
}

// Wells returns the set of wells with well-level failures on the given plate.
func (l List) Wells(plate string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, f := range l {
		if f.Kind == WellKind && f.Plate == plate {
			out[f.Well] = struct{}{}
		}
	}
	return out
}

// Filter returns the failures for which keep returns true.
func (l List) Filter(keep func(Failure) bool) List {
	out := make(List, 0, len(l))
	for _, f := range l {
		if keep(f) {
			out = append(out, f)
		}
	}
	return out
}
