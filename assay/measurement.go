// Package assay turns plate measurements into per-sample results. Plates are
// background subtracted and checked for QC failures, then each sample's
// replicates across the dilution series are classified by doseresponse.
package assay

import (
	"errors"
)

var (
	// ErrEmptyPlate is returned when a plate is built from no rows.
	ErrEmptyPlate = errors.New("assay: plate has no measurements")

	// ErrMixedPlates is returned when the rows given to a plate come from
	// more than one plate.
	ErrMixedPlates = errors.New("assay: measurements come from more than one plate")

	// ErrMixedDilutions is returned when the rows given to a plate carry more
	// than one dilution.
	ErrMixedDilutions = errors.New("assay: plate has more than one dilution")

	// ErrUnknownDilution is returned when a plate's dilution is not on the
	// configured dilution ladder.
	ErrUnknownDilution = errors.New("assay: plate dilution is not on the dilution ladder")

	// ErrDuplicateWell is returned when a plate has two rows for one well.
	ErrDuplicateWell = errors.New("assay: well measured more than once on a plate")
)

// Measurement is one well of one plate, as exported by the imaging software.
type Measurement struct {
	Well  string
	Plate string

	// Dilution of the sample as a fraction, e.g. 0.025 for 1/40.
	Dilution float64

	// Normalised plaque area. Wells with no measurable signal are 0.
	PlaqueArea float64

	// Mean cell image region area.
	CellArea float64

	// Mean DAPI intensity of the image region.
	DAPI float64

	// Virus titration plates only: the nanobody in the well and the dilution
	// factor of the virus. Empty and 0 otherwise.
	Nanobody      string
	VirusDilution float64
}

// NormalisedWell is a well after background subtraction.
type NormalisedWell struct {
	Well                 string
	Plate                string
	Dilution             float64
	BackgroundSubtracted float64
	PercentageInfected   float64
	Nanobody             string
	VirusDilution        float64
}
