package assay

import (
	"fmt"
	"math"
	"sort"

	"github.com/FrancisCrickInstitute/plaque-assay/failure"
	"github.com/FrancisCrickInstitute/plaque-assay/qc"
	"github.com/FrancisCrickInstitute/plaque-assay/well"
	"github.com/montanaflynn/stats"
)

// Plate is every well measured on one physical plate at one dilution. All
// normalisation and plate QC happens in NewPlate; a Plate is read-only
// afterwards.
type Plate struct {
	Barcode  string
	Dilution float64

	// Median plaque area of the no-virus wells, subtracted from every well.
	Background float64

	// Median background-subtracted plaque area of the virus-only wells. NaN
	// if the plate has none.
	VirusOnlyMedian float64

	wells    []NormalisedWell
	raw      []Measurement
	failures failure.List
}

// NewPlate normalises the rows of a single plate and runs the plate QC
// checks. Rows from more than one plate or dilution are an error.
func NewPlate(rows []Measurement, cfg Config) (*Plate, error) {
	if len(rows) == 0 {
		return nil, ErrEmptyPlate
	}

	p := &Plate{
		Barcode:  rows[0].Plate,
		Dilution: rows[0].Dilution,
		raw:      make([]Measurement, len(rows)),
	}
	copy(p.raw, rows)
	sort.Slice(p.raw, func(i, j int) bool { return p.raw[i].Well < p.raw[j].Well })

	for i, row := range p.raw {
		if row.Plate != p.Barcode {
			return nil, fmt.Errorf("%w: %q and %q", ErrMixedPlates, p.Barcode, row.Plate)
		}
		if row.Dilution != p.Dilution {
			return nil, fmt.Errorf("%w: plate %s has %v and %v", ErrMixedDilutions, p.Barcode, p.Dilution, row.Dilution)
		}
		if i > 0 && p.raw[i-1].Well == row.Well {
			return nil, fmt.Errorf("%w: %s on plate %s", ErrDuplicateWell, row.Well, p.Barcode)
		}
	}

	if !cfg.knownDilution(p.Dilution) {
		return nil, fmt.Errorf("%w: plate %s has %v", ErrUnknownDilution, p.Barcode, p.Dilution)
	}

	p.normalise(cfg)
	p.runQC(cfg)

	return p, nil
}

func (p *Plate) normalise(cfg Config) {
	noVirus := well.NewSet(cfg.NoVirusWells...)
	virusOnly := well.NewSet(cfg.VirusOnlyWells...)

	var background []float64
	for _, row := range p.raw {
		if noVirus.Contains(row.Well) {
			background = append(background, row.PlaqueArea)
		}
	}

	// A plate without no-virus wells is not background subtracted.
	if median, err := stats.Median(background); err == nil {
		p.Background = median
	}

	p.wells = make([]NormalisedWell, len(p.raw))
	var infected []float64
	for i, row := range p.raw {
		p.wells[i] = NormalisedWell{
			Well:                 row.Well,
			Plate:                row.Plate,
			Dilution:             row.Dilution,
			BackgroundSubtracted: row.PlaqueArea - p.Background,
			Nanobody:             row.Nanobody,
			VirusDilution:        row.VirusDilution,
		}
		if virusOnly.Contains(row.Well) {
			infected = append(infected, p.wells[i].BackgroundSubtracted)
		}
	}

	p.VirusOnlyMedian = math.NaN()
	if median, err := stats.Median(infected); err == nil {
		p.VirusOnlyMedian = median
	}

	for i := range p.wells {
		p.wells[i].PercentageInfected = p.wells[i].BackgroundSubtracted / p.VirusOnlyMedian * 100
	}
}

func (p *Plate) runQC(cfg Config) {
	virusOnly := make([]string, 0, len(cfg.VirusOnlyWells))
	cellArea := make([]qc.WellValue, 0, len(p.raw))
	dapi := make([]qc.WellValue, 0, len(p.raw))
	isVirusOnly := well.NewSet(cfg.VirusOnlyWells...)
	for _, row := range p.raw {
		if isVirusOnly.Contains(row.Well) {
			virusOnly = append(virusOnly, row.Well)
		}
		cellArea = append(cellArea, qc.WellValue{Well: row.Well, Value: row.CellArea})
		dapi = append(dapi, qc.WellValue{Well: row.Well, Value: row.DAPI})
	}

	if f, failed := qc.InfectionRange(p.Barcode, p.VirusOnlyMedian, cfg.InfectionRange.Low, cfg.InfectionRange.High, virusOnly); failed {
		p.failures = append(p.failures, f)
	}

	plateFailures, wellFailures := qc.CellAreaOutliers(p.Barcode, cellArea, cfg.ControlColumn, cfg.CellAreaRatio.Low, cfg.CellAreaRatio.High)
	p.failures = append(p.failures, plateFailures...)
	p.failures = append(p.failures, wellFailures...)

	p.failures = append(p.failures, qc.HighBackground(p.Barcode, dapi, cfg.BackgroundFactor)...)
}

// Failed reports whether any plate-level check failed.
func (p *Plate) Failed() bool {
	return p.failures.PlateFailed()
}

// Failures returns a copy of the plate and well failures found on this plate.
func (p *Plate) Failures() failure.List {
	out := make(failure.List, len(p.failures))
	copy(out, p.failures)
	return out
}

// FailedWells is the set of wells with well-level failures.
func (p *Plate) FailedWells() well.Set {
	return well.Set(p.failures.Wells(p.Barcode))
}

// Wells returns a copy of the normalised wells, ordered by label.
func (p *Plate) Wells() []NormalisedWell {
	out := make([]NormalisedWell, len(p.wells))
	copy(out, p.wells)
	return out
}

// Measurements returns a copy of the rows the plate was built from, ordered by
// well label.
func (p *Plate) Measurements() []Measurement {
	out := make([]Measurement, len(p.raw))
	copy(out, p.raw)
	return out
}
