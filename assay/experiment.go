package assay

import (
	"math"
	"runtime"
	"sort"

	"github.com/FrancisCrickInstitute/plaque-assay/doseresponse"
	"github.com/FrancisCrickInstitute/plaque-assay/failure"
	"github.com/FrancisCrickInstitute/plaque-assay/well"
	"golang.org/x/sync/errgroup"
)

// Experiment is one titration run: every plate of the dilution series and the
// samples measured across them.
type Experiment struct {
	Name    string
	Variant string

	plates  []*Plate
	samples []*Sample
}

// NewExperiment groups the rows by plate, normalises and checks each plate,
// then classifies every sample. Plates are built concurrently, followed by
// samples. Any plate that violates its structural invariants is an error.
func NewExperiment(name, variant string, rows []Measurement, cfg Config) (*Experiment, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	byPlate := make(map[string][]Measurement)
	for _, row := range rows {
		byPlate[row.Plate] = append(byPlate[row.Plate], row)
	}
	barcodes := make([]string, 0, len(byPlate))
	for barcode := range byPlate {
		barcodes = append(barcodes, barcode)
	}
	sort.Strings(barcodes)

	exp := &Experiment{
		Name:    name,
		Variant: variant,
		plates:  make([]*Plate, len(barcodes)),
	}

	g := new(errgroup.Group)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, barcode := range barcodes {
		i, barcode := i, barcode
		g.Go(func() error {
			p, err := NewPlate(byPlate[barcode], cfg)
			if err != nil {
				return err
			}
			exp.plates[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	names, points := exp.samplePoints(cfg)
	exp.samples = make([]*Sample, len(names))

	g = new(errgroup.Group)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, name := range names {
		i, name := i, name
		g.Go(func() error {
			exp.samples[i] = buildSample(name, points[name], cfg)
			return nil
		})
	}
	// Sample problems are recorded on the sample, never returned.
	_ = g.Wait()

	return exp, nil
}

// samplePoints collects the percentage infected of every non-control well
// across all plates, keyed by well label. Wells with well-level failures are
// left out when cfg.ExcludeFailedWells is set, but their sample is still
// reported.
func (e *Experiment) samplePoints(cfg Config) ([]string, map[string][]doseresponse.Point) {
	controls := well.NewSet(append(append([]string{}, cfg.VirusOnlyWells...), cfg.NoVirusWells...)...)

	seen := make(well.Set)
	points := make(map[string][]doseresponse.Point)
	for _, p := range e.plates {
		if cfg.ExcludeFailedPlates && p.Failed() {
			continue
		}
		failed := p.FailedWells()
		for _, w := range p.wells {
			if controls.Contains(w.Well) {
				continue
			}
			seen[w.Well] = struct{}{}

			if cfg.ExcludeFailedWells && failed.Contains(w.Well) {
				continue
			}
			if math.IsNaN(w.PercentageInfected) || math.IsInf(w.PercentageInfected, 0) {
				continue
			}
			points[w.Well] = append(points[w.Well], doseresponse.Point{
				Dilution:           w.Dilution,
				PercentageInfected: w.PercentageInfected,
			})
		}
	}

	return seen.Sorted(), points
}

// Plates returns the plates ordered by barcode.
func (e *Experiment) Plates() []*Plate {
	out := make([]*Plate, len(e.plates))
	copy(out, e.plates)
	return out
}

// Samples returns the samples ordered by name.
func (e *Experiment) Samples() []*Sample {
	out := make([]*Sample, len(e.samples))
	copy(out, e.samples)
	return out
}

// Failures returns every plate, well and sample failure of the experiment.
func (e *Experiment) Failures() failure.List {
	var out failure.List
	for _, p := range e.plates {
		out = append(out, p.Failures()...)
	}
	for _, s := range e.samples {
		out = append(out, s.Failures()...)
	}
	return out
}

// FailedPlates lists the barcodes of plates with plate-level failures.
func (e *Experiment) FailedPlates() []string {
	var out []string
	for _, p := range e.plates {
		if p.Failed() {
			out = append(out, p.Barcode)
		}
	}
	return out
}

// Results maps each sample to its titer or negative code.
func (e *Experiment) Results() map[string]float64 {
	out := make(map[string]float64, len(e.samples))
	for _, s := range e.samples {
		out[s.Name] = s.Result()
	}
	return out
}

// ResultMapping names the negative codes that appear in Results.
func (e *Experiment) ResultMapping() map[int]string {
	return doseresponse.ResultMapping()
}

// ModelParameters maps each sample to its classification, including the
// fitted parameters and mean squared error when a curve was fit.
func (e *Experiment) ModelParameters() map[string]doseresponse.Outcome {
	out := make(map[string]doseresponse.Outcome, len(e.samples))
	for _, s := range e.samples {
		out[s.Name] = s.Outcome()
	}
	return out
}

// NormalisedData returns every well of every plate, ordered by plate and then
// well.
func (e *Experiment) NormalisedData() []NormalisedWell {
	var out []NormalisedWell
	for _, p := range e.plates {
		out = append(out, p.Wells()...)
	}
	return out
}

// PercentageInfected maps each sample to the points that were modelled.
func (e *Experiment) PercentageInfected() map[string][]doseresponse.Point {
	out := make(map[string][]doseresponse.Point, len(e.samples))
	for _, s := range e.samples {
		out[s.Name] = s.Points()
	}
	return out
}
