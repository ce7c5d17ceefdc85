// Package report flattens an experiment into the tables handed to
// downstream consumers, and writes them as tab delimited files.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/FrancisCrickInstitute/plaque-assay/assay"
	"github.com/FrancisCrickInstitute/plaque-assay/doseresponse"
	"github.com/carbocation/pfx"
	"github.com/gocarina/gocsv"
	"gopkg.in/guregu/null.v3"
)

// ResultRow is the final result of one sample. IC50 holds the titer and is
// null for categorical outcomes, whose name is in Status.
type ResultRow struct {
	Well       string      `csv:"well"`
	Result     float64     `csv:"result"`
	IC50       null.Float  `csv:"ic50"`
	Status     null.String `csv:"status"`
	Method     string      `csv:"fit_method"`
	Experiment string      `csv:"experiment"`
	Variant    string      `csv:"variant"`
}

// FailureRow is one QC failure.
type FailureRow struct {
	Kind       string `csv:"failure_type"`
	Severity   string `csv:"severity"`
	Subject    string `csv:"subject"`
	Plate      string `csv:"plate"`
	Well       string `csv:"well"`
	Reason     string `csv:"failure_reason"`
	Experiment string `csv:"experiment"`
	Variant    string `csv:"variant"`
}

// ParameterRow holds the fitted curve of one sample. Every column is null when
// no curve was fit, and the Hill slope is null for the three parameter model.
type ParameterRow struct {
	Well       string     `csv:"well"`
	Top        null.Float `csv:"param_top"`
	Bottom     null.Float `csv:"param_bottom"`
	EC50       null.Float `csv:"param_ec50"`
	HillSlope  null.Float `csv:"param_hillslope"`
	MSE        null.Float `csv:"mean_squared_error"`
	Experiment string     `csv:"experiment"`
	Variant    string     `csv:"variant"`
}

// NormalisedRow is one well after background subtraction.
type NormalisedRow struct {
	Well                 string  `csv:"well"`
	Plate                string  `csv:"plate_barcode"`
	Dilution             float64 `csv:"dilution"`
	BackgroundSubtracted float64 `csv:"background_subtracted_plaque_area"`
	PercentageInfected   float64 `csv:"percentage_infected"`

	// Null unless the plate is a virus titration.
	Nanobody      null.String `csv:"nanobody"`
	VirusDilution null.Float  `csv:"virus_dilution_factor"`

	Experiment string `csv:"experiment"`
	Variant    string `csv:"variant"`
}

// PercentageRow is one point that entered a sample's model.
type PercentageRow struct {
	Well               string  `csv:"well"`
	Dilution           float64 `csv:"dilution"`
	PercentageInfected float64 `csv:"percentage_infected"`
	Experiment         string  `csv:"experiment"`
	Variant            string  `csv:"variant"`
}

// Results returns one row per sample, ordered by well.
func Results(exp *assay.Experiment) []ResultRow {
	out := make([]ResultRow, 0, len(exp.Samples()))
	for _, s := range exp.Samples() {
		o := s.Outcome()
		row := ResultRow{
			Well:       s.Name,
			Result:     o.Result,
			Method:     string(o.Method),
			Experiment: exp.Name,
			Variant:    exp.Variant,
		}
		if titer, ok := o.Titer(); ok {
			row.IC50 = null.FloatFrom(titer)
		} else if code, ok := o.Code(); ok {
			row.Status = null.StringFrom(code.String())
		}
		out = append(out, row)
	}
	return out
}

// Failures returns one row per failure, plates first.
func Failures(exp *assay.Experiment) []FailureRow {
	failures := exp.Failures()
	out := make([]FailureRow, 0, len(failures))
	for _, f := range failures {
		out = append(out, FailureRow{
			Kind:       f.Kind.String(),
			Severity:   f.Severity().String(),
			Subject:    f.Subject(),
			Plate:      f.Plate,
			Well:       f.Well,
			Reason:     f.Reason,
			Experiment: exp.Name,
			Variant:    exp.Variant,
		})
	}
	return out
}

// Parameters returns the model parameters of every sample, ordered by well.
func Parameters(exp *assay.Experiment) []ParameterRow {
	fits := exp.ModelParameters()
	wells := make([]string, 0, len(fits))
	for w := range fits {
		wells = append(wells, w)
	}
	sort.Strings(wells)

	out := make([]ParameterRow, 0, len(wells))
	for _, w := range wells {
		o := fits[w]
		row := ParameterRow{
			Well:       w,
			MSE:        o.MSE,
			Experiment: exp.Name,
			Variant:    exp.Variant,
		}
		if o.Params != nil {
			row.Top = null.FloatFrom(o.Params.Top)
			row.Bottom = null.FloatFrom(o.Params.Bottom)
			row.EC50 = null.FloatFrom(o.Params.EC50)
			row.HillSlope = o.Params.HillSlope
		}
		out = append(out, row)
	}
	return out
}

// Normalised returns every well of every plate.
func Normalised(exp *assay.Experiment) []NormalisedRow {
	wells := exp.NormalisedData()
	out := make([]NormalisedRow, 0, len(wells))
	for _, w := range wells {
		out = append(out, NormalisedRow{
			Well:                 w.Well,
			Plate:                w.Plate,
			Dilution:             w.Dilution,
			BackgroundSubtracted: w.BackgroundSubtracted,
			PercentageInfected:   w.PercentageInfected,
			Nanobody:             null.NewString(w.Nanobody, w.Nanobody != ""),
			VirusDilution:        null.NewFloat(w.VirusDilution, w.VirusDilution > 0),
			Experiment:           exp.Name,
			Variant:              exp.Variant,
		})
	}
	return out
}

// Percentages returns the points modelled for every sample, ordered by well
// and then dilution.
func Percentages(exp *assay.Experiment) []PercentageRow {
	var out []PercentageRow
	for _, s := range exp.Samples() {
		for _, p := range s.Points() {
			out = append(out, PercentageRow{
				Well:               s.Name,
				Dilution:           p.Dilution,
				PercentageInfected: p.PercentageInfected,
				Experiment:         exp.Name,
				Variant:            exp.Variant,
			})
		}
	}
	return out
}

// ResultMapping lists the names of the negative result codes.
func ResultMapping() []ResultMappingRow {
	var out []ResultMappingRow
	for _, c := range doseresponse.Codes() {
		out = append(out, ResultMappingRow{Code: int(c), Description: c.String()})
	}
	return out
}

// ResultMappingRow names one negative result code.
type ResultMappingRow struct {
	Code        int    `csv:"code"`
	Description string `csv:"description"`
}

// WriteTSV writes a slice of rows, with a header, as tab delimited text.
func WriteTSV(w io.Writer, rows interface{}) error {
	cw := csv.NewWriter(w)
	cw.Comma = '\t'

	if err := gocsv.MarshalCSV(rows, gocsv.NewSafeCSVWriter(cw)); err != nil {
		return pfx.Err(err)
	}

	return nil
}

// SaveAll writes every table of the experiment into outdir, one file per
// table, named after the table and the experiment. It returns the paths
// written.
func SaveAll(exp *assay.Experiment, outdir string) ([]string, error) {
	if err := os.MkdirAll(outdir, 0755); err != nil {
		return nil, pfx.Err(err)
	}

	tables := []struct {
		Name string
		Rows interface{}
	}{
		{"results", Results(exp)},
		{"failures", Failures(exp)},
		{"model_parameters", Parameters(exp)},
		{"normalised", Normalised(exp)},
		{"percentage_infected", Percentages(exp)},
		{"result_mapping", ResultMapping()},
	}

	var written []string
	for _, table := range tables {
		path := filepath.Join(outdir, fmt.Sprintf("%s_%s.tsv", table.Name, exp.Name))
		if err := writeFile(path, table.Rows); err != nil {
			return written, err
		}
		written = append(written, path)
	}

	return written, nil
}

func writeFile(path string, rows interface{}) error {
	f, err := os.Create(path)
	if err != nil {
		return pfx.Err(err)
	}

	if err := WriteTSV(f, rows); err != nil {
		f.Close()
		return err
	}

	if err := f.Close(); err != nil {
		return pfx.Err(err)
	}
	return nil
}
