// Package ingest reads plate measurements exported by the imaging software
// into assay.Measurement rows.
package ingest

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strings"

	"github.com/FrancisCrickInstitute/plaque-assay/assay"
	"github.com/FrancisCrickInstitute/plaque-assay/well"
	"github.com/carbocation/pfx"
	"github.com/gocarina/gocsv"
	"gopkg.in/guregu/null.v3"
)

// Column headers of the image analysis export.
const (
	ColumnWell       = "Well"
	ColumnRow        = "Row"
	ColumnColumn     = "Column"
	ColumnBarcode    = "Plate_barcode"
	ColumnDilution   = "Dilution"
	ColumnPlaqueArea = "Normalised Plaque area"
	ColumnCellArea   = "Cells - Image Region Area [µm²] - Mean per Well"
	ColumnDAPI       = "Cells - Intensity Image Region DAPI (global) Mean - Mean per Well"
)

// PlateMapping converts the dilution number encoded in a barcode into the
// dilution of the plate.
var PlateMapping = map[int]float64{
	1: 1.0 / 40,
	2: 1.0 / 160,
	3: 1.0 / 640,
	4: 1.0 / 2560,
}

type record struct {
	Well       string     `csv:"Well"`
	Row        int        `csv:"Row"`
	Column     int        `csv:"Column"`
	Barcode    string     `csv:"Plate_barcode"`
	Dilution   null.Float `csv:"Dilution"`
	PlaqueArea float64    `csv:"Normalised Plaque area"`
	CellArea   float64    `csv:"Cells - Image Region Area [µm²] - Mean per Well"`
	DAPI       float64    `csv:"Cells - Intensity Image Region DAPI (global) Mean - Mean per Well"`
}

// ReadMeasurements reads a table holding one or more plates. Each row needs a
// barcode; its dilution comes from the Dilution column, then plateDilutions,
// then the barcode itself. Wells may be given as a label or as Row and Column
// numbers. Missing plaque areas, which the image analysis emits for wells
// with no signal at all, are read as 0.
func ReadMeasurements(r io.Reader, plateDilutions map[string]float64) ([]assay.Measurement, error) {
	return read(r, "", plateDilutions)
}

// ReadPlateResults reads the export of a single plate, which carries no
// barcode column. Any preamble above the header row is skipped.
func ReadPlateResults(r io.Reader, barcode string) ([]assay.Measurement, error) {
	return read(r, barcode, nil)
}

func read(r io.Reader, barcode string, plateDilutions map[string]float64) ([]assay.Measurement, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, pfx.Err(err)
	}
	body = skipPreamble(body)

	cr := csv.NewReader(bytes.NewReader(body))
	cr.Comma = DetectDelimiter(bytes.NewReader(body))
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1

	var records []*record
	if err := gocsv.UnmarshalCSV(cr, &records); err != nil {
		return nil, pfx.Err(err)
	}

	out := make([]assay.Measurement, 0, len(records))
	for i, rec := range records {
		m, err := rec.measurement(barcode, plateDilutions)
		if err != nil {
			return nil, pfx.Err(fmt.Errorf("row %d: %w", i+1, err))
		}
		out = append(out, m)
	}

	return out, nil
}

// skipPreamble drops lines above the header, which is the first line naming
// the plaque area column.
func skipPreamble(body []byte) []byte {
	idx := bytes.Index(body, []byte(ColumnPlaqueArea))
	if idx < 0 {
		return body
	}
	start := bytes.LastIndexByte(body[:idx], '\n') + 1
	return body[start:]
}

func (rec *record) measurement(barcode string, plateDilutions map[string]float64) (assay.Measurement, error) {
	if rec.Barcode != "" {
		barcode = rec.Barcode
	}
	if barcode == "" {
		return assay.Measurement{}, fmt.Errorf("no %s", ColumnBarcode)
	}

	label := rec.Well
	if label == "" {
		if rec.Row < 1 || rec.Column < 1 {
			return assay.Measurement{}, fmt.Errorf("neither %s nor %s and %s are set", ColumnWell, ColumnRow, ColumnColumn)
		}
		label = well.RowColToWell(rec.Row, rec.Column)
	}
	label, err := well.Pad(label)
	if err != nil {
		return assay.Measurement{}, err
	}

	dilution, err := plateDilution(barcode, rec.Dilution, plateDilutions)
	if err != nil {
		return assay.Measurement{}, err
	}

	plaqueArea := rec.PlaqueArea
	if math.IsNaN(plaqueArea) {
		plaqueArea = 0
	}

	return assay.Measurement{
		Well:       label,
		Plate:      barcode,
		Dilution:   dilution,
		PlaqueArea: plaqueArea,
		CellArea:   rec.CellArea,
		DAPI:       rec.DAPI,
	}, nil
}

func plateDilution(barcode string, column null.Float, plateDilutions map[string]float64) (float64, error) {
	if column.Valid && column.Float64 > 0 {
		return column.Float64, nil
	}
	if d, exists := plateDilutions[barcode]; exists {
		return d, nil
	}

	n, err := DilutionFromBarcode(barcode)
	if err != nil {
		return 0, err
	}
	return PlateMapping[n], nil
}

// BarcodeFromPath returns the plate barcode of an export directory, which the
// imaging software names "<barcode>__<timestamp>-Measurement <n>".
func BarcodeFromPath(path string) string {
	return strings.SplitN(filepath.Base(path), "__", 2)[0]
}

// DilutionFromBarcode returns the dilution number (1-4) encoded in the second
// character of a plate barcode: "A11..." is 1 and "A41..." is 4. Paths to
// export directories are accepted as well.
func DilutionFromBarcode(barcode string) (int, error) {
	barcode = BarcodeFromPath(barcode)
	if len(barcode) < 2 {
		return 0, fmt.Errorf("barcode %q is too short to hold a dilution", barcode)
	}

	n := int(barcode[1] - '0')
	if _, exists := PlateMapping[n]; !exists {
		return 0, fmt.Errorf("barcode %q does not encode a dilution between 1 and %d", barcode, len(PlateMapping))
	}
	return n, nil
}

// ExperimentName derives the experiment from a plate barcode by dropping the
// prefix that identifies the dilution.
func ExperimentName(barcode string) string {
	barcode = BarcodeFromPath(barcode)
	if len(barcode) <= 3 {
		return barcode
	}
	return barcode[3:]
}
