package ingest

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/FrancisCrickInstitute/plaque-assay/assay"
	"github.com/FrancisCrickInstitute/plaque-assay/well"
	"github.com/araddon/dateparse"
	"github.com/carbocation/pfx"
)

// PlateResultsFile is the per-plate export written under each Evaluation
// directory.
const PlateResultsFile = "PlateResults.txt"

// PlateDirectories lists the plate export directories inside an experiment
// directory.
func PlateDirectories(dir string) ([]string, error) {
	dir, err := ExpandHome(dir)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, pfx.Err(err)
	}

	var out []string
	for _, e := range entries {
		if e.IsDir() {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(out)

	return out, nil
}

// LatestPlateResults returns the PlateResults.txt of the most recent
// Evaluation directory of a plate export, and how many evaluations there were.
func LatestPlateResults(plateDir string) (string, int, error) {
	evaluations, err := filepath.Glob(filepath.Join(plateDir, "Evaluation*", PlateResultsFile))
	if err != nil {
		return "", 0, pfx.Err(err)
	}
	if len(evaluations) == 0 {
		return "", 0, pfx.Err(fmt.Errorf("no Evaluation*/%s in %s", PlateResultsFile, plateDir))
	}
	sort.Strings(evaluations)

	return evaluations[len(evaluations)-1], len(evaluations), nil
}

// ReadPlateDirectory reads the latest evaluation of one plate export. The
// barcode is taken from the directory name.
func ReadPlateDirectory(plateDir string) ([]assay.Measurement, error) {
	return readLatest(plateDir, func(r io.Reader, barcode string) ([]assay.Measurement, error) {
		return ReadPlateResults(r, barcode)
	})
}

// ReadTitrationDirectory is ReadPlateDirectory for a virus titration plate.
func ReadTitrationDirectory(plateDir string, layout TitrationLayout) ([]assay.Measurement, error) {
	return readLatest(plateDir, func(r io.Reader, barcode string) ([]assay.Measurement, error) {
		return ReadTitration(r, barcode, layout)
	})
}

func readLatest(plateDir string, parse func(io.Reader, string) ([]assay.Measurement, error)) ([]assay.Measurement, error) {
	path, _, err := LatestPlateResults(plateDir)
	if err != nil {
		return nil, err
	}

	f, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return parse(f, BarcodeFromPath(plateDir))
}

// MeasurementTime parses the acquisition time from a plate export directory
// name such as "A11000123__2020-10-16T14_46_58-Measurement 1".
func MeasurementTime(plateDir string) (time.Time, error) {
	parts := strings.SplitN(filepath.Base(plateDir), "__", 2)
	if len(parts) != 2 || len(parts[1]) < len("2006-01-02T15_04_05") {
		return time.Time{}, fmt.Errorf("no measurement time in %q", plateDir)
	}

	// The export replaces the colons of the time with underscores.
	stamp := parts[1][:len("2006-01-02T15_04_05")]
	stamp = stamp[:11] + strings.ReplaceAll(stamp[11:], "_", ":")

	// The stamp carries no zone and is read as UTC.
	t, err := dateparse.ParseIn(stamp, time.UTC)
	if err != nil {
		return time.Time{}, pfx.Err(err)
	}
	return t, nil
}

// MockBarcode384 gives each of the four dilutions held on a 384-well plate
// its own barcode, in the format of a 96-well plate of that dilution:
// "AA1000001" at well "A02" becomes "A21000001".
func MockBarcode384(barcode, label string) (string, error) {
	if len(barcode) < 3 {
		return "", fmt.Errorf("barcode %q is too short", barcode)
	}

	n, err := well.DilutionFrom384Well(label)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%c%d%s", barcode[0], n, barcode[2:]), nil
}

// Convert384 maps measurements taken on 384-well plates onto the 96-well
// layout. Each 2x2 block of a 384-well plate holds the four dilutions of one
// 96-well position, so every physical plate becomes four logical plates.
func Convert384(rows []assay.Measurement) ([]assay.Measurement, error) {
	out := make([]assay.Measurement, 0, len(rows))
	for _, row := range rows {
		n, err := well.DilutionFrom384Well(row.Well)
		if err != nil {
			return nil, err
		}
		label, err := well.Well384To96(row.Well)
		if err != nil {
			return nil, err
		}
		barcode, err := MockBarcode384(row.Plate, row.Well)
		if err != nil {
			return nil, err
		}

		row.Well = label
		row.Plate = barcode
		row.Dilution = PlateMapping[n]
		out = append(out, row)
	}
	return out, nil
}
