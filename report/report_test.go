package report

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/FrancisCrickInstitute/plaque-assay/assay"
	"github.com/FrancisCrickInstitute/plaque-assay/ingest"
	"github.com/FrancisCrickInstitute/plaque-assay/well"
	"github.com/google/go-cmp/cmp"
	"gopkg.in/guregu/null.v3"
)

// buildExperiment makes a four plate run where every sample is uninhibited
// except C01, which is completely inhibited.
func buildExperiment(t *testing.T) *assay.Experiment {
	t.Helper()

	cfg := assay.DefaultConfig()
	noVirus := well.NewSet(cfg.NoVirusWells...)

	var rows []assay.Measurement
	for i, dilution := range []float64{1.0 / 40, 1.0 / 160, 1.0 / 640, 1.0 / 2560} {
		barcode := "A" + string(rune('1'+i)) + "1000123"
		for _, label := range well.All96() {
			m := assay.Measurement{Well: label, Plate: barcode, Dilution: dilution, CellArea: 1000, DAPI: 100}
			switch {
			case noVirus.Contains(label):
				m.PlaqueArea = 0.05
			case label == "C01":
				m.PlaqueArea = 0.05
			default:
				m.PlaqueArea = 0.55
			}
			rows = append(rows, m)
		}
	}

	exp, err := assay.NewExperiment("1000123", "B.1.1.7", rows, cfg)
	if err != nil {
		t.Fatal(err)
	}
	return exp
}

func TestResults(t *testing.T) {
	exp := buildExperiment(t)

	rows := Results(exp)
	if len(rows) != 88 {
		t.Fatalf("Expected 88 rows, got %d", len(rows))
	}

	byWell := make(map[string]ResultRow)
	for _, r := range rows {
		byWell[r.Well] = r
	}

	expected := ResultRow{
		Well:       "C01",
		Result:     -666,
		Status:     null.StringFrom("complete inhibition"),
		Method:     "heuristic: complete inhibition",
		Experiment: "1000123",
		Variant:    "B.1.1.7",
	}
	if diff := cmp.Diff(expected, byWell["C01"]); diff != "" {
		t.Errorf("C01 mismatch (-want +got):\n%s", diff)
	}
	if byWell["B01"].Status.String != "no inhibition" || byWell["B01"].IC50.Valid {
		t.Errorf("Unexpected B01 row %+v", byWell["B01"])
	}
}

func TestFailuresAndParameters(t *testing.T) {
	exp := buildExperiment(t)

	// The uninhibited positive control is the only failure.
	failures := Failures(exp)
	if len(failures) != 1 {
		t.Fatalf("Expected one failure, got %+v", failures)
	}
	if f := failures[0]; f.Subject != "A06" || f.Kind != "positive_control" || f.Severity != "sample" {
		t.Errorf("Unexpected failure %+v", f)
	}

	for _, p := range Parameters(exp) {
		if p.Top.Valid || p.MSE.Valid {
			t.Errorf("%s: no curve should have been fit, got %+v", p.Well, p)
		}
	}

	if n := len(Normalised(exp)); n != 4*96 {
		t.Errorf("Expected %d normalised rows, got %d", 4*96, n)
	}
	if n := len(Percentages(exp)); n != 88*4 {
		t.Errorf("Expected %d percentage rows, got %d", 88*4, n)
	}
}

func TestWriteTSV(t *testing.T) {
	var buf bytes.Buffer
	rows := []ResultRow{
		{Well: "A01", Result: 391.5, IC50: null.FloatFrom(391.5), Method: "model fit", Experiment: "1", Variant: "v"},
		{Well: "A02", Result: -999, Status: null.StringFrom("no inhibition"), Method: "heuristic: no inhibition", Experiment: "1", Variant: "v"},
	}
	if err := WriteTSV(&buf, rows); err != nil {
		t.Fatal(err)
	}

	expected := strings.Join([]string{
		"well\tresult\tic50\tstatus\tfit_method\texperiment\tvariant",
		"A01\t391.5\t391.5\t\tmodel fit\t1\tv",
		"A02\t-999\t\tno inhibition\theuristic: no inhibition\t1\tv",
		"",
	}, "\n")
	if diff := cmp.Diff(expected, buf.String()); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestSaveAll(t *testing.T) {
	exp := buildExperiment(t)
	outdir := filepath.Join(t.TempDir(), "out")

	paths, err := SaveAll(exp, outdir)
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) != 6 {
		t.Fatalf("Expected 6 tables, got %v", paths)
	}

	body, err := os.ReadFile(filepath.Join(outdir, "results_1000123.tsv"))
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(body)), "\n")
	if len(lines) != 89 {
		t.Errorf("Expected a header and 88 rows, got %d lines", len(lines))
	}
}

func TestNormalisedTitration(t *testing.T) {
	layout := ingest.DefaultTitrationLayout()
	cfg := assay.DefaultConfig()
	cfg.PositiveControlWells = nil
	noVirus := well.NewSet(cfg.NoVirusWells...)

	var rows []assay.Measurement
	for _, label := range well.All96() {
		row, col, err := well.Parse(label)
		if err != nil {
			t.Fatal(err)
		}
		m := assay.Measurement{Well: label, Plate: "T01000456", PlaqueArea: 0.55, CellArea: 1000, DAPI: 100}
		if col == layout.ControlColumn {
			if noVirus.Contains(label) {
				m.PlaqueArea = 0.05
			}
		} else {
			m.Dilution = ingest.PlateMapping[layout.RowDilution[byte(row)]]
			m.Nanobody = layout.Nanobody[byte(row)]
			m.VirusDilution = layout.VirusDilution[col]
		}
		rows = append(rows, m)
	}

	split, err := ingest.SplitTitration(rows, layout)
	if err != nil {
		t.Fatal(err)
	}
	exp, err := assay.NewExperiment("1000456", "B.1.1.7", split, cfg)
	if err != nil {
		t.Fatal(err)
	}

	if n := len(exp.Samples()); n != 22 {
		t.Errorf("Expected a sample per nanobody and virus dilution, got %d", n)
	}

	normalised := Normalised(exp)
	if len(normalised) != 4*30 {
		t.Fatalf("Expected %d normalised rows, got %d", 4*30, len(normalised))
	}
	for _, r := range normalised {
		switch r.Well {
		case "E11":
			if r.Nanobody != null.StringFrom("nanobody_2") || r.VirusDilution != null.FloatFrom(192) {
				t.Errorf("Unexpected titration metadata %+v", r)
			}
		case "A12":
			if r.Nanobody.Valid || r.VirusDilution.Valid {
				t.Errorf("Control well should carry no titration metadata: %+v", r)
			}
		}
	}

	if n := len(exp.PercentageInfected()["A01"]); n != 4 {
		t.Errorf("Expected one point per sample dilution, got %d", n)
	}
}
