package ingest

import (
	"fmt"
	"io"

	"github.com/FrancisCrickInstitute/plaque-assay/assay"
	"github.com/FrancisCrickInstitute/plaque-assay/well"
)

// TitrationLayout describes a virus titration plate. Two nanobodies occupy
// the top and bottom halves of the plate, each at four sample dilutions down
// the rows. Each column holds a different dilution of the virus, and the
// last column holds the virus-only and no-virus controls.
type TitrationLayout struct {
	// Nanobody by row letter.
	Nanobody map[byte]string

	// Sample dilution number (1-4, see PlateMapping) by row letter.
	RowDilution map[byte]int

	// Virus dilution factor by column.
	VirusDilution map[int]float64

	ControlColumn int
}

// DefaultTitrationLayout returns the layout of the standard titration plate.
func DefaultTitrationLayout() TitrationLayout {
	return TitrationLayout{
		Nanobody: map[byte]string{
			'A': "nanobody_1", 'B': "nanobody_1", 'C': "nanobody_1", 'D': "nanobody_1",
			'E': "nanobody_2", 'F': "nanobody_2", 'G': "nanobody_2", 'H': "nanobody_2",
		},
		RowDilution: map[byte]int{
			'A': 1, 'B': 2, 'C': 3, 'D': 4,
			'E': 1, 'F': 2, 'G': 3, 'H': 4,
		},
		VirusDilution: map[int]float64{
			1: 2, 2: 3, 3: 4, 4: 6, 5: 8, 6: 12,
			7: 16, 8: 24, 9: 48, 10: 96, 11: 192,
		},
		ControlColumn: 12,
	}
}

// ReadTitration reads the export of one titration plate. The sample dilution,
// nanobody and virus dilution of each well come from its position; control
// wells get no sample dilution or nanobody.
func ReadTitration(r io.Reader, barcode string, layout TitrationLayout) ([]assay.Measurement, error) {
	// Titration barcodes do not encode a dilution, so give the plain reader a
	// placeholder and overwrite it below.
	rows, err := read(r, barcode, map[string]float64{barcode: 1})
	if err != nil {
		return nil, err
	}

	for i := range rows {
		row, col, err := well.Parse(rows[i].Well)
		if err != nil {
			return nil, err
		}

		rows[i].Dilution = 0
		rows[i].VirusDilution = layout.VirusDilution[col]
		if col == layout.ControlColumn {
			continue
		}

		n, exists := layout.RowDilution[byte(row)]
		if !exists {
			return nil, fmt.Errorf("well %s of titration plate %s is not on the layout", rows[i].Well, barcode)
		}
		rows[i].Dilution = PlateMapping[n]
		rows[i].Nanobody = layout.Nanobody[byte(row)]
	}

	return rows, nil
}

// SplitTitration turns each titration plate into one logical plate per sample
// dilution, so that it can be analysed like a dilution series. Every
// nanobody and virus dilution becomes a sample named after the well in the
// first row of its block, and the control wells are copied onto every
// logical plate.
func SplitTitration(rows []assay.Measurement, layout TitrationLayout) ([]assay.Measurement, error) {
	first := make(map[string]byte)
	for r := byte('A'); r <= 'Z'; r++ {
		name, exists := layout.Nanobody[r]
		if !exists {
			continue
		}
		if _, seen := first[name]; !seen {
			first[name] = r
		}
	}

	var out []assay.Measurement
	for _, m := range rows {
		_, col, err := well.Parse(m.Well)
		if err != nil {
			return nil, err
		}

		if col == layout.ControlColumn {
			for n := 1; n <= len(PlateMapping); n++ {
				c := m
				c.Plate = titrationBarcode(m.Plate, n)
				c.Dilution = PlateMapping[n]
				out = append(out, c)
			}
			continue
		}

		row, exists := first[m.Nanobody]
		if !exists {
			return nil, fmt.Errorf("well %s of plate %s has no nanobody", m.Well, m.Plate)
		}
		n := dilutionNumber(m.Dilution)
		if n == 0 {
			return nil, fmt.Errorf("well %s of plate %s has dilution %v, which is not on the plate mapping", m.Well, m.Plate, m.Dilution)
		}

		m.Plate = titrationBarcode(m.Plate, n)
		m.Well = well.RowColToWell(int(row-'A')+1, col)
		out = append(out, m)
	}

	return out, nil
}

func titrationBarcode(barcode string, n int) string {
	return fmt.Sprintf("%s_%d", barcode, n)
}

func dilutionNumber(d float64) int {
	for n, v := range PlateMapping {
		if v == d {
			return n
		}
	}
	return 0
}
