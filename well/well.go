// Package well handles the labels of wells on 96- and 384-well plates. Labels
// are always a single row letter followed by a two digit, zero padded column
// (e.g., "A01", "H12", "P24").
package well

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

const (
	rows96    = 8
	columns96 = 12
	rows384   = 16
	cols384   = 24
)

// RowColToWell converts 1-indexed row and column numbers into a padded well
// label. (1, 1) is "A01" and (8, 12) is "H12".
func RowColToWell(row, col int) string {
	return fmt.Sprintf("%c%02d", rune('A'+row-1), col)
}

// Parse splits a well label into its row letter and its integer column.
func Parse(label string) (row rune, col int, err error) {
	label = strings.TrimSpace(label)
	if len(label) < 2 {
		return 0, 0, fmt.Errorf("well label %q is too short", label)
	}

	row = rune(strings.ToUpper(label[:1])[0])
	if row < 'A' || row > 'Z' {
		return 0, 0, fmt.Errorf("well label %q does not begin with a row letter", label)
	}

	col, err = strconv.Atoi(label[1:])
	if err != nil {
		return 0, 0, fmt.Errorf("well label %q has a non-numeric column: %w", label, err)
	}

	if col < 1 {
		return 0, 0, fmt.Errorf("well label %q has column %d", label, col)
	}

	return row, col, nil
}

// Column returns the column of the well, or 0 if the label cannot be parsed.
func Column(label string) int {
	_, col, err := Parse(label)
	if err != nil {
		return 0
	}
	return col
}

// Pad normalizes labels such as "A1" to "A01".
func Pad(label string) (string, error) {
	row, col, err := Parse(label)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%c%02d", row, col), nil
}

// Unpad removes the zero padding from the column, so "A01" becomes "A1". Labels
// that cannot be parsed are returned unchanged.
func Unpad(label string) string {
	row, col, err := Parse(label)
	if err != nil {
		return label
	}
	return fmt.Sprintf("%c%d", row, col)
}

// Well384To96 maps a 384-well label onto the 96-well position it was stamped
// from. Each 96-well position occupies a 2x2 block of the 384-well plate, so
// "A01", "A02", "B01" and "B02" all map to "A01", and "P24" maps to "H12".
func Well384To96(label string) (string, error) {
	row, col, err := Parse(label)
	if err != nil {
		return "", err
	}

	rowIdx := int(row - 'A')
	if rowIdx >= rows384 || col > cols384 {
		return "", fmt.Errorf("well label %q is outside of a 384-well plate", label)
	}

	return RowColToWell(rowIdx/2+1, (col-1)/2+1), nil
}

// DilutionFrom384Well returns which of the four dilutions (1-4) a 384-well
// position holds within its 2x2 block: "A01" is 1, "A02" is 2, "B01" is 3 and
// "B02" is 4.
func DilutionFrom384Well(label string) (int, error) {
	row, col, err := Parse(label)
	if err != nil {
		return 0, err
	}

	rowIdx := int(row - 'A')
	if rowIdx >= rows384 || col > cols384 {
		return 0, fmt.Errorf("well label %q is outside of a 384-well plate", label)
	}

	return (rowIdx%2)*2 + (col-1)%2 + 1, nil
}

// All96 returns every label on a 96-well plate in row-major order.
func All96() []string {
	out := make([]string, 0, rows96*columns96)
	for r := 1; r <= rows96; r++ {
		for c := 1; c <= columns96; c++ {
			out = append(out, RowColToWell(r, c))
		}
	}
	return out
}

// Set is an unordered collection of well labels.
type Set map[string]struct{}

// NewSet builds a Set from the given labels.
func NewSet(labels ...string) Set {
	s := make(Set, len(labels))
	for _, v := range labels {
		s[v] = struct{}{}
	}
	return s
}

// Contains reports whether label is in the set.
func (s Set) Contains(label string) bool {
	_, ok := s[label]
	return ok
}

// Sorted returns the labels in lexical order, which for padded labels is also
// row-major plate order.
func (s Set) Sorted() []string {
	out := make([]string, 0, len(s))
	for v := range s {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
