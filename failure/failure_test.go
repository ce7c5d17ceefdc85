package failure

import (
	"strings"
	"testing"
)

func TestSeverityFollowsKind(t *testing.T) {
	for _, v := range []struct {
		Kind     Kind
		Expected Severity
	}{
		{WellKind, WellLevel},
		{CellAreaPlateKind, PlateLevel},
		{InfectionPlateKind, PlateLevel},
		{DuplicateKind, SampleLevel},
		{PositiveControlKind, SampleLevel},
		{ModelKind, SampleLevel},
	} {
		if got := v.Kind.Severity(); got != v.Expected {
			t.Errorf("%s: got severity %s, expected %s", v.Kind, got, v.Expected)
		}
	}
}

func TestSubject(t *testing.T) {
	w := Well("plate1", "A01", "high fluorescent background in DAPI channel")
	if w.Subject() != "A01" {
		t.Errorf("Well failure subject %q", w.Subject())
	}

	p := Plate(InfectionPlateKind, "plate1", []string{"A12", "B12"}, "plate fail due to infection outside optimal range")
	if p.Subject() != "plate1" {
		t.Errorf("Plate failure subject %q", p.Subject())
	}
	if !strings.Contains(p.String(), "A12,B12") {
		t.Errorf("Plate failure string %q does not list wells", p.String())
	}

	s := Sample(DuplicateKind, "C03", "2 or more duplicates differ")
	if s.Subject() != "C03" || s.Plate != "" {
		t.Errorf("Unexpected sample failure %+v", s)
	}
}

func TestList(t *testing.T) {
	l := List{
		Well("p1", "A01", "x"),
		Well("p2", "A02", "x"),
		Well("p1", "A03", "y"),
	}

	if l.PlateFailed() {
		t.Error("Well failures alone should not fail a plate")
	}

	wells := l.Wells("p1")
	if len(wells) != 2 {
		t.Errorf("Expected 2 failed wells on p1, got %v", wells)
	}

	l = append(l, Plate(CellAreaPlateKind, "p1", []string{"A12"}, "z"))
	if !l.PlateFailed() {
		t.Error("Plate failure was not detected")
	}

	if n := len(l.Filter(func(f Failure) bool { return f.Reason == "x" })); n != 2 {
		t.Errorf("Filter returned %d failures", n)
	}
}
