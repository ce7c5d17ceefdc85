package assay

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/FrancisCrickInstitute/plaque-assay/doseresponse"
	"github.com/carbocation/pfx"
	"gopkg.in/yaml.v3"
)

// Range is an inclusive interval.
type Range struct {
	Low  float64 `yaml:"low"`
	High float64 `yaml:"high"`
}

// Contains reports whether v lies within the range, bounds included.
func (r Range) Contains(v float64) bool {
	return v >= r.Low && v <= r.High
}

func (r Range) validate(name string) error {
	if r.Low > r.High {
		return fmt.Errorf("%s: low (%v) is above high (%v)", name, r.Low, r.High)
	}
	return nil
}

// Config holds every tunable of the assay analysis. It is passed explicitly to
// the constructors; there is no package level state.
type Config struct {
	// Wells with virus but no antibody. Their median background-subtracted
	// plaque area is 100% infection.
	VirusOnlyWells []string `yaml:"virus_only_wells"`

	// Wells with neither virus nor antibody, used for background subtraction.
	NoVirusWells []string `yaml:"no_virus_wells"`

	// Samples whose titer must fall within PositiveControlTiter.
	PositiveControlWells []string `yaml:"positive_control_wells"`

	// Dilutions a plate may carry. Empty accepts any dilution.
	Dilutions []float64 `yaml:"dilutions"`

	// Column holding the control wells on a 96-well plate.
	ControlColumn int `yaml:"control_column"`

	// Acceptable median background-subtracted plaque area of the virus-only
	// wells, before scaling to a percentage.
	InfectionRange Range `yaml:"infection_range"`

	// Acceptable ratio of a well's cell region area to the plate median.
	CellAreaRatio Range `yaml:"cell_area_ratio"`

	// Wells whose DAPI intensity exceeds the plate median times this factor
	// have a high background.
	BackgroundFactor float64 `yaml:"background_factor"`

	// Largest difference, in percentage points, allowed between replicates
	// at one dilution.
	DuplicateTolerance float64 `yaml:"duplicate_tolerance"`

	PositiveControlTiter Range `yaml:"positive_control_titer"`

	// Drop wells with well-level failures before fitting.
	ExcludeFailedWells bool `yaml:"exclude_failed_wells"`

	// Drop every well of a plate with plate-level failures before fitting.
	// Off by default: failed plates are reported, and callers decide.
	ExcludeFailedPlates bool `yaml:"exclude_failed_plates"`

	Model doseresponse.Config `yaml:"model"`
}

// DefaultConfig returns the settings of the standard 96-well protocol. Each
// call returns a new value that the caller may modify.
func DefaultConfig() Config {
	return Config{
		VirusOnlyWells:       []string{"A12", "B12", "C12", "D12"},
		NoVirusWells:         []string{"E12", "F12", "G12", "H12"},
		PositiveControlWells: []string{"A06"},
		Dilutions:            []float64{1.0 / 40, 1.0 / 160, 1.0 / 640, 1.0 / 2560},
		ControlColumn:        12,
		InfectionRange:       Range{Low: 0.3, High: 0.7},
		CellAreaRatio:        Range{Low: 0.7, High: 1.25},
		BackgroundFactor:     1.1,
		DuplicateTolerance:   20,
		PositiveControlTiter: Range{Low: 500, High: 800},
		ExcludeFailedWells:   true,
		Model:                doseresponse.DefaultConfig(),
	}
}

// LoadConfig reads a YAML file on top of DefaultConfig. Keys that do not map
// onto a Config field are an error. An empty file yields the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	f, err := os.Open(path)
	if err != nil {
		return cfg, pfx.Err(err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, pfx.Err(fmt.Errorf("%s: %w", path, err))
	}

	if err := cfg.Validate(); err != nil {
		return cfg, pfx.Err(fmt.Errorf("%s: %w", path, err))
	}

	return cfg, nil
}

// Validate checks that the settings are internally consistent.
func (c Config) Validate() error {
	if len(c.VirusOnlyWells) == 0 {
		return fmt.Errorf("virus_only_wells must not be empty")
	}
	if len(c.NoVirusWells) == 0 {
		return fmt.Errorf("no_virus_wells must not be empty")
	}
	for _, d := range c.Dilutions {
		if d <= 0 || d > 1 {
			return fmt.Errorf("dilutions must be fractions in (0, 1], got %v", d)
		}
	}
	if c.ControlColumn < 1 {
		return fmt.Errorf("control_column must be positive, got %d", c.ControlColumn)
	}
	for name, r := range map[string]Range{
		"infection_range":        c.InfectionRange,
		"cell_area_ratio":        c.CellAreaRatio,
		"positive_control_titer": c.PositiveControlTiter,
	} {
		if err := r.validate(name); err != nil {
			return err
		}
	}
	if c.BackgroundFactor <= 0 {
		return fmt.Errorf("background_factor must be positive, got %v", c.BackgroundFactor)
	}
	if c.DuplicateTolerance < 0 {
		return fmt.Errorf("duplicate_tolerance must not be negative, got %v", c.DuplicateTolerance)
	}
	if err := c.Model.Validate(); err != nil {
		return fmt.Errorf("model: %w", err)
	}
	return nil
}

// knownDilution reports whether d is one of the configured dilutions.
func (c Config) knownDilution(d float64) bool {
	if len(c.Dilutions) == 0 {
		return true
	}
	for _, v := range c.Dilutions {
		if math.Abs(d-v) <= 1e-9*v {
			return true
		}
	}
	return false
}
