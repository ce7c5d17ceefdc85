// plaqueassay classifies the samples of a plaque reduction neutralisation
// assay and writes the results, QC failures and model parameters as tab
// delimited tables.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/FrancisCrickInstitute/plaque-assay/assay"
	"github.com/FrancisCrickInstitute/plaque-assay/ingest"
	"github.com/FrancisCrickInstitute/plaque-assay/report"
	"gopkg.in/yaml.v3"
)

func init() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage of %s:\n", os.Args[0])
		flag.PrintDefaults()

		log.Println("Example -config file layout (these are the defaults):")
		bts, err := yaml.Marshal(assay.DefaultConfig())
		if err == nil {
			log.Println("\n" + string(bts))
		}
	}
}

func main() {
	start := time.Now()
	log.Println("plaqueassay start")
	defer func() {
		log.Printf("plaqueassay end. Took %.2f seconds\n", time.Since(start).Seconds())
	}()

	var input, configPath, outdir, experiment, variant string
	var platePerFile, is384, titration, version bool

	flag.StringVar(&input, "input", "", "Path to a table of measurements, or with -plate-per-file to a directory of plate exports")
	flag.StringVar(&configPath, "config", "", "(Optional) Path to a YAML file overriding the default assay settings")
	flag.StringVar(&outdir, "outdir", ".", "Directory to write the output tables into")
	flag.StringVar(&experiment, "experiment", "", "(Optional) Experiment name. Derived from the first plate barcode if not set.")
	flag.StringVar(&variant, "variant", "", "(Optional) Name of the virus variant, copied into every output table")
	flag.BoolVar(&platePerFile, "plate-per-file", false, "Treat -input as a directory holding one export directory per plate")
	flag.BoolVar(&is384, "384", false, "Measurements come from 384-well plates holding all four dilutions")
	flag.BoolVar(&titration, "titration", false, "Plates are virus titrations, one export directory per plate (implies -plate-per-file)")
	flag.BoolVar(&version, "version", false, "Print build information and exit")
	flag.Parse()

	log.Println(buildInfo())
	if version {
		return
	}

	if input == "" {
		flag.Usage()
		os.Exit(1)
	}

	cfg := assay.DefaultConfig()
	if configPath != "" {
		var err error
		cfg, err = assay.LoadConfig(configPath)
		if err != nil {
			log.Fatalln(err)
		}
		log.Println("Loaded settings from", configPath)
	}

	rows, err := readInput(input, platePerFile || titration, titration)
	if err != nil {
		log.Fatalln(err)
	}
	log.Println("Read", len(rows), "measurements")

	if is384 {
		if rows, err = ingest.Convert384(rows); err != nil {
			log.Fatalln(err)
		}
		log.Println("Mapped 384-well measurements onto the 96-well layout")
	}

	if titration {
		if rows, err = ingest.SplitTitration(rows, ingest.DefaultTitrationLayout()); err != nil {
			log.Fatalln(err)
		}
		// Titration plates carry no positive control sample.
		cfg.PositiveControlWells = nil
		log.Println("Split titration plates into one plate per sample dilution")
	}

	if len(rows) == 0 {
		log.Fatalln("No measurements found in", input)
	}
	if experiment == "" {
		experiment = ingest.ExperimentName(rows[0].Plate)
		log.Println("Experiment name detected as", experiment)
	}

	exp, err := assay.NewExperiment(experiment, variant, rows, cfg)
	if err != nil {
		log.Fatalln(err)
	}

	summarize(exp)

	paths, err := report.SaveAll(exp, outdir)
	if err != nil {
		log.Fatalln(err)
	}
	for _, path := range paths {
		log.Println("Wrote", path)
	}
}

func readInput(input string, platePerFile, titration bool) ([]assay.Measurement, error) {
	if !platePerFile {
		f, err := ingest.Open(input)
		if err != nil {
			return nil, err
		}
		defer f.Close()

		return ingest.ReadMeasurements(f, nil)
	}

	dirs, err := ingest.PlateDirectories(input)
	if err != nil {
		return nil, err
	}
	if !titration && len(dirs) != 8 {
		log.Println("Expected 8 plate directories, found", len(dirs))
	}

	var out []assay.Measurement
	for _, dir := range dirs {
		path, n, err := ingest.LatestPlateResults(dir)
		if err != nil {
			return nil, err
		}
		if n > 1 {
			log.Println("Multiple evaluations found, using the latest:", path)
		}

		var rows []assay.Measurement
		if titration {
			rows, err = ingest.ReadTitrationDirectory(dir, ingest.DefaultTitrationLayout())
		} else {
			rows, err = ingest.ReadPlateDirectory(dir)
		}
		if err != nil {
			return nil, err
		}
		if measured, err := ingest.MeasurementTime(dir); err == nil {
			log.Println("Plate barcode detected as", ingest.BarcodeFromPath(dir), "measured at", measured.Format(time.RFC3339))
		} else {
			log.Println("Plate barcode detected as", ingest.BarcodeFromPath(dir))
		}

		out = append(out, rows...)
	}

	return out, nil
}
