package main

import (
	"fmt"
	"log"
	"math"
	"os"
	"runtime/debug"

	"github.com/FrancisCrickInstitute/plaque-assay/assay"
	"github.com/FrancisCrickInstitute/plaque-assay/doseresponse"
	"github.com/FrancisCrickInstitute/plaque-assay/failure"
	"github.com/aybabtme/uniplot/histogram"
)

// summarize logs one line per QC stage and a tally of the outcomes.
func summarize(exp *assay.Experiment) {
	failures := exp.Failures()

	log.Println(len(exp.Plates()), "plates,", len(exp.FailedPlates()), "failed:", exp.FailedPlates())

	wellFailures := failures.Filter(func(f failure.Failure) bool { return f.Severity() == failure.WellLevel })
	log.Println(len(wellFailures), "wells were flagged")

	sampleFailures := failures.Filter(func(f failure.Failure) bool { return f.Severity() == failure.SampleLevel })
	log.Println(len(sampleFailures), "samples were flagged")

	// Number of failures with each reason:
	reasonCounts := make(map[string]int)
	for _, f := range failures {
		reasonCounts[f.Kind.String()]++
	}
	log.Printf("Number of failures of each type: %+v\n", reasonCounts)

	outcomes := make(map[string]int)
	for _, result := range exp.Results() {
		if doseresponse.IsTiter(result) {
			outcomes["titer"]++
			continue
		}
		outcomes[doseresponse.Describe(result)]++
	}
	log.Printf("Outcomes of %d samples: %+v\n", len(exp.Samples()), outcomes)

	printTiterHistogram(exp)
}

// printTiterHistogram draws the distribution of log10 titers to stderr.
func printTiterHistogram(exp *assay.Experiment) {
	var logTiters []float64
	for _, result := range exp.Results() {
		if doseresponse.IsTiter(result) {
			logTiters = append(logTiters, math.Log10(result))
		}
	}
	if len(logTiters) < 2 {
		return
	}

	log.Println("Distribution of log10 titers:")
	hist := histogram.Hist(10, logTiters)
	if err := histogram.Fprint(os.Stderr, hist, histogram.Linear(40)); err != nil {
		log.Println(err)
	}
}

// buildInfo describes the binary from the information embedded by the Go
// toolchain.
func buildInfo() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "plaqueassay: no build information available"
	}

	var revision, revisionTime string
	modified := false
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			revision = s.Value
		case "vcs.time":
			revisionTime = s.Value
		case "vcs.modified":
			modified = s.Value == "true"
		}
	}

	out := fmt.Sprintf("%s %s built with %s", info.Main.Path, info.Main.Version, info.GoVersion)
	if revision != "" {
		out += fmt.Sprintf(" at commit %s (%s)", revision, revisionTime)
	}
	if modified {
		out += " with uncommitted changes"
	}
	return out
}
