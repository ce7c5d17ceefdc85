package ingest

import (
	"bytes"
	"io"

	"github.com/csimplestring/go-csv/detector"
)

// delimiters that exports are known to use, in order of preference.
var delimiters = []byte{'\t', ',', ';', '|'}

// DetectDelimiter returns the single most likely rune that would delimit the
// values in the reader. Instrument exports are usually tab delimited, while
// combined tables are often comma delimited.
func DetectDelimiter(r io.Reader) rune {
	body, err := io.ReadAll(r)
	if err != nil || len(body) == 0 {
		return ','
	}

	d := detector.New()
	candidates := d.DetectDelimiter(bytes.NewReader(body), '"')
	for _, want := range delimiters {
		for _, c := range candidates {
			if len(c) == 1 && c[0] == want {
				return rune(want)
			}
		}
	}

	// Fall back to whichever known delimiter is most common in the header.
	header := body
	if idx := bytes.IndexByte(body, '\n'); idx >= 0 {
		header = body[:idx]
	}
	best, bestCount := byte(','), 0
	for _, c := range delimiters {
		if n := bytes.Count(header, []byte{c}); n > bestCount {
			best, bestCount = c, n
		}
	}

	return rune(best)
}
