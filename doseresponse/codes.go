package doseresponse

import (
	"fmt"
	"sort"
)

// Code is a categorical outcome for a sample. Codes are negative so that they
// can share a column with titers, which are always positive: callers must
// check the sign (see IsTiter) before interpreting a result.
type Code int

const (
	NoInhibition       Code = -999
	FailedToFit        Code = -888
	WeakInhibition     Code = -777
	CompleteInhibition Code = -666
)

var codeNames = map[Code]string{
	NoInhibition:       "no inhibition",
	FailedToFit:        "failed to fit model",
	WeakInhibition:     "weak inhibition",
	CompleteInhibition: "complete inhibition",
}

func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Code(%d)", int(c))
}

// Value returns the code in the float representation used for results.
func (c Code) Value() float64 {
	return float64(c)
}

// ResultMapping returns a fresh copy of the human readable names of each code,
// keyed by the integer value reported in results.
func ResultMapping() map[int]string {
	out := make(map[int]string, len(codeNames))
	for k, v := range codeNames {
		out[int(k)] = v
	}
	return out
}

// Codes lists every code in ascending order.
func Codes() []Code {
	out := make([]Code, 0, len(codeNames))
	for k := range codeNames {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// IsTiter reports whether a result is a numeric titer rather than a code.
func IsTiter(result float64) bool {
	return result > 0
}

// CodeOf converts a non-titer result back into its Code. The boolean is false
// if the value is a titer or an unknown code.
func CodeOf(result float64) (Code, bool) {
	if IsTiter(result) {
		return 0, false
	}
	c := Code(int(result))
	_, ok := codeNames[c]
	return c, ok
}

// Describe renders a result for humans: titers as numbers, codes by name.
func Describe(result float64) string {
	if c, ok := CodeOf(result); ok {
		return c.String()
	}
	return fmt.Sprintf("%.2f", result)
}

// Method records how a sample's result was reached.
type Method string

const (
	MethodModelFit                    Method = "model fit"
	MethodHeuristicNoInhibition       Method = "heuristic: no inhibition"
	MethodHeuristicWeakInhibition     Method = "heuristic: weak inhibition"
	MethodHeuristicCompleteInhibition Method = "heuristic: complete inhibition"
	MethodFailedToFit                 Method = "failed to fit model"
)

func heuristicMethod(c Code) Method {
	switch c {
	case NoInhibition:
		return MethodHeuristicNoInhibition
	case WeakInhibition:
		return MethodHeuristicWeakInhibition
	case CompleteInhibition:
		return MethodHeuristicCompleteInhibition
	}
	return MethodFailedToFit
}
