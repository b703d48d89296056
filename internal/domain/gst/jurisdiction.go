package gst

import (
	"strings"

	"golang.org/x/text/cases"
)

// NormalizeState trims and Unicode-case-folds a state name so names
// coming from different clients ("delhi", "DELHI", "Delhi ") compare
// equal. The Caser is built per call: Casers carry internal state and
// are not safe for concurrent use.
func NormalizeState(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}

// SameState reports whether two state names refer to the same GST
// jurisdiction (case-insensitive, whitespace-trimmed).
func SameState(a, b string) bool {
	return NormalizeState(a) == NormalizeState(b)
}
