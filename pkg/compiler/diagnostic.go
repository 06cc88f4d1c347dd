package compiler

import (
	"fmt"
	"strings"
)

// Diagnostic is a structured compile error: where it happened, what
// was expected, and what was actually found, plus a caret-annotated
// rendering of the offending source line (spec §4.D "Syntax errors
// produce a structured diagnostic (location, what-was-expected,
// what-was-found)").
type Diagnostic struct {
	Line     int
	Column   int
	Expected string
	Found    string
	SrcLine  string
}

func (d Diagnostic) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "line %d: expected %s, found %s", d.Line, d.Expected, d.Found)
	if d.SrcLine != "" {
		b.WriteByte('\n')
		b.WriteString(d.SrcLine)
		b.WriteByte('\n')
		col := d.Column
		if col < 1 {
			col = 1
		}
		b.WriteString(strings.Repeat(" ", col-1))
		b.WriteByte('^')
	}
	return b.String()
}

// sourceLine returns the text of line n (1-based) from src, or "" if
// out of range, used to render the caret under a Diagnostic.
func sourceLine(src string, n int) string {
	lines := strings.Split(src, "\n")
	if n < 1 || n > len(lines) {
		return ""
	}
	return lines[n-1]
}
