package tle

import "fmt"

// FormatError describes a malformed or inconsistent TLE record. Records
// failing validation are excluded from the load and counted; a FormatError
// never aborts the load of the remaining catalog.
type FormatError struct {
	Line   int    // zero-based index of the offending line in the source
	Name   string // satellite name line, when one was seen
	Reason string
}

func (e *FormatError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("tle: invalid record %q at line %d: %s", e.Name, e.Line, e.Reason)
	}
	return fmt.Sprintf("tle: invalid record at line %d: %s", e.Line, e.Reason)
}

// Exclusion records one rejected TLE entry and why it was rejected.
type Exclusion struct {
	Name   string
	Reason string
}
