// Package parser reads the miRBase flat-file formats: the organism list,
// the EMBL-style sequence records, the high-confidence FASTA list, the
// secondary-structure dump and the per-organism GFF3 genome tables.
package parser

import (
	"bufio"
	"errors"
	"fmt"
	"io"
)

var (
	// ErrMalformed marks a line that does not have the expected shape.
	ErrMalformed = errors.New("malformed line")
	// ErrUnknownOrganism is returned when a record name prefix is not in the
	// organism abbreviation map.
	ErrUnknownOrganism = errors.New("unknown organism abbreviation")
	// ErrUnknownPrecursor is returned when a structure stanza names a
	// precursor that was never parsed.
	ErrUnknownPrecursor = errors.New("unknown precursor name")
	// ErrTruncated is returned when input ends inside a record.
	ErrTruncated = errors.New("unexpected end of input")
)

// LineError reports a parse failure at a specific line.
type LineError struct {
	Format string
	Line   int
	Err    error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("%s line %d: %v", e.Format, e.Line, e.Err)
}

func (e *LineError) Unwrap() error { return e.Err }

func lineErr(format string, line int, err error) error {
	return &LineError{Format: format, Line: line, Err: err}
}

func malformed(format string, line int, msg string, args ...any) error {
	return lineErr(format, line, fmt.Errorf("%w: "+msg, append([]any{ErrMalformed}, args...)...))
}

// newScanner returns a line scanner with room for long sequence lines.
func newScanner(r io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(r)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)
	return scanner
}
