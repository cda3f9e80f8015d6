package parser

import (
	"fmt"
	"io"
	"strings"

	"github.com/inodb/mirus/internal/mirbase"
)

const formatOrganisms = "organisms"

// ParseOrganisms reads the tab-delimited organism list.
//
// Columns are abbreviation, division, full name, taxonomy tree and an
// optional NCBI taxonomy id. Lines starting with '#' are comments.
func ParseOrganisms(r io.Reader) ([]mirbase.Organism, error) {
	scanner := newScanner(r)

	var organisms []mirbase.Organism
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Split(line, "\t")
		if len(fields) < 4 {
			return nil, malformed(formatOrganisms, lineNum, "expected at least 4 columns, got %d", len(fields))
		}
		o := mirbase.Organism{
			Abbreviation: fields[0],
			Division:     fields[1],
			Name:         fields[2],
			Tree:         fields[3],
		}
		if len(fields) > 4 {
			o.TaxID = strings.TrimRightFunc(fields[4], isSpace)
		}
		organisms = append(organisms, o)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan organisms: %w", err)
	}
	return organisms, nil
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}
