package parser

import (
	"fmt"
	"io"
	"strings"
)

const formatHighConf = "hairpin_high_conf.fa"

// ParseHighConfidence reads the FASTA headers of the high-confidence hairpin
// list and returns the precursor accessions in file order. Sequence lines are
// ignored.
//
// Headers look like:
// >cel-let-7 MI0000001 Caenorhabditis elegans let-7 stem-loop
func ParseHighConfidence(r io.Reader) ([]string, error) {
	scanner := newScanner(r)

	var ids []string
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		if !strings.HasPrefix(line, ">") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return nil, malformed(formatHighConf, lineNum, "header without accession")
		}
		ids = append(ids, fields[1])
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan %s: %w", formatHighConf, err)
	}
	return ids, nil
}
