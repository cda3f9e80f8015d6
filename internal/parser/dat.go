package parser

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/inodb/mirus/internal/mirbase"
)

const formatDat = "miRNA.dat"

// noExperiment is recorded for products without experimental evidence.
const noExperiment = "-"

type datState int

const (
	seekID datState = iota
	seekAC
	seekDE
	inReferences
	inFeatures
	inSequence
)

func (s datState) String() string {
	switch s {
	case seekID:
		return "ID"
	case seekAC:
		return "AC"
	case seekDE:
		return "DE"
	case inReferences:
		return "references"
	case inFeatures:
		return "features"
	case inSequence:
		return "sequence"
	}
	return "unknown"
}

// DatParser reads EMBL-style sequence records.
type DatParser struct {
	abbrevs map[string]string // abbreviation -> full organism name
}

// NewDatParser creates a parser that resolves record name prefixes through
// the given abbreviation map.
func NewDatParser(abbrevs map[string]string) *DatParser {
	return &DatParser{abbrevs: abbrevs}
}

// datRecord accumulates one record while the state machine runs.
type datRecord struct {
	rec mirbase.Record
	seq strings.Builder

	// product currently being filled, -1 before the first range line
	cur int
	// true while /experiment= continuation lines are expected
	inExperiment bool
}

// Parse reads every record from r and calls fn once per completed record,
// in file order.
func (p *DatParser) Parse(r io.Reader, fn func(mirbase.Record) error) error {
	scanner := newScanner(r)

	state := seekID
	var cur *datRecord
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimRight(scanner.Text(), "\r")

		switch state {
		case seekID:
			if !strings.HasPrefix(line, "ID") {
				continue
			}
			fields := strings.Fields(line)
			if len(fields) < 2 {
				return malformed(formatDat, lineNum, "ID line without name")
			}
			name := fields[1]
			abbr, _, _ := strings.Cut(name, "-")
			organism, ok := p.abbrevs[abbr]
			if !ok {
				return lineErr(formatDat, lineNum, fmt.Errorf("%w: %q in %s", ErrUnknownOrganism, abbr, name))
			}
			cur = &datRecord{cur: -1}
			cur.rec.Name = name
			cur.rec.Organism = organism
			state = seekAC

		case seekAC:
			if strings.HasPrefix(line, "//") || strings.HasPrefix(line, "ID") {
				return malformed(formatDat, lineNum, "record %s has no AC line", cur.rec.Name)
			}
			if !strings.HasPrefix(line, "AC") {
				continue
			}
			fields := strings.Fields(line)
			if len(fields) < 2 {
				return malformed(formatDat, lineNum, "AC line without accession")
			}
			cur.rec.ID = strings.TrimSuffix(fields[1], ";")
			state = seekDE

		case seekDE:
			if strings.HasPrefix(line, "//") || strings.HasPrefix(line, "ID") {
				return malformed(formatDat, lineNum, "record %s has no DE line", cur.rec.ID)
			}
			if strings.HasPrefix(line, "DE") {
				state = inReferences
			}

		case inReferences:
			switch {
			case strings.HasPrefix(line, "RX"):
				fields := strings.Fields(line)
				if len(fields) < 3 {
					return malformed(formatDat, lineNum, "RX line without accession")
				}
				cur.rec.References = append(cur.rec.References, strings.TrimRight(fields[2], ".;"))
			case strings.HasPrefix(line, "FT"):
				state = inFeatures
				if err := cur.feature(line, lineNum); err != nil {
					return err
				}
			case strings.HasPrefix(line, "SQ"):
				state = inSequence
			case strings.HasPrefix(line, "//"):
				return malformed(formatDat, lineNum, "record %s has no sequence", cur.rec.ID)
			}

		case inFeatures:
			switch {
			case strings.HasPrefix(line, "FT"):
				if err := cur.feature(line, lineNum); err != nil {
					return err
				}
			case strings.HasPrefix(line, "SQ"):
				cur.inExperiment = false
				state = inSequence
			case strings.HasPrefix(line, "//"):
				return malformed(formatDat, lineNum, "record %s has no sequence", cur.rec.ID)
			default:
				cur.inExperiment = false
			}

		case inSequence:
			if strings.HasPrefix(line, "//") {
				rec, err := cur.finish()
				if err != nil {
					return lineErr(formatDat, lineNum, err)
				}
				if err := fn(rec); err != nil {
					return err
				}
				cur = nil
				state = seekID
				continue
			}
			fields := strings.Fields(line)
			if len(fields) > 1 {
				// trailing token is the position counter
				for _, f := range fields[:len(fields)-1] {
					cur.seq.WriteString(f)
				}
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan %s: %w", formatDat, err)
	}
	if state != seekID {
		return lineErr(formatDat, lineNum, fmt.Errorf("%w: record %s in %s state", ErrTruncated, cur.rec.Name, state))
	}
	return nil
}

// feature handles one FT line of the feature table.
func (d *datRecord) feature(line string, lineNum int) error {
	fields := strings.Fields(line)
	if len(fields) >= 3 && fields[1] == "miRNA" && strings.Contains(fields[2], "..") {
		iv, err := parseRange(fields[2])
		if err != nil {
			return malformed(formatDat, lineNum, "%v", err)
		}
		d.rec.Products = append(d.rec.Products, mirbase.Product{Position: iv})
		d.cur = len(d.rec.Products) - 1
		d.inExperiment = false
		return nil
	}

	content := strings.TrimSpace(strings.TrimPrefix(line, "FT"))
	if content == "" {
		return nil
	}
	if !strings.HasPrefix(content, "/") {
		if d.inExperiment {
			prod := &d.rec.Products[d.cur]
			prod.Experiment += " " + unquote(content)
		}
		return nil
	}

	d.inExperiment = false
	key, value, ok := strings.Cut(content[1:], "=")
	if !ok {
		return nil
	}
	switch key {
	case "accession", "product", "evidence", "experiment":
	default:
		return nil
	}
	if d.cur < 0 {
		return malformed(formatDat, lineNum, "qualifier /%s before any miRNA range", key)
	}
	prod := &d.rec.Products[d.cur]
	value = unquote(value)
	switch key {
	case "accession":
		prod.ID = value
	case "product":
		prod.Name = value
	case "evidence":
		prod.Evidence = value
		if value != "experimental" {
			prod.Experiment = noExperiment
		}
	case "experiment":
		if prod.Evidence == "experimental" {
			prod.Experiment = value
			d.inExperiment = true
		}
	}
	return nil
}

func (d *datRecord) finish() (mirbase.Record, error) {
	d.rec.Sequence = d.seq.String()
	for i, prod := range d.rec.Products {
		if prod.ID == "" {
			return mirbase.Record{}, fmt.Errorf("%w: record %s product %d has no accession", ErrMalformed, d.rec.ID, i+1)
		}
		if _, err := mirbase.Subsequence(d.rec.Sequence, prod.Position); err != nil {
			return mirbase.Record{}, fmt.Errorf("%w: record %s product %s: %v", ErrMalformed, d.rec.ID, prod.ID, err)
		}
	}
	return d.rec, nil
}

// parseRange parses "start..end".
func parseRange(s string) (mirbase.Interval, error) {
	a, b, ok := strings.Cut(s, "..")
	if !ok {
		return mirbase.Interval{}, fmt.Errorf("range %q", s)
	}
	start, err := strconv.ParseInt(strings.TrimSpace(a), 10, 64)
	if err != nil {
		return mirbase.Interval{}, fmt.Errorf("range start %q: %w", a, err)
	}
	end, err := strconv.ParseInt(strings.TrimSpace(b), 10, 64)
	if err != nil {
		return mirbase.Interval{}, fmt.Errorf("range end %q: %w", b, err)
	}
	return mirbase.Interval{Start: start, End: end}, nil
}

func unquote(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, `"`, ""))
}
