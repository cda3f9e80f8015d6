package parser

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/inodb/mirus/internal/mirbase"
)

const formatGenome = "gff3"

// GFF3 feature types carried by the genome tables.
const (
	FeaturePrimaryTranscript = "miRNA_primary_transcript"
	FeatureMiRNA             = "miRNA"
)

// Feature is one relevant line of a per-organism GFF3 table.
type Feature struct {
	Type        string
	Chromosome  string
	Strand      string
	Interval    mirbase.Interval
	ID          string
	Alias       string
	Name        string
	DerivesFrom string
}

// GenomeStats counts what ApplyGenome did.
type GenomeStats struct {
	Precursors int // precursor placements added
	MiRNAs     int // mature placements added
	Skipped    int // features whose alias matched no entity
}

// Add accumulates other into s.
func (s *GenomeStats) Add(other GenomeStats) {
	s.Precursors += other.Precursors
	s.MiRNAs += other.MiRNAs
	s.Skipped += other.Skipped
}

// ParseGenome reads a GFF3 genome table and returns its precursor and mature
// features in file order. Other feature types are dropped.
func ParseGenome(r io.Reader) ([]Feature, error) {
	scanner := newScanner(r)

	var features []Feature
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Split(line, "\t")
		if len(fields) < 9 {
			return nil, malformed(formatGenome, lineNum, "expected 9 columns, got %d", len(fields))
		}
		typ := fields[2]
		if typ != FeaturePrimaryTranscript && typ != FeatureMiRNA {
			continue
		}
		start, err := strconv.ParseInt(strings.TrimSpace(fields[3]), 10, 64)
		if err != nil {
			return nil, malformed(formatGenome, lineNum, "start %q", fields[3])
		}
		end, err := strconv.ParseInt(strings.TrimSpace(fields[4]), 10, 64)
		if err != nil {
			return nil, malformed(formatGenome, lineNum, "end %q", fields[4])
		}

		attrs := parseAttributes(fields[8])
		features = append(features, Feature{
			Type:        typ,
			Chromosome:  fields[0],
			Strand:      fields[6],
			Interval:    mirbase.Interval{Start: start, End: end},
			ID:          attrs["ID"],
			Alias:       attrs["Alias"],
			Name:        attrs["Name"],
			DerivesFrom: attrs["Derives_from"],
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan %s: %w", formatGenome, err)
	}
	return features, nil
}

// ApplyGenome attaches genome placements to the precursors and matures named
// by each feature's Alias. Features that match no entity are skipped.
func ApplyGenome(store *mirbase.Store, features []Feature) GenomeStats {
	var stats GenomeStats
	for _, f := range features {
		switch f.Type {
		case FeaturePrimaryTranscript:
			p, ok := store.Precursor(f.Alias)
			if !ok {
				stats.Skipped++
				continue
			}
			p.AddPlacement(f.Chromosome, f.Strand, f.Interval)
			stats.Precursors++
		case FeatureMiRNA:
			m, ok := store.MiRNA(f.Alias)
			if !ok || f.DerivesFrom == "" {
				stats.Skipped++
				continue
			}
			m.AddPlacement(f.DerivesFrom, f.Chromosome, f.Strand, f.Interval)
			stats.MiRNAs++
		}
	}
	return stats
}

// parseAttributes parses the GFF3 attribute column (key=value;key=value).
func parseAttributes(s string) map[string]string {
	attrs := make(map[string]string)
	for _, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, value, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		attrs[key] = value
	}
	return attrs
}
