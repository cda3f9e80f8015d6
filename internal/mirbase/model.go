// Package mirbase provides the miRBase entity model: organisms, precursor
// hairpins and the mature miRNAs excised from them.
package mirbase

import (
	"fmt"
	"strings"
)

// TaxonomySeparator separates ranks in an organism's tree column.
const TaxonomySeparator = ";"

// Arm-end tags for mature products.
const (
	End5p   = "5p"
	End3p   = "3p"
	EndNone = "-"
)

// Interval is a closed (start, end) coordinate pair.
type Interval struct {
	Start int64
	End   int64
}

func (iv Interval) String() string {
	return fmt.Sprintf("(%d, %d)", iv.Start, iv.End)
}

// Organism is a single row of the organism list.
type Organism struct {
	Abbreviation string // e.g. "hsa"
	Division     string // e.g. "HSA"
	Name         string // full latin name, e.g. "Homo sapiens"
	Tree         string // semicolon-delimited taxonomy, trailing separator included
	TaxID        string // NCBI taxonomy id, empty when unknown
}

// Path returns the organism's taxonomy ranks root to leaf.
func (o Organism) Path() []string {
	tree := strings.TrimRight(o.Tree, TaxonomySeparator)
	if tree == "" {
		return nil
	}
	return strings.Split(tree, TaxonomySeparator)
}

// Entity is implemented by *Precursor and *MiRNA.
type Entity interface {
	EntityID() string
}

// Precursor is a miRNA hairpin precursor (stem-loop).
type Precursor struct {
	ID             string // accession, e.g. "MI0000001"
	Name           string // display name, e.g. "cel-let-7"
	Sequence       string
	Structure      string // dot-bracket, assigned during merge
	Chromosomes    []string
	Strands        []string
	Coordinates    []Interval
	Organism       string   // full latin name
	Taxonomy       []string // assigned during merge
	MiRNAs         []string // mature accessions
	HighConfidence bool
	References     []string // PubMed ids
}

// EntityID returns the precursor accession.
func (p *Precursor) EntityID() string { return p.ID }

// HasMiRNA reports whether the mature accession is affiliated with p.
func (p *Precursor) HasMiRNA(id string) bool {
	return contains(p.MiRNAs, id)
}

// AddPlacement appends one genome placement, keeping chromosome, strand
// and coordinate lists index-aligned.
func (p *Precursor) AddPlacement(chrom, strand string, iv Interval) {
	p.Chromosomes = append(p.Chromosomes, chrom)
	p.Strands = append(p.Strands, strand)
	p.Coordinates = append(p.Coordinates, iv)
}

// MarkHighConfidence flags the precursor. The flag is never cleared.
func (p *Precursor) MarkHighConfidence() {
	p.HighConfidence = true
}

// MiRNA is a mature product. The same mature accession may be excised from
// several precursors; per-placement fields are index-aligned with Precursors.
type MiRNA struct {
	ID          string // accession, e.g. "MIMAT0000001"
	Names       []string
	Precursors  []string
	Organism    string
	Sequences   []string
	Positions   []Interval // 1-based inclusive positions on the precursor
	Evidence    []string
	Experiments []string
	Ends        []string
	Chromosomes []string
	Strands     []string
	Placements  map[string][]Interval // precursor accession -> genomic intervals
	References  []string
}

// EntityID returns the mature accession.
func (m *MiRNA) EntityID() string { return m.ID }

// HasName reports whether name is one of the mature's names.
func (m *MiRNA) HasName(name string) bool {
	return contains(m.Names, name)
}

// AddPlacement records a genomic placement derived from precursor prec.
func (m *MiRNA) AddPlacement(prec, chrom, strand string, iv Interval) {
	if m.Placements == nil {
		m.Placements = make(map[string][]Interval)
	}
	m.Chromosomes = append(m.Chromosomes, chrom)
	m.Strands = append(m.Strands, strand)
	m.Placements[prec] = append(m.Placements[prec], iv)
}

// PlacementCount returns the flattened length of Placements.
func (m *MiRNA) PlacementCount() int {
	n := 0
	for _, ivs := range m.Placements {
		n += len(ivs)
	}
	return n
}

// EachPlacement calls fn for every genomic interval in a stable order:
// owning precursors in Precursors order first, then any remaining keys sorted.
func (m *MiRNA) EachPlacement(fn func(prec string, iv Interval) bool) {
	seen := make(map[string]bool, len(m.Placements))
	for _, prec := range m.Precursors {
		if seen[prec] {
			continue
		}
		seen[prec] = true
		for _, iv := range m.Placements[prec] {
			if !fn(prec, iv) {
				return
			}
		}
	}
	for _, prec := range sortedKeys(m.Placements) {
		if seen[prec] {
			continue
		}
		for _, iv := range m.Placements[prec] {
			if !fn(prec, iv) {
				return
			}
		}
	}
}

// ArmEnd derives the arm-end tag from a mature product name.
func ArmEnd(name string) string {
	switch {
	case strings.Contains(name, End5p):
		return End5p
	case strings.Contains(name, End3p):
		return End3p
	default:
		return EndNone
	}
}

// PubMedURL formats a PubMed accession as a canonical link.
func PubMedURL(ref string) string {
	return "https://pubmed.ncbi.nlm.nih.gov/" + ref + "/"
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// appendUnique appends s unless already present.
func appendUnique(list []string, s string) []string {
	if contains(list, s) {
		return list
	}
	return append(list, s)
}
