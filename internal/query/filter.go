package query

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrInvalidCoordinates is returned for negative or inverted bounds.
	ErrInvalidCoordinates = errors.New("invalid coordinates")
	// ErrInvalidStrand is returned for strands other than "+" and "-".
	ErrInvalidStrand = errors.New("invalid strand")
	// ErrDuplicateFilter is returned when one filter kind is supplied twice.
	ErrDuplicateFilter = errors.New("duplicate filter")
)

type filterKind int

const (
	kindIDs filterKind = iota
	kindNames
	kindRelated
	kindTaxon
	kindOrganism
	kindChromosome
	kindStrand
	kindBounds
)

func (k filterKind) String() string {
	switch k {
	case kindIDs:
		return "ids"
	case kindNames:
		return "names"
	case kindRelated:
		return "related"
	case kindTaxon:
		return "taxon"
	case kindOrganism:
		return "organism"
	case kindChromosome:
		return "chromosome"
	case kindStrand:
		return "strand"
	case kindBounds:
		return "bounds"
	}
	return "unknown"
}

// Filter is one search criterion. The set of filters is closed; see IDs,
// Names, Related, Taxon, Organism, Chromosome, Strand and Bounds.
type Filter interface {
	kind() filterKind
	empty() bool
}

// IDs selects entities by accession.
type IDs []string

// Names selects entities by display name.
type Names []string

// Related selects entities through the other entity kind: mature accessions
// when searching precursors, precursor accessions when searching matures.
type Related []string

// Taxon selects entities whose taxonomy path contains a rank.
type Taxon string

// Organism selects entities of one organism, by full name.
type Organism string

// Chromosome selects entities placed on a chromosome.
type Chromosome string

// Strand selects entities placed on a strand, "+" or "-".
type Strand string

func (IDs) kind() filterKind        { return kindIDs }
func (Names) kind() filterKind      { return kindNames }
func (Related) kind() filterKind    { return kindRelated }
func (Taxon) kind() filterKind      { return kindTaxon }
func (Organism) kind() filterKind   { return kindOrganism }
func (Chromosome) kind() filterKind { return kindChromosome }
func (Strand) kind() filterKind     { return kindStrand }
func (Bounds) kind() filterKind     { return kindBounds }

func (f IDs) empty() bool        { return len(f) == 0 }
func (f Names) empty() bool      { return len(f) == 0 }
func (f Related) empty() bool    { return len(f) == 0 }
func (f Taxon) empty() bool      { return f == "" }
func (f Organism) empty() bool   { return f == "" }
func (f Chromosome) empty() bool { return f == "" }
func (f Strand) empty() bool     { return f == "" }
func (f Bounds) empty() bool     { return !f.hasStart && !f.hasEnd }

// Bounds restricts genomic placements to a window. Build it with Between,
// From or Until.
type Bounds struct {
	start, end       int64
	hasStart, hasEnd bool
}

// Between matches placements inside [start, end].
func Between(start, end int64) Bounds {
	return Bounds{start: start, end: end, hasStart: true, hasEnd: true}
}

// From matches placements starting at or after start.
func From(start int64) Bounds {
	return Bounds{start: start, hasStart: true}
}

// Until matches placements ending at or before end.
func Until(end int64) Bounds {
	return Bounds{end: end, hasEnd: true}
}

// ParseBounds builds Bounds from optional textual coordinates. Empty strings
// leave that side open.
func ParseBounds(start, end string) (Bounds, error) {
	var b Bounds
	if s := strings.TrimSpace(start); s != "" {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return Bounds{}, fmt.Errorf("%w: start %q", ErrInvalidCoordinates, start)
		}
		b.start, b.hasStart = v, true
	}
	if s := strings.TrimSpace(end); s != "" {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return Bounds{}, fmt.Errorf("%w: end %q", ErrInvalidCoordinates, end)
		}
		b.end, b.hasEnd = v, true
	}
	return b, b.validate()
}

func (b Bounds) validate() error {
	if b.hasStart && b.start < 0 {
		return fmt.Errorf("%w: start %d is negative", ErrInvalidCoordinates, b.start)
	}
	if b.hasEnd && b.end < 0 {
		return fmt.Errorf("%w: end %d is negative", ErrInvalidCoordinates, b.end)
	}
	if b.hasStart && b.hasEnd && b.start >= b.end {
		return fmt.Errorf("%w: start %d must be lower than end %d", ErrInvalidCoordinates, b.start, b.end)
	}
	return nil
}

// Contains reports whether the closed interval (fStart, fStop) lies inside
// the bounds. With both sides set the test is s <= fStart < e and
// s < fStop <= e.
func (b Bounds) Contains(fStart, fStop int64) bool {
	switch {
	case b.hasStart && b.hasEnd:
		return b.start <= fStart && fStart < b.end && b.start < fStop && fStop <= b.end
	case b.hasStart:
		return b.start <= fStart
	case b.hasEnd:
		return b.end >= fStop
	}
	return false
}

func (b Bounds) String() string {
	s, e := "", ""
	if b.hasStart {
		s = strconv.FormatInt(b.start, 10)
	}
	if b.hasEnd {
		e = strconv.FormatInt(b.end, 10)
	}
	return "[" + s + ", " + e + "]"
}

// Plan is a validated set of filters, split into the composable genomic
// chain and standalone buckets.
type Plan struct {
	ids        []string
	names      []string
	related    []string
	taxon      string
	organism   string
	chromosome string
	strand     string
	bounds     Bounds
}

// NewPlan validates filters. Empty filters are ignored, so callers may pass
// every flag they collected.
func NewPlan(filters ...Filter) (*Plan, error) {
	p := &Plan{}
	seen := make(map[filterKind]bool, len(filters))
	for _, f := range filters {
		if f == nil || f.empty() {
			continue
		}
		k := f.kind()
		if seen[k] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateFilter, k)
		}
		seen[k] = true

		switch f := f.(type) {
		case IDs:
			p.ids = f
		case Names:
			p.names = f
		case Related:
			p.related = f
		case Taxon:
			p.taxon = string(f)
		case Organism:
			p.organism = string(f)
		case Chromosome:
			p.chromosome = string(f)
		case Strand:
			if f != "+" && f != "-" {
				return nil, fmt.Errorf("%w: %q", ErrInvalidStrand, string(f))
			}
			p.strand = string(f)
		case Bounds:
			if err := f.validate(); err != nil {
				return nil, err
			}
			p.bounds = f
		}
	}
	return p, nil
}

// Chained reports whether the genomic filters compose into one chain:
// bounds are given, or the organism is combined with a chromosome or strand.
func (p *Plan) Chained() bool {
	if !p.bounds.empty() {
		return true
	}
	return p.organism != "" && (p.chromosome != "" || p.strand != "")
}

// Empty reports whether the plan has no filters at all.
func (p *Plan) Empty() bool {
	return len(p.ids) == 0 && len(p.names) == 0 && len(p.related) == 0 &&
		p.taxon == "" && p.organism == "" && p.chromosome == "" && p.strand == "" &&
		p.bounds.empty()
}
