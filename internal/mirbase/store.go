package mirbase

import (
	"errors"
	"fmt"
	"sort"
)

// ErrInvariant is returned by Validate when the model is inconsistent.
var ErrInvariant = errors.New("entity model invariant violated")

// Product is one mature sub-record of a sequence record.
type Product struct {
	Position   Interval // 1-based inclusive on the precursor
	ID         string
	Name       string
	Evidence   string
	Experiment string
}

// Record is one fully parsed sequence-record entry.
type Record struct {
	Name       string
	ID         string
	Organism   string
	References []string
	Sequence   string
	Products   []Product
}

// Store owns every entity and index of one database version.
// It is mutated only while compiling or loading and is read-only afterwards.
type Store struct {
	organisms  []Organism
	orgAbbrev  map[string]string // abbreviation -> full name
	precursors map[string]*Precursor
	precOrder  []string
	precNames  map[string]string // display name -> accession
	matures    map[string]*MiRNA
	matOrder   []string
	matNames   map[string]string // mature name -> first accession seen
	highConf   []string
	structures map[string]string

	// rank -> precursor accessions, organism -> precursor accessions
	taxonomyOfRank  map[string][]string
	organismsOfRank map[string][]string

	ordinal map[string]int
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		orgAbbrev:       make(map[string]string),
		precursors:      make(map[string]*Precursor),
		precNames:       make(map[string]string),
		matures:         make(map[string]*MiRNA),
		matNames:        make(map[string]string),
		structures:      make(map[string]string),
		taxonomyOfRank:  make(map[string][]string),
		organismsOfRank: make(map[string][]string),
		ordinal:         make(map[string]int),
	}
}

// AddOrganism appends an organism and registers its abbreviation.
func (s *Store) AddOrganism(o Organism) {
	s.organisms = append(s.organisms, o)
	s.orgAbbrev[o.Abbreviation] = o.Name
}

// Organisms returns the organism list in file order.
func (s *Store) Organisms() []Organism {
	return s.organisms
}

// OrganismName resolves an abbreviation to the full latin name.
func (s *Store) OrganismName(abbr string) (string, bool) {
	name, ok := s.orgAbbrev[abbr]
	return name, ok
}

// Abbreviations returns a copy of the abbreviation -> full name map.
func (s *Store) Abbreviations() map[string]string {
	out := make(map[string]string, len(s.orgAbbrev))
	for k, v := range s.orgAbbrev {
		out[k] = v
	}
	return out
}

// ApplyRecord creates or updates the precursor and mature products described
// by a sequence record.
func (s *Store) ApplyRecord(r Record) error {
	p, ok := s.precursors[r.ID]
	if !ok {
		p = &Precursor{
			ID:         r.ID,
			Name:       r.Name,
			Sequence:   r.Sequence,
			Organism:   r.Organism,
			References: append([]string(nil), r.References...),
		}
		s.addPrecursor(p)
	}

	for _, prod := range r.Products {
		seq, err := Subsequence(r.Sequence, prod.Position)
		if err != nil {
			return fmt.Errorf("precursor %s product %s: %w", r.ID, prod.ID, err)
		}
		p.MiRNAs = appendUnique(p.MiRNAs, prod.ID)

		m, ok := s.matures[prod.ID]
		if !ok {
			m = &MiRNA{ID: prod.ID, Organism: r.Organism}
			s.matures[prod.ID] = m
			s.matOrder = append(s.matOrder, prod.ID)
		}
		if _, ok := s.matNames[prod.Name]; !ok {
			s.matNames[prod.Name] = prod.ID
		}
		m.Names = appendUnique(m.Names, prod.Name)
		m.Precursors = appendUnique(m.Precursors, r.ID)
		m.Sequences = append(m.Sequences, seq)
		m.Positions = append(m.Positions, prod.Position)
		m.Evidence = append(m.Evidence, prod.Evidence)
		m.Experiments = append(m.Experiments, prod.Experiment)
		m.Ends = append(m.Ends, ArmEnd(prod.Name))
		for _, ref := range r.References {
			m.References = appendUnique(m.References, ref)
		}
	}
	return nil
}

func (s *Store) addPrecursor(p *Precursor) {
	s.ordinal[p.ID] = len(s.precOrder)
	s.precursors[p.ID] = p
	s.precOrder = append(s.precOrder, p.ID)
	s.precNames[p.Name] = p.ID
}

// Subsequence slices seq by a 1-based inclusive position range. The end is
// clamped to the sequence length.
func Subsequence(seq string, pos Interval) (string, error) {
	if pos.Start < 1 || pos.End < pos.Start {
		return "", fmt.Errorf("invalid position %d..%d", pos.Start, pos.End)
	}
	start := pos.Start - 1
	end := pos.End
	if start > int64(len(seq)) {
		start = int64(len(seq))
	}
	if end > int64(len(seq)) {
		end = int64(len(seq))
	}
	return seq[start:end], nil
}

// Precursor returns the precursor with the given accession.
func (s *Store) Precursor(id string) (*Precursor, bool) {
	p, ok := s.precursors[id]
	return p, ok
}

// PrecursorIDByName resolves a precursor display name.
func (s *Store) PrecursorIDByName(name string) (string, bool) {
	id, ok := s.precNames[name]
	return id, ok
}

// PrecursorByName returns the precursor with the given display name.
func (s *Store) PrecursorByName(name string) (*Precursor, bool) {
	id, ok := s.precNames[name]
	if !ok {
		return nil, false
	}
	return s.Precursor(id)
}

// Precursors returns all precursors in insertion order.
func (s *Store) Precursors() []*Precursor {
	out := make([]*Precursor, 0, len(s.precOrder))
	for _, id := range s.precOrder {
		out = append(out, s.precursors[id])
	}
	return out
}

// PrecursorCount returns the number of precursors.
func (s *Store) PrecursorCount() int { return len(s.precOrder) }

// Ordinal returns the insertion index of a precursor, or -1.
func (s *Store) Ordinal(id string) int {
	if i, ok := s.ordinal[id]; ok {
		return i
	}
	return -1
}

// MiRNA returns the mature product with the given accession.
func (s *Store) MiRNA(id string) (*MiRNA, bool) {
	m, ok := s.matures[id]
	return m, ok
}

// MiRNAIDByName resolves a mature name to the first accession registered
// under it.
func (s *Store) MiRNAIDByName(name string) (string, bool) {
	id, ok := s.matNames[name]
	return id, ok
}

// MiRNAs returns all mature products in insertion order.
func (s *Store) MiRNAs() []*MiRNA {
	out := make([]*MiRNA, 0, len(s.matOrder))
	for _, id := range s.matOrder {
		out = append(out, s.matures[id])
	}
	return out
}

// MiRNACount returns the number of mature products.
func (s *Store) MiRNACount() int { return len(s.matOrder) }

// AddHighConfidence records a high-confidence precursor accession.
func (s *Store) AddHighConfidence(id string) {
	s.highConf = append(s.highConf, id)
}

// HighConfidenceIDs returns the cached high-confidence accessions.
func (s *Store) HighConfidenceIDs() []string { return s.highConf }

// SetStructure stores the dot-bracket structure of a precursor.
func (s *Store) SetStructure(id, structure string) {
	s.structures[id] = structure
}

// Structure returns the cached structure of a precursor.
func (s *Store) Structure(id string) (string, bool) {
	st, ok := s.structures[id]
	return st, ok
}

// BuildTaxonomyIndex derives the rank and organism multimaps from the
// precursors and the organism list.
func (s *Store) BuildTaxonomyIndex() error {
	paths := make(map[string][]string, len(s.organisms))
	for _, o := range s.organisms {
		paths[o.Name] = o.Path()
	}
	s.taxonomyOfRank = make(map[string][]string)
	s.organismsOfRank = make(map[string][]string)
	for _, id := range s.precOrder {
		p := s.precursors[id]
		path, ok := paths[p.Organism]
		if !ok {
			return fmt.Errorf("precursor %s: unknown organism %q", id, p.Organism)
		}
		s.organismsOfRank[p.Organism] = append(s.organismsOfRank[p.Organism], id)
		for _, rank := range path {
			s.taxonomyOfRank[rank] = appendUnique(s.taxonomyOfRank[rank], id)
		}
	}
	return nil
}

// RankPrecursors returns the precursors classified under a taxonomy rank.
func (s *Store) RankPrecursors(rank string) []string {
	return s.taxonomyOfRank[rank]
}

// OrganismPrecursors returns the precursors of one organism in store order.
func (s *Store) OrganismPrecursors(organism string) []string {
	return s.organismsOfRank[organism]
}

// Validate checks referential integrity and index alignment.
func (s *Store) Validate() error {
	for _, id := range s.precOrder {
		p := s.precursors[id]
		for _, mid := range p.MiRNAs {
			m, ok := s.matures[mid]
			if !ok {
				return fmt.Errorf("%w: precursor %s references unknown mature %s", ErrInvariant, id, mid)
			}
			if !contains(m.Precursors, id) {
				return fmt.Errorf("%w: mature %s does not list precursor %s", ErrInvariant, mid, id)
			}
		}
		if len(p.Chromosomes) != len(p.Strands) || len(p.Strands) != len(p.Coordinates) {
			return fmt.Errorf("%w: precursor %s placements are not aligned", ErrInvariant, id)
		}
	}
	for _, id := range s.matOrder {
		m := s.matures[id]
		for _, pid := range m.Precursors {
			p, ok := s.precursors[pid]
			if !ok {
				return fmt.Errorf("%w: mature %s references unknown precursor %s", ErrInvariant, id, pid)
			}
			if !p.HasMiRNA(id) {
				return fmt.Errorf("%w: precursor %s does not list mature %s", ErrInvariant, pid, id)
			}
		}
		n := m.PlacementCount()
		if len(m.Chromosomes) != n || len(m.Strands) != n {
			return fmt.Errorf("%w: mature %s placements are not aligned", ErrInvariant, id)
		}
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
