package mirus

import (
	"github.com/inodb/mirus/internal/query"
)

// Criteria holds the parameters of a precursor or mature search. Empty
// fields are ignored. Start and End are decimal coordinates as typed by a
// user and are validated together.
type Criteria struct {
	IDs        []string
	Names      []string
	Related    []string // accessions of the other entity kind
	Taxon      string
	Organism   string
	Chromosome string
	Strand     string
	Start      string
	End        string
}

// Filters converts the criteria into query filters.
func (c Criteria) Filters() ([]query.Filter, error) {
	bounds, err := query.ParseBounds(c.Start, c.End)
	if err != nil {
		return nil, err
	}
	return []query.Filter{
		query.IDs(c.IDs),
		query.Names(c.Names),
		query.Related(c.Related),
		query.Taxon(c.Taxon),
		query.Organism(c.Organism),
		query.Chromosome(c.Chromosome),
		query.Strand(c.Strand),
		bounds,
	}, nil
}
