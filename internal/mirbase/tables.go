package mirbase

// Tables is the flat, serializable form of a Store. Each field is persisted
// as an independent snapshot unit.
type Tables struct {
	Organisms       []Organism
	Precursors      []*Precursor // insertion order
	PrecursorNames  map[string]string
	MiRNAs          []*MiRNA // insertion order
	MiRNANames      map[string]string
	OrganismAbbrevs map[string]string
	HighConfidence  []string
	Structures      map[string]string
	TaxonomyOfRank  map[string][]string
	OrganismsOfRank map[string][]string
}

// Tables exports the store. The returned value shares entity pointers with s.
func (s *Store) Tables() *Tables {
	return &Tables{
		Organisms:       s.organisms,
		Precursors:      s.Precursors(),
		PrecursorNames:  s.precNames,
		MiRNAs:          s.MiRNAs(),
		MiRNANames:      s.matNames,
		OrganismAbbrevs: s.orgAbbrev,
		HighConfidence:  s.highConf,
		Structures:      s.structures,
		TaxonomyOfRank:  s.taxonomyOfRank,
		OrganismsOfRank: s.organismsOfRank,
	}
}

// FromTables rebuilds a store from its exported tables.
func FromTables(t *Tables) *Store {
	s := NewStore()
	s.organisms = t.Organisms
	for _, p := range t.Precursors {
		s.ordinal[p.ID] = len(s.precOrder)
		s.precursors[p.ID] = p
		s.precOrder = append(s.precOrder, p.ID)
	}
	for _, m := range t.MiRNAs {
		s.matures[m.ID] = m
		s.matOrder = append(s.matOrder, m.ID)
	}
	s.precNames = orEmpty(t.PrecursorNames)
	s.matNames = orEmpty(t.MiRNANames)
	s.orgAbbrev = orEmpty(t.OrganismAbbrevs)
	s.highConf = t.HighConfidence
	s.structures = orEmpty(t.Structures)
	if t.TaxonomyOfRank != nil {
		s.taxonomyOfRank = t.TaxonomyOfRank
	}
	if t.OrganismsOfRank != nil {
		s.organismsOfRank = t.OrganismsOfRank
	}
	return s
}

func orEmpty(m map[string]string) map[string]string {
	if m == nil {
		return make(map[string]string)
	}
	return m
}
