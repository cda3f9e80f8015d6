// Package query resolves lookups against a frozen miRBase store: the
// multi-criteria entity search, reference and structure lookups, the
// taxonomy tree and the genomic cluster search.
package query

import (
	"sync"

	"go.uber.org/zap"

	"github.com/inodb/mirus/internal/mirbase"
)

// Engine answers read-only queries. It is safe for concurrent use once the
// store is frozen.
type Engine struct {
	store  *mirbase.Store
	logger *zap.Logger

	treeOnce sync.Once
	tree     *TaxonNode

	indexOnce sync.Once
	precIndex map[string]*intervalIndex[*mirbase.Precursor]
	matIndex  map[string]*intervalIndex[*mirbase.MiRNA]
}

// New creates an engine over store.
func New(store *mirbase.Store) *Engine {
	return &Engine{
		store:  store,
		logger: zap.NewNop(),
	}
}

// SetLogger sets the logger for contradiction warnings.
func (e *Engine) SetLogger(l *zap.Logger) {
	e.logger = l
}

// Store returns the underlying store.
func (e *Engine) Store() *mirbase.Store { return e.store }

// Organisms returns the organism list.
func (e *Engine) Organisms() ([]mirbase.Organism, int, bool) {
	orgs := e.store.Organisms()
	return orgs, len(orgs), len(orgs) > 0
}

// Abbreviations returns the abbreviation to full name map.
func (e *Engine) Abbreviations() (map[string]string, int, bool) {
	m := e.store.Abbreviations()
	return m, len(m), len(m) > 0
}

// TaxonomyOf maps each known organism name to its taxonomy path. Unknown
// names are skipped.
func (e *Engine) TaxonomyOf(names []string) (map[string][]string, int, bool) {
	paths := make(map[string][]string, len(e.store.Organisms()))
	for _, o := range e.store.Organisms() {
		paths[o.Name] = o.Path()
	}
	out := make(map[string][]string)
	for _, name := range names {
		if path, ok := paths[name]; ok {
			out[name] = path
		}
	}
	return out, len(out), len(out) > 0
}

// OrganismsAt returns the names of organisms whose taxonomy contains rank,
// in organism list order.
func (e *Engine) OrganismsAt(rank string) ([]string, int, bool) {
	var out []string
	for _, o := range e.store.Organisms() {
		if contains(o.Path(), rank) {
			out = append(out, o.Name)
		}
	}
	return out, len(out), len(out) > 0
}

// TaxIDOf maps each known organism name to its NCBI taxonomy id. Organisms
// without an id map to the empty string.
func (e *Engine) TaxIDOf(names []string) (map[string]string, int, bool) {
	ids := make(map[string]string, len(e.store.Organisms()))
	for _, o := range e.store.Organisms() {
		ids[o.Name] = o.TaxID
	}
	out := make(map[string]string)
	for _, name := range names {
		if id, ok := ids[name]; ok {
			out[name] = id
		}
	}
	return out, len(out), len(out) > 0
}

// Precursors runs the multi-criteria search over precursors. A nil result
// with a nil error means nothing matched.
func (e *Engine) Precursors(filters ...Filter) (*Result[*mirbase.Precursor], error) {
	plan, err := NewPlan(filters...)
	if err != nil {
		return nil, err
	}
	buckets := search[*mirbase.Precursor](precursors{e.store}, plan)
	return finish(e, "precursor", buckets), nil
}

// MiRNAs runs the multi-criteria search over mature products.
func (e *Engine) MiRNAs(filters ...Filter) (*Result[*mirbase.MiRNA], error) {
	plan, err := NewPlan(filters...)
	if err != nil {
		return nil, err
	}
	buckets := search[*mirbase.MiRNA](matures{e.store}, plan)
	return finish(e, "mirna", buckets), nil
}

func finish[T any](e *Engine, kind string, buckets []Bucket[T]) *Result[T] {
	res := newResult(buckets)
	if res == nil || !res.Contradicting() {
		return res
	}
	fields := []zap.Field{zap.String("kind", kind)}
	for _, b := range res.Buckets {
		fields = append(fields, zap.Int(b.Name, len(b.Items)))
	}
	e.logger.Warn("contradicting search criteria, results are split by search type", fields...)
	return res
}

// ReferenceQuery selects entities whose references are listed.
type ReferenceQuery struct {
	MiRNAIDs       []string
	MiRNANames     []string
	PrecursorIDs   []string
	PrecursorNames []string
	Link           bool // format references as PubMed URLs
}

// References maps each lookup key to the references of the entity it names.
// Mature names shared by several accessions collect the union. Unknown keys
// are skipped.
func (e *Engine) References(q ReferenceQuery) (map[string][]string, int, bool) {
	out := make(map[string][]string)
	add := func(key string, refs []string) {
		for _, ref := range refs {
			if q.Link {
				ref = mirbase.PubMedURL(ref)
			}
			if !contains(out[key], ref) {
				out[key] = append(out[key], ref)
			}
		}
	}

	for _, id := range q.MiRNAIDs {
		if m, ok := e.store.MiRNA(id); ok {
			add(id, m.References)
		}
	}
	for _, name := range q.MiRNANames {
		for _, m := range e.store.MiRNAs() {
			if m.HasName(name) {
				add(name, m.References)
			}
		}
	}
	for _, id := range q.PrecursorIDs {
		if p, ok := e.store.Precursor(id); ok {
			add(id, p.References)
		}
	}
	for _, name := range q.PrecursorNames {
		if p, ok := e.store.PrecursorByName(name); ok {
			add(name, p.References)
		}
	}
	return out, len(out), len(out) > 0
}

// Structures maps each precursor accession or name to its dot-bracket
// structure. Unknown keys are skipped.
func (e *Engine) Structures(ids, names []string) (map[string]string, int, bool) {
	out := make(map[string]string)
	for _, id := range ids {
		if p, ok := e.store.Precursor(id); ok {
			out[id] = p.Structure
		}
	}
	for _, name := range names {
		if p, ok := e.store.PrecursorByName(name); ok {
			out[name] = p.Structure
		}
	}
	return out, len(out), len(out) > 0
}

// HighConfidence returns the entities flagged high-confidence, deduplicated
// and in input order. A mature qualifies when any owning precursor is
// flagged.
func (e *Engine) HighConfidence(entities []mirbase.Entity) ([]mirbase.Entity, int, bool) {
	var out []mirbase.Entity
	seen := make(map[string]bool)
	for _, ent := range entities {
		if ent == nil || seen[ent.EntityID()] || !e.isHighConfidence(ent) {
			continue
		}
		seen[ent.EntityID()] = true
		out = append(out, ent)
	}
	return out, len(out), len(out) > 0
}

func (e *Engine) isHighConfidence(ent mirbase.Entity) bool {
	switch v := ent.(type) {
	case *mirbase.Precursor:
		return v.HighConfidence
	case *mirbase.MiRNA:
		for _, pid := range v.Precursors {
			if p, ok := e.store.Precursor(pid); ok && p.HighConfidence {
				return true
			}
		}
	}
	return false
}
