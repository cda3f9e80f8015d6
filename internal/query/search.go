package query

import (
	"github.com/inodb/mirus/internal/mirbase"
)

// collection adapts one entity kind of the store to the generic search.
type collection[T mirbase.Entity] interface {
	all() []T
	byIDs(ids []string) []T
	byNames(names []string) []T
	byRelated(ids []string) []T
	byTaxon(rank string) []T
	relatedBucket() string

	organismOf(e T) string
	chromosomesOf(e T) []string
	strandsOf(e T) []string
	eachInterval(e T, fn func(iv mirbase.Interval) bool)
}

// search evaluates every active bucket of p over c.
func search[T mirbase.Entity](c collection[T], p *Plan) []Bucket[T] {
	var buckets []Bucket[T]
	chained := p.Chained()
	if chained {
		buckets = append(buckets, Bucket[T]{Name: BucketGenomic, Items: chain(c, p)})
	}
	if len(p.ids) > 0 {
		buckets = append(buckets, Bucket[T]{Name: BucketID, Items: c.byIDs(p.ids)})
	}
	if len(p.related) > 0 {
		buckets = append(buckets, Bucket[T]{Name: c.relatedBucket(), Items: c.byRelated(p.related)})
	}
	if len(p.names) > 0 {
		buckets = append(buckets, Bucket[T]{Name: BucketName, Items: c.byNames(p.names)})
	}
	if !chained && p.organism != "" {
		buckets = append(buckets, Bucket[T]{Name: BucketOrganism, Items: filter(c.all(), func(e T) bool {
			return c.organismOf(e) == p.organism
		})})
	}
	if p.taxon != "" {
		buckets = append(buckets, Bucket[T]{Name: BucketTaxonomy, Items: c.byTaxon(p.taxon)})
	}
	if !chained && p.chromosome != "" {
		buckets = append(buckets, Bucket[T]{Name: BucketChromosome, Items: filter(c.all(), func(e T) bool {
			return contains(c.chromosomesOf(e), p.chromosome)
		})})
	}
	if !chained && p.strand != "" {
		buckets = append(buckets, Bucket[T]{Name: BucketStrand, Items: filter(c.all(), func(e T) bool {
			return contains(c.strandsOf(e), p.strand)
		})})
	}
	return buckets
}

// chain runs the genomic steps in order organism, chromosome, strand,
// bounds. The first step scans the whole collection; each later step
// narrows the previous step's list.
func chain[T mirbase.Entity](c collection[T], p *Plan) []T {
	var cur []T
	first := true
	step := func(keep func(T) bool) {
		src := cur
		if first {
			src = c.all()
			first = false
		}
		cur = filter(src, keep)
	}

	if p.organism != "" {
		step(func(e T) bool { return c.organismOf(e) == p.organism })
	}
	if p.chromosome != "" {
		step(func(e T) bool { return contains(c.chromosomesOf(e), p.chromosome) })
	}
	if p.strand != "" {
		step(func(e T) bool { return contains(c.strandsOf(e), p.strand) })
	}
	if !p.bounds.empty() {
		step(func(e T) bool {
			found := false
			c.eachInterval(e, func(iv mirbase.Interval) bool {
				found = p.bounds.Contains(iv.Start, iv.End)
				return !found
			})
			return found
		})
	}
	return cur
}

func filter[T any](src []T, keep func(T) bool) []T {
	out := make([]T, 0)
	for _, e := range src {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}

// collector appends entities once each, in first-seen order.
type collector[T mirbase.Entity] struct {
	items []T
	seen  map[string]bool
}

func newCollector[T mirbase.Entity]() *collector[T] {
	return &collector[T]{items: make([]T, 0), seen: make(map[string]bool)}
}

func (c *collector[T]) add(e T) {
	id := e.EntityID()
	if c.seen[id] {
		return
	}
	c.seen[id] = true
	c.items = append(c.items, e)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

type precursors struct{ store *mirbase.Store }

func (c precursors) all() []*mirbase.Precursor { return c.store.Precursors() }

func (c precursors) byIDs(ids []string) []*mirbase.Precursor {
	out := newCollector[*mirbase.Precursor]()
	for _, id := range ids {
		if p, ok := c.store.Precursor(id); ok {
			out.add(p)
		}
	}
	return out.items
}

func (c precursors) byNames(names []string) []*mirbase.Precursor {
	out := newCollector[*mirbase.Precursor]()
	for _, name := range names {
		if p, ok := c.store.PrecursorByName(name); ok {
			out.add(p)
		}
	}
	return out.items
}

func (c precursors) byRelated(matureIDs []string) []*mirbase.Precursor {
	out := newCollector[*mirbase.Precursor]()
	for _, mid := range matureIDs {
		m, ok := c.store.MiRNA(mid)
		if !ok {
			continue
		}
		for _, pid := range m.Precursors {
			if p, ok := c.store.Precursor(pid); ok {
				out.add(p)
			}
		}
	}
	return out.items
}

func (c precursors) byTaxon(rank string) []*mirbase.Precursor {
	return c.byIDs(c.store.RankPrecursors(rank))
}

func (precursors) relatedBucket() string { return BucketMiRNAID }

func (precursors) organismOf(p *mirbase.Precursor) string      { return p.Organism }
func (precursors) chromosomesOf(p *mirbase.Precursor) []string { return p.Chromosomes }
func (precursors) strandsOf(p *mirbase.Precursor) []string     { return p.Strands }

func (precursors) eachInterval(p *mirbase.Precursor, fn func(mirbase.Interval) bool) {
	for _, iv := range p.Coordinates {
		if !fn(iv) {
			return
		}
	}
}

type matures struct{ store *mirbase.Store }

func (c matures) all() []*mirbase.MiRNA { return c.store.MiRNAs() }

func (c matures) byIDs(ids []string) []*mirbase.MiRNA {
	out := newCollector[*mirbase.MiRNA]()
	for _, id := range ids {
		if m, ok := c.store.MiRNA(id); ok {
			out.add(m)
		}
	}
	return out.items
}

// byNames scans every mature; a name may be shared by several accessions.
func (c matures) byNames(names []string) []*mirbase.MiRNA {
	return filter(c.all(), func(m *mirbase.MiRNA) bool {
		for _, name := range names {
			if m.HasName(name) {
				return true
			}
		}
		return false
	})
}

func (c matures) byRelated(precursorIDs []string) []*mirbase.MiRNA {
	out := newCollector[*mirbase.MiRNA]()
	for _, pid := range precursorIDs {
		p, ok := c.store.Precursor(pid)
		if !ok {
			continue
		}
		for _, mid := range p.MiRNAs {
			if m, ok := c.store.MiRNA(mid); ok {
				out.add(m)
			}
		}
	}
	return out.items
}

func (c matures) byTaxon(rank string) []*mirbase.MiRNA {
	out := newCollector[*mirbase.MiRNA]()
	for _, pid := range c.store.RankPrecursors(rank) {
		p, ok := c.store.Precursor(pid)
		if !ok {
			continue
		}
		for _, mid := range p.MiRNAs {
			if m, ok := c.store.MiRNA(mid); ok {
				out.add(m)
			}
		}
	}
	return out.items
}

func (matures) relatedBucket() string { return BucketPrecursorID }

func (matures) organismOf(m *mirbase.MiRNA) string      { return m.Organism }
func (matures) chromosomesOf(m *mirbase.MiRNA) []string { return m.Chromosomes }
func (matures) strandsOf(m *mirbase.MiRNA) []string     { return m.Strands }

func (matures) eachInterval(m *mirbase.MiRNA, fn func(mirbase.Interval) bool) {
	m.EachPlacement(func(_ string, iv mirbase.Interval) bool {
		return fn(iv)
	})
}
