package query

import (
	"sort"

	"github.com/inodb/mirus/internal/mirbase"
)

// intervalIndex answers window containment queries over the genomic
// placements of one organism using a slice sorted by start.
// It is built once and never modified.
type intervalIndex[T mirbase.Entity] struct {
	entries []indexEntry[T]
}

type indexEntry[T mirbase.Entity] struct {
	start   int64
	end     int64
	ordinal int // store order of the entity
	entity  T
}

// buildIntervalIndex sorts entries by start, keeping store order among
// equal starts.
func buildIntervalIndex[T mirbase.Entity](entries []indexEntry[T]) *intervalIndex[T] {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].start < entries[j].start
	})
	return &intervalIndex[T]{entries: entries}
}

// Within returns every entity with a placement inside any of the windows,
// deduplicated and in store order.
func (x *intervalIndex[T]) Within(windows ...Bounds) []T {
	if x == nil || len(x.entries) == 0 {
		return nil
	}

	var hits []indexEntry[T]
	seen := make(map[string]bool)
	for _, w := range windows {
		// candidates start in [w.start, w.end)
		lo := sort.Search(len(x.entries), func(i int) bool {
			return x.entries[i].start >= w.start
		})
		for i := lo; i < len(x.entries); i++ {
			e := x.entries[i]
			if e.start >= w.end {
				break
			}
			if !w.Contains(e.start, e.end) {
				continue
			}
			id := e.entity.EntityID()
			if seen[id] {
				continue
			}
			seen[id] = true
			hits = append(hits, e)
		}
	}

	sort.Slice(hits, func(i, j int) bool {
		return hits[i].ordinal < hits[j].ordinal
	})
	out := make([]T, len(hits))
	for i, h := range hits {
		out[i] = h.entity
	}
	return out
}

// precursorIndexes builds one index per organism over precursor coordinates.
func precursorIndexes(store *mirbase.Store) map[string]*intervalIndex[*mirbase.Precursor] {
	byOrg := make(map[string][]indexEntry[*mirbase.Precursor])
	for i, p := range store.Precursors() {
		for _, iv := range p.Coordinates {
			byOrg[p.Organism] = append(byOrg[p.Organism], indexEntry[*mirbase.Precursor]{
				start: iv.Start, end: iv.End, ordinal: i, entity: p,
			})
		}
	}
	out := make(map[string]*intervalIndex[*mirbase.Precursor], len(byOrg))
	for org, entries := range byOrg {
		out[org] = buildIntervalIndex(entries)
	}
	return out
}

// matureIndexes builds one index per organism over mature placements.
func matureIndexes(store *mirbase.Store) map[string]*intervalIndex[*mirbase.MiRNA] {
	byOrg := make(map[string][]indexEntry[*mirbase.MiRNA])
	for i, m := range store.MiRNAs() {
		m.EachPlacement(func(_ string, iv mirbase.Interval) bool {
			byOrg[m.Organism] = append(byOrg[m.Organism], indexEntry[*mirbase.MiRNA]{
				start: iv.Start, end: iv.End, ordinal: i, entity: m,
			})
			return true
		})
	}
	out := make(map[string]*intervalIndex[*mirbase.MiRNA], len(byOrg))
	for org, entries := range byOrg {
		out[org] = buildIntervalIndex(entries)
	}
	return out
}
