package compile

import (
	"fmt"

	"github.com/inodb/mirus/internal/mirbase"
)

// Merge completes a freshly loaded store: it flags high-confidence
// precursors, attaches structures and assigns taxonomy paths, then validates
// the model. Every failure wraps ErrIntegrity.
func Merge(store *mirbase.Store) error {
	for _, id := range store.HighConfidenceIDs() {
		p, ok := store.Precursor(id)
		if !ok {
			return fmt.Errorf("%w: high-confidence precursor %s not found", ErrIntegrity, id)
		}
		p.MarkHighConfidence()
	}

	paths := make(map[string][]string, len(store.Organisms()))
	for _, o := range store.Organisms() {
		paths[o.Name] = o.Path()
	}

	for _, p := range store.Precursors() {
		st, ok := store.Structure(p.ID)
		if !ok {
			return fmt.Errorf("%w: no structure for precursor %s", ErrIntegrity, p.ID)
		}
		p.Structure = st

		path, ok := paths[p.Organism]
		if !ok {
			return fmt.Errorf("%w: precursor %s has unknown organism %q", ErrIntegrity, p.ID, p.Organism)
		}
		p.Taxonomy = path
	}

	if err := store.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrIntegrity, err)
	}
	return nil
}
