package query

import (
	"errors"
	"fmt"

	"github.com/inodb/mirus/internal/mirbase"
)

var (
	// ErrAnchor is returned when a cluster search does not name exactly one
	// known anchor.
	ErrAnchor = errors.New("cluster search needs exactly one anchor")
	// ErrNegativeRange is returned for a negative search range.
	ErrNegativeRange = errors.New("range cannot be negative")
	// ErrUnknownDirection is returned for an unrecognized search direction.
	ErrUnknownDirection = errors.New("unknown search direction")
)

// Direction selects which side of the anchor a cluster search covers.
type Direction string

// Search directions.
const (
	UpDownstream Direction = "up-downstream"
	Upstream     Direction = "upstream"
	Downstream   Direction = "downstream"
)

// ParseDirection validates a direction name. The empty string selects
// UpDownstream.
func ParseDirection(s string) (Direction, error) {
	switch d := Direction(s); d {
	case "":
		return UpDownstream, nil
	case UpDownstream, Upstream, Downstream:
		return d, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownDirection, s)
}

// ClusterQuery names the anchor of a cluster search, either a mature or a
// precursor accession, and the window around it.
type ClusterQuery struct {
	MiRNAID     string
	PrecursorID string
	Direction   Direction
	Range       int64
}

// window returns the search window centered on the start of one anchor
// placement. A zero range yields a single-point window that holds nothing.
func (q ClusterQuery) window(iv mirbase.Interval) Bounds {
	switch q.Direction {
	case Upstream:
		return Between(iv.Start, iv.Start+q.Range)
	case Downstream:
		return Between(iv.Start-q.Range, iv.Start)
	default:
		return Between(iv.Start-q.Range, iv.Start+q.Range)
	}
}

func (q *ClusterQuery) validate() error {
	if (q.MiRNAID == "") == (q.PrecursorID == "") {
		return ErrAnchor
	}
	if q.Range < 0 {
		return fmt.Errorf("%w: %d", ErrNegativeRange, q.Range)
	}
	d, err := ParseDirection(string(q.Direction))
	if err != nil {
		return err
	}
	q.Direction = d
	return nil
}

// anchorPrecursor resolves the precursor a search is centered on: the
// precursor itself, or the first owning precursor of the mature anchor.
func (e *Engine) anchorPrecursor(q ClusterQuery) (*mirbase.Precursor, error) {
	id := q.PrecursorID
	if q.MiRNAID != "" {
		m, ok := e.store.MiRNA(q.MiRNAID)
		if !ok || len(m.Precursors) == 0 {
			return nil, fmt.Errorf("%w: unknown mature %s", ErrAnchor, q.MiRNAID)
		}
		id = m.Precursors[0]
	}
	p, ok := e.store.Precursor(id)
	if !ok {
		return nil, fmt.Errorf("%w: unknown precursor %s", ErrAnchor, id)
	}
	return p, nil
}

func (e *Engine) buildIndexes() {
	e.indexOnce.Do(func() {
		e.precIndex = precursorIndexes(e.store)
		e.matIndex = matureIndexes(e.store)
	})
}

// Cluster returns the precursors of the anchor's organism lying inside the
// window around the start of any placement of the anchor precursor, in store
// order. The anchor itself is included when it fits the window. A nil slice
// with a nil error means nothing matched.
func (e *Engine) Cluster(q ClusterQuery) ([]*mirbase.Precursor, error) {
	if err := q.validate(); err != nil {
		return nil, err
	}
	anchor, err := e.anchorPrecursor(q)
	if err != nil {
		return nil, err
	}
	e.buildIndexes()

	windows := make([]Bounds, len(anchor.Coordinates))
	for i, iv := range anchor.Coordinates {
		windows[i] = q.window(iv)
	}
	out := e.precIndex[anchor.Organism].Within(windows...)
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

// ClusterMiRNAs returns the mature products of the anchor's organism whose
// genomic placements lie inside the window. A mature anchor is centered on
// the start of its own placements, a precursor anchor on the start of the
// precursor coordinates.
func (e *Engine) ClusterMiRNAs(q ClusterQuery) ([]*mirbase.MiRNA, error) {
	if err := q.validate(); err != nil {
		return nil, err
	}
	anchor, err := e.anchorPrecursor(q)
	if err != nil {
		return nil, err
	}
	e.buildIndexes()

	var windows []Bounds
	if q.MiRNAID != "" {
		m, _ := e.store.MiRNA(q.MiRNAID)
		m.EachPlacement(func(_ string, iv mirbase.Interval) bool {
			windows = append(windows, q.window(iv))
			return true
		})
	} else {
		for _, iv := range anchor.Coordinates {
			windows = append(windows, q.window(iv))
		}
	}
	out := e.matIndex[anchor.Organism].Within(windows...)
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}
