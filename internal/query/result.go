package query

// Bucket names of the multi-criteria search.
const (
	BucketGenomic     = "genomic-search"
	BucketID          = "id-search"
	BucketName        = "name-search"
	BucketMiRNAID     = "mirna-id-search"
	BucketPrecursorID = "precursor-id-search"
	BucketTaxonomy    = "taxonomy-search"
	BucketOrganism    = "organism-search"
	BucketChromosome  = "chromosome-search"
	BucketStrand      = "strand-search"
)

// Bucket is one independently evaluated filter result.
type Bucket[T any] struct {
	Name  string
	Items []T
}

// Result is the outcome of a search. With one bucket, Items holds its list.
// With several, the criteria contradict each other: Buckets holds every
// bucket by name and Items is nil.
type Result[T any] struct {
	Items   []T
	Buckets []Bucket[T]
	Count   int
}

// Contradicting reports whether the result holds several buckets.
func (r *Result[T]) Contradicting() bool {
	return len(r.Buckets) > 1
}

// Bucket returns the named bucket's items.
func (r *Result[T]) Bucket(name string) ([]T, bool) {
	for _, b := range r.Buckets {
		if b.Name == name {
			return b.Items, true
		}
	}
	return nil, false
}

// All returns every item of every bucket, in bucket order. Items present in
// several buckets are repeated.
func (r *Result[T]) All() []T {
	if !r.Contradicting() {
		return r.Items
	}
	var out []T
	for _, b := range r.Buckets {
		out = append(out, b.Items...)
	}
	return out
}

// Value returns the list, or a map of bucket name to list when the result
// is contradicting. Encoders use it for output.
func (r *Result[T]) Value() any {
	if !r.Contradicting() {
		return r.Items
	}
	m := make(map[string][]T, len(r.Buckets))
	for _, b := range r.Buckets {
		m[b.Name] = b.Items
	}
	return m
}

// newResult folds evaluated buckets into a Result, or nil when nothing
// matched.
func newResult[T any](buckets []Bucket[T]) *Result[T] {
	count := 0
	for _, b := range buckets {
		count += len(b.Items)
	}
	if count == 0 {
		return nil
	}
	if len(buckets) == 1 {
		return &Result[T]{Items: buckets[0].Items, Buckets: buckets, Count: count}
	}
	return &Result[T]{Buckets: buckets, Count: count}
}
