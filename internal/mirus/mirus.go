// Package mirus is the entry point to a miRBase release: Open loads the
// cached snapshot of a version, compiling it from source once when the
// snapshot is missing or unreadable, and DB exposes the query surface.
package mirus

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/inodb/mirus/internal/compile"
	"github.com/inodb/mirus/internal/mirbase"
	"github.com/inodb/mirus/internal/query"
	"github.com/inodb/mirus/internal/source"
)

// DefaultVersion is the release opened when Options.Version is empty.
const DefaultVersion = "22.1"

// Options configures Open.
type Options struct {
	Version  string
	CacheDir string
	LogDir   string
	Source   source.Source
	Workers  int
	Logger   *zap.Logger
}

func (o Options) compileOptions() compile.Options {
	return compile.Options{
		Version:  o.Version,
		CacheDir: o.CacheDir,
		LogDir:   o.LogDir,
		Source:   o.Source,
		Workers:  o.Workers,
		Logger:   o.Logger,
	}
}

// DB answers queries against one loaded release. It is safe for concurrent
// use.
type DB struct {
	version  string
	engine   *query.Engine
	logger   *zap.Logger
	compiled *compile.Stats
}

// Open loads opts.Version from the snapshot cache. When the snapshot cannot
// be read the release is compiled from opts.Source and the load is retried
// once. Integrity failures of a readable snapshot are not recovered from.
func Open(ctx context.Context, opts Options) (*DB, error) {
	if opts.Version == "" {
		opts.Version = DefaultVersion
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	copts := opts.compileOptions()

	store, err := compile.Load(copts)
	var stats *compile.Stats
	if err != nil {
		if errors.Is(err, compile.ErrIntegrity) {
			return nil, fmt.Errorf("load %s: %w", opts.Version, err)
		}
		opts.Logger.Info("snapshot unavailable, compiling",
			zap.String("version", opts.Version),
			zap.String("reason", err.Error()))

		s, err := compile.Compile(ctx, copts)
		if err != nil {
			return nil, err
		}
		stats = &s
		store, err = compile.Load(copts)
		if err != nil {
			return nil, fmt.Errorf("load %s after compile: %w", opts.Version, err)
		}
	}
	db := New(opts.Version, store, opts.Logger)
	db.compiled = stats
	return db, nil
}

// New wraps an already merged store.
func New(version string, store *mirbase.Store, logger *zap.Logger) *DB {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := query.New(store)
	e.SetLogger(logger)
	return &DB{version: version, engine: e, logger: logger}
}

// Version returns the release version.
func (db *DB) Version() string { return db.version }

// Store returns the underlying entity model.
func (db *DB) Store() *mirbase.Store { return db.engine.Store() }

// Compiled returns the compile statistics when Open had to compile the
// release, or nil when it was loaded from cache.
func (db *DB) Compiled() *compile.Stats { return db.compiled }

// found logs the outcome of one query at debug level.
func (db *DB) found(op string, start time.Time, n int, ok bool) {
	elapsed := time.Since(start)
	if !ok {
		db.logger.Debug("no records matching given criteria",
			zap.String("op", op),
			zap.Duration("elapsed", elapsed))
		return
	}
	db.logger.Debug(fmt.Sprintf("found %d results in %.3fs", n, elapsed.Seconds()),
		zap.String("op", op))
}

// ListOrganisms returns every organism in file order.
func (db *DB) ListOrganisms() ([]mirbase.Organism, int, bool) {
	start := time.Now()
	out, n, ok := db.engine.Organisms()
	db.found("list_organisms", start, n, ok)
	return out, n, ok
}

// OrganismAbbreviations maps organism abbreviations to full names.
func (db *DB) OrganismAbbreviations() (map[string]string, int, bool) {
	start := time.Now()
	out, n, ok := db.engine.Abbreviations()
	db.found("organism_abbreviations", start, n, ok)
	return out, n, ok
}

// TaxonomyOf maps each known organism name to its taxonomy path.
func (db *DB) TaxonomyOf(names ...string) (map[string][]string, int, bool) {
	start := time.Now()
	out, n, ok := db.engine.TaxonomyOf(names)
	db.found("taxonomy_of", start, n, ok)
	return out, n, ok
}

// OrganismsAt returns the organisms whose taxonomy contains rank.
func (db *DB) OrganismsAt(rank string) ([]string, int, bool) {
	start := time.Now()
	out, n, ok := db.engine.OrganismsAt(rank)
	db.found("organisms_at", start, n, ok)
	return out, n, ok
}

// TaxIDOf maps each known organism name to its NCBI taxonomy id.
func (db *DB) TaxIDOf(names ...string) (map[string]string, int, bool) {
	start := time.Now()
	out, n, ok := db.engine.TaxIDOf(names)
	db.found("taxid_of", start, n, ok)
	return out, n, ok
}

// FindPrecursor searches precursors. A nil result with a nil error means
// nothing matched.
func (db *DB) FindPrecursor(c Criteria) (*query.Result[*mirbase.Precursor], error) {
	start := time.Now()
	filters, err := c.Filters()
	if err != nil {
		return nil, err
	}
	res, err := db.engine.Precursors(filters...)
	if err != nil {
		return nil, err
	}
	db.found("find_precursor", start, count(res), res != nil)
	return res, nil
}

// FindMiRNA searches mature miRNAs. A nil result with a nil error means
// nothing matched.
func (db *DB) FindMiRNA(c Criteria) (*query.Result[*mirbase.MiRNA], error) {
	start := time.Now()
	filters, err := c.Filters()
	if err != nil {
		return nil, err
	}
	res, err := db.engine.MiRNAs(filters...)
	if err != nil {
		return nil, err
	}
	db.found("find_mirna", start, count(res), res != nil)
	return res, nil
}

// References maps each lookup key to the references of the entity it names.
func (db *DB) References(q query.ReferenceQuery) (map[string][]string, int, bool) {
	start := time.Now()
	out, n, ok := db.engine.References(q)
	db.found("references", start, n, ok)
	return out, n, ok
}

// Structure maps precursor accessions and names to dot-bracket structures.
func (db *DB) Structure(ids, names []string) (map[string]string, int, bool) {
	start := time.Now()
	out, n, ok := db.engine.Structures(ids, names)
	db.found("structure", start, n, ok)
	return out, n, ok
}

// Cluster returns the precursors lying around an anchor.
func (db *DB) Cluster(q query.ClusterQuery) ([]*mirbase.Precursor, error) {
	start := time.Now()
	out, err := db.engine.Cluster(q)
	if err != nil {
		return nil, err
	}
	db.found("cluster", start, len(out), out != nil)
	return out, nil
}

// ClusterMiRNAs returns the mature miRNAs lying around an anchor.
func (db *DB) ClusterMiRNAs(q query.ClusterQuery) ([]*mirbase.MiRNA, error) {
	start := time.Now()
	out, err := db.engine.ClusterMiRNAs(q)
	if err != nil {
		return nil, err
	}
	db.found("cluster_mirnas", start, len(out), out != nil)
	return out, nil
}

// TaxonomyTree returns the taxonomy trie or the subtree at path, nil when
// path does not exist. The logged count is the node's child ranks plus the
// organisms ending at it.
func (db *DB) TaxonomyTree(path ...string) *query.TaxonNode {
	start := time.Now()
	n := db.engine.Tree(path...)
	size := 0
	if n != nil {
		size = len(n.Children) + len(n.Organisms)
	}
	db.found("taxonomy_tree", start, size, n != nil)
	return n
}

// HighConfidence keeps the entities backed by a high-confidence precursor.
func (db *DB) HighConfidence(entities ...mirbase.Entity) ([]mirbase.Entity, int, bool) {
	start := time.Now()
	out, n, ok := db.engine.HighConfidence(entities)
	db.found("high_confidence", start, n, ok)
	return out, n, ok
}

func count[T any](r *query.Result[T]) int {
	if r == nil {
		return 0
	}
	return r.Count
}
