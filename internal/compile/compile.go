// Package compile builds the miRBase entity model from source files,
// persists it as a snapshot and loads it back.
package compile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/inodb/mirus/internal/mirbase"
	"github.com/inodb/mirus/internal/parser"
	"github.com/inodb/mirus/internal/snapshot"
	"github.com/inodb/mirus/internal/source"
)

var (
	// ErrCompile wraps every failure of the compile path.
	ErrCompile = errors.New("cannot compile data files")
	// ErrIntegrity is returned by Merge when the loaded model is inconsistent.
	ErrIntegrity = errors.New("data integrity error")
)

// Compile stages, in execution order.
const (
	StageOrganisms      = "organisms"
	StageRecords        = "records"
	StageGenomes        = "genomes"
	StageHighConfidence = "high-confidence"
	StageStructures     = "structures"
	StageTaxonomy       = "taxonomy"
	StageSnapshot       = "snapshot"
)

// Options configures Compile and Load.
type Options struct {
	Version  string
	CacheDir string
	LogDir   string // error logs; empty disables them
	Source   source.Source
	Workers  int // genome fetch concurrency, 0 = NumCPU
	Logger   *zap.Logger
}

func (o Options) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}

// Stats summarizes a compile run.
type Stats struct {
	Organisms      int
	Precursors     int
	MiRNAs         int
	Genomes        parser.GenomeStats
	MissingGenomes int
	HighConfidence int
	Structures     int
	Duration       time.Duration
}

// StageError reports the compile stage that failed.
type StageError struct {
	Stage   string
	LogPath string // error log written for the failure, if any
	Err     error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%v: %s: %v", ErrCompile, e.Stage, e.Err)
}

func (e *StageError) Unwrap() []error { return []error{ErrCompile, e.Err} }

// Compile reads every source file of opts.Version, builds the entity model
// and writes it as a snapshot under opts.CacheDir. The merge pass is not run;
// Load does that.
func Compile(ctx context.Context, opts Options) (Stats, error) {
	if opts.Source == nil {
		return Stats{}, &StageError{Stage: StageOrganisms, Err: errors.New("no source configured")}
	}
	c := &compiler{opts: opts, logger: opts.logger(), store: mirbase.NewStore()}
	start := time.Now()

	steps := []struct {
		stage string
		run   func(context.Context) error
	}{
		{StageOrganisms, c.organisms},
		{StageRecords, c.records},
		{StageGenomes, c.genomes},
		{StageHighConfidence, c.highConfidence},
		{StageStructures, c.structures},
		{StageTaxonomy, c.taxonomy},
		{StageSnapshot, c.snapshot},
	}
	for _, step := range steps {
		t := time.Now()
		if err := step.run(ctx); err != nil {
			logPath := writeErrorLog(opts.LogDir, opts.Version, step.stage, err)
			c.logger.Error("compile failed",
				zap.String("stage", step.stage),
				zap.String("error_log", logPath),
				zap.Error(err))
			return c.stats, &StageError{Stage: step.stage, LogPath: logPath, Err: err}
		}
		c.logger.Debug("compile stage done",
			zap.String("stage", step.stage),
			zap.Duration("elapsed", time.Since(t)))
	}

	c.stats.Duration = time.Since(start)
	c.logger.Info("compiled snapshot",
		zap.String("version", opts.Version),
		zap.Int("precursors", c.stats.Precursors),
		zap.Int("mirnas", c.stats.MiRNAs),
		zap.Duration("elapsed", c.stats.Duration))
	return c.stats, nil
}

type compiler struct {
	opts   Options
	logger *zap.Logger
	store  *mirbase.Store
	stats  Stats
}

// open opens a release file; the caller closes it.
func (c *compiler) open(ctx context.Context, rel string) (io.ReadCloser, error) {
	rc, err := c.opts.Source.Open(ctx, c.opts.Version, rel)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", rel, err)
	}
	return rc, nil
}

func (c *compiler) organisms(ctx context.Context) error {
	rc, err := c.open(ctx, source.OrganismsFile)
	if err != nil {
		return err
	}
	defer rc.Close()

	orgs, err := parser.ParseOrganisms(rc)
	if err != nil {
		return err
	}
	for _, o := range orgs {
		c.store.AddOrganism(o)
	}
	c.stats.Organisms = len(orgs)
	return nil
}

func (c *compiler) records(ctx context.Context) error {
	rc, err := c.open(ctx, source.RecordsFile)
	if err != nil {
		return err
	}
	defer rc.Close()

	p := parser.NewDatParser(c.store.Abbreviations())
	if err := p.Parse(rc, c.store.ApplyRecord); err != nil {
		return err
	}
	c.stats.Precursors = c.store.PrecursorCount()
	c.stats.MiRNAs = c.store.MiRNACount()
	return nil
}

func (c *compiler) genomes(ctx context.Context) error {
	orgs := c.store.Organisms()
	abbrs := make([]string, len(orgs))
	for i, o := range orgs {
		abbrs[i] = o.Abbreviation
	}

	results := fetchGenomes(ctx, c.opts.Source, c.opts.Version, abbrs, c.opts.Workers)
	return collectGenomes(results, func(r genomeResult) error {
		if r.Err != nil {
			return r.Err
		}
		if r.Missing {
			c.stats.MissingGenomes++
			c.logger.Debug("no genome table", zap.String("organism", r.Abbr))
			return nil
		}
		stats := parser.ApplyGenome(c.store, r.Features)
		if stats.Skipped > 0 {
			c.logger.Debug("skipped genome features with unknown alias",
				zap.String("organism", r.Abbr),
				zap.Int("skipped", stats.Skipped))
		}
		c.stats.Genomes.Add(stats)
		return nil
	})
}

func (c *compiler) highConfidence(ctx context.Context) error {
	rc, err := c.open(ctx, source.HighConfidenceFile)
	if err != nil {
		return err
	}
	defer rc.Close()

	ids, err := parser.ParseHighConfidence(rc)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if _, ok := c.store.Precursor(id); !ok {
			return fmt.Errorf("high-confidence list names unknown precursor %s", id)
		}
		c.store.AddHighConfidence(id)
	}
	c.stats.HighConfidence = len(ids)
	return nil
}

func (c *compiler) structures(ctx context.Context) error {
	rc, err := c.open(ctx, source.StructuresFile)
	if err != nil {
		return err
	}
	defer rc.Close()

	p := parser.NewStructureParser(c.store.PrecursorIDByName)
	return p.Parse(rc, func(id, structure string) {
		c.store.SetStructure(id, structure)
		c.stats.Structures++
	})
}

func (c *compiler) taxonomy(context.Context) error {
	return c.store.BuildTaxonomyIndex()
}

func (c *compiler) snapshot(context.Context) error {
	snap := snapshot.New(c.opts.CacheDir, c.opts.Version)
	return snap.Write(c.store.Tables(), map[string]string{
		"version": c.opts.Version,
	})
}

// Load reads the snapshot of opts.Version and runs the merge pass over it.
func Load(opts Options) (*mirbase.Store, error) {
	snap := snapshot.New(opts.CacheDir, opts.Version)
	tables, err := snap.Read()
	if err != nil {
		return nil, err
	}
	store := mirbase.FromTables(tables)
	if err := Merge(store); err != nil {
		return nil, err
	}
	opts.logger().Debug("loaded snapshot",
		zap.String("dir", snap.Dir()),
		zap.Int("precursors", store.PrecursorCount()),
		zap.Int("mirnas", store.MiRNACount()))
	return store, nil
}
