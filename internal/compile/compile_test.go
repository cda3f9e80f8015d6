package compile

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/mirus/internal/mirbase"
	"github.com/inodb/mirus/internal/parser"
	"github.com/inodb/mirus/internal/snapshot"
	"github.com/inodb/mirus/internal/source"
	"github.com/inodb/mirus/internal/testrelease"
)

func fixtureOptions(t *testing.T) Options {
	t.Helper()
	root := t.TempDir()
	testrelease.Write(t, root)
	return Options{
		Version:  testrelease.Version,
		CacheDir: filepath.Join(t.TempDir(), "cache"),
		LogDir:   filepath.Join(t.TempDir(), "logs"),
		Source:   source.NewDir(root),
		Workers:  2,
	}
}

func TestCompileAndLoad(t *testing.T) {
	opts := fixtureOptions(t)

	stats, err := Compile(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Organisms)
	assert.Equal(t, 6, stats.Precursors)
	assert.Equal(t, 7, stats.MiRNAs)
	assert.Equal(t, parser.GenomeStats{Precursors: 5, MiRNAs: 7, Skipped: 1}, stats.Genomes)
	assert.Equal(t, 2, stats.MissingGenomes, "cbr and ebv have no genome table")
	assert.Equal(t, 2, stats.HighConfidence)
	assert.Equal(t, 6, stats.Structures)

	assert.True(t, snapshot.New(opts.CacheDir, opts.Version).Complete())

	store, err := Load(opts)
	require.NoError(t, err)
	assert.Equal(t, 6, store.PrecursorCount())
	assert.Equal(t, 7, store.MiRNACount())

	let7, ok := store.Precursor("MI0000001")
	require.True(t, ok)
	assert.True(t, let7.HighConfidence)
	assert.Equal(t, testrelease.LetSevenStructure, let7.Structure)
	assert.Equal(t, []string{"Metazoa", "Bilateria", "Ecdysozoa", "Nematoda"}, let7.Taxonomy)
	assert.Equal(t, []string{"X"}, let7.Chromosomes)
	assert.Equal(t, []string{"-"}, let7.Strands)
	assert.Equal(t, []mirbase.Interval{{Start: 100, End: 200}}, let7.Coordinates)

	lin4, _ := store.Precursor("MI0000002")
	assert.False(t, lin4.HighConfidence)
	assert.Equal(t, testrelease.SmallStructure, lin4.Structure)

	cbr, _ := store.Precursor("MI0000077")
	assert.Empty(t, cbr.Chromosomes, "no genome table for cbr")

	shared, ok := store.MiRNA("MIMAT0000062")
	require.True(t, ok)
	assert.Equal(t, []string{"MI0000060", "MI0000061"}, shared.Precursors)
	assert.Equal(t, []string{"chr9", "chr11"}, shared.Chromosomes)
	assert.Equal(t, map[string][]mirbase.Interval{
		"MI0000060": {{Start: 1005, End: 1026}},
		"MI0000061": {{Start: 2048, End: 2069}},
	}, shared.Placements)

	mir1, _ := store.MiRNA("MIMAT0000003")
	assert.Equal(t, []string{"not_experimental"}, mir1.Evidence)
	assert.Equal(t, []string{"-"}, mir1.Experiments)
	assert.Equal(t, []string{mirbase.End3p}, mir1.Ends)

	assert.Equal(t, []string{"MI0000001", "MI0000002", "MI0000003", "MI0000077"}, store.RankPrecursors("Nematoda"))
}

func TestCompile_SnapshotMeta(t *testing.T) {
	opts := fixtureOptions(t)
	_, err := Compile(context.Background(), opts)
	require.NoError(t, err)

	meta, err := snapshot.New(opts.CacheDir, opts.Version).Meta()
	require.NoError(t, err)
	assert.Equal(t, testrelease.Version, meta["version"])
	assert.Equal(t, "6", meta["precursors"])
}

func TestCompile_MissingFileWritesErrorLog(t *testing.T) {
	opts := fixtureOptions(t)
	root := opts.Source.(*source.Dir).Root
	require.NoError(t, os.Remove(filepath.Join(root, testrelease.Version, "miRNA.str.gz")))

	_, err := Compile(context.Background(), opts)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCompile)
	assert.ErrorIs(t, err, source.ErrNotFound)

	var stageErr *StageError
	require.True(t, errors.As(err, &stageErr))
	assert.Equal(t, StageStructures, stageErr.Stage)
	require.NotEmpty(t, stageErr.LogPath)

	data, err := os.ReadFile(stageErr.LogPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"stage":"structures"`)
	assert.True(t, strings.HasPrefix(filepath.Base(stageErr.LogPath), "error_"))

	assert.False(t, snapshot.New(opts.CacheDir, opts.Version).Complete(), "no snapshot after a failure")
}

func TestCompile_MalformedRecord(t *testing.T) {
	opts := fixtureOptions(t)
	opts.LogDir = ""
	root := opts.Source.(*source.Dir).Root
	path := filepath.Join(root, testrelease.Version, "miRNA.dat")
	require.NoError(t, os.Remove(path+".gz"))
	bad := strings.Replace(testrelease.Records, "17..38", "0..38", 1)
	require.NoError(t, os.WriteFile(path, []byte(bad), 0644))

	_, err := Compile(context.Background(), opts)
	assert.ErrorIs(t, err, ErrCompile)
	assert.ErrorIs(t, err, parser.ErrMalformed)

	var stageErr *StageError
	require.True(t, errors.As(err, &stageErr))
	assert.Equal(t, StageRecords, stageErr.Stage)
	assert.Empty(t, stageErr.LogPath)
}

func TestCompile_NoSource(t *testing.T) {
	_, err := Compile(context.Background(), Options{Version: "22.1"})
	assert.ErrorIs(t, err, ErrCompile)
}

func TestCompile_Cancelled(t *testing.T) {
	opts := fixtureOptions(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Compile(ctx, opts)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoad_MissingSnapshot(t *testing.T) {
	_, err := Load(Options{Version: "22.1", CacheDir: t.TempDir()})
	assert.ErrorIs(t, err, snapshot.ErrMissing)
}

func TestMerge_Integrity(t *testing.T) {
	build := func() *mirbase.Store {
		s := mirbase.NewStore()
		s.AddOrganism(mirbase.Organism{Abbreviation: "cel", Name: "Caenorhabditis elegans", Tree: "Metazoa;Nematoda;"})
		require.NoError(t, s.ApplyRecord(mirbase.Record{
			Name: "cel-lin-4", ID: "MI0000002", Organism: "Caenorhabditis elegans",
			Sequence: "augcuuccgg",
			Products: []mirbase.Product{{Position: mirbase.Interval{Start: 2, End: 5}, ID: "MIMAT0000002", Name: "cel-lin-4-5p"}},
		}))
		s.SetStructure("MI0000002", "..(..)....")
		return s
	}

	s := build()
	require.NoError(t, Merge(s))
	p, _ := s.Precursor("MI0000002")
	assert.Equal(t, []string{"Metazoa", "Nematoda"}, p.Taxonomy)
	assert.Equal(t, "..(..)....", p.Structure)

	s = build()
	s.AddHighConfidence("MI0009999")
	assert.ErrorIs(t, Merge(s), ErrIntegrity)

	s = mirbase.FromTables(&mirbase.Tables{
		Organisms:  build().Organisms(),
		Precursors: build().Precursors(),
	})
	assert.ErrorIs(t, Merge(s), ErrIntegrity, "missing structure")

	s = build()
	m, _ := s.MiRNA("MIMAT0000002")
	m.Precursors = append(m.Precursors, "MI0000404")
	assert.ErrorIs(t, Merge(s), ErrIntegrity)
}

func TestErrorLogPath(t *testing.T) {
	ts := time.Date(2026, 10, 19, 14, 3, 59, 0, time.UTC)
	assert.Equal(t, filepath.Join("logs", "error_10_19_2026-14_03_59.log"), ErrorLogPath("logs", ts))
}

func TestCollectGenomes_Order(t *testing.T) {
	results := make(chan genomeResult, 4)
	results <- genomeResult{Seq: 2, Abbr: "hsa"}
	results <- genomeResult{Seq: 0, Abbr: "cel"}
	results <- genomeResult{Seq: 3, Abbr: "ebv"}
	results <- genomeResult{Seq: 1, Abbr: "cbr"}
	close(results)

	var got []string
	require.NoError(t, collectGenomes(results, func(r genomeResult) error {
		got = append(got, r.Abbr)
		return nil
	}))
	assert.Equal(t, []string{"cel", "cbr", "hsa", "ebv"}, got)
}

func TestCollectGenomes_StopsOnError(t *testing.T) {
	results := make(chan genomeResult, 3)
	results <- genomeResult{Seq: 0, Abbr: "cel"}
	results <- genomeResult{Seq: 1, Abbr: "cbr", Err: errors.New("boom")}
	results <- genomeResult{Seq: 2, Abbr: "hsa"}
	close(results)

	var got []string
	err := collectGenomes(results, func(r genomeResult) error {
		got = append(got, r.Abbr)
		return r.Err
	})
	assert.EqualError(t, err, "boom")
	assert.Equal(t, []string{"cel", "cbr"}, got)
}

func TestFetchGenomes(t *testing.T) {
	opts := fixtureOptions(t)
	results := fetchGenomes(context.Background(), opts.Source, opts.Version, []string{"cel", "cbr", "hsa"}, 2)

	byAbbr := make(map[string]genomeResult)
	require.NoError(t, collectGenomes(results, func(r genomeResult) error {
		byAbbr[r.Abbr] = r
		return nil
	}))
	require.Len(t, byAbbr, 3)
	assert.Len(t, byAbbr["cel"].Features, 7)
	assert.True(t, byAbbr["cbr"].Missing)
	assert.Len(t, byAbbr["hsa"].Features, 6)
	assert.NoError(t, byAbbr["hsa"].Err)
}
