package query

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/mirus/internal/compile"
	"github.com/inodb/mirus/internal/mirbase"
	"github.com/inodb/mirus/internal/source"
	"github.com/inodb/mirus/internal/testrelease"
)

const (
	celegans = "Caenorhabditis elegans"
	human    = "Homo sapiens"
)

func fixtureEngine(t *testing.T) *Engine {
	t.Helper()
	root := t.TempDir()
	testrelease.Write(t, root)
	opts := compile.Options{
		Version:  testrelease.Version,
		CacheDir: t.TempDir(),
		Source:   source.NewDir(root),
	}
	_, err := compile.Compile(context.Background(), opts)
	require.NoError(t, err)
	store, err := compile.Load(opts)
	require.NoError(t, err)
	return New(store)
}

func ids[T mirbase.Entity](items []T) []string {
	out := make([]string, len(items))
	for i, e := range items {
		out[i] = e.EntityID()
	}
	return out
}

func TestOrganismLookups(t *testing.T) {
	e := fixtureEngine(t)

	orgs, n, ok := e.Organisms()
	require.True(t, ok)
	assert.Equal(t, 4, n)
	assert.Equal(t, "cel", orgs[0].Abbreviation)

	abbrevs, n, ok := e.Abbreviations()
	require.True(t, ok)
	assert.Equal(t, 4, n)
	assert.Equal(t, human, abbrevs["hsa"])

	tax, n, ok := e.TaxonomyOf([]string{human, "Nowhere"})
	require.True(t, ok)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"Metazoa", "Bilateria", "Deuterostoma", "Chordata", "Vertebrata", "Mammalia", "Primates", "Hominidae"}, tax[human])

	_, _, ok = e.TaxonomyOf([]string{"Nowhere"})
	assert.False(t, ok)

	names, n, ok := e.OrganismsAt("Nematoda")
	require.True(t, ok)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{celegans, "Caenorhabditis briggsae"}, names)

	_, _, ok = e.OrganismsAt("Fungi")
	assert.False(t, ok)

	taxids, n, ok := e.TaxIDOf([]string{"Epstein Barr Virus", human})
	require.True(t, ok)
	assert.Equal(t, 2, n)
	assert.Equal(t, map[string]string{"Epstein Barr Virus": "", human: "9606"}, taxids)
}

func TestPrecursors_GenomicChain(t *testing.T) {
	e := fixtureEngine(t)

	tests := []struct {
		name    string
		filters []Filter
		want    []string
	}{
		{"organism and chromosome", []Filter{Organism(celegans), Chromosome("X")}, []string{"MI0000001", "MI0000002"}},
		{"organism chromosome strand", []Filter{Organism(celegans), Chromosome("X"), Strand("+")}, []string{"MI0000002"}},
		{"organism and bounds", []Filter{Organism(celegans), Between(100, 250)}, []string{"MI0000001", "MI0000002"}},
		{"bounds alone", []Filter{Between(100, 200)}, []string{"MI0000001"}},
		{"start only", []Filter{From(1000)}, []string{"MI0000060", "MI0000061"}},
		{"end only", []Filter{Until(250)}, []string{"MI0000001", "MI0000002"}},
		{"organism and strand", []Filter{Organism(human), Strand("-")}, []string{"MI0000061"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := e.Precursors(tt.filters...)
			require.NoError(t, err)
			require.NotNil(t, res)
			assert.False(t, res.Contradicting())
			assert.Equal(t, tt.want, ids(res.Items))
			assert.Equal(t, len(tt.want), res.Count)

			items, ok := res.Bucket(BucketGenomic)
			require.True(t, ok)
			assert.Equal(t, tt.want, ids(items))
		})
	}
}

func TestPrecursors_StandaloneBuckets(t *testing.T) {
	e := fixtureEngine(t)

	tests := []struct {
		name   string
		filter Filter
		bucket string
		want   []string
	}{
		{"ids skip unknown and repeats", IDs{"MI0000002", "MI9999999", "MI0000002"}, BucketID, []string{"MI0000002"}},
		{"names", Names{"cel-mir-1", "hsa-let-7a-2"}, BucketName, []string{"MI0000003", "MI0000061"}},
		{"related matures", Related{"MIMAT0000062"}, BucketMiRNAID, []string{"MI0000060", "MI0000061"}},
		{"taxon", Taxon("Nematoda"), BucketTaxonomy, []string{"MI0000001", "MI0000002", "MI0000003", "MI0000077"}},
		{"organism alone", Organism(celegans), BucketOrganism, []string{"MI0000001", "MI0000002", "MI0000003"}},
		{"chromosome alone", Chromosome("X"), BucketChromosome, []string{"MI0000001", "MI0000002"}},
		{"strand alone", Strand("-"), BucketStrand, []string{"MI0000001", "MI0000061"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := e.Precursors(tt.filter)
			require.NoError(t, err)
			require.NotNil(t, res)
			assert.Equal(t, tt.want, ids(res.Items))
			items, ok := res.Bucket(tt.bucket)
			require.True(t, ok)
			assert.Equal(t, tt.want, ids(items))
		})
	}
}

func TestPrecursors_Contradiction(t *testing.T) {
	e := fixtureEngine(t)

	res, err := e.Precursors(Names{"hsa-let-7a-1"}, Organism(celegans), Chromosome("X"))
	require.NoError(t, err)
	require.NotNil(t, res)
	require.True(t, res.Contradicting())
	assert.Nil(t, res.Items)
	assert.Len(t, res.Buckets, 2)
	assert.Equal(t, 3, res.Count)

	genomic, ok := res.Bucket(BucketGenomic)
	require.True(t, ok)
	alone, err := e.Precursors(Organism(celegans), Chromosome("X"))
	require.NoError(t, err)
	assert.Equal(t, ids(alone.Items), ids(genomic))

	byName, ok := res.Bucket(BucketName)
	require.True(t, ok)
	alone, err = e.Precursors(Names{"hsa-let-7a-1"})
	require.NoError(t, err)
	assert.Equal(t, ids(alone.Items), ids(byName))

	v, ok := res.Value().(map[string][]*mirbase.Precursor)
	require.True(t, ok)
	assert.Len(t, v, 2)
	assert.Len(t, res.All(), 3)
}

func TestPrecursors_ContradictionKeepsEmptyBuckets(t *testing.T) {
	e := fixtureEngine(t)

	res, err := e.Precursors(IDs{"MI0000001"}, Taxon("Primates"), Names{"nope"})
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Len(t, res.Buckets, 3)
	assert.Equal(t, 3, res.Count)
	empty, ok := res.Bucket(BucketName)
	require.True(t, ok)
	assert.Empty(t, empty)
}

func TestPrecursors_NoMatch(t *testing.T) {
	e := fixtureEngine(t)

	res, err := e.Precursors(Organism("Nowhere"))
	require.NoError(t, err)
	assert.Nil(t, res)

	res, err = e.Precursors(Organism(celegans), Chromosome("chr1"))
	require.NoError(t, err)
	assert.Nil(t, res)

	res, err = e.Precursors()
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestPrecursors_InvalidInput(t *testing.T) {
	e := fixtureEngine(t)

	tests := []struct {
		name    string
		filters []Filter
		wantErr error
	}{
		{"bad strand", []Filter{Strand("x")}, ErrInvalidStrand},
		{"inverted bounds", []Filter{Between(200, 100)}, ErrInvalidCoordinates},
		{"equal bounds", []Filter{Between(100, 100)}, ErrInvalidCoordinates},
		{"negative start", []Filter{From(-1)}, ErrInvalidCoordinates},
		{"negative end", []Filter{Until(-5)}, ErrInvalidCoordinates},
		{"duplicate", []Filter{Organism(celegans), Organism(human)}, ErrDuplicateFilter},
		{"bad strand aborts other buckets", []Filter{IDs{"MI0000001"}, Strand("*")}, ErrInvalidStrand},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := e.Precursors(tt.filters...)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, res)
		})
	}
}

func TestMiRNAs(t *testing.T) {
	e := fixtureEngine(t)

	tests := []struct {
		name    string
		filters []Filter
		bucket  string
		want    []string
	}{
		{"name shared by two precursors", []Filter{Names{"hsa-let-7a-5p"}}, BucketName, []string{"MIMAT0000062"}},
		{"related precursor", []Filter{Related{"MI0000001"}}, BucketPrecursorID, []string{"MIMAT0000001", "MIMAT0015091"}},
		{"organism and chromosome", []Filter{Organism(human), Chromosome("chr11")}, BucketGenomic, []string{"MIMAT0000062"}},
		{"organism and strand", []Filter{Organism(human), Strand("+")}, BucketGenomic, []string{"MIMAT0000062", "MIMAT0004481"}},
		{"bounds", []Filter{Between(1000, 1100)}, BucketGenomic, []string{"MIMAT0000062", "MIMAT0004481"}},
		{"bounds on second placement", []Filter{Between(2000, 2100)}, BucketGenomic, []string{"MIMAT0000062"}},
		{"taxon", []Filter{Taxon("Primates")}, BucketTaxonomy, []string{"MIMAT0000062", "MIMAT0004481"}},
		{"ids", []Filter{IDs{"MIMAT0000070"}}, BucketID, []string{"MIMAT0000070"}},
		{"organism alone", []Filter{Organism("Caenorhabditis briggsae")}, BucketOrganism, []string{"MIMAT0000070"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := e.MiRNAs(tt.filters...)
			require.NoError(t, err)
			require.NotNil(t, res)
			assert.Equal(t, tt.want, ids(res.Items))
			items, ok := res.Bucket(tt.bucket)
			require.True(t, ok)
			assert.Equal(t, tt.want, ids(items))
		})
	}
}

func TestReferences(t *testing.T) {
	e := fixtureEngine(t)

	refs, n, ok := e.References(ReferenceQuery{
		MiRNAIDs:       []string{"MIMAT0000001", "MIMAT9999999"},
		MiRNANames:     []string{"hsa-let-7a-5p"},
		PrecursorNames: []string{"cel-lin-4"},
	})
	require.True(t, ok)
	assert.Equal(t, 3, n)
	assert.Equal(t, []string{"11679671", "12672692"}, refs["MIMAT0000001"])
	assert.Equal(t, []string{"12554859", "15937218"}, refs["hsa-let-7a-5p"])
	assert.Equal(t, []string{"8252621"}, refs["cel-lin-4"])

	refs, _, ok = e.References(ReferenceQuery{PrecursorIDs: []string{"MI0000002"}, Link: true})
	require.True(t, ok)
	assert.Equal(t, []string{"https://pubmed.ncbi.nlm.nih.gov/8252621/"}, refs["MI0000002"])

	_, _, ok = e.References(ReferenceQuery{PrecursorIDs: []string{"MI9999999"}})
	assert.False(t, ok)
}

func TestStructures(t *testing.T) {
	e := fixtureEngine(t)

	st, n, ok := e.Structures([]string{"MI0000001", "MI9999999"}, []string{"cel-lin-4"})
	require.True(t, ok)
	assert.Equal(t, 2, n)
	assert.Equal(t, testrelease.LetSevenStructure, st["MI0000001"])
	assert.Equal(t, testrelease.SmallStructure, st["cel-lin-4"])

	_, _, ok = e.Structures(nil, []string{"nope"})
	assert.False(t, ok)
}

func TestHighConfidence(t *testing.T) {
	e := fixtureEngine(t)
	store := e.Store()

	get := func(id string) mirbase.Entity {
		if p, ok := store.Precursor(id); ok {
			return p
		}
		m, ok := store.MiRNA(id)
		require.True(t, ok, id)
		return m
	}

	in := []mirbase.Entity{get("MI0000001"), get("MI0000002"), get("MIMAT0000062"), get("MIMAT0000002"), get("MI0000001")}
	out, n, ok := e.HighConfidence(in)
	require.True(t, ok)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"MI0000001", "MIMAT0000062"}, ids(out))

	_, _, ok = e.HighConfidence([]mirbase.Entity{get("MI0000003")})
	assert.False(t, ok)
}

func TestTree(t *testing.T) {
	e := fixtureEngine(t)

	root := e.Tree()
	require.NotNil(t, root)
	assert.Equal(t, []string{"Metazoa", "Viruses"}, root.Ranks())

	leaf := e.Tree("Metazoa", "Bilateria", "Ecdysozoa", "Nematoda")
	require.NotNil(t, leaf)
	assert.Equal(t, []string{"Caenorhabditis briggsae", "Caenorhabditis elegans"}, leaf.Organisms)

	assert.Nil(t, e.Tree("Metazoa", "Fungi"))
	assert.Empty(t, e.Tree("Metazoa").Organisms)

	data, err := json.Marshal(e.Tree("Viruses"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"!organism": ["Epstein Barr Virus"]}`, string(data))
}

func TestTree_Concurrent(t *testing.T) {
	e := fixtureEngine(t)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NotNil(t, e.Tree("Metazoa"))
			got, err := e.Cluster(ClusterQuery{PrecursorID: "MI0000001", Range: 100})
			assert.NoError(t, err)
			assert.Len(t, got, 2)
		}()
	}
	wg.Wait()
}
