package snapshot

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/mirus/internal/mirbase"
)

func testStore(t *testing.T) *mirbase.Store {
	t.Helper()
	s := mirbase.NewStore()
	s.AddOrganism(mirbase.Organism{Abbreviation: "cel", Division: "CEL", Name: "Caenorhabditis elegans", Tree: "Metazoa;Nematoda;", TaxID: "6239"})
	require.NoError(t, s.ApplyRecord(mirbase.Record{
		Name:       "cel-let-7",
		ID:         "MI0000001",
		Organism:   "Caenorhabditis elegans",
		References: []string{"11679671"},
		Sequence:   "uacacuguggauccggugagguaguagguuguauaguuuggaau",
		Products: []mirbase.Product{
			{Position: mirbase.Interval{Start: 17, End: 38}, ID: "MIMAT0000001", Name: "cel-let-7-5p", Evidence: "experimental", Experiment: "cloned [1]"},
		},
	}))
	p, _ := s.Precursor("MI0000001")
	p.AddPlacement("X", "-", mirbase.Interval{Start: 14744263, End: 14744361})
	m, _ := s.MiRNA("MIMAT0000001")
	m.AddPlacement("MI0000001", "X", "-", mirbase.Interval{Start: 14744324, End: 14744345})
	s.AddHighConfidence("MI0000001")
	s.SetStructure("MI0000001", "((..))")
	require.NoError(t, s.BuildTaxonomyIndex())
	return s
}

func TestWriteRead(t *testing.T) {
	snap := New(t.TempDir(), "22.1")
	assert.False(t, snap.Complete())

	store := testStore(t)
	require.NoError(t, snap.Write(store.Tables(), map[string]string{"version": "22.1"}))
	assert.True(t, snap.Complete())

	tables, err := snap.Read()
	require.NoError(t, err)
	got := mirbase.FromTables(tables)

	assert.Equal(t, store.Organisms(), got.Organisms())
	assert.Equal(t, 1, got.PrecursorCount())
	assert.Equal(t, 1, got.MiRNACount())

	p, ok := got.Precursor("MI0000001")
	require.True(t, ok)
	assert.Equal(t, "cel-let-7", p.Name)
	assert.Equal(t, []mirbase.Interval{{Start: 14744263, End: 14744361}}, p.Coordinates)
	assert.Equal(t, []string{"MIMAT0000001"}, p.MiRNAs)

	m, ok := got.MiRNA("MIMAT0000001")
	require.True(t, ok)
	assert.Equal(t, []string{"ugagguaguagguuguauaguu"}, m.Sequences)
	assert.Equal(t, []mirbase.Interval{{Start: 14744324, End: 14744345}}, m.Placements["MI0000001"])

	id, ok := got.MiRNAIDByName("cel-let-7-5p")
	require.True(t, ok)
	assert.Equal(t, "MIMAT0000001", id)
	assert.Equal(t, []string{"MI0000001"}, got.HighConfidenceIDs())
	assert.Equal(t, []string{"MI0000001"}, got.RankPrecursors("Nematoda"))
	require.NoError(t, got.Validate())

	meta, err := snap.Meta()
	require.NoError(t, err)
	assert.Equal(t, "22.1", meta["version"])
	assert.Equal(t, "1", meta["precursors"])
}

func TestRead_MissingUnit(t *testing.T) {
	snap := New(t.TempDir(), "22.1")
	require.NoError(t, snap.Write(testStore(t).Tables(), nil))
	require.NoError(t, os.Remove(filepath.Join(snap.Dir(), UnitStructures+unitExt)))

	assert.False(t, snap.Complete())
	_, err := snap.Read()
	assert.ErrorIs(t, err, ErrMissing)
}

func TestReadUnit_HeaderChecks(t *testing.T) {
	snap := New(t.TempDir(), "22.1")
	require.NoError(t, os.MkdirAll(snap.Dir(), 0755))
	require.NoError(t, snap.WriteUnit(UnitHighConf, []string{"MI0000001"}))

	var ids []string
	require.NoError(t, snap.ReadUnit(UnitHighConf, &ids))
	assert.Equal(t, []string{"MI0000001"}, ids)

	path := filepath.Join(snap.Dir(), UnitHighConf+unitExt)
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	t.Run("schema mismatch", func(t *testing.T) {
		bad := append([]byte(nil), data...)
		bad[len(magic)+1]++ // low byte of the schema version
		require.NoError(t, os.WriteFile(path, bad, 0644))
		assert.ErrorIs(t, snap.ReadUnit(UnitHighConf, &ids), ErrSchema)
	})

	t.Run("bad magic", func(t *testing.T) {
		bad := append([]byte("NOPE!"), data[len(magic):]...)
		require.NoError(t, os.WriteFile(path, bad, 0644))
		assert.ErrorIs(t, snap.ReadUnit(UnitHighConf, &ids), ErrCorrupt)
	})

	t.Run("wrong unit name", func(t *testing.T) {
		require.NoError(t, os.WriteFile(filepath.Join(snap.Dir(), UnitStructures+unitExt), data, 0644))
		var m map[string]string
		assert.ErrorIs(t, snap.ReadUnit(UnitStructures, &m), ErrCorrupt)
	})

	t.Run("truncated payload", func(t *testing.T) {
		require.NoError(t, os.WriteFile(path, data[:len(data)-3], 0644))
		assert.ErrorIs(t, snap.ReadUnit(UnitHighConf, &ids), ErrCorrupt)
	})
}

func TestMeta_SchemaMismatch(t *testing.T) {
	snap := New(t.TempDir(), "22.1")
	require.NoError(t, snap.Write(testStore(t).Tables(), nil))
	require.NoError(t, os.WriteFile(filepath.Join(snap.Dir(), metaFile), []byte("schema=0\n"), 0644))

	_, err := snap.Read()
	assert.ErrorIs(t, err, ErrSchema)
}

func TestClear(t *testing.T) {
	snap := New(t.TempDir(), "22.1")
	require.NoError(t, snap.Write(testStore(t).Tables(), nil))
	require.NoError(t, snap.Clear())
	assert.False(t, snap.Complete())
}
