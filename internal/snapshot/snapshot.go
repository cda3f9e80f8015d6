// Package snapshot persists a compiled miRBase release as a set of
// independent, schema-versioned units on disk:
//
//	<cache_dir>/<version>/<unit>.mir     (header + gob payload)
//	<cache_dir>/<version>/snapshot.meta  (key=value summary)
package snapshot

import (
	"bufio"
	"encoding/binary"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/inodb/mirus/internal/mirbase"
)

// SchemaVersion is bumped whenever a unit payload changes shape.
const SchemaVersion uint16 = 1

const (
	magic    = "MIRUS"
	unitExt  = ".mir"
	metaFile = "snapshot.meta"
)

var (
	// ErrMissing is returned when a unit or the meta file is absent.
	ErrMissing = errors.New("snapshot unit missing")
	// ErrCorrupt is returned when a unit header or payload cannot be decoded.
	ErrCorrupt = errors.New("snapshot unit corrupt")
	// ErrSchema is returned when a unit was written by another schema version.
	ErrSchema = errors.New("snapshot schema mismatch")
)

// Unit names.
const (
	UnitOrganisms       = "organisms"
	UnitPrecursors      = "precursors"
	UnitPrecursorNames  = "precursor_names"
	UnitMatures         = "matures"
	UnitMatureNames     = "mature_names"
	UnitOrganismAbbrevs = "organism_abbrevs"
	UnitHighConf        = "high_conf"
	UnitStructures      = "structures"
	UnitTaxonomyOfRank  = "taxonomy_of_rank"
	UnitOrganismsOfRank = "organisms_of_rank"
)

// Units lists every unit a complete snapshot holds.
var Units = []string{
	UnitOrganisms,
	UnitPrecursors,
	UnitPrecursorNames,
	UnitMatures,
	UnitMatureNames,
	UnitOrganismAbbrevs,
	UnitHighConf,
	UnitStructures,
	UnitTaxonomyOfRank,
	UnitOrganismsOfRank,
}

// Snapshot is the on-disk location of one release.
type Snapshot struct {
	dir string // e.g. ~/.mirus/22.1
}

// New returns the snapshot of version under cacheDir.
func New(cacheDir, version string) *Snapshot {
	return &Snapshot{dir: filepath.Join(cacheDir, version)}
}

// Dir returns the snapshot directory.
func (s *Snapshot) Dir() string { return s.dir }

func (s *Snapshot) unitPath(name string) string {
	return filepath.Join(s.dir, name+unitExt)
}

func (s *Snapshot) metaPath() string {
	return filepath.Join(s.dir, metaFile)
}

// Complete reports whether every unit and the meta file exist.
func (s *Snapshot) Complete() bool {
	if _, err := os.Stat(s.metaPath()); err != nil {
		return false
	}
	for _, name := range Units {
		if _, err := os.Stat(s.unitPath(name)); err != nil {
			return false
		}
	}
	return true
}

// Write persists every table of t as its own unit, then the meta file.
func (s *Snapshot) Write(t *mirbase.Tables, meta map[string]string) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("create snapshot directory: %w", err)
	}
	payloads := map[string]any{
		UnitOrganisms:       t.Organisms,
		UnitPrecursors:      t.Precursors,
		UnitPrecursorNames:  t.PrecursorNames,
		UnitMatures:         t.MiRNAs,
		UnitMatureNames:     t.MiRNANames,
		UnitOrganismAbbrevs: t.OrganismAbbrevs,
		UnitHighConf:        t.HighConfidence,
		UnitStructures:      t.Structures,
		UnitTaxonomyOfRank:  t.TaxonomyOfRank,
		UnitOrganismsOfRank: t.OrganismsOfRank,
	}
	for _, name := range Units {
		if err := s.WriteUnit(name, payloads[name]); err != nil {
			return err
		}
	}

	m := map[string]string{
		"schema":     strconv.Itoa(int(SchemaVersion)),
		"precursors": strconv.Itoa(len(t.Precursors)),
		"matures":    strconv.Itoa(len(t.MiRNAs)),
		"organisms":  strconv.Itoa(len(t.Organisms)),
		"created_at": time.Now().UTC().Format(time.RFC3339),
	}
	for k, v := range meta {
		m[k] = v
	}
	return s.writeMeta(m)
}

// Read loads every unit. Any missing, corrupt or mismatched unit fails the
// whole read.
func (s *Snapshot) Read() (*mirbase.Tables, error) {
	if _, err := s.Meta(); err != nil {
		return nil, err
	}
	t := &mirbase.Tables{}
	targets := map[string]any{
		UnitOrganisms:       &t.Organisms,
		UnitPrecursors:      &t.Precursors,
		UnitPrecursorNames:  &t.PrecursorNames,
		UnitMatures:         &t.MiRNAs,
		UnitMatureNames:     &t.MiRNANames,
		UnitOrganismAbbrevs: &t.OrganismAbbrevs,
		UnitHighConf:        &t.HighConfidence,
		UnitStructures:      &t.Structures,
		UnitTaxonomyOfRank:  &t.TaxonomyOfRank,
		UnitOrganismsOfRank: &t.OrganismsOfRank,
	}
	for _, name := range Units {
		if err := s.ReadUnit(name, targets[name]); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// WriteUnit encodes v as the named unit. The file is written to a temporary
// name and renamed into place.
func (s *Snapshot) WriteUnit(name string, v any) error {
	path := s.unitPath(name)
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create unit %s: %w", name, err)
	}

	w := bufio.NewWriter(f)
	err = writeHeader(w, name)
	if err == nil {
		err = gob.NewEncoder(w).Encode(v)
	}
	if err == nil {
		err = w.Flush()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp)
		return fmt.Errorf("encode unit %s: %w", name, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename unit %s: %w", name, err)
	}
	return nil
}

// ReadUnit decodes the named unit into v, which must be a pointer.
func (s *Snapshot) ReadUnit(name string, v any) error {
	f, err := os.Open(s.unitPath(name))
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrMissing, name)
	}
	if err != nil {
		return fmt.Errorf("open unit %s: %w", name, err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	if err := readHeader(r, name); err != nil {
		return err
	}
	if err := gob.NewDecoder(r).Decode(v); err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrCorrupt, name, err)
	}
	return nil
}

// Clear removes the snapshot directory.
func (s *Snapshot) Clear() error {
	return os.RemoveAll(s.dir)
}

// Meta returns the key=value summary written with the snapshot.
func (s *Snapshot) Meta() (map[string]string, error) {
	data, err := os.ReadFile(s.metaPath())
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrMissing, metaFile)
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot meta: %w", err)
	}

	meta := make(map[string]string)
	for _, line := range strings.Split(string(data), "\n") {
		if k, v, ok := strings.Cut(line, "="); ok {
			meta[k] = v
		}
	}
	if meta["schema"] != strconv.Itoa(int(SchemaVersion)) {
		return nil, fmt.Errorf("%w: meta schema %q, want %d", ErrSchema, meta["schema"], SchemaVersion)
	}
	return meta, nil
}

func (s *Snapshot) writeMeta(meta map[string]string) error {
	keys := make([]string, 0, len(meta))
	for k := range meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k + "=" + meta[k] + "\n")
	}
	return os.WriteFile(s.metaPath(), []byte(b.String()), 0644)
}

// writeHeader writes magic, schema version and the unit name.
func writeHeader(w io.Writer, name string) error {
	if _, err := io.WriteString(w, magic); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, SchemaVersion); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, uint16(len(name))); err != nil {
		return err
	}
	_, err := io.WriteString(w, name)
	return err
}

// readHeader validates the header written by writeHeader.
func readHeader(r io.Reader, name string) error {
	buf := make([]byte, len(magic))
	if _, err := io.ReadFull(r, buf); err != nil || string(buf) != magic {
		return fmt.Errorf("%w: %s: bad magic", ErrCorrupt, name)
	}
	var schema uint16
	if err := binary.Read(r, binary.BigEndian, &schema); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrCorrupt, name, err)
	}
	if schema != SchemaVersion {
		return fmt.Errorf("%w: %s has schema %d, want %d", ErrSchema, name, schema, SchemaVersion)
	}
	var n uint16
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrCorrupt, name, err)
	}
	got := make([]byte, n)
	if _, err := io.ReadFull(r, got); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrCorrupt, name, err)
	}
	if string(got) != name {
		return fmt.Errorf("%w: file %s holds unit %q", ErrCorrupt, name, got)
	}
	return nil
}
