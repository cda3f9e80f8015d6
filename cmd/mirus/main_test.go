package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/inodb/mirus/internal/query"
	"github.com/inodb/mirus/internal/testrelease"
)

// fixtureFlags writes the test release and returns the global flags that
// point mirus at it. HOME is redirected so no user config is read.
func fixtureFlags(t *testing.T) []string {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	root := t.TempDir()
	testrelease.Write(t, root)
	return []string{
		"--release", testrelease.Version,
		"--source", "dir",
		"--source-root", root,
		"--cache-dir", filepath.Join(t.TempDir(), "cache"),
		"--log-dir", filepath.Join(t.TempDir(), "logs"),
		"--workers", "2",
	}
}

func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	viper.Reset()
	cmd := newRootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

type entity struct {
	ID string
}

func decodeIDs(t *testing.T, out string) []string {
	t.Helper()
	var items []entity
	require.NoError(t, json.Unmarshal([]byte(out), &items), out)
	ids := make([]string, len(items))
	for i, e := range items {
		ids[i] = e.ID
	}
	return ids
}

func TestOrganisms(t *testing.T) {
	flags := fixtureFlags(t)

	out, stderr, err := runCLI(t, append(flags, "organisms")...)
	require.NoError(t, err)
	assert.Contains(t, stderr, "Compiled miRBase "+testrelease.Version)
	var orgs []struct{ Abbreviation, Name string }
	require.NoError(t, json.Unmarshal([]byte(out), &orgs))
	assert.Len(t, orgs, 4)

	// second run is served from the snapshot
	out, stderr, err = runCLI(t, append(flags, "organisms", "--short")...)
	require.NoError(t, err)
	assert.NotContains(t, stderr, "Compiled")
	var abbrevs map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &abbrevs))
	assert.Equal(t, "Homo sapiens", abbrevs["hsa"])
}

func TestTaxonomyCommands(t *testing.T) {
	flags := fixtureFlags(t)

	out, _, err := runCLI(t, append(flags, "taxid", "Homo sapiens")...)
	require.NoError(t, err)
	assert.JSONEq(t, `{"Homo sapiens": "9606"}`, out)

	out, _, err = runCLI(t, append(flags, "organisms-at", "Nematoda")...)
	require.NoError(t, err)
	assert.JSONEq(t, `["Caenorhabditis elegans", "Caenorhabditis briggsae"]`, out)

	out, _, err = runCLI(t, append(flags, "-o", "yaml", "tree", "Metazoa", "Bilateria", "Ecdysozoa")...)
	require.NoError(t, err)
	var tree map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(out), &tree))
	assert.Contains(t, tree, "Nematoda")

	_, stderr, err := runCLI(t, append(flags, "tree", "Plantae")...)
	require.NoError(t, err)
	assert.Contains(t, stderr, "No records matching given criteria")
}

func TestPrecursorCommand(t *testing.T) {
	flags := fixtureFlags(t)

	tests := []struct {
		name string
		args []string
		want []string
	}{
		{"genomic chain", []string{"--organism", "Caenorhabditis elegans", "--chromosome", "X"}, []string{"MI0000001", "MI0000002"}},
		{"window", []string{"--start", "100", "--end", "200"}, []string{"MI0000001"}},
		{"ids", []string{"--id", "MI0000003,MI0000077"}, []string{"MI0000003", "MI0000077"}},
		{"high confidence", []string{"--taxon", "Nematoda", "--high-conf"}, []string{"MI0000001"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _, err := runCLI(t, append(append(flags, "precursor"), tt.args...)...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, decodeIDs(t, out))
		})
	}
}

func TestPrecursorCommand_Contradicting(t *testing.T) {
	flags := fixtureFlags(t)

	out, stderr, err := runCLI(t, append(flags, "precursor", "--id", "MI0000001", "--taxon", "Primates")...)
	require.NoError(t, err)
	assert.Contains(t, stderr, "Contradicting criteria: id-search=1, taxonomy-search=2")
	var buckets map[string][]entity
	require.NoError(t, json.Unmarshal([]byte(out), &buckets))
	assert.Len(t, buckets, 2)
}

func TestPrecursorCommand_Errors(t *testing.T) {
	flags := fixtureFlags(t)

	_, _, err := runCLI(t, append(flags, "precursor", "--strand", "x")...)
	assert.ErrorIs(t, err, query.ErrInvalidStrand)

	_, _, err = runCLI(t, append(flags, "precursor", "--start", "500", "--end", "100")...)
	assert.ErrorIs(t, err, query.ErrInvalidCoordinates)

	out, stderr, err := runCLI(t, append(flags, "precursor", "--organism", "Nowhere")...)
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Contains(t, stderr, "No records matching given criteria")
}

func TestMiRNAAndLookups(t *testing.T) {
	flags := fixtureFlags(t)

	out, _, err := runCLI(t, append(flags, "mirna", "--precursor", "MI0000002")...)
	require.NoError(t, err)
	assert.Equal(t, []string{"MIMAT0000002"}, decodeIDs(t, out))

	out, _, err = runCLI(t, append(flags, "references", "--precursor-id", "MI0000002", "--link")...)
	require.NoError(t, err)
	assert.JSONEq(t, `{"MI0000002": ["https://pubmed.ncbi.nlm.nih.gov/8252621/"]}`, out)

	out, _, err = runCLI(t, append(flags, "structure", "--id", "MI0000001")...)
	require.NoError(t, err)
	var st map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &st))
	assert.Equal(t, testrelease.LetSevenStructure, st["MI0000001"])
}

func TestClusterCommand(t *testing.T) {
	flags := fixtureFlags(t)

	out, _, err := runCLI(t, append(flags, "cluster", "--precursor-id", "MI0000001", "--range", "150")...)
	require.NoError(t, err)
	assert.Equal(t, []string{"MI0000001", "MI0000002"}, decodeIDs(t, out))

	out, _, err = runCLI(t, append(flags, "cluster", "--precursor-id", "MI0000003", "--range", "399", "--direction", "downstream")...)
	require.NoError(t, err)
	assert.Equal(t, []string{"MI0000002"}, decodeIDs(t, out))

	_, _, err = runCLI(t, append(flags, "cluster", "--precursor-id", "MI0000001", "--direction", "sideways")...)
	assert.ErrorIs(t, err, query.ErrUnknownDirection)

	_, _, err = runCLI(t, append(flags, "cluster", "--range", "10")...)
	assert.Error(t, err)
}

func TestCompileCommand(t *testing.T) {
	flags := fixtureFlags(t)

	out, _, err := runCLI(t, append(flags, "compile")...)
	require.NoError(t, err)
	var stats struct{ Precursors, MiRNAs int }
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.Equal(t, 6, stats.Precursors)
	assert.Equal(t, 7, stats.MiRNAs)

	_, stderr, err := runCLI(t, append(flags, "compile")...)
	require.NoError(t, err)
	assert.Contains(t, stderr, "already present")

	out, _, err = runCLI(t, append(flags, "compile", "--force")...)
	require.NoError(t, err)
	assert.NotEmpty(t, out)
}

func TestCompileCommand_MissingRelease(t *testing.T) {
	flags := fixtureFlags(t)
	flags = append(flags, "--release", "99.0")

	_, stderr, err := runCLI(t, append(flags, "compile")...)
	require.Error(t, err)
	assert.Contains(t, stderr, "Error log written to")
}

func TestExportCommand(t *testing.T) {
	flags := fixtureFlags(t)
	dbPath := filepath.Join(t.TempDir(), "mirbase.sqlite")

	out, stderr, err := runCLI(t, append(flags, "export", "--driver", "sqlite", "--db", dbPath)...)
	require.NoError(t, err)
	assert.Contains(t, stderr, "Exported")
	var counts map[string]int
	require.NoError(t, json.Unmarshal([]byte(out), &counts))
	assert.Equal(t, 6, counts["precursors"])
	assert.Equal(t, 4, counts["organisms"])
	assert.FileExists(t, dbPath)

	_, _, err = runCLI(t, append(flags, "export", "--driver", "mysql")...)
	assert.Error(t, err)
}

func TestDownloadCommand(t *testing.T) {
	mirror := t.TempDir()
	testrelease.Write(t, mirror)
	srv := httptest.NewServer(http.FileServer(http.Dir(mirror)))
	defer srv.Close()

	t.Setenv("HOME", t.TempDir())
	dest := t.TempDir()
	out, stderr, err := runCLI(t, "--release", testrelease.Version, "download", "--mirror", srv.URL, "--output", dest)
	require.NoError(t, err)
	assert.Contains(t, out, "Download complete!")
	assert.Contains(t, stderr, "2 organisms have no genome table")
	for name := range testrelease.Files() {
		assert.FileExists(t, filepath.Join(dest, testrelease.Version, filepath.FromSlash(name)))
	}

	// files already present are skipped
	out, _, err = runCLI(t, "--release", testrelease.Version, "download", "--mirror", srv.URL, "--output", dest)
	require.NoError(t, err)
	assert.Contains(t, out, "already exists")

	// the mirrored tree compiles offline
	out, _, err = runCLI(t, "--release", testrelease.Version,
		"--source", "dir", "--source-root", dest,
		"--cache-dir", filepath.Join(t.TempDir(), "cache"),
		"precursor", "--id", "MI0000060")
	require.NoError(t, err)
	assert.Equal(t, []string{"MI0000060"}, decodeIDs(t, out))
}

func TestConfigCommands(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	_, _, err := runCLI(t, "config", "set", "source-root", "/data/mirbase")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(home, ".mirus.yaml"))

	out, _, err := runCLI(t, "config", "get", "source-root")
	require.NoError(t, err)
	assert.Equal(t, "/data/mirbase\n", out)

	_, _, err = runCLI(t, "config", "get", "no.such.key")
	assert.Error(t, err)

	_, _, err = runCLI(t, "config", "set", "release", "21")
	require.NoError(t, err)
	out, _, err = runCLI(t, "config", "get", "release")
	require.NoError(t, err)
	assert.Equal(t, "21\n", out)
}

func TestConfigSet_Rejects(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	tests := []struct {
		name       string
		key, value string
		wantErr    string
	}{
		{"unknown key", "sorce", "dir", `unknown config key "sorce"`},
		{"bad source", "source", "ftp", "invalid value for source"},
		{"negative workers", "workers", "-2", "invalid value for workers"},
		{"bad output", "output", "xml", "invalid value for output"},
		{"bad log level", "log.level", "loud", "invalid value for log.level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := runCLI(t, "config", "set", tt.key, tt.value)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfigKeys(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	out, _, err := runCLI(t, "config", "keys")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Len(t, lines, len(configKeys))
	assert.True(t, strings.HasPrefix(lines[0], "cache-dir "))
	assert.Contains(t, out, "s3.path-style")
}

func TestConfigFile_SetsDefaults(t *testing.T) {
	flags := fixtureFlags(t)
	cfg := filepath.Join(t.TempDir(), "mirus.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("output: yaml\n"), 0644))

	out, _, err := runCLI(t, append(flags, "--config", cfg, "taxid", "Homo sapiens")...)
	require.NoError(t, err)
	assert.Equal(t, "Homo sapiens: \"9606\"\n", out)
}

func TestParseS3URI(t *testing.T) {
	tests := []struct {
		uri            string
		bucket, prefix string
		wantErr        bool
	}{
		{"s3://releases/mirbase/", "releases", "mirbase", false},
		{"s3://releases", "releases", "", false},
		{"https://releases", "", "", true},
		{"s3://", "", "", true},
	}
	for _, tt := range tests {
		bucket, prefix, err := parseS3URI(tt.uri)
		if tt.wantErr {
			assert.Error(t, err, tt.uri)
			continue
		}
		require.NoError(t, err, tt.uri)
		assert.Equal(t, tt.bucket, bucket)
		assert.Equal(t, tt.prefix, prefix)
	}
}

func TestFormatSize(t *testing.T) {
	assert.Equal(t, "512 B", formatSize(512))
	assert.Equal(t, "1.5 KB", formatSize(1536))
	assert.Equal(t, "3.0 MB", formatSize(3*1024*1024))
}

func TestEncode_UnknownFormat(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, encode(&buf, "xml", []string{"a"}))
}
