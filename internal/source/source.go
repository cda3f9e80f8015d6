// Package source provides byte streams for the files of one miRBase release,
// read from a local mirror, an HTTP mirror or an S3 bucket.
package source

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
)

// ErrNotFound is returned when the requested file does not exist.
var ErrNotFound = errors.New("source file not found")

// Release-relative paths of the input files.
const (
	OrganismsFile      = "organisms.txt.gz"
	RecordsFile        = "miRNA.dat.gz"
	HighConfidenceFile = "hairpin_high_conf.fa.gz"
	StructuresFile     = "miRNA.str.gz"
	GenomesDir         = "genomes"
)

// GenomeFile returns the relative path of an organism's genome table.
func GenomeFile(abbr string) string {
	return GenomesDir + "/" + abbr + ".gff3"
}

// Source opens release files. Implementations decode gzip content
// transparently and return ErrNotFound for absent files.
type Source interface {
	Open(ctx context.Context, version, relPath string) (io.ReadCloser, error)
}

// decoded wraps a stream whose bytes may be gzip compressed. Compression is
// detected from the magic bytes, not the file name.
type decoded struct {
	io.Reader
	closers []io.Closer
}

func (d *decoded) Close() error {
	var errs []error
	for _, c := range d.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Decompress returns a reader that yields the uncompressed bytes of rc.
// Closing it closes rc.
func Decompress(rc io.ReadCloser) (io.ReadCloser, error) {
	br := bufio.NewReader(rc)
	magic, err := br.Peek(2)
	if err != nil && !errors.Is(err, io.EOF) {
		rc.Close()
		return nil, fmt.Errorf("peek stream: %w", err)
	}
	if len(magic) < 2 || magic[0] != 0x1f || magic[1] != 0x8b {
		return &decoded{Reader: br, closers: []io.Closer{rc}}, nil
	}
	gz, err := gzip.NewReader(br)
	if err != nil {
		rc.Close()
		return nil, fmt.Errorf("open gzip reader: %w", err)
	}
	return &decoded{Reader: gz, closers: []io.Closer{gz, rc}}, nil
}
