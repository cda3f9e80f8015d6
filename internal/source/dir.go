package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Dir reads releases from a local tree laid out as <root>/<version>/<file>.
// A missing file is retried with the ".gz" suffix added or removed.
type Dir struct {
	Root string
}

// NewDir creates a local directory source.
func NewDir(root string) *Dir {
	return &Dir{Root: root}
}

// Open implements Source.
func (d *Dir) Open(ctx context.Context, version, relPath string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	base := filepath.Join(d.Root, version, filepath.FromSlash(relPath))
	candidates := []string{base}
	if strings.HasSuffix(base, ".gz") {
		candidates = append(candidates, strings.TrimSuffix(base, ".gz"))
	} else {
		candidates = append(candidates, base+".gz")
	}

	for _, path := range candidates {
		f, err := os.Open(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", path, err)
		}
		return Decompress(f)
	}
	return nil, fmt.Errorf("%s/%s: %w", version, relPath, ErrNotFound)
}
