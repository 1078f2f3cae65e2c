package page

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FSStore loads pages from a directory: <dir>/<name>.html with an optional
// <dir>/<name>.yaml, .yml or .json spec next to it.
type FSStore struct {
	dir string
}

// NewFSStore creates a store rooted at dir.
func NewFSStore(dir string) *FSStore {
	return &FSStore{dir: dir}
}

// Dir returns the store root.
func (s *FSStore) Dir() string {
	return s.dir
}

// Load implements Store.
func (s *FSStore) Load(ctx context.Context, name string) (*Page, error) {
	if err := CheckName(name); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	base := filepath.Join(s.dir, filepath.FromSlash(name))

	html, err := os.ReadFile(base + ".html")
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
		}
		return nil, fmt.Errorf("page %q: %w", name, err)
	}
	p := &Page{Name: name, HTML: html}

	for _, ext := range specExts {
		data, err := os.ReadFile(base + ext)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("page %q: %w", name, err)
		}
		if p.Spec, err = parseSpec(name, filepath.Base(base+ext), data); err != nil {
			return nil, err
		}
		break
	}
	return p, nil
}
