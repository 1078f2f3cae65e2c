// Package page loads markout pages from a store and renders them.
//
// A page is an HTML document plus an optional spec document describing its
// scope tree. Pages without a spec are served as they are.
package page

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fcapolini/markout/pkg/spec"
)

var (
	// ErrNotFound is returned when a store has no page with the given name.
	ErrNotFound = errors.New("page: not found")

	// ErrInvalidName is returned for names that could escape the store root.
	ErrInvalidName = errors.New("page: invalid name")

	// ErrStatic is returned when a live session is requested for a page
	// without a spec.
	ErrStatic = errors.New("page: static page")
)

// Spec file extensions, in lookup order.
var specExts = []string{".yaml", ".yml", ".json"}

// Page is a loaded page.
type Page struct {
	Name string
	HTML []byte
	Spec *spec.Document
}

// Store loads pages by name. Names are slash-separated paths without an
// extension, such as "index" or "blog/first".
type Store interface {
	Load(ctx context.Context, name string) (*Page, error)
}

// CheckName validates a page name.
func CheckName(name string) error {
	if name == "" || strings.HasPrefix(name, "/") || strings.ContainsAny(name, "\\\x00") {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	for _, seg := range strings.Split(name, "/") {
		if seg == "" || seg == "." || seg == ".." || strings.HasPrefix(seg, ".") {
			return fmt.Errorf("%w: %q", ErrInvalidName, name)
		}
	}
	return nil
}

func parseSpec(name, key string, data []byte) (*spec.Document, error) {
	doc, err := spec.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("page %q: %s: %w", name, key, err)
	}
	return doc, nil
}
