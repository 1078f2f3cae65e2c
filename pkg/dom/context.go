package dom

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"golang.org/x/net/html"

	"github.com/fcapolini/markout/pkg/reactive"
)

// Document markers.
const (
	// IDAttr marks the element of a scope. Its value is the scope id.
	IDAttr = "data-markout"

	// TextMarker starts the comment opening a text placeholder: <!---tN-->.
	TextMarker = "-t"

	// TextEndMarker is the comment closing a text placeholder: <!---/-->.
	TextEndMarker = "-/"

	// NilText is written into a placeholder whose value is nil, so that the
	// text node survives a round trip through a browser.
	NilText = "\u200b"
)

var (
	// ErrScopeNotFound is returned when no scope has the requested id.
	ErrScopeNotFound = errors.New("dom: scope not found")

	// ErrValueNotFound is returned when a name does not resolve from a scope.
	ErrValueNotFound = errors.New("dom: value not found")
)

// Context is a reactive.Context bound to an HTML document.
type Context struct {
	doc      *html.Node
	rt       *reactive.Context
	elements map[string]*html.Node
	bindings map[*reactive.Scope]*binding
	sink     PatchSink
	logger   *slog.Logger
}

// Option configures a Context.
type Option func(*options)

type options struct {
	sink    PatchSink
	logger  *slog.Logger
	runtime []reactive.Option
}

// WithPatchSink sets the receiver of applied patches.
func WithPatchSink(sink PatchSink) Option {
	return func(o *options) {
		o.sink = sink
	}
}

// WithLogger sets the logger of the binding layer and of the runtime.
// Default: slog.Default().With("component", "dom").
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
			o.runtime = append(o.runtime, reactive.WithLogger(logger))
		}
	}
}

// WithRuntimeOptions passes options through to reactive.New.
func WithRuntimeOptions(opts ...reactive.Option) Option {
	return func(o *options) {
		o.runtime = append(o.runtime, opts...)
	}
}

// New binds the scope tree described by root to doc and runs the first
// refresh. Bound values are written into doc before New returns.
func New(doc *html.Node, root reactive.ScopeSpec, opts ...Option) *Context {
	o := options{logger: slog.Default().With("component", "dom")}
	for _, opt := range opts {
		opt(&o)
	}
	d := &Context{
		doc:      doc,
		elements: make(map[string]*html.Node),
		bindings: make(map[*reactive.Scope]*binding),
		sink:     o.sink,
		logger:   o.logger,
	}
	ropts := append(o.runtime, reactive.WithBinder(binder{d}))
	// reactive.New calls back into the binder, which sets d.rt.
	reactive.New(root, ropts...)
	return d
}

// Parse parses an HTML document from r and binds root to it.
func Parse(r io.Reader, root reactive.ScopeSpec, opts ...Option) (*Context, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("dom: parse: %w", err)
	}
	return New(doc, root, opts...), nil
}

// Runtime returns the underlying reactive context.
func (d *Context) Runtime() *reactive.Context {
	return d.rt
}

// Document returns the bound document.
func (d *Context) Document() *html.Node {
	return d.doc
}

// Element returns the element of the scope with the given id, if any.
func (d *Context) Element(scopeID string) (*html.Node, bool) {
	el, ok := d.elements[scopeID]
	return el, ok
}

// Env returns the accessor surface of the scope with the given id.
func (d *Context) Env(scopeID string) (*reactive.Env, bool) {
	s := d.rt.Find(scopeID)
	if s == nil {
		return nil, false
	}
	return s.Env(), true
}

// Get resolves key from the scope with the given id.
func (d *Context) Get(scopeID, key string) (any, error) {
	env, ok := d.Env(scopeID)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrScopeNotFound, scopeID)
	}
	v, ok := env.Resolve(key)
	if !ok {
		return nil, fmt.Errorf("%w: %q in scope %q", ErrValueNotFound, key, scopeID)
	}
	return v, nil
}

// Assign writes val to key as seen from the scope with the given id, then
// settles the graph so that every bound value downstream of the write is
// recomputed and its DOM mutation applied.
func (d *Context) Assign(scopeID, key string, val any) error {
	env, ok := d.Env(scopeID)
	if !ok {
		return fmt.Errorf("%w: %q", ErrScopeNotFound, scopeID)
	}
	if !env.Assign(key, val) {
		return fmt.Errorf("%w: %q in scope %q", ErrValueNotFound, key, scopeID)
	}
	// A push only reaches direct destinations; a refresh in the same cycle
	// pulls whatever lies further down.
	d.rt.RefreshScope(nil, false)
	return nil
}

// SetPatchSink replaces the patch receiver. A nil sink discards patches.
func (d *Context) SetPatchSink(sink PatchSink) {
	d.sink = sink
}

// Render writes the document as HTML.
func (d *Context) Render(w io.Writer) error {
	return html.Render(w, d.doc)
}

// HTML returns the rendered document.
func (d *Context) HTML() (string, error) {
	var buf bytes.Buffer
	if err := d.Render(&buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (d *Context) emit(p Patch) {
	if d.sink != nil {
		d.sink.Patch(p)
	}
}

// scan indexes every element carrying IDAttr. The first element wins when an
// id is repeated.
func (d *Context) scan() {
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if id, ok := getAttr(n, IDAttr); ok {
				if _, dup := d.elements[id]; dup {
					d.logger.Warn("duplicate scope element", "id", id)
				} else {
					d.elements[id] = n
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	if d.doc != nil {
		walk(d.doc)
	}
}

// binder plugs a Context into the runtime.
type binder struct {
	d *Context
}

func (b binder) Init(c *reactive.Context) {
	b.d.rt = c
	b.d.scan()
}

func (b binder) BindScope(s *reactive.Scope) {
	bd := &binding{ctx: b.d, scope: s}
	if el, ok := b.d.elements[s.ID()]; ok {
		bd.el = el
		bd.texts = collectTexts(el)
	}
	b.d.bindings[s] = bd
}

func (b binder) BindValue(s *reactive.Scope, key string, v *reactive.Value) {
	bd, ok := b.d.bindings[s]
	if !ok {
		return
	}
	bd.bind(key, v)
}

func (b binder) UnbindScope(s *reactive.Scope) {
	delete(b.d.bindings, s)
}
