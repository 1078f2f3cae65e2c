package page

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"

	"github.com/fcapolini/markout/pkg/dom"
	"github.com/fcapolini/markout/pkg/middleware"
	"github.com/fcapolini/markout/pkg/reactive"
	"github.com/fcapolini/markout/pkg/spec"
)

// Renderer turns pages into bound documents.
type Renderer struct {
	registry *spec.Registry
	observer reactive.Observer
	logger   *slog.Logger
}

// RendererOption configures a Renderer.
type RendererOption func(*Renderer)

// WithRegistry sets the functions available to page specs.
func WithRegistry(reg *spec.Registry) RendererOption {
	return func(r *Renderer) {
		r.registry = reg
	}
}

// WithObserver sets the runtime observer of every rendered page.
func WithObserver(obs reactive.Observer) RendererOption {
	return func(r *Renderer) {
		r.observer = obs
	}
}

// WithLogger sets the logger passed to the binding layer.
func WithLogger(logger *slog.Logger) RendererOption {
	return func(r *Renderer) {
		r.logger = logger
	}
}

// NewRenderer creates a renderer. Without WithRegistry, specs see the
// built-in functions only.
func NewRenderer(opts ...RendererOption) *Renderer {
	r := &Renderer{
		registry: spec.NewRegistry(),
		logger:   slog.Default().With("component", "page"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Render binds the page spec to its HTML, runs the first refresh and returns
// the resulting document. Static pages are returned unchanged.
func (r *Renderer) Render(ctx context.Context, p *Page) (out []byte, err error) {
	_, span := middleware.StartSpan(ctx, "page.render", attribute.String("markout.page", p.Name))
	defer func() { middleware.EndSpan(span, err) }()

	if p.Spec == nil {
		span.SetAttributes(attribute.Bool("markout.static", true))
		return p.HTML, nil
	}
	d, err := r.bind(p)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := d.Render(&buf); err != nil {
		return nil, fmt.Errorf("page %q: render: %w", p.Name, err)
	}
	span.SetAttributes(attribute.Int("markout.bytes", buf.Len()))
	return buf.Bytes(), nil
}

// Session binds the page for a live client. Every DOM mutation after the
// first refresh is delivered to sink.
func (r *Renderer) Session(ctx context.Context, p *Page, sink dom.PatchSink) (d *dom.Context, err error) {
	_, span := middleware.StartSpan(ctx, "page.session", attribute.String("markout.page", p.Name))
	defer func() { middleware.EndSpan(span, err) }()

	if p.Spec == nil {
		return nil, fmt.Errorf("%w: %q", ErrStatic, p.Name)
	}
	d, err = r.bind(p)
	if err != nil {
		return nil, err
	}
	d.SetPatchSink(sink)
	return d, nil
}

func (r *Renderer) bind(p *Page) (*dom.Context, error) {
	root, err := p.Spec.Build(r.registry)
	if err != nil {
		return nil, fmt.Errorf("page %q: %w", p.Name, err)
	}
	opts := []dom.Option{dom.WithLogger(r.logger.With("page", p.Name))}
	if r.observer != nil {
		opts = append(opts, dom.WithRuntimeOptions(reactive.WithObserver(r.observer)))
	}
	d, err := dom.Parse(bytes.NewReader(p.HTML), root, opts...)
	if err != nil {
		return nil, fmt.Errorf("page %q: %w", p.Name, err)
	}
	return d, nil
}
