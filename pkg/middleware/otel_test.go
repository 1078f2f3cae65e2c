package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/go-cmp/cmp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// recorder is a trace.TracerProvider keeping every span it starts.
type recorder struct {
	noop.TracerProvider
	spans []*recSpan
}

func (p *recorder) Tracer(string, ...trace.TracerOption) trace.Tracer {
	return recTracer{p: p}
}

type recTracer struct {
	noop.Tracer
	p *recorder
}

func (t recTracer) Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	cfg := trace.NewSpanStartConfig(opts...)
	n := byte(len(t.p.spans) + 1)
	s := &recSpan{
		p:     t.p,
		name:  name,
		attrs: map[attribute.Key]attribute.Value{},
		sc: trace.NewSpanContext(trace.SpanContextConfig{
			TraceID: trace.TraceID{1},
			SpanID:  trace.SpanID{n},
		}),
	}
	if parent := trace.SpanContextFromContext(ctx); parent.IsValid() {
		s.parent = parent.SpanID()
	}
	s.SetAttributes(cfg.Attributes()...)
	t.p.spans = append(t.p.spans, s)
	return trace.ContextWithSpan(ctx, s), s
}

type recSpan struct {
	noop.Span
	p      *recorder
	sc     trace.SpanContext
	parent trace.SpanID
	name   string
	attrs  map[attribute.Key]attribute.Value
	status codes.Code
	errs   []error
	ended  bool
}

func (s *recSpan) SpanContext() trace.SpanContext { return s.sc }
func (s *recSpan) IsRecording() bool { return !s.ended }
func (s *recSpan) SetName(name string) { s.name = name }
func (s *recSpan) SetStatus(code codes.Code, _ string) { s.status = code }
func (s *recSpan) End(...trace.SpanEndOption) { s.ended = true }
func (s *recSpan) TracerProvider() trace.TracerProvider { return s.p }
func (s *recSpan) RecordError(err error, _ ...trace.EventOption) { s.errs = append(s.errs, err) }

func (s *recSpan) SetAttributes(kv ...attribute.KeyValue) {
	for _, a := range kv {
		s.attrs[a.Key] = a.Value
	}
}

func tracedRouter(tp *recorder, opts ...OTelOption) *chi.Mux {
	r := chi.NewRouter()
	r.Use(OpenTelemetry(append([]OTelOption{WithTracerProvider(tp)}, opts...)...))
	r.Get("/pages/{page}", func(w http.ResponseWriter, r *http.Request) {
		_, span := StartSpan(r.Context(), "page.render", attribute.String("page", chi.URLParam(r, "page")))
		EndSpan(span, nil)
		w.Write([]byte("ok"))
	})
	r.Get("/boom", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	return r
}

func TestOpenTelemetryNamesSpanAfterRoute(t *testing.T) {
	tp := &recorder{}
	r := tracedRouter(tp)
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/pages/index", nil))

	if len(tp.spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(tp.spans))
	}
	server, child := tp.spans[0], tp.spans[1]
	if server.name != "HTTP GET /pages/{page}" {
		t.Errorf("unexpected server span name %q", server.name)
	}
	if !server.ended || server.status != codes.Ok {
		t.Errorf("expected an ended ok span, got ended=%v status=%v", server.ended, server.status)
	}
	got := map[string]any{
		"route":  server.attrs["http.route"].AsString(),
		"status": server.attrs["http.status_code"].AsInt64(),
		"target": server.attrs["http.target"].AsString(),
	}
	want := map[string]any{"route": "/pages/{page}", "status": int64(200), "target": "/pages/index"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("attributes mismatch (-want +got):\n%s", diff)
	}

	if child.name != "page.render" || child.parent != server.sc.SpanID() {
		t.Errorf("expected page.render under the server span, got %q under %v", child.name, child.parent)
	}
	if child.attrs["page"].AsString() != "index" {
		t.Errorf("expected page attribute, got %v", child.attrs["page"].AsString())
	}
}

func TestOpenTelemetryMarksServerErrors(t *testing.T) {
	tp := &recorder{}
	tracedRouter(tp).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/boom", nil))
	if len(tp.spans) != 1 || tp.spans[0].status != codes.Error {
		t.Fatalf("expected one error span, got %+v", tp.spans)
	}
}

func TestOpenTelemetryFilterAndExtractor(t *testing.T) {
	tp := &recorder{}
	r := tracedRouter(tp,
		WithRequestFilter(func(r *http.Request) bool { return r.URL.Path != "/boom" }),
		WithAttributeExtractor(func(*http.Request) []attribute.KeyValue {
			return []attribute.KeyValue{attribute.String("test.attr", "ok")}
		}),
	)
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/boom", nil))
	if len(tp.spans) != 0 {
		t.Fatalf("expected the filter to skip tracing, got %d spans", len(tp.spans))
	}
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/pages/a", nil))
	if got := tp.spans[0].attrs["test.attr"].AsString(); got != "ok" {
		t.Errorf("expected extracted attribute, got %q", got)
	}
}

func TestEndSpanRecordsError(t *testing.T) {
	tp := &recorder{}
	_, span := recTracer{p: tp}.Start(context.Background(), "op")
	err := errors.New("nope")
	EndSpan(span, err)

	s := tp.spans[0]
	if !s.ended || s.status != codes.Error || len(s.errs) != 1 {
		t.Errorf("unexpected span state %+v", s)
	}
}
