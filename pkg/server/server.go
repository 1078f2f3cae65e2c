package server

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"net"
	"net/http"
	"path"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fcapolini/markout/client"
	"github.com/fcapolini/markout/internal/errors"
	"github.com/fcapolini/markout/pkg/middleware"
	"github.com/fcapolini/markout/pkg/page"
)

// LivePath prefixes live session routes.
const LivePath = "/_markout/live"

// Server is the HTTP/WebSocket server of a markout site.
type Server struct {
	store    page.Store
	renderer *page.Renderer
	config   *Config

	metrics  *middleware.Metrics
	gatherer prometheus.Gatherer

	tracing  bool
	otelOpts []middleware.OTelOption

	upgrader   websocket.Upgrader
	handler    http.Handler
	httpServer *http.Server
	logger     *slog.Logger

	mu       sync.Mutex
	sessions map[*liveSession]struct{}
	closing  bool
	wg       sync.WaitGroup
}

// Option configures a Server.
type Option func(*Server)

// WithConfig sets the server configuration. Zero fields take defaults.
func WithConfig(c *Config) Option {
	return func(s *Server) {
		s.config = c.withDefaults()
	}
}

// WithRenderer sets the page renderer.
func WithRenderer(r *page.Renderer) Option {
	return func(s *Server) {
		s.renderer = r
	}
}

// WithMetrics records requests and sessions on m and serves g on /metrics.
// A nil g leaves /metrics unrouted.
func WithMetrics(m *middleware.Metrics, g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.metrics = m
		s.gatherer = g
	}
}

// WithTracing opens an OpenTelemetry span per request.
func WithTracing(opts ...middleware.OTelOption) Option {
	return func(s *Server) {
		s.tracing = true
		s.otelOpts = opts
	}
}

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates a server for the pages of store.
func New(store page.Store, opts ...Option) *Server {
	s := &Server{
		store:    store,
		config:   DefaultConfig(),
		logger:   slog.Default().With("component", "server"),
		sessions: make(map[*liveSession]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.renderer == nil {
		ropts := []page.RendererOption{page.WithLogger(s.logger)}
		if s.metrics != nil {
			ropts = append(ropts, page.WithObserver(s.metrics))
		}
		s.renderer = page.NewRenderer(ropts...)
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     s.config.CheckOrigin,
	}
	s.handler = s.routes()
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(s.metrics.HTTP)
	if s.tracing {
		r.Use(middleware.OpenTelemetry(s.otelOpts...))
	}

	r.Get("/healthz", s.handleHealth)
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	if s.config.Live {
		r.Get(LivePath+"/*", s.handleLive)
		r.Get(client.Path, handleClient)
	}
	r.Get("/*", s.handlePage)
	return r
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// PageName maps a URL path to a page name.
func PageName(urlPath string) string {
	p := strings.TrimPrefix(urlPath, "/")
	if p == "" || strings.HasSuffix(p, "/") {
		p += "index"
	}
	return strings.TrimSuffix(p, path.Ext(p))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	n := len(s.sessions)
	s.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"status": "ok", "sessions": n})
}

func handleClient(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/javascript; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Write(client.Script)
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	name := PageName(chi.URLParam(r, "*"))
	p, err := s.store.Load(r.Context(), name)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out, err := s.renderer.Render(r.Context(), p)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(out)
}

// fail writes the HTTP response for err. Internal details stay in the log.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	me := errors.Classify(err)
	status := statusOf(me)
	log := s.logger.With("path", r.URL.Path, "code", me.Code, "request_id", chimw.GetReqID(r.Context()))
	if status >= http.StatusInternalServerError {
		log.Error("request failed", "error", err)
		http.Error(w, http.StatusText(status), status)
		return
	}
	log.Debug("request rejected", "error", err)
	http.Error(w, me.Code+": "+me.Message, status)
}

func statusOf(me *errors.MarkoutError) int {
	switch me.Code {
	case "E301", "E302":
		return http.StatusNotFound
	case "E304", "E402":
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// ListenAndServe listens on the configured address and serves until ctx is
// done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return errors.New("E401").Wrap(err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.httpServer = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: s.config.ReadHeaderTimeout,
		IdleTimeout:       s.config.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "address", ln.Addr().String(), "live", s.config.Live)
		errCh <- s.httpServer.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if stderrors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.New("E401").Wrap(err)

	case <-ctx.Done():
		s.logger.Info("shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.config.ShutdownTimeout)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	}
}

// Shutdown closes live sessions, stops accepting requests and waits for
// in-flight requests and session loops to finish, or for ctx to end.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closing = true
	for ls := range s.sessions {
		ls.Close(websocket.CloseGoingAway, "server shutting down")
	}
	s.mu.Unlock()

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.logger.Error("shutdown error", "error", err)
			return err
		}
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	s.logger.Info("server shutdown complete")
	return nil
}

// Sessions returns the number of open live sessions.
func (s *Server) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Config returns the server configuration.
func (s *Server) Config() *Config {
	return s.config
}
