package reactive

import (
	"log/slog"
	"time"
)

// Binder specializes scopes as they are built. The DOM layer implements it to
// attach elements to scopes and install callbacks on prefixed keys.
type Binder interface {
	// Init runs once, after the global scope exists and before the root
	// scope is built.
	Init(c *Context)

	// BindScope runs when a scope is created, before its Values.
	BindScope(s *Scope)

	// BindValue runs for every Value instantiated from a spec.
	BindValue(s *Scope, key string, v *Value)

	// UnbindScope runs when a scope is disposed.
	UnbindScope(s *Scope)
}

// Observer receives runtime events. Implementations must be cheap; they run
// inline with the graph.
type Observer interface {
	RefreshDone(scopeID string, d time.Duration)
	Propagated(fanout int)
	Flushed(n int)
	EvalFailed(scopeID, key string, err error)
}

type noopObserver struct{}

func (noopObserver) RefreshDone(string, time.Duration) {}
func (noopObserver) Propagated(int) {}
func (noopObserver) Flushed(int) {}
func (noopObserver) EvalFailed(string, string, error) {}

// Option configures a Context.
type Option func(*options)

type options struct {
	logger   *slog.Logger
	observer Observer
	binder   Binder
	globals  map[string]ValueSpec
}

// WithLogger sets the logger used for evaluation and refresh failures.
// Default: slog.Default().With("component", "reactive").
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithObserver sets the runtime event observer.
func WithObserver(obs Observer) Option {
	return func(o *options) {
		if obs != nil {
			o.observer = obs
		}
	}
}

// WithBinder sets the scope binder.
func WithBinder(b Binder) Option {
	return func(o *options) {
		o.binder = b
	}
}

// WithGlobals adds Values to the global scope.
func WithGlobals(values map[string]ValueSpec) Option {
	return func(o *options) {
		for k, v := range values {
			o.globals[k] = v
		}
	}
}

func defaultOptions() options {
	return options{
		logger:   slog.Default().With("component", "reactive"),
		observer: noopObserver{},
		globals:  make(map[string]ValueSpec),
	}
}
