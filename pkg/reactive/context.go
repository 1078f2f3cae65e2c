package reactive

import (
	"log/slog"
	"time"
)

// GlobalScopeID is the id of the built-in global scope.
const GlobalScopeID = "-"

// LoggerKey names the global Value holding the Context's logger.
const LoggerKey = "logger"

// Context owns a scope tree and coordinates refresh passes and callback
// delivery. There is one Context per rendered page or live session.
type Context struct {
	global *Scope
	root   *Scope

	// cycle only grows. A Value whose cached cycle differs is stale.
	cycle uint64

	// refreshLevel and pushLevel track nesting so that the pending set is
	// flushed once, at the outermost exit.
	refreshLevel int
	pushLevel    int

	pending valueSet

	logger   *slog.Logger
	observer Observer
	binder   Binder
}

// New builds a Context: the global scope, then the root scope tree from spec,
// then a full refresh.
func New(root ScopeSpec, opts ...Option) *Context {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	c := &Context{
		logger:   o.logger,
		observer: o.observer,
	}

	globals := map[string]ValueSpec{LoggerKey: Constant(o.logger)}
	for k, v := range o.globals {
		globals[k] = v
	}
	c.global = newScope(c, ScopeSpec{ID: GlobalScopeID, Values: globals}, nil)

	c.binder = o.binder
	if c.binder != nil {
		c.binder.Init(c)
	}
	c.root = newScope(c, root, c.global)
	c.Refresh()
	return c
}

// Global returns the built-in global scope.
func (c *Context) Global() *Scope { return c.global }

// Root returns the root scope.
func (c *Context) Root() *Scope { return c.root }

// Cycle returns the current cycle number.
func (c *Context) Cycle() uint64 { return c.cycle }

// Logger returns the Context's logger.
func (c *Context) Logger() *slog.Logger { return c.logger }

// Pending returns the number of Values waiting for callback delivery.
func (c *Context) Pending() int { return c.pending.len() }

// Find returns the scope with the given id in the root tree.
func (c *Context) Find(id string) *Scope {
	var walk func(s *Scope) *Scope
	walk = func(s *Scope) *Scope {
		if s.id == id {
			return s
		}
		for _, child := range s.children {
			if found := walk(child); found != nil {
				return found
			}
		}
		return nil
	}
	return walk(c.root)
}

// Refresh runs a full pass over the root tree in a new cycle.
func (c *Context) Refresh() {
	c.RefreshScope(c.root, true)
}

// RefreshScope unlinks, relinks and re-evaluates every Value under s. A nil s
// means the root scope. The cycle advances once unless nextCycle is false.
//
// A panic anywhere in the pass is logged and the pass is considered done;
// one broken binding must not stop the rest of the page from rendering.
func (c *Context) RefreshScope(s *Scope, nextCycle bool) {
	if s == nil {
		s = c.root
	}
	start := time.Now()
	c.refreshLevel++
	c.guard("refresh", s, func() {
		if nextCycle {
			c.cycle++
		}
		s.UnlinkValues(true)
		s.LinkValues(true)
		s.UpdateValues(true)
	})
	c.refreshLevel--
	c.observer.RefreshDone(s.id, time.Since(start))
	if c.refreshLevel < 1 {
		c.ApplyPending()
	}
}

// ApplyPending invokes the callback of every pending Value once, with its
// current result, and empties the pending set.
func (c *Context) ApplyPending() {
	pending := c.pending.snapshot()
	c.pending.clear()
	if len(pending) == 0 {
		return
	}
	for _, v := range pending {
		if v.cb == nil {
			continue
		}
		c.guard("callback", v.scope, func() { v.cb(v.scope, v.result) })
	}
	c.observer.Flushed(len(pending))
}

// guard runs fn, logging and swallowing any panic.
func (c *Context) guard(op string, s *Scope, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("reactive "+op+" failed", "scope", s.id, "error", recovered(r))
		}
	}()
	fn()
}
