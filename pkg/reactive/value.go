package reactive

// Value is a reactive cell owned by a Scope.
//
// A Value is either constant (fixed result) or derived (an expression plus
// dependency functions). A derived Value becomes constant the first time Set
// is called on it; there is no way back.
type Value struct {
	scope *Scope
	key   string

	exp  ExprFunc
	deps []DepFunc
	cb   Callback

	// src holds the Values this one depends on, dst the Values depending on
	// it. The two are kept symmetric by link, unlink and Set.
	src valueSet
	dst valueSet

	// cycle is the context cycle of the last evaluation.
	cycle     uint64
	evaluated bool

	// evaluating is set while the expression runs; a re-entrant Get
	// returns the cached result instead of recursing.
	evaluating bool

	result any
}

func newValue(s *Scope, key string, spec ValueSpec) *Value {
	v := &Value{scope: s, key: key}
	switch spec.kind {
	case KindDerived:
		v.exp = spec.exp
		v.deps = spec.deps
	default:
		v.result = spec.val
	}
	return v
}

// Key returns the name the Value is registered under in its scope.
func (v *Value) Key() string {
	return v.key
}

// Scope returns the owning scope.
func (v *Value) Scope() *Scope {
	return v.scope
}

// IsConstant reports whether the Value holds a fixed result.
func (v *Value) IsConstant() bool {
	return v.exp == nil
}

// Peek returns the cached result without evaluating.
func (v *Value) Peek() any {
	return v.result
}

// Sources returns the Values this one currently depends on.
func (v *Value) Sources() []*Value {
	return v.src.snapshot()
}

// Destinations returns the Values currently depending on this one.
func (v *Value) Destinations() []*Value {
	return v.dst.snapshot()
}

// SetCallback installs cb as the Value's side effect. A constant Value is
// queued right away so that its payload is delivered by the next flush.
func (v *Value) SetCallback(cb Callback) {
	v.cb = cb
	if v.exp == nil {
		v.enqueue()
	}
}

// Get returns the current result, recomputing it when the context cycle has
// moved on since the last evaluation.
//
// A derived Value with no live sources is evaluated once and then left alone:
// it has nothing to watch, so a cycle advance alone does not re-pull it.
func (v *Value) Get() any {
	if v.evaluating {
		return v.result
	}
	ctx := v.scope.ctx
	if v.exp != nil && v.cycle != ctx.cycle {
		if !v.evaluated || v.src.len() > 0 {
			v.update()
		}
		v.cycle = ctx.cycle
	}
	return v.result
}

// Set makes the Value constant with the given result. If the result changed,
// the Value's callback is queued and its destinations are pushed.
func (v *Value) Set(val any) {
	old := v.result
	v.exp = nil
	v.deps = nil
	for _, o := range v.src.snapshot() {
		o.dst.remove(v)
	}
	v.src.clear()
	v.result = val
	if changed(old, val) {
		v.enqueue()
		v.propagate()
	}
}

// link wires the Value to every dependency that currently resolves.
func (v *Value) link() {
	for i, dep := range v.deps {
		o, err := v.resolveDep(dep)
		if err != nil {
			v.scope.ctx.logger.Debug("dependency unavailable",
				"scope", v.scope.id, "key", v.key, "dep", i, "error", err)
			continue
		}
		if o == nil {
			continue
		}
		o.dst.add(v)
		v.src.add(o)
	}
}

func (v *Value) resolveDep(dep DepFunc) (o *Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = recovered(r)
		}
	}()
	return dep(v.scope.env)
}

// unlink removes every edge touching the Value. It is idempotent.
func (v *Value) unlink() {
	for _, o := range v.src.snapshot() {
		o.dst.remove(v)
	}
	for _, o := range v.dst.snapshot() {
		o.src.remove(v)
	}
	v.src.clear()
	v.dst.clear()
}

// update recomputes the result. The push to destinations only happens when
// the context is not already inside a propagation; nested changes are picked
// up when a downstream Value is next pulled.
func (v *Value) update() {
	ctx := v.scope.ctx
	old := v.result
	v.evaluated = true
	res, err := v.eval()
	if err != nil {
		ctx.logger.Error("value evaluation failed", "scope", v.scope.id, "key", v.key, "error", err)
		ctx.observer.EvalFailed(v.scope.id, v.key, err)
	} else {
		v.result = res
	}
	if changed(old, v.result) {
		v.enqueue()
		if v.dst.len() > 0 && ctx.pushLevel < 1 {
			v.propagate()
		}
	}
}

func (v *Value) eval() (res any, err error) {
	v.evaluating = true
	defer func() {
		v.evaluating = false
		if r := recover(); r != nil {
			err = recovered(r)
		}
	}()
	res, err = v.exp(v.scope.env)
	if err != nil {
		return nil, &EvalError{ScopeID: v.scope.id, Key: v.key, Err: err}
	}
	return res, nil
}

// propagate re-reads every destination so that they notice the new cycle.
func (v *Value) propagate() {
	ctx := v.scope.ctx
	if ctx.pushLevel < 1 {
		ctx.cycle++
	}
	ctx.pushLevel++
	dst := v.dst.snapshot()
	func() {
		defer func() { ctx.pushLevel-- }()
		for _, d := range dst {
			ctx.guard("propagate", d.scope, func() { d.Get() })
		}
	}()
	ctx.observer.Propagated(len(dst))
	// Inside a refresh the outermost RefreshScope flushes.
	if ctx.pushLevel < 1 && ctx.refreshLevel < 1 {
		ctx.ApplyPending()
	}
}

func (v *Value) enqueue() {
	if v.cb != nil {
		v.scope.ctx.pending.add(v)
	}
}
