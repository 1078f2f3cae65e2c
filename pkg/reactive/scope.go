package reactive

import "sort"

// Scope is a lexical environment node. It owns named Values and child scopes,
// and resolves names upward through its parents.
type Scope struct {
	ctx    *Context
	id     string
	name   string
	closed bool

	parent   *Scope
	children []*Scope

	values map[string]*Value
	keys   []string

	// cache memoizes lookups at the originating scope. It is cleared on
	// every unlink pass.
	cache map[string]*Value

	env *Env
}

func newScope(ctx *Context, spec ScopeSpec, parent *Scope) *Scope {
	s := &Scope{
		ctx:    ctx,
		id:     spec.ID,
		name:   spec.Name,
		closed: spec.Closed,
		values: make(map[string]*Value, len(spec.Values)+2),
		cache:  make(map[string]*Value),
	}
	s.env = &Env{scope: s}
	if ctx.binder != nil {
		ctx.binder.BindScope(s)
	}

	keys := make([]string, 0, len(spec.Values))
	for key := range spec.Values {
		if key == ValueFuncKey || key == ParentValueKey {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		s.addValue(key, spec.Values[key])
	}
	s.putValue(newValue(s, ValueFuncKey, Constant(LookupFunc(s.Lookup))))
	if parent != nil {
		s.putValue(newValue(s, ParentValueKey, Constant(parent.env)))
		s.attach(parent)
	}

	for _, child := range spec.Children {
		newScope(ctx, child, s)
	}
	return s
}

func (s *Scope) addValue(key string, spec ValueSpec) {
	v := newValue(s, key, spec)
	s.putValue(v)
	if s.ctx.binder != nil {
		s.ctx.binder.BindValue(s, key, v)
	}
}

func (s *Scope) putValue(v *Value) {
	if old, ok := s.values[v.key]; ok {
		old.unlink()
	} else {
		s.keys = append(s.keys, v.key)
	}
	s.values[v.key] = v
}

func (s *Scope) deleteValue(key string) {
	if _, ok := s.values[key]; !ok {
		return
	}
	delete(s.values, key)
	for i, k := range s.keys {
		if k == key {
			s.keys = append(s.keys[:i], s.keys[i+1:]...)
			break
		}
	}
}

// attach links the scope under parent and, if named, registers its Env as a
// constant Value on the parent.
func (s *Scope) attach(parent *Scope) {
	s.parent = parent
	parent.children = append(parent.children, s)
	if s.name != "" {
		parent.putValue(newValue(parent, s.name, Constant(s.env)))
		delete(parent.cache, s.name)
	}
}

// ID returns the scope id.
func (s *Scope) ID() string { return s.id }

// Name returns the scope name, or "" for anonymous scopes.
func (s *Scope) Name() string { return s.name }

// IsClosed reports whether name resolution stops at this scope.
func (s *Scope) IsClosed() bool { return s.closed }

// Context returns the owning Context.
func (s *Scope) Context() *Context { return s.ctx }

// Parent returns the parent scope, or nil for the global scope and for
// disposed scopes.
func (s *Scope) Parent() *Scope { return s.parent }

// Children returns the child scopes in spec order.
func (s *Scope) Children() []*Scope {
	out := make([]*Scope, len(s.children))
	copy(out, s.children)
	return out
}

// Env returns the scope's dynamic accessor surface.
func (s *Scope) Env() *Env { return s.env }

// Keys returns the names of the scope's own Values, reserved ones included.
func (s *Scope) Keys() []string {
	out := make([]string, len(s.keys))
	copy(out, s.keys)
	return out
}

// Value returns the scope's own Value for key, without walking parents.
func (s *Scope) Value(key string) (*Value, bool) {
	v, ok := s.values[key]
	return v, ok
}

// Lookup resolves key from this scope: own Values first, then each parent in
// turn until a closed scope is reached. Hits are cached on this scope.
func (s *Scope) Lookup(key string) (*Value, bool) {
	if v, ok := s.cache[key]; ok {
		return v, true
	}
	for cur := s; cur != nil; cur = cur.parent {
		if v, ok := cur.values[key]; ok {
			s.cache[key] = v
			return v, true
		}
		if cur.closed {
			break
		}
	}
	return nil, false
}

// LinkValues wires the dependency edges of every Value, optionally recursing
// into children.
func (s *Scope) LinkValues(recur bool) {
	for _, key := range s.Keys() {
		if v, ok := s.values[key]; ok {
			v.link()
		}
	}
	if recur {
		for _, child := range s.Children() {
			child.LinkValues(true)
		}
	}
}

// UnlinkValues clears the lookup cache and removes every edge of every Value,
// optionally recursing into children.
func (s *Scope) UnlinkValues(recur bool) {
	clear(s.cache)
	for _, key := range s.Keys() {
		if v, ok := s.values[key]; ok {
			v.unlink()
		}
	}
	if recur {
		for _, child := range s.Children() {
			child.UnlinkValues(true)
		}
	}
}

// UpdateValues pulls every Value, optionally recursing into children.
func (s *Scope) UpdateValues(recur bool) {
	for _, key := range s.Keys() {
		if v, ok := s.values[key]; ok {
			v.Get()
		}
	}
	if recur {
		for _, child := range s.Children() {
			child.UpdateValues(true)
		}
	}
}

// Dispose detaches the scope from its parent. Every Value in the subtree is
// unlinked, and neither the parent nor any scope under it resolves the
// scope's name afterwards. Disposing the global
// scope, or disposing twice, does nothing.
func (s *Scope) Dispose() {
	parent := s.parent
	if parent == nil {
		return
	}
	s.UnlinkValues(true)
	for i, c := range parent.children {
		if c == s {
			parent.children = append(parent.children[:i], parent.children[i+1:]...)
			break
		}
	}
	s.parent = nil
	if s.ctx.binder != nil {
		s.ctx.binder.UnbindScope(s)
	}
	if s.name == "" {
		return
	}
	v, ok := parent.values[s.name]
	if !ok {
		return
	}
	if env, ok := v.result.(*Env); !ok || env != s.env {
		return
	}
	v.unlink()
	parent.forget(s.name, v)
	parent.deleteValue(s.name)
}

// forget drops key from the lookup cache of s and of every scope under it
// that cached v for it.
func (s *Scope) forget(key string, v *Value) {
	if s.cache[key] == v {
		delete(s.cache, key)
	}
	for _, child := range s.children {
		child.forget(key, v)
	}
}
