package reactive

import "fmt"

// Env is a scope's dynamic accessor surface. Expressions and dependency
// functions receive the Env of the scope owning the Value being computed.
type Env struct {
	scope *Scope
}

// Scope returns the scope behind the Env.
func (e *Env) Scope() *Scope {
	return e.scope
}

// Resolve looks key up lexically and returns the Value's current result,
// evaluating it first if stale.
func (e *Env) Resolve(key string) (any, bool) {
	v, ok := e.scope.Lookup(key)
	if !ok {
		return nil, false
	}
	return v.Get(), true
}

// Get is Resolve without the found flag; unresolved names read as nil.
func (e *Env) Get(key string) any {
	res, _ := e.Resolve(key)
	return res
}

// Assign writes val to the Value key resolves to. It reports false, and does
// nothing, when the name does not resolve or is one of the reserved
// accessors ($value, $parent).
func (e *Env) Assign(key string, val any) bool {
	if key == ValueFuncKey || key == ParentValueKey {
		return false
	}
	v, ok := e.scope.Lookup(key)
	if !ok {
		return false
	}
	v.Set(val)
	return true
}

// Ref returns the Value key resolves to, going through the scope's reserved
// $value accessor.
func (e *Env) Ref(key string) (*Value, error) {
	res, ok := e.Resolve(ValueFuncKey)
	if !ok {
		return nil, ErrNoLookup
	}
	lookup, ok := res.(LookupFunc)
	if !ok {
		return nil, ErrNoLookup
	}
	v, ok := lookup(key)
	if !ok {
		return nil, fmt.Errorf("%w: %q in scope %s", ErrNotFound, key, e.scope.id)
	}
	return v, nil
}

// RefPath returns the Value at a dotted path: each segment but the last must
// resolve to a named scope's Env.
func (e *Env) RefPath(keys ...string) (*Value, error) {
	if len(keys) == 0 {
		return nil, ErrNotFound
	}
	cur := e
	for _, key := range keys[:len(keys)-1] {
		res, ok := cur.Resolve(key)
		if !ok {
			return nil, fmt.Errorf("%w: %q in scope %s", ErrNotFound, key, cur.scope.id)
		}
		next, ok := res.(*Env)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrNotScope, key)
		}
		cur = next
	}
	return cur.Ref(keys[len(keys)-1])
}

// Path resolves a dotted path and returns the final result.
func (e *Env) Path(keys ...string) (any, bool) {
	v, err := e.RefPath(keys...)
	if err != nil {
		return nil, false
	}
	return v.Get(), true
}

// Parent returns the parent scope's Env through the reserved $parent value,
// or nil at the top of the tree.
func (e *Env) Parent() *Env {
	v, ok := e.scope.values[ParentValueKey]
	if !ok {
		return nil
	}
	p, _ := v.Get().(*Env)
	return p
}
