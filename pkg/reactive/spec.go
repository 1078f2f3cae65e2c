package reactive

// Reserved value keys present on every scope.
const (
	// ValueFuncKey holds the scope's by-name lookup accessor (a LookupFunc).
	ValueFuncKey = "$value"

	// ParentValueKey holds the parent scope's Env. It is the only name that
	// escapes a closed scope, and it escapes exactly one level.
	ParentValueKey = "$parent"
)

// ExprFunc computes a derived Value. It receives the owning scope's Env.
type ExprFunc func(env *Env) (any, error)

// DepFunc returns a Value the owner depends on. Returning an error means the
// dependency is currently unavailable; the edge is skipped, not fatal.
type DepFunc func(env *Env) (*Value, error)

// LookupFunc resolves a Value by name from a scope.
type LookupFunc func(key string) (*Value, bool)

// Callback receives a Value's owning scope and its result when the pending set
// is flushed.
type Callback func(s *Scope, v any)

// ValueKind discriminates the two ValueSpec variants.
type ValueKind uint8

const (
	KindConstant ValueKind = iota // fixed payload
	KindDerived                   // expression plus dependencies
)

// String returns the string representation of the ValueKind.
func (k ValueKind) String() string {
	switch k {
	case KindConstant:
		return "Constant"
	case KindDerived:
		return "Derived"
	default:
		return "Unknown"
	}
}

// ValueSpec describes how to build a Value. Use Constant or Derived.
type ValueSpec struct {
	kind ValueKind
	val  any
	exp  ExprFunc
	deps []DepFunc
}

// Constant returns a spec for a Value holding a fixed payload.
func Constant(v any) ValueSpec {
	return ValueSpec{kind: KindConstant, val: v}
}

// Derived returns a spec for a Value computed by exp. Each dep is invoked on
// every link pass to wire the Value to its sources.
func Derived(exp ExprFunc, deps ...DepFunc) ValueSpec {
	if exp == nil {
		return ValueSpec{kind: KindConstant}
	}
	return ValueSpec{kind: KindDerived, exp: exp, deps: deps}
}

// Kind reports which variant the spec is.
func (s ValueSpec) Kind() ValueKind {
	return s.kind
}

// ScopeSpec describes one scope and, recursively, its children.
type ScopeSpec struct {
	// ID is unique within the tree. The DOM layer uses it to find the
	// scope's element.
	ID string

	// Name registers the scope on its parent, so that parent.Get(Name)
	// yields this scope's Env.
	Name string

	// Closed stops upward name resolution at this scope.
	Closed bool

	Values   map[string]ValueSpec
	Children []ScopeSpec
}

// Dep returns a DepFunc resolving key through the scope's reserved lookup
// accessor.
func Dep(key string) DepFunc {
	return func(env *Env) (*Value, error) {
		return env.Ref(key)
	}
}

// DepPath returns a DepFunc resolving a dotted path such as head.title:
// every segment but the last must name a scope.
func DepPath(keys ...string) DepFunc {
	return func(env *Env) (*Value, error) {
		return env.RefPath(keys...)
	}
}
