// Package reactive provides the scope/value graph runtime behind Markout pages.
//
// A page is described by a tree of scope specifications. Each scope owns named
// reactive cells (Values) that are either constant or derived from other Values
// anywhere in the ancestor chain. The runtime keeps every derived Value in sync
// with its sources through two complementary mechanisms:
//
//   - pull: reading a Value whose cached cycle is stale recomputes it
//   - push: writing a Value eagerly re-reads its destinations
//
// # Core Types
//
// Value is a reactive cell:
//
//	v0 := reactive.Constant(42)
//	v1 := reactive.Derived(func(env *reactive.Env) (any, error) {
//	    return env.Get("v0"), nil
//	}, reactive.Dep("v0"))
//
// Scope is a lexical environment node. Names resolve upward through parents
// unless the scope is closed:
//
//	ctx := reactive.New(reactive.ScopeSpec{
//	    ID:     "0",
//	    Values: map[string]reactive.ValueSpec{"v0": v0, "v1": v1},
//	})
//	ctx.Root().Env().Get("v1")      // 42
//	ctx.Root().Env().Assign("v0", 43)
//	ctx.Root().Env().Get("v1")      // 43
//
// Context owns the tree, the cycle counter and the pending-callback set.
//
// # Callback Batching
//
// Value callbacks never run inline. A changed Value is queued in the Context's
// pending set, and the set is flushed exactly once when the outermost refresh
// or propagation returns. Each queued Value's callback receives its final result
// as of flush time.
//
// # Failure Policy
//
// The graph never fails loudly. A failing expression keeps its previous result,
// a dependency that cannot be resolved is simply not linked, and a broken refresh
// pass is logged and treated as complete.
//
// # Thread Safety
//
// A Context is not safe for concurrent use. Callers that share a Context between
// goroutines must serialize access themselves.
package reactive
