package reactive

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

type call struct {
	key string
	val any
}

// recorder collects callback deliveries in order.
type recorder struct {
	calls []call
}

func (r *recorder) cb(key string) Callback {
	return func(_ *Scope, v any) {
		r.calls = append(r.calls, call{key, v})
	}
}

func TestScenarioSetThenPull(t *testing.T) {
	ctx := newRoot(map[string]ValueSpec{
		"v0": Constant(42),
		"v1": ref("v0"),
	})
	v0, _ := ctx.Root().Value("v0")
	v1, _ := ctx.Root().Value("v1")
	if got := v1.Get(); got != 42 {
		t.Fatalf("expected 42, got %v", got)
	}
	v0.Set(43)
	if got := v1.Get(); got != 43 {
		t.Errorf("expected 43, got %v", got)
	}

	v0.Set(44)
	ctx.Refresh()
	if got := v1.Get(); got != 44 {
		t.Errorf("expected 44 after refresh, got %v", got)
	}
}

func TestHeldPushDefersCallbacks(t *testing.T) {
	ctx := newRoot(map[string]ValueSpec{
		"a": Constant(0),
		"b": Constant(0),
	})
	a, _ := ctx.Root().Value("a")
	b, _ := ctx.Root().Value("b")

	rec := &recorder{}
	ctx.pushLevel++
	a.SetCallback(rec.cb("a"))
	b.SetCallback(rec.cb("b"))
	a.Set(1)
	b.Set(1)
	a.Set(2)
	b.Set(3)
	a.Set(4)
	if len(rec.calls) != 0 {
		t.Fatalf("expected no callbacks while nested, got %v", rec.calls)
	}
	if ctx.Pending() != 2 {
		t.Errorf("expected 2 pending values, got %d", ctx.Pending())
	}
	ctx.pushLevel--

	// The next write at the outermost level flushes everything at once.
	b.Set(5)
	want := []call{{"a", 4}, {"b", 5}}
	if diff := cmp.Diff(want, rec.calls, cmp.AllowUnexported(call{})); diff != "" {
		t.Errorf("callbacks mismatch (-want +got):\n%s", diff)
	}
	if ctx.Pending() != 0 {
		t.Errorf("expected an empty pending set, got %d", ctx.Pending())
	}
}

func TestRepeatedSetDeliversLastValue(t *testing.T) {
	ctx := newRoot(map[string]ValueSpec{"v": Constant(0)})
	v, _ := ctx.Root().Value("v")
	rec := &recorder{}
	v.SetCallback(rec.cb("v"))
	ctx.ApplyPending()
	rec.calls = nil

	ctx.refreshLevel++
	for i := 1; i <= 5; i++ {
		v.Set(i)
	}
	if len(rec.calls) != 0 {
		t.Fatalf("expected no callbacks inside a refresh, got %v", rec.calls)
	}
	ctx.refreshLevel--
	ctx.RefreshScope(nil, false)

	want := []call{{"v", 5}}
	if diff := cmp.Diff(want, rec.calls, cmp.AllowUnexported(call{})); diff != "" {
		t.Errorf("callbacks mismatch (-want +got):\n%s", diff)
	}
}

func TestUnchangedSetIsSilent(t *testing.T) {
	ctx := newRoot(map[string]ValueSpec{"v": Constant("x")})
	v, _ := ctx.Root().Value("v")
	rec := &recorder{}
	v.SetCallback(rec.cb("v"))
	ctx.ApplyPending()
	rec.calls = nil

	v.Set("x")
	if len(rec.calls) != 0 {
		t.Errorf("expected no callback for an unchanged write, got %v", rec.calls)
	}
}

func TestNestedRefreshFlushesOnce(t *testing.T) {
	rec := &recorder{}
	ctx := newRoot(map[string]ValueSpec{
		"v0": Constant(1),
		"v1": plusOne("v0"),
	})
	v1, _ := ctx.Root().Value("v1")
	v1.SetCallback(rec.cb("v1"))

	ctx.refreshLevel++
	ctx.Root().Env().Assign("v0", 10)
	ctx.RefreshScope(nil, true)
	if len(rec.calls) != 0 {
		t.Fatalf("expected inner refresh not to flush, got %v", rec.calls)
	}
	ctx.refreshLevel--
	ctx.RefreshScope(nil, false)

	want := []call{{"v1", 11}}
	if diff := cmp.Diff(want, rec.calls, cmp.AllowUnexported(call{})); diff != "" {
		t.Errorf("callbacks mismatch (-want +got):\n%s", diff)
	}
}

func TestConstantCallbackDeliveredOnFlush(t *testing.T) {
	ctx := newRoot(map[string]ValueSpec{"v": Constant("hello")})
	v, _ := ctx.Root().Value("v")
	rec := &recorder{}
	v.SetCallback(rec.cb("v"))
	if len(rec.calls) != 0 {
		t.Fatal("expected delivery to wait for a flush")
	}
	ctx.Refresh()
	want := []call{{"v", "hello"}}
	if diff := cmp.Diff(want, rec.calls, cmp.AllowUnexported(call{})); diff != "" {
		t.Errorf("callbacks mismatch (-want +got):\n%s", diff)
	}
}

func TestPanickingCallbackDoesNotStopFlush(t *testing.T) {
	ctx := newRoot(map[string]ValueSpec{
		"a": Constant(1),
		"b": Constant(2),
	})
	a, _ := ctx.Root().Value("a")
	b, _ := ctx.Root().Value("b")
	rec := &recorder{}
	a.SetCallback(func(*Scope, any) { panic("bad binding") })
	b.SetCallback(rec.cb("b"))
	ctx.ApplyPending()

	want := []call{{"b", 2}}
	if diff := cmp.Diff(want, rec.calls, cmp.AllowUnexported(call{})); diff != "" {
		t.Errorf("callbacks mismatch (-want +got):\n%s", diff)
	}
}

func TestEvaluationFailureIsLogged(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	New(ScopeSpec{
		ID: "0",
		Values: map[string]ValueSpec{
			"bad": Derived(func(*Env) (any, error) { return nil, errors.New("kaput") }),
			"dep": Derived(func(*Env) (any, error) { return 1, nil }, Dep("missing")),
		},
	}, WithLogger(logger))

	out := buf.String()
	for _, want := range []string{"value evaluation failed", "kaput", "dependency unavailable"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected log to contain %q, got:\n%s", want, out)
		}
	}
}

type countingObserver struct {
	refreshes   int
	propagated  int
	flushed     int
	evalFailure []string
}

func (o *countingObserver) RefreshDone(string, time.Duration) { o.refreshes++ }
func (o *countingObserver) Propagated(n int) { o.propagated += n }
func (o *countingObserver) Flushed(n int) { o.flushed += n }
func (o *countingObserver) EvalFailed(_, key string, _ error) {
	o.evalFailure = append(o.evalFailure, key)
}

func TestObserverEvents(t *testing.T) {
	obs := &countingObserver{}
	ctx := New(ScopeSpec{
		ID: "0",
		Values: map[string]ValueSpec{
			"v0":  Constant(1),
			"v1":  ref("v0"),
			"bad": Derived(func(*Env) (any, error) { panic("nope") }),
		},
	}, WithObserver(obs))

	if obs.refreshes != 1 {
		t.Errorf("expected 1 refresh, got %d", obs.refreshes)
	}
	if diff := cmp.Diff([]string{"bad"}, obs.evalFailure); diff != "" {
		t.Errorf("eval failures mismatch (-want +got):\n%s", diff)
	}

	v1, _ := ctx.Root().Value("v1")
	v1.SetCallback(func(*Scope, any) {})
	ctx.Root().Env().Assign("v0", 2)
	if obs.propagated != 1 {
		t.Errorf("expected fan-out of 1, got %d", obs.propagated)
	}
	if obs.flushed != 1 {
		t.Errorf("expected 1 flushed callback, got %d", obs.flushed)
	}
}

type recordingBinder struct {
	events []string
}

func (b *recordingBinder) Init(c *Context) {
	b.events = append(b.events, "init:"+c.Global().ID())
}

func (b *recordingBinder) BindScope(s *Scope) {
	b.events = append(b.events, "scope:"+s.ID())
}

func (b *recordingBinder) BindValue(s *Scope, key string, _ *Value) {
	b.events = append(b.events, "value:"+s.ID()+":"+key)
}

func (b *recordingBinder) UnbindScope(s *Scope) {
	b.events = append(b.events, "unbind:"+s.ID())
}

func TestBinderHooks(t *testing.T) {
	b := &recordingBinder{}
	ctx := New(ScopeSpec{
		ID:     "0",
		Values: map[string]ValueSpec{"y": Constant(1), "x": Constant(2)},
		Children: []ScopeSpec{{
			ID:     "1",
			Name:   "child",
			Values: map[string]ValueSpec{"z": Constant(3)},
		}},
	}, WithBinder(b))
	ctx.Find("1").Dispose()

	want := []string{
		"init:-",
		"scope:0",
		"value:0:x",
		"value:0:y",
		"scope:1",
		"value:1:z",
		"unbind:1",
	}
	if diff := cmp.Diff(want, b.events); diff != "" {
		t.Errorf("binder events mismatch (-want +got):\n%s", diff)
	}
}

func TestRefreshSubscope(t *testing.T) {
	evals := map[string]int{}
	counted := func(name string) ValueSpec {
		return Derived(func(env *Env) (any, error) {
			evals[name]++
			return env.Get("v0"), nil
		}, Dep("v0"))
	}
	ctx := newRoot(
		map[string]ValueSpec{"v0": Constant(1)},
		ScopeSpec{ID: "1", Values: map[string]ValueSpec{"a": counted("a")}},
		ScopeSpec{ID: "2", Values: map[string]ValueSpec{"b": counted("b")}},
	)
	one, two := ctx.Find("1"), ctx.Find("2")
	a, _ := one.Value("a")
	b, _ := two.Value("b")
	v0, _ := ctx.Root().Value("v0")
	before := map[string]int{"a": evals["a"], "b": evals["b"]}
	cycle := ctx.Cycle()

	ctx.RefreshScope(one, true)
	if ctx.Cycle() != cycle+1 {
		t.Errorf("expected one cycle advance, got %d -> %d", cycle, ctx.Cycle())
	}
	if diff := cmp.Diff(map[string]int{"a": before["a"] + 1, "b": before["b"]}, evals); diff != "" {
		t.Errorf("evaluation counts (-want +got):\n%s", diff)
	}
	if src := a.Sources(); len(src) != 1 || src[0] != v0 {
		t.Errorf("expected a to be relinked to v0, got %d sources", len(src))
	}
	if src := b.Sources(); len(src) != 1 || src[0] != v0 {
		t.Errorf("expected the sibling's edges untouched, got %d sources", len(src))
	}

	v0.Set(2)
	if a.Get() != 2 || b.Get() != 2 {
		t.Errorf("expected both scopes to follow v0, got a=%v b=%v", a.Get(), b.Get())
	}
}

func TestNonRecursiveValuePasses(t *testing.T) {
	ctx := newRoot(
		map[string]ValueSpec{"v0": Constant(1)},
		ScopeSpec{ID: "1", Values: map[string]ValueSpec{"a": ref("v0")}},
		ScopeSpec{ID: "2", Values: map[string]ValueSpec{"b": ref("v0")}},
	)
	root, one := ctx.Root(), ctx.Find("1")
	v0, _ := root.Value("v0")
	a, _ := one.Value("a")
	b, _ := ctx.Find("2").Value("b")

	// Unlinking the root alone still removes the edges from both ends.
	root.UnlinkValues(false)
	if len(v0.Destinations()) != 0 || len(a.Sources()) != 0 || len(b.Sources()) != 0 {
		t.Fatal("expected every edge of v0 to be gone")
	}
	root.LinkValues(false)
	if n := len(v0.Destinations()); n != 0 {
		t.Errorf("expected root-only link to leave children unwired, got %d destinations", n)
	}

	one.LinkValues(false)
	if dst := v0.Destinations(); len(dst) != 1 || dst[0] != a {
		t.Errorf("expected v0 to feed a only, got %d destinations", len(dst))
	}

	v0.Set(5)
	one.UpdateValues(false)
	if got := a.Peek(); got != 5 {
		t.Errorf("expected a to follow v0, got %v", got)
	}
	if got := b.Peek(); got != 1 {
		t.Errorf("expected the unlinked sibling to keep 1, got %v", got)
	}
}
