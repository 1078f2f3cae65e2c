package spec

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/fcapolini/markout/pkg/reactive"
)

// Func is a function callable from a document.
type Func func(args ...any) (any, error)

// Registry maps function names to implementations. It is safe for
// concurrent use.
type Registry struct {
	mu    sync.RWMutex
	funcs map[string]Func
}

// NewRegistry returns a registry holding the built-in functions.
func NewRegistry() *Registry {
	r := &Registry{funcs: make(map[string]Func)}
	r.Register("concat", concat)
	r.Register("sum", sum)
	r.Register("not", not)
	r.Register("eq", eq)
	r.Register("upper", mapString(strings.ToUpper))
	r.Register("lower", mapString(strings.ToLower))
	r.Register("default", firstNonNil)
	r.Register("len", length)
	return r
}

// Register adds or replaces a function.
func (r *Registry) Register(name string, fn Func) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.funcs[name] = fn
}

// Lookup returns the function registered under name.
func (r *Registry) Lookup(name string) (Func, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.funcs[name]
	return fn, ok
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.funcs))
	for name := range r.funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func concat(args ...any) (any, error) {
	var b strings.Builder
	for _, a := range args {
		if a != nil {
			fmt.Fprint(&b, a)
		}
	}
	return b.String(), nil
}

// sum adds numbers. The result is an int when every argument is an integer.
func sum(args ...any) (any, error) {
	var i int64
	var f float64
	isFloat := false
	for _, a := range args {
		rv := reflect.ValueOf(a)
		switch rv.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			i += rv.Int()
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			i += int64(rv.Uint())
		case reflect.Float32, reflect.Float64:
			f += rv.Float()
			isFloat = true
		default:
			return nil, fmt.Errorf("sum: not a number: %v", a)
		}
	}
	if isFloat {
		return f + float64(i), nil
	}
	return int(i), nil
}

func not(args ...any) (any, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("not: want 1 argument, got %d", len(args))
	}
	return !reactive.Truthy(args[0]), nil
}

func eq(args ...any) (any, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("eq: want 2 arguments, got %d", len(args))
	}
	return reactive.Equal(args[0], args[1]), nil
}

func mapString(fn func(string) string) Func {
	return func(args ...any) (any, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("want 1 argument, got %d", len(args))
		}
		if args[0] == nil {
			return nil, nil
		}
		return fn(fmt.Sprint(args[0])), nil
	}
}

func firstNonNil(args ...any) (any, error) {
	for _, a := range args {
		if !reactive.IsNil(a) {
			return a, nil
		}
	}
	return nil, nil
}

func length(args ...any) (any, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("len: want 1 argument, got %d", len(args))
	}
	if args[0] == nil {
		return 0, nil
	}
	rv := reflect.ValueOf(args[0])
	switch rv.Kind() {
	case reflect.String, reflect.Slice, reflect.Array, reflect.Map:
		return rv.Len(), nil
	}
	return nil, fmt.Errorf("len: unsupported type %T", args[0])
}
