package spec

import (
	"fmt"
	"sort"
	"strings"

	"github.com/fcapolini/markout/pkg/reactive"
)

// Build turns the document into a reactive.ScopeSpec, resolving function
// names against reg. A nil reg means NewRegistry().
func (d *Document) Build(reg *Registry) (reactive.ScopeSpec, error) {
	if reg == nil {
		reg = NewRegistry()
	}
	b := builder{reg: reg, ids: make(map[string]bool)}
	return b.scope(d)
}

type builder struct {
	reg *Registry
	ids map[string]bool
}

func (b *builder) scope(d *Document) (reactive.ScopeSpec, error) {
	if d.ID == "" {
		return reactive.ScopeSpec{}, fmt.Errorf("%w: scope without id", ErrInvalid)
	}
	if b.ids[d.ID] {
		return reactive.ScopeSpec{}, fmt.Errorf("%w: %q", ErrDuplicateID, d.ID)
	}
	b.ids[d.ID] = true

	out := reactive.ScopeSpec{
		ID:     d.ID,
		Name:   d.Name,
		Closed: d.Closed,
		Values: make(map[string]reactive.ValueSpec, len(d.Values)),
	}
	keys := make([]string, 0, len(d.Values))
	for key := range d.Values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if key == reactive.ValueFuncKey || key == reactive.ParentValueKey {
			return reactive.ScopeSpec{}, fmt.Errorf("%w: scope %q: %q is reserved", ErrInvalid, d.ID, key)
		}
		vs, err := b.value(d.Values[key])
		if err != nil {
			return reactive.ScopeSpec{}, fmt.Errorf("scope %q: value %q: %w", d.ID, key, err)
		}
		out.Values[key] = vs
	}
	for i := range d.Children {
		child, err := b.scope(&d.Children[i])
		if err != nil {
			return reactive.ScopeSpec{}, err
		}
		out.Children = append(out.Children, child)
	}
	return out, nil
}

func (b *builder) value(v Value) (reactive.ValueSpec, error) {
	switch v.Form {
	case FormRef:
		path, err := splitPath(v.Ref)
		if err != nil {
			return reactive.ValueSpec{}, err
		}
		return reactive.Derived(func(env *reactive.Env) (any, error) {
			res, _ := env.Path(path...)
			return res, nil
		}, reactive.DepPath(path...)), nil

	case FormCall:
		fn, ok := b.reg.Lookup(v.Fn)
		if !ok {
			return reactive.ValueSpec{}, fmt.Errorf("%w: %q", ErrUnknownFunc, v.Fn)
		}
		args := make([]argument, len(v.Args))
		var deps []reactive.DepFunc
		for i, a := range v.Args {
			if a.IsLiteral {
				args[i] = argument{val: a.Val}
				continue
			}
			path, err := splitPath(a.Ref)
			if err != nil {
				return reactive.ValueSpec{}, err
			}
			args[i] = argument{path: path}
			deps = append(deps, reactive.DepPath(path...))
		}
		name := v.Fn
		return reactive.Derived(func(env *reactive.Env) (any, error) {
			vals := make([]any, len(args))
			for i, a := range args {
				vals[i] = a.eval(env)
			}
			res, err := fn(vals...)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", name, err)
			}
			return res, nil
		}, deps...), nil

	default:
		return reactive.Constant(v.Val), nil
	}
}

type argument struct {
	path []string
	val  any
}

func (a argument) eval(env *reactive.Env) any {
	if a.path == nil {
		return a.val
	}
	res, _ := env.Path(a.path...)
	return res
}

func splitPath(ref string) ([]string, error) {
	path := strings.Split(ref, ".")
	for _, p := range path {
		if p == "" {
			return nil, fmt.Errorf("%w: malformed reference %q", ErrInvalid, ref)
		}
	}
	return path, nil
}
