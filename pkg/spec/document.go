// Package spec loads scope trees from declarative YAML or JSON documents.
//
// A document mirrors reactive.ScopeSpec. Values come in three forms:
//
//	title: "Hello"                 # literal, same as {val: "Hello"}
//	lang: {val: en}                # literal
//	greeting: {ref: head.title}    # reads a dotted path, tracks it
//	shout: {fn: upper, args: [greeting]}
//
// Function arguments are either references (plain strings) or literals
// ({val: ...}). Every reference, in a ref value or an argument, becomes a
// dependency of the value.
package spec

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

var (
	// ErrInvalid is returned for structurally invalid documents.
	ErrInvalid = errors.New("spec: invalid document")

	// ErrUnknownFunc is returned when a value calls an unregistered function.
	ErrUnknownFunc = errors.New("spec: unknown function")

	// ErrDuplicateID is returned when two scopes share an id.
	ErrDuplicateID = errors.New("spec: duplicate scope id")
)

// Document is a declarative scope.
type Document struct {
	ID       string           `yaml:"id"`
	Name     string           `yaml:"name,omitempty"`
	Closed   bool             `yaml:"closed,omitempty"`
	Values   map[string]Value `yaml:"values,omitempty"`
	Children []Document       `yaml:"children,omitempty"`
}

// ValueForm tells the three forms of Value apart.
type ValueForm int

const (
	FormLiteral ValueForm = iota
	FormRef
	FormCall
)

// Value is one declarative value.
type Value struct {
	Form ValueForm
	Val  any
	Ref  string
	Fn   string
	Args []Arg
}

// Arg is a function argument: a reference, or a literal when IsLiteral.
type Arg struct {
	Ref       string
	Val       any
	IsLiteral bool
}

// UnmarshalYAML accepts a bare literal or a mapping with exactly one of val,
// ref or fn.
func (v *Value) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		v.Form = FormLiteral
		return node.Decode(&v.Val)
	}
	var val *yaml.Node
	forms := 0
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, content := node.Content[i], node.Content[i+1]
		var err error
		switch key.Value {
		case "val":
			val = content
			forms++
		case "ref":
			err = content.Decode(&v.Ref)
			forms++
		case "fn":
			err = content.Decode(&v.Fn)
			forms++
		case "args":
			err = content.Decode(&v.Args)
		default:
			err = fmt.Errorf("%w: line %d: unknown value field %q", ErrInvalid, key.Line, key.Value)
		}
		if err != nil {
			return err
		}
	}
	if forms != 1 {
		return fmt.Errorf("%w: line %d: a value needs exactly one of val, ref or fn", ErrInvalid, node.Line)
	}
	switch {
	case val != nil:
		v.Form = FormLiteral
		return val.Decode(&v.Val)
	case v.Ref != "":
		v.Form = FormRef
	case v.Fn != "":
		v.Form = FormCall
	default:
		return fmt.Errorf("%w: line %d: empty ref or fn", ErrInvalid, node.Line)
	}
	if v.Form != FormCall && len(v.Args) > 0 {
		return fmt.Errorf("%w: line %d: args without fn", ErrInvalid, node.Line)
	}
	return nil
}

// UnmarshalYAML accepts a reference string or a {val: ...} literal.
func (a *Arg) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		if node.ShortTag() != "!!str" || node.Value == "" {
			return fmt.Errorf("%w: line %d: literal arguments must be written as {val: ...}", ErrInvalid, node.Line)
		}
		a.Ref = node.Value
		return nil
	case yaml.MappingNode:
		if len(node.Content) == 2 {
			key, content := node.Content[0], node.Content[1]
			switch key.Value {
			case "val":
				a.IsLiteral = true
				return content.Decode(&a.Val)
			case "ref":
				return content.Decode(&a.Ref)
			}
		}
	}
	return fmt.Errorf("%w: line %d: invalid argument", ErrInvalid, node.Line)
}

// Parse decodes a YAML or JSON document.
func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		if errors.Is(err, ErrInvalid) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if doc.ID == "" {
		return nil, fmt.Errorf("%w: root scope has no id", ErrInvalid)
	}
	return &doc, nil
}

// Load reads and decodes a document from r.
func Load(r io.Reader) (*Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("spec: read: %w", err)
	}
	return Parse(data)
}

// LoadFile reads and decodes the document at path.
func LoadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("spec: %w", err)
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}
