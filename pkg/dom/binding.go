package dom

import (
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/fcapolini/markout/pkg/reactive"
)

// Value key prefixes recognized by the binding layer.
const (
	AttrPrefix  = "attr$"
	ClassPrefix = "class$"
	StylePrefix = "style$"
	TextPrefix  = "text$"
	EventPrefix = "event$"
)

// binding is the DOM side of one scope: its element, if any, and its text
// placeholders in document order.
type binding struct {
	ctx   *Context
	scope *reactive.Scope
	el    *html.Node
	texts []*html.Node
}

// collectTexts returns the text node following each placeholder marker in
// el's own subtree. Elements of nested scopes are skipped. A marker with no
// text node after it gets an empty one.
func collectTexts(el *html.Node) []*html.Node {
	var texts []*html.Node
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			switch c.Type {
			case html.ElementNode:
				if _, nested := getAttr(c, IDAttr); !nested {
					walk(c)
				}
			case html.CommentNode:
				if !strings.HasPrefix(c.Data, TextMarker) {
					continue
				}
				t := c.NextSibling
				if t == nil || t.Type != html.TextNode {
					t = &html.Node{Type: html.TextNode}
					n.InsertBefore(t, c.NextSibling)
				}
				texts = append(texts, t)
			}
		}
	}
	walk(el)
	return texts
}

// bind installs the DOM callback matching key's prefix, if any.
func (b *binding) bind(key string, v *reactive.Value) {
	switch {
	case strings.HasPrefix(key, AttrPrefix):
		name := camelToDash(key[len(AttrPrefix):])
		v.SetCallback(func(_ *reactive.Scope, val any) { b.attr(name, val) })
	case strings.HasPrefix(key, ClassPrefix):
		name := camelToDash(key[len(ClassPrefix):])
		v.SetCallback(func(_ *reactive.Scope, val any) { b.class(name, val) })
	case strings.HasPrefix(key, StylePrefix):
		name := camelToDash(key[len(StylePrefix):])
		v.SetCallback(func(_ *reactive.Scope, val any) { b.style(name, val) })
	case strings.HasPrefix(key, TextPrefix):
		i, err := strconv.Atoi(key[len(TextPrefix):])
		if err != nil || i < 0 {
			b.ctx.logger.Warn("invalid text binding", "scope", b.scope.ID(), "key", key)
			return
		}
		v.SetCallback(func(_ *reactive.Scope, val any) { b.text(i, val) })
	case strings.HasPrefix(key, EventPrefix):
		// Handled by the browser.
	}
}

func (b *binding) attr(name string, val any) {
	if b.el == nil {
		return
	}
	if reactive.IsNil(val) {
		if removeAttr(b.el, name) {
			b.ctx.emit(Patch{Op: PatchRemoveAttr, Scope: b.scope.ID(), Key: name})
		}
		return
	}
	s := stringify(val)
	setAttr(b.el, name, s)
	b.ctx.emit(Patch{Op: PatchSetAttr, Scope: b.scope.ID(), Key: name, Value: s})
}

func (b *binding) class(name string, val any) {
	if b.el == nil {
		return
	}
	cur, _ := getAttr(b.el, "class")
	next, changed := toggleClass(cur, name, reactive.Truthy(val))
	if !changed {
		return
	}
	b.replaceAttr("class", next)
}

func (b *binding) style(name string, val any) {
	if b.el == nil {
		return
	}
	s := ""
	if !reactive.IsNil(val) {
		s = stringify(val)
	}
	cur, _ := getAttr(b.el, "style")
	next := setStyleProperty(cur, name, s)
	if next == cur {
		return
	}
	b.replaceAttr("style", next)
}

// replaceAttr writes a computed attribute, dropping it when empty.
func (b *binding) replaceAttr(name, val string) {
	if val == "" {
		if removeAttr(b.el, name) {
			b.ctx.emit(Patch{Op: PatchRemoveAttr, Scope: b.scope.ID(), Key: name})
		}
		return
	}
	setAttr(b.el, name, val)
	b.ctx.emit(Patch{Op: PatchSetAttr, Scope: b.scope.ID(), Key: name, Value: val})
}

func (b *binding) text(i int, val any) {
	if i >= len(b.texts) {
		return
	}
	s := NilText
	if !reactive.IsNil(val) {
		s = stringify(val)
	}
	b.texts[i].Data = s
	b.ctx.emit(Patch{Op: PatchSetText, Scope: b.scope.ID(), Index: i, Value: s})
}
