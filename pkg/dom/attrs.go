package dom

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// getAttr returns the value of attribute key on n.
func getAttr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// setAttr sets or adds attribute key on n.
func setAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

// removeAttr deletes attribute key from n. It reports whether it was present.
func removeAttr(n *html.Node, key string) bool {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)
			return true
		}
	}
	return false
}

// classTokens splits a class attribute on whitespace.
func classTokens(s string) []string {
	return strings.Fields(s)
}

// toggleClass adds or removes token from the class list of s. It returns the
// new attribute value and whether anything changed.
func toggleClass(s, token string, on bool) (string, bool) {
	tokens := classTokens(s)
	idx := -1
	for i, t := range tokens {
		if t == token {
			idx = i
			break
		}
	}
	switch {
	case on && idx < 0:
		tokens = append(tokens, token)
	case !on && idx >= 0:
		tokens = append(tokens[:idx], tokens[idx+1:]...)
	default:
		return s, false
	}
	return strings.Join(tokens, " "), true
}

type declaration struct {
	prop, val string
}

// parseStyle splits a style attribute into declarations, in order.
func parseStyle(s string) []declaration {
	var out []declaration
	for _, part := range strings.Split(s, ";") {
		prop, val, ok := strings.Cut(part, ":")
		if !ok {
			continue
		}
		prop = strings.TrimSpace(prop)
		if prop == "" {
			continue
		}
		out = append(out, declaration{prop: prop, val: strings.TrimSpace(val)})
	}
	return out
}

func formatStyle(decls []declaration) string {
	parts := make([]string, len(decls))
	for i, d := range decls {
		parts[i] = d.prop + ": " + d.val + ";"
	}
	return strings.Join(parts, " ")
}

// setStyleProperty sets prop in style s, or removes it when val is empty.
func setStyleProperty(s, prop, val string) string {
	decls := parseStyle(s)
	idx := -1
	for i, d := range decls {
		if d.prop == prop {
			idx = i
			break
		}
	}
	switch {
	case val == "":
		if idx >= 0 {
			decls = append(decls[:idx], decls[idx+1:]...)
		}
	case idx >= 0:
		decls[idx].val = val
	default:
		decls = append(decls, declaration{prop: prop, val: val})
	}
	return formatStyle(decls)
}

// camelToDash turns fooBar into foo-bar. Only a lower-case letter followed by
// an upper-case one starts a new word.
func camelToDash(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 4)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if i > 0 && isUpper(c) && isLower(s[i-1]) {
			b.WriteByte('-')
			b.WriteByte(c + ('a' - 'A'))
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

func isUpper(c byte) bool { return c >= 'A' && c <= 'Z' }
func isLower(c byte) bool { return c >= 'a' && c <= 'z' }

// stringify renders a Value payload for the document.
func stringify(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(v)
	}
}
