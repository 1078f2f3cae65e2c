// Package dom binds a reactive scope tree to an HTML document.
//
// The document is parsed with golang.org/x/net/html. Every element carrying a
// data-markout attribute is the home of the scope with the same id. Inside a
// scope's element, each interpolated text region is delimited by a pair of
// comments:
//
//	<p data-markout="1">Hello <!---t0-->&#8203;<!---/-->!</p>
//
// # Bindings
//
// Value keys carrying one of the recognized prefixes get a callback that
// mutates the scope's element whenever the Value changes:
//
//	attr$name    set the attribute, remove it when the value is nil
//	class$name   add or remove a class token by truthiness
//	style$name   set or remove a property in the style attribute
//	text$N       replace the text of the N-th placeholder
//
// Camel-case names are turned into dash-case, so attr$ariaLabel binds the
// aria-label attribute. The event$ prefix is reserved for client-side
// handlers and has no server-side effect. Any other key is pure computation.
//
// # Patches
//
// Every mutation is also reported as a Patch to the Context's PatchSink, if
// any. Live sessions forward patches to the browser so that it can replay
// them on its own copy of the document.
//
// A Context is not safe for concurrent use.
package dom
