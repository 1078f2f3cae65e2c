// Package errors provides coded, printable errors for the markout tools.
//
// Every code maps to a registered template holding a category, a short
// message and a longer explanation:
//
//	E1xx  configuration
//	E2xx  spec documents
//	E3xx  pages
//	E4xx  server and live sessions
//
// Classify turns the sentinel errors of the markout packages into coded
// errors, so callers can print them or map them to responses:
//
//	if err := run(); err != nil {
//	    me := errors.Classify(err).WithSuggestion("check the page name")
//	    fmt.Fprint(os.Stderr, me.Format())
//	}
//
// Format output:
//
//	ERROR E202: Unknown function
//
//	  pages/index.yaml:7
//
//	       6 │   title: Home
//	  →    7 │   shout: {fn: yell, args: [title]}
//	       8 │ children:
//
//	  A value calls a function that is not registered.
//
//	  Hint: register the function on the spec registry
package errors
