package errors

import (
	"bufio"
	stderrors "errors"
	"fmt"
	"os"
	"regexp"
	"strconv"

	"github.com/fcapolini/markout/pkg/dom"
	"github.com/fcapolini/markout/pkg/page"
	"github.com/fcapolini/markout/pkg/spec"
)

// Category represents the type of error.
type Category string

const (
	CategoryConfig Category = "config"
	CategorySpec   Category = "spec"
	CategoryPage   Category = "page"
	CategoryServer Category = "server"
)

// Location is a position in a source file.
type Location struct {
	File string
	Line int
}

// String returns the location as file:line.
func (l *Location) String() string {
	if l == nil {
		return ""
	}
	return fmt.Sprintf("%s:%d", l.File, l.Line)
}

// MarkoutError is a coded error with an optional location and hint.
type MarkoutError struct {
	// Code is a unique error identifier (e.g., "E201").
	Code string

	Category Category

	// Message is a short description of the error.
	Message string

	// Detail is a longer explanation.
	Detail string

	Location *Location

	// Context holds the source lines around Location.
	Context []string

	// Suggestion is a hint on how to fix the error.
	Suggestion string

	// Wrapped is the underlying error, if any.
	Wrapped error
}

// Error implements the error interface.
func (e *MarkoutError) Error() string {
	msg := e.Message
	if e.Code != "" {
		msg = e.Code + ": " + msg
	}
	if e.Wrapped != nil {
		msg += ": " + e.Wrapped.Error()
	}
	return msg
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *MarkoutError) Unwrap() error {
	return e.Wrapped
}

// WithLocation sets the source location and loads the surrounding lines.
func (e *MarkoutError) WithLocation(file string, line int) *MarkoutError {
	e.Location = &Location{File: file, Line: line}
	e.Context = readContextLines(file, line, 3)
	return e
}

// WithSuggestion adds a fix suggestion.
func (e *MarkoutError) WithSuggestion(s string) *MarkoutError {
	e.Suggestion = s
	return e
}

// WithDetail replaces the template explanation.
func (e *MarkoutError) WithDetail(d string) *MarkoutError {
	e.Detail = d
	return e
}

// Wrap sets the underlying error.
func (e *MarkoutError) Wrap(err error) *MarkoutError {
	e.Wrapped = err
	return e
}

// readContextLines returns up to size lines centered on target.
func readContextLines(filename string, target, size int) []string {
	file, err := os.Open(filename)
	if err != nil {
		return nil
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	first, last := target-size/2, target+size/2
	for n := 1; scanner.Scan() && n <= last; n++ {
		if n >= first {
			lines = append(lines, scanner.Text())
		}
	}
	return lines
}

// New creates a MarkoutError from a registered code.
func New(code string) *MarkoutError {
	t, ok := registry[code]
	if !ok {
		return &MarkoutError{Code: code, Message: "Unknown error"}
	}
	return &MarkoutError{
		Code:     code,
		Category: t.Category,
		Message:  t.Message,
		Detail:   t.Detail,
	}
}

// Newf creates an uncoded error with a formatted message.
func Newf(category Category, format string, args ...any) *MarkoutError {
	return &MarkoutError{
		Category: category,
		Message:  fmt.Sprintf(format, args...),
	}
}

// FromError wraps err under code unless it already is a MarkoutError.
func FromError(err error, code string) *MarkoutError {
	if err == nil {
		return nil
	}
	var me *MarkoutError
	if stderrors.As(err, &me) {
		return me
	}
	return New(code).Wrap(err)
}

var classes = []struct {
	target error
	code   string
}{
	{spec.ErrUnknownFunc, "E202"},
	{spec.ErrDuplicateID, "E203"},
	{spec.ErrInvalid, "E201"},
	{page.ErrNotFound, "E301"},
	{page.ErrInvalidName, "E302"},
	{page.ErrStatic, "E304"},
	{dom.ErrScopeNotFound, "E404"},
	{dom.ErrValueNotFound, "E405"},
}

// Classify maps err to a MarkoutError by the sentinel it wraps. Errors of
// no known kind get code E400.
func Classify(err error) *MarkoutError {
	if err == nil {
		return nil
	}
	var me *MarkoutError
	if stderrors.As(err, &me) {
		return me
	}
	for _, c := range classes {
		if stderrors.Is(err, c.target) {
			return New(c.code).Wrap(err)
		}
	}
	return New("E400").Wrap(err)
}

var lineRE = regexp.MustCompile(`line (\d+)`)

// LineOf extracts the first "line N" position from a decoder error message.
func LineOf(err error) (int, bool) {
	if err == nil {
		return 0, false
	}
	m := lineRE.FindStringSubmatch(err.Error())
	if m == nil {
		return 0, false
	}
	n, _ := strconv.Atoi(m[1])
	return n, n > 0
}
