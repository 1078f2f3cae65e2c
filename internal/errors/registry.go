package errors

import "sort"

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category Category
	Message  string
	Detail   string
}

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// Configuration (E100-E199)

	"E101": {
		Category: CategoryConfig,
		Message:  "Invalid configuration file",
		Detail:   "markout.json or markout.yaml could not be decoded.",
	},
	"E102": {
		Category: CategoryConfig,
		Message:  "Invalid configuration",
		Detail:   "A configuration value is out of range or inconsistent with the others.",
	},
	"E103": {
		Category: CategoryConfig,
		Message:  "Invalid environment file",
		Detail:   "A .env file exists but could not be parsed.",
	},
	"E104": {
		Category: CategoryConfig,
		Message:  "Docroot not found",
		Detail:   "The page directory does not exist or is not a directory.",
	},

	// Spec documents (E200-E299)

	"E201": {
		Category: CategorySpec,
		Message:  "Invalid spec document",
		Detail:   "Every scope needs an id, and every value is a literal or a mapping with exactly one of val, ref or fn.",
	},
	"E202": {
		Category: CategorySpec,
		Message:  "Unknown function",
		Detail:   "A value calls a function that is not registered.",
	},
	"E203": {
		Category: CategorySpec,
		Message:  "Duplicate scope id",
		Detail:   "Scope ids must be unique within a page.",
	},

	// Pages (E300-E399)

	"E301": {
		Category: CategoryPage,
		Message:  "Page not found",
		Detail:   "The store has no HTML document for this page.",
	},
	"E302": {
		Category: CategoryPage,
		Message:  "Invalid page name",
		Detail:   "Page names are relative slash-separated paths without dot segments.",
	},
	"E303": {
		Category: CategoryPage,
		Message:  "Page render failed",
		Detail:   "The page document could not be bound or serialized.",
	},
	"E304": {
		Category: CategoryPage,
		Message:  "Static page",
		Detail:   "The page has no spec, so there is nothing to update live.",
	},

	// Server and live sessions (E400-E499)

	"E400": {
		Category: CategoryServer,
		Message:  "Internal error",
	},
	"E401": {
		Category: CategoryServer,
		Message:  "Server failed",
		Detail:   "The HTTP listener stopped with an error.",
	},
	"E402": {
		Category: CategoryServer,
		Message:  "Invalid live message",
		Detail:   `Live messages are JSON objects: {"scope": "1", "key": "name", "value": ...}.`,
	},
	"E404": {
		Category: CategoryServer,
		Message:  "Scope not found",
		Detail:   "No scope of the page has this id.",
	},
	"E405": {
		Category: CategoryServer,
		Message:  "Value not found",
		Detail:   "The name does not resolve from the given scope.",
	},
}

// Codes returns all registered error codes, sorted.
func Codes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// GetTemplate returns the template for an error code.
func GetTemplate(code string) (ErrorTemplate, bool) {
	t, ok := registry[code]
	return t, ok
}

// Register adds a new error template to the registry. It is not safe to call
// concurrently with New.
func Register(code string, template ErrorTemplate) {
	registry[code] = template
}
