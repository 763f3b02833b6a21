// Package sqlgen is the platform's SQL AST and statement builder. Generated
// SQL is never free-form string concatenation of user/tenant-controlled
// values — it is built from typed Table/Column descriptions through a small
// renderer.
package sqlgen

import (
	"regexp"
	"strings"
)

// Renderer sanitizes and optionally wraps a piece of text (an identifier or
// a literal value) for inclusion in a SQL statement.
type Renderer struct {
	sanitizer   func(string) string
	wrapper     func(string) string
	skipWrapper func(string) bool
}

// NewRenderer builds a Renderer from its component functions.
func NewRenderer(sanitizer func(string) string, wrapper func(string) string, skipWrapper func(string) bool) *Renderer {
	return &Renderer{sanitizer: sanitizer, wrapper: wrapper, skipWrapper: skipWrapper}
}

// Render sanitizes then (conditionally) wraps text.
func (r *Renderer) Render(text string) string {
	if r == nil {
		return text
	}
	if r.sanitizer != nil {
		text = r.sanitizer(text)
	}
	if (r.skipWrapper != nil && r.skipWrapper(text)) || r.wrapper == nil {
		return text
	}
	return r.wrapper(text)
}

// TokenPair surrounds text with a left and right token, used for quoting.
type TokenPair struct {
	Left  string
	Right string
}

// Wrap returns text surrounded by the pair's tokens.
func (p TokenPair) Wrap(text string) string { return p.Left + text + p.Right }

// DoubleQuotesWrapper wraps identifiers in ANSI double quotes.
func DoubleQuotesWrapper() func(string) string {
	return TokenPair{Left: `"`, Right: `"`}.Wrap
}

// SingleQuotesWrapper wraps string literals in single quotes.
func SingleQuotesWrapper() func(string) string {
	return TokenPair{Left: "'", Right: "'"}.Wrap
}

// DefaultUnwrappedIdentifiers matches identifiers that never need quoting.
var DefaultUnwrappedIdentifiers = regexp.MustCompile(`^[_a-zA-Z][_a-zA-Z0-9]*$`).MatchString

// DefaultQuoteSanitizer escapes single quotes for use inside a SQL literal.
var DefaultQuoteSanitizer = strings.NewReplacer("'", "''").Replace
