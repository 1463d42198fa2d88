package parse

import (
	"regexp"
	"strings"
)

// Component usage is written as a partial call: ">" followed by the
// component's expression, e.g. {{> header-component}}.
var partialRe = regexp.MustCompile(`>\s*([^\s"'<>{}()]+)`)

// A complete partial tag.
var partialTagRe = regexp.MustCompile(`\{\{~?>\s*([^\s"'<>{}()]+)[^}]*\}\}`)

// ComponentScanner finds component expressions in markup.
type ComponentScanner struct {
	postfix string
}

// NewComponentScanner returns a scanner for expressions ending in postfix.
func NewComponentScanner(postfix string) *ComponentScanner {
	return &ComponentScanner{postfix: postfix}
}

// Expressions returns every component expression in content, in order of
// appearance. Repeats are kept.
func (s *ComponentScanner) Expressions(content []byte) []string {
	if s.postfix == "" {
		return nil
	}
	var out []string
	for _, m := range partialRe.FindAllSubmatch(content, -1) {
		token := string(m[1])
		if len(token) > len(s.postfix) && strings.HasSuffix(token, s.postfix) {
			out = append(out, token)
		}
	}
	return out
}

// Inline replaces each {{> expression}} tag in content with what fn returns
// for the expression. Tags fn declines, and tags for other partials, are
// left as written.
func (s *ComponentScanner) Inline(content []byte, fn func(expr string) ([]byte, bool)) []byte {
	if s.postfix == "" {
		return content
	}
	return partialTagRe.ReplaceAllFunc(content, func(tag []byte) []byte {
		m := partialTagRe.FindSubmatch(tag)
		token := string(m[1])
		if len(token) <= len(s.postfix) || !strings.HasSuffix(token, s.postfix) {
			return tag
		}
		if out, ok := fn(token); ok {
			return out
		}
		return tag
	})
}
