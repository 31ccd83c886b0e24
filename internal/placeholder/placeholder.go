// Package placeholder fills the `{name}` templates used throughout the
// configuration: the prompt template, rewrite formats, history file names
// and entries, and hook commands.
//
// Substitution is a single left-to-right pass, so a value that itself
// contains `{prompt}` is never expanded again. `{{` and `}}` produce literal
// braces.
package placeholder

import (
	"fmt"
	"sort"
	"strings"
)

// token is one piece of a parsed template.
type token struct {
	literal string
	name    string
}

// parse splits a template into literal and placeholder tokens. A `{` that
// does not start a well-formed `{identifier}` is kept literally.
func parse(tmpl string) []token {
	var tokens []token
	var lit strings.Builder

	flush := func() {
		if lit.Len() > 0 {
			tokens = append(tokens, token{literal: lit.String()})
			lit.Reset()
		}
	}

	for i := 0; i < len(tmpl); i++ {
		c := tmpl[i]
		switch {
		case c == '{' && i+1 < len(tmpl) && tmpl[i+1] == '{':
			lit.WriteByte('{')
			i++
		case c == '}' && i+1 < len(tmpl) && tmpl[i+1] == '}':
			lit.WriteByte('}')
			i++
		case c == '{':
			end := strings.IndexByte(tmpl[i+1:], '}')
			if end <= 0 || !isIdentifier(tmpl[i+1:i+1+end]) {
				lit.WriteByte(c)
				continue
			}
			flush()
			tokens = append(tokens, token{name: tmpl[i+1 : i+1+end]})
			i += end + 1
		default:
			lit.WriteByte(c)
		}
	}
	flush()

	return tokens
}

func isIdentifier(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (i > 0 && c >= '0' && c <= '9') {
			continue
		}
		return false
	}
	return s != ""
}

// Fill substitutes every known placeholder with its value. Placeholders
// without a value are left in place verbatim.
func Fill(tmpl string, values map[string]string) string {
	var b strings.Builder
	b.Grow(len(tmpl))

	for _, tok := range parse(tmpl) {
		if tok.name == "" {
			b.WriteString(tok.literal)
			continue
		}
		if v, ok := values[tok.name]; ok {
			b.WriteString(v)
		} else {
			b.WriteString("{" + tok.name + "}")
		}
	}

	return b.String()
}

// Names returns the distinct placeholder names used by tmpl, sorted.
func Names(tmpl string) []string {
	seen := make(map[string]bool)
	var names []string
	for _, tok := range parse(tmpl) {
		if tok.name != "" && !seen[tok.name] {
			seen[tok.name] = true
			names = append(names, tok.name)
		}
	}
	sort.Strings(names)
	return names
}

// Validate checks that tmpl only uses placeholders from allowed and uses
// every placeholder in required.
func Validate(tmpl string, allowed, required []string) error {
	allowedSet := make(map[string]bool, len(allowed))
	for _, a := range allowed {
		allowedSet[a] = true
	}

	used := make(map[string]bool)
	for _, name := range Names(tmpl) {
		if !allowedSet[name] {
			return fmt.Errorf("unknown placeholder {%s} (allowed: %s)", name, braced(allowed))
		}
		used[name] = true
	}

	var missing []string
	for _, r := range required {
		if !used[r] {
			missing = append(missing, r)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required placeholder(s) %s", braced(missing))
	}

	return nil
}

func braced(names []string) string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = "{" + n + "}"
	}
	return strings.Join(out, ", ")
}
