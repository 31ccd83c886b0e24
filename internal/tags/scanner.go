// Package tags implements the directive grammar: locating `<prompt>` and
// `<chat>` tags (with optional `:attr` suffixes), expanding user-defined tag
// aliases into prompt directives, and stripping directive markup from
// generated text.
package tags

import "strings"

// Directive tag names, in resolution priority order.
const (
	Prompt = "prompt"
	Chat   = "chat"
)

// Sentinel marks the directive's position while the generation context is
// composed.
const Sentinel = "@@processing@@"

// Tag is one located tag occurrence.
type Tag struct {
	// Name is the tag name that was searched for.
	Name string
	// Full is the matched span, from the opening `<` to the closing `>`.
	Full string
	// Inner is the text between the opening and closing tags.
	Inner string
	// Attrs are the colon-separated attributes of the opening tag.
	Attrs []string
	// Start and End are the byte offsets of Full in the scanned text.
	Start, End int
}

// opening is a parsed `<name...>` token.
type opening struct {
	start, end int
	attrs      []string
	// attributed is set for the `<name:...>` form, even when every
	// attribute segment is empty.
	attributed bool
}

// Locate finds the innermost occurrence of `<name[:attrs]>...</name>` in text.
//
// The inner text never contains an unattributed opening `<name>`; attributed openings
// such as `<name:x>` may appear inside it. The scan is a single pass that
// keeps one candidate opening: an unattributed opening always replaces the
// candidate, an attributed one only becomes the candidate when there is none.
// The first closing tag seen with a candidate ends the match, so
// `<p>a <p>b</p> c</p>` resolves to `<p>b</p>` while `<p>a <p:x>b</p>`
// resolves to the whole span. Closing tags with no candidate are ignored.
func Locate(name, text string) (Tag, bool) {
	if name == "" {
		return Tag{}, false
	}

	closing := "</" + name + ">"
	var candidate *opening

	for i := 0; i < len(text); {
		lt := strings.IndexByte(text[i:], '<')
		if lt < 0 {
			break
		}
		pos := i + lt

		if strings.HasPrefix(text[pos:], closing) {
			if candidate != nil {
				end := pos + len(closing)
				return Tag{
					Name:  name,
					Full:  text[candidate.start:end],
					Inner: text[candidate.end:pos],
					Attrs: candidate.attrs,
					Start: candidate.start,
					End:   end,
				}, true
			}
			i = pos + len(closing)
			continue
		}

		if open, ok := parseOpening(name, text, pos); ok {
			if candidate == nil || !open.attributed {
				candidate = &open
			}
			i = open.end
			continue
		}

		i = pos + 1
	}

	return Tag{}, false
}

// parseOpening recognises `<name>` or `<name:a:b>` starting at pos.
func parseOpening(name, text string, pos int) (opening, bool) {
	head := "<" + name
	if !strings.HasPrefix(text[pos:], head) {
		return opening{}, false
	}

	rest := pos + len(head)
	if rest >= len(text) {
		return opening{}, false
	}

	switch text[rest] {
	case '>':
		return opening{start: pos, end: rest + 1, attrs: []string{}}, true
	case ':':
		gt := strings.IndexByte(text[rest:], '>')
		if gt < 0 {
			return opening{}, false
		}
		suffix := text[rest+1 : rest+gt]
		if strings.ContainsAny(suffix, "<\n\r") {
			return opening{}, false
		}
		return opening{start: pos, end: rest + gt + 1, attrs: splitAttrs(suffix), attributed: true}, true
	default:
		return opening{}, false
	}
}

func splitAttrs(suffix string) []string {
	attrs := []string{}
	for _, a := range strings.Split(suffix, ":") {
		if a = strings.TrimSpace(a); a != "" {
			attrs = append(attrs, a)
		}
	}
	return attrs
}

// LocateDirective returns the first directive in priority order: a `prompt`
// tag wins over a `chat` tag.
func LocateDirective(text string) (Tag, bool) {
	for _, name := range []string{Prompt, Chat} {
		if tag, ok := Locate(name, text); ok {
			return tag, true
		}
	}
	return Tag{}, false
}

// LeftoverSentinel returns the offset of the first sentinel in text that
// lies wholly outside tag, such as one left behind by an interrupted run.
func LeftoverSentinel(text string, tag Tag) (int, bool) {
	if i := strings.Index(text[:tag.Start], Sentinel); i >= 0 {
		return i, true
	}
	if i := strings.Index(text[tag.End:], Sentinel); i >= 0 {
		return tag.End + i, true
	}
	return -1, false
}

// OpeningTag renders `<name>` or `<name:a:b>`.
func OpeningTag(name string, attrs []string) string {
	if len(attrs) == 0 {
		return "<" + name + ">"
	}
	return "<" + name + ":" + strings.Join(attrs, ":") + ">"
}
