package tags

import "strings"

// Sanitize removes every opening (`<prompt>`, `<prompt:...>`) and closing
// (`</prompt>`) form of the directive tags, plus any extra tag names such as
// configured rewrite aliases, and the sentinel. Removal repeats until nothing
// changes, so fragments like `<pro<chat>mpt>` cannot join into a new tag.
//
// A response persisted into a document must go through Sanitize: it is what
// stops a generated answer from triggering another generation.
func Sanitize(text string, extra ...string) string {
	names := append([]string{Prompt, Chat}, extra...)

	for {
		out := text
		for _, name := range names {
			if name != "" {
				out = stripTag(name, out)
			}
		}
		out = strings.ReplaceAll(out, Sentinel, "")
		if out == text {
			return out
		}
		text = out
	}
}

// stripTag removes the markup of a single tag name in one pass.
func stripTag(name, text string) string {
	closing := "</" + name + ">"
	if !strings.Contains(text, "<"+name) && !strings.Contains(text, closing) {
		return text
	}

	var b strings.Builder
	b.Grow(len(text))

	for i := 0; i < len(text); {
		if text[i] != '<' {
			next := strings.IndexByte(text[i:], '<')
			if next < 0 {
				b.WriteString(text[i:])
				break
			}
			b.WriteString(text[i : i+next])
			i += next
			continue
		}

		if strings.HasPrefix(text[i:], closing) {
			i += len(closing)
			continue
		}
		if open, ok := parseOpening(name, text, i); ok {
			i = open.end
			continue
		}

		b.WriteByte('<')
		i++
	}

	return b.String()
}
