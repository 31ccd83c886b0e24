package tags

import "github.com/conneroisu/tagwriting/internal/placeholder"

// Rule aliases a custom tag to a prompt directive. Format may reference the
// alias' inner text as `{prompt}`.
type Rule struct {
	Tag    string
	Format string
}

// Rewrite applies the first rule, in declaration order, whose tag occurs in
// text. The alias' span becomes `<prompt[:attrs]>Format</prompt>`, keeping
// the alias' attributes. At most one rule is applied per call; a rewrite that
// produces another alias is handled by the next call.
func Rewrite(text string, rules []Rule) (string, Rule, bool) {
	for _, rule := range rules {
		tag, ok := Locate(rule.Tag, text)
		if !ok {
			continue
		}

		body := placeholder.Fill(rule.Format, map[string]string{"prompt": tag.Inner})
		replacement := OpeningTag(Prompt, tag.Attrs) + body + "</" + Prompt + ">"

		return text[:tag.Start] + replacement + text[tag.End:], rule, true
	}

	return text, Rule{}, false
}

// RuleTags returns the alias tag names of rules.
func RuleTags(rules []Rule) []string {
	names := make([]string, 0, len(rules))
	for _, r := range rules {
		names = append(names, r.Tag)
	}
	return names
}
