// Package prompt builds the text sent to the generation service from a
// located directive, its expanded context and the configured templates.
package prompt

import (
	"context"
	"strings"

	"github.com/conneroisu/tagwriting/internal/logging"
	"github.com/conneroisu/tagwriting/internal/placeholder"
	"github.com/conneroisu/tagwriting/internal/tags"
)

// Placeholder names accepted by the prompt template.
const (
	KeyPrompt     = "prompt"
	KeyContext    = "context"
	KeyAttrsRules = "attrs_rules"
)

// TemplateKeys lists the placeholders a prompt template must use.
var TemplateKeys = []string{KeyPrompt, KeyContext, KeyAttrsRules}

// DefaultTemplate is used when the configuration has no prompt template.
const DefaultTemplate = `Your response will replace ` + "`" + tags.Sentinel + "`" + ` within the context.
Please output text consistent with the context's integrity.

Rule:
- Do not include ` + "`" + tags.Sentinel + "`" + ` in your response.
- Answer the UserPrompt directly, without explanations or commentary.
{attrs_rules}

Context:
{context}

UserPrompt:
{prompt}
`

// BuildRules turns directive attributes into bulleted rule lines, in tag
// order. Unknown attributes are reported through logger and skipped.
func BuildRules(ctx context.Context, attrs []string, dict map[string]string, logger logging.Logger) string {
	var lines []string
	for _, attr := range attrs {
		rule, ok := lookup(dict, attr)
		if !ok {
			if logger != nil {
				logger.Warn(ctx, nil, "Unknown attribute, no rule added", "attribute", attr)
			}
			continue
		}
		lines = append(lines, "- "+rule)
	}
	return strings.Join(lines, "\n")
}

// lookup tries the exact key first; config loaders may lower-case map keys.
func lookup(dict map[string]string, attr string) (string, bool) {
	if rule, ok := dict[attr]; ok {
		return rule, true
	}
	rule, ok := dict[strings.ToLower(attr)]
	return rule, ok
}

// Input is everything Compose needs for one directive.
type Input struct {
	Directive tags.Tag
	// Context is the reference-expanded document with the directive
	// replaced by the sentinel.
	Context string
	Rules   string
}

// Compose fills tmpl. A chat directive gets the bare sentinel as context.
func Compose(tmpl string, in Input) string {
	if tmpl == "" {
		tmpl = DefaultTemplate
	}

	contextValue := in.Context
	if in.Directive.Name == tags.Chat {
		contextValue = tags.Sentinel
	}

	return placeholder.Fill(tmpl, map[string]string{
		KeyPrompt:     in.Directive.Inner,
		KeyContext:    contextValue,
		KeyAttrsRules: in.Rules,
	})
}

// ReplaceWithSentinel returns text with the directive span swapped for the
// sentinel.
func ReplaceWithSentinel(text string, directive tags.Tag) string {
	return text[:directive.Start] + tags.Sentinel + text[directive.End:]
}

// RemoveDirective returns text with the directive span dropped. It is the
// context when a sentinel already in the document marks the response
// position.
func RemoveDirective(text string, directive tags.Tag) string {
	return text[:directive.Start] + text[directive.End:]
}
