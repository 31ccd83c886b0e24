package config

import (
	"fmt"
	"strings"
	"time"

	tagerrors "github.com/conneroisu/tagwriting/internal/errors"
	"github.com/conneroisu/tagwriting/internal/history"
	"github.com/conneroisu/tagwriting/internal/hook"
	"github.com/conneroisu/tagwriting/internal/placeholder"
	"github.com/conneroisu/tagwriting/internal/prompt"
	"github.com/conneroisu/tagwriting/internal/refs"
	"github.com/conneroisu/tagwriting/internal/tags"
	"github.com/conneroisu/tagwriting/internal/validation"
)

// ValidationError represents a configuration validation error with suggestions
type ValidationError struct {
	Field       string
	Value       interface{}
	Code        string
	Message     string
	Suggestions []string
}

func (ve *ValidationError) Error() string {
	return fmt.Sprintf("validation error in %s: %s", ve.Field, ve.Message)
}

// ValidationResult holds the result of configuration validation
type ValidationResult struct {
	Valid    bool
	Errors   []ValidationError
	Warnings []ValidationError
}

// HasErrors returns true if there are any validation errors
func (vr *ValidationResult) HasErrors() bool {
	return len(vr.Errors) > 0
}

// HasWarnings returns true if there are any validation warnings
func (vr *ValidationResult) HasWarnings() bool {
	return len(vr.Warnings) > 0
}

// String returns a formatted string of all validation issues
func (vr *ValidationResult) String() string {
	var builder strings.Builder

	if len(vr.Errors) > 0 {
		builder.WriteString("❌ Validation Errors:\n")
		for _, err := range vr.Errors {
			builder.WriteString(fmt.Sprintf("  • %s: %s\n", err.Field, err.Message))
			for _, suggestion := range err.Suggestions {
				builder.WriteString(fmt.Sprintf("    💡 %s\n", suggestion))
			}
		}
		builder.WriteString("\n")
	}

	if len(vr.Warnings) > 0 {
		builder.WriteString("⚠️  Validation Warnings:\n")
		for _, warning := range vr.Warnings {
			builder.WriteString(fmt.Sprintf("  • %s: %s\n", warning.Field, warning.Message))
			for _, suggestion := range warning.Suggestions {
				builder.WriteString(fmt.Sprintf("    💡 %s\n", suggestion))
			}
		}
	}

	return builder.String()
}

// Err converts the errors of the result into a single ConfigurationError,
// or nil.
func (vr *ValidationResult) Err(file string) error {
	collector := tagerrors.NewErrorCollector()
	for _, ve := range vr.Errors {
		err := tagerrors.NewConfigError(ve.Code, ve.Error()).WithContext("field", ve.Field)
		if file != "" {
			err = err.WithPath(file)
		}
		collector.AddError(err)
	}
	return collector.Err()
}

// Validate reports every configuration error found in config.
func Validate(config *Config) error {
	return ValidateConfigWithDetails(config).Err(config.File)
}

// ValidateConfigWithDetails performs comprehensive validation with detailed feedback
func ValidateConfigWithDetails(config *Config) *ValidationResult {
	result := &ValidationResult{
		Valid:    true,
		Errors:   []ValidationError{},
		Warnings: []ValidationError{},
	}

	validateTemplatesDetails(config, result)
	validateRulesDetails(config.Tags, result)
	validateAttrsDetails(config.Attrs, result)
	validatePatternsDetails(config, result)
	validateOptionsDetails(&config.Options, result)

	result.Valid = !result.HasErrors()

	return result
}

func validateTemplatesDetails(config *Config, result *ValidationResult) {
	checks := []struct {
		field    string
		tmpl     string
		allowed  []string
		required []string
	}{
		{"prompt", config.Prompt, prompt.TemplateKeys, prompt.TemplateKeys},
		{"history.file", config.History.File, history.FileKeys, history.FileKeys},
		{"history.template", config.History.Template, history.TemplateKeys, nil},
		{"hook.text_generate_end", config.Hook.TextGenerateEnd, hook.Keys, nil},
	}

	for _, c := range checks {
		if err := placeholder.Validate(c.tmpl, c.allowed, c.required); err != nil {
			result.Errors = append(result.Errors, ValidationError{
				Field:   c.field,
				Value:   c.tmpl,
				Code:    tagerrors.CodePlaceholder,
				Message: err.Error(),
				Suggestions: []string{
					"Placeholders are written as {name}; use {{ and }} for literal braces",
				},
			})
		}
	}
}

func validateRulesDetails(rules []RewriteRule, result *ValidationResult) {
	seen := make(map[string]bool)

	for i, rule := range rules {
		field := fmt.Sprintf("tags[%d]", i)

		if err := validateTagName(rule.Tag); err != nil {
			result.Errors = append(result.Errors, ValidationError{
				Field:   field + ".tag",
				Value:   rule.Tag,
				Code:    tagerrors.CodeRewriteRule,
				Message: err.Error(),
				Suggestions: []string{
					"Use a plain name such as 'summary' or 'translate'",
				},
			})
			continue
		}

		if seen[rule.Tag] {
			result.Warnings = append(result.Warnings, ValidationError{
				Field:   field + ".tag",
				Value:   rule.Tag,
				Message: fmt.Sprintf("duplicate rule for <%s>; only the first one is used", rule.Tag),
			})
		}
		seen[rule.Tag] = true

		if err := placeholder.Validate(rule.Format, []string{prompt.KeyPrompt}, nil); err != nil {
			result.Errors = append(result.Errors, ValidationError{
				Field:   field + ".format",
				Value:   rule.Format,
				Code:    tagerrors.CodePlaceholder,
				Message: err.Error(),
				Suggestions: []string{
					"Rewrite formats may only use {prompt}",
				},
			})
		}
	}
}

// validateTagName rejects names the tag grammar cannot express and the
// directive names themselves.
func validateTagName(name string) error {
	if name == "" {
		return fmt.Errorf("tag name is empty")
	}
	if name == tags.Prompt || name == tags.Chat {
		return fmt.Errorf("<%s> is a directive and cannot be rewritten", name)
	}
	if strings.ContainsAny(name, "<>/: \t\r\n") {
		return fmt.Errorf("tag name %q contains characters not allowed in a tag", name)
	}
	return nil
}

func validateAttrsDetails(attrs map[string]string, result *ValidationResult) {
	for name, rule := range attrs {
		field := "attrs." + name

		if name == "" || strings.ContainsAny(name, "<>: \t\r\n") {
			result.Errors = append(result.Errors, ValidationError{
				Field:   field,
				Value:   name,
				Code:    tagerrors.CodeAttrs,
				Message: fmt.Sprintf("attribute name %q cannot be used in a tag", name),
				Suggestions: []string{
					"Attribute names are written as <prompt:name>; avoid ':', '<', '>' and spaces",
				},
			})
			continue
		}

		if strings.TrimSpace(rule) == "" {
			result.Errors = append(result.Errors, ValidationError{
				Field:   field,
				Value:   rule,
				Code:    tagerrors.CodeAttrs,
				Message: "attribute rule text is empty",
			})
		}
	}
}

func validatePatternsDetails(config *Config, result *ValidationResult) {
	if config.Target != nil && len(config.Target) == 0 {
		result.Warnings = append(result.Warnings, ValidationError{
			Field:   "target",
			Message: "empty target list - every text file in the directory is processed",
			Suggestions: []string{
				"Add '*.md' to only process Markdown files",
			},
		})
	}

	for _, list := range []struct {
		field    string
		patterns []string
	}{{"ignore", config.Ignore}, {"target", config.Target}} {
		for i, p := range list.patterns {
			if strings.TrimSpace(p) == "" {
				result.Errors = append(result.Errors, ValidationError{
					Field:   fmt.Sprintf("%s[%d]", list.field, i),
					Value:   p,
					Code:    tagerrors.CodeConfigRead,
					Message: "empty path pattern",
				})
			}
		}
	}
}

func validateOptionsDetails(opts *Options, result *ValidationResult) {
	if _, err := refs.ParseMode(opts.URLMode); err != nil {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "options.url_mode",
			Value:   opts.URLMode,
			Code:    tagerrors.CodeConfigRead,
			Message: err.Error(),
			Suggestions: []string{
				"Use 'strip', 'text' or 'markdown'",
			},
		})
	}

	durations := []struct {
		field string
		value time.Duration
	}{
		{"options.fetch_timeout", opts.FetchTimeout},
		{"options.generate_timeout", opts.GenerateTimeout},
		{"options.hook_timeout", opts.HookTimeout},
		{"options.debounce", opts.Debounce},
	}
	for _, d := range durations {
		if d.value < 0 {
			result.Errors = append(result.Errors, ValidationError{
				Field:   d.field,
				Value:   d.value,
				Code:    tagerrors.CodeConfigRead,
				Message: "duration cannot be negative",
			})
		}
	}

	if opts.PersistentCache {
		if opts.CacheSize <= 0 {
			result.Errors = append(result.Errors, ValidationError{
				Field:   "options.cache_size",
				Value:   opts.CacheSize,
				Code:    tagerrors.CodeConfigRead,
				Message: "cache size must be positive when persistent_cache is enabled",
			})
		}
		if opts.CacheTTL <= 0 {
			result.Warnings = append(result.Warnings, ValidationError{
				Field:   "options.cache_ttl",
				Value:   opts.CacheTTL,
				Message: "no TTL - cached references never expire until the config is reloaded",
			})
		}
	}

	if opts.WikipediaEndpoint != "" {
		if err := validation.ValidateFetchURL(opts.WikipediaEndpoint); err != nil {
			result.Errors = append(result.Errors, ValidationError{
				Field:   "options.wikipedia_endpoint",
				Value:   opts.WikipediaEndpoint,
				Code:    tagerrors.CodeConfigRead,
				Message: err.Error(),
				Suggestions: []string{
					"Use the REST base, e.g. https://en.wikipedia.org/api/rest_v1",
				},
			})
		}
	}

	if opts.WikipediaLang == "" && opts.WikipediaEndpoint == "" {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "options.wikipedia_lang",
			Code:    tagerrors.CodeConfigRead,
			Message: "wikipedia_lang is empty and no wikipedia_endpoint is set",
		})
	}
}
