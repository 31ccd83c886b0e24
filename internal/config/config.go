// Package config provides configuration management for tagwriting using
// Viper for loading from YAML files and TAGWRITING_ environment overrides.
//
// The configuration holds the prompt template, rewrite rules, attribute
// rules, the watched/ignored path patterns, history and hook templates, and
// the runtime options (reference fetching, timeouts, caching, debounce).
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	tagerrors "github.com/conneroisu/tagwriting/internal/errors"
	"github.com/conneroisu/tagwriting/internal/history"
	"github.com/conneroisu/tagwriting/internal/prompt"
	"github.com/conneroisu/tagwriting/internal/tags"
)

// DefaultFileName is looked up in the working directory when no --config
// flag or TAGWRITING_CONFIG_FILE is given.
const DefaultFileName = ".tagwriting.yml"

// EnvPrefix is the prefix of environment overrides.
const EnvPrefix = "TAGWRITING"

type Config struct {
	Prompt       string            `mapstructure:"prompt" yaml:"prompt"`
	SystemPrompt string            `mapstructure:"system_prompt" yaml:"system_prompt,omitempty"`
	Tags         []RewriteRule     `mapstructure:"tags" yaml:"tags"`
	Ignore       []string          `mapstructure:"ignore" yaml:"ignore"`
	Target       []string          `mapstructure:"target" yaml:"target"`
	Attrs        map[string]string `mapstructure:"attrs" yaml:"attrs"`
	History      HistoryConfig     `mapstructure:"history" yaml:"history"`
	Hook         HookConfig        `mapstructure:"hook" yaml:"hook"`
	Options      Options           `mapstructure:"options" yaml:"options"`

	// File is the config file the values were read from, if any.
	File string `mapstructure:"-" yaml:"-"`
}

type RewriteRule struct {
	Tag    string `mapstructure:"tag" yaml:"tag"`
	Format string `mapstructure:"format" yaml:"format"`
}

type HistoryConfig struct {
	File     string `mapstructure:"file" yaml:"file"`
	Template string `mapstructure:"template" yaml:"template"`
}

type HookConfig struct {
	TextGenerateEnd string `mapstructure:"text_generate_end" yaml:"text_generate_end,omitempty"`
}

// Options are the runtime switches under `options:`.
type Options struct {
	Verbose           bool          `mapstructure:"verbose"`
	URLSource         bool          `mapstructure:"url_source"`
	URLMode           string        `mapstructure:"url_mode"`
	URLStrip          bool          `mapstructure:"url_strip"`
	FetchTimeout      time.Duration `mapstructure:"fetch_timeout"`
	GenerateTimeout   time.Duration `mapstructure:"generate_timeout"`
	HookTimeout       time.Duration `mapstructure:"hook_timeout"`
	WikipediaLang     string        `mapstructure:"wikipedia_lang"`
	WikipediaEndpoint string        `mapstructure:"wikipedia_endpoint"`
	HotReload         bool          `mapstructure:"hot_reload"`
	PersistentCache   bool          `mapstructure:"persistent_cache"`
	CacheSize         int           `mapstructure:"cache_size"`
	CacheTTL          time.Duration `mapstructure:"cache_ttl"`
	Debounce          time.Duration `mapstructure:"debounce"`
	// SimpleMerge makes a sentinel left in the document by an earlier run
	// the place the next response is written.
	SimpleMerge       bool          `mapstructure:"simple_merge"`
	// DuplicatePrompt skips a directive whose prompt is already recorded in
	// the document's history.
	DuplicatePrompt   bool          `mapstructure:"duplicate_prompt"`
}

// DefaultTarget is the watched file set when `target` is not configured.
var DefaultTarget = []string{"*.txt", "*.md", "*.markdown"}

// defaults are registered with viper so that env overrides and partial
// files fall back to them key by key.
var defaults = map[string]interface{}{
	"prompt":                     prompt.DefaultTemplate,
	"system_prompt":              "",
	"target":                     DefaultTarget,
	"history.file":               history.DefaultFile,
	"history.template":           history.DefaultTemplate,
	"options.verbose":            false,
	"options.url_source":         true,
	"options.url_mode":           "strip",
	"options.url_strip":          false,
	"options.fetch_timeout":      "10s",
	"options.generate_timeout":   "100s",
	"options.hook_timeout":       "30s",
	"options.wikipedia_lang":     "en",
	"options.wikipedia_endpoint": "",
	"options.hot_reload":         false,
	"options.persistent_cache":   false,
	"options.cache_size":         256,
	"options.cache_ttl":          "10m",
	"options.debounce":           "500ms",
	"options.simple_merge":       true,
	"options.duplicate_prompt":   false,
}

// SetDefaults registers the default values on v.
func SetDefaults(v *viper.Viper) {
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	v := viper.New()
	SetDefaults(v)
	cfg, err := decode(v)
	if err != nil {
		panic(fmt.Sprintf("config defaults do not decode: %v", err))
	}
	return cfg
}

// Read decodes the values held by v (file, env and flags already bound)
// without validating them.
func Read(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	cfg, err := decode(v)
	if err != nil {
		return nil, tagerrors.WrapConfig(err, tagerrors.CodeConfigRead, "cannot decode configuration").WithPath(v.ConfigFileUsed())
	}
	return cfg, nil
}

// Load is Read followed by Validate. Validation failures are
// ConfigurationErrors.
func Load(v *viper.Viper) (*Config, error) {
	cfg, err := Read(v)
	if err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// An explicit empty target list means "every file"; only a missing key
	// gets the default.
	if !v.IsSet("target") && len(cfg.Target) == 0 {
		cfg.Target = append([]string(nil), DefaultTarget...)
	}
	if cfg.Attrs == nil {
		cfg.Attrs = map[string]string{}
	}
	if cfg.History.File == "" {
		cfg.History.File = history.DefaultFile
	}
	if cfg.History.Template == "" {
		cfg.History.Template = history.DefaultTemplate
	}
	if cfg.Prompt == "" {
		cfg.Prompt = prompt.DefaultTemplate
	}

	cfg.File = v.ConfigFileUsed()
	return &cfg, nil
}

// Rules converts the configured rewrite rules.
func (c *Config) Rules() []tags.Rule {
	rules := make([]tags.Rule, 0, len(c.Tags))
	for _, r := range c.Tags {
		rules = append(rules, tags.Rule{Tag: r.Tag, Format: r.Format})
	}
	return rules
}

// AliasTags returns the rewrite rule tag names.
func (c *Config) AliasTags() []string {
	return tags.RuleTags(c.Rules())
}

// optionsYAML is Options as written by `tagwriting init`: durations in
// their string form so the file stays hand-editable.
type optionsYAML struct {
	Verbose           bool   `yaml:"verbose"`
	URLSource         bool   `yaml:"url_source"`
	URLMode           string `yaml:"url_mode"`
	URLStrip          bool   `yaml:"url_strip"`
	FetchTimeout      string `yaml:"fetch_timeout"`
	GenerateTimeout   string `yaml:"generate_timeout"`
	HookTimeout       string `yaml:"hook_timeout"`
	WikipediaLang     string `yaml:"wikipedia_lang"`
	WikipediaEndpoint string `yaml:"wikipedia_endpoint"`
	HotReload         bool   `yaml:"hot_reload"`
	PersistentCache   bool   `yaml:"persistent_cache"`
	CacheSize         int    `yaml:"cache_size"`
	CacheTTL          string `yaml:"cache_ttl"`
	Debounce          string `yaml:"debounce"`
	SimpleMerge       bool   `yaml:"simple_merge"`
	DuplicatePrompt   bool   `yaml:"duplicate_prompt"`
}

// MarshalYAML implements yaml.Marshaler.
func (o Options) MarshalYAML() (interface{}, error) {
	return optionsYAML{
		Verbose:           o.Verbose,
		URLSource:         o.URLSource,
		URLMode:           o.URLMode,
		URLStrip:          o.URLStrip,
		FetchTimeout:      o.FetchTimeout.String(),
		GenerateTimeout:   o.GenerateTimeout.String(),
		HookTimeout:       o.HookTimeout.String(),
		WikipediaLang:     o.WikipediaLang,
		WikipediaEndpoint: o.WikipediaEndpoint,
		HotReload:         o.HotReload,
		PersistentCache:   o.PersistentCache,
		CacheSize:         o.CacheSize,
		CacheTTL:          o.CacheTTL.String(),
		Debounce:          o.Debounce.String(),
		SimpleMerge:       o.SimpleMerge,
		DuplicatePrompt:   o.DuplicatePrompt,
	}, nil
}
