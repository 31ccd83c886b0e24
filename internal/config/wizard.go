package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	tagerrors "github.com/conneroisu/tagwriting/internal/errors"
)

// ConfigWizard provides an interactive setup experience for new projects
type ConfigWizard struct {
	reader *bufio.Reader
	out    io.Writer
	config *Config
}

// NewConfigWizard creates a wizard reading answers from in and writing
// questions to out. It starts from the defaults.
func NewConfigWizard(in io.Reader, out io.Writer) *ConfigWizard {
	return &ConfigWizard{
		reader: bufio.NewReader(in),
		out:    out,
		config: Default(),
	}
}

// Run executes the interactive configuration wizard
func (w *ConfigWizard) Run() (*Config, error) {
	fmt.Fprintln(w.out, "🧙 tagwriting Configuration Wizard")
	fmt.Fprintln(w.out, "==================================")
	fmt.Fprintln(w.out)

	w.configureFiles()
	w.configureReferences()
	w.configureHook()
	w.configureRuntime()

	if err := Validate(w.config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	fmt.Fprintln(w.out)
	fmt.Fprintln(w.out, "✅ Configuration completed successfully!")
	return w.config, nil
}

func (w *ConfigWizard) configureFiles() {
	fmt.Fprintln(w.out, "📄 Watched Files")
	fmt.Fprintln(w.out, "----------------")

	target := w.askString("Target patterns (comma separated)", strings.Join(w.config.Target, ","))
	w.config.Target = splitList(target)

	ignore := w.askString("Ignore patterns (comma separated)", strings.Join(w.config.Ignore, ","))
	w.config.Ignore = splitList(ignore)

	fmt.Fprintln(w.out)
}

func (w *ConfigWizard) configureReferences() {
	fmt.Fprintln(w.out, "🔗 References")
	fmt.Fprintln(w.out, "-------------")

	w.config.Options.URLSource = w.askBool("Fetch <url> references", w.config.Options.URLSource)
	if w.config.Options.URLSource {
		w.config.Options.URLMode = w.askChoice("Page conversion", []string{"strip", "text", "markdown"}, w.config.Options.URLMode)
	}
	w.config.Options.WikipediaLang = w.askString("Wikipedia language", w.config.Options.WikipediaLang)

	fmt.Fprintln(w.out)
}

func (w *ConfigWizard) configureHook() {
	fmt.Fprintln(w.out, "🪝 Hook")
	fmt.Fprintln(w.out, "-------")

	w.config.Hook.TextGenerateEnd = w.askString("Command after each generation ({filepath} = document)", w.config.Hook.TextGenerateEnd)

	fmt.Fprintln(w.out)
}

func (w *ConfigWizard) configureRuntime() {
	fmt.Fprintln(w.out, "⚙️  Runtime")
	fmt.Fprintln(w.out, "----------")

	w.config.Options.HotReload = w.askBool("Reload this file when it changes", w.config.Options.HotReload)
	w.config.Options.PersistentCache = w.askBool("Keep fetched references between runs", w.config.Options.PersistentCache)
	w.config.Options.Verbose = w.askBool("Verbose logging", w.config.Options.Verbose)
}

func splitList(s string) []string {
	out := []string{}
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Helper methods for user interaction

func (w *ConfigWizard) askString(prompt, defaultValue string) string {
	if defaultValue != "" {
		fmt.Fprintf(w.out, "%s [%s]: ", prompt, defaultValue)
	} else {
		fmt.Fprintf(w.out, "%s: ", prompt)
	}

	input, err := w.reader.ReadString('\n')
	if err != nil && input == "" {
		return defaultValue
	}

	input = strings.TrimSpace(input)
	if input == "" {
		return defaultValue
	}

	return input
}

func (w *ConfigWizard) askBool(prompt string, defaultValue bool) bool {
	defaultStr := "n"
	if defaultValue {
		defaultStr = "y"
	}

	fmt.Fprintf(w.out, "%s [%s]: ", prompt, defaultStr)

	input, err := w.reader.ReadString('\n')
	if err != nil && input == "" {
		return defaultValue
	}

	input = strings.TrimSpace(strings.ToLower(input))
	if input == "" {
		return defaultValue
	}

	return input == "y" || input == "yes" || input == "true"
}

func (w *ConfigWizard) askChoice(prompt string, choices []string, defaultValue string) string {
	for {
		fmt.Fprintf(w.out, "%s [%s] (options: %s): ", prompt, defaultValue, strings.Join(choices, ", "))

		input, err := w.reader.ReadString('\n')
		if err != nil && input == "" {
			return defaultValue
		}

		input = strings.TrimSpace(input)
		if input == "" {
			return defaultValue
		}

		for _, choice := range choices {
			if strings.EqualFold(input, choice) {
				return choice
			}
		}

		fmt.Fprintf(w.out, "❌ Invalid choice. Please select from: %s\n", strings.Join(choices, ", "))
	}
}

// Marshal renders config as the YAML written by `tagwriting init`.
func Marshal(config *Config) ([]byte, error) {
	body, err := yaml.Marshal(config)
	if err != nil {
		return nil, fmt.Errorf("failed to encode configuration: %w", err)
	}
	header := "# tagwriting configuration file\n" +
		"# Placeholders: prompt {prompt} {context} {attrs_rules}; history {filename} {prompt} {result} {timestamp}; hook {filepath}\n\n"
	return append([]byte(header), body...), nil
}

// WriteFile writes config to filename. An existing file is only replaced
// when overwrite is set.
func WriteFile(config *Config, filename string, overwrite bool) error {
	if _, err := os.Stat(filename); err == nil && !overwrite {
		return fmt.Errorf("configuration file %s already exists", filename)
	}

	content, err := Marshal(config)
	if err != nil {
		return err
	}

	if err := os.WriteFile(filename, content, 0o644); err != nil {
		return tagerrors.WrapIO(err, tagerrors.CodeConfigWrite, "failed to write configuration file").WithPath(filename)
	}
	return nil
}
