package cmd

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/tagwriting/internal/config"
	tagerrors "github.com/conneroisu/tagwriting/internal/errors"
)

var (
	validateFormat string
	validateLLM    string
)

// validateCmd represents the validate command.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the configuration file and credentials",
	Long: `Validate the configuration without watching anything:

- prompt, history and hook templates only use known placeholders
- rewrite rules and attribute rules are well formed
- target and ignore patterns are not empty
- option values are in range
- API_KEY and MODEL are present in the environment or the .env file

Examples:
  tagwriting validate
  tagwriting validate --llm grok
  tagwriting validate --format json`,
	Args: cobra.NoArgs,
	RunE: runValidateCommand,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().
		StringVarP(&validateFormat, "format", "f", "text", "Output format (text, json)")
	validateCmd.Flags().
		StringVar(&validateLLM, "llm", "", "check credentials in .env.<llm> instead of .env")

	AddFlagValidation(validateCmd.Flags(), "format", ValidateOutputFormat)
	AddFlagValidation(validateCmd.Flags(), "llm", ValidateLLMName)
}

func runValidateCommand(cmd *cobra.Command, args []string) error {
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg, err := config.Read(viper.GetViper())
	if err != nil {
		return err
	}

	result := config.ValidateConfigWithDetails(cfg)
	checkCredentials(result, validateLLM)

	out := cmd.OutOrStdout()
	switch validateFormat {
	case "json":
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(result); err != nil {
			return err
		}
	case "text":
		file := cfg.File
		if file == "" {
			file = "(defaults)"
		}
		fmt.Fprintf(out, "Configuration: %s\n", file)
		if !result.HasErrors() && !result.HasWarnings() {
			fmt.Fprintln(out, "✅ Configuration is valid")
		} else {
			fmt.Fprint(out, result.String())
		}
	default:
		return fmt.Errorf("unsupported format: %s (supported: text, json)", validateFormat)
	}

	return result.Err(cfg.File)
}

// checkCredentials adds missing generation credentials to result. They are
// errors for watch and run, so they are reported as errors here too.
func checkCredentials(result *config.ValidationResult, llm string) {
	creds, err := config.LoadCredentials(".", llm)
	if err != nil {
		result.Errors = append(result.Errors, config.ValidationError{
			Field:   config.EnvFileName(llm),
			Code:    tagerrors.CodeConfigRead,
			Message: err.Error(),
		})
		result.Valid = false
		return
	}

	checks := []struct {
		name, value, code string
	}{
		{"API_KEY", creds.APIKey, tagerrors.CodeMissingAPIKey},
		{"MODEL", creds.Model, tagerrors.CodeMissingModel},
	}
	for _, check := range checks {
		if check.value != "" {
			continue
		}
		name := check.name
		result.Errors = append(result.Errors, config.ValidationError{
			Field:   name,
			Code:    check.code,
			Message: fmt.Sprintf("%s is not set in the environment or %s", name, creds.File),
			Suggestions: []string{
				fmt.Sprintf("Add %s=... to %s", name, creds.File),
				fmt.Sprintf("Or export %s_%s", config.EnvPrefix, name),
			},
		})
		result.Valid = false
	}
}
