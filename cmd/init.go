package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/conneroisu/tagwriting/internal/config"
)

var initCmd = &cobra.Command{
	Use:     "init [dir]",
	Aliases: []string{"i"},
	Short:   "Write a .tagwriting.yml with the default settings",
	Long: `Write a configuration file with every option set to its default, so it
can be edited in place. If no directory is given, the current one is used.

Examples:
  tagwriting init                  # Write ./.tagwriting.yml
  tagwriting init notes            # Write notes/.tagwriting.yml
  tagwriting init --interactive    # Answer a few questions first
  tagwriting init --force          # Replace an existing file`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

var (
	initInteractive bool
	initForce       bool
)

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().BoolVarP(&initInteractive, "interactive", "i", false, "Run the configuration wizard")
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "Overwrite an existing configuration file")
}

func runInit(cmd *cobra.Command, args []string) error {
	dir := "."
	if len(args) == 1 {
		dir = args[0]
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	cfg := config.Default()
	if initInteractive {
		wizard := config.NewConfigWizard(cmd.InOrStdin(), cmd.OutOrStdout())
		var err error
		if cfg, err = wizard.Run(); err != nil {
			return err
		}
	}

	filename := filepath.Join(dir, config.DefaultFileName)
	if err := config.WriteFile(cfg, filename, initForce); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "✅ Wrote %s\n", filename)
	fmt.Fprintf(out, "   Put API_KEY, BASE_URL and MODEL in %s, then run: tagwriting watch %s\n", config.EnvFileName(""), dir)
	return nil
}
