package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/conneroisu/tagwriting/internal/config"
	tagerrors "github.com/conneroisu/tagwriting/internal/errors"
	"github.com/conneroisu/tagwriting/internal/generate"
	"github.com/conneroisu/tagwriting/internal/logging"
	"github.com/conneroisu/tagwriting/internal/metrics"
	"github.com/conneroisu/tagwriting/internal/pipeline"
	"github.com/conneroisu/tagwriting/internal/refs"
)

var runCmd = &cobra.Command{
	Use:   "run <file>...",
	Short: "Resolve the directive in each file once",
	Long: `Run the pipeline once on each given file, without watching.

Each file gets at most one directive resolved, exactly as if it had just
been saved in a watched directory. A file holding an alias tag only has
the alias rewritten; the next run resolves it.

Examples:
  tagwriting run notes/today.md
  tagwriting run --llm grok draft.md outline.md`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRun,
}

var runLLM string

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runLLM, "llm", "", "read credentials from .env.<llm> instead of .env")
	AddFlagValidation(runCmd.Flags(), "llm", ValidateLLMName)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}

	p, err := buildPipeline(cfg, logger, runLLM, nil, nil)
	if err != nil {
		return err
	}

	ctx, stop := runContext(cmd.Context())
	defer stop()

	var failed int
	for _, path := range args {
		res, err := p.Run(ctx, path)
		if err != nil {
			failed++
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s\n", path, tagerrors.FormatError(err))
			continue
		}
		switch res.State {
		case pipeline.NoDirectiveFound:
			fmt.Fprintf(cmd.OutOrStdout(), "%s: no directive\n", path)
		case pipeline.DuplicateSkipped:
			fmt.Fprintf(cmd.OutOrStdout(), "%s: prompt already answered, skipped\n", path)
		case pipeline.Rewritten:
			fmt.Fprintf(cmd.OutOrStdout(), "%s: rewrote <%s>, run again to resolve it\n", path, res.Rule.Tag)
		default:
			fmt.Fprintf(cmd.OutOrStdout(), "%s: resolved <%s> in %s\n", path, res.Directive.Name, res.Duration.Round(time.Millisecond))
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d file(s) failed", failed, len(args))
	}
	return nil
}

// buildPipeline wires credentials, the reference resolver and the
// generation client into a pipeline for cfg. collector and cache are
// optional.
func buildPipeline(cfg *config.Config, logger logging.Logger, llm string, collector *metrics.Collector, cache refs.Cache) (*pipeline.Pipeline, error) {
	creds, err := config.LoadCredentials(".", llm)
	if err != nil {
		return nil, err
	}

	mode, err := refs.ParseMode(cfg.Options.URLMode)
	if err != nil {
		return nil, err
	}

	var recorder pipeline.Metrics
	if collector != nil {
		recorder = collector
	}

	fetcher := refs.NewFetcher(cfg.Options.FetchTimeout, 0)
	resolver := refs.NewResolver(refs.Config{
		Fetcher:            fetcher,
		WikipediaEndpoint:  cfg.Options.WikipediaEndpoint,
		WikipediaLang:      cfg.Options.WikipediaLang,
		URLSource:          cfg.Options.URLSource,
		Mode:               mode,
		CollapseWhitespace: cfg.Options.URLStrip,
		Logger:             logger,
		Recorder:           recorder,
	})

	generator, err := generate.NewOpenAI(generate.Settings{
		APIKey:  creds.APIKey,
		BaseURL: creds.BaseURL,
		Model:   creds.Model,
		Source:  creds.File,
	}, fetcher, logger)
	if err != nil {
		return nil, err
	}

	return pipeline.New(cfg, pipeline.Deps{
		Generator: generator,
		Resolver:  resolver,
		Logger:    logger,
		Metrics:   recorder,
		Cache:     cache,
	})
}

// runContext is a context cancelled on SIGINT or SIGTERM.
func runContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
