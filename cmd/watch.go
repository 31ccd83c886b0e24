package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/conneroisu/tagwriting/internal/config"
	"github.com/conneroisu/tagwriting/internal/logging"
	"github.com/conneroisu/tagwriting/internal/metrics"
	"github.com/conneroisu/tagwriting/internal/pipeline"
	"github.com/conneroisu/tagwriting/internal/refs"
	"github.com/conneroisu/tagwriting/internal/watcher"
)

var watchCmd = &cobra.Command{
	Use:     "watch [dir]",
	Aliases: []string{"w"},
	Short:   "Watch a directory and resolve directives as files are saved",
	Long: `Watch a directory (the current one by default) for changes to targeted
text files. Every debounced change runs the pipeline once on that file.

Examples:
  tagwriting watch                        # Watch the current directory
  tagwriting watch notes --recursive      # Include subdirectories
  tagwriting watch --llm grok             # Use credentials from .env.grok
  tagwriting watch --metrics-addr :9090   # Serve Prometheus metrics`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

var (
	watchLLM         string
	watchMetricsAddr string
	watchRecursive   bool
)

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().StringVar(&watchLLM, "llm", "", "read credentials from .env.<llm> instead of .env")
	watchCmd.Flags().StringVar(&watchMetricsAddr, "metrics-addr", "", "serve /metrics and /healthz on this address")
	watchCmd.Flags().BoolVarP(&watchRecursive, "recursive", "r", false, "watch subdirectories too")

	AddFlagValidation(watchCmd.Flags(), "llm", ValidateLLMName)
	AddFlagValidation(watchCmd.Flags(), "metrics-addr", ValidateListenAddr)
}

// session owns the live pipeline of a watch command and rebuilds it when
// the configuration is reloaded.
type session struct {
	dir       string
	llm       string
	logger    logging.Logger
	collector *metrics.Collector

	mu       sync.Mutex
	cache    *refs.SharedCache
	pipeline atomic.Pointer[pipeline.Pipeline]
}

// rebuild swaps in a pipeline for cfg. The shared reference cache, when
// enabled, is emptied so stale fetches do not outlive the configuration.
func (s *session) rebuild(cfg *config.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var cache refs.Cache
	if cfg.Options.PersistentCache {
		if s.cache == nil {
			s.cache = refs.NewSharedCache(cfg.Options.CacheSize, cfg.Options.CacheTTL)
		} else {
			s.cache.Purge()
		}
		cache = s.cache
	} else {
		s.cache = nil
	}

	p, err := buildPipeline(cfg, s.logger, s.llm, s.collector, cache)
	if err != nil {
		return err
	}
	s.pipeline.Store(p)
	return nil
}

// accept filters events against the current target and ignore lists and
// drops the history files the pipeline writes.
func (s *session) accept(path string) bool {
	p := s.pipeline.Load()
	if p.IsHistoryFile(path) {
		return false
	}
	cfg := p.Config()
	return watcher.PatternFilter(cfg.Target, cfg.Ignore, s.dir)(path)
}

// handler runs the pipeline once per changed file. Failures are logged by
// the pipeline and never stop the watcher.
func (s *session) handler(ctx context.Context) watcher.ChangeHandler {
	return func(events []watcher.ChangeEvent) error {
		for _, event := range events {
			if !event.Type.HasContent() {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.Debug(ctx, "File changed", "file", event.Path, "event", event.Type.String())
			_, _ = s.pipeline.Load().Run(ctx, event.Path)
		}
		return nil
	}
}

func runWatch(cmd *cobra.Command, args []string) error {
	dir := "."
	if len(args) == 1 {
		dir = args[0]
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", dir, err)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}

	s := &session{dir: absDir, llm: watchLLM, logger: logger}
	if watchMetricsAddr != "" {
		s.collector = metrics.NewCollector(metrics.DefaultPrefix)
	}
	if err := s.rebuild(cfg); err != nil {
		return err
	}

	store := config.NewStore(viper.GetViper(), cfg, logger)
	store.OnReload(func(cfg *config.Config) {
		if err := s.rebuild(cfg); err != nil {
			logger.Error(context.Background(), err, "Cannot apply reloaded configuration")
		}
	})
	if cfg.Options.HotReload && viper.ConfigFileUsed() != "" {
		store.Watch()
	}

	fileWatcher, err := watcher.NewFileWatcher(cfg.Options.Debounce, logger)
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer fileWatcher.Stop()

	fileWatcher.AddFilter(watcher.NoGitFilter)
	fileWatcher.AddFilter(watcher.NoHiddenTempFilter)
	fileWatcher.AddFilter(s.accept)
	fileWatcher.AddFilter(watcher.TextFileFilter)

	if watchRecursive {
		err = fileWatcher.AddRecursive(absDir)
	} else {
		err = fileWatcher.AddPath(absDir)
	}
	if err != nil {
		return fmt.Errorf("failed to watch %s: %w", absDir, err)
	}

	ctx, stop := runContext(cmd.Context())
	defer stop()

	fileWatcher.AddHandler(s.handler(ctx))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := fileWatcher.Start(gctx); err != nil {
			return fmt.Errorf("failed to start file watcher: %w", err)
		}
		<-gctx.Done()
		return nil
	})

	if s.collector != nil {
		server := &http.Server{
			Addr:              watchMetricsAddr,
			Handler:           s.collector.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			logger.Info(gctx, "Serving metrics", "addr", watchMetricsAddr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		})
	}

	logger.Info(ctx, "Watching for changes",
		"dir", absDir,
		"recursive", watchRecursive,
		"config", viper.ConfigFileUsed(),
	)

	err = g.Wait()
	logger.Info(context.Background(), "Stopped watching", "dir", absDir)
	return err
}
