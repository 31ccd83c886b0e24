package config

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/conneroisu/tagwriting/internal/logging"
)

// Store holds the live configuration and swaps it when the config file
// changes. Readers always see a complete, validated Config.
type Store struct {
	v       *viper.Viper
	current atomic.Pointer[Config]
	logger  logging.Logger

	mu        sync.Mutex
	listeners []func(*Config)
}

// NewStore wraps an already loaded configuration.
func NewStore(v *viper.Viper, cfg *Config, logger logging.Logger) *Store {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	s := &Store{v: v, logger: logger.WithComponent("config")}
	s.current.Store(cfg)
	return s
}

// Current returns the active configuration.
func (s *Store) Current() *Config {
	return s.current.Load()
}

// OnReload registers fn to run after every successful reload.
func (s *Store) OnReload(fn func(*Config)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Reload re-reads the config file. An invalid file is logged and the
// previous configuration stays active.
func (s *Store) Reload() error {
	ctx := context.Background()

	if err := s.v.ReadInConfig(); err != nil {
		s.logger.Warn(ctx, err, "Config reload failed, keeping previous configuration")
		return err
	}

	cfg, err := Load(s.v)
	if err != nil {
		s.logger.Warn(ctx, err, "Reloaded config is invalid, keeping previous configuration")
		return err
	}

	s.current.Store(cfg)
	s.logger.Info(ctx, "Configuration reloaded", "file", cfg.File)

	s.mu.Lock()
	listeners := append([]func(*Config){}, s.listeners...)
	s.mu.Unlock()
	for _, fn := range listeners {
		fn(cfg)
	}
	return nil
}

// Watch enables hot reload of the config file.
func (s *Store) Watch() {
	s.v.OnConfigChange(func(e fsnotify.Event) {
		if e.Has(fsnotify.Write) || e.Has(fsnotify.Create) {
			_ = s.Reload()
		}
	})
	s.v.WatchConfig()
}
