package cli

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/roach88/vstore/internal/cache"
	"github.com/roach88/vstore/internal/config"
	"github.com/roach88/vstore/internal/logger"
	"github.com/roach88/vstore/internal/metrics"
	"github.com/roach88/vstore/internal/persistence"
	"github.com/roach88/vstore/internal/store"
)

// session is an opened database with its engine.
type session struct {
	cfg    config.Config
	store  *store.Store
	engine *persistence.Engine
	out    *OutputFormatter
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}
}

// loadConfig reads --config, or the defaults plus the environment.
func loadConfig(opts *RootOptions) (config.Config, error) {
	if opts.Config != "" {
		return config.Load(opts.Config)
	}
	cfg := config.Default()
	cfg.ApplyEnv()
	return cfg, cfg.Validate()
}

// openSession loads the configuration and opens the store and engine.
// Failures are reported through the formatter.
func openSession(opts *RootOptions, cmd *cobra.Command) (*session, error) {
	out := newFormatter(opts, cmd)

	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, out.Fail(ExitCommandError, ErrCodeConfig, err)
	}
	level := cfg.Log.Level
	if opts.Verbose {
		level = "debug"
	}
	log := logger.New(logger.Config{Level: level, Pretty: cfg.Log.Pretty, Output: out.GetErrWriter()})

	out.VerboseLog("Opening %s database %s", cfg.Database.Driver, cfg.Database.DSN)
	s, err := store.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, out.Fail(ExitCommandError, ErrCodeStorage, err)
	}

	m := metrics.New(cfg.Metrics.Namespace)
	c, err := cache.New(cfg.Cache.Size, m)
	if err != nil {
		s.Close()
		return nil, out.Fail(ExitCommandError, ErrCodeConfig, err)
	}
	e, err := persistence.New(persistence.Options{Store: s, Cache: c, Metrics: m, Logger: log})
	if err != nil {
		s.Close()
		return nil, out.Fail(ExitCommandError, ErrCodeMapping, err)
	}
	return &session{cfg: cfg, store: s, engine: e, out: out}, nil
}

func (s *session) Close() error {
	return s.store.Close()
}

// versionedType checks that typeName is a registered versioned root type.
func (s *session) versionedType(typeName string) error {
	if _, ok := s.engine.Registry().Lookup(typeName); !ok {
		return s.out.Fail(ExitCommandError, ErrCodeInvalidArgs, fmt.Errorf("unknown type %q", typeName))
	}
	root, err := s.engine.Mapper().Table().Root(typeName)
	if err != nil {
		return s.out.Fail(ExitCommandError, ErrCodeMapping, err)
	}
	if !root.Versioned() {
		return s.out.Fail(ExitCommandError, ErrCodeInvalidArgs, fmt.Errorf("type %s is not versioned", typeName))
	}
	return nil
}

func (s *session) parseKey(arg string) (uuid.UUID, error) {
	key, err := uuid.Parse(arg)
	if err != nil {
		return uuid.Nil, s.out.Fail(ExitCommandError, ErrCodeInvalidArgs, fmt.Errorf("invalid key %q: %w", arg, err))
	}
	return key, nil
}
