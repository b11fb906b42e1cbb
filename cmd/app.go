// Package cmd implements the mdash CLI for managing brokerage accounts,
// rebuilding the derived ledgers, and reporting performance.
package cmd

import (
	"fmt"

	"github.com/google/subcommands"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/autobasher/portfolio/config"
	"github.com/autobasher/portfolio/eodhd"
	"github.com/autobasher/portfolio/store"
)

// Commands is the full set of subcommands a main package registers.
var Commands = []subcommands.Command{
	&portfolioCmd{},
	&txCmd{},
	&rebuildCmd{},
	&historyCmd{},
	&reportCmd{},
	&fetchCmd{},
	&serveCmd{},
}

// app bundles the shared handles every subcommand needs.
type app struct {
	cfg   *config.Config
	store *store.Store
	log   *zap.Logger
}

// openApp loads the configuration and opens the database.
func openApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	s, err := store.Open(cfg.Database, log)
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, store: s, log: log}, nil
}

func (a *app) close() {
	a.store.Close()
	a.log.Sync()
}

// feed returns the configured market data client.
func (a *app) feed() (*eodhd.Client, error) {
	if a.cfg.EODHD.APIToken == "" {
		return nil, fmt.Errorf("no EODHD API token configured (set MDASH_EODHD_API_TOKEN)")
	}
	return eodhd.New(a.cfg.EODHD.APIToken, a.log), nil
}

func newLogger(level string) (*zap.Logger, error) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	// The CLI prints reports on stdout; logs go to stderr only.
	cfg.OutputPaths = []string{"stderr"}
	return cfg.Build()
}
