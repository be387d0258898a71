package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"PortfolioLens/internal/catalog"
	"PortfolioLens/internal/config"
	"PortfolioLens/internal/logger"
	"PortfolioLens/internal/metrics"
	"PortfolioLens/internal/model"
	"PortfolioLens/internal/recorder"
	"PortfolioLens/internal/rules"
	"PortfolioLens/internal/strategy"
)

const version = "v0.4.0"

// app is the state shared by all commands, built once flags are parsed.
type app struct {
	cfg     *config.Config
	log     zerolog.Logger
	metrics *metrics.Metrics
	engine  *strategy.Engine
}

var (
	flagConfig   string
	flagLogLevel string
	flagCatalog  string
	flagColor    string
)

func main() {
	root := &cobra.Command{
		Use:           "lens",
		Short:         "Detect which investment philosophy a portfolio follows",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flagConfig, "config", config.Path(), "Config file (YAML)")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Override log level (debug|info|warn|error)")
	root.PersistentFlags().StringVar(&flagCatalog, "catalog", "", "Catalog file, overrides catalog.path")
	root.PersistentFlags().StringVar(&flagColor, "color", "auto", "Styled terminal output (auto|always|never)")

	root.AddCommand(
		newScoreCmd(),
		newEvalCmd(),
		newCatalogCmd(),
		newServeCmd(),
		newHistoryCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// setup loads config, the logger and the catalog.
func setup() (*app, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if flagLogLevel != "" {
		cfg.Log.Level = flagLogLevel
	}
	if flagCatalog != "" {
		cfg.Catalog.Path = flagCatalog
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	log := logger.New(logger.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty})
	m := metrics.New()
	compiler := rules.NewCompiler(rules.WithLogger(log), rules.WithFailureHook(m.RuleFailed))

	cat, err := loadCatalog(cfg)
	if err != nil {
		return nil, err
	}
	m.CatalogLoaded(cat)

	return &app{
		cfg:     cfg,
		log:     log,
		metrics: m,
		engine:  strategy.NewEngine(cat, compiler),
	}, nil
}

func loadCatalog(cfg *config.Config) (*model.Catalog, error) {
	if cfg.Catalog.Path == "" {
		return catalog.Default(), nil
	}
	cat, err := catalog.LoadFile(cfg.Catalog.Path)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	return cat, nil
}

// styled reports whether markdown output should be rendered for a terminal.
func styled() bool {
	switch flagColor {
	case "always":
		return true
	case "never":
		return false
	default:
		return term.IsTerminal(int(os.Stdout.Fd()))
	}
}

// openRecorder opens the history database, creating its directory.
func openRecorder(a *app) (*recorder.SQLiteRecorder, error) {
	path := a.cfg.Database.SQLitePath
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}
	rec, err := recorder.NewSQLiteRecorder(path, a.log)
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	return rec, nil
}
