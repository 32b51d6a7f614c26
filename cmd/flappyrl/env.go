package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/vovakirdan/flappy-rl/internal/config"
	"github.com/vovakirdan/flappy-rl/internal/registry"
	"github.com/vovakirdan/flappy-rl/internal/sim"
	"github.com/vovakirdan/flappy-rl/internal/storage"
)

func newLogger() *log.Logger {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "flappyrl",
	})
	if flagVerbose {
		logger.SetLevel(log.DebugLevel)
	}
	return logger
}

// loadConfig loads the config file and applies global flag overrides.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return config.Config{}, err
	}
	if cmd.Flags().Changed("seed") {
		cfg.Training.Seed = flagSeed
	}
	switch p := config.DifficultyPreset(flagDifficulty); p {
	case "", config.DifficultyEasy, config.DifficultyNormal, config.DifficultyHard, config.DifficultyFixed:
		config.ApplyPreset(&cfg, p)
	default:
		return config.Config{}, fmt.Errorf("unknown difficulty %q (want easy, normal, hard or fixed)", flagDifficulty)
	}
	return cfg, nil
}

// openStore opens the runs database, or returns nil when --db is empty.
// A database that cannot be opened is logged and skipped.
func openStore(logger *log.Logger) *storage.Store {
	if flagDBPath == "" {
		return nil
	}
	store, err := storage.Open(flagDBPath)
	if err != nil {
		logger.Warn("could not open runs database", "error", err)
		return nil
	}
	return store
}

// setup resolves the strategy and builds the shared run environment.
// The caller owns env.Store and must close it when non-nil.
func setup(cmd *cobra.Command, strategyID string) (registry.Strategy, registry.Env, error) {
	if !registry.Exists(strategyID) {
		return nil, registry.Env{}, fmt.Errorf("unknown strategy %q, run 'flappyrl list' to see available strategies", strategyID)
	}
	strategy, err := registry.Create(strategyID)
	if err != nil {
		return nil, registry.Env{}, err
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, registry.Env{}, err
	}
	s, err := sim.New(cfg.World)
	if err != nil {
		return nil, registry.Env{}, err
	}

	logger := newLogger()
	env := registry.Env{
		Config: cfg,
		Sim:    s,
		Logger: logger,
		Store:  openStore(logger),
	}
	return strategy, env, nil
}
