package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/questlog/mechanicum/internal/advisor"
	"github.com/questlog/mechanicum/internal/config"
	"github.com/questlog/mechanicum/internal/events"
	"github.com/questlog/mechanicum/internal/frequency"
	"github.com/questlog/mechanicum/internal/guardian"
	"github.com/questlog/mechanicum/internal/mission"
	"github.com/questlog/mechanicum/internal/notify"
	"github.com/questlog/mechanicum/internal/registry"
	"github.com/questlog/mechanicum/internal/repairlog"
	"github.com/questlog/mechanicum/internal/store"
)

// engine is the fully wired component graph. Every subcommand opens it
// the same way so one-shot commands and the foreground loop see
// identical state.
type engine struct {
	cfg       config.GuardianConfig
	store     *store.SQLite
	bus       *events.Bus
	coord     *mission.Coordinator
	scheduler *guardian.Scheduler
	advisor   *advisor.Advisor
	history   *registry.LearningHistory
	logger    *zap.Logger
}

// loadConfig resolves configuration in rising precedence: defaults,
// the --config YAML file, MECH_* environment variables, then flags.
func loadConfig() (config.GuardianConfig, error) {
	cfg := config.DefaultGuardianConfig()

	var err error
	if cfgFile != "" {
		cfg, err = config.LoadGuardianFile(cfgFile, cfg)
		if err != nil {
			return cfg, err
		}
	}
	cfg, err = config.OverlayEnv(cfg)
	if err != nil {
		return cfg, err
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newLogger builds the stderr logger shared by the engine stack.
// Stdout stays reserved for command output.
func newLogger() (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	zcfg.OutputPaths = []string{"stderr"}
	zcfg.ErrorOutputPaths = []string{"stderr"}
	if verbose {
		zcfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	} else {
		zcfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	}
	return zcfg.Build()
}

// openEngine wires the full stack against the configured database.
// A nil notifier falls back to the log notifier, which is right for
// one-shot commands; the foreground loop passes the console notifier.
func openEngine(ctx context.Context, notifier notify.Notifier) (*engine, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger, err := newLogger()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	if notifier == nil {
		notifier = notify.NewLogNotifier(logger)
	}

	st, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open store at %s: %w", cfg.DBPath, err)
	}

	bus := events.NewBus(cfg.EventFeedCapacity)

	cleanup := func() {
		bus.Close()
		st.Close()
	}

	history, err := registry.NewLearningHistory(ctx, st, logger)
	if err != nil {
		cleanup()
		return nil, err
	}
	checks, err := registry.NewCheckRegistry(ctx, registry.CheckRegistryConfig{
		Store:   st,
		Logger:  logger,
		Bus:     bus,
		History: history,
	})
	if err != nil {
		cleanup()
		return nil, err
	}
	repairs, err := registry.NewRepairRegistry(ctx, registry.RepairRegistryConfig{
		Store:   st,
		Logger:  logger,
		Bus:     bus,
		History: history,
	})
	if err != nil {
		cleanup()
		return nil, err
	}

	rlog, err := repairlog.New(ctx, &repairlog.Config{
		Store:    st,
		Capacity: cfg.RepairLogCapacity,
		Logger:   logger,
	})
	if err != nil {
		cleanup()
		return nil, err
	}
	freq, err := frequency.New(ctx, &frequency.Config{
		Store:     st,
		Threshold: cfg.EscalationThreshold,
		Logger:    logger,
	})
	if err != nil {
		cleanup()
		return nil, err
	}

	coord, err := mission.NewCoordinator(ctx, &mission.Config{
		Store:     st,
		Checks:    checks,
		Repairs:   repairs,
		RepairLog: rlog,
		Frequency: freq,
		Bus:       bus,
		Logger:    logger,
	})
	if err != nil {
		cleanup()
		return nil, err
	}

	scheduler, err := guardian.New(&guardian.Deps{
		Coordinator: coord,
		Config:      &cfg,
		Notifier:    notifier,
		Bus:         bus,
		Store:       st,
		Logger:      logger,
	})
	if err != nil {
		cleanup()
		return nil, err
	}

	adv := advisor.New(&advisor.Config{
		Model:  cfg.ReviewModel,
		Logger: logger,
	})

	return &engine{
		cfg:       cfg,
		store:     st,
		bus:       bus,
		coord:     coord,
		scheduler: scheduler,
		advisor:   adv,
		history:   history,
		logger:    logger,
	}, nil
}

// close releases the engine. The scheduler must already be stopped so
// nothing emits into the closed bus.
func (e *engine) close() {
	e.bus.Close()
	e.store.Close()
	_ = e.logger.Sync()
}
