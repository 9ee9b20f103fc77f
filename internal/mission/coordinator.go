// Package mission owns the live mission records: loading and saving
// them, validating them for consistency, repairing what validation
// finds, and queueing repair suggestions for human review. It is the
// only package that writes the mission storage keys.
package mission

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/questlog/mechanicum/internal/events"
	"github.com/questlog/mechanicum/internal/frequency"
	"github.com/questlog/mechanicum/internal/registry"
	"github.com/questlog/mechanicum/internal/repairlog"
	"github.com/questlog/mechanicum/internal/sandbox"
	"github.com/questlog/mechanicum/internal/store"
	"github.com/questlog/mechanicum/internal/types"
)

// Config holds coordinator dependencies. Store, Checks, Repairs, and
// RepairLog are required.
type Config struct {
	Store     store.Store
	Checks    *registry.CheckRegistry
	Repairs   *registry.RepairRegistry
	RepairLog *repairlog.Log
	Frequency *frequency.Tracker
	Bus       *events.Bus
	Logger    *zap.Logger
}

// Coordinator is the consistency engine over the mission records. All
// live-state mutation funnels through it: trusted structural repairs
// during validation, and sandbox-verified repairs through its
// simulator.
type Coordinator struct {
	store     store.Store
	checks    *registry.CheckRegistry
	repairs   *registry.RepairRegistry
	repairLog *repairlog.Log
	frequency *frequency.Tracker
	bus       *events.Bus
	logger    *zap.Logger
	simulator *sandbox.Simulator

	// suggestMu serializes read-modify-write cycles on the suggestion
	// queue, which lives in storage rather than in memory.
	suggestMu sync.Mutex
}

// NewCoordinator creates a coordinator and its private simulator. The
// simulator's only exit path is the coordinator's own snapshot save.
func NewCoordinator(ctx context.Context, cfg *Config) (*Coordinator, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if cfg.Checks == nil {
		return nil, fmt.Errorf("check registry is required")
	}
	if cfg.Repairs == nil {
		return nil, fmt.Errorf("repair registry is required")
	}
	if cfg.RepairLog == nil {
		return nil, fmt.Errorf("repair log is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Coordinator{
		store:     cfg.Store,
		checks:    cfg.Checks,
		repairs:   cfg.Repairs,
		repairLog: cfg.RepairLog,
		frequency: cfg.Frequency,
		bus:       cfg.Bus,
		logger:    logger,
	}

	sim, err := sandbox.New(ctx, sandbox.Config{
		Checks:  cfg.Checks,
		Repairs: cfg.Repairs,
		Commit:  c.SaveSnapshot,
		Store:   cfg.Store,
		Bus:     cfg.Bus,
		Logger:  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create simulator: %w", err)
	}
	c.simulator = sim
	return c, nil
}

// Simulator returns the coordinator's sandbox simulator.
func (c *Coordinator) Simulator() *sandbox.Simulator {
	return c.simulator
}

// Checks returns the check registry the coordinator sweeps with.
func (c *Coordinator) Checks() *registry.CheckRegistry {
	return c.checks
}

// Repairs returns the repair registry the coordinator repairs with.
func (c *Coordinator) Repairs() *registry.RepairRegistry {
	return c.repairs
}

// RepairLog returns the bounded repair audit log.
func (c *Coordinator) RepairLog() *repairlog.Log {
	return c.repairLog
}

// LoadSnapshot reads the mission records from storage. Active and
// completed missions share one key and are partitioned on the
// completion flag; deleted missions live under their own key. Corrupt
// live data is an error, not something to silently discard.
func (c *Coordinator) LoadSnapshot(ctx context.Context) (*types.Snapshot, error) {
	snap := types.NewSnapshot()

	raw, err := c.store.GetString(ctx, store.KeyMissions)
	if err != nil {
		return nil, fmt.Errorf("failed to load missions: %w", err)
	}
	if raw != "" {
		var all []*types.MissionRecord
		if err := json.Unmarshal([]byte(raw), &all); err != nil {
			return nil, fmt.Errorf("corrupt mission records: %w", err)
		}
		for _, m := range all {
			if m.IsCompleted {
				snap.Completed = append(snap.Completed, m)
			} else {
				snap.Active = append(snap.Active, m)
			}
		}
	}

	rawDeleted, err := c.store.GetString(ctx, store.KeyDeletedMissions)
	if err != nil {
		return nil, fmt.Errorf("failed to load deleted missions: %w", err)
	}
	if rawDeleted != "" {
		if err := json.Unmarshal([]byte(rawDeleted), &snap.Deleted); err != nil {
			return nil, fmt.Errorf("corrupt deleted mission records: %w", err)
		}
	}
	return snap, nil
}

// SaveSnapshot writes the snapshot back to storage. Active and
// completed records are merged into the shared missions key in that
// order, matching how LoadSnapshot partitions them back out.
func (c *Coordinator) SaveSnapshot(ctx context.Context, snap *types.Snapshot) error {
	merged := make([]*types.MissionRecord, 0, len(snap.Active)+len(snap.Completed))
	merged = append(merged, snap.Active...)
	merged = append(merged, snap.Completed...)

	data, err := json.Marshal(merged)
	if err != nil {
		return fmt.Errorf("failed to encode missions: %w", err)
	}
	if err := c.store.SetString(ctx, store.KeyMissions, string(data)); err != nil {
		return fmt.Errorf("failed to save missions: %w", err)
	}

	deleted := snap.Deleted
	if deleted == nil {
		deleted = []*types.MissionRecord{}
	}
	deletedData, err := json.Marshal(deleted)
	if err != nil {
		return fmt.Errorf("failed to encode deleted missions: %w", err)
	}
	if err := c.store.SetString(ctx, store.KeyDeletedMissions, string(deletedData)); err != nil {
		return fmt.Errorf("failed to save deleted missions: %w", err)
	}
	return nil
}

// backupPayload is the persisted form of a pre-repair backup. The raw
// key contents are copied byte for byte so a restore reproduces exactly
// what was there, including anything validation would reject.
type backupPayload struct {
	Missions        string    `json:"missions"`
	DeletedMissions string    `json:"deleted_missions"`
	CreatedAt       time.Time `json:"created_at"`
}

// Backup copies the current mission keys into the backup key. It runs
// before any repair touches live state.
func (c *Coordinator) Backup(ctx context.Context) error {
	raw, err := c.store.GetString(ctx, store.KeyMissions)
	if err != nil {
		return fmt.Errorf("failed to read missions for backup: %w", err)
	}
	rawDeleted, err := c.store.GetString(ctx, store.KeyDeletedMissions)
	if err != nil {
		return fmt.Errorf("failed to read deleted missions for backup: %w", err)
	}

	payload := backupPayload{
		Missions:        raw,
		DeletedMissions: rawDeleted,
		CreatedAt:       time.Now(),
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode backup: %w", err)
	}
	if err := c.store.SetString(ctx, store.KeyMissionsBackup, string(data)); err != nil {
		return fmt.Errorf("failed to write backup: %w", err)
	}
	c.logger.Info("backed up mission records before repair")
	return nil
}

// RestoreBackup replaces the live mission keys with the most recent
// backup. Missing backup is an error.
func (c *Coordinator) RestoreBackup(ctx context.Context) error {
	raw, err := c.store.GetString(ctx, store.KeyMissionsBackup)
	if err != nil {
		return fmt.Errorf("failed to read backup: %w", err)
	}
	if raw == "" {
		return fmt.Errorf("no backup available")
	}
	var payload backupPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return fmt.Errorf("corrupt backup: %w", err)
	}

	if err := c.store.SetString(ctx, store.KeyMissions, payload.Missions); err != nil {
		return fmt.Errorf("failed to restore missions: %w", err)
	}
	if err := c.store.SetString(ctx, store.KeyDeletedMissions, payload.DeletedMissions); err != nil {
		return fmt.Errorf("failed to restore deleted missions: %w", err)
	}
	c.logger.Info("restored mission records from backup",
		zap.Time("backup_created", payload.CreatedAt))
	return nil
}

// BackupInfo reports whether a backup exists and when it was taken.
func (c *Coordinator) BackupInfo(ctx context.Context) (bool, time.Time, error) {
	raw, err := c.store.GetString(ctx, store.KeyMissionsBackup)
	if err != nil {
		return false, time.Time{}, fmt.Errorf("failed to read backup: %w", err)
	}
	if raw == "" {
		return false, time.Time{}, nil
	}
	var payload backupPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return false, time.Time{}, fmt.Errorf("corrupt backup: %w", err)
	}
	return true, payload.CreatedAt, nil
}
