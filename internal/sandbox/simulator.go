// Package sandbox runs repairs against cloned state before they are
// allowed anywhere near live records. A simulation deep-clones the
// snapshot, applies the candidate repair, re-runs the full check suite,
// and produces a report. Nothing leaves the sandbox until a successful
// report is explicitly committed.
package sandbox

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/questlog/mechanicum/internal/events"
	"github.com/questlog/mechanicum/internal/registry"
	"github.com/questlog/mechanicum/internal/store"
	"github.com/questlog/mechanicum/internal/types"
)

// Report captures the outcome of one simulated repair.
type Report struct {
	// ID identifies this simulation for a later Commit or Discard.
	ID string `json:"id"`

	// RepairName is the repair that was simulated.
	RepairName string `json:"repair_name"`

	// Success is true when the repair raised no exception, its own
	// check no longer fires, and no previously passing check regressed.
	Success bool `json:"success"`

	// Summary is a one-line human description of the outcome.
	Summary string `json:"summary"`

	// Changes lists every field-level change the repair made.
	Changes []string `json:"changes"`

	// TestResults maps each check name to whether it passed against
	// the repaired clone.
	TestResults map[string]bool `json:"test_results"`

	// ResultingState is the repaired clone. It is live state's
	// replacement if this report is committed.
	ResultingState *types.Snapshot `json:"resulting_state"`

	// SimulatedAt is when the simulation ran.
	SimulatedAt time.Time `json:"simulated_at"`
}

// CommitFunc persists a verified snapshot as the new live state.
type CommitFunc func(ctx context.Context, snap *types.Snapshot) error

// Config holds the dependencies for a Simulator.
type Config struct {
	// Checks is the registry used to verify repaired clones.
	Checks *registry.CheckRegistry

	// Repairs is the registry the simulated repairs come from.
	Repairs *registry.RepairRegistry

	// Commit persists a verified snapshot. It is the only path out of
	// the sandbox.
	Commit CommitFunc

	// Store persists staged reports so they survive a restart.
	// Optional; without it reports live only as long as the process.
	Store store.Store

	// Bus receives simulation lifecycle events. Optional.
	Bus *events.Bus

	// Logger defaults to a no-op logger.
	Logger *zap.Logger
}

// Simulator runs repairs in isolation and tracks pending reports until
// they are committed or discarded.
type Simulator struct {
	mu      sync.RWMutex
	pending map[string]*Report

	checks  *registry.CheckRegistry
	repairs *registry.RepairRegistry
	commit  CommitFunc
	store   store.Store
	bus     *events.Bus
	logger  *zap.Logger
}

// New creates a Simulator and reloads any reports staged by an earlier
// process.
func New(ctx context.Context, cfg Config) (*Simulator, error) {
	if cfg.Checks == nil {
		return nil, fmt.Errorf("check registry cannot be nil")
	}
	if cfg.Repairs == nil {
		return nil, fmt.Errorf("repair registry cannot be nil")
	}
	if cfg.Commit == nil {
		return nil, fmt.Errorf("commit function cannot be nil")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Simulator{
		pending: make(map[string]*Report),
		checks:  cfg.Checks,
		repairs: cfg.Repairs,
		commit:  cfg.Commit,
		store:   cfg.Store,
		bus:     cfg.Bus,
		logger:  logger,
	}
	if err := s.loadPending(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// loadPending restores staged reports from storage. A corrupt payload
// is dropped with a warning rather than blocking startup.
func (s *Simulator) loadPending(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	raw, err := s.store.GetString(ctx, store.KeyPendingSimulations)
	if err != nil {
		return fmt.Errorf("failed to load pending simulations: %w", err)
	}
	if raw == "" {
		return nil
	}
	var reports []*Report
	if err := json.Unmarshal([]byte(raw), &reports); err != nil {
		s.logger.Warn("dropping corrupt pending simulations", zap.Error(err))
		return nil
	}
	for _, r := range reports {
		s.pending[r.ID] = r
	}
	return nil
}

// savePending writes the staged reports back to storage. Failures are
// logged; the in-memory set stays authoritative.
func (s *Simulator) savePending(ctx context.Context) {
	if s.store == nil {
		return
	}
	reports := s.Pending()
	data, err := json.Marshal(reports)
	if err != nil {
		s.logger.Warn("failed to encode pending simulations", zap.Error(err))
		return
	}
	if err := s.store.SetString(ctx, store.KeyPendingSimulations, string(data)); err != nil {
		s.logger.Warn("failed to persist pending simulations", zap.Error(err))
	}
}

// Simulate applies the named repair to a deep clone of snap, re-runs
// every check against the result, and returns a report. The input
// snapshot is never modified; a failed simulation leaves no trace
// beyond its report.
func (s *Simulator) Simulate(ctx context.Context, snap *types.Snapshot, repairName string) (*Report, error) {
	if _, ok := s.repairs.Get(repairName); !ok {
		return nil, fmt.Errorf("unknown repair: %s", repairName)
	}

	report := &Report{
		ID:          uuid.New().String()[:8],
		RepairName:  repairName,
		TestResults: make(map[string]bool),
		SimulatedAt: time.Now(),
	}

	before := s.checkOutcomes(ctx, snap)
	clone := snap.Clone()

	changes, err := s.repairs.RunRepair(ctx, repairName, clone)
	if err != nil {
		report.Success = false
		report.Summary = fmt.Sprintf("Exception: %v", err)
		s.finish(ctx, report)
		return report, nil
	}
	report.Changes = changes
	report.ResultingState = clone

	after := s.checkOutcomes(ctx, clone)
	for name, passed := range after {
		report.TestResults[name] = passed
	}

	report.Success, report.Summary = s.judge(repairName, changes, before, after)
	s.finish(ctx, report)
	return report, nil
}

// checkOutcomes runs the full suite and maps check name to pass, where
// pass means the check neither found an issue nor errored.
func (s *Simulator) checkOutcomes(ctx context.Context, snap *types.Snapshot) map[string]bool {
	outcomes := make(map[string]bool)
	for _, res := range s.checks.RunAll(ctx, snap) {
		outcomes[res.Name] = !res.HasIssue && res.Err == ""
	}
	return outcomes
}

// judge decides whether the simulation counts as a success. The
// repair's own check must pass afterwards, and no check that passed
// before may fail now.
func (s *Simulator) judge(repairName string, changes []string, before, after map[string]bool) (bool, string) {
	for name, passedBefore := range before {
		if passedBefore && !after[name] {
			return false, fmt.Sprintf("repair %s introduced a regression in check %s", repairName, name)
		}
	}
	own := ownCheckName(repairName)
	if own != "" {
		if passed, known := after[own]; known && !passed {
			return false, fmt.Sprintf("issue %s still present after repair", own)
		}
	}
	if len(changes) == 0 {
		return true, fmt.Sprintf("repair %s found nothing to fix", repairName)
	}
	return true, fmt.Sprintf("repair %s applied %d changes, all checks passing", repairName, len(changes))
}

// ownCheckName inverts the fix_<issue> naming convention.
func ownCheckName(repairName string) string {
	const prefix = "fix_"
	if len(repairName) > len(prefix) && repairName[:len(prefix)] == prefix {
		return repairName[len(prefix):]
	}
	return ""
}

// finish records the report and emits its lifecycle event.
func (s *Simulator) finish(ctx context.Context, report *Report) {
	s.mu.Lock()
	s.pending[report.ID] = report
	s.mu.Unlock()
	s.savePending(ctx)

	s.logger.Info("simulated repair",
		zap.String("report", report.ID),
		zap.String("repair", report.RepairName),
		zap.Bool("success", report.Success),
		zap.Int("changes", len(report.Changes)))
	if s.bus != nil {
		s.bus.Emit(events.NewRepairSimulatedEvent(ownCheckName(report.RepairName), report.Summary))
	}
}

// Commit persists the resulting state of a successful report through
// the configured commit function, then drops the report. Committing a
// failed or unknown report is an error and changes nothing.
func (s *Simulator) Commit(ctx context.Context, reportID string) error {
	s.mu.RLock()
	report, ok := s.pending[reportID]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("unknown simulation report: %s", reportID)
	}
	if !report.Success {
		return fmt.Errorf("refusing to commit failed simulation %s: %s", reportID, report.Summary)
	}
	if report.ResultingState == nil {
		return fmt.Errorf("simulation %s has no resulting state", reportID)
	}

	if err := s.commit(ctx, report.ResultingState); err != nil {
		return fmt.Errorf("failed to commit simulation %s: %w", reportID, err)
	}

	s.mu.Lock()
	delete(s.pending, reportID)
	s.mu.Unlock()
	s.savePending(ctx)

	s.logger.Info("committed simulated repair",
		zap.String("report", reportID),
		zap.String("repair", report.RepairName))
	if s.bus != nil {
		s.bus.Emit(events.NewRepairCommittedEvent(ownCheckName(report.RepairName), report.Summary))
	}
	return nil
}

// Discard drops a pending report without applying it.
func (s *Simulator) Discard(ctx context.Context, reportID string) bool {
	s.mu.Lock()
	_, ok := s.pending[reportID]
	delete(s.pending, reportID)
	s.mu.Unlock()
	if ok {
		s.savePending(ctx)
	}
	return ok
}

// Pending returns the reports awaiting commit or discard, newest last.
func (s *Simulator) Pending() []*Report {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Report, 0, len(s.pending))
	for _, r := range s.pending {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].SimulatedAt.Before(out[j].SimulatedAt)
	})
	return out
}

// Get returns a pending report by ID.
func (s *Simulator) Get(reportID string) (*Report, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.pending[reportID]
	return r, ok
}
