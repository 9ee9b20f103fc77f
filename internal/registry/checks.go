package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/questlog/mechanicum/internal/events"
	"github.com/questlog/mechanicum/internal/store"
	"github.com/questlog/mechanicum/internal/types"
)

// CheckRegistryConfig carries the dependencies for a CheckRegistry.
// Store is required; the rest defaults to inert implementations.
type CheckRegistryConfig struct {
	Store   store.Store
	Logger  *zap.Logger
	Bus     *events.Bus
	History *LearningHistory
}

// CheckRegistry holds the health checks known to the engine: the
// curated builtins plus any checks learned at runtime. Registration is
// first-wins, so builtins can never be shadowed by persisted or learned
// entries under the same name.
//
// Running checks has no side effects beyond logging. Callers own event
// emission and frequency tracking, which lets the sandbox re-run the
// full suite against a cloned snapshot without leaking anything out.
type CheckRegistry struct {
	mu      sync.RWMutex
	checks  map[string]Check
	order   []string // registration order, breaks ties within a priority tier
	learned map[string]time.Time

	store   store.Store
	logger  *zap.Logger
	bus     *events.Bus
	history *LearningHistory
}

// NewCheckRegistry registers the builtin checks, then overlays the
// persisted registry state. Persisted builtins are already present and
// are skipped; persisted learned checks are rebound through the
// dispatch table, or to an inert predicate when no implementation
// matches their name.
func NewCheckRegistry(ctx context.Context, cfg CheckRegistryConfig) (*CheckRegistry, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &CheckRegistry{
		checks:  make(map[string]Check),
		learned: make(map[string]time.Time),
		store:   cfg.Store,
		logger:  logger,
		bus:     cfg.Bus,
		history: cfg.History,
	}
	for _, c := range BuiltinChecks() {
		r.Register(c)
	}
	if err := r.loadState(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

// Register adds a check under its name. The first registration for a
// name wins; later ones are ignored and reported false.
func (r *CheckRegistry) Register(c Check) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.checks[c.Name()]; exists {
		return false
	}
	r.checks[c.Name()] = c
	r.order = append(r.order, c.Name())
	return true
}

// Get returns the check registered under name.
func (r *CheckRegistry) Get(name string) (Check, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.checks[name]
	return c, ok
}

// Names returns the registered check names in registration order.
func (r *CheckRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Len reports how many checks are registered.
func (r *CheckRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.checks)
}

// RunAll runs every registered check against the snapshot in descending
// priority order, registration order within a tier. A check that fails
// or panics is reported as no-issue with the error captured; the sweep
// always runs to completion.
func (r *CheckRegistry) RunAll(ctx context.Context, snap *types.Snapshot) []CheckResult {
	return r.run(ctx, snap, r.ordered(), 0)
}

// RunTop runs only the checks at or above minPriority, capped at limit.
// It is the cheap subset used by the frequent local sweep.
func (r *CheckRegistry) RunTop(ctx context.Context, snap *types.Snapshot, minPriority types.Priority, limit int) []CheckResult {
	var subset []Check
	for _, c := range r.ordered() {
		if c.Priority().Rank() >= minPriority.Rank() {
			subset = append(subset, c)
		}
	}
	return r.run(ctx, snap, subset, limit)
}

// ordered returns the checks sorted by descending priority, stable over
// registration order.
func (r *CheckRegistry) ordered() []Check {
	r.mu.RLock()
	checks := make([]Check, 0, len(r.order))
	for _, name := range r.order {
		checks = append(checks, r.checks[name])
	}
	r.mu.RUnlock()
	sort.SliceStable(checks, func(i, j int) bool {
		return checks[i].Priority().Rank() > checks[j].Priority().Rank()
	})
	return checks
}

func (r *CheckRegistry) run(ctx context.Context, snap *types.Snapshot, checks []Check, limit int) []CheckResult {
	if limit > 0 && len(checks) > limit {
		checks = checks[:limit]
	}
	results := make([]CheckResult, 0, len(checks))
	for _, c := range checks {
		results = append(results, r.runOne(ctx, snap, c))
	}
	return results
}

// runOne isolates a single check. A panicking or erroring check must
// not take the sweep down with it.
func (r *CheckRegistry) runOne(ctx context.Context, snap *types.Snapshot, c Check) (result CheckResult) {
	result = CheckResult{Name: c.Name(), Priority: c.Priority()}
	defer func() {
		if rec := recover(); rec != nil {
			result.HasIssue = false
			result.Err = fmt.Sprintf("panic: %v", rec)
			r.logger.Error("health check panicked",
				zap.String("check", c.Name()),
				zap.Any("panic", rec))
		}
	}()
	hasIssue, err := c.Detect(ctx, snap)
	if err != nil {
		result.HasIssue = false
		result.Err = err.Error()
		r.logger.Warn("health check failed",
			zap.String("check", c.Name()),
			zap.Error(err))
		return result
	}
	result.HasIssue = hasIssue
	return result
}

// Learn registers a new check at runtime, records it in the learning
// history, and persists the registry state. Learning a name that is
// already registered is a no-op and returns false.
func (r *CheckRegistry) Learn(ctx context.Context, name, description string, priority types.Priority, fn DetectFunc) bool {
	if !priority.IsValid() {
		priority = types.PriorityMedium
	}
	if !r.Register(NewCheck(name, description, priority, fn)) {
		return false
	}
	r.mu.Lock()
	r.learned[name] = time.Now()
	r.mu.Unlock()

	r.logger.Info("learned health check",
		zap.String("check", name),
		zap.String("priority", string(priority)))
	if r.history != nil {
		r.history.Append(ctx, "check", name, description)
	}
	if r.bus != nil {
		r.bus.EmitLearning(fmt.Sprintf("learned check %s: %s", name, description))
		r.bus.Emit(events.NewLearnedEvent(events.EventTypeCheckLearned, name, description))
	}
	r.SaveState(ctx)
	return true
}

// SaveState persists the registry as name and metadata only. Check code
// is never serialized; rehydration goes through the dispatch table.
func (r *CheckRegistry) SaveState(ctx context.Context) {
	r.mu.RLock()
	stored := make([]StoredCheck, 0, len(r.order))
	for _, name := range r.order {
		c := r.checks[name]
		sc := StoredCheck{
			Name:        c.Name(),
			Description: c.Description(),
			Priority:    c.Priority(),
		}
		if at, ok := r.learned[name]; ok {
			sc.Learned = true
			t := at
			sc.LearnedAt = &t
		}
		stored = append(stored, sc)
	}
	r.mu.RUnlock()

	data, err := json.Marshal(stored)
	if err != nil {
		r.logger.Warn("failed to encode check registry", zap.Error(err))
		return
	}
	if err := r.store.SetString(ctx, store.KeyHealthChecks, string(data)); err != nil {
		r.logger.Warn("failed to persist check registry", zap.Error(err))
	}
}

func (r *CheckRegistry) loadState(ctx context.Context) error {
	raw, err := r.store.GetString(ctx, store.KeyHealthChecks)
	if err != nil {
		return fmt.Errorf("failed to load check registry: %w", err)
	}
	if raw == "" {
		return nil
	}
	var stored []StoredCheck
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		r.logger.Warn("discarding corrupt check registry state", zap.Error(err))
		return nil
	}
	dispatch := builtinDetectFuncs()
	for _, sc := range stored {
		if _, exists := r.Get(sc.Name); exists {
			continue
		}
		fn, ok := dispatch[sc.Name]
		if !ok {
			fn = InertDetect
			r.logger.Info("rebound learned check to inert predicate",
				zap.String("check", sc.Name))
		}
		priority := sc.Priority
		if !priority.IsValid() {
			priority = types.PriorityMedium
		}
		r.Register(NewCheck(sc.Name, sc.Description, priority, fn))
		if sc.Learned {
			at := time.Now()
			if sc.LearnedAt != nil {
				at = *sc.LearnedAt
			}
			r.mu.Lock()
			r.learned[sc.Name] = at
			r.mu.Unlock()
		}
	}
	return nil
}
