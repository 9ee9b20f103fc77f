package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/questlog/mechanicum/internal/events"
	"github.com/questlog/mechanicum/internal/store"
	"github.com/questlog/mechanicum/internal/types"
)

// RepairRegistryConfig carries the dependencies for a RepairRegistry.
// Store is required; the rest defaults to inert implementations.
type RepairRegistryConfig struct {
	Store   store.Store
	Logger  *zap.Logger
	Bus     *events.Bus
	History *LearningHistory
}

// RepairRegistry holds the repairs known to the engine, keyed by name
// with the fix_<issue> convention linking them back to checks. Like the
// check registry it is first-registration-wins and persists metadata
// only.
type RepairRegistry struct {
	mu      sync.RWMutex
	repairs map[string]Repair
	order   []string
	learned map[string]time.Time

	store   store.Store
	logger  *zap.Logger
	bus     *events.Bus
	history *LearningHistory
}

// NewRepairRegistry registers the builtin repairs, then overlays the
// persisted state with dispatch-table rehydration. A persisted learned
// repair with no matching implementation is rebound to an inert apply
// so a stale registry can never mutate records.
func NewRepairRegistry(ctx context.Context, cfg RepairRegistryConfig) (*RepairRegistry, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &RepairRegistry{
		repairs: make(map[string]Repair),
		learned: make(map[string]time.Time),
		store:   cfg.Store,
		logger:  logger,
		bus:     cfg.Bus,
		history: cfg.History,
	}
	for _, rep := range BuiltinRepairs() {
		r.Register(rep)
	}
	if err := r.loadState(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

// Register adds a repair under its name. The first registration for a
// name wins; later ones are ignored and reported false.
func (r *RepairRegistry) Register(rep Repair) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.repairs[rep.Name()]; exists {
		return false
	}
	r.repairs[rep.Name()] = rep
	r.order = append(r.order, rep.Name())
	return true
}

// Get returns the repair registered under name.
func (r *RepairRegistry) Get(name string) (Repair, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rep, ok := r.repairs[name]
	return rep, ok
}

// RepairFor resolves the repair for an issue name, trying the name
// itself and then the fix_<issue> convention.
func (r *RepairRegistry) RepairFor(issue string) (Repair, bool) {
	if rep, ok := r.Get(issue); ok {
		return rep, true
	}
	return r.Get(RepairNameFor(issue))
}

// Names returns the registered repair names in registration order.
func (r *RepairRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Len reports how many repairs are registered.
func (r *RepairRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.repairs)
}

// RunRepair applies the named repair to the snapshot and returns its
// change list. A panicking repair is converted into an error; the
// snapshot may be partially modified in that case, which is why callers
// run repairs against clones and only commit verified results.
func (r *RepairRegistry) RunRepair(ctx context.Context, name string, snap *types.Snapshot) (changes []string, err error) {
	rep, ok := r.Get(name)
	if !ok {
		return nil, fmt.Errorf("unknown repair: %s", name)
	}
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("repair %s panicked: %v", name, rec)
			r.logger.Error("repair panicked",
				zap.String("repair", name),
				zap.Any("panic", rec))
		}
	}()
	return rep.Apply(ctx, snap)
}

// LearnRepair registers a new repair at runtime, records it in the
// learning history, and persists the registry state. Learning a name
// that is already registered is a no-op and returns false.
func (r *RepairRegistry) LearnRepair(ctx context.Context, name, description string, priority types.Priority, fn ApplyFunc) bool {
	if !priority.IsValid() {
		priority = types.PriorityMedium
	}
	if !r.Register(NewRepair(name, description, priority, fn)) {
		return false
	}
	r.mu.Lock()
	r.learned[name] = time.Now()
	r.mu.Unlock()

	r.logger.Info("learned repair",
		zap.String("repair", name),
		zap.String("priority", string(priority)))
	if r.history != nil {
		r.history.Append(ctx, "repair", name, description)
	}
	if r.bus != nil {
		r.bus.EmitLearning(fmt.Sprintf("learned repair %s: %s", name, description))
		r.bus.Emit(events.NewLearnedEvent(events.EventTypeRepairLearned, name, description))
	}
	r.SaveState(ctx)
	return true
}

// SaveState persists the registry as name and metadata only.
func (r *RepairRegistry) SaveState(ctx context.Context) {
	r.mu.RLock()
	stored := make([]StoredRepair, 0, len(r.order))
	for _, name := range r.order {
		rep := r.repairs[name]
		sr := StoredRepair{
			Name:        rep.Name(),
			Description: rep.Description(),
			Priority:    rep.Priority(),
		}
		if at, ok := r.learned[name]; ok {
			sr.Learned = true
			t := at
			sr.LearnedAt = &t
		}
		stored = append(stored, sr)
	}
	r.mu.RUnlock()

	data, err := json.Marshal(stored)
	if err != nil {
		r.logger.Warn("failed to encode repair registry", zap.Error(err))
		return
	}
	if err := r.store.SetString(ctx, store.KeyRepairs, string(data)); err != nil {
		r.logger.Warn("failed to persist repair registry", zap.Error(err))
	}
}

func (r *RepairRegistry) loadState(ctx context.Context) error {
	raw, err := r.store.GetString(ctx, store.KeyRepairs)
	if err != nil {
		return fmt.Errorf("failed to load repair registry: %w", err)
	}
	if raw == "" {
		return nil
	}
	var stored []StoredRepair
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		r.logger.Warn("discarding corrupt repair registry state", zap.Error(err))
		return nil
	}
	dispatch := builtinApplyFuncs()
	for _, sr := range stored {
		if _, exists := r.Get(sr.Name); exists {
			continue
		}
		fn, ok := dispatch[sr.Name]
		if !ok {
			fn = InertApply
			r.logger.Info("rebound learned repair to inert apply",
				zap.String("repair", sr.Name))
		}
		priority := sr.Priority
		if !priority.IsValid() {
			priority = types.PriorityMedium
		}
		r.Register(NewRepair(sr.Name, sr.Description, priority, fn))
		if sr.Learned {
			at := time.Now()
			if sr.LearnedAt != nil {
				at = *sr.LearnedAt
			}
			r.mu.Lock()
			r.learned[sr.Name] = at
			r.mu.Unlock()
		}
	}
	return nil
}
