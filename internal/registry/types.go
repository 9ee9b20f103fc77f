// Package registry holds the named, priority-ranked health checks and
// repair actions the engine runs against mission state. Both registries
// bootstrap from a curated builtin set and grow at runtime through
// learning; persisted state stores metadata only and is rehydrated
// against the builtin dispatch table by name.
package registry

import (
	"context"
	"time"

	"github.com/questlog/mechanicum/internal/types"
)

// Check is a named predicate over the mission snapshot.
type Check interface {
	// Name is the stable dispatch key for this check
	Name() string

	// Description explains what the check looks for
	Description() string

	// Priority ranks the check within a sweep
	Priority() types.Priority

	// Detect returns true iff the issue is present. Detect must not
	// mutate the snapshot.
	Detect(ctx context.Context, snap *types.Snapshot) (bool, error)
}

// Repair is a named mutation that resolves one issue kind.
type Repair interface {
	// Name is the stable dispatch key, conventionally "fix_<issue>"
	Name() string

	// Description explains what the repair changes
	Description() string

	// Priority ranks the repair within a sweep
	Priority() types.Priority

	// Apply mutates snap to resolve the issue and returns one
	// human-readable entry per field-level change. An empty list means
	// the snapshot had nothing to fix; re-applying is always safe.
	Apply(ctx context.Context, snap *types.Snapshot) ([]string, error)
}

// CheckResult is the outcome of one check within a sweep. A faulting
// predicate is reported as HasIssue=false with Err set; it never aborts
// the sweep.
type CheckResult struct {
	Name     string         `json:"name"`
	HasIssue bool           `json:"has_issue"`
	Priority types.Priority `json:"priority"`
	Err      string         `json:"error,omitempty"`
}

// DetectFunc adapts a plain function to the Check predicate shape
type DetectFunc func(ctx context.Context, snap *types.Snapshot) (bool, error)

// ApplyFunc adapts a plain function to the Repair mutation shape
type ApplyFunc func(ctx context.Context, snap *types.Snapshot) ([]string, error)

// funcCheck is the standard Check implementation: metadata plus a
// predicate. Builtin and learned checks both use it.
type funcCheck struct {
	name        string
	description string
	priority    types.Priority
	fn          DetectFunc
}

// NewCheck wraps a predicate as a Check
func NewCheck(name, description string, priority types.Priority, fn DetectFunc) Check {
	return &funcCheck{name: name, description: description, priority: priority, fn: fn}
}

func (c *funcCheck) Name() string             { return c.name }
func (c *funcCheck) Description() string      { return c.description }
func (c *funcCheck) Priority() types.Priority { return c.priority }

func (c *funcCheck) Detect(ctx context.Context, snap *types.Snapshot) (bool, error) {
	return c.fn(ctx, snap)
}

// funcRepair is the standard Repair implementation
type funcRepair struct {
	name        string
	description string
	priority    types.Priority
	fn          ApplyFunc
}

// NewRepair wraps a mutation as a Repair
func NewRepair(name, description string, priority types.Priority, fn ApplyFunc) Repair {
	return &funcRepair{name: name, description: description, priority: priority, fn: fn}
}

func (r *funcRepair) Name() string             { return r.name }
func (r *funcRepair) Description() string      { return r.description }
func (r *funcRepair) Priority() types.Priority { return r.priority }

func (r *funcRepair) Apply(ctx context.Context, snap *types.Snapshot) ([]string, error) {
	return r.fn(ctx, snap)
}

// StoredCheck is the persisted form of a check: metadata only, never
// code. Rehydration binds the name back to a builtin implementation or
// to the inert fallback.
type StoredCheck struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Priority    types.Priority `json:"priority"`
	Learned     bool           `json:"learned"`
	LearnedAt   *time.Time     `json:"learned_at,omitempty"`
}

// StoredRepair is the persisted form of a repair action
type StoredRepair struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Priority    types.Priority `json:"priority"`
	Learned     bool           `json:"learned"`
	LearnedAt   *time.Time     `json:"learned_at,omitempty"`
}
