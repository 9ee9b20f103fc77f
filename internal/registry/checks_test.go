package registry

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/questlog/mechanicum/internal/store"
	"github.com/questlog/mechanicum/internal/types"
)

func newTestCheckRegistry(t *testing.T, st store.Store) *CheckRegistry {
	t.Helper()
	reg, err := NewCheckRegistry(context.Background(), CheckRegistryConfig{Store: st})
	require.NoError(t, err)
	return reg
}

func TestCheckRegistryBuiltins(t *testing.T) {
	reg := newTestCheckRegistry(t, store.NewMemory())

	assert.Equal(t, len(BuiltinChecks()), reg.Len())
	_, ok := reg.Get(CheckDuplicateNotificationIDs)
	assert.True(t, ok)
}

func TestCheckRegistryFirstRegistrationWins(t *testing.T) {
	reg := newTestCheckRegistry(t, store.NewMemory())

	impostor := NewCheck(CheckDuplicateMissionIDs, "impostor", types.PriorityLow,
		func(context.Context, *types.Snapshot) (bool, error) { return true, nil })
	assert.False(t, reg.Register(impostor))

	kept, ok := reg.Get(CheckDuplicateMissionIDs)
	require.True(t, ok)
	assert.Equal(t, types.PriorityCritical, kept.Priority())
	assert.NotEqual(t, "impostor", kept.Description())
}

func TestRunAllPriorityOrdering(t *testing.T) {
	reg := newTestCheckRegistry(t, store.NewMemory())
	fires := func(context.Context, *types.Snapshot) (bool, error) { return true, nil }
	require.True(t, reg.Learn(context.Background(), "alpha", "a", types.PriorityCritical, fires))
	require.True(t, reg.Learn(context.Background(), "beta", "b", types.PriorityLow, fires))
	require.True(t, reg.Learn(context.Background(), "gamma", "c", types.PriorityHigh, fires))

	results := reg.RunAll(context.Background(), types.NewSnapshot())
	require.Len(t, results, reg.Len())

	pos := make(map[string]int)
	for i, res := range results {
		pos[res.Name] = i
	}
	assert.Less(t, pos["alpha"], pos["gamma"], "critical must run before high")
	assert.Less(t, pos["gamma"], pos["beta"], "high must run before low")

	// Descending priority must hold across the whole result set.
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t,
			results[i-1].Priority.Rank(), results[i].Priority.Rank(),
			"results out of order at %d: %s after %s", i, results[i].Name, results[i-1].Name)
	}
}

func TestRunAllIsolatesFaultingChecks(t *testing.T) {
	reg := newTestCheckRegistry(t, store.NewMemory())
	require.True(t, reg.Learn(context.Background(), "broken", "always errors", types.PriorityCritical,
		func(context.Context, *types.Snapshot) (bool, error) {
			return true, fmt.Errorf("backing service unavailable")
		}))
	require.True(t, reg.Learn(context.Background(), "explosive", "always panics", types.PriorityCritical,
		func(context.Context, *types.Snapshot) (bool, error) {
			panic("boom")
		}))

	results := reg.RunAll(context.Background(), types.NewSnapshot())
	require.Len(t, results, reg.Len(), "a faulting check must not abort the sweep")

	byName := make(map[string]CheckResult)
	for _, res := range results {
		byName[res.Name] = res
	}
	assert.False(t, byName["broken"].HasIssue)
	assert.Contains(t, byName["broken"].Err, "backing service unavailable")
	assert.False(t, byName["explosive"].HasIssue)
	assert.Contains(t, byName["explosive"].Err, "panic")
}

func TestRunTopSubset(t *testing.T) {
	reg := newTestCheckRegistry(t, store.NewMemory())

	results := reg.RunTop(context.Background(), types.NewSnapshot(), types.PriorityHigh, 2)
	require.Len(t, results, 2)
	for _, res := range results {
		assert.GreaterOrEqual(t, res.Priority.Rank(), types.PriorityHigh.Rank())
	}
}

func TestLearnIsIdempotent(t *testing.T) {
	st := store.NewMemory()
	reg := newTestCheckRegistry(t, st)
	fn := func(context.Context, *types.Snapshot) (bool, error) { return false, nil }

	assert.True(t, reg.Learn(context.Background(), "custom", "first", types.PriorityMedium, fn))
	assert.False(t, reg.Learn(context.Background(), "custom", "second", types.PriorityMedium, fn))
	assert.False(t, reg.Learn(context.Background(), CheckNegativeCounters, "shadow", types.PriorityMedium, fn))

	kept, ok := reg.Get("custom")
	require.True(t, ok)
	assert.Equal(t, "first", kept.Description())
}

func TestLearnedCheckRehydratesInert(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()

	first := newTestCheckRegistry(t, st)
	alwaysFires := func(context.Context, *types.Snapshot) (bool, error) { return true, nil }
	require.True(t, first.Learn(ctx, "session_only", "fires every run", types.PriorityHigh, alwaysFires))

	// A new process has the metadata but not the predicate. The check
	// must come back registered and inert, never resurrected as code.
	second := newTestCheckRegistry(t, st)
	assert.Contains(t, second.Names(), "session_only")

	results := second.RunAll(ctx, types.NewSnapshot())
	for _, res := range results {
		if res.Name == "session_only" {
			assert.False(t, res.HasIssue, "rehydrated check must be inert")
			assert.Empty(t, res.Err)
		}
	}
}

func TestSharedLearningHistory(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	history, err := NewLearningHistory(ctx, st, nil)
	require.NoError(t, err)

	checks, err := NewCheckRegistry(ctx, CheckRegistryConfig{Store: st, History: history})
	require.NoError(t, err)
	repairs, err := NewRepairRegistry(ctx, RepairRegistryConfig{Store: st, History: history})
	require.NoError(t, err)

	checks.Learn(ctx, "c1", "check one", types.PriorityLow,
		func(context.Context, *types.Snapshot) (bool, error) { return false, nil })
	repairs.LearnRepair(ctx, "r1", "repair one", types.PriorityLow,
		func(context.Context, *types.Snapshot) ([]string, error) { return nil, nil })

	records := history.Records()
	require.Len(t, records, 2)
	assert.Equal(t, "check", records[0].Kind)
	assert.Equal(t, "c1", records[0].Name)
	assert.Equal(t, "repair", records[1].Kind)
	assert.Equal(t, "r1", records[1].Name)

	// A fresh history on the same store sees both entries.
	reloaded, err := NewLearningHistory(ctx, st, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, reloaded.Len())
}
