// Package frequency counts how often each named issue recurs. The
// counts persist across runs and drive escalation recommendations for
// issues that keep coming back.
package frequency

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/questlog/mechanicum/internal/store"
)

// Tracker persists per-issue occurrence counts. An issue whose count
// reaches the threshold becomes an escalation candidate; the tracker
// only reports candidacy, it never changes any priority itself.
type Tracker struct {
	mu        sync.Mutex
	counts    map[string]int
	threshold int
	store     store.Store
	logger    *zap.Logger
}

// Config holds Tracker configuration
type Config struct {
	Store     store.Store
	Threshold int // occurrences before candidacy, default 3
	Logger    *zap.Logger
}

// New creates a Tracker and loads any persisted counts
func New(ctx context.Context, cfg *Config) (*Tracker, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	threshold := cfg.Threshold
	if threshold <= 0 {
		threshold = 3
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	t := &Tracker{
		counts:    make(map[string]int),
		threshold: threshold,
		store:     cfg.Store,
		logger:    logger,
	}
	if err := t.load(ctx); err != nil {
		return nil, err
	}
	return t, nil
}

// Record increments the count for issueName and persists the table.
// A persistence failure is logged; the in-memory count stays
// authoritative and the next Record retries the write.
func (t *Tracker) Record(ctx context.Context, issueName string) int {
	t.mu.Lock()
	t.counts[issueName]++
	count := t.counts[issueName]
	t.mu.Unlock()

	if err := t.save(ctx); err != nil {
		t.logger.Warn("failed to persist issue frequency",
			zap.String("issue", issueName),
			zap.Error(err))
	}
	return count
}

// Count returns the recorded occurrences of issueName
func (t *Tracker) Count(issueName string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counts[issueName]
}

// EscalationCandidate reports whether issueName has recurred enough to
// justify a priority escalation recommendation
func (t *Tracker) EscalationCandidate(issueName string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counts[issueName] >= t.threshold
}

// Threshold returns the occurrence count at which an issue becomes an
// escalation candidate
func (t *Tracker) Threshold() int {
	return t.threshold
}

// Snapshot returns a copy of the full issue -> count table
func (t *Tracker) Snapshot() map[string]int {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]int, len(t.counts))
	for name, count := range t.counts {
		out[name] = count
	}
	return out
}

func (t *Tracker) load(ctx context.Context) error {
	raw, err := t.store.GetString(ctx, store.KeyIssueFrequency)
	if err != nil {
		return fmt.Errorf("failed to load issue frequency: %w", err)
	}
	if raw == "" {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := json.Unmarshal([]byte(raw), &t.counts); err != nil {
		// Corrupt table: start fresh rather than refuse to run
		t.logger.Warn("discarding corrupt issue frequency table", zap.Error(err))
		t.counts = make(map[string]int)
	}
	return nil
}

func (t *Tracker) save(ctx context.Context) error {
	t.mu.Lock()
	raw, err := json.Marshal(t.counts)
	t.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to encode issue frequency: %w", err)
	}
	return t.store.SetString(ctx, store.KeyIssueFrequency, string(raw))
}
