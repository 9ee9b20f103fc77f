package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/questlog/mechanicum/internal/store"
)

// LearningRecord is one runtime extension of the registries: a check or
// repair taught after startup.
type LearningRecord struct {
	Kind        string    `json:"kind"` // "check" or "repair"
	Name        string    `json:"name"`
	Description string    `json:"description"`
	LearnedAt   time.Time `json:"learned_at"`
}

// LearningHistory records every check and repair learned at runtime.
// Both registries append to the same history so the audit trail stays
// in one place under one storage key.
type LearningHistory struct {
	mu      sync.Mutex
	records []LearningRecord
	store   store.Store
	logger  *zap.Logger
}

// NewLearningHistory loads the persisted history from the store.
// Corrupt persisted entries are discarded rather than failing startup.
func NewLearningHistory(ctx context.Context, st store.Store, logger *zap.Logger) (*LearningHistory, error) {
	if st == nil {
		return nil, fmt.Errorf("store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &LearningHistory{store: st, logger: logger}
	raw, err := st.GetString(ctx, store.KeyLearningHistory)
	if err != nil {
		return nil, fmt.Errorf("failed to load learning history: %w", err)
	}
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &h.records); err != nil {
			logger.Warn("discarding corrupt learning history", zap.Error(err))
			h.records = nil
		}
	}
	return h, nil
}

// Append records a learned check or repair and persists the history.
// A persistence failure is logged; the in-memory history stays
// authoritative for the rest of the session.
func (h *LearningHistory) Append(ctx context.Context, kind, name, description string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, LearningRecord{
		Kind:        kind,
		Name:        name,
		Description: description,
		LearnedAt:   time.Now(),
	})
	data, err := json.Marshal(h.records)
	if err != nil {
		h.logger.Warn("failed to encode learning history", zap.Error(err))
		return
	}
	if err := h.store.SetString(ctx, store.KeyLearningHistory, string(data)); err != nil {
		h.logger.Warn("failed to persist learning history", zap.Error(err))
	}
}

// Records returns a copy of the history in learn order.
func (h *LearningHistory) Records() []LearningRecord {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]LearningRecord, len(h.records))
	copy(out, h.records)
	return out
}

// Len reports how many extensions have been learned.
func (h *LearningHistory) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.records)
}
