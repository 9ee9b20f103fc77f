// Package repairlog keeps the bounded history of issue -> action events
// the engine produced. The log is diagnostic, not authoritative: it is
// persisted independently of the mission lists and a lost write is
// tolerable.
package repairlog

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/questlog/mechanicum/internal/store"
)

// Entry is one issue -> action pair in the history. RecordID is empty
// for whole-set repairs.
type Entry struct {
	Timestamp time.Time `json:"timestamp"`
	Issue     string    `json:"issue"`
	Action    string    `json:"action"`
	RecordID  string    `json:"record_id,omitempty"`
}

// Log is a fixed-capacity ring of repair entries, oldest evicted first.
// Appends persist the whole ring; a failed write is logged and retried
// implicitly by the next append.
type Log struct {
	mu       sync.Mutex
	entries  []Entry
	capacity int
	store    store.Store
	logger   *zap.Logger
}

// Config holds Log configuration
type Config struct {
	Store    store.Store
	Capacity int // maximum retained entries, default 100
	Logger   *zap.Logger
}

// New creates a Log and loads any persisted entries
func New(ctx context.Context, cfg *Config) (*Log, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	capacity := cfg.Capacity
	if capacity <= 0 {
		capacity = 100
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	l := &Log{
		capacity: capacity,
		store:    cfg.Store,
		logger:   logger,
	}
	if err := l.load(ctx); err != nil {
		return nil, err
	}
	return l, nil
}

// Append records an issue -> action event and persists the ring
func (l *Log) Append(ctx context.Context, issue, action, recordID string) {
	entry := Entry{
		Timestamp: time.Now(),
		Issue:     issue,
		Action:    action,
		RecordID:  recordID,
	}

	l.mu.Lock()
	l.entries = append(l.entries, entry)
	if len(l.entries) > l.capacity {
		copy(l.entries, l.entries[len(l.entries)-l.capacity:])
		l.entries = l.entries[:l.capacity]
	}
	l.mu.Unlock()

	if err := l.save(ctx); err != nil {
		l.logger.Warn("failed to persist repair log",
			zap.String("issue", issue),
			zap.Error(err))
	}
}

// Entries returns a copy of the retained entries, oldest first
func (l *Log) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of retained entries
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Summary aggregates the retained entries per issue name, most frequent
// first in the returned text
func (l *Log) Summary() string {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.entries) == 0 {
		return "no repairs recorded"
	}

	counts := make(map[string]int)
	order := []string{}
	for _, e := range l.entries {
		if counts[e.Issue] == 0 {
			order = append(order, e.Issue)
		}
		counts[e.Issue]++
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d repairs across %d issue kinds", len(l.entries), len(order))
	for _, issue := range order {
		fmt.Fprintf(&b, "\n  %s: %d", issue, counts[issue])
	}
	return b.String()
}

func (l *Log) load(ctx context.Context) error {
	raw, err := l.store.GetStringList(ctx, store.KeyRepairLog)
	if err != nil {
		return fmt.Errorf("failed to load repair log: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	for _, item := range raw {
		var entry Entry
		if err := json.Unmarshal([]byte(item), &entry); err != nil {
			// Skip unreadable entries, the log is diagnostic only
			l.logger.Warn("skipping corrupt repair log entry", zap.Error(err))
			continue
		}
		l.entries = append(l.entries, entry)
	}
	if len(l.entries) > l.capacity {
		copy(l.entries, l.entries[len(l.entries)-l.capacity:])
		l.entries = l.entries[:l.capacity]
	}
	return nil
}

func (l *Log) save(ctx context.Context) error {
	l.mu.Lock()
	items := make([]string, 0, len(l.entries))
	for _, entry := range l.entries {
		raw, err := json.Marshal(entry)
		if err != nil {
			l.mu.Unlock()
			return fmt.Errorf("failed to encode repair log entry: %w", err)
		}
		items = append(items, string(raw))
	}
	l.mu.Unlock()

	return l.store.SetStringList(ctx, store.KeyRepairLog, items)
}
