package mission

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/questlog/mechanicum/internal/events"
	"github.com/questlog/mechanicum/internal/store"
)

// SuggestionStatus tracks where a repair suggestion sits in the review
// workflow.
type SuggestionStatus string

const (
	SuggestionPending  SuggestionStatus = "pending"
	SuggestionApproved SuggestionStatus = "approved"
	SuggestionRejected SuggestionStatus = "rejected"
)

// Suggestion is a repair the guardian proposes but will not apply on
// its own. A human approves it, which runs the repair through the
// sandbox and commits on success, or rejects it.
type Suggestion struct {
	ID          string           `json:"id"`
	Issue       string           `json:"issue"`
	Description string           `json:"description"`
	RepairName  string           `json:"repair_name"`
	RecordID    string           `json:"record_id,omitempty"`
	Status      SuggestionStatus `json:"status"`
	CreatedAt   time.Time        `json:"created_at"`
	ResolvedAt  *time.Time       `json:"resolved_at,omitempty"`
	Resolution  string           `json:"resolution,omitempty"`
}

// SuggestionStatistics summarizes the review workflow.
type SuggestionStatistics struct {
	Total        int     `json:"total"`
	Pending      int     `json:"pending"`
	Approved     int     `json:"approved"`
	Rejected     int     `json:"rejected"`
	ApprovalRate float64 `json:"approval_rate"`
}

// Suggest queues a repair suggestion for review. A pending suggestion
// for the same issue is reused instead of duplicated; the returned bool
// reports whether a new suggestion was created.
func (c *Coordinator) Suggest(ctx context.Context, issue, description, repairName, recordID string) (*Suggestion, bool, error) {
	c.suggestMu.Lock()
	defer c.suggestMu.Unlock()

	list, err := c.loadSuggestions(ctx)
	if err != nil {
		return nil, false, err
	}
	for i := range list {
		if list[i].Issue == issue && list[i].Status == SuggestionPending {
			return &list[i], false, nil
		}
	}

	s := Suggestion{
		ID:          uuid.New().String()[:8],
		Issue:       issue,
		Description: description,
		RepairName:  repairName,
		RecordID:    recordID,
		Status:      SuggestionPending,
		CreatedAt:   time.Now(),
	}
	list = append(list, s)
	if err := c.saveSuggestions(ctx, list); err != nil {
		return nil, false, err
	}

	c.logger.Info("queued repair suggestion",
		zap.String("suggestion", s.ID),
		zap.String("issue", issue),
		zap.String("repair", repairName))
	if c.bus != nil {
		c.bus.Emit(events.NewSuggestionEvent(events.EventTypeSuggestionCreated, issue, description, recordID))
	}
	return &s, true, nil
}

// Approve runs the suggested repair through the sandbox and commits the
// verified result. A failed simulation leaves the suggestion pending so
// it can be retried or rejected; live state is untouched in that case.
func (c *Coordinator) Approve(ctx context.Context, suggestionID string) (*Suggestion, error) {
	c.suggestMu.Lock()
	defer c.suggestMu.Unlock()

	list, err := c.loadSuggestions(ctx)
	if err != nil {
		return nil, err
	}
	idx := findSuggestion(list, suggestionID)
	if idx < 0 {
		return nil, fmt.Errorf("unknown suggestion: %s", suggestionID)
	}
	s := &list[idx]
	if s.Status != SuggestionPending {
		return nil, fmt.Errorf("suggestion %s already %s", suggestionID, s.Status)
	}

	snap, err := c.LoadSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	report, err := c.simulator.Simulate(ctx, snap, s.RepairName)
	if err != nil {
		return nil, fmt.Errorf("failed to simulate suggested repair: %w", err)
	}
	if !report.Success {
		c.simulator.Discard(ctx, report.ID)
		return nil, fmt.Errorf("suggested repair did not verify: %s", report.Summary)
	}
	if err := c.simulator.Commit(ctx, report.ID); err != nil {
		return nil, err
	}

	now := time.Now()
	s.Status = SuggestionApproved
	s.ResolvedAt = &now
	s.Resolution = report.Summary
	if err := c.saveSuggestions(ctx, list); err != nil {
		return nil, err
	}

	for _, change := range report.Changes {
		c.repairLog.Append(ctx, s.Issue, change, s.RecordID)
	}
	c.logger.Info("approved repair suggestion",
		zap.String("suggestion", s.ID),
		zap.String("repair", s.RepairName),
		zap.Int("changes", len(report.Changes)))
	if c.bus != nil {
		c.bus.Emit(events.NewSuggestionEvent(events.EventTypeSuggestionResolved, s.Issue, "approved: "+report.Summary, s.RecordID))
	}
	out := *s
	return &out, nil
}

// Reject marks a pending suggestion rejected without touching state.
func (c *Coordinator) Reject(ctx context.Context, suggestionID, reason string) (*Suggestion, error) {
	c.suggestMu.Lock()
	defer c.suggestMu.Unlock()

	list, err := c.loadSuggestions(ctx)
	if err != nil {
		return nil, err
	}
	idx := findSuggestion(list, suggestionID)
	if idx < 0 {
		return nil, fmt.Errorf("unknown suggestion: %s", suggestionID)
	}
	s := &list[idx]
	if s.Status != SuggestionPending {
		return nil, fmt.Errorf("suggestion %s already %s", suggestionID, s.Status)
	}

	now := time.Now()
	s.Status = SuggestionRejected
	s.ResolvedAt = &now
	s.Resolution = reason
	if err := c.saveSuggestions(ctx, list); err != nil {
		return nil, err
	}

	c.logger.Info("rejected repair suggestion",
		zap.String("suggestion", s.ID),
		zap.String("reason", reason))
	if c.bus != nil {
		c.bus.Emit(events.NewSuggestionEvent(events.EventTypeSuggestionResolved, s.Issue, "rejected: "+reason, s.RecordID))
	}
	out := *s
	return &out, nil
}

// Suggestions returns all suggestions, oldest first.
func (c *Coordinator) Suggestions(ctx context.Context) ([]Suggestion, error) {
	c.suggestMu.Lock()
	defer c.suggestMu.Unlock()

	list, err := c.loadSuggestions(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})
	return list, nil
}

// Statistics summarizes the suggestion queue. The approval rate counts
// approved against all resolved suggestions.
func (c *Coordinator) Statistics(ctx context.Context) (*SuggestionStatistics, error) {
	c.suggestMu.Lock()
	defer c.suggestMu.Unlock()

	list, err := c.loadSuggestions(ctx)
	if err != nil {
		return nil, err
	}
	stats := &SuggestionStatistics{Total: len(list)}
	for _, s := range list {
		switch s.Status {
		case SuggestionPending:
			stats.Pending++
		case SuggestionApproved:
			stats.Approved++
		case SuggestionRejected:
			stats.Rejected++
		}
	}
	if resolved := stats.Approved + stats.Rejected; resolved > 0 {
		stats.ApprovalRate = float64(stats.Approved) / float64(resolved)
	}
	return stats, nil
}

func findSuggestion(list []Suggestion, id string) int {
	for i := range list {
		if list[i].ID == id {
			return i
		}
	}
	return -1
}

func (c *Coordinator) loadSuggestions(ctx context.Context) ([]Suggestion, error) {
	raw, err := c.store.GetString(ctx, store.KeySuggestions)
	if err != nil {
		return nil, fmt.Errorf("failed to load suggestions: %w", err)
	}
	if raw == "" {
		return nil, nil
	}
	var list []Suggestion
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		c.logger.Warn("discarding corrupt suggestion queue", zap.Error(err))
		return nil, nil
	}
	return list, nil
}

func (c *Coordinator) saveSuggestions(ctx context.Context, list []Suggestion) error {
	data, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("failed to encode suggestions: %w", err)
	}
	if err := c.store.SetString(ctx, store.KeySuggestions, string(data)); err != nil {
		return fmt.Errorf("failed to save suggestions: %w", err)
	}
	return nil
}
