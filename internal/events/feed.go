package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/questlog/mechanicum/internal/store"
)

// LoadFeed reads the persisted event feed. An absent key is an empty
// feed, not an error.
func LoadFeed(ctx context.Context, st store.Store) ([]GuardianEvent, error) {
	raw, err := st.GetString(ctx, store.KeyIssueFeed)
	if err != nil {
		return nil, fmt.Errorf("failed to load event feed: %w", err)
	}
	if raw == "" {
		return nil, nil
	}
	var feed []GuardianEvent
	if err := json.Unmarshal([]byte(raw), &feed); err != nil {
		return nil, fmt.Errorf("corrupt event feed: %w", err)
	}
	return feed, nil
}

// SaveFeed writes the event feed back to storage.
func SaveFeed(ctx context.Context, st store.Store, feed []GuardianEvent) error {
	if feed == nil {
		feed = []GuardianEvent{}
	}
	data, err := json.Marshal(feed)
	if err != nil {
		return fmt.Errorf("failed to encode event feed: %w", err)
	}
	if err := st.SetString(ctx, store.KeyIssueFeed, string(data)); err != nil {
		return fmt.Errorf("failed to persist event feed: %w", err)
	}
	return nil
}
