// Package idgen generates mission and notification identifiers. Both
// generators are collision-checked against the caller's known-ID set
// and retry until unique, so callers can trust the result is fresh.
package idgen

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/questlog/mechanicum/internal/types"
)

// MissionID returns a fresh mission identifier not present in taken.
// The ID combines a nanosecond timestamp, a process-local random
// component, and a short uuid suffix; the uuid portion alone makes a
// collision vanishingly unlikely, the check makes it impossible.
func MissionID(taken map[string]bool) string {
	for {
		id := fmt.Sprintf("%d-%04d-%s",
			time.Now().UnixNano(),
			rand.Intn(10000),
			uuid.New().String()[:8])
		if !taken[id] {
			return id
		}
	}
}

// NotificationID returns a fresh notification identifier not present in
// taken. Values always satisfy 0 < id <= types.MaxNotificationID, the
// signed 32-bit range the notification subsystem requires.
func NotificationID(taken map[int32]bool) int32 {
	max := int64(types.MaxNotificationID)
	for {
		candidate := int32((time.Now().UnixMilli() + rand.Int63n(max)) % max)
		if candidate <= 0 {
			// mod can land on 0; shift into the valid range
			candidate += 1
		}
		if !taken[candidate] {
			return candidate
		}
	}
}
