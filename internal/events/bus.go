package events

import (
	"reflect"
	"sync"
)

// subscriber channel depth. Emitters never block: a full channel drops
// the event for that subscriber only.
const subscriberBuffer = 50

// Bus fans the engine's three signals out to subscribers. All methods
// are safe for concurrent use. Delivery is best-effort per subscriber;
// the engine never waits on a consumer.
type Bus struct {
	mu       sync.RWMutex
	activity []chan<- bool
	learning []chan<- string
	guardian []chan<- GuardianEvent

	// bounded recent window of structured events, persisted by the
	// scheduler between runs
	recentMu  sync.Mutex
	recent    []GuardianEvent
	recentCap int
}

// NewBus creates an event bus keeping up to recentCap structured events
func NewBus(recentCap int) *Bus {
	if recentCap < 1 {
		recentCap = 1
	}
	return &Bus{recentCap: recentCap}
}

// SubscribeActivity returns a channel receiving the guardian activity flag
func (b *Bus) SubscribeActivity() <-chan bool {
	ch := make(chan bool, subscriberBuffer)
	b.mu.Lock()
	b.activity = append(b.activity, ch)
	b.mu.Unlock()
	return ch
}

// SubscribeLearning returns a channel receiving free-text learning notes
func (b *Bus) SubscribeLearning() <-chan string {
	ch := make(chan string, subscriberBuffer)
	b.mu.Lock()
	b.learning = append(b.learning, ch)
	b.mu.Unlock()
	return ch
}

// Subscribe returns a channel receiving structured guardian events
func (b *Bus) Subscribe() <-chan GuardianEvent {
	ch := make(chan GuardianEvent, subscriberBuffer)
	b.mu.Lock()
	b.guardian = append(b.guardian, ch)
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes and closes a channel returned by any Subscribe
// variant. Unknown channels are ignored.
func (b *Bus) Unsubscribe(ch interface{}) {
	if ch == nil {
		return
	}
	target := reflect.ValueOf(ch).Pointer()
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, sub := range b.activity {
		if reflect.ValueOf(sub).Pointer() == target {
			b.activity = append(b.activity[:i], b.activity[i+1:]...)
			close(sub)
			return
		}
	}
	for i, sub := range b.learning {
		if reflect.ValueOf(sub).Pointer() == target {
			b.learning = append(b.learning[:i], b.learning[i+1:]...)
			close(sub)
			return
		}
	}
	for i, sub := range b.guardian {
		if reflect.ValueOf(sub).Pointer() == target {
			b.guardian = append(b.guardian[:i], b.guardian[i+1:]...)
			close(sub)
			return
		}
	}
}

// EmitActivity publishes the guardian activity flag
func (b *Bus) EmitActivity(active bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.activity {
		select {
		case sub <- active:
		default: // Drop if channel full
		}
	}
}

// EmitLearning publishes a free-text learning note
func (b *Bus) EmitLearning(note string) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.learning {
		select {
		case sub <- note:
		default: // Drop if channel full
		}
	}
}

// Emit publishes a structured guardian event and records it in the
// recent window
func (b *Bus) Emit(event GuardianEvent) {
	b.recentMu.Lock()
	b.recent = append(b.recent, event)
	if len(b.recent) > b.recentCap {
		// evict oldest, copy so the backing array does not pin evicted entries
		trimmed := make([]GuardianEvent, b.recentCap)
		copy(trimmed, b.recent[len(b.recent)-b.recentCap:])
		b.recent = trimmed
	}
	b.recentMu.Unlock()

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.guardian {
		select {
		case sub <- event:
		default: // Drop if channel full
		}
	}
}

// Recent returns a copy of the bounded recent event window, oldest first
func (b *Bus) Recent() []GuardianEvent {
	b.recentMu.Lock()
	defer b.recentMu.Unlock()
	out := make([]GuardianEvent, len(b.recent))
	copy(out, b.recent)
	return out
}

// SeedRecent primes the recent window, normally from persisted state at
// startup. Events beyond capacity keep only the newest.
func (b *Bus) SeedRecent(events []GuardianEvent) {
	b.recentMu.Lock()
	defer b.recentMu.Unlock()
	if len(events) > b.recentCap {
		events = events[len(events)-b.recentCap:]
	}
	b.recent = make([]GuardianEvent, len(events))
	copy(b.recent, events)
}

// Close closes every subscriber channel and detaches all subscribers.
// Later emits are silently dropped, so the composition root stops the
// scheduler before closing the bus.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, sub := range b.activity {
		close(sub)
	}
	for _, sub := range b.learning {
		close(sub)
	}
	for _, sub := range b.guardian {
		close(sub)
	}
	b.activity = nil
	b.learning = nil
	b.guardian = nil
}
