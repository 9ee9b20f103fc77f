package events

import (
	"testing"
	"time"
)

// TestBusDeliversToAllStreams verifies each stream reaches its own
// subscribers
func TestBusDeliversToAllStreams(t *testing.T) {
	bus := NewBus(10)
	defer bus.Close()

	activity := bus.SubscribeActivity()
	learning := bus.SubscribeLearning()
	guardian := bus.Subscribe()

	bus.EmitActivity(true)
	bus.EmitLearning("learned new check: orphan subtasks")
	bus.Emit(NewIssueDetectedEvent("Duplicate mission ID", "m-7"))

	select {
	case got := <-activity:
		if !got {
			t.Error("activity = false, want true")
		}
	case <-time.After(time.Second):
		t.Fatal("activity event not delivered")
	}

	select {
	case got := <-learning:
		if got != "learned new check: orphan subtasks" {
			t.Errorf("learning note = %q", got)
		}
	case <-time.After(time.Second):
		t.Fatal("learning event not delivered")
	}

	select {
	case got := <-guardian:
		if got.Type != EventTypeIssueDetected {
			t.Errorf("event type = %q, want %q", got.Type, EventTypeIssueDetected)
		}
		if got.RecordID != "m-7" {
			t.Errorf("event record = %q, want m-7", got.RecordID)
		}
	case <-time.After(time.Second):
		t.Fatal("guardian event not delivered")
	}
}

// TestBusDropsWhenSubscriberFull verifies a slow subscriber never blocks
// the emitter
func TestBusDropsWhenSubscriberFull(t *testing.T) {
	bus := NewBus(10)
	defer bus.Close()
	_ = bus.Subscribe() // never drained

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer*3; i++ {
			bus.Emit(NewSweepEvent(EventTypeSweepStarted, "tick"))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Emit blocked on a full subscriber channel")
	}
}

// TestBusUnsubscribeCloses verifies unsubscribing closes the channel and
// stops delivery
func TestBusUnsubscribeCloses(t *testing.T) {
	bus := NewBus(10)
	defer bus.Close()

	ch := bus.Subscribe()
	bus.Unsubscribe(ch)

	if _, open := <-ch; open {
		t.Error("unsubscribed channel still open")
	}
}

// TestBusRecentWindow verifies the bounded recent window evicts oldest
// first and seeds correctly
func TestBusRecentWindow(t *testing.T) {
	bus := NewBus(3)
	defer bus.Close()

	for _, issue := range []string{"a", "b", "c", "d", "e"} {
		bus.Emit(NewIssueDetectedEvent(issue, ""))
	}

	recent := bus.Recent()
	if len(recent) != 3 {
		t.Fatalf("Recent() returned %d events, want 3", len(recent))
	}
	for i, want := range []string{"c", "d", "e"} {
		if recent[i].Issue != want {
			t.Errorf("Recent()[%d].Issue = %q, want %q", i, recent[i].Issue, want)
		}
	}

	bus.SeedRecent([]GuardianEvent{
		NewIssueDetectedEvent("x", ""),
		NewIssueDetectedEvent("y", ""),
	})
	recent = bus.Recent()
	if len(recent) != 2 || recent[0].Issue != "x" || recent[1].Issue != "y" {
		t.Errorf("seeded Recent() = %v", recent)
	}
}
