package jobs

import (
	"testing"

	"notetube/internal/domain"
)

// TestEventBusSince verifies incremental event reads by sequence.
func TestEventBusSince(t *testing.T) {
	bus := NewEventBus(3)
	bus.Publish(Event{Type: EventTypeState, State: domain.RunStateIdentifyingVideo})
	bus.Publish(Event{Type: EventTypeState, State: domain.RunStateFetchingAudio})
	bus.Publish(Event{Type: EventTypeState, State: domain.RunStateTranscribing})

	events := bus.Since(1)
	if len(events) != 2 {
		t.Fatalf("len = %d, want 2", len(events))
	}
	if events[0].Seq != 2 || events[1].Seq != 3 {
		t.Fatalf("unexpected seqs: %+v", events)
	}
	if events[1].State != domain.RunStateTranscribing {
		t.Fatalf("state = %s, want transcribing", events[1].State)
	}
	if bus.LastSeq() != 3 {
		t.Fatalf("last seq = %d, want 3", bus.LastSeq())
	}
}

// TestEventBusCapsHistory verifies buffer limit trimming behavior.
func TestEventBusCapsHistory(t *testing.T) {
	bus := NewEventBus(2)
	bus.Publish(Event{Message: "1"})
	bus.Publish(Event{Message: "2"})
	bus.Publish(Event{Message: "3"})

	events := bus.Since(0)
	if len(events) != 2 {
		t.Fatalf("len = %d, want 2", len(events))
	}
	if events[0].Message != "2" || events[1].Message != "3" {
		t.Fatalf("unexpected events: %+v", events)
	}
}
