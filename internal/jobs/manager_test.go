package jobs

import (
	"testing"

	"notetube/internal/domain"
)

// TestManagerLifecycle verifies normal progression to ready state.
func TestManagerLifecycle(t *testing.T) {
	m := NewManager()
	if m.IsActive() {
		t.Fatal("new manager should be idle")
	}

	if err := m.Start("run-1", "https://youtu.be/dQw4w9WgXcQ"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if !m.IsActive() {
		t.Fatal("expected active after start")
	}
	m.SetVideo("run-1", "dQw4w9WgXcQ")

	for _, state := range []domain.RunState{
		domain.RunStateFetchingAudio,
		domain.RunStateTranscribing,
		domain.RunStateSummarizing,
		domain.RunStateReady,
	} {
		if err := m.Transition("run-1", state); err != nil {
			t.Fatalf("transition to %s: %v", state, err)
		}
	}

	current := m.Current()
	if current.State != domain.RunStateReady {
		t.Fatalf("current state = %s, want ready", current.State)
	}
	if current.VideoID != "dQw4w9WgXcQ" {
		t.Fatalf("video id = %q", current.VideoID)
	}
	if m.IsActive() {
		t.Fatal("ready run should not be active")
	}
}

// TestManagerRejectsInvalidTransition checks stages cannot be skipped.
func TestManagerRejectsInvalidTransition(t *testing.T) {
	m := NewManager()
	if err := m.Start("run-1", "u"); err != nil {
		t.Fatalf("start: %v", err)
	}

	if err := m.Transition("run-1", domain.RunStateReady); err == nil {
		t.Fatal("expected invalid transition error")
	}
	if err := m.Transition("run-1", domain.RunStateTranscribing); err == nil {
		t.Fatal("expected invalid transition error")
	}
}

// TestManagerRejectsSecondStart keeps a single active run.
func TestManagerRejectsSecondStart(t *testing.T) {
	m := NewManager()
	if err := m.Start("run-1", "u"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := m.Start("run-2", "u"); err != ErrRunAlreadyActive {
		t.Fatalf("second start error = %v, want %v", err, ErrRunAlreadyActive)
	}

	if err := m.Fail("run-1", domain.ErrorKindDownloadFailed, "boom"); err != nil {
		t.Fatalf("fail: %v", err)
	}
	if err := m.Start("run-2", "u"); err != nil {
		t.Fatalf("restart after error: %v", err)
	}
	if got := m.Current(); got.ID != "run-2" || got.ErrorKind != "" {
		t.Fatalf("current = %+v, want fresh run-2", got)
	}
}

// TestManagerCancel verifies cancel behavior and repeated cancel handling.
func TestManagerCancel(t *testing.T) {
	m := NewManager()
	if err := m.Start("run-1", "u"); err != nil {
		t.Fatalf("start: %v", err)
	}

	if err := m.Cancel("run-1"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	current := m.Current()
	if current.State != domain.RunStateError || current.ErrorKind != domain.ErrorKindCancelled {
		t.Fatalf("run = %+v, want cancelled error", current)
	}

	if err := m.Cancel("run-1"); err != ErrNoActiveRun {
		t.Fatalf("second cancel error = %v, want %v", err, ErrNoActiveRun)
	}
	if err := m.Fail("run-1", domain.ErrorKindInternal, "late"); err != ErrNoActiveRun {
		t.Fatalf("fail after cancel error = %v, want %v", err, ErrNoActiveRun)
	}
}

// TestManagerIgnoresStaleRun keeps a finished run from touching its successor.
func TestManagerIgnoresStaleRun(t *testing.T) {
	m := NewManager()
	if err := m.Start("run-1", "u"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := m.Cancel("run-1"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if err := m.Start("run-2", "u"); err != nil {
		t.Fatalf("start run-2: %v", err)
	}

	if err := m.Fail("run-1", domain.ErrorKindCancelled, "late"); err != ErrStaleRun {
		t.Fatalf("stale fail error = %v, want %v", err, ErrStaleRun)
	}
	if err := m.Transition("run-1", domain.RunStateFetchingAudio); err != ErrStaleRun {
		t.Fatalf("stale transition error = %v, want %v", err, ErrStaleRun)
	}
	if err := m.Cancel("run-1"); err != ErrStaleRun {
		t.Fatalf("stale cancel error = %v, want %v", err, ErrStaleRun)
	}
	m.SetVideo("run-1", "AAAAAAAAAAA")

	current := m.Current()
	if current.ID != "run-2" || current.State != domain.RunStateIdentifyingVideo || current.ErrorKind != "" || current.VideoID != "" {
		t.Fatalf("current = %+v, want untouched run-2", current)
	}
}
