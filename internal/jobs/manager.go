package jobs

import (
	"errors"
	"fmt"
	"sync"

	"notetube/internal/domain"
)

// ErrRunAlreadyActive is returned when starting a second active run.
var ErrRunAlreadyActive = errors.New("run already active")

// ErrNoActiveRun is returned when cancel is requested outside a run.
var ErrNoActiveRun = errors.New("no active run")

// ErrStaleRun is returned when a call names a run that is no longer current.
var ErrStaleRun = errors.New("run is no longer current")

// Manager tracks the single allowed active run and its transitions.
type Manager struct {
	mu      sync.RWMutex
	current domain.Run
}

// NewManager creates a manager in idle state.
func NewManager() *Manager {
	return &Manager{
		current: domain.Run{
			State: domain.RunStateIdle,
		},
	}
}

// Start creates a new run for url and moves it to identifying state.
func (m *Manager) Start(runID, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if isActive(m.current.State) {
		return ErrRunAlreadyActive
	}
	if !isValidTransition(m.current.State, domain.RunStateIdentifyingVideo) {
		return fmt.Errorf("invalid transition: %s -> %s", m.current.State, domain.RunStateIdentifyingVideo)
	}

	m.current = domain.Run{
		ID:    runID,
		URL:   url,
		State: domain.RunStateIdentifyingVideo,
	}
	return nil
}

// Transition validates and applies state transitions for run runID.
func (m *Manager) Transition(runID string, state domain.RunState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current.ID == "" {
		return fmt.Errorf("cannot transition without an active run")
	}
	if m.current.ID != runID {
		return ErrStaleRun
	}
	if state == m.current.State {
		return nil
	}
	if !isValidTransition(m.current.State, state) {
		return fmt.Errorf("invalid transition: %s -> %s", m.current.State, state)
	}

	m.current.State = state
	return nil
}

// SetVideo records the resolved video id on run runID while it is active.
func (m *Manager) SetVideo(runID, videoID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current.ID == runID && isActive(m.current.State) {
		m.current.VideoID = videoID
	}
}

// Fail moves active run runID to the error state with a categorized message.
func (m *Manager) Fail(runID string, kind domain.ErrorKind, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current.ID != runID {
		return ErrStaleRun
	}
	if !isActive(m.current.State) {
		return ErrNoActiveRun
	}
	m.current.State = domain.RunStateError
	m.current.ErrorKind = kind
	m.current.Message = message
	return nil
}

// Current returns a snapshot of the current run.
func (m *Manager) Current() domain.Run {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Reset clears run metadata and returns manager to idle.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = domain.Run{State: domain.RunStateIdle}
}

// IsActive reports whether the current state is a working stage.
func (m *Manager) IsActive() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return isActive(m.current.State)
}

// Cancel moves active run runID to the error state as cancelled.
func (m *Manager) Cancel(runID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current.ID != runID {
		return ErrStaleRun
	}
	if !isActive(m.current.State) {
		return ErrNoActiveRun
	}
	m.current.State = domain.RunStateError
	m.current.ErrorKind = domain.ErrorKindCancelled
	m.current.Message = "run cancelled"
	return nil
}

// isActive checks if a state represents active pipeline execution.
func isActive(state domain.RunState) bool {
	switch state {
	case domain.RunStateIdentifyingVideo,
		domain.RunStateFetchingAudio,
		domain.RunStateTranscribing,
		domain.RunStateSummarizing:
		return true
	default:
		return false
	}
}

// isValidTransition enforces the allowed run state machine edges.
func isValidTransition(from, to domain.RunState) bool {
	switch from {
	case domain.RunStateIdle:
		return to == domain.RunStateIdentifyingVideo
	case domain.RunStateIdentifyingVideo:
		return to == domain.RunStateFetchingAudio || to == domain.RunStateError
	case domain.RunStateFetchingAudio:
		return to == domain.RunStateTranscribing || to == domain.RunStateError
	case domain.RunStateTranscribing:
		return to == domain.RunStateSummarizing || to == domain.RunStateError
	case domain.RunStateSummarizing:
		return to == domain.RunStateReady || to == domain.RunStateError
	case domain.RunStateReady, domain.RunStateError:
		return to == domain.RunStateIdentifyingVideo || to == domain.RunStateIdle
	default:
		return false
	}
}
