// Package session owns the single active run shared by the desktop UI,
// the HTTP API and the CLI.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"notetube/internal/command"
	"notetube/internal/domain"
	"notetube/internal/jobs"
	"notetube/internal/logging"
	"notetube/internal/pipeline"
	"notetube/internal/render"
	"notetube/internal/youtube"
)

// ErrNoResult is returned when no run has finished yet.
var ErrNoResult = errors.New("no finished run")

// Runner executes one pipeline run.
type Runner interface {
	Run(ctx context.Context, runID, rawURL string, hooks pipeline.Hooks) pipeline.Result
}

// Session tracks the current run, its event history and its last result.
type Session struct {
	jobs    *jobs.Manager
	events  *jobs.EventBus
	logger  logrus.FieldLogger
	onEvent func(jobs.Event)
	newID   func() string

	mu          sync.Mutex
	runner      Runner
	activeRunID string
	cancel      context.CancelFunc
	done        chan struct{}
	result      *pipeline.Result
}

// Option customizes a Session.
type Option func(*Session)

// WithEventHook forwards every published event, e.g. to UI push channels.
func WithEventHook(fn func(jobs.Event)) Option {
	return func(s *Session) {
		s.onEvent = fn
	}
}

// WithIDGenerator replaces the run id source.
func WithIDGenerator(fn func() string) Option {
	return func(s *Session) {
		s.newID = fn
	}
}

// WithEventCapacity bounds the retained event history.
func WithEventCapacity(n int) Option {
	return func(s *Session) {
		s.events = jobs.NewEventBus(n)
	}
}

// New creates an idle session around runner.
func New(runner Runner, logger logrus.FieldLogger, opts ...Option) *Session {
	s := &Session{
		jobs:   jobs.NewManager(),
		events: jobs.NewEventBus(1000),
		logger: logging.OrDiscard(logger),
		newID:  func() string { return uuid.NewString() },
		runner: runner,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetRunner swaps the runner used by subsequent runs.
func (s *Session) SetRunner(runner Runner) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runner = runner
}

// Start begins a new run for rawURL in the background. Only one run may be
// active at a time, and a cancelled run counts as active until its pipeline
// has returned.
func (s *Session) Start(rawURL string) (domain.Run, error) {
	s.mu.Lock()
	runner := s.runner
	if runner == nil {
		s.mu.Unlock()
		return domain.Run{}, fmt.Errorf("session has no runner configured")
	}
	if running(s.done) {
		s.mu.Unlock()
		return domain.Run{}, jobs.ErrRunAlreadyActive
	}

	runID := s.newID()
	if err := s.jobs.Start(runID, rawURL); err != nil {
		s.mu.Unlock()
		return domain.Run{}, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.activeRunID = runID
	s.cancel = cancel
	s.done = done
	s.result = nil
	s.mu.Unlock()

	s.logger.WithFields(logrus.Fields{"run_id": runID, "url": rawURL}).Info("run started")
	s.publishState(runID, domain.RunStateIdentifyingVideo, "Run started")

	go s.run(ctx, runner, runID, rawURL, done)
	return s.jobs.Current(), nil
}

// Cancel stops the active run. The pipeline observes cancellation at its
// next blocking point.
func (s *Session) Cancel() error {
	s.mu.Lock()
	cancel := s.cancel
	activeRunID := s.activeRunID
	s.mu.Unlock()

	if cancel == nil {
		return jobs.ErrNoActiveRun
	}

	cancel()
	if err := s.jobs.Cancel(activeRunID); err != nil && !errors.Is(err, jobs.ErrNoActiveRun) {
		return err
	}

	if activeRunID != "" {
		s.publishEvent(jobs.Event{
			RunID:     activeRunID,
			Type:      jobs.EventTypeState,
			State:     domain.RunStateError,
			ErrorKind: domain.ErrorKindCancelled,
			Message:   "Cancellation requested",
		})
	}
	return nil
}

// Current returns the current run snapshot.
func (s *Session) Current() domain.Run {
	return s.jobs.Current()
}

// Events returns all events with sequence greater than sinceSeq.
func (s *Session) Events(sinceSeq int64) []jobs.Event {
	return s.events.Since(sinceSeq)
}

// Result returns the outcome of the last finished run. A failed run may
// still carry its transcript.
func (s *Session) Result() (pipeline.Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result == nil {
		return pipeline.Result{}, false
	}
	return *s.result, true
}

// Wait blocks until the latest run finishes or ctx is done.
func (s *Session) Wait(ctx context.Context) (pipeline.Result, error) {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done == nil {
		return pipeline.Result{}, ErrNoResult
	}

	select {
	case <-done:
	case <-ctx.Done():
		return pipeline.Result{}, ctx.Err()
	}

	result, ok := s.Result()
	if !ok {
		return pipeline.Result{}, ErrNoResult
	}
	return result, nil
}

// Artifact renders one document of the last finished run.
func (s *Session) Artifact(kind pipeline.ArtifactKind, format render.Format) (pipeline.Artifact, error) {
	result, ok := s.Result()
	if !ok {
		return pipeline.Artifact{}, fmt.Errorf("%w: %w", pipeline.ErrArtifactUnavailable, ErrNoResult)
	}
	return pipeline.RenderArtifact(result, kind, format)
}

// Artifacts renders both documents of the last ready run.
func (s *Session) Artifacts(format render.Format) ([]pipeline.Artifact, error) {
	result, ok := s.Result()
	if !ok {
		return nil, fmt.Errorf("%w: %w", pipeline.ErrArtifactUnavailable, ErrNoResult)
	}
	return pipeline.RenderArtifacts(result, format)
}

// run executes the pipeline and maps its outcome to run events.
func (s *Session) run(ctx context.Context, runner Runner, runID, rawURL string, done chan struct{}) {
	defer close(done)
	defer s.clearActiveRun(runID)

	hooks := pipeline.Hooks{
		OnStage: func(state domain.RunState) {
			if state == domain.RunStateIdentifyingVideo || state.Terminal() {
				return
			}
			if err := s.jobs.Transition(runID, state); err == nil {
				s.publishState(runID, state, stageMessage(state))
			}
		},
		OnVideo: func(ref youtube.VideoReference) {
			s.jobs.SetVideo(runID, ref.ID)
			s.publishEvent(jobs.Event{
				RunID:   runID,
				Type:    jobs.EventTypeState,
				State:   domain.RunStateIdentifyingVideo,
				VideoID: ref.ID,
				Message: "Video identified",
			})
		},
		OnLog: func(log command.Log) {
			s.publishLog(runID, "Command completed", log)
		},
	}

	result := runner.Run(ctx, runID, rawURL, hooks)

	s.mu.Lock()
	if s.activeRunID == runID {
		s.result = &result
	}
	s.mu.Unlock()

	entry := s.logger.WithFields(logrus.Fields{"run_id": runID, "video_id": result.Video.ID})
	if result.Err != nil {
		entry.WithField("kind", result.Err.Kind).WithError(result.Err).Warn("run failed")
		if err := s.jobs.Fail(runID, result.Err.Kind, result.Err.Message); err == nil {
			s.publishEvent(jobs.Event{
				RunID:     runID,
				Type:      jobs.EventTypeState,
				State:     domain.RunStateError,
				ErrorKind: result.Err.Kind,
				Message:   "Run failed",
			})
		}
		s.publishEvent(jobs.Event{
			RunID:     runID,
			Type:      jobs.EventTypeError,
			State:     domain.RunStateError,
			ErrorKind: result.Err.Kind,
			Message:   result.Err.Message,
		})
		if result.Err.CommandLog.Command != "" {
			s.publishLog(runID, "Failed command", result.Err.CommandLog)
		}
		return
	}

	if err := s.jobs.Transition(runID, domain.RunStateReady); err == nil {
		s.publishState(runID, domain.RunStateReady, "Notes ready")
	}
	entry.Info("run ready")
	s.publishEvent(jobs.Event{
		RunID:   runID,
		Type:    jobs.EventTypeResult,
		State:   domain.RunStateReady,
		VideoID: result.Video.ID,
		Message: "Transcript and notes ready",
	})
}

// publishState sends a normalized state event.
func (s *Session) publishState(runID string, state domain.RunState, message string) {
	s.publishEvent(jobs.Event{
		RunID:   runID,
		Type:    jobs.EventTypeState,
		State:   state,
		Message: message,
	})
}

// publishLog sends an external command log event.
func (s *Session) publishLog(runID, message string, log command.Log) {
	s.publishEvent(jobs.Event{
		RunID:    runID,
		Type:     jobs.EventTypeLog,
		Message:  message,
		Command:  log.Command,
		Args:     log.Args,
		ExitCode: log.ExitCode,
		Stdout:   log.Stdout,
		Stderr:   log.Stderr,
	})
}

// publishEvent stores event history and forwards it to the hook.
func (s *Session) publishEvent(event jobs.Event) {
	published := s.events.Publish(event)
	if s.onEvent != nil {
		s.onEvent(published)
	}
}

// clearActiveRun clears cancellation handles for finished run IDs.
func (s *Session) clearActiveRun(runID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.activeRunID == runID {
		s.activeRunID = ""
		if s.cancel != nil {
			s.cancel()
		}
		s.cancel = nil
	}
}

// running reports whether the goroutine owning done has not returned yet.
func running(done chan struct{}) bool {
	if done == nil {
		return false
	}
	select {
	case <-done:
		return false
	default:
		return true
	}
}

// stageMessage is the human-readable status line for a stage.
func stageMessage(state domain.RunState) string {
	switch state {
	case domain.RunStateFetchingAudio:
		return "Downloading audio"
	case domain.RunStateTranscribing:
		return "Transcribing audio"
	case domain.RunStateSummarizing:
		return "Summarizing transcript"
	default:
		return string(state)
	}
}
