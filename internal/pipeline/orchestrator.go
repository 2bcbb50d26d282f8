// Package pipeline sequences video resolution, audio download,
// transcription and summarization for one run.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"notetube/internal/command"
	"notetube/internal/domain"
	"notetube/internal/logging"
	"notetube/internal/summarize"
	"notetube/internal/transcribe"
	"notetube/internal/youtube"
)

// AudioFetcher downloads audio for a validated video reference.
type AudioFetcher interface {
	Fetch(ctx context.Context, ref youtube.VideoReference, onLog func(command.Log)) (youtube.AudioResource, error)
}

// Summarizer condenses a transcript into notes.
type Summarizer interface {
	Summarize(ctx context.Context, text string, maxLen, minLen int) summarize.Outcome
}

// Hooks receive progress of one run. All are optional.
type Hooks struct {
	OnStage func(state domain.RunState)
	OnVideo func(ref youtube.VideoReference)
	OnLog   func(log command.Log)
}

// Result is the outcome of one run. When Err is set, Transcript may still
// hold the text produced before the failure for display.
type Result struct {
	RunID      string                 `json:"runId"`
	Video      youtube.VideoReference `json:"video"`
	Provider   string                 `json:"provider"`
	Transcript string                 `json:"transcript"`
	Notes      string                 `json:"notes"`
	Err        *StageError            `json:"error,omitempty"`
}

// Ready reports whether the run completed with both texts.
func (r Result) Ready() bool {
	return r.Err == nil && r.Transcript != "" && r.Notes != ""
}

// State is the terminal state the run ended in.
func (r Result) State() domain.RunState {
	if r.Ready() {
		return domain.RunStateReady
	}
	return domain.RunStateError
}

// Orchestrator runs the stages in order and owns audio cleanup.
type Orchestrator struct {
	fetcher     AudioFetcher
	transcriber transcribe.Provider
	summarizer  Summarizer
	maxLen      int
	minLen      int
	runTimeout  time.Duration
	logger      logrus.FieldLogger
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithSummaryBounds sets the word bounds passed to the summarizer.
func WithSummaryBounds(maxLen, minLen int) Option {
	return func(o *Orchestrator) {
		o.maxLen = maxLen
		o.minLen = minLen
	}
}

// WithRunTimeout bounds the whole run.
func WithRunTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		o.runTimeout = d
	}
}

// WithLogger sets the logger used for stage logs.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(o *Orchestrator) {
		o.logger = logging.OrDiscard(logger)
	}
}

// New wires the three stage components into an orchestrator.
func New(fetcher AudioFetcher, transcriber transcribe.Provider, summarizer Summarizer, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		fetcher:     fetcher,
		transcriber: transcriber,
		summarizer:  summarizer,
		maxLen:      summarize.DefaultMaxLength,
		minLen:      summarize.DefaultMinLength,
		logger:      logging.Discard(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Provider returns the name of the configured transcription provider.
func (o *Orchestrator) Provider() string {
	return o.transcriber.Name()
}

// Run executes one full pipeline run for rawURL. It never panics on stage
// failures; the returned Result carries either both texts or an error.
func (o *Orchestrator) Run(ctx context.Context, runID, rawURL string, hooks Hooks) Result {
	if o.runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.runTimeout)
		defer cancel()
	}

	result := Result{RunID: runID, Provider: o.transcriber.Name()}
	log := o.logger.WithFields(logrus.Fields{"run_id": runID, "provider": result.Provider})

	fail := func(stage domain.RunState, err error) Result {
		result.Err = newStageError(stage, err)
		log.WithFields(logrus.Fields{
			"stage": stage,
			"kind":  result.Err.Kind,
		}).WithError(err).Warn("run failed")
		emitStage(hooks.OnStage, domain.RunStateError)
		return result
	}

	emitStage(hooks.OnStage, domain.RunStateIdentifyingVideo)
	ref, err := youtube.NewVideoReference(rawURL)
	if err != nil {
		return fail(domain.RunStateIdentifyingVideo, err)
	}
	result.Video = ref
	log = log.WithField("video_id", ref.ID)
	if hooks.OnVideo != nil {
		hooks.OnVideo(ref)
	}

	if err := ctx.Err(); err != nil {
		return fail(domain.RunStateIdentifyingVideo, err)
	}

	emitStage(hooks.OnStage, domain.RunStateFetchingAudio)
	log.Info("downloading audio")
	audio, err := o.fetcher.Fetch(ctx, ref, hooks.OnLog)
	if err != nil {
		return fail(domain.RunStateFetchingAudio, err)
	}
	defer func() {
		if err := audio.Release(); err != nil {
			log.WithError(err).Warn("release audio")
		}
	}()

	emitStage(hooks.OnStage, domain.RunStateTranscribing)
	log.Info("transcribing audio")
	out, err := o.transcriber.Transcribe(ctx, transcribe.Request{Audio: audio, OnLog: hooks.OnLog})
	if err != nil {
		return fail(domain.RunStateTranscribing, err)
	}
	transcript := strings.TrimSpace(out.Transcript)
	if transcript == "" {
		return fail(domain.RunStateTranscribing, fmt.Errorf("%w: empty transcript", domain.ErrTranscriptionFailed))
	}
	result.Transcript = transcript

	emitStage(hooks.OnStage, domain.RunStateSummarizing)
	if summary := strings.TrimSpace(out.Summary); summary != "" {
		log.Info("using provider summary")
		result.Notes = summary
	} else {
		log.Info("summarizing transcript")
		outcome := o.summarizer.Summarize(ctx, transcript, o.maxLen, o.minLen)
		if outcome.Status != summarize.StatusOK {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return fail(domain.RunStateSummarizing, errors.Join(ctxErr, outcome.Err()))
			}
			return fail(domain.RunStateSummarizing, outcome.Err())
		}
		result.Notes = outcome.Text
	}

	emitStage(hooks.OnStage, domain.RunStateReady)
	log.Info("run ready")
	return result
}

// emitStage forwards stage updates when callback is configured.
func emitStage(cb func(state domain.RunState), state domain.RunState) {
	if cb != nil {
		cb(state)
	}
}
