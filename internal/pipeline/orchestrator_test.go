package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"notetube/internal/command"
	"notetube/internal/domain"
	"notetube/internal/render"
	"notetube/internal/retry"
	"notetube/internal/summarize"
	"notetube/internal/transcribe"
	"notetube/internal/youtube"
)

const testURL = "https://www.youtube.com/watch?v=dQw4w9WgXcQ"

// fakeRunner stands in for yt-dlp and writes an audio file.
type fakeRunner struct {
	run func(ctx context.Context, name string, args ...string) (command.Result, error)
}

// Run delegates to injected behavior.
func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) (command.Result, error) {
	return f.run(ctx, name, args...)
}

// fakeProvider returns injected transcription output.
type fakeProvider struct {
	calls      int
	transcribe func(ctx context.Context, req transcribe.Request) (transcribe.Output, error)
}

// Name identifies the fake.
func (p *fakeProvider) Name() string { return "fake" }

// Transcribe delegates to injected behavior.
func (p *fakeProvider) Transcribe(ctx context.Context, req transcribe.Request) (transcribe.Output, error) {
	p.calls++
	if _, err := os.Stat(req.Audio.Path); err != nil {
		return transcribe.Output{}, fmt.Errorf("%w: %v", domain.ErrFileNotFound, err)
	}
	if p.transcribe == nil {
		return transcribe.Output{Transcript: "hello world"}, nil
	}
	return p.transcribe(ctx, req)
}

// fakeSummarizer returns an injected outcome.
type fakeSummarizer struct {
	calls   int
	outcome summarize.Outcome
}

// Summarize records the call.
func (s *fakeSummarizer) Summarize(ctx context.Context, text string, maxLen, minLen int) summarize.Outcome {
	s.calls++
	return s.outcome
}

type harness struct {
	fetchCalls int
	released   []string
	fetcher    *youtube.Fetcher
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{}
	runner := &fakeRunner{run: func(ctx context.Context, name string, args ...string) (command.Result, error) {
		h.fetchCalls++
		if err := ctx.Err(); err != nil {
			return command.Result{ExitCode: -1}, err
		}
		dir := ""
		for i, arg := range args {
			if arg == "-o" {
				dir = filepath.Dir(args[i+1])
			}
		}
		path := filepath.Join(dir, "audio.m4a")
		if err := os.WriteFile(path, []byte("audio"), 0o644); err != nil {
			t.Fatalf("write audio: %v", err)
		}
		return command.Result{Stdout: path}, nil
	}}
	h.fetcher = youtube.NewFetcherForTests("yt-dlp", t.TempDir(), runner, retry.NoRetry(), func(path string) error {
		h.released = append(h.released, path)
		return os.RemoveAll(path)
	})
	return h
}

type stageRecorder struct {
	mu     sync.Mutex
	stages []domain.RunState
}

func (r *stageRecorder) hooks() Hooks {
	return Hooks{OnStage: func(state domain.RunState) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.stages = append(r.stages, state)
	}}
}

func assertStages(t *testing.T, got []domain.RunState, want ...domain.RunState) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("stages = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("stages = %v, want %v", got, want)
		}
	}
}

// TestRunHappyPath checks stage order, texts and audio release.
func TestRunHappyPath(t *testing.T) {
	h := newHarness(t)
	summarizer := &fakeSummarizer{outcome: summarize.Outcome{Status: summarize.StatusOK, Text: "- hello"}}
	recorder := &stageRecorder{}

	result := New(h.fetcher, &fakeProvider{}, summarizer).Run(context.Background(), "run-1", testURL, recorder.hooks())

	if !result.Ready() {
		t.Fatalf("result not ready: %+v", result.Err)
	}
	if result.Transcript != "hello world" || result.Notes != "- hello" {
		t.Fatalf("result = %+v", result)
	}
	if result.Video.ID != "dQw4w9WgXcQ" || result.RunID != "run-1" {
		t.Fatalf("result identity = %+v", result)
	}
	assertStages(t, recorder.stages,
		domain.RunStateIdentifyingVideo,
		domain.RunStateFetchingAudio,
		domain.RunStateTranscribing,
		domain.RunStateSummarizing,
		domain.RunStateReady,
	)
	if len(h.released) != 1 {
		t.Fatalf("audio released %d times, want 1", len(h.released))
	}
}

// TestRunInvalidReferenceSkipsDownload checks malformed URLs stop early.
func TestRunInvalidReferenceSkipsDownload(t *testing.T) {
	h := newHarness(t)
	recorder := &stageRecorder{}

	result := New(h.fetcher, &fakeProvider{}, &fakeSummarizer{}).Run(context.Background(), "run-1", "https://example.com/nope", recorder.hooks())

	if result.Err == nil || result.Err.Kind != domain.ErrorKindInvalidReference {
		t.Fatalf("err = %+v, want invalid_reference", result.Err)
	}
	if h.fetchCalls != 0 {
		t.Fatalf("fetch calls = %d, want 0", h.fetchCalls)
	}
	assertStages(t, recorder.stages, domain.RunStateIdentifyingVideo, domain.RunStateError)
}

// TestRunUsesProviderSummary checks the local summarizer is skipped.
func TestRunUsesProviderSummary(t *testing.T) {
	h := newHarness(t)
	provider := &fakeProvider{transcribe: func(ctx context.Context, req transcribe.Request) (transcribe.Output, error) {
		return transcribe.Output{Transcript: "full text", Summary: "- remote bullet"}, nil
	}}
	summarizer := &fakeSummarizer{}
	recorder := &stageRecorder{}

	result := New(h.fetcher, provider, summarizer).Run(context.Background(), "run-1", testURL, recorder.hooks())

	if result.Notes != "- remote bullet" {
		t.Fatalf("notes = %q", result.Notes)
	}
	if summarizer.calls != 0 {
		t.Fatalf("summarizer calls = %d, want 0", summarizer.calls)
	}
	if recorder.stages[3] != domain.RunStateSummarizing {
		t.Fatalf("stages = %v, want summarizing before ready", recorder.stages)
	}
}

// TestRunTranscriptionFailureSkipsSummary checks failed jobs end the run.
func TestRunTranscriptionFailureSkipsSummary(t *testing.T) {
	h := newHarness(t)
	provider := &fakeProvider{transcribe: func(ctx context.Context, req transcribe.Request) (transcribe.Output, error) {
		return transcribe.Output{}, fmt.Errorf("%w: Audio duration is too short.", domain.ErrTranscriptionFailed)
	}}
	summarizer := &fakeSummarizer{}

	result := New(h.fetcher, provider, summarizer).Run(context.Background(), "run-1", testURL, Hooks{})

	if result.Err == nil || result.Err.Kind != domain.ErrorKindTranscriptionFailed {
		t.Fatalf("err = %+v, want transcription_failed", result.Err)
	}
	if result.Err.Stage != domain.RunStateTranscribing {
		t.Fatalf("stage = %s, want transcribing", result.Err.Stage)
	}
	if summarizer.calls != 0 {
		t.Fatalf("summarizer calls = %d, want 0", summarizer.calls)
	}
	if len(h.released) != 1 {
		t.Fatalf("audio released %d times, want 1", len(h.released))
	}
}

// TestRunDegradedSummaryKeepsTranscript checks partial results stay visible.
func TestRunDegradedSummaryKeepsTranscript(t *testing.T) {
	h := newHarness(t)
	summarizer := &fakeSummarizer{outcome: summarize.Outcome{Status: summarize.StatusDegraded, Reason: "no text"}}

	result := New(h.fetcher, &fakeProvider{}, summarizer).Run(context.Background(), "run-1", testURL, Hooks{})

	if result.Ready() {
		t.Fatal("degraded summary must not be ready")
	}
	if result.Err.Kind != domain.ErrorKindSummarizationDegraded {
		t.Fatalf("kind = %s, want summarization_degraded", result.Err.Kind)
	}
	if result.Transcript != "hello world" {
		t.Fatalf("transcript = %q, want preserved", result.Transcript)
	}
	if result.Notes != "" {
		t.Fatalf("notes = %q, want empty", result.Notes)
	}
}

// TestRunTimeoutKind checks remote wait timeouts are classified.
func TestRunTimeoutKind(t *testing.T) {
	h := newHarness(t)
	provider := &fakeProvider{transcribe: func(ctx context.Context, req transcribe.Request) (transcribe.Output, error) {
		return transcribe.Output{}, fmt.Errorf("%w: transcript x still processing", domain.ErrTimeout)
	}}

	result := New(h.fetcher, provider, &fakeSummarizer{}).Run(context.Background(), "run-1", testURL, Hooks{})
	if result.Err == nil || result.Err.Kind != domain.ErrorKindTimeout {
		t.Fatalf("err = %+v, want timeout", result.Err)
	}
}

// TestRunCancelled checks cancellation mid-transcription.
func TestRunCancelled(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	provider := &fakeProvider{transcribe: func(ctx context.Context, req transcribe.Request) (transcribe.Output, error) {
		cancel()
		<-ctx.Done()
		return transcribe.Output{}, ctx.Err()
	}}

	result := New(h.fetcher, provider, &fakeSummarizer{}).Run(ctx, "run-1", testURL, Hooks{})
	if result.Err == nil || result.Err.Kind != domain.ErrorKindCancelled {
		t.Fatalf("err = %+v, want cancelled", result.Err)
	}
	if len(h.released) != 1 {
		t.Fatalf("audio released %d times, want 1", len(h.released))
	}
}

// TestRunTimeoutOption bounds the whole run.
func TestRunTimeoutOption(t *testing.T) {
	h := newHarness(t)
	provider := &fakeProvider{transcribe: func(ctx context.Context, req transcribe.Request) (transcribe.Output, error) {
		<-ctx.Done()
		return transcribe.Output{}, ctx.Err()
	}}

	result := New(h.fetcher, provider, &fakeSummarizer{}, WithRunTimeout(100*time.Millisecond)).
		Run(context.Background(), "run-1", testURL, Hooks{})
	if result.Err == nil || result.Err.Kind != domain.ErrorKindTimeout {
		t.Fatalf("err = %+v, want timeout", result.Err)
	}
}

// TestStageErrorCarriesCommandLog checks failing commands reach the result.
func TestStageErrorCarriesCommandLog(t *testing.T) {
	runner := &fakeRunner{run: func(ctx context.Context, name string, args ...string) (command.Result, error) {
		return command.Result{Stderr: "ERROR: Video unavailable", ExitCode: 1}, errors.New("exit status 1")
	}}
	fetcher := youtube.NewFetcherForTests("yt-dlp", t.TempDir(), runner, retry.NoRetry(), os.RemoveAll)

	result := New(fetcher, &fakeProvider{}, &fakeSummarizer{}).Run(context.Background(), "run-1", testURL, Hooks{})
	if result.Err == nil || result.Err.Kind != domain.ErrorKindDownloadFailed {
		t.Fatalf("err = %+v, want download_failed", result.Err)
	}
	if result.Err.CommandLog.Command != "yt-dlp" || result.Err.CommandLog.ExitCode != 1 {
		t.Fatalf("command log = %+v", result.Err.CommandLog)
	}
}

// TestRenderArtifacts checks both documents are named by format.
func TestRenderArtifacts(t *testing.T) {
	result := Result{Transcript: "hello world", Notes: "- hello"}

	artifacts, err := RenderArtifacts(result, render.FormatWord)
	if err != nil {
		t.Fatalf("RenderArtifacts() error = %v", err)
	}
	if len(artifacts) != 2 {
		t.Fatalf("artifacts = %d, want 2", len(artifacts))
	}
	if artifacts[0].Name != "transcript.docx" || artifacts[1].Name != "organized_notes.docx" {
		t.Fatalf("names = %q, %q", artifacts[0].Name, artifacts[1].Name)
	}
	if artifacts[0].ContentType != "application/octet-stream" {
		t.Fatalf("content type = %q", artifacts[0].ContentType)
	}
}

// TestRenderArtifactPartialResult allows the transcript of a failed run.
func TestRenderArtifactPartialResult(t *testing.T) {
	result := Result{Transcript: "hello", Err: &StageError{Kind: domain.ErrorKindSummarizationDegraded}}

	if _, err := RenderArtifacts(result, render.FormatTXT); !errors.Is(err, ErrArtifactUnavailable) {
		t.Fatalf("RenderArtifacts() error = %v, want ErrArtifactUnavailable", err)
	}
	artifact, err := RenderArtifact(result, ArtifactTranscript, render.FormatTXT)
	if err != nil {
		t.Fatalf("RenderArtifact() error = %v", err)
	}
	if string(artifact.Data) != "hello" {
		t.Fatalf("data = %q", artifact.Data)
	}
	if _, err := RenderArtifact(result, ArtifactNotes, render.FormatTXT); !errors.Is(err, ErrArtifactUnavailable) {
		t.Fatalf("notes error = %v, want ErrArtifactUnavailable", err)
	}
}

// TestClassify maps sentinel chains to kinds.
func TestClassify(t *testing.T) {
	cases := map[error]domain.ErrorKind{
		fmt.Errorf("x: %w", domain.ErrInvalidReference):     domain.ErrorKindInvalidReference,
		fmt.Errorf("x: %w", domain.ErrFileNotFound):         domain.ErrorKindFileNotFound,
		fmt.Errorf("x: %w", domain.ErrUnsupportedCharacter): domain.ErrorKindUnsupportedCharacter,
		fmt.Errorf("x: %w", context.Canceled):               domain.ErrorKindCancelled,
		errors.New("boom"):                                  domain.ErrorKindInternal,
	}
	for err, want := range cases {
		if got := Classify(err); got != want {
			t.Fatalf("Classify(%v) = %s, want %s", err, got, want)
		}
	}
}
