package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"notetube/internal/domain"
	"notetube/internal/jobs"
	"notetube/internal/pipeline"
	"notetube/internal/render"
	"notetube/internal/session"
)

// fakeSession allows injecting session behavior per test.
type fakeSession struct {
	started []string
	start   func(rawURL string) (domain.Run, error)
	cancel  func() error
	current domain.Run
	events  []jobs.Event
	result  *pipeline.Result
}

func (s *fakeSession) Start(rawURL string) (domain.Run, error) {
	s.started = append(s.started, rawURL)
	if s.start != nil {
		return s.start(rawURL)
	}
	return domain.Run{ID: "run-1", URL: rawURL, State: domain.RunStateIdentifyingVideo}, nil
}

func (s *fakeSession) Cancel() error {
	if s.cancel != nil {
		return s.cancel()
	}
	return nil
}

func (s *fakeSession) Current() domain.Run { return s.current }

func (s *fakeSession) Events(sinceSeq int64) []jobs.Event {
	var out []jobs.Event
	for _, event := range s.events {
		if event.Seq > sinceSeq {
			out = append(out, event)
		}
	}
	return out
}

func (s *fakeSession) Result() (pipeline.Result, bool) {
	if s.result == nil {
		return pipeline.Result{}, false
	}
	return *s.result, true
}

func (s *fakeSession) Artifact(kind pipeline.ArtifactKind, format render.Format) (pipeline.Artifact, error) {
	if s.result == nil {
		return pipeline.Artifact{}, session.ErrNoResult
	}
	return pipeline.RenderArtifact(*s.result, kind, format)
}

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Errors  []string        `json:"errors"`
}

func doRequest(t *testing.T, s *fakeSession, method, target, body string) (*http.Response, envelope) {
	t.Helper()
	app := New(Deps{
		Session: s,
		Diagnostics: func() domain.DiagnosticReport {
			return domain.DiagnosticReport{Items: []domain.DiagnosticItem{{ID: "tool_ytdlp", Status: domain.DiagnosticStatusPass}}}
		},
	})

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}

	var env envelope
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
			t.Fatalf("decode body: %v", err)
		}
	}
	return resp, env
}

// TestHealth checks the liveness route.
func TestHealth(t *testing.T) {
	resp, env := doRequest(t, &fakeSession{}, http.MethodGet, "/health", "")
	if resp.StatusCode != http.StatusOK || env.Status != "ok" {
		t.Fatalf("status = %d %q", resp.StatusCode, env.Status)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Fatal("expected request id header")
	}
}

// TestStartRunAccepted checks a valid URL starts a run.
func TestStartRunAccepted(t *testing.T) {
	s := &fakeSession{}
	resp, env := doRequest(t, s, http.MethodPost, "/api/v1/runs", `{"url":" https://youtu.be/dQw4w9WgXcQ "}`)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}

	var run domain.Run
	if err := json.Unmarshal(env.Data, &run); err != nil {
		t.Fatalf("decode run: %v", err)
	}
	if run.ID != "run-1" || run.State != domain.RunStateIdentifyingVideo {
		t.Fatalf("run = %+v", run)
	}
	if len(s.started) != 1 || s.started[0] != "https://youtu.be/dQw4w9WgXcQ" {
		t.Fatalf("started = %v", s.started)
	}
}

// TestStartRunValidation rejects missing URLs before the session sees them.
func TestStartRunValidation(t *testing.T) {
	s := &fakeSession{}
	resp, env := doRequest(t, s, http.MethodPost, "/api/v1/runs", `{"url":""}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	if len(env.Errors) == 0 {
		t.Fatal("expected validation messages")
	}
	if len(s.started) != 0 {
		t.Fatalf("session started %d runs, want 0", len(s.started))
	}
}

// TestStartRunConflict maps the single-run guard to 409.
func TestStartRunConflict(t *testing.T) {
	s := &fakeSession{start: func(string) (domain.Run, error) {
		return domain.Run{}, jobs.ErrRunAlreadyActive
	}}
	resp, _ := doRequest(t, s, http.MethodPost, "/api/v1/runs", `{"url":"https://youtu.be/dQw4w9WgXcQ"}`)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want 409", resp.StatusCode)
	}
}

// TestCurrentRunIncludesPartialTranscript exposes texts of failed runs.
func TestCurrentRunIncludesPartialTranscript(t *testing.T) {
	s := &fakeSession{
		current: domain.Run{ID: "run-1", State: domain.RunStateError, ErrorKind: domain.ErrorKindSummarizationDegraded},
		result: &pipeline.Result{
			RunID:      "run-1",
			Transcript: "hello world",
			Err:        &pipeline.StageError{Stage: domain.RunStateSummarizing, Kind: domain.ErrorKindSummarizationDegraded},
		},
	}
	resp, env := doRequest(t, s, http.MethodGet, "/api/v1/runs/current", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var got RunResponse
	if err := json.Unmarshal(env.Data, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Transcript != "hello world" || got.Notes != "" {
		t.Fatalf("texts = %q / %q", got.Transcript, got.Notes)
	}
	if got.Error == nil || got.Error.Kind != domain.ErrorKindSummarizationDegraded {
		t.Fatalf("error = %+v", got.Error)
	}
}

// TestCancelWithoutRun maps the idle cancel to 409.
func TestCancelWithoutRun(t *testing.T) {
	s := &fakeSession{cancel: func() error { return jobs.ErrNoActiveRun }}
	resp, _ := doRequest(t, s, http.MethodDelete, "/api/v1/runs/current", "")
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want 409", resp.StatusCode)
	}
}

// TestEventsSince returns only newer events.
func TestEventsSince(t *testing.T) {
	s := &fakeSession{events: []jobs.Event{
		{Seq: 1, Type: jobs.EventTypeState, State: domain.RunStateIdentifyingVideo},
		{Seq: 2, Type: jobs.EventTypeState, State: domain.RunStateFetchingAudio},
	}}
	_, env := doRequest(t, s, http.MethodGet, "/api/v1/events?since=1", "")

	var events []jobs.Event
	if err := json.Unmarshal(env.Data, &events); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(events) != 1 || events[0].State != domain.RunStateFetchingAudio {
		t.Fatalf("events = %+v", events)
	}

	_, env = doRequest(t, s, http.MethodGet, "/api/v1/events?since=5", "")
	if string(env.Data) != "[]" {
		t.Fatalf("data = %s, want []", env.Data)
	}
}

// TestArtifactDownload checks attachment headers and body.
func TestArtifactDownload(t *testing.T) {
	s := &fakeSession{result: &pipeline.Result{RunID: "run-1", Transcript: "hello world", Notes: "- hello"}}
	resp, _ := doRequest(t, s, http.MethodGet, "/api/v1/artifacts/notes?format=txt", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if got := resp.Header.Get("Content-Type"); got != "application/octet-stream" {
		t.Fatalf("content type = %q", got)
	}
	if got := resp.Header.Get("Content-Disposition"); got != `attachment; filename="organized_notes.txt"` {
		t.Fatalf("content disposition = %q", got)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "- hello" {
		t.Fatalf("body = %q", body)
	}
}

// TestArtifactErrors maps missing results and bad parameters.
func TestArtifactErrors(t *testing.T) {
	cases := []struct {
		name   string
		result *pipeline.Result
		target string
		want   int
	}{
		{"no result", nil, "/api/v1/artifacts/notes", http.StatusNotFound},
		{"unknown kind", nil, "/api/v1/artifacts/video", http.StatusNotFound},
		{"bad format", nil, "/api/v1/artifacts/notes?format=rtf", http.StatusBadRequest},
		{"unsupported character", &pipeline.Result{Transcript: "日本語", Notes: "x"}, "/api/v1/artifacts/transcript?format=pdf", http.StatusUnprocessableEntity},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, _ := doRequest(t, &fakeSession{result: tc.result}, http.MethodGet, tc.target, "")
			if resp.StatusCode != tc.want {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tc.want)
			}
		})
	}
}

// TestDiagnostics returns the report.
func TestDiagnostics(t *testing.T) {
	resp, env := doRequest(t, &fakeSession{}, http.MethodGet, "/api/v1/diagnostics", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var report domain.DiagnosticReport
	if err := json.Unmarshal(env.Data, &report); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(report.Items) != 1 {
		t.Fatalf("items = %+v", report.Items)
	}
}
