// Package transcribe turns downloaded audio into transcript text.
package transcribe

import (
	"context"

	"notetube/internal/command"
	"notetube/internal/youtube"
)

// Provider converts one audio resource into text. Implementations that
// also summarize return the summary in Output.Summary.
type Provider interface {
	Name() string
	Transcribe(ctx context.Context, req Request) (Output, error)
}

// Request contains input audio and execution callbacks for one run.
type Request struct {
	Audio youtube.AudioResource
	OnLog func(log command.Log)
}

// Output is the text produced by a provider.
type Output struct {
	Transcript string `json:"transcript"`
	Summary    string `json:"summary,omitempty"`
}
