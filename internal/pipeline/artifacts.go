package pipeline

import (
	"errors"
	"fmt"

	"notetube/internal/render"
)

// ArtifactKind names one of the two documents a run produces.
type ArtifactKind string

const (
	ArtifactTranscript ArtifactKind = "transcript"
	ArtifactNotes      ArtifactKind = "notes"
)

// ParseArtifactKind accepts "transcript" and "notes".
func ParseArtifactKind(raw string) (ArtifactKind, error) {
	switch ArtifactKind(raw) {
	case ArtifactTranscript, ArtifactNotes:
		return ArtifactKind(raw), nil
	default:
		return "", fmt.Errorf("unknown artifact %q", raw)
	}
}

// ErrArtifactUnavailable is returned when the run produced no such text.
var ErrArtifactUnavailable = errors.New("artifact not available")

// Artifact is a rendered document ready for download.
type Artifact struct {
	Kind        ArtifactKind `json:"kind"`
	Name        string       `json:"name"`
	ContentType string       `json:"contentType"`
	Data        []byte       `json:"-"`
}

// RenderArtifact renders one document from a result. The transcript of a
// run that failed while summarizing is still available.
func RenderArtifact(result Result, kind ArtifactKind, format render.Format) (Artifact, error) {
	var content, base string
	switch kind {
	case ArtifactTranscript:
		content, base = result.Transcript, render.TranscriptName
	case ArtifactNotes:
		content, base = result.Notes, render.NotesName
	default:
		return Artifact{}, fmt.Errorf("unknown artifact %q", kind)
	}
	if content == "" {
		return Artifact{}, fmt.Errorf("%w: %s", ErrArtifactUnavailable, kind)
	}

	data, err := render.Render(render.Request{Content: content, Format: format, Name: base})
	if err != nil {
		return Artifact{}, fmt.Errorf("render %s: %w", kind, err)
	}
	return Artifact{
		Kind:        kind,
		Name:        render.FileName(base, format),
		ContentType: render.ContentType,
		Data:        data,
	}, nil
}

// RenderArtifacts renders transcript and notes of a ready result.
func RenderArtifacts(result Result, format render.Format) ([]Artifact, error) {
	if !result.Ready() {
		return nil, fmt.Errorf("%w: run is not ready", ErrArtifactUnavailable)
	}

	artifacts := make([]Artifact, 0, 2)
	for _, kind := range []ArtifactKind{ArtifactTranscript, ArtifactNotes} {
		artifact, err := RenderArtifact(result, kind, format)
		if err != nil {
			return nil, err
		}
		artifacts = append(artifacts, artifact)
	}
	return artifacts, nil
}
