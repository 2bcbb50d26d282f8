package pipeline

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"notetube/internal/domain"
	"notetube/internal/providers"
	"notetube/internal/summarize"
	"notetube/internal/youtube"
)

// DefaultRunTimeout bounds a whole run, download included.
const DefaultRunTimeout = 2 * time.Hour

// NewFromSettings builds the production orchestrator. The transcription
// provider is fixed for the lifetime of the returned value.
func NewFromSettings(settings domain.Settings, logger logrus.FieldLogger) (*Orchestrator, error) {
	provider, err := providers.New(settings, logger)
	if err != nil {
		return nil, fmt.Errorf("build transcription provider: %w", err)
	}

	var engine summarize.Engine = summarize.NewExtractive()
	if settings.Summary.Command != "" {
		engine, err = summarize.NewCommand(settings.Summary.Command, nil)
		if err != nil {
			return nil, fmt.Errorf("build summary command: %w", err)
		}
	}
	summarizer := summarize.New(engine, summarize.Options{
		Mode:          settings.Summary.Mode,
		MaxInputChars: settings.Summary.MaxInputChars,
	}, logger)

	fetcher := youtube.NewFetcher(settings.Tools.Ytdlp, settings.WorkDir, logger)

	return New(
		fetcher,
		provider,
		summarizer,
		WithSummaryBounds(settings.Summary.MaxLength, settings.Summary.MinLength),
		WithRunTimeout(DefaultRunTimeout),
		WithLogger(logger),
	), nil
}
