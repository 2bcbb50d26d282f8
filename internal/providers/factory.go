// Package providers selects the transcription strategy from settings.
package providers

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"notetube/internal/domain"
	"notetube/internal/providers/assemblyai"
	"notetube/internal/transcribe"
)

// New builds the transcription provider named by settings.Provider.
func New(settings domain.Settings, logger logrus.FieldLogger) (transcribe.Provider, error) {
	switch settings.Provider {
	case domain.ProviderLocal, "":
		return transcribe.NewWhisper(transcribe.WhisperConfig{
			FFmpegPath:  settings.Tools.FFmpeg,
			WhisperPath: settings.Tools.Whisper,
			ModelPath:   settings.ModelPath,
			Language:    settings.Language,
			WorkDir:     settings.WorkDir,
		}, logger), nil
	case domain.ProviderRemote:
		provider, err := assemblyai.NewProvider(assemblyai.Config{
			APIKey:       settings.Remote.APIKey,
			BaseURL:      settings.Remote.BaseURL,
			PollInterval: time.Duration(settings.Remote.PollIntervalSeconds) * time.Second,
			MaxWait:      time.Duration(settings.Remote.MaxWaitMinutes) * time.Minute,
			Summarize:    true,
			SummaryModel: settings.Remote.SummaryModel,
			SummaryType:  settings.Remote.SummaryType,
		}, logger)
		if err != nil {
			return nil, err
		}
		return provider, nil
	default:
		return nil, fmt.Errorf("unknown transcription provider: %q", settings.Provider)
	}
}
