package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"notetube/internal/domain"
)

// ErrMissingAPIKey is returned when the remote provider has no key.
var ErrMissingAPIKey = errors.New(APIKeyEnv + " is not set")

var validate = validator.New()

// Validate checks settings before a pipeline is built from them.
func Validate(settings domain.Settings) error {
	if err := validate.Struct(settings); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			msgs := make([]string, 0, len(fieldErrs))
			for _, fe := range fieldErrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid settings: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid settings: %w", err)
	}

	if settings.Provider == domain.ProviderRemote && strings.TrimSpace(settings.Remote.APIKey) == "" {
		return ErrMissingAPIKey
	}
	return nil
}

// Normalize trims user inputs and fills empty fields from defaults.
func Normalize(settings domain.Settings) domain.Settings {
	defaults := DefaultSettings()

	settings.Provider = strings.ToLower(strings.TrimSpace(settings.Provider))
	settings.ModelPath = strings.TrimSpace(settings.ModelPath)
	settings.OutputDir = strings.TrimSpace(settings.OutputDir)
	settings.WorkDir = strings.TrimSpace(settings.WorkDir)
	settings.Language = strings.TrimSpace(settings.Language)
	settings.Format = strings.ToLower(strings.TrimSpace(settings.Format))
	settings.Tools.Ytdlp = strings.TrimSpace(settings.Tools.Ytdlp)
	settings.Tools.FFmpeg = strings.TrimSpace(settings.Tools.FFmpeg)
	settings.Tools.Whisper = strings.TrimSpace(settings.Tools.Whisper)
	settings.Remote.BaseURL = strings.TrimRight(strings.TrimSpace(settings.Remote.BaseURL), "/")

	if settings.Provider == "" {
		settings.Provider = defaults.Provider
	}
	if settings.Language == "" {
		settings.Language = defaults.Language
	}
	if settings.Format == "" {
		settings.Format = defaults.Format
	}
	if settings.Format == "docx" {
		settings.Format = "word"
	}
	if settings.Tools.Ytdlp == "" {
		settings.Tools.Ytdlp = defaults.Tools.Ytdlp
	}
	if settings.Tools.FFmpeg == "" {
		settings.Tools.FFmpeg = defaults.Tools.FFmpeg
	}
	if settings.Tools.Whisper == "" {
		settings.Tools.Whisper = defaults.Tools.Whisper
	}
	if settings.Remote.BaseURL == "" {
		settings.Remote.BaseURL = defaults.Remote.BaseURL
	}
	return settings
}
