package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"notetube/internal/domain"
)

// APIKeyEnv holds the hosted transcription service key.
const APIKeyEnv = "ASSEMBLYAI_API_KEY"

// LoadDotEnv loads KEY=VALUE pairs from the given files into the process
// environment without overriding variables that are already set. Missing
// files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return err
		}
	}
	return nil
}

// ApplyEnv overlays NOTETUBE_* variables and the API key on settings.
func ApplyEnv(settings domain.Settings) domain.Settings {
	settings.Provider = envOrDefault("NOTETUBE_PROVIDER", settings.Provider)
	settings.ModelPath = envOrDefault("NOTETUBE_MODEL_PATH", settings.ModelPath)
	settings.OutputDir = envOrDefault("NOTETUBE_OUTPUT_DIR", settings.OutputDir)
	settings.WorkDir = envOrDefault("NOTETUBE_WORK_DIR", settings.WorkDir)
	settings.Language = envOrDefault("NOTETUBE_LANGUAGE", settings.Language)
	settings.Format = envOrDefault("NOTETUBE_FORMAT", settings.Format)
	settings.LogLevel = envOrDefault("NOTETUBE_LOG_LEVEL", settings.LogLevel)

	settings.Tools.Ytdlp = envOrDefault("NOTETUBE_YTDLP", settings.Tools.Ytdlp)
	settings.Tools.FFmpeg = envOrDefault("NOTETUBE_FFMPEG", settings.Tools.FFmpeg)
	settings.Tools.Whisper = envOrDefault("NOTETUBE_WHISPER", settings.Tools.Whisper)

	settings.Remote.BaseURL = envOrDefault("NOTETUBE_REMOTE_BASE_URL", settings.Remote.BaseURL)
	settings = WithAPIKey(settings)
	settings.Remote.PollIntervalSeconds = envOrDefaultInt("NOTETUBE_POLL_INTERVAL", settings.Remote.PollIntervalSeconds)
	settings.Remote.MaxWaitMinutes = envOrDefaultInt("NOTETUBE_MAX_WAIT", settings.Remote.MaxWaitMinutes)

	settings.Summary.Mode = envOrDefault("NOTETUBE_SUMMARY_MODE", settings.Summary.Mode)
	settings.Summary.MaxLength = envOrDefaultInt("NOTETUBE_SUMMARY_MAX_LENGTH", settings.Summary.MaxLength)
	settings.Summary.MinLength = envOrDefaultInt("NOTETUBE_SUMMARY_MIN_LENGTH", settings.Summary.MinLength)
	settings.Summary.Command = envOrDefault("NOTETUBE_SUMMARY_COMMAND", settings.Summary.Command)
	return settings
}

// WithAPIKey fills the API key from the environment when one is set.
func WithAPIKey(settings domain.Settings) domain.Settings {
	settings.Remote.APIKey = envOrDefault(APIKeyEnv, settings.Remote.APIKey)
	return settings
}

func envOrDefault(key string, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envOrDefaultInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

// Load reads settings from path, or the default location when path is
// empty, then overlays .env and NOTETUBE_* variables.
func Load(path string) (domain.Settings, error) {
	if err := LoadDotEnv(); err != nil {
		return domain.Settings{}, fmt.Errorf("load .env: %w", err)
	}
	if strings.TrimSpace(path) == "" {
		path = SettingsPath()
	}
	settings, err := NewJSONStore(path).Load()
	if err != nil {
		return domain.Settings{}, fmt.Errorf("load settings: %w", err)
	}
	return Normalize(ApplyEnv(settings)), nil
}
