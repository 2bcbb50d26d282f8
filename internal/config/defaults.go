package config

import (
	"os"
	"path/filepath"

	"notetube/internal/domain"
)

// AppDirName is the per-user directory holding settings, models and tools.
const AppDirName = ".notetube"

// HomeDir returns the per-user application directory.
func HomeDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}
	return filepath.Join(homeDir, AppDirName)
}

// SettingsPath is the default location of the settings file.
func SettingsPath() string {
	return filepath.Join(HomeDir(), "settings.json")
}

// DefaultSettings returns baseline local configuration for first launch.
func DefaultSettings() domain.Settings {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}

	return domain.Settings{
		Provider:  domain.ProviderLocal,
		ModelPath: filepath.Join(homeDir, AppDirName, "models"),
		OutputDir: filepath.Join(homeDir, "Documents", "NoteTube"),
		Language:  "auto",
		Format:    "txt",
		LogLevel:  "info",
		Tools: domain.ToolSettings{
			Ytdlp:   "yt-dlp",
			FFmpeg:  "ffmpeg",
			Whisper: "whisper.cpp",
		},
		Remote: domain.RemoteSettings{
			BaseURL:             "https://api.assemblyai.com",
			PollIntervalSeconds: 5,
			MaxWaitMinutes:      30,
			SummaryModel:        "informative",
			SummaryType:         "bullets",
		},
		Summary: domain.SummarySettings{
			Mode:          "truncate",
			MaxInputChars: 1024,
			MaxLength:     200,
			MinLength:     50,
		},
	}
}
