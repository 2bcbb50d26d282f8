package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"notetube/internal/domain"
	"notetube/internal/models"
)

// GetWhisperModels returns built-in whisper.cpp model presets for one-click downloads.
func (a *App) GetWhisperModels() []domain.WhisperModelOption {
	settings, err := loadSettings(a.Store)
	if err != nil {
		return models.List("")
	}
	return models.List(settings.ModelPath)
}

// DownloadWhisperModel downloads selected whisper.cpp model and updates settings.ModelPath.
func (a *App) DownloadWhisperModel(modelID string) (domain.Settings, error) {
	id := strings.TrimSpace(modelID)
	if id == "" {
		return domain.Settings{}, fmt.Errorf("model id is required")
	}
	if _, found := models.Lookup(id); !found {
		return domain.Settings{}, fmt.Errorf("unknown model id: %s", id)
	}

	settings, err := loadSettings(a.Store)
	if err != nil {
		return domain.Settings{}, err
	}

	path, err := a.modelDownloader().Install(context.Background(), settings.ModelPath, id)
	if err != nil {
		return domain.Settings{}, err
	}

	settings.ModelPath = path
	if err := a.Store.Save(settings); err != nil {
		return domain.Settings{}, fmt.Errorf("save settings: %w", err)
	}

	a.rebuildRunner(settings)
	a.refreshDiagnosticsFromSettings(settings)
	return settings, nil
}

func (a *App) modelDownloader() *models.Downloader {
	if a.downloader == nil {
		a.downloader = models.NewDownloader(a.logger)
	}
	return a.downloader
}
