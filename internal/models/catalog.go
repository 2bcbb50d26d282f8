// Package models manages whisper.cpp model presets for the local provider.
package models

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"notetube/internal/config"
	"notetube/internal/domain"
	"notetube/internal/transcribe"
)

// DefaultModelID is installed when the model path diagnostic is fixed.
const DefaultModelID = "base.en"

const hfBase = "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/"

var catalog = []domain.WhisperModelOption{
	preset("tiny.en", "Tiny (English)", "~75 MB", "Fastest, English-only model."),
	preset("tiny", "Tiny (Multilingual)", "~75 MB", "Fastest multilingual model."),
	preset("base.en", "Base (English)", "~142 MB", "Balanced speed/quality, English-only."),
	preset("base", "Base (Multilingual)", "~142 MB", "Balanced speed/quality, multilingual."),
	preset("small.en", "Small (English)", "~466 MB", "Higher quality, English-only."),
	preset("small", "Small (Multilingual)", "~466 MB", "Higher quality multilingual model."),
	preset("medium.en", "Medium (English)", "~1.5 GB", "High quality, English-only."),
	preset("medium", "Medium (Multilingual)", "~1.5 GB", "High quality multilingual model."),
	preset("large-v3", "Large v3", "~2.9 GB", "Latest large multilingual model."),
	preset("large-v3-turbo", "Large v3 Turbo", "~1.6 GB", "Faster large-v3 variant."),
}

func preset(id, name, size, description string) domain.WhisperModelOption {
	fileName := "ggml-" + id + ".bin"
	return domain.WhisperModelOption{
		ID:          id,
		Name:        name,
		FileName:    fileName,
		SizeLabel:   size,
		Description: description,
		Default:     id == DefaultModelID,
	}
}

// SourceURL returns the download location of model's weights.
func SourceURL(model domain.WhisperModelOption) string {
	return hfBase + model.FileName
}

// List returns the catalog with presets already present under the
// configured model path or the default models directory marked.
func List(modelPath string) []domain.WhisperModelOption {
	out := make([]domain.WhisperModelOption, len(catalog))
	copy(out, catalog)
	markDownloaded(out, KnownDirs(modelPath))
	return out
}

// Lookup finds a catalog preset by id.
func Lookup(id string) (domain.WhisperModelOption, bool) {
	id = strings.TrimSpace(id)
	for _, model := range catalog {
		if model.ID == id {
			return model, true
		}
	}
	return domain.WhisperModelOption{}, false
}

// DefaultDir is the per-user models directory.
func DefaultDir() string {
	return filepath.Join(config.HomeDir(), "models")
}

// Plan is where a download lands and what the settings should point to.
type Plan struct {
	TargetFile   string
	SettingsPath string
}

// PlanDownload resolves where model fileName goes given the configured
// model path. Explicit model file paths are kept as the target.
func PlanDownload(modelPath, fileName string) (Plan, error) {
	trimmed := strings.TrimSpace(modelPath)
	if trimmed == "" {
		dir := DefaultDir()
		return Plan{TargetFile: filepath.Join(dir, fileName), SettingsPath: dir}, nil
	}

	info, err := os.Stat(trimmed)
	if err == nil {
		if info.IsDir() {
			return Plan{TargetFile: filepath.Join(trimmed, fileName), SettingsPath: trimmed}, nil
		}
		if transcribe.IsModelFile(trimmed) {
			return Plan{TargetFile: trimmed, SettingsPath: trimmed}, nil
		}
		return Plan{}, fmt.Errorf("model path points to a non-model file: %s", trimmed)
	}
	if !errors.Is(err, os.ErrNotExist) {
		return Plan{}, fmt.Errorf("check model path: %w", err)
	}

	if transcribe.IsModelFile(trimmed) {
		return Plan{TargetFile: trimmed, SettingsPath: trimmed}, nil
	}
	return Plan{TargetFile: filepath.Join(trimmed, fileName), SettingsPath: trimmed}, nil
}

// DownloadDir resolves the directory a catalog preset is saved into.
func DownloadDir(modelPath string) (string, error) {
	plan, err := PlanDownload(modelPath, "")
	if err != nil {
		return "", err
	}
	if plan.TargetFile == plan.SettingsPath && transcribe.IsModelFile(plan.TargetFile) {
		return filepath.Dir(plan.TargetFile), nil
	}
	return plan.SettingsPath, nil
}

// KnownDirs lists directories that may already hold downloaded presets.
func KnownDirs(modelPath string) []string {
	seen := map[string]struct{}{}
	var dirs []string
	add := func(path string) {
		p := strings.TrimSpace(path)
		if p == "" {
			return
		}
		clean := filepath.Clean(p)
		if clean == "." {
			return
		}
		if _, ok := seen[clean]; ok {
			return
		}
		seen[clean] = struct{}{}
		dirs = append(dirs, clean)
	}

	add(DefaultDir())
	if dir, err := DownloadDir(modelPath); err == nil && strings.TrimSpace(modelPath) != "" {
		add(dir)
	}
	return dirs
}

func markDownloaded(models []domain.WhisperModelOption, dirs []string) {
	for i := range models {
		for _, dir := range dirs {
			candidate := filepath.Join(dir, models[i].FileName)
			info, err := os.Stat(candidate)
			if err != nil || info.IsDir() {
				continue
			}
			models[i].Downloaded = true
			models[i].LocalPath = candidate
			break
		}
	}
}
