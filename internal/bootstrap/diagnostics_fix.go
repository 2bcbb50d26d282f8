package bootstrap

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"notetube/internal/config"
	"notetube/internal/diagnostics"
	"notetube/internal/domain"
)

// InstallOrFixDiagnostic applies a remediation for one failed diagnostic
// item. External tools are reported with install hints instead.
func (a *App) InstallOrFixDiagnostic(itemID string) (domain.DiagnosticReport, error) {
	id := strings.TrimSpace(itemID)
	if id == "" {
		return domain.DiagnosticReport{}, fmt.Errorf("diagnostic item id is required")
	}

	settings, err := loadSettings(a.Store)
	if err != nil {
		return domain.DiagnosticReport{}, err
	}

	settingsChanged := false
	var fixErr error

	switch id {
	case diagnostics.IDModelPath:
		var path string
		path, fixErr = a.modelDownloader().InstallDefault(context.Background(), settings.ModelPath)
		if fixErr == nil && path != settings.ModelPath {
			settings.ModelPath = path
			settingsChanged = true
		}
	case diagnostics.IDOutputDir:
		settings, settingsChanged, fixErr = installOrFixOutputDir(settings)
	case diagnostics.IDYtdlp, diagnostics.IDFFmpeg, diagnostics.IDWhisper:
		fixErr = fmt.Errorf("install %s with your package manager or place it in %s", toolLabel(id), localBinDir(homeOrDot()))
	case diagnostics.IDAPIKey:
		fixErr = fmt.Errorf("set %s in the environment or a .env file", config.APIKeyEnv)
	default:
		return domain.DiagnosticReport{}, fmt.Errorf("unsupported diagnostic item id: %s", id)
	}

	if settingsChanged {
		if saveErr := a.Store.Save(settings); saveErr != nil {
			report := a.refreshDiagnosticsFromSettings(settings)
			return report, fmt.Errorf("save settings after fix: %w", saveErr)
		}
		a.rebuildRunner(settings)
	}

	report := a.refreshDiagnosticsFromSettings(settings)
	if fixErr != nil {
		return report, fixErr
	}
	return report, nil
}

func (a *App) refreshDiagnosticsFromSettings(settings domain.Settings) domain.DiagnosticReport {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Settings = settings
	if a.checker != nil {
		a.Diagnostics = a.checker.Run(settings)
	}
	return a.Diagnostics
}

func ensureLocalBinOnPATH(homeDir string) error {
	binDir := localBinDir(homeDir)
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return err
	}

	current := os.Getenv("PATH")
	entries := filepath.SplitList(current)
	for _, entry := range entries {
		if filepath.Clean(entry) == filepath.Clean(binDir) {
			return nil
		}
	}

	if current == "" {
		return os.Setenv("PATH", binDir)
	}
	return os.Setenv("PATH", binDir+string(os.PathListSeparator)+current)
}

func localBinDir(homeDir string) string {
	return filepath.Join(homeDir, config.AppDirName, "bin")
}

func homeOrDot() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return homeDir
}

func toolLabel(id string) string {
	switch id {
	case diagnostics.IDYtdlp:
		return "yt-dlp"
	case diagnostics.IDFFmpeg:
		return "ffmpeg"
	default:
		return "whisper.cpp"
	}
}

func installOrFixOutputDir(settings domain.Settings) (domain.Settings, bool, error) {
	outputDir := strings.TrimSpace(settings.OutputDir)
	changed := false
	if outputDir == "" {
		outputDir = config.DefaultSettings().OutputDir
		settings.OutputDir = outputDir
		changed = true
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return settings, changed, fmt.Errorf("create output directory %s: %w", outputDir, err)
	}

	return settings, changed, nil
}
