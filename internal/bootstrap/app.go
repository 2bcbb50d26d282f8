package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	goruntime "runtime"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"

	"notetube/internal/config"
	"notetube/internal/diagnostics"
	"notetube/internal/domain"
	"notetube/internal/jobs"
	"notetube/internal/logging"
	"notetube/internal/models"
	"notetube/internal/pipeline"
	"notetube/internal/render"
	"notetube/internal/session"

	wailsruntime "github.com/wailsapp/wails/v2/pkg/runtime"
)

// RunEventName is the Wails event carrying run progress to the frontend.
const RunEventName = "run:event"

var modelDialogFilter = []wailsruntime.FileFilter{
	{
		DisplayName: "Whisper models",
		Pattern:     "*.bin;*.gguf",
	},
	{
		DisplayName: "All files",
		Pattern:     "*",
	},
}

// RunnerFactory builds the pipeline for a settings snapshot.
type RunnerFactory func(settings domain.Settings, logger logrus.FieldLogger) (session.Runner, error)

// App wires configuration, the run session and UI runtime callbacks.
type App struct {
	Settings    domain.Settings
	Store       config.Store
	Session     *session.Session
	Diagnostics domain.DiagnosticReport
	assets      fs.FS
	checker     *diagnostics.Checker
	downloader  *models.Downloader
	newRunner   RunnerFactory
	logger      logrus.FieldLogger

	mu         sync.Mutex
	runnerErr  error
	runtimeCtx context.Context
}

// New builds the application with persisted settings and startup diagnostics.
func New() (*App, error) {
	return NewWithAssets(nil)
}

// NewWithAssets builds the application and optionally configures embedded frontend assets.
func NewWithAssets(assets fs.FS) (*App, error) {
	if err := config.LoadDotEnv(); err != nil {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve user home: %w", err)
	}
	if err := ensureLocalBinOnPATH(homeDir); err != nil {
		return nil, fmt.Errorf("prepare local tool path: %w", err)
	}

	store := config.NewJSONStore(config.SettingsPath())
	settings, err := loadSettings(store)
	if err != nil {
		return nil, err
	}

	logger := logging.New(settings.LogLevel, "json", os.Stdout)
	checker := diagnostics.NewChecker()

	app := &App{
		Settings:    settings,
		Store:       store,
		Diagnostics: checker.Run(settings),
		assets:      assets,
		checker:     checker,
		downloader:  models.NewDownloader(logger),
		newRunner:   defaultRunnerFactory,
		logger:      logger,
	}
	app.Session = session.New(nil, logger, session.WithEventHook(app.emitEvent))
	app.rebuildRunner(settings)
	return app, nil
}

// defaultRunnerFactory builds the production pipeline.
func defaultRunnerFactory(settings domain.Settings, logger logrus.FieldLogger) (session.Runner, error) {
	orchestrator, err := pipeline.NewFromSettings(settings, logger)
	if err != nil {
		return nil, err
	}
	return orchestrator, nil
}

// Run starts the Wails desktop application and binds backend methods.
func (a *App) Run() error {
	assetOptions := &assetserver.Options{}
	if a.assets != nil {
		assetOptions.Assets = a.assets
	} else {
		assetOptions.Handler = http.FileServer(http.Dir("./frontend"))
	}

	return wails.Run(&options.App{
		Title:       "NoteTube",
		Width:       1180,
		Height:      780,
		AssetServer: assetOptions,
		OnStartup:   a.Startup,
		OnShutdown: func(ctx context.Context) {
			_ = a.Session.Cancel()
			a.mu.Lock()
			defer a.mu.Unlock()
			a.runtimeCtx = nil
		},
		Bind: []interface{}{a},
	})
}

// Startup stores Wails runtime context for push events.
func (a *App) Startup(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.runtimeCtx = ctx
}

// GetDiagnostics returns the latest cached diagnostics report.
func (a *App) GetDiagnostics() domain.DiagnosticReport {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.Diagnostics
}

// GetSettings loads and returns the latest persisted settings.
func (a *App) GetSettings() (domain.Settings, error) {
	settings, err := loadSettings(a.Store)
	if err != nil {
		return domain.Settings{}, err
	}

	a.mu.Lock()
	a.Settings = settings
	a.mu.Unlock()

	return settings, nil
}

// SaveSettings validates and persists settings, then rebuilds the pipeline
// and refreshes diagnostics. A running run keeps its old pipeline.
func (a *App) SaveSettings(settings domain.Settings) (domain.Settings, error) {
	normalized := config.WithAPIKey(config.Normalize(settings))
	if err := config.Validate(normalized); err != nil && !errors.Is(err, config.ErrMissingAPIKey) {
		return domain.Settings{}, err
	}
	if err := a.Store.Save(normalized); err != nil {
		return domain.Settings{}, fmt.Errorf("save settings: %w", err)
	}

	a.rebuildRunner(normalized)
	a.refreshDiagnosticsFromSettings(normalized)
	return normalized, nil
}

// PickModelFile opens a native file dialog for whisper model selection.
func (a *App) PickModelFile() (string, error) {
	ctx, err := a.runtimeContext()
	if err != nil {
		return "", err
	}

	path, err := wailsruntime.OpenFileDialog(ctx, wailsruntime.OpenDialogOptions{
		Title:   "Select whisper model",
		Filters: modelDialogFilter,
	})
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(path), nil
}

// PickModelDirectory opens a native directory picker for model folders.
func (a *App) PickModelDirectory() (string, error) {
	return a.pickDirectory("Select model directory")
}

// PickOutputDirectory opens a native directory picker for document exports.
func (a *App) PickOutputDirectory() (string, error) {
	return a.pickDirectory("Select output directory")
}

func (a *App) pickDirectory(title string) (string, error) {
	ctx, err := a.runtimeContext()
	if err != nil {
		return "", err
	}

	path, err := wailsruntime.OpenDirectoryDialog(ctx, wailsruntime.OpenDialogOptions{
		Title: title,
	})
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(path), nil
}

// OpenOutputFolder opens the given path (or configured output dir) in file manager.
func (a *App) OpenOutputFolder(path string) error {
	target := strings.TrimSpace(path)
	if target == "" {
		a.mu.Lock()
		target = a.Settings.OutputDir
		a.mu.Unlock()
	}
	if target == "" {
		return fmt.Errorf("output path is empty")
	}

	info, err := os.Stat(target)
	if err != nil {
		return fmt.Errorf("resolve output path: %w", err)
	}

	openPath := target
	if !info.IsDir() {
		openPath = filepath.Dir(target)
	}

	return openInFileManager(openPath)
}

// RefreshDiagnostics reloads settings and reruns dependency checks.
func (a *App) RefreshDiagnostics() (domain.DiagnosticReport, error) {
	settings, err := loadSettings(a.Store)
	if err != nil {
		return domain.DiagnosticReport{}, err
	}
	return a.refreshDiagnosticsFromSettings(settings), nil
}

// StartRun begins processing a YouTube URL in the background.
func (a *App) StartRun(url string) (domain.Run, error) {
	a.mu.Lock()
	runnerErr := a.runnerErr
	a.mu.Unlock()
	if runnerErr != nil {
		return domain.Run{}, fmt.Errorf("pipeline unavailable: %w", runnerErr)
	}
	return a.Session.Start(strings.TrimSpace(url))
}

// CancelRun cancels the active run, if any.
func (a *App) CancelRun() error {
	return a.Session.Cancel()
}

// CurrentRun returns the current run state.
func (a *App) CurrentRun() domain.Run {
	return a.Session.Current()
}

// RunEvents returns all events with sequence greater than sinceSeq.
func (a *App) RunEvents(sinceSeq int64) []jobs.Event {
	return a.Session.Events(sinceSeq)
}

// CurrentResult returns the transcript and notes of the last finished run.
func (a *App) CurrentResult() (pipeline.Result, error) {
	result, ok := a.Session.Result()
	if !ok {
		return pipeline.Result{}, session.ErrNoResult
	}
	return result, nil
}

// SaveArtifact asks for a destination and writes one document there. An
// empty path means the dialog was dismissed.
func (a *App) SaveArtifact(kind, format string) (string, error) {
	artifact, err := a.renderArtifact(kind, format)
	if err != nil {
		return "", err
	}

	ctx, err := a.runtimeContext()
	if err != nil {
		return "", err
	}

	a.mu.Lock()
	outputDir := a.Settings.OutputDir
	a.mu.Unlock()

	path, err := wailsruntime.SaveFileDialog(ctx, wailsruntime.SaveDialogOptions{
		Title:            "Save " + string(artifact.Kind),
		DefaultDirectory: outputDir,
		DefaultFilename:  artifact.Name,
	})
	if err != nil {
		return "", err
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return "", nil
	}

	if err := os.WriteFile(path, artifact.Data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", artifact.Name, err)
	}
	return path, nil
}

// ExportArtifacts writes transcript and notes of the last ready run into
// the configured output directory and returns the written paths.
func (a *App) ExportArtifacts(format string) ([]string, error) {
	f, err := render.ParseFormat(format)
	if err != nil {
		return nil, err
	}
	artifacts, err := a.Session.Artifacts(f)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	outputDir := a.Settings.OutputDir
	a.mu.Unlock()

	return writeArtifacts(outputDir, artifacts)
}

func (a *App) renderArtifact(kind, format string) (pipeline.Artifact, error) {
	k, err := pipeline.ParseArtifactKind(kind)
	if err != nil {
		return pipeline.Artifact{}, err
	}
	f, err := render.ParseFormat(format)
	if err != nil {
		return pipeline.Artifact{}, err
	}
	return a.Session.Artifact(k, f)
}

// rebuildRunner swaps the session pipeline for the given settings.
func (a *App) rebuildRunner(settings domain.Settings) {
	runner, err := a.newRunner(settings, a.logger)

	a.mu.Lock()
	a.Settings = settings
	a.runnerErr = err
	a.mu.Unlock()

	if err != nil {
		logging.OrDiscard(a.logger).WithError(err).Warn("pipeline not configured")
		return
	}
	a.Session.SetRunner(runner)
}

// emitEvent pushes a run event to the frontend when the runtime is up.
func (a *App) emitEvent(event jobs.Event) {
	a.mu.Lock()
	ctx := a.runtimeCtx
	a.mu.Unlock()
	if ctx != nil {
		wailsruntime.EventsEmit(ctx, RunEventName, event)
	}
}

// runtimeContext returns current Wails runtime context for dialog APIs.
func (a *App) runtimeContext() (context.Context, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.runtimeCtx == nil {
		return nil, fmt.Errorf("runtime context is not initialized")
	}
	return a.runtimeCtx, nil
}

// loadSettings reads persisted settings and overlays the environment.
func loadSettings(store config.Store) (domain.Settings, error) {
	if store == nil {
		return domain.Settings{}, fmt.Errorf("settings store is not configured")
	}
	settings, err := store.Load()
	if err != nil {
		return domain.Settings{}, fmt.Errorf("load settings: %w", err)
	}
	return config.Normalize(config.ApplyEnv(settings)), nil
}

// writeArtifacts writes rendered documents into dir.
func writeArtifacts(dir string, artifacts []pipeline.Artifact) ([]string, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("output directory is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	paths := make([]string, 0, len(artifacts))
	for _, artifact := range artifacts {
		path := filepath.Join(dir, artifact.Name)
		if err := os.WriteFile(path, artifact.Data, 0o644); err != nil {
			return paths, fmt.Errorf("write %s: %w", artifact.Name, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// openInFileManager launches the platform file explorer for the provided path.
func openInFileManager(path string) error {
	var cmd *exec.Cmd
	switch goruntime.GOOS {
	case "darwin":
		cmd = exec.Command("open", path)
	case "windows":
		cmd = exec.Command("explorer", filepath.Clean(path))
	default:
		cmd = exec.Command("xdg-open", path)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("launch file manager: %w", err)
	}
	return nil
}
