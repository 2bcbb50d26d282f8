package transcribe

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"notetube/internal/command"
	"notetube/internal/domain"
	"notetube/internal/logging"
)

// WhisperConfig selects tools and model for local transcription.
type WhisperConfig struct {
	FFmpegPath  string
	WhisperPath string
	ModelPath   string
	Language    string
	WorkDir     string
}

// Whisper converts audio with ffmpeg and transcribes it with whisper.cpp.
type Whisper struct {
	cfg       WhisperConfig
	runner    command.Runner
	logger    logrus.FieldLogger
	mkdirTemp func(dir, pattern string) (string, error)
	removeAll func(path string) error
	stat      func(name string) (os.FileInfo, error)
	readDir   func(name string) ([]os.DirEntry, error)
	readFile  func(name string) ([]byte, error)

	modelMu sync.Mutex
	model   string
}

var _ Provider = (*Whisper)(nil)

// NewWhisper constructs the production local provider with OS dependencies.
func NewWhisper(cfg WhisperConfig, logger logrus.FieldLogger) *Whisper {
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = "ffmpeg"
	}
	if cfg.WhisperPath == "" {
		cfg.WhisperPath = "whisper.cpp"
	}
	return &Whisper{
		cfg:       cfg,
		runner:    &command.ExecRunner{},
		logger:    logging.OrDiscard(logger),
		mkdirTemp: os.MkdirTemp,
		removeAll: os.RemoveAll,
		stat:      os.Stat,
		readDir:   os.ReadDir,
		readFile:  os.ReadFile,
	}
}

// Name identifies the provider in logs and results.
func (w *Whisper) Name() string {
	return "whisper.cpp"
}

// Transcribe preprocesses audio to 16 kHz mono WAV and runs whisper.cpp.
func (w *Whisper) Transcribe(ctx context.Context, req Request) (Output, error) {
	inputPath := strings.TrimSpace(req.Audio.Path)
	if inputPath == "" {
		return Output{}, fmt.Errorf("%w: audio path is empty", domain.ErrFileNotFound)
	}
	if _, err := w.stat(inputPath); err != nil {
		return Output{}, fmt.Errorf("%w: %s: %w", domain.ErrFileNotFound, inputPath, err)
	}

	modelPath, err := w.modelPath()
	if err != nil {
		return Output{}, fmt.Errorf("%w: %w", domain.ErrTranscriptionFailed, err)
	}

	tempDir, err := w.mkdirTemp(w.cfg.WorkDir, "notetube-whisper-*")
	if err != nil {
		return Output{}, fmt.Errorf("%w: create temporary workspace: %w", domain.ErrTranscriptionFailed, err)
	}
	defer func() {
		if err := w.removeAll(tempDir); err != nil {
			w.logger.WithError(err).WithField("dir", tempDir).Warn("remove whisper workspace")
		}
	}()

	wavPath := filepath.Join(tempDir, "preprocessed-16k-mono.wav")
	args := buildFFmpegArgs(inputPath, wavPath)
	result, runErr := w.runner.Run(ctx, w.cfg.FFmpegPath, args...)
	ffmpegLog := command.NewLog(w.cfg.FFmpegPath, args, result)
	command.Emit(req.OnLog, ffmpegLog)
	if runErr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Output{}, ctxErr
		}
		return Output{}, fmt.Errorf("%w: ffmpeg audio conversion failed: %w",
			domain.ErrTranscriptionFailed, &command.Error{Log: ffmpegLog, Err: runErr})
	}
	if _, err := w.stat(wavPath); err != nil {
		return Output{}, fmt.Errorf("%w: ffmpeg completed but output file is missing: %w",
			domain.ErrTranscriptionFailed, &command.Error{Log: ffmpegLog, Err: err})
	}

	textBase := filepath.Join(tempDir, "transcript")
	whisperArgs := buildWhisperArgs(modelPath, wavPath, textBase, w.cfg.Language)
	result, runErr = w.runner.Run(ctx, w.cfg.WhisperPath, whisperArgs...)
	whisperLog := command.NewLog(w.cfg.WhisperPath, whisperArgs, result)
	command.Emit(req.OnLog, whisperLog)
	if runErr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Output{}, ctxErr
		}
		return Output{}, fmt.Errorf("%w: whisper.cpp transcription failed: %w",
			domain.ErrTranscriptionFailed, &command.Error{Log: whisperLog, Err: runErr})
	}

	content, err := w.readFile(textBase + ".txt")
	if err != nil {
		return Output{}, fmt.Errorf("%w: whisper.cpp completed but transcript .txt file is missing: %w",
			domain.ErrTranscriptionFailed, &command.Error{Log: whisperLog, Err: err})
	}

	transcript := strings.TrimSpace(string(content))
	if transcript == "" {
		return Output{}, fmt.Errorf("%w: no speech recognized", domain.ErrTranscriptionFailed)
	}

	w.logger.WithFields(logrus.Fields{
		"model": filepath.Base(modelPath),
		"chars": len(transcript),
	}).Info("local transcription finished")
	return Output{Transcript: transcript}, nil
}

// modelPath resolves the configured model and caches it once found.
// Failures are retried on the next run so a model added later is picked up.
func (w *Whisper) modelPath() (string, error) {
	w.modelMu.Lock()
	defer w.modelMu.Unlock()
	if w.model != "" {
		return w.model, nil
	}
	model, err := w.resolveModelPath(w.cfg.ModelPath)
	if err != nil {
		return "", err
	}
	w.model = model
	return model, nil
}

// resolveModelPath returns model file path from file or directory input.
func (w *Whisper) resolveModelPath(rawPath string) (string, error) {
	modelPath := strings.TrimSpace(rawPath)
	if modelPath == "" {
		return "", errors.New("model path is required")
	}

	info, err := w.stat(modelPath)
	if err != nil {
		return "", fmt.Errorf("cannot access model path: %s", modelPath)
	}
	if !info.IsDir() {
		return modelPath, nil
	}

	entries, err := w.readDir(modelPath)
	if err != nil {
		return "", fmt.Errorf("cannot read model directory: %s", modelPath)
	}

	modelNames := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if IsModelFile(entry.Name()) {
			modelNames = append(modelNames, entry.Name())
		}
	}
	if len(modelNames) == 0 {
		return "", fmt.Errorf("no .bin or .gguf model files found in: %s", modelPath)
	}

	sort.Strings(modelNames)
	return filepath.Join(modelPath, modelNames[0]), nil
}

// IsModelFile reports whether name has a whisper.cpp model extension.
func IsModelFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".bin" || ext == ".gguf"
}

// normalizeLanguage maps "auto" and empty language to no CLI override.
func normalizeLanguage(raw string) string {
	lang := strings.TrimSpace(raw)
	if lang == "" || strings.EqualFold(lang, "auto") {
		return ""
	}
	return lang
}

// buildFFmpegArgs builds preprocessing CLI args for mono 16k PCM WAV output.
func buildFFmpegArgs(inputPath, outPath string) []string {
	return []string{
		"-hide_banner",
		"-nostdin",
		"-y",
		"-i", inputPath,
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "pcm_s16le",
		outPath,
	}
}

// buildWhisperArgs builds whisper.cpp args for txt transcript export.
func buildWhisperArgs(modelPath, audioPath, textBase, language string) []string {
	args := []string{
		"-m", modelPath,
		"-f", audioPath,
		"-of", textBase,
		"-otxt",
		"-np",
	}

	if lang := normalizeLanguage(language); lang != "" {
		args = append(args, "-l", lang)
	}

	return args
}

// NewWhisperForTests constructs a provider with injectable dependencies.
func NewWhisperForTests(
	cfg WhisperConfig,
	runner command.Runner,
	removeAll func(path string) error,
	stat func(name string) (os.FileInfo, error),
) *Whisper {
	return &Whisper{
		cfg:       cfg,
		runner:    runner,
		logger:    logging.Discard(),
		mkdirTemp: os.MkdirTemp,
		removeAll: removeAll,
		stat:      stat,
		readDir:   os.ReadDir,
		readFile:  os.ReadFile,
	}
}
