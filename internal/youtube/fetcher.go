package youtube

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"notetube/internal/command"
	"notetube/internal/domain"
	"notetube/internal/logging"
	"notetube/internal/retry"
)

// FailureCause classifies why a download failed.
type FailureCause string

const (
	CauseNetwork     FailureCause = "network"
	CauseRestricted  FailureCause = "restricted"
	CauseUnavailable FailureCause = "unavailable"
	CauseFilesystem  FailureCause = "filesystem"
	CauseToolMissing FailureCause = "tool_missing"
	CauseUnknown     FailureCause = "unknown"
)

// DownloadError reports a failed audio download with its cause.
type DownloadError struct {
	VideoID string
	Cause   FailureCause
	Message string
	Err     error
}

// Error formats the failure for logs and UI.
func (e *DownloadError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("download %s: %s (%s)", e.VideoID, e.Message, e.Cause)
	}
	return fmt.Sprintf("download %s: %s (%s): %v", e.VideoID, e.Message, e.Cause, e.Err)
}

// Unwrap exposes both the sentinel and the underlying cause.
func (e *DownloadError) Unwrap() []error {
	if e == nil {
		return nil
	}
	if e.Err == nil {
		return []error{domain.ErrDownloadFailed}
	}
	return []error{domain.ErrDownloadFailed, e.Err}
}

// AudioResource is a downloaded audio file inside a private temp directory.
type AudioResource struct {
	Path   string `json:"path"`
	Format string `json:"format"`
	Size   int64  `json:"size"`

	dir       string
	removeAll func(string) error
}

// NewAudioResource wraps an existing file that the caller owns.
func NewAudioResource(path string, size int64) AudioResource {
	return AudioResource{
		Path:   path,
		Format: strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), "."),
		Size:   size,
	}
}

// Release removes the temp directory holding the audio file.
func (a AudioResource) Release() error {
	if a.dir == "" {
		return nil
	}
	remove := a.removeAll
	if remove == nil {
		remove = os.RemoveAll
	}
	return remove(a.dir)
}

// Fetcher downloads the best available audio stream with yt-dlp.
type Fetcher struct {
	ytdlpPath string
	workDir   string
	runner    command.Runner
	retry     retry.Config
	logger    logrus.FieldLogger
	mkdirTemp func(dir, pattern string) (string, error)
	removeAll func(path string) error
	stat      func(name string) (os.FileInfo, error)
	glob      func(pattern string) ([]string, error)
}

// NewFetcher constructs the production fetcher. An empty workDir uses the
// system temp directory.
func NewFetcher(ytdlpPath, workDir string, logger logrus.FieldLogger) *Fetcher {
	if strings.TrimSpace(ytdlpPath) == "" {
		ytdlpPath = "yt-dlp"
	}
	cfg := retry.DefaultConfig()
	cfg.MaxRetries = 2
	return &Fetcher{
		ytdlpPath: ytdlpPath,
		workDir:   workDir,
		runner:    &command.ExecRunner{},
		retry:     cfg,
		logger:    logging.OrDiscard(logger),
		mkdirTemp: os.MkdirTemp,
		removeAll: os.RemoveAll,
		stat:      os.Stat,
		glob:      filepath.Glob,
	}
}

// Fetch downloads audio for ref into a fresh temp directory. The returned
// resource must be released by the caller.
func (f *Fetcher) Fetch(ctx context.Context, ref VideoReference, onLog func(command.Log)) (AudioResource, error) {
	if ref.ID == "" {
		return AudioResource{}, fmt.Errorf("%w: empty video id", domain.ErrInvalidReference)
	}

	if f.workDir != "" {
		if err := os.MkdirAll(f.workDir, 0o755); err != nil {
			return AudioResource{}, &DownloadError{
				VideoID: ref.ID,
				Cause:   CauseFilesystem,
				Message: fmt.Sprintf("cannot create work directory: %s", f.workDir),
				Err:     err,
			}
		}
	}

	dir, err := f.mkdirTemp(f.workDir, "notetube-audio-*")
	if err != nil {
		return AudioResource{}, &DownloadError{
			VideoID: ref.ID,
			Cause:   CauseFilesystem,
			Message: "failed to create temporary workspace",
			Err:     err,
		}
	}

	var stdout string
	attempt := 0
	err = retry.Do(ctx, f.retry, isRetryableDownload, func(ctx context.Context) error {
		attempt++
		args := buildYtdlpArgs(dir, ref.WatchURL())
		result, runErr := f.runner.Run(ctx, f.ytdlpPath, args...)
		log := command.NewLog(f.ytdlpPath, args, result)
		command.Emit(onLog, log)
		if runErr == nil {
			stdout = result.Stdout
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		cause := classifyStderr(result.Stderr)
		if errors.Is(runErr, exec.ErrNotFound) {
			cause = CauseToolMissing
		}
		f.logEntry(ref).WithFields(logrus.Fields{
			"attempt": attempt,
			"cause":   cause,
		}).Warn("yt-dlp download failed")
		return &DownloadError{
			VideoID: ref.ID,
			Cause:   cause,
			Message: "yt-dlp could not download audio",
			Err:     &command.Error{Log: log, Err: runErr},
		}
	})
	if err != nil {
		_ = f.removeAll(dir)
		return AudioResource{}, err
	}

	path, err := f.locateArtifact(dir, stdout)
	if err != nil {
		_ = f.removeAll(dir)
		return AudioResource{}, &DownloadError{
			VideoID: ref.ID,
			Cause:   CauseFilesystem,
			Message: "yt-dlp completed but audio file is missing",
			Err:     err,
		}
	}

	info, err := f.stat(path)
	if err != nil || info.Size() == 0 {
		_ = f.removeAll(dir)
		if err == nil {
			err = fmt.Errorf("empty file: %s", path)
		}
		return AudioResource{}, &DownloadError{
			VideoID: ref.ID,
			Cause:   CauseFilesystem,
			Message: "downloaded audio file is unreadable",
			Err:     err,
		}
	}

	audio := NewAudioResource(path, info.Size())
	audio.dir = dir
	audio.removeAll = f.removeAll
	f.logEntry(ref).WithFields(logrus.Fields{
		"path":  path,
		"bytes": audio.Size,
	}).Info("audio downloaded")
	return audio, nil
}

// locateArtifact trusts the path printed by yt-dlp and falls back to
// scanning the temp directory.
func (f *Fetcher) locateArtifact(dir, stdout string) (string, error) {
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		if _, err := f.stat(line); err == nil {
			return line, nil
		}
		break
	}

	matches, err := f.glob(filepath.Join(dir, "audio.*"))
	if err != nil {
		return "", err
	}
	for _, match := range matches {
		if strings.HasSuffix(match, ".part") || strings.HasSuffix(match, ".ytdl") {
			continue
		}
		return match, nil
	}
	return "", fmt.Errorf("no audio file in %s", dir)
}

func (f *Fetcher) logEntry(ref VideoReference) logrus.FieldLogger {
	return f.logger.WithField("video_id", ref.ID)
}

// isRetryableDownload retries only transient network failures.
func isRetryableDownload(err error) bool {
	var downloadErr *DownloadError
	if errors.As(err, &downloadErr) {
		return downloadErr.Cause == CauseNetwork
	}
	return false
}

// buildYtdlpArgs builds args that download the best audio-only stream.
func buildYtdlpArgs(dir, watchURL string) []string {
	return []string{
		"-f", "bestaudio/best",
		"--no-playlist",
		"--no-progress",
		"--no-warnings",
		"-o", filepath.Join(dir, "audio.%(ext)s"),
		"--print", "after_move:filepath",
		watchURL,
	}
}

// classifyStderr maps yt-dlp error output to a failure cause.
func classifyStderr(stderr string) FailureCause {
	msg := strings.ToLower(stderr)
	switch {
	case containsAny(msg,
		"private video",
		"sign in to confirm",
		"members-only",
		"join this channel",
		"age-restricted",
		"inappropriate for some users",
		"not available in your country",
		"blocked it in your country",
		"copyright",
	):
		return CauseRestricted
	case containsAny(msg,
		"video unavailable",
		"has been removed",
		"does not exist",
		"this video is not available",
	):
		return CauseUnavailable
	case containsAny(msg,
		"no space left",
		"permission denied",
		"read-only file system",
		"unable to open for writing",
	):
		return CauseFilesystem
	case containsAny(msg,
		"unable to download webpage",
		"temporary failure in name resolution",
		"name or service not known",
		"getaddrinfo failed",
		"connection reset",
		"connection refused",
		"network is unreachable",
		"timed out",
		"http error 429",
		"http error 5",
		"remote end closed connection",
	):
		return CauseNetwork
	default:
		return CauseUnknown
	}
}

func containsAny(s string, needles ...string) bool {
	for _, needle := range needles {
		if strings.Contains(s, needle) {
			return true
		}
	}
	return false
}

// NewFetcherForTests constructs a fetcher with injectable dependencies.
func NewFetcherForTests(
	ytdlpPath string,
	workDir string,
	runner command.Runner,
	cfg retry.Config,
	removeAll func(path string) error,
) *Fetcher {
	return &Fetcher{
		ytdlpPath: ytdlpPath,
		workDir:   workDir,
		runner:    runner,
		retry:     cfg,
		logger:    logging.Discard(),
		mkdirTemp: os.MkdirTemp,
		removeAll: removeAll,
		stat:      os.Stat,
		glob:      filepath.Glob,
	}
}
