package models

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"notetube/internal/logging"
	"notetube/internal/retry"
)

// DownloadTimeout bounds one model download including retries.
const DownloadTimeout = 45 * time.Minute

// Downloader fetches model files over HTTP into place atomically.
type Downloader struct {
	client  *http.Client
	retry   retry.Config
	timeout time.Duration
	logger  logrus.FieldLogger
}

// NewDownloader builds a downloader with default retry policy.
func NewDownloader(logger logrus.FieldLogger) *Downloader {
	return &Downloader{
		client:  http.DefaultClient,
		retry:   retry.DefaultConfig(),
		timeout: DownloadTimeout,
		logger:  logging.OrDiscard(logger),
	}
}

// Install downloads catalog preset id next to the configured model path
// and returns the model path settings should use afterwards.
func (d *Downloader) Install(ctx context.Context, modelPath, id string) (string, error) {
	model, found := Lookup(id)
	if !found {
		return "", fmt.Errorf("unknown model id: %s", id)
	}

	dir, err := DownloadDir(modelPath)
	if err != nil {
		return "", err
	}
	target := filepath.Join(dir, model.FileName)
	if err := d.Download(ctx, target, SourceURL(model)); err != nil {
		return "", fmt.Errorf("download model %s: %w", model.Name, err)
	}
	return target, nil
}

// InstallDefault places the default preset where the configured model path
// expects it and returns the model path settings should use afterwards.
func (d *Downloader) InstallDefault(ctx context.Context, modelPath string) (string, error) {
	model, _ := Lookup(DefaultModelID)
	plan, err := PlanDownload(modelPath, model.FileName)
	if err != nil {
		return "", err
	}
	if err := d.Download(ctx, plan.TargetFile, SourceURL(model)); err != nil {
		return "", fmt.Errorf("download model: %w", err)
	}
	return plan.SettingsPath, nil
}

// Download writes sourceURL to destinationPath through a temp file.
// Network errors and 5xx responses are retried.
func (d *Downloader) Download(ctx context.Context, destinationPath, sourceURL string) error {
	if err := os.MkdirAll(filepath.Dir(destinationPath), 0o755); err != nil {
		return fmt.Errorf("prepare destination directory: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	tmpPath := destinationPath + ".download"
	log := d.logger.WithFields(logrus.Fields{"url": sourceURL, "path": destinationPath})
	err := retry.Do(ctx, d.retry, isRetryableDownload, func(ctx context.Context) error {
		if err := os.Remove(tmpPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			return retry.Permanent(fmt.Errorf("remove stale temp file: %w", err))
		}
		return d.fetch(ctx, tmpPath, sourceURL)
	})
	if err != nil {
		_ = os.Remove(tmpPath)
		log.WithError(err).Warn("model download failed")
		return err
	}

	if err := os.Remove(destinationPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("remove old destination file: %w", err)
	}
	if err := os.Rename(tmpPath, destinationPath); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("move downloaded file into place: %w", err)
	}
	log.Info("model downloaded")
	return nil
}

// statusError is a non-200 download response.
type statusError struct {
	code   int
	status string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected HTTP status: %s", e.status)
}

func (d *Downloader) fetch(ctx context.Context, tmpPath, sourceURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return retry.Permanent(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("User-Agent", "notetube")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("request download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &statusError{code: resp.StatusCode, status: resp.Status}
	}

	file, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return retry.Permanent(fmt.Errorf("create temporary file: %w", err))
	}

	_, copyErr := io.Copy(file, resp.Body)
	closeErr := file.Close()
	if copyErr != nil {
		return fmt.Errorf("write destination file: %w", copyErr)
	}
	if closeErr != nil {
		return retry.Permanent(fmt.Errorf("close destination file: %w", closeErr))
	}
	return nil
}

// isRetryableDownload retries transport failures and server-side statuses.
func isRetryableDownload(err error) bool {
	if !retry.IsRetryable(err) {
		return false
	}
	var se *statusError
	if errors.As(err, &se) {
		return se.code >= 500 || se.code == http.StatusTooManyRequests
	}
	return true
}

// NewDownloaderForTests builds a downloader with injectable HTTP client and
// retry policy.
func NewDownloaderForTests(client *http.Client, cfg retry.Config) *Downloader {
	return &Downloader{
		client:  client,
		retry:   cfg,
		timeout: time.Minute,
		logger:  logging.Discard(),
	}
}
