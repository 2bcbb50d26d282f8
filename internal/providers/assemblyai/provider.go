// Package assemblyai transcribes and summarizes audio with the AssemblyAI
// asynchronous transcript API.
package assemblyai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"notetube/internal/domain"
	"notetube/internal/logging"
	"notetube/internal/retry"
	"notetube/internal/transcribe"
)

// Config controls the AssemblyAI client.
type Config struct {
	APIKey       string
	BaseURL      string
	PollInterval time.Duration
	MaxWait      time.Duration
	Summarize    bool
	SummaryModel string
	SummaryType  string
	Retry        retry.Config
	HTTPClient   *http.Client
}

// Provider implements transcribe.Provider for AssemblyAI.
type Provider struct {
	cfg    Config
	client *http.Client
	logger logrus.FieldLogger
}

var _ transcribe.Provider = (*Provider)(nil)

// ErrMissingAPIKey is returned when no API key is configured.
var ErrMissingAPIKey = errors.New("ASSEMBLYAI_API_KEY is not configured")

// NewProvider applies defaults and validates the API key.
func NewProvider(cfg Config, logger logrus.FieldLogger) (*Provider, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.assemblyai.com"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = 30 * time.Minute
	}
	if cfg.SummaryModel == "" {
		cfg.SummaryModel = "informative"
	}
	if cfg.SummaryType == "" {
		cfg.SummaryType = "bullets"
	}
	if cfg.Retry == (retry.Config{}) {
		cfg.Retry = retry.DefaultConfig()
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Minute}
	}

	return &Provider{cfg: cfg, client: client, logger: logging.OrDiscard(logger)}, nil
}

// Name identifies the provider in logs and results.
func (p *Provider) Name() string {
	return "assemblyai"
}

// Transcribe uploads the audio, submits a transcript job and waits for it.
func (p *Provider) Transcribe(ctx context.Context, req transcribe.Request) (transcribe.Output, error) {
	path := strings.TrimSpace(req.Audio.Path)
	if path == "" {
		return transcribe.Output{}, fmt.Errorf("%w: audio path is empty", domain.ErrFileNotFound)
	}
	if _, err := os.Stat(path); err != nil {
		return transcribe.Output{}, fmt.Errorf("%w: %s: %w", domain.ErrFileNotFound, path, err)
	}

	uploadURL, err := p.upload(ctx, path)
	if err != nil {
		return transcribe.Output{}, p.wrap(ctx, "upload audio", err)
	}

	job, err := p.submit(ctx, uploadURL)
	if err != nil {
		return transcribe.Output{}, p.wrap(ctx, "submit transcript", err)
	}

	log := p.logger.WithField("job_id", job.ID)
	log.Info("transcript job submitted")

	job, err = p.Wait(ctx, job.ID)
	if err != nil {
		return transcribe.Output{}, err
	}
	if job.Status == JobFailed {
		log.WithField("remote_error", job.Error).Warn("transcript job failed")
		return transcribe.Output{}, fmt.Errorf("%w: %s", domain.ErrTranscriptionFailed, job.Error)
	}

	text := strings.TrimSpace(job.Text)
	if text == "" {
		return transcribe.Output{}, fmt.Errorf("%w: transcript %s is empty", domain.ErrTranscriptionFailed, job.ID)
	}

	log.WithField("chars", len(text)).Info("transcript job completed")
	return transcribe.Output{Transcript: text, Summary: strings.TrimSpace(job.Summary)}, nil
}

// Wait polls the job until it reaches a terminal status. Polls are paced by
// the configured interval and bounded by MaxWait.
func (p *Provider) Wait(ctx context.Context, jobID string) (Job, error) {
	waitCtx, cancel := context.WithTimeout(ctx, p.cfg.MaxWait)
	defer cancel()

	limiter := rate.NewLimiter(rate.Every(p.cfg.PollInterval), 1)
	current := Job{ID: jobID, Status: JobQueued}

	for {
		if err := limiter.Wait(waitCtx); err != nil {
			return current, p.waitError(ctx, current)
		}

		next, err := p.fetch(waitCtx, jobID)
		if err != nil {
			if waitCtx.Err() != nil {
				return current, p.waitError(ctx, current)
			}
			return current, p.wrap(ctx, "poll transcript", err)
		}

		if err := current.advance(next.Status); err != nil {
			return current, fmt.Errorf("%w: %w", domain.ErrTranscriptionFailed, err)
		}
		next.Status = current.Status
		current = next

		p.logger.WithFields(logrus.Fields{
			"job_id": jobID,
			"status": current.Status,
		}).Debug("transcript job polled")

		if current.Status.Terminal() {
			return current, nil
		}
	}
}

// waitError distinguishes caller cancellation from exhausting MaxWait.
func (p *Provider) waitError(ctx context.Context, last Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return fmt.Errorf("%w: transcript %s still %s after %s", domain.ErrTimeout, last.ID, last.Status, p.cfg.MaxWait)
}

// wrap maps transport failures to transcription failures unless the caller
// went away.
func (p *Provider) wrap(ctx context.Context, action string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return fmt.Errorf("%w: %s: %w", domain.ErrTranscriptionFailed, action, err)
}

type uploadResponse struct {
	UploadURL string `json:"upload_url"`
}

type transcriptRequest struct {
	AudioURL      string `json:"audio_url"`
	Summarization bool   `json:"summarization,omitempty"`
	SummaryModel  string `json:"summary_model,omitempty"`
	SummaryType   string `json:"summary_type,omitempty"`
}

type transcriptResponse struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Text    string `json:"text"`
	Summary string `json:"summary"`
	Error   string `json:"error"`
}

func (p *Provider) upload(ctx context.Context, path string) (string, error) {
	var out uploadResponse
	err := retry.Do(ctx, p.cfg.Retry, isRetryable, func(ctx context.Context) error {
		file, err := os.Open(path)
		if err != nil {
			return retry.Permanent(err)
		}
		defer file.Close()

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/v2/upload", file)
		if err != nil {
			return retry.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/octet-stream")
		return p.do(req, &out)
	})
	if err != nil {
		return "", err
	}
	if out.UploadURL == "" {
		return "", errors.New("upload response has no upload_url")
	}
	return out.UploadURL, nil
}

func (p *Provider) submit(ctx context.Context, uploadURL string) (Job, error) {
	body := transcriptRequest{AudioURL: uploadURL}
	if p.cfg.Summarize {
		body.Summarization = true
		body.SummaryModel = p.cfg.SummaryModel
		body.SummaryType = p.cfg.SummaryType
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return Job{}, err
	}

	var out transcriptResponse
	err = retry.Do(ctx, p.cfg.Retry, isRetryable, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/v2/transcript", bytes.NewReader(payload))
		if err != nil {
			return retry.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		return p.do(req, &out)
	})
	if err != nil {
		return Job{}, err
	}
	if out.ID == "" {
		return Job{}, errors.New("transcript response has no id")
	}
	return toJob(out)
}

func (p *Provider) fetch(ctx context.Context, jobID string) (Job, error) {
	var out transcriptResponse
	err := retry.Do(ctx, p.cfg.Retry, isRetryable, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.BaseURL+"/v2/transcript/"+jobID, nil)
		if err != nil {
			return retry.Permanent(err)
		}
		return p.do(req, &out)
	})
	if err != nil {
		return Job{}, err
	}
	return toJob(out)
}

// do sends req with credentials and decodes a JSON body into out.
func (p *Provider) do(req *http.Request, out any) error {
	req.Header.Set("Authorization", p.cfg.APIKey)
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Code: resp.StatusCode, Body: apiErrorMessage(data)}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return retry.Permanent(fmt.Errorf("decode response: %w", err))
	}
	return nil
}

// StatusError is a non-2xx API response.
type StatusError struct {
	Code int
	Body string
}

// Error formats the status code and API message.
func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("assemblyai: HTTP %d", e.Code)
	}
	return fmt.Sprintf("assemblyai: HTTP %d: %s", e.Code, e.Body)
}

func apiErrorMessage(data []byte) string {
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(data, &body); err == nil && body.Error != "" {
		return body.Error
	}
	msg := strings.TrimSpace(string(data))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}

// isRetryable retries network errors, 429 and 5xx responses.
func isRetryable(err error) bool {
	if !retry.IsRetryable(err) {
		return false
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Code == http.StatusTooManyRequests || statusErr.Code >= 500
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF)
}
