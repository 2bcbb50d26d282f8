package pipeline

import (
	"context"
	"errors"
	"fmt"

	"notetube/internal/command"
	"notetube/internal/domain"
)

// StageError is a stage-aware error with optional command context.
type StageError struct {
	Stage      domain.RunState  `json:"stage"`
	Kind       domain.ErrorKind `json:"kind"`
	Message    string           `json:"message"`
	CommandLog command.Log      `json:"commandLog"`
	Err        error            `json:"-"`
}

// Error formats pipeline failures for logs and UI.
func (e *StageError) Error() string {
	if e == nil {
		return ""
	}
	if e.CommandLog.Command == "" {
		return fmt.Sprintf("%s: %s", e.Stage, e.Message)
	}

	return fmt.Sprintf(
		"%s: %s (cmd=%s exit=%d)",
		e.Stage,
		e.Message,
		e.CommandLog.Command,
		e.CommandLog.ExitCode,
	)
}

// Unwrap exposes underlying error for errors.Is / errors.As.
func (e *StageError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// newStageError classifies err and attaches the failing command, if any.
func newStageError(stage domain.RunState, err error) *StageError {
	stageErr := &StageError{
		Stage:   stage,
		Kind:    Classify(err),
		Message: err.Error(),
		Err:     err,
	}

	var cmdErr *command.Error
	if errors.As(err, &cmdErr) {
		stageErr.CommandLog = cmdErr.Log
	}
	return stageErr
}

// Classify maps an error chain to the user-facing error kind.
func Classify(err error) domain.ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.Canceled):
		return domain.ErrorKindCancelled
	case errors.Is(err, domain.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return domain.ErrorKindTimeout
	case errors.Is(err, domain.ErrInvalidReference):
		return domain.ErrorKindInvalidReference
	case errors.Is(err, domain.ErrDownloadFailed):
		return domain.ErrorKindDownloadFailed
	case errors.Is(err, domain.ErrFileNotFound):
		return domain.ErrorKindFileNotFound
	case errors.Is(err, domain.ErrTranscriptionFailed):
		return domain.ErrorKindTranscriptionFailed
	case errors.Is(err, domain.ErrSummarizationDegraded):
		return domain.ErrorKindSummarizationDegraded
	case errors.Is(err, domain.ErrSummarizationFailed):
		return domain.ErrorKindSummarizationFailed
	case errors.Is(err, domain.ErrUnsupportedCharacter):
		return domain.ErrorKindUnsupportedCharacter
	default:
		return domain.ErrorKindInternal
	}
}
