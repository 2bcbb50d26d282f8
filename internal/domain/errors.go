package domain

import "errors"

var (
	ErrInvalidReference      = errors.New("invalid video reference")
	ErrDownloadFailed        = errors.New("audio download failed")
	ErrFileNotFound          = errors.New("audio file not found")
	ErrTranscriptionFailed   = errors.New("transcription failed")
	ErrSummarizationDegraded = errors.New("summarization degraded")
	ErrSummarizationFailed   = errors.New("summarization failed")
	ErrUnsupportedCharacter  = errors.New("unsupported character")
	ErrTimeout               = errors.New("timed out")
)

// ErrorKind is the user-facing category of a failed run.
type ErrorKind string

const (
	ErrorKindInvalidReference      ErrorKind = "invalid_reference"
	ErrorKindDownloadFailed        ErrorKind = "download_failed"
	ErrorKindFileNotFound          ErrorKind = "file_not_found"
	ErrorKindTranscriptionFailed   ErrorKind = "transcription_failed"
	ErrorKindSummarizationDegraded ErrorKind = "summarization_degraded"
	ErrorKindSummarizationFailed   ErrorKind = "summarization_failed"
	ErrorKindUnsupportedCharacter  ErrorKind = "unsupported_character"
	ErrorKindTimeout               ErrorKind = "timeout"
	ErrorKindCancelled             ErrorKind = "cancelled"
	ErrorKindInternal              ErrorKind = "internal"
)
