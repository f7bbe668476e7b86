package streams

import (
	"errors"
	"fmt"

	"github.com/smazurov/hlsnode/internal/records"
	"github.com/smazurov/hlsnode/internal/supervisor"
)

// StreamError represents a domain-specific error.
type StreamError struct {
	Code    string
	Message string
	Cause   error
}

func (e *StreamError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *StreamError) Unwrap() error {
	return e.Cause
}

// Error codes
const (
	ErrCodeStreamNotFound  = "STREAM_NOT_FOUND"
	ErrCodeStreamExists    = "STREAM_EXISTS"
	ErrCodeInvalidParams   = "INVALID_PARAMS"
	ErrCodeStreamRunning   = "STREAM_RUNNING"
	ErrCodeSpawnFailed     = "SPAWN_FAILED"
	ErrCodeKillFailed      = "KILL_FAILED"
	ErrCodeStoreError      = "STORE_ERROR"
	ErrCodeFilesystemError = "FILESYSTEM_ERROR"
)

// NewStreamError creates a new stream error.
func NewStreamError(code, message string, cause error) *StreamError {
	return &StreamError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Code extracts the StreamError code from err, or "" if err carries none.
func Code(err error) string {
	var se *StreamError
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

// classify maps lower-layer sentinels onto error codes. Anything unknown is
// reported with fallback.
func classify(err error, fallback, message string) error {
	if err == nil {
		return nil
	}
	var se *StreamError
	if errors.As(err, &se) {
		return err
	}

	code := fallback
	switch {
	case errors.Is(err, records.ErrNotFound):
		code = ErrCodeStreamNotFound
	case errors.Is(err, records.ErrConflict):
		code = ErrCodeStreamExists
	case errors.Is(err, records.ErrInvalid):
		code = ErrCodeInvalidParams
	case errors.Is(err, supervisor.ErrAlreadyRunning):
		code = ErrCodeStreamRunning
	case errors.Is(err, supervisor.ErrSpawnFailure):
		code = ErrCodeSpawnFailed
	case errors.Is(err, supervisor.ErrKillFailed):
		code = ErrCodeKillFailed
	}
	return NewStreamError(code, message, err)
}
