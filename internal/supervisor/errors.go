package supervisor

import "errors"

var (
	// ErrSpawnFailure means the transcoder could not be found or invoked.
	// It is surfaced to the caller and never retried.
	ErrSpawnFailure = errors.New("spawn failure")
	// ErrAlreadyRunning is returned by Start when the record holds a pid.
	ErrAlreadyRunning = errors.New("stream already running")
	// ErrAlreadyRegistered is returned by Registry.Register for a known pid.
	ErrAlreadyRegistered = errors.New("pid already registered")
	// ErrKillFailed is returned by Stop when the process could not be killed.
	// The record keeps its pid.
	ErrKillFailed = errors.New("kill failed")
	// ErrClosed is returned once the controller has been closed.
	ErrClosed = errors.New("supervisor closed")
)
