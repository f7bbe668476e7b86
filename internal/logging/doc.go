// Package logging provides structured logging with per-module log levels.
//
// Every subsystem asks for its own logger:
//
//	logger := logging.GetLogger("supervisor")
//	logger.Info("Stream started", "record_id", id, "pid", pid)
//
// Records go to stdout (text or json), to the systemd journal when journald
// is reachable, and to an in-memory history that backs the
// /api/logs/stream endpoint.
//
// Module levels override the global level:
//
//	[logging]
//	level = "info"
//	format = "text"
//	watchdog = "debug"
//	api = "warn"
//
// When running under systemd:
//
//	journalctl -t hlsnode MODULE=watchdog
//	journalctl -t hlsnode PID=4242
package logging
