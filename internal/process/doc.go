// Package process spawns detached subprocesses and kills them by pid.
//
// A Spawner starts each child in its own process group so the whole tree can
// be signalled at once, streams the child's stdout and stderr into a slog
// logger (and optionally a rotating log file), and reaps it when it exits.
// Kill works for any pid, including processes left behind by a previous run
// of the daemon.
//
// Example:
//
//	sp := process.NewSpawner(process.SpawnerOptions{
//	    Logger:    logging.GetLogger("process"),
//	    LogParser: ffmpeg.ParseLogLevel,
//	})
//	pid, err := sp.Spawn(process.Spec{ID: "camA", Binary: "ffmpeg", Args: args})
//	...
//	err = sp.Kill(pid)
package process
