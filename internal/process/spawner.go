package process

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/smazurov/hlsnode/internal/logging"
)

// LogParser parses a log line and returns the log level and message.
type LogParser func(line string) (level, msg string)

// LevelMapper maps a parsed level name to a slog level.
type LevelMapper func(level string) slog.Level

// ExitFunc is called after a spawned child has been reaped.
type ExitFunc func(pid int, id string, exitCode int)

// Spec describes one child process.
type Spec struct {
	// ID labels the child in logs and names its log file.
	ID     string
	Binary string
	Args   []string
}

// SpawnerOptions configures a Spawner.
type SpawnerOptions struct {
	Logger       *slog.Logger // lifecycle messages; defaults to module "process"
	OutputLogger *slog.Logger // child output; defaults to Logger
	LogParser    LogParser
	LevelMapper  LevelMapper
	OnExit       ExitFunc

	// LogDir enables per-child rotating log files when non-empty.
	LogDir string
	Rotate RotateOptions

	// KillTimeout bounds how long Kill waits for one of our children to be reaped.
	KillTimeout time.Duration
}

// ChildInfo describes a live child.
type ChildInfo struct {
	PID       int
	ID        string
	StartedAt time.Time
}

type child struct {
	id        string
	cmd       *exec.Cmd
	startedAt time.Time
	done      chan struct{}
	logFile   io.WriteCloser
}

// Spawner starts and tracks detached children.
type Spawner struct {
	logger       *slog.Logger
	outputLogger *slog.Logger
	logParser    LogParser
	levelMapper  LevelMapper
	onExit       ExitFunc
	logDir       string
	rotate       RotateOptions
	killTimeout  time.Duration

	mu       sync.Mutex
	children map[int]*child
}

// NewSpawner creates a Spawner.
func NewSpawner(opts SpawnerOptions) *Spawner {
	if opts.Logger == nil {
		opts.Logger = logging.GetLogger("process")
	}
	if opts.OutputLogger == nil {
		opts.OutputLogger = opts.Logger
	}
	if opts.LevelMapper == nil {
		opts.LevelMapper = defaultLevel
	}
	if opts.KillTimeout <= 0 {
		opts.KillTimeout = 5 * time.Second
	}
	return &Spawner{
		logger:       opts.Logger,
		outputLogger: opts.OutputLogger,
		logParser:    opts.LogParser,
		levelMapper:  opts.LevelMapper,
		onExit:       opts.OnExit,
		logDir:       opts.LogDir,
		rotate:       opts.Rotate,
		killTimeout:  opts.KillTimeout,
		children:     make(map[int]*child),
	}
}

// Spawn starts spec in a new process group and returns its pid. The child
// keeps running until it exits or is killed; it is reaped in the background.
func (s *Spawner) Spawn(spec Spec) (int, error) {
	if spec.Binary == "" {
		return 0, errors.New("empty command")
	}

	cmd := exec.Command(spec.Binary, spec.Args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return 0, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return 0, fmt.Errorf("stderr pipe: %w", err)
	}

	var logFile io.WriteCloser
	if s.logDir != "" {
		logFile = newLogFile(s.logDir, spec.ID, s.rotate)
	}

	if err := cmd.Start(); err != nil {
		if logFile != nil {
			logFile.Close()
		}
		s.logger.Error("Failed to start process", "id", spec.ID, "binary", spec.Binary, "error", err)
		return 0, fmt.Errorf("start %s: %w", spec.Binary, err)
	}

	pid := cmd.Process.Pid
	c := &child{
		id:        spec.ID,
		cmd:       cmd,
		startedAt: time.Now(),
		done:      make(chan struct{}),
		logFile:   logFile,
	}

	s.mu.Lock()
	s.children[pid] = c
	s.mu.Unlock()

	s.logger.Info("Process started", "id", spec.ID, "pid", pid)

	var output sync.WaitGroup
	output.Add(2)
	go func() {
		defer output.Done()
		s.streamOutput(c, pid, stdout, "stdout")
	}()
	go func() {
		defer output.Done()
		s.streamOutput(c, pid, stderr, "stderr")
	}()

	go s.reap(pid, c, &output)

	return pid, nil
}

// reap waits for output to drain and the child to exit, then forgets it.
func (s *Spawner) reap(pid int, c *child, output *sync.WaitGroup) {
	output.Wait()
	err := c.cmd.Wait()
	code := exitCode(err)

	s.mu.Lock()
	delete(s.children, pid)
	s.mu.Unlock()

	if c.logFile != nil {
		c.logFile.Close()
	}
	close(c.done)

	s.logger.Info("Process exited", "id", c.id, "pid", pid, "exit_code", code)
	if s.onExit != nil {
		s.onExit(pid, c.id, code)
	}
}

func (s *Spawner) streamOutput(c *child, pid int, r io.Reader, source string) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	logger := s.outputLogger.With("stream", c.id, "pid", pid)

	for scanner.Scan() {
		line := scanner.Text()
		if c.logFile != nil {
			_, _ = io.WriteString(c.logFile, line+"\n")
		}

		level, msg := "info", line
		if s.logParser != nil {
			level, msg = s.logParser(line)
		}
		logger.Log(context.Background(), s.levelMapper(level), msg)
	}

	if err := scanner.Err(); err != nil && !errors.Is(err, io.ErrClosedPipe) {
		s.logger.Debug("Output stream closed", "pid", pid, "source", source, "error", err)
	}
}

// Running lists live children ordered by pid.
func (s *Spawner) Running() []ChildInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]ChildInfo, 0, len(s.children))
	for pid, c := range s.children {
		out = append(out, ChildInfo{PID: pid, ID: c.id, StartedAt: c.startedAt})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PID < out[j].PID })
	return out
}

// Owns reports whether pid is a live child of this spawner.
func (s *Spawner) Owns(pid int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.children[pid]
	return ok
}

func (s *Spawner) lookup(pid int) *child {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.children[pid]
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
			return 128 + int(ws.Signal())
		}
		return exitErr.ExitCode()
	}
	return 1
}

func defaultLevel(level string) slog.Level {
	switch level {
	case "fatal", "panic", "error":
		return slog.LevelError
	case "warning", "warn":
		return slog.LevelWarn
	case "debug", "trace", "verbose":
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}
