package supervisor

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/smazurov/hlsnode/internal/ffmpeg"
	"github.com/smazurov/hlsnode/internal/outputs"
	"github.com/smazurov/hlsnode/internal/process"
	"github.com/smazurov/hlsnode/internal/records"
)

// Launcher starts and kills the transcoder for a record.
type Launcher interface {
	// Launch spawns the transcoder and returns its pid.
	Launch(rec records.Record) (int, error)
	// Kill force-kills pid. A pid that does not exist yields process.ErrNotRunning.
	Kill(pid int) error
}

// TranscoderConfig holds the ffmpeg settings shared by every stream.
type TranscoderConfig struct {
	Binary         string
	RTSPTransport  string
	SegmentSeconds int
	ListSize       int
	TimeoutMicros  int64
	Options        []ffmpeg.OptionType
}

// FFmpegLauncher launches ffmpeg through a process.Spawner.
type FFmpegLauncher struct {
	spawner *process.Spawner
	layout  *outputs.Layout
	cfg     TranscoderConfig
}

// NewFFmpegLauncher creates a launcher writing into layout.
func NewFFmpegLauncher(spawner *process.Spawner, layout *outputs.Layout, cfg TranscoderConfig) *FFmpegLauncher {
	return &FFmpegLauncher{spawner: spawner, layout: layout, cfg: cfg}
}

// Params returns the ffmpeg invocation for rec.
func (l *FFmpegLauncher) Params(rec records.Record) ffmpeg.HLSParams {
	return ffmpeg.HLSParams{
		Binary:         l.cfg.Binary,
		SourceURL:      rec.SourceURL,
		OutputDir:      l.layout.Dir(rec.Name),
		Name:           rec.Name,
		RTSPTransport:  l.cfg.RTSPTransport,
		SegmentSeconds: l.cfg.SegmentSeconds,
		ListSize:       l.cfg.ListSize,
		TimeoutMicros:  l.cfg.TimeoutMicros,
		Options:        l.cfg.Options,
	}
}

// Launch spawns ffmpeg into the record's output directory. The directory is
// normally created with the record; a missing one is recreated here because
// the HLS muxer will not create it and the stream would sit with no output.
func (l *FFmpegLauncher) Launch(rec records.Record) (int, error) {
	params := l.Params(rec)
	if err := params.Validate(); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrSpawnFailure, err)
	}
	if _, err := l.layout.Create(rec.Name); err != nil {
		return 0, err
	}

	bin, args := params.Command()
	pid, err := l.spawner.Spawn(process.Spec{ID: rec.Name, Binary: bin, Args: args})
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrSpawnFailure, err)
	}
	return pid, nil
}

// Kill force-kills pid. A pid we did not spawn is only killed when its
// command line shows it is the configured transcoder, so a recycled pid
// left in the store by a previous run is never hit.
func (l *FFmpegLauncher) Kill(pid int) error {
	if !l.spawner.Owns(pid) {
		if err := l.verifyForeign(pid); err != nil {
			return err
		}
	}
	return l.spawner.Kill(pid)
}

func (l *FFmpegLauncher) verifyForeign(pid int) error {
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/cmdline", pid))
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("pid %d: %w", pid, process.ErrNotRunning)
	}
	if err != nil || len(data) == 0 {
		// No procfs or a zombie; fall back to killing by pid.
		return nil
	}

	argv0, _, _ := strings.Cut(string(data), "\x00")
	binary := l.cfg.Binary
	if binary == "" {
		binary = ffmpeg.DefaultBinary
	}
	if filepath.Base(argv0) != filepath.Base(binary) {
		return fmt.Errorf("pid %d runs %q, not %s: %w", pid, argv0, binary, process.ErrNotRunning)
	}
	return nil
}
