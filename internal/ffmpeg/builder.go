package ffmpeg

import (
	"path/filepath"
	"strconv"
	"strings"
)

// PlaylistName returns the playlist file name for a stream.
func PlaylistName(name string) string {
	return name + ".m3u8"
}

// SegmentPattern is the segment file name template.
const SegmentPattern = "segment_%03d.ts"

// BuildArgs returns the argument vector, without the binary, for p.
// Lines are prefixed with their level so ParseLogLevel can classify them.
func (p HLSParams) BuildArgs() []string {
	p = p.withDefaults()

	args := []string{"-hide_banner", "-loglevel", "level+info"}

	// Input
	args = append(args, "-rtsp_transport", p.RTSPTransport)
	if p.has(OptionGeneratePTS) {
		args = append(args, "-fflags", "+genpts")
	}
	if p.has(OptionWallclockTimings) {
		args = append(args, "-use_wallclock_as_timestamps", "1")
	}
	args = append(args,
		"-timeout", strconv.FormatInt(p.TimeoutMicros, 10),
		"-i", p.SourceURL,
	)

	// Codecs
	args = append(args, "-c:v", "copy")
	switch {
	case p.has(OptionNoAudio):
		args = append(args, "-an")
	case p.has(OptionCopyAudio):
		args = append(args, "-c:a", "copy")
	default:
		args = append(args, "-c:a", "aac", "-ac", "1", "-ar", "44100", "-b:a", "128k")
	}

	// HLS muxer
	args = append(args,
		"-f", "hls",
		"-hls_time", strconv.Itoa(p.SegmentSeconds),
		"-hls_list_size", strconv.Itoa(p.ListSize),
	)
	if flags := p.hlsFlags(); flags != "" {
		args = append(args, "-hls_flags", flags)
	}
	args = append(args,
		"-hls_allow_cache", "0",
		"-hls_segment_filename", filepath.Join(p.OutputDir, SegmentPattern),
		filepath.Join(p.OutputDir, PlaylistName(p.Name)),
	)

	return args
}

func (p HLSParams) hlsFlags() string {
	var flags []string
	for _, f := range []struct {
		opt  OptionType
		flag string
	}{
		{OptionDeleteSegments, "delete_segments"},
		{OptionAppendList, "append_list"},
		{OptionProgramDateTime, "program_date_time"},
		{OptionIndependentSegs, "independent_segments"},
	} {
		if p.has(f.opt) {
			flags = append(flags, f.flag)
		}
	}
	return strings.Join(flags, "+")
}

// Command returns the binary and its arguments.
func (p HLSParams) Command() (string, []string) {
	p = p.withDefaults()
	return p.Binary, p.BuildArgs()
}

// String renders the invocation as a shell-quoted command line.
func (p HLSParams) String() string {
	bin, args := p.Command()
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, shellQuote(bin))
	for _, a := range args {
		parts = append(parts, shellQuote(a))
	}
	return strings.Join(parts, " ")
}

func shellQuote(s string) string {
	if s == "" {
		return "''"
	}
	if !strings.ContainsAny(s, " \t\n'\"\\$`&|;<>()*?[]#~%!{}") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
