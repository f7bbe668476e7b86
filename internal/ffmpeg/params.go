package ffmpeg

import (
	"errors"
	"fmt"
	"slices"
)

// Defaults for HLSParams.
const (
	DefaultBinary         = "ffmpeg"
	DefaultRTSPTransport  = "tcp"
	DefaultSegmentSeconds = 4
	DefaultListSize       = 10
	DefaultTimeoutMicros  = 50_000_000
)

// HLSParams describes one RTSP to HLS transcoder invocation.
type HLSParams struct {
	Binary         string
	SourceURL      string
	OutputDir      string
	Name           string
	RTSPTransport  string // tcp, udp
	SegmentSeconds int
	ListSize       int
	TimeoutMicros  int64

	// Options toggles behaviour flags. Nil means GetDefaultOptions().
	Options []OptionType
}

// withDefaults fills zero fields.
func (p HLSParams) withDefaults() HLSParams {
	if p.Binary == "" {
		p.Binary = DefaultBinary
	}
	if p.RTSPTransport == "" {
		p.RTSPTransport = DefaultRTSPTransport
	}
	if p.SegmentSeconds <= 0 {
		p.SegmentSeconds = DefaultSegmentSeconds
	}
	if p.ListSize <= 0 {
		p.ListSize = DefaultListSize
	}
	if p.TimeoutMicros <= 0 {
		p.TimeoutMicros = DefaultTimeoutMicros
	}
	if p.Options == nil {
		p.Options = GetDefaultOptions()
	}
	return p
}

// Validate checks the fields BuildArgs cannot default.
func (p HLSParams) Validate() error {
	if p.SourceURL == "" {
		return errors.New("source url is required")
	}
	if p.OutputDir == "" {
		return errors.New("output directory is required")
	}
	if p.Name == "" {
		return errors.New("stream name is required")
	}
	if p.RTSPTransport != "" && !slices.Contains([]string{"tcp", "udp", "udp_multicast", "http"}, p.RTSPTransport) {
		return fmt.Errorf("unsupported rtsp transport %q", p.RTSPTransport)
	}
	return ValidateOptions(p.Options)
}

func (p HLSParams) has(opt OptionType) bool {
	return slices.Contains(p.Options, opt)
}
