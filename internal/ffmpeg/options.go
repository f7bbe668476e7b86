package ffmpeg

import (
	"fmt"
	"strings"
)

// OptionType is a named behaviour flag of the HLS invocation.
type OptionType string

// Available options.
const (
	OptionGeneratePTS      OptionType = "genpts"
	OptionCopyAudio        OptionType = "copy_audio"
	OptionNoAudio          OptionType = "no_audio"
	OptionDeleteSegments   OptionType = "delete_segments"
	OptionAppendList       OptionType = "append_list"
	OptionProgramDateTime  OptionType = "program_date_time"
	OptionIndependentSegs  OptionType = "independent_segments"
	OptionWallclockTimings OptionType = "wallclock_ts"
)

// OptionCategory groups options for display.
type OptionCategory string

const (
	CategoryInput    OptionCategory = "Input"
	CategoryAudio    OptionCategory = "Audio"
	CategoryPlaylist OptionCategory = "Playlist"
)

// ExclusiveGroup names a set of options of which at most one may be chosen.
type ExclusiveGroup string

const (
	GroupAudio ExclusiveGroup = "audio"
)

var audioGroup = GroupAudio

// Option describes one flag.
type Option struct {
	Key            OptionType      `json:"key"`
	Name           string          `json:"name"`
	Description    string          `json:"description"`
	Category       OptionCategory  `json:"category"`
	AppDefault     bool            `json:"app_default"`
	ExclusiveGroup *ExclusiveGroup `json:"exclusive_group,omitempty"`
}

// AllOptions lists every supported option.
var AllOptions = []Option{
	{
		Key:         OptionGeneratePTS,
		Name:        "Generate PTS",
		Description: "Regenerate missing presentation timestamps from the camera",
		Category:    CategoryInput,
		AppDefault:  true,
	},
	{
		Key:         OptionWallclockTimings,
		Name:        "Wallclock Timestamps",
		Description: "Stamp input packets with the wall clock",
		Category:    CategoryInput,
	},
	{
		Key:            OptionCopyAudio,
		Name:           "Copy Audio",
		Description:    "Pass the camera's audio through instead of re-encoding to AAC",
		Category:       CategoryAudio,
		ExclusiveGroup: &audioGroup,
	},
	{
		Key:            OptionNoAudio,
		Name:           "No Audio",
		Description:    "Drop audio entirely",
		Category:       CategoryAudio,
		ExclusiveGroup: &audioGroup,
	},
	{
		Key:         OptionDeleteSegments,
		Name:        "Delete Segments",
		Description: "Delete segments that fell out of the playlist window",
		Category:    CategoryPlaylist,
		AppDefault:  true,
	},
	{
		Key:         OptionAppendList,
		Name:        "Append List",
		Description: "Append to an existing playlist after a restart",
		Category:    CategoryPlaylist,
		AppDefault:  true,
	},
	{
		Key:         OptionProgramDateTime,
		Name:        "Program Date Time",
		Description: "Write EXT-X-PROGRAM-DATE-TIME tags",
		Category:    CategoryPlaylist,
		AppDefault:  true,
	},
	{
		Key:         OptionIndependentSegs,
		Name:        "Independent Segments",
		Description: "Mark every segment as starting with a keyframe",
		Category:    CategoryPlaylist,
	},
}

// GetOptionByKey returns an option by its key, or nil.
func GetOptionByKey(key OptionType) *Option {
	for i := range AllOptions {
		if AllOptions[i].Key == key {
			return &AllOptions[i]
		}
	}
	return nil
}

// GetDefaultOptions returns the options enabled when none are configured.
func GetDefaultOptions() []OptionType {
	var defaults []OptionType
	for _, option := range AllOptions {
		if option.AppDefault {
			defaults = append(defaults, option.Key)
		}
	}
	return defaults
}

// ValidateOptions rejects unknown keys and exclusive group violations.
func ValidateOptions(selected []OptionType) error {
	groups := make(map[ExclusiveGroup][]string)
	for _, key := range selected {
		option := GetOptionByKey(key)
		if option == nil {
			return fmt.Errorf("unknown ffmpeg option %q", key)
		}
		if option.ExclusiveGroup != nil {
			groups[*option.ExclusiveGroup] = append(groups[*option.ExclusiveGroup], option.Name)
		}
	}

	for group, names := range groups {
		if len(names) > 1 {
			return fmt.Errorf("multiple options from exclusive group '%s' selected: %s", group, strings.Join(names, ", "))
		}
	}
	return nil
}

// ParseOptions parses a comma separated option list. An empty string yields
// the defaults; "none" yields no options.
func ParseOptions(s string) ([]OptionType, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return GetDefaultOptions(), nil
	}
	if s == "none" {
		return []OptionType{}, nil
	}

	var out []OptionType
	for part := range strings.SplitSeq(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, OptionType(part))
		}
	}
	if err := ValidateOptions(out); err != nil {
		return nil, err
	}
	return out, nil
}
