package ffmpeg

import (
	"slices"
	"testing"
)

func TestGetDefaultOptions(t *testing.T) {
	defaults := GetDefaultOptions()
	for _, want := range []OptionType{OptionGeneratePTS, OptionDeleteSegments, OptionAppendList, OptionProgramDateTime} {
		if !slices.Contains(defaults, want) {
			t.Errorf("defaults missing %s", want)
		}
	}
	if slices.Contains(defaults, OptionNoAudio) {
		t.Error("no_audio must not be a default")
	}
}

func TestParseOptions(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []OptionType
		wantErr bool
	}{
		{"empty gives defaults", "", GetDefaultOptions(), false},
		{"none", "none", []OptionType{}, false},
		{"list", "genpts, copy_audio", []OptionType{OptionGeneratePTS, OptionCopyAudio}, false},
		{"trailing comma", "no_audio,", []OptionType{OptionNoAudio}, false},
		{"unknown", "genpts,turbo", nil, true},
		{"exclusive", "copy_audio,no_audio", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseOptions(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseOptions(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && !slices.Equal(got, tt.want) {
				t.Errorf("ParseOptions(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestGetOptionByKey(t *testing.T) {
	if opt := GetOptionByKey(OptionCopyAudio); opt == nil || opt.Category != CategoryAudio {
		t.Errorf("unexpected option %+v", opt)
	}
	if GetOptionByKey("missing") != nil {
		t.Error("expected nil for unknown key")
	}
}
