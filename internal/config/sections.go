package config

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/smazurov/hlsnode/internal/logging"
)

// Watchdog defaults used when the config file leaves them unset.
const (
	DefaultPollInterval   = 10 * time.Second
	DefaultStaleThreshold = 120 * time.Second
)

// WatchdogConfig is the hot-reloadable [watchdog] table.
type WatchdogConfig struct {
	PollInterval   time.Duration
	StaleThreshold time.Duration
}

// LoadWatchdogConfig reads the [watchdog] table from a TOML file. Missing keys
// fall back to the defaults; malformed durations are an error so a bad edit
// does not silently reset a running node.
func LoadWatchdogConfig(path string) (WatchdogConfig, error) {
	cfg := WatchdogConfig{
		PollInterval:   DefaultPollInterval,
		StaleThreshold: DefaultStaleThreshold,
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}

	var raw struct {
		Watchdog struct {
			PollInterval   any `toml:"poll_interval"`
			StaleThreshold any `toml:"stale_threshold"`
		} `toml:"watchdog"`
	}
	if err := toml.Unmarshal(data, &raw); err != nil {
		return cfg, fmt.Errorf("failed to parse TOML config: %w", err)
	}

	if raw.Watchdog.PollInterval != nil {
		d, err := parseDuration(raw.Watchdog.PollInterval)
		if err != nil {
			return cfg, fmt.Errorf("invalid watchdog.poll_interval: %w", err)
		}
		cfg.PollInterval = d
	}
	if raw.Watchdog.StaleThreshold != nil {
		d, err := parseDuration(raw.Watchdog.StaleThreshold)
		if err != nil {
			return cfg, fmt.Errorf("invalid watchdog.stale_threshold: %w", err)
		}
		cfg.StaleThreshold = d
	}

	return cfg, nil
}

// parseDuration accepts a Go duration string or a number of seconds.
func parseDuration(value any) (time.Duration, error) {
	var d time.Duration
	switch v := value.(type) {
	case string:
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return 0, err
		}
		d = parsed
	case int64:
		d = time.Duration(v) * time.Second
	case float64:
		d = time.Duration(v * float64(time.Second))
	default:
		return 0, fmt.Errorf("unsupported value %v", value)
	}
	if d <= 0 {
		return 0, fmt.Errorf("duration must be positive, got %v", d)
	}
	return d, nil
}

// LoadLoggingConfig loads the [logging] table. Keys other than level and
// format are module level overrides. Returns defaults when the file is
// missing or unreadable.
func LoadLoggingConfig(configPath string) logging.Config {
	cfg := logging.Config{
		Level:   "info",
		Format:  "text",
		Modules: make(map[string]string),
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return cfg
	}

	var raw struct {
		Logging map[string]string `toml:"logging"`
	}
	if err := toml.Unmarshal(data, &raw); err != nil || raw.Logging == nil {
		return cfg
	}

	for key, value := range raw.Logging {
		switch key {
		case "level":
			cfg.Level = value
		case "format":
			cfg.Format = value
		default:
			cfg.Modules[key] = value
		}
	}

	return cfg
}
