package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"time"

	"github.com/smazurov/hlsnode/internal/config"
	"github.com/smazurov/hlsnode/internal/outputs"
	"github.com/spf13/cobra"
)

// ProbeResult is what the watchdog would conclude about a directory.
type ProbeResult struct {
	Dir        string    `json:"dir"`
	Files      int       `json:"files"`
	Newest     time.Time `json:"newest,omitempty"`
	AgeSeconds float64   `json:"age_seconds"`
	Threshold  string    `json:"stale_threshold"`
	Stale      bool      `json:"stale"`
}

// CreateProbeCmd creates the probe command.
func CreateProbeCmd() *cobra.Command {
	var configFile string
	var threshold time.Duration
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "probe <dir>",
		Short: "Check an output directory the way the watchdog does",
		Long: `Scans an HLS output directory recursively and reports the file count, the newest ` +
			`modification time and whether the watchdog would consider it stale. The threshold ` +
			`defaults to watchdog.stale_threshold from the config file.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("stale-threshold") {
				wd, err := config.LoadWatchdogConfig(configFile)
				if err != nil && !errors.Is(err, fs.ErrNotExist) {
					return err
				}
				threshold = wd.StaleThreshold
			}

			res, err := probe(args[0], threshold, time.Now())
			if err != nil {
				return err
			}
			return printProbe(cmd.OutOrStdout(), res, asJSON)
		},
	}

	cmd.Flags().StringVarP(&configFile, "config", "c", "config.toml", "Path to configuration file")
	cmd.Flags().DurationVar(&threshold, "stale-threshold", config.DefaultStaleThreshold, "Staleness threshold")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func probe(dir string, threshold time.Duration, now time.Time) (ProbeResult, error) {
	st, err := outputs.Scan(dir)
	if err != nil {
		return ProbeResult{}, fmt.Errorf("scan %s: %w", dir, err)
	}

	res := ProbeResult{Dir: dir, Files: st.Files, Threshold: threshold.String()}
	if !st.Empty() {
		age := st.Age(now)
		res.Newest = st.Newest
		res.AgeSeconds = age.Seconds()
		res.Stale = age > threshold
	}
	return res, nil
}

func printProbe(w io.Writer, res ProbeResult, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	fmt.Fprintf(w, "dir:       %s\n", res.Dir)
	fmt.Fprintf(w, "files:     %d\n", res.Files)
	if res.Files == 0 {
		fmt.Fprintln(w, "newest:    -")
		fmt.Fprintln(w, "stale:     no (empty directories never go stale)")
		return nil
	}
	fmt.Fprintf(w, "newest:    %s\n", res.Newest.Format(time.RFC3339))
	fmt.Fprintf(w, "age:       %.1fs (threshold %s)\n", res.AgeSeconds, res.Threshold)
	if res.Stale {
		fmt.Fprintln(w, "stale:     yes")
	} else {
		fmt.Fprintln(w, "stale:     no")
	}
	return nil
}
