package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/smazurov/hlsnode/internal/config"
	"github.com/smazurov/hlsnode/internal/process"
	"github.com/smazurov/hlsnode/internal/records"
	"github.com/smazurov/hlsnode/internal/records/store"
	"github.com/spf13/cobra"
)

// recordsOptions mirrors the store keys of the server options so the
// command reads the same config file and environment.
type recordsOptions struct {
	Config         string
	RecordsBackend string `toml:"records.backend" env:"RECORDS_BACKEND"`
	RecordsPath    string `toml:"records.path" env:"RECORDS_PATH"`
	JSON           bool
}

// recordRow is one line of `hlsnode records` output.
type recordRow struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	URL     string `json:"url"`
	PID     *int   `json:"pid"`
	Process string `json:"process"`
}

// CreateRecordsCmd creates the records command.
func CreateRecordsCmd() *cobra.Command {
	opts := recordsOptions{}

	cmd := &cobra.Command{
		Use:   "records",
		Short: "List stream records",
		Long: `Lists the stream records in the configured store without contacting a running server. ` +
			`The process column shows whether each recorded pid still exists on this host.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.LoadConfig(&opts, cmd); err != nil {
				return err
			}
			st, err := store.Open(opts.RecordsBackend, opts.RecordsPath)
			if err != nil {
				return fmt.Errorf("open records store: %w", err)
			}
			defer st.Close()

			alive := process.NewSpawner(process.SpawnerOptions{}).Alive
			return listRecords(cmd.OutOrStdout(), st, alive, opts.JSON)
		},
	}

	cmd.Flags().StringVarP(&opts.Config, "config", "c", "config.toml", "Path to configuration file")
	cmd.Flags().StringVar(&opts.RecordsBackend, "records-backend", store.BackendTOML, "Record store backend (toml, sqlite)")
	cmd.Flags().StringVar(&opts.RecordsPath, "records-path", "records.toml", "Record store path")
	cmd.Flags().BoolVar(&opts.JSON, "json", false, "Print JSON instead of a table")
	return cmd
}

func listRecords(w io.Writer, st records.Store, alive func(int) bool, asJSON bool) error {
	recs, err := st.List()
	if err != nil {
		return fmt.Errorf("list records: %w", err)
	}

	rows := make([]recordRow, 0, len(recs))
	for _, rec := range recs {
		row := recordRow{ID: rec.ID, Name: rec.Name, URL: rec.SourceURL, PID: rec.PID, Process: "idle"}
		if rec.PID != nil {
			row.Process = "gone"
			if alive(*rec.PID) {
				row.Process = "alive"
			}
		}
		rows = append(rows, row)
	}

	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tPID\tPROCESS\tURL")
	for _, row := range rows {
		pid := "-"
		if row.PID != nil {
			pid = fmt.Sprint(*row.PID)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", row.ID, row.Name, pid, row.Process, row.URL)
	}
	return tw.Flush()
}
