package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/retail-pipeline/internal/ingest"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Show recent transform passes",
	Long:  "Lists the newest ingest_log rows: status, rows loaded, archive outcome and duplicate risk per pass.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		limit, _ := cmd.Flags().GetInt("limit")

		pool, err := connectRelational(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		entries, err := ingest.NewIngestLog(pool).Recent(ctx, limit)
		if err != nil {
			return eris.Wrap(err, "runs")
		}

		if len(entries) == 0 {
			zap.L().Info("no transform passes recorded, run 'consume' or 'transform' first")
			return nil
		}

		formatRuns(os.Stdout, entries)
		return nil
	},
}

func init() {
	runsCmd.Flags().Int("limit", 20, "number of passes to show")
	rootCmd.AddCommand(runsCmd)
}

// formatRuns writes a tabular representation of ingest log entries to out.
func formatRuns(out io.Writer, entries []ingest.LogEntry) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tRUN\tSTATUS\tSTARTED\tDURATION\tFILES\tROWS\tARCHIVED\tDUP RISK\tERROR")
	_, _ = fmt.Fprintln(w, "--\t---\t------\t-------\t--------\t-----\t----\t--------\t--------\t-----")

	for _, e := range entries {
		dur := "-"
		if e.CompletedAt != nil {
			dur = e.CompletedAt.Sub(e.StartedAt).Round(time.Second).String()
		}

		dup := "no"
		if risk, _ := e.Metadata["duplicate_risk"].(bool); risk {
			dup = "yes"
		}

		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%d\t%d\t%d/%d\t%s\t%s\n",
			e.ID,
			e.RunID,
			e.Status,
			e.StartedAt.Format("2006-01-02 15:04"),
			dur,
			e.Artifacts,
			e.RowsLoaded,
			e.Archived,
			e.Archived+e.ArchiveFailed,
			dup,
			truncate(e.Error, 60),
		)
	}
	_ = w.Flush()
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
