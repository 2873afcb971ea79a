package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/retail-pipeline/internal/staging"
)

var sweepRetention int

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run one consolidation of the staging input area",
	Long: "Moves the oldest artifacts beyond the retention count from the input prefix to the processed prefix, " +
		"whether or not they were ingested. Artifacts younger than producer.sweep_min_age_secs are left alone.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if cmd.Flags().Changed("retention") {
			cfg.Producer.Retention = sweepRetention
		}

		store, err := staging.Open(ctx, cfg.Staging)
		if err != nil {
			return err
		}

		res, err := newSweeper(store).Sweep(ctx)
		if err != nil {
			return err
		}
		zap.L().Info("sweep complete",
			zap.Int("pending", res.Pending),
			zap.Int("moved", res.Moved),
			zap.Int("too_young", res.TooYoung),
			zap.Int("failed", res.Failed),
		)
		return nil
	},
}

func init() {
	sweepCmd.Flags().IntVar(&sweepRetention, "retention", 10, "artifacts to keep under the input prefix (overrides producer.retention)")
	rootCmd.AddCommand(sweepCmd)
}
