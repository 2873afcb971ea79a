package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var consumeCmd = &cobra.Command{
	Use:   "consume",
	Short: "Run the ingestion trigger loop",
	Long: "Every consumer.schedule, submits a transform pass over the staged artifacts matching " +
		"consumer.pattern, bounded by consumer.timeout_secs. Failed passes are retried on the next tick; " +
		"the loop only stops if the transform engine cannot be launched.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("consume"); err != nil {
			return err
		}
		return withStatus(ctx, runConsumer)
	},
}

func init() {
	rootCmd.AddCommand(consumeCmd)
}
