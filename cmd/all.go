package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var allCmd = &cobra.Command{
	Use:   "all",
	Short: "Run producer and consumer in one process",
	Long: "Development mode: runs the producer and the ingestion trigger loop side by side. " +
		"They still only communicate through the staging store.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("all"); err != nil {
			return err
		}
		return withStatus(ctx, runProducer, runConsumer)
	},
}

func init() {
	rootCmd.AddCommand(allCmd)
}
