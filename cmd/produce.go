package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var produceCmd = &cobra.Command{
	Use:   "produce",
	Short: "Generate and stage synthetic retail batches on a schedule",
	Long: "Waits for the staging namenode, loads the seed corpus and publishes a perturbed batch every " +
		"producer.schedule, consolidating old artifacts every producer.sweep_every publishes.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("produce"); err != nil {
			return err
		}
		return withStatus(ctx, runProducer)
	},
}

func init() {
	rootCmd.AddCommand(produceCmd)
}
