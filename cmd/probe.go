package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/retail-pipeline/internal/readiness"
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Check that the staging namenode accepts TCP connections",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := readiness.New(cfg.Readiness).Wait(ctx); err != nil {
			return err
		}
		zap.L().Info("namenode reachable")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(probeCmd)
}
