package main

import (
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/retail-pipeline/internal/engine"
)

var (
	transformMaster    string
	transformClasspath string
)

var transformCmd = &cobra.Command{
	Use:   "transform [script.yaml]",
	Short: "Run one transform pass",
	Long: "Discovers staged artifacts, normalizes them, loads the warehouse and relational sinks and archives " +
		"the inputs once the relational write succeeded. Without a script the pass is built from config. " +
		"This is the command the exec engine submits; a non-zero exit marks the cycle failed.",
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("transform"); err != nil {
			return err
		}

		s := scriptTemplate()
		s.RunID = uuid.NewString()
		s.CreatedAt = time.Now().UTC()
		if len(args) == 1 {
			loaded, err := engine.ReadScript(args[0])
			if err != nil {
				return err
			}
			s = loaded
		}

		zap.L().Info("transform submitted",
			zap.String("run_id", s.RunID),
			zap.String("master", transformMaster),
			zap.String("driver_class_path", transformClasspath),
		)

		env, err := openTransformEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		return env.Pass(ctx, s)
	},
}

func init() {
	transformCmd.Flags().StringVar(&transformMaster, "master", "", "engine master endpoint (recorded in logs)")
	transformCmd.Flags().StringVar(&transformClasspath, "driver-class-path", "", "driver classpath additions (recorded in logs)")
	rootCmd.AddCommand(transformCmd)
}
