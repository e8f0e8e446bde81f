package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/mjolnir-routing/mjolnir/internal/logger"
	"github.com/mjolnir-routing/mjolnir/internal/metrics"
)

var validateCmd = &cobra.Command{
	Use:   "validate <config.yaml>",
	Short: "Re-validate an existing tile store",
	Long: `Run only the validation pass over tiles written by a previous build:
resolve opposing edges across tile boundaries, tag country crossings,
collect statistics, and regenerate the one-way review tasks.

Validation is idempotent; rerunning it rewrites the same tiles.`,
	Args: cobra.ExactArgs(1),
	Run:  runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig(args[0])
	if err != nil {
		exitWithError("Invalid configuration", err)
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	go metrics.NewCollector(metricsInterval, logger.Get()).Start(ctx)

	runValidation(ctx, cfg)
	logger.Sync()
}
