package cmd

import (
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/spf13/cobra"

	"github.com/mjolnir-routing/mjolnir/internal/logger"
)

var (
	verbose         bool
	logFile         string
	concurrency     int
	metricsInterval time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "mjolnir",
	Short: "Offline routing-graph tile builder for OpenStreetMap",
	Long: `mjolnir turns a raw OpenStreetMap extract into a hierarchical store of
compact, geographically tiled binary graph files for routing engines.

The pipeline parses the PBF twice (ways then nodes), classifies tags
through external Lua scripts, splits ways into edges at intersections,
tiles the nodes on a fixed world grid, writes one self-contained binary
blob per tile, and finally validates the store: opposing edges are
reconnected across tile boundaries, country crossings annotated, and
suspect one-ways reported for review.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if logFile != "" {
			logger.InitWithFile(verbose, logFile)
		} else {
			logger.Init(verbose)
		}
	},
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Path to log file for persistent logging (JSON format)")
	rootCmd.PersistentFlags().IntVarP(&concurrency, "concurrency", "j", 0, "Worker threads for parallel phases (overrides config)")
	rootCmd.PersistentFlags().DurationVar(&metricsInterval, "metrics-interval", 30*time.Second, "Interval for system metrics logging (e.g. 10s, 1m)")
}

func exitWithError(msg string, err error) {
	log := logger.Get()
	if err != nil {
		log.Error(msg, zap.Error(err))
	} else {
		log.Error(msg)
	}
	logger.Sync()
	os.Exit(1)
}
