package cmd

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spf13/cobra"

	"github.com/mjolnir-routing/mjolnir/internal/builder"
	"github.com/mjolnir-routing/mjolnir/internal/config"
	"github.com/mjolnir-routing/mjolnir/internal/logger"
	"github.com/mjolnir-routing/mjolnir/internal/metrics"
	"github.com/mjolnir-routing/mjolnir/internal/stats"
	"github.com/mjolnir-routing/mjolnir/internal/tagtransform"
	"github.com/mjolnir-routing/mjolnir/internal/validator"
)

var buildCmd = &cobra.Command{
	Use:   "build <config.yaml> <input.osm.pbf>",
	Short: "Build and validate the tile store from a PBF extract",
	Long: `Run the full pipeline:

  1. Parse ways and relations, marking the nodes the graph needs
  2. Parse nodes, keeping only those referenced by routable ways
  3. Construct edges, splitting ways at intersections
  4. Sort each node's edges by drivability and importance
  5. Assign nodes to tiles of the most detailed level
  6. Build and write one binary tile per occupied grid cell
  7. Validate the store: opposing edges, country crossings, statistics`,
	Args: cobra.ExactArgs(2),
	Run:  runBuild,
}

func init() {
	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, args []string) {
	log := logger.Get()

	cfg, err := loadConfig(args[0])
	if err != nil {
		exitWithError("Invalid configuration", err)
	}
	inputFile := args[1]

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	go metrics.NewCollector(metricsInterval, log).Start(ctx)

	classifier, err := tagtransform.NewLuaClassifier(
		tagtransform.ScriptConfig{
			Script:   cfg.TagTransform.NodeScript,
			Function: cfg.TagTransform.NodeFunction,
		},
		tagtransform.ScriptConfig{
			Script:   cfg.TagTransform.WayScript,
			Function: cfg.TagTransform.WayFunction,
		})
	if err != nil {
		exitWithError("Failed to load tag transform scripts", err)
	}
	defer classifier.Close()

	if cfg.TransitDir != "" {
		log.Info("Transit data present; handled by the transit importer",
			zap.String("transit_dir", cfg.TransitDir))
	}

	start := time.Now()
	g := builder.NewGraphBuilder(cfg, classifier, nil)
	if err := g.Build(ctx, inputFile); err != nil {
		exitWithError("Build failed", err)
	}
	log.Info("Build complete",
		zap.Duration("duration", time.Since(start).Round(time.Second)))

	runValidation(ctx, cfg)
	logger.Sync()
}

// runValidation executes the validation pass and the optional statistics
// exports. Shared by build and validate.
func runValidation(ctx context.Context, cfg *config.Config) {
	log := logger.Get()

	start := time.Now()
	st, err := validator.New(cfg).Run(ctx)
	if err != nil {
		exitWithError("Validation failed", err)
	}
	log.Info("Validation complete",
		zap.Duration("duration", time.Since(start).Round(time.Second)))

	if cfg.Statistics == nil {
		return
	}
	if cfg.Statistics.Dir != "" {
		path, err := stats.WriteParquet(st, cfg.Statistics.Dir)
		if err != nil {
			exitWithError("Failed to export statistics", err)
		}
		log.Info("Statistics exported", zap.String("file", path))
	}
	if cfg.Statistics.DSN != "" {
		if err := stats.WriteDatabase(ctx, cfg.Statistics.DSN, cfg.Statistics.DBName, st); err != nil {
			exitWithError("Failed to store statistics in database", err)
		}
		log.Info("Statistics stored", zap.String("table", cfg.Statistics.DBName))
	}
}

// loadConfig reads the config file and applies CLI overrides.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	cfg.Verbose = verbose
	cfg.LogFile = logFile
	cfg.MetricsInterval = metricsInterval
	if concurrency > 0 {
		cfg.Concurrency = concurrency
	}
	return cfg, nil
}
