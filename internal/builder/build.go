// Package builder turns the parsed OSM graph into the tiled on-disk store:
// edge construction, per-node edge sorting, tiling, and the parallel
// per-tile build.
package builder

import (
	"context"
	"math/rand"
	"sort"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mjolnir-routing/mjolnir/internal/config"
	"github.com/mjolnir-routing/mjolnir/internal/graph"
	"github.com/mjolnir-routing/mjolnir/internal/logger"
	"github.com/mjolnir-routing/mjolnir/internal/osmgraph"
	"github.com/mjolnir-routing/mjolnir/internal/tagtransform"
	"github.com/mjolnir-routing/mjolnir/internal/tile"
)

// shuffleSeed keeps the worker ranges reproducible run to run. The shuffle
// only balances geography across workers; tile contents never depend on it.
const shuffleSeed = 0x6D6A6C // "mjl"

// GraphBuilder drives phases E through I: parse, construct, sort, tile,
// build.
type GraphBuilder struct {
	cfg        *config.Config
	hier       *graph.Hierarchy
	classifier tagtransform.Classifier
	admins     AdminResolver
}

// NewGraphBuilder wires a builder. admins may be nil.
func NewGraphBuilder(cfg *config.Config, classifier tagtransform.Classifier, admins AdminResolver) *GraphBuilder {
	return &GraphBuilder{
		cfg:        cfg,
		hier:       cfg.BuildHierarchy(),
		classifier: classifier,
		admins:     admins,
	}
}

// Hierarchy returns the tile hierarchy the builder writes into.
func (g *GraphBuilder) Hierarchy() *graph.Hierarchy { return g.hier }

// Build runs the whole build pipeline over one PBF extract.
func (g *GraphBuilder) Build(ctx context.Context, inputFile string) error {
	parser := osmgraph.NewParser(g.classifier, g.cfg.MaxOSMNodeID)
	data, err := parser.Parse(ctx, inputFile)
	if err != nil {
		return err
	}
	return g.BuildFromData(ctx, data)
}

// BuildFromData runs construction, sorting, tiling, and the tile build
// over an already parsed context. Embedders that source graph data from
// something other than a PBF enter here.
func (g *GraphBuilder) BuildFromData(ctx context.Context, data *osmgraph.Data) error {
	log := logger.Get()

	start := time.Now()
	if err := data.ConstructEdges(); err != nil {
		return err
	}
	log.Info("Constructed edges",
		zap.Int("edges", len(data.Edges)),
		zap.Duration("duration", time.Since(start).Round(time.Millisecond)))

	start = time.Now()
	data.SortEdges()
	log.Info("Sorted edges from nodes",
		zap.Duration("duration", time.Since(start).Round(time.Millisecond)))

	deepest := g.hier.Deepest()
	start = time.Now()
	data.TileNodes(deepest.Tiles, deepest.Level)
	log.Info("Tiled nodes",
		zap.Int("tiles", len(data.TiledNodes)),
		zap.Duration("duration", time.Since(start).Round(time.Millisecond)))

	start = time.Now()
	if err := g.buildLocalTiles(ctx, data, deepest); err != nil {
		return err
	}
	log.Info("Built local tiles",
		zap.Duration("duration", time.Since(start).Round(time.Second)))
	return nil
}

// buildLocalTiles fans the per-tile build out over the worker pool. The
// tile id set is shuffled to spread dense regions across workers, then cut
// into contiguous ranges so workers never share an output tile.
func (g *GraphBuilder) buildLocalTiles(ctx context.Context, data *osmgraph.Data, level graph.TileLevel) error {
	log := logger.Get()

	tileIDs := make([]uint32, 0, len(data.TiledNodes))
	for id := range data.TiledNodes {
		tileIDs = append(tileIDs, id)
	}
	sort.Slice(tileIDs, func(i, j int) bool { return tileIDs[i] < tileIDs[j] })
	rand.New(rand.NewSource(shuffleSeed)).Shuffle(len(tileIDs), func(i, j int) {
		tileIDs[i], tileIDs[j] = tileIDs[j], tileIDs[i]
	})

	workers := g.cfg.Concurrency
	if workers < 1 {
		workers = 1
	}
	if workers > len(tileIDs) && len(tileIDs) > 0 {
		workers = len(tileIDs)
	}

	var totalBytes, totalDups atomic.Uint64
	eg, ctx := errgroup.WithContext(ctx)

	chunk := (len(tileIDs) + workers - 1) / workers
	for w := 0; w < workers; w++ {
		lo := w * chunk
		if lo >= len(tileIDs) {
			break
		}
		hi := min(lo+chunk, len(tileIDs))
		ids := tileIDs[lo:hi]

		eg.Go(func() error {
			b := tile.NewBuilder(graph.NewGraphId(0, level.Level, 0), level.Tiles)
			for _, tileID := range ids {
				select {
				case <-ctx.Done():
					return ctx.Err()
				default:
				}
				b.Reset(graph.NewGraphId(tileID, level.Level, 0), level.Tiles)
				stats, err := buildTile(data, b, data.TiledNodes[tileID], g.admins, g.hier)
				if err != nil {
					return err
				}
				totalBytes.Add(uint64(stats.bytesWritten))
				totalDups.Add(stats.duplicateOpposing)
				log.Debug("Wrote tile",
					zap.Uint32("tile", tileID),
					zap.Int("bytes", stats.bytesWritten))
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}

	log.Info("Tile build complete",
		zap.Int("tiles", len(tileIDs)),
		zap.Uint64("bytes", totalBytes.Load()),
		zap.Uint64("duplicate_opposing", totalDups.Load()))
	return nil
}
