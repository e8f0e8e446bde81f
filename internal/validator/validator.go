// Package validator re-opens every written tile, resolves opposing edge
// indexes across tile boundaries, tags country crossings, flags suspect
// one-ways, and aggregates store-wide statistics.
package validator

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mjolnir-routing/mjolnir/internal/config"
	"github.com/mjolnir-routing/mjolnir/internal/geo"
	"github.com/mjolnir-routing/mjolnir/internal/graph"
	"github.com/mjolnir-routing/mjolnir/internal/logger"
	"github.com/mjolnir-routing/mjolnir/internal/stats"
	"github.com/mjolnir-routing/mjolnir/internal/tile"
)

// Same seed as the build fan-out; the shuffle spreads dense regions over
// the workers.
const shuffleSeed = 0x6D6A6C

// Validator drives the post-build validation pass.
type Validator struct {
	cfg  *config.Config
	hier *graph.Hierarchy
}

// New creates a validator over the configured store.
func New(cfg *config.Config) *Validator {
	return &Validator{cfg: cfg, hier: cfg.BuildHierarchy()}
}

// Run validates every tile of the deepest level and returns the merged
// statistics. Per-edge problems are logged and annotated in the tiles;
// only I/O and corruption abort the pass.
func (v *Validator) Run(ctx context.Context) (*stats.Stats, error) {
	log := logger.Get()
	level := v.hier.Deepest()

	tileIDs, err := v.listTiles(level.Level)
	if err != nil {
		return nil, err
	}
	if len(tileIDs) == 0 {
		return nil, fmt.Errorf("%w: no tiles found under %s",
			graph.ErrConfigError, v.hier.TileDir)
	}
	rand.New(rand.NewSource(shuffleSeed)).Shuffle(len(tileIDs), func(i, j int) {
		tileIDs[i], tileIDs[j] = tileIDs[j], tileIDs[i]
	})

	log.Info("Validating signs and connectivity",
		zap.Int("tiles", len(tileIDs)),
		zap.Int("concurrency", v.cfg.Concurrency))

	cache := NewCache(v.hier, 0)
	defer cache.Close()

	queue := make(chan uint32, len(tileIDs))
	for _, id := range tileIDs {
		queue <- id
	}
	close(queue)

	merged := stats.New()
	var mergedMu sync.Mutex

	workers := v.cfg.Concurrency
	if workers < 1 {
		workers = 1
	}
	eg, ctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		eg.Go(func() error {
			local := stats.New()
			for tileID := range queue {
				select {
				case <-ctx.Done():
					return ctx.Err()
				default:
				}
				if err := v.validateTile(tileID, level, cache, local); err != nil {
					return err
				}
				if cache.OverCommitted() {
					cache.Clear()
				}
			}
			mergedMu.Lock()
			merged.Merge(local)
			mergedMu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	avg, max := merged.DensitySummary()
	log.Info("Validation finished",
		zap.Uint64("possible_duplicates", merged.Duplicates),
		zap.Float64("avg_density", avg),
		zap.Float64("max_density", max),
		zap.Int("suspect_oneways", merged.Roulette.Len()))

	if err := merged.Roulette.GenerateTasks(v.cfg.TasksFile); err != nil {
		return nil, err
	}
	log.Info("Review tasks saved", zap.String("file", v.cfg.TasksFile))
	return merged, nil
}

// listTiles scans the store directory for tiles of a level, in id order.
func (v *Validator) listTiles(level uint8) ([]uint32, error) {
	dir := filepath.Join(v.hier.TileDir, strconv.Itoa(int(level)))
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list tile store: %w", err)
	}
	var ids []uint32
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".gph") {
			continue
		}
		id, err := strconv.ParseUint(strings.TrimSuffix(name, ".gph"), 10, 32)
		if err != nil {
			continue
		}
		ids = append(ids, uint32(id))
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// validateTile rebuilds one tile: opposing indexes, country crossings,
// suspect detection, statistics, atomic rewrite.
func (v *Validator) validateTile(tileID uint32, level graph.TileLevel, cache *Cache, st *stats.Stats) error {
	log := logger.Get()
	base := graph.NewGraphId(tileID, level.Level, 0)

	tb, err := tile.LoadBuilder(v.hier, base, level.Tiles)
	if err != nil {
		return err
	}

	var roadLengthMeters float64
	var dupCount uint64

	for i := uint32(0); i < tb.NodeCount(); i++ {
		ni := tb.Node(i)
		nodeID := graph.NewGraphId(tileID, level.Level, i)
		beginISO := tb.Admin(ni.AdminIndex).CountryISO

		for j := uint32(0); j < ni.EdgeCount(); j++ {
			idx := ni.EdgeIndex + j
			de := tb.DirectedEdge(idx)

			if de.ExitSign() && len(tb.SignsForEdge(idx)) == 0 {
				log.Error("Directed edge marked as having signs but none found",
					zap.Uint32("tile", tileID), zap.Uint32("edge", idx))
			}

			lengthMeters := float64(de.Length())
			validLength := !de.Shortcut() && !de.TransUp() && !de.TransDown()
			if validLength {
				roadLengthMeters += lengthMeters
			}

			oppIdx, endISO, err := v.resolveOpposing(tb, nodeID, de, cache, &dupCount)
			if err != nil {
				return err
			}
			de.SetOppLocalIdx(oppIdx)

			// Country crossing when the ISO codes on both ends are known
			// and differ. Both orientations see the same pair, so the
			// flag lands symmetrically.
			if beginISO != "" && endISO != "" && beginISO != endISO {
				de.SetCountryCrossing(true)
			}

			if !validLength || de.Link() {
				continue
			}

			rc := de.Classification()
			weight := 2.0
			if de.EndNode().TileID() != tileID {
				weight = 4.0
			}
			km := lengthMeters / 1000.0 / weight

			fward := autoForward(de)
			bward := autoReverse(de)
			if (fward || bward) && (!fward || !bward) {
				if err := v.flagSuspect(tb, ni, de, nodeID, j, cache, st); err != nil {
					return err
				}
				st.AddOneWay(tileID, beginISO, rc, km)
			}
			if de.Internal() {
				st.AddInternalEdge(tileID, beginISO, rc)
			}
			if de.SpeedType() == graph.SpeedTagged {
				st.AddTaggedSpeed(tileID, beginISO, rc, km)
			}
			if de.TruckRoute() {
				st.AddTruckRoute(tileID, beginISO, rc, km)
			}
			if info, ok := tb.EdgeInfo(de.EdgeInfoOffset()); ok && len(info.NameOffsets) > 0 {
				st.AddNamed(tileID, beginISO, rc, km)
			}
			st.AddRoad(tileID, beginISO, rc, km)
		}
	}

	// Approximate tile area in square km and derive the road density.
	minLat, minLng, maxLat, maxLng := level.Tiles.TileBounds(tileID)
	centerLat := (minLat + maxLat) / 2
	area := (maxLat - minLat) * geo.MetersPerLatDegree / 1000.0 *
		(maxLng - minLng) * geo.MetersPerLngDegree(centerLat) / 1000.0
	st.AddTileArea(tileID, area)
	st.AddDensity(tileID, roadLengthMeters*0.0005/area)
	st.AddDuplicates(dupCount)

	if _, err := tb.Store(v.hier); err != nil {
		return err
	}
	return nil
}

// resolveOpposing finds the opposing edge's local index at the end node
// and reports the end node's country ISO. A missing opposing edge leaves
// the sentinel; transit-range uses tolerate it, and among them only a
// transit connection edge without an opposing edge is logged.
func (v *Validator) resolveOpposing(tb *tile.Builder, startNode graph.GraphId,
	de *tile.DirectedEdge, cache *Cache, dupCount *uint64) (uint32, string, error) {

	log := logger.Get()
	endNode := de.EndNode()

	var endNI tile.NodeInfo
	var endISO string
	var edgeAt func(i uint32) (*tile.DirectedEdge, error)

	if endNode.TileBase() == tb.ID() {
		endNI = *tb.Node(endNode.Index())
		endISO = tb.Admin(endNI.AdminIndex).CountryISO
		edgeAt = func(i uint32) (*tile.DirectedEdge, error) {
			return tb.DirectedEdge(i), nil
		}
	} else {
		t, release, err := cache.Get(endNode)
		if err != nil {
			return tile.MaxEdgesPerNode, "", err
		}
		defer release()
		endNI, err = t.Node(endNode.Index())
		if err != nil {
			return tile.MaxEdgesPerNode, "", err
		}
		endISO = t.Admin(endNI.AdminIndex).CountryISO
		edgeAt = func(i uint32) (*tile.DirectedEdge, error) {
			e, err := t.DirectedEdge(i)
			if err != nil {
				return nil, err
			}
			return &e, nil
		}
	}

	found := uint32(tile.MaxEdgesPerNode)
	for i := uint32(0); i < endNI.EdgeCount(); i++ {
		cand, err := edgeAt(endNI.EdgeIndex + i)
		if err != nil {
			return tile.MaxEdgesPerNode, endISO, err
		}
		if cand.EndNode() == startNode &&
			cand.Shortcut() == de.Shortcut() &&
			cand.Length() == de.Length() {
			if found != tile.MaxEdgesPerNode {
				*dupCount++
				continue
			}
			found = i
		}
	}

	if found == tile.MaxEdgesPerNode {
		if de.Use() >= graph.UseRail {
			// Transit edges may legitimately have no opposing edge;
			// only broken stop connections are worth a report.
			if de.Use() == graph.UseTransitConnection {
				log.Error("No opposing transit connection edge",
					zap.Uint32("end_stop", endNI.StopID),
					zap.Uint32("edge_count", endNI.EdgeCount()))
			}
		} else {
			log.Error("No opposing edge",
				zap.Float32("lat", endNI.LatLng.Lat),
				zap.Float32("lng", endNI.LatLng.Lng),
				zap.Uint32("length", de.Length()),
				zap.String("start_node", startNode.String()),
				zap.String("end_node", endNode.String()))
		}
	}
	return found, endISO, nil
}

// flagSuspect applies the one-way heuristics in order and records a review
// task for the first that fires.
func (v *Validator) flagSuspect(tb *tile.Builder, ni *tile.NodeInfo,
	de *tile.DirectedEdge, nodeID graph.GraphId, localIdx uint32,
	cache *Cache, st *stats.Stats) error {

	addTask := func() {
		info, ok := tb.EdgeInfo(de.EdgeInfoOffset())
		if !ok {
			return
		}
		st.Roulette.AddTask(ni.LatLng, info.WayID, info.Shape)
	}

	if isPedestrianTerminal(tb, ni, localIdx) {
		addTask()
		return nil
	}
	if de.EndNode() == nodeID {
		if isLoopTerminal(tb, ni) {
			addTask()
		}
		return nil
	}
	reversed, err := isReversedOneway(tb, cache, ni, de)
	if err != nil {
		return err
	}
	if reversed {
		addTask()
	}
	return nil
}
