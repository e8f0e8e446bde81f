package osmgraph

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"strconv"

	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmpbf"
	"go.uber.org/zap"

	"github.com/mjolnir-routing/mjolnir/internal/graph"
	"github.com/mjolnir-routing/mjolnir/internal/logger"
	"github.com/mjolnir-routing/mjolnir/internal/tagtransform"
)

// Parser feeds a PBF extract through the tag classifier into a Data
// context. The file is read twice: ways and relations first to learn which
// nodes matter, then nodes.
//
// Classification is single-threaded (the Lua state is not reentrant); the
// PBF blocks themselves decode in parallel.
type Parser struct {
	classifier tagtransform.Classifier
	data       *Data
}

// NewParser creates a parser writing into a fresh Data context.
func NewParser(classifier tagtransform.Classifier, maxOSMID uint64) *Parser {
	return &Parser{
		classifier: classifier,
		data:       NewData(maxOSMID),
	}
}

// Parse runs both passes and returns the populated context.
func (p *Parser) Parse(ctx context.Context, path string) (*Data, error) {
	log := logger.Get()

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input: %w", err)
	}
	defer f.Close()

	log.Info("Pass 1: parsing ways and relations to mark nodes needed")
	if err := p.parseWays(ctx, f); err != nil {
		return nil, err
	}
	log.Info("Routable ways parsed",
		zap.Int("ways", len(p.data.Ways)),
		zap.Uint64("speed_assigned", p.data.SpeedAssigned),
		zap.Uint64("rejected_no_speed", p.data.RejectedNoSpeed))

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to rewind input: %w", err)
	}

	log.Info("Pass 2: parsing nodes", zap.Uint64("expected", p.data.ExpectedNodes+p.data.ExpectedEdges))
	if err := p.parseNodes(ctx, f); err != nil {
		return nil, err
	}
	log.Info("Routable nodes parsed", zap.Int("nodes", len(p.data.Nodes)))

	return p.data, nil
}

// parseWays is the first pass over the file.
func (p *Parser) parseWays(ctx context.Context, f *os.File) error {
	scanner := osmpbf.New(ctx, f, runtime.NumCPU())
	defer scanner.Close()
	scanner.SkipNodes = true

	for scanner.Scan() {
		switch o := scanner.Object().(type) {
		case *osm.Way:
			if err := p.wayCallback(uint64(o.ID), o.Tags.Map(), o.Nodes); err != nil {
				return err
			}
		case *osm.Relation:
			// Restrictions and route relations are handled by external
			// importers.
		}
	}
	if err := scanner.Err(); err != nil && err != io.EOF {
		return fmt.Errorf("%w: %v", graph.ErrMalformedInput, err)
	}
	return nil
}

// parseNodes is the second pass, keeping only nodes ways referenced.
func (p *Parser) parseNodes(ctx context.Context, f *os.File) error {
	log := logger.Get()
	scanner := osmpbf.New(ctx, f, runtime.NumCPU())
	defer scanner.Close()
	scanner.SkipWays = true
	scanner.SkipRelations = true

	for scanner.Scan() {
		node, ok := scanner.Object().(*osm.Node)
		if !ok {
			continue
		}
		if err := p.nodeCallback(uint64(node.ID), node.Lon, node.Lat, node.Tags.Map()); err != nil {
			return err
		}
		if len(p.data.Nodes)%1_000_000 == 0 && len(p.data.Nodes) > 0 {
			log.Debug("Node parsing progress", zap.Int("nodes", len(p.data.Nodes)))
		}
	}
	if err := scanner.Err(); err != nil && err != io.EOF {
		return fmt.Errorf("%w: %v", graph.ErrMalformedInput, err)
	}
	return nil
}

// wayCallback classifies one way and, if routable, registers its node refs
// in the shape and intersection bitsets.
func (p *Parser) wayCallback(osmID uint64, tags map[string]string, refs osm.WayNodes) error {
	// Degenerate ways carry no edge.
	if len(refs) < 2 {
		return nil
	}

	results, err := p.classifier.Classify(tagtransform.KindWay, tags)
	if err != nil {
		return fmt.Errorf("way %d: %w", osmID, err)
	}
	if len(results) == 0 {
		return nil
	}

	way := OSMWay{
		OSMID:     osmID,
		Refs:      make([]uint64, len(refs)),
		RoadClass: graph.RoadClassOther,
	}
	for i, wn := range refs {
		way.Refs[i] = uint64(wn.ID)
	}

	var defaultSpeed float32
	hasSpeed := false
	for key, value := range results {
		switch key {
		case "speed":
			if v, err := strconv.ParseFloat(value, 32); err == nil && v > 0 {
				way.SpeedKPH = float32(v)
				way.TaggedSpeed = true
				hasSpeed = true
			}
		case "default_speed":
			if v, err := strconv.ParseFloat(value, 32); err == nil && v > 0 {
				defaultSpeed = float32(v)
			}
		case "truck_speed":
			if v, err := strconv.ParseFloat(value, 32); err == nil && v > 0 {
				way.TruckSpeedKPH = float32(v)
			}
		default:
			way.applyTag(key, value)
		}
	}

	if !way.HasAccess() {
		return nil
	}

	// The classifier must provide a usable speed one way or the other;
	// a way with neither is rejected rather than written with garbage.
	if !hasSpeed {
		if defaultSpeed <= 0 {
			p.data.RejectedNoSpeed++
			return nil
		}
		way.SpeedKPH = defaultSpeed
		p.data.SpeedAssigned++
	}

	for _, ref := range way.Refs {
		if p.data.Shape.IsSet(ref) {
			if err := p.data.Intersection.Set(ref); err != nil {
				return fmt.Errorf("way %d: %w", osmID, err)
			}
			p.data.ExpectedEdges++
		} else {
			p.data.ExpectedNodes++
		}
		if err := p.data.Shape.Set(ref); err != nil {
			return fmt.Errorf("way %d: %w", osmID, err)
		}
	}
	p.data.Intersection.Set(way.Refs[0])
	p.data.Intersection.Set(way.Refs[len(way.Refs)-1])
	p.data.ExpectedEdges += 2

	p.data.Ways = append(p.data.Ways, way)
	return nil
}

// nodeCallback keeps a node only when some way's shape needs it.
func (p *Parser) nodeCallback(osmID uint64, lng, lat float64, tags map[string]string) error {
	if !p.data.Shape.IsSet(osmID) {
		return nil
	}

	results, err := p.classifier.Classify(tagtransform.KindNode, tags)
	if err != nil {
		return fmt.Errorf("node %d: %w", osmID, err)
	}
	if len(results) == 0 {
		return nil
	}

	node := &OSMNode{GraphID: graph.Invalid}
	node.LatLng.Lat = float32(lat)
	node.LatLng.Lng = float32(lng)
	for key, value := range results {
		node.applyTag(key, value)
		switch key {
		case "exit_to":
			if value != "" {
				p.data.ExitToText[osmID] = value
			}
		case "ref":
			if value != "" {
				p.data.RefText[osmID] = value
			}
		}
	}

	p.data.Nodes[osmID] = node
	p.data.NodeOrder = append(p.data.NodeOrder, osmID)
	return nil
}
