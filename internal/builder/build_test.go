package builder

import (
	"context"
	"os"
	"testing"

	"github.com/mjolnir-routing/mjolnir/internal/config"
	"github.com/mjolnir-routing/mjolnir/internal/geo"
	"github.com/mjolnir-routing/mjolnir/internal/graph"
	"github.com/mjolnir-routing/mjolnir/internal/osmgraph"
	"github.com/mjolnir-routing/mjolnir/internal/tile"
)

type wayFixture struct {
	id    uint64
	refs  []uint64
	class graph.RoadClass
	fwd   bool
	bwd   bool
}

// makeData assembles a parsed context the way the PBF passes would.
func makeData(t *testing.T, ways []wayFixture, coords map[uint64]geo.PointLL) *osmgraph.Data {
	t.Helper()
	d := osmgraph.NewData(1 << 20)

	for _, w := range ways {
		way := osmgraph.OSMWay{
			OSMID:        w.id,
			Refs:         w.refs,
			RoadClass:    w.class,
			AutoForward:  w.fwd,
			AutoBackward: w.bwd,
			Pedestrian:   true,
			SpeedKPH:     50,
		}
		for _, ref := range w.refs {
			if d.Shape.IsSet(ref) {
				d.Intersection.Set(ref)
			}
			d.Shape.Set(ref)
		}
		d.Intersection.Set(w.refs[0])
		d.Intersection.Set(w.refs[len(w.refs)-1])
		d.Ways = append(d.Ways, way)
	}
	for _, w := range ways {
		for _, ref := range w.refs {
			if _, ok := d.Nodes[ref]; ok {
				continue
			}
			ll, ok := coords[ref]
			if !ok {
				t.Fatalf("fixture missing coordinates for node %d", ref)
			}
			d.Nodes[ref] = &osmgraph.OSMNode{LatLng: ll, GraphID: graph.Invalid}
			d.NodeOrder = append(d.NodeOrder, ref)
		}
	}
	return d
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Hierarchy: config.HierarchyConfig{
			TileDir: t.TempDir(),
			Levels: []config.LevelConfig{
				{Level: 0, TileSizeDeg: 4, RoadClassCutoff: "primary"},
				{Level: 2, TileSizeDeg: 0.25, RoadClassCutoff: "other"},
			},
		},
		Concurrency: 2,
	}
}

// buildStore runs construct, sort, tile, and the parallel tile build.
func buildStore(t *testing.T, cfg *config.Config, d *osmgraph.Data, admins AdminResolver) *GraphBuilder {
	t.Helper()
	g := NewGraphBuilder(cfg, nil, admins)
	if err := g.BuildFromData(context.Background(), d); err != nil {
		t.Fatalf("BuildFromData: %v", err)
	}
	return g
}

func openOnlyTile(t *testing.T, g *GraphBuilder, d *osmgraph.Data) *tile.Tile {
	t.Helper()
	if len(d.TiledNodes) != 1 {
		t.Fatalf("fixture spans %d tiles, want 1", len(d.TiledNodes))
	}
	var tileID uint32
	for id := range d.TiledNodes {
		tileID = id
	}
	deepest := g.Hierarchy().Deepest()
	tl, err := tile.Open(g.Hierarchy().TilePath(graph.NewGraphId(tileID, deepest.Level, 0)))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { tl.Close() })
	return tl
}

func TestBuildSingleWayTile(t *testing.T) {
	// A single bidirectional two-node way: one tile, two nodes, two
	// directed edges, each the other's opposing edge.
	coords := map[uint64]geo.PointLL{
		10: {Lat: 52.090, Lng: 5.110},
		11: {Lat: 52.090, Lng: 5.1114}, // ~96m east
	}
	d := makeData(t, []wayFixture{
		{id: 1, refs: []uint64{10, 11}, class: graph.RoadClassResidential, fwd: true, bwd: true},
	}, coords)

	cfg := testConfig(t)
	g := buildStore(t, cfg, d, nil)
	tl := openOnlyTile(t, g, d)

	hdr := tl.Header()
	if hdr.NodeCount != 2 || hdr.DirectedEdgeCount != 2 {
		t.Fatalf("tile has %d nodes %d edges, want 2 and 2", hdr.NodeCount, hdr.DirectedEdgeCount)
	}

	for i := uint32(0); i < 2; i++ {
		e, err := tl.DirectedEdge(i)
		if err != nil {
			t.Fatal(err)
		}
		if e.Length() < 80 || e.Length() > 120 {
			t.Errorf("edge %d length = %dm, want ~96m", i, e.Length())
		}
		if e.OppLocalIdx() != 0 {
			t.Errorf("edge %d opp index = %d, want 0", i, e.OppLocalIdx())
		}
		// Opposing symmetry: same length, mirrored end nodes.
		opp, err := tl.DirectedEdge(1 - i)
		if err != nil {
			t.Fatal(err)
		}
		if e.Length() != opp.Length() {
			t.Errorf("opposing lengths differ: %d != %d", e.Length(), opp.Length())
		}
		if e.EndNode().Index() != 1-i {
			t.Errorf("edge %d ends at node %d, want %d", i, e.EndNode().Index(), 1-i)
		}
		if e.ForwardAccess()&graph.AccessAuto == 0 {
			t.Errorf("edge %d lost forward auto access", i)
		}
	}

	// Both orientations share one edge info record.
	e0, _ := tl.DirectedEdge(0)
	e1, _ := tl.DirectedEdge(1)
	if e0.EdgeInfoOffset() != e1.EdgeInfoOffset() {
		t.Error("opposing edges do not share edge info")
	}
	info, ok := tl.EdgeInfo(e0.EdgeInfoOffset())
	if !ok || info.WayID != 1 {
		t.Errorf("edge info way id = %d, want 1", info.WayID)
	}
}

func TestBuildThreeWayJunction(t *testing.T) {
	// A Y: three ways meeting at node 1. Four graph nodes, six directed
	// edges, edge_count 3 at the junction.
	coords := map[uint64]geo.PointLL{
		1: {Lat: 52.0900, Lng: 5.1100},
		2: {Lat: 52.0910, Lng: 5.1100},
		3: {Lat: 52.0890, Lng: 5.1110},
		4: {Lat: 52.0890, Lng: 5.1090},
	}
	d := makeData(t, []wayFixture{
		{id: 1, refs: []uint64{1, 2}, class: graph.RoadClassResidential, fwd: true, bwd: true},
		{id: 2, refs: []uint64{1, 3}, class: graph.RoadClassResidential, fwd: true, bwd: true},
		{id: 3, refs: []uint64{1, 4}, class: graph.RoadClassResidential, fwd: true, bwd: true},
	}, coords)

	cfg := testConfig(t)
	g := buildStore(t, cfg, d, nil)
	tl := openOnlyTile(t, g, d)

	hdr := tl.Header()
	if hdr.NodeCount != 4 || hdr.DirectedEdgeCount != 6 {
		t.Fatalf("tile has %d nodes %d edges, want 4 and 6", hdr.NodeCount, hdr.DirectedEdgeCount)
	}

	junction := d.Nodes[1].GraphID
	ni, err := tl.Node(junction.Index())
	if err != nil {
		t.Fatal(err)
	}
	if ni.EdgeCount() != 3 {
		t.Errorf("junction edge_count = %d, want 3", ni.EdgeCount())
	}

	// Node adjacency: every edge in a node's range ends somewhere else
	// and starts here (its opposing edge returns).
	for i := uint32(0); i < hdr.NodeCount; i++ {
		n, err := tl.Node(i)
		if err != nil {
			t.Fatal(err)
		}
		for j := uint32(0); j < n.EdgeCount(); j++ {
			e, err := tl.DirectedEdge(n.EdgeIndex + j)
			if err != nil {
				t.Fatal(err)
			}
			endNI, err := tl.Node(e.EndNode().Index())
			if err != nil {
				t.Fatal(err)
			}
			opp, err := tl.DirectedEdge(endNI.EdgeIndex + e.OppLocalIdx())
			if err != nil {
				t.Fatal(err)
			}
			if opp.EndNode().Index() != i {
				t.Errorf("opposing of node %d edge %d returns to node %d", i, j, opp.EndNode().Index())
			}
		}
	}
}

func TestBuildOnewayLoop(t *testing.T) {
	// Closed one-way loop of four intersection nodes. Each node carries
	// its outgoing and the incoming reverse orientation; nothing on the
	// loop is not-thru.
	coords := map[uint64]geo.PointLL{
		1: {Lat: 52.0900, Lng: 5.1100},
		2: {Lat: 52.0900, Lng: 5.1110},
		3: {Lat: 52.0910, Lng: 5.1110},
		4: {Lat: 52.0910, Lng: 5.1100},
	}
	d := makeData(t, []wayFixture{
		{id: 1, refs: []uint64{1, 2}, class: graph.RoadClassResidential, fwd: true},
		{id: 2, refs: []uint64{2, 3}, class: graph.RoadClassResidential, fwd: true},
		{id: 3, refs: []uint64{3, 4}, class: graph.RoadClassResidential, fwd: true},
		{id: 4, refs: []uint64{4, 1}, class: graph.RoadClassResidential, fwd: true},
	}, coords)

	cfg := testConfig(t)
	g := buildStore(t, cfg, d, nil)
	tl := openOnlyTile(t, g, d)

	hdr := tl.Header()
	if hdr.NodeCount != 4 || hdr.DirectedEdgeCount != 8 {
		t.Fatalf("tile has %d nodes %d edges, want 4 and 8", hdr.NodeCount, hdr.DirectedEdgeCount)
	}

	var driveableOut int
	for i := uint32(0); i < hdr.DirectedEdgeCount; i++ {
		e, err := tl.DirectedEdge(i)
		if err != nil {
			t.Fatal(err)
		}
		if e.NotThru() {
			t.Errorf("loop edge %d marked not-thru", i)
		}
		if e.ForwardAccess()&graph.AccessAuto != 0 {
			driveableOut++
		}
	}
	if driveableOut != 4 {
		t.Errorf("loop has %d driveable orientations, want 4", driveableOut)
	}
}

func TestNotThruCulDeSac(t *testing.T) {
	// A service-road stub hanging off a tertiary road. Edges into the
	// stub are not-thru; the tertiary road is never flagged.
	coords := map[uint64]geo.PointLL{
		1: {Lat: 52.0900, Lng: 5.1100},
		2: {Lat: 52.0900, Lng: 5.1110},
		3: {Lat: 52.0900, Lng: 5.1120},
		4: {Lat: 52.0910, Lng: 5.1110}, // stub end
	}
	d := makeData(t, []wayFixture{
		{id: 1, refs: []uint64{1, 2, 3}, class: graph.RoadClassTertiaryUnclassified, fwd: true, bwd: true},
		{id: 2, refs: []uint64{2, 4}, class: graph.RoadClassService, fwd: true, bwd: true},
	}, coords)

	cfg := testConfig(t)
	g := buildStore(t, cfg, d, nil)
	tl := openOnlyTile(t, g, d)

	hdr := tl.Header()
	for i := uint32(0); i < hdr.DirectedEdgeCount; i++ {
		e, err := tl.DirectedEdge(i)
		if err != nil {
			t.Fatal(err)
		}
		switch e.Classification() {
		case graph.RoadClassService:
			// The orientation entering the stub (toward node 4) has no
			// exit; leaving the stub reaches the tertiary immediately.
			into := e.EndNode() == d.Nodes[4].GraphID
			if into && !e.NotThru() {
				t.Error("edge into the cul-de-sac not marked not-thru")
			}
			if !into && e.NotThru() {
				t.Error("edge out of the cul-de-sac marked not-thru")
			}
		case graph.RoadClassTertiaryUnclassified:
			if e.NotThru() {
				t.Error("tertiary edge marked not-thru")
			}
		}
	}
}

func TestBestRoadClassPerNode(t *testing.T) {
	coords := map[uint64]geo.PointLL{
		1: {Lat: 52.0900, Lng: 5.1100},
		2: {Lat: 52.0900, Lng: 5.1110},
		3: {Lat: 52.0900, Lng: 5.1120},
	}
	d := makeData(t, []wayFixture{
		{id: 1, refs: []uint64{1, 2}, class: graph.RoadClassPrimary, fwd: true, bwd: true},
		{id: 2, refs: []uint64{2, 3}, class: graph.RoadClassService, fwd: true, bwd: true},
	}, coords)

	cfg := testConfig(t)
	g := buildStore(t, cfg, d, nil)
	tl := openOnlyTile(t, g, d)

	ni, err := tl.Node(d.Nodes[2].GraphID.Index())
	if err != nil {
		t.Fatal(err)
	}
	if ni.BestRoadClass() != graph.RoadClassPrimary {
		t.Errorf("best road class = %v, want primary", ni.BestRoadClass())
	}
}

func TestDeterministicTileBytes(t *testing.T) {
	// The same input must produce byte-identical tiles regardless of
	// worker count.
	build := func(concurrency int) []byte {
		coords := map[uint64]geo.PointLL{
			1: {Lat: 52.0900, Lng: 5.1100},
			2: {Lat: 52.0900, Lng: 5.1110},
			3: {Lat: 52.0910, Lng: 5.1110},
			4: {Lat: 52.0890, Lng: 5.1105},
		}
		d := makeData(t, []wayFixture{
			{id: 1, refs: []uint64{1, 2}, class: graph.RoadClassPrimary, fwd: true, bwd: true},
			{id: 2, refs: []uint64{2, 3}, class: graph.RoadClassResidential, fwd: true},
			{id: 3, refs: []uint64{2, 4}, class: graph.RoadClassService, fwd: true, bwd: true},
		}, coords)

		cfg := testConfig(t)
		cfg.Concurrency = concurrency
		g := buildStore(t, cfg, d, nil)

		var tileID uint32
		for id := range d.TiledNodes {
			tileID = id
		}
		deepest := g.Hierarchy().Deepest()
		data, err := os.ReadFile(g.Hierarchy().TilePath(graph.NewGraphId(tileID, deepest.Level, 0)))
		if err != nil {
			t.Fatal(err)
		}
		return data
	}

	one := build(1)
	eight := build(8)
	if len(one) != len(eight) {
		t.Fatalf("tile sizes differ: %d vs %d", len(one), len(eight))
	}
	for i := range one {
		if one[i] != eight[i] {
			t.Fatalf("tiles differ at byte %d", i)
		}
	}
}
