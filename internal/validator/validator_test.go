package validator

import (
	"context"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/mjolnir-routing/mjolnir/internal/builder"
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
			d.Nodes[ref] = &osmgraph.OSMNode{LatLng: coords[ref], GraphID: graph.Invalid}
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
				{Level: 2, TileSizeDeg: 0.25, RoadClassCutoff: "other"},
			},
		},
		Concurrency: 2,
		TasksFile:   filepath.Join(t.TempDir(), "tasks.json"),
	}
}

// isoByLng assigns countries by a meridian, for border fixtures.
type isoByLng struct {
	border float64
	west   string
	east   string
}

func (r isoByLng) CountryISO(lat, lng float64) string {
	if lng < r.border {
		return r.west
	}
	return r.east
}

func buildAndValidate(t *testing.T, cfg *config.Config, d *osmgraph.Data, admins builder.AdminResolver) *Validator {
	t.Helper()
	g := builder.NewGraphBuilder(cfg, nil, admins)
	if err := g.BuildFromData(context.Background(), d); err != nil {
		t.Fatalf("BuildFromData: %v", err)
	}
	v := New(cfg)
	if _, err := v.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	return v
}

func openTileOf(t *testing.T, cfg *config.Config, d *osmgraph.Data, osmNode uint64) (*tile.Tile, graph.GraphId) {
	t.Helper()
	id := d.Nodes[osmNode].GraphID
	tl, err := tile.Open(cfg.BuildHierarchy().TilePath(id))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { tl.Close() })
	return tl, id
}

func TestValidatorResolvesCrossTileOpposing(t *testing.T) {
	// Two nodes in adjacent tiles joined by one bidirectional way. The
	// build leaves the opposing indexes unresolved; validation sets both.
	coords := map[uint64]geo.PointLL{
		1: {Lat: 52.10, Lng: 5.2490},
		2: {Lat: 52.10, Lng: 5.2510}, // across the 5.25 tile boundary
	}
	d := makeData(t, []wayFixture{
		{id: 1, refs: []uint64{1, 2}, class: graph.RoadClassResidential, fwd: true, bwd: true},
	}, coords)

	cfg := testConfig(t)
	buildAndValidate(t, cfg, d, nil)

	if d.Nodes[1].GraphID.TileID() == d.Nodes[2].GraphID.TileID() {
		t.Fatal("fixture nodes landed in the same tile")
	}

	for _, osmNode := range []uint64{1, 2} {
		tl, id := openTileOf(t, cfg, d, osmNode)
		ni, err := tl.Node(id.Index())
		if err != nil {
			t.Fatal(err)
		}
		e, err := tl.DirectedEdge(ni.EdgeIndex)
		if err != nil {
			t.Fatal(err)
		}
		if e.OppLocalIdx() == tile.MaxEdgesPerNode {
			t.Errorf("node %d edge still has no opposing index", osmNode)
		}
		if e.OppLocalIdx() != 0 {
			t.Errorf("node %d opposing index = %d, want 0", osmNode, e.OppLocalIdx())
		}
	}
}

func TestValidatorCountryCrossing(t *testing.T) {
	// A way crossing a border: both orientations get the flag; a second
	// way fully inside one country stays unflagged.
	coords := map[uint64]geo.PointLL{
		1: {Lat: 52.10, Lng: 5.1000},
		2: {Lat: 52.10, Lng: 5.1020}, // border at 5.101
		3: {Lat: 52.10, Lng: 5.1040},
	}
	d := makeData(t, []wayFixture{
		{id: 1, refs: []uint64{1, 2}, class: graph.RoadClassPrimary, fwd: true, bwd: true},
		{id: 2, refs: []uint64{2, 3}, class: graph.RoadClassPrimary, fwd: true, bwd: true},
	}, coords)

	cfg := testConfig(t)
	buildAndValidate(t, cfg, d, isoByLng{border: 5.101, west: "NL", east: "DE"})

	tl, _ := openTileOf(t, cfg, d, 1)
	hdr := tl.Header()
	crossings := 0
	for i := uint32(0); i < hdr.DirectedEdgeCount; i++ {
		e, err := tl.DirectedEdge(i)
		if err != nil {
			t.Fatal(err)
		}
		info, ok := tl.EdgeInfo(e.EdgeInfoOffset())
		if !ok {
			t.Fatal("missing edge info")
		}
		switch info.WayID {
		case 1:
			if !e.CountryCrossing() {
				t.Errorf("border edge %d not marked as country crossing", i)
			}
			crossings++
		case 2:
			if e.CountryCrossing() {
				t.Errorf("domestic edge %d marked as country crossing", i)
			}
		}
	}
	if crossings != 2 {
		t.Errorf("%d border orientations seen, want 2", crossings)
	}
}

func TestValidatorOnewayLoopStatistics(t *testing.T) {
	// A one-way loop's length lands in the one-way statistics; the loop
	// perimeter comes back out of the per-tile aggregate.
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
	g := builder.NewGraphBuilder(cfg, nil, nil)
	if err := g.BuildFromData(context.Background(), d); err != nil {
		t.Fatal(err)
	}
	st, err := New(cfg).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	var perimeter float64
	for _, e := range d.Edges {
		perimeter += geo.PolylineLength(e.Shape)
	}
	perimeterKM := perimeter / 1000

	var onewayKM float64
	for _, ts := range st.Tiles {
		for _, km := range ts.OneWayKM {
			onewayKM += km
		}
	}
	// Both orientations of a one-way contribute half each.
	if math.Abs(onewayKM-perimeterKM) > perimeterKM*0.02 {
		t.Errorf("one-way length = %f km, want ~%f km", onewayKM, perimeterKM)
	}
}

func TestValidatorWritesTasksFile(t *testing.T) {
	// A one-way street ending at a node whose only other edge is a
	// footpath: cars can get in but never out, so the way is suspect.
	coords := map[uint64]geo.PointLL{
		1: {Lat: 52.0900, Lng: 5.1100},
		2: {Lat: 52.0900, Lng: 5.1110},
		3: {Lat: 52.0900, Lng: 5.1120},
	}
	d := makeData(t, []wayFixture{
		{id: 1, refs: []uint64{1, 2}, class: graph.RoadClassResidential, fwd: true},
		// Pedestrian-only continuation (no auto access in either direction).
		{id: 2, refs: []uint64{2, 3}, class: graph.RoadClassOther},
	}, coords)

	cfg := testConfig(t)
	g := builder.NewGraphBuilder(cfg, nil, nil)
	if err := g.BuildFromData(context.Background(), d); err != nil {
		t.Fatal(err)
	}
	st, err := New(cfg).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if st.Roulette.Len() == 0 {
		t.Error("no suspect one-ways recorded")
	}

	data, err := os.ReadFile(cfg.TasksFile)
	if err != nil {
		t.Fatalf("tasks file not written: %v", err)
	}
	var tasks []struct {
		Geometries  json.RawMessage `json:"geometries"`
		Identifier  string          `json:"identifier"`
		Instruction string          `json:"instruction"`
	}
	if err := json.Unmarshal(data, &tasks); err != nil {
		t.Fatalf("tasks file is not valid JSON: %v", err)
	}
	if len(tasks) == 0 {
		t.Fatal("tasks file is empty")
	}
	for _, task := range tasks {
		if task.Instruction != "Check to see if the one way road is logical" {
			t.Errorf("instruction = %q", task.Instruction)
		}
		if task.Identifier == "" {
			t.Error("task missing way identifier")
		}
	}
}

func TestValidatorIdempotent(t *testing.T) {
	// Validation rewrites tiles in place; a second pass must produce
	// byte-identical output.
	coords := map[uint64]geo.PointLL{
		1: {Lat: 52.0900, Lng: 5.1100},
		2: {Lat: 52.0900, Lng: 5.1110},
	}
	d := makeData(t, []wayFixture{
		{id: 1, refs: []uint64{1, 2}, class: graph.RoadClassResidential, fwd: true, bwd: true},
	}, coords)

	cfg := testConfig(t)
	v := buildAndValidate(t, cfg, d, nil)

	path := cfg.BuildHierarchy().TilePath(d.Nodes[1].GraphID)
	first, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := v.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	second, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(first) != len(second) {
		t.Fatalf("tile size changed between passes: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("tiles differ at byte %d after revalidation", i)
		}
	}
}
