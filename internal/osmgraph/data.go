package osmgraph

import (
	"fmt"
	"sort"

	"github.com/mjolnir-routing/mjolnir/internal/graph"
	"github.com/mjolnir-routing/mjolnir/internal/idtable"
)

// Data is the single owned context holding the parsed OSM graph between
// phases. It is written single-threaded by the parser and the construction
// phases, then treated read-only during the parallel tile build.
type Data struct {
	Ways  []OSMWay
	Nodes map[uint64]*OSMNode

	// NodeOrder lists node ids in parse order. Phases that must be
	// deterministic iterate this instead of the Nodes map.
	NodeOrder []uint64

	Edges []Edge

	// TiledNodes maps a tile id to the OSM node ids assigned to it, in
	// tiling order. A node's index in its list is its GraphId index.
	TiledNodes map[uint32][]uint64

	// ExitToText and RefText keep the sign strings of nodes whose
	// attributes flag them.
	ExitToText map[uint64]string
	RefText    map[uint64]string

	// Shape marks every node referenced by any routable way; Intersection
	// marks way endpoints and nodes shared by two or more ways.
	Shape        *idtable.IdTable
	Intersection *idtable.IdTable

	// Counts accumulated during parsing, used for preallocation and
	// progress reporting.
	ExpectedNodes   uint64
	ExpectedEdges   uint64
	SpeedAssigned   uint64 // ways that fell back to the classified speed
	RejectedNoSpeed uint64 // ways dropped for missing speed and default_speed
}

// NewData creates an empty context with bitsets sized for the id bound.
func NewData(maxOSMID uint64) *Data {
	return &Data{
		Nodes:        make(map[uint64]*OSMNode),
		TiledNodes:   make(map[uint32][]uint64),
		ExitToText:   make(map[uint64]string),
		RefText:      make(map[uint64]string),
		Shape:        idtable.New(maxOSMID),
		Intersection: idtable.New(maxOSMID),
	}
}

// ConstructEdges walks every way in index order and splits it into edges
// at intersection nodes. Each emitted edge's index is recorded on both of
// its end nodes.
func (d *Data) ConstructEdges() error {
	d.Edges = make([]Edge, 0, d.ExpectedEdges)

	for wayIndex := range d.Ways {
		way := &d.Ways[wayIndex]

		nodeID := way.Refs[0]
		node, ok := d.Nodes[nodeID]
		if !ok {
			return fmt.Errorf("%w: way %d references missing node %d",
				graph.ErrInvariantViolated, way.OSMID, nodeID)
		}
		edge := newEdge(nodeID, uint32(wayIndex), node.LatLng, way)
		node.Edges = append(node.Edges, uint32(len(d.Edges)))

		for i := 1; i < len(way.Refs); i++ {
			nodeID = way.Refs[i]
			nd, ok := d.Nodes[nodeID]
			if !ok {
				return fmt.Errorf("%w: way %d references missing node %d",
					graph.ErrInvariantViolated, way.OSMID, nodeID)
			}
			edge.Shape = append(edge.Shape, nd.LatLng)

			// A node used by more than one way, or the end of the way,
			// is a node of the road network graph.
			if d.Intersection.IsSet(nodeID) {
				edge.TargetNode = nodeID
				nd.Edges = append(nd.Edges, uint32(len(d.Edges)))
				d.Edges = append(d.Edges, edge)

				if i < len(way.Refs)-1 {
					edge = newEdge(nodeID, uint32(wayIndex), nd.LatLng, way)
					nd.Edges = append(nd.Edges, uint32(len(d.Edges)))
				}
			}
		}
	}
	return nil
}

// SortEdges orders each node's incident edge list by drivability at the
// node (driveable first) then importance (more important first). The sort
// is stable so ties keep insertion order.
func (d *Data) SortEdges() {
	for _, nodeID := range d.NodeOrder {
		node := d.Nodes[nodeID]
		sort.SliceStable(node.Edges, func(i, j int) bool {
			e1, e2 := &d.Edges[node.Edges[i]], &d.Edges[node.Edges[j]]
			d1, d2 := e1.DriveableAt(nodeID), e2.DriveableAt(nodeID)
			if d1 != d2 {
				return d1
			}
			return e1.Importance < e2.Importance
		})
	}
}

// TileNodes assigns every node with at least one edge to a tile of the
// grid and gives it its GraphId. Nodes without edges get no id and are
// dropped from the output.
func (d *Data) TileNodes(tiles graph.Tiles, level uint8) {
	for _, nodeID := range d.NodeOrder {
		node := d.Nodes[nodeID]
		if len(node.Edges) == 0 {
			continue
		}
		tileID := tiles.TileID(float64(node.LatLng.Lat), float64(node.LatLng.Lng))
		list := append(d.TiledNodes[tileID], nodeID)
		d.TiledNodes[tileID] = list
		node.GraphID = graph.NewGraphId(tileID, level, uint32(len(list)-1))
	}
}
