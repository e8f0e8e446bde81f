package osmgraph

import (
	"github.com/mjolnir-routing/mjolnir/internal/geo"
	"github.com/mjolnir-routing/mjolnir/internal/graph"
)

// Edge is the intermediate, pre-tile road segment between two graph nodes.
// The shape includes both endpoints. Edges are read-only after sorting.
type Edge struct {
	SourceNode uint64
	TargetNode uint64
	WayIndex   uint32
	Shape      []geo.PointLL

	DriveableForward bool
	DriveableReverse bool
	Importance       graph.RoadClass
}

// newEdge starts an edge at a way's node.
func newEdge(source uint64, wayIndex uint32, start geo.PointLL, way *OSMWay) Edge {
	return Edge{
		SourceNode:       source,
		WayIndex:         wayIndex,
		Shape:            []geo.PointLL{start},
		DriveableForward: way.AutoForward,
		DriveableReverse: way.AutoBackward,
		Importance:       way.RoadClass,
	}
}

// DriveableAt reports drivability of the edge leaving the given node.
func (e *Edge) DriveableAt(osmNodeID uint64) bool {
	if e.SourceNode == osmNodeID {
		return e.DriveableForward
	}
	return e.DriveableReverse
}

// OtherNode returns the endpoint opposite the given node.
func (e *Edge) OtherNode(osmNodeID uint64) uint64 {
	if e.SourceNode == osmNodeID {
		return e.TargetNode
	}
	return e.SourceNode
}
