package osmgraph

import (
	"github.com/mjolnir-routing/mjolnir/internal/geo"
	"github.com/mjolnir-routing/mjolnir/internal/graph"
)

// OSMNode is a node referenced by at least one routable way. Nodes are
// mutated only until edge construction completes; the tile build phases
// read them concurrently without locks.
type OSMNode struct {
	LatLng geo.PointLL

	ExitTo    bool
	Ref       bool
	Gate      bool
	Bollard   bool
	ModesMask uint8

	// Edges holds indexes into the owning Data's edge arena, in sorted
	// incident order after SortEdges.
	Edges []uint32

	// GraphID is assigned exactly once during tiling and never changes.
	GraphID graph.GraphId
}

// applyTag sets one classified node attribute.
func (n *OSMNode) applyTag(key, value string) {
	switch key {
	case "exit_to":
		n.ExitTo = value != ""
	case "ref":
		n.Ref = value != ""
	case "gate":
		n.Gate = value == "true"
	case "bollard":
		n.Bollard = value == "true"
	case "modes_mask":
		var mask uint8
		for _, c := range value {
			if c < '0' || c > '9' {
				return
			}
			mask = mask*10 + uint8(c-'0')
		}
		n.ModesMask = mask
	}
}

// Type classifies the node for its tile record.
func (n *OSMNode) Type() graph.NodeType {
	switch {
	case n.Gate:
		return graph.NodeTypeGate
	case n.Bollard:
		return graph.NodeTypeBollard
	}
	return graph.NodeTypeStreetIntersection
}
