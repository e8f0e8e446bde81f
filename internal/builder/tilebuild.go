package builder

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/mjolnir-routing/mjolnir/internal/geo"
	"github.com/mjolnir-routing/mjolnir/internal/graph"
	"github.com/mjolnir-routing/mjolnir/internal/logger"
	"github.com/mjolnir-routing/mjolnir/internal/osmgraph"
	"github.com/mjolnir-routing/mjolnir/internal/tile"
)

// AdminResolver maps a location to its ISO 3166-1 alpha-2 country code.
// The administrative-polygon importer supplies the real implementation; a
// nil resolver leaves every node in the unknown admin.
type AdminResolver interface {
	CountryISO(lat, lng float64) string
}

// edgeLength is the quantized whole-meter length stored in the packed
// record. Opposing-edge matching compares these, never floats.
func edgeLength(shape []geo.PointLL) uint32 {
	return uint32(math.Round(geo.PolylineLength(shape)))
}

// accessMasks computes the per-direction access bits for one orientation
// of a way. Reverse orientation swaps the roles of the way's forward and
// backward flags; pedestrian access is symmetric.
func accessMasks(way *osmgraph.OSMWay, forward bool) (fwd, rev uint16) {
	modes := [...]struct {
		fwdOK, bwdOK bool
		bit          uint16
	}{
		{way.AutoForward, way.AutoBackward, graph.AccessAuto},
		{way.TruckForward, way.TruckBackward, graph.AccessTruck},
		{way.BusForward, way.BusBackward, graph.AccessBus},
		{way.BikeForward, way.BikeBackward, graph.AccessBicycle},
		{way.EmergencyForward, way.EmergencyBackward, graph.AccessEmergency},
	}
	for _, m := range modes {
		if (m.fwdOK && forward) || (m.bwdOK && !forward) {
			fwd |= m.bit
		}
		if (m.fwdOK && !forward) || (m.bwdOK && forward) {
			rev |= m.bit
		}
	}
	if way.Pedestrian {
		fwd |= graph.AccessPedestrian
		rev |= graph.AccessPedestrian
	}
	return fwd, rev
}

// findOpposingIndex locates the opposing edge's local index at endNode:
// the incident edge joining the same node pair with the same quantized
// length. Returns the sentinel and logs when nothing matches; duplicates
// resolve to the lowest local index and are counted.
func findOpposingIndex(data *osmgraph.Data, endNode, startNode uint64, length uint32, dupCount *uint64) uint32 {
	nd, ok := data.Nodes[endNode]
	if !ok {
		return tile.MaxEdgesPerNode
	}
	found := uint32(tile.MaxEdgesPerNode)
	for n, edgeIndex := range nd.Edges {
		edge := &data.Edges[edgeIndex]
		joins := (edge.SourceNode == endNode && edge.TargetNode == startNode) ||
			(edge.TargetNode == endNode && edge.SourceNode == startNode)
		if joins && edgeLength(edge.Shape) == length {
			if found != tile.MaxEdgesPerNode {
				*dupCount++
				continue
			}
			found = uint32(n)
		}
	}
	if found == tile.MaxEdgesPerNode {
		logger.Get().Error("Opposing directed edge not found",
			zap.Uint64("start_node", startNode),
			zap.Uint64("end_node", endNode))
	}
	return found
}

// buildTileStats carries per-tile build counters back to the driver.
type buildTileStats struct {
	duplicateOpposing uint64
	bytesWritten      int
}

// buildTile emits one tile: a NodeInfo per assigned node and, in sorted
// incident order, one DirectedEdge per edge at the node.
func buildTile(data *osmgraph.Data, b *tile.Builder, nodeIDs []uint64,
	admins AdminResolver, hier *graph.Hierarchy) (buildTileStats, error) {

	var stats buildTileStats
	thisTile := b.ID().TileBase()

	directedEdgeCount := uint32(0)
	for _, osmNodeID := range nodeIDs {
		node := data.Nodes[osmNodeID]

		var ni tile.NodeInfo
		ni.LatLng = node.LatLng
		ni.EdgeIndex = directedEdgeCount
		ni.SetEdgeCount(uint32(len(node.Edges)))
		ni.SetType(node.Type())
		if admins != nil {
			ni.AdminIndex = b.AddAdmin(admins.CountryISO(
				float64(node.LatLng.Lat), float64(node.LatLng.Lng)))
		}

		bestRC := graph.RoadClassOther
		nodeAccess := uint16(0)
		edges := make([]tile.DirectedEdge, 0, len(node.Edges))

		for localIdx, edgeIndex := range node.Edges {
			edge := &data.Edges[edgeIndex]
			way := &data.Ways[edge.WayIndex]

			var de tile.DirectedEdge
			length := edgeLength(edge.Shape)
			de.SetLength(length)
			de.SetSpeed(uint8(math.Min(float64(way.SpeedKPH), 255)))
			de.SetTruckSpeed(uint8(math.Min(float64(way.TruckSpeedKPH), 255)))
			de.SetClassification(way.RoadClass)

			use := way.Use
			if way.Ferry {
				use = graph.UseFerry
			}
			if way.Rail {
				use = graph.UseRailFerry
			}
			de.SetUse(use)

			de.SetToll(way.Toll)
			de.SetDestOnly(way.DestinationOnly)
			if !way.DestinationOnly {
				de.SetDestOnly(way.NoThruTraffic)
			}
			if way.Surface {
				de.SetSurface(graph.SurfaceGravel)
			}
			de.SetCycleLane(way.CycleLane)
			de.SetLanes(way.Lanes)
			de.SetTunnel(way.Tunnel)
			de.SetRoundabout(way.Roundabout)
			de.SetBridge(way.Bridge)
			de.SetLink(way.Link)
			de.SetBikeNetwork(way.BikeNetworkMask)
			de.SetTruckRoute(way.TruckRoute)
			if way.TaggedSpeed {
				de.SetSpeedType(graph.SpeedTagged)
			}

			forward := edge.SourceNode == osmNodeID
			if !forward && edge.TargetNode != osmNodeID {
				return stats, fmt.Errorf(
					"%w: way %d edge %d joins %d and %d, neither is node %d",
					graph.ErrInvariantViolated, way.OSMID, edgeIndex,
					edge.SourceNode, edge.TargetNode, osmNodeID)
			}
			de.SetForward(forward)

			fwdAccess, revAccess := accessMasks(way, forward)
			de.SetForwardAccess(fwdAccess)
			de.SetReverseAccess(revAccess)
			nodeAccess |= fwdAccess

			endNodeOSM := edge.OtherNode(osmNodeID)
			endNode := data.Nodes[endNodeOSM].GraphID
			if !endNode.Valid() {
				return stats, fmt.Errorf("%w: node %d has no graph id",
					graph.ErrInvariantViolated, endNodeOSM)
			}
			de.SetEndNode(endNode)

			// The opposing index resolves now only when the end node is
			// local; the validator finalizes cross-tile cases.
			if endNode.TileBase() == thisTile {
				de.SetOppLocalIdx(findOpposingIndex(
					data, endNodeOSM, osmNodeID, length, &stats.duplicateOpposing))
			} else {
				de.SetOppLocalIdx(tile.MaxEdgesPerNode)
			}

			if way.RoadClass <= graph.RoadClassTertiaryUnclassified {
				de.SetNotThru(false)
			} else {
				de.SetNotThru(isNotThruEdge(data, osmNodeID, endNodeOSM, edgeIndex))
			}

			offset, err := b.AddEdgeInfo(way.OSMID, edge.SourceNode,
				edge.TargetNode, edge.Shape, way.Names())
			if err != nil {
				return stats, err
			}
			de.SetEdgeInfoOffset(offset)

			addExitSigns(b, data, way, node, osmNodeID,
				directedEdgeCount+uint32(localIdx), &de, fwdAccess)

			if way.RoadClass < bestRC {
				bestRC = way.RoadClass
			}
			edges = append(edges, de)
		}

		ni.SetBestRoadClass(bestRC)
		ni.SetAccess(nodeAccess)
		directedEdgeCount += uint32(len(node.Edges))
		b.AddNodeAndDirectedEdges(ni, edges)
	}

	written, err := b.Store(hier)
	if err != nil {
		return stats, err
	}
	stats.bytesWritten = written
	return stats, nil
}

// addExitSigns emits sign records for ramp edges leaving a junction. Exit
// texts come from the node (exit_to, ref) and the way (junction_ref,
// destination refs).
func addExitSigns(b *tile.Builder, data *osmgraph.Data, way *osmgraph.OSMWay,
	node *osmgraph.OSMNode, osmNodeID uint64, edgeIndex uint32,
	de *tile.DirectedEdge, fwdAccess uint16) {

	if !way.Link || fwdAccess&graph.AccessAuto == 0 {
		return
	}

	have := false
	if node.Ref {
		if text := data.RefText[osmNodeID]; text != "" {
			b.AddSign(edgeIndex, tile.SignExitNumber, text)
			have = true
		}
	}
	if way.JunctionRef != "" {
		b.AddSign(edgeIndex, tile.SignExitNumber, way.JunctionRef)
		have = true
	}
	if way.DestinationRef != "" {
		b.AddSign(edgeIndex, tile.SignExitBranch, way.DestinationRef)
		have = true
	}
	if way.DestinationRefTo != "" {
		b.AddSign(edgeIndex, tile.SignExitToward, way.DestinationRefTo)
		have = true
	}
	if way.Destination != "" {
		b.AddSign(edgeIndex, tile.SignExitToward, way.Destination)
		have = true
	}
	if node.ExitTo {
		if text := data.ExitToText[osmNodeID]; text != "" {
			b.AddSign(edgeIndex, tile.SignExitToward, text)
			have = true
		}
	}
	de.SetExitSign(have)
}
