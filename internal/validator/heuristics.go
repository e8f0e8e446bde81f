package validator

import (
	"github.com/mjolnir-routing/mjolnir/internal/graph"
	"github.com/mjolnir-routing/mjolnir/internal/tile"
)

// The one-way heuristics flag auto one-way edges whose surroundings make
// the mapped direction implausible. Flagged ways land on the suspect list
// for human review; nothing in the tile changes.

func autoForward(e *tile.DirectedEdge) bool {
	return e.ForwardAccess()&graph.AccessAuto != 0
}

func autoReverse(e *tile.DirectedEdge) bool {
	return e.ReverseAccess()&graph.AccessAuto != 0
}

// isPedestrianTerminal reports whether every other edge at the start node
// is pedestrian-only, leaving the one-way nowhere to go by car.
func isPedestrianTerminal(tb *tile.Builder, ni *tile.NodeInfo, skipIdx uint32) bool {
	if ni.EdgeCount() <= 1 {
		return false
	}
	for i := uint32(0); i < ni.EdgeCount(); i++ {
		if i == skipIdx {
			continue
		}
		e := tb.DirectedEdge(ni.EdgeIndex + i)
		pedOnly := (e.ForwardAccess()&graph.AccessPedestrian != 0 ||
			e.ReverseAccess()&graph.AccessPedestrian != 0) &&
			!autoForward(e) && !autoReverse(e)
		if !pedOnly {
			return false
		}
	}
	return true
}

// isLoopTerminal reports whether a self-loop's node has only inbound or
// only outbound auto edges, which makes the loop unenterable or
// unleavable. Bidirectional edges count on both sides.
func isLoopTerminal(tb *tile.Builder, ni *tile.NodeInfo) bool {
	var inbound, outbound int
	for i := uint32(0); i < ni.EdgeCount(); i++ {
		e := tb.DirectedEdge(ni.EdgeIndex + i)
		if autoForward(e) {
			outbound++
		}
		if autoReverse(e) {
			inbound++
		}
	}
	return (outbound >= 2 && inbound == 0) || (inbound >= 2 && outbound == 0)
}

// isReversedOneway reports whether both endpoints of a one-way edge see
// only inbound auto traffic: a dead end whose one-way was likely mapped
// backwards.
func isReversedOneway(tb *tile.Builder, cache *Cache, ni *tile.NodeInfo, de *tile.DirectedEdge) (bool, error) {
	var inbound, outbound int
	for i := uint32(0); i < ni.EdgeCount(); i++ {
		e := tb.DirectedEdge(ni.EdgeIndex + i)
		if autoForward(e) && !autoReverse(e) {
			outbound++
		}
		if !autoForward(e) && autoReverse(e) {
			inbound++
		}
	}
	if outbound != 0 || inbound == 0 {
		return false, nil
	}

	endNode := de.EndNode()
	inbound, outbound = 0, 0
	if endNode.TileBase() == tb.ID() {
		endNI := tb.Node(endNode.Index())
		for i := uint32(0); i < endNI.EdgeCount(); i++ {
			e := tb.DirectedEdge(endNI.EdgeIndex + i)
			if autoForward(e) && !autoReverse(e) {
				outbound++
			}
			if !autoForward(e) && autoReverse(e) {
				inbound++
			}
		}
	} else {
		t, release, err := cache.Get(endNode)
		if err != nil {
			return false, err
		}
		defer release()
		endNI, err := t.Node(endNode.Index())
		if err != nil {
			return false, err
		}
		for i := uint32(0); i < endNI.EdgeCount(); i++ {
			e, err := t.DirectedEdge(endNI.EdgeIndex + i)
			if err != nil {
				return false, err
			}
			if autoForward(&e) && !autoReverse(&e) {
				outbound++
			}
			if !autoForward(&e) && autoReverse(&e) {
				inbound++
			}
		}
	}
	return outbound == 0 && inbound > 0, nil
}
