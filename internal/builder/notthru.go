package builder

import (
	"github.com/mjolnir-routing/mjolnir/internal/graph"
	"github.com/mjolnir-routing/mjolnir/internal/osmgraph"
)

// maxNotThruExpansions bounds the search per edge.
const maxNotThruExpansions = 256

// isNotThruEdge reports whether the edge entering endNode leads into a
// region with no exit other than itself. Breadth-first from the end node,
// never revisiting, excluding the entering edge:
//
//   - reaching the start node, or any tertiary-or-better edge, proves a
//     way through;
//   - exhausting the frontier within the bound proves there is none;
//   - hitting the bound with work remaining is treated as thru, the
//     conservative answer.
func isNotThruEdge(data *osmgraph.Data, startNode, endNode uint64, startEdgeIndex uint32) bool {
	visited := map[uint64]struct{}{endNode: {}}
	frontier := []uint64{endNode}

	expansions := 0
	for len(frontier) > 0 {
		if expansions >= maxNotThruExpansions {
			return false
		}
		expansions++

		node := frontier[0]
		frontier = frontier[1:]

		nd, ok := data.Nodes[node]
		if !ok {
			continue
		}
		for _, edgeIndex := range nd.Edges {
			if edgeIndex == startEdgeIndex {
				continue
			}
			edge := &data.Edges[edgeIndex]
			other := edge.OtherNode(node)

			if other == startNode ||
				edge.Importance <= graph.RoadClassTertiaryUnclassified {
				return false
			}

			if _, seen := visited[other]; !seen {
				visited[other] = struct{}{}
				frontier = append(frontier, other)
			}
		}
	}
	return true
}
