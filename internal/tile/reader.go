package tile

import (
	"fmt"
	"os"

	"github.com/edsrzf/mmap-go"

	"github.com/mjolnir-routing/mjolnir/internal/graph"
)

// Tile is a read-only view over a stored tile file. The file is memory
// mapped: many tiles can be held open by the validator's shared cache
// without paging the whole store into heap.
type Tile struct {
	file *os.File
	mmap mmap.MMap
	data []byte
	hdr  Header
}

// Open maps a tile file read-only.
func Open(path string) (*Tile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open tile: %w", err)
	}
	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to map tile: %w", err)
	}
	hdr, err := decodeHeader(m)
	if err != nil {
		m.Unmap()
		f.Close()
		return nil, err
	}
	return &Tile{file: f, mmap: m, data: m, hdr: hdr}, nil
}

// Close unmaps and closes the tile.
func (t *Tile) Close() error {
	if t.mmap != nil {
		t.mmap.Unmap()
		t.mmap = nil
	}
	if t.file != nil {
		err := t.file.Close()
		t.file = nil
		return err
	}
	return nil
}

// Header returns the tile header.
func (t *Tile) Header() Header { return t.hdr }

// ID returns the tile's base GraphId.
func (t *Tile) ID() graph.GraphId { return t.hdr.GraphID }

// Size returns the tile size in bytes.
func (t *Tile) Size() int { return len(t.data) }

// Node decodes the node record at index i.
func (t *Tile) Node(i uint32) (NodeInfo, error) {
	if i >= t.hdr.NodeCount {
		return NodeInfo{}, fmt.Errorf("%w: node %d of %d in tile %s",
			graph.ErrInvariantViolated, i, t.hdr.NodeCount, t.hdr.GraphID)
	}
	return decodeNodeInfo(t.data[t.hdr.NodesOffset+i*NodeInfoSize:]), nil
}

// DirectedEdge decodes the directed edge record at index i.
func (t *Tile) DirectedEdge(i uint32) (DirectedEdge, error) {
	if i >= t.hdr.DirectedEdgeCount {
		return DirectedEdge{}, fmt.Errorf("%w: directed edge %d of %d in tile %s",
			graph.ErrInvariantViolated, i, t.hdr.DirectedEdgeCount, t.hdr.GraphID)
	}
	return decodeDirectedEdge(t.data[t.hdr.EdgesOffset+i*DirectedEdgeSize:]), nil
}

// EdgeInfo decodes the shared record at the given blob offset.
func (t *Tile) EdgeInfo(offset uint32) (EdgeInfo, bool) {
	return decodeEdgeInfo(t.data[t.hdr.EdgeInfoOffset:t.hdr.NamesOffset], offset)
}

// Name decodes a string from the tile's name blob.
func (t *Tile) Name(offset uint32) string {
	return DecodeName(t.data[t.hdr.NamesOffset:t.hdr.EndOffset], offset)
}

// Sign decodes the sign record at index i.
func (t *Tile) Sign(i uint32) Sign {
	return decodeSign(t.data[t.hdr.SignsOffset+i*SignSize:])
}

// SignsForEdge returns the signs attached to a directed edge index. The
// signs array is sorted by edge index, so the run is located by scan from
// the binary-searched lower bound.
func (t *Tile) SignsForEdge(edgeIndex uint32) []Sign {
	lo, hi := uint32(0), t.hdr.SignCount
	for lo < hi {
		mid := (lo + hi) / 2
		if t.Sign(mid).EdgeIndex < edgeIndex {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	var signs []Sign
	for i := lo; i < t.hdr.SignCount; i++ {
		s := t.Sign(i)
		if s.EdgeIndex != edgeIndex {
			break
		}
		signs = append(signs, s)
	}
	return signs
}

// Admin returns the admin record at index i, or the unknown admin when the
// index is out of range.
func (t *Tile) Admin(i uint16) Admin {
	if uint32(i) >= t.hdr.AdminCount {
		return Admin{}
	}
	return decodeAdmin(t.data[t.hdr.AdminsOffset+uint32(i)*AdminSize:])
}
