package tile

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/mjolnir-routing/mjolnir/internal/geo"
	"github.com/mjolnir-routing/mjolnir/internal/graph"
)

// Builder accumulates one tile's worth of graph data and serializes it.
// One builder instance handles one tile at a time; Reset prepares it for
// the next.
type Builder struct {
	id    graph.GraphId
	tiles graph.Tiles

	nodes  []NodeInfo
	edges  []DirectedEdge
	signs  []Sign
	admins []Admin

	edgeInfoBlob    []byte
	edgeInfoOffsets map[edgeInfoKey]uint32
	names           *NamePool
	adminIndexes    map[string]uint16
}

// NewBuilder creates a builder for the given tile of a grid.
func NewBuilder(id graph.GraphId, tiles graph.Tiles) *Builder {
	b := &Builder{}
	b.Reset(id, tiles)
	return b
}

// Reset clears all tile state and retargets the builder.
func (b *Builder) Reset(id graph.GraphId, tiles graph.Tiles) {
	b.id = id.TileBase()
	b.tiles = tiles
	b.nodes = b.nodes[:0]
	b.edges = b.edges[:0]
	b.signs = b.signs[:0]
	b.admins = b.admins[:0]
	b.edgeInfoBlob = b.edgeInfoBlob[:0]
	b.edgeInfoOffsets = make(map[edgeInfoKey]uint32)
	b.names = NewNamePool()
	b.adminIndexes = make(map[string]uint16)
	// Index 0 is the unknown admin.
	b.admins = append(b.admins, Admin{})
	b.adminIndexes[""] = 0
}

// ID returns the tile's base GraphId.
func (b *Builder) ID() graph.GraphId { return b.id }

// NodeCount returns the number of nodes added so far.
func (b *Builder) NodeCount() uint32 { return uint32(len(b.nodes)) }

// EdgeCount returns the number of directed edges added so far.
func (b *Builder) EdgeCount() uint32 { return uint32(len(b.edges)) }

// Node returns a pointer to an added node record.
func (b *Builder) Node(i uint32) *NodeInfo { return &b.nodes[i] }

// DirectedEdge returns a pointer to an added directed edge record.
func (b *Builder) DirectedEdge(i uint32) *DirectedEdge { return &b.edges[i] }

// AddNodeAndDirectedEdges appends a node and its outgoing edges. The node's
// edge index and count must already be set by the caller; edges follow the
// node's sorted incident order.
func (b *Builder) AddNodeAndDirectedEdges(node NodeInfo, edges []DirectedEdge) {
	b.nodes = append(b.nodes, node)
	b.edges = append(b.edges, edges...)
}

// AddEdgeInfo interns the shared shape-and-names record for the unordered
// node pair (osmA, osmB) and returns its byte offset. Directed edges of
// both orientations receive the same offset.
func (b *Builder) AddEdgeInfo(wayID, osmA, osmB uint64, shape []geo.PointLL, names []string) (uint32, error) {
	encoded := EncodeShape(shape)
	key := makeEdgeInfoKey(osmA, osmB, encoded)
	if off, ok := b.edgeInfoOffsets[key]; ok {
		return off, nil
	}

	off := uint32(len(b.edgeInfoBlob))
	if off > MaxEdgeInfoOffset {
		return 0, fmt.Errorf("%w: edgeinfo blob exceeds offset field in tile %s",
			graph.ErrInvariantViolated, b.id)
	}
	nameOffsets := make([]uint32, 0, len(names))
	for _, name := range names {
		if name == "" {
			continue
		}
		nameOffsets = append(nameOffsets, b.names.Add(name))
	}
	b.edgeInfoBlob = appendEdgeInfo(b.edgeInfoBlob, wayID, nameOffsets, encoded)
	b.edgeInfoOffsets[key] = off
	return off, nil
}

// EdgeInfo decodes the record at a previously returned offset.
func (b *Builder) EdgeInfo(offset uint32) (EdgeInfo, bool) {
	return decodeEdgeInfo(b.edgeInfoBlob, offset)
}

// Name decodes a string from the tile's name pool.
func (b *Builder) Name(offset uint32) string { return b.names.Get(offset) }

// AddSign appends a sign record for a directed edge.
func (b *Builder) AddSign(edgeIndex uint32, signType SignType, text string) {
	b.signs = append(b.signs, Sign{
		EdgeIndex:  edgeIndex,
		TextOffset: b.names.Add(text),
		Type:       signType,
	})
}

// SignsForEdge returns the signs attached to a directed edge index.
func (b *Builder) SignsForEdge(edgeIndex uint32) []Sign {
	var signs []Sign
	for i := range b.signs {
		if b.signs[i].EdgeIndex == edgeIndex {
			signs = append(signs, b.signs[i])
		}
	}
	return signs
}

// AddAdmin interns a country ISO code and returns its admin index.
func (b *Builder) AddAdmin(countryISO string) uint16 {
	if idx, ok := b.adminIndexes[countryISO]; ok {
		return idx
	}
	idx := uint16(len(b.admins))
	b.admins = append(b.admins, Admin{
		CountryISO: countryISO,
		NameOffset: b.names.Add(countryISO),
	})
	b.adminIndexes[countryISO] = idx
	return idx
}

// Admin returns an admin record by index.
func (b *Builder) Admin(idx uint16) Admin {
	if int(idx) >= len(b.admins) {
		return Admin{}
	}
	return b.admins[idx]
}

// serialize lays the tile out in its fixed section order.
func (b *Builder) serialize() ([]byte, error) {
	// Signs are sorted by edge index; the sort is stable so multiple signs
	// on one edge keep insertion order.
	sort.SliceStable(b.signs, func(i, j int) bool {
		return b.signs[i].EdgeIndex < b.signs[j].EdgeIndex
	})

	hdr := Header{
		GraphID:           b.id,
		NodeCount:         uint32(len(b.nodes)),
		DirectedEdgeCount: uint32(len(b.edges)),
		SignCount:         uint32(len(b.signs)),
		AdminCount:        uint32(len(b.admins)),
	}
	hdr.NodesOffset = HeaderSize
	hdr.EdgesOffset = hdr.NodesOffset + uint32(len(b.nodes))*NodeInfoSize
	hdr.SignsOffset = hdr.EdgesOffset + uint32(len(b.edges))*DirectedEdgeSize
	hdr.AdminsOffset = hdr.SignsOffset + uint32(len(b.signs))*SignSize
	hdr.EdgeInfoOffset = hdr.AdminsOffset + uint32(len(b.admins))*AdminSize
	hdr.NamesOffset = hdr.EdgeInfoOffset + uint32(len(b.edgeInfoBlob))
	hdr.EndOffset = hdr.NamesOffset + uint32(b.names.Size())

	minLat, minLng, maxLat, maxLng := b.tiles.TileBounds(b.id.TileID())
	hdr.BaseLat, hdr.BaseLng = float32(minLat), float32(minLng)
	hdr.MinLat, hdr.MinLng = float32(minLat), float32(minLng)
	hdr.MaxLat, hdr.MaxLng = float32(maxLat), float32(maxLng)

	buf := make([]byte, 0, hdr.EndOffset)
	buf = hdr.appendTo(buf)
	for i := range b.nodes {
		buf = appendNodeInfo(buf, &b.nodes[i])
	}
	for i := range b.edges {
		buf = appendDirectedEdge(buf, &b.edges[i])
	}
	for i := range b.signs {
		buf = appendSign(buf, &b.signs[i])
	}
	for i := range b.admins {
		buf = appendAdmin(buf, &b.admins[i])
	}
	buf = append(buf, b.edgeInfoBlob...)
	buf = append(buf, b.names.Blob()...)

	if uint32(len(buf)) != hdr.EndOffset {
		return nil, fmt.Errorf("%w: tile %s serialized to %d bytes, header says %d",
			graph.ErrInvariantViolated, b.id, len(buf), hdr.EndOffset)
	}
	return buf, nil
}

// Store writes the tile beneath the hierarchy's tile directory at its
// {level}/{tileid}.gph path.
// The write goes through a temp file and rename so a crash never leaves a
// truncated tile behind. Returns the tile size in bytes.
func (b *Builder) Store(hier *graph.Hierarchy) (int, error) {
	buf, err := b.serialize()
	if err != nil {
		return 0, err
	}
	path := hier.TilePath(b.id)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return 0, fmt.Errorf("failed to create tile directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return 0, fmt.Errorf("failed to create temp tile: %w", err)
	}
	if _, err := tmp.Write(buf); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return 0, fmt.Errorf("failed to write tile %s: %w", b.id, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return 0, fmt.Errorf("failed to close tile %s: %w", b.id, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return 0, fmt.Errorf("failed to publish tile %s: %w", b.id, err)
	}
	return len(buf), nil
}

// LoadBuilder reopens a stored tile for rebuild. Nodes and directed edges
// come back fully decoded and mutable; the variable sections are carried
// as raw bytes since a rebuild only rewrites the fixed arrays.
func LoadBuilder(hier *graph.Hierarchy, id graph.GraphId, tiles graph.Tiles) (*Builder, error) {
	data, err := os.ReadFile(hier.TilePath(id))
	if err != nil {
		return nil, fmt.Errorf("failed to read tile %s: %w", id, err)
	}
	hdr, err := decodeHeader(data)
	if err != nil {
		return nil, fmt.Errorf("tile %s: %w", id, err)
	}

	b := NewBuilder(id, tiles)
	b.nodes = make([]NodeInfo, hdr.NodeCount)
	for i := range b.nodes {
		b.nodes[i] = decodeNodeInfo(data[hdr.NodesOffset+uint32(i)*NodeInfoSize:])
	}
	b.edges = make([]DirectedEdge, hdr.DirectedEdgeCount)
	for i := range b.edges {
		b.edges[i] = decodeDirectedEdge(data[hdr.EdgesOffset+uint32(i)*DirectedEdgeSize:])
	}
	b.signs = make([]Sign, hdr.SignCount)
	for i := range b.signs {
		b.signs[i] = decodeSign(data[hdr.SignsOffset+uint32(i)*SignSize:])
	}
	b.admins = b.admins[:0]
	b.adminIndexes = make(map[string]uint16)
	for i := uint32(0); i < hdr.AdminCount; i++ {
		a := decodeAdmin(data[hdr.AdminsOffset+i*AdminSize:])
		b.admins = append(b.admins, a)
		b.adminIndexes[a.CountryISO] = uint16(i)
	}
	b.edgeInfoBlob = append(b.edgeInfoBlob, data[hdr.EdgeInfoOffset:hdr.NamesOffset]...)
	b.names = &NamePool{
		blob:    append([]byte(nil), data[hdr.NamesOffset:hdr.EndOffset]...),
		offsets: map[string]uint32{"": 0},
	}
	return b, nil
}
