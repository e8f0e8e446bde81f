package tile

import (
	"encoding/binary"
	"fmt"

	"github.com/mjolnir-routing/mjolnir/internal/graph"
)

// VersionTag identifies the tile ABI. Readers refuse files whose tag does
// not match; there is no version negotiation.
const VersionTag uint32 = 0x4D4A4C01 // "MJL" + layout revision 1

// HeaderSize is the fixed header size in bytes.
const HeaderSize = 88

// Header is the fixed-width descriptor at the start of every tile file.
// All section offsets are absolute byte positions from the file start.
//
// Serialized little-endian:
//
//	version tag u32 | pad u32 | graph id u64 |
//	node count u32 | directed edge count u32 | sign count u32 | admin count u32 |
//	nodes offset u32 | edges offset u32 | signs offset u32 | admins offset u32 |
//	edgeinfo offset u32 | names offset u32 | end offset u32 | pad u32 |
//	base lat f32 | base lng f32 |
//	bbox min lat f32 | min lng f32 | max lat f32 | max lng f32
type Header struct {
	GraphID graph.GraphId

	NodeCount         uint32
	DirectedEdgeCount uint32
	SignCount         uint32
	AdminCount        uint32

	NodesOffset    uint32
	EdgesOffset    uint32
	SignsOffset    uint32
	AdminsOffset   uint32
	EdgeInfoOffset uint32
	NamesOffset    uint32
	EndOffset      uint32

	BaseLat float32
	BaseLng float32
	MinLat  float32
	MinLng  float32
	MaxLat  float32
	MaxLng  float32
}

func (h *Header) appendTo(buf []byte) []byte {
	buf = binary.LittleEndian.AppendUint32(buf, VersionTag)
	buf = binary.LittleEndian.AppendUint32(buf, 0)
	buf = binary.LittleEndian.AppendUint64(buf, uint64(h.GraphID))
	for _, v := range []uint32{
		h.NodeCount, h.DirectedEdgeCount, h.SignCount, h.AdminCount,
		h.NodesOffset, h.EdgesOffset, h.SignsOffset, h.AdminsOffset,
		h.EdgeInfoOffset, h.NamesOffset, h.EndOffset, 0,
	} {
		buf = binary.LittleEndian.AppendUint32(buf, v)
	}
	for _, f := range []float32{h.BaseLat, h.BaseLng, h.MinLat, h.MinLng, h.MaxLat, h.MaxLng} {
		buf = binary.LittleEndian.AppendUint32(buf, floatBits(f))
	}
	return buf
}

func decodeHeader(buf []byte) (Header, error) {
	var h Header
	if len(buf) < HeaderSize {
		return h, fmt.Errorf("%w: tile shorter than header", graph.ErrMalformedInput)
	}
	if tag := binary.LittleEndian.Uint32(buf); tag != VersionTag {
		return h, fmt.Errorf("%w: got 0x%08X want 0x%08X",
			graph.ErrTileVersionMismatch, tag, VersionTag)
	}
	h.GraphID = graph.GraphId(binary.LittleEndian.Uint64(buf[8:]))

	u := func(i int) uint32 { return binary.LittleEndian.Uint32(buf[16+4*i:]) }
	h.NodeCount, h.DirectedEdgeCount, h.SignCount, h.AdminCount = u(0), u(1), u(2), u(3)
	h.NodesOffset, h.EdgesOffset, h.SignsOffset, h.AdminsOffset = u(4), u(5), u(6), u(7)
	h.EdgeInfoOffset, h.NamesOffset, h.EndOffset = u(8), u(9), u(10)

	f := func(i int) float32 { return bitsFloat(binary.LittleEndian.Uint32(buf[64+4*i:])) }
	h.BaseLat, h.BaseLng = f(0), f(1)
	h.MinLat, h.MinLng, h.MaxLat, h.MaxLng = f(2), f(3), f(4), f(5)
	return h, nil
}
