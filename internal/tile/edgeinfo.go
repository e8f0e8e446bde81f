package tile

import (
	"encoding/binary"
	"hash/fnv"

	"github.com/twpayne/go-polyline"

	"github.com/mjolnir-routing/mjolnir/internal/geo"
)

// EdgeInfo is the variable-width record shared by the one or two directed
// edges that traverse the same way section between the same pair of nodes.
//
// Blob layout per record, little-endian:
//
//	way id u64 | name count u8 | reserved u8 | shape byte length u16 |
//	name offsets u32 × name count | encoded shape bytes
//
// The shape is a Google encoded polyline (1e5 precision) over the
// endpoint-inclusive lat/lng sequence.
type EdgeInfo struct {
	WayID       uint64
	NameOffsets []uint32
	Shape       []geo.PointLL
}

const edgeInfoFixedSize = 12

// edgeInfoKey identifies a shared EdgeInfo: the unordered node pair plus a
// hash of the shape, so two ways between the same nodes stay distinct.
type edgeInfoKey struct {
	nodeA     uint64
	nodeB     uint64
	shapeHash uint64
}

func makeEdgeInfoKey(osmA, osmB uint64, encodedShape []byte) edgeInfoKey {
	if osmA > osmB {
		osmA, osmB = osmB, osmA
	}
	h := fnv.New64a()
	h.Write(encodedShape)
	return edgeInfoKey{nodeA: osmA, nodeB: osmB, shapeHash: h.Sum64()}
}

// EncodeShape packs a lat/lng sequence into polyline bytes.
func EncodeShape(shape []geo.PointLL) []byte {
	coords := make([][]float64, len(shape))
	for i, p := range shape {
		coords[i] = []float64{float64(p.Lat), float64(p.Lng)}
	}
	return polyline.EncodeCoords(coords)
}

// DecodeShape unpacks polyline bytes back into a lat/lng sequence.
func DecodeShape(buf []byte) []geo.PointLL {
	coords, _, err := polyline.DecodeCoords(buf)
	if err != nil {
		return nil
	}
	shape := make([]geo.PointLL, len(coords))
	for i, c := range coords {
		shape[i] = geo.PointLL{Lat: float32(c[0]), Lng: float32(c[1])}
	}
	return shape
}

// appendEdgeInfo serializes one record onto blob and returns the new blob.
func appendEdgeInfo(blob []byte, wayID uint64, nameOffsets []uint32, encodedShape []byte) []byte {
	blob = binary.LittleEndian.AppendUint64(blob, wayID)
	blob = append(blob, uint8(len(nameOffsets)), 0)
	blob = binary.LittleEndian.AppendUint16(blob, uint16(len(encodedShape)))
	for _, off := range nameOffsets {
		blob = binary.LittleEndian.AppendUint32(blob, off)
	}
	return append(blob, encodedShape...)
}

// decodeEdgeInfo reads the record at offset in an edgeinfo blob.
func decodeEdgeInfo(blob []byte, offset uint32) (EdgeInfo, bool) {
	if int(offset)+edgeInfoFixedSize > len(blob) {
		return EdgeInfo{}, false
	}
	b := blob[offset:]
	info := EdgeInfo{WayID: binary.LittleEndian.Uint64(b)}
	nameCount := int(b[8])
	shapeLen := int(binary.LittleEndian.Uint16(b[10:]))

	pos := edgeInfoFixedSize
	if len(b) < pos+nameCount*4+shapeLen {
		return EdgeInfo{}, false
	}
	info.NameOffsets = make([]uint32, nameCount)
	for i := 0; i < nameCount; i++ {
		info.NameOffsets[i] = binary.LittleEndian.Uint32(b[pos:])
		pos += 4
	}
	info.Shape = DecodeShape(b[pos : pos+shapeLen])
	return info, true
}
