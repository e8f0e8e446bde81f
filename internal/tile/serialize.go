package tile

import (
	"encoding/binary"
	"math"

	"github.com/mjolnir-routing/mjolnir/internal/geo"
)

func floatBits(f float32) uint32  { return math.Float32bits(f) }
func bitsFloat(b uint32) float32  { return math.Float32frombits(b) }

func appendNodeInfo(buf []byte, n *NodeInfo) []byte {
	buf = binary.LittleEndian.AppendUint32(buf, floatBits(n.LatLng.Lat))
	buf = binary.LittleEndian.AppendUint32(buf, floatBits(n.LatLng.Lng))
	buf = binary.LittleEndian.AppendUint32(buf, n.EdgeIndex)
	buf = binary.LittleEndian.AppendUint32(buf, n.packed)
	buf = binary.LittleEndian.AppendUint16(buf, n.AdminIndex)
	buf = binary.LittleEndian.AppendUint16(buf, n.TimezoneIndex)
	return binary.LittleEndian.AppendUint32(buf, n.StopID)
}

func decodeNodeInfo(buf []byte) NodeInfo {
	return NodeInfo{
		LatLng: geo.PointLL{
			Lat: bitsFloat(binary.LittleEndian.Uint32(buf)),
			Lng: bitsFloat(binary.LittleEndian.Uint32(buf[4:])),
		},
		EdgeIndex:     binary.LittleEndian.Uint32(buf[8:]),
		packed:        binary.LittleEndian.Uint32(buf[12:]),
		AdminIndex:    binary.LittleEndian.Uint16(buf[16:]),
		TimezoneIndex: binary.LittleEndian.Uint16(buf[18:]),
		StopID:        binary.LittleEndian.Uint32(buf[20:]),
	}
}

func appendDirectedEdge(buf []byte, e *DirectedEdge) []byte {
	buf = binary.LittleEndian.AppendUint64(buf, e.word0)
	buf = binary.LittleEndian.AppendUint64(buf, e.word1)
	buf = binary.LittleEndian.AppendUint64(buf, e.word2)
	return binary.LittleEndian.AppendUint64(buf, e.word3)
}

func decodeDirectedEdge(buf []byte) DirectedEdge {
	return DirectedEdge{
		word0: binary.LittleEndian.Uint64(buf),
		word1: binary.LittleEndian.Uint64(buf[8:]),
		word2: binary.LittleEndian.Uint64(buf[16:]),
		word3: binary.LittleEndian.Uint64(buf[24:]),
	}
}

func appendSign(buf []byte, s *Sign) []byte {
	buf = binary.LittleEndian.AppendUint32(buf, s.EdgeIndex)
	buf = binary.LittleEndian.AppendUint32(buf, s.TextOffset)
	return append(buf, byte(s.Type), 0, 0, 0)
}

func decodeSign(buf []byte) Sign {
	return Sign{
		EdgeIndex:  binary.LittleEndian.Uint32(buf),
		TextOffset: binary.LittleEndian.Uint32(buf[4:]),
		Type:       SignType(buf[8]),
	}
}

func appendAdmin(buf []byte, a *Admin) []byte {
	var iso [2]byte
	copy(iso[:], a.CountryISO)
	buf = append(buf, iso[0], iso[1], 0, 0)
	return binary.LittleEndian.AppendUint32(buf, a.NameOffset)
}

func decodeAdmin(buf []byte) Admin {
	a := Admin{NameOffset: binary.LittleEndian.Uint32(buf[4:])}
	if buf[0] != 0 {
		a.CountryISO = string(buf[0:2])
	}
	return a
}
