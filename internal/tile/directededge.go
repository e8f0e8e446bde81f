package tile

import "github.com/mjolnir-routing/mjolnir/internal/graph"

// DirectedEdge is the fixed-width, bit-packed per-orientation edge record.
// The layout is part of the tile ABI; readers index the directed edge array
// by record size and decode fields by the shifts below.
//
// Four little-endian 64-bit words:
//
//	word0: end node GraphId (64)
//	word1: length meters (24) | speed kph (8) | truck speed kph (8) |
//	       classification (3) | use (6) | surface (3) | cycle lane (2) |
//	       lanes (4) | speed type (1) | forward (1) | bike network (4)
//	word2: edgeinfo offset (25) | opposing local index (7) |
//	       forward access (12) | reverse access (12) | restrictions (8)
//	word3: flag bits, see the flag constants
type DirectedEdge struct {
	word0 uint64
	word1 uint64
	word2 uint64
	word3 uint64
}

// DirectedEdgeSize is the serialized record size in bytes.
const DirectedEdgeSize = 32

// MaxEdgesPerNode bounds the per-node edge count (7-bit field). The value
// itself is the "no opposing edge" sentinel for the opposing local index.
const MaxEdgesPerNode = 127

// MaxLengthMeters is the largest representable edge length.
const MaxLengthMeters = 1<<24 - 1

// MaxEdgeInfoOffset is the largest representable edgeinfo byte offset.
const MaxEdgeInfoOffset = 1<<25 - 1

// Flag bit positions in word3.
const (
	flagLink = 1 << iota
	flagFerry
	flagRailFerry
	flagToll
	flagTunnel
	flagBridge
	flagRoundabout
	flagDestOnly
	flagSignal
	flagNotThru
	flagShortcut
	flagTransUp
	flagTransDown
	flagInternal
	flagCountryCrossing
	flagExitSign
	flagTruckRoute
)

func (e *DirectedEdge) EndNode() graph.GraphId      { return graph.GraphId(e.word0) }
func (e *DirectedEdge) SetEndNode(g graph.GraphId)  { e.word0 = uint64(g) }

func (e *DirectedEdge) Length() uint32 { return uint32(e.word1 & 0xFFFFFF) }

// SetLength stores the edge length in whole meters, clamped to the field
// width. Opposing-edge matching compares this quantized value, never the
// float it came from.
func (e *DirectedEdge) SetLength(meters uint32) {
	if meters > MaxLengthMeters {
		meters = MaxLengthMeters
	}
	e.word1 = e.word1&^uint64(0xFFFFFF) | uint64(meters)
}

func (e *DirectedEdge) Speed() uint8 { return uint8(e.word1 >> 24) }
func (e *DirectedEdge) SetSpeed(kph uint8) {
	e.word1 = e.word1&^(uint64(0xFF)<<24) | uint64(kph)<<24
}

func (e *DirectedEdge) TruckSpeed() uint8 { return uint8(e.word1 >> 32) }
func (e *DirectedEdge) SetTruckSpeed(kph uint8) {
	e.word1 = e.word1&^(uint64(0xFF)<<32) | uint64(kph)<<32
}

func (e *DirectedEdge) Classification() graph.RoadClass {
	return graph.RoadClass(e.word1 >> 40 & 0x7)
}
func (e *DirectedEdge) SetClassification(rc graph.RoadClass) {
	e.word1 = e.word1&^(uint64(0x7)<<40) | uint64(rc&0x7)<<40
}

func (e *DirectedEdge) Use() graph.Use { return graph.Use(e.word1 >> 43 & 0x3F) }
func (e *DirectedEdge) SetUse(u graph.Use) {
	e.word1 = e.word1&^(uint64(0x3F)<<43) | uint64(u&0x3F)<<43
}

func (e *DirectedEdge) Surface() graph.Surface { return graph.Surface(e.word1 >> 49 & 0x7) }
func (e *DirectedEdge) SetSurface(s graph.Surface) {
	e.word1 = e.word1&^(uint64(0x7)<<49) | uint64(s&0x7)<<49
}

func (e *DirectedEdge) CycleLane() graph.CycleLane { return graph.CycleLane(e.word1 >> 52 & 0x3) }
func (e *DirectedEdge) SetCycleLane(c graph.CycleLane) {
	e.word1 = e.word1&^(uint64(0x3)<<52) | uint64(c&0x3)<<52
}

func (e *DirectedEdge) Lanes() uint8 { return uint8(e.word1 >> 54 & 0xF) }
func (e *DirectedEdge) SetLanes(n uint8) {
	if n > 15 {
		n = 15
	}
	e.word1 = e.word1&^(uint64(0xF)<<54) | uint64(n)<<54
}

func (e *DirectedEdge) SpeedType() graph.SpeedType {
	return graph.SpeedType(e.word1 >> 58 & 0x1)
}
func (e *DirectedEdge) SetSpeedType(st graph.SpeedType) {
	e.word1 = e.word1&^(uint64(0x1)<<58) | uint64(st&0x1)<<58
}

// Forward reports the orientation relative to the way's node order.
func (e *DirectedEdge) Forward() bool { return e.word1>>59&1 != 0 }
func (e *DirectedEdge) SetForward(f bool) {
	e.word1 = e.word1 &^ (uint64(1) << 59)
	if f {
		e.word1 |= 1 << 59
	}
}

func (e *DirectedEdge) BikeNetwork() uint8 { return uint8(e.word1 >> 60 & 0xF) }
func (e *DirectedEdge) SetBikeNetwork(mask uint8) {
	e.word1 = e.word1&^(uint64(0xF)<<60) | uint64(mask&0xF)<<60
}

func (e *DirectedEdge) EdgeInfoOffset() uint32 { return uint32(e.word2 & 0x1FFFFFF) }
func (e *DirectedEdge) SetEdgeInfoOffset(off uint32) {
	e.word2 = e.word2&^uint64(0x1FFFFFF) | uint64(off&0x1FFFFFF)
}

// OppLocalIdx is the local index of the opposing edge at the end node, or
// MaxEdgesPerNode when no opposing edge has been resolved.
func (e *DirectedEdge) OppLocalIdx() uint32 { return uint32(e.word2 >> 25 & 0x7F) }
func (e *DirectedEdge) SetOppLocalIdx(idx uint32) {
	if idx > MaxEdgesPerNode {
		idx = MaxEdgesPerNode
	}
	e.word2 = e.word2&^(uint64(0x7F)<<25) | uint64(idx)<<25
}

func (e *DirectedEdge) ForwardAccess() uint16 { return uint16(e.word2 >> 32 & 0xFFF) }
func (e *DirectedEdge) SetForwardAccess(mask uint16) {
	e.word2 = e.word2&^(uint64(0xFFF)<<32) | uint64(mask&0xFFF)<<32
}

func (e *DirectedEdge) ReverseAccess() uint16 { return uint16(e.word2 >> 44 & 0xFFF) }
func (e *DirectedEdge) SetReverseAccess(mask uint16) {
	e.word2 = e.word2&^(uint64(0xFFF)<<44) | uint64(mask&0xFFF)<<44
}

func (e *DirectedEdge) Restrictions() uint8 { return uint8(e.word2 >> 56) }
func (e *DirectedEdge) SetRestrictions(r uint8) {
	e.word2 = e.word2&^(uint64(0xFF)<<56) | uint64(r)<<56
}

func (e *DirectedEdge) flag(bit uint64) bool { return e.word3&bit != 0 }
func (e *DirectedEdge) setFlag(bit uint64, v bool) {
	if v {
		e.word3 |= bit
	} else {
		e.word3 &^= bit
	}
}

func (e *DirectedEdge) Link() bool                { return e.flag(flagLink) }
func (e *DirectedEdge) SetLink(v bool)            { e.setFlag(flagLink, v) }
func (e *DirectedEdge) Ferry() bool               { return e.flag(flagFerry) }
func (e *DirectedEdge) SetFerry(v bool)           { e.setFlag(flagFerry, v) }
func (e *DirectedEdge) RailFerry() bool           { return e.flag(flagRailFerry) }
func (e *DirectedEdge) SetRailFerry(v bool)       { e.setFlag(flagRailFerry, v) }
func (e *DirectedEdge) Toll() bool                { return e.flag(flagToll) }
func (e *DirectedEdge) SetToll(v bool)            { e.setFlag(flagToll, v) }
func (e *DirectedEdge) Tunnel() bool              { return e.flag(flagTunnel) }
func (e *DirectedEdge) SetTunnel(v bool)          { e.setFlag(flagTunnel, v) }
func (e *DirectedEdge) Bridge() bool              { return e.flag(flagBridge) }
func (e *DirectedEdge) SetBridge(v bool)          { e.setFlag(flagBridge, v) }
func (e *DirectedEdge) Roundabout() bool          { return e.flag(flagRoundabout) }
func (e *DirectedEdge) SetRoundabout(v bool)      { e.setFlag(flagRoundabout, v) }
func (e *DirectedEdge) DestOnly() bool            { return e.flag(flagDestOnly) }
func (e *DirectedEdge) SetDestOnly(v bool)        { e.setFlag(flagDestOnly, v) }
func (e *DirectedEdge) TrafficSignal() bool       { return e.flag(flagSignal) }
func (e *DirectedEdge) SetTrafficSignal(v bool)   { e.setFlag(flagSignal, v) }
func (e *DirectedEdge) NotThru() bool             { return e.flag(flagNotThru) }
func (e *DirectedEdge) SetNotThru(v bool)         { e.setFlag(flagNotThru, v) }
func (e *DirectedEdge) Shortcut() bool            { return e.flag(flagShortcut) }
func (e *DirectedEdge) SetShortcut(v bool)        { e.setFlag(flagShortcut, v) }
func (e *DirectedEdge) TransUp() bool             { return e.flag(flagTransUp) }
func (e *DirectedEdge) SetTransUp(v bool)         { e.setFlag(flagTransUp, v) }
func (e *DirectedEdge) TransDown() bool           { return e.flag(flagTransDown) }
func (e *DirectedEdge) SetTransDown(v bool)       { e.setFlag(flagTransDown, v) }
func (e *DirectedEdge) Internal() bool            { return e.flag(flagInternal) }
func (e *DirectedEdge) SetInternal(v bool)        { e.setFlag(flagInternal, v) }
func (e *DirectedEdge) CountryCrossing() bool     { return e.flag(flagCountryCrossing) }
func (e *DirectedEdge) SetCountryCrossing(v bool) { e.setFlag(flagCountryCrossing, v) }
func (e *DirectedEdge) ExitSign() bool            { return e.flag(flagExitSign) }
func (e *DirectedEdge) SetExitSign(v bool)        { e.setFlag(flagExitSign, v) }
func (e *DirectedEdge) TruckRoute() bool          { return e.flag(flagTruckRoute) }
func (e *DirectedEdge) SetTruckRoute(v bool)      { e.setFlag(flagTruckRoute, v) }
