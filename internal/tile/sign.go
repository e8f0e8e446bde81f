package tile

// SignType distinguishes the text records attached to an edge.
type SignType uint8

const (
	SignExitNumber SignType = iota
	SignExitBranch
	SignExitToward
	SignExitName
	SignGuideJunction
)

// Sign attaches a text record to a directed edge. The signs array is sorted
// by EdgeIndex so readers can binary-search the run for an edge.
//
// Serialized little-endian, 12 bytes:
//
//	edge index u32 | text offset u32 | type u8 | pad u8×3
type Sign struct {
	EdgeIndex  uint32
	TextOffset uint32
	Type       SignType
}

// SignSize is the serialized record size in bytes.
const SignSize = 12

// Admin is one entry in the tile's administrative table. Nodes reference
// entries by index; index 0 is the "unknown" admin with an empty ISO code.
//
// Serialized little-endian, 8 bytes:
//
//	country ISO 3166-1 alpha-2 (2 bytes, zero when unknown) | pad u8×2 |
//	name offset u32
type Admin struct {
	CountryISO string // 2 characters, empty when unknown
	NameOffset uint32
}

// AdminSize is the serialized record size in bytes.
const AdminSize = 8
