package graph

import "fmt"

// GraphId packs (level, tile id, index within tile) into a single uint64:
//
//	bits  0-3   hierarchy level
//	bits  4-31  tile id (row-major at the level's grid)
//	bits 32-63  index within the tile
//
// The zero value is a valid id (level 0, tile 0, index 0); unassigned ids
// use Invalid.
type GraphId uint64

const (
	levelBits = 4
	tileBits  = 28
	indexBits = 32

	levelMask = (1 << levelBits) - 1
	tileMask  = (1 << tileBits) - 1
	indexMask = (1 << indexBits) - 1

	// invalidIndex marks an unassigned GraphId.
	invalidIndex = indexMask
)

// Invalid is the sentinel for an unassigned GraphId.
const Invalid GraphId = GraphId(uint64(invalidIndex) << (levelBits + tileBits))

// NewGraphId builds a GraphId from its parts.
func NewGraphId(tile uint32, level uint8, index uint32) GraphId {
	return GraphId(uint64(level)&levelMask |
		(uint64(tile)&tileMask)<<levelBits |
		uint64(index)<<(levelBits+tileBits))
}

// Level returns the hierarchy level.
func (g GraphId) Level() uint8 { return uint8(g & levelMask) }

// TileID returns the tile id at the level's grid.
func (g GraphId) TileID() uint32 { return uint32((g >> levelBits) & tileMask) }

// Index returns the index within the tile.
func (g GraphId) Index() uint32 { return uint32(g >> (levelBits + tileBits)) }

// TileBase returns the GraphId of the tile itself (index 0).
func (g GraphId) TileBase() GraphId {
	return GraphId(g & ((1 << (levelBits + tileBits)) - 1))
}

// Valid reports whether the id has been assigned.
func (g GraphId) Valid() bool { return g.Index() != invalidIndex }

func (g GraphId) String() string {
	return fmt.Sprintf("%d/%d/%d", g.Level(), g.TileID(), g.Index())
}
