package graph

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
)

// Tiles is a fixed grid covering the world, -90..90 latitude by -180..180
// longitude. Tile ids are row-major starting at the bottom-left corner
// (-180, -90).
type Tiles struct {
	tileSize float64
	nrows    int
	ncols    int
}

// NewTiles creates a grid with the given tile side length in degrees.
func NewTiles(tileSize float64) Tiles {
	return Tiles{
		tileSize: tileSize,
		nrows:    int(math.Round(180.0 / tileSize)),
		ncols:    int(math.Round(360.0 / tileSize)),
	}
}

// TileSize returns the tile side length in degrees.
func (t Tiles) TileSize() float64 { return t.tileSize }

// TileCount returns the number of tiles in the grid.
func (t Tiles) TileCount() int { return t.nrows * t.ncols }

// TileID returns the row-major tile id containing the point. Points on the
// upper and right world bounds fall into the last row/column.
func (t Tiles) TileID(lat, lng float64) uint32 {
	row := int((lat + 90.0) / t.tileSize)
	col := int((lng + 180.0) / t.tileSize)
	if row >= t.nrows {
		row = t.nrows - 1
	}
	if col >= t.ncols {
		col = t.ncols - 1
	}
	if row < 0 {
		row = 0
	}
	if col < 0 {
		col = 0
	}
	return uint32(row*t.ncols + col)
}

// TileBounds returns (minLat, minLng, maxLat, maxLng) of a tile.
func (t Tiles) TileBounds(id uint32) (minLat, minLng, maxLat, maxLng float64) {
	row := int(id) / t.ncols
	col := int(id) % t.ncols
	minLat = -90.0 + float64(row)*t.tileSize
	minLng = -180.0 + float64(col)*t.tileSize
	return minLat, minLng, minLat + t.tileSize, minLng + t.tileSize
}

// TileLevel is one level of the tile hierarchy.
type TileLevel struct {
	Level        uint8
	Importance   RoadClass // least important class admitted at this level
	Tiles        Tiles
}

// Hierarchy is the ordered list of tile levels, coarsest first. Only the
// deepest level is built by this pipeline; the rest describe the target
// store layout for downstream tooling.
type Hierarchy struct {
	TileDir string
	Levels  []TileLevel
}

// Deepest returns the most detailed level.
func (h *Hierarchy) Deepest() TileLevel {
	return h.Levels[len(h.Levels)-1]
}

// TilePath returns the on-disk path for a tile.
func (h *Hierarchy) TilePath(id GraphId) string {
	return filepath.Join(h.TileDir,
		fmt.Sprintf("%d", id.Level()),
		fmt.Sprintf("%d.gph", id.TileID()))
}

// TileExists reports whether a tile file is present in the store.
func (h *Hierarchy) TileExists(id GraphId) bool {
	_, err := os.Stat(h.TilePath(id))
	return err == nil
}
