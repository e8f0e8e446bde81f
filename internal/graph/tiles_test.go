package graph

import "testing"

func TestTileIDRowMajor(t *testing.T) {
	tiles := NewTiles(1.0)

	// Bottom-left corner of the world is tile 0.
	if id := tiles.TileID(-90, -180); id != 0 {
		t.Errorf("TileID(-90,-180) = %d, want 0", id)
	}
	// One tile east.
	if id := tiles.TileID(-90, -179); id != 1 {
		t.Errorf("TileID(-90,-179) = %d, want 1", id)
	}
	// One row north.
	if id := tiles.TileID(-89, -180); id != 360 {
		t.Errorf("TileID(-89,-180) = %d, want 360", id)
	}
	// The poles and the antimeridian clamp into the last row/column.
	if id := tiles.TileID(90, 180); id != uint32(tiles.TileCount()-1) {
		t.Errorf("TileID(90,180) = %d, want %d", id, tiles.TileCount()-1)
	}
}

func TestTileCount(t *testing.T) {
	if n := NewTiles(1.0).TileCount(); n != 180*360 {
		t.Errorf("TileCount() = %d, want %d", n, 180*360)
	}
	if n := NewTiles(0.25).TileCount(); n != 720*1440 {
		t.Errorf("TileCount() = %d, want %d", n, 720*1440)
	}
}

func TestTileBounds(t *testing.T) {
	tiles := NewTiles(4.0)
	id := tiles.TileID(52.1, 5.1) // Utrecht-ish

	minLat, minLng, maxLat, maxLng := tiles.TileBounds(id)
	if 52.1 < minLat || 52.1 >= maxLat || 5.1 < minLng || 5.1 >= maxLng {
		t.Errorf("point (52.1, 5.1) outside bounds of its own tile: %f %f %f %f",
			minLat, minLng, maxLat, maxLng)
	}
	if maxLat-minLat != 4.0 || maxLng-minLng != 4.0 {
		t.Errorf("tile is %f x %f degrees, want 4 x 4", maxLat-minLat, maxLng-minLng)
	}
}

func TestTileIDStableForCenterPoints(t *testing.T) {
	tiles := NewTiles(0.25)
	// Adjacent points in the same cell share an id; across the boundary
	// they differ.
	a := tiles.TileID(52.10, 5.10)
	b := tiles.TileID(52.12, 5.12)
	c := tiles.TileID(52.30, 5.10)
	if a != b {
		t.Errorf("points in one cell got different tiles: %d != %d", a, b)
	}
	if a == c {
		t.Error("points across a row boundary share a tile")
	}
}
