// Package stats aggregates the per-tile and per-country figures collected
// during graph validation and writes the optional statistics outputs.
package stats

import (
	"github.com/mjolnir-routing/mjolnir/internal/graph"
)

// ClassLengths accumulates kilometers by road class.
type ClassLengths map[graph.RoadClass]float64

func (c ClassLengths) add(rc graph.RoadClass, km float64) {
	c[rc] += km
}

// ClassCounts accumulates edge counts by road class.
type ClassCounts map[graph.RoadClass]uint64

// TileStats holds one tile's aggregates.
type TileStats struct {
	RoadKM        ClassLengths
	OneWayKM      ClassLengths
	NamedKM       ClassLengths
	TaggedSpeedKM ClassLengths
	TruckRouteKM  ClassLengths
	InternalEdges ClassCounts
	AreaSqKM      float64
	Density       float64
}

func newTileStats() *TileStats {
	return &TileStats{
		RoadKM:        make(ClassLengths),
		OneWayKM:      make(ClassLengths),
		NamedKM:       make(ClassLengths),
		TaggedSpeedKM: make(ClassLengths),
		TruckRouteKM:  make(ClassLengths),
		InternalEdges: make(ClassCounts),
	}
}

func (t *TileStats) merge(o *TileStats) {
	for rc, km := range o.RoadKM {
		t.RoadKM.add(rc, km)
	}
	for rc, km := range o.OneWayKM {
		t.OneWayKM.add(rc, km)
	}
	for rc, km := range o.NamedKM {
		t.NamedKM.add(rc, km)
	}
	for rc, km := range o.TaggedSpeedKM {
		t.TaggedSpeedKM.add(rc, km)
	}
	for rc, km := range o.TruckRouteKM {
		t.TruckRouteKM.add(rc, km)
	}
	for rc, n := range o.InternalEdges {
		t.InternalEdges[rc] += n
	}
	t.AreaSqKM += o.AreaSqKM
	if o.Density > t.Density {
		t.Density = o.Density
	}
}

// Stats is one worker's (or the merged) view of the validation aggregates.
type Stats struct {
	Tiles     map[uint32]*TileStats
	Countries map[string]*TileStats

	Densities  []float64
	Duplicates uint64

	Roulette RouletteData
}

// New creates an empty aggregate.
func New() *Stats {
	return &Stats{
		Tiles:     make(map[uint32]*TileStats),
		Countries: make(map[string]*TileStats),
		Roulette:  NewRouletteData(),
	}
}

func (s *Stats) tile(id uint32) *TileStats {
	t, ok := s.Tiles[id]
	if !ok {
		t = newTileStats()
		s.Tiles[id] = t
	}
	return t
}

func (s *Stats) country(iso string) *TileStats {
	if iso == "" {
		iso = "??"
	}
	c, ok := s.Countries[iso]
	if !ok {
		c = newTileStats()
		s.Countries[iso] = c
	}
	return c
}

// AddRoad records plain road length for a tile and its country.
func (s *Stats) AddRoad(tileID uint32, iso string, rc graph.RoadClass, km float64) {
	s.tile(tileID).RoadKM.add(rc, km)
	s.country(iso).RoadKM.add(rc, km)
}

// AddOneWay records one-way road length.
func (s *Stats) AddOneWay(tileID uint32, iso string, rc graph.RoadClass, km float64) {
	s.tile(tileID).OneWayKM.add(rc, km)
	s.country(iso).OneWayKM.add(rc, km)
}

// AddNamed records length of named roads.
func (s *Stats) AddNamed(tileID uint32, iso string, rc graph.RoadClass, km float64) {
	s.tile(tileID).NamedKM.add(rc, km)
	s.country(iso).NamedKM.add(rc, km)
}

// AddTaggedSpeed records length carrying an explicit maxspeed.
func (s *Stats) AddTaggedSpeed(tileID uint32, iso string, rc graph.RoadClass, km float64) {
	s.tile(tileID).TaggedSpeedKM.add(rc, km)
	s.country(iso).TaggedSpeedKM.add(rc, km)
}

// AddTruckRoute records length on the national truck network.
func (s *Stats) AddTruckRoute(tileID uint32, iso string, rc graph.RoadClass, km float64) {
	s.tile(tileID).TruckRouteKM.add(rc, km)
	s.country(iso).TruckRouteKM.add(rc, km)
}

// AddInternalEdge counts an intersection-internal edge.
func (s *Stats) AddInternalEdge(tileID uint32, iso string, rc graph.RoadClass) {
	s.tile(tileID).InternalEdges[rc]++
	s.country(iso).InternalEdges[rc]++
}

// AddTileArea records a tile's approximate area.
func (s *Stats) AddTileArea(tileID uint32, areaSqKM float64) {
	s.tile(tileID).AreaSqKM = areaSqKM
}

// AddDensity records a tile's road density (km per square km).
func (s *Stats) AddDensity(tileID uint32, density float64) {
	s.tile(tileID).Density = density
	s.Densities = append(s.Densities, density)
}

// AddDuplicates counts duplicate opposing-edge matches.
func (s *Stats) AddDuplicates(n uint64) {
	s.Duplicates += n
}

// Merge folds another aggregate into this one additively.
func (s *Stats) Merge(o *Stats) {
	for id, t := range o.Tiles {
		s.tile(id).merge(t)
	}
	for iso, c := range o.Countries {
		s.country(iso).merge(c)
	}
	s.Densities = append(s.Densities, o.Densities...)
	s.Duplicates += o.Duplicates
	s.Roulette.Merge(o.Roulette)
}

// DensitySummary returns the average and maximum tile densities.
func (s *Stats) DensitySummary() (avg, max float64) {
	if len(s.Densities) == 0 {
		return 0, 0
	}
	var sum float64
	for _, d := range s.Densities {
		sum += d
		if d > max {
			max = d
		}
	}
	return sum / float64(len(s.Densities)), max
}
