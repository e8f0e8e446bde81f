package osmgraph

import (
	"strconv"

	"github.com/mjolnir-routing/mjolnir/internal/graph"
)

// OSMWay is a routable way kept in memory between parsing and tile build.
// All attributes come from the tag classifier's output, never from raw OSM
// tags.
type OSMWay struct {
	OSMID uint64
	Refs  []uint64

	RoadClass graph.RoadClass
	Use       graph.Use

	SpeedKPH      float32
	TruckSpeedKPH float32
	TaggedSpeed   bool

	// Per-mode, per-direction access. Pedestrian access is symmetric.
	AutoForward       bool
	AutoBackward      bool
	TruckForward      bool
	TruckBackward     bool
	BusForward        bool
	BusBackward       bool
	BikeForward       bool
	BikeBackward      bool
	EmergencyForward  bool
	EmergencyBackward bool
	Pedestrian        bool

	Oneway          bool
	Roundabout      bool
	Link            bool
	Ferry           bool
	Rail            bool
	Surface         bool // true = unpaved
	Tunnel          bool
	Bridge          bool
	Toll            bool
	DestinationOnly bool
	NoThruTraffic   bool
	TruckRoute      bool

	CycleLane       graph.CycleLane
	Lanes           uint8
	BikeNetworkMask uint8

	Name             string
	NameEn           string
	AltName          string
	OfficialName     string
	Ref              string
	IntRef           string
	Destination      string
	DestinationRef   string
	DestinationRefTo string
	JunctionRef      string
	BikeNationalRef  string
	BikeRegionalRef  string
	BikeLocalRef     string
}

// HasAccess reports whether any travel mode can use the way in any
// direction. Ways without access are dropped.
func (w *OSMWay) HasAccess() bool {
	return w.AutoForward || w.AutoBackward ||
		w.TruckForward || w.TruckBackward ||
		w.BusForward || w.BusBackward ||
		w.BikeForward || w.BikeBackward ||
		w.EmergencyForward || w.EmergencyBackward ||
		w.Pedestrian
}

// Names returns the way's name strings in their fixed order for EdgeInfo.
// Empty entries are dropped by the tile builder.
func (w *OSMWay) Names() []string {
	return []string{w.Ref, w.Name, w.NameEn, w.AltName, w.OfficialName}
}

// applyTag sets one classified attribute. Unknown keys are ignored so the
// classifier contract can grow without breaking older engines.
func (w *OSMWay) applyTag(key, value string) {
	switch key {
	case "road_class":
		if v, err := strconv.Atoi(value); err == nil && v >= 0 && v <= int(graph.RoadClassOther) {
			w.RoadClass = graph.RoadClass(v)
		} else {
			w.RoadClass = graph.RoadClassOther
		}
	case "use":
		if v, err := strconv.Atoi(value); err == nil && v >= 0 && v <= int(graph.UseTransitConnection) {
			w.Use = graph.Use(v)
		}
	case "auto_forward":
		w.AutoForward = value == "true"
	case "auto_backward":
		w.AutoBackward = value == "true"
	case "truck_forward":
		w.TruckForward = value == "true"
	case "truck_backward":
		w.TruckBackward = value == "true"
	case "bus_forward":
		w.BusForward = value == "true"
	case "bus_backward":
		w.BusBackward = value == "true"
	case "bike_forward":
		w.BikeForward = value == "true"
	case "bike_backward":
		w.BikeBackward = value == "true"
	case "emergency_forward":
		w.EmergencyForward = value == "true"
	case "emergency_backward":
		w.EmergencyBackward = value == "true"
	case "pedestrian":
		w.Pedestrian = value == "true"
	case "private":
		w.DestinationOnly = value == "true"
	case "no_thru_traffic":
		w.NoThruTraffic = value == "true"
	case "oneway":
		w.Oneway = value == "true"
	case "roundabout":
		w.Roundabout = value == "true"
	case "link":
		w.Link = value == "true"
	case "ferry":
		w.Ferry = value == "true"
	case "rail":
		w.Rail = value == "true"
	case "surface":
		w.Surface = value == "true"
	case "tunnel":
		w.Tunnel = value == "true"
	case "toll":
		w.Toll = value == "true"
	case "bridge":
		w.Bridge = value == "true"
	case "truck_route":
		w.TruckRoute = value == "true"
	case "lanes":
		if v, err := strconv.Atoi(value); err == nil && v > 0 {
			w.Lanes = uint8(min(v, 15))
		}
	case "cycle_lane":
		if v, err := strconv.Atoi(value); err == nil && v >= 0 && v <= int(graph.CycleLaneSeparated) {
			w.CycleLane = graph.CycleLane(v)
		}
	case "bike_network_mask":
		if v, err := strconv.Atoi(value); err == nil && v >= 0 {
			w.BikeNetworkMask = uint8(v & 0xF)
		}
	case "name":
		w.Name = value
	case "name:en":
		w.NameEn = value
	case "alt_name":
		w.AltName = value
	case "official_name":
		w.OfficialName = value
	case "ref":
		w.Ref = value
	case "int_ref":
		w.IntRef = value
	case "destination":
		w.Destination = value
	case "destination:ref":
		w.DestinationRef = value
	case "destination:ref:to":
		w.DestinationRefTo = value
	case "junction_ref":
		w.JunctionRef = value
	case "bike_national_ref":
		w.BikeNationalRef = value
	case "bike_regional_ref":
		w.BikeRegionalRef = value
	case "bike_local_ref":
		w.BikeLocalRef = value
	}
}
