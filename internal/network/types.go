// Package network provides the transit network buffers shared with the host
// simulation: nodes, segments, path units and transport lines.
// All buffers are fixed-capacity and indexed by id; id 0 is a sentinel.
package network

// NodeID identifies a node in the node buffer.
type NodeID uint16

// SegmentID identifies a segment in the segment buffer.
type SegmentID uint16

// LineID identifies a transport line. 0 means no line.
type LineID uint16

// PathID identifies a path unit. 0 means no path.
type PathID uint32

// Buffer capacities used by the full-size host.
const (
	MaxNodeCount     = 32768
	MaxSegmentCount  = 36864
	MaxPathUnitCount = 262144
	MaxLineCount     = 256
)

// PositionsPerUnit is the number of positions a single path unit holds.
const PositionsPerUnit = 12

// Node is a network graph vertex.
type Node struct {
	TransportLine LineID `json:"transport_line"` // Line stopping here, 0 = none
}

// Segment is a network edge between two nodes.
type Segment struct {
	StartNode NodeID  `json:"start_node"`
	EndNode   NodeID  `json:"end_node"`
	Length    float32 `json:"length"`
}

// Position is a point along a path: a segment plus offset and lane.
type Position struct {
	Segment SegmentID `json:"segment"`
	Offset  uint8     `json:"offset"`
	Lane    uint8     `json:"lane"`
}

// PathUnit is one block of a computed path.
type PathUnit struct {
	Positions     [PositionsPerUnit]Position `json:"positions"`
	PositionCount uint8                      `json:"position_count"`
	NextPathUnit  PathID                     `json:"next_path_unit"`
}

// Position returns the position at index within the unit.
// Indices past the fixed array yield the zero position and false.
func (u *PathUnit) Position(index int) (Position, bool) {
	if index < 0 || index >= PositionsPerUnit {
		return Position{}, false
	}
	return u.Positions[index], true
}

// TransportType is the vehicle mode of a transport line.
type TransportType uint8

const (
	TransportNone TransportType = iota
	TransportBus
	TransportTram
	TransportMetro
	TransportTrain
	TransportMonorail
	TransportAirplane
	TransportShip
	TransportCableCar
	TransportHotAirBalloon
	TransportEvacuationBus
	TransportTouristBus
	TransportTaxi       // Host-only, no waiting limit
	TransportTrolleybus // Host-only, no waiting limit
	TransportHelicopter // Host-only, no waiting limit
)

// NumTransportTypes is the number of transport types including None.
const NumTransportTypes = 15

// TransportLine is a transit line registered with the host.
type TransportLine struct {
	Type TransportType `json:"type"`
}

// TransportName returns a human-readable name for a transport type.
func TransportName(t TransportType) string {
	switch t {
	case TransportNone:
		return "None"
	case TransportBus:
		return "Bus"
	case TransportTram:
		return "Tram"
	case TransportMetro:
		return "Metro"
	case TransportTrain:
		return "Train"
	case TransportMonorail:
		return "Monorail"
	case TransportAirplane:
		return "Airplane"
	case TransportShip:
		return "Ship"
	case TransportCableCar:
		return "CableCar"
	case TransportHotAirBalloon:
		return "HotAirBalloon"
	case TransportEvacuationBus:
		return "EvacuationBus"
	case TransportTouristBus:
		return "TouristBus"
	case TransportTaxi:
		return "Taxi"
	case TransportTrolleybus:
		return "Trolleybus"
	case TransportHelicopter:
		return "Helicopter"
	default:
		return "Unknown"
	}
}

// VehicleCapacity is how many waiting passengers a single vehicle of the
// given type picks up at a stop.
func VehicleCapacity(t TransportType) int {
	switch t {
	case TransportBus, TransportEvacuationBus, TransportTouristBus, TransportTrolleybus:
		return 30
	case TransportTram:
		return 90
	case TransportMetro, TransportMonorail:
		return 180
	case TransportTrain:
		return 240
	case TransportAirplane, TransportShip:
		return 200
	case TransportCableCar:
		return 30
	case TransportHotAirBalloon, TransportHelicopter:
		return 4
	case TransportTaxi:
		return 2
	default:
		return 0
	}
}
