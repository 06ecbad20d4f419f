package network

import "fmt"

// Capacity sizes the fixed buffers of a Network.
type Capacity struct {
	Nodes     int
	Segments  int
	PathUnits int
	Lines     int
}

// DefaultCapacity returns the full-size host capacities.
func DefaultCapacity() Capacity {
	return Capacity{
		Nodes:     MaxNodeCount,
		Segments:  MaxSegmentCount,
		PathUnits: MaxPathUnitCount,
		Lines:     MaxLineCount,
	}
}

// Network holds the fixed-capacity world buffers. Slices never grow after New.
type Network struct {
	Nodes     []Node
	Segments  []Segment
	PathUnits []PathUnit
	Lines     []TransportLine

	// Free path unit ids (stack). Slot 0 is never handed out.
	freePaths []PathID
}

// New allocates a network with the given buffer capacities.
func New(c Capacity) *Network {
	n := &Network{
		Nodes:     make([]Node, c.Nodes),
		Segments:  make([]Segment, c.Segments),
		PathUnits: make([]PathUnit, c.PathUnits),
		Lines:     make([]TransportLine, c.Lines),
	}
	n.freePaths = make([]PathID, 0, c.PathUnits)
	for id := c.PathUnits - 1; id >= 1; id-- {
		n.freePaths = append(n.freePaths, PathID(id))
	}
	return n
}

// PathPosition resolves a path index into a network position.
// Stale or out-of-range ids resolve to the zero position.
func (n *Network) PathPosition(path PathID, index int) Position {
	if uint64(path) >= uint64(len(n.PathUnits)) {
		return Position{}
	}
	pos, _ := n.PathUnits[path].Position(index)
	return pos
}

// SegmentStart returns the start node of a segment, or 0 if out of range.
func (n *Network) SegmentStart(seg SegmentID) NodeID {
	if int(seg) >= len(n.Segments) {
		return 0
	}
	return n.Segments[seg].StartNode
}

// StopNode resolves the stop node for an agent positioned on path at the
// encoded pathPositionIndex. The low bit of the index is a direction flag.
func (n *Network) StopNode(path PathID, pathPositionIndex uint8) NodeID {
	pos := n.PathPosition(path, int(pathPositionIndex>>1))
	return n.SegmentStart(pos.Segment)
}

// LineOf returns the transport line serving a node, or 0 if none.
func (n *Network) LineOf(node NodeID) LineID {
	if int(node) >= len(n.Nodes) {
		return 0
	}
	return n.Nodes[node].TransportLine
}

// LineType returns the transport type of a line. Out-of-range ids are TransportNone.
func (n *Network) LineType(line LineID) TransportType {
	if line == 0 || int(line) >= len(n.Lines) {
		return TransportNone
	}
	return n.Lines[line].Type
}

// AllocPath stores positions into a free path unit and returns its id.
// Returns false when the buffer is exhausted or positions do not fit one unit.
func (n *Network) AllocPath(positions ...Position) (PathID, bool) {
	if len(positions) == 0 || len(positions) > PositionsPerUnit || len(n.freePaths) == 0 {
		return 0, false
	}
	id := n.freePaths[len(n.freePaths)-1]
	n.freePaths = n.freePaths[:len(n.freePaths)-1]

	unit := &n.PathUnits[id]
	*unit = PathUnit{}
	copy(unit.Positions[:], positions)
	unit.PositionCount = uint8(len(positions))
	return id, true
}

// ReleasePath returns a path unit to the free list. The unit's contents are
// left in place, so agents still holding the id read stale positions.
func (n *Network) ReleasePath(id PathID) {
	if id == 0 || uint64(id) >= uint64(len(n.PathUnits)) {
		return
	}
	n.freePaths = append(n.freePaths, id)
}

// FreePathUnits returns the number of path units available for allocation.
func (n *Network) FreePathUnits() int {
	return len(n.freePaths)
}

// String returns a summary of the network buffers.
func (n *Network) String() string {
	return fmt.Sprintf("Network(nodes=%d, segments=%d, paths=%d, lines=%d)",
		len(n.Nodes), len(n.Segments), len(n.PathUnits), len(n.Lines))
}
