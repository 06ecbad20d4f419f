// Package limiter caps the number of passengers waiting at transit stops.
//
// A Counter rebuilds per-node occupancy once per tick. A Limiter then visits
// one sixteenth of the citizen buffer per frame and evicts newly waiting
// citizens at stops above their mode's limit, decrementing the occupancy as
// it goes. Neither allocates, locks or logs.
package limiter

import (
	"github.com/talgya/transit-limiter/internal/citizens"
	"github.com/talgya/transit-limiter/internal/network"
)

// Counter owns the per-node occupancy snapshot.
type Counter struct {
	counts []uint32
	total  uint32
}

// NewCounter allocates a snapshot with one slot per node.
func NewCounter(nodeCapacity int) *Counter {
	return &Counter{counts: make([]uint32, nodeCapacity)}
}

// Count clears the snapshot and counts every instance that has a path and is
// waiting for transport, at the start node of the segment it stands on.
func (c *Counter) Count(items []citizens.Instance, net *network.Network) {
	clear(c.counts)
	c.total = 0

	counts := c.counts
	for i := range items {
		inst := &items[i]
		if inst.Path == 0 {
			continue
		}
		if inst.Flags&citizens.FlagsWaitingOnPath != citizens.FlagsWaitingOnPath {
			continue
		}
		node := net.StopNode(inst.Path, inst.PathPositionIndex)
		// Stale paths may resolve outside the snapshot; drop those.
		if int(node) < len(counts) {
			counts[node]++
			c.total++
		}
	}
}

// At returns the current count at node.
func (c *Counter) At(node network.NodeID) uint32 {
	if int(node) >= len(c.counts) {
		return 0
	}
	return c.counts[node]
}

// Total returns how many instances the last Count recorded.
func (c *Counter) Total() uint32 {
	return c.total
}

// Counts exposes the snapshot. Callers must not retain it across ticks.
func (c *Counter) Counts() []uint32 {
	return c.counts
}
