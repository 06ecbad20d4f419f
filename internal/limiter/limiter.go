package limiter

import (
	"github.com/talgya/transit-limiter/internal/citizens"
	"github.com/talgya/transit-limiter/internal/network"
)

// Slices is the number of frames it takes to visit the whole buffer.
const Slices = 16

const sliceMask = Slices - 1

// FrameStats summarizes one Limit call.
type FrameStats struct {
	Frame    uint32
	Start    int
	End      int
	Examined int // Instances that passed every filter and had a stop resolved
	Evicted  int
}

// Limiter evicts waiting instances at stops above their limit.
type Limiter struct {
	counter  *Counter
	resolver *Resolver
	last     FrameStats
}

// NewLimiter creates a limiter that consumes counter's snapshot.
func NewLimiter(counter *Counter, resolver *Resolver) *Limiter {
	return &Limiter{counter: counter, resolver: resolver}
}

// SliceBounds returns the half-open index range visited on frame.
// The slice is selected by the low four bits of the frame index. Integer
// division spreads any remainder of capacity/16 across the slices, so their
// widths differ by at most one.
func SliceBounds(frame uint32, capacity int) (start, end int) {
	slice := int(frame & sliceMask)
	return slice * capacity / Slices, (slice + 1) * capacity / Slices
}

// Limit scans this frame's slice. Only instances whose wait just started
// (WaitCounter == 0) are candidates, so an instance is considered at most once
// per wait. Each eviction marks the instance bored, maxes its wait counter
// and removes it from the snapshot.
func (l *Limiter) Limit(items []citizens.Instance, net *network.Network, frame uint32) {
	start, end := SliceBounds(frame, len(items))
	stats := FrameStats{Frame: frame, Start: start, End: end}
	counts := l.counter.counts

	for i := start; i < end; i++ {
		inst := &items[i]
		if inst.Path == 0 {
			continue
		}
		if inst.WaitCounter != 0 {
			continue
		}
		if inst.Flags&citizens.FlagsWaitingOnPath != citizens.FlagsWaitingOnPath {
			continue
		}
		node := net.StopNode(inst.Path, inst.PathPositionIndex)
		if int(node) >= len(counts) {
			continue
		}
		stats.Examined++

		if uint64(counts[node]) > uint64(l.resolver.MaxPassengers(net, node)) {
			counts[node]--
			inst.Flags |= citizens.FlagBoredOfWaiting
			inst.WaitCounter = citizens.MaxWaitCounter
			stats.Evicted++
		}
	}

	l.last = stats
}

// Last returns the stats of the most recent Limit call.
func (l *Limiter) Last() FrameStats {
	return l.last
}
