package limiter

import (
	"testing"

	"github.com/talgya/transit-limiter/internal/citizens"
	"github.com/talgya/transit-limiter/internal/config"
	"github.com/talgya/transit-limiter/internal/network"
)

const waitingOnPath = citizens.FlagCreated | citizens.FlagOnPath | citizens.FlagWaitingTransport

// fixture is a hand-built world: stop nodes with lines, one path unit per
// stop, and a citizen buffer whose slots the tests fill directly.
type fixture struct {
	net     *network.Network
	buf     *citizens.Buffer
	nextSeg network.SegmentID
}

func newFixture(capacity int) *fixture {
	net := network.New(network.Capacity{
		Nodes:     32,
		Segments:  32,
		PathUnits: 64,
		Lines:     network.NumTransportTypes,
	})
	// Line id == transport type, as in generated cities.
	for tt := network.TransportType(1); tt < network.NumTransportTypes; tt++ {
		net.Lines[tt] = network.TransportLine{Type: tt}
	}
	return &fixture{
		net:     net,
		buf:     citizens.NewBuffer(capacity),
		nextSeg: 1,
	}
}

// stop makes node a stop on line and returns a path whose first position
// lies on a segment starting at node.
func (f *fixture) stop(t *testing.T, node network.NodeID, line network.LineID) network.PathID {
	t.Helper()
	f.net.Nodes[node].TransportLine = line
	seg := f.nextSeg
	f.nextSeg++
	f.net.Segments[seg] = network.Segment{StartNode: node, EndNode: node + 1}
	path, ok := f.net.AllocPath(network.Position{Segment: seg, Offset: 128})
	if !ok {
		t.Fatalf("AllocPath failed")
	}
	return path
}

func (f *fixture) place(id int, path network.PathID, flags citizens.Flags, wait uint8) {
	f.buf.Items[id] = citizens.Instance{Flags: flags, Path: path, WaitCounter: wait}
}

func (f *fixture) run(limits config.Limits, frame uint32) (*Counter, *Limiter) {
	c := NewCounter(len(f.net.Nodes))
	c.Count(f.buf.Items, f.net)
	l := NewLimiter(c, NewResolver(limits))
	l.Limit(f.buf.Items, f.net, frame)
	return c, l
}

func evicted(inst citizens.Instance) bool {
	return inst.Flags&citizens.FlagBoredOfWaiting != 0 && inst.WaitCounter == citizens.MaxWaitCounter
}

func TestCounterCountsWaitingInstancesAtStartNode(t *testing.T) {
	f := newFixture(64)
	busPath := f.stop(t, 5, network.LineID(network.TransportBus))
	tramPath := f.stop(t, 7, network.LineID(network.TransportTram))

	f.place(1, busPath, waitingOnPath, 0)
	f.place(2, busPath, waitingOnPath, 40)
	f.place(3, busPath, waitingOnPath|citizens.FlagBoredOfWaiting, 255)
	f.place(4, tramPath, waitingOnPath, 0)
	// Walking: on path but not waiting.
	f.place(5, busPath, citizens.FlagCreated|citizens.FlagOnPath, 0)
	// Waiting flag without on-path must not match the combined mask.
	f.place(6, busPath, citizens.FlagCreated|citizens.FlagWaitingTransport, 0)
	// No path.
	f.place(7, 0, waitingOnPath, 0)
	// Direction bit set; still position 0.
	f.buf.Items[8] = citizens.Instance{Flags: waitingOnPath, Path: busPath, PathPositionIndex: 1}

	c := NewCounter(len(f.net.Nodes))
	c.Count(f.buf.Items, f.net)

	if got := c.At(5); got != 4 {
		t.Errorf("bus stop count = %d, want 4", got)
	}
	if got := c.At(7); got != 1 {
		t.Errorf("tram stop count = %d, want 1", got)
	}
	if got := c.Total(); got != 5 {
		t.Errorf("total = %d, want 5", got)
	}
	for node, n := range c.Counts() {
		if node != 5 && node != 7 && n != 0 {
			t.Errorf("node %d count = %d, want 0", node, n)
		}
	}
}

func TestCounterIsIdempotent(t *testing.T) {
	f := newFixture(64)
	a := f.stop(t, 3, network.LineID(network.TransportMetro))
	b := f.stop(t, 9, network.LineID(network.TransportBus))
	for i := 1; i < 40; i++ {
		path := a
		if i%3 == 0 {
			path = b
		}
		f.place(i, path, waitingOnPath, uint8(i%2))
	}

	c := NewCounter(len(f.net.Nodes))
	c.Count(f.buf.Items, f.net)
	first := append([]uint32(nil), c.Counts()...)
	c.Count(f.buf.Items, f.net)

	for node := range first {
		if first[node] != c.Counts()[node] {
			t.Fatalf("node %d: first %d, second %d", node, first[node], c.Counts()[node])
		}
	}
	if first[3] != 26 || first[9] != 13 {
		t.Fatalf("counts = %d/%d, want 26/13", first[3], first[9])
	}
}

func TestCounterClearsPreviousTick(t *testing.T) {
	f := newFixture(32)
	path := f.stop(t, 4, network.LineID(network.TransportBus))
	f.place(1, path, waitingOnPath, 0)
	f.place(2, path, waitingOnPath, 0)

	c := NewCounter(len(f.net.Nodes))
	c.Count(f.buf.Items, f.net)
	if c.At(4) != 2 {
		t.Fatalf("count = %d, want 2", c.At(4))
	}

	f.buf.Items[2] = citizens.Instance{}
	c.Count(f.buf.Items, f.net)
	if c.At(4) != 1 {
		t.Fatalf("count after release = %d, want 1", c.At(4))
	}
}

func TestCounterToleratesStaleReferences(t *testing.T) {
	f := newFixture(32)
	path := f.stop(t, 6, network.LineID(network.TransportBus))

	// Path id past the path unit buffer.
	f.place(1, network.PathID(1<<20), waitingOnPath, 0)
	// Position index past the unit's positions.
	f.buf.Items[2] = citizens.Instance{Flags: waitingOnPath, Path: path, PathPositionIndex: 255}
	// Segment id past the segment buffer.
	stale, _ := f.net.AllocPath(network.Position{Segment: 60000})
	f.place(3, stale, waitingOnPath, 0)

	c := NewCounter(len(f.net.Nodes))
	c.Count(f.buf.Items, f.net)

	// All three resolve to the zero node, which never carries a line.
	if c.At(0) != 3 {
		t.Fatalf("node 0 count = %d, want 3", c.At(0))
	}
	if c.At(6) != 0 {
		t.Fatalf("stop count = %d, want 0", c.At(6))
	}

	l := NewLimiter(c, NewResolver(config.Limits{}))
	l.Limit(f.buf.Items, f.net, 0)
	for id := 1; id <= 3; id++ {
		if evicted(f.buf.Items[id]) {
			t.Errorf("instance %d evicted at node without a line", id)
		}
	}
}

func TestSliceBounds(t *testing.T) {
	tests := []struct {
		frame     uint32
		capacity  int
		wantStart int
		wantEnd   int
	}{
		{0, 65536, 0, 4096},
		{1, 65536, 4096, 8192},
		{15, 65536, 61440, 65536},
		{16, 65536, 0, 4096},
		{17, 65536, 4096, 8192},
		{0xFFFFFFFF, 65536, 61440, 65536},
		{0, 100, 0, 6},
		{1, 100, 6, 12},
		{15, 100, 93, 100},
		{0, 8, 0, 0},
		{1, 8, 0, 1},
	}
	for _, tt := range tests {
		start, end := SliceBounds(tt.frame, tt.capacity)
		if start != tt.wantStart || end != tt.wantEnd {
			t.Errorf("SliceBounds(%d, %d) = [%d, %d), want [%d, %d)",
				tt.frame, tt.capacity, start, end, tt.wantStart, tt.wantEnd)
		}
	}
}

func TestSliceBoundsCoverBufferExactlyOnce(t *testing.T) {
	for _, capacity := range []int{1, 15, 16, 100, 1000, 65536} {
		seen := make([]int, capacity)
		for frame := uint32(0); frame < Slices; frame++ {
			start, end := SliceBounds(frame, capacity)
			for i := start; i < end; i++ {
				seen[i]++
			}
		}
		for i, n := range seen {
			if n != 1 {
				t.Fatalf("capacity %d: index %d visited %d times", capacity, i, n)
			}
		}
	}
}

func TestSliceBoundsSpreadRemainder(t *testing.T) {
	for _, capacity := range []int{15, 100, 1000, 65535} {
		lo, hi := capacity/Slices, (capacity+Slices-1)/Slices
		for frame := uint32(0); frame < Slices; frame++ {
			start, end := SliceBounds(frame, capacity)
			if w := end - start; w < lo || w > hi {
				t.Fatalf("capacity %d frame %d: width %d outside [%d, %d]", capacity, frame, w, lo, hi)
			}
		}
	}
}

func TestLimiterEvictsExcessPassengers(t *testing.T) {
	f := newFixture(160) // slice 0 covers [0, 10)
	path := f.stop(t, 5, network.LineID(network.TransportBus))
	for id := 1; id <= 5; id++ {
		f.place(id, path, waitingOnPath, 0)
	}

	limits := config.Default()
	limits.MaxWaitingPassengersBus = 2

	c := NewCounter(len(f.net.Nodes))
	c.Count(f.buf.Items, f.net)
	if c.At(5) != 5 {
		t.Fatalf("snapshot before limiting = %d, want 5", c.At(5))
	}

	l := NewLimiter(c, NewResolver(limits))
	l.Limit(f.buf.Items, f.net, 0)

	// Index order: the first three seen while the count exceeds 2 are evicted.
	for id := 1; id <= 3; id++ {
		if !evicted(f.buf.Items[id]) {
			t.Errorf("instance %d not evicted: %+v", id, f.buf.Items[id])
		}
	}
	for id := 4; id <= 5; id++ {
		inst := f.buf.Items[id]
		if inst.Flags != waitingOnPath || inst.WaitCounter != 0 {
			t.Errorf("instance %d modified: %+v", id, inst)
		}
	}
	if c.At(5) != 2 {
		t.Errorf("snapshot after limiting = %d, want 2", c.At(5))
	}
	if got := l.Last(); got.Evicted != 3 || got.Examined != 5 {
		t.Errorf("stats = %+v, want 3 evicted of 5 examined", got)
	}
}

func TestLimiterUnlimitedNeverEvicts(t *testing.T) {
	f := newFixture(160)
	path := f.stop(t, 5, network.LineID(network.TransportBus))
	for id := 1; id <= 5; id++ {
		f.place(id, path, waitingOnPath, 0)
	}

	limits := config.Default()
	limits.MaxWaitingPassengersBus = config.Unlimited
	c, l := f.run(limits, 0)

	for id := 1; id <= 5; id++ {
		if evicted(f.buf.Items[id]) {
			t.Errorf("instance %d evicted with unlimited bus limit", id)
		}
	}
	if c.At(5) != 5 {
		t.Errorf("snapshot = %d, want 5", c.At(5))
	}
	if l.Last().Evicted != 0 {
		t.Errorf("evicted = %d, want 0", l.Last().Evicted)
	}
}

func TestLimiterSkipsInstancesWithoutPath(t *testing.T) {
	f := newFixture(160)
	path := f.stop(t, 5, network.LineID(network.TransportBus))
	for id := 1; id <= 4; id++ {
		f.place(id, path, waitingOnPath, 0)
	}
	f.place(5, 0, waitingOnPath, 0)
	f.place(6, 0, citizens.FlagCreated, 7)

	limits := config.Default()
	limits.MaxWaitingPassengersBus = 0
	c, _ := f.run(limits, 0)

	if f.buf.Items[5] != (citizens.Instance{Flags: waitingOnPath}) {
		t.Errorf("pathless waiting instance modified: %+v", f.buf.Items[5])
	}
	if f.buf.Items[6] != (citizens.Instance{Flags: citizens.FlagCreated, WaitCounter: 7}) {
		t.Errorf("pathless instance modified: %+v", f.buf.Items[6])
	}
	if c.At(5) != 0 {
		t.Errorf("snapshot = %d, want 0 after evicting all four", c.At(5))
	}
}

func TestLimiterSkipsInstancesAlreadyWaiting(t *testing.T) {
	f := newFixture(160)
	path := f.stop(t, 5, network.LineID(network.TransportBus))
	for id := 1; id <= 6; id++ {
		f.place(id, path, waitingOnPath, uint8(id)) // all mid-wait
	}

	limits := config.Default()
	limits.MaxWaitingPassengersBus = 1
	c, l := f.run(limits, 0)

	for id := 1; id <= 6; id++ {
		if f.buf.Items[id].Flags&citizens.FlagBoredOfWaiting != 0 {
			t.Errorf("instance %d with wait counter %d evicted", id, id)
		}
	}
	if c.At(5) != 6 || l.Last().Evicted != 0 {
		t.Errorf("snapshot %d evicted %d, want 6 and 0", c.At(5), l.Last().Evicted)
	}
}

func TestLimiterOnlyVisitsActiveSlice(t *testing.T) {
	f := newFixture(160)
	path := f.stop(t, 5, network.LineID(network.TransportBus))
	// Slice 3 is [30, 40).
	for id := 1; id < 160; id++ {
		f.place(id, path, waitingOnPath, 0)
	}

	limits := config.Default()
	limits.MaxWaitingPassengersBus = 0
	_, l := f.run(limits, 0x1233) // low bits 3

	for id := 1; id < 160; id++ {
		inside := id >= 30 && id < 40
		if got := evicted(f.buf.Items[id]); got != inside {
			t.Errorf("instance %d evicted=%v, want %v", id, got, inside)
		}
	}
	if got := l.Last(); got.Start != 30 || got.End != 40 || got.Evicted != 10 {
		t.Errorf("stats = %+v", got)
	}
}

func TestLimiterStopsEvictingAtLimit(t *testing.T) {
	f := newFixture(160)
	metro := f.stop(t, 8, network.LineID(network.TransportMetro))
	bus := f.stop(t, 9, network.LineID(network.TransportBus))
	// Interleave two stops so decrements of one never affect the other.
	for id := 1; id < 10; id++ {
		if id%2 == 0 {
			f.place(id, bus, waitingOnPath, 0)
		} else {
			f.place(id, metro, waitingOnPath, 0)
		}
	}

	limits := config.Default()
	limits.MaxWaitingPassengersMetro = 3
	limits.MaxWaitingPassengersBus = 3
	c, _ := f.run(limits, 0)

	// Metro: ids 1,3,5,7,9 → 5 waiting, limit 3 → first two evicted.
	// Bus: ids 2,4,6,8 → 4 waiting, limit 3 → first one evicted.
	want := map[int]bool{1: true, 3: true, 5: false, 7: false, 9: false, 2: true, 4: false, 6: false, 8: false}
	for id, w := range want {
		if got := evicted(f.buf.Items[id]); got != w {
			t.Errorf("instance %d evicted=%v, want %v", id, got, w)
		}
	}
	if c.At(8) != 3 || c.At(9) != 3 {
		t.Errorf("snapshot metro=%d bus=%d, want 3 and 3", c.At(8), c.At(9))
	}
}

func TestLimiterLeavesOtherFlagsAlone(t *testing.T) {
	f := newFixture(32)
	path := f.stop(t, 5, network.LineID(network.TransportTram))
	extra := citizens.FlagCustomName | citizens.FlagUnderground
	f.place(1, path, waitingOnPath|extra, 0)

	limits := config.Default()
	limits.MaxWaitingPassengersTram = 0
	f.run(limits, 0)

	want := waitingOnPath | extra | citizens.FlagBoredOfWaiting
	if got := f.buf.Items[1].Flags; got != want {
		t.Fatalf("flags = %b, want %b", got, want)
	}
}

func TestLimiterIgnoresNodesWithoutLimit(t *testing.T) {
	f := newFixture(160)
	noLine := f.stop(t, 10, 0)
	taxi := f.stop(t, 11, network.LineID(network.TransportTaxi))
	bogus := f.stop(t, 12, network.LineID(network.NumTransportTypes+3))
	for id := 1; id < 10; id++ {
		switch id % 3 {
		case 0:
			f.place(id, noLine, waitingOnPath, 0)
		case 1:
			f.place(id, taxi, waitingOnPath, 0)
		default:
			f.place(id, bogus, waitingOnPath, 0)
		}
	}

	var zero config.Limits // every configured mode at 0
	c, l := f.run(zero, 0)

	if l.Last().Evicted != 0 {
		t.Fatalf("evicted %d at nodes without a configured limit", l.Last().Evicted)
	}
	if c.At(10) != 3 || c.At(11) != 3 || c.At(12) != 3 {
		t.Fatalf("snapshot = %d/%d/%d, want 3 each", c.At(10), c.At(11), c.At(12))
	}
}

func TestCountAndLimitDoNotAllocate(t *testing.T) {
	f := newFixture(citizens.MaxInstanceCount)
	path := f.stop(t, 5, network.LineID(network.TransportBus))
	for id := 1; id < len(f.buf.Items); id += 7 {
		f.place(id, path, waitingOnPath, 0)
	}
	c := NewCounter(len(f.net.Nodes))
	l := NewLimiter(c, NewResolver(config.Default()))

	var frame uint32
	allocs := testing.AllocsPerRun(20, func() {
		c.Count(f.buf.Items, f.net)
		l.Limit(f.buf.Items, f.net, frame)
		frame++
	})
	if allocs != 0 {
		t.Fatalf("allocs per run = %v, want 0", allocs)
	}
}
