// Simulation is the host world: it owns the city and citizen buffers, moves
// travellers along their paths, and runs the passenger limiter lifecycle.
package engine

import (
	"fmt"
	"log/slog"

	"github.com/dustin/go-humanize"

	"github.com/talgya/transit-limiter/internal/citizens"
	"github.com/talgya/transit-limiter/internal/limiter"
	"github.com/talgya/transit-limiter/internal/network"
)

// SimConfig controls host behaviour.
type SimConfig struct {
	Seed         int64
	SpawnPerTick int     // New travellers per tick
	WaitingShare float64 // Fraction of new travellers that spawn already waiting
	Headway      uint64  // Ticks between vehicle arrivals at a stop
}

// DefaultSimConfig returns a moderately busy city.
func DefaultSimConfig() SimConfig {
	return SimConfig{
		Seed:         42,
		SpawnPerTick: 400,
		WaitingShare: 0.3,
		Headway:      12,
	}
}

// TickStats are the host counters for one tick.
type TickStats struct {
	Tick              uint64 `json:"tick" db:"tick"`
	Population        int    `json:"population" db:"population"`
	Waiting           uint32 `json:"waiting" db:"waiting"`
	OverCapacityStops int    `json:"over_capacity_stops" db:"over_capacity_stops"`
	Spawned           int    `json:"spawned" db:"spawned"`
	Boarded           int    `json:"boarded" db:"boarded"`
	Abandoned         int    `json:"abandoned" db:"abandoned"` // Gave up after the full wait
	Evicted           int    `json:"evicted" db:"evicted"`     // Marked bored by the limiter
	Redirected        int    `json:"redirected" db:"redirected"`
}

// Simulation implements limiter.Host.
type Simulation struct {
	City     *network.City
	Buffer   *citizens.Buffer
	Spawner  *citizens.Spawner
	Mod      *limiter.Mod
	Config   SimConfig
	LastTick uint64

	frame uint32

	// Remaining boarding capacity per node for the current tick.
	boarding []uint16

	// Current and most recently completed tick.
	Current TickStats
	History []TickStats // Completed ticks not yet flushed
	Totals  TickStats
}

// NewSimulation wires a host around city and runs the limiter's OnCreated
// with sources.
func NewSimulation(city *network.City, buf *citizens.Buffer, cfg SimConfig, sources ...any) *Simulation {
	s := &Simulation{
		City:     city,
		Buffer:   buf,
		Spawner:  citizens.NewSpawner(cfg.Seed, city, buf),
		Config:   cfg,
		boarding: make([]uint16, len(city.Net.Nodes)),
	}
	if s.Config.Headway == 0 {
		s.Config.Headway = 1
	}
	s.Mod = limiter.NewMod(s)
	s.Mod.OnCreated(sources...)
	return s
}

// Citizens returns the citizen buffer.
func (s *Simulation) Citizens() *citizens.Buffer { return s.Buffer }

// Network returns the network buffers.
func (s *Simulation) Network() *network.Network { return s.City.Net }

// FrameIndex returns the frame currently being simulated.
func (s *Simulation) FrameIndex() uint32 { return s.frame }

// TickStart runs once per tick before its frames: recount occupancy, close
// out the previous tick, dispatch vehicles and spawn new demand.
func (s *Simulation) TickStart(tick uint64) {
	s.Mod.OnBeforeSimulationTick()

	if s.LastTick != 0 {
		s.History = append(s.History, s.Current)
		// Keep the backlog bounded when nobody flushes it.
		if len(s.History) > 1000 {
			s.History = s.History[len(s.History)-1000:]
		}
	}
	s.LastTick = tick
	s.Current = TickStats{
		Tick:    tick,
		Waiting: s.Mod.Counter().Total(),
	}

	resolver := s.Mod.Resolver()
	net := s.City.Net
	for _, st := range s.City.Stops {
		if uint64(s.Mod.Counter().At(st.Node)) > uint64(resolver.MaxPassengers(net, st.Node)) {
			s.Current.OverCapacityStops++
		}
		// Stops are staggered so vehicles do not all arrive on the same tick.
		if (tick+uint64(st.Node))%s.Config.Headway == 0 {
			s.boarding[st.Node] = uint16(network.VehicleCapacity(net.LineType(st.Line)))
		} else {
			s.boarding[st.Node] = 0
		}
	}

	s.Current.Spawned = s.Spawner.SpawnPopulation(s.Config.SpawnPerTick, s.Config.WaitingShare)
	s.Totals.Spawned += s.Current.Spawned
	s.Current.Population = s.Buffer.Count()
}

// Frame runs the limiter on this frame's slice, then advances the same slice
// of travellers.
func (s *Simulation) Frame(frame uint32) {
	s.frame = frame
	s.Mod.OnBeforeSimulationFrame()

	evicted := s.Mod.Limiter().Last().Evicted
	s.Current.Evicted += evicted
	s.Totals.Evicted += evicted

	start, end := limiter.SliceBounds(frame, s.Buffer.Capacity())
	for i := start; i < end; i++ {
		s.stepInstance(citizens.InstanceID(i))
	}
	s.Current.Population = s.Buffer.Count()
}

func (s *Simulation) stepInstance(id citizens.InstanceID) {
	inst := &s.Buffer.Items[id]
	if inst.Flags&citizens.FlagCreated == 0 || inst.Path == 0 {
		return
	}

	if inst.Flags&citizens.FlagWaitingTransport == 0 {
		s.walk(inst)
		return
	}

	switch {
	case inst.Flags&citizens.FlagBoredOfWaiting != 0:
		// Evicted: the traveller gives up on transit for this trip.
		s.Current.Redirected++
		s.Totals.Redirected++
		s.Spawner.Despawn(id)
	case s.board(inst):
		s.Current.Boarded++
		s.Totals.Boarded++
		s.Spawner.Despawn(id)
	case inst.WaitCounter == citizens.MaxWaitCounter:
		s.Current.Abandoned++
		s.Totals.Abandoned++
		s.Spawner.Despawn(id)
	default:
		inst.WaitCounter++
	}
}

// walk moves a walker one position along its path; at the last position it
// starts waiting for transport.
func (s *Simulation) walk(inst *citizens.Instance) {
	index := inst.PathPositionIndex >> 1
	count := s.City.Net.PathUnits[inst.Path].PositionCount
	if index+1 >= count {
		inst.Flags |= citizens.FlagWaitingTransport
		inst.WaitCounter = 0
		return
	}
	inst.PathPositionIndex += 2
}

func (s *Simulation) board(inst *citizens.Instance) bool {
	node := s.City.Net.StopNode(inst.Path, inst.PathPositionIndex)
	if int(node) >= len(s.boarding) || s.boarding[node] == 0 {
		return false
	}
	s.boarding[node]--
	return true
}

// Flush returns completed ticks and clears the backlog.
func (s *Simulation) Flush() []TickStats {
	out := s.History
	s.History = nil
	return out
}

// Report logs a summary of the current tick.
func (s *Simulation) Report(tick uint64) {
	c := s.Current
	slog.Info("tick report",
		"tick", tick,
		"population", humanize.Comma(int64(c.Population)),
		"waiting", humanize.Comma(int64(c.Waiting)),
		"over_capacity_stops", c.OverCapacityStops,
		"evicted_total", humanize.Comma(int64(s.Totals.Evicted)),
		"boarded_total", humanize.Comma(int64(s.Totals.Boarded)),
		"abandoned_total", humanize.Comma(int64(s.Totals.Abandoned)),
		"eviction_share", fmt.Sprintf("%.3f", s.EvictionShare()),
	)
}

// EvictionShare is the fraction of finished waits that ended in eviction.
func (s *Simulation) EvictionShare() float64 {
	done := s.Totals.Redirected + s.Totals.Boarded + s.Totals.Abandoned
	if done == 0 {
		return 0
	}
	return float64(s.Totals.Redirected) / float64(done)
}

// Attach wires the simulation into an engine's callbacks.
func (s *Simulation) Attach(e *Engine) {
	e.OnTick = s.TickStart
	e.OnFrame = s.Frame
	e.OnReport = s.Report
}

// Seed fills the city with an initial population before the first tick.
func (s *Simulation) Seed(count int) int {
	n := s.Spawner.SpawnPopulation(count, s.Config.WaitingShare)
	slog.Info("initial population spawned", "requested", humanize.Comma(int64(count)), "spawned", humanize.Comma(int64(n)))
	return n
}
