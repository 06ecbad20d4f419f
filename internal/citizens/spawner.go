// Instance spawning: places new travellers on walking paths toward stops,
// or directly at a stop already waiting for transit.
package citizens

import (
	"math/rand"

	"github.com/talgya/transit-limiter/internal/network"
)

// Spawner creates instances for the host simulation.
type Spawner struct {
	rng  *rand.Rand
	city *network.City
	buf  *Buffer

	// Cumulative demand weights over city.Stops for weighted stop choice.
	cumDemand []float64
}

// NewSpawner creates a spawner bound to a city and an instance buffer.
func NewSpawner(seed int64, city *network.City, buf *Buffer) *Spawner {
	s := &Spawner{
		rng:  rand.New(rand.NewSource(seed + 300)),
		city: city,
		buf:  buf,
	}
	total := 0.0
	s.cumDemand = make([]float64, len(city.Stops))
	for i, st := range city.Stops {
		total += st.Demand
		s.cumDemand[i] = total
	}
	return s
}

// SpawnPopulation creates up to count instances at demand-weighted stops.
// A waitingShare fraction start out waiting; the rest walk toward the stop.
// Returns the number actually created.
func (s *Spawner) SpawnPopulation(count int, waitingShare float64) int {
	if len(s.city.Stops) == 0 {
		return 0
	}
	created := 0
	for i := 0; i < count; i++ {
		stop := s.pickStop()
		waiting := s.rng.Float64() < waitingShare
		if _, ok := s.SpawnAt(stop, waiting); !ok {
			break
		}
		created++
	}
	return created
}

// SpawnAt creates one instance heading for stop. Walkers start at the first
// position of their path; waiting instances start on the stop segment.
func (s *Spawner) SpawnAt(stop network.Stop, waiting bool) (InstanceID, bool) {
	steps := 0
	if !waiting {
		steps = 1 + s.rng.Intn(network.PositionsPerUnit-1)
	}
	positions := s.city.WalkTo(stop, steps, s.rng)

	path, ok := s.city.Net.AllocPath(positions...)
	if !ok {
		return 0, false
	}
	id, ok := s.buf.Create()
	if !ok {
		s.city.Net.ReleasePath(path)
		return 0, false
	}

	inst := &s.buf.Items[id]
	inst.Path = path
	inst.Flags |= FlagOnPath
	// Direction bit is random; it never affects which position is resolved.
	dir := uint8(s.rng.Intn(2))
	if waiting {
		inst.PathPositionIndex = uint8(len(positions)-1)<<1 | dir
		inst.Flags |= FlagWaitingTransport
	} else {
		inst.PathPositionIndex = dir
	}
	return id, true
}

// Despawn releases an instance and its path unit.
func (s *Spawner) Despawn(id InstanceID) {
	inst := s.buf.Get(id)
	if inst == nil || inst.Flags&FlagCreated == 0 {
		return
	}
	s.city.Net.ReleasePath(inst.Path)
	s.buf.Release(id)
}

func (s *Spawner) pickStop() network.Stop {
	total := s.cumDemand[len(s.cumDemand)-1]
	r := s.rng.Float64() * total
	for i, c := range s.cumDemand {
		if r < c {
			return s.city.Stops[i]
		}
	}
	return s.city.Stops[len(s.city.Stops)-1]
}
