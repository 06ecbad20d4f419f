// City generation using layered simplex noise.
// Builds a grid road network, places transit stops where demand noise is high,
// and assigns each stop a line whose mode is picked from a second noise layer.
package network

import (
	"fmt"
	"math"
	"math/rand"

	opensimplex "github.com/ojrac/opensimplex-go"
)

// GenConfig holds city generation parameters.
type GenConfig struct {
	Width         int     // Grid nodes along x
	Height        int     // Grid nodes along y
	Seed          int64   // Random seed (0 = random)
	StopThreshold float64 // Demand noise above which a node becomes a stop (0.0–1.0)
	Capacity      Capacity
}

// DefaultGenConfig returns a city sized for the full-size host buffers.
func DefaultGenConfig() GenConfig {
	return GenConfig{
		Width:         64,
		Height:        64,
		Seed:          0,
		StopThreshold: 0.55,
		Capacity:      DefaultCapacity(),
	}
}

// SmallTestConfig returns a tiny city for tests and rapid iteration.
func SmallTestConfig() GenConfig {
	return GenConfig{
		Width:         8,
		Height:        8,
		Seed:          42,
		StopThreshold: 0.45,
		Capacity: Capacity{
			Nodes:     128,
			Segments:  512,
			PathUnits: 1024,
			Lines:     NumTransportTypes,
		},
	}
}

// Stop is a node served by a transport line, with its outgoing boarding segment.
type Stop struct {
	Node    NodeID
	Segment SegmentID // Segment starting at Node
	Line    LineID
	Demand  float64 // 0.0–1.0, relative share of new passengers
}

// City is a generated network plus the host-side indexes built alongside it.
type City struct {
	Net    *Network
	Stops  []Stop
	Width  int
	Height int

	// Outgoing segments per node, used to build walking paths.
	out [][]SegmentID
}

// Generate creates a grid city. Line ids equal transport types, so line 1 is
// the bus line, line 2 the tram line, and so on.
func Generate(cfg GenConfig) (*City, error) {
	nodes := cfg.Width * cfg.Height
	if cfg.Width < 2 || cfg.Height < 2 {
		return nil, fmt.Errorf("grid %dx%d too small", cfg.Width, cfg.Height)
	}
	if nodes+1 > cfg.Capacity.Nodes || nodes+1 > math.MaxUint16 {
		return nil, fmt.Errorf("grid needs %d nodes, capacity %d", nodes+1, cfg.Capacity.Nodes)
	}
	segments := 2 * (2*nodes - cfg.Width - cfg.Height)
	if segments+1 > cfg.Capacity.Segments || segments+1 > math.MaxUint16 {
		return nil, fmt.Errorf("grid needs %d segments, capacity %d", segments+1, cfg.Capacity.Segments)
	}
	if cfg.Capacity.Lines < NumTransportTypes {
		return nil, fmt.Errorf("line capacity %d below %d transport types", cfg.Capacity.Lines, NumTransportTypes)
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Int63()
	}

	demandNoise := opensimplex.NewNormalized(seed)
	modeNoise := opensimplex.NewNormalized(seed + 1)

	net := New(cfg.Capacity)
	for t := TransportType(1); t < NumTransportTypes; t++ {
		net.Lines[t] = TransportLine{Type: t}
	}

	city := &City{
		Net:    net,
		Width:  cfg.Width,
		Height: cfg.Height,
		out:    make([][]SegmentID, nodes+1),
	}

	// Directed segments in both directions between grid neighbours.
	nextSeg := SegmentID(1)
	link := func(a, b NodeID) {
		net.Segments[nextSeg] = Segment{StartNode: a, EndNode: b, Length: 100}
		city.out[a] = append(city.out[a], nextSeg)
		nextSeg++
	}
	for y := 0; y < cfg.Height; y++ {
		for x := 0; x < cfg.Width; x++ {
			id := city.NodeAt(x, y)
			if x+1 < cfg.Width {
				east := city.NodeAt(x+1, y)
				link(id, east)
				link(east, id)
			}
			if y+1 < cfg.Height {
				south := city.NodeAt(x, y+1)
				link(id, south)
				link(south, id)
			}
		}
	}

	// Stops where demand is high; the mode comes from an independent layer.
	for y := 0; y < cfg.Height; y++ {
		for x := 0; x < cfg.Width; x++ {
			demand := octaveNoise(demandNoise, float64(x), float64(y), 3, 0.15, 0.5)
			if demand < cfg.StopThreshold {
				continue
			}
			mode := octaveNoise(modeNoise, float64(x), float64(y), 2, 0.1, 0.5)
			t := TransportType(1 + int(mode*float64(NumTransportTypes-1)))
			if t >= NumTransportTypes {
				t = NumTransportTypes - 1
			}

			id := city.NodeAt(x, y)
			net.Nodes[id].TransportLine = LineID(t)
			city.Stops = append(city.Stops, Stop{
				Node:    id,
				Segment: city.out[id][0],
				Line:    LineID(t),
				Demand:  demand,
			})
		}
	}

	return city, nil
}

// NodeAt returns the node id of grid cell (x, y). Node 0 is reserved.
func (c *City) NodeAt(x, y int) NodeID {
	return NodeID(1 + y*c.Width + x)
}

// Outgoing returns the segments leaving a node.
func (c *City) Outgoing(node NodeID) []SegmentID {
	if int(node) >= len(c.out) {
		return nil
	}
	return c.out[node]
}

// WalkTo builds a path of up to steps segments that ends on the stop's
// boarding segment, walking backwards from the stop with rng.
func (c *City) WalkTo(stop Stop, steps int, rng *rand.Rand) []Position {
	if steps > PositionsPerUnit-1 {
		steps = PositionsPerUnit - 1
	}
	// Walk away from the stop, then reverse so the path leads into it.
	trail := make([]Position, 0, steps+1)
	trail = append(trail, Position{Segment: stop.Segment, Offset: 0})
	current := stop.Node
	for i := 0; i < steps; i++ {
		out := c.Outgoing(current)
		if len(out) == 0 {
			break
		}
		seg := out[rng.Intn(len(out))]
		next := c.Net.Segments[seg].EndNode
		// Use the reverse segment so the walker moves toward the stop.
		back := c.segmentBetween(next, current)
		if back == 0 {
			break
		}
		trail = append(trail, Position{Segment: back, Offset: uint8(rng.Intn(256))})
		current = next
	}
	for i, j := 0, len(trail)-1; i < j; i, j = i+1, j-1 {
		trail[i], trail[j] = trail[j], trail[i]
	}
	return trail
}

func (c *City) segmentBetween(a, b NodeID) SegmentID {
	for _, seg := range c.Outgoing(a) {
		if c.Net.Segments[seg].EndNode == b {
			return seg
		}
	}
	return 0
}

// StopCounts returns how many stops each transport type has.
func StopCounts(c *City) map[TransportType]int {
	counts := make(map[TransportType]int)
	for _, s := range c.Stops {
		counts[c.Net.LineType(s.Line)]++
	}
	return counts
}

// octaveNoise generates fractal noise by layering multiple frequencies.
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0

	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}

	return total / maxVal
}
