package limiter

import (
	"log/slog"

	"github.com/talgya/transit-limiter/internal/citizens"
	"github.com/talgya/transit-limiter/internal/config"
	"github.com/talgya/transit-limiter/internal/network"
)

// Host is the simulation the limiter is attached to. Its buffers are
// borrowed on every call and never retained between calls.
type Host interface {
	Citizens() *citizens.Buffer
	Network() *network.Network
	FrameIndex() uint32
}

// Mod wires the counter and limiter to the host lifecycle.
type Mod struct {
	host     Host
	limits   config.Limits
	resolver *Resolver
	counter  *Counter
	limiter  *Limiter
}

// NewMod creates a lifecycle adapter for host. Call OnCreated before ticking.
func NewMod(host Host) *Mod {
	return &Mod{host: host}
}

// OnCreated resolves limits from sources (see config.Resolve) and sizes the
// snapshot to the host's node buffer.
func (m *Mod) OnCreated(sources ...any) {
	m.limits = config.Resolve(sources...)
	m.resolver = NewResolver(m.limits)
	m.counter = NewCounter(len(m.host.Network().Nodes))
	m.limiter = NewLimiter(m.counter, m.resolver)

	slog.Info("passenger limiter created",
		"bus", m.limits.MaxWaitingPassengersBus.String(),
		"tram", m.limits.MaxWaitingPassengersTram.String(),
		"metro", m.limits.MaxWaitingPassengersMetro.String(),
		"train", m.limits.MaxWaitingPassengersTrain.String(),
		"nodes", len(m.counter.counts),
	)
}

// OnBeforeSimulationTick rebuilds the occupancy snapshot.
func (m *Mod) OnBeforeSimulationTick() {
	if m.counter == nil {
		return
	}
	m.counter.Count(m.host.Citizens().Items, m.host.Network())
}

// OnBeforeSimulationFrame runs the limiter over the current frame's slice.
func (m *Mod) OnBeforeSimulationFrame() {
	if m.limiter == nil {
		return
	}
	m.limiter.Limit(m.host.Citizens().Items, m.host.Network(), m.host.FrameIndex())
}

// Limits returns the resolved limits.
func (m *Mod) Limits() config.Limits {
	return m.limits
}

// Counter returns the occupancy counter, nil before OnCreated.
func (m *Mod) Counter() *Counter {
	return m.counter
}

// Limiter returns the frame limiter, nil before OnCreated.
func (m *Mod) Limiter() *Limiter {
	return m.limiter
}

// Resolver returns the limit resolver, nil before OnCreated.
func (m *Mod) Resolver() *Resolver {
	return m.resolver
}
