package limiter

import (
	"github.com/talgya/transit-limiter/internal/config"
	"github.com/talgya/transit-limiter/internal/network"
)

// Resolver maps a stop node to the waiting limit of the mode serving it.
type Resolver struct {
	limits config.Limits
}

// NewResolver creates a resolver over fixed limits.
func NewResolver(limits config.Limits) *Resolver {
	return &Resolver{limits: limits}
}

// MaxPassengers returns the waiting limit at node. Nodes without a line, and
// lines of a mode with no configured limit, are Unlimited.
func (r *Resolver) MaxPassengers(net *network.Network, node network.NodeID) config.Limit {
	line := net.LineOf(node)
	if line == 0 {
		return config.Unlimited
	}
	return r.ForType(net.LineType(line))
}

// ForType returns the configured limit for a transport mode.
func (r *Resolver) ForType(t network.TransportType) config.Limit {
	switch t {
	case network.TransportEvacuationBus:
		return r.limits.MaxWaitingPassengersEvacuationBus
	case network.TransportBus:
		return r.limits.MaxWaitingPassengersBus
	case network.TransportTouristBus:
		return r.limits.MaxWaitingPassengersTouristBus
	case network.TransportTram:
		return r.limits.MaxWaitingPassengersTram
	case network.TransportMetro:
		return r.limits.MaxWaitingPassengersMetro
	case network.TransportTrain:
		return r.limits.MaxWaitingPassengersTrain
	case network.TransportMonorail:
		return r.limits.MaxWaitingPassengersMonorail
	case network.TransportAirplane:
		return r.limits.MaxWaitingPassengersAirplane
	case network.TransportShip:
		return r.limits.MaxWaitingPassengersShip
	case network.TransportCableCar:
		return r.limits.MaxWaitingPassengersCableCar
	case network.TransportHotAirBalloon:
		return r.limits.MaxWaitingPassengersHotAirBalloon
	default:
		return config.Unlimited
	}
}
