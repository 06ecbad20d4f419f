// Package citizens provides the citizen instance buffer shared with the host
// simulation. Instances are plain values in a fixed-capacity slice; slot 0 is
// a sentinel and never holds a live instance.
package citizens

import (
	"github.com/talgya/transit-limiter/internal/network"
)

// InstanceID indexes the instance buffer.
type InstanceID uint32

// MaxInstanceCount is the buffer capacity of the full-size host.
const MaxInstanceCount = 65536

// Flags is the instance state bitset.
type Flags uint32

const (
	FlagNone               Flags = 0
	FlagCreated            Flags = 1 << 0
	FlagDeleted            Flags = 1 << 1
	FlagUnderground        Flags = 1 << 2
	FlagCustomName         Flags = 1 << 3
	FlagEnteringVehicle    Flags = 1 << 4
	FlagOnPath             Flags = 1 << 5
	FlagWaitingPath        Flags = 1 << 6
	FlagWaitingTransport   Flags = 1 << 7
	FlagBoredOfWaiting     Flags = 1 << 8
	FlagCannotUseTransport Flags = 1 << 9
	FlagTargetIsNode       Flags = 1 << 10
)

// FlagsWaitingOnPath marks an instance that is mid-journey and waiting for a
// transit vehicle. Both bits must be present.
const FlagsWaitingOnPath = FlagOnPath | FlagWaitingTransport

// Has reports whether every bit of mask is set.
func (f Flags) Has(mask Flags) bool {
	return f&mask == mask
}

// MaxWaitCounter is the largest wait counter value. The host treats an
// instance at this value as having waited as long as it ever will.
const MaxWaitCounter = 255

// Instance is one simulated person moving through the city.
type Instance struct {
	Flags             Flags          `json:"flags"`
	Path              network.PathID `json:"path"`                // 0 = no path
	PathPositionIndex uint8          `json:"path_position_index"` // Low bit is direction
	WaitCounter       uint8          `json:"wait_counter"`
}

// Waiting reports whether the instance has a path and is waiting on transit.
func (i *Instance) Waiting() bool {
	return i.Path != 0 && i.Flags.Has(FlagsWaitingOnPath)
}
