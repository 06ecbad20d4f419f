// Package config provides the waiting-passenger limits per transport mode.
// Limits are loaded once at startup and treated as read-only afterwards.
package config

import (
	"fmt"
	"math"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Limit is the maximum number of passengers allowed to wait at one stop.
type Limit uint32

// Unlimited disables eviction for a mode.
const Unlimited Limit = math.MaxUint32

const unlimitedText = "unlimited"

// UnmarshalYAML accepts a non-negative integer in any YAML integer notation
// (decimal, 0x hex, 0o octal, underscores) or the string "unlimited".
func (l *Limit) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: limit must be a scalar", value.Line)
	}
	if value.Value == unlimitedText {
		*l = Unlimited
		return nil
	}
	var n uint64
	if err := value.Decode(&n); err != nil || n > math.MaxUint32 {
		return fmt.Errorf("line %d: limit %q: want a non-negative integer or %q", value.Line, value.Value, unlimitedText)
	}
	*l = Limit(n)
	return nil
}

// MarshalYAML renders Unlimited as the string "unlimited".
func (l Limit) MarshalYAML() (interface{}, error) {
	if l == Unlimited {
		return unlimitedText, nil
	}
	return uint32(l), nil
}

func (l Limit) String() string {
	if l == Unlimited {
		return unlimitedText
	}
	return strconv.FormatUint(uint64(l), 10)
}

// Limits holds one maximum per transport mode.
type Limits struct {
	MaxWaitingPassengersEvacuationBus Limit `yaml:"max_waiting_passengers_evacuation_bus" json:"max_waiting_passengers_evacuation_bus"`
	MaxWaitingPassengersBus           Limit `yaml:"max_waiting_passengers_bus" json:"max_waiting_passengers_bus"`
	MaxWaitingPassengersTouristBus    Limit `yaml:"max_waiting_passengers_tourist_bus" json:"max_waiting_passengers_tourist_bus"`
	MaxWaitingPassengersTram          Limit `yaml:"max_waiting_passengers_tram" json:"max_waiting_passengers_tram"`
	MaxWaitingPassengersMetro         Limit `yaml:"max_waiting_passengers_metro" json:"max_waiting_passengers_metro"`
	MaxWaitingPassengersTrain         Limit `yaml:"max_waiting_passengers_train" json:"max_waiting_passengers_train"`
	MaxWaitingPassengersMonorail      Limit `yaml:"max_waiting_passengers_monorail" json:"max_waiting_passengers_monorail"`
	MaxWaitingPassengersAirplane      Limit `yaml:"max_waiting_passengers_airplane" json:"max_waiting_passengers_airplane"`
	MaxWaitingPassengersShip          Limit `yaml:"max_waiting_passengers_ship" json:"max_waiting_passengers_ship"`
	MaxWaitingPassengersCableCar      Limit `yaml:"max_waiting_passengers_cable_car" json:"max_waiting_passengers_cable_car"`
	MaxWaitingPassengersHotAirBalloon Limit `yaml:"max_waiting_passengers_hot_air_balloon" json:"max_waiting_passengers_hot_air_balloon"`
}

// Default returns the built-in limits used when no provider supplies any.
// Values scale with the vehicle size of each mode.
func Default() Limits {
	return Limits{
		MaxWaitingPassengersEvacuationBus: 80,
		MaxWaitingPassengersBus:           50,
		MaxWaitingPassengersTouristBus:    50,
		MaxWaitingPassengersTram:          70,
		MaxWaitingPassengersMetro:         150,
		MaxWaitingPassengersTrain:         200,
		MaxWaitingPassengersMonorail:      150,
		MaxWaitingPassengersAirplane:      250,
		MaxWaitingPassengersShip:          250,
		MaxWaitingPassengersCableCar:      30,
		MaxWaitingPassengersHotAirBalloon: 20,
	}
}
