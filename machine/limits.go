package machine

import (
	"errors"
	"math"
	"time"
)

// Limits are the process wide safety settings for probing. They are
// copied into a Controller once and never change afterwards.
type Limits struct {
	// MaxProbeTravel is the furthest a single contact search may descend
	// below its starting height.
	MaxProbeTravel float64 `yaml:"max_probe_travel"`

	// StepZ is the descent per sensor poll.
	StepZ float64 `yaml:"step_z"`

	// Feed rates in mm/min.
	SearchFeed  int `yaml:"search_feed"`
	RetractFeed int `yaml:"retract_feed"`
	TravelFeed  int `yaml:"travel_feed"`

	// SettleMargin is added to the time a step takes at SearchFeed before
	// the sensor is polled.
	SettleMargin time.Duration `yaml:"settle_margin"`
}

// DefaultLimits are tuned for a 0.1mm search at 5mm/s.
func DefaultLimits() Limits {
	return Limits{
		MaxProbeTravel: 5,
		StepZ:          0.1,
		SearchFeed:     300,
		RetractFeed:    1800,
		TravelFeed:     1800,
		SettleMargin:   30 * time.Millisecond,
	}
}

func (l Limits) Validate() error {
	switch {
	case !(l.MaxProbeTravel > 0) || math.IsInf(l.MaxProbeTravel, 0):
		return errors.New("max probe travel must be positive")
	case !(l.StepZ > 0) || math.IsInf(l.StepZ, 0):
		return errors.New("z step must be positive")
	case l.StepZ > l.MaxProbeTravel:
		return errors.New("z step must not exceed max probe travel")
	case l.SearchFeed <= 0:
		return errors.New("search feed must be positive")
	case l.RetractFeed <= 0:
		return errors.New("retract feed must be positive")
	case l.TravelFeed <= 0:
		return errors.New("travel feed must be positive")
	case l.SettleMargin < 0:
		return errors.New("settle margin must not be negative")
	}
	return nil
}

// MaxSteps is the number of descents a contact search may make.
func (l Limits) MaxSteps() int {
	// 5/0.1 must give 50, not 49.
	return int(math.Floor(l.MaxProbeTravel/l.StepZ + 1e-9))
}

// SettleDelay is how long to wait after commanding one step before
// polling the sensor: the step's travel time at SearchFeed plus
// SettleMargin.
func (l Limits) SettleDelay() time.Duration {
	mmPerSec := float64(l.SearchFeed) / 60
	travel := time.Duration(math.Round(l.StepZ / mmPerSec * float64(time.Second)))
	return travel + l.SettleMargin
}
