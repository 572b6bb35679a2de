package machine

import (
	"fmt"

	"github.com/mastercactapus/surfscan/coord"
	"github.com/mastercactapus/surfscan/gcode"
)

// ProbeResult is one recorded grid point. Valid is false when the
// contact search ran out of travel, in which case Z is not a surface.
type ProbeResult struct {
	coord.Point
	Valid bool
}

// Contact is the outcome of a single contact search.
type Contact struct {
	// Z is the height after the last descending step. When Touched it is
	// the surface height, at most one StepZ below the true contact point.
	Z       float64
	Steps   int
	Touched bool

	startZ float64
	travel float64
}

// Err is a *TravelLimitExceeded when the sensor never tripped.
func (ct Contact) Err() error {
	if ct.Touched {
		return nil
	}
	return &TravelLimitExceeded{StartZ: ct.startZ, Travel: ct.travel}
}

// ProbeZ lowers Z from startZ in StepZ increments, polling the sensor after
// each step, until contact or MaxProbeTravel is used up. Z is then returned
// to startZ and the call waits for all motion to finish.
//
// Steps are not individually waited on; SettleDelay covers the step's
// travel time before the sensor is read.
func (c *Controller) ProbeZ(startZ float64) (Contact, error) {
	res := Contact{Z: startZ, startZ: startZ}
	if err := c.guard(); err != nil {
		return res, err
	}

	maxSteps := c.limits.MaxSteps()
	res.travel = float64(maxSteps) * c.limits.StepZ
	delay := c.limits.SettleDelay()

	var sensorErr error
	for k := 1; k <= maxSteps; k++ {
		z := startZ - float64(k)*c.limits.StepZ
		if err := c.exec(gcode.LinearZ(z, c.limits.SearchFeed)); err != nil {
			// position of the head is unknown, don't try to retract blindly
			return res, c.fail(err)
		}
		res.Z = z
		res.Steps = k

		c.sleep(delay)
		touched, err := c.sensor.Contacted()
		if err != nil {
			sensorErr = err
			break
		}
		if touched {
			res.Touched = true
			break
		}
	}

	if err := c.exec(gcode.LinearZ(startZ, c.limits.RetractFeed)); err != nil {
		return res, c.fail(err)
	}
	if err := c.exec(gcode.FinishMoves()); err != nil {
		return res, c.fail(err)
	}
	if sensorErr != nil {
		err := fmt.Errorf("read probe sensor: %w", sensorErr)
		if c.fault == nil {
			c.fault = err
		}
		c.log.Error("motion halted", "err", err)
		return res, err
	}

	c.log.Debug("probe", "start_z", startZ, "z", res.Z, "steps", res.Steps, "touched", res.Touched)
	return res, nil
}
