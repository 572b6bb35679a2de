package marlin

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mastercactapus/surfscan/gcode"
	"github.com/mastercactapus/surfscan/machine"
)

// EndstopSensor reads probe contact from the firmware's endstop report
// (M119) instead of a dedicated input pin.
type EndstopSensor struct {
	T       machine.Transport
	Name    string // e.g. "z_probe" or "z_min"
	Timeout time.Duration
}

var _ machine.Sensor = &EndstopSensor{}

const endstopLines = 16

// ErrNoEndstop is returned when the endstop report lacks the named switch.
var ErrNoEndstop = errors.New("endstop not reported")

func (s *EndstopSensor) Contacted() (bool, error) {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = machine.DefaultReadTimeout
	}
	if err := s.T.SendLine(gcode.EndstopQuery().Line()); err != nil {
		return false, err
	}

	var state string
	for i := 0; i < endstopLines; i++ {
		line, err := s.T.ReadLine(timeout)
		if err != nil {
			return false, fmt.Errorf("endstop report: %w", err)
		}
		line = strings.TrimSpace(line)
		if line == "ok" {
			switch state {
			case "":
				return false, fmt.Errorf("%s: %w", s.Name, ErrNoEndstop)
			case "TRIGGERED":
				return true, nil
			case "open":
				return false, nil
			default:
				return false, fmt.Errorf("%s: unknown state %q", s.Name, state)
			}
		}
		if name, val, ok := strings.Cut(line, ":"); ok && strings.TrimSpace(name) == s.Name {
			state = strings.TrimSpace(val)
		}
	}

	return false, fmt.Errorf("endstop report: no ok after %d lines", endstopLines)
}
