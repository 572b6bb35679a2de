// Package gpio reads probe contact from a digital input pin.
package gpio

import (
	"errors"
	"fmt"

	"github.com/mastercactapus/surfscan/machine"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// Sensor is a contact switch on an input pin with the internal pull-up
// enabled. With ActiveLow the probe closing to ground reads as contact.
type Sensor struct {
	pin    gpio.PinIO
	active gpio.Level
}

var _ machine.Sensor = &Sensor{}

// New configures pin as a pulled-up input.
func New(pin gpio.PinIO, activeLow bool) (*Sensor, error) {
	if pin == nil {
		return nil, errors.New("no pin")
	}
	if err := pin.In(gpio.PullUp, gpio.NoEdge); err != nil {
		return nil, fmt.Errorf("configure %s: %w", pin.Name(), err)
	}
	s := &Sensor{pin: pin, active: gpio.High}
	if activeLow {
		s.active = gpio.Low
	}
	return s, nil
}

// Open initializes the host drivers and opens the named pin (e.g. "GPIO24").
func Open(name string, activeLow bool) (*Sensor, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("init gpio: %w", err)
	}
	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, fmt.Errorf("gpio pin %q not found", name)
	}
	return New(pin, activeLow)
}

func (s *Sensor) Contacted() (bool, error) {
	return s.pin.Read() == s.active, nil
}
