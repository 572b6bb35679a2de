// Package sim is a simulated Marlin board and probe over a synthetic
// surface, for dry runs and tests.
package sim

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/mastercactapus/surfscan/coord"
	"github.com/mastercactapus/surfscan/gcode"
	"github.com/mastercactapus/surfscan/machine"
)

// Surface gives the work surface height at x,y. ok is false off the
// surface, where the probe never touches.
type Surface interface {
	OffsetZ(x, y float64) (ok bool, z float64)
}

// Flat is a level surface at the given height.
type Flat float64

func (f Flat) OffsetZ(x, y float64) (bool, float64) { return true, float64(f) }

// stepsPerMM is only used for the Count section of position reports.
const stepsPerMM = 80

// Machine acts as both Transport and Sensor.
type Machine struct {
	mx      sync.Mutex
	vm      *gcode.VM
	surface Surface

	out      []string
	received []string
	deepest  float64
}

var (
	_ machine.Transport = &Machine{}
	_ machine.Sensor    = &Machine{}
)

// New returns a board parked at start.
func New(start coord.Point, s Surface) *Machine {
	vm := gcode.NewVM()
	vm.SetMPos(start)
	return &Machine{vm: vm, surface: s}
}

func (m *Machine) reply(lines ...string) { m.out = append(m.out, lines...) }

func (m *Machine) SendLine(line string) error {
	m.mx.Lock()
	defer m.mx.Unlock()
	m.received = append(m.received, line)

	blocks, err := gcode.Parse(line)
	if err != nil {
		m.reply("Error:"+err.Error(), "ok")
		return nil
	}
	for _, b := range blocks {
		m.run(b)
	}
	return nil
}

func (m *Machine) run(b gcode.Block) {
	if ok, code := b.Arg('M'); ok {
		switch code {
		case 114:
			p := m.vm.MPos()
			m.reply(fmt.Sprintf("X:%.2f Y:%.2f Z:%.2f E:0.00 Count X:%d Y:%d Z:%d",
				p.X, p.Y, p.Z,
				int(math.Round(p.X*stepsPerMM)), int(math.Round(p.Y*stepsPerMM)), int(math.Round(p.Z*stepsPerMM)),
			), "ok")
			return
		case 400:
			m.reply("ok")
			return
		case 119:
			state := "open"
			if m.touching() {
				state = "TRIGGERED"
			}
			m.reply("Reporting endstop status", "z_probe: "+state, "ok")
			return
		}
	}
	if err := m.vm.Run(b); err != nil {
		m.reply("Error:"+err.Error(), "ok")
		return
	}
	m.track()
	m.reply("ok")
}

func (m *Machine) track() {
	p := m.vm.MPos()
	ok, z := m.surface.OffsetZ(p.X, p.Y)
	if ok && z-p.Z > m.deepest {
		m.deepest = z - p.Z
	}
}

// ReadLine never blocks: replies are produced synchronously by SendLine.
func (m *Machine) ReadLine(time.Duration) (string, error) {
	m.mx.Lock()
	defer m.mx.Unlock()
	if len(m.out) == 0 {
		return "", machine.ErrReadTimeout
	}
	line := m.out[0]
	m.out = m.out[1:]
	return line, nil
}

func (m *Machine) touching() bool {
	p := m.vm.MPos()
	ok, z := m.surface.OffsetZ(p.X, p.Y)
	return ok && p.Z <= z
}

func (m *Machine) Contacted() (bool, error) {
	m.mx.Lock()
	defer m.mx.Unlock()
	return m.touching(), nil
}

// Position is the simulated head position.
func (m *Machine) Position() coord.Point {
	m.mx.Lock()
	defer m.mx.Unlock()
	return m.vm.MPos()
}

// Received returns every line sent so far.
func (m *Machine) Received() []string {
	m.mx.Lock()
	defer m.mx.Unlock()
	return append([]string(nil), m.received...)
}

// Overtravel is the deepest the head has been driven below the surface.
func (m *Machine) Overtravel() float64 {
	m.mx.Lock()
	defer m.mx.Unlock()
	return m.deepest
}
