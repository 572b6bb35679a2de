package machine

import (
	"errors"
	"strings"
	"time"

	"github.com/mastercactapus/surfscan/coord"
	"github.com/mastercactapus/surfscan/gcode"
	"github.com/mastercactapus/surfscan/logger"
)

// A Transport is a line oriented link to the motion controller.
type Transport interface {
	// SendLine writes one command. The newline is added by the transport.
	SendLine(line string) error

	// ReadLine returns the next response line without its terminator, or an
	// error wrapping ErrReadTimeout if none arrives within timeout.
	ReadLine(timeout time.Duration) (string, error)
}

// A Sensor is the probe contact input. It is polled, never event driven.
type Sensor interface {
	Contacted() (bool, error)
}

// DefaultReadTimeout bounds each ReadLine call.
const DefaultReadTimeout = 2 * time.Second

const (
	// positionReads is the number of lines a position query may consume
	// before the position report must have appeared.
	positionReads = 5

	// ackChatter is the number of unrelated lines tolerated while waiting
	// for a command's ok.
	ackChatter = 32

	// busyLimit caps keep-alive lines during one long command (about half
	// an hour at Marlin's 2s busy interval).
	busyLimit = 900

	// drainQuiet is how long a resync waits for another stale line before
	// treating the link as idle.
	drainQuiet = 250 * time.Millisecond

	// drainLimit caps the lines a resync discards.
	drainLimit = 1024
)

// A Drainer is a Transport that can discard its own buffered input.
type Drainer interface {
	Drain(quiet time.Duration) int
}

type Options struct {
	Limits      Limits
	ReadTimeout time.Duration
	Log         *logger.Logger

	// Sleep waits out the settle delay between probe steps. Defaults to
	// time.Sleep.
	Sleep func(time.Duration)
}

// Controller is the probing controller. It owns the transport and sensor
// exclusively and is not safe for concurrent use.
type Controller struct {
	t      Transport
	sensor Sensor
	limits Limits
	log    *logger.Logger
	sleep  func(time.Duration)

	readTimeout time.Duration

	pos        coord.Point
	start, end *coord.Point

	fault error
}

func NewController(t Transport, s Sensor, opt Options) (*Controller, error) {
	if t == nil {
		return nil, errors.New("transport is required")
	}
	if s == nil {
		return nil, errors.New("sensor is required")
	}
	if err := opt.Limits.Validate(); err != nil {
		return nil, err
	}
	c := &Controller{
		t:           t,
		sensor:      s,
		limits:      opt.Limits,
		log:         opt.Log,
		sleep:       opt.Sleep,
		readTimeout: opt.ReadTimeout,
	}
	if c.log == nil {
		c.log = logger.Nop()
	}
	if c.sleep == nil {
		c.sleep = time.Sleep
	}
	if c.readTimeout <= 0 {
		c.readTimeout = DefaultReadTimeout
	}
	return c, nil
}

// Limits returns the safety limits the controller was created with.
func (c *Controller) Limits() Limits { return c.limits }

// Init selects millimetres and absolute positioning, then reads the
// starting position.
func (c *Controller) Init() error {
	if err := c.exec(gcode.MetricAbsolute()); err != nil {
		return c.fail(err)
	}
	_, err := c.Refresh()
	return err
}

func (c *Controller) send(b gcode.Block) error {
	line := b.Line()
	c.log.Debug("send", "line", line)
	if err := c.t.SendLine(line); err != nil {
		return &TransportError{Op: "send " + line, Err: err}
	}
	return nil
}

func (c *Controller) readLine(cmd string, n int) (string, error) {
	line, err := c.t.ReadLine(c.readTimeout)
	if errors.Is(err, ErrReadTimeout) {
		return "", &ProtocolTimeout{Cmd: cmd, Reads: n}
	}
	if err != nil {
		return "", &TransportError{Op: "read " + cmd, Err: err}
	}
	line = strings.TrimSpace(line)
	c.log.Debug("recv", "line", line)
	return line, nil
}

// exec sends a block and waits for it to be acknowledged.
func (c *Controller) exec(b gcode.Block) error {
	if err := c.send(b); err != nil {
		return err
	}
	return c.awaitAck(b.Line())
}

func isOK(line string) bool { return line == "ok" || strings.HasPrefix(line, "ok ") }
func isError(line string) bool {
	return strings.HasPrefix(strings.ToLower(line), "error")
}
func isBusy(line string) bool { return strings.HasPrefix(line, "echo:busy") }

// awaitAck reads until the command's ok. Busy keep-alives do not count
// against the chatter budget. A firmware error still consumes its ok so
// the next command starts in sync.
func (c *Controller) awaitAck(cmd string) error {
	var cmdErr error
	busy := 0
	for n := 1; n <= ackChatter && busy < busyLimit; {
		line, err := c.readLine(cmd, n)
		if err != nil {
			return err
		}
		switch {
		case isOK(line):
			return cmdErr
		case isError(line):
			if cmdErr == nil {
				cmdErr = &TransportError{Op: cmd, Err: errors.New(line)}
			}
		case isBusy(line):
			busy++
			continue
		}
		n++
	}
	if cmdErr != nil {
		return cmdErr
	}
	return &ProtocolTimeout{Cmd: cmd, Reads: ackChatter}
}

// fail latches err if it must stop further motion and returns it.
func (c *Controller) fail(err error) error {
	if err != nil && c.fault == nil && faults(err) {
		c.fault = err
		c.log.Error("motion halted", "err", err)
	}
	return err
}

func (c *Controller) guard() error {
	if c.fault != nil {
		return &HaltedError{Cause: c.fault}
	}
	return nil
}

// Fault returns the unacknowledged failure halting motion, if any.
func (c *Controller) Fault() error { return c.fault }

// resync discards replies still queued from commands that failed, so the
// next command is paired with its own responses.
func (c *Controller) resync() {
	var n int
	if d, ok := c.t.(Drainer); ok {
		n = d.Drain(drainQuiet)
	} else {
		for ; n < drainLimit; n++ {
			if _, err := c.t.ReadLine(drainQuiet); err != nil {
				break
			}
		}
	}
	if n > 0 {
		c.log.Warn("discarded stale replies", "lines", n)
	}
}

// Resume acknowledges a fault and re-reads the position. Replies left over
// from the failed exchange are discarded first. The fault stays latched if
// the position cannot be read.
func (c *Controller) Resume() (coord.Point, error) {
	if c.fault != nil {
		c.log.Info("resume", "fault", c.fault)
		c.resync()
	}
	c.fault = nil
	return c.Refresh()
}
