package machine

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/mastercactapus/surfscan/coord"
	"github.com/mastercactapus/surfscan/gcode"
)

// parsePosition parses an M114 report:
//
//	X:<f> Y:<f> Z:<f> [<AXIS>:<f>...] [Count ...]
//
// Lines that do not start with "X:" return ErrNotPosition.
func parsePosition(line string) (p coord.Point, err error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "X:") {
		return p, ErrNotPosition
	}
	if i := strings.Index(line, " Count"); i >= 0 {
		line = line[:i]
	}

	fields := strings.Fields(line)
	if len(fields) < 3 {
		return p, &ParseError{Line: line, Reason: "expected X, Y and Z"}
	}
	want := [3]string{"X", "Y", "Z"}
	var vals [3]float64
	seen := make(map[string]bool, len(fields))
	for i, f := range fields {
		parts := strings.SplitN(f, ":", 2)
		if len(parts) != 2 || len(parts[0]) != 1 || parts[0][0] < 'A' || parts[0][0] > 'Z' {
			return p, &ParseError{Line: line, Reason: "bad token " + strconv.Quote(f)}
		}
		if seen[parts[0]] {
			return p, &ParseError{Line: line, Reason: "repeated axis " + parts[0]}
		}
		seen[parts[0]] = true
		v, err := strconv.ParseFloat(parts[1], 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return p, &ParseError{Line: line, Reason: "bad value for " + parts[0]}
		}
		if i < 3 {
			if parts[0] != want[i] {
				return p, &ParseError{Line: line, Reason: "expected " + want[i] + " at position " + strconv.Itoa(i+1)}
			}
			vals[i] = v
		}
	}

	return coord.Point{X: vals[0], Y: vals[1], Z: vals[2]}, nil
}

// Current returns the position from the last successful Refresh.
func (c *Controller) Current() coord.Point { return c.pos }

// Refresh queries the controller position and replaces the tracked pose.
// On failure the pose is left unchanged and motion is halted. While a
// fault is latched, stale replies are discarded before querying.
func (c *Controller) Refresh() (coord.Point, error) {
	if c.fault != nil {
		c.resync()
	}
	p, err := c.queryPosition()
	if err != nil {
		return c.pos, c.fail(err)
	}
	c.pos = p
	return p, nil
}

func (c *Controller) queryPosition() (coord.Point, error) {
	b := gcode.PositionQuery()
	cmd := b.Line()
	if err := c.send(b); err != nil {
		return coord.Point{}, err
	}
	for n := 1; n <= positionReads; n++ {
		line, err := c.readLine(cmd, n)
		if err != nil {
			return coord.Point{}, err
		}
		p, err := parsePosition(line)
		if errors.Is(err, ErrNotPosition) {
			continue
		}
		if err != nil {
			return coord.Point{}, err
		}
		if err = c.awaitAck(cmd); err != nil {
			return coord.Point{}, err
		}
		return p, nil
	}

	return coord.Point{}, &ProtocolTimeout{Cmd: cmd, Reads: positionReads}
}
