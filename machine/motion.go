package machine

import (
	"strconv"

	"github.com/mastercactapus/surfscan/coord"
	"github.com/mastercactapus/surfscan/gcode"
)

// MoveTo issues an absolute linear move at feed mm/min, waits for it to be
// acknowledged and returns the refreshed position. It never retries.
func (c *Controller) MoveTo(target coord.Point, feed int) (coord.Point, error) {
	if err := c.guard(); err != nil {
		return c.pos, err
	}
	if feed <= 0 {
		return c.pos, &PreconditionError{Reason: "feed rate must be positive, got " + strconv.Itoa(feed)}
	}
	if !finite(target.X) || !finite(target.Y) || !finite(target.Z) {
		return c.pos, &PreconditionError{Reason: "target " + target.String() + " is not finite"}
	}
	c.log.Info("move", "from", c.pos.String(), "to", target.String(), "feed", feed)
	if err := c.exec(gcode.Linear(target, feed)); err != nil {
		return c.pos, c.fail(err)
	}
	return c.Refresh()
}

// Jog moves by delta relative to the tracked position.
func (c *Controller) Jog(delta coord.Point, feed int) (coord.Point, error) {
	return c.MoveTo(c.pos.Add(delta), feed)
}

// Barrier blocks until the controller reports that all queued motion has
// finished.
func (c *Controller) Barrier() error {
	if err := c.guard(); err != nil {
		return err
	}
	return c.fail(c.exec(gcode.FinishMoves()))
}
