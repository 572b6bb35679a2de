package machine

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"github.com/google/uuid"
	"github.com/mastercactapus/surfscan/coord"
)

// A ResultSink receives probe results as they are produced.
type ResultSink interface {
	Record(ProbeResult) error
}

type multiSink []ResultSink

func (m multiSink) Record(r ProbeResult) error {
	for _, s := range m {
		if err := s.Record(r); err != nil {
			return err
		}
	}
	return nil
}

// MultiSink records each result to every sink in order, stopping at the
// first error.
func MultiSink(sinks ...ResultSink) ResultSink {
	return multiSink(append([]ResultSink(nil), sinks...))
}

// SinkFunc adapts a function to a ResultSink.
type SinkFunc func(ProbeResult) error

func (f SinkFunc) Record(r ProbeResult) error { return f(r) }

// Bounds are the two marked corners of a scan. Z is ignored.
type Bounds struct {
	Start, End coord.Point
}

// Summary describes a completed (or aborted) scan.
type Summary struct {
	ID        string `json:"id"`
	Points    int    `json:"points"`
	NoContact int    `json:"no_contact"`
}

// MarkStart records the current X/Y as the scan start corner.
func (c *Controller) MarkStart() coord.Point {
	p := c.pos
	c.start = &p
	c.log.Info("set start", "x", p.X, "y", p.Y)
	return p
}

// MarkEnd records the current X/Y as the scan end corner.
func (c *Controller) MarkEnd() coord.Point {
	p := c.pos
	c.end = &p
	c.log.Info("set end", "x", p.X, "y", p.Y)
	return p
}

// Bounds returns the marked corners.
func (c *Controller) Bounds() (Bounds, error) {
	switch {
	case c.start == nil:
		return Bounds{}, &PreconditionError{Reason: "start point has not been set"}
	case c.end == nil:
		return Bounds{}, &PreconditionError{Reason: "end point has not been set"}
	}
	return Bounds{Start: *c.start, End: *c.end}, nil
}

// maxScanPoints bounds the number of grid points a single scan may visit.
const maxScanPoints = 1000000

// gridLine is one axis of the scan grid: n coordinates from start in
// increments of step (which carries the direction).
type gridLine struct {
	start, step float64
	n           int
}

func (g gridLine) at(i int) float64 { return g.start + float64(i)*g.step }

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

// gridAxis spans start towards end (inclusive) in multiples of step. Equal
// endpoints produce the single start coordinate.
func gridAxis(start, end, step float64) (gridLine, error) {
	if !finite(start) || !finite(end) {
		return gridLine{}, &PreconditionError{Reason: fmt.Sprintf("scan corners must be finite, got %g to %g", start, end)}
	}
	count := math.Floor(math.Abs(end-start)/step+1e-9) + 1
	if !(count <= maxScanPoints) {
		return gridLine{}, &PreconditionError{Reason: fmt.Sprintf("step %g over %g is more than %d points", step, math.Abs(end-start), maxScanPoints)}
	}
	g := gridLine{start: start, step: step, n: int(count)}
	if !(end > start) {
		g.step = -step
	}
	return g, nil
}

// grid returns both axes of a scan of b, rejecting grids larger than
// maxScanPoints.
func (b Bounds) grid(step float64) (xs, ys gridLine, err error) {
	if !(step > 0) || math.IsInf(step, 0) {
		return xs, ys, &PreconditionError{Reason: "scan step must be positive, got " + strconv.FormatFloat(step, 'f', -1, 64)}
	}
	if xs, err = gridAxis(b.Start.X, b.End.X, step); err != nil {
		return xs, ys, err
	}
	if ys, err = gridAxis(b.Start.Y, b.End.Y, step); err != nil {
		return xs, ys, err
	}
	if xs.n*ys.n > maxScanPoints {
		return xs, ys, &PreconditionError{Reason: fmt.Sprintf("%dx%d grid is more than %d points", xs.n, ys.n, maxScanPoints)}
	}
	return xs, ys, nil
}

// PointCount is the number of grid points a scan of b with step visits.
func (b Bounds) PointCount(step float64) (int, error) {
	xs, ys, err := b.grid(step)
	if err != nil {
		return 0, err
	}
	return xs.n * ys.n, nil
}

// CheckScan returns the error Scan would fail with before moving: unset
// corners, a bad step or grid, or a latched fault. It sends nothing.
func (c *Controller) CheckScan(step float64) error {
	b, err := c.Bounds()
	if err != nil {
		return err
	}
	if _, _, err := b.grid(step); err != nil {
		return err
	}
	return c.guard()
}

// Scan probes every grid point of the marked bounds, row by row in Y, each
// row running from the start X edge towards the end X edge. Results are
// recorded to sink as they are measured.
//
// ctx is checked before each row, before each point and after each
// contact search, when Z is back at its travel height.
func (c *Controller) Scan(ctx context.Context, step float64, sink ResultSink) (Summary, error) {
	sum := Summary{ID: uuid.NewString()}
	b, err := c.Bounds()
	if err != nil {
		return sum, err
	}
	xs, ys, err := b.grid(step)
	if err != nil {
		return sum, err
	}
	if err := c.guard(); err != nil {
		return sum, err
	}

	log := c.log.With("scan", sum.ID)
	log.Info("probing",
		"from", b.Start.String(), "to", b.End.String(),
		"step", step, "points", xs.n*ys.n,
	)

	feed := c.limits.TravelFeed
	if _, err := c.MoveTo(coord.Point{X: b.Start.X, Y: b.Start.Y, Z: c.pos.Z}, feed); err != nil {
		return sum, err
	}
	if err := c.Barrier(); err != nil {
		return sum, err
	}

	for j := 0; j < ys.n; j++ {
		y := ys.at(j)
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		for i := 0; i < xs.n; i++ {
			x := xs.at(i)
			if err := ctx.Err(); err != nil {
				return sum, err
			}
			pos, err := c.MoveTo(coord.Point{X: x, Y: y, Z: c.pos.Z}, feed)
			if err != nil {
				return sum, err
			}
			ct, err := c.ProbeZ(pos.Z)
			if err != nil {
				return sum, err
			}

			res := ProbeResult{Point: coord.Point{X: x, Y: y, Z: ct.Z}, Valid: ct.Touched}
			if !ct.Touched {
				sum.NoContact++
				log.Warn("no contact", "x", x, "y", y, "err", ct.Err())
			} else {
				log.Info("probed", "x", x, "y", y, "z", ct.Z)
			}
			if err := sink.Record(res); err != nil {
				return sum, err
			}
			sum.Points++

			if err := ctx.Err(); err != nil {
				return sum, err
			}
		}

		if err := c.Barrier(); err != nil {
			return sum, err
		}
		if j+1 == ys.n {
			break
		}
		if _, err := c.MoveTo(coord.Point{X: b.Start.X, Y: ys.at(j + 1), Z: c.pos.Z}, feed); err != nil {
			return sum, err
		}
		if err := c.Barrier(); err != nil {
			return sum, err
		}
	}

	log.Info("probe complete", "points", sum.Points, "no_contact", sum.NoContact)
	return sum, nil
}
