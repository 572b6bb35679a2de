package meshlevel

import (
	"fmt"
	"io"

	"github.com/mastercactapus/surfscan/coord"
	"github.com/mastercactapus/surfscan/gcode"
)

// Level copies the G-code program in r to w, adjusted to follow mesh.
// Moves longer than granularity are split first. The program is assumed to
// start at the work origin.
func Level(w io.Writer, r io.Reader, mesh ZOffsetter, granularity float64) (int64, error) {
	if !(granularity > 0) {
		return 0, fmt.Errorf("granularity must be positive, got %g", granularity)
	}
	l := New(Config{
		ZOffsetter:  mesh,
		Granularity: granularity,
		MPos:        coord.Point{},
		Reader:      gcode.NewParser(r),
	})
	return io.Copy(w, gcode.NewBuffer(l))
}
