package meshlevel

import (
	"errors"

	"github.com/mastercactapus/surfscan/coord"
	"github.com/mastercactapus/surfscan/machine"
)

// OffsetFrom returns a copy of points with z subtracted from each height.
func OffsetFrom(z float64, points []coord.Point) []coord.Point {
	p := make([]coord.Point, len(points))
	copy(p, points)

	for i := range p {
		p[i].Z -= z
	}
	return p
}

// FromResults builds a height map from scan results. Rows without contact
// are skipped. Heights are made relative to the first valid point so the
// map describes deviation from where the job was zeroed.
func FromResults(results []machine.ProbeResult) (*Mesh, error) {
	points := make([]coord.Point, 0, len(results))
	for _, r := range results {
		if !r.Valid {
			continue
		}
		points = append(points, r.Point)
	}
	if len(points) == 0 {
		return nil, errors.New("no contact points in results")
	}

	return NewMesh(OffsetFrom(points[0].Z, points))
}
