package coord

import (
	"math"
)

const (
	// Epsilon is the max error when checking containment.
	Epsilon   = 0.001
	epsilonSq = Epsilon * Epsilon
)

type Triangle struct{ A, B, C Point }

// weights returns the barycentric weights of x,y against the XY
// projection. ok is false for a degenerate (zero area) triangle.
func (t Triangle) weights(x, y float64) (u, v, w float64, ok bool) {
	det := (t.B.Y-t.C.Y)*(t.A.X-t.C.X) + (t.C.X-t.B.X)*(t.A.Y-t.C.Y)
	if det == 0 {
		return 0, 0, 0, false
	}
	u = ((t.B.Y-t.C.Y)*(x-t.C.X) + (t.C.X-t.B.X)*(y-t.C.Y)) / det
	v = ((t.C.Y-t.A.Y)*(x-t.C.X) + (t.A.X-t.C.X)*(y-t.C.Y)) / det
	return u, v, 1 - u - v, true
}

// ContainsXY returns true if the 2D projection of the triangle has the
// point x,y. Points within Epsilon of an edge count as inside so that
// neighbouring triangles leave no gaps.
func (t Triangle) ContainsXY(x, y float64) bool {
	if x < math.Min(t.A.X, math.Min(t.B.X, t.C.X))-Epsilon ||
		x > math.Max(t.A.X, math.Max(t.B.X, t.C.X))+Epsilon ||
		y < math.Min(t.A.Y, math.Min(t.B.Y, t.C.Y))-Epsilon ||
		y > math.Max(t.A.Y, math.Max(t.B.Y, t.C.Y))+Epsilon {
		return false
	}

	u, v, w, ok := t.weights(x, y)
	if ok && u >= 0 && v >= 0 && w >= 0 {
		return true
	}

	p := Point{X: x, Y: y}
	return segmentDistSqXY(t.A, t.B, p) <= epsilonSq ||
		segmentDistSqXY(t.B, t.C, p) <= epsilonSq ||
		segmentDistSqXY(t.C, t.A, p) <= epsilonSq
}

// Z will give the Z-coordinate on the plane defined by the triangle
// where it intersects x,y. It is NaN for a degenerate triangle.
func (t Triangle) Z(x, y float64) float64 {
	u, v, w, ok := t.weights(x, y)
	if !ok {
		return math.NaN()
	}
	return u*t.A.Z + v*t.B.Z + w*t.C.Z
}

// segmentDistSqXY is the squared XY distance from p to the segment a-b.
func segmentDistSqXY(a, b, p Point) float64 {
	dx, dy := b.X-a.X, b.Y-a.Y
	lenSq := dx*dx + dy*dy
	if lenSq == 0 {
		return (p.X-a.X)*(p.X-a.X) + (p.Y-a.Y)*(p.Y-a.Y)
	}
	s := ((p.X-a.X)*dx + (p.Y-a.Y)*dy) / lenSq
	s = math.Max(0, math.Min(1, s))
	ex, ey := a.X+s*dx-p.X, a.Y+s*dy-p.Y
	return ex*ex + ey*ey
}
