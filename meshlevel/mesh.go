// Package meshlevel turns probed surface points into a height map and
// bends G-code programs to follow it.
package meshlevel

import (
	"errors"
	"fmt"
	"math"

	"github.com/fogleman/delaunay"
	"github.com/mastercactapus/surfscan/coord"
)

// ZOffsetter gives the surface offset at x,y. ok is false outside the
// area it covers.
type ZOffsetter interface {
	OffsetZ(x, y float64) (ok bool, z float64)
}

// Mesh is a height map triangulated from probe points.
type Mesh struct {
	minX, minY, maxX, maxY float64
	triangles              []coord.Triangle
}

var _ ZOffsetter = &Mesh{}

// NewMesh triangulates points. Points sharing an X/Y position (from
// overlapping scans) are merged into one at their mean height.
func NewMesh(points []coord.Point) (*Mesh, error) {
	if len(points) < 3 {
		return nil, errors.New("need at least 3 points to create a mesh")
	}

	type acc struct {
		sum float64
		n   int
	}
	heights := make(map[delaunay.Point]*acc, len(points))
	points2d := make([]delaunay.Point, 0, len(points))

	mesh := &Mesh{
		minX: points[0].X,
		minY: points[0].Y,
		maxX: points[0].X,
		maxY: points[0].Y,
	}
	for _, p := range points {
		mesh.minX = math.Min(mesh.minX, p.X)
		mesh.minY = math.Min(mesh.minY, p.Y)
		mesh.maxX = math.Max(mesh.maxX, p.X)
		mesh.maxY = math.Max(mesh.maxY, p.Y)

		d := delaunay.Point{X: p.X, Y: p.Y}
		if a, ok := heights[d]; ok {
			a.sum += p.Z
			a.n++
			continue
		}
		heights[d] = &acc{sum: p.Z, n: 1}
		points2d = append(points2d, d)
	}
	if len(points2d) < 3 {
		return nil, fmt.Errorf("need at least 3 distinct X/Y positions, got %d", len(points2d))
	}
	mesh.minX -= coord.Epsilon
	mesh.minY -= coord.Epsilon
	mesh.maxX += coord.Epsilon
	mesh.maxY += coord.Epsilon

	tri, err := delaunay.Triangulate(points2d)
	if err != nil {
		return nil, fmt.Errorf("triangulate: %w", err)
	}

	vertex := func(i int) coord.Point {
		d := tri.Points[i]
		a := heights[d]
		return coord.Point{X: d.X, Y: d.Y, Z: a.sum / float64(a.n)}
	}
	mesh.triangles = make([]coord.Triangle, 0, len(tri.Triangles)/3)
	for i := 0; i < len(tri.Triangles); i += 3 {
		mesh.triangles = append(mesh.triangles, coord.Triangle{
			A: vertex(tri.Triangles[i]),
			B: vertex(tri.Triangles[i+1]),
			C: vertex(tri.Triangles[i+2]),
		})
	}

	return mesh, nil
}

func (m Mesh) OffsetZ(x, y float64) (bool, float64) {
	if x < m.minX || m.maxX < x || y < m.minY || m.maxY < y {
		return false, 0
	}
	for _, t := range m.triangles {
		if !t.ContainsXY(x, y) {
			continue
		}
		return true, t.Z(x, y)
	}

	return false, 0
}
