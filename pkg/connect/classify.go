package connect

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/holzlab/verbund/pkg/geom"
	"github.com/holzlab/verbund/pkg/model"
)

// Classify turns a deduplicated, non-empty contact point set into a
// connection kind, its geometry payload, and the scalar measurement
// (length for lines, area for surfaces, 0 for points).
//
// The decision policy, evaluated in order:
//  1. a single point is a point contact;
//  2. if the farthest pair of points is strictly closer than
//     ContactTolerance, the whole set collapses to a point contact at
//     the first point of that pair;
//  3. if every point lies within ContactTolerance of the line through
//     the farthest pair, the contact is that line segment;
//  4. otherwise the contact is a surface spanned by the points. If no
//     third point actually deviates from the line, this falls back to
//     the line case; that is defined behavior, not an error.
func Classify(points []r3.Vec) (Kind, Geometry, float64) {
	if len(points) == 1 {
		return KindPoint, PointGeometry{Position: points[0]}, 0
	}

	p1, p2, maxDist := farthestPair(points)
	if maxDist < ContactTolerance {
		return KindPoint, PointGeometry{Position: p1}, 0
	}

	if maxLineDeviation(points, p1, p2) < ContactTolerance {
		return KindLine, LineGeometry{Start: p1, End: p2}, maxDist
	}

	if !hasOffLinePoint(points, p1, p2) {
		// No valid third point: defined fallback to the line case.
		return KindLine, LineGeometry{Start: p1, End: p2}, maxDist
	}

	return classifySurface(points)
}

// farthestPair scans all point pairs and returns the pair with the
// maximum distance. Exhaustive O(n²); ties break to the first pair in
// iteration order, which keeps the result deterministic.
func farthestPair(points []r3.Vec) (p1, p2 r3.Vec, dist float64) {
	p1, p2 = points[0], points[0]
	for i := 0; i < len(points); i++ {
		for j := i + 1; j < len(points); j++ {
			if d := geom.Dist(points[i], points[j]); d > dist {
				dist = d
				p1, p2 = points[i], points[j]
			}
		}
	}
	return p1, p2, dist
}

// lineDeviation is the perpendicular distance of p from the line
// through a in direction dir (unit length).
func lineDeviation(p, a, dir r3.Vec) float64 {
	d := r3.Sub(p, a)
	along := r3.Dot(d, dir)
	residual := r3.Sub(d, r3.Scale(along, dir))
	return r3.Norm(residual)
}

// maxLineDeviation returns the largest perpendicular deviation of any
// point from the line through p1 and p2.
func maxLineDeviation(points []r3.Vec, p1, p2 r3.Vec) float64 {
	dir := r3.Unit(r3.Sub(p2, p1))
	max := 0.0
	for _, p := range points {
		if dev := lineDeviation(p, p1, dir); dev > max {
			max = dev
		}
	}
	return max
}

// hasOffLinePoint reports whether some point deviates from the line
// through p1 and p2 by at least ContactTolerance.
func hasOffLinePoint(points []r3.Vec, p1, p2 r3.Vec) bool {
	dir := r3.Unit(r3.Sub(p2, p1))
	for _, p := range points {
		if lineDeviation(p, p1, dir) >= ContactTolerance {
			return true
		}
	}
	return false
}

// classifySurface builds the surface geometry and area for a point set
// known to span more than a line.
func classifySurface(points []r3.Vec) (Kind, Geometry, float64) {
	if len(points) == 4 {
		if g, area, ok := quadSurface(points); ok {
			return KindSurface, g, area
		}
	}
	g, area := fanSurface(points)
	return KindSurface, g, area
}

// quadSurface orders exactly four points into a closed quadrilateral
// by projecting them onto their best-fit plane and sorting by angular
// position around the centroid, then triangulates with a fixed fan and
// computes the area as half the magnitude of the cross product of the
// two diagonals. ok is false when the first three points give no
// usable plane normal; the caller then falls back to the centroid fan.
func quadSurface(points []r3.Vec) (SurfaceGeometry, float64, bool) {
	normal := r3.Cross(r3.Sub(points[1], points[0]), r3.Sub(points[2], points[0]))
	if r3.Norm(normal) < 1e-12 {
		return SurfaceGeometry{}, 0, false
	}
	normal = r3.Unit(normal)

	centroid := centroidOf(points)

	// Plane basis from the first point's offset.
	u := r3.Sub(points[0], centroid)
	u = r3.Sub(u, r3.Scale(r3.Dot(u, normal), normal))
	if r3.Norm(u) < 1e-12 {
		return SurfaceGeometry{}, 0, false
	}
	u = r3.Unit(u)
	v := r3.Cross(normal, u)

	ordered := make([]r3.Vec, len(points))
	copy(ordered, points)
	sort.SliceStable(ordered, func(i, j int) bool {
		return quadAngle(ordered[i], centroid, u, v) < quadAngle(ordered[j], centroid, u, v)
	})

	mesh := &model.Solid{Indices: []uint32{0, 1, 2, 2, 3, 0}}
	for _, p := range ordered {
		mesh.Vertices = append(mesh.Vertices, p.X, p.Y, p.Z)
	}

	d1 := r3.Sub(ordered[2], ordered[0])
	d2 := r3.Sub(ordered[3], ordered[1])
	area := 0.5 * r3.Norm(r3.Cross(d1, d2))

	return SurfaceGeometry{Boundary: ordered, Mesh: mesh}, area, true
}

func quadAngle(p, centroid, u, v r3.Vec) float64 {
	d := r3.Sub(p, centroid)
	return math.Atan2(r3.Dot(d, v), r3.Dot(d, u))
}

// fanSurface triangulates 3 or 5+ points as a fan around the centroid
// in input order, closing the loop. The area is the sum of the half
// cross-product magnitudes of successive (point − centroid) vectors.
// Exact only for coplanar, ordered, non-self-intersecting input;
// anything else is approximated by construction.
func fanSurface(points []r3.Vec) (SurfaceGeometry, float64) {
	centroid := centroidOf(points)

	mesh := &model.Solid{}
	mesh.Vertices = append(mesh.Vertices, centroid.X, centroid.Y, centroid.Z)
	for _, p := range points {
		mesh.Vertices = append(mesh.Vertices, p.X, p.Y, p.Z)
	}

	area := 0.0
	n := len(points)
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		a := r3.Sub(points[i], centroid)
		b := r3.Sub(points[j], centroid)
		area += 0.5 * r3.Norm(r3.Cross(a, b))
		mesh.Indices = append(mesh.Indices, 0, uint32(i+1), uint32(j+1))
	}

	boundary := make([]r3.Vec, n)
	copy(boundary, points)
	return SurfaceGeometry{Boundary: boundary, Mesh: mesh}, area
}

func centroidOf(points []r3.Vec) r3.Vec {
	var sum r3.Vec
	for _, p := range points {
		sum = r3.Add(sum, p)
	}
	return r3.Scale(1/float64(len(points)), sum)
}
