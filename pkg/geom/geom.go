// Package geom provides the small set of 3D primitives the connection
// engine needs: axis-aligned boxes, triangle access, and short-range
// ray probes. Vectors are gonum's spatial/r3 type throughout.
package geom

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// IsFinite reports whether all three components are finite numbers.
// Imported models routinely contain NaN vertices from degenerate
// geometry; those must never reach the classifier.
func IsFinite(v r3.Vec) bool {
	return !math.IsNaN(v.X) && !math.IsInf(v.X, 0) &&
		!math.IsNaN(v.Y) && !math.IsInf(v.Y, 0) &&
		!math.IsNaN(v.Z) && !math.IsInf(v.Z, 0)
}

// Dist returns the Euclidean distance between two points.
func Dist(a, b r3.Vec) float64 {
	return r3.Norm(r3.Sub(a, b))
}

// AABB is an axis-aligned bounding box in world space.
type AABB struct {
	Min r3.Vec
	Max r3.Vec
}

// NewAABB returns the smallest box enclosing the given points.
// Non-finite points are ignored. ok is false if no finite point exists.
func NewAABB(points []r3.Vec) (box AABB, ok bool) {
	box = AABB{
		Min: r3.Vec{X: math.Inf(1), Y: math.Inf(1), Z: math.Inf(1)},
		Max: r3.Vec{X: math.Inf(-1), Y: math.Inf(-1), Z: math.Inf(-1)},
	}
	for _, p := range points {
		if !IsFinite(p) {
			continue
		}
		box = box.Extend(p)
		ok = true
	}
	return box, ok
}

// Extend grows the box to include point p.
func (b AABB) Extend(p r3.Vec) AABB {
	return AABB{
		Min: r3.Vec{X: math.Min(b.Min.X, p.X), Y: math.Min(b.Min.Y, p.Y), Z: math.Min(b.Min.Z, p.Z)},
		Max: r3.Vec{X: math.Max(b.Max.X, p.X), Y: math.Max(b.Max.Y, p.Y), Z: math.Max(b.Max.Z, p.Z)},
	}
}

// Union returns the smallest box enclosing both boxes.
func (b AABB) Union(o AABB) AABB {
	return b.Extend(o.Min).Extend(o.Max)
}

// Expand grows the box by d in every direction.
func (b AABB) Expand(d float64) AABB {
	off := r3.Vec{X: d, Y: d, Z: d}
	return AABB{Min: r3.Sub(b.Min, off), Max: r3.Add(b.Max, off)}
}

// Center returns the box center.
func (b AABB) Center() r3.Vec {
	return r3.Scale(0.5, r3.Add(b.Min, b.Max))
}

// Size returns the box extents along each axis.
func (b AABB) Size() r3.Vec {
	return r3.Sub(b.Max, b.Min)
}

// Intersects reports whether the two boxes overlap. Touching boxes
// (shared face, edge, or corner) count as intersecting.
func (b AABB) Intersects(o AABB) bool {
	return b.Min.X <= o.Max.X && b.Max.X >= o.Min.X &&
		b.Min.Y <= o.Max.Y && b.Max.Y >= o.Min.Y &&
		b.Min.Z <= o.Max.Z && b.Max.Z >= o.Min.Z
}

// rayEpsilon guards the Möller–Trumbore determinant and barycentric
// bounds. Probes regularly originate exactly on the target surface
// (coincident vertices of touching elements), so the valid range is
// opened up by this slack rather than using exact comparisons.
const rayEpsilon = 1e-9

// RayTriangle intersects the ray origin+t*dir with triangle (a, b, c)
// using the Möller–Trumbore algorithm. Both triangle windings are
// accepted; imported meshes have unreliable orientation. On hit it
// returns the ray parameter t >= 0 and true.
func RayTriangle(origin, dir, a, b, c r3.Vec) (float64, bool) {
	edge1 := r3.Sub(b, a)
	edge2 := r3.Sub(c, a)
	pvec := r3.Cross(dir, edge2)
	det := r3.Dot(edge1, pvec)
	if det > -rayEpsilon && det < rayEpsilon {
		// Ray parallel to the triangle plane.
		return 0, false
	}
	invDet := 1.0 / det

	tvec := r3.Sub(origin, a)
	u := r3.Dot(tvec, pvec) * invDet
	if u < -rayEpsilon || u > 1+rayEpsilon {
		return 0, false
	}

	qvec := r3.Cross(tvec, edge1)
	v := r3.Dot(dir, qvec) * invDet
	if v < -rayEpsilon || u+v > 1+rayEpsilon {
		return 0, false
	}

	t := r3.Dot(edge2, qvec) * invDet
	if t < -rayEpsilon {
		return 0, false
	}
	if t < 0 {
		t = 0
	}
	return t, true
}
