package geom

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

func TestNewAABB(t *testing.T) {
	box, ok := NewAABB([]r3.Vec{
		{X: 1, Y: 2, Z: 3},
		{X: -1, Y: 0, Z: 5},
	})
	if !ok {
		t.Fatal("NewAABB should succeed for finite points")
	}
	if box.Min.X != -1 || box.Min.Y != 0 || box.Min.Z != 3 {
		t.Errorf("min = %v", box.Min)
	}
	if box.Max.X != 1 || box.Max.Y != 2 || box.Max.Z != 5 {
		t.Errorf("max = %v", box.Max)
	}
}

func TestNewAABBSkipsNonFinite(t *testing.T) {
	box, ok := NewAABB([]r3.Vec{
		{X: math.NaN(), Y: 0, Z: 0},
		{X: 1, Y: 1, Z: 1},
	})
	if !ok {
		t.Fatal("one finite point should be enough")
	}
	if box.Min != (r3.Vec{X: 1, Y: 1, Z: 1}) {
		t.Errorf("NaN point leaked into bounds: %v", box.Min)
	}

	if _, ok := NewAABB([]r3.Vec{{X: math.Inf(1)}}); ok {
		t.Error("all-degenerate input should report ok=false")
	}
}

func TestAABBIntersects(t *testing.T) {
	a := AABB{Min: r3.Vec{}, Max: r3.Vec{X: 1, Y: 1, Z: 1}}

	b := AABB{Min: r3.Vec{X: 0.5, Y: 0.5, Z: 0.5}, Max: r3.Vec{X: 2, Y: 2, Z: 2}}
	if !a.Intersects(b) {
		t.Error("overlapping boxes should intersect")
	}

	// Shared corner counts as touching.
	c := AABB{Min: r3.Vec{X: 1, Y: 1, Z: 1}, Max: r3.Vec{X: 2, Y: 2, Z: 2}}
	if !a.Intersects(c) {
		t.Error("corner-touching boxes should intersect")
	}

	d := AABB{Min: r3.Vec{X: 3, Y: 0, Z: 0}, Max: r3.Vec{X: 4, Y: 1, Z: 1}}
	if a.Intersects(d) {
		t.Error("disjoint boxes should not intersect")
	}
}

func TestAABBExpandCenter(t *testing.T) {
	a := AABB{Min: r3.Vec{}, Max: r3.Vec{X: 2, Y: 4, Z: 6}}
	if got := a.Center(); got != (r3.Vec{X: 1, Y: 2, Z: 3}) {
		t.Errorf("center = %v", got)
	}
	e := a.Expand(0.5)
	if e.Min != (r3.Vec{X: -0.5, Y: -0.5, Z: -0.5}) {
		t.Errorf("expanded min = %v", e.Min)
	}
	if e.Max != (r3.Vec{X: 2.5, Y: 4.5, Z: 6.5}) {
		t.Errorf("expanded max = %v", e.Max)
	}
}

func TestRayTriangleHit(t *testing.T) {
	a := r3.Vec{X: 0, Y: 0, Z: 1}
	b := r3.Vec{X: 2, Y: 0, Z: 1}
	c := r3.Vec{X: 0, Y: 2, Z: 1}

	tHit, ok := RayTriangle(r3.Vec{X: 0.5, Y: 0.5, Z: 0}, r3.Vec{Z: 1}, a, b, c)
	if !ok {
		t.Fatal("ray through triangle interior should hit")
	}
	if math.Abs(tHit-1.0) > 1e-12 {
		t.Errorf("t = %v, want 1.0", tHit)
	}

	// Reversed winding must still hit.
	if _, ok := RayTriangle(r3.Vec{X: 0.5, Y: 0.5, Z: 0}, r3.Vec{Z: 1}, a, c, b); !ok {
		t.Error("back-facing triangle should hit")
	}
}

func TestRayTriangleMiss(t *testing.T) {
	a := r3.Vec{X: 0, Y: 0, Z: 1}
	b := r3.Vec{X: 1, Y: 0, Z: 1}
	c := r3.Vec{X: 0, Y: 1, Z: 1}

	if _, ok := RayTriangle(r3.Vec{X: 5, Y: 5, Z: 0}, r3.Vec{Z: 1}, a, b, c); ok {
		t.Error("ray outside the triangle should miss")
	}
	// Behind the origin.
	if _, ok := RayTriangle(r3.Vec{X: 0.2, Y: 0.2, Z: 2}, r3.Vec{Z: 1}, a, b, c); ok {
		t.Error("triangle behind the ray should miss")
	}
	// Parallel to the plane.
	if _, ok := RayTriangle(r3.Vec{X: 0.2, Y: 0.2, Z: 0}, r3.Vec{X: 1}, a, b, c); ok {
		t.Error("parallel ray should miss")
	}
}

func TestRayTriangleOriginOnSurface(t *testing.T) {
	// A probe starting exactly on the triangle (touching elements share
	// vertices) must report a hit at t = 0, not a miss.
	a := r3.Vec{X: 0, Y: 0, Z: 0}
	b := r3.Vec{X: 0, Y: 1, Z: 0}
	c := r3.Vec{X: 0, Y: 0, Z: 1}

	tHit, ok := RayTriangle(a, r3.Vec{X: 1}, a, b, c)
	if !ok {
		t.Fatal("probe from a shared vertex should hit")
	}
	if tHit != 0 {
		t.Errorf("t = %v, want 0", tHit)
	}
}
