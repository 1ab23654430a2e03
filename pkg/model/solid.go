package model

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/holzlab/verbund/pkg/geom"
)

// Solid is a triangulated surface belonging to exactly one element,
// already transformed into world space. All arrays are flat: vertices
// has 3 float64s per vertex (x,y,z), indices has 3 uint32s per triangle.
type Solid struct {
	Vertices []float64 `json:"vertices"` // [x0,y0,z0, x1,y1,z1, ...]
	Indices  []uint32  `json:"indices"`  // [i0,i1,i2, ...] triangles
}

// VertexCount returns the number of vertices.
func (s *Solid) VertexCount() int {
	return len(s.Vertices) / 3
}

// TriangleCount returns the number of triangles.
func (s *Solid) TriangleCount() int {
	return len(s.Indices) / 3
}

// IsEmpty reports whether the solid has no usable geometry. A solid
// with vertices but no triangles still counts as empty for probing.
func (s *Solid) IsEmpty() bool {
	return s == nil || len(s.Vertices) < 9 || len(s.Indices) < 3
}

// Vertex returns the i-th vertex position.
func (s *Solid) Vertex(i int) r3.Vec {
	return r3.Vec{
		X: s.Vertices[3*i],
		Y: s.Vertices[3*i+1],
		Z: s.Vertices[3*i+2],
	}
}

// Triangle returns the corner positions of the i-th triangle. ok is
// false when an index is out of range, which happens with partially
// loaded documents; such triangles are skipped, not errors.
func (s *Solid) Triangle(i int) (a, b, c r3.Vec, ok bool) {
	n := uint32(s.VertexCount())
	i0, i1, i2 := s.Indices[3*i], s.Indices[3*i+1], s.Indices[3*i+2]
	if i0 >= n || i1 >= n || i2 >= n {
		return a, b, c, false
	}
	return s.Vertex(int(i0)), s.Vertex(int(i1)), s.Vertex(int(i2)), true
}

// Bounds returns the axis-aligned box enclosing all finite vertices.
func (s *Solid) Bounds() (geom.AABB, bool) {
	if s == nil || len(s.Vertices) < 3 {
		return geom.AABB{}, false
	}
	box := geom.AABB{}
	found := false
	for i := 0; i < s.VertexCount(); i++ {
		v := s.Vertex(i)
		if !geom.IsFinite(v) {
			continue
		}
		if !found {
			box = geom.AABB{Min: v, Max: v}
			found = true
		} else {
			box = box.Extend(v)
		}
	}
	return box, found
}
