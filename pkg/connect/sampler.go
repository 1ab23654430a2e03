package connect

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/holzlab/verbund/pkg/geom"
	"github.com/holzlab/verbund/pkg/model"
)

// probeDirections are the six axis-aligned probe rays cast from every
// sampled vertex. Axis probing is robust to the arbitrary winding and
// normal quality of imported meshes and is sufficient at millimeter
// contact scales. It can miss contacts at non-axis-aligned thin
// features; that is a known limitation of the method, not a bug.
var probeDirections = [6]r3.Vec{
	{X: 1}, {X: -1},
	{Y: 1}, {Y: -1},
	{Z: 1}, {Z: -1},
}

// SampleContacts returns world-space points approximating where the
// surfaces of two elements touch, or nil if no contact is found.
// Every (solid, solid) sub-pair is probed in both directions so the
// result does not depend on argument order. Malformed solids
// contribute no samples. Pure function of the inputs.
func SampleContacts(a, b *model.Element) []r3.Vec {
	var points []r3.Vec
	for _, sa := range a.Solids {
		for _, sb := range b.Solids {
			points = append(points, probeSolid(sa, sb)...)
			points = append(points, probeSolid(sb, sa)...)
		}
	}
	return points
}

// probeSolid casts short probes from a stride-limited sample of src's
// vertices against dst's triangles and collects the nearest hit per
// direction within ProbeRange.
func probeSolid(src, dst *model.Solid) []r3.Vec {
	if src.IsEmpty() || dst.IsEmpty() {
		return nil
	}

	n := src.VertexCount()
	stride := n / maxProbeVertices
	if stride < 1 {
		stride = 1
	}

	var hits []r3.Vec
	for i := 0; i < n; i += stride {
		origin := src.Vertex(i)
		if !geom.IsFinite(origin) {
			continue
		}
		for _, dir := range probeDirections {
			if t, ok := nearestHit(origin, dir, dst); ok {
				hits = append(hits, r3.Add(origin, r3.Scale(t, dir)))
			}
		}
	}
	return hits
}

// nearestHit returns the smallest ray parameter at which the probe
// intersects any triangle of the solid within ProbeRange.
func nearestHit(origin, dir r3.Vec, s *model.Solid) (float64, bool) {
	best := ProbeRange
	found := false
	for i := 0; i < s.TriangleCount(); i++ {
		a, b, c, ok := s.Triangle(i)
		if !ok || !geom.IsFinite(a) || !geom.IsFinite(b) || !geom.IsFinite(c) {
			continue
		}
		t, ok := geom.RayTriangle(origin, dir, a, b, c)
		if ok && t <= best {
			best = t
			found = true
		}
	}
	if !found {
		return 0, false
	}
	return best, true
}
