package connect

import (
	"github.com/holzlab/verbund/pkg/geom"
)

// PlausibleContact is the broad-phase reject test: it reports whether
// two elements, given their cached bounding boxes, could be touching.
//
// Boxes that intersect pass. Boxes that do not intersect still pass
// when their centers are within ContactTolerance, which catches thin
// or corner contacts that axis-aligned boxes can miss. The test is
// intentionally permissive; exact contact is decided by the sampler.
func PlausibleContact(a, b geom.AABB) bool {
	if a.Intersects(b) {
		return true
	}
	return geom.Dist(a.Center(), b.Center()) < ContactTolerance
}
