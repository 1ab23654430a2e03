package connect

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/holzlab/verbund/pkg/geom"
)

// Dedupe merges near-duplicate contact points: the result contains no
// two points closer than DedupTolerance. Non-finite points are
// dropped. Insertion is linear and first-seen wins, so the output is
// deterministic given the input order. O(n²), which is fine at the
// tens of points the six-direction probing produces.
func Dedupe(points []r3.Vec) []r3.Vec {
	var accepted []r3.Vec
	for _, p := range points {
		if !geom.IsFinite(p) {
			continue
		}
		dup := false
		for _, q := range accepted {
			if geom.Dist(p, q) < DedupTolerance {
				dup = true
				break
			}
		}
		if !dup {
			accepted = append(accepted, p)
		}
	}
	return accepted
}
