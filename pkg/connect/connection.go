package connect

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/holzlab/verbund/pkg/model"
)

// Tolerances of the detection pipeline, in model units (meters). They
// encode the millimeter-to-centimeter scale of timber joints and are
// deliberately not configurable per call.
const (
	// ContactTolerance bounds both the bounding-filter center fallback
	// and the classifier's point/line decisions (5 mm). Comparisons are
	// strict: exactly-at-tolerance is not within tolerance.
	ContactTolerance = 0.005

	// DedupTolerance is the minimum distance between two accepted
	// contact points (1 mm).
	DedupTolerance = 0.001

	// ProbeRange caps the length of a contact probe ray (1 cm).
	ProbeRange = 0.01

	// maxProbeVertices limits how many vertices of a solid are probed
	// regardless of mesh density.
	maxProbeVertices = 1000
)

// Kind classifies the nature of a contact.
type Kind int

const (
	KindPoint Kind = iota
	KindLine
	KindSurface
)

func (k Kind) String() string {
	switch k {
	case KindPoint:
		return "point"
	case KindLine:
		return "line"
	case KindSurface:
		return "surface"
	default:
		return "unknown"
	}
}

// ConnectionID identifies a connection. It is derived from the two
// participant element keys, independent of their order, so an
// unordered element pair has at most one connection.
type ConnectionID string

// ConnectionIDFor builds the deterministic id for an element pair.
func ConnectionIDFor(a, b model.ElementKey) ConnectionID {
	ka, kb := a.String(), b.String()
	if kb < ka {
		ka, kb = kb, ka
	}
	return ConnectionID(ka + "|" + kb)
}

// Geometry is the kind-specific payload of a connection.
type Geometry interface {
	geometry() // marker method restricting implementations to this package
}

// PointGeometry is a single contact position.
type PointGeometry struct {
	Position r3.Vec `json:"position"`
}

func (PointGeometry) geometry() {}

// LineGeometry is a contact segment between two endpoints.
type LineGeometry struct {
	Start r3.Vec `json:"start"`
	End   r3.Vec `json:"end"`
}

func (LineGeometry) geometry() {}

// SurfaceGeometry is a contact region: an ordered boundary polygon
// plus a triangulated mesh covering it.
type SurfaceGeometry struct {
	Boundary []r3.Vec     `json:"boundary"`
	Mesh     *model.Solid `json:"mesh"`
}

func (SurfaceGeometry) geometry() {}

// Connection is a classified contact between two elements. It is
// immutable once built; re-analysis replaces it rather than mutating.
type Connection struct {
	ID       ConnectionID
	Kind     Kind
	Geometry Geometry
	A        model.ElementKey
	B        model.ElementKey

	// Length is set for line connections (meters), Area for surface
	// connections (square meters). Point connections carry neither.
	Length float64
	Area   float64
}

// Measurement returns the scalar measurement and its unit. Point
// connections return (0, "").
func (c *Connection) Measurement() (float64, string) {
	switch c.Kind {
	case KindLine:
		return c.Length, "m"
	case KindSurface:
		return c.Area, "m2"
	default:
		return 0, ""
	}
}

// Involves reports whether the given element participates.
func (c *Connection) Involves(k model.ElementKey) bool {
	return c.A == k || c.B == k
}
