package model

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

func TestAddElementAndLookup(t *testing.T) {
	m := NewModel("haus-a", "Haus A")

	e := &Element{
		Key:   ElementKey{ElementID: "wall-1"},
		Name:  "ThickWall",
		Class: "IfcWall",
	}
	if err := m.AddElement(e); err != nil {
		t.Fatalf("AddElement: %v", err)
	}
	if e.Key.ModelID != "haus-a" {
		t.Errorf("model id not assigned, got %q", e.Key.ModelID)
	}
	if m.ElementCount() != 1 {
		t.Errorf("count = %d, want 1", m.ElementCount())
	}
	if got := m.Element("wall-1"); got != e {
		t.Error("lookup by id failed")
	}
	if m.Element("missing") != nil {
		t.Error("lookup miss should return nil")
	}
}

func TestAddElementRejectsDuplicates(t *testing.T) {
	m := NewModel("m", "")
	if err := m.AddElement(&Element{Key: ElementKey{ElementID: "e1"}}); err != nil {
		t.Fatalf("first add: %v", err)
	}
	if err := m.AddElement(&Element{Key: ElementKey{ElementID: "e1"}}); err == nil {
		t.Error("duplicate element id should be rejected")
	}
	if err := m.AddElement(&Element{}); err == nil {
		t.Error("empty element id should be rejected")
	}
}

func TestBoxSolidCounts(t *testing.T) {
	s := NewBoxSolid(r3.Vec{}, r3.Vec{X: 1, Y: 2, Z: 3})
	if s.VertexCount() != 8 {
		t.Errorf("vertices = %d, want 8", s.VertexCount())
	}
	if s.TriangleCount() != 12 {
		t.Errorf("triangles = %d, want 12", s.TriangleCount())
	}
	box, ok := s.Bounds()
	if !ok {
		t.Fatal("box solid should have bounds")
	}
	if box.Min != (r3.Vec{}) || box.Max != (r3.Vec{X: 1, Y: 2, Z: 3}) {
		t.Errorf("bounds = %v..%v", box.Min, box.Max)
	}
}

func TestElementBoundsUnionsSolids(t *testing.T) {
	e := &Element{
		Key: ElementKey{ModelID: "m", ElementID: "e"},
		Solids: []*Solid{
			NewBoxSolid(r3.Vec{}, r3.Vec{X: 1, Y: 1, Z: 1}),
			NewBoxSolid(r3.Vec{X: 2, Y: 2, Z: 2}, r3.Vec{X: 3, Y: 3, Z: 3}),
		},
	}
	box, ok := e.Bounds()
	if !ok {
		t.Fatal("element with solids should have bounds")
	}
	if box.Min != (r3.Vec{}) || box.Max != (r3.Vec{X: 3, Y: 3, Z: 3}) {
		t.Errorf("bounds = %v..%v", box.Min, box.Max)
	}
}

func TestElementBoundsEmptyAndDegenerate(t *testing.T) {
	e := &Element{Key: ElementKey{ModelID: "m", ElementID: "e"}}
	if _, ok := e.Bounds(); ok {
		t.Error("element without solids has no bounds")
	}

	// A solid that is all NaN contributes nothing.
	bad := &Solid{
		Vertices: []float64{math.NaN(), math.NaN(), math.NaN()},
		Indices:  []uint32{0, 0, 0},
	}
	e.Solids = append(e.Solids, bad)
	if _, ok := e.Bounds(); ok {
		t.Error("degenerate solid must not produce bounds")
	}
}

func TestTriangleOutOfRangeIndex(t *testing.T) {
	s := &Solid{
		Vertices: []float64{0, 0, 0, 1, 0, 0, 0, 1, 0},
		Indices:  []uint32{0, 1, 9},
	}
	if _, _, _, ok := s.Triangle(0); ok {
		t.Error("out-of-range index should report ok=false")
	}
}
