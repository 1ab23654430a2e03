// Package model defines the building-model data structures consumed by
// the connection engine: models, elements, and their triangulated
// solids. Geometry is read-only once loaded; elements live for the
// session of the model that owns them.
package model

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/holzlab/verbund/pkg/geom"
)

// ElementKey is the stable identity of an element: the owning model id
// plus the element's local id within that model.
type ElementKey struct {
	ModelID   string `json:"modelId"`
	ElementID string `json:"elementId"`
}

func (k ElementKey) String() string {
	return k.ModelID + "/" + k.ElementID
}

// IsZero reports whether the key is empty.
func (k ElementKey) IsZero() bool {
	return k.ModelID == "" && k.ElementID == ""
}

// Element is a single building part: one or more world-space solids
// plus identifying metadata from the source document.
type Element struct {
	Key        ElementKey     `json:"key"`
	Name       string         `json:"name,omitempty"`
	Class      string         `json:"class,omitempty"` // IFC class code, e.g. "IfcWall"
	Properties map[string]any `json:"properties,omitempty"`
	Solids     []*Solid       `json:"solids,omitempty"`
}

// Bounds returns the smallest axis-aligned box enclosing all of the
// element's solids. ok is false when the element has no usable
// geometry (empty or fully degenerate solids).
func (e *Element) Bounds() (geom.AABB, bool) {
	var box geom.AABB
	found := false
	for _, s := range e.Solids {
		sb, ok := s.Bounds()
		if !ok {
			continue
		}
		if !found {
			box = sb
			found = true
		} else {
			box = box.Union(sb)
		}
	}
	return box, found
}

// Model is a loaded building model: a named collection of elements.
type Model struct {
	ID       string     `json:"id"`
	Name     string     `json:"name,omitempty"`
	Elements []*Element `json:"elements"`

	byID map[string]*Element
}

// NewModel creates an empty model.
func NewModel(id, name string) *Model {
	return &Model{
		ID:   id,
		Name: name,
		byID: make(map[string]*Element),
	}
}

// AddElement appends an element, assigning its model id. Duplicate
// element ids within one model are rejected.
func (m *Model) AddElement(e *Element) error {
	if e.Key.ElementID == "" {
		return fmt.Errorf("model: element has no id")
	}
	if m.byID == nil {
		m.byID = make(map[string]*Element)
	}
	if _, exists := m.byID[e.Key.ElementID]; exists {
		return fmt.Errorf("model: duplicate element id %q", e.Key.ElementID)
	}
	e.Key.ModelID = m.ID
	m.Elements = append(m.Elements, e)
	m.byID[e.Key.ElementID] = e
	return nil
}

// Element returns the element with the given local id, or nil.
func (m *Model) Element(id string) *Element {
	if m.byID == nil {
		return nil
	}
	return m.byID[id]
}

// ElementCount returns the number of elements.
func (m *Model) ElementCount() int {
	return len(m.Elements)
}

// NewBoxSolid returns an axis-aligned box as a 12-triangle solid with
// corners at min and max. Used for synthetic scenes and fixtures.
func NewBoxSolid(min, max r3.Vec) *Solid {
	corners := []r3.Vec{
		{X: min.X, Y: min.Y, Z: min.Z},
		{X: max.X, Y: min.Y, Z: min.Z},
		{X: max.X, Y: max.Y, Z: min.Z},
		{X: min.X, Y: max.Y, Z: min.Z},
		{X: min.X, Y: min.Y, Z: max.Z},
		{X: max.X, Y: min.Y, Z: max.Z},
		{X: max.X, Y: max.Y, Z: max.Z},
		{X: min.X, Y: max.Y, Z: max.Z},
	}
	indices := []uint32{
		0, 2, 1, 0, 3, 2, // bottom
		4, 5, 6, 4, 6, 7, // top
		0, 1, 5, 0, 5, 4, // front
		2, 3, 7, 2, 7, 6, // back
		1, 2, 6, 1, 6, 5, // right
		3, 0, 4, 3, 4, 7, // left
	}
	s := &Solid{Indices: indices}
	for _, c := range corners {
		s.Vertices = append(s.Vertices, c.X, c.Y, c.Z)
	}
	return s
}
