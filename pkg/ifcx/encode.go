package ifcx

import (
	"encoding/json"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/holzlab/verbund/pkg/connect"
	"github.com/holzlab/verbund/pkg/model"
)

const exportDisclaimer = "Connection analysis export. Geometry and detected " +
	"connections follow the IFC5 .ifcx entry layout."

// elementRef identifies one participant of an exported connection.
type elementRef struct {
	Model   string `json:"model"`
	Element string `json:"element"`
}

// connectionAttr is the verbund:connection attribute payload.
type connectionAttr struct {
	Kind     string      `json:"kind"`
	ElementA elementRef  `json:"elementA"`
	ElementB elementRef  `json:"elementB"`
	Length   *float64    `json:"length_m,omitempty"`
	Area     *float64    `json:"area_m2,omitempty"`
	Position []float64   `json:"position,omitempty"`
	Start    []float64   `json:"start,omitempty"`
	End      []float64   `json:"end,omitempty"`
	Boundary [][]float64 `json:"boundary,omitempty"`
}

// Export writes the model and its detected connections as an .ifcx
// document. Elements become Xform classes with mesh-typed body
// children, mirroring the layout produced by the IFC5 sample
// generators; connections become classes carrying a verbund:connection
// attribute, with surface contact patches exported as body meshes of
// their own.
func Export(m *model.Model, conns []*connect.Connection) ([]byte, error) {
	entries := []Entry{{Disclaimer: exportDisclaimer}}

	for _, elem := range m.Elements {
		elemEntries, err := elementEntries(elem)
		if err != nil {
			return nil, err
		}
		entries = append(entries, elemEntries...)
	}

	ordered := append([]*connect.Connection(nil), conns...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })
	for i, conn := range ordered {
		connEntries, err := connectionEntries(conn, i+1)
		if err != nil {
			return nil, err
		}
		entries = append(entries, connEntries...)
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode ifcx: %w", err)
	}
	return data, nil
}

func elementEntries(elem *model.Element) ([]Entry, error) {
	id := elem.Key.ElementID
	node := Entry{Def: "class", Name: id, Type: typeXform}

	var entries []Entry
	for i, s := range elem.Solids {
		bodyID := fmt.Sprintf("%s_Body_%d", id, i)
		node.Children = append(node.Children, Entry{
			Def:      "def",
			Name:     fmt.Sprintf("Body_%d", i),
			Type:     typeMesh,
			Inherits: []string{Ref(bodyID)},
		})
		meshOver, err := meshOverEntry(bodyID, s)
		if err != nil {
			return nil, fmt.Errorf("element %s: %w", elem.Key, err)
		}
		entries = append(entries,
			Entry{Def: "class", Name: bodyID, Type: typeMesh},
			meshOver,
		)
	}
	entries = append([]Entry{node}, entries...)

	if elem.Class != "" {
		raw, err := rawAttribute(classAttr{Code: elem.Class})
		if err != nil {
			return nil, err
		}
		entries = append(entries, Entry{
			Def: "over", Name: id,
			Attributes: map[string]json.RawMessage{attrClass: raw},
		})
	}
	if len(elem.Properties) > 0 {
		raw, err := rawAttribute(elem.Properties)
		if err != nil {
			return nil, err
		}
		entries = append(entries, Entry{
			Def: "over", Name: id,
			Attributes: map[string]json.RawMessage{attrProperties: raw},
		})
	}
	entries = append(entries, Entry{Def: "def", Name: elem.Name, Inherits: []string{Ref(id)}})
	return entries, nil
}

func connectionEntries(conn *connect.Connection, n int) ([]Entry, error) {
	id := NewID()
	attr := connectionAttr{
		Kind:     conn.Kind.String(),
		ElementA: elementRef{Model: conn.A.ModelID, Element: conn.A.ElementID},
		ElementB: elementRef{Model: conn.B.ModelID, Element: conn.B.ElementID},
	}

	node := Entry{Def: "class", Name: id, Type: typeXform}
	var entries []Entry

	switch g := conn.Geometry.(type) {
	case connect.PointGeometry:
		attr.Position = coords(g.Position)
	case connect.LineGeometry:
		attr.Start = coords(g.Start)
		attr.End = coords(g.End)
		length := conn.Length
		attr.Length = &length
	case connect.SurfaceGeometry:
		for _, p := range g.Boundary {
			attr.Boundary = append(attr.Boundary, coords(p))
		}
		area := conn.Area
		attr.Area = &area
		if g.Mesh != nil && !g.Mesh.IsEmpty() {
			bodyID := id + "_Body"
			node.Children = append(node.Children, Entry{
				Def: "def", Name: "Body", Type: typeMesh,
				Inherits: []string{Ref(bodyID)},
			})
			meshOver, err := meshOverEntry(bodyID, g.Mesh)
			if err != nil {
				return nil, fmt.Errorf("connection %s: %w", conn.ID, err)
			}
			entries = append(entries,
				Entry{Def: "class", Name: bodyID, Type: typeMesh},
				meshOver,
			)
		}
	}

	raw, err := rawAttribute(attr)
	if err != nil {
		return nil, fmt.Errorf("connection %s: %w", conn.ID, err)
	}
	entries = append([]Entry{node}, entries...)
	entries = append(entries,
		Entry{Def: "over", Name: id, Attributes: map[string]json.RawMessage{attrConnection: raw}},
		Entry{Def: "def", Name: fmt.Sprintf("Connection_%d", n), Inherits: []string{Ref(id)}},
	)
	return entries, nil
}

func meshOverEntry(name string, s *model.Solid) (Entry, error) {
	mesh := meshAttr{
		FaceVertexIndices: make([]int, len(s.Indices)),
		Points:            make([][]float64, s.VertexCount()),
	}
	for i, idx := range s.Indices {
		mesh.FaceVertexIndices[i] = int(idx)
	}
	for i := 0; i < s.VertexCount(); i++ {
		mesh.Points[i] = coords(s.Vertex(i))
	}
	raw, err := rawAttribute(mesh)
	if err != nil {
		return Entry{}, err
	}
	return Entry{
		Def: "over", Name: name,
		Attributes: map[string]json.RawMessage{attrMesh: raw},
	}, nil
}

func coords(v r3.Vec) []float64 {
	return []float64{v.X, v.Y, v.Z}
}
