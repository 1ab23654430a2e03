package ifcx

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/holzlab/verbund/pkg/model"
)

// document is the composed view of a parsed .ifcx array: declared nodes
// by name, their attributes with all overs merged in, and the display
// names given to nodes by the defs that reference them.
type document struct {
	classes   map[string]*Entry
	order     []string
	attrs     map[string]map[string]json.RawMessage
	refName   map[string]string
	bodyNodes map[string]bool
}

// Load parses .ifcx JSON and returns the building model it describes.
// An element is a declared node that resolves to at least one mesh,
// either through its own merged attributes or through a mesh-typed
// child body. Nodes consumed as bodies of another element are not
// elements themselves.
func Load(data []byte, modelID string) (*model.Model, error) {
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse ifcx: %w", err)
	}
	return Compose(entries, modelID)
}

// Compose builds a model from already-parsed entries.
func Compose(entries []Entry, modelID string) (*model.Model, error) {
	doc := newDocument(entries)

	m := model.NewModel(modelID, modelID)
	for _, name := range doc.order {
		if doc.bodyNodes[name] {
			continue
		}
		solids, err := doc.solidsFor(name)
		if err != nil {
			return nil, err
		}
		if len(solids) == 0 {
			continue
		}
		elem := &model.Element{
			Key:    model.ElementKey{ElementID: name},
			Name:   doc.displayName(name),
			Solids: solids,
		}
		if cls, ok := doc.classOf(name); ok {
			elem.Class = cls
		}
		props, err := doc.propertiesOf(name)
		if err != nil {
			return nil, err
		}
		elem.Properties = props
		if err := m.AddElement(elem); err != nil {
			return nil, fmt.Errorf("ifcx node %s: %w", name, err)
		}
	}
	return m, nil
}

func newDocument(entries []Entry) *document {
	doc := &document{
		classes:   map[string]*Entry{},
		attrs:     map[string]map[string]json.RawMessage{},
		refName:   map[string]string{},
		bodyNodes: map[string]bool{},
	}
	for i := range entries {
		e := &entries[i]
		switch e.Def {
		case "class", "def":
			if e.Name == "" {
				continue
			}
			if _, seen := doc.classes[e.Name]; !seen && e.Def == "class" {
				doc.classes[e.Name] = e
				doc.order = append(doc.order, e.Name)
			}
			doc.mergeAttributes(e.Name, e.Attributes)
			doc.indexChildren(e.Children)
			doc.indexRefs(e)
		case "over":
			if e.Name != "" {
				doc.mergeAttributes(e.Name, e.Attributes)
			}
		}
	}
	return doc
}

func (d *document) mergeAttributes(name string, attrs map[string]json.RawMessage) {
	if len(attrs) == 0 {
		return
	}
	merged := d.attrs[name]
	if merged == nil {
		merged = map[string]json.RawMessage{}
		d.attrs[name] = merged
	}
	for k, v := range attrs {
		merged[k] = v
	}
}

// indexChildren records names given to referenced nodes and marks
// mesh-typed child targets as body nodes.
func (d *document) indexChildren(children []Entry) {
	for i := range children {
		c := &children[i]
		for _, ref := range c.Inherits {
			id, ok := ParseRef(ref)
			if !ok {
				continue
			}
			if _, seen := d.refName[id]; !seen {
				d.refName[id] = c.Name
			}
			if c.Type == typeMesh {
				d.bodyNodes[id] = true
			}
		}
		d.indexChildren(c.Children)
	}
}

// indexRefs records names from top-level defs that point at a class,
// such as the def "My_Project" inheriting the project class id.
func (d *document) indexRefs(e *Entry) {
	if e.Def != "def" {
		return
	}
	for _, ref := range e.Inherits {
		if id, ok := ParseRef(ref); ok {
			if _, seen := d.refName[id]; !seen {
				d.refName[id] = e.Name
			}
		}
	}
}

func (d *document) displayName(id string) string {
	if name, ok := d.refName[id]; ok && name != "" {
		return name
	}
	return id
}

// solidsFor gathers the node's own mesh plus the meshes of its
// mesh-typed children, in declaration order.
func (d *document) solidsFor(name string) ([]*model.Solid, error) {
	var solids []*model.Solid
	if s, ok, err := d.meshOf(name); err != nil {
		return nil, err
	} else if ok {
		solids = append(solids, s)
	}
	cls, ok := d.classes[name]
	if !ok {
		return solids, nil
	}
	for i := range cls.Children {
		c := &cls.Children[i]
		if c.Type != typeMesh {
			continue
		}
		for _, ref := range c.Inherits {
			id, ok := ParseRef(ref)
			if !ok {
				continue
			}
			if s, ok, err := d.meshOf(id); err != nil {
				return nil, fmt.Errorf("node %s body %s: %w", name, c.Name, err)
			} else if ok {
				solids = append(solids, s)
			}
		}
	}
	return solids, nil
}

func (d *document) meshOf(name string) (*model.Solid, bool, error) {
	raw, ok := d.attrs[name][attrMesh]
	if !ok {
		return nil, false, nil
	}
	var mesh meshAttr
	if err := json.Unmarshal(raw, &mesh); err != nil {
		return nil, false, fmt.Errorf("mesh %s: %w", name, err)
	}
	if len(mesh.Points) == 0 || len(mesh.FaceVertexIndices) == 0 {
		return nil, false, nil
	}
	s := &model.Solid{
		Vertices: make([]float64, 0, len(mesh.Points)*3),
		Indices:  make([]uint32, 0, len(mesh.FaceVertexIndices)),
	}
	for i, p := range mesh.Points {
		if len(p) != 3 {
			return nil, false, fmt.Errorf("mesh %s: point %d has %d coordinates", name, i, len(p))
		}
		s.Vertices = append(s.Vertices, p[0], p[1], p[2])
	}
	for _, idx := range mesh.FaceVertexIndices {
		if idx < 0 || idx >= len(mesh.Points) {
			return nil, false, fmt.Errorf("mesh %s: vertex index %d out of range", name, idx)
		}
		s.Indices = append(s.Indices, uint32(idx))
	}
	return s, true, nil
}

func (d *document) classOf(name string) (string, bool) {
	raw, ok := d.attrs[name][attrClass]
	if !ok {
		return "", false
	}
	var ca classAttr
	if err := json.Unmarshal(raw, &ca); err != nil {
		return "", false
	}
	return ca.Code, ca.Code != ""
}

func (d *document) propertiesOf(name string) (map[string]any, error) {
	raw, ok := d.attrs[name][attrProperties]
	if !ok {
		return nil, nil
	}
	var props map[string]any
	if err := json.Unmarshal(raw, &props); err != nil {
		return nil, fmt.Errorf("properties of %s: %w", name, err)
	}
	return props, nil
}

// NodeNames lists the declared class names of a parsed document in
// order, which is useful for diagnostics.
func NodeNames(entries []Entry) []string {
	doc := newDocument(entries)
	names := append([]string(nil), doc.order...)
	sort.Strings(names)
	return names
}
