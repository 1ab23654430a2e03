package ifcx

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/holzlab/verbund/pkg/connect"
	"github.com/holzlab/verbund/pkg/model"
)

// sampleDoc builds a small document in the layout of the IFC5 sample
// files: a spatial hierarchy of Xform classes, a wall element with a
// mesh body, and a standalone mesh node referenced from the storey.
func sampleDoc() []byte {
	doc := []map[string]any{
		{"disclaimer": "test fixture"},
		{
			"def": "class", "name": "Nstorey", "type": "UsdGeom:Xform",
			"children": []map[string]any{
				{"def": "def", "name": "ThickWall", "inherits": []string{"</Nwall>"}},
				{"def": "def", "name": "Slab", "inherits": []string{"</Nslab>"}},
			},
		},
		{
			"def": "class", "name": "Nwall", "type": "UsdGeom:Xform",
			"children": []map[string]any{
				{"def": "def", "name": "Body", "type": "UsdGeom:Mesh", "inherits": []string{"</Nwall_Body>"}},
			},
		},
		{"def": "class", "name": "Nwall_Body", "type": "UsdGeom:Mesh"},
		{
			"def": "over", "name": "Nwall_Body",
			"attributes": map[string]any{
				"UsdGeom:Mesh": map[string]any{
					"points": [][]float64{
						{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0},
					},
					"faceVertexIndices": []int{0, 1, 2, 0, 2, 3},
				},
			},
		},
		{
			"def": "over", "name": "Nwall",
			"attributes": map[string]any{
				"ifc5:class": map[string]any{
					"code": "IfcWall",
					"uri":  "https://identifier.buildingsmart.org/uri/buildingsmart/ifc/4.3/class/IfcWall",
				},
			},
		},
		{
			"def": "over", "name": "Nwall",
			"attributes": map[string]any{
				"ifc5:properties": map[string]any{"IsExternal": 1},
			},
		},
		{
			"def": "class", "name": "Nslab", "type": "UsdGeom:Mesh",
		},
		{
			"def": "over", "name": "Nslab",
			"attributes": map[string]any{
				"UsdGeom:Mesh": map[string]any{
					"points":            [][]float64{{0, 0, 0}, {2, 0, 0}, {2, 2, 0}},
					"faceVertexIndices": []int{0, 1, 2},
				},
			},
		},
	}
	data, err := json.Marshal(doc)
	if err != nil {
		panic(err)
	}
	return data
}

func TestLoadSampleDocument(t *testing.T) {
	m, err := Load(sampleDoc(), "fixture")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if m.ElementCount() != 2 {
		t.Fatalf("elements = %d, want 2 (wall and slab)", m.ElementCount())
	}

	wall := m.Element("Nwall")
	if wall == nil {
		t.Fatal("wall element missing")
	}
	if wall.Name != "ThickWall" {
		t.Errorf("wall name = %q, want ThickWall (from referencing def)", wall.Name)
	}
	if wall.Class != "IfcWall" {
		t.Errorf("wall class = %q, want IfcWall", wall.Class)
	}
	if v, ok := wall.Properties["IsExternal"]; !ok || v != float64(1) {
		t.Errorf("wall properties = %v, want IsExternal=1", wall.Properties)
	}
	if len(wall.Solids) != 1 || wall.Solids[0].TriangleCount() != 2 {
		t.Errorf("wall solids wrong: %d solids", len(wall.Solids))
	}
	if wall.Key.ModelID != "fixture" {
		t.Errorf("wall model id = %q", wall.Key.ModelID)
	}

	slab := m.Element("Nslab")
	if slab == nil {
		t.Fatal("slab element missing")
	}
	if slab.Name != "Slab" {
		t.Errorf("slab name = %q, want Slab", slab.Name)
	}
	if len(slab.Solids) != 1 || slab.Solids[0].VertexCount() != 3 {
		t.Errorf("slab geometry wrong")
	}

	// The body node and the bare storey must not surface as elements.
	if m.Element("Nwall_Body") != nil {
		t.Error("body node exposed as element")
	}
	if m.Element("Nstorey") != nil {
		t.Error("storey without geometry exposed as element")
	}

	var entries []Entry
	if err := json.Unmarshal(sampleDoc(), &entries); err != nil {
		t.Fatal(err)
	}
	names := NodeNames(entries)
	want := []string{"Nslab", "Nstorey", "Nwall", "Nwall_Body"}
	if len(names) != len(want) {
		t.Fatalf("NodeNames = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("NodeNames[%d] = %q, want %q", i, names[i], want[i])
		}
	}
}

func TestLoadElementWithOwnAndBodyMesh(t *testing.T) {
	doc := []map[string]any{
		{
			"def": "class", "name": "Nw", "type": "UsdGeom:Xform",
			"children": []map[string]any{
				{"def": "def", "name": "Body", "type": "UsdGeom:Mesh", "inherits": []string{"</Nw_Body>"}},
			},
		},
		{"def": "class", "name": "Nw_Body", "type": "UsdGeom:Mesh"},
		{
			"def": "over", "name": "Nw_Body",
			"attributes": map[string]any{
				"UsdGeom:Mesh": map[string]any{
					"points":            [][]float64{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}},
					"faceVertexIndices": []int{0, 1, 2},
				},
			},
		},
		{
			"def": "over", "name": "Nw",
			"attributes": map[string]any{
				"UsdGeom:Mesh": map[string]any{
					"points":            [][]float64{{0, 0, 1}, {1, 0, 1}, {0, 1, 1}},
					"faceVertexIndices": []int{0, 1, 2},
				},
			},
		},
	}
	data, _ := json.Marshal(doc)
	m, err := Load(data, "m")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	elem := m.Element("Nw")
	if elem == nil {
		t.Fatal("element missing")
	}
	if len(elem.Solids) != 2 {
		t.Fatalf("solids = %d, want 2 (own mesh plus body)", len(elem.Solids))
	}
}

func TestLoadRejectsBadGeometry(t *testing.T) {
	cases := map[string]string{
		"not json":     `{`,
		"bad point":    `[{"def":"class","name":"N","type":"UsdGeom:Mesh"},{"def":"over","name":"N","attributes":{"UsdGeom:Mesh":{"points":[[0,0]],"faceVertexIndices":[0,0,0]}}}]`,
		"index range":  `[{"def":"class","name":"N","type":"UsdGeom:Mesh"},{"def":"over","name":"N","attributes":{"UsdGeom:Mesh":{"points":[[0,0,0]],"faceVertexIndices":[0,5,0]}}}]`,
		"negative idx": `[{"def":"class","name":"N","type":"UsdGeom:Mesh"},{"def":"over","name":"N","attributes":{"UsdGeom:Mesh":{"points":[[0,0,0]],"faceVertexIndices":[-1,0,0]}}}]`,
	}
	for name, doc := range cases {
		if _, err := Load([]byte(doc), "m"); err == nil {
			t.Errorf("%s: Load accepted malformed document", name)
		}
	}
}

func TestRefRoundTrip(t *testing.T) {
	id := NewID()
	if !strings.HasPrefix(id, "N") || len(id) != 33 {
		t.Errorf("id %q not in N+32hex form", id)
	}
	got, ok := ParseRef(Ref(id))
	if !ok || got != id {
		t.Errorf("ParseRef(Ref(%q)) = %q, %v", id, got, ok)
	}
	for _, bad := range []string{"", "</>", "id", "</id"} {
		if _, ok := ParseRef(bad); ok {
			t.Errorf("ParseRef(%q) accepted", bad)
		}
	}
}

func TestExportRoundTrip(t *testing.T) {
	m := model.NewModel("m", "m")
	a := &model.Element{
		Key:        model.ElementKey{ElementID: "beam-a"},
		Name:       "Beam A",
		Class:      "IfcBeam",
		Properties: map[string]any{"IsExternal": false},
		Solids:     []*model.Solid{model.NewBoxSolid(r3.Vec{}, r3.Vec{X: 1, Y: 1, Z: 1})},
	}
	b := &model.Element{
		Key:    model.ElementKey{ElementID: "beam-b"},
		Name:   "Beam B",
		Solids: []*model.Solid{model.NewBoxSolid(r3.Vec{X: 1}, r3.Vec{X: 2, Y: 1, Z: 1})},
	}
	for _, e := range []*model.Element{a, b} {
		if err := m.AddElement(e); err != nil {
			t.Fatal(err)
		}
	}

	reg := connect.NewRegistry()
	conns, err := reg.Analyze(context.Background(), m.Elements)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(conns) != 1 {
		t.Fatalf("connections = %d, want 1", len(conns))
	}

	var list []*connect.Connection
	for _, c := range conns {
		list = append(list, c)
	}
	data, err := Export(m, list)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	// Elements of the exported document load back with their geometry.
	loaded, err := Load(data, "reimport")
	if err != nil {
		t.Fatalf("Load exported: %v", err)
	}
	got := loaded.Element("beam-a")
	if got == nil {
		t.Fatal("beam-a missing after round trip")
	}
	if got.Name != "Beam A" || got.Class != "IfcBeam" {
		t.Errorf("beam-a metadata lost: name=%q class=%q", got.Name, got.Class)
	}
	if len(got.Solids) != 1 || got.Solids[0].TriangleCount() != 12 {
		t.Errorf("beam-a geometry lost")
	}

	// The connection attribute survives in the raw entries.
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		t.Fatalf("reparse: %v", err)
	}
	found := false
	for _, e := range entries {
		raw, ok := e.Attributes["verbund:connection"]
		if !ok {
			continue
		}
		found = true
		var attr connectionAttr
		if err := json.Unmarshal(raw, &attr); err != nil {
			t.Fatalf("connection attribute: %v", err)
		}
		if attr.Kind != "surface" {
			t.Errorf("kind = %q, want surface", attr.Kind)
		}
		if attr.Area == nil || *attr.Area < 0.99 || *attr.Area > 1.01 {
			t.Errorf("area = %v, want about 1", attr.Area)
		}
		if len(attr.Boundary) != 4 {
			t.Errorf("boundary points = %d, want 4", len(attr.Boundary))
		}
	}
	if !found {
		t.Error("no verbund:connection attribute in export")
	}
}
