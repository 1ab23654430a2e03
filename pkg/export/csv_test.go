package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"strconv"
	"strings"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/holzlab/verbund/pkg/connect"
	"github.com/holzlab/verbund/pkg/model"
)

func chainModel(t *testing.T) *model.Model {
	t.Helper()
	m := model.NewModel("m", "test")
	add := func(id, name string, min, max r3.Vec) {
		e := &model.Element{
			Key:    model.ElementKey{ElementID: id},
			Name:   name,
			Solids: []*model.Solid{model.NewBoxSolid(min, max)},
		}
		if err := m.AddElement(e); err != nil {
			t.Fatal(err)
		}
	}
	add("a", "Post A", r3.Vec{}, r3.Vec{X: 1, Y: 1, Z: 1})
	add("b", "Post B", r3.Vec{X: 1}, r3.Vec{X: 2, Y: 1, Z: 1})
	add("c", "Post C", r3.Vec{X: 2}, r3.Vec{X: 3, Y: 1, Z: 1})
	return m
}

func TestWriteCSV(t *testing.T) {
	m := chainModel(t)
	reg := connect.NewRegistry()
	conns, err := reg.Analyze(context.Background(), m.Elements)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(conns) != 2 {
		t.Fatalf("connections = %d, want 2", len(conns))
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, conns, ModelNames(m)); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}

	records, err := csv.NewReader(strings.NewReader(buf.String())).ReadAll()
	if err != nil {
		t.Fatalf("parse output: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("rows = %d, want header plus 2", len(records))
	}
	if records[0][0] != "kind" || records[0][8] != "unit" {
		t.Errorf("header = %v", records[0])
	}
	for _, row := range records[1:] {
		if row[0] != "surface" {
			t.Errorf("kind = %q, want surface", row[0])
		}
		if row[3] == "" || !strings.HasPrefix(row[3], "Post ") {
			t.Errorf("name_a = %q, want resolved display name", row[3])
		}
		area, err := strconv.ParseFloat(row[7], 64)
		if err != nil || area < 0.99 || area > 1.01 {
			t.Errorf("measurement = %q, want about 1", row[7])
		}
		if row[8] != "m2" {
			t.Errorf("unit = %q, want m2", row[8])
		}
	}
}

func TestWriteCSVDeterministic(t *testing.T) {
	m := chainModel(t)
	reg := connect.NewRegistry()
	conns, err := reg.Analyze(context.Background(), m.Elements)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	var first, second bytes.Buffer
	if err := WriteCSV(&first, conns, ModelNames(m)); err != nil {
		t.Fatal(err)
	}
	if err := WriteCSV(&second, conns, ModelNames(m)); err != nil {
		t.Fatal(err)
	}
	if first.String() != second.String() {
		t.Error("repeated exports differ")
	}
}

func TestWriteCSVEmptyAndFallbackName(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, nil, nil); err != nil {
		t.Fatalf("WriteCSV empty: %v", err)
	}
	if got := strings.TrimSpace(buf.String()); !strings.HasPrefix(got, "kind,") {
		t.Errorf("empty export = %q, want header only", got)
	}

	// Without a lookup the element id stands in for the name.
	conn := &connect.Connection{
		Kind:     connect.KindPoint,
		Geometry: connect.PointGeometry{},
		A:        model.ElementKey{ModelID: "m", ElementID: "x"},
		B:        model.ElementKey{ModelID: "m", ElementID: "y"},
	}
	conn.ID = connect.ConnectionIDFor(conn.A, conn.B)
	buf.Reset()
	err := WriteCSV(&buf, map[connect.ConnectionID]*connect.Connection{conn.ID: conn}, nil)
	if err != nil {
		t.Fatal(err)
	}
	records, err := csv.NewReader(strings.NewReader(buf.String())).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	row := records[1]
	if row[3] != "x" || row[6] != "y" {
		t.Errorf("fallback names = %q / %q, want element ids", row[3], row[6])
	}
	if row[7] != "" || row[8] != "" {
		t.Errorf("point row measurement = %q %q, want empty", row[7], row[8])
	}
}
