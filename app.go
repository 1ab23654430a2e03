package main

import (
	"context"
	"log"
	"os"
	"sort"
	"sync"

	"github.com/holzlab/verbund/pkg/connect"
	"github.com/holzlab/verbund/pkg/export"
	"github.com/holzlab/verbund/pkg/ifcx"
	"github.com/holzlab/verbund/pkg/kernel/sdfx"
	"github.com/holzlab/verbund/pkg/model"
	"github.com/holzlab/verbund/pkg/scene"
)

// colorPalette is a default palette used to assign distinct colors to
// elements in the viewer.
var colorPalette = []string{
	"#4A90D9", "#E67E22", "#2ECC71", "#9B59B6",
	"#E74C3C", "#1ABC9C", "#F39C12", "#3498DB",
}

// App is the Wails backend. It exposes methods to the frontend via
// bindings and holds the currently loaded model together with its
// connection analysis.
type App struct {
	ctx    context.Context
	engine *scene.Engine

	mu       sync.Mutex
	model    *model.Model
	registry *connect.Registry
}

// MeshData is the JSON-serializable mesh format sent to the frontend.
type MeshData struct {
	Vertices []float64 `json:"vertices"`
	Indices  []uint32  `json:"indices"`
}

// ElementData describes one element for the viewer.
type ElementData struct {
	ModelID    string         `json:"modelId"`
	ElementID  string         `json:"elementId"`
	Name       string         `json:"name"`
	Class      string         `json:"class,omitempty"`
	Properties map[string]any `json:"properties,omitempty"`
	Meshes     []MeshData     `json:"meshes"`
	Color      string         `json:"color"`
}

// EvalErrorData is a JSON-serializable eval error for the frontend.
type EvalErrorData struct {
	Line    int    `json:"line"`
	Col     int    `json:"col"`
	Message string `json:"message"`
}

// ModelResult is returned by EvalScene and LoadModel.
type ModelResult struct {
	Elements []ElementData   `json:"elements"`
	Errors   []EvalErrorData `json:"errors"`
}

// ElementRefData identifies one participant of a connection.
type ElementRefData struct {
	ModelID   string `json:"modelId"`
	ElementID string `json:"elementId"`
	Name      string `json:"name"`
}

// ConnectionData is the JSON-serializable connection format.
type ConnectionData struct {
	ID          string         `json:"id"`
	Kind        string         `json:"kind"`
	A           ElementRefData `json:"a"`
	B           ElementRefData `json:"b"`
	Measurement float64        `json:"measurement,omitempty"`
	Unit        string         `json:"unit,omitempty"`
	Points      [][]float64    `json:"points,omitempty"`
	Mesh        *MeshData      `json:"mesh,omitempty"`
}

// AnalysisResult is returned by Analyze.
type AnalysisResult struct {
	Connections []ConnectionData `json:"connections"`
	Error       string           `json:"error,omitempty"`
}

// NewApp creates a new App with a scene engine backed by the sdfx
// kernel.
func NewApp() *App {
	return &App{
		engine:   scene.NewEngine(sdfx.New()),
		registry: connect.NewRegistry(),
	}
}

// startup is called by Wails on app startup. The context is saved so
// analysis runs can be cancelled when the app shuts down.
func (a *App) startup(ctx context.Context) {
	a.ctx = ctx
}

// EvalScene takes Lisp source, builds a model from it and makes it the
// current model. A model with eval errors is not installed.
func (a *App) EvalScene(source string) ModelResult {
	result := ModelResult{Elements: []ElementData{}, Errors: []EvalErrorData{}}

	m, evalErrs, err := a.engine.Evaluate(source)
	if err != nil {
		log.Printf("EvalScene fatal error: %v", err)
		result.Errors = append(result.Errors, EvalErrorData{Message: err.Error()})
		return result
	}
	if len(evalErrs) > 0 {
		for _, e := range evalErrs {
			result.Errors = append(result.Errors, EvalErrorData{
				Line: e.Line, Col: e.Col, Message: e.Message,
			})
		}
		return result
	}

	a.setModel(m)
	result.Elements = elementData(m)
	return result
}

// LoadModel reads an .ifcx file and makes it the current model.
func (a *App) LoadModel(path string) ModelResult {
	result := ModelResult{Elements: []ElementData{}, Errors: []EvalErrorData{}}

	data, err := os.ReadFile(path)
	if err != nil {
		result.Errors = append(result.Errors, EvalErrorData{Message: err.Error()})
		return result
	}
	m, err := ifcx.Load(data, modelIDFromPath(path))
	if err != nil {
		log.Printf("LoadModel %s: %v", path, err)
		result.Errors = append(result.Errors, EvalErrorData{Message: err.Error()})
		return result
	}

	a.setModel(m)
	result.Elements = elementData(m)
	return result
}

// Analyze runs connection detection over the current model.
func (a *App) Analyze() AnalysisResult {
	a.mu.Lock()
	m := a.model
	a.mu.Unlock()

	if m == nil {
		return AnalysisResult{Connections: []ConnectionData{}, Error: "no model loaded"}
	}

	ctx := a.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	conns, err := a.registry.Analyze(ctx, m.Elements)
	if err != nil {
		log.Printf("Analyze: %v", err)
		return AnalysisResult{Connections: []ConnectionData{}, Error: err.Error()}
	}
	return AnalysisResult{Connections: connectionData(mapValues(conns), m)}
}

// ConnectionsFor returns the connections involving one element, from
// the most recent analysis.
func (a *App) ConnectionsFor(modelID, elementID string) []ConnectionData {
	a.mu.Lock()
	m := a.model
	a.mu.Unlock()

	key := model.ElementKey{ModelID: modelID, ElementID: elementID}
	return connectionData(a.registry.ConnectionsFor(key), m)
}

// ClearAnalysis discards the current analysis results.
func (a *App) ClearAnalysis() {
	a.registry.Clear()
}

// ExportCSV writes the current analysis as CSV.
func (a *App) ExportCSV(path string) string {
	a.mu.Lock()
	m := a.model
	a.mu.Unlock()

	f, err := os.Create(path)
	if err != nil {
		return err.Error()
	}
	defer f.Close()

	var names export.NameLookup
	if m != nil {
		names = export.ModelNames(m)
	}
	if err := export.WriteCSV(f, a.registry.Connections(), names); err != nil {
		log.Printf("ExportCSV %s: %v", path, err)
		return err.Error()
	}
	return ""
}

// ExportIfcx writes the current model and analysis as an .ifcx file.
func (a *App) ExportIfcx(path string) string {
	a.mu.Lock()
	m := a.model
	a.mu.Unlock()

	if m == nil {
		return "no model loaded"
	}
	data, err := ifcx.Export(m, mapValues(a.registry.Connections()))
	if err != nil {
		log.Printf("ExportIfcx %s: %v", path, err)
		return err.Error()
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return err.Error()
	}
	return ""
}

// setModel installs a new current model and drops the previous
// analysis, which referred to the old elements.
func (a *App) setModel(m *model.Model) {
	a.mu.Lock()
	a.model = m
	a.mu.Unlock()
	a.registry.Clear()
}

func modelIDFromPath(path string) string {
	base := path
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' || path[i] == '\\' {
			base = path[i+1:]
			break
		}
	}
	return base
}

func elementData(m *model.Model) []ElementData {
	out := make([]ElementData, 0, len(m.Elements))
	for i, elem := range m.Elements {
		ed := ElementData{
			ModelID:    elem.Key.ModelID,
			ElementID:  elem.Key.ElementID,
			Name:       elem.Name,
			Class:      elem.Class,
			Properties: elem.Properties,
			Meshes:     make([]MeshData, 0, len(elem.Solids)),
			Color:      colorPalette[i%len(colorPalette)],
		}
		for _, s := range elem.Solids {
			ed.Meshes = append(ed.Meshes, MeshData{Vertices: s.Vertices, Indices: s.Indices})
		}
		out = append(out, ed)
	}
	return out
}

func connectionData(conns []*connect.Connection, m *model.Model) []ConnectionData {
	nameOf := func(k model.ElementKey) string {
		if m != nil {
			if e := m.Element(k.ElementID); e != nil {
				return e.Name
			}
		}
		return k.ElementID
	}

	out := make([]ConnectionData, 0, len(conns))
	for _, c := range conns {
		cd := ConnectionData{
			ID:   string(c.ID),
			Kind: c.Kind.String(),
			A:    ElementRefData{ModelID: c.A.ModelID, ElementID: c.A.ElementID, Name: nameOf(c.A)},
			B:    ElementRefData{ModelID: c.B.ModelID, ElementID: c.B.ElementID, Name: nameOf(c.B)},
		}
		cd.Measurement, cd.Unit = c.Measurement()

		switch g := c.Geometry.(type) {
		case connect.PointGeometry:
			cd.Points = [][]float64{{g.Position.X, g.Position.Y, g.Position.Z}}
		case connect.LineGeometry:
			cd.Points = [][]float64{
				{g.Start.X, g.Start.Y, g.Start.Z},
				{g.End.X, g.End.Y, g.End.Z},
			}
		case connect.SurfaceGeometry:
			for _, p := range g.Boundary {
				cd.Points = append(cd.Points, []float64{p.X, p.Y, p.Z})
			}
			if g.Mesh != nil && !g.Mesh.IsEmpty() {
				cd.Mesh = &MeshData{Vertices: g.Mesh.Vertices, Indices: g.Mesh.Indices}
			}
		default:
			log.Printf("unknown connection geometry %T", c.Geometry)
		}
		out = append(out, cd)
	}
	return out
}

func mapValues(conns map[connect.ConnectionID]*connect.Connection) []*connect.Connection {
	out := make([]*connect.Connection, 0, len(conns))
	for _, c := range conns {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
