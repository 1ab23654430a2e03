// Package ifcx reads and writes IFC5 .ifcx documents, the JSON-based
// exchange format of buildingSMART's IFC5 prototypes. A document is a
// flat array of entries: "class" and "def" entries declare nodes, "over"
// entries layer attributes onto a node by name, and inherits references
// of the form "</id>" link defs to classes.
package ifcx

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Entry is one element of the top-level .ifcx JSON array. Which fields
// are populated depends on Def: classes and defs carry type and
// children, overs carry only attributes, and a disclaimer entry carries
// nothing but its text.
type Entry struct {
	Def        string                     `json:"def,omitempty"`
	Name       string                     `json:"name,omitempty"`
	Type       string                     `json:"type,omitempty"`
	Children   []Entry                    `json:"children,omitempty"`
	Inherits   []string                   `json:"inherits,omitempty"`
	Attributes map[string]json.RawMessage `json:"attributes,omitempty"`
	Disclaimer string                     `json:"disclaimer,omitempty"`
}

// Attribute keys used by loaders and exporters.
const (
	attrMesh       = "UsdGeom:Mesh"
	attrClass      = "ifc5:class"
	attrProperties = "ifc5:properties"
	attrConnection = "verbund:connection"

	typeXform = "UsdGeom:Xform"
	typeMesh  = "UsdGeom:Mesh"
)

// meshAttr mirrors the UsdGeom:Mesh attribute payload.
type meshAttr struct {
	FaceVertexIndices []int       `json:"faceVertexIndices"`
	Points            [][]float64 `json:"points"`
}

// classAttr mirrors the ifc5:class attribute payload.
type classAttr struct {
	Code string `json:"code"`
	URI  string `json:"uri,omitempty"`
}

// NewID returns a fresh node identifier in the convention used by the
// IFC5 sample files: an "N" prefix followed by a 32-character hex UUID.
func NewID() string {
	u := uuid.New()
	return "N" + hex.EncodeToString(u[:])
}

// Ref wraps a node id as an inherits reference.
func Ref(id string) string {
	return "</" + id + ">"
}

// ParseRef extracts the node id from an inherits reference. It returns
// false when the string is not of the "</id>" form.
func ParseRef(ref string) (string, bool) {
	if !strings.HasPrefix(ref, "</") || !strings.HasSuffix(ref, ">") {
		return "", false
	}
	id := ref[2 : len(ref)-1]
	return id, id != ""
}

func rawAttribute(v any) (json.RawMessage, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode attribute: %w", err)
	}
	return json.RawMessage(data), nil
}
