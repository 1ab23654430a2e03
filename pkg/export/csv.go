// Package export renders detected connections into tabular formats for
// use outside the viewer, currently CSV for spreadsheet-based takeoff.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/holzlab/verbund/pkg/connect"
	"github.com/holzlab/verbund/pkg/model"
)

var csvHeader = []string{
	"kind",
	"model_a", "element_a", "name_a",
	"model_b", "element_b", "name_b",
	"measurement", "unit",
}

// NameLookup resolves an element key to a display name. A nil lookup
// or an empty result falls back to the element id.
type NameLookup func(model.ElementKey) string

// ModelNames returns a lookup backed by the model's elements.
func ModelNames(m *model.Model) NameLookup {
	return func(k model.ElementKey) string {
		if e := m.Element(k.ElementID); e != nil {
			return e.Name
		}
		return ""
	}
}

// WriteCSV writes one row per connection, ordered by connection id so
// repeated exports of the same analysis are byte-identical.
func WriteCSV(w io.Writer, conns map[connect.ConnectionID]*connect.Connection, names NameLookup) error {
	ids := make([]connect.ConnectionID, 0, len(conns))
	for id := range conns {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, id := range ids {
		c := conns[id]
		measurement, unit := c.Measurement()
		value := ""
		if unit != "" {
			value = strconv.FormatFloat(measurement, 'f', -1, 64)
		}
		row := []string{
			c.Kind.String(),
			c.A.ModelID, c.A.ElementID, nameFor(names, c.A),
			c.B.ModelID, c.B.ElementID, nameFor(names, c.B),
			value, unit,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row %s: %w", id, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

func nameFor(names NameLookup, k model.ElementKey) string {
	if names != nil {
		if name := names(k); name != "" {
			return name
		}
	}
	return k.ElementID
}
