package connect

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/dhconnelly/rtreego"

	"github.com/holzlab/verbund/pkg/geom"
	"github.com/holzlab/verbund/pkg/model"
)

// Registry orchestrates the all-pairs comparison across an element set
// and stores the resulting connections plus element→connection
// adjacency. Each call to Analyze replaces all prior state.
type Registry struct {
	mu          sync.Mutex
	connections map[ConnectionID]*Connection
	byElement   map[model.ElementKey][]ConnectionID
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	r := &Registry{}
	r.reset()
	return r
}

func (r *Registry) reset() {
	r.connections = make(map[ConnectionID]*Connection)
	r.byElement = make(map[model.ElementKey][]ConnectionID)
}

// spatialElement adapts an element and its cached pass bounds to the
// rtreego.Spatial interface. Rects are inflated by half the contact
// tolerance so that every pair the bounding filter would accept —
// including the center-distance fallback — stays a tree candidate.
type spatialElement struct {
	index  int
	elem   *model.Element
	bounds geom.AABB
	rect   rtreego.Rect
}

func (s *spatialElement) Bounds() rtreego.Rect {
	return s.rect
}

func newSpatialElement(index int, e *model.Element, bounds geom.AABB) (*spatialElement, error) {
	inflated := bounds.Expand(ContactTolerance / 2)
	size := inflated.Size()
	rect, err := rtreego.NewRect(
		rtreego.Point{inflated.Min.X, inflated.Min.Y, inflated.Min.Z},
		[]float64{size.X, size.Y, size.Z},
	)
	if err != nil {
		return nil, err
	}
	return &spatialElement{index: index, elem: e, bounds: bounds, rect: rect}, nil
}

// Analyze runs the full detection pass over the given elements and
// returns the resulting connection map. Prior connections and
// adjacency are discarded first, so re-running is a full replace.
//
// Elements without usable geometry are skipped silently. A panic while
// processing a single pair is recovered and logged; the pass continues
// with the remaining pairs. The context is checked between pair
// comparisons so a host can abandon a long-running pass; on
// cancellation the partial state is discarded wholesale.
func (r *Registry) Analyze(ctx context.Context, elements []*model.Element) (map[ConnectionID]*Connection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.reset()

	// Bounding boxes are computed once per element at the start of the
	// pass and reused for every pair test.
	items := make([]*spatialElement, 0, len(elements))
	tree := rtreego.NewTree(3, 2, 25)
	for i, e := range elements {
		bounds, ok := e.Bounds()
		if !ok {
			continue
		}
		item, err := newSpatialElement(i, e, bounds)
		if err != nil {
			log.Printf("connect: skipping element %s: %v", e.Key, err)
			continue
		}
		items = append(items, item)
		tree.Insert(item)
	}

	for _, a := range items {
		for _, hit := range tree.SearchIntersect(a.rect) {
			b := hit.(*spatialElement)
			// Each unordered pair is processed exactly once.
			if b.index <= a.index {
				continue
			}
			if err := ctx.Err(); err != nil {
				r.reset()
				return nil, fmt.Errorf("connect: analysis aborted: %w", err)
			}
			if !PlausibleContact(a.bounds, b.bounds) {
				continue
			}
			if conn := comparePair(a.elem, b.elem); conn != nil {
				r.store(conn)
			}
		}
	}

	return r.connectionsLocked(), nil
}

// comparePair runs sampler → dedup → classifier for one candidate
// pair. A zero-point result means no connection, which is the common
// case, not an error. A panic — e.g. from a collaborator's geometry
// accessor on a half-loaded model — must not abort the whole pass, so
// it is recovered here and logged.
func comparePair(a, b *model.Element) (conn *Connection) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("connect: pair %s / %s: recovered: %v", a.Key, b.Key, rec)
			conn = nil
		}
	}()

	points := Dedupe(SampleContacts(a, b))
	if len(points) == 0 {
		return nil
	}

	kind, geometry, measurement := Classify(points)
	conn = &Connection{
		ID:       ConnectionIDFor(a.Key, b.Key),
		Kind:     kind,
		Geometry: geometry,
		A:        a.Key,
		B:        b.Key,
	}
	switch kind {
	case KindLine:
		conn.Length = measurement
	case KindSurface:
		conn.Area = measurement
	}
	return conn
}

func (r *Registry) store(c *Connection) {
	r.connections[c.ID] = c
	r.byElement[c.A] = append(r.byElement[c.A], c.ID)
	r.byElement[c.B] = append(r.byElement[c.B], c.ID)
}

// Connections returns a copy of the current connection map.
func (r *Registry) Connections() map[ConnectionID]*Connection {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.connectionsLocked()
}

func (r *Registry) connectionsLocked() map[ConnectionID]*Connection {
	out := make(map[ConnectionID]*Connection, len(r.connections))
	for id, c := range r.connections {
		out[id] = c
	}
	return out
}

// Connection returns the connection with the given id, or nil.
func (r *Registry) Connection(id ConnectionID) *Connection {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.connections[id]
}

// ConnectionsFor returns the connections touching the given element,
// for highlighting when an element is selected.
func (r *Registry) ConnectionsFor(key model.ElementKey) []*Connection {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := r.byElement[key]
	out := make([]*Connection, 0, len(ids))
	for _, id := range ids {
		if c := r.connections[id]; c != nil {
			out = append(out, c)
		}
	}
	return out
}

// Count returns the number of stored connections.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.connections)
}

// Clear discards all connections and adjacency, the "exit connection
// mode" operation.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reset()
}
