// Package core provides the temporal index of a dynamic network.
//
// A Network groups the independent interval streams a visualization polls:
// node, edge and graph existence, their attribute values and the node layout
// positions. Each stream is a Stream: an attribute store owning the intervals
// plus an augmented interval tree answering overlap queries over them.
package core

import (
	"math"
	"sync"

	"github.com/sanonone/chronograph/pkg/core/interval"
	"github.com/sanonone/chronograph/pkg/core/store"
	"github.com/sanonone/chronograph/pkg/core/types"
)

const (
	// ExistsColumn is the column existence intervals are recorded under.
	ExistsColumn = "@exists"
	// XColumn and YColumn hold node layout positions.
	XColumn = "x"
	YColumn = "y"
	// GraphRow is the row used for graph-level records.
	GraphRow uint64 = 0
)

// Option configures a Network.
type Option func(*config)

type config struct {
	reserved []string
}

// WithReservedColumns replaces the attribute columns rejected by checked
// insertion. The default is store.DefaultReserved.
func WithReservedColumns(columns ...string) Option {
	return func(c *config) { c.reserved = columns }
}

type edgeEnds struct {
	source, target uint64
}

// Network is the temporal index of one dynamic graph.
type Network struct {
	Nodes      *Stream[bool]
	Edges      *Stream[bool]
	Graph      *Stream[bool]
	NodeAttrs  *Stream[any]
	EdgeAttrs  *Stream[any]
	GraphAttrs *Stream[any]
	NodeX      *Stream[float64]
	NodeY      *Stream[float64]

	// mu guards the edge adjacency. Removals that cascade over several
	// streams hold it for writing.
	mu       sync.RWMutex
	incident map[uint64]map[uint64]struct{}
	ends     map[uint64]edgeEnds
}

// NewNetwork creates an empty network.
func NewNetwork(opts ...Option) *Network {
	cfg := config{reserved: store.DefaultReserved}
	for _, opt := range opts {
		opt(&cfg)
	}

	offBool := store.WithOffValue[bool](func(types.AttributeType) bool { return false })
	attrOpts := []store.Option[any]{
		store.WithEqual(types.Equal),
		store.WithOffValue(types.Off),
		store.WithReserved[any](cfg.reserved...),
	}

	return &Network{
		Nodes:      NewStream(Nodes, offBool),
		Edges:      NewStream(Edges, offBool),
		Graph:      NewStream(Graph, offBool),
		NodeAttrs:  NewStream(NodeAttrs, attrOpts...),
		EdgeAttrs:  NewStream(EdgeAttrs, attrOpts...),
		GraphAttrs: NewStream(GraphAttrs, attrOpts...),
		NodeX:      NewStream[float64](NodeX),
		NodeY:      NewStream[float64](NodeY),
		incident:   make(map[uint64]map[uint64]struct{}),
		ends:       make(map[uint64]edgeEnds),
	}
}

// newInterval builds an interval, turning bad bounds into a ValidationError
// instead of a panic since they come from input data.
func newInterval[T any](row uint64, column string, start, end float64, value, off T) (*interval.Interval[T], error) {
	if !(start <= end) {
		return nil, &store.ValidationError{Row: row, Column: column, Err: store.ErrInvalidBounds}
	}
	return interval.New(start, end, value, interval.NoOwner).WithOff(off), nil
}

// AddNode records that node row exists over [start, end].
func (n *Network) AddNode(row uint64, start, end float64) error {
	iv, err := newInterval(row, ExistsColumn, start, end, true, false)
	if err != nil {
		return err
	}
	n.Nodes.AddFast(row, ExistsColumn, iv)
	return nil
}

// AddEdge records that edge row, from source to target, exists over
// [start, end]. The endpoints are remembered so RemoveNode can cascade.
func (n *Network) AddEdge(row, source, target uint64, start, end float64) error {
	iv, err := newInterval(row, ExistsColumn, start, end, true, false)
	if err != nil {
		return err
	}

	n.mu.Lock()
	n.ends[row] = edgeEnds{source: source, target: target}
	n.link(source, row)
	n.link(target, row)
	n.mu.Unlock()

	n.Edges.AddFast(row, ExistsColumn, iv)
	return nil
}

func (n *Network) link(node, edge uint64) {
	set, ok := n.incident[node]
	if !ok {
		set = make(map[uint64]struct{})
		n.incident[node] = set
	}
	set[edge] = struct{}{}
}

// AddGraph records that the graph itself exists over [start, end].
func (n *Network) AddGraph(start, end float64) error {
	iv, err := newInterval(GraphRow, ExistsColumn, start, end, true, false)
	if err != nil {
		return err
	}
	n.Graph.AddFast(GraphRow, ExistsColumn, iv)
	return nil
}

// SetNodeAttr records a validated attribute value of node row.
func (n *Network) SetNodeAttr(row uint64, column string, typ types.AttributeType, value any, start, end float64) (store.Change[any], error) {
	return n.NodeAttrs.Set(row, column, typ, value, start, end)
}

// SetEdgeAttr records a validated attribute value of edge row.
func (n *Network) SetEdgeAttr(row uint64, column string, typ types.AttributeType, value any, start, end float64) (store.Change[any], error) {
	return n.EdgeAttrs.Set(row, column, typ, value, start, end)
}

// SetGraphAttr records a validated graph-level attribute value.
func (n *Network) SetGraphAttr(column string, typ types.AttributeType, value any, start, end float64) (store.Change[any], error) {
	return n.GraphAttrs.Set(GraphRow, column, typ, value, start, end)
}

// AddPosition queues the layout position of node row over [start, end] on
// the fast path, for bulk loading.
func (n *Network) AddPosition(row uint64, x, y, start, end float64) error {
	ix, err := newInterval(row, XColumn, start, end, x, 0)
	if err != nil {
		return err
	}
	iy, err := newInterval(row, YColumn, start, end, y, 0)
	if err != nil {
		return err
	}
	n.NodeX.AddFast(row, XColumn, ix)
	n.NodeY.AddFast(row, YColumn, iy)
	return nil
}

// SetPosition records one position update with validation and merging, for
// positions arriving one at a time from a running layout.
func (n *Network) SetPosition(row uint64, x, y, start, end float64) error {
	if _, err := n.NodeX.Set(row, XColumn, types.Real, x, start, end); err != nil {
		return err
	}
	_, err := n.NodeY.Set(row, YColumn, types.Real, y, start, end)
	return err
}

// Finalize indexes every interval queued by the fast path and returns how
// many were inserted.
func (n *Network) Finalize() int {
	total := n.Nodes.Flush() + n.Edges.Flush() + n.Graph.Flush()
	total += n.NodeAttrs.Flush() + n.EdgeAttrs.Flush() + n.GraphAttrs.Flush()
	total += n.NodeX.Flush() + n.NodeY.Flush()
	return total
}

// RemoveNode drops node row from every stream, together with every edge
// incident to it, and returns the number of intervals removed.
func (n *Network) RemoveNode(row uint64) int {
	n.mu.Lock()
	defer n.mu.Unlock()

	removed := len(n.Nodes.RemoveRow(row))
	removed += len(n.NodeAttrs.RemoveRow(row))
	removed += len(n.NodeX.RemoveRow(row))
	removed += len(n.NodeY.RemoveRow(row))
	for edge := range n.incident[row] {
		removed += n.removeEdgeLocked(edge)
	}
	delete(n.incident, row)
	return removed
}

// RemoveEdge drops edge row and its attributes and returns the number of
// intervals removed.
func (n *Network) RemoveEdge(row uint64) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.removeEdgeLocked(row)
}

func (n *Network) removeEdgeLocked(row uint64) int {
	removed := len(n.Edges.RemoveRow(row))
	removed += len(n.EdgeAttrs.RemoveRow(row))
	if e, ok := n.ends[row]; ok {
		n.unlink(e.source, row)
		n.unlink(e.target, row)
		delete(n.ends, row)
	}
	return removed
}

func (n *Network) unlink(node, edge uint64) {
	if set, ok := n.incident[node]; ok {
		delete(set, edge)
		if len(set) == 0 {
			delete(n.incident, node)
		}
	}
}

// IncidentEdges returns the edges recorded with node row as an endpoint.
func (n *Network) IncidentEdges(row uint64) []uint64 {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]uint64, 0, len(n.incident[row]))
	for e := range n.incident[row] {
		out = append(out, e)
	}
	return out
}

// Clear empties every stream.
func (n *Network) Clear() {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, s := range n.Streams() {
		s.Clear()
	}
	n.incident = make(map[uint64]map[uint64]struct{})
	n.ends = make(map[uint64]edgeEnds)
}

// StreamInfo is the type-independent view of a Stream.
type StreamInfo interface {
	Kind() StreamKind
	Len() int
	IntervalCount() int
	Pending() int
	Flush() int
	Clear()
	Span() (interval.Bounds, bool)
	NextChange(t float64) (float64, bool)
	PrevChange(t float64) (float64, bool)
}

// Streams returns every stream in StreamKinds order.
func (n *Network) Streams() []StreamInfo {
	return []StreamInfo{n.Nodes, n.Edges, n.Graph, n.NodeAttrs, n.EdgeAttrs, n.GraphAttrs, n.NodeX, n.NodeY}
}

// Span returns the smallest and largest finite endpoint over all streams.
func (n *Network) Span() (interval.Bounds, bool) {
	lo, hi := math.Inf(1), math.Inf(-1)
	found := false
	for _, s := range n.Streams() {
		b, ok := s.Span()
		if !ok {
			continue
		}
		found = true
		lo = min(lo, b.Start)
		hi = max(hi, b.End)
	}
	if !found {
		return interval.Bounds{}, false
	}
	return interval.Bounds{Start: lo, End: hi}, true
}

// NextChange returns the first instant after t at which any interval of the
// network starts or ends.
func (n *Network) NextChange(t float64) (float64, bool) {
	best, found := math.Inf(1), false
	for _, s := range n.Streams() {
		if at, ok := s.NextChange(t); ok && at < best {
			best, found = at, true
		}
	}
	return best, found
}

// PrevChange returns the last instant before t at which any interval of the
// network starts or ends.
func (n *Network) PrevChange(t float64) (float64, bool) {
	best, found := math.Inf(-1), false
	for _, s := range n.Streams() {
		if at, ok := s.PrevChange(t); ok && at > best {
			best, found = at, true
		}
	}
	return best, found
}

// Counts returns the number of indexed intervals per stream.
func (n *Network) Counts() map[StreamKind]int {
	out := make(map[StreamKind]int, len(StreamKinds))
	for _, s := range n.Streams() {
		out[s.Kind()] = s.IntervalCount()
	}
	return out
}
