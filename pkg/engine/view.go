package engine

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/sanonone/chronograph/pkg/core"
	"github.com/sanonone/chronograph/pkg/core/interval"
	"github.com/sanonone/chronograph/pkg/core/tracker"
	"github.com/sanonone/chronograph/pkg/metrics"
)

// Frame is the result of one view poll: the delta of every stream against
// the previous poll of the same view.
type Frame struct {
	ViewID uuid.UUID
	Query  interval.Bounds
	// Step is the player step that produced the frame, -1 for direct polls.
	Step int

	Nodes      tracker.Delta[bool]
	Edges      tracker.Delta[bool]
	Graph      tracker.Delta[bool]
	NodeAttrs  tracker.Delta[any]
	EdgeAttrs  tracker.Delta[any]
	GraphAttrs tracker.Delta[any]
	NodeX      tracker.Delta[float64]
	NodeY      tracker.Delta[float64]
}

// Changes returns the number of added and removed intervals per stream.
func (f Frame) Changes() map[core.StreamKind][2]int {
	return map[core.StreamKind][2]int{
		core.Nodes:      {len(f.Nodes.Added), len(f.Nodes.Removed)},
		core.Edges:      {len(f.Edges.Added), len(f.Edges.Removed)},
		core.Graph:      {len(f.Graph.Added), len(f.Graph.Removed)},
		core.NodeAttrs:  {len(f.NodeAttrs.Added), len(f.NodeAttrs.Removed)},
		core.EdgeAttrs:  {len(f.EdgeAttrs.Added), len(f.EdgeAttrs.Removed)},
		core.GraphAttrs: {len(f.GraphAttrs.Added), len(f.GraphAttrs.Removed)},
		core.NodeX:      {len(f.NodeX.Added), len(f.NodeX.Removed)},
		core.NodeY:      {len(f.NodeY.Added), len(f.NodeY.Removed)},
	}
}

// Len returns the number of changed intervals over all streams.
func (f Frame) Len() int {
	return f.Nodes.Len() + f.Edges.Len() + f.Graph.Len() +
		f.NodeAttrs.Len() + f.EdgeAttrs.Len() + f.GraphAttrs.Len() +
		f.NodeX.Len() + f.NodeY.Len()
}

// Empty reports whether no stream changed.
func (f Frame) Empty() bool { return f.Len() == 0 }

// View is one consumer of a network: it keeps an independent change
// tracker per stream, so two views polling different times do not see each
// other's deltas.
//
// The activation flag lives on the intervals themselves and is therefore
// shared: it reflects the latest poll of any view.
type View struct {
	ID uuid.UUID

	mu         sync.Mutex
	nodes      *tracker.Tracker[bool]
	edges      *tracker.Tracker[bool]
	graph      *tracker.Tracker[bool]
	nodeAttrs  *tracker.Tracker[any]
	edgeAttrs  *tracker.Tracker[any]
	graphAttrs *tracker.Tracker[any]
	nodeX      *tracker.Tracker[float64]
	nodeY      *tracker.Tracker[float64]
}

func newView(net *core.Network) *View {
	v := &View{ID: uuid.New()}
	v.bind(net)
	return v
}

// bind points every tracker at the streams of net, forgetting past results.
func (v *View) bind(net *core.Network) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.nodes = net.Nodes.Tracker()
	v.edges = net.Edges.Tracker()
	v.graph = net.Graph.Tracker()
	v.nodeAttrs = net.NodeAttrs.Tracker()
	v.edgeAttrs = net.EdgeAttrs.Tracker()
	v.graphAttrs = net.GraphAttrs.Tracker()
	v.nodeX = net.NodeX.Tracker()
	v.nodeY = net.NodeY.Tracker()
}

// Poll queries every stream at q in parallel and returns their deltas.
// The context is only checked before polling starts. Once started, every
// tracker advances and the whole frame is returned, so a cancelled poll
// never drops deltas. Polls of one view are serialized.
func (v *View) Poll(ctx context.Context, q interval.Bounds) (Frame, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}

	start := time.Now()
	f := Frame{ViewID: v.ID, Query: q, Step: -1}

	var g errgroup.Group
	pollInto(&g, core.Nodes, v.nodes, q, &f.Nodes)
	pollInto(&g, core.Edges, v.edges, q, &f.Edges)
	pollInto(&g, core.Graph, v.graph, q, &f.Graph)
	pollInto(&g, core.NodeAttrs, v.nodeAttrs, q, &f.NodeAttrs)
	pollInto(&g, core.EdgeAttrs, v.edgeAttrs, q, &f.EdgeAttrs)
	pollInto(&g, core.GraphAttrs, v.graphAttrs, q, &f.GraphAttrs)
	pollInto(&g, core.NodeX, v.nodeX, q, &f.NodeX)
	pollInto(&g, core.NodeY, v.nodeY, q, &f.NodeY)
	if err := g.Wait(); err != nil {
		return Frame{}, err
	}

	metrics.PollDuration.Observe(time.Since(start).Seconds())
	return f, nil
}

func pollInto[T any](g *errgroup.Group, kind core.StreamKind, t *tracker.Tracker[T], q interval.Bounds, out *tracker.Delta[T]) {
	g.Go(func() error {
		*out = t.Poll(q)
		name := kind.String()
		metrics.PollsTotal.WithLabelValues(name).Inc()
		metrics.DeltaIntervalsTotal.WithLabelValues(name, "added").Add(float64(len(out.Added)))
		metrics.DeltaIntervalsTotal.WithLabelValues(name, "removed").Add(float64(len(out.Removed)))
		return nil
	})
}

// Reset forgets the previous result of every stream; the next Poll reports
// everything active as added.
func (v *View) Reset() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.nodes.Reset()
	v.edges.Reset()
	v.graph.Reset()
	v.nodeAttrs.Reset()
	v.edgeAttrs.Reset()
	v.graphAttrs.Reset()
	v.nodeX.Reset()
	v.nodeY.Reset()
}
