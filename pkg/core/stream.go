package core

import (
	"fmt"
	"sync"

	"github.com/sanonone/chronograph/pkg/core/interval"
	"github.com/sanonone/chronograph/pkg/core/itree"
	"github.com/sanonone/chronograph/pkg/core/store"
	"github.com/sanonone/chronograph/pkg/core/tracker"
	"github.com/sanonone/chronograph/pkg/core/types"
)

// StreamKind names one of the independent interval streams of a Network.
type StreamKind int

const (
	Nodes StreamKind = iota
	Edges
	Graph
	NodeAttrs
	EdgeAttrs
	GraphAttrs
	NodeX
	NodeY
)

// StreamKinds lists every stream in polling order.
var StreamKinds = []StreamKind{Nodes, Edges, Graph, NodeAttrs, EdgeAttrs, GraphAttrs, NodeX, NodeY}

var streamNames = [...]string{
	Nodes:      "nodes",
	Edges:      "edges",
	Graph:      "graph",
	NodeAttrs:  "node_attrs",
	EdgeAttrs:  "edge_attrs",
	GraphAttrs: "graph_attrs",
	NodeX:      "node_x",
	NodeY:      "node_y",
}

func (k StreamKind) String() string {
	if k < 0 || int(k) >= len(streamNames) {
		return fmt.Sprintf("stream(%d)", int(k))
	}
	return streamNames[k]
}

// Stream couples one attribute store with the interval tree indexing it.
//
// Intervals added through the fast path are owned by the store immediately
// but only become searchable after Flush, which bulk-inserts them into the
// tree under a single lock. Checked insertions are indexed right away.
// Writers are serialized by the stream mutex; readers go straight to the
// tree and only contend with structural mutations.
type Stream[T any] struct {
	kind StreamKind

	mu      sync.RWMutex
	store   *store.Store[T]
	tree    *itree.Tree[T]
	pending map[*interval.Interval[T]]struct{}
	queue   []*interval.Interval[T]
	times   *timeline
}

// NewStream creates an empty stream. The options configure its store.
func NewStream[T any](kind StreamKind, opts ...store.Option[T]) *Stream[T] {
	return &Stream[T]{
		kind:    kind,
		store:   store.New(opts...),
		tree:    itree.New[T](),
		pending: make(map[*interval.Interval[T]]struct{}),
		times:   newTimeline(),
	}
}

// Kind returns the stream identifier.
func (s *Stream[T]) Kind() StreamKind { return s.kind }

// Store exposes the attribute store backing the stream.
func (s *Stream[T]) Store() *store.Store[T] { return s.store }

// AddFast records iv for (column, row) without validation and queues it for
// the next Flush.
func (s *Stream[T]) AddFast(row uint64, column string, iv *interval.Interval[T]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store.SetFast(row, column, iv)
	s.pending[iv] = struct{}{}
	s.queue = append(s.queue, iv)
}

// Flush indexes every queued interval and returns how many were inserted.
func (s *Stream[T]) Flush() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushUnlocked()
}

func (s *Stream[T]) flushUnlocked() int {
	if len(s.queue) == 0 {
		return 0
	}
	batch := make([]*interval.Interval[T], 0, len(s.pending))
	for _, iv := range s.queue {
		if _, ok := s.pending[iv]; ok {
			delete(s.pending, iv)
			batch = append(batch, iv)
			s.times.add(iv.Start(), iv.End())
		}
	}
	s.queue = nil
	return s.tree.InsertAll(batch)
}

// Pending returns the number of intervals waiting for Flush.
func (s *Stream[T]) Pending() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.pending)
}

// Set validates and records value over [start, end] for (column, row) and
// indexes the result immediately. Queued fast-path intervals are flushed
// first so the merge sees the complete attribute history.
func (s *Stream[T]) Set(row uint64, column string, typ types.AttributeType, value T, start, end float64) (store.Change[T], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushUnlocked()

	change, err := s.store.SetChecked(row, column, typ, value, start, end)
	if err != nil {
		return change, err
	}
	if change.Removed != nil {
		s.tree.Replace(change.Removed, change.Added)
		s.times.remove(change.Removed.Start(), change.Removed.End())
	} else {
		s.tree.Insert(change.Added)
	}
	s.times.add(change.Added.Start(), change.Added.End())
	return change, nil
}

// RemoveRow drops every attribute of row from the store and the tree. The
// tree removal is applied as one batch, so a concurrent Search sees either
// all of the row's intervals or none.
func (s *Stream[T]) RemoveRow(row uint64) []*interval.Interval[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := s.store.RemoveRow(row)
	s.dropUnlocked(removed)
	return removed
}

// Remove drops one attribute of row.
func (s *Stream[T]) Remove(row uint64, column string) []*interval.Interval[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := s.store.Remove(row, column)
	s.dropUnlocked(removed)
	return removed
}

// RemoveInterval drops a single interval. It reports false if the stream
// does not own it.
func (s *Stream[T]) RemoveInterval(iv *interval.Interval[T]) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.store.Detach(iv) {
		return false
	}
	s.dropUnlocked([]*interval.Interval[T]{iv})
	return true
}

func (s *Stream[T]) dropUnlocked(ivs []*interval.Interval[T]) {
	if len(ivs) == 0 {
		return
	}
	indexed := make([]*interval.Interval[T], 0, len(ivs))
	for _, iv := range ivs {
		if _, ok := s.pending[iv]; ok {
			delete(s.pending, iv)
			continue
		}
		indexed = append(indexed, iv)
		s.times.remove(iv.Start(), iv.End())
	}
	s.tree.RemoveAll(indexed)
}

// Clear drops everything the stream holds.
func (s *Stream[T]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store.Clear()
	s.tree.Clear()
	s.queue = nil
	clear(s.pending)
	s.times.clear()
}

// Search returns the indexed intervals overlapping q.
func (s *Stream[T]) Search(q interval.Bounds) []*interval.Interval[T] {
	return s.tree.Search(q)
}

// Intervals returns every indexed interval in tree order.
func (s *Stream[T]) Intervals() []*interval.Interval[T] {
	return s.tree.Intervals()
}

// ChangedBetween reports what differs between the instants t0 and t1:
// Added is active at t1 but not at t0, Removed the opposite. Only the two
// instants are compared, so an interval lying entirely inside (t0, t1) is
// in neither list. Flags are not touched. Both searches run under one read
// lock.
func (s *Stream[T]) ChangedBetween(t0, t1 float64) tracker.Delta[T] {
	s.tree.RLock()
	before := s.tree.SearchUnlocked(interval.Point(t0))
	after := s.tree.SearchUnlocked(interval.Point(t1))
	s.tree.RUnlock()
	return tracker.Diff(before, after)
}

// Tracker returns a new change tracker polling this stream.
func (s *Stream[T]) Tracker() *tracker.Tracker[T] {
	return tracker.New[T](s, s)
}

// Len returns the number of attributes recorded in the stream.
func (s *Stream[T]) Len() int { return s.store.Len() }

// IntervalCount returns the number of indexed intervals.
func (s *Stream[T]) IntervalCount() int { return s.tree.Len() }

// Span returns the first and last finite endpoint of the indexed intervals.
func (s *Stream[T]) Span() (interval.Bounds, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	lo, hi, ok := s.times.span()
	if !ok {
		return interval.Bounds{}, false
	}
	return interval.Bounds{Start: lo, End: hi}, true
}

// NextChange returns the first finite endpoint strictly after t.
func (s *Stream[T]) NextChange(t float64) (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.times.next(t)
}

// PrevChange returns the last finite endpoint strictly before t.
func (s *Stream[T]) PrevChange(t float64) (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.times.prev(t)
}

// Endpoints returns the number of distinct finite endpoints.
func (s *Stream[T]) Endpoints() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.times.len()
}
