// Package tracker turns repeated overlap queries into incremental deltas.
//
// A Tracker remembers the result of its previous Poll. Each new Poll searches
// the underlying index once and reports only the intervals that entered or
// left the result, flipping their activation flags on the way, so a consumer
// touches the entities that actually changed instead of redrawing everything.
package tracker

import (
	"slices"
	"sync"

	"github.com/sanonone/chronograph/pkg/core/interval"
)

// Searcher is the read side of an interval index.
type Searcher[T any] interface {
	Search(q interval.Bounds) []*interval.Interval[T]
}

// Sizer reports how many entries back a stream. A zero Len lets Poll skip
// the search entirely.
type Sizer interface {
	Len() int
}

// Delta is the difference between two successive poll results.
type Delta[T any] struct {
	Added   []*interval.Interval[T]
	Removed []*interval.Interval[T]
}

// Empty reports whether nothing changed.
func (d Delta[T]) Empty() bool { return len(d.Added) == 0 && len(d.Removed) == 0 }

// Len returns the number of changed intervals.
func (d Delta[T]) Len() int { return len(d.Added) + len(d.Removed) }

// All returns removed followed by added intervals.
func (d Delta[T]) All() []*interval.Interval[T] {
	out := make([]*interval.Interval[T], 0, d.Len())
	out = append(out, d.Removed...)
	return append(out, d.Added...)
}

// Tracker is safe for concurrent use; polls on one tracker are serialized.
type Tracker[T any] struct {
	mu   sync.Mutex
	src  Searcher[T]
	size Sizer
	last map[*interval.Interval[T]]struct{}
}

// New creates a tracker over src. size may be nil, in which case src is used
// when it implements Sizer and the short-circuit is disabled otherwise.
func New[T any](src Searcher[T], size Sizer) *Tracker[T] {
	if size == nil {
		size, _ = src.(Sizer)
	}
	return &Tracker[T]{
		src:  src,
		size: size,
		last: make(map[*interval.Interval[T]]struct{}),
	}
}

// Poll searches q and returns what changed since the previous poll. Removed
// intervals are switched off and added ones switched on before returning.
//
// When the source is empty the search is skipped: the delta is empty, except
// that intervals still remembered from before the source was emptied are
// reported as removed.
func (t *Tracker[T]) Poll(q interval.Bounds) Delta[T] {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.size != nil && t.size.Len() == 0 {
		if len(t.last) == 0 {
			return Delta[T]{}
		}
		d := Delta[T]{Removed: keys(t.last)}
		for _, iv := range d.Removed {
			iv.SetOn(false)
		}
		clear(t.last)
		return d
	}

	current := t.src.Search(q)
	next := make(map[*interval.Interval[T]]struct{}, len(current))
	var d Delta[T]
	for _, iv := range current {
		if _, dup := next[iv]; dup {
			continue
		}
		next[iv] = struct{}{}
		if _, ok := t.last[iv]; !ok {
			d.Added = append(d.Added, iv)
		}
	}
	for iv := range t.last {
		if _, ok := next[iv]; !ok {
			d.Removed = append(d.Removed, iv)
		}
	}
	for _, iv := range d.Removed {
		iv.SetOn(false)
	}
	for _, iv := range d.Added {
		iv.SetOn(true)
	}
	t.last = next

	slices.SortFunc(d.Added, interval.Compare[T])
	slices.SortFunc(d.Removed, interval.Compare[T])
	return d
}

// Reset forgets the previous result without touching any flag. The next
// Poll reports its whole result as added.
func (t *Tracker[T]) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.last = make(map[*interval.Interval[T]]struct{})
}

// Active returns the result of the last poll in interval order.
func (t *Tracker[T]) Active() []*interval.Interval[T] {
	t.mu.Lock()
	defer t.mu.Unlock()
	return keys(t.last)
}

// Diff compares two result sets without side effects: added holds what is in
// cur but not in prev, removed what is in prev but not in cur. Both are
// returned in interval order.
func Diff[T any](prev, cur []*interval.Interval[T]) Delta[T] {
	before := make(map[*interval.Interval[T]]struct{}, len(prev))
	for _, iv := range prev {
		before[iv] = struct{}{}
	}
	after := make(map[*interval.Interval[T]]struct{}, len(cur))
	var d Delta[T]
	for _, iv := range cur {
		if _, dup := after[iv]; dup {
			continue
		}
		after[iv] = struct{}{}
		if _, ok := before[iv]; !ok {
			d.Added = append(d.Added, iv)
		}
	}
	for iv := range before {
		if _, ok := after[iv]; !ok {
			d.Removed = append(d.Removed, iv)
		}
	}
	slices.SortFunc(d.Added, interval.Compare[T])
	slices.SortFunc(d.Removed, interval.Compare[T])
	return d
}

func keys[T any](set map[*interval.Interval[T]]struct{}) []*interval.Interval[T] {
	out := make([]*interval.Interval[T], 0, len(set))
	for iv := range set {
		out = append(out, iv)
	}
	slices.SortFunc(out, interval.Compare[T])
	return out
}
