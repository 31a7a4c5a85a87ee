package core

import (
	"math"

	"github.com/tidwall/btree"
)

// endpoint is one distinct finite time at which some interval of a stream
// starts or ends. count is the number of interval bounds sitting on it.
type endpoint struct {
	At    float64
	Count int
}

// endpointLess orders endpoints by time only; one item exists per instant.
func endpointLess(a, b endpoint) bool {
	return a.At < b.At
}

// timeline indexes the finite endpoints of the intervals stored in a stream.
// It answers span and next/previous change queries without walking the
// interval tree. Infinite bounds are not recorded.
type timeline struct {
	tree *btree.BTreeG[endpoint]
}

func newTimeline() *timeline {
	return &timeline{tree: btree.NewBTreeG[endpoint](endpointLess)}
}

func (t *timeline) add(start, end float64) {
	t.inc(start, 1)
	if end != start {
		t.inc(end, 1)
	}
}

func (t *timeline) remove(start, end float64) {
	t.inc(start, -1)
	if end != start {
		t.inc(end, -1)
	}
}

func (t *timeline) inc(at float64, delta int) {
	if math.IsInf(at, 0) {
		return
	}
	e, _ := t.tree.Get(endpoint{At: at})
	e.At = at
	e.Count += delta
	if e.Count <= 0 {
		t.tree.Delete(e)
		return
	}
	t.tree.Set(e)
}

// span returns the first and last recorded endpoint.
func (t *timeline) span() (float64, float64, bool) {
	lo, ok := t.tree.Min()
	if !ok {
		return 0, 0, false
	}
	hi, _ := t.tree.Max()
	return lo.At, hi.At, true
}

// next returns the first endpoint strictly after at.
func (t *timeline) next(at float64) (float64, bool) {
	var out float64
	var found bool
	t.tree.Ascend(endpoint{At: at}, func(e endpoint) bool {
		if e.At == at {
			return true
		}
		out, found = e.At, true
		return false
	})
	return out, found
}

// prev returns the last endpoint strictly before at.
func (t *timeline) prev(at float64) (float64, bool) {
	var out float64
	var found bool
	t.tree.Descend(endpoint{At: at}, func(e endpoint) bool {
		if e.At == at {
			return true
		}
		out, found = e.At, true
		return false
	})
	return out, found
}

func (t *timeline) len() int { return t.tree.Len() }

func (t *timeline) clear() {
	t.tree = btree.NewBTreeG[endpoint](endpointLess)
}
