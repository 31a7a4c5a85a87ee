package core

import (
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/sanonone/chronograph/pkg/core/interval"
	"github.com/sanonone/chronograph/pkg/core/store"
	"github.com/sanonone/chronograph/pkg/core/types"
)

func TestStreamFastPathNeedsFlush(t *testing.T) {
	s := NewStream[float64](NodeX)
	a := interval.New(0, 10, 1.0, interval.NoOwner)
	s.AddFast(1, "X", a)

	if s.Pending() != 1 || s.IntervalCount() != 0 {
		t.Fatalf("fast interval must wait for Flush: pending %d indexed %d", s.Pending(), s.IntervalCount())
	}
	if got := s.Search(interval.Point(5)); len(got) != 0 {
		t.Error("queued intervals must not be searchable")
	}
	if n := s.Flush(); n != 1 {
		t.Fatalf("Flush inserted %d, want 1", n)
	}
	if got := s.Search(interval.Point(5)); len(got) != 1 || got[0] != a {
		t.Errorf("flushed interval not found: %v", got)
	}
	if s.Flush() != 0 {
		t.Error("second Flush must be a no-op")
	}
}

func TestStreamScenario(t *testing.T) {
	s := NewStream[string](NodeAttrs)
	a := interval.New(0, 10, "A", interval.NoOwner)
	b := interval.New(5, 15, "B", interval.NoOwner)
	c := interval.New(20, 30, "C", interval.NoOwner)
	for _, iv := range []*interval.Interval[string]{a, b, c} {
		s.AddFast(1, "X", iv)
	}
	s.Flush()

	tr := s.Tracker()
	steps := []struct {
		at      float64
		added   []*interval.Interval[string]
		removed []*interval.Interval[string]
	}{
		{0, []*interval.Interval[string]{a}, nil},
		{7, []*interval.Interval[string]{b}, nil},
		{12, nil, []*interval.Interval[string]{a}},
		{25, []*interval.Interval[string]{c}, []*interval.Interval[string]{b}},
	}
	for _, st := range steps {
		d := tr.Poll(interval.Point(st.at))
		if !sameIntervals(d.Added, st.added) || !sameIntervals(d.Removed, st.removed) {
			t.Errorf("poll(%v): added %v removed %v", st.at, d.Added, d.Removed)
		}
	}
}

func sameIntervals[T any](a, b []*interval.Interval[T]) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestStreamSetMergesInTree(t *testing.T) {
	s := NewStream[float64](NodeX)
	first, err := s.Set(1, "x", types.Real, 3, 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	merged, err := s.Set(1, "x", types.Real, 3, 10, 20)
	if err != nil {
		t.Fatal(err)
	}
	if merged.Removed != first.Added {
		t.Fatal("expected a merge with the previous interval")
	}
	if s.IntervalCount() != 1 {
		t.Fatalf("tree holds %d intervals after merge, want 1", s.IntervalCount())
	}
	if got := s.Search(interval.Point(15)); len(got) != 1 || got[0] != merged.Added {
		t.Errorf("merged interval not indexed: %v", got)
	}
	span, ok := s.Span()
	if !ok || span.Start != 0 || span.End != 20 {
		t.Errorf("span after merge %v", span)
	}
	if _, ok := s.NextChange(0); !ok {
		t.Error("expected a change after 0")
	}
	if at, _ := s.NextChange(0); at != 20 {
		t.Errorf("the merged-away endpoint 10 must not be reported, got %v", at)
	}
}

func TestStreamSetFlushesPendingFirst(t *testing.T) {
	s := NewStream[float64](NodeX)
	s.AddFast(1, "x", interval.New(0, 10, 3.0, interval.NoOwner))
	change, err := s.Set(1, "x", types.Real, 3, 5, 12)
	if err != nil {
		t.Fatal(err)
	}
	if !change.Merged() {
		t.Error("checked insertion must merge with a queued interval")
	}
	if s.Pending() != 0 || s.IntervalCount() != 1 {
		t.Errorf("pending %d indexed %d", s.Pending(), s.IntervalCount())
	}
}

func TestStreamSetValidation(t *testing.T) {
	s := NewStream[any](NodeAttrs, store.WithEqual(types.Equal))
	_, err := s.Set(1, "name", types.String, "n1", 0, 1)
	if !errors.Is(err, store.ErrReservedColumn) {
		t.Fatalf("expected ErrReservedColumn, got %v", err)
	}
	if s.Len() != 0 || s.IntervalCount() != 0 {
		t.Error("rejected insertion must not reach store or tree")
	}
}

func TestStreamRemoval(t *testing.T) {
	s := NewStream[int](NodeAttrs)
	indexed := interval.New(0, 10, 1, interval.NoOwner)
	queued := interval.New(20, 30, 2, interval.NoOwner)
	other := interval.New(0, 10, 3, interval.NoOwner)
	s.AddFast(1, "a", indexed)
	s.AddFast(2, "a", other)
	s.Flush()
	s.AddFast(1, "b", queued)

	if got := s.RemoveRow(1); len(got) != 2 {
		t.Fatalf("RemoveRow returned %d intervals, want 2", len(got))
	}
	if s.Pending() != 0 {
		t.Error("queued interval of a removed row must not be flushed later")
	}
	s.Flush()
	for _, iv := range s.Intervals() {
		if iv == indexed || iv == queued {
			t.Fatalf("removed interval %v still indexed", iv)
		}
	}
	if s.Store().HasRow(1) {
		t.Error("removed row still in the store")
	}

	if !s.RemoveInterval(other) || s.RemoveInterval(other) {
		t.Error("RemoveInterval must succeed exactly once")
	}
	if _, ok := s.Span(); ok {
		t.Error("empty stream must not report a span")
	}
}

func TestStreamChangedBetween(t *testing.T) {
	s := NewStream[string](Nodes)
	a := interval.New(0, 10, "A", interval.NoOwner)
	b := interval.New(5, 15, "B", interval.NoOwner)
	s.AddFast(1, ExistsColumn, a)
	s.AddFast(2, ExistsColumn, b)
	s.Flush()

	d := s.ChangedBetween(2, 12)
	if !sameIntervals(d.Added, []*interval.Interval[string]{b}) || !sameIntervals(d.Removed, []*interval.Interval[string]{a}) {
		t.Errorf("ChangedBetween(2, 12) = %+v", d)
	}
	if !a.On() {
		t.Error("ChangedBetween must not flip flags")
	}
}

func TestStreamChangedBetweenComparesInstantsOnly(t *testing.T) {
	s := NewStream[string](Nodes)
	inside := interval.New(3, 4, "inside", interval.NoOwner)
	s.AddFast(1, ExistsColumn, inside)
	s.Flush()

	if d := s.ChangedBetween(0, 10); !d.Empty() {
		t.Errorf("an interval strictly inside (t0, t1) is active at neither instant, got %+v", d)
	}
}

// rowCount counts the intervals of ivs recorded under row.
func rowCount[T any](ivs []*interval.Interval[T], row uint64) int {
	n := 0
	for _, iv := range ivs {
		if key, ok := iv.Key(); ok && key.Row == row {
			n++
		}
	}
	return n
}

func TestStreamConcurrentSearchAndRemoveRow(t *testing.T) {
	const perRow = 10
	s := NewStream[bool](Nodes)
	s.AddFast(2, ExistsColumn, interval.New(0, 1000, true, interval.NoOwner))
	s.Flush()

	var stop atomic.Bool
	var wg sync.WaitGroup
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr := s.Tracker()
			for !stop.Load() {
				found := s.Search(interval.All())
				if n := rowCount(found, 1); n != 0 && n != perRow {
					t.Errorf("search saw %d of the %d intervals of row 1", n, perRow)
					return
				}
				if n := rowCount(found, 2); n != 1 {
					t.Errorf("untouched row 2 seen %d times", n)
					return
				}
				tr.Poll(interval.Range(0, 1000))
				if n := len(tr.Active()); n != 1 && n != perRow+1 {
					t.Errorf("tracker result holds %d intervals", n)
					return
				}
				s.NextChange(0)
			}
		}()
	}

	for round := 0; round < 200; round++ {
		for i := 0; i < perRow; i++ {
			at := float64(i * 10)
			s.AddFast(1, ExistsColumn, interval.New(at, at+5, true, interval.NoOwner))
		}
		s.Flush()
		if got := s.RemoveRow(1); len(got) != perRow {
			t.Errorf("round %d: RemoveRow returned %d intervals", round, len(got))
			break
		}
	}
	stop.Store(true)
	wg.Wait()

	if s.IntervalCount() != 1 || s.Pending() != 0 {
		t.Errorf("stream holds %d intervals and %d pending after the writer stopped", s.IntervalCount(), s.Pending())
	}
}

func TestStreamClear(t *testing.T) {
	s := NewStream[int](Edges)
	s.AddFast(1, ExistsColumn, interval.New(0, 1, 1, interval.NoOwner))
	s.Flush()
	tr := s.Tracker()
	tr.Poll(interval.All())

	s.Clear()
	tr.Reset()
	if s.Len() != 0 || s.IntervalCount() != 0 || len(s.Search(interval.All())) != 0 {
		t.Error("Clear must empty the stream")
	}
	if d := tr.Poll(interval.All()); !d.Empty() {
		t.Errorf("poll after clear and reset returned %v", d.All())
	}
}

func TestTimeline(t *testing.T) {
	tl := newTimeline()
	tl.add(0, 10)
	tl.add(5, 10)
	tl.add(math.Inf(-1), 3)
	tl.add(7, 7)

	lo, hi, ok := tl.span()
	if !ok || lo != 0 || hi != 10 {
		t.Fatalf("span = %v..%v", lo, hi)
	}
	if tl.len() != 5 {
		t.Errorf("expected 5 distinct endpoints, got %d", tl.len())
	}

	testCases := []struct {
		at         float64
		next, prev float64
	}{
		{-1, 0, -1},
		{0, 3, -1},
		{4, 5, 3},
		{7, 10, 5},
	}
	for _, tc := range testCases {
		if tc.next >= 0 {
			if got, ok := tl.next(tc.at); !ok || got != tc.next {
				t.Errorf("next(%v) = %v, %v; want %v", tc.at, got, ok, tc.next)
			}
		}
		if tc.prev >= 0 {
			if got, ok := tl.prev(tc.at); !ok || got != tc.prev {
				t.Errorf("prev(%v) = %v, %v; want %v", tc.at, got, ok, tc.prev)
			}
		} else if _, ok := tl.prev(tc.at); ok {
			t.Errorf("prev(%v) must not exist", tc.at)
		}
	}
	if _, ok := tl.next(10); ok {
		t.Error("nothing follows the last endpoint")
	}

	tl.remove(0, 10)
	if lo, _, _ := tl.span(); lo != 3 {
		t.Errorf("after removal the span must start at 3, got %v", lo)
	}
	tl.remove(5, 10)
	if _, hi, _ := tl.span(); hi != 7 {
		t.Errorf("shared endpoint 10 must go with its last interval, span ends at %v", hi)
	}
	tl.clear()
	if _, _, ok := tl.span(); ok {
		t.Error("cleared timeline must be empty")
	}
}
