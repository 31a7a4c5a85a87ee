package itree

import (
	"math"
	"math/rand"
	"slices"
	"testing"

	"github.com/sanonone/chronograph/pkg/core/interval"
)

// maxAVLHeight is the AVL height bound for n entries.
func maxAVLHeight(n int) int {
	return int(math.Floor(1.4405*math.Log2(float64(n)+2) - 0.3277))
}

func randomInterval(rng *rand.Rand) *interval.Interval[int] {
	start := math.Floor(rng.Float64() * 1000)
	switch rng.Intn(20) {
	case 0:
		return interval.New(math.Inf(-1), start, 0, interval.NoOwner)
	case 1:
		return interval.New(start, math.Inf(1), 0, interval.NoOwner)
	case 2:
		return interval.New(start, start, 0, interval.NoOwner)
	}
	return interval.New(start, start+math.Floor(rng.Float64()*100), 0, interval.NoOwner)
}

func sameSet(a, b []*interval.Interval[int]) bool {
	a = slices.Clone(a)
	b = slices.Clone(b)
	slices.SortFunc(a, interval.Compare[int])
	slices.SortFunc(b, interval.Compare[int])
	return slices.Equal(a, b)
}

// checkInvariants walks the tree and verifies ordering, balance and the
// maxEnd augmentation of every node.
func checkInvariants[T any](t *testing.T, n *node[T]) (h int, maxEnd float64) {
	t.Helper()
	if n == nil {
		return 0, math.Inf(-1)
	}
	lh, lmax := checkInvariants(t, n.left)
	rh, rmax := checkInvariants(t, n.right)
	if n.left != nil && interval.Compare(n.left.iv, n.iv) >= 0 {
		t.Fatalf("ordering violated at %v", n.iv)
	}
	if n.right != nil && interval.Compare(n.right.iv, n.iv) <= 0 {
		t.Fatalf("ordering violated at %v", n.iv)
	}
	if d := lh - rh; d > 1 || d < -1 {
		t.Fatalf("unbalanced node %v: left %d right %d", n.iv, lh, rh)
	}
	h = 1 + max(lh, rh)
	if n.height != h {
		t.Fatalf("stale height at %v: stored %d, actual %d", n.iv, n.height, h)
	}
	maxEnd = max(n.iv.End(), lmax, rmax)
	if n.maxEnd != maxEnd {
		t.Fatalf("stale maxEnd at %v: stored %v, actual %v", n.iv, n.maxEnd, maxEnd)
	}
	return h, maxEnd
}

func TestSearchMatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	tree := New[int]()
	oracle := NewBruteForce[int]()
	var live []*interval.Interval[int]

	for step := 0; step < 4000; step++ {
		if len(live) > 0 && rng.Intn(4) == 0 {
			i := rng.Intn(len(live))
			iv := live[i]
			live = slices.Delete(live, i, i+1)
			if !tree.Remove(iv) || !oracle.Remove(iv) {
				t.Fatalf("step %d: removing a stored interval failed", step)
			}
		} else {
			iv := randomInterval(rng)
			live = append(live, iv)
			if !tree.Insert(iv) || !oracle.Insert(iv) {
				t.Fatalf("step %d: inserting a fresh interval failed", step)
			}
		}

		if step%50 == 0 {
			checkInvariants(t, tree.root)
			a := math.Floor(rng.Float64()*1200) - 100
			q := interval.Range(a, a+math.Floor(rng.Float64()*30))
			if rng.Intn(2) == 0 {
				q = interval.Point(a)
			}
			got, want := tree.Search(q), oracle.Search(q)
			if !sameSet(got, want) {
				t.Fatalf("step %d: Search(%v) returned %d intervals, brute force %d", step, q, len(got), len(want))
			}
		}
	}

	if tree.Len() != len(live) || oracle.Len() != len(live) {
		t.Fatalf("size mismatch: tree %d oracle %d live %d", tree.Len(), oracle.Len(), len(live))
	}
	if !sameSet(tree.Intervals(), live) {
		t.Fatal("Intervals does not return the live set")
	}
}

func TestSortedInsertionStaysBalanced(t *testing.T) {
	tree := New[int]()
	const n = 1 << 14
	for i := 0; i < n; i++ {
		tree.Insert(interval.New(float64(i), float64(i+5), i, interval.NoOwner))
	}
	if h, limit := tree.Height(), maxAVLHeight(n); h > limit {
		t.Fatalf("height %d exceeds AVL bound %d for %d sorted inserts", h, limit, n)
	}
	checkInvariants(t, tree.root)

	if got := tree.SearchPoint(100); len(got) != 6 {
		t.Errorf("expected 6 intervals active at 100, got %d", len(got))
	}
}

func TestNoDuplicates(t *testing.T) {
	tree := New[string]()
	a := interval.New(0, 10, "a", interval.NoOwner)
	twin := interval.New(0, 10, "a", interval.NoOwner)

	if !tree.Insert(a) {
		t.Fatal("first insert must succeed")
	}
	if tree.Insert(a) {
		t.Error("inserting the same interval twice must be rejected")
	}
	if !tree.Insert(twin) {
		t.Error("an equal-valued but distinct interval is a separate entry")
	}
	all := tree.Intervals()
	if len(all) != 2 || tree.Len() != 2 {
		t.Fatalf("expected exactly 2 entries, got %d", len(all))
	}
	if !tree.Contains(a) || !tree.Contains(twin) {
		t.Error("Contains must find both entries")
	}
}

func TestRemoveAbsentIsNoop(t *testing.T) {
	tree := New[int]()
	a := interval.New(0, 1, 1, interval.NoOwner)
	if tree.Remove(a) {
		t.Error("removing from an empty tree must report false")
	}
	tree.Insert(a)
	if tree.Remove(interval.New(0, 1, 1, interval.NoOwner)) {
		t.Error("removing a different interval with the same bounds must report false")
	}
	if !tree.Remove(a) || tree.Remove(a) {
		t.Error("remove must succeed exactly once")
	}
	if tree.Remove(nil) {
		t.Error("removing nil must report false")
	}
}

func TestEmptyAndClear(t *testing.T) {
	tree := New[int]()
	if got := tree.Search(interval.Point(0)); len(got) != 0 {
		t.Fatalf("empty tree returned %d results", len(got))
	}
	if _, ok := tree.Span(); ok {
		t.Error("empty tree must not report a span")
	}
	if tree.Min() != nil || tree.Max() != nil {
		t.Error("empty tree has no first or last interval")
	}

	batch := []*interval.Interval[int]{
		interval.New(0, 10, 0, interval.NoOwner),
		interval.New(5, 15, 0, interval.NoOwner),
		interval.New(20, 30, 0, interval.NoOwner),
	}
	if n := tree.InsertAll(batch); n != 3 {
		t.Fatalf("InsertAll inserted %d, want 3", n)
	}
	if tree.Min() != batch[0] || tree.Max() != batch[2] {
		t.Error("Min/Max must return the first and last interval in order")
	}
	span, ok := tree.Span()
	if !ok || span.Start != 0 || span.End != 30 {
		t.Errorf("unexpected span %v", span)
	}

	tree.Clear()
	if tree.Len() != 0 || tree.Height() != 0 {
		t.Error("Clear must empty the tree")
	}
	if got := tree.Search(interval.All()); len(got) != 0 {
		t.Errorf("cleared tree returned %d results", len(got))
	}
}

func TestBatchRemoveAndReplace(t *testing.T) {
	tree := New[int]()
	a := interval.New(0, 10, 1, interval.NoOwner)
	b := interval.New(5, 15, 2, interval.NoOwner)
	c := interval.New(20, 30, 3, interval.NoOwner)
	tree.InsertAll([]*interval.Interval[int]{a, b, c})

	if n := tree.RemoveAll([]*interval.Interval[int]{a, c, c}); n != 2 {
		t.Errorf("RemoveAll removed %d, want 2", n)
	}

	merged := interval.New(5, 40, 2, interval.NoOwner)
	removed, inserted := tree.Replace(b, merged)
	if !removed || !inserted {
		t.Fatalf("Replace reported removed=%v inserted=%v", removed, inserted)
	}
	if got := tree.SearchPoint(35); len(got) != 1 || got[0] != merged {
		t.Errorf("replacement not visible: %v", got)
	}
}

func TestSearchUnlockedUnderReadLock(t *testing.T) {
	tree := New[int]()
	tree.Insert(interval.New(0, 10, 1, interval.NoOwner))
	tree.RLock()
	got := tree.SearchUnlocked(interval.Point(3))
	tree.RUnlock()
	if len(got) != 1 {
		t.Errorf("expected 1 result, got %d", len(got))
	}
	if got := tree.Search(interval.Bounds{Start: 2, End: 1}); got != nil {
		t.Error("an inverted query must match nothing")
	}
}

func BenchmarkInsertSorted(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		tree := New[int]()
		for j := 0; j < 10000; j++ {
			tree.Insert(interval.New(float64(j), float64(j+10), j, interval.NoOwner))
		}
	}
}

func BenchmarkSearchPoint(b *testing.B) {
	rng := rand.New(rand.NewSource(1))
	tree := New[int]()
	for j := 0; j < 50000; j++ {
		tree.Insert(randomInterval(rng))
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		tree.SearchPoint(float64(i % 1000))
	}
}
