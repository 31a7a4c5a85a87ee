package itree

import (
	"sync"

	"github.com/sanonone/chronograph/pkg/core/interval"
)

// node is one entry of the tree. maxEnd is the largest End in the subtree
// rooted here and lets Search skip subtrees that end before the query starts.
type node[T any] struct {
	iv     *interval.Interval[T]
	left   *node[T]
	right  *node[T]
	height int
	maxEnd float64
}

func height[T any](n *node[T]) int {
	if n == nil {
		return 0
	}
	return n.height
}

// update recomputes the height and augmentation from the children.
func (n *node[T]) update() {
	n.height = 1 + max(height(n.left), height(n.right))
	n.maxEnd = n.iv.End()
	if n.left != nil && n.left.maxEnd > n.maxEnd {
		n.maxEnd = n.left.maxEnd
	}
	if n.right != nil && n.right.maxEnd > n.maxEnd {
		n.maxEnd = n.right.maxEnd
	}
}

var _ Index[struct{}] = (*Tree[struct{}])(nil)

// Tree is an augmented AVL tree keyed by interval.Compare.
//
// Event streams usually arrive sorted by start time, which degrades a plain
// BST into a list; the AVL rotations keep the height within 1.44*log2(n).
//
// Tree is safe for concurrent use: searches share a read lock, structural
// mutations take the write lock. Batch methods apply under a single lock so
// readers observe either none or all of the batch.
type Tree[T any] struct {
	mu   sync.RWMutex
	root *node[T]
	size int
}

// New creates an empty Tree.
func New[T any]() *Tree[T] {
	return &Tree[T]{}
}

// Insert adds iv. Inserting an interval that is already stored is rejected.
func (t *Tree[T]) Insert(iv *interval.Interval[T]) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.insertUnlocked(iv)
}

// InsertAll adds a batch and returns how many intervals were new.
func (t *Tree[T]) InsertAll(ivs []*interval.Interval[T]) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, iv := range ivs {
		if t.insertUnlocked(iv) {
			n++
		}
	}
	return n
}

func (t *Tree[T]) insertUnlocked(iv *interval.Interval[T]) bool {
	var ok bool
	t.root, ok = insert(t.root, iv)
	if ok {
		t.size++
	}
	return ok
}

// Remove deletes iv. Removing an absent interval is a no-op returning false.
func (t *Tree[T]) Remove(iv *interval.Interval[T]) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.removeUnlocked(iv)
}

// RemoveAll deletes a batch and returns how many intervals were present.
func (t *Tree[T]) RemoveAll(ivs []*interval.Interval[T]) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, iv := range ivs {
		if t.removeUnlocked(iv) {
			n++
		}
	}
	return n
}

// Replace swaps old for next under one lock. It reports whether old was
// present and next was inserted.
func (t *Tree[T]) Replace(old, next *interval.Interval[T]) (removed, inserted bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.removeUnlocked(old), t.insertUnlocked(next)
}

func (t *Tree[T]) removeUnlocked(iv *interval.Interval[T]) bool {
	if iv == nil {
		return false
	}
	var ok bool
	t.root, ok = remove(t.root, iv)
	if ok {
		t.size--
	}
	return ok
}

// Contains reports whether iv is stored.
func (t *Tree[T]) Contains(iv *interval.Interval[T]) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n := t.root
	for n != nil {
		switch c := interval.Compare(iv, n.iv); {
		case c < 0:
			n = n.left
		case c > 0:
			n = n.right
		default:
			return n.iv == iv
		}
	}
	return false
}

// Search returns every stored interval overlapping q, in tree order.
func (t *Tree[T]) Search(q interval.Bounds) []*interval.Interval[T] {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if !q.Valid() {
		return nil
	}
	return search(t.root, q, nil)
}

// SearchPoint returns every stored interval active at instant at.
func (t *Tree[T]) SearchPoint(at float64) []*interval.Interval[T] {
	return t.Search(interval.Point(at))
}

// Intervals returns every stored interval in tree order.
func (t *Tree[T]) Intervals() []*interval.Interval[T] {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*interval.Interval[T], 0, t.size)
	walk(t.root, func(iv *interval.Interval[T]) bool {
		out = append(out, iv)
		return true
	})
	return out
}

// Each visits stored intervals in order until fn returns false.
// fn must not mutate the tree.
func (t *Tree[T]) Each(fn func(iv *interval.Interval[T]) bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	walk(t.root, fn)
}

// Len returns the number of stored intervals.
func (t *Tree[T]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.size
}

// Height returns the height of the tree, 0 when empty.
func (t *Tree[T]) Height() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return height(t.root)
}

// Span returns the smallest start and the largest end stored.
func (t *Tree[T]) Span() (interval.Bounds, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.root == nil {
		return interval.Bounds{}, false
	}
	n := t.root
	for n.left != nil {
		n = n.left
	}
	return interval.Bounds{Start: n.iv.Start(), End: t.root.maxEnd}, true
}

// Min returns the first interval in tree order, or nil when empty.
func (t *Tree[T]) Min() *interval.Interval[T] {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n := t.root
	if n == nil {
		return nil
	}
	for n.left != nil {
		n = n.left
	}
	return n.iv
}

// Max returns the last interval in tree order, or nil when empty.
func (t *Tree[T]) Max() *interval.Interval[T] {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n := t.root
	if n == nil {
		return nil
	}
	for n.right != nil {
		n = n.right
	}
	return n.iv
}

// Clear drops every entry. The intervals themselves are untouched.
func (t *Tree[T]) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.root = nil
	t.size = 0
}

// RLock locks the tree for reading. Use it with RUnlock when a caller needs a
// consistent view across several calls to the *Unlocked helpers.
func (t *Tree[T]) RLock() { t.mu.RLock() }

// RUnlock releases a read lock taken with RLock.
func (t *Tree[T]) RUnlock() { t.mu.RUnlock() }

// SearchUnlocked is Search without locking. The caller must hold RLock.
func (t *Tree[T]) SearchUnlocked(q interval.Bounds) []*interval.Interval[T] {
	if !q.Valid() {
		return nil
	}
	return search(t.root, q, nil)
}

func insert[T any](n *node[T], iv *interval.Interval[T]) (*node[T], bool) {
	if n == nil {
		return &node[T]{iv: iv, height: 1, maxEnd: iv.End()}, true
	}
	var ok bool
	switch c := interval.Compare(iv, n.iv); {
	case c < 0:
		n.left, ok = insert(n.left, iv)
	case c > 0:
		n.right, ok = insert(n.right, iv)
	default:
		return n, false
	}
	if !ok {
		return n, false
	}
	return rebalance(n), true
}

func remove[T any](n *node[T], iv *interval.Interval[T]) (*node[T], bool) {
	if n == nil {
		return nil, false
	}
	var ok bool
	switch c := interval.Compare(iv, n.iv); {
	case c < 0:
		n.left, ok = remove(n.left, iv)
	case c > 0:
		n.right, ok = remove(n.right, iv)
	default:
		if n.iv != iv {
			return n, false
		}
		if n.left == nil {
			return n.right, true
		}
		if n.right == nil {
			return n.left, true
		}
		var succ *node[T]
		n.right, succ = removeMin(n.right)
		succ.left, succ.right = n.left, n.right
		return rebalance(succ), true
	}
	if !ok {
		return n, false
	}
	return rebalance(n), true
}

// removeMin detaches the leftmost node of the subtree rooted at n.
func removeMin[T any](n *node[T]) (rest, least *node[T]) {
	if n.left == nil {
		return n.right, n
	}
	n.left, least = removeMin(n.left)
	return rebalance(n), least
}

func rotateRight[T any](y *node[T]) *node[T] {
	x := y.left
	y.left = x.right
	x.right = y
	y.update()
	x.update()
	return x
}

func rotateLeft[T any](x *node[T]) *node[T] {
	y := x.right
	x.right = y.left
	y.left = x
	x.update()
	y.update()
	return y
}

func rebalance[T any](n *node[T]) *node[T] {
	n.update()
	switch bf := height(n.left) - height(n.right); {
	case bf > 1:
		if height(n.left.left) < height(n.left.right) {
			n.left = rotateLeft(n.left)
		}
		return rotateRight(n)
	case bf < -1:
		if height(n.right.right) < height(n.right.left) {
			n.right = rotateRight(n.right)
		}
		return rotateLeft(n)
	}
	return n
}

// search appends to out every interval of the subtree overlapping q.
// Subtrees whose maxEnd precedes q.Start are pruned, and once a node starts
// after q.End neither it nor its right subtree can match.
func search[T any](n *node[T], q interval.Bounds, out []*interval.Interval[T]) []*interval.Interval[T] {
	if n == nil || n.maxEnd < q.Start {
		return out
	}
	out = search(n.left, q, out)
	if n.iv.Start() > q.End {
		return out
	}
	if q.Overlaps(n.iv.Start(), n.iv.End()) {
		out = append(out, n.iv)
	}
	return search(n.right, q, out)
}

func walk[T any](n *node[T], fn func(iv *interval.Interval[T]) bool) bool {
	if n == nil {
		return true
	}
	return walk(n.left, fn) && fn(n.iv) && walk(n.right, fn)
}
