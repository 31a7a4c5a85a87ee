// Package interval provides the value object stored by every temporal index:
// a closed range [Start, End] on the time axis carrying a payload value,
// an activation flag and a handle to the attribute that owns it.
//
// Coordinates are immutable after construction. The activation flag is shared
// between every structure that references the same *Interval (the owning
// attribute list and the interval tree), so it is stored atomically.
package interval

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/sanonone/chronograph/pkg/core/types"
)

// Owner is a non-owning handle to the attribute record an interval belongs to.
type Owner uint64

// NoOwner marks an interval that has not been bound to an attribute yet.
const NoOwner Owner = 0

// seq hands out identities. Two intervals with identical bounds are still
// distinct entries because their sequence numbers differ.
var seq atomic.Uint64

// Interval is a timed fact: Value held over [Start, End].
type Interval[T any] struct {
	start float64
	end   float64
	id    uint64
	owner atomic.Uint64
	key   atomic.Pointer[types.Key]

	on atomic.Bool

	mu    sync.RWMutex
	value T
	off   T
}

// New creates an active interval. It panics if start > end or either bound is NaN.
func New[T any](start, end float64, value T, owner Owner) *Interval[T] {
	if !(start <= end) {
		panic(fmt.Sprintf("interval: invalid bounds [%v, %v]", start, end))
	}
	iv := &Interval[T]{
		start: start,
		end:   end,
		id:    seq.Add(1),
		value: value,
	}
	iv.owner.Store(uint64(owner))
	iv.on.Store(true)
	return iv
}

// NewNone creates the inactive sentinel used by graph-definition records:
// it occupies its range but starts switched off.
func NewNone[T any](start, end float64, owner Owner) *Interval[T] {
	var zero T
	iv := New(start, end, zero, owner)
	iv.on.Store(false)
	return iv
}

// Unbounded returns an active interval covering the whole time axis.
func Unbounded[T any](value T, owner Owner) *Interval[T] {
	return New(math.Inf(-1), math.Inf(1), value, owner)
}

// WithOff sets the neutral value reported by OnValue while the interval is
// switched off. It is meant to be chained onto a constructor.
func (iv *Interval[T]) WithOff(off T) *Interval[T] {
	iv.mu.Lock()
	iv.off = off
	iv.mu.Unlock()
	return iv
}

// Start returns the lower bound.
func (iv *Interval[T]) Start() float64 { return iv.start }

// End returns the upper bound.
func (iv *Interval[T]) End() float64 { return iv.end }

// ID returns the identity of the interval, unique for the process lifetime.
func (iv *Interval[T]) ID() uint64 { return iv.id }

// Owner returns the handle of the owning attribute.
func (iv *Interval[T]) Owner() Owner { return Owner(iv.owner.Load()) }

// Attach binds an unbound interval to an owner and records the key of that
// attribute. It reports false and leaves the interval untouched if it
// already belongs to a different attribute.
func (iv *Interval[T]) Attach(o Owner, key types.Key) bool {
	if !iv.owner.CompareAndSwap(uint64(NoOwner), uint64(o)) && iv.Owner() != o {
		return false
	}
	iv.key.CompareAndSwap(nil, &key)
	return true
}

// Key returns the (column, row) of the attribute the interval was attached
// to. The key survives removal of the attribute, so a consumer can still
// tell which entity a retired interval belonged to.
func (iv *Interval[T]) Key() (types.Key, bool) {
	k := iv.key.Load()
	if k == nil {
		return types.Key{}, false
	}
	return *k, true
}

// Bounds returns the range of the interval without its payload.
func (iv *Interval[T]) Bounds() Bounds { return Bounds{Start: iv.start, End: iv.end} }

// IsPoint reports whether the interval covers a single instant.
func (iv *Interval[T]) IsPoint() bool { return iv.start == iv.end }

// Contains reports whether t lies inside the closed range.
func (iv *Interval[T]) Contains(t float64) bool {
	return iv.start <= t && t <= iv.end
}

// Overlaps reports whether the two closed ranges share at least one instant.
func (iv *Interval[T]) Overlaps(other *Interval[T]) bool {
	return iv.start <= other.end && other.start <= iv.end
}

// On reports whether the interval is currently considered active.
func (iv *Interval[T]) On() bool { return iv.on.Load() }

// SetOn flips the activation flag.
func (iv *Interval[T]) SetOn(on bool) { iv.on.Store(on) }

// Value returns the payload regardless of the activation flag.
func (iv *Interval[T]) Value() T {
	iv.mu.RLock()
	defer iv.mu.RUnlock()
	return iv.value
}

// SetValue replaces the payload.
func (iv *Interval[T]) SetValue(v T) {
	iv.mu.Lock()
	iv.value = v
	iv.mu.Unlock()
}

// Off returns the neutral value reported while switched off.
func (iv *Interval[T]) Off() T {
	iv.mu.RLock()
	defer iv.mu.RUnlock()
	return iv.off
}

// OnValue returns the payload while the interval is active and the neutral
// value otherwise, so a consumer can still render the transitional frame.
func (iv *Interval[T]) OnValue() T {
	iv.mu.RLock()
	defer iv.mu.RUnlock()
	if iv.on.Load() {
		return iv.value
	}
	return iv.off
}

func (iv *Interval[T]) String() string {
	return fmt.Sprintf("[%v, %v]=%v", iv.start, iv.end, iv.Value())
}
