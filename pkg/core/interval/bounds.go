package interval

import (
	"cmp"
	"fmt"
	"math"
)

// Bounds is a payload-free closed range used as a query.
type Bounds struct {
	Start float64
	End   float64
}

// Point returns the degenerate range [t, t].
func Point(t float64) Bounds {
	return Bounds{Start: t, End: t}
}

// Range returns [start, end]. Bounds are swapped if given in reverse order.
func Range(start, end float64) Bounds {
	if end < start {
		start, end = end, start
	}
	return Bounds{Start: start, End: end}
}

// All covers the whole time axis.
func All() Bounds {
	return Bounds{Start: math.Inf(-1), End: math.Inf(1)}
}

// Overlaps reports whether b and [start, end] share at least one instant.
func (b Bounds) Overlaps(start, end float64) bool {
	return start <= b.End && b.Start <= end
}

// IsPoint reports whether b is a single instant.
func (b Bounds) IsPoint() bool { return b.Start == b.End }

// Valid reports whether Start <= End and neither bound is NaN.
func (b Bounds) Valid() bool { return b.Start <= b.End }

func (b Bounds) String() string {
	return fmt.Sprintf("[%v, %v]", b.Start, b.End)
}

// Compare orders intervals by start, then end, then identity. The order is
// total and two distinct intervals never compare equal.
func Compare[T any](a, b *Interval[T]) int {
	if c := cmp.Compare(a.start, b.start); c != 0 {
		return c
	}
	if c := cmp.Compare(a.end, b.end); c != 0 {
		return c
	}
	return cmp.Compare(a.id, b.id)
}

// Less is Compare(a, b) < 0, for sort and btree style APIs.
func Less[T any](a, b *Interval[T]) bool {
	return Compare(a, b) < 0
}
