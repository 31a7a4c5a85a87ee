package interval

import (
	"math"
	"slices"
	"testing"

	"github.com/sanonone/chronograph/pkg/core/types"
)

func TestOverlapsClosedSemantics(t *testing.T) {
	a := New(0, 10, "a", NoOwner)

	testCases := []struct {
		name     string
		q        Bounds
		expected bool
	}{
		{name: "point at start", q: Point(0), expected: true},
		{name: "point at end", q: Point(10), expected: true},
		{name: "point inside", q: Point(5), expected: true},
		{name: "point before", q: Point(-0.001), expected: false},
		{name: "point after", q: Point(10.001), expected: false},
		{name: "range touching end", q: Range(10, 20), expected: true},
		{name: "range covering", q: Range(-5, 15), expected: true},
		{name: "range disjoint", q: Range(11, 20), expected: false},
		{name: "whole axis", q: All(), expected: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.q.Overlaps(a.Start(), a.End()); got != tc.expected {
				t.Errorf("Overlaps(%v) = %v, want %v", tc.q, got, tc.expected)
			}
			b := New(tc.q.Start, tc.q.End, "q", NoOwner)
			if got := a.Overlaps(b); got != tc.expected {
				t.Errorf("Interval.Overlaps(%v) = %v, want %v", tc.q, got, tc.expected)
			}
		})
	}
}

func TestUnboundedOverlapsEverything(t *testing.T) {
	u := Unbounded(1.0, NoOwner)
	if !Point(-1e300).Overlaps(u.Start(), u.End()) || !Point(math.MaxFloat64).Overlaps(u.Start(), u.End()) {
		t.Error("unbounded interval must overlap any point")
	}
}

func TestNewPanicsOnInvalidBounds(t *testing.T) {
	for _, b := range []Bounds{{Start: 2, End: 1}, {Start: math.NaN(), End: 1}} {
		func() {
			defer func() {
				if recover() == nil {
					t.Errorf("expected panic for %v", b)
				}
			}()
			New(b.Start, b.End, 0, NoOwner)
		}()
	}
}

func TestOnValue(t *testing.T) {
	iv := New(0, 1, 42, Owner(7)).WithOff(-1)
	if !iv.On() || iv.OnValue() != 42 {
		t.Fatalf("new interval must be on and report its value, got %v", iv.OnValue())
	}
	iv.SetOn(false)
	if iv.OnValue() != -1 {
		t.Errorf("switched off interval must report its off value, got %v", iv.OnValue())
	}
	if iv.Value() != 42 {
		t.Errorf("Value must ignore the flag, got %v", iv.Value())
	}
	iv.SetValue(43)
	iv.SetOn(true)
	if iv.OnValue() != 43 {
		t.Errorf("SetValue not visible, got %v", iv.OnValue())
	}

	none := NewNone[string](0, 5, NoOwner)
	if none.On() || none.OnValue() != "" {
		t.Error("none sentinel must start switched off")
	}
}

func TestAttach(t *testing.T) {
	iv := New(0, 1, true, NoOwner)
	if _, ok := iv.Key(); ok {
		t.Error("unbound interval must not report a key")
	}
	key := types.Key{Column: "@exists", Row: 7}
	if !iv.Attach(3, key) || iv.Owner() != 3 {
		t.Fatal("unbound interval must accept an owner")
	}
	if !iv.Attach(3, types.Key{Column: "other", Row: 1}) {
		t.Error("re-attaching to the same owner must succeed")
	}
	if got, ok := iv.Key(); !ok || got != key {
		t.Errorf("Key() = %v, %v; want %v", got, ok, key)
	}
	if iv.Attach(4, key) || iv.Owner() != 3 {
		t.Error("attaching to a different owner must be refused")
	}
}

func TestCompareIsTotalAndIdentityBased(t *testing.T) {
	a := New(0, 10, "a", NoOwner)
	b := New(0, 10, "b", NoOwner)
	c := New(0, 5, "c", NoOwner)
	d := New(-1, 20, "d", NoOwner)

	if Compare(a, a) != 0 {
		t.Error("an interval must compare equal to itself")
	}
	if Compare(a, b) == 0 {
		t.Error("distinct intervals with identical bounds must not compare equal")
	}

	got := []*Interval[string]{a, b, c, d}
	slices.SortFunc(got, Compare[string])
	want := []*Interval[string]{d, c, a, b}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("position %d: got %v, want %v", i, got[i], want[i])
		}
	}
}

func TestRangeSwapsReversedBounds(t *testing.T) {
	r := Range(5, 1)
	if r.Start != 1 || r.End != 5 || !r.Valid() {
		t.Errorf("unexpected range %v", r)
	}
	if !Point(3).IsPoint() || r.IsPoint() {
		t.Error("IsPoint mismatch")
	}
}
