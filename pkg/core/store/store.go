// Package store implements the attribute store: the owner of every interval.
//
// Each (column, row) slot maps to one Attribute holding the ordered list of
// intervals recorded for it. Intervals refer back to their attribute through
// an Owner handle, never through a pointer, so dropping an attribute from the
// store is enough to release it.
//
// The store uses a read-write mutex to allow concurrent readers while
// ensuring exclusive access for insertions and removals.
package store

import (
	"fmt"
	"slices"
	"sync"

	"github.com/sanonone/chronograph/pkg/core/interval"
	"github.com/sanonone/chronograph/pkg/core/types"
)

// DefaultReserved lists the columns owned by the host graph model.
var DefaultReserved = []string{"name", "interaction"}

// Attribute is one named, typed, time-varying property of one entity.
// Values handed out by the store are snapshots; mutating them does not
// affect the store.
type Attribute[T any] struct {
	ID        interval.Owner
	Key       types.Key
	Type      types.AttributeType
	intervals []*interval.Interval[T]
}

// Intervals returns a copy of the interval list in insertion order.
func (a *Attribute[T]) Intervals() []*interval.Interval[T] {
	return slices.Clone(a.intervals)
}

func (a *Attribute[T]) snapshot() *Attribute[T] {
	return &Attribute[T]{ID: a.ID, Key: a.Key, Type: a.Type, intervals: slices.Clone(a.intervals)}
}

// Len returns the number of intervals recorded for the attribute.
func (a *Attribute[T]) Len() int { return len(a.intervals) }

// Last returns the most recently appended interval, or nil.
func (a *Attribute[T]) Last() *interval.Interval[T] {
	if len(a.intervals) == 0 {
		return nil
	}
	return a.intervals[len(a.intervals)-1]
}

// Change describes the effect of a checked insertion. Removed is non-nil when
// Added replaced an existing interval by merging with it.
type Change[T any] struct {
	Added   *interval.Interval[T]
	Removed *interval.Interval[T]
}

// Merged reports whether the insertion extended an existing interval.
func (c Change[T]) Merged() bool { return c.Removed != nil }

// Option configures a Store.
type Option[T any] func(*Store[T])

// WithEqual sets the value equality used to merge adjacent intervals.
func WithEqual[T any](eq func(a, b T) bool) Option[T] {
	return func(s *Store[T]) { s.equal = eq }
}

// WithOffValue sets how the neutral value of a checked interval is derived
// from its declared type.
func WithOffValue[T any](off func(types.AttributeType) T) Option[T] {
	return func(s *Store[T]) { s.off = off }
}

// WithReserved replaces the reserved column list.
func WithReserved[T any](columns ...string) Option[T] {
	return func(s *Store[T]) {
		s.reserved = make(map[string]struct{}, len(columns))
		for _, c := range columns {
			s.reserved[c] = struct{}{}
		}
	}
}

// Store maps (column, row) keys to attributes.
type Store[T any] struct {
	mu    sync.RWMutex
	attrs map[interval.Owner]*Attribute[T]
	keys  map[types.Key]interval.Owner
	rows  map[uint64]map[string]interval.Owner
	next  interval.Owner
	count int

	equal    func(a, b T) bool
	off      func(types.AttributeType) T
	reserved map[string]struct{}
}

// New creates an empty Store. Without options, values are compared with
// types.Equal, the off value is the zero T and DefaultReserved columns are
// rejected by SetChecked.
func New[T any](opts ...Option[T]) *Store[T] {
	s := &Store[T]{
		attrs: make(map[interval.Owner]*Attribute[T]),
		keys:  make(map[types.Key]interval.Owner),
		rows:  make(map[uint64]map[string]interval.Owner),
		equal: func(a, b T) bool { return types.Equal(any(a), any(b)) },
		off: func(types.AttributeType) T {
			var zero T
			return zero
		},
	}
	WithReserved[T](DefaultReserved...)(s)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// attributeUnlocked returns the attribute for key, creating it when create is set.
func (s *Store[T]) attributeUnlocked(key types.Key, typ types.AttributeType, create bool) *Attribute[T] {
	if id, ok := s.keys[key]; ok {
		return s.attrs[id]
	}
	if !create {
		return nil
	}
	s.next++
	a := &Attribute[T]{ID: s.next, Key: key, Type: typ}
	s.attrs[a.ID] = a
	s.keys[key] = a.ID
	cols, ok := s.rows[key.Row]
	if !ok {
		cols = make(map[string]interval.Owner)
		s.rows[key.Row] = cols
	}
	cols[key.Column] = a.ID
	return a
}

// SetFast appends iv to the attribute for (column, row), creating an untyped
// attribute if absent. No validation and no merging happen; this is the bulk
// parse path and the caller guarantees consistency.
func (s *Store[T]) SetFast(row uint64, column string, iv *interval.Interval[T]) interval.Owner {
	s.mu.Lock()
	defer s.mu.Unlock()

	a := s.attributeUnlocked(types.Key{Column: column, Row: row}, types.None, true)
	iv.Attach(a.ID, a.Key)
	a.intervals = append(a.intervals, iv)
	s.count++
	return a.ID
}

// SetChecked validates and records value over [start, end] for (column, row).
//
// It rejects reserved columns, bounds with start > end and a type differing
// from the one already recorded for the key. When the last interval of the
// attribute holds an equal value and touches or overlaps the new range, the
// two are merged into a fresh interval that replaces the old one; the caller
// is told through Change.Removed so it can swap the entry in its tree.
func (s *Store[T]) SetChecked(row uint64, column string, typ types.AttributeType, value T, start, end float64) (Change[T], error) {
	if _, ok := s.reserved[column]; ok {
		return Change[T]{}, &ValidationError{Row: row, Column: column, Err: ErrReservedColumn}
	}
	if !(start <= end) {
		return Change[T]{}, &ValidationError{
			Row: row, Column: column, Err: ErrInvalidBounds,
			Detail: fmt.Sprintf("[%v, %v]", start, end),
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := types.Key{Column: column, Row: row}
	a := s.attributeUnlocked(key, typ, false)
	if a != nil && !a.Type.IsNone() && !typ.IsNone() && a.Type.Kind != typ.Kind {
		return Change[T]{}, &ValidationError{
			Row: row, Column: column, Err: ErrTypeMismatch,
			Detail: fmt.Sprintf("recorded %s, got %s", a.Type, typ),
		}
	}
	if a == nil {
		a = s.attributeUnlocked(key, typ, true)
	} else if a.Type.IsNone() {
		a.Type = typ
	}

	off := s.off(typ)
	if last := a.Last(); last != nil && s.equal(last.Value(), value) &&
		last.Start() <= end && start <= last.End() {
		merged := interval.New(min(start, last.Start()), max(end, last.End()), value, interval.NoOwner).WithOff(off)
		merged.Attach(a.ID, a.Key)
		merged.SetOn(last.On())
		a.intervals[len(a.intervals)-1] = merged
		return Change[T]{Added: merged, Removed: last}, nil
	}

	iv := interval.New(start, end, value, interval.NoOwner).WithOff(off)
	iv.Attach(a.ID, a.Key)
	a.intervals = append(a.intervals, iv)
	s.count++
	return Change[T]{Added: iv}, nil
}

// Get returns a snapshot of the attribute stored for (column, row).
func (s *Store[T]) Get(row uint64, column string) (*Attribute[T], bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a := s.attributeUnlocked(types.Key{Column: column, Row: row}, types.None, false)
	if a == nil {
		return nil, false
	}
	return a.snapshot(), true
}

// Lookup resolves an interval owner handle to a snapshot of its attribute.
func (s *Store[T]) Lookup(id interval.Owner) (*Attribute[T], bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.attrs[id]
	if !ok {
		return nil, false
	}
	return a.snapshot(), true
}

// Remove detaches the attribute for (column, row) and returns its intervals,
// so the caller can drop them from its tree. Missing keys return nil.
func (s *Store[T]) Remove(row uint64, column string) []*interval.Interval[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeUnlocked(types.Key{Column: column, Row: row})
}

// RemoveRow detaches every attribute of row and returns their intervals.
func (s *Store[T]) RemoveRow(row uint64) []*interval.Interval[T] {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*interval.Interval[T]
	for column := range s.rows[row] {
		out = append(out, s.removeUnlocked(types.Key{Column: column, Row: row})...)
	}
	return out
}

func (s *Store[T]) removeUnlocked(key types.Key) []*interval.Interval[T] {
	id, ok := s.keys[key]
	if !ok {
		return nil
	}
	a := s.attrs[id]
	delete(s.attrs, id)
	delete(s.keys, key)
	if cols := s.rows[key.Row]; cols != nil {
		delete(cols, key.Column)
		if len(cols) == 0 {
			delete(s.rows, key.Row)
		}
	}
	s.count -= len(a.intervals)
	return a.intervals
}

// Detach removes a single interval from its owning attribute. The attribute
// itself is dropped once its last interval goes.
func (s *Store[T]) Detach(iv *interval.Interval[T]) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.attrs[iv.Owner()]
	if !ok {
		return false
	}
	i := slices.Index(a.intervals, iv)
	if i < 0 {
		return false
	}
	a.intervals = slices.Delete(a.intervals, i, i+1)
	s.count--
	if len(a.intervals) == 0 {
		s.removeUnlocked(a.Key)
	}
	return true
}

// Columns returns the column names recorded for row, sorted.
func (s *Store[T]) Columns(row uint64) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cols := make([]string, 0, len(s.rows[row]))
	for c := range s.rows[row] {
		cols = append(cols, c)
	}
	slices.Sort(cols)
	return cols
}

// HasRow reports whether any attribute is recorded for row.
func (s *Store[T]) HasRow(row uint64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.rows[row]
	return ok
}

// Len returns the number of attributes.
func (s *Store[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.attrs)
}

// IntervalCount returns the number of intervals across all attributes.
func (s *Store[T]) IntervalCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.count
}

// Intervals returns every interval owned by the store.
func (s *Store[T]) Intervals() []*interval.Interval[T] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*interval.Interval[T], 0, s.count)
	for _, a := range s.attrs {
		out = append(out, a.intervals...)
	}
	return out
}

// Clear drops every attribute.
func (s *Store[T]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attrs = make(map[interval.Owner]*Attribute[T])
	s.keys = make(map[types.Key]interval.Owner)
	s.rows = make(map[uint64]map[string]interval.Owner)
	s.count = 0
}
