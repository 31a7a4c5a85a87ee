// Package itree provides the temporal overlap index.
//
// This file defines the Index interface shared by every implementation and a
// BruteForce baseline that scans all stored intervals. The baseline is not
// meant for production use; it is the reference the balanced Tree is checked
// against and is handy for tiny streams.
package itree

import (
	"slices"
	"sync"

	"github.com/sanonone/chronograph/pkg/core/interval"
)

// Index is the contract of an interval store answering overlap queries.
type Index[T any] interface {
	// Insert adds iv and reports false if that exact interval is already present.
	Insert(iv *interval.Interval[T]) bool
	// Remove deletes iv and reports false if it was not present.
	Remove(iv *interval.Interval[T]) bool
	// Search returns every stored interval overlapping q, each at most once.
	Search(q interval.Bounds) []*interval.Interval[T]
	// Intervals returns every stored interval.
	Intervals() []*interval.Interval[T]
	// Len returns the number of stored intervals.
	Len() int
	// Clear removes everything.
	Clear()
}

// BruteForce is a linear-scan Index.
type BruteForce[T any] struct {
	mu   sync.RWMutex
	data map[*interval.Interval[T]]struct{}
}

// NewBruteForce creates an empty BruteForce index.
func NewBruteForce[T any]() *BruteForce[T] {
	return &BruteForce[T]{data: make(map[*interval.Interval[T]]struct{})}
}

func (b *BruteForce[T]) Insert(iv *interval.Interval[T]) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.data[iv]; ok {
		return false
	}
	b.data[iv] = struct{}{}
	return true
}

func (b *BruteForce[T]) Remove(iv *interval.Interval[T]) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.data[iv]; !ok {
		return false
	}
	delete(b.data, iv)
	return true
}

func (b *BruteForce[T]) Search(q interval.Bounds) []*interval.Interval[T] {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var out []*interval.Interval[T]
	for iv := range b.data {
		if q.Overlaps(iv.Start(), iv.End()) {
			out = append(out, iv)
		}
	}
	slices.SortFunc(out, interval.Compare[T])
	return out
}

func (b *BruteForce[T]) Intervals() []*interval.Interval[T] {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]*interval.Interval[T], 0, len(b.data))
	for iv := range b.data {
		out = append(out, iv)
	}
	slices.SortFunc(out, interval.Compare[T])
	return out
}

func (b *BruteForce[T]) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.data)
}

func (b *BruteForce[T]) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data = make(map[*interval.Interval[T]]struct{})
}
