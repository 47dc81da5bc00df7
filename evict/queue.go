// Package evict provides the eviction queue: a binary heap ordered by
// ascending weight where the least reinforced item pops first.
package evict

import (
	"container/heap"

	"github.com/aukilabs/go-tooling/pkg/errors"
)

const (
	ErrTypeEmptyQueue = "evict_empty_queue"
)

type entry[T comparable] struct {
	item   T
	weight uint64
	seq    uint64
}

// Queue is a min-heap of items keyed by the weight they were pushed with.
// Items of equal weight pop in push order. A given item is held at most once.
//
// Queue is not safe for concurrent use.
type Queue[T comparable] struct {
	entries []entry[T]
	index   map[T]int
	seq     uint64
}

func NewQueue[T comparable]() *Queue[T] {
	return &Queue[T]{
		index: make(map[T]int),
	}
}

// Push adds an item with the given weight. Pushing an item that is already
// queued updates its weight.
func (q *Queue[T]) Push(item T, weight uint64) {
	if q.index == nil {
		q.index = make(map[T]int)
	}

	if i, ok := q.index[item]; ok {
		q.entries[i].weight = weight
		heap.Fix((*entries[T])(q), i)
		return
	}

	q.seq++
	heap.Push((*entries[T])(q), entry[T]{
		item:   item,
		weight: weight,
		seq:    q.seq,
	})
}

// Pop removes and returns the item with the lowest weight.
func (q *Queue[T]) Pop() (T, uint64, error) {
	if len(q.entries) == 0 {
		var zero T
		return zero, 0, errors.New("popping an empty eviction queue").
			WithType(ErrTypeEmptyQueue)
	}

	e := heap.Pop((*entries[T])(q)).(entry[T])
	return e.item, e.weight, nil
}

// Peek returns the item with the lowest weight without removing it.
func (q *Queue[T]) Peek() (T, uint64, error) {
	if len(q.entries) == 0 {
		var zero T
		return zero, 0, errors.New("peeking an empty eviction queue").
			WithType(ErrTypeEmptyQueue)
	}

	e := q.entries[0]
	return e.item, e.weight, nil
}

// Remove takes the given item out of the queue. It returns false when the item
// was not queued.
func (q *Queue[T]) Remove(item T) bool {
	i, ok := q.index[item]
	if !ok {
		return false
	}

	heap.Remove((*entries[T])(q), i)
	return true
}

func (q *Queue[T]) Contains(item T) bool {
	_, ok := q.index[item]
	return ok
}

func (q *Queue[T]) Len() int {
	return len(q.entries)
}

func (q *Queue[T]) Clear() {
	clear(q.entries)
	q.entries = q.entries[:0]
	clear(q.index)
}

// entries implements heap.Interface on top of the queue storage.
type entries[T comparable] Queue[T]

func (e *entries[T]) Len() int {
	return len(e.entries)
}

func (e *entries[T]) Less(i, j int) bool {
	a, b := e.entries[i], e.entries[j]
	if a.weight != b.weight {
		return a.weight < b.weight
	}
	return a.seq < b.seq
}

func (e *entries[T]) Swap(i, j int) {
	e.entries[i], e.entries[j] = e.entries[j], e.entries[i]
	e.index[e.entries[i].item] = i
	e.index[e.entries[j].item] = j
}

func (e *entries[T]) Push(x any) {
	en := x.(entry[T])
	e.index[en.item] = len(e.entries)
	e.entries = append(e.entries, en)
}

func (e *entries[T]) Pop() any {
	n := len(e.entries) - 1
	en := e.entries[n]

	var zero entry[T]
	e.entries[n] = zero
	e.entries = e.entries[:n]
	delete(e.index, en.item)
	return en
}
