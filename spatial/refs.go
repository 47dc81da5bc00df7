package spatial

import (
	"slices"
)

// Refs records, for one object, the position it occupies in each bucket that
// holds it. Objects straddling quadrant borders are held by several buckets.
//
// The zero value is ready to use.
type Refs struct {
	slots map[uint32]int
}

func (r *Refs) set(key uint32, pos int) {
	if r.slots == nil {
		r.slots = make(map[uint32]int)
	}
	r.slots[key] = pos
}

func (r *Refs) reset() {
	clear(r.slots)
}

// Len returns the number of buckets holding the object.
func (r *Refs) Len() int {
	return len(r.slots)
}

// Has reports whether the bucket with the given key holds the object.
func (r *Refs) Has(key uint32) bool {
	_, ok := r.slots[key]
	return ok
}

// Keys returns the sorted keys of the buckets holding the object.
func (r *Refs) Keys() []uint32 {
	keys := make([]uint32, 0, len(r.slots))
	for k := range r.slots {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
