package spatial

import (
	"math"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/realfan-1s/FFTOcean/detector"
	"github.com/realfan-1s/FFTOcean/geometry"
)

// Fixed depth quad tree spatial partition
//
// A quad tree over a fixed world box implementing the Index interface.
// The particularities are:
//   - only the leaves hold objects. A leaf is a bucket keyed by the Morton code
//     of its cell on the xz plane, created the first time an object lands in it.
//   - objects are never re-bucketed: an object is placed once, in every leaf its
//     bounds overlap, and stays there until removed.
//   - each object carries back-references (bucket key -> slot) so removal does
//     not have to search the buckets.

const (
	ErrTypeInvalidDepth = "spatial_invalid_depth"
	ErrTypeInvalidWorld = "spatial_invalid_world"

	// A bucket is compacted when it holds more free slots than live ones and
	// at least this many slots.
	compactionThreshold = 16
)

type slot[T Trackable] struct {
	obj  T
	used bool
}

type bucket[T Trackable] struct {
	slots []slot[T]
	live  int
}

type QuadTree[T Trackable] struct {
	bounds     geometry.AABB
	maxDepth   int
	cells      uint32
	cellWidth  float64
	cellHeight float64
	buckets    map[uint32]*bucket[T]

	querying int
	dirty    map[uint32]struct{}
}

// NewQuadTree creates a quad tree covering the box of the given center and
// size, split maxDepth times on the x and z axes.
func NewQuadTree[T Trackable](center mgl64.Vec3, size mgl64.Vec3, maxDepth int) (*QuadTree[T], error) {
	if maxDepth < 0 || maxDepth > MaxDepth {
		return nil, errors.New("invalid quad tree depth").
			WithType(ErrTypeInvalidDepth).
			WithTag("max_depth", maxDepth).
			WithTag("supported_max_depth", MaxDepth)
	}

	if size.X() <= 0 || size.Z() <= 0 {
		return nil, errors.New("invalid world size").
			WithType(ErrTypeInvalidWorld).
			WithTag("size", size)
	}

	cells := uint32(1) << maxDepth
	return &QuadTree[T]{
		bounds:     geometry.NewAABB(center, size),
		maxDepth:   maxDepth,
		cells:      cells,
		cellWidth:  size.X() / float64(cells),
		cellHeight: size.Z() / float64(cells),
		buckets:    make(map[uint32]*bucket[T]),
		dirty:      make(map[uint32]struct{}),
	}, nil
}

// Bounds returns the world bounds covered by the tree.
func (q *QuadTree[T]) Bounds() geometry.AABB {
	return q.bounds
}

func (q *QuadTree[T]) MaxDepth() int {
	return q.maxDepth
}

// CellSize returns the size of a leaf on the x and z axes.
func (q *QuadTree[T]) CellSize() (width, height float64) {
	return q.cellWidth, q.cellHeight
}

// KeyAt returns the key of the leaf holding the given point of the xz plane.
// Points outside the world are clamped to the border leaves.
func (q *QuadTree[T]) KeyAt(x, z float64) uint32 {
	px := q.gridCoord(x-q.bounds.Min.X(), q.cellWidth)
	pz := q.gridCoord(z-q.bounds.Min.Z(), q.cellHeight)
	return Morton(px, pz)
}

func (q *QuadTree[T]) gridCoord(offset float64, cellSize float64) uint32 {
	c := math.Floor(offset / cellSize)
	if c < 0 || math.IsNaN(c) {
		return 0
	}
	if c >= float64(q.cells) {
		return q.cells - 1
	}
	return uint32(c)
}

// Add inserts the object in every leaf its bounds overlap. Objects outside the
// world bounds and objects already indexed are ignored.
func (q *QuadTree[T]) Add(obj T) {
	refs := refsOf(obj)
	if refs == nil || refs.Len() != 0 {
		return
	}

	b := obj.Bounds()
	if !q.bounds.Intersects(b) {
		return
	}

	if q.maxDepth == 0 {
		q.insertInBucket(0, obj, refs)
		return
	}

	c := q.bounds.Center()
	e := q.bounds.Extents()
	q.insertNode(obj, refs, b, 0, c.X(), c.Z(), e.X(), e.Z())
}

func (q *QuadTree[T]) insertNode(obj T, refs *Refs, b geometry.AABB, depth int, cx, cz, hx, hz float64) {
	if depth == q.maxDepth {
		q.insertInBucket(q.KeyAt(cx, cz), obj, refs)
		return
	}

	var code detector.Quadrant
	if cx >= b.Min.X() && cz >= b.Min.Z() {
		code |= detector.SouthWest
	}
	if cx >= b.Min.X() && cz <= b.Max.Z() {
		code |= detector.NorthWest
	}
	if cx <= b.Max.X() && cz >= b.Min.Z() {
		code |= detector.SouthEast
	}
	if cx <= b.Max.X() && cz <= b.Max.Z() {
		code |= detector.NorthEast
	}

	eachChild(code, cx, cz, hx*0.5, hz*0.5, func(x, z float64) {
		q.insertNode(obj, refs, b, depth+1, x, z, hx*0.5, hz*0.5)
	})
}

func (q *QuadTree[T]) insertInBucket(key uint32, obj T, refs *Refs) {
	if refs.Has(key) {
		return
	}

	bk, ok := q.buckets[key]
	if !ok {
		bk = &bucket[T]{}
		q.buckets[key] = bk
	}

	bk.slots = append(bk.slots, slot[T]{obj: obj, used: true})
	bk.live++
	refs.set(key, len(bk.slots)-1)
}

// Remove takes the object out of every bucket holding it.
func (q *QuadTree[T]) Remove(obj T) {
	refs := refsOf(obj)
	if refs == nil || refs.Len() == 0 {
		return
	}

	for key, pos := range refs.slots {
		bk, ok := q.buckets[key]
		if !ok || pos >= len(bk.slots) {
			continue
		}

		s := bk.slots[pos]
		if !s.used || s.obj.BucketRefs() != refs {
			continue
		}

		bk.slots[pos] = slot[T]{}
		bk.live--

		switch {
		case bk.live == 0:
			delete(q.buckets, key)
			delete(q.dirty, key)

		case q.needsCompaction(bk):
			if q.querying > 0 {
				q.dirty[key] = struct{}{}
			} else {
				q.compact(key, bk)
			}
		}
	}

	refs.reset()
}

func (q *QuadTree[T]) needsCompaction(bk *bucket[T]) bool {
	return len(bk.slots) >= compactionThreshold && len(bk.slots)-bk.live > bk.live
}

// compact drops the free slots of a bucket while keeping insertion order, and
// rewrites the back-references of the objects that moved.
func (q *QuadTree[T]) compact(key uint32, bk *bucket[T]) {
	n := 0
	for _, s := range bk.slots {
		if !s.used {
			continue
		}
		bk.slots[n] = s
		s.obj.BucketRefs().set(key, n)
		n++
	}

	clear(bk.slots[n:])
	bk.slots = bk.slots[:n]
}

// Contains reports whether any bucket holds the object. It scans every bucket
// and is meant for diagnostics.
func (q *QuadTree[T]) Contains(obj T) bool {
	refs := refsOf(obj)
	if refs == nil {
		return false
	}

	for _, bk := range q.buckets {
		for _, s := range bk.slots {
			if s.used && s.obj.BucketRefs() == refs {
				return true
			}
		}
	}
	return false
}

// Clear removes every object from the tree.
func (q *QuadTree[T]) Clear() {
	for _, bk := range q.buckets {
		for _, s := range bk.slots {
			if s.used {
				s.obj.BucketRefs().reset()
			}
		}
	}

	clear(q.buckets)
	clear(q.dirty)
}

// Query calls h for each object of the leaves the detector descends into and
// whose bounds the detector detects. An object held by several matched leaves
// is reported once per leaf.
//
// h may remove objects from the tree but must not add any.
func (q *QuadTree[T]) Query(d detector.Detector, h Handler[T]) {
	if d == nil || h == nil || len(q.buckets) == 0 {
		return
	}

	q.querying++
	defer q.endQuery()

	if q.maxDepth == 0 {
		q.triggerBucket(0, d, h)
		return
	}

	c := q.bounds.Center()
	e := q.bounds.Extents()
	q.queryNode(d, h, 0, c.X(), c.Z(), e.X(), e.Z())
}

func (q *QuadTree[T]) queryNode(d detector.Detector, h Handler[T], depth int, cx, cz, hx, hz float64) {
	if depth == q.maxDepth {
		q.triggerBucket(q.KeyAt(cx, cz), d, h)
		return
	}

	eachChild(d.QuadrantCode(cx, cz), cx, cz, hx*0.5, hz*0.5, func(x, z float64) {
		q.queryNode(d, h, depth+1, x, z, hx*0.5, hz*0.5)
	})
}

func (q *QuadTree[T]) triggerBucket(key uint32, d detector.Detector, h Handler[T]) {
	bk, ok := q.buckets[key]
	if !ok {
		return
	}

	// slots appended during the iteration are not visited.
	n := len(bk.slots)
	for i := 0; i < n && i < len(bk.slots); i++ {
		s := bk.slots[i]
		if !s.used {
			continue
		}

		if d.Detect(s.obj.Bounds()) {
			h(s.obj)
		}
	}
}

func (q *QuadTree[T]) endQuery() {
	q.querying--
	if q.querying > 0 {
		return
	}

	for key := range q.dirty {
		if bk, ok := q.buckets[key]; ok && q.needsCompaction(bk) {
			q.compact(key, bk)
		}
		delete(q.dirty, key)
	}
}

func (q *QuadTree[T]) DebugInfo() DebugInfo {
	info := DebugInfo{
		MaxDepth:    q.maxDepth,
		CellWidth:   q.cellWidth,
		CellHeight:  q.cellHeight,
		BucketCount: len(q.buckets),
		Min:         [2]float64{q.bounds.Min.X(), q.bounds.Min.Z()},
		Max:         [2]float64{q.bounds.Max.X(), q.bounds.Max.Z()},
		Occupancy:   make(map[uint32]int, len(q.buckets)),
	}

	for key, bk := range q.buckets {
		info.Occupancy[key] = bk.live
		info.Memberships += bk.live
	}
	return info
}

// eachChild calls fn with the center of each child quadrant selected by code.
// hx and hz are the child half extents.
func eachChild(code detector.Quadrant, cx, cz, hx, hz float64, fn func(x, z float64)) {
	if code.Has(detector.SouthWest) {
		fn(cx-hx, cz-hz)
	}
	if code.Has(detector.NorthWest) {
		fn(cx-hx, cz+hz)
	}
	if code.Has(detector.SouthEast) {
		fn(cx+hx, cz-hz)
	}
	if code.Has(detector.NorthEast) {
		fn(cx+hx, cz+hz)
	}
}

func refsOf[T Trackable](obj T) *Refs {
	if any(obj) == nil {
		return nil
	}
	return obj.BucketRefs()
}
