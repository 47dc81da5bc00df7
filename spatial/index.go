package spatial

import (
	"github.com/realfan-1s/FFTOcean/detector"
	"github.com/realfan-1s/FFTOcean/geometry"
)

// Trackable is an object that can be stored in a spatial index.
type Trackable interface {
	// Returns the object bounds. Bounds must not change while the object is
	// indexed.
	Bounds() geometry.AABB

	// Returns the storage where the index records which buckets hold the
	// object. A nil value means the object cannot be indexed.
	BucketRefs() *Refs
}

// Handler is called for each indexed object matched by a query.
type Handler[T Trackable] func(T)

type DebugInfo struct {
	MaxDepth    int
	CellWidth   float64
	CellHeight  float64
	BucketCount int
	Memberships int
	Min         [2]float64
	Max         [2]float64
	Occupancy   map[uint32]int
}

type Index[T Trackable] interface {
	Add(obj T)
	Remove(obj T)
	Contains(obj T) bool
	Clear()
	Query(d detector.Detector, h Handler[T])

	// debug stuff:
	DebugInfo() DebugInfo
}
