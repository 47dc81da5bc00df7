package streaming

import (
	"context"

	"github.com/google/uuid"
	"github.com/realfan-1s/FFTOcean/geometry"
	"github.com/realfan-1s/FFTOcean/spatial"
)

// Loadable is a world object whose content can be brought in and out of
// memory.
type Loadable interface {
	// Returns the object bounds. It must not change once the object is added
	// to a controller.
	Bounds() geometry.AABB

	// Loads the object content. Calls must be safe to repeat.
	Load(ctx context.Context) error

	// Releases the object content.
	Unload(ctx context.Context) error
}

// TrackedObject wraps a loadable object with its streaming state.
type TrackedObject struct {
	id     uuid.UUID
	obj    Loadable
	bounds geometry.AABB

	weight     uint64
	createFlag CreateFlag
	loadFlag   LoadFlag
	resident   bool

	seenPass uint64
	visible  bool
	queued   bool
	refs     spatial.Refs
}

func newTrackedObject(obj Loadable) *TrackedObject {
	return &TrackedObject{
		id:     uuid.New(),
		obj:    obj,
		bounds: obj.Bounds(),
	}
}

func (o *TrackedObject) ID() uuid.UUID {
	return o.id
}

// Object returns the wrapped object.
func (o *TrackedObject) Object() Loadable {
	return o.obj
}

func (o *TrackedObject) Bounds() geometry.AABB {
	return o.bounds
}

func (o *TrackedObject) BucketRefs() *spatial.Refs {
	if o == nil {
		return nil
	}
	return &o.refs
}

// Weight returns how many scans reconfirmed the object since it was last
// discovered.
func (o *TrackedObject) Weight() uint64 {
	return o.weight
}

func (o *TrackedObject) CreateFlag() CreateFlag {
	return o.createFlag
}

func (o *TrackedObject) LoadFlag() LoadFlag {
	return o.loadFlag
}

// Resident reports whether the last executed operation on the object was a
// successful load.
func (o *TrackedObject) Resident() bool {
	return o.resident
}
