package streaming

import (
	"context"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"golang.org/x/time/rate"
)

// workQueue holds the load and unload requests of a controller and executes
// them one at a time.
//
// Requests are drained by a single task: scheduling a request wakes the task
// when it sleeps, and the task goes back to sleep once the queue is empty.
// Each step of the task executes at most one operation.
type workQueue struct {
	world   string
	items   []*TrackedObject
	running bool
	limiter *rate.Limiter
}

// scheduleLoad requests the object content to be loaded. A pending unload is
// cancelled instead.
func (q *workQueue) scheduleLoad(o *TrackedObject) {
	switch o.loadFlag {
	case PendingUnload:
		o.loadFlag = LoadNone
		instrumentCancelledRequest(q.world, PendingUnload)
		return

	case PendingLoad:
		return
	}

	o.loadFlag = PendingLoad
	q.enqueue(o)
}

// scheduleUnload requests the object content to be released. A pending load
// is cancelled instead.
func (q *workQueue) scheduleUnload(o *TrackedObject) {
	switch o.loadFlag {
	case PendingLoad:
		o.loadFlag = LoadNone
		instrumentCancelledRequest(q.world, PendingLoad)
		return

	case PendingUnload:
		return
	}

	o.loadFlag = PendingUnload
	q.enqueue(o)
}

func (q *workQueue) enqueue(o *TrackedObject) {
	if !o.queued {
		o.queued = true
		q.items = append(q.items, o)
	}
	q.running = true
}

// step executes the next pending operation. Cancelled requests are dropped
// without counting as an operation. Operation errors are returned and the
// request is not retried.
func (q *workQueue) step(ctx context.Context) error {
	if !q.running {
		return nil
	}

	for len(q.items) != 0 {
		o := q.items[0]
		if o.loadFlag == LoadNone {
			q.pop()
			continue
		}

		if q.limiter != nil && !q.limiter.Allow() {
			return nil
		}

		q.pop()
		return q.execute(ctx, o)
	}

	q.running = false
	return nil
}

func (q *workQueue) pop() {
	q.items[0].queued = false
	q.items[0] = nil
	q.items = q.items[1:]

	if len(q.items) == 0 {
		q.items = nil
		q.running = false
	}
}

func (q *workQueue) execute(ctx context.Context, o *TrackedObject) error {
	flag := o.loadFlag
	defer func() {
		o.loadFlag = LoadNone
	}()

	switch flag {
	case PendingLoad:
		if err := o.obj.Load(ctx); err != nil {
			instrumentOperationError(q.world, flag)
			return errors.New("loading object failed").
				WithType(ErrTypeLoadFailed).
				WithTag("object_id", o.id).
				Wrap(err)
		}

		if !o.resident {
			o.resident = true
			instrumentResidentChange(q.world, 1)
		}
		instrumentOperation(q.world, flag)

	case PendingUnload:
		if err := o.obj.Unload(ctx); err != nil {
			instrumentOperationError(q.world, flag)
			return errors.New("unloading object failed").
				WithType(ErrTypeUnloadFailed).
				WithTag("object_id", o.id).
				Wrap(err)
		}

		if o.resident {
			o.resident = false
			instrumentResidentChange(q.world, -1)
		}
		instrumentOperation(q.world, flag)
	}
	return nil
}

// len returns the number of queued requests, cancelled ones included.
func (q *workQueue) len() int {
	return len(q.items)
}

func (q *workQueue) clear() {
	for _, o := range q.items {
		o.queued = false
		o.loadFlag = LoadNone
	}
	q.items = nil
	q.running = false
}
