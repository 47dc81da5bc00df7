package streaming

import (
	"context"
	"testing"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestWorkQueueCancellation(t *testing.T) {
	t.Run("unload cancels a pending load", func(t *testing.T) {
		var rec recorder
		var q workQueue
		a := newTrackedObject(newTestObject(&rec, "a", 0, 0, 1))

		q.scheduleLoad(a)
		require.Equal(t, PendingLoad, a.LoadFlag())

		q.scheduleUnload(a)
		require.Equal(t, LoadNone, a.LoadFlag())

		require.NoError(t, q.step(context.Background()))
		require.Empty(t, rec.calls)
		require.Zero(t, q.len())
		require.False(t, q.running)
	})

	t.Run("load cancels a pending unload", func(t *testing.T) {
		var rec recorder
		var q workQueue
		a := newTrackedObject(newTestObject(&rec, "a", 0, 0, 1))
		a.resident = true

		q.scheduleUnload(a)
		require.Equal(t, PendingUnload, a.LoadFlag())

		q.scheduleLoad(a)
		require.Equal(t, LoadNone, a.LoadFlag())

		require.NoError(t, q.step(context.Background()))
		require.Empty(t, rec.calls)
		require.True(t, a.Resident())
	})

	t.Run("scheduling twice queues once", func(t *testing.T) {
		var rec recorder
		var q workQueue
		a := newTrackedObject(newTestObject(&rec, "a", 0, 0, 1))

		q.scheduleLoad(a)
		q.scheduleLoad(a)
		require.Equal(t, 1, q.len())

		q.scheduleUnload(a)
		q.scheduleUnload(a)
		require.Equal(t, 1, q.len())
		require.Equal(t, PendingUnload, a.LoadFlag())

		require.NoError(t, q.step(context.Background()))
		require.Equal(t, []string{"unload:a"}, rec.calls)
	})
}

func TestWorkQueueStep(t *testing.T) {
	t.Run("one operation is executed per step", func(t *testing.T) {
		var rec recorder
		var q workQueue
		ctx := context.Background()

		a := newTrackedObject(newTestObject(&rec, "a", 0, 0, 1))
		b := newTrackedObject(newTestObject(&rec, "b", 0, 0, 1))
		c := newTrackedObject(newTestObject(&rec, "c", 0, 0, 1))
		b.resident = true

		q.scheduleLoad(a)
		q.scheduleUnload(b)
		q.scheduleLoad(c)
		require.True(t, q.running)

		require.NoError(t, q.step(ctx))
		require.Equal(t, []string{"load:a"}, rec.calls)
		require.Equal(t, LoadNone, a.LoadFlag())
		require.True(t, a.Resident())

		require.NoError(t, q.step(ctx))
		require.Equal(t, []string{"load:a", "unload:b"}, rec.calls)
		require.False(t, b.Resident())

		require.NoError(t, q.step(ctx))
		require.Equal(t, []string{"load:a", "unload:b", "load:c"}, rec.calls)
		require.False(t, q.running)

		require.NoError(t, q.step(ctx))
		require.Len(t, rec.calls, 3)
	})

	t.Run("cancelled requests are skipped without using the step", func(t *testing.T) {
		var rec recorder
		var q workQueue
		ctx := context.Background()

		a := newTrackedObject(newTestObject(&rec, "a", 0, 0, 1))
		b := newTrackedObject(newTestObject(&rec, "b", 0, 0, 1))
		q.scheduleLoad(a)
		q.scheduleLoad(b)
		q.scheduleUnload(a)

		require.NoError(t, q.step(ctx))
		require.Equal(t, []string{"load:b"}, rec.calls)
		require.Zero(t, q.len())
	})

	t.Run("idle queue does nothing", func(t *testing.T) {
		var q workQueue
		require.NoError(t, q.step(context.Background()))
		require.False(t, q.running)
	})

	t.Run("load error is returned and not retried", func(t *testing.T) {
		var rec recorder
		var q workQueue
		ctx := context.Background()

		obj := newTestObject(&rec, "a", 0, 0, 1)
		obj.loadErr = errors.New("disk on fire")
		a := newTrackedObject(obj)

		q.scheduleLoad(a)
		err := q.step(ctx)
		require.Error(t, err)
		require.Equal(t, ErrTypeLoadFailed, errors.Type(err))
		require.Equal(t, LoadNone, a.LoadFlag())
		require.False(t, a.Resident())

		require.NoError(t, q.step(ctx))
		require.Equal(t, []string{"load:a"}, rec.calls)
	})

	t.Run("unload error keeps the object resident", func(t *testing.T) {
		var rec recorder
		var q workQueue

		obj := newTestObject(&rec, "a", 0, 0, 1)
		obj.unloadErr = errors.New("busy")
		a := newTrackedObject(obj)
		a.resident = true

		q.scheduleUnload(a)
		err := q.step(context.Background())
		require.Equal(t, ErrTypeUnloadFailed, errors.Type(err))
		require.True(t, a.Resident())
	})

	t.Run("rate limiter delays operations", func(t *testing.T) {
		var rec recorder
		q := workQueue{
			limiter: rate.NewLimiter(rate.Every(time.Hour), 1),
		}
		ctx := context.Background()

		a := newTrackedObject(newTestObject(&rec, "a", 0, 0, 1))
		b := newTrackedObject(newTestObject(&rec, "b", 0, 0, 1))
		q.scheduleLoad(a)
		q.scheduleLoad(b)

		require.NoError(t, q.step(ctx))
		require.NoError(t, q.step(ctx))
		require.Equal(t, []string{"load:a"}, rec.calls)
		require.Equal(t, 1, q.len())
		require.True(t, q.running)
	})
}
