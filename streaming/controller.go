// Package streaming loads and unloads world objects as an observer moves
// through the world, under a budget of tracked objects.
package streaming

import (
	"context"
	"slices"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/realfan-1s/FFTOcean/detector"
	"github.com/realfan-1s/FFTOcean/evict"
	"github.com/realfan-1s/FFTOcean/geometry"
	"github.com/realfan-1s/FFTOcean/spatial"
	"golang.org/x/time/rate"
)

const positionEpsilon = 1e-5

// Controller tracks the objects of a world and decides which ones are loaded
// from the positions of an observer.
//
// Each tick may:
//   - scan the spatial index with the observer detector. Objects found for the
//     first time are loaded, objects found again gain weight, and visible
//     objects that were not found go to the eviction queue.
//   - drain the eviction queue once it holds MaxCount objects, unloading the
//     lightest objects first.
//   - execute one pending load or unload operation.
//
// A Controller is not safe for concurrent use: ticks and calls to the other
// methods must happen on the same goroutine.
type Controller struct {
	config    Config
	index     *spatial.QuadTree[*TrackedObject]
	evictions *evict.Queue[*TrackedObject]
	work      workQueue
	objects   map[Loadable]*TrackedObject
	visible   []*TrackedObject
	detector  detector.Detector

	rescanTimer   timer
	evictionTimer timer
	lastPosition  mgl64.Vec3
	hasPosition   bool
	pass          uint64
}

// NewController creates a controller with the given configuration.
func NewController(c Config) (*Controller, error) {
	if err := c.validate(); err != nil {
		return nil, err
	}

	index, err := spatial.NewQuadTree[*TrackedObject](c.WorldCenter, c.WorldSize, c.MaxDepth)
	if err != nil {
		return nil, errors.New("creating spatial index failed").
			WithType(ErrTypeInvalidConfig).
			Wrap(err)
	}

	var limiter *rate.Limiter
	if c.LoadRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(c.LoadRate), c.LoadBurst)
	}

	return &Controller{
		config:    c,
		index:     index,
		evictions: evict.NewQueue[*TrackedObject](),
		work: workQueue{
			world:   c.Name,
			limiter: limiter,
		},
		objects:       make(map[Loadable]*TrackedObject),
		rescanTimer:   newTimer(c.MaxUpdateTime),
		evictionTimer: newTimer(c.MaxLivingTime),
	}, nil
}

// Add starts tracking the object. Adding an object twice returns the object
// tracked by the first call. Objects outside the world are tracked but never
// found by scans.
//
// When the last detector given to Tick already detects the object, the object
// is discovered right away.
//
// Loadable implementations must be comparable, pointer types are.
func (c *Controller) Add(obj Loadable) *TrackedObject {
	if obj == nil {
		return nil
	}

	if o, ok := c.objects[obj]; ok {
		return o
	}

	o := newTrackedObject(obj)
	c.objects[obj] = o
	c.index.Add(o)

	if !c.config.DisableEagerDiscovery &&
		c.detector != nil &&
		o.refs.Len() != 0 &&
		c.detector.Detect(o.bounds) {
		c.discover(o)
	}
	return o
}

// Remove stops tracking the object. A loaded object gets unloaded by a later
// tick.
func (c *Controller) Remove(o *TrackedObject) {
	if o == nil || c.objects[o.obj] != o {
		return
	}

	delete(c.objects, o.obj)
	c.index.Remove(o)
	c.evictions.Remove(o)
	c.hide(o)

	if o.resident || o.loadFlag == PendingLoad {
		c.work.scheduleUnload(o)
	}

	o.createFlag = Uncreated
	o.weight = 0
}

// Contains reports whether the object is held by the spatial index.
func (c *Controller) Contains(o *TrackedObject) bool {
	return c.index.Contains(o)
}

// Tick advances the controller by dt with the observer described by the
// given detector. The returned error is the error of the load or unload
// operation executed during the tick, if any. Failed operations are not
// retried.
func (c *Controller) Tick(ctx context.Context, dt time.Duration, d detector.Detector) error {
	if d == nil {
		return c.work.step(ctx)
	}

	pos := d.Position()
	stationary := !c.hasPosition || geometry.VecEqualWithEpsilon(pos, c.lastPosition, positionEpsilon)

	if c.rescanTimer.advance(c.config.TimerGate, stationary, pos, dt) {
		c.detector = d
		c.rescan(d)
	}

	if !c.config.DisableEviction &&
		c.evictions.Len() >= c.config.MaxCount &&
		c.evictionTimer.advance(c.config.TimerGate, stationary, pos, dt) {
		c.drainEvictions()
	}

	c.lastPosition = pos
	c.hasPosition = true
	return c.work.step(ctx)
}

func (c *Controller) rescan(d detector.Detector) {
	start := time.Now()
	c.pass++
	c.index.Query(d, c.discover)
	c.sweep()
	instrumentRescan(c.config.Name, start)
}

// discover handles an object found by a scan. Objects straddling several
// leaves are found several times per scan and only handled once.
func (c *Controller) discover(o *TrackedObject) {
	if o.seenPass == c.pass {
		return
	}
	o.seenPass = c.pass

	switch o.createFlag {
	case Uncreated:
		c.show(o)
		o.createFlag = JustDiscovered
		c.work.scheduleLoad(o)

	case JustDiscovered, Reconfirmed:
		o.weight++
		o.createFlag = Reconfirmed

	case OutOfRange:
		c.evictions.Remove(o)
		c.show(o)
		o.createFlag = Reconfirmed
	}
}

// sweep moves the visible objects that the last scan did not find to the
// eviction queue.
func (c *Controller) sweep() {
	visible := c.visible[:0]

	for _, o := range c.visible {
		if o.seenPass == c.pass {
			visible = append(visible, o)
			continue
		}

		o.visible = false
		o.createFlag = OutOfRange
		c.evictions.Push(o, o.weight)
	}

	clear(c.visible[len(visible):])
	c.visible = visible
}

// drainEvictions pops the eviction queue in ascending weight order and
// unloads the popped objects.
func (c *Controller) drainEvictions() {
	var evicted int

	for c.evictions.Len() != 0 {
		if c.config.EvictionPolicy == DrainToCapacity &&
			len(c.visible)+c.evictions.Len() < c.config.MaxCount {
			break
		}

		o, _, err := c.evictions.Pop()
		if err != nil {
			logs.Error(errors.New("popping eviction queue failed").Wrap(err))
			return
		}

		if o.createFlag != OutOfRange {
			continue
		}

		c.work.scheduleUnload(o)
		o.createFlag = Uncreated
		o.weight = 0
		evicted++
		instrumentEviction(c.config.Name)
	}

	logs.WithTag("world", c.config.Name).
		WithTag("evicted", evicted).
		WithTag("queued", c.evictions.Len()).
		Debug("eviction queue drained")
}

func (c *Controller) show(o *TrackedObject) {
	if !o.visible {
		o.visible = true
		c.visible = append(c.visible, o)
	}
}

func (c *Controller) hide(o *TrackedObject) {
	if !o.visible {
		return
	}

	o.visible = false
	c.visible = slices.DeleteFunc(c.visible, func(v *TrackedObject) bool {
		return v == o
	})
}

// Close unloads every loaded object and stops tracking all the objects. The
// first unload error is returned once every object was processed.
func (c *Controller) Close(ctx context.Context) error {
	var firstErr error
	var unloaded int

	for _, o := range c.objects {
		if !o.resident {
			continue
		}

		if err := o.obj.Unload(ctx); err != nil {
			instrumentOperationError(c.config.Name, PendingUnload)
			err = errors.New("unloading object failed").
				WithType(ErrTypeUnloadFailed).
				WithTag("object_id", o.id).
				Wrap(err)
			logs.Warn(err)

			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		o.resident = false
		unloaded++
		instrumentResidentChange(c.config.Name, -1)
		instrumentOperation(c.config.Name, PendingUnload)
	}

	// Pending unloads of removed objects.
	for _, o := range c.work.items {
		if o.loadFlag != PendingUnload || !o.resident {
			continue
		}
		if _, tracked := c.objects[o.obj]; tracked {
			continue
		}
		if err := c.work.execute(ctx, o); err != nil {
			logs.Warn(err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		unloaded++
	}

	c.work.clear()
	c.index.Clear()
	c.evictions.Clear()
	clear(c.visible)
	c.visible = nil

	for _, o := range c.objects {
		o.createFlag = Uncreated
		o.weight = 0
		o.visible = false
	}
	clear(c.objects)

	logs.WithTag("world", c.config.Name).
		WithTag("unloaded", unloaded).
		Info("stream controller closed")
	return firstErr
}

// Visible returns the objects found by the last scan, in discovery order.
func (c *Controller) Visible() []*TrackedObject {
	return slices.Clone(c.visible)
}

// Detector returns the detector of the last scan.
func (c *Controller) Detector() detector.Detector {
	return c.detector
}

func (c *Controller) Config() Config {
	return c.config
}

type Stats struct {
	Objects  int    `json:"objects"`
	Visible  int    `json:"visible"`
	Evicting int    `json:"evicting"`
	Pending  int    `json:"pending"`
	Resident int    `json:"resident"`
	Scans    uint64 `json:"scans"`
}

func (c *Controller) Stats() Stats {
	var resident int
	for _, o := range c.objects {
		if o.resident {
			resident++
		}
	}

	return Stats{
		Objects:  len(c.objects),
		Visible:  len(c.visible),
		Evicting: c.evictions.Len(),
		Pending:  c.work.len(),
		Resident: resident,
		Scans:    c.pass,
	}
}

type timer struct {
	max      time.Duration
	elapsed  time.Duration
	anchor   mgl64.Vec3
	anchored bool
}

// newTimer returns an elapsed timer so that it fires at the first tick.
func newTimer(max time.Duration) timer {
	return timer{
		max:     max,
		elapsed: max,
	}
}

// advance adds dt to the timer when the gate lets it, and reports whether the
// timer fired. A fired timer restarts from zero.
func (t *timer) advance(gate TimerGate, stationary bool, pos mgl64.Vec3, dt time.Duration) bool {
	switch gate {
	case GateDisplaced:
		if t.anchored && geometry.VecEqualWithEpsilon(pos, t.anchor, positionEpsilon) {
			return false
		}

	default:
		if !stationary {
			return false
		}
	}

	t.elapsed += dt
	if t.elapsed < t.max {
		return false
	}

	t.elapsed = 0
	t.anchor = pos
	t.anchored = true
	return true
}
