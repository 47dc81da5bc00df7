package streaming

import (
	"strings"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/realfan-1s/FFTOcean/spatial"
)

const (
	ErrTypeInvalidConfig = "stream_invalid_config"
	ErrTypeLoadFailed    = "stream_load_failed"
	ErrTypeUnloadFailed  = "stream_unload_failed"
)

// EvictionPolicy decides when an eviction drain stops popping the eviction
// queue.
type EvictionPolicy int

const (
	// Stop once the number of visible and queued objects is under the
	// capacity.
	DrainToCapacity EvictionPolicy = iota

	// Pop the whole queue.
	DrainAll
)

func (p EvictionPolicy) String() string {
	switch p {
	case DrainToCapacity:
		return "to-capacity"
	case DrainAll:
		return "all"
	default:
		return "unknown"
	}
}

func ParseEvictionPolicy(s string) (EvictionPolicy, error) {
	switch strings.ToLower(s) {
	case "to-capacity", "":
		return DrainToCapacity, nil
	case "all":
		return DrainAll, nil
	default:
		return 0, errors.New("unknown eviction policy").
			WithType(ErrTypeInvalidConfig).
			WithTag("policy", s)
	}
}

// TimerGate decides when the scan and eviction timers advance.
type TimerGate int

const (
	// Timers advance while the observer stays where it was at the previous
	// tick.
	GateDwell TimerGate = iota

	// Timers advance while the observer is away from where the timer last
	// fired.
	GateDisplaced
)

func (g TimerGate) String() string {
	switch g {
	case GateDwell:
		return "dwell"
	case GateDisplaced:
		return "displaced"
	default:
		return "unknown"
	}
}

func ParseTimerGate(s string) (TimerGate, error) {
	switch strings.ToLower(s) {
	case "dwell", "":
		return GateDwell, nil
	case "displaced":
		return GateDisplaced, nil
	default:
		return 0, errors.New("unknown timer gate").
			WithType(ErrTypeInvalidConfig).
			WithTag("gate", s)
	}
}

type Config struct {
	// The name used to label the logs and metrics of the controller.
	Name string

	// The box covered by the spatial index.
	WorldCenter mgl64.Vec3
	WorldSize   mgl64.Vec3

	// The number of times the world is split on the x and z axes.
	MaxDepth int

	// The number of objects the eviction queue holds before evictions start.
	MaxCount int

	// The time between two scans of the spatial index.
	MaxUpdateTime time.Duration

	// The time between two eviction drains.
	MaxLivingTime time.Duration

	EvictionPolicy EvictionPolicy
	TimerGate      TimerGate

	// The number of load and unload operations executed per second. Zero
	// means no limit.
	LoadRate float64

	// The number of operations that can be executed at once when LoadRate is
	// set.
	LoadBurst int

	// Disables eviction drains: objects out of range stay in the eviction
	// queue.
	DisableEviction bool

	// Disables the discovery of objects added inside the current detector
	// region.
	DisableEagerDiscovery bool
}

// DefaultConfig returns a configuration for a world of the given center and
// size.
func DefaultConfig(center, size mgl64.Vec3) Config {
	return Config{
		Name:          "default",
		WorldCenter:   center,
		WorldSize:     size,
		MaxDepth:      5,
		MaxCount:      25,
		MaxUpdateTime: time.Second,
		MaxLivingTime: 5 * time.Second,
		LoadBurst:     1,
	}
}

func (c Config) validate() error {
	var err error

	switch {
	case c.MaxDepth < 0 || c.MaxDepth > spatial.MaxDepth:
		err = errors.New("max depth out of range").
			WithTag("max_depth", c.MaxDepth).
			WithTag("supported_max_depth", spatial.MaxDepth)

	case c.WorldSize.X() <= 0 || c.WorldSize.Z() <= 0:
		err = errors.New("world size must be positive on x and z").
			WithTag("world_size", c.WorldSize)

	case c.MaxCount <= 0:
		err = errors.New("max count must be positive").
			WithTag("max_count", c.MaxCount)

	case c.MaxUpdateTime < 0 || c.MaxLivingTime < 0:
		err = errors.New("timer durations must not be negative").
			WithTag("max_update_time", c.MaxUpdateTime).
			WithTag("max_living_time", c.MaxLivingTime)

	case c.LoadRate < 0:
		err = errors.New("load rate must not be negative").
			WithTag("load_rate", c.LoadRate)

	case c.LoadRate > 0 && c.LoadBurst <= 0:
		err = errors.New("load burst must be positive when load rate is set").
			WithTag("load_burst", c.LoadBurst)

	case c.EvictionPolicy != DrainToCapacity && c.EvictionPolicy != DrainAll:
		err = errors.New("unknown eviction policy").
			WithTag("policy", int(c.EvictionPolicy))

	case c.TimerGate != GateDwell && c.TimerGate != GateDisplaced:
		err = errors.New("unknown timer gate").
			WithTag("gate", int(c.TimerGate))
	}

	if err != nil {
		return errors.New("invalid controller config").
			WithType(ErrTypeInvalidConfig).
			Wrap(err)
	}
	return nil
}
