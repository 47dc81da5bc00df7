package streaming

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	worldLabel     = "world"
	operationLabel = "operation"
)

var (
	streamResidentObjects = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "stream_resident_objects",
		Help: "The number of loaded objects.",
	}, []string{
		worldLabel,
	})

	streamOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stream_operations",
		Help: "The number of executed load and unload operations.",
	}, []string{
		worldLabel,
		operationLabel,
	})

	streamOperationErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stream_operation_errors",
		Help: "The number of load and unload operations that failed.",
	}, []string{
		worldLabel,
		operationLabel,
	})

	streamCancelledRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stream_cancelled_requests",
		Help: "The number of load and unload requests cancelled by an opposite request.",
	}, []string{
		worldLabel,
		operationLabel,
	})

	streamRescans = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stream_rescans",
		Help: "The number of spatial index scans.",
	}, []string{
		worldLabel,
	})

	streamRescanLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name: "stream_rescan_latency",
		Help: "The time to scan the spatial index and sweep the objects out of range.",
	}, []string{
		worldLabel,
	})

	streamEvictions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stream_evictions",
		Help: "The number of objects evicted from the eviction queue.",
	}, []string{
		worldLabel,
	})
)

func operationName(f LoadFlag) string {
	switch f {
	case PendingLoad:
		return "load"
	case PendingUnload:
		return "unload"
	default:
		return f.String()
	}
}

func instrumentResidentChange(world string, delta float64) {
	streamResidentObjects.
		With(prometheus.Labels{worldLabel: world}).
		Add(delta)
}

func instrumentOperation(world string, f LoadFlag) {
	streamOperations.
		With(prometheus.Labels{
			worldLabel:     world,
			operationLabel: operationName(f),
		}).
		Inc()
}

func instrumentOperationError(world string, f LoadFlag) {
	streamOperationErrors.
		With(prometheus.Labels{
			worldLabel:     world,
			operationLabel: operationName(f),
		}).
		Inc()
}

func instrumentCancelledRequest(world string, f LoadFlag) {
	streamCancelledRequests.
		With(prometheus.Labels{
			worldLabel:     world,
			operationLabel: operationName(f),
		}).
		Inc()
}

func instrumentRescan(world string, start time.Time) {
	labels := prometheus.Labels{worldLabel: world}
	streamRescans.With(labels).Inc()
	streamRescanLatency.With(labels).Observe(time.Since(start).Seconds())
}

func instrumentEviction(world string) {
	streamEvictions.
		With(prometheus.Labels{worldLabel: world}).
		Inc()
}
