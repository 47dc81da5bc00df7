package featureflag

type Flag string

const (
	// Out of range objects stay in the eviction queue.
	FlagDisableEviction Flag = "DISABLE_EVICTION"

	// Observers do not receive status messages.
	FlagDisableStatusBroadcast Flag = "DISABLE_STATUS_BROADCAST"

	// Objects added inside the detector region wait for the next scan.
	FlagDisableEagerDiscovery Flag = "DISABLE_EAGER_DISCOVERY"
)

var knownFlags = []Flag{
	FlagDisableEviction,
	FlagDisableStatusBroadcast,
	FlagDisableEagerDiscovery,
}
