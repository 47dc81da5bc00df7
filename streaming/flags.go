package streaming

// CreateFlag is where a tracked object stands relative to the observer.
type CreateFlag uint8

const (
	// The object is indexed but has never been seen, or was evicted.
	Uncreated CreateFlag = iota

	// The object was seen for the first time during the last scan.
	JustDiscovered

	// The object was seen again by a later scan.
	Reconfirmed

	// The object was not seen by the last scan and waits in the eviction
	// queue.
	OutOfRange
)

func (f CreateFlag) String() string {
	switch f {
	case Uncreated:
		return "uncreated"
	case JustDiscovered:
		return "just_discovered"
	case Reconfirmed:
		return "reconfirmed"
	case OutOfRange:
		return "out_of_range"
	default:
		return "unknown"
	}
}

// LoadFlag is the operation pending on a tracked object. An object never has
// a load and an unload pending at the same time.
type LoadFlag uint8

const (
	LoadNone LoadFlag = iota
	PendingLoad
	PendingUnload
)

func (f LoadFlag) String() string {
	switch f {
	case LoadNone:
		return "none"
	case PendingLoad:
		return "pending_load"
	case PendingUnload:
		return "pending_unload"
	default:
		return "unknown"
	}
}
