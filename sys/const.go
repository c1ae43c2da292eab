package sys

// Transaction tags. TagApp marks transactions submitted by the application;
// everything else is injected by the platform itself.
const (
	TagApp byte = iota
	TagStateSig
	TagStateSigFreeze
	TagPingMicroseconds
	TagBitsPerSecond
	TagFreeze
)

const (
	// MaxTransactionBytesPerEvent bounds the summed transaction size (tag,
	// creator and payload bytes) an event may carry.
	MaxTransactionBytesPerEvent = 245760

	// MinTimeCreatedDelta is the smallest gap, in nanoseconds, between an event
	// and its self-parent.
	MinTimeCreatedDelta = 1

	// DefaultIntakeQueueSize bounds the intake task queue; producers block when full.
	DefaultIntakeQueueSize = 1024

	// DefaultRescueChildlessInverseProbability is the 1/N chance that a childless
	// event is picked as other-parent regardless of the critical quorum.
	DefaultRescueChildlessInverseProbability = 10

	// DefaultEventsPerSecond paces self-event creation.
	DefaultEventsPerSecond = 2
)
