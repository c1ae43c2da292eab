package hashweave

import (
	"github.com/hashweave-network/hashweave/sys"
)

// Config is read once at construction and shared read-only between
// components. Nothing reads configuration from ambient state afterwards.
type Config struct {
	MaxTransactionBytesPerEvent int
	VerifyEventSignatures       bool
	EnableMirrorNodeMode        bool

	RescueChildlessInverseProbability int

	IntakeQueueSize int

	EventsPerSecond float64
}

func DefaultConfig() Config {
	return Config{
		MaxTransactionBytesPerEvent:       sys.MaxTransactionBytesPerEvent,
		VerifyEventSignatures:             true,
		EnableMirrorNodeMode:              false,
		RescueChildlessInverseProbability: sys.DefaultRescueChildlessInverseProbability,
		IntakeQueueSize:                   sys.DefaultIntakeQueueSize,
		EventsPerSecond:                   sys.DefaultEventsPerSecond,
	}
}
