package hashweave

import "github.com/hashweave-network/hashweave/common"

// Generations is a copy-on-write snapshot of the consensus layer's round and
// generation watermarks.
type Generations struct {
	MinRound                int64
	MaxRound                int64
	MinGenerationNonAncient int64
}

// Round is one consensus round emitted by the virtual-voting algorithm.
// Events are listed in consensus order.
type Round struct {
	Index       int64
	Generations Generations
	Events      []*Event
}

// Consensus is the virtual-voting collaborator. AddEvent returns the rounds
// the admission settled, if any; an error from it is fatal to the local node.
type Consensus interface {
	AddEvent(e *Event, ab *AddressBook) ([]*Round, error)

	MinRound() int64
	MinGenerationNonAncient() int64
	Generations() Generations

	// Lookup resolves an admitted event by creator and sequence number, or nil.
	Lookup(creator common.NodeID, seq int64) *Event

	// StaleEvents drains the queue of events consensus has declared stale.
	StaleEvents() []*Event
}

// TransactionSupplier hands out the pending transactions a new self-event
// should carry.
type TransactionSupplier interface {
	Drain() []Transaction
}

// TransactionPool exposes the pressure gauges the creation rules consult.
type TransactionPool interface {
	NumUserTransForEvent() int
	NumFreezeTransEvent() int
}

// StateSignatureRecorder collects state signatures gossiped by peers.
type StateSignatureRecorder interface {
	RecordStateSig(round int64, member common.NodeID, stateHash []byte, sig []byte) error
}

// FreezeManager reports whether the platform has frozen event creation.
type FreezeManager interface {
	IsEventCreationFrozen() bool
}
