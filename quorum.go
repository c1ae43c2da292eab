package hashweave

import (
	"sync"

	"github.com/hashweave-network/hashweave/common"
)

// CriticalQuorum tracks, per round, which creators are far enough behind on
// event production that gossiping with them is most likely to advance
// consensus. A creator is in the critical quorum while its event count for
// the round does not exceed the threshold: the smallest count at which the
// creators at or below it together hold a strong minority of stake.
type CriticalQuorum struct {
	sync.RWMutex
	NopObserver

	addressBook *AddressBook

	round       int64
	eventCounts map[common.NodeID]uint32

	// stakeNotExceeding[c] holds the total stake of creators whose count was
	// still <= c the last time any creator left bucket c. Unset buckets mean
	// the full total stake.
	stakeNotExceeding map[uint32]uint64

	threshold uint32
}

func NewCriticalQuorum(addressBook *AddressBook) *CriticalQuorum {
	return &CriticalQuorum{
		addressBook:       addressBook,
		eventCounts:       make(map[common.NodeID]uint32),
		stakeNotExceeding: make(map[uint32]uint64),
	}
}

// isStrongMinority reports whether stake strictly exceeds one third of total.
func isStrongMinority(stake, totalStake uint64) bool {
	return stake > totalStake/3
}

// EventAdded folds one admitted event into the quorum state. Amortized O(1):
// the threshold only ever moves forward within a round.
func (q *CriticalQuorum) EventAdded(e *Event) {
	q.Lock()
	defer q.Unlock()

	if e.RoundCreated < q.round {
		return
	}

	if e.RoundCreated > q.round {
		q.round = e.RoundCreated
		q.eventCounts = make(map[common.NodeID]uint32)
		q.stakeNotExceeding = make(map[uint32]uint64)
		q.threshold = 0
	}

	totalStake := q.addressBook.TotalStake()

	old := q.eventCounts[e.Creator]
	q.eventCounts[e.Creator] = old + 1

	// The creator's stake leaves bucket `old` as its count moves past it.
	remaining, ok := q.stakeNotExceeding[old]
	if !ok {
		remaining = totalStake
	}
	q.stakeNotExceeding[old] = remaining - q.addressBook.Stake(e.Creator)

	for !isStrongMinority(q.stakeAtOrBelow(q.threshold, totalStake), totalStake) {
		if totalStake == 0 {
			break
		}
		q.threshold++
	}
}

func (q *CriticalQuorum) stakeAtOrBelow(count uint32, totalStake uint64) uint64 {
	if stake, ok := q.stakeNotExceeding[count]; ok {
		return stake
	}
	return totalStake
}

// IsInCriticalQuorum reports whether the node's event count for the current
// round is at or below the threshold. With zero total stake there is no
// critical quorum at all.
func (q *CriticalQuorum) IsInCriticalQuorum(id common.NodeID) bool {
	q.RLock()
	defer q.RUnlock()

	if q.addressBook.TotalStake() == 0 {
		return false
	}

	return q.eventCounts[id] <= q.threshold
}

func (q *CriticalQuorum) Threshold() uint32 {
	q.RLock()
	defer q.RUnlock()

	return q.threshold
}

func (q *CriticalQuorum) Round() int64 {
	q.RLock()
	defer q.RUnlock()

	return q.round
}

// EventCount returns how many events the creator has produced this round.
func (q *CriticalQuorum) EventCount(id common.NodeID) uint32 {
	q.RLock()
	defer q.RUnlock()

	return q.eventCounts[id]
}
