package hashweave

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hashweave-network/hashweave/common"
)

func quorumEvent(creator common.NodeID, round int64) *Event {
	e := buildEvent(creator, nil, nil)
	e.RoundCreated = round
	return e
}

func TestCriticalQuorumThresholdWalk(t *testing.T) {
	t.Parallel()

	// Stakes {10, 10, 10, 70}: a strong minority needs strictly more than 33.
	quorum := NewCriticalQuorum(testAddressBook(10, 10, 10, 70))

	quorum.EventAdded(quorumEvent(0, 1))
	assert.EqualValues(t, 0, quorum.Threshold())
	assert.False(t, quorum.IsInCriticalQuorum(0))
	assert.True(t, quorum.IsInCriticalQuorum(1))
	assert.True(t, quorum.IsInCriticalQuorum(3))

	quorum.EventAdded(quorumEvent(1, 1))
	assert.EqualValues(t, 0, quorum.Threshold())
	assert.False(t, quorum.IsInCriticalQuorum(0))
	assert.False(t, quorum.IsInCriticalQuorum(1))
	assert.True(t, quorum.IsInCriticalQuorum(2))

	quorum.EventAdded(quorumEvent(2, 1))
	assert.EqualValues(t, 0, quorum.Threshold())
	assert.False(t, quorum.IsInCriticalQuorum(0))
	assert.False(t, quorum.IsInCriticalQuorum(1))
	assert.False(t, quorum.IsInCriticalQuorum(2))
	assert.True(t, quorum.IsInCriticalQuorum(3))

	// A second event from node 0 leaves the threshold alone: node 3's 70
	// stake still sits at count 0.
	quorum.EventAdded(quorumEvent(0, 1))
	assert.EqualValues(t, 0, quorum.Threshold())
	assert.EqualValues(t, 2, quorum.EventCount(0))
	assert.True(t, quorum.IsInCriticalQuorum(3))
}

func TestCriticalQuorumThresholdClimbs(t *testing.T) {
	t.Parallel()

	quorum := NewCriticalQuorum(testAddressBook(10, 10, 10, 70))

	for _, creator := range []common.NodeID{0, 1, 2, 3} {
		quorum.EventAdded(quorumEvent(creator, 1))
	}

	// Every creator has count 1; the stake at count 0 is zero, so the
	// threshold must rise to cover count 1.
	assert.EqualValues(t, 1, quorum.Threshold())
	for id := common.NodeID(0); id < 4; id++ {
		assert.True(t, quorum.IsInCriticalQuorum(id))
	}
}

func TestCriticalQuorumRoundRollover(t *testing.T) {
	t.Parallel()

	quorum := NewCriticalQuorum(testAddressBook(10, 10, 10, 70))

	quorum.EventAdded(quorumEvent(0, 1))
	quorum.EventAdded(quorumEvent(3, 1))
	assert.EqualValues(t, 1, quorum.Round())

	// A newer round clears everything.
	quorum.EventAdded(quorumEvent(1, 2))
	assert.EqualValues(t, 2, quorum.Round())
	assert.EqualValues(t, 0, quorum.Threshold())
	assert.EqualValues(t, 0, quorum.EventCount(0))
	assert.EqualValues(t, 1, quorum.EventCount(1))

	// Stale rounds are silently ignored.
	quorum.EventAdded(quorumEvent(2, 1))
	assert.EqualValues(t, 2, quorum.Round())
	assert.EqualValues(t, 0, quorum.EventCount(2))
}

func TestCriticalQuorumZeroTotalStake(t *testing.T) {
	t.Parallel()

	quorum := NewCriticalQuorum(testAddressBook(0, 0, 0))

	quorum.EventAdded(quorumEvent(0, 1))
	quorum.EventAdded(quorumEvent(1, 1))

	// With no stake at all there is no critical quorum.
	assert.EqualValues(t, 0, quorum.Threshold())
	for id := common.NodeID(0); id < 3; id++ {
		assert.False(t, quorum.IsInCriticalQuorum(id))
	}
}

func TestCriticalQuorumMembershipMatchesCounts(t *testing.T) {
	t.Parallel()

	ab := testAddressBook(25, 25, 25, 25)
	quorum := NewCriticalQuorum(ab)

	sequence := []common.NodeID{0, 0, 1, 2, 0, 3, 1, 2, 2, 3}
	for _, creator := range sequence {
		quorum.EventAdded(quorumEvent(creator, 1))

		// Membership must track counts against the threshold exactly, and the
		// members' combined stake must form a strong minority.
		var memberStake uint64
		for id := common.NodeID(0); id < common.NodeID(ab.Size()); id++ {
			inQuorum := quorum.IsInCriticalQuorum(id)
			assert.Equal(t, quorum.EventCount(id) <= quorum.Threshold(), inQuorum)
			if inQuorum {
				memberStake += ab.Stake(id)
			}
		}
		assert.True(t, isStrongMinority(memberStake, ab.TotalStake()))
	}
}
