package hashweave

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestLinkerReleasesInParentFirstOrder(t *testing.T) {
	t.Parallel()

	consensus := newFakeConsensus()
	linker := NewLinker(consensus, NewMetrics())

	parent := buildEvent(1, nil, nil)
	child := buildEvent(1, parent, nil)

	// Child first: must be held, not released.
	assert.NoError(t, linker.LinkEvent(child))
	assert.False(t, linker.HasLinkedEvents())
	assert.Equal(t, 1, linker.NumHeld())

	// Parent arrives: both come out, parent first.
	assert.NoError(t, linker.LinkEvent(parent))
	assert.True(t, linker.HasLinkedEvents())

	assert.Equal(t, parent, linker.PollLinkedEvent())
	assert.Equal(t, child, linker.PollLinkedEvent())
	assert.Nil(t, linker.PollLinkedEvent())
	assert.Equal(t, 0, linker.NumHeld())
}

func TestLinkerChainsRelease(t *testing.T) {
	t.Parallel()

	linker := NewLinker(newFakeConsensus(), NewMetrics())

	a := buildEvent(2, nil, nil)
	b := buildEvent(2, a, nil)
	c := buildEvent(2, b, nil)

	assert.NoError(t, linker.LinkEvent(c))
	assert.NoError(t, linker.LinkEvent(b))
	assert.False(t, linker.HasLinkedEvents())

	assert.NoError(t, linker.LinkEvent(a))

	assert.Equal(t, a, linker.PollLinkedEvent())
	assert.Equal(t, b, linker.PollLinkedEvent())
	assert.Equal(t, c, linker.PollLinkedEvent())
}

func TestLinkerAncientParentLinksAsNil(t *testing.T) {
	t.Parallel()

	consensus := newFakeConsensus()
	consensus.minGen = 5

	linker := NewLinker(consensus, NewMetrics())

	// The claimed self-parent generation sits below the watermark, so the
	// missing parent does not block the event.
	parent := buildEvent(1, nil, nil)
	child := buildEvent(1, parent, nil)
	child.SelfParentGen = 4
	child.rehash()

	assert.NoError(t, linker.LinkEvent(child))
	assert.True(t, linker.HasLinkedEvents())

	linked := linker.PollLinkedEvent()
	assert.Nil(t, linked.SelfParent())
}

func TestLinkerDropsDuplicates(t *testing.T) {
	t.Parallel()

	linker := NewLinker(newFakeConsensus(), NewMetrics())

	e := buildEvent(1, nil, nil)

	assert.NoError(t, linker.LinkEvent(e))

	err := linker.LinkEvent(e)
	assert.Equal(t, ErrDuplicateEvent, errors.Cause(err))
}

func TestLinkerAdmitsForks(t *testing.T) {
	t.Parallel()

	metrics := NewMetrics()
	linker := NewLinker(newFakeConsensus(), metrics)

	branchA := buildEvent(1, nil, nil, userTx(1, "a"))
	branchB := buildEvent(1, nil, nil)

	assert.NoError(t, linker.LinkEvent(branchA))
	assert.NoError(t, linker.LinkEvent(branchB))

	assert.Equal(t, branchA, linker.PollLinkedEvent())
	assert.Equal(t, branchB, linker.PollLinkedEvent())
	assert.EqualValues(t, 1, metrics.forksDetected.Count())
}

func TestLinkerGarbageCollectsAncientHeldEvents(t *testing.T) {
	t.Parallel()

	metrics := NewMetrics()
	linker := NewLinker(newFakeConsensus(), metrics)

	parent := buildEvent(1, nil, nil)
	child := buildEvent(1, parent, nil)

	assert.NoError(t, linker.LinkEvent(child))
	assert.Equal(t, 1, linker.NumHeld())

	// The child itself falls below the watermark: it is garbage.
	linker.UpdateGenerations(Generations{MinGenerationNonAncient: 10})

	assert.Equal(t, 0, linker.NumHeld())
	assert.False(t, linker.HasLinkedEvents())
	assert.EqualValues(t, 1, metrics.ancientEvents.Count())
}

func TestLinkerReleasesWhenParentTurnsAncient(t *testing.T) {
	t.Parallel()

	linker := NewLinker(newFakeConsensus(), NewMetrics())

	parent := buildEvent(1, nil, nil)
	child := buildEvent(1, parent, nil)

	assert.NoError(t, linker.LinkEvent(child))
	assert.Equal(t, 1, linker.NumHeld())

	// The missing parent's claimed generation drops below the watermark; the
	// child stays live and links with a nil reference.
	linker.UpdateGenerations(Generations{MinGenerationNonAncient: 1})

	assert.Equal(t, 0, linker.NumHeld())
	assert.True(t, linker.HasLinkedEvents())

	linked := linker.PollLinkedEvent()
	assert.Equal(t, child, linked)
	assert.Nil(t, linked.SelfParent())
}
