package hashweave

import (
	"github.com/phf/go-queue/queue"
	"github.com/pkg/errors"

	"github.com/hashweave-network/hashweave/common"
	"github.com/hashweave-network/hashweave/log"
)

// errUnresolvedParent reports a parent that is neither known nor ancient yet.
// It never escapes the intake path: the event carrying the claim is held.
var errUnresolvedParent = errors.New("parent is not resolvable yet")

type linkKey struct {
	creator common.NodeID
	seq     int64
}

// parentRef is one parent claim of an event.
type parentRef struct {
	present bool
	creator common.NodeID
	seq     int64
	id      common.EventID
	gen     int64
}

func selfParentRef(e *Event) parentRef {
	return parentRef{
		present: e.HasSelfParent(),
		creator: e.Creator,
		seq:     e.Seq - 1,
		id:      e.SelfParentID,
		gen:     e.SelfParentGen,
	}
}

func otherParentRef(e *Event) parentRef {
	return parentRef{
		present: e.HasOtherParent(),
		creator: e.OtherCreator,
		seq:     e.OtherSeq,
		id:      e.OtherParentID,
		gen:     e.OtherParentGen,
	}
}

// Linker resolves parent claims to live events. Events whose parents are
// still unknown and non-ancient are held; they are released, in parent-first
// order, once every parent is admitted or proven ancient. Owned by the
// intake goroutine.
type Linker struct {
	consensus Consensus
	metrics   *Metrics

	minGenerationNonAncient int64

	// staged holds the first event seen per (creator, seq) slot until the
	// slot falls below the ancient watermark.
	staged   map[linkKey]*Event
	released map[linkKey]struct{}

	held    map[linkKey][]*Event
	waiters map[linkKey][]linkKey

	linked *queue.Queue
}

func NewLinker(consensus Consensus, metrics *Metrics) *Linker {
	return &Linker{
		consensus:               consensus,
		metrics:                 metrics,
		minGenerationNonAncient: consensus.MinGenerationNonAncient(),
		staged:                  make(map[linkKey]*Event),
		released:                make(map[linkKey]struct{}),
		held:                    make(map[linkKey][]*Event),
		waiters:                 make(map[linkKey][]linkKey),
		linked:                  queue.New(),
	}
}

// lookup resolves a (creator, seq) slot: the consensus DAG is authoritative,
// the staging map covers events still in flight.
func (l *Linker) lookup(creator common.NodeID, seq int64) *Event {
	if e := l.consensus.Lookup(creator, seq); e != nil {
		return e
	}
	return l.staged[linkKey{creator, seq}]
}

// resolveParent materializes one parent claim. Absent and ancient parents
// resolve to nil with no error; a parent that simply has not arrived yet
// resolves to errUnresolvedParent.
func (l *Linker) resolveParent(ref parentRef, minGen int64) (*Event, error) {
	if !ref.present {
		return nil, nil
	}

	if found := l.lookup(ref.creator, ref.seq); found != nil {
		return found, nil
	}

	if ref.gen < minGen {
		return nil, nil
	}

	return nil, errors.Wrapf(errUnresolvedParent, "creator %d seq %d", ref.creator, ref.seq)
}

// LinkEvent feeds one validated event into the linker. The event either
// joins the linked queue (possibly releasing held descendants), or is held
// until its parents show up, or dies as a duplicate.
func (l *Linker) LinkEvent(e *Event) error {
	key := linkKey{e.Creator, e.Seq}

	if existing := l.lookup(e.Creator, e.Seq); existing != nil {
		if existing.ID == e.ID {
			return errors.Wrapf(ErrDuplicateEvent, "creator %d seq %d", e.Creator, e.Seq)
		}

		// A fork: same slot, different contents. Detection is ours, handling
		// is the consensus layer's; the event stays admissible.
		l.metrics.forksDetected.Inc(1)

		logger := log.Linker()
		logger.Warn().
			Uint64("creator", uint64(e.Creator)).
			Int64("seq", e.Seq).
			Str("event", e.ID.String()).
			Str("sibling", existing.ID.String()).
			Msg("Fork detected: two events occupy the same slot.")
	}

	l.tryLink(e, key)

	return nil
}

// tryLink releases e if every parent is settled, and holds it otherwise.
func (l *Linker) tryLink(e *Event, key linkKey) {
	if _, ok := l.staged[key]; !ok {
		l.staged[key] = e
	}

	pending := l.unsettledParents(e)
	if len(pending) == 0 {
		l.release(e, key)
		return
	}

	l.held[key] = append(l.held[key], e)
	for _, parent := range pending {
		l.waiters[parent] = append(l.waiters[parent], key)
	}
}

// unsettledParents lists the parent slots e still waits on. A parent is
// settled once it sits in the consensus DAG, has been released by this
// linker, or has fallen below the ancient watermark.
func (l *Linker) unsettledParents(e *Event) []linkKey {
	var pending []linkKey

	for _, ref := range []parentRef{selfParentRef(e), otherParentRef(e)} {
		if !ref.present || ref.gen < l.minGenerationNonAncient {
			continue
		}

		slot := linkKey{ref.creator, ref.seq}
		if l.consensus.Lookup(ref.creator, ref.seq) != nil {
			continue
		}
		if _, ok := l.released[slot]; ok {
			continue
		}

		pending = append(pending, slot)
	}

	return pending
}

// release pushes e onto the linked queue and walks every held descendant
// that just became releasable. Breadth-first, as chains of held events can
// be long after a burst of out-of-order gossip.
func (l *Linker) release(e *Event, key linkKey) {
	ready := queue.New()
	ready.PushBack(e)
	l.released[key] = struct{}{}

	for ready.Len() > 0 {
		next := ready.PopFront().(*Event)
		nextKey := linkKey{next.Creator, next.Seq}

		if !l.finishLinking(next) {
			delete(l.released, nextKey)
			if l.staged[nextKey] == next {
				delete(l.staged, nextKey)
			}
			continue
		}

		l.linked.PushBack(next)

		for _, childKey := range l.waiters[nextKey] {
			events := l.held[childKey]
			kept := events[:0]

			for _, child := range events {
				if len(l.unsettledParents(child)) > 0 {
					kept = append(kept, child)
					continue
				}
				l.released[childKey] = struct{}{}
				ready.PushBack(child)
			}

			if len(kept) == 0 {
				delete(l.held, childKey)
			} else {
				l.held[childKey] = kept
			}
		}
		delete(l.waiters, nextKey)
	}
}

// finishLinking resolves the final parent pointers and re-verifies the parent
// claims for events that were held while a parent was in flight.
func (l *Linker) finishLinking(e *Event) bool {
	self, errSelf := l.resolveParent(selfParentRef(e), l.minGenerationNonAncient)
	other, errOther := l.resolveParent(otherParentRef(e), l.minGenerationNonAncient)

	if errSelf != nil || errOther != nil {
		// Settled parents must resolve; anything else is a bookkeeping bug.
		l.metrics.recordDrop(ErrUnknownParent)

		logger := log.Linker()
		logger.Error().
			Str("event", e.ID.String()).
			Msg("A settled parent failed to resolve.")
		return false
	}

	err := checkParentClaims(e, self, other)
	if err == nil {
		err = checkNotBothParentsOld(self, other, l.consensus.MinRound())
	}
	if err != nil {
		l.metrics.recordDrop(err)

		logger := log.Linker()
		logger.Debug().
			Err(err).
			Str("event", e.ID.String()).
			Msg("Dropped a held event whose parent claims failed on release.")
		return false
	}

	e.selfParent = self
	e.otherParent = other

	return true
}

func (l *Linker) HasLinkedEvents() bool {
	return l.linked.Len() > 0
}

func (l *Linker) PollLinkedEvent() *Event {
	if l.linked.Len() == 0 {
		return nil
	}
	return l.linked.PopFront().(*Event)
}

// UpdateGenerations moves the ancient watermark forward: held events below it
// are garbage, and held events waiting on parents below it become releasable.
func (l *Linker) UpdateGenerations(g Generations) {
	l.minGenerationNonAncient = g.MinGenerationNonAncient

	for key, events := range l.held {
		kept := events[:0]
		for _, e := range events {
			if e.Generation < l.minGenerationNonAncient {
				l.metrics.recordDrop(ErrAncientEvent)

				logger := log.Linker()
				logger.Debug().
					Str("event", e.ID.String()).
					Msg("Discarded a held event that became ancient.")
				continue
			}
			kept = append(kept, e)
		}

		if len(kept) == 0 {
			delete(l.held, key)
			if staged, ok := l.staged[key]; ok && staged.Generation < l.minGenerationNonAncient {
				delete(l.staged, key)
			}
			continue
		}
		l.held[key] = kept
	}

	// Parents that became ancient no longer block their descendants.
	for key, events := range l.held {
		kept := events[:0]
		var releasable []*Event

		for _, e := range events {
			if len(l.unsettledParents(e)) == 0 {
				releasable = append(releasable, e)
				continue
			}
			kept = append(kept, e)
		}

		if len(kept) == 0 {
			delete(l.held, key)
		} else {
			l.held[key] = kept
		}

		for _, e := range releasable {
			l.release(e, key)
		}
	}

	// Slots below the watermark are owned by consensus history now.
	for key, e := range l.staged {
		if _, heldStill := l.held[key]; heldStill {
			continue
		}
		if e.Generation < l.minGenerationNonAncient {
			delete(l.staged, key)
			delete(l.released, key)
		}
	}
}

// NumHeld reports how many events are parked waiting for parents.
func (l *Linker) NumHeld() int {
	total := 0
	for _, events := range l.held {
		total += len(events)
	}
	return total
}
