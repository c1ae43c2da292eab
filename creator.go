package hashweave

import (
	"time"

	"github.com/pkg/errors"

	"github.com/hashweave-network/hashweave/common"
	"github.com/hashweave-network/hashweave/log"
)

// Creator builds new self-events. Parents come from the event mapper, the
// rule chains decide whether to create at all, and the finished event flows
// back through the same intake path as everything else.
type Creator struct {
	selfID    common.NodeID
	crypto    CryptoEngine
	mapper    *Mapper
	rules     *RuleEngine
	consensus Consensus
	supplier  TransactionSupplier
	pool      TransactionPool
	metrics   *Metrics

	// emit hands the signed event back to the intake path.
	emit func(*Event) error

	now func() time.Time
}

func NewCreator(selfID common.NodeID, crypto CryptoEngine, mapper *Mapper, rules *RuleEngine,
	consensus Consensus, supplier TransactionSupplier, pool TransactionPool, metrics *Metrics,
	emit func(*Event) error) *Creator {
	return &Creator{
		selfID:    selfID,
		crypto:    crypto,
		mapper:    mapper,
		rules:     rules,
		consensus: consensus,
		supplier:  supplier,
		pool:      pool,
		metrics:   metrics,
		emit:      emit,
		now:       time.Now,
	}
}

// CreateEvent builds, signs and emits one self-event with otherID's latest
// event as other-parent. Returning without emitting is normal: the rule
// chains or the parent situation often say no.
func (c *Creator) CreateEvent(otherID common.NodeID) error {
	if c.rules.ShouldCreateEvent() == DontCreate {
		return nil
	}

	selfParent := c.mapper.MostRecent(c.selfID)

	var otherParent *Event
	if otherID != c.selfID {
		otherParent = c.mapper.MostRecent(otherID)
	}

	// Re-using a peer's event as other-parent carries no new information,
	// unless freeze pressure demands an event right now.
	if otherID != c.selfID && c.mapper.HasMostRecentBeenUsedAsOtherParent(otherID) &&
		c.pool.NumFreezeTransEvent() == 0 {
		return nil
	}

	if c.rules.ShouldCreateEventWithParents(selfParent, otherParent) == DontCreate {
		return nil
	}

	// An event whose parents are both old would be dead on arrival, and a
	// node that keeps building on an old self-parent with no live other-parent
	// wedges itself. Seen in the wild during mass reconnects. Bail before the
	// pool is drained so no transactions get stranded.
	if otherParent == nil && selfParent != nil && selfParent.IsOld(c.consensus.MinRound()) {
		logger := log.Creator()
		logger.Error().
			Str("self_parent", selfParent.ID.String()).
			Int64("round_created", selfParent.RoundCreated).
			Int64("min_round", c.consensus.MinRound()).
			Msg("Refusing to create an event whose parents would both be old.")
		return nil
	}

	e := &Event{
		Creator:        c.selfID,
		Seq:            0,
		SelfParentGen:  common.UndefinedGeneration,
		OtherParentGen: common.UndefinedGeneration,
		OtherCreator:   common.UndefinedNodeID,
		OtherSeq:       common.UndefinedSeq,
		TimeCreated:    c.now().UnixNano(),
	}

	if selfParent != nil {
		e.Seq = selfParent.Seq + 1
		e.SelfParentID = selfParent.ID
		e.SelfParentGen = selfParent.Generation

		// Keep time strictly increasing with room for the self-parent's
		// transactions to each occupy a distinct nanosecond.
		minTime := selfParent.TimeCreated + minTimeCreatedDelta(selfParent)
		if e.TimeCreated < minTime {
			e.TimeCreated = minTime
		}
	}

	if otherParent != nil {
		e.OtherParentID = otherParent.ID
		e.OtherParentGen = otherParent.Generation
		e.OtherCreator = otherParent.Creator
		e.OtherSeq = otherParent.Seq
	}

	e.Transactions = c.supplier.Drain()
	e.rehash()

	sig, err := c.crypto.Sign(e.ID)
	if err != nil {
		return errors.Wrap(err, "failed to sign new event")
	}
	e.Signature = sig

	e.selfParent = selfParent
	e.otherParent = otherParent

	c.metrics.createdEvents.Mark(1)

	logger := log.Creator()
	logger.Debug().
		Str("event", e.ID.String()).
		Int64("seq", e.Seq).
		Uint64("other", uint64(otherID)).
		Int("txs", len(e.Transactions)).
		Msg("Created a self-event.")

	return c.emit(e)
}

// minTimeCreatedDelta is the smallest gap to leave after an event: at least
// one nanosecond, and one per transaction the event carries.
func minTimeCreatedDelta(e *Event) int64 {
	if n := int64(len(e.Transactions)); n > 1 {
		return n
	}
	return 1
}
