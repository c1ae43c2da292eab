package hashweave

import (
	"time"

	"github.com/pkg/errors"

	"github.com/hashweave-network/hashweave/common"
	"github.com/hashweave-network/hashweave/log"
)

// Intake drives events through linking into consensus and fans notifications
// out to observers. All of its state, and the state of everything it calls,
// belongs to the single intake goroutine.
type Intake struct {
	consensus   Consensus
	addressBook *AddressBook
	linker      *Linker
	observers   observerRegistry
	metrics     *Metrics

	// latest admitted time-created per creator, for events whose self-parent
	// is gone ancient and can no longer anchor the monotonic check.
	lastTimeCreated map[common.NodeID]int64
}

func NewIntake(consensus Consensus, addressBook *AddressBook, linker *Linker, metrics *Metrics) *Intake {
	return &Intake{
		consensus:       consensus,
		addressBook:     addressBook,
		linker:          linker,
		metrics:         metrics,
		lastTimeCreated: make(map[common.NodeID]int64),
	}
}

func (in *Intake) RegisterObserver(o Observer) {
	in.observers.register(o)
}

// AddUnlinkedEvent runs a validated but possibly parentless event through the
// linker, then admits whatever became linkable. Only a consensus fault
// propagates; event-level failures end with a counter and a log line.
func (in *Intake) AddUnlinkedEvent(e *Event) error {
	in.metrics.receivedEvents.Mark(1)
	in.observers.receivedEvent(e)

	if err := in.linker.LinkEvent(e); err != nil {
		in.metrics.recordDrop(err)

		logger := log.Intake()
		logger.Debug().Err(err).Str("event", e.ID.String()).Msg("Linker refused an event.")

		return nil
	}

	return in.drainLinked()
}

func (in *Intake) drainLinked() error {
	for in.linker.HasLinkedEvents() {
		if err := in.AddEvent(in.linker.PollLinkedEvent(), false); err != nil {
			return err
		}
	}
	return nil
}

// AddEvent admits one fully-linked event into consensus and dispatches the
// observer sequence: preConsensusEvent, eventAdded, then consensusRound and
// staleEvent as the consensus layer settles rounds.
func (in *Intake) AddEvent(e *Event, fromSnapshot bool) error {
	defer in.metrics.intakeTimer.UpdateSince(time.Now())

	if !in.checkTimeCreated(e) {
		in.metrics.recordDrop(ErrInvalidEventStructure)
		return nil
	}

	if !fromSnapshot && in.isPastLiveRounds(e) {
		in.metrics.recordDrop(ErrStaleEvent)

		logger := log.Intake()
		logger.Warn().
			Str("event", e.ID.String()).
			Int64("min_round", in.consensus.MinRound()).
			Msg("Event arrived too late to reach a live round.")

		return nil
	}

	if known := in.consensus.Lookup(e.Creator, e.Seq); known != nil && known.ID == e.ID {
		in.metrics.recordDrop(ErrDuplicateEvent)
		return nil
	}

	e.fromSnapshot = fromSnapshot
	if e.TimeReceived == 0 {
		e.TimeReceived = time.Now().UnixNano()
	}

	in.observers.preConsensusEvent(e)

	rounds, err := in.consensus.AddEvent(e, in.addressBook)
	if err != nil {
		// Consensus state is presumed corrupt; the intake loop must stop.
		return errors.Wrap(ErrConsensusFault, err.Error())
	}

	in.metrics.admittedEvents.Mark(1)
	if e.TimeCreated > in.lastTimeCreated[e.Creator] {
		in.lastTimeCreated[e.Creator] = e.TimeCreated
	}

	in.observers.eventAdded(e)

	for _, round := range rounds {
		in.linker.UpdateGenerations(round.Generations)

		for _, settled := range round.Events {
			in.observers.consensusEvent(settled)
		}

		in.observers.consensusRound(round)
	}

	for _, stale := range in.consensus.StaleEvents() {
		in.metrics.staleEvents.Inc(1)
		in.observers.staleEvent(stale)
	}

	return nil
}

// checkTimeCreated enforces strictly increasing creation times per creator.
// The self-parent anchors the check; when it is gone ancient, the latest
// admitted time from that creator stands in.
func (in *Intake) checkTimeCreated(e *Event) bool {
	if e.TimeCreated <= 0 {
		return false
	}

	if self := e.SelfParent(); self != nil {
		return e.TimeCreated > self.TimeCreated
	}

	if e.HasSelfParent() && e.TimeCreated <= in.lastTimeCreated[e.Creator] {
		return false
	}

	return true
}

// isPastLiveRounds reports whether the event's best possible round (one past
// its highest parent round) already fell below the consensus minimum.
func (in *Intake) isPastLiveRounds(e *Event) bool {
	if e.SelfParent() == nil && e.OtherParent() == nil {
		return false
	}

	maxRound := int64(0)
	if self := e.SelfParent(); self != nil && self.RoundCreated > maxRound {
		maxRound = self.RoundCreated
	}
	if other := e.OtherParent(); other != nil && other.RoundCreated > maxRound {
		maxRound = other.RoundCreated
	}

	return maxRound+1 < in.consensus.MinRound()
}
