package hashweave

import (
	"crypto/rand"
	"sync/atomic"
	"time"

	"golang.org/x/crypto/ed25519"

	"github.com/hashweave-network/hashweave/common"
)

// fakeConsensus is a scriptable consensus collaborator: it records admitted
// events, assigns rounds, and returns whatever rounds or stale events a test
// queued up.
type fakeConsensus struct {
	events map[linkKey]*Event

	minRound int64
	maxRound int64
	minGen   int64

	assignRound int64

	pendingRounds []*Round
	staleQueue    []*Event

	addErr error
	added  []*Event
}

func newFakeConsensus() *fakeConsensus {
	return &fakeConsensus{
		events:      make(map[linkKey]*Event),
		assignRound: 1,
	}
}

func (f *fakeConsensus) AddEvent(e *Event, ab *AddressBook) ([]*Round, error) {
	if f.addErr != nil {
		return nil, f.addErr
	}

	if e.RoundCreated == 0 {
		e.RoundCreated = f.assignRound
	}

	f.events[linkKey{e.Creator, e.Seq}] = e
	f.added = append(f.added, e)

	rounds := f.pendingRounds
	f.pendingRounds = nil

	return rounds, nil
}

func (f *fakeConsensus) MinRound() int64                { return f.minRound }
func (f *fakeConsensus) MinGenerationNonAncient() int64 { return f.minGen }

func (f *fakeConsensus) Generations() Generations {
	return Generations{MinRound: f.minRound, MaxRound: f.maxRound, MinGenerationNonAncient: f.minGen}
}

func (f *fakeConsensus) Lookup(creator common.NodeID, seq int64) *Event {
	return f.events[linkKey{creator, seq}]
}

func (f *fakeConsensus) StaleEvents() []*Event {
	stale := f.staleQueue
	f.staleQueue = nil
	return stale
}

// recordingObserver notes every notification, in order.
type recordingObserver struct {
	calls []string
}

func (r *recordingObserver) ReceivedEvent(e *Event)     { r.calls = append(r.calls, "received") }
func (r *recordingObserver) PreConsensusEvent(e *Event) { r.calls = append(r.calls, "pre_consensus") }
func (r *recordingObserver) EventAdded(e *Event)        { r.calls = append(r.calls, "added") }
func (r *recordingObserver) ConsensusEvent(e *Event)    { r.calls = append(r.calls, "consensus_event") }
func (r *recordingObserver) ConsensusRound(round *Round) {
	r.calls = append(r.calls, "consensus_round")
}
func (r *recordingObserver) StaleEvent(e *Event) { r.calls = append(r.calls, "stale") }

type fakeSupplier struct {
	transactions []Transaction
	drained      int
}

func (f *fakeSupplier) Drain() []Transaction {
	f.drained++
	out := f.transactions
	f.transactions = nil
	return out
}

type fakePool struct {
	userTrans   int
	freezeTrans int
}

func (f *fakePool) NumUserTransForEvent() int { return f.userTrans }
func (f *fakePool) NumFreezeTransEvent() int  { return f.freezeTrans }

type fakeFreeze struct {
	frozen bool
}

func (f *fakeFreeze) IsEventCreationFrozen() bool { return f.frozen }

type recordedSig struct {
	round  int64
	member common.NodeID
	sig    []byte
}

type fakeRecorder struct {
	sigs []recordedSig
	err  error
}

func (f *fakeRecorder) RecordStateSig(round int64, member common.NodeID, stateHash []byte, sig []byte) error {
	if f.err != nil {
		return f.err
	}
	f.sigs = append(f.sigs, recordedSig{round: round, member: member, sig: sig})
	return nil
}

func testAddressBook(stakes ...uint64) *AddressBook {
	addresses := make([]Address, len(stakes))
	for i, stake := range stakes {
		addresses[i] = Address{ID: common.NodeID(i), Stake: stake}
	}
	return NewAddressBook(addresses)
}

func testEngine() *Ed25519Engine {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		panic(err)
	}
	return NewEd25519Engine(priv)
}

var testClock = time.Now().UnixNano()

func nextTestTime() int64 {
	return atomic.AddInt64(&testClock, int64(time.Millisecond))
}

// buildEvent assembles and hashes an event from its parents, without linking
// them: the claims are filled in, the pointers are not.
func buildEvent(creator common.NodeID, selfParent, otherParent *Event, transactions ...Transaction) *Event {
	e := &Event{
		Creator:        creator,
		SelfParentGen:  common.UndefinedGeneration,
		OtherParentGen: common.UndefinedGeneration,
		OtherCreator:   common.UndefinedNodeID,
		OtherSeq:       common.UndefinedSeq,
		TimeCreated:    nextTestTime(),
		Transactions:   transactions,
	}

	if selfParent != nil {
		e.Seq = selfParent.Seq + 1
		e.SelfParentID = selfParent.ID
		e.SelfParentGen = selfParent.Generation
		if e.TimeCreated <= selfParent.TimeCreated {
			e.TimeCreated = selfParent.TimeCreated + 1
		}
	}

	if otherParent != nil {
		e.OtherParentID = otherParent.ID
		e.OtherParentGen = otherParent.Generation
		e.OtherCreator = otherParent.Creator
		e.OtherSeq = otherParent.Seq
	}

	e.rehash()

	return e
}

// linkedEvent is buildEvent plus resolved parent pointers, for tests that
// bypass the linker.
func linkedEvent(creator common.NodeID, selfParent, otherParent *Event, transactions ...Transaction) *Event {
	e := buildEvent(creator, selfParent, otherParent, transactions...)
	e.selfParent = selfParent
	e.otherParent = otherParent
	return e
}

func userTx(creator common.NodeID, payload string) Transaction {
	return Transaction{Tag: 0, Creator: creator, Payload: []byte(payload)}
}

func receivedTask(e *Event) ReceivedEvent {
	return ReceivedEvent{
		Creator:        e.Creator,
		Seq:            e.Seq,
		SelfParentID:   e.SelfParentID,
		OtherParentID:  e.OtherParentID,
		SelfParentGen:  e.SelfParentGen,
		OtherParentGen: e.OtherParentGen,
		OtherCreator:   e.OtherCreator,
		OtherSeq:       e.OtherSeq,
		TimeCreated:    e.TimeCreated,
		Transactions:   e.Transactions,
		Signature:      e.Signature,
	}
}

// intakeRig bundles the pieces most intake-path tests need.
type intakeRig struct {
	consensus *fakeConsensus
	metrics   *Metrics
	linker    *Linker
	intake    *Intake
	observer  *recordingObserver
}

func newIntakeRig(ab *AddressBook) *intakeRig {
	consensus := newFakeConsensus()
	metrics := NewMetrics()
	linker := NewLinker(consensus, metrics)
	intake := NewIntake(consensus, ab, linker, metrics)

	observer := &recordingObserver{}
	intake.RegisterObserver(observer)

	return &intakeRig{
		consensus: consensus,
		metrics:   metrics,
		linker:    linker,
		intake:    intake,
		observer:  observer,
	}
}
