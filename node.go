// Copyright (c) 2019 Hashweave
//
// Permission is hereby granted, free of charge, to any person obtaining a copy of
// this software and associated documentation files (the "Software"), to deal in
// the Software without restriction, including without limitation the rights to
// use, copy, modify, merge, publish, distribute, sublicense, and/or sell copies of
// the Software, and to permit persons to whom the Software is furnished to do so,
// subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY, FITNESS
// FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE AUTHORS OR
// COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER
// IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN
// CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.

package hashweave

import (
	"context"
	"math/rand"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"github.com/hashweave-network/hashweave/common"
	"github.com/hashweave-network/hashweave/log"
	"github.com/hashweave-network/hashweave/store"
)

// Node wires the intake core together: a bounded task queue drained by a
// single intake goroutine, a paced self-event creation loop, and the indices
// that feed creation decisions.
type Node struct {
	config      Config
	selfID      common.NodeID
	addressBook *AddressBook
	consensus   Consensus

	mapper    *Mapper
	quorum    *CriticalQuorum
	tracker   *TransactionTracker
	startup   *StartupTracker
	linker    *Linker
	intake    *Intake
	validator *Validator
	creator   *Creator
	disp      *Dispatcher
	metrics   *Metrics
	snapshots *SnapshotStore

	tasks chan Task

	kill    chan struct{}
	stopped chan struct{}
}

func NewNode(config Config, selfID common.NodeID, addressBook *AddressBook, consensus Consensus,
	crypto CryptoEngine, supplier TransactionSupplier, pool TransactionPool, freeze FreezeManager,
	recorder StateSignatureRecorder, kv store.KV) (*Node, error) {

	metrics := NewMetrics()

	snapshots, err := NewSnapshotStore(kv)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open snapshot store")
	}

	n := &Node{
		config:      config,
		selfID:      selfID,
		addressBook: addressBook,
		consensus:   consensus,
		metrics:     metrics,
		snapshots:   snapshots,

		tasks: make(chan Task, config.IntakeQueueSize),

		kill:    make(chan struct{}),
		stopped: make(chan struct{}),
	}

	n.mapper = NewMapper(selfID)
	n.quorum = NewCriticalQuorum(addressBook)
	n.tracker = NewTransactionTracker()
	n.startup = NewStartupTracker(selfID, addressBook)
	n.linker = NewLinker(consensus, metrics)
	n.intake = NewIntake(consensus, addressBook, n.linker, metrics)
	n.validator = NewValidator(config, addressBook, consensus, n.linker, crypto, n.intake, metrics)

	rules := NewRuleEngine(
		[]Rule{
			FreezeTimeRule(freeze),
			ZeroStakeRule(selfID, addressBook, config.EnableMirrorNodeMode),
			StartupThrottleRule(selfID, n.startup),
			FreezeTransactionRule(pool),
		},
		[]Rule{
			CriticalQuorumParentRule(n.quorum),
			DisabledRule(),
		},
	)

	n.creator = NewCreator(selfID, crypto, n.mapper, rules, consensus, supplier, pool, metrics,
		func(e *Event) error {
			return n.intake.AddEvent(e, false)
		})

	n.disp = NewDispatcher(n.validator, n.intake, n.creator, metrics)

	// Index observers first, so creation decisions made later in the same
	// notification pass see fresh state.
	n.intake.RegisterObserver(n.mapper)
	n.intake.RegisterObserver(n.quorum)
	n.intake.RegisterObserver(n.tracker)
	n.intake.RegisterObserver(n.startup)
	n.intake.RegisterObserver(NewSystemTransactionHandler(selfID, recorder))
	n.intake.RegisterObserver(snapshots)

	return n, nil
}

// RegisterObserver adds an external observer to the intake notification list.
// Must be called before Run.
func (n *Node) RegisterObserver(o Observer) {
	n.intake.RegisterObserver(o)
}

// Replay re-admits every persisted event, rebuilding the mapper, quorum,
// tracker and consensus DAG. Called once before Run.
func (n *Node) Replay() error {
	replayed := 0

	err := n.snapshots.Replay(func(e *Event) error {
		replayed++
		return n.intake.AddEvent(e, true)
	})
	if err != nil {
		return errors.Wrap(err, "snapshot replay failed")
	}

	if replayed > 0 {
		logger := log.Node()
		logger.Info().Int("events", replayed).Msg("Replayed events from the local snapshot.")
	}

	return nil
}

// SubmitTask enqueues a task for the intake goroutine, blocking while the
// queue is full. Returns false once the node is shutting down.
func (n *Node) SubmitTask(task Task) bool {
	select {
	case <-n.kill:
		return false
	default:
	}

	select {
	case <-n.kill:
		return false
	case n.tasks <- task:
		return true
	}
}

// Run drains the intake queue until Stop is called or consensus faults.
// It is the linearization point: every piece of mutable intake state is
// touched from here only.
func (n *Node) Run() error {
	defer close(n.stopped)

	for {
		select {
		case <-n.kill:
			return nil
		case task := <-n.tasks:
			if err := n.disp.Dispatch(task); err != nil {
				logger := log.Node()
				logger.Error().Err(err).Msg("Intake aborted.")
				return err
			}
		}
	}
}

// RunCreationLoop paces CreateSelfEvent tasks, biased toward peers whose
// input is most likely to advance consensus. Blocks until Stop.
func (n *Node) RunCreationLoop() {
	limiter := rate.NewLimiter(rate.Limit(n.config.EventsPerSecond), 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		<-n.kill
		cancel()
	}()

	for {
		if err := limiter.Wait(ctx); err != nil {
			return
		}

		n.SubmitTask(CreateSelfEvent{OtherID: n.chooseOtherParent()})
	}
}

// chooseOtherParent picks the peer whose latest event should become the next
// other-parent: usually a critical-quorum member we have not consumed yet,
// occasionally a childless peer that needs rescuing.
func (n *Node) chooseOtherParent() common.NodeID {
	size := n.addressBook.Size()
	if size <= 1 {
		return n.selfID
	}

	if p := n.config.RescueChildlessInverseProbability; p > 0 && rand.Intn(p) == 0 {
		if id, ok := n.pickChildless(); ok {
			return id
		}
	}

	// Scan from a random offset so ties break differently every time.
	offset := rand.Intn(size)
	var fallback common.NodeID = n.selfID

	for i := 0; i < size; i++ {
		id := common.NodeID((offset + i) % size)
		if id == n.selfID {
			continue
		}

		fallback = id

		if !n.quorum.IsInCriticalQuorum(id) {
			continue
		}
		if n.mapper.HasMostRecentBeenUsedAsOtherParent(id) {
			continue
		}

		return id
	}

	return fallback
}

func (n *Node) pickChildless() (common.NodeID, bool) {
	size := n.addressBook.Size()
	offset := rand.Intn(size)

	for i := 0; i < size; i++ {
		id := common.NodeID((offset + i) % size)
		if id == n.selfID {
			continue
		}
		if n.mapper.MostRecent(id) != nil && !n.mapper.DoesMostRecentHaveDescendants(id) {
			return id, true
		}
	}

	return 0, false
}

// Stop asks the intake goroutine to finish its current task and exit.
func (n *Node) Stop() {
	close(n.kill)
	<-n.stopped
}

func (n *Node) ID() common.NodeID            { return n.selfID }
func (n *Node) AddressBook() *AddressBook    { return n.addressBook }
func (n *Node) Quorum() *CriticalQuorum      { return n.quorum }
func (n *Node) Mapper() *Mapper              { return n.mapper }
func (n *Node) Tracker() *TransactionTracker { return n.tracker }
func (n *Node) Metrics() *Metrics            { return n.metrics }
