package hashweave

import (
	"sync"

	"github.com/hashweave-network/hashweave/log"
)

// TransactionTracker counts user-transaction-bearing events between admission
// and consensus, and remembers the last rounds at which user transactions
// settled.
type TransactionTracker struct {
	sync.RWMutex
	NopObserver

	numUserTransEvents            int
	lastRRwithUserTransaction     int64
	lastRoundReceivedAllTransCons int64
}

func NewTransactionTracker() *TransactionTracker {
	return &TransactionTracker{}
}

func (t *TransactionTracker) EventAdded(e *Event) {
	if !e.HasUserTransactions() {
		return
	}

	t.Lock()
	defer t.Unlock()

	t.numUserTransEvents++
}

func (t *TransactionTracker) ConsensusEvent(e *Event) {
	if !e.HasUserTransactions() {
		return
	}

	t.Lock()
	defer t.Unlock()

	t.decrement()
	t.lastRRwithUserTransaction = e.RoundReceived

	if t.numUserTransEvents == 0 {
		t.lastRoundReceivedAllTransCons = t.lastRRwithUserTransaction
	}
}

func (t *TransactionTracker) StaleEvent(e *Event) {
	if !e.HasUserTransactions() {
		return
	}

	t.Lock()
	defer t.Unlock()

	t.decrement()

	if t.numUserTransEvents == 0 {
		t.lastRoundReceivedAllTransCons = t.lastRRwithUserTransaction
	}
}

// decrement enforces the non-negativity invariant. Going below zero means an
// event settled twice, which the intake pipeline is supposed to rule out.
func (t *TransactionTracker) decrement() {
	if t.numUserTransEvents == 0 {
		logger := log.Intake()
		logger.Error().Msg("Transaction tracker underflow: an event settled more than once.")
		return
	}

	t.numUserTransEvents--
}

func (t *TransactionTracker) NumUserTransEvents() int {
	t.RLock()
	defer t.RUnlock()

	return t.numUserTransEvents
}

func (t *TransactionTracker) LastRoundReceivedWithUserTransaction() int64 {
	t.RLock()
	defer t.RUnlock()

	return t.lastRRwithUserTransaction
}

func (t *TransactionTracker) LastRoundReceivedAllTransCons() int64 {
	t.RLock()
	defer t.RUnlock()

	return t.lastRoundReceivedAllTransCons
}
