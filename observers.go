package hashweave

import (
	"github.com/hashweave-network/hashweave/log"
)

// Observer receives intake notifications. Dispatch order is a contract:
// ReceivedEvent, then PreConsensusEvent, then EventAdded, then zero or more
// ConsensusRound (with ConsensusEvent per event, in consensus order), then
// zero or more StaleEvent. Observers run synchronously on the intake
// goroutine and must not call back into the intake path.
type Observer interface {
	ReceivedEvent(e *Event)
	PreConsensusEvent(e *Event)
	EventAdded(e *Event)
	ConsensusEvent(e *Event)
	ConsensusRound(r *Round)
	StaleEvent(e *Event)
}

// NopObserver is an embeddable no-op implementation of Observer.
type NopObserver struct{}

func (NopObserver) ReceivedEvent(*Event)     {}
func (NopObserver) PreConsensusEvent(*Event) {}
func (NopObserver) EventAdded(*Event)        {}
func (NopObserver) ConsensusEvent(*Event)    {}
func (NopObserver) ConsensusRound(*Round)    {}
func (NopObserver) StaleEvent(*Event)        {}

type observerRegistry struct {
	observers []Observer
}

func (r *observerRegistry) register(o Observer) {
	r.observers = append(r.observers, o)
}

// notify fans a notification out to every observer. A panicking observer is
// logged and skipped; intake continues.
func (r *observerRegistry) notify(fn func(Observer)) {
	for _, o := range r.observers {
		func() {
			defer func() {
				if err := recover(); err != nil {
					logger := log.Intake()
					logger.Error().Interface("panic", err).Msg("Observer panicked during notification.")
				}
			}()

			fn(o)
		}()
	}
}

func (r *observerRegistry) receivedEvent(e *Event) {
	r.notify(func(o Observer) { o.ReceivedEvent(e) })
}

func (r *observerRegistry) preConsensusEvent(e *Event) {
	r.notify(func(o Observer) { o.PreConsensusEvent(e) })
}

func (r *observerRegistry) eventAdded(e *Event) {
	r.notify(func(o Observer) { o.EventAdded(e) })
}

func (r *observerRegistry) consensusEvent(e *Event) {
	r.notify(func(o Observer) { o.ConsensusEvent(e) })
}

func (r *observerRegistry) consensusRound(round *Round) {
	r.notify(func(o Observer) { o.ConsensusRound(round) })
}

func (r *observerRegistry) staleEvent(e *Event) {
	r.notify(func(o Observer) { o.StaleEvent(e) })
}
