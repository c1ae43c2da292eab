package hashweave

import (
	"github.com/pkg/errors"
	"github.com/rcrowley/go-metrics"
)

// Metrics aggregates the intake core's counters. Drops are silent from the
// outside; these expose the per-kind counts.
type Metrics struct {
	registry metrics.Registry

	invalidStructure metrics.Counter
	invalidSignature metrics.Counter
	unknownParent    metrics.Counter
	duplicateEvents  metrics.Counter
	ancientEvents    metrics.Counter
	staleEvents      metrics.Counter
	zeroStakeEvents  metrics.Counter
	forksDetected    metrics.Counter

	receivedEvents metrics.Meter
	createdEvents  metrics.Meter
	admittedEvents metrics.Meter

	dispatchTimer metrics.Timer
	intakeTimer   metrics.Timer
}

func NewMetrics() *Metrics {
	registry := metrics.NewRegistry()

	return &Metrics{
		registry: registry,

		invalidStructure: metrics.NewRegisteredCounter("events.dropped.invalid_structure", registry),
		invalidSignature: metrics.NewRegisteredCounter("events.dropped.invalid_signature", registry),
		unknownParent:    metrics.NewRegisteredCounter("events.dropped.unknown_parent", registry),
		duplicateEvents:  metrics.NewRegisteredCounter("events.dropped.duplicate", registry),
		ancientEvents:    metrics.NewRegisteredCounter("events.dropped.ancient", registry),
		staleEvents:      metrics.NewRegisteredCounter("events.dropped.stale", registry),
		zeroStakeEvents:  metrics.NewRegisteredCounter("events.dropped.zero_stake", registry),
		forksDetected:    metrics.NewRegisteredCounter("events.forks_detected", registry),

		receivedEvents: metrics.NewRegisteredMeter("events.received", registry),
		createdEvents:  metrics.NewRegisteredMeter("events.created", registry),
		admittedEvents: metrics.NewRegisteredMeter("events.admitted", registry),

		dispatchTimer: metrics.NewRegisteredTimer("intake.dispatch", registry),
		intakeTimer:   metrics.NewRegisteredTimer("intake.add_event", registry),
	}
}

// recordDrop bumps the counter matching an event-level failure kind.
func (m *Metrics) recordDrop(err error) {
	switch errors.Cause(err) {
	case ErrInvalidEventStructure:
		m.invalidStructure.Inc(1)
	case ErrInvalidSignature:
		m.invalidSignature.Inc(1)
	case ErrUnknownParent:
		m.unknownParent.Inc(1)
	case ErrDuplicateEvent:
		m.duplicateEvents.Inc(1)
	case ErrAncientEvent:
		m.ancientEvents.Inc(1)
	case ErrStaleEvent:
		m.staleEvents.Inc(1)
	case ErrZeroStakeSource:
		m.zeroStakeEvents.Inc(1)
	}
}

func (m *Metrics) DroppedByKind() map[string]int64 {
	return map[string]int64{
		"invalid_structure": m.invalidStructure.Count(),
		"invalid_signature": m.invalidSignature.Count(),
		"unknown_parent":    m.unknownParent.Count(),
		"duplicate":         m.duplicateEvents.Count(),
		"ancient":           m.ancientEvents.Count(),
		"stale":             m.staleEvents.Count(),
		"zero_stake":        m.zeroStakeEvents.Count(),
	}
}

func (m *Metrics) Registry() metrics.Registry {
	return m.registry
}
