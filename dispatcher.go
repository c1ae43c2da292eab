package hashweave

import (
	"time"

	"github.com/hashweave-network/hashweave/log"
)

// Dispatcher is the single entry point for intake tasks. It routes each typed
// task to the validator, the intake, or the creator, and times every dispatch.
// No retries: a task runs once.
type Dispatcher struct {
	validator *Validator
	intake    *Intake
	creator   *Creator
	metrics   *Metrics
}

func NewDispatcher(validator *Validator, intake *Intake, creator *Creator, metrics *Metrics) *Dispatcher {
	return &Dispatcher{
		validator: validator,
		intake:    intake,
		creator:   creator,
		metrics:   metrics,
	}
}

func (d *Dispatcher) Dispatch(task Task) error {
	defer d.metrics.dispatchTimer.UpdateSince(time.Now())

	switch t := task.(type) {
	case ReceivedEvent:
		return d.validator.Validate(t)

	case ValidatedEvent:
		return d.intake.AddEvent(t.Event, t.FromSnapshot)

	case CreateSelfEvent:
		return d.creator.CreateEvent(t.OtherID)

	default:
		logger := log.Intake()
		logger.Error().Interface("task", task).Msg("Dropped a task of unknown type.")
		return nil
	}
}
