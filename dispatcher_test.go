package hashweave

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type bogusTask struct{}

func (bogusTask) isTask() {}

func newDispatcherRig() (*Dispatcher, *validatorRig, *creatorRig) {
	vrig := newValidatorRig(DefaultConfig(), 10, 10)

	crig := &creatorRig{
		consensus: vrig.consensus,
		mapper:    NewMapper(0),
		supplier:  &fakeSupplier{},
		pool:      &fakePool{},
		engine:    vrig.engines[0],
	}
	crig.creator = NewCreator(0, crig.engine, crig.mapper, NewRuleEngine(nil, nil),
		crig.consensus, crig.supplier, crig.pool, vrig.metrics,
		func(e *Event) error {
			crig.emitted = append(crig.emitted, e)
			return vrig.intake.AddEvent(e, false)
		})

	return NewDispatcher(vrig.validator, vrig.intake, crig.creator, vrig.metrics), vrig, crig
}

func TestDispatcherRoutesReceivedEvents(t *testing.T) {
	t.Parallel()

	dispatcher, vrig, _ := newDispatcherRig()

	e := buildEvent(1, nil, nil)
	vrig.sign(e)

	assert.NoError(t, dispatcher.Dispatch(receivedTask(e)))
	assert.Len(t, vrig.consensus.added, 1)
}

func TestDispatcherRoutesValidatedEvents(t *testing.T) {
	t.Parallel()

	dispatcher, vrig, _ := newDispatcherRig()

	e := linkedEvent(0, nil, nil)

	assert.NoError(t, dispatcher.Dispatch(ValidatedEvent{Event: e}))
	assert.Equal(t, []*Event{e}, vrig.consensus.added)
}

func TestDispatcherRoutesCreateSelfEvent(t *testing.T) {
	t.Parallel()

	dispatcher, vrig, crig := newDispatcherRig()

	assert.NoError(t, dispatcher.Dispatch(CreateSelfEvent{OtherID: 0}))
	assert.Len(t, crig.emitted, 1)
	assert.Len(t, vrig.consensus.added, 1)
}

func TestDispatcherDropsUnknownTasks(t *testing.T) {
	t.Parallel()

	dispatcher, vrig, _ := newDispatcherRig()

	assert.NoError(t, dispatcher.Dispatch(bogusTask{}))
	assert.Empty(t, vrig.consensus.added)
}
