package hashweave

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hashweave-network/hashweave/common"
)

// validatorRig assembles the full receive path: validator in front, linker
// and intake behind, a real crypto engine signing for every address.
type validatorRig struct {
	*intakeRig

	validator *Validator
	engines   []*Ed25519Engine
}

func newValidatorRig(config Config, stakes ...uint64) *validatorRig {
	engines := make([]*Ed25519Engine, len(stakes))
	addresses := make([]Address, len(stakes))

	for i, stake := range stakes {
		engines[i] = testEngine()
		addresses[i] = Address{
			ID:        common.NodeID(i),
			Stake:     stake,
			PublicKey: engines[i].PublicKey(),
		}
	}

	ab := NewAddressBook(addresses)
	rig := newIntakeRig(ab)

	validator := NewValidator(config, ab, rig.consensus, rig.linker, engines[0], rig.intake, rig.metrics)

	return &validatorRig{intakeRig: rig, validator: validator, engines: engines}
}

func (r *validatorRig) sign(e *Event) {
	sig, err := r.engines[e.Creator].Sign(e.ID)
	if err != nil {
		panic(err)
	}
	e.Signature = sig
}

func TestValidatorAdmitsWellFormedEvent(t *testing.T) {
	t.Parallel()

	rig := newValidatorRig(DefaultConfig(), 10, 10)

	e := buildEvent(1, nil, nil, userTx(1, "hello"))
	rig.sign(e)

	assert.NoError(t, rig.validator.Validate(receivedTask(e)))
	assert.Len(t, rig.consensus.added, 1)
	assert.Equal(t, e.ID, rig.consensus.added[0].ID)
}

func TestValidatorRejectsBadSignature(t *testing.T) {
	t.Parallel()

	rig := newValidatorRig(DefaultConfig(), 10, 10)

	e := buildEvent(1, nil, nil)
	// Signed by the wrong key.
	sig, err := rig.engines[0].Sign(e.ID)
	assert.NoError(t, err)
	e.Signature = sig

	assert.NoError(t, rig.validator.Validate(receivedTask(e)))
	assert.Empty(t, rig.consensus.added)
	assert.EqualValues(t, 1, rig.metrics.invalidSignature.Count())
}

func TestValidatorRejectsOversizeTransactions(t *testing.T) {
	t.Parallel()

	config := DefaultConfig()
	config.MaxTransactionBytesPerEvent = 16

	rig := newValidatorRig(config, 10, 10)

	e := buildEvent(1, nil, nil, userTx(1, "a payload comfortably past sixteen bytes"))
	rig.sign(e)

	assert.NoError(t, rig.validator.Validate(receivedTask(e)))
	assert.Empty(t, rig.consensus.added)
	assert.EqualValues(t, 1, rig.metrics.invalidStructure.Count())
}

func TestValidatorRejectsClaimedGenerationMismatch(t *testing.T) {
	t.Parallel()

	rig := newValidatorRig(DefaultConfig(), 10, 10)

	parent := buildEvent(1, nil, nil)
	rig.sign(parent)
	assert.NoError(t, rig.validator.Validate(receivedTask(parent)))

	child := buildEvent(1, parent, nil)
	child.SelfParentGen = parent.Generation + 3
	child.rehash()
	rig.sign(child)

	assert.NoError(t, rig.validator.Validate(receivedTask(child)))
	assert.Len(t, rig.consensus.added, 1)
	assert.EqualValues(t, 1, rig.metrics.invalidStructure.Count())
}

func TestValidatorRejectsClaimedHashMismatch(t *testing.T) {
	t.Parallel()

	rig := newValidatorRig(DefaultConfig(), 10, 10)

	parent := buildEvent(1, nil, nil)
	rig.sign(parent)
	assert.NoError(t, rig.validator.Validate(receivedTask(parent)))

	child := buildEvent(1, parent, nil)
	child.SelfParentID[0] ^= 0xff
	child.rehash()
	rig.sign(child)

	assert.NoError(t, rig.validator.Validate(receivedTask(child)))
	assert.Len(t, rig.consensus.added, 1)
	assert.EqualValues(t, 1, rig.metrics.invalidStructure.Count())
}

func TestValidatorRejectsNonMonotonicTime(t *testing.T) {
	t.Parallel()

	rig := newValidatorRig(DefaultConfig(), 10, 10)

	parent := buildEvent(1, nil, nil)
	rig.sign(parent)
	assert.NoError(t, rig.validator.Validate(receivedTask(parent)))

	child := buildEvent(1, parent, nil)
	child.TimeCreated = parent.TimeCreated
	child.rehash()
	rig.sign(child)

	assert.NoError(t, rig.validator.Validate(receivedTask(child)))
	assert.Len(t, rig.consensus.added, 1)
	assert.EqualValues(t, 1, rig.metrics.invalidStructure.Count())
}

func TestValidatorRejectsZeroStakeCreatorInMirrorMode(t *testing.T) {
	t.Parallel()

	config := DefaultConfig()
	config.EnableMirrorNodeMode = true

	rig := newValidatorRig(config, 10, 0)

	e := buildEvent(1, nil, nil)
	rig.sign(e)

	assert.NoError(t, rig.validator.Validate(receivedTask(e)))
	assert.Empty(t, rig.consensus.added)
	assert.EqualValues(t, 1, rig.metrics.zeroStakeEvents.Count())
}

func TestValidatorDeduplicatesBeforeAnyNotification(t *testing.T) {
	t.Parallel()

	rig := newValidatorRig(DefaultConfig(), 10, 10)

	e := buildEvent(1, nil, nil)
	rig.sign(e)

	assert.NoError(t, rig.validator.Validate(receivedTask(e)))
	before := len(rig.observer.calls)

	assert.NoError(t, rig.validator.Validate(receivedTask(e)))

	assert.Equal(t, before, len(rig.observer.calls))
	assert.EqualValues(t, 1, rig.metrics.duplicateEvents.Count())
}

func TestValidatorRejectsUnknownCreator(t *testing.T) {
	t.Parallel()

	rig := newValidatorRig(DefaultConfig(), 10, 10)

	e := buildEvent(7, nil, nil)

	assert.NoError(t, rig.validator.Validate(receivedTask(e)))
	assert.Empty(t, rig.consensus.added)
	assert.EqualValues(t, 1, rig.metrics.invalidStructure.Count())
}

func TestValidatorHoldsEventWithMissingParent(t *testing.T) {
	t.Parallel()

	rig := newValidatorRig(DefaultConfig(), 10, 10)

	parent := buildEvent(1, nil, nil)
	rig.sign(parent)

	child := buildEvent(1, parent, nil)
	rig.sign(child)

	// The child passes validation and waits in the linker.
	assert.NoError(t, rig.validator.Validate(receivedTask(child)))
	assert.Empty(t, rig.consensus.added)
	assert.Equal(t, 1, rig.linker.NumHeld())

	assert.NoError(t, rig.validator.Validate(receivedTask(parent)))
	assert.Len(t, rig.consensus.added, 2)
	assert.Equal(t, parent.ID, rig.consensus.added[0].ID)
	assert.Equal(t, child.ID, rig.consensus.added[1].ID)
}
