package hashweave

import (
	"github.com/pkg/errors"

	"github.com/hashweave-network/hashweave/log"
)

// Validator is the stateless admission gate for received events. It owns the
// checks that do not depend on parents being present yet; parent-dependent
// claims are verified through the linker's resolver, and re-verified by the
// linker for events that were held waiting on a parent.
type Validator struct {
	config      Config
	addressBook *AddressBook
	consensus   Consensus
	linker      *Linker
	crypto      CryptoEngine
	intake      *Intake
	metrics     *Metrics
}

func NewValidator(config Config, addressBook *AddressBook, consensus Consensus, linker *Linker, crypto CryptoEngine, intake *Intake, metrics *Metrics) *Validator {
	return &Validator{
		config:      config,
		addressBook: addressBook,
		consensus:   consensus,
		linker:      linker,
		crypto:      crypto,
		intake:      intake,
		metrics:     metrics,
	}
}

// Validate gates one received event. On success the materialized event enters
// the intake path; on failure the event is dead, a counter is bumped, and no
// observer hears about it. Event-level errors are never retried; only a
// consensus fault propagates.
func (v *Validator) Validate(task ReceivedEvent) error {
	e := task.Materialize()

	if err := v.check(e); err != nil {
		v.metrics.recordDrop(err)

		logger := log.Validator()
		logger.Debug().
			Err(err).
			Uint64("creator", uint64(e.Creator)).
			Int64("seq", e.Seq).
			Msg("Dropped an invalid event.")

		return nil
	}

	return v.intake.AddUnlinkedEvent(e)
}

func (v *Validator) check(e *Event) error {
	// Dedup before anything else; observers only ever see an event once.
	if known := v.linker.lookup(e.Creator, e.Seq); known != nil && known.ID == e.ID {
		return errors.Wrapf(ErrDuplicateEvent, "creator %d seq %d", e.Creator, e.Seq)
	}

	if v.config.EnableMirrorNodeMode && v.addressBook.IsZeroStake(e.Creator) {
		return errors.Wrapf(ErrZeroStakeSource, "creator %d", e.Creator)
	}

	if !v.addressBook.Contains(e.Creator) {
		return errors.Wrapf(ErrInvalidEventStructure, "creator %d is not in the address book", e.Creator)
	}

	if e.TotalTransactionSize() > v.config.MaxTransactionBytesPerEvent {
		return errors.Wrapf(ErrInvalidEventStructure,
			"transactions total %d bytes, limit is %d", e.TotalTransactionSize(), v.config.MaxTransactionBytesPerEvent)
	}

	if e.TimeCreated <= 0 {
		return errors.Wrapf(ErrInvalidEventStructure, "non-positive time created %d", e.TimeCreated)
	}

	// Parent claims are checked against whatever resolves right now. A parent
	// that is still unknown and non-ancient is the linker's business: the
	// event will be held, and the same claims re-checked on release.
	minGen := v.consensus.MinGenerationNonAncient()

	self, errSelf := v.linker.resolveParent(selfParentRef(e), minGen)
	other, errOther := v.linker.resolveParent(otherParentRef(e), minGen)

	if err := checkParentClaims(e, self, other); err != nil {
		return err
	}

	// The old-parents check needs both parents settled; for a held event the
	// linker repeats it on release.
	if errSelf == nil && errOther == nil {
		if err := checkNotBothParentsOld(self, other, v.consensus.MinRound()); err != nil {
			return err
		}
	}

	if v.config.VerifyEventSignatures {
		if !v.crypto.Verify(e.ID, e.Signature, v.addressBook.PublicKey(e.Creator)) {
			return errors.Wrapf(ErrInvalidSignature, "creator %d seq %d", e.Creator, e.Seq)
		}
	}

	return nil
}

// checkParentClaims verifies every claim that needs a materialized parent.
// Nil parents are skipped here: either absent, ancient, or not yet resolvable.
func checkParentClaims(e *Event, self, other *Event) error {
	if self != nil {
		if self.Generation != e.SelfParentGen {
			return errors.Wrapf(ErrInvalidEventStructure,
				"claimed self-parent generation %d, actual %d", e.SelfParentGen, self.Generation)
		}
		if self.ID != e.SelfParentID {
			return errors.Wrap(ErrInvalidEventStructure, "claimed self-parent hash does not match")
		}
		if e.TimeCreated <= self.TimeCreated {
			return errors.Wrapf(ErrInvalidEventStructure,
				"time created %d is not past self-parent's %d", e.TimeCreated, self.TimeCreated)
		}
	}

	if other != nil {
		if other.Generation != e.OtherParentGen {
			return errors.Wrapf(ErrInvalidEventStructure,
				"claimed other-parent generation %d, actual %d", e.OtherParentGen, other.Generation)
		}
		if other.ID != e.OtherParentID {
			return errors.Wrap(ErrInvalidEventStructure, "claimed other-parent hash does not match")
		}
	}

	return nil
}

// checkNotBothParentsOld rejects events that can never reach a live round:
// the self-parent is old and the other-parent is absent or old too.
func checkNotBothParentsOld(self, other *Event, minRound int64) error {
	if self != nil && self.IsOld(minRound) && (other == nil || other.IsOld(minRound)) {
		return errors.Wrap(ErrAncientEvent, "both parents are old")
	}
	return nil
}
