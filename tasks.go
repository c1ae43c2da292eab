package hashweave

import "github.com/hashweave-network/hashweave/common"

// Task is a unit of work routed through the intake dispatcher. Exactly three
// variants exist; anything else is logged and dropped.
type Task interface {
	isTask()
}

// ReceivedEvent is a raw event pushed by the gossip layer, not yet validated.
type ReceivedEvent struct {
	Creator common.NodeID
	Seq     int64

	SelfParentID   common.EventID
	OtherParentID  common.EventID
	SelfParentGen  int64
	OtherParentGen int64
	OtherCreator   common.NodeID
	OtherSeq       int64

	TimeCreated  int64
	Transactions []Transaction
	Signature    common.Signature
}

// ValidatedEvent wraps an event that was validated upstream, e.g. replayed
// from a signed state snapshot or created locally.
type ValidatedEvent struct {
	Event        *Event
	FromSnapshot bool
}

// CreateSelfEvent asks the event creator to build a new self-event with the
// given peer's latest event as other-parent.
type CreateSelfEvent struct {
	OtherID common.NodeID
}

func (ReceivedEvent) isTask()   {}
func (ValidatedEvent) isTask()  {}
func (CreateSelfEvent) isTask() {}

// Materialize builds the immutable event record a received task describes.
// The base hash and generation are derived from the claimed contents.
func (r *ReceivedEvent) Materialize() *Event {
	e := &Event{
		Creator:        r.Creator,
		Seq:            r.Seq,
		SelfParentID:   r.SelfParentID,
		OtherParentID:  r.OtherParentID,
		SelfParentGen:  r.SelfParentGen,
		OtherParentGen: r.OtherParentGen,
		OtherCreator:   r.OtherCreator,
		OtherSeq:       r.OtherSeq,
		TimeCreated:    r.TimeCreated,
		Transactions:   r.Transactions,
		Signature:      r.Signature,
	}
	e.rehash()

	return e
}
