package hashweave

import (
	"encoding/binary"
	"fmt"

	"github.com/pkg/errors"
	"golang.org/x/crypto/blake2b"

	"github.com/hashweave-network/hashweave/common"
	"github.com/hashweave-network/hashweave/sys"
)

// Transaction is a single payload carried inside an event. Transactions
// tagged sys.TagApp originate from the application; everything else is a
// system transaction injected by the platform.
type Transaction struct {
	Tag     byte
	Creator common.NodeID
	Payload []byte
}

func (t Transaction) IsSystem() bool {
	return t.Tag != sys.TagApp
}

func (t Transaction) Size() int {
	return 1 + 8 + len(t.Payload)
}

func (t Transaction) Marshal() []byte {
	buf := make([]byte, 0, t.Size()+4)

	buf = append(buf, t.Tag)

	var creator [8]byte
	binary.LittleEndian.PutUint64(creator[:], uint64(t.Creator))
	buf = append(buf, creator[:]...)

	var length [4]byte
	binary.LittleEndian.PutUint32(length[:], uint32(len(t.Payload)))
	buf = append(buf, length[:]...)
	buf = append(buf, t.Payload...)

	return buf
}

// Event is a vertex of the hashgraph: a signed record carrying at most two
// parent references and a batch of transactions. An event is treated as
// immutable once it has been admitted; round and time-received fields are
// assigned by the consensus layer before admission completes.
type Event struct {
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

	ID         common.EventID
	Generation int64

	RoundCreated  int64
	RoundReceived int64
	TimeReceived  int64

	selfParent  *Event
	otherParent *Event

	fromSnapshot bool
}

func (e *Event) HasSelfParent() bool {
	return !e.SelfParentID.IsZero()
}

func (e *Event) HasOtherParent() bool {
	return !e.OtherParentID.IsZero()
}

func (e *Event) SelfParent() *Event {
	return e.selfParent
}

func (e *Event) OtherParent() *Event {
	return e.otherParent
}

func (e *Event) IsEmpty() bool {
	return len(e.Transactions) == 0
}

func (e *Event) HasUserTransactions() bool {
	for _, tx := range e.Transactions {
		if !tx.IsSystem() {
			return true
		}
	}
	return false
}

func (e *Event) TotalTransactionSize() int {
	total := 0
	for _, tx := range e.Transactions {
		total += tx.Size()
	}
	return total
}

// IsOld reports whether the event's round has fallen at or below the
// consensus minimum round. Events with no round assigned yet are not old.
func (e *Event) IsOld(minRound int64) bool {
	return e.RoundCreated > 0 && e.RoundCreated <= minRound
}

// IsAncient reports whether the event's generation has fallen below the
// non-ancient watermark.
func (e *Event) IsAncient(minGenerationNonAncient int64) bool {
	return e.Generation < minGenerationNonAncient
}

// computeGeneration derives the generation from the claimed parent
// generations: one past the highest, with absent parents counting as -1.
func computeGeneration(selfParentGen, otherParentGen int64) int64 {
	max := selfParentGen
	if otherParentGen > max {
		max = otherParentGen
	}
	return max + 1
}

// hashedPayload serializes exactly the fields covered by the event's base
// hash and signature.
func (e *Event) hashedPayload() []byte {
	buf := make([]byte, 0, 8*4+common.SizeEventID*2+4+e.TotalTransactionSize())

	var scratch [8]byte

	binary.LittleEndian.PutUint64(scratch[:], uint64(e.Creator))
	buf = append(buf, scratch[:]...)

	binary.LittleEndian.PutUint64(scratch[:], uint64(e.SelfParentGen))
	buf = append(buf, scratch[:]...)

	binary.LittleEndian.PutUint64(scratch[:], uint64(e.OtherParentGen))
	buf = append(buf, scratch[:]...)

	buf = append(buf, e.SelfParentID[:]...)
	buf = append(buf, e.OtherParentID[:]...)

	binary.LittleEndian.PutUint64(scratch[:], uint64(e.TimeCreated))
	buf = append(buf, scratch[:]...)

	var count [4]byte
	binary.LittleEndian.PutUint32(count[:], uint32(len(e.Transactions)))
	buf = append(buf, count[:]...)

	for _, tx := range e.Transactions {
		buf = append(buf, tx.Marshal()...)
	}

	return buf
}

// rehash recomputes the event's base hash and generation from its contents.
func (e *Event) rehash() {
	e.ID = blake2b.Sum256(e.hashedPayload())
	e.Generation = computeGeneration(e.SelfParentGen, e.OtherParentGen)
}

func (e *Event) String() string {
	return fmt.Sprintf("Event{%s, creator=%d, seq=%d, gen=%d}", e.ID, e.Creator, e.Seq, e.Generation)
}

// Marshal serializes the full event record, consensus fields included. The
// layout is fixed-width headers followed by the transaction list.
func (e *Event) Marshal() []byte {
	buf := make([]byte, 0, 8*9+common.SizeEventID*2+common.SizeSignature+4+e.TotalTransactionSize())

	var scratch [8]byte
	writeU64 := func(v uint64) {
		binary.LittleEndian.PutUint64(scratch[:], v)
		buf = append(buf, scratch[:]...)
	}

	writeU64(uint64(e.Creator))
	writeU64(uint64(e.Seq))
	writeU64(uint64(e.SelfParentGen))
	writeU64(uint64(e.OtherParentGen))

	buf = append(buf, e.SelfParentID[:]...)
	buf = append(buf, e.OtherParentID[:]...)

	writeU64(uint64(e.OtherCreator))
	writeU64(uint64(e.OtherSeq))
	writeU64(uint64(e.TimeCreated))
	writeU64(uint64(e.RoundCreated))
	writeU64(uint64(e.RoundReceived))
	writeU64(uint64(e.TimeReceived))

	buf = append(buf, e.Signature[:]...)

	var count [4]byte
	binary.LittleEndian.PutUint32(count[:], uint32(len(e.Transactions)))
	buf = append(buf, count[:]...)

	for _, tx := range e.Transactions {
		buf = append(buf, tx.Marshal()...)
	}

	return buf
}

// UnmarshalEvent parses a record produced by Marshal. The base hash and
// generation are recomputed rather than trusted.
func UnmarshalEvent(buf []byte) (*Event, error) {
	header := 8*4 + common.SizeEventID*2 + 8*6 + common.SizeSignature + 4
	if len(buf) < header {
		return nil, errors.New("event record is truncated")
	}

	e := &Event{}
	offset := 0

	readU64 := func() uint64 {
		v := binary.LittleEndian.Uint64(buf[offset:])
		offset += 8
		return v
	}

	e.Creator = common.NodeID(readU64())
	e.Seq = int64(readU64())
	e.SelfParentGen = int64(readU64())
	e.OtherParentGen = int64(readU64())

	copy(e.SelfParentID[:], buf[offset:])
	offset += common.SizeEventID
	copy(e.OtherParentID[:], buf[offset:])
	offset += common.SizeEventID

	e.OtherCreator = common.NodeID(readU64())
	e.OtherSeq = int64(readU64())
	e.TimeCreated = int64(readU64())
	e.RoundCreated = int64(readU64())
	e.RoundReceived = int64(readU64())
	e.TimeReceived = int64(readU64())

	copy(e.Signature[:], buf[offset:])
	offset += common.SizeSignature

	count := int(binary.LittleEndian.Uint32(buf[offset:]))
	offset += 4

	for i := 0; i < count; i++ {
		if len(buf) < offset+1+8+4 {
			return nil, errors.New("event transaction list is truncated")
		}

		tx := Transaction{Tag: buf[offset]}
		offset++

		tx.Creator = common.NodeID(binary.LittleEndian.Uint64(buf[offset:]))
		offset += 8

		size := int(binary.LittleEndian.Uint32(buf[offset:]))
		offset += 4

		if len(buf) < offset+size {
			return nil, errors.New("event transaction payload is truncated")
		}

		tx.Payload = make([]byte, size)
		copy(tx.Payload, buf[offset:offset+size])
		offset += size

		e.Transactions = append(e.Transactions, tx)
	}

	e.rehash()

	return e, nil
}
