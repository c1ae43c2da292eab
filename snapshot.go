package hashweave

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/hashweave-network/hashweave/log"
	"github.com/hashweave-network/hashweave/store"
)

var (
	keyEvents     = []byte("event_")
	keyEventCount = []byte("event_count")
	keyWatermarks = []byte("watermarks")
)

// SnapshotStore persists admitted events in admission order, plus the
// consensus watermarks, so a restarting node can rebuild its indices by
// replaying them through intake.
type SnapshotStore struct {
	NopObserver

	kv    store.KV
	count uint64
}

func NewSnapshotStore(kv store.KV) (*SnapshotStore, error) {
	s := &SnapshotStore{kv: kv}

	if raw, err := kv.Get(keyEventCount); err == nil {
		s.count = binary.BigEndian.Uint64(raw)
	} else if errors.Cause(err) != store.ErrNotFound {
		return nil, err
	}

	return s, nil
}

func eventKey(index uint64) []byte {
	key := make([]byte, len(keyEvents)+8)
	copy(key, keyEvents)
	// Big-endian so key order is admission order.
	binary.BigEndian.PutUint64(key[len(keyEvents):], index)
	return key
}

func (s *SnapshotStore) SaveEvent(e *Event) error {
	if err := s.kv.Put(eventKey(s.count), e.Marshal()); err != nil {
		return errors.Wrap(err, "failed to persist event")
	}

	s.count++

	var raw [8]byte
	binary.BigEndian.PutUint64(raw[:], s.count)

	return s.kv.Put(keyEventCount, raw[:])
}

func (s *SnapshotStore) SaveWatermarks(g Generations) error {
	var raw [24]byte
	binary.BigEndian.PutUint64(raw[0:], uint64(g.MinRound))
	binary.BigEndian.PutUint64(raw[8:], uint64(g.MaxRound))
	binary.BigEndian.PutUint64(raw[16:], uint64(g.MinGenerationNonAncient))

	return s.kv.Put(keyWatermarks, raw[:])
}

func (s *SnapshotStore) Watermarks() (Generations, error) {
	raw, err := s.kv.Get(keyWatermarks)
	if err != nil {
		if errors.Cause(err) == store.ErrNotFound {
			return Generations{}, nil
		}
		return Generations{}, err
	}

	return Generations{
		MinRound:                int64(binary.BigEndian.Uint64(raw[0:])),
		MaxRound:                int64(binary.BigEndian.Uint64(raw[8:])),
		MinGenerationNonAncient: int64(binary.BigEndian.Uint64(raw[16:])),
	}, nil
}

func (s *SnapshotStore) NumEvents() uint64 {
	return s.count
}

// EventAdded persists each freshly admitted event. Events re-admitted from
// the snapshot itself are already on disk.
func (s *SnapshotStore) EventAdded(e *Event) {
	if e.fromSnapshot {
		return
	}

	if err := s.SaveEvent(e); err != nil {
		logger := log.Intake()
		logger.Error().Err(err).Str("event", e.ID.String()).Msg("Failed to persist an admitted event.")
	}
}

func (s *SnapshotStore) ConsensusRound(r *Round) {
	if err := s.SaveWatermarks(r.Generations); err != nil {
		logger := log.Intake()
		logger.Error().Err(err).Msg("Failed to persist consensus watermarks.")
	}
}

// Replay walks persisted events in admission order.
func (s *SnapshotStore) Replay(fn func(*Event) error) error {
	var replayErr error

	err := s.kv.Iterate(keyEvents, func(key, value []byte) bool {
		if len(key) != len(keyEvents)+8 {
			// Skip the count entry sharing the prefix.
			return true
		}

		e, err := UnmarshalEvent(value)
		if err != nil {
			replayErr = errors.Wrapf(err, "corrupt event record at %x", key)
			return false
		}

		if err := fn(e); err != nil {
			replayErr = err
			return false
		}

		return true
	})

	if err != nil {
		return err
	}
	return replayErr
}
