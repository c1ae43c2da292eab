package hashweave

import (
	"encoding/binary"

	"github.com/hashweave-network/hashweave/common"
	"github.com/hashweave-network/hashweave/log"
	"github.com/hashweave-network/hashweave/sys"
)

// SystemTransactionHandler routes platform-injected transactions. Each event's
// system transactions are walked twice: once pre-consensus and once more when
// the event settles. Recorder failures stay per-transaction; nothing here may
// block or take a lock shared with gossip or consensus threads.
type SystemTransactionHandler struct {
	NopObserver

	selfID   common.NodeID
	recorder StateSignatureRecorder
}

func NewSystemTransactionHandler(selfID common.NodeID, recorder StateSignatureRecorder) *SystemTransactionHandler {
	return &SystemTransactionHandler{selfID: selfID, recorder: recorder}
}

func (h *SystemTransactionHandler) PreConsensusEvent(e *Event) {
	h.handle(e)
}

func (h *SystemTransactionHandler) ConsensusEvent(e *Event) {
	h.handle(e)
}

func (h *SystemTransactionHandler) handle(e *Event) {
	for _, tx := range e.Transactions {
		if !tx.IsSystem() {
			continue
		}

		switch tx.Tag {
		case sys.TagStateSig, sys.TagStateSigFreeze:
			h.recordStateSig(e, tx)

		case sys.TagPingMicroseconds, sys.TagBitsPerSecond:
			// Informational only.

		case sys.TagFreeze:
			// Handled by the freeze manager at consensus time.

		default:
			logger := log.Intake()
			logger.Error().
				Uint8("tag", tx.Tag).
				Str("event", e.ID.String()).
				Msg("Unknown system transaction type.")
		}
	}
}

// recordStateSig extracts a peer's (round, signature) pair and hands it to
// the recorder. Our own signatures were recorded at signing time and are
// skipped here.
func (h *SystemTransactionHandler) recordStateSig(e *Event, tx Transaction) {
	if tx.Creator == h.selfID {
		return
	}

	round, sig, ok := unpackStateSig(tx.Payload)
	if !ok {
		logger := log.Intake()
		logger.Error().
			Str("event", e.ID.String()).
			Msg("Malformed state-signature transaction.")
		return
	}

	if err := h.recorder.RecordStateSig(round, tx.Creator, nil, sig); err != nil {
		logger := log.Intake()
		logger.Warn().
			Err(err).
			Int64("round", round).
			Uint64("member", uint64(tx.Creator)).
			Msg("Failed to record a state signature.")
	}
}

// PackStateSig serializes a (round, signature) pair into a state-signature
// transaction payload.
func PackStateSig(round int64, sig []byte) []byte {
	payload := make([]byte, 8+len(sig))
	binary.LittleEndian.PutUint64(payload[:8], uint64(round))
	copy(payload[8:], sig)
	return payload
}

func unpackStateSig(payload []byte) (round int64, sig []byte, ok bool) {
	if len(payload) < 8 {
		return 0, nil, false
	}
	return int64(binary.LittleEndian.Uint64(payload[:8])), payload[8:], true
}
