package hashweave

import "github.com/pkg/errors"

// Event-level failures. All of these are recoverable locally: the event is
// dropped, a per-kind counter is bumped, and intake continues. ErrConsensusFault
// alone is fatal to the intake loop.
var (
	ErrInvalidEventStructure = errors.New("event structure is invalid")
	ErrInvalidSignature      = errors.New("event signature is invalid")
	ErrUnknownParent         = errors.New("event parent is unknown and not ancient")
	ErrDuplicateEvent        = errors.New("event is already known")
	ErrAncientEvent          = errors.New("event is ancient")
	ErrStaleEvent            = errors.New("event is stale")
	ErrZeroStakeSource       = errors.New("event creator has zero stake")

	ErrConsensusFault = errors.New("consensus layer failed")
)
