package hashweave

import (
	"sync"

	"github.com/hashweave-network/hashweave/common"
)

// Response is a creation rule's verdict. Chains stop at the first verdict
// that is not Pass.
type Response int

const (
	Pass Response = iota
	Create
	DontCreate
)

func (r Response) String() string {
	switch r {
	case Create:
		return "CREATE"
	case DontCreate:
		return "DONT_CREATE"
	default:
		return "PASS"
	}
}

type ruleKind int

const (
	ruleDisabled ruleKind = iota
	ruleStartupThrottle
	ruleFreezeTransaction
	ruleZeroStake
	ruleFreezeTime
	ruleCriticalQuorumParent
)

// Rule is one creation rule. The set of rules is closed: a rule is a tagged
// variant, not an extension point, so chains stay enumerable.
type Rule struct {
	kind ruleKind

	selfID      common.NodeID
	addressBook *AddressBook
	mirrorMode  bool
	pool        TransactionPool
	freeze      FreezeManager
	quorum      *CriticalQuorum
	startup     *StartupTracker
}

// DisabledRule passes unconditionally. It stands in wherever a rule slot
// must exist but the behavior is switched off.
func DisabledRule() Rule {
	return Rule{kind: ruleDisabled}
}

// StartupThrottleRule holds event creation back until the network has seen
// every node produce at least once, with node 0 going first.
func StartupThrottleRule(selfID common.NodeID, startup *StartupTracker) Rule {
	return Rule{kind: ruleStartupThrottle, selfID: selfID, startup: startup}
}

// FreezeTransactionRule forces creation while a freeze transaction waits in
// the pool.
func FreezeTransactionRule(pool TransactionPool) Rule {
	return Rule{kind: ruleFreezeTransaction, pool: pool}
}

// ZeroStakeRule blocks creation on zero-stake nodes running in mirror mode.
func ZeroStakeRule(selfID common.NodeID, addressBook *AddressBook, mirrorMode bool) Rule {
	return Rule{kind: ruleZeroStake, selfID: selfID, addressBook: addressBook, mirrorMode: mirrorMode}
}

// FreezeTimeRule blocks creation while the freeze manager has the platform
// frozen.
func FreezeTimeRule(freeze FreezeManager) Rule {
	return Rule{kind: ruleFreezeTime, freeze: freeze}
}

// CriticalQuorumParentRule only lets an event through when at least one of
// its parents was created by a critical-quorum member.
func CriticalQuorumParentRule(quorum *CriticalQuorum) Rule {
	return Rule{kind: ruleCriticalQuorumParent, quorum: quorum}
}

// ShouldCreateEvent is the basic chain entry of a rule.
func (r Rule) ShouldCreateEvent() Response {
	switch r.kind {
	case ruleStartupThrottle:
		if r.startup.AllStarted() {
			return Pass
		}
		if r.startup.SelfCreated() || (r.selfID != 0 && !r.startup.NodeStarted(0)) {
			return DontCreate
		}
		return Pass

	case ruleFreezeTransaction:
		if r.pool.NumFreezeTransEvent() > 0 {
			return Create
		}
		return Pass

	case ruleZeroStake:
		if r.mirrorMode && r.addressBook.IsZeroStake(r.selfID) {
			return DontCreate
		}
		return Pass

	case ruleFreezeTime:
		if r.freeze.IsEventCreationFrozen() {
			return DontCreate
		}
		return Pass

	default:
		return Pass
	}
}

// ShouldCreateEventWithParents is the parent-based chain entry of a rule.
func (r Rule) ShouldCreateEventWithParents(selfParent, otherParent *Event) Response {
	switch r.kind {
	case ruleCriticalQuorumParent:
		// A genesis event has no parents to judge.
		if selfParent == nil && otherParent == nil {
			return Pass
		}
		if selfParent != nil && r.quorum.IsInCriticalQuorum(selfParent.Creator) {
			return Pass
		}
		if otherParent != nil && r.quorum.IsInCriticalQuorum(otherParent.Creator) {
			return Pass
		}
		return DontCreate

	default:
		return Pass
	}
}

// RuleEngine composes the two rule chains. Each chain answers with its first
// non-Pass verdict.
type RuleEngine struct {
	basic  []Rule
	parent []Rule
}

func NewRuleEngine(basic, parent []Rule) *RuleEngine {
	return &RuleEngine{basic: basic, parent: parent}
}

func (re *RuleEngine) ShouldCreateEvent() Response {
	for _, rule := range re.basic {
		if response := rule.ShouldCreateEvent(); response != Pass {
			return response
		}
	}
	return Pass
}

func (re *RuleEngine) ShouldCreateEventWithParents(selfParent, otherParent *Event) Response {
	for _, rule := range re.parent {
		if response := rule.ShouldCreateEventWithParents(selfParent, otherParent); response != Pass {
			return response
		}
	}
	return Pass
}

// StartupTracker records which nodes have produced at least one admitted
// event. The startup throttle consults it; intake feeds it.
type StartupTracker struct {
	sync.RWMutex
	NopObserver

	selfID      common.NodeID
	total       int
	started     map[common.NodeID]struct{}
	selfCreated bool
}

func NewStartupTracker(selfID common.NodeID, addressBook *AddressBook) *StartupTracker {
	return &StartupTracker{
		selfID:  selfID,
		total:   addressBook.Size(),
		started: make(map[common.NodeID]struct{}),
	}
}

func (s *StartupTracker) EventAdded(e *Event) {
	s.Lock()
	defer s.Unlock()

	s.started[e.Creator] = struct{}{}
	if e.Creator == s.selfID {
		s.selfCreated = true
	}
}

func (s *StartupTracker) AllStarted() bool {
	s.RLock()
	defer s.RUnlock()

	return len(s.started) >= s.total
}

func (s *StartupTracker) NodeStarted(id common.NodeID) bool {
	s.RLock()
	defer s.RUnlock()

	_, ok := s.started[id]
	return ok
}

func (s *StartupTracker) SelfCreated() bool {
	s.RLock()
	defer s.RUnlock()

	return s.selfCreated
}
