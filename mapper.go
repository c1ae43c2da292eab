package hashweave

import (
	"sync"

	"github.com/hashweave-network/hashweave/common"
)

type mapperEntry struct {
	event                   *Event
	hasDescendant           bool
	hasDirectSelfDescendant bool
}

// Mapper indexes the most recent event per creator. It is written only by the
// intake goroutine; the creation-decision path reads it concurrently, so all
// access goes through the lock.
type Mapper struct {
	sync.RWMutex
	NopObserver

	selfID  common.NodeID
	entries map[common.NodeID]*mapperEntry
}

func NewMapper(selfID common.NodeID) *Mapper {
	return &Mapper{
		selfID:  selfID,
		entries: make(map[common.NodeID]*mapperEntry),
	}
}

// EventAdded replaces the creator's most-recent slot with e, resetting both
// descendant flags, and marks e's other-parent as consumed if it is still the
// tracked event for its creator.
func (m *Mapper) EventAdded(e *Event) {
	m.Lock()
	defer m.Unlock()

	m.entries[e.Creator] = &mapperEntry{event: e}

	other := e.OtherParent()
	if other == nil {
		return
	}

	tracked, ok := m.entries[other.Creator]
	if !ok || tracked.event.ID != other.ID {
		return
	}

	tracked.hasDescendant = true
	if e.Creator == m.selfID {
		tracked.hasDirectSelfDescendant = true
	}
}

func (m *Mapper) MostRecent(id common.NodeID) *Event {
	m.RLock()
	defer m.RUnlock()

	entry, ok := m.entries[id]
	if !ok {
		return nil
	}
	return entry.event
}

// HasMostRecentBeenUsedAsOtherParent reports whether one of our own events
// already consumed the creator's latest event as other-parent.
func (m *Mapper) HasMostRecentBeenUsedAsOtherParent(id common.NodeID) bool {
	m.RLock()
	defer m.RUnlock()

	entry, ok := m.entries[id]
	return ok && entry.hasDirectSelfDescendant
}

func (m *Mapper) DoesMostRecentHaveDescendants(id common.NodeID) bool {
	m.RLock()
	defer m.RUnlock()

	entry, ok := m.entries[id]
	return ok && entry.hasDescendant
}

func (m *Mapper) HighestGeneration(id common.NodeID) int64 {
	m.RLock()
	defer m.RUnlock()

	entry, ok := m.entries[id]
	if !ok {
		return common.UndefinedGeneration
	}
	return entry.event.Generation
}

func (m *Mapper) MostRecentEventsByCreator() map[common.NodeID]*Event {
	m.RLock()
	defer m.RUnlock()

	out := make(map[common.NodeID]*Event, len(m.entries))
	for id, entry := range m.entries {
		out[id] = entry.event
	}
	return out
}
