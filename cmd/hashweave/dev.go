package main

import (
	"github.com/hashweave-network/hashweave"
	"github.com/hashweave-network/hashweave/common"
)

// devConsensus is a single-node stand-in for the virtual-voting engine, good
// enough to exercise the intake pipeline locally: every event takes its
// highest parent round (at least 1), moving one round on once that round
// already holds as many events as the address book has nodes, and a round
// settles as soon as a later round appears. It is not a BFT algorithm and never will be.
type devConsensus struct {
	events  map[devKey]*hashweave.Event
	byRound map[int64][]*hashweave.Event

	minRound int64
	maxRound int64
	minGen   int64
}

type devKey struct {
	creator common.NodeID
	seq     int64
}

func newDevConsensus() *devConsensus {
	return &devConsensus{
		events:  make(map[devKey]*hashweave.Event),
		byRound: make(map[int64][]*hashweave.Event),
	}
}

func (d *devConsensus) AddEvent(e *hashweave.Event, ab *hashweave.AddressBook) ([]*hashweave.Round, error) {
	round := int64(1)
	if self := e.SelfParent(); self != nil && self.RoundCreated >= round {
		round = self.RoundCreated
	}
	if other := e.OtherParent(); other != nil && other.RoundCreated >= round {
		round = other.RoundCreated
	}
	if len(d.byRound[round]) >= ab.Size() {
		round++
	}

	e.RoundCreated = round
	d.events[devKey{e.Creator, e.Seq}] = e
	d.byRound[round] = append(d.byRound[round], e)

	if round <= d.maxRound {
		return nil, nil
	}
	d.maxRound = round

	// Rounds strictly before the new one are settled.
	var settled []*hashweave.Round
	for r := d.minRound + 1; r < round; r++ {
		events := d.byRound[r]
		for _, se := range events {
			se.RoundReceived = round
		}

		d.minRound = r
		if gen := r - 1; gen > d.minGen {
			d.minGen = gen
		}

		settled = append(settled, &hashweave.Round{
			Index:       r,
			Generations: d.Generations(),
			Events:      events,
		})
	}

	return settled, nil
}

func (d *devConsensus) MinRound() int64                { return d.minRound }
func (d *devConsensus) MinGenerationNonAncient() int64 { return d.minGen }

func (d *devConsensus) Generations() hashweave.Generations {
	return hashweave.Generations{
		MinRound:                d.minRound,
		MaxRound:                d.maxRound,
		MinGenerationNonAncient: d.minGen,
	}
}

func (d *devConsensus) Lookup(creator common.NodeID, seq int64) *hashweave.Event {
	return d.events[devKey{creator, seq}]
}

func (d *devConsensus) StaleEvents() []*hashweave.Event { return nil }
