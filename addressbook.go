package hashweave

import "github.com/hashweave-network/hashweave/common"

// Address is one entry of the address book: a node's identity and stake for
// the current round.
type Address struct {
	ID        common.NodeID
	Stake     uint64
	PublicKey common.PublicKey
}

// AddressBook is an immutable per-round snapshot of all participants.
// Node ids are dense: the id doubles as the position.
type AddressBook struct {
	addresses       []Address
	totalStake      uint64
	numberWithStake int
}

func NewAddressBook(addresses []Address) *AddressBook {
	ab := &AddressBook{addresses: addresses}

	for i := range addresses {
		ab.totalStake += addresses[i].Stake
		if addresses[i].Stake > 0 {
			ab.numberWithStake++
		}
	}

	return ab
}

func (ab *AddressBook) Size() int {
	return len(ab.addresses)
}

func (ab *AddressBook) TotalStake() uint64 {
	return ab.totalStake
}

func (ab *AddressBook) NumberWithStake() int {
	return ab.numberWithStake
}

func (ab *AddressBook) Contains(id common.NodeID) bool {
	return uint64(id) < uint64(len(ab.addresses))
}

func (ab *AddressBook) Address(id common.NodeID) Address {
	return ab.addresses[id]
}

func (ab *AddressBook) Stake(id common.NodeID) uint64 {
	if !ab.Contains(id) {
		return 0
	}
	return ab.addresses[id].Stake
}

func (ab *AddressBook) PublicKey(id common.NodeID) common.PublicKey {
	return ab.addresses[id].PublicKey
}

func (ab *AddressBook) IsZeroStake(id common.NodeID) bool {
	return ab.Stake(id) == 0
}
