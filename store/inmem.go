package store

import (
	"bytes"
	"sync"

	"github.com/google/btree"
	"github.com/pkg/errors"
)

var ErrNotFound = errors.New("store: key not found")

type item struct {
	key   []byte
	value []byte
}

func (i item) Less(other btree.Item) bool {
	return bytes.Compare(i.key, other.(item).key) < 0
}

type inmem struct {
	sync.RWMutex

	tree *btree.BTree
}

// NewInmem returns an ordered in-memory KV. Used by tests and by nodes
// running without a database path.
func NewInmem() KV {
	return &inmem{tree: btree.New(2)}
}

func (s *inmem) Get(key []byte) ([]byte, error) {
	s.RLock()
	defer s.RUnlock()

	found := s.tree.Get(item{key: key})
	if found == nil {
		return nil, errors.Wrapf(ErrNotFound, "%x", key)
	}

	value := found.(item).value
	out := make([]byte, len(value))
	copy(out, value)

	return out, nil
}

func (s *inmem) Put(key []byte, value []byte) error {
	s.Lock()
	defer s.Unlock()

	k := make([]byte, len(key))
	copy(k, key)
	v := make([]byte, len(value))
	copy(v, value)

	s.tree.ReplaceOrInsert(item{key: k, value: v})

	return nil
}

func (s *inmem) Delete(key []byte) error {
	s.Lock()
	defer s.Unlock()

	s.tree.Delete(item{key: key})

	return nil
}

func (s *inmem) Iterate(prefix []byte, fn func(key, value []byte) bool) error {
	s.RLock()
	defer s.RUnlock()

	s.tree.AscendGreaterOrEqual(item{key: prefix}, func(i btree.Item) bool {
		entry := i.(item)
		if !bytes.HasPrefix(entry.key, prefix) {
			return false
		}
		return fn(entry.key, entry.value)
	})

	return nil
}

func (s *inmem) Close() error {
	return nil
}
