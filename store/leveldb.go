package store

import (
	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

type leveldbKV struct {
	db *leveldb.DB
}

// NewLevelDB opens (or creates) a LevelDB-backed KV at path.
func NewLevelDB(path string) (KV, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open leveldb at %q", path)
	}

	return &leveldbKV{db: db}, nil
}

func (s *leveldbKV) Get(key []byte) ([]byte, error) {
	value, err := s.db.Get(key, nil)
	if err == leveldb.ErrNotFound {
		return nil, errors.Wrapf(ErrNotFound, "%x", key)
	}
	return value, err
}

func (s *leveldbKV) Put(key []byte, value []byte) error {
	return s.db.Put(key, value, nil)
}

func (s *leveldbKV) Delete(key []byte) error {
	return s.db.Delete(key, nil)
}

func (s *leveldbKV) Iterate(prefix []byte, fn func(key, value []byte) bool) error {
	it := s.db.NewIterator(util.BytesPrefix(prefix), nil)
	defer it.Release()

	for it.Next() {
		if !fn(it.Key(), it.Value()) {
			break
		}
	}

	return it.Error()
}

func (s *leveldbKV) Close() error {
	return s.db.Close()
}
