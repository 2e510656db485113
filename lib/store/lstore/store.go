package lstore

import (
	"github.com/ValentinKolb/nvboot/lib/nvram"
	"github.com/ValentinKolb/nvboot/lib/store"
)

type storeImpl struct {
	list    *store.EntryList
	commits uint32
}

// NewLocalStore creates a new in-memory store holding a copy of entries.
func NewLocalStore(entries ...nvram.Entry) store.IStore {
	list := &store.EntryList{}
	for _, e := range entries {
		list.Set(e.KeyString(), e.Value)
	}
	list.MarkClean()
	return &storeImpl{list: list}
}

// NewLocalStoreFrom creates a new in-memory store holding a copy of rng,
// duplicates included.
func NewLocalStoreFrom(rng nvram.Range) store.IStore {
	return &storeImpl{list: store.NewEntryList(rng)}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store.IStore)
// --------------------------------------------------------------------------

func (s *storeImpl) Get(key string) ([]byte, bool, error) {
	val, ok := s.list.Get(key)
	return val, ok, nil
}

func (s *storeImpl) Has(key string) (bool, error) {
	_, ok := s.list.Get(key)
	return ok, nil
}

func (s *storeImpl) Set(key string, value []byte) error {
	if err := store.CheckKey(key); err != nil {
		return err
	}
	s.list.Set(key, value)
	return nil
}

func (s *storeImpl) Delete(key string) error {
	s.list.Delete(key)
	return nil
}

func (s *storeImpl) Range() (nvram.Range, error) {
	return s.list.Range()
}

func (s *storeImpl) Commit() error {
	s.list.MarkClean()
	s.commits++
	return nil
}

func (s *storeImpl) GetInfo() (store.Info, error) {
	rng, err := s.list.Range()
	if err != nil {
		return store.Info{}, err
	}
	return store.Info{
		Entries:      s.list.Len(),
		PayloadBytes: len(rng.Payload()),
		Duplicates:   rng.Duplicates(),
		Dirty:        s.list.Dirty(),
		Counter:      s.commits,
		ActiveRegion: -1,
	}, nil
}
