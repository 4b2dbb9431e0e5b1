package storage

import (
	"fmt"
	"sync"

	"github.com/dr0pdb/icecaneidb/internal/common"
	log "github.com/sirupsen/logrus"
)

// Store is an ordered in-memory object store.
// Single operations are thread safe. Apply is atomic with respect to other Store operations.
type Store struct {
	name string

	// mu orders Apply against single reads/writes.
	mu sync.RWMutex

	list *skipList
}

// Get returns the value associated with the given key.
// returns NotFoundError if the key is not found.
func (s *Store) Get(key []byte) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	node := s.list.get(key)
	if node == nil {
		return nil, common.NewNotFoundError(fmt.Sprintf("key %s not found in store %s", string(key), s.name))
	}
	return node.value, nil
}

// Set overwrites the data if the key already exists.
func (s *Store) Set(key, value []byte) error {
	log.WithFields(log.Fields{"store": s.name, "key": string(key)}).Debug("storage::storage::Set; started")

	s.mu.RLock()
	defer s.mu.RUnlock()

	s.list.set(key, value)
	return nil
}

// Delete deletes the data if the key exists.
// returns NotFoundError if the key is not found.
func (s *Store) Delete(key []byte) error {
	log.WithFields(log.Fields{"store": s.name, "key": string(key)}).Debug("storage::storage::Delete; started")

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.list.delete(key) == nil {
		return common.NewNotFoundError(fmt.Sprintf("key %s not found in store %s", string(key), s.name))
	}
	return nil
}

// Apply applies all the records of the batch atomically.
// Deleting a missing key is not an error inside a batch.
func (s *Store) Apply(wb *WriteBatch) error {
	log.WithFields(log.Fields{"store": s.name, "count": wb.Count()}).Info("storage::storage::Apply; started")

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, op := range wb.ops {
		switch op.kind {
		case batchOpSet:
			s.list.set(op.key, op.value)
		case batchOpDelete:
			s.list.delete(op.key)
		default:
			return fmt.Errorf("unknown batch record kind %d", op.kind)
		}
	}

	log.WithFields(log.Fields{"store": s.name}).Info("storage::storage::Apply; done")
	return nil
}

// NewIterator returns an iterator over the store. It is unpositioned; call Seek or SeekToFirst first.
func (s *Store) NewIterator() Iterator {
	return s.list.newSkipListIterator()
}

// Len returns the number of records in the store.
func (s *Store) Len() int {
	return s.list.len()
}

// Name returns the name of the store.
func (s *Store) Name() string {
	return s.name
}

// NewStoreWithCustomComparator creates a new object store whose keys are ordered using the given comparator.
func NewStoreWithCustomComparator(name string, comparator Comparator) *Store {
	return &Store{
		name: name,
		list: newSkipList(defaultMaxLevel, comparator),
	}
}

// NewStore creates a new object store with byte wise key ordering.
func NewStore(name string) *Store {
	return NewStoreWithCustomComparator(name, DefaultComparator)
}
