package idb

import (
	"fmt"
	"sync"

	"github.com/dr0pdb/icecaneidb/internal/common"
	"github.com/dr0pdb/icecaneidb/pkg/coordinator"
	"github.com/dr0pdb/icecaneidb/pkg/storage"
	log "github.com/sirupsen/logrus"
)

// Database is an IndexedDB style database: a set of named object stores
// whose txns are serialized by a coordinator.
// Operations on it are thread safe.
type Database struct {
	name string

	mu *sync.RWMutex

	// last issued txn id. ids are never reused.
	lastTxnID uint64

	stores map[string]*storage.Store

	comparator storage.Comparator

	coordinator *coordinator.Coordinator
}

// Open creates a new in-memory database.
func Open(name string, opts *Options) *Database {
	log.WithFields(log.Fields{"db": name}).Info("idb::database::Open; started")

	comparator := storage.DefaultComparator
	if opts != nil && opts.Comparator != nil {
		comparator = opts.Comparator
	}

	return &Database{
		name:        name,
		mu:          &sync.RWMutex{},
		stores:      make(map[string]*storage.Store),
		comparator:  comparator,
		coordinator: coordinator.NewCoordinator(name),
	}
}

// Name returns the name of the db.
func (db *Database) Name() string {
	return db.name
}

// Coordinator returns the txn coordinator of the db.
func (db *Database) Coordinator() *coordinator.Coordinator {
	return db.coordinator
}

// CreateObjectStore creates a new object store with the given name.
func (db *Database) CreateObjectStore(name string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, found := db.stores[name]; found {
		return fmt.Errorf("object store %s already exists in db %s", name, db.name)
	}
	db.stores[name] = storage.NewStoreWithCustomComparator(name, db.comparator)

	log.WithFields(log.Fields{"db": db.name, "store": name}).Info("idb::database::CreateObjectStore; done")
	return nil
}

// ObjectStoreNames returns the names of the object stores.
func (db *Database) ObjectStoreNames() []string {
	db.mu.RLock()
	defer db.mu.RUnlock()

	names := make([]string, 0, len(db.stores))
	for name := range db.stores {
		names = append(names, name)
	}
	return names
}

// Begin creates a new txn and registers it with the coordinator.
// The txn doesn't run until it is started or committed.
func (db *Database) Begin(mode Mode) (*Transaction, error) {
	db.mu.Lock()
	db.lastTxnID++
	id := db.lastTxnID
	db.mu.Unlock()

	log.WithFields(log.Fields{"db": db.name, "txnID": id, "mode": mode}).Info("idb::database::Begin; started")

	txn := newTransaction(id, db, mode)
	if err := db.coordinator.CreateTransaction(txn); err != nil {
		return nil, err
	}
	return txn, nil
}

// store returns the object store with the given name.
func (db *Database) store(name string) (*storage.Store, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	s, found := db.stores[name]
	if !found {
		return nil, common.NewNotFoundError(fmt.Sprintf("object store %s not found in db %s", name, db.name))
	}
	return s, nil
}
