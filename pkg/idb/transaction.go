package idb

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dr0pdb/icecaneidb/internal/common"
	"github.com/dr0pdb/icecaneidb/pkg/coordinator"
	"github.com/dr0pdb/icecaneidb/pkg/storage"
	log "github.com/sirupsen/logrus"
)

// Transaction is a database txn. Requests queued on it are processed in order
// once the coordinator gives it the running slot.
// Writes are buffered and applied atomically on commit.
type Transaction struct {
	// unique transaction id
	id uint64

	db   *Database
	mode Mode

	mu   sync.Mutex
	cond *sync.Cond

	// pending requests not yet processed.
	pending []*Request

	// sets and deletes are the buffered writes per object store.
	// invariant is that a key can only be present in one of the two.
	sets    map[string]map[string][]byte
	deletes map[string]map[string]bool

	// started is set once the txn was handed to the coordinator, running once the coordinator ran it.
	started, running bool

	// commitRequested and abortRequested are the pending outcome.
	commitRequested, abortRequested bool

	// committed and aborted are the final outcome.
	committed, aborted bool

	// err is the cause of a failed commit.
	err error

	done chan struct{}
}

var _ coordinator.Transaction = (*Transaction)(nil)

// newTransaction creates a new transaction.
func newTransaction(id uint64, db *Database, mode Mode) *Transaction {
	t := &Transaction{
		id:      id,
		db:      db,
		mode:    mode,
		pending: make([]*Request, 0),
		sets:    make(map[string]map[string][]byte),
		deletes: make(map[string]map[string]bool),
		done:    make(chan struct{}),
	}
	t.cond = sync.NewCond(&t.mu)
	return t
}

// ID returns the id of the txn.
func (t *Transaction) ID() uint64 {
	return t.id
}

// Mode returns the access mode of the txn.
func (t *Transaction) Mode() Mode {
	return t.mode
}

// Run is called by the coordinator when the txn gets the running slot.
// The requests are processed on a separate goroutine.
func (t *Transaction) Run() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.aborted || t.committed || t.running {
		// finished while it was being scheduled.
		return
	}
	t.running = true

	log.WithFields(log.Fields{"db": t.db.name, "txnID": t.id}).Info("idb::transaction::Run; started")
	go t.process()
}

// Get queues a read of the key from the object store.
// The request fails with NotFoundError if the key doesn't exist.
func (t *Transaction) Get(store string, key []byte) *Request {
	return t.enqueue(newRequest(requestGet, store, key, nil))
}

// Put queues a write of the value for the key in the object store.
func (t *Transaction) Put(store string, key, value []byte) *Request {
	return t.enqueue(newRequest(requestPut, store, key, value))
}

// Delete queues a delete of the key from the object store.
func (t *Transaction) Delete(store string, key []byte) *Request {
	return t.enqueue(newRequest(requestDelete, store, key, nil))
}

// Scan queues a read of at most limit records with key >= start from the object store.
// nil start means the first key. limit <= 0 means no limit.
func (t *Transaction) Scan(store string, start []byte, limit int) *Request {
	r := newRequest(requestScan, store, start, nil)
	r.limit = limit
	return t.enqueue(r)
}

// Start asks the coordinator to schedule the txn. Requests can still be queued afterwards.
func (t *Transaction) Start() error {
	t.mu.Lock()
	if err := t.checkOpen(); err != nil {
		t.mu.Unlock()
		return err
	}
	if t.started {
		t.mu.Unlock()
		return nil
	}
	t.started = true
	t.mu.Unlock()

	return t.db.coordinator.StartTransaction(t.id)
}

// Commit starts the txn if needed and marks it to commit once every queued request is processed.
// Use Wait to block until the commit is done.
func (t *Transaction) Commit() error {
	log.WithFields(log.Fields{"db": t.db.name, "txnID": t.id}).Info("idb::transaction::Commit; started")

	t.mu.Lock()
	if err := t.checkOpen(); err != nil {
		t.mu.Unlock()
		return err
	}
	t.commitRequested = true
	t.cond.Broadcast()
	needsStart := !t.started
	t.started = true
	t.mu.Unlock()

	if needsStart {
		return t.db.coordinator.StartTransaction(t.id)
	}
	return nil
}

// Abort discards the buffered writes and fails every pending request.
// A txn that isn't running yet is finished right away.
func (t *Transaction) Abort() error {
	log.WithFields(log.Fields{"db": t.db.name, "txnID": t.id}).Info("idb::transaction::Abort; started")

	t.mu.Lock()
	if t.aborted || t.abortRequested {
		t.mu.Unlock()
		return common.NewAbortedTransactionError(fmt.Sprintf("txn %d is already aborted or is in progress", t.id))
	}
	if t.committed || t.commitRequested {
		t.mu.Unlock()
		return common.NewCommittedTransactionError(fmt.Sprintf("txn %d is already committed or is in progress", t.id))
	}

	if t.running {
		// the worker finishes the txn.
		t.abortRequested = true
		t.cond.Broadcast()
		t.mu.Unlock()
		return nil
	}

	t.finishLocked(false, nil)
	t.mu.Unlock()

	return t.db.coordinator.FinishTransaction(t.id)
}

// Wait blocks until the txn is finished or the ctx is done.
// returns nil if the txn committed, the cause otherwise.
func (t *Transaction) Wait(ctx context.Context) error {
	select {
	case <-t.done:
	case <-ctx.Done():
		return ctx.Err()
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.committed {
		return nil
	}
	if t.err != nil {
		return t.err
	}
	return common.NewAbortedTransactionError(fmt.Sprintf("txn %d was aborted", t.id))
}

// Done returns a channel that is closed once the txn is finished.
func (t *Transaction) Done() <-chan struct{} {
	return t.done
}

func (t *Transaction) enqueue(r *Request) *Request {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.checkOpen(); err != nil {
		r.resolve(nil, nil, err)
		return r
	}
	if t.mode == ReadOnly && (r.kind == requestPut || r.kind == requestDelete) {
		r.resolve(nil, nil, common.NewReadOnlyTransactionError(fmt.Sprintf("txn %d is read only", t.id)))
		return r
	}

	t.pending = append(t.pending, r)
	t.cond.Broadcast()
	return r
}

// checkOpen returns an error if no more requests can be queued. Requires the lock.
func (t *Transaction) checkOpen() error {
	if t.aborted || t.abortRequested {
		return common.NewAbortedTransactionError(fmt.Sprintf("txn %d is already aborted", t.id))
	}
	if t.committed || t.commitRequested {
		return common.NewCommittedTransactionError(fmt.Sprintf("txn %d is already committed", t.id))
	}
	return nil
}

// process runs the requests of a running txn until it commits or aborts.
func (t *Transaction) process() {
	t.mu.Lock()
	for {
		if t.abortRequested {
			t.finishLocked(false, nil)
			break
		}
		if len(t.pending) > 0 {
			r := t.pending[0]
			t.pending = t.pending[1:]
			t.execute(r)
			continue
		}
		if t.commitRequested {
			err := t.applyWrites()
			t.finishLocked(err == nil, err)
			break
		}
		t.cond.Wait()
	}
	t.mu.Unlock()

	if err := t.db.coordinator.FinishTransaction(t.id); err != nil {
		log.WithFields(log.Fields{"db": t.db.name, "txnID": t.id, "err": err}).Error("idb::transaction::process; unable to finish txn")
	}
}

// execute processes a single request. Requires the lock.
func (t *Transaction) execute(r *Request) {
	log.WithFields(log.Fields{"db": t.db.name, "txnID": t.id, "store": r.store, "key": string(r.key)}).Debug("idb::transaction::execute; started")

	s, err := t.db.store(r.store)
	if err != nil {
		r.resolve(nil, nil, err)
		return
	}

	switch r.kind {
	case requestGet:
		r.resolve(t.get(s, r.key))
	case requestPut:
		t.set(r.store, r.key, r.value)
		r.resolve(nil, nil, nil)
	case requestDelete:
		t.delete(r.store, r.key)
		r.resolve(nil, nil, nil)
	case requestScan:
		records := t.scan(s, r.key, r.limit)
		r.resolve(nil, records, nil)
	}
}

// get reads the key through the buffered writes.
func (t *Transaction) get(s *storage.Store, key []byte) ([]byte, []Record, error) {
	skey := string(key)
	if t.deletes[s.Name()][skey] {
		return nil, nil, common.NewNotFoundError(fmt.Sprintf("key %v not found", skey))
	}
	if value, found := t.sets[s.Name()][skey]; found {
		return value, nil, nil
	}

	value, err := s.Get(key)
	return value, nil, err
}

func (t *Transaction) set(store string, key, value []byte) {
	skey := string(key)
	if t.sets[store] == nil {
		t.sets[store] = make(map[string][]byte)
	}
	delete(t.deletes[store], skey)
	t.sets[store][skey] = value
}

func (t *Transaction) delete(store string, key []byte) {
	skey := string(key)
	if t.deletes[store] == nil {
		t.deletes[store] = make(map[string]bool)
	}
	delete(t.sets[store], skey)
	t.deletes[store][skey] = true
}

// scan merges the committed records with the buffered writes.
func (t *Transaction) scan(s *storage.Store, start []byte, limit int) []Record {
	cmp := t.db.comparator
	merged := make(map[string][]byte)

	itr := s.NewIterator()
	if start == nil {
		itr.SeekToFirst()
	} else {
		itr.Seek(start)
	}
	for ; itr.Valid(); itr.Next() {
		merged[string(itr.Key())] = itr.Value()
	}
	for key, value := range t.sets[s.Name()] {
		if start == nil || cmp.Compare([]byte(key), start) >= 0 {
			merged[key] = value
		}
	}
	for key := range t.deletes[s.Name()] {
		delete(merged, key)
	}

	records := make([]Record, 0, len(merged))
	for key, value := range merged {
		records = append(records, Record{Key: []byte(key), Value: value})
	}
	sort.Slice(records, func(i, j int) bool {
		return cmp.Compare(records[i].Key, records[j].Key) < 0
	})

	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records
}

// applyWrites applies the buffered writes to every touched object store.
func (t *Transaction) applyWrites() error {
	batches := make(map[string]*storage.WriteBatch)
	batch := func(store string) *storage.WriteBatch {
		if batches[store] == nil {
			batches[store] = &storage.WriteBatch{}
		}
		return batches[store]
	}

	for store, sets := range t.sets {
		for key, value := range sets {
			batch(store).Set([]byte(key), value)
		}
	}
	for store, deletes := range t.deletes {
		for key := range deletes {
			batch(store).Delete([]byte(key))
		}
	}

	for store, wb := range batches {
		s, err := t.db.store(store)
		if err != nil {
			return err
		}
		if err := s.Apply(wb); err != nil {
			log.WithFields(log.Fields{"db": t.db.name, "txnID": t.id, "store": store, "err": err}).Error("idb::transaction::applyWrites; unable to apply writes")
			return err
		}
	}
	return nil
}

// finishLocked records the outcome and fails the requests left. Requires the lock.
func (t *Transaction) finishLocked(committed bool, err error) {
	if committed {
		t.committed = true
	} else {
		t.aborted = true
		t.err = err
	}

	for _, r := range t.pending {
		r.resolve(nil, nil, common.NewAbortedTransactionError(fmt.Sprintf("txn %d was aborted", t.id)))
	}
	t.pending = nil
	t.sets = nil
	t.deletes = nil
	close(t.done)

	log.WithFields(log.Fields{"db": t.db.name, "txnID": t.id, "committed": committed}).Info("idb::transaction::finish; done")
}
