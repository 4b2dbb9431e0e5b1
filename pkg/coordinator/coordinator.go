package coordinator

import (
	"fmt"
	"sync"

	"github.com/dr0pdb/icecaneidb/internal/common"
	log "github.com/sirupsen/logrus"
)

/*
	The coordinator serializes the txns of a database.

	For now, only one txn is allowed to run at a time. Started txns wait in a
	FIFO ready queue and the head of the queue is promoted as soon as the
	running slot frees up. There is no preemption and no timeout, so a txn
	that never finishes holds the slot forever.
*/

// Coordinator tracks the lifecycle of txns and hands the running slot to one txn at a time.
// Operations on it are thread safe.
type Coordinator struct {
	name string

	mu sync.Mutex

	// all contains every txn between create and finish.
	all map[uint64]Transaction

	// started is the ready set. queue keeps the start order of the same ids.
	started map[uint64]bool
	queue   []uint64

	// running has at most one entry.
	running map[uint64]bool
}

// NewCoordinator creates a new coordinator.
// name is used to label the logs and metrics of this coordinator.
func NewCoordinator(name string) *Coordinator {
	c := &Coordinator{
		name:    name,
		all:     make(map[uint64]Transaction),
		started: make(map[uint64]bool),
		queue:   make([]uint64, 0),
		running: make(map[uint64]bool),
	}
	c.updateGauges()
	return c
}

// Name returns the name of the coordinator.
func (c *Coordinator) Name() string {
	return c.name
}

// CreateTransaction starts tracking the txn. It doesn't schedule anything.
// returns DuplicateTransactionError if a txn with the same id is already tracked.
func (c *Coordinator) CreateTransaction(txn Transaction) error {
	id := txn.ID()
	log.WithFields(log.Fields{"coordinator": c.name, "txnID": id}).Info("coordinator::coordinator::CreateTransaction; started")

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, found := c.all[id]; found {
		c.countMisuse("create")
		log.WithFields(log.Fields{"coordinator": c.name, "txnID": id}).Error("coordinator::coordinator::CreateTransaction; duplicate txn")
		return common.NewDuplicateTransactionError(id)
	}

	c.all[id] = txn
	c.countEvent(eventCreated)
	c.updateGauges()

	log.WithFields(log.Fields{"coordinator": c.name, "txnID": id}).Info("coordinator::coordinator::CreateTransaction; done")
	return nil
}

// StartTransaction moves a created txn to the ready queue and runs a scheduling pass.
// returns UnknownTransactionError if the txn isn't tracked.
// returns TransactionStateError if the txn was already started.
func (c *Coordinator) StartTransaction(id uint64) error {
	log.WithFields(log.Fields{"coordinator": c.name, "txnID": id}).Info("coordinator::coordinator::StartTransaction; started")

	c.mu.Lock()
	if _, found := c.all[id]; !found {
		c.countMisuse("start")
		c.mu.Unlock()
		log.WithFields(log.Fields{"coordinator": c.name, "txnID": id}).Error("coordinator::coordinator::StartTransaction; unknown txn")
		return common.NewUnknownTransactionError(id)
	}
	if c.started[id] || c.running[id] {
		state := c.stateLocked(id)
		c.countMisuse("start")
		c.mu.Unlock()
		log.WithFields(log.Fields{"coordinator": c.name, "txnID": id, "state": state}).Error("coordinator::coordinator::StartTransaction; txn already started")
		return common.NewTransactionStateError(fmt.Sprintf("txn %d can't be started; it is already %s", id, state))
	}

	c.started[id] = true
	c.queue = append(c.queue, id)
	c.countEvent(eventStarted)

	next := c.processStartedTransactions()
	c.updateGauges()
	c.mu.Unlock()

	c.run(next)

	log.WithFields(log.Fields{"coordinator": c.name, "txnID": id}).Info("coordinator::coordinator::StartTransaction; done")
	return nil
}

// FinishTransaction stops tracking the txn and runs a scheduling pass so that the next txn can run.
// A txn can be finished from any state, including created.
// returns UnknownTransactionError if the txn isn't tracked.
func (c *Coordinator) FinishTransaction(id uint64) error {
	log.WithFields(log.Fields{"coordinator": c.name, "txnID": id}).Info("coordinator::coordinator::FinishTransaction; started")

	c.mu.Lock()
	if _, found := c.all[id]; !found {
		c.countMisuse("finish")
		c.mu.Unlock()
		log.WithFields(log.Fields{"coordinator": c.name, "txnID": id}).Error("coordinator::coordinator::FinishTransaction; unknown txn")
		return common.NewUnknownTransactionError(id)
	}

	if c.started[id] {
		delete(c.started, id)
		c.removeFromQueue(id)
	} else if c.running[id] {
		delete(c.running, id)
	}
	delete(c.all, id)
	c.countEvent(eventFinished)

	next := c.processStartedTransactions()
	c.updateGauges()
	c.mu.Unlock()

	c.run(next)

	log.WithFields(log.Fields{"coordinator": c.name, "txnID": id}).Info("coordinator::coordinator::FinishTransaction; done")
	return nil
}

// IsActive returns true if the txn is either waiting in the ready queue or running.
// returns UnknownTransactionError if the txn isn't tracked.
// returns InvariantViolationError if the bookkeeping of the txn is inconsistent.
func (c *Coordinator) IsActive(id uint64) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, tracked := c.all[id]
	inStarted, inRunning := c.started[id], c.running[id]

	if inStarted && inRunning {
		return false, common.NewInvariantViolationError(fmt.Sprintf("txn %d is both started and running", id))
	}
	if !tracked {
		if inStarted || inRunning {
			return false, common.NewInvariantViolationError(fmt.Sprintf("txn %d is active but not tracked", id))
		}
		return false, common.NewUnknownTransactionError(id)
	}

	return inStarted || inRunning, nil
}

// State returns the lifecycle state of the txn.
// returns UnknownTransactionError if the txn isn't tracked.
func (c *Coordinator) State(id uint64) (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, found := c.all[id]; !found {
		return Created, common.NewUnknownTransactionError(id)
	}
	return c.stateLocked(id), nil
}

// Stats returns the current counts of the coordinator.
func (c *Coordinator) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := Stats{
		Tracked: len(c.all),
		Started: len(c.started),
		Running: len(c.running),
	}
	for id := range c.running {
		st.RunningID = id
	}
	return st
}

// CheckInvariants verifies the bookkeeping of the coordinator.
// returns InvariantViolationError describing the first problem found.
func (c *Coordinator) CheckInvariants() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.running) > 1 {
		return common.NewInvariantViolationError(fmt.Sprintf("%d txns are running", len(c.running)))
	}
	for id := range c.running {
		if _, found := c.all[id]; !found {
			return common.NewInvariantViolationError(fmt.Sprintf("running txn %d is not tracked", id))
		}
		if c.started[id] {
			return common.NewInvariantViolationError(fmt.Sprintf("txn %d is both started and running", id))
		}
	}
	for id := range c.started {
		if _, found := c.all[id]; !found {
			return common.NewInvariantViolationError(fmt.Sprintf("started txn %d is not tracked", id))
		}
	}
	if len(c.queue) != len(c.started) {
		return common.NewInvariantViolationError(fmt.Sprintf("ready queue has %d entries but %d txns are started", len(c.queue), len(c.started)))
	}
	for _, id := range c.queue {
		if !c.started[id] {
			return common.NewInvariantViolationError(fmt.Sprintf("queued txn %d is not started", id))
		}
	}
	return nil
}

// processStartedTransactions promotes the head of the ready queue if the running slot is free.
// Requires the lock. returns the promoted txn which must be run after releasing the lock, or nil.
func (c *Coordinator) processStartedTransactions() Transaction {
	if len(c.running) != 0 || len(c.queue) == 0 {
		return nil
	}

	id := c.queue[0]
	c.queue = c.queue[1:]
	delete(c.started, id)
	c.running[id] = true
	c.countEvent(eventScheduled)

	log.WithFields(log.Fields{"coordinator": c.name, "txnID": id}).Info("coordinator::coordinator::processStartedTransactions; scheduled txn")
	return c.all[id]
}

// run invokes the txn outside of the lock so that it can report back synchronously.
func (c *Coordinator) run(txn Transaction) {
	if txn == nil {
		return
	}
	txn.Run()
}

func (c *Coordinator) stateLocked(id uint64) State {
	if c.running[id] {
		return Running
	}
	if c.started[id] {
		return Started
	}
	return Created
}

// removeFromQueue removes the id from the ready queue keeping the order of the rest.
func (c *Coordinator) removeFromQueue(id uint64) {
	for i, qid := range c.queue {
		if qid == id {
			c.queue = append(c.queue[:i], c.queue[i+1:]...)
			return
		}
	}
}
