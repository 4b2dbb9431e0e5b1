package coordinator

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"

	"github.com/dr0pdb/icecaneidb/internal/common"
	"github.com/dr0pdb/icecaneidb/test"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func newTestTransactions(c *Coordinator, ids ...uint64) []*test.FakeTransaction {
	var txns []*test.FakeTransaction
	for _, id := range ids {
		txn := test.NewFakeTransaction(id)
		txns = append(txns, txn)
		if c != nil {
			err := c.CreateTransaction(txn)
			if err != nil {
				panic(err)
			}
		}
	}
	return txns
}

func assertState(t *testing.T, c *Coordinator, id uint64, expected State) {
	state, err := c.State(id)
	assert.Nil(t, err, "Unexpected error while getting the state of txn %d", id)
	assert.Equal(t, expected, state, "Unexpected state for txn %d", id)
}

func TestSingleSlotScheduling(t *testing.T) {
	c := NewCoordinator("single-slot")
	txns := newTestTransactions(c, 1, 2)
	a, b := txns[0], txns[1]

	// start A, then B. Only A runs.
	assert.Nil(t, c.StartTransaction(a.ID()), "Unexpected error while starting txn A")
	assert.Nil(t, c.StartTransaction(b.ID()), "Unexpected error while starting txn B")

	assertState(t, c, a.ID(), Running)
	assertState(t, c, b.ID(), Started)
	assert.Equal(t, 1, a.Runs(), "txn A should have been run exactly once")
	assert.Equal(t, 0, b.Runs(), "txn B shouldn't run while A holds the slot")

	// finishing A hands the slot to B.
	assert.Nil(t, c.FinishTransaction(a.ID()), "Unexpected error while finishing txn A")
	assertState(t, c, b.ID(), Running)
	assert.Equal(t, 1, b.Runs(), "txn B should have been run exactly once")
	assert.Equal(t, 1, a.Runs(), "txn A shouldn't be run again")

	// finishing B empties the coordinator.
	assert.Nil(t, c.FinishTransaction(b.ID()), "Unexpected error while finishing txn B")
	assert.Equal(t, Stats{}, c.Stats(), "coordinator should be empty after finishing all txns")
	assert.Nil(t, c.CheckInvariants())
}

func TestFinishWithoutStart(t *testing.T) {
	c := NewCoordinator("finish-without-start")
	txn := newTestTransactions(c, 3)[0]

	assertState(t, c, txn.ID(), Created)
	active, err := c.IsActive(txn.ID())
	assert.Nil(t, err)
	assert.False(t, active, "created txn shouldn't be active")

	assert.Nil(t, c.FinishTransaction(txn.ID()), "Unexpected error while finishing a created txn")
	assert.Equal(t, 0, txn.Runs(), "created txn should never be run")
	assert.Equal(t, 0, c.Stats().Tracked)
}

func TestFinishStartedTransaction(t *testing.T) {
	c := NewCoordinator("finish-started")
	txns := newTestTransactions(c, 1, 2, 3)

	for _, txn := range txns {
		assert.Nil(t, c.StartTransaction(txn.ID()))
	}

	// txn 2 leaves the ready queue without ever running.
	assert.Nil(t, c.FinishTransaction(2))
	assert.Nil(t, c.CheckInvariants())
	assertState(t, c, 1, Running)

	assert.Nil(t, c.FinishTransaction(1))
	assertState(t, c, 3, Running)
	assert.Equal(t, 0, txns[1].Runs(), "finished txn 2 should never be run")
}

func TestStartUnknownTransaction(t *testing.T) {
	c := NewCoordinator("start-unknown")

	err := c.StartTransaction(42)
	assert.NotNil(t, err, "Expected an error while starting an unknown txn")
	assert.True(t, errors.As(err, &common.UnknownTransactionError{}), "Expected UnknownTransactionError, got %v", err)

	err = c.FinishTransaction(42)
	assert.True(t, errors.As(err, &common.UnknownTransactionError{}), "Expected UnknownTransactionError, got %v", err)

	_, err = c.State(42)
	assert.True(t, errors.As(err, &common.UnknownTransactionError{}), "Expected UnknownTransactionError, got %v", err)

	_, err = c.IsActive(42)
	assert.True(t, errors.As(err, &common.UnknownTransactionError{}), "Expected UnknownTransactionError, got %v", err)
}

func TestDuplicateTransaction(t *testing.T) {
	c := NewCoordinator("duplicate")
	txn := newTestTransactions(c, 5)[0]

	err := c.CreateTransaction(test.NewFakeTransaction(txn.ID()))
	assert.True(t, errors.As(err, &common.DuplicateTransactionError{}), "Expected DuplicateTransactionError, got %v", err)
	assert.Equal(t, 1, c.Stats().Tracked, "failed create shouldn't change the coordinator")
}

func TestDoubleStart(t *testing.T) {
	c := NewCoordinator("double-start")
	newTestTransactions(c, 1, 2)

	assert.Nil(t, c.StartTransaction(1))
	assert.Nil(t, c.StartTransaction(2))

	// running
	err := c.StartTransaction(1)
	assert.True(t, errors.As(err, &common.TransactionStateError{}), "Expected TransactionStateError, got %v", err)

	// waiting in the ready queue
	err = c.StartTransaction(2)
	assert.True(t, errors.As(err, &common.TransactionStateError{}), "Expected TransactionStateError, got %v", err)

	assert.Equal(t, Stats{Tracked: 2, Started: 1, Running: 1, RunningID: 1}, c.Stats())
	assert.Nil(t, c.CheckInvariants())
}

func TestFIFOOrder(t *testing.T) {
	c := NewCoordinator("fifo")
	ids := []uint64{7, 3, 9, 1, 5}

	var mu sync.Mutex
	var order []uint64
	for _, txn := range newTestTransactions(nil, ids...) {
		id := txn.ID()
		txn.OnRun = func() {
			mu.Lock()
			order = append(order, id)
			mu.Unlock()
		}
		assert.Nil(t, c.CreateTransaction(txn))
	}

	for _, id := range ids {
		assert.Nil(t, c.StartTransaction(id))
	}
	for _, id := range ids {
		assert.Nil(t, c.FinishTransaction(id))
	}

	assert.Equal(t, ids, order, "txns should run in the order they were started")
}

func TestFinishFromRun(t *testing.T) {
	c := NewCoordinator("finish-from-run")
	txns := newTestTransactions(nil, 1, 2, 3)

	for _, txn := range txns {
		id := txn.ID()
		txn.OnRun = func() {
			assert.Nil(t, c.FinishTransaction(id), "Unexpected error while finishing txn %d from run", id)
		}
		assert.Nil(t, c.CreateTransaction(txn))
	}

	assert.Nil(t, c.StartTransaction(1))
	assert.Nil(t, c.StartTransaction(2))
	assert.Nil(t, c.StartTransaction(3))

	for _, txn := range txns {
		assert.Equal(t, 1, txn.Runs(), "txn %d should be run exactly once", txn.ID())
	}
	assert.Equal(t, Stats{}, c.Stats())
}

func TestIsActive(t *testing.T) {
	c := NewCoordinator("is-active")
	newTestTransactions(c, 1, 2, 3)

	assert.Nil(t, c.StartTransaction(1))
	assert.Nil(t, c.StartTransaction(2))

	for id, expected := range map[uint64]bool{1: true, 2: true, 3: false} {
		active, err := c.IsActive(id)
		assert.Nil(t, err)
		assert.Equal(t, expected, active, "Unexpected active status for txn %d", id)
	}

	// corrupt the bookkeeping on purpose.
	c.started[1] = true
	_, err := c.IsActive(1)
	assert.True(t, errors.As(err, &common.InvariantViolationError{}), "Expected InvariantViolationError, got %v", err)
	assert.NotNil(t, c.CheckInvariants())
}

func TestSchedulingPassNoop(t *testing.T) {
	c := NewCoordinator("noop")
	txns := newTestTransactions(c, 1, 2)

	// empty ready queue.
	c.mu.Lock()
	assert.Nil(t, c.processStartedTransactions())
	c.mu.Unlock()

	assert.Nil(t, c.StartTransaction(1))
	assert.Nil(t, c.StartTransaction(2))

	// occupied running slot.
	before := c.Stats()
	c.mu.Lock()
	assert.Nil(t, c.processStartedTransactions())
	c.mu.Unlock()
	assert.Equal(t, before, c.Stats())
	assert.Equal(t, 0, txns[1].Runs())
}

// TestRandomOperations runs random valid call sequences and checks the invariants after each call.
func TestRandomOperations(t *testing.T) {
	rnd := rand.New(rand.NewSource(7))

	for round := 0; round < 50; round++ {
		c := NewCoordinator(fmt.Sprintf("random-%d", round))
		nextID := uint64(1)
		created := make(map[uint64]bool)
		started := make(map[uint64]bool)
		txns := make(map[uint64]*test.FakeTransaction)

		for step := 0; step < 200; step++ {
			switch rnd.Intn(3) {
			case 0:
				txn := test.NewFakeTransaction(nextID)
				nextID++
				assert.Nil(t, c.CreateTransaction(txn))
				created[txn.ID()] = true
				txns[txn.ID()] = txn
			case 1:
				for id := range created {
					if !started[id] {
						assert.Nil(t, c.StartTransaction(id))
						started[id] = true
						break
					}
				}
			case 2:
				for id := range created {
					wasRunning := c.Stats().RunningID == id && c.Stats().Running == 1
					waiting := c.Stats().Started

					assert.Nil(t, c.FinishTransaction(id))
					delete(created, id)
					delete(started, id)

					if wasRunning && waiting > 0 {
						assert.Equal(t, 1, c.Stats().Running, "a waiting txn should be promoted once the running one finishes")
					}
					break
				}
			}

			assert.Nil(t, c.CheckInvariants(), "invariants broken at round %d step %d", round, step)
			assert.LessOrEqual(t, c.Stats().Running, 1)
		}

		for _, txn := range txns {
			assert.LessOrEqual(t, txn.Runs(), 1, "txn %d was run more than once", txn.ID())
		}
	}
}

func TestConcurrentTransactions(t *testing.T) {
	c := NewCoordinator("concurrent")
	n := 100

	var mu sync.Mutex
	running := 0
	maxRunning := 0

	wg := &sync.WaitGroup{}
	wg.Add(n)

	for i := 1; i <= n; i++ {
		txn := test.NewFakeTransaction(uint64(i))
		txn.OnRun = func() {
			mu.Lock()
			running++
			if running > maxRunning {
				maxRunning = running
			}
			mu.Unlock()

			go func() {
				mu.Lock()
				running--
				mu.Unlock()
				assert.Nil(t, c.FinishTransaction(txn.ID()))
				wg.Done()
			}()
		}
		assert.Nil(t, c.CreateTransaction(txn))
	}

	for i := 1; i <= n; i++ {
		go func(id uint64) {
			assert.Nil(t, c.StartTransaction(id))
		}(uint64(i))
	}

	wg.Wait()
	assert.Equal(t, 1, maxRunning, "more than one txn ran at the same time")
	assert.Equal(t, Stats{}, c.Stats())
}

func TestMetrics(t *testing.T) {
	c := NewCoordinator("metrics")
	newTestTransactions(c, 1, 2)

	assert.Nil(t, c.StartTransaction(1))
	assert.Nil(t, c.StartTransaction(2))

	assert.Equal(t, float64(2), testutil.ToFloat64(transactionsGauge.WithLabelValues("metrics", "tracked")))
	assert.Equal(t, float64(1), testutil.ToFloat64(transactionsGauge.WithLabelValues("metrics", "started")))
	assert.Equal(t, float64(1), testutil.ToFloat64(transactionsGauge.WithLabelValues("metrics", "running")))
	assert.Equal(t, float64(1), testutil.ToFloat64(transactionEventCounter.WithLabelValues("metrics", eventScheduled)))

	assert.NotNil(t, c.StartTransaction(99))
	assert.Equal(t, float64(1), testutil.ToFloat64(misuseCounter.WithLabelValues("metrics", "start")))
}
