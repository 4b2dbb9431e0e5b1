package test

import (
	"sync"
)

var (
	// TestKeys - test data
	TestKeys [][]byte = [][]byte{[]byte("Key1"), []byte("Key2"), []byte("Key3"), []byte("Key4"), []byte("Key5")}

	// TestValues - test data
	TestValues [][]byte = [][]byte{[]byte("Value1"), []byte("Value2"), []byte("Value3"), []byte("Value4"), []byte("Value5")}
)

// FakeTransaction is a txn that only records how many times it was run.
// OnRun, if set, is called from Run.
type FakeTransaction struct {
	id uint64

	mu    sync.Mutex
	runs  int
	OnRun func()
}

// NewFakeTransaction creates a fake txn with the given id.
func NewFakeTransaction(id uint64) *FakeTransaction {
	return &FakeTransaction{
		id: id,
	}
}

// ID returns the id of the txn.
func (f *FakeTransaction) ID() uint64 {
	return f.id
}

// Run records the run and calls OnRun.
func (f *FakeTransaction) Run() {
	f.mu.Lock()
	f.runs++
	onRun := f.OnRun
	f.mu.Unlock()

	if onRun != nil {
		onRun()
	}
}

// Runs returns the number of times Run was called.
func (f *FakeTransaction) Runs() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.runs
}
