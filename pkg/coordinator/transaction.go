package coordinator

// Transaction is a unit of work whose execution is serialized by the Coordinator.
// The coordinator never owns the transaction; it only keeps a handle to it
// between CreateTransaction and FinishTransaction.
type Transaction interface {
	// ID returns the identity of the txn. It must be unique among all the txns
	// ever registered with a coordinator.
	ID() uint64

	// Run is invoked exactly once when the coordinator hands the running slot to the txn.
	// It should return quickly and do the actual work asynchronously.
	// The txn has to call FinishTransaction once the work is done, which may happen from within Run.
	Run()
}

// State is the lifecycle state of a txn as observed by the coordinator.
type State int

const (
	// Created - registered with the coordinator but not yet started.
	Created State = iota

	// Started - waiting in the ready queue for the running slot.
	Started

	// Running - holds the running slot.
	Running
)

func (s State) String() string {
	switch s {
	case Created:
		return "created"
	case Started:
		return "started"
	case Running:
		return "running"
	default:
		return "unknown"
	}
}

// Stats is a point in time view of the coordinator bookkeeping.
type Stats struct {
	// Tracked is the number of txns between create and finish.
	Tracked int

	// Started is the number of txns in the ready queue.
	Started int

	// Running is 0 or 1.
	Running int

	// RunningID is the id of the running txn. Valid only if Running is 1.
	RunningID uint64
}
