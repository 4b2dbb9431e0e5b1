package idb

import (
	"context"
)

type requestKind int

const (
	requestGet requestKind = iota
	requestPut
	requestDelete
	requestScan
)

// Request is a single operation queued on a txn.
// It resolves once the txn has processed it, or failed when the txn is aborted.
type Request struct {
	kind  requestKind
	store string
	key   []byte
	value []byte
	limit int

	done    chan struct{}
	result  []byte
	records []Record
	err     error
}

func newRequest(kind requestKind, store string, key, value []byte) *Request {
	return &Request{
		kind:  kind,
		store: store,
		key:   key,
		value: value,
		done:  make(chan struct{}),
	}
}

// resolve must be called exactly once.
func (r *Request) resolve(result []byte, records []Record, err error) {
	r.result = result
	r.records = records
	r.err = err
	close(r.done)
}

// Wait blocks until the request is resolved or the ctx is done.
// returns the error of the request.
func (r *Request) Wait(ctx context.Context) error {
	select {
	case <-r.done:
		return r.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done returns a channel that is closed once the request is resolved.
func (r *Request) Done() <-chan struct{} {
	return r.done
}

// Value returns the value read by a get request. Valid after Wait returns nil.
func (r *Request) Value() []byte {
	return r.result
}

// Records returns the records read by a scan request. Valid after Wait returns nil.
func (r *Request) Records() []Record {
	return r.records
}
