package common

import (
	"fmt"
)

// NotFoundError is returned when the required value is not found.
type NotFoundError struct {
	Message string
}

func (nf NotFoundError) Error() string {
	return nf.Message
}

// NewNotFoundError creates a new instance of NotFoundError with the given message.
func NewNotFoundError(message string) NotFoundError {
	return NotFoundError{
		Message: message,
	}
}

// DuplicateTransactionError is returned when a transaction id is registered with the coordinator more than once.
type DuplicateTransactionError struct {
	Message string
}

func (dte DuplicateTransactionError) Error() string {
	return dte.Message
}

// NewDuplicateTransactionError creates a new instance of DuplicateTransactionError for the txn id.
func NewDuplicateTransactionError(id uint64) DuplicateTransactionError {
	return DuplicateTransactionError{
		Message: fmt.Sprintf("txn %d is already tracked by the coordinator", id),
	}
}

// UnknownTransactionError is returned when the coordinator is asked about a txn it doesn't track.
type UnknownTransactionError struct {
	Message string
}

func (ute UnknownTransactionError) Error() string {
	return ute.Message
}

// NewUnknownTransactionError creates a new instance of UnknownTransactionError for the txn id.
func NewUnknownTransactionError(id uint64) UnknownTransactionError {
	return UnknownTransactionError{
		Message: fmt.Sprintf("txn %d is not tracked by the coordinator", id),
	}
}

// TransactionStateError is returned when a lifecycle event doesn't fit the current state of the txn.
// eg. starting a txn twice.
type TransactionStateError struct {
	Message string
}

func (tse TransactionStateError) Error() string {
	return tse.Message
}

// NewTransactionStateError creates a new instance of TransactionStateError with the given message.
func NewTransactionStateError(message string) TransactionStateError {
	return TransactionStateError{
		Message: message,
	}
}

// InvariantViolationError is returned when the coordinator finds its own bookkeeping inconsistent.
type InvariantViolationError struct {
	Message string
}

func (ive InvariantViolationError) Error() string {
	return ive.Message
}

// NewInvariantViolationError creates a new instance of InvariantViolationError with the given message.
func NewInvariantViolationError(message string) InvariantViolationError {
	return InvariantViolationError{
		Message: message,
	}
}

// AbortedTransactionError is returned when an operation is called on an aborted txn.
type AbortedTransactionError struct {
	Message string
}

func (ate AbortedTransactionError) Error() string {
	return ate.Message
}

// NewAbortedTransactionError creates a new instance of AbortedTransactionError with the given message.
func NewAbortedTransactionError(message string) AbortedTransactionError {
	return AbortedTransactionError{
		Message: message,
	}
}

// CommittedTransactionError is returned when an operation is called on an already committed txn.
type CommittedTransactionError struct {
	Message string
}

func (cte CommittedTransactionError) Error() string {
	return cte.Message
}

// NewCommittedTransactionError creates a new instance of CommittedTransactionError with the given message.
func NewCommittedTransactionError(message string) CommittedTransactionError {
	return CommittedTransactionError{
		Message: message,
	}
}

// ReadOnlyTransactionError is returned when a write is requested on a read only txn.
type ReadOnlyTransactionError struct {
	Message string
}

func (rte ReadOnlyTransactionError) Error() string {
	return rte.Message
}

// NewReadOnlyTransactionError creates a new instance of ReadOnlyTransactionError with the given message.
func NewReadOnlyTransactionError(message string) ReadOnlyTransactionError {
	return ReadOnlyTransactionError{
		Message: message,
	}
}
