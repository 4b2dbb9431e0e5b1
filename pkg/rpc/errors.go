package rpc

import (
	"context"
	"errors"

	"github.com/dr0pdb/icecaneidb/internal/common"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// toStatus maps coordinator errors to grpc status errors.
func toStatus(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.As(err, &common.DuplicateTransactionError{}):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.As(err, &common.UnknownTransactionError{}):
		return status.Error(codes.NotFound, err.Error())
	case errors.As(err, &common.TransactionStateError{}):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.As(err, &common.InvariantViolationError{}):
		return status.Error(codes.Internal, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	default:
		return status.Error(codes.Unknown, err.Error())
	}
}

// fromStatus maps grpc status errors back to coordinator errors so that callers can use errors.As.
func fromStatus(err error) error {
	if err == nil {
		return nil
	}

	st, ok := status.FromError(err)
	if !ok {
		return err
	}

	switch st.Code() {
	case codes.AlreadyExists:
		return common.DuplicateTransactionError{Message: st.Message()}
	case codes.NotFound:
		return common.UnknownTransactionError{Message: st.Message()}
	case codes.FailedPrecondition:
		return common.NewTransactionStateError(st.Message())
	case codes.Internal:
		return common.NewInvariantViolationError(st.Message())
	default:
		return err
	}
}
