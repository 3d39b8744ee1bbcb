package client

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/yourusername/btcverifier/internal/verifier"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrRejected      = errors.New("transaction rejected")
	ErrUnknownMethod = verifier.ErrUnknownMethod
)

// fromStatus turns gRPC status errors back into errors callers can match
func fromStatus(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}

	switch st.Code() {
	case codes.Aborted:
		return &verifier.Revert{}
	case codes.Unimplemented:
		return ErrUnknownMethod
	case codes.NotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, st.Message())
	case codes.InvalidArgument, codes.FailedPrecondition, codes.AlreadyExists:
		return fmt.Errorf("%w: %s", ErrRejected, st.Message())
	case codes.DeadlineExceeded:
		return fmt.Errorf("%w: %s", context.DeadlineExceeded, st.Message())
	case codes.Canceled:
		return fmt.Errorf("%w: %s", context.Canceled, st.Message())
	default:
		return err
	}
}
