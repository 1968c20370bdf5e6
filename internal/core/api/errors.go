package api

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/solatis/datex/internal/types"
)

// statusFor maps service errors to gRPC status codes.
// Unknown sessions map to NOT_FOUND, the session cap to RESOURCE_EXHAUSTED,
// selection mistakes to INVALID_ARGUMENT, context expiry to
// DEADLINE_EXCEEDED. Anything else is INTERNAL.
func statusFor(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, types.ErrSessionNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, types.ErrTooManySessions):
		return status.Error(codes.ResourceExhausted, err.Error())
	case errors.Is(err, types.ErrUnknownSource),
		errors.Is(err, types.ErrUnknownLevel),
		errors.Is(err, types.ErrSimpleSourceValues),
		errors.Is(err, types.ErrUnknownGranularity):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
