package api

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/solatis/tagrules/internal/types"
)

// Error mapping:
// Rule and object definition errors map to INVALID_ARGUMENT.
// Reload failures map to FAILED_PRECONDITION.
// Missing rule set and store errors map to UNAVAILABLE.
// Context timeouts map to DEADLINE_EXCEEDED.
// Auth errors are mapped in the auth package interceptor.

// errStore marks persistence failures so they map to UNAVAILABLE.
var errStore = errors.New("store unavailable")

func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, types.ErrNoRuleSet), errors.Is(err, errStore):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, types.ErrInvariant):
		return status.Error(codes.Internal, err.Error())
	case errors.Is(err, types.ErrSyntax),
		errors.Is(err, types.ErrUnknownTag),
		errors.Is(err, types.ErrUnknownValue),
		errors.Is(err, types.ErrTooManySubrules),
		errors.Is(err, types.ErrRuleTooLong),
		errors.Is(err, types.ErrObjectSyntax):
		return status.Error(codes.InvalidArgument, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// reloadStatus maps a failed reload. Invariant and context errors keep
// their own codes; everything else means the sources cannot be published.
func reloadStatus(err error) error {
	if errors.Is(err, types.ErrInvariant) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) {
		return toStatus(err)
	}
	return status.Error(codes.FailedPrecondition, err.Error())
}

func invalidArgument(format string, args ...any) error {
	return status.Errorf(codes.InvalidArgument, format, args...)
}
