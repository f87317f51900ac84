package gateway

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domainerrors "github.com/lilwiggy/ex-act/pkg/errors"
)

// toStatus maps the domain error hierarchy onto gRPC status codes so
// callers get a consistent AuthOrConfig/RateLimit/Unavailable signal
// regardless of which venue raised the underlying error.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	var notFound *domainerrors.NotFoundError
	var validation *domainerrors.ValidationError
	var rateLimit *domainerrors.RateLimitError
	var ipBan *domainerrors.IPBanError
	var circuitOpen *domainerrors.CircuitBreakerError
	var clockSync *domainerrors.ClockSyncError

	switch {
	case errors.As(err, &notFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.As(err, &validation):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.As(err, &rateLimit), errors.As(err, &ipBan):
		return status.Error(codes.ResourceExhausted, err.Error())
	case errors.As(err, &circuitOpen), errors.As(err, &clockSync):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
