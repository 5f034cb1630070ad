package handler

import (
	"time"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	apperrors "github.com/nuhmanudheent/hosp-connect-scheduling-service/pkg/errors"
)

const errorDomain = "scheduling.hosp-connect"

var codeByType = map[apperrors.ErrorType]codes.Code{
	apperrors.ErrorTypeValidation:    codes.InvalidArgument,
	apperrors.ErrorTypeTiming:        codes.InvalidArgument,
	apperrors.ErrorTypeAvailability:  codes.InvalidArgument,
	apperrors.ErrorTypeNotFound:      codes.NotFound,
	apperrors.ErrorTypeAuthorization: codes.PermissionDenied,
	apperrors.ErrorTypeConflict:      codes.AlreadyExists,
	apperrors.ErrorTypeTerminalState: codes.FailedPrecondition,
	apperrors.ErrorTypeDownstream:    codes.Unavailable,
}

// toStatus renders an AppError as a gRPC status whose ErrorInfo carries the
// error type, the conflict reason and, for timing errors, both timestamps.
// Internal causes are not exposed.
func toStatus(err error) error {
	appErr, ok := apperrors.As(err)
	if !ok || appErr.Type == apperrors.ErrorTypeInternal {
		return status.Error(codes.Internal, "internal error")
	}
	code, ok := codeByType[appErr.Type]
	if !ok {
		code = codes.Internal
	}

	info := &errdetails.ErrorInfo{
		Reason:   string(appErr.Type),
		Domain:   errorDomain,
		Metadata: map[string]string{},
	}
	if appErr.Conflict != "" {
		info.Metadata["conflict"] = string(appErr.Conflict)
	}
	if appErr.Type == apperrors.ErrorTypeTiming {
		info.Metadata["requested_at"] = appErr.RequestedAt.UTC().Format(time.RFC3339)
		info.Metadata["current_time"] = appErr.CurrentTime.UTC().Format(time.RFC3339)
	}

	st, detailErr := status.New(code, appErr.Message).WithDetails(info)
	if detailErr != nil {
		return status.Error(code, appErr.Message)
	}
	return st.Err()
}
