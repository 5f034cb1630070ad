package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorType represents the category of a scheduling failure
type ErrorType string

const (
	// ErrorTypeValidation indicates missing or malformed input
	ErrorTypeValidation ErrorType = "VALIDATION"

	// ErrorTypeTiming indicates the requested instant is not far enough in the future
	ErrorTypeTiming ErrorType = "TIMING"

	// ErrorTypeNotFound indicates a resource or appointment was not found
	ErrorTypeNotFound ErrorType = "NOT_FOUND"

	// ErrorTypeAuthorization indicates the actor may not act on the appointment
	ErrorTypeAuthorization ErrorType = "AUTHORIZATION"

	// ErrorTypeAvailability indicates the instant is outside the resource's open hours
	ErrorTypeAvailability ErrorType = "AVAILABILITY"

	// ErrorTypeConflict indicates the slot is already taken
	ErrorTypeConflict ErrorType = "CONFLICT"

	// ErrorTypeTerminalState indicates a mutation of a cancelled or completed appointment
	ErrorTypeTerminalState ErrorType = "TERMINAL_STATE"

	// ErrorTypeDownstream indicates a collaborator (catalog, dispatcher) failed
	ErrorTypeDownstream ErrorType = "DOWNSTREAM"

	// ErrorTypeInternal indicates an unexpected failure
	ErrorTypeInternal ErrorType = "INTERNAL"
)

// ConflictReason tells callers why a slot could not be taken
type ConflictReason string

const (
	ConflictAlreadyBooked ConflictReason = "ALREADY_BOOKED"
	ConflictFullyBooked   ConflictReason = "FULLY_BOOKED"
	ConflictSelfOverlap   ConflictReason = "SELF_OVERLAP"
)

// AppError represents a scheduling error
type AppError struct {
	Type    ErrorType
	Message string
	Err     error

	// Conflict is set for ErrorTypeConflict only.
	Conflict ConflictReason

	// RequestedAt and CurrentTime are set for ErrorTypeTiming only.
	RequestedAt time.Time
	CurrentTime time.Time
}

// Error implements the error interface
func (e *AppError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Type, e.Message)
	if e.Conflict != "" {
		msg = fmt.Sprintf("%s: %s (%s)", e.Type, e.Message, e.Conflict)
	}
	if e.Type == ErrorTypeTiming {
		msg = fmt.Sprintf("%s [requested=%s current=%s]", msg,
			e.RequestedAt.UTC().Format(time.RFC3339), e.CurrentTime.UTC().Format(time.RFC3339))
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap implements the unwrap interface
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewValidationError creates a new validation error
func NewValidationError(message string) *AppError {
	return &AppError{Type: ErrorTypeValidation, Message: message}
}

// NewTimingError creates a timing error carrying both timestamps for diagnosis
func NewTimingError(message string, requested, current time.Time) *AppError {
	return &AppError{
		Type:        ErrorTypeTiming,
		Message:     message,
		RequestedAt: requested,
		CurrentTime: current,
	}
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(message string) *AppError {
	return &AppError{Type: ErrorTypeNotFound, Message: message}
}

// NewAuthorizationError creates a new authorization error
func NewAuthorizationError(message string) *AppError {
	return &AppError{Type: ErrorTypeAuthorization, Message: message}
}

// NewAvailabilityError creates a new availability error
func NewAvailabilityError(message string) *AppError {
	return &AppError{Type: ErrorTypeAvailability, Message: message}
}

// NewConflictError creates a new conflict error with a reason
func NewConflictError(reason ConflictReason, message string) *AppError {
	return &AppError{Type: ErrorTypeConflict, Message: message, Conflict: reason}
}

// NewTerminalStateError creates a new terminal state error
func NewTerminalStateError(message string) *AppError {
	return &AppError{Type: ErrorTypeTerminalState, Message: message}
}

// NewDownstreamError creates a new downstream error
func NewDownstreamError(message string, err error) *AppError {
	return &AppError{Type: ErrorTypeDownstream, Message: message, Err: err}
}

// NewInternalError creates a new internal error
func NewInternalError(message string, err error) *AppError {
	return &AppError{Type: ErrorTypeInternal, Message: message, Err: err}
}

// As returns the first AppError in err's chain.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsType reports whether err carries an AppError of type t.
func IsType(err error, t ErrorType) bool {
	appErr, ok := As(err)
	return ok && appErr.Type == t
}

// ConflictReasonOf returns the conflict reason of err, or "" when err is not a conflict.
func ConflictReasonOf(err error) ConflictReason {
	appErr, ok := As(err)
	if !ok || appErr.Type != ErrorTypeConflict {
		return ""
	}
	return appErr.Conflict
}
