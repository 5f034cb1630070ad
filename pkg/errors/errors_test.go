package errors

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsType_ThroughWrapping(t *testing.T) {
	err := fmt.Errorf("create appointment: %w", NewNotFoundError("doctor not found"))

	assert.True(t, IsType(err, ErrorTypeNotFound))
	assert.False(t, IsType(err, ErrorTypeConflict))
	assert.False(t, IsType(fmt.Errorf("plain"), ErrorTypeNotFound))
}

func TestConflictReasonOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ConflictReason
	}{
		{"already booked", NewConflictError(ConflictAlreadyBooked, "slot taken"), ConflictAlreadyBooked},
		{"fully booked wrapped", fmt.Errorf("x: %w", NewConflictError(ConflictFullyBooked, "full")), ConflictFullyBooked},
		{"not a conflict", NewValidationError("bad"), ""},
		{"plain error", fmt.Errorf("boom"), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ConflictReasonOf(tt.err))
		})
	}
}

func TestTimingErrorCarriesTimestamps(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	requested := now.Add(4 * time.Minute)

	err := NewTimingError("appointment time must be at least 5 minutes in the future", requested, now)

	appErr, ok := As(fmt.Errorf("wrapped: %w", err))
	require.True(t, ok)
	assert.Equal(t, requested, appErr.RequestedAt)
	assert.Equal(t, now, appErr.CurrentTime)
	assert.Contains(t, err.Error(), "requested=2026-03-02T09:04:00Z")
	assert.Contains(t, err.Error(), "current=2026-03-02T09:00:00Z")
}

func TestDownstreamErrorUnwraps(t *testing.T) {
	cause := fmt.Errorf("broker unreachable")
	err := NewDownstreamError("dispatch notification", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "DOWNSTREAM: dispatch notification: broker unreachable", err.Error())
}
