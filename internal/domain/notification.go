package domain

import (
	"time"

	"github.com/google/uuid"
)

type NotificationKind string

const (
	NotifyPending     NotificationKind = "PENDING"
	NotifyConfirmed   NotificationKind = "CONFIRMED"
	NotifyRescheduled NotificationKind = "RESCHEDULED"
	NotifyCancelled   NotificationKind = "CANCELLED"
	NotifyCompleted   NotificationKind = "COMPLETED"
	NotifyReminder    NotificationKind = "REMINDER"
)

// NotificationIntent is what the core asks the dispatcher to deliver. The
// dispatcher owns channels and templates.
type NotificationIntent struct {
	Kind          NotificationKind `json:"kind"`
	RecipientID   string           `json:"recipient_id"`
	AppointmentID uuid.UUID        `json:"appointment_id"`
	OldInstant    *time.Time       `json:"old_instant,omitempty"`
	NewInstant    *time.Time       `json:"new_instant,omitempty"`
	OccurredAt    time.Time        `json:"occurred_at"`
}
