package domain

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending     Status = "PENDING"
	StatusConfirmed   Status = "CONFIRMED"
	StatusRescheduled Status = "RESCHEDULED"
	StatusCancelled   Status = "CANCELLED"
	StatusCompleted   Status = "COMPLETED"
)

// ActiveStatuses still occupy a slot.
var ActiveStatuses = []Status{StatusPending, StatusConfirmed, StatusRescheduled}

func (s Status) IsActive() bool {
	return s == StatusPending || s == StatusConfirmed || s == StatusRescheduled
}

func (s Status) IsTerminal() bool {
	return s == StatusCancelled || s == StatusCompleted
}

// Appointment is never deleted; cancellation is a status.
type Appointment struct {
	ID            uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	SubjectID     string     `gorm:"not null;index" json:"subject_id"`
	DoctorID      *string    `gorm:"index" json:"doctor_id,omitempty"`
	LabID         *string    `gorm:"index" json:"lab_id,omitempty"`
	TestID        *string    `json:"test_id,omitempty"`
	ScheduledAt   time.Time  `gorm:"not null;index" json:"scheduled_at"`
	Status        Status     `gorm:"type:varchar(16);not null;index" json:"status"`
	RescheduledAt *time.Time `json:"rescheduled_at,omitempty"`
	CancelledAt   *time.Time `json:"cancelled_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Ref returns the resource the appointment holds a slot on.
func (a *Appointment) Ref() ResourceRef {
	if a.DoctorID != nil {
		return ResourceRef{Kind: KindDoctor, ID: *a.DoctorID}
	}
	if a.LabID != nil {
		return ResourceRef{Kind: KindLab, ID: *a.LabID}
	}
	return ResourceRef{}
}

func (a *Appointment) IsLab() bool { return a.LabID != nil }

// ActiveQuery selects active appointments. Exactly one of Resource or
// SubjectID is set; From and To are inclusive bounds on ScheduledAt.
type ActiveQuery struct {
	Resource  *ResourceRef
	SubjectID string
	From      time.Time
	To        time.Time
	ExcludeID uuid.UUID
}

// Matches reports whether a satisfies the query, status included.
func (q ActiveQuery) Matches(a *Appointment) bool {
	if !a.Status.IsActive() {
		return false
	}
	if q.ExcludeID != uuid.Nil && a.ID == q.ExcludeID {
		return false
	}
	if q.Resource != nil && a.Ref() != *q.Resource {
		return false
	}
	if q.SubjectID != "" && a.SubjectID != q.SubjectID {
		return false
	}
	return !a.ScheduledAt.Before(q.From) && !a.ScheduledAt.After(q.To)
}
