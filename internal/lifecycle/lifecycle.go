package lifecycle

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nuhmanudheent/hosp-connect-scheduling-service/internal/domain"
	apperrors "github.com/nuhmanudheent/hosp-connect-scheduling-service/pkg/errors"
)

type Event string

const (
	EventConfirm    Event = "confirm"
	EventReschedule Event = "reschedule"
	EventCancel     Event = "cancel"
	EventComplete   Event = "complete"
)

// Role is the acting identity's relation to the appointment.
type Role int

const (
	RoleNone Role = iota
	RoleSubject
	RoleOwner
)

// ResolveRole relates actorID to the appointment's subject and the resource
// owner. Owner wins when both match.
func ResolveRole(a *domain.Appointment, ownerID, actorID string) Role {
	switch {
	case actorID == "":
		return RoleNone
	case ownerID != "" && actorID == ownerID:
		return RoleOwner
	case actorID == a.SubjectID:
		return RoleSubject
	}
	return RoleNone
}

// Transition describes one applied state change. Exactly one notification
// intent is derived from it.
type Transition struct {
	Event      Event
	From       domain.Status
	To         domain.Status
	OldInstant time.Time
	NewInstant time.Time
}

// NotificationKind is the intent kind announcing the transition.
func (t Transition) NotificationKind() domain.NotificationKind {
	return domain.NotificationKind(t.To)
}

// NewDoctorAppointment is the doctor create branch: the booking waits for
// the doctor to confirm it.
func NewDoctorAppointment(subjectID, doctorID string, at, now time.Time) (*domain.Appointment, Transition) {
	a := &domain.Appointment{
		ID:          uuid.New(),
		SubjectID:   subjectID,
		DoctorID:    &doctorID,
		ScheduledAt: at.UTC(),
		Status:      domain.StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return a, Transition{To: domain.StatusPending, NewInstant: a.ScheduledAt}
}

// NewLabAppointment is the lab create branch: labs have no confirmation
// step, so the booking starts confirmed.
func NewLabAppointment(subjectID, labID, testID string, at, now time.Time) (*domain.Appointment, Transition) {
	a := &domain.Appointment{
		ID:          uuid.New(),
		SubjectID:   subjectID,
		LabID:       &labID,
		TestID:      &testID,
		ScheduledAt: at.UTC(),
		Status:      domain.StatusConfirmed,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return a, Transition{To: domain.StatusConfirmed, NewInstant: a.ScheduledAt}
}

type Command struct {
	Event Event
	Role  Role
	// At is the processing time and stamps RescheduledAt/CancelledAt.
	At time.Time
	// NewInstant is required for EventReschedule.
	NewInstant time.Time
}

// EnsureActive rejects any event on a cancelled or completed appointment.
func EnsureActive(a *domain.Appointment, ev Event) error {
	if a.Status.IsTerminal() {
		return apperrors.NewTerminalStateError(
			fmt.Sprintf("cannot %s a %s appointment", ev, strings.ToLower(string(a.Status))))
	}
	return nil
}

// Apply checks cmd against the transition table and mutates a only when
// every guard passes. Availability, allocation and timing are the caller's
// guards and must already hold for a reschedule.
func Apply(a *domain.Appointment, cmd Command) (Transition, error) {
	if err := EnsureActive(a, cmd.Event); err != nil {
		return Transition{}, err
	}

	tr := Transition{Event: cmd.Event, From: a.Status, OldInstant: a.ScheduledAt, NewInstant: a.ScheduledAt}

	switch cmd.Event {
	case EventConfirm:
		if a.IsLab() {
			return Transition{}, apperrors.NewValidationError("lab appointments are confirmed when booked")
		}
		if cmd.Role != RoleOwner {
			return Transition{}, apperrors.NewAuthorizationError("you can only confirm your own appointments")
		}
		if a.Status != domain.StatusPending {
			return Transition{}, apperrors.NewValidationError("only pending appointments can be confirmed")
		}
		a.Status = domain.StatusConfirmed

	case EventReschedule:
		if cmd.Role != RoleSubject && cmd.Role != RoleOwner {
			return Transition{}, apperrors.NewAuthorizationError("you can only reschedule your own appointments")
		}
		if cmd.NewInstant.IsZero() {
			return Transition{}, apperrors.NewValidationError("new time is required")
		}
		at := cmd.At
		a.ScheduledAt = cmd.NewInstant.UTC()
		a.RescheduledAt = &at
		a.Status = domain.StatusRescheduled
		tr.NewInstant = a.ScheduledAt

	case EventCancel:
		if cmd.Role != RoleSubject && cmd.Role != RoleOwner {
			return Transition{}, apperrors.NewAuthorizationError("you can only cancel your own appointments")
		}
		at := cmd.At
		a.CancelledAt = &at
		a.Status = domain.StatusCancelled

	case EventComplete:
		if a.IsLab() || cmd.Role != RoleOwner {
			return Transition{}, apperrors.NewAuthorizationError("only the assigned doctor can mark an appointment completed")
		}
		a.Status = domain.StatusCompleted

	default:
		return Transition{}, apperrors.NewValidationError(fmt.Sprintf("unknown event %q", cmd.Event))
	}

	a.UpdatedAt = cmd.At
	tr.To = a.Status
	return tr, nil
}
