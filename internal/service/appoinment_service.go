package service

import (
	"context"
	"fmt"
	"iter"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/nuhmanudheent/hosp-connect-scheduling-service/internal/allocator"
	"github.com/nuhmanudheent/hosp-connect-scheduling-service/internal/availability"
	"github.com/nuhmanudheent/hosp-connect-scheduling-service/internal/catalog"
	"github.com/nuhmanudheent/hosp-connect-scheduling-service/internal/domain"
	"github.com/nuhmanudheent/hosp-connect-scheduling-service/internal/lifecycle"
	"github.com/nuhmanudheent/hosp-connect-scheduling-service/internal/metrics"
	"github.com/nuhmanudheent/hosp-connect-scheduling-service/internal/repository"
	apperrors "github.com/nuhmanudheent/hosp-connect-scheduling-service/pkg/errors"
)

var tracer = otel.Tracer("hosp-connect.scheduling.service")

// Notifier accepts notification intents. Delivery is its concern.
type Notifier interface {
	Dispatch(ctx context.Context, intent domain.NotificationIntent) error
}

// PatientCounter keeps the informational per-doctor booking count.
type PatientCounter interface {
	IncrementPatientCount(ctx context.Context, doctorID string) error
}

type CreateRequest struct {
	SubjectID string
	DoctorID  string
	LabID     string
	TestID    string
	At        time.Time
}

type AppointmentService interface {
	CreateAppointment(ctx context.Context, req CreateRequest) (*domain.Appointment, error)
	ConfirmAppointment(ctx context.Context, actorID string, id uuid.UUID) (*domain.Appointment, error)
	RescheduleAppointment(ctx context.Context, actorID string, id uuid.UUID, at time.Time) (*domain.Appointment, error)
	CancelAppointment(ctx context.Context, actorID string, id uuid.UUID) (*domain.Appointment, error)
	CompleteAppointment(ctx context.Context, actorID string, id uuid.UUID) (*domain.Appointment, error)
	GetAppointment(ctx context.Context, actorID string, id uuid.UUID) (*domain.Appointment, error)
	ListAppointments(ctx context.Context, actorID string) ([]domain.Appointment, error)
	ListOpenSlots(ctx context.Context, ref domain.ResourceRef, date time.Time) (iter.Seq[time.Time], error)
	SendDailyReminders(ctx context.Context) (int, error)
}

type appointmentService struct {
	repo      repository.AppointmentRepository
	catalog   catalog.ResourceCatalog
	notifier  Notifier
	counter   PatientCounter
	allocator *allocator.Allocator
	metrics   *metrics.SchedulingMetrics
	settings  Settings
	now       func() time.Time
	Logger    *logrus.Logger
}

type Option func(*appointmentService)

func WithSettings(settings Settings) Option {
	return func(s *appointmentService) { s.settings = settings }
}

func WithClock(now func() time.Time) Option {
	return func(s *appointmentService) { s.now = now }
}

func WithMetrics(m *metrics.SchedulingMetrics) Option {
	return func(s *appointmentService) { s.metrics = m }
}

func WithPatientCounter(counter PatientCounter) Option {
	return func(s *appointmentService) { s.counter = counter }
}

func NewAppointmentService(repo repository.AppointmentRepository, resources catalog.ResourceCatalog, notifier Notifier, logger *logrus.Logger, opts ...Option) AppointmentService {
	s := &appointmentService{
		repo:      repo,
		catalog:   resources,
		notifier:  notifier,
		allocator: allocator.New(repo),
		settings:  DefaultSettings(),
		now:       time.Now,
		Logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *appointmentService) CreateAppointment(ctx context.Context, req CreateRequest) (appt *domain.Appointment, err error) {
	ctx, done := s.track(ctx, "create")
	defer done(&err)

	log := s.Logger.WithFields(logrus.Fields{
		"Function":    "CreateAppointment",
		"SubjectID":   req.SubjectID,
		"DoctorID":    req.DoctorID,
		"LabID":       req.LabID,
		"ScheduledAt": req.At,
	})
	log.Info("Creating appointment")

	ref, err := validateCreate(req)
	if err != nil {
		log.WithError(err).Info("Rejected create request")
		return nil, err
	}
	now := s.now()
	at := req.At.UTC()
	if err := s.checkBuffer(at, now); err != nil {
		log.WithError(err).Info("Rejected create request")
		return nil, err
	}

	if err := checkSelfOverlap(ctx, s.repo, req.SubjectID, at); err != nil {
		log.WithError(err).Info("Rejected create request")
		return nil, s.internal(log, err, "failed to check existing appointments")
	}

	resource, err := s.resource(ctx, ref)
	if err != nil {
		log.WithError(err).Warn("Failed to load resource")
		return nil, err
	}
	if !availability.IsOpenAt(resource, at) {
		err := apperrors.NewAvailabilityError(fmt.Sprintf("%s is not available at the selected time", ref.Kind))
		log.WithError(err).Info("Rejected create request")
		s.refresh(ctx, log, ref)
		return nil, err
	}
	if err := s.allocator.CanAllocate(ctx, resource, at, uuid.Nil); err != nil {
		log.WithError(err).Info("Slot not allocatable")
		return nil, s.internal(log, err, "failed to check slot")
	}

	var tr lifecycle.Transition
	if ref.Kind == domain.KindDoctor {
		appt, tr = lifecycle.NewDoctorAppointment(req.SubjectID, ref.ID, at, now)
	} else {
		appt, tr = lifecycle.NewLabAppointment(req.SubjectID, ref.ID, req.TestID, at, now)
	}

	err = s.repo.WithinBookingTx(ctx, ref, func(tx repository.AppointmentRepository) error {
		if err := checkSelfOverlap(ctx, tx, req.SubjectID, at); err != nil {
			return err
		}
		if err := allocator.New(tx).CanAllocate(ctx, resource, at, uuid.Nil); err != nil {
			return err
		}
		return tx.Create(ctx, appt)
	})
	if err != nil {
		log.WithError(err).Info("Booking transaction rejected")
		return nil, s.internal(log, err, "failed to save appointment")
	}

	if ref.Kind == domain.KindDoctor && s.counter != nil {
		if err := s.counter.IncrementPatientCount(ctx, ref.ID); err != nil {
			log.WithError(err).Warn("Failed to increment doctor patient count")
		}
	}

	s.notify(ctx, s.intentFor(appt, tr, recipientFor(appt, resource, req.SubjectID), now))

	log.WithFields(logrus.Fields{
		"AppointmentID": appt.ID,
		"Status":        appt.Status,
	}).Info("Appointment created successfully")
	return appt, nil
}

func (s *appointmentService) ConfirmAppointment(ctx context.Context, actorID string, id uuid.UUID) (appt *domain.Appointment, err error) {
	ctx, done := s.track(ctx, "confirm")
	defer done(&err)
	return s.transition(ctx, "ConfirmAppointment", actorID, id, lifecycle.Command{Event: lifecycle.EventConfirm})
}

func (s *appointmentService) RescheduleAppointment(ctx context.Context, actorID string, id uuid.UUID, at time.Time) (appt *domain.Appointment, err error) {
	ctx, done := s.track(ctx, "reschedule")
	defer done(&err)
	return s.transition(ctx, "RescheduleAppointment", actorID, id, lifecycle.Command{Event: lifecycle.EventReschedule, NewInstant: at.UTC()})
}

func (s *appointmentService) CancelAppointment(ctx context.Context, actorID string, id uuid.UUID) (appt *domain.Appointment, err error) {
	ctx, done := s.track(ctx, "cancel")
	defer done(&err)
	return s.transition(ctx, "CancelAppointment", actorID, id, lifecycle.Command{Event: lifecycle.EventCancel})
}

func (s *appointmentService) CompleteAppointment(ctx context.Context, actorID string, id uuid.UUID) (appt *domain.Appointment, err error) {
	ctx, done := s.track(ctx, "complete")
	defer done(&err)
	return s.transition(ctx, "CompleteAppointment", actorID, id, lifecycle.Command{Event: lifecycle.EventComplete})
}

// transition runs the guards on the loaded appointment, then applies cmd
// again to a fresh read inside the booking transaction so the write is
// based on the state it replaces.
func (s *appointmentService) transition(ctx context.Context, function, actorID string, id uuid.UUID, cmd lifecycle.Command) (*domain.Appointment, error) {
	log := s.Logger.WithFields(logrus.Fields{
		"Function":      function,
		"ActorID":       actorID,
		"AppointmentID": id,
	})
	log.Info("Applying appointment transition")

	appt, err := s.load(ctx, id)
	if err != nil {
		log.WithError(err).Info("Failed to load appointment")
		return nil, err
	}
	if err := lifecycle.EnsureActive(appt, cmd.Event); err != nil {
		log.WithError(err).Info("Rejected transition")
		return nil, err
	}
	resource, err := s.resource(ctx, appt.Ref())
	if err != nil {
		log.WithError(err).Warn("Failed to load resource")
		return nil, err
	}

	now := s.now()
	cmd.At = now
	cmd.Role = lifecycle.ResolveRole(appt, resource.OwnerID, actorID)

	candidate := *appt
	if _, err := lifecycle.Apply(&candidate, cmd); err != nil {
		log.WithError(err).Info("Rejected transition")
		return nil, err
	}
	if cmd.Event == lifecycle.EventReschedule {
		if err := s.checkMove(ctx, resource, &candidate, now); err != nil {
			log.WithError(err).Info("Rejected reschedule")
			if apperrors.IsType(err, apperrors.ErrorTypeAvailability) {
				s.refresh(ctx, log, resource.Ref)
			}
			return nil, s.internal(log, err, "failed to check slot")
		}
	}

	var tr lifecycle.Transition
	err = s.repo.WithinBookingTx(ctx, appt.Ref(), func(tx repository.AppointmentRepository) error {
		current, err := tx.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if tr, err = lifecycle.Apply(current, cmd); err != nil {
			return err
		}
		if cmd.Event == lifecycle.EventReschedule {
			if err := allocator.New(tx).CanAllocate(ctx, resource, current.ScheduledAt, current.ID); err != nil {
				return err
			}
		}
		if err := tx.Update(ctx, current); err != nil {
			return err
		}
		appt = current
		return nil
	})
	if err != nil {
		log.WithError(err).Info("Transition transaction rejected")
		return nil, s.internal(log, err, "failed to update appointment")
	}

	s.notify(ctx, s.intentFor(appt, tr, recipientFor(appt, resource, actorID), now))

	log.WithFields(logrus.Fields{
		"From": tr.From,
		"To":   tr.To,
	}).Info("Appointment transition applied")
	return appt, nil
}

// checkMove is the reschedule pre-flight on the new instant: timing,
// availability, then allocation excluding the appointment's own hold.
func (s *appointmentService) checkMove(ctx context.Context, resource *domain.Resource, moved *domain.Appointment, now time.Time) error {
	if err := s.checkBuffer(moved.ScheduledAt, now); err != nil {
		return err
	}
	if !availability.IsOpenAt(resource, moved.ScheduledAt) {
		return apperrors.NewAvailabilityError(fmt.Sprintf("%s is not available at the selected time", resource.Ref.Kind))
	}
	return s.allocator.CanAllocate(ctx, resource, moved.ScheduledAt, moved.ID)
}

func (s *appointmentService) GetAppointment(ctx context.Context, actorID string, id uuid.UUID) (appt *domain.Appointment, err error) {
	ctx, done := s.track(ctx, "get")
	defer done(&err)

	log := s.Logger.WithFields(logrus.Fields{
		"Function":      "GetAppointment",
		"ActorID":       actorID,
		"AppointmentID": id,
	})

	appt, err = s.load(ctx, id)
	if err != nil {
		log.WithError(err).Info("Failed to load appointment")
		return nil, err
	}
	if actorID != "" && actorID == appt.SubjectID {
		return appt, nil
	}
	resource, err := s.resource(ctx, appt.Ref())
	if err != nil {
		log.WithError(err).Warn("Failed to load resource")
		return nil, err
	}
	if lifecycle.ResolveRole(appt, resource.OwnerID, actorID) == lifecycle.RoleNone {
		err := apperrors.NewAuthorizationError("you can only view your own appointments")
		log.WithError(err).Info("Rejected read")
		return nil, err
	}
	return appt, nil
}

func (s *appointmentService) ListAppointments(ctx context.Context, actorID string) (list []domain.Appointment, err error) {
	ctx, done := s.track(ctx, "list")
	defer done(&err)

	if actorID == "" {
		return nil, apperrors.NewValidationError("actor is required")
	}
	list, err = s.repo.ListBySubject(ctx, actorID)
	if err != nil {
		return nil, s.internal(s.Logger.WithFields(logrus.Fields{
			"Function": "ListAppointments",
			"ActorID":  actorID,
		}), err, "failed to list appointments")
	}
	return list, nil
}

// ListOpenSlots reads the day's active bookings once and returns a lazy
// walk over the resource's windows that skips saturated slots.
func (s *appointmentService) ListOpenSlots(ctx context.Context, ref domain.ResourceRef, date time.Time) (slots iter.Seq[time.Time], err error) {
	ctx, done := s.track(ctx, "list_open_slots")
	defer done(&err)

	log := s.Logger.WithFields(logrus.Fields{
		"Function": "ListOpenSlots",
		"Resource": ref.String(),
		"Date":     date.Format(time.DateOnly),
	})

	if !ref.Valid() {
		return nil, apperrors.NewValidationError("a doctor or lab is required")
	}
	resource, err := s.resource(ctx, ref)
	if err != nil {
		log.WithError(err).Warn("Failed to load resource")
		return nil, err
	}

	loc := resource.Location()
	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, loc)
	from, _ := allocator.Window(resource, dayStart)
	_, to := allocator.Window(resource, dayStart.AddDate(0, 0, 1))
	existing, err := s.repo.FindActive(ctx, domain.ActiveQuery{Resource: &ref, From: from, To: to})
	if err != nil {
		return nil, s.internal(log, err, "failed to load bookings")
	}

	granularity := s.settings.DoctorSlot
	if ref.Kind == domain.KindLab {
		granularity = s.settings.LabSlot
	}
	now := s.now()
	occupied := func(slot time.Time) bool {
		if s.checkBuffer(slot, now) != nil {
			return true
		}
		return allocator.Evaluate(resource, slot, existing, uuid.Nil) != nil
	}
	return availability.ListOpenSlots(resource, date, granularity, occupied), nil
}

// SendDailyReminders emits a REMINDER intent to the subject of every active
// appointment starting within the reminder horizon and returns how many the
// dispatcher accepted.
func (s *appointmentService) SendDailyReminders(ctx context.Context) (sent int, err error) {
	ctx, done := s.track(ctx, "reminders")
	defer done(&err)

	s.Logger.WithField("Function", "SendDailyReminders").Info("Sending daily appointment reminders")

	now := s.now()
	appointments, err := s.repo.ListActiveBetween(ctx, now, now.Add(s.settings.ReminderHorizon))
	if err != nil {
		return 0, s.internal(s.Logger.WithField("Function", "SendDailyReminders"), err, "failed to fetch upcoming appointments")
	}

	for i := range appointments {
		appt := &appointments[i]
		at := appt.ScheduledAt
		if s.notify(ctx, domain.NotificationIntent{
			Kind:          domain.NotifyReminder,
			RecipientID:   appt.SubjectID,
			AppointmentID: appt.ID,
			NewInstant:    &at,
			OccurredAt:    now,
		}) {
			sent++
		}
	}

	s.Logger.WithFields(logrus.Fields{
		"Function": "SendDailyReminders",
		"Upcoming": len(appointments),
		"Sent":     sent,
	}).Info("Daily reminders sent")
	return sent, nil
}

func validateCreate(req CreateRequest) (domain.ResourceRef, error) {
	if req.SubjectID == "" {
		return domain.ResourceRef{}, apperrors.NewValidationError("subject is required")
	}
	if req.At.IsZero() {
		return domain.ResourceRef{}, apperrors.NewValidationError("appointment time is required")
	}
	switch {
	case req.DoctorID != "" && req.LabID != "":
		return domain.ResourceRef{}, apperrors.NewValidationError("book either a doctor or a lab, not both")
	case req.DoctorID != "":
		if req.TestID != "" {
			return domain.ResourceRef{}, apperrors.NewValidationError("a test can only be booked with a lab")
		}
		return domain.ResourceRef{Kind: domain.KindDoctor, ID: req.DoctorID}, nil
	case req.LabID != "":
		if req.TestID == "" {
			return domain.ResourceRef{}, apperrors.NewValidationError("a test is required for lab appointments")
		}
		return domain.ResourceRef{Kind: domain.KindLab, ID: req.LabID}, nil
	}
	return domain.ResourceRef{}, apperrors.NewValidationError("a doctor or lab is required")
}

// checkBuffer rejects instants at or before now plus the booking buffer.
func (s *appointmentService) checkBuffer(at, now time.Time) error {
	if !at.After(now.Add(s.settings.BookingBuffer)) {
		return apperrors.NewTimingError(
			fmt.Sprintf("appointment time must be more than %s from now", s.settings.BookingBuffer), at, now)
	}
	return nil
}

func (s *appointmentService) load(ctx context.Context, id uuid.UUID) (*domain.Appointment, error) {
	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if _, ok := apperrors.As(err); ok {
			return nil, err
		}
		return nil, apperrors.NewInternalError("failed to load appointment", err)
	}
	return appt, nil
}

func (s *appointmentService) resource(ctx context.Context, ref domain.ResourceRef) (*domain.Resource, error) {
	cctx, cancel := context.WithTimeout(ctx, s.settings.CatalogTimeout)
	defer cancel()

	res, err := s.catalog.GetResource(cctx, ref)
	if err != nil {
		if _, ok := apperrors.As(err); ok {
			return nil, err
		}
		return nil, apperrors.NewDownstreamError("resource catalog lookup failed", err)
	}
	return res, nil
}

// checkSelfOverlap rejects a second active appointment for the subject at
// the same instant, whatever the resource.
func checkSelfOverlap(ctx context.Context, store repository.AppointmentRepository, subjectID string, at time.Time) error {
	own, err := store.FindActive(ctx, domain.ActiveQuery{SubjectID: subjectID, From: at, To: at})
	if err != nil {
		return err
	}
	if len(own) > 0 {
		return apperrors.NewConflictError(apperrors.ConflictSelfOverlap, "you already have an appointment at this time")
	}
	return nil
}

// refresh evicts a cached resource after an availability rejection so the
// next attempt sees edited hours.
func (s *appointmentService) refresh(ctx context.Context, log *logrus.Entry, ref domain.ResourceRef) {
	inv, ok := s.catalog.(catalog.Invalidator)
	if !ok {
		return
	}
	if err := inv.Invalidate(ctx, ref); err != nil {
		log.WithError(err).Warn("Failed to evict cached resource")
	}
}

// internal passes typed failures through and wraps anything else.
func (s *appointmentService) internal(log *logrus.Entry, err error, message string) error {
	if _, ok := apperrors.As(err); ok {
		return err
	}
	log.WithError(err).Error(message)
	return apperrors.NewInternalError(message, err)
}

// notify is best-effort: the transition is already committed, so a failed
// dispatch is logged and counted only. It does not inherit the caller's
// cancellation.
func (s *appointmentService) notify(ctx context.Context, intent domain.NotificationIntent) bool {
	if s.notifier == nil {
		return false
	}
	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.settings.NotifyTimeout)
	defer cancel()

	if err := s.notifier.Dispatch(nctx, intent); err != nil {
		s.metrics.ObserveNotificationFailure(string(intent.Kind))
		s.Logger.WithFields(logrus.Fields{
			"Function":      "notify",
			"Kind":          intent.Kind,
			"AppointmentID": intent.AppointmentID,
			"RecipientID":   intent.RecipientID,
			"Error":         apperrors.NewDownstreamError("dispatch notification", err),
		}).Error("Failed to dispatch notification")
		return false
	}
	return true
}

func (s *appointmentService) intentFor(appt *domain.Appointment, tr lifecycle.Transition, recipient string, now time.Time) domain.NotificationIntent {
	intent := domain.NotificationIntent{
		Kind:          tr.NotificationKind(),
		RecipientID:   recipient,
		AppointmentID: appt.ID,
		OccurredAt:    now,
	}
	switch tr.Event {
	case lifecycle.EventReschedule:
		old, moved := tr.OldInstant, tr.NewInstant
		intent.OldInstant = &old
		intent.NewInstant = &moved
	case lifecycle.EventCancel:
		old := tr.OldInstant
		intent.OldInstant = &old
	default:
		at := appt.ScheduledAt
		intent.NewInstant = &at
	}
	return intent
}

// recipientFor picks the party that did not act. Lab bookings always notify
// the subject, as does a resource without a known owner.
func recipientFor(appt *domain.Appointment, resource *domain.Resource, actorID string) string {
	if appt.IsLab() || resource.OwnerID == "" || actorID == resource.OwnerID {
		return appt.SubjectID
	}
	return resource.OwnerID
}

// track opens a span and records the operation's outcome when the returned
// func is deferred with the named error.
func (s *appointmentService) track(ctx context.Context, operation string) (context.Context, func(*error)) {
	ctx, span := tracer.Start(ctx, "scheduling."+operation)
	start := time.Now()
	return ctx, func(errp *error) {
		outcome := "ok"
		if err := *errp; err != nil {
			outcome = string(apperrors.ErrorTypeInternal)
			if appErr, ok := apperrors.As(err); ok {
				outcome = string(appErr.Type)
			}
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.SetAttributes(attribute.String("scheduling.outcome", outcome))
		s.metrics.ObserveOperation(operation, outcome, time.Since(start).Seconds())
		span.End()
	}
}
