package handler

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/nuhmanudheent/hosp-connect-scheduling-service/internal/domain"
	"github.com/nuhmanudheent/hosp-connect-scheduling-service/internal/service"
)

// ActorMetadataKey carries the authenticated caller, set by the gateway.
const ActorMetadataKey = "x-actor-id"

var _ SchedulingServer = (*SchedulingHandler)(nil)

type SchedulingHandler struct {
	service service.AppointmentService
	Logger  *logrus.Logger
}

func NewSchedulingHandler(service service.AppointmentService, logger *logrus.Logger) *SchedulingHandler {
	return &SchedulingHandler{
		service: service,
		Logger:  logger,
	}
}

func (h *SchedulingHandler) CreateAppointment(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}
	at, err := timeField(req, "scheduled_at")
	if err != nil {
		return nil, err
	}
	appt, err := h.service.CreateAppointment(ctx, service.CreateRequest{
		SubjectID: actor,
		DoctorID:  stringField(req, "doctor_id"),
		LabID:     stringField(req, "lab_id"),
		TestID:    stringField(req, "test_id"),
		At:        at,
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return appointmentStruct(appt)
}

func (h *SchedulingHandler) ConfirmAppointment(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return h.mutate(ctx, req, h.service.ConfirmAppointment)
}

func (h *SchedulingHandler) CancelAppointment(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return h.mutate(ctx, req, h.service.CancelAppointment)
}

func (h *SchedulingHandler) CompleteAppointment(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return h.mutate(ctx, req, h.service.CompleteAppointment)
}

func (h *SchedulingHandler) GetAppointment(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return h.mutate(ctx, req, h.service.GetAppointment)
}

func (h *SchedulingHandler) RescheduleAppointment(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}
	id, err := idField(req)
	if err != nil {
		return nil, err
	}
	at, err := timeField(req, "scheduled_at")
	if err != nil {
		return nil, err
	}
	appt, err := h.service.RescheduleAppointment(ctx, actor, id, at)
	if err != nil {
		return nil, toStatus(err)
	}
	return appointmentStruct(appt)
}

func (h *SchedulingHandler) ListAppointments(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}
	list, err := h.service.ListAppointments(ctx, actor)
	if err != nil {
		return nil, toStatus(err)
	}
	items := make([]interface{}, 0, len(list))
	for i := range list {
		items = append(items, appointmentMap(&list[i]))
	}
	return structpb.NewStruct(map[string]interface{}{"appointments": items})
}

func (h *SchedulingHandler) ListOpenSlots(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	ref := domain.ResourceRef{
		Kind: domain.ResourceKind(stringField(req, "kind")),
		ID:   stringField(req, "resource_id"),
	}
	date, err := time.Parse(time.DateOnly, stringField(req, "date"))
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "date must be YYYY-MM-DD")
	}
	slots, err := h.service.ListOpenSlots(ctx, ref, date)
	if err != nil {
		return nil, toStatus(err)
	}
	items := []interface{}{}
	for slot := range slots {
		items = append(items, slot.Format(time.RFC3339))
	}
	return structpb.NewStruct(map[string]interface{}{"slots": items})
}

type byIDFunc func(ctx context.Context, actorID string, id uuid.UUID) (*domain.Appointment, error)

func (h *SchedulingHandler) mutate(ctx context.Context, req *structpb.Struct, call byIDFunc) (*structpb.Struct, error) {
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}
	id, err := idField(req)
	if err != nil {
		return nil, err
	}
	appt, err := call(ctx, actor, id)
	if err != nil {
		return nil, toStatus(err)
	}
	return appointmentStruct(appt)
}

func actorFrom(ctx context.Context) (string, error) {
	md, _ := metadata.FromIncomingContext(ctx)
	if values := md.Get(ActorMetadataKey); len(values) > 0 && values[0] != "" {
		return values[0], nil
	}
	return "", status.Error(codes.Unauthenticated, "missing "+ActorMetadataKey)
}

func stringField(req *structpb.Struct, key string) string {
	if v, ok := req.GetFields()[key]; ok {
		return v.GetStringValue()
	}
	return ""
}

func idField(req *structpb.Struct) (uuid.UUID, error) {
	id, err := uuid.Parse(stringField(req, "appointment_id"))
	if err != nil {
		return uuid.Nil, status.Error(codes.InvalidArgument, "appointment_id must be a uuid")
	}
	return id, nil
}

func timeField(req *structpb.Struct, key string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, stringField(req, key))
	if err != nil {
		return time.Time{}, status.Errorf(codes.InvalidArgument, "%s must be an RFC 3339 timestamp", key)
	}
	return t, nil
}

func appointmentStruct(a *domain.Appointment) (*structpb.Struct, error) {
	return structpb.NewStruct(appointmentMap(a))
}

func appointmentMap(a *domain.Appointment) map[string]interface{} {
	m := map[string]interface{}{
		"id":           a.ID.String(),
		"subject_id":   a.SubjectID,
		"scheduled_at": a.ScheduledAt.UTC().Format(time.RFC3339),
		"status":       string(a.Status),
		"created_at":   a.CreatedAt.UTC().Format(time.RFC3339),
		"updated_at":   a.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if a.DoctorID != nil {
		m["doctor_id"] = *a.DoctorID
	}
	if a.LabID != nil {
		m["lab_id"] = *a.LabID
	}
	if a.TestID != nil {
		m["test_id"] = *a.TestID
	}
	if a.RescheduledAt != nil {
		m["rescheduled_at"] = a.RescheduledAt.UTC().Format(time.RFC3339)
	}
	if a.CancelledAt != nil {
		m["cancelled_at"] = a.CancelledAt.UTC().Format(time.RFC3339)
	}
	return m
}
