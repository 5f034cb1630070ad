package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/nuhmanudheent/hosp-connect-scheduling-service/internal/domain"
	apperrors "github.com/nuhmanudheent/hosp-connect-scheduling-service/pkg/errors"
)

type AppointmentRepository interface {
	FindActive(ctx context.Context, q domain.ActiveQuery) ([]domain.Appointment, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Appointment, error)
	Create(ctx context.Context, appointment *domain.Appointment) error
	Update(ctx context.Context, appointment *domain.Appointment) error
	ListBySubject(ctx context.Context, subjectID string) ([]domain.Appointment, error)
	ListActiveBetween(ctx context.Context, from, to time.Time) ([]domain.Appointment, error)
	// WithinBookingTx runs fn so that its reads and its write are atomic
	// with respect to other bookings on ref.
	WithinBookingTx(ctx context.Context, ref domain.ResourceRef, fn func(tx AppointmentRepository) error) error
}

type appointmentRepository struct {
	db *gorm.DB
}

func NewAppointmentRepository(db *gorm.DB) AppointmentRepository {
	return &appointmentRepository{
		db: db,
	}
}

func (r *appointmentRepository) FindActive(ctx context.Context, q domain.ActiveQuery) ([]domain.Appointment, error) {
	query := r.db.WithContext(ctx).Model(&domain.Appointment{}).
		Where("status IN ?", domain.ActiveStatuses).
		Where("scheduled_at BETWEEN ? AND ?", q.From, q.To)

	if q.Resource != nil {
		switch q.Resource.Kind {
		case domain.KindDoctor:
			query = query.Where("doctor_id = ?", q.Resource.ID)
		case domain.KindLab:
			query = query.Where("lab_id = ?", q.Resource.ID)
		default:
			return nil, apperrors.NewValidationError(fmt.Sprintf("unknown resource kind %q", q.Resource.Kind))
		}
	}
	if q.SubjectID != "" {
		query = query.Where("subject_id = ?", q.SubjectID)
	}
	if q.ExcludeID != uuid.Nil {
		query = query.Where("id <> ?", q.ExcludeID)
	}

	var appointments []domain.Appointment
	if err := query.Order("scheduled_at ASC").Find(&appointments).Error; err != nil {
		return nil, err
	}
	return appointments, nil
}

func (r *appointmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Appointment, error) {
	var appointment domain.Appointment
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&appointment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NewNotFoundError("appointment not found")
	}
	if err != nil {
		return nil, err
	}
	return &appointment, nil
}

// Create relies on idx_appointments_doctor_active_slot as the last word on
// doctor double-booking.
func (r *appointmentRepository) Create(ctx context.Context, appointment *domain.Appointment) error {
	if err := r.db.WithContext(ctx).Create(appointment).Error; err != nil {
		return translateError(err, appointment.Ref())
	}
	return nil
}

func (r *appointmentRepository) Update(ctx context.Context, appointment *domain.Appointment) error {
	res := r.db.WithContext(ctx).Model(&domain.Appointment{}).
		Where("id = ?", appointment.ID).
		Updates(map[string]interface{}{
			"scheduled_at":   appointment.ScheduledAt,
			"status":         appointment.Status,
			"rescheduled_at": appointment.RescheduledAt,
			"cancelled_at":   appointment.CancelledAt,
			"updated_at":     appointment.UpdatedAt,
		})
	if res.Error != nil {
		return translateError(res.Error, appointment.Ref())
	}
	if res.RowsAffected == 0 {
		return apperrors.NewNotFoundError("appointment not found")
	}
	return nil
}

func (r *appointmentRepository) ListBySubject(ctx context.Context, subjectID string) ([]domain.Appointment, error) {
	var appointments []domain.Appointment
	err := r.db.WithContext(ctx).Where("subject_id = ?", subjectID).Order("scheduled_at ASC").Find(&appointments).Error
	if err != nil {
		return nil, err
	}
	return appointments, nil
}

func (r *appointmentRepository) ListActiveBetween(ctx context.Context, from, to time.Time) ([]domain.Appointment, error) {
	var appointments []domain.Appointment
	err := r.db.WithContext(ctx).
		Where("status IN ? AND scheduled_at BETWEEN ? AND ?", domain.ActiveStatuses, from, to).
		Order("scheduled_at ASC").
		Find(&appointments).Error
	if err != nil {
		return nil, err
	}
	return appointments, nil
}

// WithinBookingTx runs fn in a SERIALIZABLE transaction. A concurrent
// booking that makes the check stale aborts one side with 40001, which is
// reported as a conflict and never retried here.
func (r *appointmentRepository) WithinBookingTx(ctx context.Context, ref domain.ResourceRef, fn func(tx AppointmentRepository) error) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&appointmentRepository{db: tx})
	}, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return translateError(err, ref)
	}
	return nil
}

const (
	pgUniqueViolation      = "23505"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

func translateError(err error, ref domain.ResourceRef) error {
	if _, ok := apperrors.As(err); ok {
		return err
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return apperrors.NewConflictError(apperrors.ConflictAlreadyBooked, "this time slot is already booked")
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return apperrors.NewConflictError(apperrors.ConflictAlreadyBooked, "this time slot is already booked")
		case pgSerializationFailure, pgDeadlockDetected:
			if ref.Kind == domain.KindLab {
				return apperrors.NewConflictError(apperrors.ConflictFullyBooked, "lab is fully booked at this time")
			}
			return apperrors.NewConflictError(apperrors.ConflictAlreadyBooked, "this time slot is already booked")
		}
	}
	return err
}
