package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nuhmanudheent/hosp-connect-scheduling-service/internal/domain"
	apperrors "github.com/nuhmanudheent/hosp-connect-scheduling-service/pkg/errors"
)

// memoryAppointmentRepository keeps appointments in process. Booking
// transactions are serialised and every write re-checks doctor-instant
// uniqueness, mirroring the postgres index.
type memoryAppointmentRepository struct {
	txMu  sync.Mutex
	mu    sync.RWMutex
	appts map[uuid.UUID]domain.Appointment
}

func NewMemoryAppointmentRepository() AppointmentRepository {
	return &memoryAppointmentRepository{appts: make(map[uuid.UUID]domain.Appointment)}
}

func (r *memoryAppointmentRepository) FindActive(_ context.Context, q domain.ActiveQuery) ([]domain.Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.collect(q.Matches), nil
}

func (r *memoryAppointmentRepository) GetByID(_ context.Context, id uuid.UUID) (*domain.Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.appts[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("appointment not found")
	}
	return &a, nil
}

func (r *memoryAppointmentRepository) Create(_ context.Context, appointment *domain.Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.appts[appointment.ID]; exists {
		return apperrors.NewConflictError(apperrors.ConflictAlreadyBooked, "appointment already exists")
	}
	if err := r.checkUnique(appointment); err != nil {
		return err
	}
	r.appts[appointment.ID] = *appointment
	return nil
}

func (r *memoryAppointmentRepository) Update(_ context.Context, appointment *domain.Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.appts[appointment.ID]; !exists {
		return apperrors.NewNotFoundError("appointment not found")
	}
	if err := r.checkUnique(appointment); err != nil {
		return err
	}
	r.appts[appointment.ID] = *appointment
	return nil
}

func (r *memoryAppointmentRepository) ListBySubject(_ context.Context, subjectID string) ([]domain.Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.collect(func(a *domain.Appointment) bool { return a.SubjectID == subjectID }), nil
}

func (r *memoryAppointmentRepository) ListActiveBetween(_ context.Context, from, to time.Time) ([]domain.Appointment, error) {
	q := domain.ActiveQuery{From: from, To: to}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.collect(q.Matches), nil
}

// WithinBookingTx serialises booking transactions and restores the previous
// state when fn fails.
func (r *memoryAppointmentRepository) WithinBookingTx(_ context.Context, _ domain.ResourceRef, fn func(tx AppointmentRepository) error) error {
	r.txMu.Lock()
	defer r.txMu.Unlock()

	r.mu.RLock()
	snapshot := make(map[uuid.UUID]domain.Appointment, len(r.appts))
	for id, a := range r.appts {
		snapshot[id] = a
	}
	r.mu.RUnlock()

	if err := fn(r); err != nil {
		r.mu.Lock()
		r.appts = snapshot
		r.mu.Unlock()
		return err
	}
	return nil
}

// checkUnique must be called with mu held.
func (r *memoryAppointmentRepository) checkUnique(candidate *domain.Appointment) error {
	if candidate.DoctorID == nil || !candidate.Status.IsActive() {
		return nil
	}
	for id, a := range r.appts {
		if id == candidate.ID || a.DoctorID == nil || !a.Status.IsActive() {
			continue
		}
		if *a.DoctorID == *candidate.DoctorID && a.ScheduledAt.Equal(candidate.ScheduledAt) {
			return apperrors.NewConflictError(apperrors.ConflictAlreadyBooked, "this time slot is already booked")
		}
	}
	return nil
}

// collect must be called with mu held.
func (r *memoryAppointmentRepository) collect(keep func(*domain.Appointment) bool) []domain.Appointment {
	var out []domain.Appointment
	for _, a := range r.appts {
		if keep(&a) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledAt.Before(out[j].ScheduledAt) })
	return out
}
