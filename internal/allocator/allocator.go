package allocator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nuhmanudheent/hosp-connect-scheduling-service/internal/domain"
	apperrors "github.com/nuhmanudheent/hosp-connect-scheduling-service/pkg/errors"
)

// ActiveFinder is the slice of the appointment store the allocator reads.
type ActiveFinder interface {
	FindActive(ctx context.Context, q domain.ActiveQuery) ([]domain.Appointment, error)
}

// Allocator decides whether an instant on a resource can take one more
// booking. It is a pre-flight check; the store's transactional guard is
// what actually keeps the invariant under concurrency.
type Allocator struct {
	store ActiveFinder
}

func New(store ActiveFinder) *Allocator {
	return &Allocator{store: store}
}

// Window returns the ScheduledAt range that competes with instant on resource.
func Window(resource *domain.Resource, instant time.Time) (time.Time, time.Time) {
	if resource.Ref.Kind == domain.KindLab {
		tol := resource.Tolerance()
		return instant.Add(-tol), instant.Add(tol)
	}
	return instant, instant
}

// CanAllocate returns nil when instant is free on resource, or a CONFLICT
// AppError. excluding is the appointment being moved, uuid.Nil otherwise.
func (a *Allocator) CanAllocate(ctx context.Context, resource *domain.Resource, instant time.Time, excluding uuid.UUID) error {
	from, to := Window(resource, instant)
	ref := resource.Ref
	existing, err := a.store.FindActive(ctx, domain.ActiveQuery{
		Resource:  &ref,
		From:      from,
		To:        to,
		ExcludeID: excluding,
	})
	if err != nil {
		return fmt.Errorf("find active appointments for %s: %w", ref, err)
	}
	return Evaluate(resource, instant, existing, excluding)
}

// Evaluate applies the allocation rule to an already loaded set of
// appointments, which may be wider than the competing window.
func Evaluate(resource *domain.Resource, instant time.Time, existing []domain.Appointment, excluding uuid.UUID) error {
	from, to := Window(resource, instant)
	ref := resource.Ref
	q := domain.ActiveQuery{Resource: &ref, From: from, To: to, ExcludeID: excluding}

	count := 0
	for i := range existing {
		if q.Matches(&existing[i]) {
			count++
		}
	}

	switch ref.Kind {
	case domain.KindDoctor:
		if count > 0 {
			return apperrors.NewConflictError(apperrors.ConflictAlreadyBooked, "this time slot is already booked")
		}
	case domain.KindLab:
		if count >= resource.MaxConcurrent() {
			return apperrors.NewConflictError(apperrors.ConflictFullyBooked, "lab is fully booked at this time")
		}
	default:
		return apperrors.NewValidationError(fmt.Sprintf("unknown resource kind %q", ref.Kind))
	}
	return nil
}
