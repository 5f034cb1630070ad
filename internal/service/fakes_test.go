package service

import (
	"context"
	"errors"
	"io"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nuhmanudheent/hosp-connect-scheduling-service/internal/domain"
	"github.com/nuhmanudheent/hosp-connect-scheduling-service/internal/repository"
	apperrors "github.com/nuhmanudheent/hosp-connect-scheduling-service/pkg/errors"
)

var (
	drX  = domain.ResourceRef{Kind: domain.KindDoctor, ID: "doc-x"}
	labL = domain.ResourceRef{Kind: domain.KindLab, ID: "lab-l"}

	// Friday; the next Monday is 2026-03-02.
	friday = time.Date(2026, 2, 27, 9, 0, 0, 0, time.UTC)
	monday = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
)

func mondayAt(hour, minute int) time.Time {
	return monday.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

type stubCatalog struct {
	resources map[domain.ResourceRef]*domain.Resource
	err       error
}

func (c *stubCatalog) GetResource(_ context.Context, ref domain.ResourceRef) (*domain.Resource, error) {
	if c.err != nil {
		return nil, c.err
	}
	res, ok := c.resources[ref]
	if !ok {
		return nil, apperrors.NewNotFoundError(string(ref.Kind) + " not found")
	}
	return res, nil
}

// barrierCatalog holds every lookup until arrived reaches zero.
type barrierCatalog struct {
	next    *stubCatalog
	arrived sync.WaitGroup
}

func (c *barrierCatalog) GetResource(ctx context.Context, ref domain.ResourceRef) (*domain.Resource, error) {
	c.arrived.Done()
	c.arrived.Wait()
	return c.next.GetResource(ctx, ref)
}

type invalidatingCatalog struct {
	*stubCatalog
	mu   sync.Mutex
	refs []domain.ResourceRef
}

func (c *invalidatingCatalog) Invalidate(_ context.Context, ref domain.ResourceRef) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refs = append(c.refs, ref)
	return nil
}

func (c *invalidatingCatalog) evicted() []domain.ResourceRef {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.refs)
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

type recordingNotifier struct {
	mu      sync.Mutex
	intents []domain.NotificationIntent
	err     error
}

func (n *recordingNotifier) Dispatch(_ context.Context, intent domain.NotificationIntent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.intents = append(n.intents, intent)
	return nil
}

func (n *recordingNotifier) last() domain.NotificationIntent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.intents[len(n.intents)-1]
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.intents)
}

type countingCounter struct {
	mu     sync.Mutex
	counts map[string]int
	err    error
}

func (c *countingCounter) IncrementPatientCount(_ context.Context, doctorID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.counts[doctorID]++
	return nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type harness struct {
	svc      AppointmentService
	repo     repository.AppointmentRepository
	catalog  *stubCatalog
	notifier *recordingNotifier
	counter  *countingCounter
	clock    *fakeClock
}

func window(t *testing.T, kind domain.ResourceKind, day, start, end string) domain.AvailabilityWindow {
	t.Helper()
	w, err := domain.NewAvailabilityWindow(kind, day, start, end)
	if err != nil {
		t.Fatalf("window: %v", err)
	}
	return w
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	h := &harness{
		repo: repository.NewMemoryAppointmentRepository(),
		catalog: &stubCatalog{resources: map[domain.ResourceRef]*domain.Resource{
			drX: {
				Ref:      drX,
				OwnerID:  "u-drx",
				TimeZone: "UTC",
				Windows:  []domain.AvailabilityWindow{window(t, domain.KindDoctor, "Monday", "09:00", "17:00")},
			},
			labL: {
				Ref:                   labL,
				OwnerID:               "u-lab",
				TimeZone:              "UTC",
				Windows:               []domain.AvailabilityWindow{window(t, domain.KindLab, "1", "08:00", "13:00")},
				MaxConcurrentBookings: 3,
				ConcurrencyTolerance:  14 * time.Minute,
			},
		}},
		notifier: &recordingNotifier{},
		counter:  &countingCounter{counts: map[string]int{}},
		clock:    &fakeClock{now: friday},
	}
	h.svc = NewAppointmentService(h.repo, h.catalog, h.notifier, logger,
		WithClock(h.clock.Now),
		WithPatientCounter(h.counter),
	)
	return h
}

func (h *harness) bookDoctor(t *testing.T, subject string, at time.Time) (*domain.Appointment, error) {
	t.Helper()
	return h.svc.CreateAppointment(context.Background(), CreateRequest{SubjectID: subject, DoctorID: drX.ID, At: at})
}

func (h *harness) bookLab(t *testing.T, subject string, at time.Time) (*domain.Appointment, error) {
	t.Helper()
	return h.svc.CreateAppointment(context.Background(), CreateRequest{SubjectID: subject, LabID: labL.ID, TestID: "cbc", At: at})
}

var errBroker = errors.New("broker unreachable")
