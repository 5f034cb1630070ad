package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 2026-03-02 is a Monday.
var monday = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

func TestParseDayKey(t *testing.T) {
	tests := []struct {
		name    string
		kind    ResourceKind
		raw     string
		want    DayKey
		wantErr bool
	}{
		{"doctor name", KindDoctor, "Monday", NamedDay("Monday"), false},
		{"doctor numeric rejected", KindDoctor, "1", nil, true},
		{"doctor lowercase rejected", KindDoctor, "monday", nil, true},
		{"lab numeric", KindLab, "1", NumericDay("1"), false},
		{"lab name rejected", KindLab, "Monday", nil, true},
		{"lab out of range", KindLab, "7", nil, true},
		{"lab padded rejected", KindLab, "01", nil, true},
		{"unknown kind", ResourceKind("nurse"), "1", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDayKey(tt.kind, tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDayKeyVariantsMatchSameWeekday(t *testing.T) {
	assert.True(t, NamedDay("Monday").MatchesDay(monday))
	assert.True(t, NumericDay("1").MatchesDay(monday))
	assert.False(t, NamedDay("Tuesday").MatchesDay(monday))
	assert.False(t, NumericDay("0").MatchesDay(monday))
}

func TestParseClock(t *testing.T) {
	c, err := ParseClock("09:30")
	require.NoError(t, err)
	assert.Equal(t, ClockTime(570), c)
	assert.Equal(t, "09:30", c.String())

	for _, bad := range []string{"9:30", "24:00", "09:60", "0930", ""} {
		_, err := ParseClock(bad)
		assert.Error(t, err, bad)
	}
}

func TestAvailabilityWindowContains(t *testing.T) {
	w, err := NewAvailabilityWindow(KindDoctor, "Monday", "09:00", "17:00")
	require.NoError(t, err)

	at := func(h, m, s int) time.Time { return time.Date(2026, 3, 2, h, m, s, 0, time.UTC) }

	assert.True(t, w.Contains(at(9, 0, 0)))
	assert.True(t, w.Contains(at(17, 0, 0)))
	assert.True(t, w.Contains(at(17, 0, 59)), "seconds are truncated")
	assert.False(t, w.Contains(at(17, 1, 0)))
	assert.False(t, w.Contains(at(8, 59, 0)))
	assert.False(t, w.Contains(at(10, 0, 0).AddDate(0, 0, 1)))
}

func TestNewAvailabilityWindow_RejectsWraparound(t *testing.T) {
	_, err := NewAvailabilityWindow(KindLab, "1", "22:00", "02:00")
	assert.Error(t, err)
}

func TestResourceDefaults(t *testing.T) {
	r := &Resource{Ref: ResourceRef{Kind: KindLab, ID: "lab-1"}, TimeZone: "Not/AZone"}

	assert.Equal(t, DefaultMaxConcurrentBookings, r.MaxConcurrent())
	assert.Equal(t, DefaultConcurrencyTolerance, r.Tolerance())
	assert.Equal(t, time.UTC, r.Location())

	r.MaxConcurrentBookings = 5
	r.ConcurrencyTolerance = 10 * time.Minute
	assert.Equal(t, 5, r.MaxConcurrent())
	assert.Equal(t, 10*time.Minute, r.Tolerance())
}

func TestActiveQueryMatches(t *testing.T) {
	doctor := "doc-1"
	ref := ResourceRef{Kind: KindDoctor, ID: doctor}
	a := &Appointment{ID: uuid.New(), SubjectID: "p-1", DoctorID: &doctor, ScheduledAt: monday, Status: StatusConfirmed}

	q := ActiveQuery{Resource: &ref, From: monday, To: monday}
	assert.True(t, q.Matches(a))

	q.ExcludeID = a.ID
	assert.False(t, q.Matches(a))

	q.ExcludeID = uuid.Nil
	a.Status = StatusCancelled
	assert.False(t, q.Matches(a))

	a.Status = StatusRescheduled
	assert.True(t, ActiveQuery{SubjectID: "p-1", From: monday, To: monday}.Matches(a))
	assert.False(t, ActiveQuery{SubjectID: "p-2", From: monday, To: monday}.Matches(a))
}
