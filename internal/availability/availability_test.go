package availability

import (
	"slices"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nuhmanudheent/hosp-connect-scheduling-service/internal/domain"
)

func doctor(t *testing.T, tz string, windows ...[3]string) *domain.Resource {
	t.Helper()
	r := &domain.Resource{Ref: domain.ResourceRef{Kind: domain.KindDoctor, ID: "doc-1"}, TimeZone: tz}
	for _, w := range windows {
		win, err := domain.NewAvailabilityWindow(domain.KindDoctor, w[0], w[1], w[2])
		require.NoError(t, err)
		r.Windows = append(r.Windows, win)
	}
	return r
}

func TestIsOpenAt(t *testing.T) {
	r := doctor(t, "", [3]string{"Monday", "09:00", "17:00"})

	tests := []struct {
		name    string
		instant time.Time
		want    bool
	}{
		{"inside", time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC), true},
		{"at start", time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC), true},
		{"at end", time.Date(2026, 3, 2, 17, 0, 0, 0, time.UTC), true},
		{"after end", time.Date(2026, 3, 2, 17, 1, 0, 0, time.UTC), false},
		{"wrong day", time.Date(2026, 3, 3, 10, 0, 0, 0, time.UTC), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsOpenAt(r, tt.instant))
		})
	}
}

func TestIsOpenAt_NoWindowsIsClosed(t *testing.T) {
	r := doctor(t, "")
	assert.False(t, IsOpenAt(r, time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)))
}

func TestIsOpenAt_UsesResourceZone(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)
	r := doctor(t, "Asia/Kolkata", [3]string{"Monday", "09:00", "17:00"})

	// 04:00 UTC Monday is 09:30 Monday in Kolkata.
	assert.True(t, IsOpenAt(r, time.Date(2026, 3, 2, 4, 0, 0, 0, time.UTC)))
	// 20:00 UTC Sunday is 01:30 Monday in Kolkata.
	assert.False(t, IsOpenAt(r, time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)))
	assert.True(t, IsOpenAt(r, time.Date(2026, 3, 2, 16, 59, 0, 0, loc)))
}

func TestListOpenSlots(t *testing.T) {
	r := doctor(t, "", [3]string{"Monday", "09:00", "11:00"})
	date := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	taken := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)
	slots := slices.Collect(ListOpenSlots(r, date, 30*time.Minute, func(s time.Time) bool { return s.Equal(taken) }))

	assert.Equal(t, []time.Time{
		time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 2, 10, 30, 0, 0, time.UTC),
	}, slots)
}

func TestListOpenSlots_Restartable(t *testing.T) {
	r := doctor(t, "", [3]string{"Monday", "09:00", "10:00"})
	seq := ListOpenSlots(r, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), 15*time.Minute, nil)

	first := slices.Collect(seq)
	second := slices.Collect(seq)
	assert.Len(t, first, 4)
	assert.Equal(t, first, second)
}

func TestListOpenSlots_StopsEarly(t *testing.T) {
	r := doctor(t, "", [3]string{"Monday", "09:00", "17:00"})
	calls := 0
	for range ListOpenSlots(r, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), 30*time.Minute, func(time.Time) bool {
		calls++
		return false
	}) {
		break
	}
	assert.Equal(t, 1, calls, "occupancy is evaluated lazily")
}

func TestListOpenSlots_ClosedDay(t *testing.T) {
	r := doctor(t, "", [3]string{"Monday", "09:00", "17:00"})
	slots := slices.Collect(ListOpenSlots(r, time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC), 30*time.Minute, nil))
	assert.Empty(t, slots)
}

func TestListOpenSlots_LabNumericDay(t *testing.T) {
	w, err := domain.NewAvailabilityWindow(domain.KindLab, "1", "08:00", "08:45")
	require.NoError(t, err)
	r := &domain.Resource{Ref: domain.ResourceRef{Kind: domain.KindLab, ID: "lab-1"}, Windows: []domain.AvailabilityWindow{w}}

	slots := slices.Collect(ListOpenSlots(r, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), 15*time.Minute, nil))
	assert.Len(t, slots, 3)
}

func TestListOpenSlots_OverlappingWindowsYieldOnce(t *testing.T) {
	r := doctor(t, "",
		[3]string{"Monday", "09:00", "17:00"},
		[3]string{"Monday", "09:00", "10:00"},
		[3]string{"Monday", "16:15", "18:00"},
	)
	slots := slices.Collect(ListOpenSlots(r, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), 30*time.Minute, nil))

	seen := map[time.Time]int{}
	for _, s := range slots {
		seen[s]++
	}
	for s, n := range seen {
		assert.Equal(t, 1, n, "slot %s offered %d times", s.Format(time.Kitchen), n)
	}
	// 16 from the day window plus 16:15, 16:45, 17:15 and 17:45 from the evening one.
	assert.Len(t, slots, 20)
	assert.Equal(t, time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC), slots[0])
}
