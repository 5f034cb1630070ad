package availability

import (
	"iter"
	"time"

	"github.com/nuhmanudheent/hosp-connect-scheduling-service/internal/domain"
)

// IsOpenAt reports whether resource has a window covering instant, evaluated
// on the resource-local weekday and minute. No windows means closed.
func IsOpenAt(resource *domain.Resource, instant time.Time) bool {
	local := instant.In(resource.Location())
	for _, w := range resource.Windows {
		if w.Contains(local) {
			return true
		}
	}
	return false
}

// OccupiedFunc reports whether a candidate slot is already saturated.
type OccupiedFunc func(slot time.Time) bool

// ListOpenSlots walks every window that recurs on date (resource-local
// calendar day) from its start in granularity steps while the slot is before
// the window end. An instant covered by several windows is yielded once.
// occupied is consulted as each slot is generated; nil means
// nothing is occupied. Ranging the sequence again restarts the walk.
func ListOpenSlots(resource *domain.Resource, date time.Time, granularity time.Duration, occupied OccupiedFunc) iter.Seq[time.Time] {
	return func(yield func(time.Time) bool) {
		if granularity <= 0 {
			return
		}
		loc := resource.Location()
		day := time.Date(date.Year(), date.Month(), date.Day(), 12, 0, 0, 0, loc)
		// windows may overlap; each instant is offered once
		seen := make(map[time.Time]struct{})
		for _, w := range resource.Windows {
			if !w.Day.MatchesDay(day) {
				continue
			}
			end := w.End.On(day, loc)
			for slot := w.Start.On(day, loc); slot.Before(end); slot = slot.Add(granularity) {
				key := slot.UTC()
				if _, dup := seen[key]; dup {
					continue
				}
				seen[key] = struct{}{}
				if occupied != nil && occupied(slot) {
					continue
				}
				if !yield(key) {
					return
				}
			}
		}
	}
}
