package domain

import (
	"fmt"
	"strconv"
	"time"
)

type ResourceKind string

const (
	KindDoctor ResourceKind = "doctor"
	KindLab    ResourceKind = "lab"
)

const (
	DefaultMaxConcurrentBookings = 3
	DefaultConcurrencyTolerance  = 14 * time.Minute
)

type ResourceRef struct {
	Kind ResourceKind
	ID   string
}

func (r ResourceRef) String() string { return string(r.Kind) + ":" + r.ID }

func (r ResourceRef) Valid() bool {
	return r.ID != "" && (r.Kind == KindDoctor || r.Kind == KindLab)
}

// Resource is a bookable doctor or lab as read from the catalog.
type Resource struct {
	Ref      ResourceRef
	OwnerID  string
	TimeZone string
	Windows  []AvailabilityWindow

	// Lab only.
	MaxConcurrentBookings int
	ConcurrencyTolerance  time.Duration
}

// Location is the resource-local zone; unknown zones fall back to UTC.
func (r *Resource) Location() *time.Location {
	if r.TimeZone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(r.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (r *Resource) MaxConcurrent() int {
	if r.MaxConcurrentBookings <= 0 {
		return DefaultMaxConcurrentBookings
	}
	return r.MaxConcurrentBookings
}

func (r *Resource) Tolerance() time.Duration {
	if r.ConcurrencyTolerance <= 0 {
		return DefaultConcurrencyTolerance
	}
	return r.ConcurrencyTolerance
}

// DayKey identifies the weekday a window recurs on. Doctors and labs encode
// it differently and the two encodings are kept apart on purpose.
type DayKey interface {
	MatchesDay(t time.Time) bool
	String() string
}

// NamedDay is the doctor encoding, e.g. "Monday".
type NamedDay string

func (d NamedDay) MatchesDay(t time.Time) bool { return string(d) == t.Weekday().String() }
func (d NamedDay) String() string             { return string(d) }

// NumericDay is the lab encoding, "0" (Sunday) through "6".
type NumericDay string

func (d NumericDay) MatchesDay(t time.Time) bool {
	return string(d) == strconv.Itoa(int(t.Weekday()))
}
func (d NumericDay) String() string { return string(d) }

// ParseDayKey builds the day encoding used by the given resource kind.
func ParseDayKey(kind ResourceKind, raw string) (DayKey, error) {
	switch kind {
	case KindDoctor:
		for d := time.Sunday; d <= time.Saturday; d++ {
			if raw == d.String() {
				return NamedDay(raw), nil
			}
		}
		return nil, fmt.Errorf("invalid doctor day %q", raw)
	case KindLab:
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 || n > 6 || strconv.Itoa(n) != raw {
			return nil, fmt.Errorf("invalid lab day %q", raw)
		}
		return NumericDay(raw), nil
	}
	return nil, fmt.Errorf("unknown resource kind %q", kind)
}

// ClockTime is a wall-clock time of day in minutes after midnight.
type ClockTime int

func ParseClock(s string) (ClockTime, error) {
	t, err := time.Parse("15:04", s)
	if err != nil || len(s) != 5 {
		return 0, fmt.Errorf("invalid time of day %q, want HH:MM", s)
	}
	return ClockTime(t.Hour()*60 + t.Minute()), nil
}

// ClockOf truncates t to the minute.
func ClockOf(t time.Time) ClockTime {
	return ClockTime(t.Hour()*60 + t.Minute())
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// On returns the instant of c on the calendar day of date, in loc.
func (c ClockTime) On(date time.Time, loc *time.Location) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), int(c)/60, int(c)%60, 0, 0, loc)
}

type AvailabilityWindow struct {
	Day   DayKey
	Start ClockTime
	End   ClockTime
}

func NewAvailabilityWindow(kind ResourceKind, day, start, end string) (AvailabilityWindow, error) {
	key, err := ParseDayKey(kind, day)
	if err != nil {
		return AvailabilityWindow{}, err
	}
	s, err := ParseClock(start)
	if err != nil {
		return AvailabilityWindow{}, err
	}
	e, err := ParseClock(end)
	if err != nil {
		return AvailabilityWindow{}, err
	}
	if s > e {
		return AvailabilityWindow{}, fmt.Errorf("window start %s after end %s", start, end)
	}
	return AvailabilityWindow{Day: key, Start: s, End: e}, nil
}

// Contains reports whether local (already in the resource zone) falls on
// the window's day between start and end inclusive.
func (w AvailabilityWindow) Contains(local time.Time) bool {
	if !w.Day.MatchesDay(local) {
		return false
	}
	c := ClockOf(local)
	return w.Start <= c && c <= w.End
}
