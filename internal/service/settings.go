package service

import "time"

// Settings are the orchestrator's tunables.
type Settings struct {
	BookingBuffer   time.Duration
	DoctorSlot      time.Duration
	LabSlot         time.Duration
	CatalogTimeout  time.Duration
	NotifyTimeout   time.Duration
	ReminderHorizon time.Duration
}

func DefaultSettings() Settings {
	return Settings{
		BookingBuffer:   5 * time.Minute,
		DoctorSlot:      30 * time.Minute,
		LabSlot:         15 * time.Minute,
		CatalogTimeout:  3 * time.Second,
		NotifyTimeout:   5 * time.Second,
		ReminderHorizon: 24 * time.Hour,
	}
}
