package repository

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/nuhmanudheent/hosp-connect-scheduling-service/internal/domain"
)

// doctorSlotIndex backs the one-active-appointment-per-doctor-instant rule.
const doctorSlotIndex = `CREATE UNIQUE INDEX IF NOT EXISTS idx_appointments_doctor_active_slot
ON appointments (doctor_id, scheduled_at)
WHERE doctor_id IS NOT NULL AND status IN ('PENDING', 'CONFIRMED', 'RESCHEDULED')`

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&domain.Appointment{},
		&DoctorRecord{},
		&LabRecord{},
		&AvailabilityRecord{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	if err := db.Exec(doctorSlotIndex).Error; err != nil {
		return fmt.Errorf("create doctor slot index: %w", err)
	}
	return nil
}
