package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/nuhmanudheent/hosp-connect-scheduling-service/internal/domain"
	apperrors "github.com/nuhmanudheent/hosp-connect-scheduling-service/pkg/errors"
)

type DoctorRecord struct {
	ID           string               `gorm:"primaryKey"`
	UserID       string               `gorm:"not null;index"`
	TimeZone     string               `gorm:"type:varchar(64)"`
	NoOfPatients int                  `gorm:"not null;default:0"`
	Availability []AvailabilityRecord `gorm:"foreignKey:DoctorID"`
}

func (DoctorRecord) TableName() string { return "doctors" }

type LabRecord struct {
	ID                          string `gorm:"primaryKey"`
	OwnerID                     string `gorm:"not null;index"`
	TimeZone                    string `gorm:"type:varchar(64)"`
	MaxConcurrentBookings       int
	ConcurrencyToleranceMinutes int
	Availability                []AvailabilityRecord `gorm:"foreignKey:LabID"`
}

func (LabRecord) TableName() string { return "labs" }

// AvailabilityRecord stores Day as written by the owning service: a weekday
// name for doctors, a numeric weekday for labs.
type AvailabilityRecord struct {
	ID        uint    `gorm:"primaryKey"`
	DoctorID  *string `gorm:"index"`
	LabID     *string `gorm:"index"`
	Day       string  `gorm:"not null"`
	StartTime string  `gorm:"type:char(5);not null"`
	EndTime   string  `gorm:"type:char(5);not null"`
}

func (AvailabilityRecord) TableName() string { return "availabilities" }

// LabDefaults fill lab settings the catalog row leaves at zero.
type LabDefaults struct {
	MaxConcurrentBookings int
	ConcurrencyTolerance  time.Duration
}

type CatalogRepository interface {
	GetResource(ctx context.Context, ref domain.ResourceRef) (*domain.Resource, error)
	IncrementPatientCount(ctx context.Context, doctorID string) error
}

type catalogRepository struct {
	db          *gorm.DB
	defaultZone string
	labDefaults LabDefaults
}

func NewCatalogRepository(db *gorm.DB, defaultZone string, labDefaults LabDefaults) CatalogRepository {
	return &catalogRepository{
		db:          db,
		defaultZone: defaultZone,
		labDefaults: labDefaults,
	}
}

func (r *catalogRepository) GetResource(ctx context.Context, ref domain.ResourceRef) (*domain.Resource, error) {
	switch ref.Kind {
	case domain.KindDoctor:
		var doctor DoctorRecord
		err := r.db.WithContext(ctx).Preload("Availability").Where("id = ?", ref.ID).First(&doctor).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFoundError("doctor not found")
		}
		if err != nil {
			return nil, err
		}
		windows, err := toWindows(ref.Kind, doctor.Availability)
		if err != nil {
			return nil, err
		}
		return &domain.Resource{
			Ref:      ref,
			OwnerID:  doctor.UserID,
			TimeZone: r.zone(doctor.TimeZone),
			Windows:  windows,
		}, nil

	case domain.KindLab:
		var lab LabRecord
		err := r.db.WithContext(ctx).Preload("Availability").Where("id = ?", ref.ID).First(&lab).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFoundError("lab not found")
		}
		if err != nil {
			return nil, err
		}
		windows, err := toWindows(ref.Kind, lab.Availability)
		if err != nil {
			return nil, err
		}
		res := &domain.Resource{
			Ref:                   ref,
			OwnerID:               lab.OwnerID,
			TimeZone:              r.zone(lab.TimeZone),
			Windows:               windows,
			MaxConcurrentBookings: lab.MaxConcurrentBookings,
			ConcurrencyTolerance:  time.Duration(lab.ConcurrencyToleranceMinutes) * time.Minute,
		}
		if res.MaxConcurrentBookings <= 0 {
			res.MaxConcurrentBookings = r.labDefaults.MaxConcurrentBookings
		}
		if res.ConcurrencyTolerance <= 0 {
			res.ConcurrencyTolerance = r.labDefaults.ConcurrencyTolerance
		}
		return res, nil
	}
	return nil, apperrors.NewValidationError(fmt.Sprintf("unknown resource kind %q", ref.Kind))
}

func (r *catalogRepository) IncrementPatientCount(ctx context.Context, doctorID string) error {
	res := r.db.WithContext(ctx).Model(&DoctorRecord{}).
		Where("id = ?", doctorID).
		UpdateColumn("no_of_patients", gorm.Expr("no_of_patients + ?", 1))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperrors.NewNotFoundError("doctor not found")
	}
	return nil
}

func (r *catalogRepository) zone(tz string) string {
	if tz == "" {
		return r.defaultZone
	}
	return tz
}

func toWindows(kind domain.ResourceKind, rows []AvailabilityRecord) ([]domain.AvailabilityWindow, error) {
	windows := make([]domain.AvailabilityWindow, 0, len(rows))
	for _, row := range rows {
		w, err := domain.NewAvailabilityWindow(kind, row.Day, row.StartTime, row.EndTime)
		if err != nil {
			return nil, apperrors.NewInternalError(fmt.Sprintf("availability row %d", row.ID), err)
		}
		windows = append(windows, w)
	}
	return windows, nil
}
