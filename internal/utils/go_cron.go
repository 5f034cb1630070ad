package utils

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/nuhmanudheent/hosp-connect-scheduling-service/internal/service"
)

// ReminderJob is the part of the scheduling service the cron job drives.
type ReminderJob interface {
	SendDailyReminders(ctx context.Context) (int, error)
}

var _ ReminderJob = (service.AppointmentService)(nil)

// StartReminderScheduler runs job on the given cron schedule until the returned
// scheduler is stopped. Each run is bounded by timeout.
func StartReminderScheduler(schedule string, job ReminderJob, timeout time.Duration, logger *logrus.Logger) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		runReminders(job, timeout, logger)
	})
	if err != nil {
		return nil, err
	}
	c.Start()
	logger.WithField("Schedule", schedule).Info("Reminder scheduler started")
	return c, nil
}

func runReminders(job ReminderJob, timeout time.Duration, logger *logrus.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	sent, err := job.SendDailyReminders(ctx)
	if err != nil {
		logger.WithError(err).Error("Daily reminder run failed")
		return
	}
	logger.WithField("Sent", sent).Info("Daily reminder run finished")
}
