package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/scheduling")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":50053", cfg.GRPCPort)
	assert.Equal(t, "appointment_topic", cfg.NotificationTopic)
	assert.Equal(t, "0 8 * * *", cfg.ReminderCron)
	assert.Equal(t, 5*time.Minute, cfg.Scheduling.BookingBuffer)
	assert.Equal(t, 30*time.Minute, cfg.Scheduling.DoctorSlot)
	assert.Equal(t, 15*time.Minute, cfg.Scheduling.LabSlot)
	assert.Equal(t, 3, cfg.Lab.MaxConcurrentBookings)
	assert.Equal(t, 14*time.Minute, cfg.Lab.ConcurrencyTolerance)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/scheduling")
	t.Setenv("BOOKING_BUFFER", "10m")
	t.Setenv("LAB_SLOT_MINUTES", "20")
	t.Setenv("MAX_ATTEMPTS_TO_BOOK", "5")
	t.Setenv("DEFAULT_TIMEZONE", "Asia/Kolkata")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 10*time.Minute, cfg.Scheduling.BookingBuffer)
	assert.Equal(t, 20*time.Minute, cfg.Scheduling.LabSlot)
	assert.Equal(t, 5, cfg.Lab.MaxConcurrentBookings)
	assert.Equal(t, "Asia/Kolkata", cfg.DefaultTimeZone)

	t.Setenv("LAB_MAX_CONCURRENT", "2")
	cfg, err = Load()
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Lab.MaxConcurrentBookings, "new name wins")
}

func TestLoad_Invalid(t *testing.T) {
	tests := map[string]string{
		"LAB_MAX_CONCURRENT":  "zero",
		"BOOKING_BUFFER":      "soon",
		"DEFAULT_TIMEZONE":    "Mars/Olympus",
		"DOCTOR_SLOT_MINUTES": "-30",
	}
	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			t.Setenv("DATABASE_URL", "postgres://localhost/scheduling")
			t.Setenv(key, value)
			_, err := Load()
			assert.Error(t, err)
		})
	}

	t.Run("missing database", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "")
		_, err := Load()
		assert.Error(t, err)
	})
}

func TestLoadEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scheduling.env")
	require.NoError(t, os.WriteFile(path, []byte("NOTIFICATION_TOPIC=from_file\n"), 0o600))

	t.Setenv("ENV_FILE", path)
	t.Setenv("NOTIFICATION_TOPIC", "")
	os.Unsetenv("NOTIFICATION_TOPIC")
	require.NoError(t, LoadEnv())
	assert.Equal(t, "from_file", os.Getenv("NOTIFICATION_TOPIC"))
	os.Unsetenv("NOTIFICATION_TOPIC")

	t.Setenv("ENV_FILE", filepath.Join(dir, "missing.env"))
	assert.NoError(t, LoadEnv())
}
