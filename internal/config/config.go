package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/nuhmanudheent/hosp-connect-scheduling-service/internal/repository"
	"github.com/nuhmanudheent/hosp-connect-scheduling-service/internal/service"
)

type Config struct {
	GRPCPort          string
	MetricsPort       string
	DatabaseURL       string
	RedisAddr         string
	CatalogCacheTTL   time.Duration
	KafkaBroker       string
	NotificationTopic string
	DefaultTimeZone   string
	ReminderCron      string
	Lab               repository.LabDefaults
	Scheduling        service.Settings
}

// LoadEnv loads ENV_FILE (default .env) into the environment. A missing
// file is fine; variables may come from the process environment instead.
func LoadEnv() error {
	path := os.Getenv("ENV_FILE")
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func Load() (*Config, error) {
	settings := service.DefaultSettings()
	cfg := &Config{
		GRPCPort:          envString("APPT_PORT", ":50053"),
		MetricsPort:       envString("METRICS_PORT", ":9102"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		RedisAddr:         envString("REDIS_ADDR", "localhost:6379"),
		KafkaBroker:       envString("KAFKA_BROKER", "localhost:9092"),
		NotificationTopic: envString("NOTIFICATION_TOPIC", "appointment_topic"),
		DefaultTimeZone:   envString("DEFAULT_TIMEZONE", "UTC"),
		ReminderCron:      envString("REMINDER_CRON", "0 8 * * *"),
	}
	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if _, err := time.LoadLocation(cfg.DefaultTimeZone); err != nil {
		return nil, fmt.Errorf("DEFAULT_TIMEZONE: %w", err)
	}

	var err error
	if cfg.CatalogCacheTTL, err = envDuration("CATALOG_CACHE_TTL", 5*time.Minute); err != nil {
		return nil, err
	}
	if settings.BookingBuffer, err = envDuration("BOOKING_BUFFER", settings.BookingBuffer); err != nil {
		return nil, err
	}
	if settings.CatalogTimeout, err = envDuration("CATALOG_TIMEOUT", settings.CatalogTimeout); err != nil {
		return nil, err
	}
	if settings.NotifyTimeout, err = envDuration("NOTIFY_TIMEOUT", settings.NotifyTimeout); err != nil {
		return nil, err
	}
	if settings.DoctorSlot, err = envMinutes("DOCTOR_SLOT_MINUTES", settings.DoctorSlot); err != nil {
		return nil, err
	}
	if settings.LabSlot, err = envMinutes("LAB_SLOT_MINUTES", settings.LabSlot); err != nil {
		return nil, err
	}
	if cfg.Lab.ConcurrencyTolerance, err = envMinutes("LAB_TOLERANCE_MINUTES", 14*time.Minute); err != nil {
		return nil, err
	}

	// MAX_ATTEMPTS_TO_BOOK is the older name of the lab limit.
	maxKey := "LAB_MAX_CONCURRENT"
	if os.Getenv(maxKey) == "" && os.Getenv("MAX_ATTEMPTS_TO_BOOK") != "" {
		maxKey = "MAX_ATTEMPTS_TO_BOOK"
	}
	if cfg.Lab.MaxConcurrentBookings, err = envInt(maxKey, 3); err != nil {
		return nil, err
	}

	cfg.Scheduling = settings
	return cfg, nil
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", key, v)
	}
	return n, nil
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("%s must be a duration like 5m, got %q", key, v)
	}
	return d, nil
}

func envMinutes(key string, fallback time.Duration) (time.Duration, error) {
	n, err := envInt(key, int(fallback/time.Minute))
	if err != nil {
		return 0, err
	}
	return time.Duration(n) * time.Minute, nil
}
