package config

import (
	"errors"
	"fmt"
	"net"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	"github.com/nuhmanudheent/hosp-connect-scheduling-service/internal/catalog"
	"github.com/nuhmanudheent/hosp-connect-scheduling-service/internal/di"
	"github.com/nuhmanudheent/hosp-connect-scheduling-service/internal/handler"
	"github.com/nuhmanudheent/hosp-connect-scheduling-service/internal/metrics"
	"github.com/nuhmanudheent/hosp-connect-scheduling-service/internal/repository"
	"github.com/nuhmanudheent/hosp-connect-scheduling-service/internal/service"
)

// App is the wired scheduling service, ready to serve.
type App struct {
	Listener net.Listener
	Server   *grpc.Server
	Service  service.AppointmentService

	closers []func() error
}

// Close releases the broker writer and the redis and database connections.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}

// GRPCSetup connects the stores and the broker, builds the scheduling
// service and registers it on a new gRPC server.
func GRPCSetup(cfg *Config, reg prometheus.Registerer, logger *logrus.Logger) (*App, error) {
	app := &App{}

	db, err := InitDatabase(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("database handle: %w", err)
	}
	app.closers = append(app.closers, sqlDB.Close)

	rdb, err := InitRedis(cfg.RedisAddr)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.closers = append(app.closers, rdb.Close)

	producer := di.NewKafkaProducer(cfg.KafkaBroker, cfg.NotificationTopic, logger)
	app.closers = append(app.closers, producer.Close)

	appointmentRepo := repository.NewAppointmentRepository(db)
	catalogRepo := repository.NewCatalogRepository(db, cfg.DefaultTimeZone, cfg.Lab)
	resources := catalog.NewCachedCatalog(catalogRepo, rdb, cfg.CatalogCacheTTL, logger)

	app.Service = service.NewAppointmentService(appointmentRepo, resources, producer, logger,
		service.WithSettings(cfg.Scheduling),
		service.WithMetrics(metrics.NewSchedulingMetrics(reg)),
		service.WithPatientCounter(catalogRepo),
	)

	app.Listener, err = net.Listen("tcp", cfg.GRPCPort)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("listen on %s: %w", cfg.GRPCPort, err)
	}

	app.Server = grpc.NewServer(grpc.UnaryInterceptor(handler.LoggingInterceptor(logger)))
	handler.RegisterSchedulingServer(app.Server, handler.NewSchedulingHandler(app.Service, logger))
	reflection.Register(app.Server)

	logger.WithField("Port", cfg.GRPCPort).Info("gRPC server configured")
	return app, nil
}
