package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/nuhmanudheent/hosp-connect-scheduling-service/internal/config"
	"github.com/nuhmanudheent/hosp-connect-scheduling-service/internal/di"
	"github.com/nuhmanudheent/hosp-connect-scheduling-service/internal/utils"
	"github.com/nuhmanudheent/hosp-connect-scheduling-service/logs"
)

func main() {
	logger := logs.NewLogger()

	if err := config.LoadEnv(); err != nil {
		logger.WithError(err).Fatal("Failed to load environment")
	}
	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("Invalid configuration")
	}

	if err := di.EnsureTopicExists(cfg.KafkaBroker, cfg.NotificationTopic); err != nil {
		logger.WithError(err).Warn("Could not ensure notification topic exists")
	}

	app, err := config.GRPCSetup(cfg, prometheus.DefaultRegisterer, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to set up scheduling service")
	}
	defer app.Close()

	scheduler, err := utils.StartReminderScheduler(cfg.ReminderCron, app.Service, 5*time.Minute, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to schedule reminder job")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{Addr: cfg.MetricsPort, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.WithField("Port", cfg.GRPCPort).Info("gRPC server is running")
		return app.Server.Serve(app.Listener)
	})
	g.Go(func() error {
		logger.WithField("Port", cfg.MetricsPort).Info("Metrics server is running")
		if err := metricsServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down")
		<-scheduler.Stop().Done()
		app.Server.GracefulStop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return metricsServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.WithError(err).Error("Server stopped with error")
	}
}
