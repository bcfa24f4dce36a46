package main

import (
	"context"
	"net/http"
	"time"

	"qms/walkin-service/internal/config"
	"qms/walkin-service/internal/httpapi"
	"qms/walkin-service/internal/jobs"
	"qms/walkin-service/internal/telemetry"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type serveCommand struct {
	logger *logrus.Logger
}

func (cmd serveCommand) command(ctx context.Context, cfg config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "run the queue HTTP API and realtime feed",
		RunE: func(_ *cobra.Command, _ []string) error {
			return cmd.run(ctx, cfg)
		},
	}
}

func (cmd serveCommand) run(ctx context.Context, cfg config.Config) error {
	shutdownTelemetry := telemetry.Setup(serviceName, cmd.logger)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTelemetry(shutdownCtx)
	}()

	a, err := buildApp(ctx, cfg, cmd.logger)
	if err != nil {
		return errors.Wrap(err, "serve")
	}

	handler := httpapi.NewHandler(a.service, httpapi.Options{Hub: a.hub, Logger: cmd.logger})
	limiter := httpapi.NewRateLimiter(httpapi.RateLimitConfig{
		IPPerMinute: cfg.RateLimitPerMinute,
		IPBurst:     cfg.RateLimitBurst,
	})
	routes := httpapi.AuthMiddleware(a.sessions, handler.Routes())
	server := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     otelhttp.NewHandler(httpapi.LoggingMiddleware(cmd.logger, limiter.Middleware(routes)), serviceName),
		ReadTimeout: 10 * time.Second,
		// streaming transports keep responses open, so no WriteTimeout
		IdleTimeout: 60 * time.Second,
	}

	reconciler := jobs.NewReconciler(a.service, 10*time.Second, cmd.logger)
	scheduler, err := reconciler.Schedule(cfg.ReconcileSchedule)
	if err != nil {
		a.close(context.Background())
		return err
	}
	scheduler.Start()

	relayCtx, stopRelay := context.WithCancel(ctx)
	defer stopRelay()
	if a.relay != nil {
		go func() {
			if err := a.relay.Run(relayCtx); err != nil {
				cmd.logger.WithError(err).Error("redis relay stopped")
			}
		}()
	}

	serverErr := make(chan error, 1)
	go func() {
		cmd.logger.WithField("addr", server.Addr).Info("walkin-service listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
		close(serverErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		cmd.logger.Info("shutting down")
	case err, ok := <-serverErr:
		if ok {
			runErr = errors.Wrap(err, "server error")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		cmd.logger.WithError(err).Warn("http shutdown error")
	}
	<-scheduler.Stop().Done()
	stopRelay()
	a.close(shutdownCtx)
	return runErr
}
