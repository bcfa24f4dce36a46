package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"qms/walkin-service/internal/config"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const serviceName = "walkin-service"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg := config.Load()
	logger := newLogger(cfg)

	root := &cobra.Command{
		Use:          serviceName,
		Short:        "Walk-in service queue",
		SilenceUsage: true,
	}
	root.AddCommand(
		serveCommand{logger: logger}.command(ctx, cfg),
		migrateCommand{logger: logger}.command(ctx, cfg),
		reconcileCommand{logger: logger}.command(ctx, cfg),
	)

	if err := root.Execute(); err != nil {
		cancel()
		logger.Fatal(errors.Wrap(err, "walkin-service"))
	}
}

func newLogger(cfg config.Config) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)
	if cfg.LogFormat == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	return logger
}
