package main

import (
	"context"
	"time"

	"qms/walkin-service/internal/config"
	"qms/walkin-service/internal/jobs"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type reconcileCommand struct {
	logger *logrus.Logger
}

func (cmd reconcileCommand) command(ctx context.Context, cfg config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "recompute queue positions once and broadcast the result",
		RunE: func(_ *cobra.Command, _ []string) error {
			return cmd.run(ctx, cfg)
		},
	}
}

func (cmd reconcileCommand) run(ctx context.Context, cfg config.Config) error {
	a, err := buildApp(ctx, cfg, cmd.logger)
	if err != nil {
		return errors.Wrap(err, "reconcile")
	}
	defer func() {
		drainCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		a.close(drainCtx)
	}()

	if _, err := jobs.NewReconciler(a.service, 30*time.Second, cmd.logger).Run(ctx); err != nil {
		return err
	}
	cmd.logger.Info("queue positions reconciled")
	return nil
}
