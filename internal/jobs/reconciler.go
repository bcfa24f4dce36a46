package jobs

import (
	"context"
	"sync/atomic"
	"time"

	"qms/walkin-service/internal/models"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Refresher re-syncs the waiting line and rebroadcasts it.
type Refresher interface {
	UpdateQueuePositions(ctx context.Context) ([]models.EntryView, error)
}

// Reconciler repairs position drift on a schedule. Each run also pushes fresh
// statistics, so displays see the longest wait grow between mutations.
type Reconciler struct {
	refresher Refresher
	timeout   time.Duration
	logger    logrus.FieldLogger
	running   int32
}

func NewReconciler(refresher Refresher, timeout time.Duration, logger logrus.FieldLogger) *Reconciler {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Reconciler{refresher: refresher, timeout: timeout, logger: logger}
}

// Run performs one reconciliation. A run that starts while another is still
// in flight is skipped and reports false.
func (r *Reconciler) Run(ctx context.Context) (bool, error) {
	if !atomic.CompareAndSwapInt32(&r.running, 0, 1) {
		return false, nil
	}
	defer atomic.StoreInt32(&r.running, 0)

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	start := time.Now()
	line, err := r.refresher.UpdateQueuePositions(ctx)
	if err != nil {
		return true, errors.Wrap(err, "reconcile positions")
	}
	r.logger.WithFields(logrus.Fields{
		"op":          "reconcile",
		"waiting":     len(line),
		"duration_ms": time.Since(start).Milliseconds(),
	}).Debug("queue reconciled")
	return true, nil
}

// Schedule registers the reconciler on a new cron scheduler. The caller
// starts and stops it.
func (r *Reconciler) Schedule(spec string) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		if _, err := r.Run(context.Background()); err != nil {
			r.logger.WithError(err).Warn("scheduled reconcile failed")
		}
	})
	if err != nil {
		return nil, errors.Wrapf(err, "schedule reconcile %q", spec)
	}
	return c, nil
}
