package store

import (
	"context"
	"time"

	"qms/walkin-service/internal/models"
)

// QueueTx is the view of the queue available inside one transaction. Every
// write made through it commits or rolls back together.
type QueueTx interface {
	Save(ctx context.Context, entry models.QueueEntry) (models.QueueEntry, error)
	FindByID(ctx context.Context, entryID string) (models.QueueEntry, error)
	FindWaitingOrderedByArrival(ctx context.Context) ([]models.QueueEntry, error)
	FindActiveByCustomer(ctx context.Context, customerID string) ([]models.QueueEntry, error)
	FindMaxQueueNumberIssued(ctx context.Context, day time.Time) (int, bool, error)
	NextQueueNumber(ctx context.Context, day time.Time) (int, error)
	UpdatePosition(ctx context.Context, entryID string, position, estimatedWaitTime int) error
	DeleteByID(ctx context.Context, entryID string) error
}

type QueueStore interface {
	// WithinQueueTx serializes fn against every other queue mutation.
	WithinQueueTx(ctx context.Context, fn func(ctx context.Context, tx QueueTx) error) error
	GetEntry(ctx context.Context, entryID string) (models.QueueEntry, error)
	ListWaiting(ctx context.Context) ([]models.QueueEntry, error)
	MaxQueueNumberIssued(ctx context.Context, day time.Time) (int, bool, error)
}

// QueueDay truncates t to the calendar day it falls on in loc.
func QueueDay(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}
