package positions

import (
	"context"
	"sort"

	"qms/walkin-service/internal/estimator"
	"qms/walkin-service/internal/models"
	"qms/walkin-service/internal/store"
)

// Assigner rewrites position and estimated wait for every WAITING entry.
// It always recomputes the whole line; callers run it inside the same
// transaction as the mutation that changed the waiting set.
type Assigner struct {
	estimator estimator.Estimator
}

func NewAssigner(est estimator.Estimator) *Assigner {
	return &Assigner{estimator: est}
}

// Reassign returns the waiting line in its new order with positions applied.
func (a *Assigner) Reassign(ctx context.Context, tx store.QueueTx) ([]models.QueueEntry, error) {
	waiting, err := tx.FindWaitingOrderedByArrival(ctx)
	if err != nil {
		return nil, err
	}
	SortByArrival(waiting)

	for i := range waiting {
		position := i + 1
		wait := a.estimator.ForPosition(position)
		if waiting[i].Position == position && waiting[i].EstimatedWaitTime == wait {
			continue
		}
		if err := tx.UpdatePosition(ctx, waiting[i].ID, position, wait); err != nil {
			return nil, err
		}
		waiting[i].Position = position
		waiting[i].EstimatedWaitTime = wait
	}
	return waiting, nil
}

// SortByArrival orders entries by createdAt, falling back to id on ties.
func SortByArrival(entries []models.QueueEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].CreatedAt.Before(entries[j].CreatedAt)
		}
		return entries[i].ID < entries[j].ID
	})
}
