// Package queue runs the walk-in waiting line. Every mutation runs inside one
// store transaction together with the position rewrite, and is broadcast
// after commit.
package queue

import (
	"context"
	"sort"
	"strings"
	"time"

	"qms/walkin-service/internal/broadcast"
	"qms/walkin-service/internal/directory"
	"qms/walkin-service/internal/estimator"
	"qms/walkin-service/internal/models"
	"qms/walkin-service/internal/positions"
	"qms/walkin-service/internal/store"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type Publisher interface {
	Publish(event broadcast.Event) broadcast.Outcome
}

type Options struct {
	Estimator             estimator.Estimator
	Location              *time.Location
	AllowDuplicateCheckIn bool
	Now                   func() time.Time
	Logger                logrus.FieldLogger
}

type Service struct {
	store     store.QueueStore
	directory directory.Directory
	publisher Publisher
	assigner  *positions.Assigner
	estimator estimator.Estimator
	location  *time.Location
	allowDup  bool
	now       func() time.Time
	logger    logrus.FieldLogger
	tracer    trace.Tracer
}

type AddInput struct {
	CustomerID    string  `json:"customer_id"`
	EmployeeID    *string `json:"employee_id"`
	AppointmentID *string `json:"appointment_id"`
	Notes         string  `json:"notes"`
}

func NewService(st store.QueueStore, dir directory.Directory, publisher Publisher, options Options) *Service {
	est := options.Estimator
	if est.ServiceTimePerCustomer <= 0 {
		est = estimator.Default()
	}
	loc := options.Location
	if loc == nil {
		loc = time.UTC
	}
	now := options.Now
	if now == nil {
		now = time.Now
	}
	logger := options.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Service{
		store:     st,
		directory: dir,
		publisher: publisher,
		assigner:  positions.NewAssigner(est),
		estimator: est,
		location:  loc,
		allowDup:  options.AllowDuplicateCheckIn,
		now:       now,
		logger:    logger,
		tracer:    otel.Tracer("walkin-service/queue"),
	}
}

func (s *Service) AddToQueue(ctx context.Context, input AddInput) (models.EntryView, error) {
	ctx, span := s.tracer.Start(ctx, "queue.AddToQueue")
	defer span.End()

	input.CustomerID = strings.TrimSpace(input.CustomerID)
	if input.CustomerID == "" {
		return models.EntryView{}, s.fail(span, store.ErrInvalidArgument)
	}
	input.EmployeeID = trimmedOrNil(input.EmployeeID)
	input.AppointmentID = trimmedOrNil(input.AppointmentID)

	var created models.QueueEntry
	err := s.store.WithinQueueTx(ctx, func(ctx context.Context, tx store.QueueTx) error {
		// arrival time is read under the queue lock so numbering and ordering agree
		now := s.now().UTC()
		day := store.QueueDay(now, s.location)
		if !s.allowDup {
			active, err := tx.FindActiveByCustomer(ctx, input.CustomerID)
			if err != nil {
				return err
			}
			if len(active) > 0 {
				return store.ErrDuplicateCheckIn
			}
		}
		number, err := tx.NextQueueNumber(ctx, day)
		if err != nil {
			return err
		}
		saved, err := tx.Save(ctx, models.QueueEntry{
			CustomerID:    input.CustomerID,
			EmployeeID:    input.EmployeeID,
			AppointmentID: input.AppointmentID,
			QueueNumber:   number,
			QueueDay:      day,
			Status:        models.StatusWaiting,
			Notes:         input.Notes,
			CreatedAt:     now,
			UpdatedAt:     now,
		})
		if err != nil {
			return err
		}
		if _, err := s.assigner.Reassign(ctx, tx); err != nil {
			return err
		}
		created, err = tx.FindByID(ctx, saved.ID)
		return err
	})
	if err != nil {
		return models.EntryView{}, s.fail(span, err)
	}
	span.SetAttributes(attribute.String("entry_id", created.ID), attribute.Int("queue_number", created.QueueNumber))

	view := s.enrich(ctx, created, newLookupCache())
	s.logger.WithFields(logrus.Fields{
		"op":           "add",
		"entry_id":     created.ID,
		"queue_number": created.QueueNumber,
		"position":     created.Position,
	}).Info("customer checked in")
	s.broadcastChange(ctx, &view, "")
	return view, nil
}

func (s *Service) GetCurrentQueue(ctx context.Context) ([]models.EntryView, error) {
	ctx, span := s.tracer.Start(ctx, "queue.GetCurrentQueue")
	defer span.End()

	waiting, err := s.store.ListWaiting(ctx)
	if err != nil {
		return nil, s.fail(span, err)
	}
	sortByPosition(waiting)
	cache := newLookupCache()
	views := make([]models.EntryView, 0, len(waiting))
	for _, entry := range waiting {
		views = append(views, s.enrich(ctx, entry, cache))
	}
	return views, nil
}

func (s *Service) GetQueueEntry(ctx context.Context, entryID string) (models.EntryView, error) {
	ctx, span := s.tracer.Start(ctx, "queue.GetQueueEntry", trace.WithAttributes(attribute.String("entry_id", entryID)))
	defer span.End()

	entry, err := s.store.GetEntry(ctx, entryID)
	if err != nil {
		return models.EntryView{}, s.fail(span, err)
	}
	return s.enrich(ctx, entry, newLookupCache()), nil
}

// UpdateQueueEntry applies the non-nil fields of patch. A status change is
// checked against the transition table and recomputes positions, which can
// overwrite an explicit estimate while the entry is still waiting. An empty
// employee id clears the assignment.
func (s *Service) UpdateQueueEntry(ctx context.Context, entryID string, patch models.EntryPatch) (models.EntryView, error) {
	ctx, span := s.tracer.Start(ctx, "queue.UpdateQueueEntry", trace.WithAttributes(attribute.String("entry_id", entryID)))
	defer span.End()

	var nextStatus models.Status
	if patch.Status != nil {
		status, ok := models.ParseStatus(strings.TrimSpace(*patch.Status))
		if !ok {
			return models.EntryView{}, s.fail(span, store.ErrInvalidStatus)
		}
		nextStatus = status
	}
	if patch.EstimatedWaitTime != nil && *patch.EstimatedWaitTime < 0 {
		return models.EntryView{}, s.fail(span, store.ErrInvalidArgument)
	}

	var updated models.QueueEntry
	err := s.store.WithinQueueTx(ctx, func(ctx context.Context, tx store.QueueTx) error {
		entry, err := tx.FindByID(ctx, entryID)
		if err != nil {
			return err
		}
		if patch.EmployeeID != nil {
			entry.EmployeeID = trimmedOrNil(patch.EmployeeID)
		}
		if patch.EstimatedWaitTime != nil {
			entry.EstimatedWaitTime = *patch.EstimatedWaitTime
		}
		if patch.Notes != nil {
			entry.Notes = *patch.Notes
		}
		if patch.Status != nil {
			if !store.ValidTransition(entry.Status, nextStatus) {
				return store.ErrInvalidTransition
			}
			entry.Status = nextStatus
		}
		entry.UpdatedAt = s.now().UTC()
		if _, err := tx.Save(ctx, entry); err != nil {
			return err
		}
		if patch.Status != nil {
			if _, err := s.assigner.Reassign(ctx, tx); err != nil {
				return err
			}
		}
		updated, err = tx.FindByID(ctx, entryID)
		return err
	})
	if err != nil {
		return models.EntryView{}, s.fail(span, err)
	}

	view := s.enrich(ctx, updated, newLookupCache())
	s.logger.WithFields(logrus.Fields{"op": "update", "entry_id": entryID, "status": updated.Status}).Info("queue entry updated")
	s.broadcastChange(ctx, &view, "")
	return view, nil
}

// RemoveFromQueue hard deletes the entry. Removing it twice reports
// store.ErrEntryNotFound the second time.
func (s *Service) RemoveFromQueue(ctx context.Context, entryID string) error {
	ctx, span := s.tracer.Start(ctx, "queue.RemoveFromQueue", trace.WithAttributes(attribute.String("entry_id", entryID)))
	defer span.End()

	err := s.store.WithinQueueTx(ctx, func(ctx context.Context, tx store.QueueTx) error {
		if err := tx.DeleteByID(ctx, entryID); err != nil {
			return err
		}
		_, err := s.assigner.Reassign(ctx, tx)
		return err
	})
	if err != nil {
		return s.fail(span, err)
	}
	s.logger.WithFields(logrus.Fields{"op": "remove", "entry_id": entryID}).Info("queue entry removed")
	s.broadcastChange(ctx, nil, entryID)
	return nil
}

// UpdateQueueStatus moves an entry through the status table. Asking for the
// status the entry already has changes nothing and broadcasts nothing.
func (s *Service) UpdateQueueStatus(ctx context.Context, entryID, rawStatus string) (models.EntryView, error) {
	ctx, span := s.tracer.Start(ctx, "queue.UpdateQueueStatus", trace.WithAttributes(
		attribute.String("entry_id", entryID),
		attribute.String("status", rawStatus),
	))
	defer span.End()

	status, ok := models.ParseStatus(strings.TrimSpace(rawStatus))
	if !ok {
		return models.EntryView{}, s.fail(span, store.ErrInvalidStatus)
	}

	var updated models.QueueEntry
	var from models.Status
	changed := false
	err := s.store.WithinQueueTx(ctx, func(ctx context.Context, tx store.QueueTx) error {
		entry, err := tx.FindByID(ctx, entryID)
		if err != nil {
			return err
		}
		if entry.Status == status {
			updated = entry
			return nil
		}
		if !store.ValidTransition(entry.Status, status) {
			return store.ErrInvalidTransition
		}
		from = entry.Status
		entry.Status = status
		entry.UpdatedAt = s.now().UTC()
		if _, err := tx.Save(ctx, entry); err != nil {
			return err
		}
		if _, err := s.assigner.Reassign(ctx, tx); err != nil {
			return err
		}
		updated, err = tx.FindByID(ctx, entryID)
		if err != nil {
			return err
		}
		changed = true
		return nil
	})
	if err != nil {
		return models.EntryView{}, s.fail(span, err)
	}

	view := s.enrich(ctx, updated, newLookupCache())
	if changed {
		s.logger.WithFields(logrus.Fields{"op": "status", "entry_id": entryID, "from": from, "to": status}).Info("queue status changed")
		s.broadcastChange(ctx, &view, "")
	}
	return view, nil
}

// CalculateEstimatedWaitTime is the wait quoted to a customer before check-in.
func (s *Service) CalculateEstimatedWaitTime(ctx context.Context) (int, error) {
	ctx, span := s.tracer.Start(ctx, "queue.CalculateEstimatedWaitTime")
	defer span.End()

	waiting, err := s.store.ListWaiting(ctx)
	if err != nil {
		return 0, s.fail(span, err)
	}
	return s.estimator.ForNextArrival(len(waiting)), nil
}

// UpdateQueuePositions re-runs the position rewrite on its own. Running it
// again without a mutation in between yields the same line.
func (s *Service) UpdateQueuePositions(ctx context.Context) ([]models.EntryView, error) {
	ctx, span := s.tracer.Start(ctx, "queue.UpdateQueuePositions")
	defer span.End()

	var line []models.QueueEntry
	err := s.store.WithinQueueTx(ctx, func(ctx context.Context, tx store.QueueTx) error {
		var err error
		line, err = s.assigner.Reassign(ctx, tx)
		return err
	})
	if err != nil {
		return nil, s.fail(span, err)
	}

	cache := newLookupCache()
	views := make([]models.EntryView, 0, len(line))
	for _, entry := range line {
		views = append(views, s.enrich(ctx, entry, cache))
	}
	s.publishLine(ctx, views)
	return views, nil
}

func (s *Service) GetQueueStatistics(ctx context.Context) (models.Statistics, error) {
	ctx, span := s.tracer.Start(ctx, "queue.GetQueueStatistics")
	defer span.End()

	waiting, err := s.store.ListWaiting(ctx)
	if err != nil {
		return models.Statistics{}, s.fail(span, err)
	}
	now := s.now()
	stats := computeStatistics(waiting, now)

	issued, found, err := s.store.MaxQueueNumberIssued(ctx, store.QueueDay(now, s.location))
	if err != nil {
		return models.Statistics{}, s.fail(span, err)
	}
	if found {
		stats.IssuedToday = issued
	}
	return stats, nil
}

func computeStatistics(waiting []models.QueueEntry, now time.Time) models.Statistics {
	if len(waiting) == 0 {
		return models.Statistics{}
	}
	total := 0
	oldest := waiting[0].CreatedAt
	for _, entry := range waiting {
		total += entry.EstimatedWaitTime
		if entry.CreatedAt.Before(oldest) {
			oldest = entry.CreatedAt
		}
	}
	longest := int(now.Sub(oldest) / time.Minute)
	if longest < 0 {
		longest = 0
	}
	return models.Statistics{
		TotalWaiting:    len(waiting),
		AverageWaitTime: total / len(waiting),
		LongestWait:     longest,
	}
}

func (s *Service) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

func sortByPosition(entries []models.QueueEntry) {
	positions.SortByArrival(entries)
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Position < entries[j].Position
	})
}

func trimmedOrNil(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
