// Package memory keeps the queue in process memory. It backs local runs
// without a database and the orchestrator tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"qms/walkin-service/internal/models"
	"qms/walkin-service/internal/store"

	"github.com/google/uuid"
)

const dayKeyLayout = "2006-01-02"

type state struct {
	entries  map[string]models.QueueEntry
	counters map[string]int
}

func (s state) clone() state {
	next := state{
		entries:  make(map[string]models.QueueEntry, len(s.entries)),
		counters: make(map[string]int, len(s.counters)),
	}
	for id, entry := range s.entries {
		next.entries[id] = entry
	}
	for day, n := range s.counters {
		next.counters[day] = n
	}
	return next
}

type Store struct {
	mu    sync.Mutex
	state state
	now   func() time.Time
}

type Options struct {
	Now func() time.Time
}

func NewStore(options Options) *Store {
	now := options.Now
	if now == nil {
		now = time.Now
	}
	return &Store{
		state: state{
			entries:  make(map[string]models.QueueEntry),
			counters: make(map[string]int),
		},
		now: now,
	}
}

// WithinQueueTx runs fn against a private copy of the queue while holding the
// store lock. The copy replaces the live state only when fn succeeds.
func (s *Store) WithinQueueTx(ctx context.Context, fn func(ctx context.Context, tx store.QueueTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	tx := &memoryTx{state: s.state.clone(), now: s.now}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	s.state = tx.state
	return nil
}

func (s *Store) GetEntry(ctx context.Context, entryID string) (models.QueueEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.state.entries[entryID]
	if !ok {
		return models.QueueEntry{}, store.ErrEntryNotFound
	}
	return entry, nil
}

func (s *Store) ListWaiting(ctx context.Context) ([]models.QueueEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return waitingOrdered(s.state.entries), nil
}

func (s *Store) MaxQueueNumberIssued(ctx context.Context, day time.Time) (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := maxIssued(s.state, day)
	return n, ok, nil
}

type memoryTx struct {
	state state
	now   func() time.Time
}

func (tx *memoryTx) Save(ctx context.Context, entry models.QueueEntry) (models.QueueEntry, error) {
	if entry.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return models.QueueEntry{}, err
		}
		entry.ID = id.String()
	} else if _, ok := tx.state.entries[entry.ID]; !ok {
		return models.QueueEntry{}, store.ErrEntryNotFound
	}
	tx.state.entries[entry.ID] = entry
	return entry, nil
}

func (tx *memoryTx) FindByID(ctx context.Context, entryID string) (models.QueueEntry, error) {
	entry, ok := tx.state.entries[entryID]
	if !ok {
		return models.QueueEntry{}, store.ErrEntryNotFound
	}
	return entry, nil
}

func (tx *memoryTx) FindWaitingOrderedByArrival(ctx context.Context) ([]models.QueueEntry, error) {
	return waitingOrdered(tx.state.entries), nil
}

func (tx *memoryTx) FindActiveByCustomer(ctx context.Context, customerID string) ([]models.QueueEntry, error) {
	var active []models.QueueEntry
	for _, entry := range tx.state.entries {
		if entry.CustomerID != customerID {
			continue
		}
		if entry.Status == models.StatusWaiting || entry.Status == models.StatusInProgress {
			active = append(active, entry)
		}
	}
	sortByArrival(active)
	return active, nil
}

func (tx *memoryTx) FindMaxQueueNumberIssued(ctx context.Context, day time.Time) (int, bool, error) {
	n, ok := maxIssued(tx.state, day)
	return n, ok, nil
}

func (tx *memoryTx) NextQueueNumber(ctx context.Context, day time.Time) (int, error) {
	last, _ := maxIssued(tx.state, day)
	next := last + 1
	tx.state.counters[day.Format(dayKeyLayout)] = next
	return next, nil
}

func (tx *memoryTx) UpdatePosition(ctx context.Context, entryID string, position, estimatedWaitTime int) error {
	entry, ok := tx.state.entries[entryID]
	if !ok {
		return store.ErrEntryNotFound
	}
	entry.Position = position
	entry.EstimatedWaitTime = estimatedWaitTime
	entry.UpdatedAt = tx.now().UTC()
	tx.state.entries[entryID] = entry
	return nil
}

func (tx *memoryTx) DeleteByID(ctx context.Context, entryID string) error {
	if _, ok := tx.state.entries[entryID]; !ok {
		return store.ErrEntryNotFound
	}
	delete(tx.state.entries, entryID)
	return nil
}

// maxIssued prefers the day counter, which survives hard deletes, and falls
// back to the highest number still stored for that day.
func maxIssued(s state, day time.Time) (int, bool) {
	key := day.Format(dayKeyLayout)
	if n, ok := s.counters[key]; ok {
		return n, true
	}
	found := false
	highest := 0
	for _, entry := range s.entries {
		if entry.QueueDay.Format(dayKeyLayout) != key {
			continue
		}
		found = true
		if entry.QueueNumber > highest {
			highest = entry.QueueNumber
		}
	}
	return highest, found
}

func waitingOrdered(entries map[string]models.QueueEntry) []models.QueueEntry {
	waiting := make([]models.QueueEntry, 0, len(entries))
	for _, entry := range entries {
		if entry.Status == models.StatusWaiting {
			waiting = append(waiting, entry)
		}
	}
	sortByArrival(waiting)
	return waiting
}

func sortByArrival(entries []models.QueueEntry) {
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].CreatedAt.Before(entries[j].CreatedAt)
		}
		return entries[i].ID < entries[j].ID
	})
}
