package postgres

import (
	"context"
	"database/sql"
	"time"

	"qms/walkin-service/internal/models"
	"qms/walkin-service/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

const (
	dayLayout = "2006-01-02"

	// defaultLockKey identifies the waiting line for pg_advisory_xact_lock.
	defaultLockKey int64 = 0x71756575
)

const entryColumns = `entry_id, customer_id, employee_id, appointment_id, queue_number, queue_day,
	status, position, estimated_wait_time, notes, created_at, updated_at`

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Store struct {
	pool    *pgxpool.Pool
	lockKey int64
}

type Options struct {
	LockKey int64
}

func NewStore(pool *pgxpool.Pool, options Options) *Store {
	key := options.LockKey
	if key == 0 {
		key = defaultLockKey
	}
	return &Store{pool: pool, lockKey: key}
}

func (s *Store) WithinQueueTx(ctx context.Context, fn func(ctx context.Context, tx store.QueueTx) error) (err error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return errors.Wrap(err, "begin queue tx")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if _, err = tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, s.lockKey); err != nil {
		return errors.Wrap(err, "lock queue")
	}

	if err = fn(ctx, &queueTx{q: tx}); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "commit queue tx")
	}
	return nil
}

func (s *Store) GetEntry(ctx context.Context, entryID string) (models.QueueEntry, error) {
	return findByID(ctx, s.pool, entryID)
}

func (s *Store) ListWaiting(ctx context.Context) ([]models.QueueEntry, error) {
	return findWaiting(ctx, s.pool)
}

func (s *Store) MaxQueueNumberIssued(ctx context.Context, day time.Time) (int, bool, error) {
	return maxQueueNumber(ctx, s.pool, day)
}

type queueTx struct {
	q querier
}

func (t *queueTx) Save(ctx context.Context, entry models.QueueEntry) (models.QueueEntry, error) {
	if entry.ID == "" {
		return insertEntry(ctx, t.q, entry)
	}
	return updateEntry(ctx, t.q, entry)
}

func (t *queueTx) FindByID(ctx context.Context, entryID string) (models.QueueEntry, error) {
	return findByID(ctx, t.q, entryID)
}

func (t *queueTx) FindWaitingOrderedByArrival(ctx context.Context) ([]models.QueueEntry, error) {
	return findWaiting(ctx, t.q)
}

func (t *queueTx) FindActiveByCustomer(ctx context.Context, customerID string) ([]models.QueueEntry, error) {
	rows, err := t.q.Query(ctx, `
		SELECT `+entryColumns+`
		FROM queue_entries
		WHERE customer_id = $1 AND status IN ('WAITING','IN_PROGRESS')
		ORDER BY created_at ASC, entry_id ASC
	`, customerID)
	if err != nil {
		return nil, errors.Wrap(err, "query active entries")
	}
	return collectEntries(rows)
}

func (t *queueTx) FindMaxQueueNumberIssued(ctx context.Context, day time.Time) (int, bool, error) {
	return maxQueueNumber(ctx, t.q, day)
}

func (t *queueTx) NextQueueNumber(ctx context.Context, day time.Time) (int, error) {
	var next int
	row := t.q.QueryRow(ctx, `
		INSERT INTO queue_day_counters (queue_day, last_number)
		VALUES ($1::date, COALESCE((SELECT MAX(queue_number) FROM queue_entries WHERE queue_day = $1::date), 0) + 1)
		ON CONFLICT (queue_day)
		DO UPDATE SET last_number = queue_day_counters.last_number + 1
		RETURNING last_number
	`, day.Format(dayLayout))
	if err := row.Scan(&next); err != nil {
		return 0, errors.Wrap(err, "next queue number")
	}
	return next, nil
}

func (t *queueTx) UpdatePosition(ctx context.Context, entryID string, position, estimatedWaitTime int) error {
	if !validEntryID(entryID) {
		return store.ErrEntryNotFound
	}
	tag, err := t.q.Exec(ctx, `
		UPDATE queue_entries
		SET position = $2, estimated_wait_time = $3, updated_at = NOW()
		WHERE entry_id = $1
	`, entryID, position, estimatedWaitTime)
	if err != nil {
		return errors.Wrap(err, "update position")
	}
	if tag.RowsAffected() == 0 {
		return store.ErrEntryNotFound
	}
	return nil
}

func (t *queueTx) DeleteByID(ctx context.Context, entryID string) error {
	if !validEntryID(entryID) {
		return store.ErrEntryNotFound
	}
	tag, err := t.q.Exec(ctx, `DELETE FROM queue_entries WHERE entry_id = $1`, entryID)
	if err != nil {
		return errors.Wrap(err, "delete queue entry")
	}
	if tag.RowsAffected() == 0 {
		return store.ErrEntryNotFound
	}
	return nil
}

func insertEntry(ctx context.Context, q querier, entry models.QueueEntry) (models.QueueEntry, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return models.QueueEntry{}, errors.Wrap(err, "generate entry id")
	}
	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	updatedAt := entry.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = createdAt
	}

	row := q.QueryRow(ctx, `
		INSERT INTO queue_entries (
			entry_id, customer_id, employee_id, appointment_id, queue_number, queue_day,
			status, position, estimated_wait_time, notes, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6::date,$7,$8,$9,$10,$11,$12)
		RETURNING `+entryColumns,
		id.String(), entry.CustomerID, entry.EmployeeID, entry.AppointmentID, entry.QueueNumber,
		entry.QueueDay.Format(dayLayout), string(entry.Status), entry.Position, entry.EstimatedWaitTime,
		entry.Notes, createdAt, updatedAt)
	saved, err := scanEntry(row)
	if err != nil {
		return models.QueueEntry{}, errors.Wrap(err, "insert queue entry")
	}
	return saved, nil
}

// updateEntry never touches created_at, queue_number or queue_day.
func updateEntry(ctx context.Context, q querier, entry models.QueueEntry) (models.QueueEntry, error) {
	if !validEntryID(entry.ID) {
		return models.QueueEntry{}, store.ErrEntryNotFound
	}
	updatedAt := entry.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}
	row := q.QueryRow(ctx, `
		UPDATE queue_entries
		SET employee_id = $2,
			appointment_id = $3,
			status = $4,
			position = $5,
			estimated_wait_time = $6,
			notes = $7,
			updated_at = $8
		WHERE entry_id = $1
		RETURNING `+entryColumns,
		entry.ID, entry.EmployeeID, entry.AppointmentID, string(entry.Status), entry.Position,
		entry.EstimatedWaitTime, entry.Notes, updatedAt)
	saved, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.QueueEntry{}, store.ErrEntryNotFound
		}
		return models.QueueEntry{}, errors.Wrap(err, "update queue entry")
	}
	return saved, nil
}

// validEntryID keeps malformed ids away from the UUID column, where they
// would fail the query instead of simply matching nothing.
func validEntryID(entryID string) bool {
	_, err := uuid.Parse(entryID)
	return err == nil
}

func findByID(ctx context.Context, q querier, entryID string) (models.QueueEntry, error) {
	if !validEntryID(entryID) {
		return models.QueueEntry{}, store.ErrEntryNotFound
	}
	row := q.QueryRow(ctx, `
		SELECT `+entryColumns+`
		FROM queue_entries
		WHERE entry_id = $1
	`, entryID)
	entry, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.QueueEntry{}, store.ErrEntryNotFound
		}
		return models.QueueEntry{}, errors.Wrap(err, "find queue entry")
	}
	return entry, nil
}

func findWaiting(ctx context.Context, q querier) ([]models.QueueEntry, error) {
	rows, err := q.Query(ctx, `
		SELECT `+entryColumns+`
		FROM queue_entries
		WHERE status = 'WAITING'
		ORDER BY created_at ASC, entry_id ASC
	`)
	if err != nil {
		return nil, errors.Wrap(err, "query waiting entries")
	}
	return collectEntries(rows)
}

func maxQueueNumber(ctx context.Context, q querier, day time.Time) (int, bool, error) {
	var counter sql.NullInt64
	var stored sql.NullInt64
	row := q.QueryRow(ctx, `
		SELECT
			(SELECT last_number FROM queue_day_counters WHERE queue_day = $1::date),
			(SELECT MAX(queue_number) FROM queue_entries WHERE queue_day = $1::date)
	`, day.Format(dayLayout))
	if err := row.Scan(&counter, &stored); err != nil {
		return 0, false, errors.Wrap(err, "max queue number")
	}
	if !counter.Valid && !stored.Valid {
		return 0, false, nil
	}
	highest := counter.Int64
	if stored.Int64 > highest {
		highest = stored.Int64
	}
	return int(highest), true, nil
}

func collectEntries(rows pgx.Rows) ([]models.QueueEntry, error) {
	defer rows.Close()
	var entries []models.QueueEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan queue entry")
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate queue entries")
	}
	return entries, nil
}

func scanEntry(row pgx.Row) (models.QueueEntry, error) {
	var entry models.QueueEntry
	var employeeIDNull sql.NullString
	var appointmentIDNull sql.NullString
	var status string
	if err := row.Scan(
		&entry.ID, &entry.CustomerID, &employeeIDNull, &appointmentIDNull, &entry.QueueNumber, &entry.QueueDay,
		&status, &entry.Position, &entry.EstimatedWaitTime, &entry.Notes, &entry.CreatedAt, &entry.UpdatedAt,
	); err != nil {
		return models.QueueEntry{}, err
	}
	entry.Status = models.Status(status)
	entry.EmployeeID = nullStringPtr(employeeIDNull)
	entry.AppointmentID = nullStringPtr(appointmentIDNull)
	return entry, nil
}

func nullStringPtr(value sql.NullString) *string {
	if !value.Valid {
		return nil
	}
	return &value.String
}
