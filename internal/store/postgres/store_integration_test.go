package postgres

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"qms/walkin-service/internal/models"
	"qms/walkin-service/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

func TestConcurrentQueueNumbersAreDistinct(t *testing.T) {
	ctx := context.Background()
	st, _, cleanup := setupTestStore(t, ctx)
	t.Cleanup(cleanup)

	day := store.QueueDay(time.Now(), time.UTC)
	const workers = 8

	var wg sync.WaitGroup
	results := make(chan int, workers)
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := st.WithinQueueTx(ctx, func(ctx context.Context, tx store.QueueTx) error {
				n, err := tx.NextQueueNumber(ctx, day)
				if err != nil {
					return err
				}
				_, err = tx.Save(ctx, models.QueueEntry{
					CustomerID:  uuid.NewString(),
					QueueNumber: n,
					QueueDay:    day,
					Status:      models.StatusWaiting,
					CreatedAt:   time.Now().UTC(),
				})
				if err != nil {
					return err
				}
				results <- n
				return nil
			})
			if err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(results)
	close(errs)

	for err := range errs {
		t.Fatalf("queue tx error: %v", err)
	}
	var numbers []int
	for n := range results {
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)
	for i, n := range numbers {
		if n != i+1 {
			t.Fatalf("expected queue numbers 1..%d, got %v", workers, numbers)
		}
	}

	highest, found, err := st.MaxQueueNumberIssued(ctx, day)
	if err != nil {
		t.Fatalf("max queue number: %v", err)
	}
	if !found || highest != workers {
		t.Fatalf("expected max %d, got %d (found=%v)", workers, highest, found)
	}
}

func TestWaitingOrderAndDelete(t *testing.T) {
	ctx := context.Background()
	st, _, cleanup := setupTestStore(t, ctx)
	t.Cleanup(cleanup)

	day := store.QueueDay(time.Now(), time.UTC)
	base := time.Now().UTC().Truncate(time.Second)
	var ids []string
	err := st.WithinQueueTx(ctx, func(ctx context.Context, tx store.QueueTx) error {
		for i, status := range []models.Status{models.StatusWaiting, models.StatusInProgress, models.StatusWaiting} {
			saved, err := tx.Save(ctx, models.QueueEntry{
				CustomerID:  uuid.NewString(),
				QueueNumber: i + 1,
				QueueDay:    day,
				Status:      status,
				CreatedAt:   base.Add(time.Duration(i) * time.Second),
			})
			if err != nil {
				return err
			}
			ids = append(ids, saved.ID)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed entries: %v", err)
	}

	waiting, err := st.ListWaiting(ctx)
	if err != nil {
		t.Fatalf("list waiting: %v", err)
	}
	if len(waiting) != 2 || waiting[0].ID != ids[0] || waiting[1].ID != ids[2] {
		t.Fatalf("unexpected waiting order: %+v", waiting)
	}

	err = st.WithinQueueTx(ctx, func(ctx context.Context, tx store.QueueTx) error {
		return tx.DeleteByID(ctx, ids[0])
	})
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	err = st.WithinQueueTx(ctx, func(ctx context.Context, tx store.QueueTx) error {
		return tx.DeleteByID(ctx, ids[0])
	})
	if err != store.ErrEntryNotFound {
		t.Fatalf("expected ErrEntryNotFound on second delete, got %v", err)
	}
	if _, err := st.GetEntry(ctx, ids[0]); err != store.ErrEntryNotFound {
		t.Fatalf("expected ErrEntryNotFound, got %v", err)
	}
}

func TestMalformedIDsAreNotFound(t *testing.T) {
	ctx := context.Background()
	st, _, cleanup := setupTestStore(t, ctx)
	t.Cleanup(cleanup)

	err := st.WithinQueueTx(ctx, func(ctx context.Context, tx store.QueueTx) error {
		return tx.DeleteByID(ctx, "not-a-uuid")
	})
	if err != store.ErrEntryNotFound {
		t.Fatalf("expected ErrEntryNotFound on delete, got %v", err)
	}
	err = st.WithinQueueTx(ctx, func(ctx context.Context, tx store.QueueTx) error {
		return tx.UpdatePosition(ctx, "abc", 1, 30)
	})
	if err != store.ErrEntryNotFound {
		t.Fatalf("expected ErrEntryNotFound on position update, got %v", err)
	}
	if _, err := st.GetEntry(ctx, "abc"); err != store.ErrEntryNotFound {
		t.Fatalf("expected ErrEntryNotFound on lookup, got %v", err)
	}
}

func setupTestStore(t *testing.T, ctx context.Context) (*Store, *pgxpool.Pool, func()) {
	t.Helper()
	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		dsn = os.Getenv("DB_DSN")
	}
	if dsn == "" {
		t.Skip("TEST_DB_DSN or DB_DSN is required for integration tests")
	}

	schema := "test_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	if err := createSchema(ctx, dsn, schema); err != nil {
		t.Fatalf("create schema: %v", err)
	}

	pool, err := newPoolWithSchema(ctx, dsn, schema)
	if err != nil {
		t.Fatalf("open pool: %v", err)
	}

	if err := applyMigrations(ctx, pool); err != nil {
		pool.Close()
		t.Fatalf("apply migrations: %v", err)
	}

	st := NewStore(pool, Options{LockKey: int64(time.Now().UnixNano())})
	cleanup := func() {
		pool.Close()
		_ = dropSchema(context.Background(), dsn, schema)
	}
	return st, pool, cleanup
}

func createSchema(ctx context.Context, dsn, schema string) error {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return err
	}
	defer conn.Close(ctx)
	_, err = conn.Exec(ctx, "CREATE SCHEMA "+schema)
	return err
}

func dropSchema(ctx context.Context, dsn, schema string) error {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return err
	}
	defer conn.Close(ctx)
	_, err = conn.Exec(ctx, "DROP SCHEMA "+schema+" CASCADE")
	return err
}

func newPoolWithSchema(ctx context.Context, dsn, schema string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	cfg.ConnConfig.RuntimeParams["search_path"] = schema
	return pgxpool.NewWithConfig(ctx, cfg)
}

func applyMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	dir := filepath.Join("..", "..", "..", "migrations")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".up.sql") {
			continue
		}
		files = append(files, entry.Name())
	}
	sort.Strings(files)
	for _, name := range files {
		content, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return err
		}
		if strings.TrimSpace(string(content)) == "" {
			continue
		}
		if _, err := pool.Exec(ctx, string(content)); err != nil {
			return err
		}
	}
	return nil
}
