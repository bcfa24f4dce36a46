package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"qms/walkin-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type refresherFunc func(ctx context.Context) ([]models.EntryView, error)

func (f refresherFunc) UpdateQueuePositions(ctx context.Context) ([]models.EntryView, error) {
	return f(ctx)
}

func TestRunCallsRefresh(t *testing.T) {
	calls := 0
	r := NewReconciler(refresherFunc(func(ctx context.Context) ([]models.EntryView, error) {
		calls++
		_, hasDeadline := ctx.Deadline()
		assert.True(t, hasDeadline)
		return []models.EntryView{{}}, nil
	}), time.Second, nil)

	ran, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Equal(t, 1, calls)
}

func TestRunWrapsErrors(t *testing.T) {
	boom := errors.New("store down")
	r := NewReconciler(refresherFunc(func(ctx context.Context) ([]models.EntryView, error) {
		return nil, boom
	}), 0, nil)

	_, err := r.Run(context.Background())
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "reconcile positions")
}

func TestOverlappingRunIsSkipped(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	r := NewReconciler(refresherFunc(func(ctx context.Context) ([]models.EntryView, error) {
		close(started)
		<-release
		return nil, nil
	}), time.Second, nil)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = r.Run(context.Background())
	}()
	<-started

	ran, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.False(t, ran)

	close(release)
	wg.Wait()
}

func TestScheduleRejectsBadSpec(t *testing.T) {
	r := NewReconciler(refresherFunc(func(ctx context.Context) ([]models.EntryView, error) {
		return nil, nil
	}), time.Second, nil)

	_, err := r.Schedule("not a schedule")
	require.Error(t, err)

	c, err := r.Schedule("@every 1m")
	require.NoError(t, err)
	assert.Len(t, c.Entries(), 1)
}
