package store

import (
	"testing"
	"time"

	"qms/walkin-service/internal/models"
)

func TestValidTransition(t *testing.T) {
	cases := []struct {
		from  models.Status
		to    models.Status
		valid bool
	}{
		{models.StatusWaiting, models.StatusInProgress, true},
		{models.StatusWaiting, models.StatusCancelled, true},
		{models.StatusWaiting, models.StatusNoShow, true},
		{models.StatusWaiting, models.StatusCompleted, false},
		{models.StatusWaiting, models.StatusWaiting, true},
		{models.StatusInProgress, models.StatusCompleted, true},
		{models.StatusInProgress, models.StatusWaiting, false},
		{models.StatusInProgress, models.StatusCancelled, false},
		{models.StatusInProgress, models.StatusNoShow, false},
		{models.StatusCompleted, models.StatusWaiting, false},
		{models.StatusCompleted, models.StatusInProgress, false},
		{models.StatusCancelled, models.StatusWaiting, false},
		{models.StatusNoShow, models.StatusWaiting, false},
		{models.StatusNoShow, models.StatusNoShow, true},
	}

	for _, tt := range cases {
		if got := ValidTransition(tt.from, tt.to); got != tt.valid {
			t.Fatalf("ValidTransition(%q, %q)=%v, want %v", tt.from, tt.to, got, tt.valid)
		}
	}
}

func TestQueueDay(t *testing.T) {
	loc := time.FixedZone("UTC+7", 7*3600)
	ts := time.Date(2026, 3, 1, 20, 30, 0, 0, time.UTC)

	got := QueueDay(ts, loc)
	want := time.Date(2026, 3, 2, 0, 0, 0, 0, loc)
	if !got.Equal(want) {
		t.Fatalf("QueueDay=%v, want %v", got, want)
	}
	if utc := QueueDay(ts, nil); utc.Day() != 1 {
		t.Fatalf("expected UTC day 1, got %d", utc.Day())
	}
}
