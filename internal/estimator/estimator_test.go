package estimator

import "testing"

func TestForPosition(t *testing.T) {
	est := Default()
	cases := []struct {
		position int
		want     int
	}{
		{0, 0},
		{-3, 0},
		{1, 30},
		{2, 60},
		{4, 120},
	}
	for _, tc := range cases {
		if got := est.ForPosition(tc.position); got != tc.want {
			t.Fatalf("ForPosition(%d) = %d, want %d", tc.position, got, tc.want)
		}
	}
}

func TestForNextArrival(t *testing.T) {
	est := Default()
	if got := est.ForNextArrival(0); got != 15 {
		t.Fatalf("expected base wait 15 on empty line, got %d", got)
	}
	if got := est.ForNextArrival(1); got != 30 {
		t.Fatalf("expected 30 with one waiting, got %d", got)
	}
	if got := est.ForNextArrival(3); got != 90 {
		t.Fatalf("expected 90 with three waiting, got %d", got)
	}
}

func TestNewFallsBackToDefaults(t *testing.T) {
	est := New(0, -1)
	if est.ServiceTimePerCustomer != DefaultServiceTimePerCustomer {
		t.Fatalf("unexpected service time %d", est.ServiceTimePerCustomer)
	}
	if est.BaseWaitTime != DefaultBaseWaitTime {
		t.Fatalf("unexpected base wait %d", est.BaseWaitTime)
	}

	custom := New(10, 0)
	if custom.ForNextArrival(0) != 0 || custom.ForPosition(3) != 30 {
		t.Fatalf("unexpected custom estimator %+v", custom)
	}
}
