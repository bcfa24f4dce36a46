package models

import "testing"

func TestParseStatus(t *testing.T) {
	for _, raw := range []string{"WAITING", "IN_PROGRESS", "COMPLETED", "CANCELLED", "NO_SHOW"} {
		if _, ok := ParseStatus(raw); !ok {
			t.Fatalf("expected %q to parse", raw)
		}
	}
	for _, raw := range []string{"", "waiting", "DONE", "SERVING"} {
		if _, ok := ParseStatus(raw); ok {
			t.Fatalf("expected %q to be rejected", raw)
		}
	}
	if !StatusNoShow.Terminal() || StatusInProgress.Terminal() {
		t.Fatalf("unexpected terminal classification")
	}
}
