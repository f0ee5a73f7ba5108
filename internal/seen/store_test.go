package seen

import (
	"testing"
	"time"
)

func TestRecord_Eligible_InsideWindow(t *testing.T) {
	now := time.Now()

	cases := []struct {
		name string
		age  time.Duration
		want bool
	}{
		{"just recorded", 0, false},
		{"one day old", 24 * time.Hour, false},
		{"six days old", 6 * 24 * time.Hour, false},
		{"eight days old", 8 * 24 * time.Hour, true},
		{"a month old", 30 * 24 * time.Hour, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := Record{
				UserID:      "u1",
				CandidateID: "c1",
				ViewType:    ViewClient,
				Action:      ActionPass,
				CreatedAt:   now.Add(-tc.age),
			}
			if got := r.Eligible(now); got != tc.want {
				t.Errorf("age %v: Eligible = %v, want %v", tc.age, got, tc.want)
			}
		})
	}
}

func TestRecord_Eligible_ExactBoundaryStaysExcluded(t *testing.T) {
	// A record exactly RecycleWindow old sits on the >= side of the read-time
	// cutoff and stays excluded.
	now := time.Now()
	r := Record{CreatedAt: now.Add(-RecycleWindow)}
	if r.Eligible(now) {
		t.Error("record exactly at the window boundary should still be excluded")
	}
}

func TestRecycleWindow_SevenDays(t *testing.T) {
	if RecycleWindow != 7*24*time.Hour {
		t.Errorf("RecycleWindow should be 7 days, got %v", RecycleWindow)
	}
}

func TestViewTypesAndActions(t *testing.T) {
	// These values are persisted and CHECK-constrained in the schema; changing
	// them requires a migration.
	if ViewClient != "client" || ViewOwner != "owner" {
		t.Errorf("unexpected view types: %q, %q", ViewClient, ViewOwner)
	}
	for _, a := range []string{ActionLike, ActionPass, ActionView} {
		switch a {
		case "like", "pass", "view":
		default:
			t.Errorf("unexpected action %q", a)
		}
	}
}
