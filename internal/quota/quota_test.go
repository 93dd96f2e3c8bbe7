package quota

import (
	"context"
	"errors"
	"testing"
	"time"

	"tripplanner/internal/apperr"
	"tripplanner/internal/db"
	"tripplanner/internal/models"
)

func TestDayStart(t *testing.T) {
	loc := time.FixedZone("IST", 5*3600+1800)
	in := time.Date(2025, 6, 2, 3, 0, 0, 0, loc) // 2025-06-01 21:30 UTC
	want := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	if got := DayStart(in); !got.Equal(want) {
		t.Fatalf("DayStart = %v, want %v", got, want)
	}
}

func seed(t *testing.T, store *db.MemoryDB, user *models.User, at time.Time, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		it := &models.Itinerary{UserID: user.ID, Title: "seed", PlanUsed: models.PlanFree, CreatedAt: at}
		rec := &models.UsageRecord{UserID: user.ID, Plan: models.PlanFree, Action: ActionItineraryGeneration, CreatedAt: at}
		if err := store.CreateItinerary(context.Background(), it, rec, nil); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
}

func TestRemainingAndCheck(t *testing.T) {
	now := time.Date(2025, 6, 1, 15, 0, 0, 0, time.UTC)
	tests := []struct {
		name      string
		today     int
		yesterday int
		want      int
	}{
		{"unused", 0, 0, 3},
		{"one used", 1, 0, 2},
		{"yesterday ignored", 1, 5, 2},
		{"exhausted", 3, 0, 0},
		{"over limit clamps", 4, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := db.NewMemoryDB()
			user := &models.User{Email: "u@example.com", Plan: models.PlanFree, Role: models.RoleUser}
			if err := store.CreateUser(context.Background(), user); err != nil {
				t.Fatalf("CreateUser: %v", err)
			}
			seed(t, store, user, now.Add(-time.Hour), tt.today)
			seed(t, store, user, now.Add(-24*time.Hour), tt.yesterday)

			tracker := NewTracker(store, WithClock(func() time.Time { return now }))
			got, err := tracker.Remaining(context.Background(), user)
			if err != nil {
				t.Fatalf("Remaining: %v", err)
			}
			if got != tt.want {
				t.Fatalf("Remaining = %d, want %d", got, tt.want)
			}

			err = tracker.Check(context.Background(), user)
			if tt.want == 0 && !errors.Is(err, apperr.ErrQuotaExceeded) {
				t.Fatalf("expected ErrQuotaExceeded, got %v", err)
			}
			if tt.want > 0 && err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
		})
	}
}

func TestProNeverLimited(t *testing.T) {
	store := db.NewMemoryDB()
	user := &models.User{Email: "p@example.com", Plan: models.PlanPro, Role: models.RoleUser}
	_ = store.CreateUser(context.Background(), user)

	tracker := NewTracker(store, WithLimit(0))
	if err := tracker.Check(context.Background(), user); err != nil {
		t.Fatalf("pro user must not be limited, got %v", err)
	}
	if rec := tracker.Record(user); rec != nil {
		t.Fatalf("pro generations are not metered, got %+v", rec)
	}
}

func TestWindowAndRecord(t *testing.T) {
	now := time.Date(2025, 6, 1, 23, 59, 0, 0, time.UTC)
	tracker := NewTracker(db.NewMemoryDB(), WithClock(func() time.Time { return now }))

	w := tracker.Window()
	if !w.Since.Equal(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)) || w.Limit != DailyLimit {
		t.Fatalf("unexpected window %+v", w)
	}

	rec := tracker.Record(&models.User{ID: 7, Plan: models.PlanFree})
	if rec == nil || rec.UserID != 7 || rec.Action != ActionItineraryGeneration || !rec.CreatedAt.Equal(now) {
		t.Fatalf("unexpected record %+v", rec)
	}
}
