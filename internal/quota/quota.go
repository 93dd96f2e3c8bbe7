// Package quota enforces the daily itinerary limit for free-plan users.
package quota

import (
	"context"
	"time"

	"tripplanner/internal/apperr"
	"tripplanner/internal/models"
)

const (
	DailyLimit                = 3
	ActionItineraryGeneration = "itinerary_generation"
)

// UsageCounter counts usage rows for a user and plan since a point in time.
type UsageCounter interface {
	CountUsageSince(ctx context.Context, userID int64, plan models.Plan, since time.Time) (int, error)
}

type Tracker struct {
	store UsageCounter
	limit int
	now   func() time.Time
}

type Option func(*Tracker)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// WithLimit overrides DailyLimit.
func WithLimit(limit int) Option {
	return func(t *Tracker) { t.limit = limit }
}

func NewTracker(store UsageCounter, opts ...Option) *Tracker {
	t := &Tracker{store: store, limit: DailyLimit, now: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// DayStart returns UTC midnight of t's UTC day.
func DayStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func (t *Tracker) Now() time.Time {
	return t.now().UTC()
}

func (t *Tracker) Limit() int {
	return t.limit
}

// Window is the quota the store re-checks when it appends a usage record.
func (t *Tracker) Window() models.UsageWindow {
	return models.UsageWindow{Since: DayStart(t.now()), Limit: t.limit}
}

// Remaining returns how many free generations the user has left today.
// It only reads.
func (t *Tracker) Remaining(ctx context.Context, user *models.User) (int, error) {
	used, err := t.store.CountUsageSince(ctx, user.ID, models.PlanFree, DayStart(t.now()))
	if err != nil {
		return 0, err
	}
	if used >= t.limit {
		return 0, nil
	}
	return t.limit - used, nil
}

// Check returns apperr.ErrQuotaExceeded when a free user has no
// generations left. Paid plans are never limited.
func (t *Tracker) Check(ctx context.Context, user *models.User) error {
	if user.Plan != models.PlanFree {
		return nil
	}
	remaining, err := t.Remaining(ctx, user)
	if err != nil {
		return err
	}
	if remaining == 0 {
		return apperr.ErrQuotaExceeded
	}
	return nil
}

// Record builds the usage row for a generation by a free user, or nil
// when the user's plan is not metered.
func (t *Tracker) Record(user *models.User) *models.UsageRecord {
	if user.Plan != models.PlanFree {
		return nil
	}
	return &models.UsageRecord{
		UserID:    user.ID,
		Plan:      models.PlanFree,
		Action:    ActionItineraryGeneration,
		CreatedAt: t.Now(),
	}
}
