package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"

	"tripplanner/internal/apperr"
	"tripplanner/internal/models"
)

const itineraryColumns = `id, user_id, title, destinations, travel_dates, traveler_type, budget,
	currency, interests, notes, itinerary_data, plan_used, source, created_at`

func scanItinerary(row interface{ Scan(dest ...interface{}) error }) (*models.Itinerary, error) {
	var (
		it   models.Itinerary
		plan string
	)
	err := row.Scan(&it.ID, &it.UserID, &it.Title, &it.DestinationsJSON, &it.TravelDatesJSON,
		&it.TravelerType, &it.Budget, &it.Currency, &it.Interests, &it.Notes,
		&it.ContentJSON, &plan, &it.Source, &it.CreatedAt)
	if err != nil {
		return nil, err
	}
	it.PlanUsed = models.Plan(plan)
	return &it, nil
}

// CountUsageSince counts the user's usage rows on plan created at or after since.
func (db *PostgresDB) CountUsageSince(ctx context.Context, userID int64, plan models.Plan, since time.Time) (int, error) {
	n, err := countUsage(ctx, db.pool, userID, plan, since)
	if err != nil {
		return 0, apperr.Persistence(fmt.Errorf("failed to count usage: %w", err))
	}
	return n, nil
}

func countUsage(ctx context.Context, q queryer, userID int64, plan models.Plan, since time.Time) (int, error) {
	var n int
	err := q.QueryRow(ctx,
		`SELECT COUNT(*) FROM usage_records WHERE user_id = $1 AND plan = $2 AND created_at >= $3`,
		userID, string(plan), since,
	).Scan(&n)
	return n, err
}

// CreateItinerary stores it and, when usage is non-nil, the matching usage
// record in one transaction. With a window the user row is locked and the
// free count re-checked first, so concurrent requests cannot overrun the
// quota; a full window returns apperr.ErrQuotaExceeded and writes nothing.
func (db *PostgresDB) CreateItinerary(ctx context.Context, it *models.Itinerary, usage *models.UsageRecord, window *models.UsageWindow) error {
	err := db.pool.BeginFunc(ctx, func(tx pgx.Tx) error {
		if usage != nil && window != nil {
			var locked int64
			if err := tx.QueryRow(ctx, `SELECT id FROM users WHERE id = $1 FOR UPDATE`, usage.UserID).Scan(&locked); err != nil {
				return fmt.Errorf("lock user: %w", err)
			}
			n, err := countUsage(ctx, tx, usage.UserID, usage.Plan, window.Since)
			if err != nil {
				return fmt.Errorf("count usage: %w", err)
			}
			if n >= window.Limit {
				return apperr.ErrQuotaExceeded
			}
		}

		err := tx.QueryRow(ctx, `
			INSERT INTO itineraries (user_id, title, destinations, travel_dates, traveler_type,
				budget, currency, interests, notes, itinerary_data, plan_used, source, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			RETURNING id`,
			it.UserID, it.Title, jsonOr(it.DestinationsJSON, "[]"), jsonOr(it.TravelDatesJSON, "{}"),
			it.TravelerType, it.Budget, it.Currency, it.Interests, it.Notes,
			jsonOr(it.ContentJSON, "{}"), string(it.PlanUsed), it.Source, it.CreatedAt,
		).Scan(&it.ID)
		if err != nil {
			return fmt.Errorf("insert itinerary: %w", err)
		}

		if usage == nil {
			return nil
		}
		err = tx.QueryRow(ctx, `
			INSERT INTO usage_records (user_id, plan, action, created_at)
			VALUES ($1, $2, $3, $4)
			RETURNING id`,
			usage.UserID, string(usage.Plan), usage.Action, usage.CreatedAt,
		).Scan(&usage.ID)
		if err != nil {
			return fmt.Errorf("insert usage record: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, apperr.ErrQuotaExceeded) {
			return err
		}
		return apperr.Persistence(fmt.Errorf("failed to save itinerary: %w", err))
	}
	return nil
}

// ListItineraries returns the user's itineraries, newest first.
func (db *PostgresDB) ListItineraries(ctx context.Context, userID int64, limit int) ([]*models.Itinerary, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+itineraryColumns+` FROM itineraries WHERE user_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2`,
		userID, limit)
	if err != nil {
		return nil, apperr.Persistence(fmt.Errorf("failed to list itineraries: %w", err))
	}
	defer rows.Close()

	var out []*models.Itinerary
	for rows.Next() {
		it, err := scanItinerary(rows)
		if err != nil {
			return nil, apperr.Persistence(fmt.Errorf("failed to scan itinerary: %w", err))
		}
		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Persistence(fmt.Errorf("failed to list itineraries: %w", err))
	}
	return out, nil
}

// GetItinerary returns one itinerary owned by userID.
func (db *PostgresDB) GetItinerary(ctx context.Context, userID, id int64) (*models.Itinerary, error) {
	it, err := scanItinerary(db.pool.QueryRow(ctx,
		`SELECT `+itineraryColumns+` FROM itineraries WHERE id = $1 AND user_id = $2`, id, userID))
	if err != nil {
		return nil, notFoundOr(err, "get itinerary")
	}
	return it, nil
}

// jsonOr returns b as a string parameter so pgx sends it as text for the
// jsonb column, substituting fallback when b is empty.
func jsonOr(b []byte, fallback string) string {
	if len(b) == 0 {
		return fallback
	}
	return string(b)
}
