package db

import (
	"context"
	"fmt"
	"time"

	"tripplanner/internal/apperr"
	"tripplanner/internal/models"
)

const userColumns = `id, email, password_hash, first_name, last_name, plan, role, created_at, last_login_at`

func scanUser(row interface{ Scan(dest ...interface{}) error }) (*models.User, error) {
	var (
		u    models.User
		plan string
		role string
	)
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName,
		&plan, &role, &u.CreatedAt, &u.LastLoginAt); err != nil {
		return nil, err
	}
	u.Plan = models.Plan(plan)
	u.Role = models.Role(role)
	return &u, nil
}

// CreateUser inserts u and fills in its ID. A taken email yields
// apperr.ErrDuplicateEmail.
func (db *PostgresDB) CreateUser(ctx context.Context, u *models.User) error {
	query := `
		INSERT INTO users (email, password_hash, first_name, last_name, plan, role, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`
	err := db.pool.QueryRow(ctx, query,
		u.Email, u.PasswordHash, u.FirstName, u.LastName,
		string(u.Plan), string(u.Role), u.CreatedAt,
	).Scan(&u.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return apperr.ErrDuplicateEmail
		}
		return apperr.Persistence(fmt.Errorf("failed to create user: %w", err))
	}
	return nil
}

func (db *PostgresDB) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	u, err := scanUser(db.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		return nil, notFoundOr(err, "get user")
	}
	return u, nil
}

func (db *PostgresDB) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	u, err := scanUser(db.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, email))
	if err != nil {
		return nil, notFoundOr(err, "get user by email")
	}
	return u, nil
}

func (db *PostgresDB) TouchLastLogin(ctx context.Context, id int64, at time.Time) error {
	tag, err := db.pool.Exec(ctx, `UPDATE users SET last_login_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return apperr.Persistence(fmt.Errorf("failed to update last login: %w", err))
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (db *PostgresDB) SetUserPlan(ctx context.Context, id int64, plan models.Plan) error {
	tag, err := db.pool.Exec(ctx, `UPDATE users SET plan = $2 WHERE id = $1`, id, string(plan))
	if err != nil {
		return apperr.Persistence(fmt.Errorf("failed to set user plan: %w", err))
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// HasCompletedPayment reports whether any payment owned by the user reached
// completed. Completed payments never change state again.
func (db *PostgresDB) HasCompletedPayment(ctx context.Context, userID int64) (bool, error) {
	var exists bool
	err := db.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM payments WHERE user_id = $1 AND status = $2)`,
		userID, string(models.PaymentCompleted),
	).Scan(&exists)
	if err != nil {
		return false, apperr.Persistence(fmt.Errorf("failed to check payments: %w", err))
	}
	return exists, nil
}
