package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"

	"tripplanner/internal/apperr"
	"tripplanner/internal/models"
)

const paymentColumns = `id, user_id, payment_id, plan, amount, currency, status, transaction_id,
	upi_reference, rejection_reason, stripe_session_id, created_at, updated_at, completed_at`

func scanPayment(row interface{ Scan(dest ...interface{}) error }) (*models.Payment, error) {
	var (
		p      models.Payment
		plan   string
		status string
	)
	err := row.Scan(&p.ID, &p.UserID, &p.PaymentID, &plan, &p.Amount, &p.Currency, &status,
		&p.TransactionID, &p.UPIReference, &p.RejectionReason, &p.StripeSessionID,
		&p.CreatedAt, &p.UpdatedAt, &p.CompletedAt)
	if err != nil {
		return nil, err
	}
	p.Plan = models.Plan(plan)
	p.Status = models.PaymentStatus(status)
	return &p, nil
}

func (db *PostgresDB) CreatePayment(ctx context.Context, p *models.Payment) error {
	query := `
		INSERT INTO payments (user_id, payment_id, plan, amount, currency, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		RETURNING id
	`
	err := db.pool.QueryRow(ctx, query,
		p.UserID, p.PaymentID, string(p.Plan), p.Amount, p.Currency, string(p.Status), p.CreatedAt,
	).Scan(&p.ID)
	if err != nil {
		return apperr.Persistence(fmt.Errorf("failed to create payment: %w", err))
	}
	p.UpdatedAt = p.CreatedAt
	return nil
}

func (db *PostgresDB) GetPayment(ctx context.Context, paymentID string) (*models.Payment, error) {
	p, err := scanPayment(db.pool.QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE payment_id = $1`, paymentID))
	if err != nil {
		return nil, notFoundOr(err, "get payment")
	}
	return p, nil
}

func (db *PostgresDB) GetPaymentByStripeSession(ctx context.Context, sessionID string) (*models.Payment, error) {
	p, err := scanPayment(db.pool.QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE stripe_session_id = $1`, sessionID))
	if err != nil {
		return nil, notFoundOr(err, "get payment by session")
	}
	return p, nil
}

// AttachStripeSession records the checkout session created for a payment.
func (db *PostgresDB) AttachStripeSession(ctx context.Context, paymentID, sessionID string) error {
	tag, err := db.pool.Exec(ctx,
		`UPDATE payments SET stripe_session_id = $2, updated_at = NOW() WHERE payment_id = $1`,
		paymentID, sessionID)
	if err != nil {
		return apperr.Persistence(fmt.Errorf("failed to attach stripe session: %w", err))
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// ListPayments returns payments newest first. An empty status lists all.
func (db *PostgresDB) ListPayments(ctx context.Context, status models.PaymentStatus) ([]*models.Payment, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE ($1::text = '' OR status = $1) ORDER BY created_at DESC, id DESC`,
		string(status))
	if err != nil {
		return nil, apperr.Persistence(fmt.Errorf("failed to list payments: %w", err))
	}
	defer rows.Close()

	var out []*models.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, apperr.Persistence(fmt.Errorf("failed to scan payment: %w", err))
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Persistence(fmt.Errorf("failed to list payments: %w", err))
	}
	return out, nil
}

// UpdatePaymentStatus applies upd only while the stored status is one of
// upd.From. It returns apperr.ErrNotFound when no payment matches the id
// and owner, and apperr.ErrInvalidTransition when the status has moved on.
func (db *PostgresDB) UpdatePaymentStatus(ctx context.Context, upd models.PaymentUpdate) (*models.Payment, error) {
	var out *models.Payment
	err := db.pool.BeginFunc(ctx, func(tx pgx.Tx) error {
		p, err := applyPaymentUpdate(ctx, tx, upd)
		out = p
		return err
	})
	if err != nil {
		return nil, classifyUpdateErr(err)
	}
	return out, nil
}

// CompletePayment moves the payment to completed and upgrades its owner to
// pro in one transaction. Of two concurrent calls exactly one succeeds; the
// other sees apperr.ErrInvalidTransition.
func (db *PostgresDB) CompletePayment(ctx context.Context, upd models.PaymentUpdate) (*models.Payment, error) {
	upd.To = models.PaymentCompleted
	var out *models.Payment
	err := db.pool.BeginFunc(ctx, func(tx pgx.Tx) error {
		p, err := applyPaymentUpdate(ctx, tx, upd)
		if err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `UPDATE users SET plan = $2 WHERE id = $1`, p.UserID, string(models.PlanPro))
		if err != nil {
			return fmt.Errorf("upgrade user: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("upgrade user %d: no such user", p.UserID)
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, classifyUpdateErr(err)
	}
	return out, nil
}

func applyPaymentUpdate(ctx context.Context, tx pgx.Tx, upd models.PaymentUpdate) (*models.Payment, error) {
	from := make([]string, len(upd.From))
	for i, s := range upd.From {
		from[i] = string(s)
	}

	query := `
		UPDATE payments SET
			status = $3,
			transaction_id = CASE WHEN $4 <> '' THEN $4 ELSE transaction_id END,
			upi_reference = CASE WHEN $5 <> '' THEN $5 ELSE upi_reference END,
			rejection_reason = CASE WHEN $6 <> '' THEN $6 ELSE rejection_reason END,
			updated_at = $7,
			completed_at = CASE WHEN $3 = 'completed' THEN $7 ELSE completed_at END
		WHERE payment_id = $1 AND ($2::bigint = 0 OR user_id = $2) AND status = ANY($8)
		RETURNING ` + paymentColumns

	p, err := scanPayment(tx.QueryRow(ctx, query,
		upd.PaymentID, upd.UserID, string(upd.To),
		upd.TransactionID, upd.UPIReference, upd.RejectionReason, upd.At, from,
	))
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("update payment: %w", err)
	}

	// Nothing updated: tell a missing payment apart from a stale status.
	var exists bool
	err = tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM payments WHERE payment_id = $1 AND ($2::bigint = 0 OR user_id = $2))`,
		upd.PaymentID, upd.UserID,
	).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("look up payment: %w", err)
	}
	if !exists {
		return nil, apperr.ErrNotFound
	}
	return nil, apperr.ErrInvalidTransition
}

func classifyUpdateErr(err error) error {
	if errors.Is(err, apperr.ErrNotFound) || errors.Is(err, apperr.ErrInvalidTransition) {
		return err
	}
	return apperr.Persistence(fmt.Errorf("failed to update payment: %w", err))
}
