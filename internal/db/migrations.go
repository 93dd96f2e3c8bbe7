package db

import (
	"context"
	"fmt"
)

// schema is the single definition of every table the service owns.
const schema = `
CREATE TABLE IF NOT EXISTS users (
	id            BIGSERIAL PRIMARY KEY,
	email         VARCHAR(120) NOT NULL UNIQUE,
	password_hash VARCHAR(255) NOT NULL,
	first_name    VARCHAR(50)  NOT NULL,
	last_name     VARCHAR(50)  NOT NULL,
	plan          VARCHAR(20)  NOT NULL DEFAULT 'free' CHECK (plan IN ('free', 'pro', 'per_export')),
	role          VARCHAR(20)  NOT NULL DEFAULT 'user' CHECK (role IN ('user', 'admin')),
	created_at    TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
	last_login_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS itineraries (
	id             BIGSERIAL PRIMARY KEY,
	user_id        BIGINT       NOT NULL REFERENCES users(id),
	title          VARCHAR(200) NOT NULL,
	destinations   JSONB        NOT NULL DEFAULT '[]',
	travel_dates   JSONB        NOT NULL DEFAULT '{}',
	traveler_type  VARCHAR(50)  NOT NULL DEFAULT '',
	budget         DOUBLE PRECISION NOT NULL DEFAULT 0,
	currency       VARCHAR(10)  NOT NULL DEFAULT '',
	interests      TEXT         NOT NULL DEFAULT '',
	notes          TEXT         NOT NULL DEFAULT '',
	itinerary_data JSONB        NOT NULL DEFAULT '{}',
	plan_used      VARCHAR(20)  NOT NULL,
	source         VARCHAR(20)  NOT NULL DEFAULT '',
	created_at     TIMESTAMPTZ  NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS itineraries_user_created_idx ON itineraries (user_id, created_at DESC);

CREATE TABLE IF NOT EXISTS usage_records (
	id         BIGSERIAL PRIMARY KEY,
	user_id    BIGINT      NOT NULL REFERENCES users(id),
	plan       VARCHAR(20) NOT NULL,
	action     VARCHAR(50) NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS usage_records_user_created_idx ON usage_records (user_id, created_at);

CREATE TABLE IF NOT EXISTS payments (
	id                BIGSERIAL PRIMARY KEY,
	user_id           BIGINT       NOT NULL REFERENCES users(id),
	payment_id        VARCHAR(100) NOT NULL UNIQUE,
	plan              VARCHAR(20)  NOT NULL,
	amount            BIGINT       NOT NULL,
	currency          VARCHAR(10)  NOT NULL DEFAULT 'INR',
	status            VARCHAR(40)  NOT NULL CHECK (status IN (
		'initiated', 'pending', 'pending_verification',
		'manual_verification_pending', 'completed', 'rejected')),
	transaction_id    VARCHAR(100) NOT NULL DEFAULT '',
	upi_reference     VARCHAR(100) NOT NULL DEFAULT '',
	rejection_reason  TEXT         NOT NULL DEFAULT '',
	stripe_session_id VARCHAR(255) NOT NULL DEFAULT '',
	created_at        TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
	updated_at        TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
	completed_at      TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS payments_status_idx ON payments (status, created_at DESC);
CREATE INDEX IF NOT EXISTS payments_stripe_session_idx ON payments (stripe_session_id) WHERE stripe_session_id <> '';
`

const dropSchema = `
DROP TABLE IF EXISTS payments;
DROP TABLE IF EXISTS usage_records;
DROP TABLE IF EXISTS itineraries;
DROP TABLE IF EXISTS users;
`

// Migrate creates any missing tables and indexes.
func (db *PostgresDB) Migrate(ctx context.Context) error {
	if _, err := db.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// Reset drops every table and recreates the schema. All data is lost.
func (db *PostgresDB) Reset(ctx context.Context) error {
	if _, err := db.pool.Exec(ctx, dropSchema); err != nil {
		return fmt.Errorf("failed to drop tables: %w", err)
	}
	return db.Migrate(ctx)
}
