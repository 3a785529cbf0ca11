package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// NewDB creates a new PostgreSQL connection pool.
func NewDB(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}

// RunMigrations creates the schema if it does not exist yet.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	query := `
		CREATE TABLE IF NOT EXISTS users (
			id         TEXT PRIMARY KEY,
			email      TEXT NOT NULL UNIQUE,
			password   TEXT NOT NULL,
			role       TEXT NOT NULL DEFAULT 'support',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS plans (
			id          BIGINT PRIMARY KEY,
			name        TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			price       NUMERIC(12,2) NOT NULL CHECK (price >= 0),
			features    TEXT[] NOT NULL DEFAULT '{}',
			popular     BOOLEAN NOT NULL DEFAULT FALSE,
			active      BOOLEAN NOT NULL DEFAULT TRUE
		);

		CREATE TABLE IF NOT EXISTS modules (
			id            BIGINT PRIMARY KEY,
			name          TEXT NOT NULL,
			description   TEXT NOT NULL DEFAULT '',
			price         NUMERIC(12,2) NOT NULL CHECK (price >= 0),
			features      TEXT[] NOT NULL DEFAULT '{}',
			billing_cycle TEXT NOT NULL CHECK (billing_cycle IN ('monthly', 'yearly')),
			active        BOOLEAN NOT NULL DEFAULT TRUE
		);

		CREATE TABLE IF NOT EXISTS pending_purchases (
			reference       TEXT PRIMARY KEY,
			kind            TEXT NOT NULL CHECK (kind IN ('plan', 'module')),
			item_id         BIGINT NOT NULL,
			organization_id BIGINT NOT NULL DEFAULT 0,
			status          TEXT NOT NULL DEFAULT 'pending',
			created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS subscriptions (
			id                   TEXT PRIMARY KEY,
			organization_id      BIGINT NOT NULL,
			plan_id              BIGINT NOT NULL REFERENCES plans(id),
			status               TEXT NOT NULL,
			current_period_start TIMESTAMPTZ NOT NULL,
			current_period_end   TIMESTAMPTZ NOT NULL,
			payment_provider_id  TEXT NOT NULL DEFAULT '',
			created_at           TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at           TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_subscriptions_org ON subscriptions(organization_id);

		CREATE TABLE IF NOT EXISTS module_activations (
			id                  TEXT PRIMARY KEY,
			organization_id     BIGINT NOT NULL,
			module_id           BIGINT NOT NULL REFERENCES modules(id),
			billing_cycle       TEXT NOT NULL,
			status              TEXT NOT NULL,
			active_until        TIMESTAMPTZ NOT NULL,
			payment_provider_id TEXT NOT NULL DEFAULT '',
			created_at          TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_module_activations_org ON module_activations(organization_id);

		CREATE TABLE IF NOT EXISTS reconciliation_failures (
			id              TEXT PRIMARY KEY,
			checkout_id     TEXT NOT NULL,
			transaction_id  TEXT NOT NULL,
			item_kind       TEXT NOT NULL,
			item_id         BIGINT NOT NULL,
			organization_id BIGINT NOT NULL DEFAULT 0,
			error           TEXT NOT NULL,
			resolved_at     TIMESTAMPTZ,
			created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`
	_, err := pool.Exec(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}
