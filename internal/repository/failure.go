package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/orgadmin/backend/internal/domain"
)

// FailureRepository keeps the reconciliation failures support has to handle.
type FailureRepository struct {
	db *pgxpool.Pool
}

// NewFailureRepository creates a new FailureRepository.
func NewFailureRepository(db *pgxpool.Pool) *FailureRepository {
	return &FailureRepository{db: db}
}

// Create stores a failure.
func (r *FailureRepository) Create(ctx context.Context, f *domain.ReconciliationFailure) error {
	query := `
		INSERT INTO reconciliation_failures (id, checkout_id, transaction_id, item_kind, item_id, organization_id, error, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.Exec(ctx, query,
		f.ID, f.CheckoutID, f.TransactionID, string(f.ItemKind), f.ItemID, f.OrganizationID, f.Error, f.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record reconciliation failure: %w", err)
	}
	return nil
}

// ListUnresolved returns open failures, oldest first.
func (r *FailureRepository) ListUnresolved(ctx context.Context, limit int) ([]*domain.ReconciliationFailure, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, checkout_id, transaction_id, item_kind, item_id, organization_id, error, resolved_at, created_at
		FROM reconciliation_failures WHERE resolved_at IS NULL ORDER BY created_at LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list reconciliation failures: %w", err)
	}
	defer rows.Close()

	var out []*domain.ReconciliationFailure
	for rows.Next() {
		var f domain.ReconciliationFailure
		var kind string
		if err := rows.Scan(&f.ID, &f.CheckoutID, &f.TransactionID, &kind, &f.ItemID, &f.OrganizationID, &f.Error, &f.ResolvedAt, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan reconciliation failure: %w", err)
		}
		f.ItemKind = domain.ItemKind(kind)
		out = append(out, &f)
	}
	return out, rows.Err()
}

// Resolve marks a failure as handled. It reports false when no open failure has that id.
func (r *FailureRepository) Resolve(ctx context.Context, id string, at time.Time) (bool, error) {
	tag, err := r.db.Exec(ctx, `UPDATE reconciliation_failures SET resolved_at = $2 WHERE id = $1 AND resolved_at IS NULL`, id, at)
	if err != nil {
		return false, fmt.Errorf("failed to resolve reconciliation failure: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// CountUnresolved is used by the admin stats endpoint.
func (r *FailureRepository) CountUnresolved(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM reconciliation_failures WHERE resolved_at IS NULL`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count reconciliation failures: %w", err)
	}
	return n, nil
}
