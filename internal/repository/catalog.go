package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/orgadmin/backend/internal/domain"
	"github.com/shopspring/decimal"
)

// CatalogRepository reads and seeds plans and modules.
type CatalogRepository struct {
	db *pgxpool.Pool
}

// NewCatalogRepository creates a new CatalogRepository.
func NewCatalogRepository(db *pgxpool.Pool) *CatalogRepository {
	return &CatalogRepository{db: db}
}

const planColumns = `id, name, description, price::text, features, popular, active`

func scanPlan(row pgx.Row) (*domain.Plan, error) {
	var p domain.Plan
	var price string
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &price, &p.Features, &p.Popular, &p.Active); err != nil {
		return nil, err
	}
	d, err := decimal.NewFromString(price)
	if err != nil {
		return nil, fmt.Errorf("plan %d has invalid price %q: %w", p.ID, price, err)
	}
	p.Price = d
	return &p, nil
}

// ListPlans returns active plans ordered by price.
func (r *CatalogRepository) ListPlans(ctx context.Context) ([]*domain.Plan, error) {
	rows, err := r.db.Query(ctx, `SELECT `+planColumns+` FROM plans WHERE active ORDER BY price, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	defer rows.Close()

	var plans []*domain.Plan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan plan: %w", err)
		}
		plans = append(plans, p)
	}
	return plans, rows.Err()
}

// GetPlan returns the plan with id, or nil if there is none.
func (r *CatalogRepository) GetPlan(ctx context.Context, id int64) (*domain.Plan, error) {
	p, err := scanPlan(r.db.QueryRow(ctx, `SELECT `+planColumns+` FROM plans WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find plan: %w", err)
	}
	return p, nil
}

// UpsertPlan inserts or replaces a plan.
func (r *CatalogRepository) UpsertPlan(ctx context.Context, p *domain.Plan) error {
	query := `
		INSERT INTO plans (id, name, description, price, features, popular, active)
		VALUES ($1, $2, $3, $4::numeric, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, description = EXCLUDED.description, price = EXCLUDED.price,
		    features = EXCLUDED.features, popular = EXCLUDED.popular, active = EXCLUDED.active
	`
	_, err := r.db.Exec(ctx, query, p.ID, p.Name, p.Description, p.Price.StringFixed(2), p.Features, p.Popular, p.Active)
	if err != nil {
		return fmt.Errorf("failed to upsert plan: %w", err)
	}
	return nil
}

const moduleColumns = `id, name, description, price::text, features, billing_cycle, active`

func scanModule(row pgx.Row) (*domain.Module, error) {
	var m domain.Module
	var price, cycle string
	if err := row.Scan(&m.ID, &m.Name, &m.Description, &price, &m.Features, &cycle, &m.Active); err != nil {
		return nil, err
	}
	d, err := decimal.NewFromString(price)
	if err != nil {
		return nil, fmt.Errorf("module %d has invalid price %q: %w", m.ID, price, err)
	}
	m.Price = d
	m.BillingCycle = domain.BillingCycle(cycle)
	return &m, nil
}

// ListModules returns active modules ordered by name.
func (r *CatalogRepository) ListModules(ctx context.Context) ([]*domain.Module, error) {
	rows, err := r.db.Query(ctx, `SELECT `+moduleColumns+` FROM modules WHERE active ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list modules: %w", err)
	}
	defer rows.Close()

	var modules []*domain.Module
	for rows.Next() {
		m, err := scanModule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan module: %w", err)
		}
		modules = append(modules, m)
	}
	return modules, rows.Err()
}

// GetModule returns the module with id, or nil if there is none.
func (r *CatalogRepository) GetModule(ctx context.Context, id int64) (*domain.Module, error) {
	m, err := scanModule(r.db.QueryRow(ctx, `SELECT `+moduleColumns+` FROM modules WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find module: %w", err)
	}
	return m, nil
}

// UpsertModule inserts or replaces a module.
func (r *CatalogRepository) UpsertModule(ctx context.Context, m *domain.Module) error {
	query := `
		INSERT INTO modules (id, name, description, price, features, billing_cycle, active)
		VALUES ($1, $2, $3, $4::numeric, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, description = EXCLUDED.description, price = EXCLUDED.price,
		    features = EXCLUDED.features, billing_cycle = EXCLUDED.billing_cycle, active = EXCLUDED.active
	`
	_, err := r.db.Exec(ctx, query, m.ID, m.Name, m.Description, m.Price.StringFixed(2), m.Features, string(m.BillingCycle), m.Active)
	if err != nil {
		return fmt.Errorf("failed to upsert module: %w", err)
	}
	return nil
}
