package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jcilabs/discount-engine/internal/domain/discount"
)

var _ discount.Repository = (*RuleRepository)(nil)

// RuleRepository implements discount.Repository backed by PostgreSQL.
type RuleRepository struct {
	pool *pgxpool.Pool
}

// NewRuleRepository returns a RuleRepository that uses the given pool.
func NewRuleRepository(pool *pgxpool.Pool) *RuleRepository {
	return &RuleRepository{pool: pool}
}

// FindByCode looks up an active rule by its code (case-insensitive).
// Returns discount.ErrRuleNotFound when no matching active rule exists.
func (r *RuleRepository) FindByCode(ctx context.Context, code string) (*discount.StoredRule, error) {
	const q = `
		SELECT code, kind, config, description, active, created_at, updated_at
		FROM discount_rules
		WHERE code = UPPER($1) AND active`

	var rule discount.StoredRule
	err := r.pool.QueryRow(ctx, q, code).Scan(
		&rule.Code,
		&rule.Kind,
		&rule.Config,
		&rule.Description,
		&rule.Active,
		&rule.CreatedAt,
		&rule.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, discount.ErrRuleNotFound
		}
		return nil, errors.Wrapf(err, "find rule by code %q", code)
	}

	return &rule, nil
}

// Upsert inserts or replaces the stored rule for a code. Codes are stored
// upper-cased.
func (r *RuleRepository) Upsert(ctx context.Context, rule *discount.StoredRule) error {
	const q = `
		INSERT INTO discount_rules (code, kind, config, description, active)
		VALUES (UPPER($1), $2, $3, $4, $5)
		ON CONFLICT (code) DO UPDATE SET
			kind = EXCLUDED.kind,
			config = EXCLUDED.config,
			description = EXCLUDED.description,
			active = EXCLUDED.active,
			updated_at = now()`

	_, err := r.pool.Exec(ctx, q, rule.Code, rule.Kind, rule.Config, rule.Description, rule.Active)
	if err != nil {
		return errors.Wrapf(err, "upsert rule %q", rule.Code)
	}
	return nil
}

// List returns every stored rule, newest first.
func (r *RuleRepository) List(ctx context.Context) ([]discount.StoredRule, error) {
	const q = `
		SELECT code, kind, config, description, active, created_at, updated_at
		FROM discount_rules
		ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, errors.Wrap(err, "list rules")
	}
	defer rows.Close()

	var rules []discount.StoredRule
	for rows.Next() {
		var rule discount.StoredRule
		if err := rows.Scan(
			&rule.Code,
			&rule.Kind,
			&rule.Config,
			&rule.Description,
			&rule.Active,
			&rule.CreatedAt,
			&rule.UpdatedAt,
		); err != nil {
			return nil, errors.Wrap(err, "scan rule row")
		}
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate rule rows")
	}

	return rules, nil
}
