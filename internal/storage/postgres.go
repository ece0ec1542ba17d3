package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jmylchreest/rulecrawl/pkg/rule"
)

const rulesSchema = `CREATE TABLE IF NOT EXISTS rules (
	id          UUID PRIMARY KEY,
	name        TEXT NOT NULL,
	type        TEXT NOT NULL,
	pattern     TEXT NOT NULL DEFAULT '',
	selector    TEXT NOT NULL DEFAULT '',
	script      TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// PostgresRuleStore stores rules in PostgreSQL.
type PostgresRuleStore struct {
	pool *pgxpool.Pool
}

// NewPostgresRuleStore connects to connStr and creates the rules table if
// it does not exist.
func NewPostgresRuleStore(ctx context.Context, connStr string) (*PostgresRuleStore, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to reach database: %w", err)
	}
	if _, err := pool.Exec(ctx, rulesSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create rules table: %w", err)
	}
	return &PostgresRuleStore{pool: pool}, nil
}

// Ping checks the database connection.
func (s *PostgresRuleStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresRuleStore) List(ctx context.Context) ([]rule.Rule, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, type, pattern, selector, script, description
		 FROM rules
		 ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query rules: %w", err)
	}
	defer rows.Close()

	rules := []rule.Rule{}
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

func (s *PostgresRuleStore) Get(ctx context.Context, id string) (rule.Rule, error) {
	key, err := uuid.Parse(id)
	if err != nil {
		return rule.Rule{}, fmt.Errorf("rule %s: %w", id, ErrNotFound)
	}

	r, err := scanRule(s.pool.QueryRow(ctx,
		`SELECT id, name, type, pattern, selector, script, description
		 FROM rules WHERE id = $1`,
		key,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return rule.Rule{}, fmt.Errorf("rule %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return rule.Rule{}, fmt.Errorf("failed to get rule: %w", err)
	}
	return r, nil
}

func (s *PostgresRuleStore) Create(ctx context.Context, r rule.Rule) (rule.Rule, error) {
	key := uuid.New()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO rules (id, name, type, pattern, selector, script, description)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		key, r.Name, string(r.Variant), r.Pattern, r.Selector, r.Script, r.Description,
	)
	if err != nil {
		return rule.Rule{}, fmt.Errorf("failed to create rule: %w", err)
	}
	r.ID = key.String()
	return r, nil
}

func (s *PostgresRuleStore) Update(ctx context.Context, id string, r rule.Rule) (rule.Rule, error) {
	key, err := uuid.Parse(id)
	if err != nil {
		return rule.Rule{}, fmt.Errorf("rule %s: %w", id, ErrNotFound)
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE rules SET
		   name = $2, type = $3, pattern = $4, selector = $5, script = $6, description = $7,
		   updated_at = NOW()
		 WHERE id = $1`,
		key, r.Name, string(r.Variant), r.Pattern, r.Selector, r.Script, r.Description,
	)
	if err != nil {
		return rule.Rule{}, fmt.Errorf("failed to update rule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return rule.Rule{}, fmt.Errorf("rule %s: %w", id, ErrNotFound)
	}
	r.ID = key.String()
	return r, nil
}

func (s *PostgresRuleStore) Delete(ctx context.Context, id string) error {
	key, err := uuid.Parse(id)
	if err != nil {
		return nil
	}
	if _, err := s.pool.Exec(ctx, `DELETE FROM rules WHERE id = $1`, key); err != nil {
		return fmt.Errorf("failed to delete rule: %w", err)
	}
	return nil
}

func (s *PostgresRuleStore) Close() error {
	s.pool.Close()
	return nil
}

func scanRule(row pgx.Row) (rule.Rule, error) {
	var (
		r       rule.Rule
		id      uuid.UUID
		variant string
	)
	err := row.Scan(&id, &r.Name, &variant, &r.Pattern, &r.Selector, &r.Script, &r.Description)
	if err != nil {
		return rule.Rule{}, err
	}
	r.ID = id.String()
	r.Variant = rule.Variant(variant)
	return r, nil
}
