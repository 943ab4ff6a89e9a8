// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/smartcover/heron/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SaveRecommendation stores a served recommendation response.
func (r *SQLRepository) SaveRecommendation(ctx context.Context, rec *domain.RecommendationRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("%w: record ID is required", ErrInvalidInput)
	}

	profile, _ := json.Marshal(rec.Profile)
	results, _ := json.Marshal(rec.Results)

	query := `
		INSERT INTO recommendations (id, profile, results, created_at)
		VALUES (?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		rec.ID, string(profile), string(results), rec.CreatedAt,
	)
	return err
}

// GetRecommendation retrieves a recommendation record by ID.
func (r *SQLRepository) GetRecommendation(ctx context.Context, id string) (*domain.RecommendationRecord, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: record ID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, profile, results, created_at
		FROM recommendations
		WHERE id = ?
	`

	var rec domain.RecommendationRecord
	var profile, results string

	err := r.db.QueryRowContext(ctx, r.rebind(query), id).Scan(
		&rec.ID, &profile, &results, &rec.CreatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(profile), &rec.Profile); err != nil {
		return nil, fmt.Errorf("failed to parse stored profile: %w", err)
	}
	if err := json.Unmarshal([]byte(results), &rec.Results); err != nil {
		return nil, fmt.Errorf("failed to parse stored results: %w", err)
	}

	return &rec, nil
}

// SaveAssessment stores a served risk assessment response.
func (r *SQLRepository) SaveAssessment(ctx context.Context, rec *domain.AssessmentRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("%w: record ID is required", ErrInvalidInput)
	}

	profile, _ := json.Marshal(rec.Profile)
	assessment, _ := json.Marshal(rec.Assessment)

	query := `
		INSERT INTO assessments (id, profile, assessment, created_at)
		VALUES (?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		rec.ID, string(profile), string(assessment), rec.CreatedAt,
	)
	return err
}

// GetAssessment retrieves an assessment record by ID.
func (r *SQLRepository) GetAssessment(ctx context.Context, id string) (*domain.AssessmentRecord, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: record ID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, profile, assessment, created_at
		FROM assessments
		WHERE id = ?
	`

	var rec domain.AssessmentRecord
	var profile, assessment string

	err := r.db.QueryRowContext(ctx, r.rebind(query), id).Scan(
		&rec.ID, &profile, &assessment, &rec.CreatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(profile), &rec.Profile); err != nil {
		return nil, fmt.Errorf("failed to parse stored profile: %w", err)
	}
	if err := json.Unmarshal([]byte(assessment), &rec.Assessment); err != nil {
		return nil, fmt.Errorf("failed to parse stored assessment: %w", err)
	}

	return &rec, nil
}

// SaveBoostRule stores a boost rule, upserting on (id, version).
func (r *SQLRepository) SaveBoostRule(ctx context.Context, rule *domain.BoostRule) error {
	if rule.ID == "" {
		return fmt.Errorf("%w: rule ID is required", ErrInvalidInput)
	}

	enabled := 0
	if rule.Enabled {
		enabled = 1
	}

	now := time.Now().UTC()

	query := `
		INSERT INTO boost_rules (
			id, name, description, version, expression, weight, enabled, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, version) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			expression = excluded.expression,
			weight = excluded.weight,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		rule.ID, rule.Name, rule.Description,
		rule.Version, rule.Expression, rule.Weight, enabled,
		now, now,
	)
	return err
}

// GetBoostRule retrieves the latest enabled version of a boost rule.
func (r *SQLRepository) GetBoostRule(ctx context.Context, ruleID string) (*domain.BoostRule, error) {
	if ruleID == "" {
		return nil, fmt.Errorf("%w: rule ID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, name, description, version, expression, weight, enabled
		FROM boost_rules
		WHERE id = ? AND enabled = 1
		ORDER BY version DESC
		LIMIT 1
	`

	var rule domain.BoostRule
	var enabled int

	err := r.db.QueryRowContext(ctx, r.rebind(query), ruleID).Scan(
		&rule.ID, &rule.Name, &rule.Description,
		&rule.Version, &rule.Expression, &rule.Weight, &enabled,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rule.Enabled = enabled == 1

	return &rule, nil
}

// ListBoostRules retrieves all enabled boost rules.
func (r *SQLRepository) ListBoostRules(ctx context.Context) ([]*domain.BoostRule, error) {
	query := `
		SELECT id, name, description, version, expression, weight, enabled
		FROM boost_rules
		WHERE enabled = 1
		ORDER BY name
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []*domain.BoostRule
	for rows.Next() {
		var rule domain.BoostRule
		var enabled int

		if err := rows.Scan(
			&rule.ID, &rule.Name, &rule.Description,
			&rule.Version, &rule.Expression, &rule.Weight, &enabled,
		); err != nil {
			return nil, err
		}

		rule.Enabled = enabled == 1
		rules = append(rules, &rule)
	}

	return rules, rows.Err()
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	// Convert ? to $1, $2, etc.
	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
