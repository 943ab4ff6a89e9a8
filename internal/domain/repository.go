package domain

import (
	"context"
	"time"
)

// Repository persists served results and boost rule configurations.
// The product catalog itself is file-backed and read-only; only derived
// artifacts live in the database.
type Repository interface {
	// Recommendation history
	SaveRecommendation(ctx context.Context, rec *RecommendationRecord) error
	GetRecommendation(ctx context.Context, id string) (*RecommendationRecord, error)

	// Risk assessment history
	SaveAssessment(ctx context.Context, rec *AssessmentRecord) error
	GetAssessment(ctx context.Context, id string) (*AssessmentRecord, error)

	// Boost rule configuration
	SaveBoostRule(ctx context.Context, rule *BoostRule) error
	GetBoostRule(ctx context.Context, ruleID string) (*BoostRule, error)
	ListBoostRules(ctx context.Context) ([]*BoostRule, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
