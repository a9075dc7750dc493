// Package domain defines the core interfaces and types for Kestrel.
package domain

import (
	"context"
	"time"
)

// Repository defines the interface for data persistence.
type Repository interface {
	// Reference data operations. Records are stored per source and
	// replaced wholesale on refresh.
	ReplaceReferenceRecords(ctx context.Context, source string, records []ReferenceRecord) error
	ListReferenceRecords(ctx context.Context, source string) ([]ReferenceRecord, error)

	// Expression rule operations
	SaveExprRule(ctx context.Context, rule *ExprRuleConfig) error
	GetExprRule(ctx context.Context, name string) (*ExprRuleConfig, error)
	ListExprRules(ctx context.Context) ([]*ExprRuleConfig, error)

	// Validation run results
	SaveRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, runID string) (*Run, error)

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
