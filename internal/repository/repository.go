// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/openlearn/kestrel/internal/domain"
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

// ReplaceReferenceRecords swaps the stored rows for one source in a single
// transaction, so readers never see a partially loaded source.
func (r *SQLRepository) ReplaceReferenceRecords(ctx context.Context, source string, records []domain.ReferenceRecord) error {
	if source == "" {
		return fmt.Errorf("%w: source is required", ErrInvalidInput)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, r.rebind(`DELETE FROM reference_records WHERE source = ?`), source); err != nil {
		return err
	}

	insert := `
		INSERT INTO reference_records (
			source, code, sub_code, effective_from, effective_to, payload, loaded_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	stmt, err := tx.PrepareContext(ctx, r.rebind(insert))
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, rec := range records {
		payload := ""
		if len(rec.Payload) > 0 {
			payload = string(rec.Payload)
		}
		if _, err := stmt.ExecContext(ctx,
			source, rec.Code, rec.SubCode,
			rec.EffectiveFrom, rec.EffectiveTo,
			payload, now,
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// ListReferenceRecords retrieves all stored rows for one source.
func (r *SQLRepository) ListReferenceRecords(ctx context.Context, source string) ([]domain.ReferenceRecord, error) {
	if source == "" {
		return nil, fmt.Errorf("%w: source is required", ErrInvalidInput)
	}

	query := `
		SELECT code, sub_code, effective_from, effective_to, payload
		FROM reference_records
		WHERE source = ?
		ORDER BY code, sub_code, effective_from
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), source)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []domain.ReferenceRecord
	for rows.Next() {
		var rec domain.ReferenceRecord
		var effectiveTo sql.NullTime
		var payload string

		if err := rows.Scan(&rec.Code, &rec.SubCode, &rec.EffectiveFrom, &effectiveTo, &payload); err != nil {
			return nil, err
		}

		rec.Source = source
		if effectiveTo.Valid {
			t := effectiveTo.Time
			rec.EffectiveTo = &t
		}
		if payload != "" {
			rec.Payload = json.RawMessage(payload)
		}

		records = append(records, rec)
	}

	return records, rows.Err()
}

// SaveExprRule stores an expression rule, upserting on (name, version).
func (r *SQLRepository) SaveExprRule(ctx context.Context, rule *domain.ExprRuleConfig) error {
	if rule.Name == "" {
		return fmt.Errorf("%w: rule name is required", ErrInvalidInput)
	}

	enabled := 0
	if rule.Enabled {
		enabled = 1
	}

	now := time.Now().UTC()

	query := `
		INSERT INTO expr_rules (
			name, description, version, expression, severity, message, enabled, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name, version) DO UPDATE SET
			description = excluded.description,
			expression = excluded.expression,
			severity = excluded.severity,
			message = excluded.message,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		rule.Name, rule.Description, rule.Version,
		rule.Expression, rule.Severity, rule.Message, enabled,
		now, now,
	)
	return err
}

// GetExprRule retrieves the latest enabled version of an expression rule.
func (r *SQLRepository) GetExprRule(ctx context.Context, name string) (*domain.ExprRuleConfig, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: rule name is required", ErrInvalidInput)
	}

	query := `
		SELECT name, description, version, expression, severity, message, enabled
		FROM expr_rules
		WHERE name = ? AND enabled = 1
		ORDER BY version DESC
		LIMIT 1
	`

	var cfg domain.ExprRuleConfig
	var enabled int

	err := r.db.QueryRowContext(ctx, r.rebind(query), name).Scan(
		&cfg.Name, &cfg.Description, &cfg.Version,
		&cfg.Expression, &cfg.Severity, &cfg.Message, &enabled,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	cfg.Enabled = enabled == 1
	return &cfg, nil
}

// ListExprRules retrieves all enabled expression rules.
func (r *SQLRepository) ListExprRules(ctx context.Context) ([]*domain.ExprRuleConfig, error) {
	query := `
		SELECT name, description, version, expression, severity, message, enabled
		FROM expr_rules
		WHERE enabled = 1
		ORDER BY name
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var configs []*domain.ExprRuleConfig
	for rows.Next() {
		var cfg domain.ExprRuleConfig
		var enabled int

		if err := rows.Scan(
			&cfg.Name, &cfg.Description, &cfg.Version,
			&cfg.Expression, &cfg.Severity, &cfg.Message, &enabled,
		); err != nil {
			return nil, err
		}

		cfg.Enabled = enabled == 1
		configs = append(configs, &cfg)
	}

	return configs, rows.Err()
}

// SaveRun stores a completed validation run.
func (r *SQLRepository) SaveRun(ctx context.Context, run *domain.Run) error {
	if run.ID == "" {
		return fmt.Errorf("%w: run ID is required", ErrInvalidInput)
	}

	findings, _ := json.Marshal(run.Findings)
	faults, _ := json.Marshal(run.Faults)
	metadata, _ := json.Marshal(run.Metadata)

	query := `
		INSERT INTO runs (id, timestamp, findings, faults, metadata)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		run.ID, run.Timestamp,
		string(findings), string(faults), string(metadata),
	)
	return err
}

// GetRun retrieves a validation run by ID.
func (r *SQLRepository) GetRun(ctx context.Context, runID string) (*domain.Run, error) {
	if runID == "" {
		return nil, fmt.Errorf("%w: run ID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, timestamp, findings, faults, metadata
		FROM runs
		WHERE id = ?
	`

	var run domain.Run
	var findings, faults, metadata string

	err := r.db.QueryRowContext(ctx, r.rebind(query), runID).Scan(
		&run.ID, &run.Timestamp, &findings, &faults, &metadata,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(findings), &run.Findings); err != nil {
		return nil, fmt.Errorf("failed to parse run findings: %w", err)
	}
	if faults != "" {
		json.Unmarshal([]byte(faults), &run.Faults)
	}
	json.Unmarshal([]byte(metadata), &run.Metadata)

	return &run, nil
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
