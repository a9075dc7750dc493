package repository

// Schema definitions for the Kestrel database.
// Compatible with both SQLite and PostgreSQL.

const schemaReferenceRecords = `
CREATE TABLE IF NOT EXISTS reference_records (
    source TEXT NOT NULL,
    code TEXT NOT NULL,
    sub_code TEXT NOT NULL DEFAULT '',
    effective_from TIMESTAMP NOT NULL,
    effective_to TIMESTAMP,
    payload TEXT,
    loaded_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_reference_records_source ON reference_records(source);
CREATE INDEX IF NOT EXISTS idx_reference_records_code ON reference_records(source, code);
`

const schemaExprRules = `
CREATE TABLE IF NOT EXISTS expr_rules (
    name TEXT NOT NULL,
    description TEXT,
    version TEXT NOT NULL,
    expression TEXT NOT NULL,
    severity TEXT NOT NULL DEFAULT 'E',
    message TEXT,
    enabled INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (name, version)
);

CREATE INDEX IF NOT EXISTS idx_expr_rules_enabled ON expr_rules(enabled);
`

const schemaRuns = `
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    timestamp TIMESTAMP NOT NULL,
    findings TEXT NOT NULL,
    faults TEXT,
    metadata TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_timestamp ON runs(timestamp);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaReferenceRecords,
		schemaExprRules,
		schemaRuns,
	}
}
