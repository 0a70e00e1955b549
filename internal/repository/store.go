package repository

import "database/sql"

// InitDB creates the engine's schema. The audit table gets a rule blocking
// UPDATE and DELETE so append-only holds at the storage layer, not just in
// application code.
func InitDB(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS compliance_rules (
			rule_id VARCHAR(64) PRIMARY KEY,
			rule_type VARCHAR(50) NOT NULL,
			jurisdiction VARCHAR(10) NOT NULL,
			description TEXT,
			condition JSONB NOT NULL,
			severity_weight DOUBLE PRECISION NOT NULL,
			effective_from TIMESTAMP NOT NULL,
			effective_to TIMESTAMP,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			version INT NOT NULL DEFAULT 1
		)`,
		`CREATE INDEX IF NOT EXISTS idx_rules_jurisdiction ON compliance_rules(jurisdiction)`,
		`CREATE TABLE IF NOT EXISTS verdicts (
			verdict_id VARCHAR(64) PRIMARY KEY,
			payment_id VARCHAR(255) NOT NULL,
			trace_id VARCHAR(64) NOT NULL,
			idempotency_key VARCHAR(64) NOT NULL UNIQUE,
			category VARCHAR(20) NOT NULL,
			risk_score DOUBLE PRECISION NOT NULL,
			assigned_team VARCHAR(20) NOT NULL,
			justification TEXT NOT NULL,
			triggered_rules JSONB NOT NULL,
			detected_patterns JSONB NOT NULL,
			degraded BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_verdicts_payment ON verdicts(payment_id)`,
		`CREATE TABLE IF NOT EXISTS alerts (
			alert_id VARCHAR(64) PRIMARY KEY,
			verdict_id VARCHAR(64) NOT NULL UNIQUE,
			payment_id VARCHAR(255) NOT NULL,
			dedup_key VARCHAR(64) NOT NULL,
			priority VARCHAR(20) NOT NULL,
			status VARCHAR(20) NOT NULL,
			assigned_team VARCHAR(20) NOT NULL,
			investigation_steps JSONB NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS audit_log (
			entry_id VARCHAR(64) PRIMARY KEY,
			trace_id VARCHAR(64) NOT NULL,
			payment_id VARCHAR(255) NOT NULL,
			event_type VARCHAR(40) NOT NULL,
			detail JSONB,
			warning TEXT,
			degraded BOOLEAN NOT NULL DEFAULT FALSE,
			recorded_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_trace ON audit_log(trace_id)`,
		`CREATE OR REPLACE RULE audit_log_no_update AS ON UPDATE TO audit_log DO INSTEAD NOTHING`,
		`CREATE OR REPLACE RULE audit_log_no_delete AS ON DELETE TO audit_log DO INSTEAD NOTHING`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return err
		}
	}

	return nil
}
