package repository

import (
	"context"
	"database/sql"

	"github.com/adilet/payment-risk-engine/internal/models"
)

type RuleRepository struct {
	db *sql.DB
}

func NewRuleRepository(db *sql.DB) *RuleRepository {
	return &RuleRepository{db: db}
}

// LoadActive returns every active rule. Jurisdiction and effective-window
// filtering happens in the catalogue snapshot, per decision.
func (r *RuleRepository) LoadActive(ctx context.Context) ([]models.ComplianceRule, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT rule_id, rule_type, jurisdiction, COALESCE(description, ''),
		       condition, severity_weight, effective_from, effective_to, is_active, version
		FROM compliance_rules
		WHERE is_active = TRUE
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []models.ComplianceRule
	for rows.Next() {
		var rule models.ComplianceRule
		var ruleType string
		var effectiveTo sql.NullTime
		if err := rows.Scan(&rule.RuleID, &ruleType, &rule.Jurisdiction, &rule.Description,
			&rule.Condition, &rule.SeverityWeight, &rule.EffectiveFrom, &effectiveTo,
			&rule.IsActive, &rule.Version); err != nil {
			return nil, err
		}
		rule.RuleType = models.ParseRuleType(ruleType)
		if effectiveTo.Valid {
			t := effectiveTo.Time
			rule.EffectiveTo = &t
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}
