package models

import (
	"encoding/json"
	"time"
)

type RuleType string

const (
	RuleTypeThreshold              RuleType = "threshold"
	RuleTypeDeadline               RuleType = "deadline"
	RuleTypeEDDTrigger             RuleType = "edd_trigger"
	RuleTypeProhibitedJurisdiction RuleType = "prohibited_jurisdiction"
	RuleTypeSanctions              RuleType = "sanctions"
	RuleTypeRegulatoryThreshold    RuleType = "regulatory_threshold"
	RuleTypeDataQuality            RuleType = "data_quality"

	// RuleTypeUnknown absorbs rule types added to the catalogue before this
	// binary learned about them. Unknown rules still score but never route
	// above compliance.
	RuleTypeUnknown RuleType = "unknown"
)

// ParseRuleType maps free-form catalogue strings onto the closed enum.
func ParseRuleType(s string) RuleType {
	switch RuleType(s) {
	case RuleTypeThreshold, RuleTypeDeadline, RuleTypeEDDTrigger,
		RuleTypeProhibitedJurisdiction, RuleTypeSanctions,
		RuleTypeRegulatoryThreshold, RuleTypeDataQuality:
		return RuleType(s)
	}
	return RuleTypeUnknown
}

// ComplianceRule is a versioned catalogue entry. Owned by the catalogue;
// the engine only reads it.
type ComplianceRule struct {
	RuleID         string          `json:"rule_id"`
	RuleType       RuleType        `json:"rule_type"`
	Jurisdiction   string          `json:"jurisdiction"`
	Description    string          `json:"description"`
	Condition      json.RawMessage `json:"condition"`
	SeverityWeight float64         `json:"severity_weight"`
	EffectiveFrom  time.Time       `json:"effective_from"`
	EffectiveTo    *time.Time      `json:"effective_to,omitempty"`
	IsActive       bool            `json:"is_active"`
	Version        int             `json:"version"`
}

// InEffect reports whether the rule's effective window contains asOf.
func (r *ComplianceRule) InEffect(asOf time.Time) bool {
	if !r.IsActive {
		return false
	}
	if asOf.Before(r.EffectiveFrom) {
		return false
	}
	if r.EffectiveTo != nil && asOf.After(*r.EffectiveTo) {
		return false
	}
	return true
}

// TriggeredRule is per-decision evidence that one rule's condition matched.
// The severity weight is copied at evaluation time so the audit trail stays
// reproducible even after the catalogue changes.
type TriggeredRule struct {
	RuleID         string            `json:"rule_id"`
	RuleType       RuleType          `json:"rule_type"`
	SeverityWeight float64           `json:"severity_weight"`
	Description    string            `json:"description"`
	Evidence       map[string]string `json:"evidence"`
}
