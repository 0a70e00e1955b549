package models

import "time"

type VerdictCategory string

const (
	VerdictPass       VerdictCategory = "pass"
	VerdictSuspicious VerdictCategory = "suspicious"
	VerdictFail       VerdictCategory = "fail"
)

type Team string

const (
	TeamFrontOffice Team = "front_office"
	TeamCompliance  Team = "compliance"
	TeamLegal       Team = "legal"
)

// Verdict is the decision output, created once per decision and immutable
// thereafter. RiskScore is a pure function of TriggeredRules and
// DetectedPatterns.
type Verdict struct {
	VerdictID        string            `json:"verdict_id"`
	PaymentID        string            `json:"payment_id"`
	TraceID          string            `json:"trace_id"`
	IdempotencyKey   string            `json:"-"`
	Category         VerdictCategory   `json:"verdict"`
	RiskScore        float64           `json:"risk_score"`
	AssignedTeam     Team              `json:"assigned_team"`
	Justification    string            `json:"justification"`
	TriggeredRules   []TriggeredRule   `json:"triggered_rules"`
	DetectedPatterns []DetectedPattern `json:"detected_patterns"`
	Degraded         bool              `json:"degraded,omitempty"`
	AlertID          *string           `json:"alert_id"`
	CreatedAt        time.Time         `json:"created_at"`
}

type AlertPriority string

const (
	PriorityLow      AlertPriority = "low"
	PriorityMedium   AlertPriority = "medium"
	PriorityHigh     AlertPriority = "high"
	PriorityCritical AlertPriority = "critical"
)

type AlertStatus string

const (
	AlertPending     AlertStatus = "pending"
	AlertUnderReview AlertStatus = "under_review"
	AlertResolved    AlertStatus = "resolved"
	AlertEscalated   AlertStatus = "escalated"
)

// CanTransitionTo enforces the one-way alert workflow:
// pending -> under_review -> {resolved | escalated}.
func (s AlertStatus) CanTransitionTo(next AlertStatus) bool {
	switch s {
	case AlertPending:
		return next == AlertUnderReview
	case AlertUnderReview:
		return next == AlertResolved || next == AlertEscalated
	}
	return false
}

// Alert is created for every non-pass verdict, exactly once per verdict.
type Alert struct {
	AlertID            string        `json:"alert_id"`
	VerdictID          string        `json:"verdict_id"`
	PaymentID          string        `json:"payment_id"`
	DedupKey           string        `json:"-"`
	Priority           AlertPriority `json:"priority"`
	Status             AlertStatus   `json:"status"`
	AssignedTeam       Team          `json:"assigned_team"`
	InvestigationSteps []string      `json:"investigation_steps"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
}
