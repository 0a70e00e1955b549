package models

import (
	"encoding/json"
	"time"
)

type AuditEventType string

const (
	AuditIngested         AuditEventType = "ingested"
	AuditRulesChecked     AuditEventType = "rules_checked"
	AuditPatternsDetected AuditEventType = "patterns_detected"
	AuditVerdictAssigned  AuditEventType = "verdict_assigned"
	AuditAlertCreated     AuditEventType = "alert_created"
	AuditCompleted        AuditEventType = "completed"
)

// AuditLogEntry is one append-only row per pipeline event. Entries are
// never updated or deleted; the repository exposes no statement that could.
type AuditLogEntry struct {
	EntryID    string          `json:"entry_id"`
	TraceID    string          `json:"trace_id"`
	PaymentID  string          `json:"payment_id"`
	EventType  AuditEventType  `json:"event_type"`
	Detail     json.RawMessage `json:"detail,omitempty"`
	Warning    string          `json:"warning,omitempty"`
	Degraded   bool            `json:"degraded,omitempty"`
	RecordedAt time.Time       `json:"recorded_at"`
}
