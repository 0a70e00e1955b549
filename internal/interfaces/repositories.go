package interfaces

import (
	"context"

	"github.com/adilet/payment-risk-engine/internal/models"
)

// RuleRepository supplies the catalogue with the currently stored rule set.
type RuleRepository interface {
	LoadActive(ctx context.Context) ([]models.ComplianceRule, error)
}

// VerdictRepository persists decisions idempotently: inserting a verdict
// whose idempotency key already exists returns the stored verdict instead.
type VerdictRepository interface {
	Insert(ctx context.Context, v *models.Verdict) (stored *models.Verdict, created bool, err error)
	GetByID(ctx context.Context, verdictID string) (*models.Verdict, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*models.Verdict, error)
}

// AlertRepository persists alerts with at-most-one-per-verdict semantics.
type AlertRepository interface {
	Insert(ctx context.Context, a *models.Alert) (stored *models.Alert, created bool, err error)
	GetByID(ctx context.Context, alertID string) (*models.Alert, error)
	GetByVerdictID(ctx context.Context, verdictID string) (*models.Alert, error)
	TransitionStatus(ctx context.Context, alertID string, from, to models.AlertStatus) (int64, error)
}

// AuditRepository is append-only. It deliberately exposes no update or
// delete operation; immutability is also enforced by the schema.
type AuditRepository interface {
	Append(ctx context.Context, e *models.AuditLogEntry) error
	ListByTraceID(ctx context.Context, traceID string) ([]models.AuditLogEntry, error)
}
