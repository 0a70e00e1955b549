package repository

import (
	"context"
	"database/sql"

	"github.com/adilet/payment-risk-engine/internal/models"
)

// AuditRepository only ever inserts. The schema additionally rewrites
// UPDATE/DELETE on audit_log to no-ops, so immutability survives ad-hoc SQL.
type AuditRepository struct {
	db *sql.DB
}

func NewAuditRepository(db *sql.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) Append(ctx context.Context, e *models.AuditLogEntry) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO audit_log (entry_id, trace_id, payment_id, event_type, detail, warning, degraded, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, e.EntryID, e.TraceID, e.PaymentID, e.EventType, []byte(e.Detail), e.Warning, e.Degraded, e.RecordedAt)
	return err
}

func (r *AuditRepository) ListByTraceID(ctx context.Context, traceID string) ([]models.AuditLogEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT entry_id, trace_id, payment_id, event_type, COALESCE(detail, 'null'),
		       COALESCE(warning, ''), degraded, recorded_at
		FROM audit_log
		WHERE trace_id = $1
		ORDER BY recorded_at
	`, traceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.AuditLogEntry
	for rows.Next() {
		var e models.AuditLogEntry
		var detail []byte
		if err := rows.Scan(&e.EntryID, &e.TraceID, &e.PaymentID, &e.EventType,
			&detail, &e.Warning, &e.Degraded, &e.RecordedAt); err != nil {
			return nil, err
		}
		e.Detail = detail
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
