package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/adilet/payment-risk-engine/internal/models"
)

type AlertRepository struct {
	db *sql.DB
}

func NewAlertRepository(db *sql.DB) *AlertRepository {
	return &AlertRepository{db: db}
}

// Insert creates at most one alert per verdict. A duplicate insert returns
// the alert that won the race.
func (r *AlertRepository) Insert(ctx context.Context, a *models.Alert) (*models.Alert, bool, error) {
	stepsJSON, err := json.Marshal(a.InvestigationSteps)
	if err != nil {
		return nil, false, err
	}

	result, err := r.db.ExecContext(ctx, `
		INSERT INTO alerts (alert_id, verdict_id, payment_id, dedup_key,
			priority, status, assigned_team, investigation_steps, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (verdict_id) DO NOTHING
	`, a.AlertID, a.VerdictID, a.PaymentID, a.DedupKey,
		a.Priority, a.Status, a.AssignedTeam, stepsJSON, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return nil, false, err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, false, err
	}
	if rows == 1 {
		return a, true, nil
	}

	stored, err := r.GetByVerdictID(ctx, a.VerdictID)
	if err != nil {
		return nil, false, err
	}
	return stored, false, nil
}

func (r *AlertRepository) GetByID(ctx context.Context, alertID string) (*models.Alert, error) {
	return r.scanOne(r.db.QueryRowContext(ctx, selectAlert+` WHERE alert_id = $1`, alertID))
}

func (r *AlertRepository) GetByVerdictID(ctx context.Context, verdictID string) (*models.Alert, error) {
	return r.scanOne(r.db.QueryRowContext(ctx, selectAlert+` WHERE verdict_id = $1`, verdictID))
}

// TransitionStatus moves an alert one step through its workflow. The WHERE
// clause on the current status makes the transition conditional, so a stale
// or repeated request affects zero rows instead of rewinding state.
func (r *AlertRepository) TransitionStatus(ctx context.Context, alertID string, from, to models.AlertStatus) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE alerts SET status = $1, updated_at = NOW()
		WHERE alert_id = $2 AND status = $3
	`, to, alertID, from)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const selectAlert = `
	SELECT alert_id, verdict_id, payment_id, dedup_key, priority, status,
	       assigned_team, investigation_steps, created_at, updated_at
	FROM alerts`

func (r *AlertRepository) scanOne(row *sql.Row) (*models.Alert, error) {
	var a models.Alert
	var stepsJSON []byte
	err := row.Scan(&a.AlertID, &a.VerdictID, &a.PaymentID, &a.DedupKey,
		&a.Priority, &a.Status, &a.AssignedTeam, &stepsJSON, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrAlertNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(stepsJSON, &a.InvestigationSteps); err != nil {
		return nil, err
	}
	return &a, nil
}
