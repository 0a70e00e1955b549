package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/adilet/payment-risk-engine/internal/models"
)

type VerdictRepository struct {
	db *sql.DB
}

func NewVerdictRepository(db *sql.DB) *VerdictRepository {
	return &VerdictRepository{db: db}
}

// Insert stores a verdict keyed by its idempotency key. On a duplicate key
// the previously stored verdict is returned unchanged, so concurrent
// submissions of the same payment converge on one decision.
func (r *VerdictRepository) Insert(ctx context.Context, v *models.Verdict) (*models.Verdict, bool, error) {
	rulesJSON, err := json.Marshal(v.TriggeredRules)
	if err != nil {
		return nil, false, err
	}
	patternsJSON, err := json.Marshal(v.DetectedPatterns)
	if err != nil {
		return nil, false, err
	}

	result, err := r.db.ExecContext(ctx, `
		INSERT INTO verdicts (verdict_id, payment_id, trace_id, idempotency_key,
			category, risk_score, assigned_team, justification,
			triggered_rules, detected_patterns, degraded, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (idempotency_key) DO NOTHING
	`, v.VerdictID, v.PaymentID, v.TraceID, v.IdempotencyKey,
		v.Category, v.RiskScore, v.AssignedTeam, v.Justification,
		rulesJSON, patternsJSON, v.Degraded, v.CreatedAt)
	if err != nil {
		return nil, false, err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, false, err
	}
	if rows == 1 {
		return v, true, nil
	}

	stored, err := r.GetByIdempotencyKey(ctx, v.IdempotencyKey)
	if err != nil {
		return nil, false, err
	}
	return stored, false, nil
}

func (r *VerdictRepository) GetByID(ctx context.Context, verdictID string) (*models.Verdict, error) {
	return r.scanOne(r.db.QueryRowContext(ctx, selectVerdict+` WHERE verdict_id = $1`, verdictID))
}

func (r *VerdictRepository) GetByIdempotencyKey(ctx context.Context, key string) (*models.Verdict, error) {
	return r.scanOne(r.db.QueryRowContext(ctx, selectVerdict+` WHERE idempotency_key = $1`, key))
}

const selectVerdict = `
	SELECT verdict_id, payment_id, trace_id, idempotency_key, category, risk_score,
	       assigned_team, justification, triggered_rules, detected_patterns, degraded, created_at
	FROM verdicts`

func (r *VerdictRepository) scanOne(row *sql.Row) (*models.Verdict, error) {
	var v models.Verdict
	var rulesJSON, patternsJSON []byte
	err := row.Scan(&v.VerdictID, &v.PaymentID, &v.TraceID, &v.IdempotencyKey,
		&v.Category, &v.RiskScore, &v.AssignedTeam, &v.Justification,
		&rulesJSON, &patternsJSON, &v.Degraded, &v.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrVerdictNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(rulesJSON, &v.TriggeredRules); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(patternsJSON, &v.DetectedPatterns); err != nil {
		return nil, err
	}
	return &v, nil
}
