package alerts

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/adilet/payment-risk-engine/internal/interfaces"
	"github.com/adilet/payment-risk-engine/internal/models"
)

// Generator creates alerts for non-pass verdicts, exactly once per verdict.
// The database unique constraint on verdict_id is the hard guarantee; the
// redis dedup key is a fast path that also covers the retry window.
type Generator struct {
	repo        interfaces.AlertRepository
	redisClient *redis.Client
	dedupWindow time.Duration
	logger      *zap.Logger
}

func NewGenerator(repo interfaces.AlertRepository, redisClient *redis.Client, dedupWindow time.Duration, logger *zap.Logger) *Generator {
	return &Generator{
		repo:        repo,
		redisClient: redisClient,
		dedupWindow: dedupWindow,
		logger:      logger,
	}
}

// CreateIfNeeded is a no-op for pass verdicts. For suspicious/fail it
// returns the alert and whether this call created it.
func (g *Generator) CreateIfNeeded(ctx context.Context, v *models.Verdict) (*models.Alert, bool, error) {
	if v.Category == models.VerdictPass {
		return nil, false, nil
	}

	dedupKey := fmt.Sprintf("%s:%s", v.IdempotencyKey, v.VerdictID)

	if g.redisClient != nil {
		set, err := g.redisClient.SetNX(ctx, "alert_dedup:"+dedupKey, "1", g.dedupWindow).Result()
		if err != nil {
			g.logger.Warn("alert dedup check unavailable, relying on unique constraint", zap.Error(err))
		} else if !set {
			existing, err := g.repo.GetByVerdictID(ctx, v.VerdictID)
			if err == nil {
				return existing, false, nil
			}
			// Dedup key set but no row yet: a concurrent creator lost its
			// write or is still in flight. Fall through to the upsert.
		}
	}

	now := time.Now().UTC()
	alert := &models.Alert{
		AlertID:            uuid.NewString(),
		VerdictID:          v.VerdictID,
		PaymentID:          v.PaymentID,
		DedupKey:           dedupKey,
		Priority:           PriorityFor(v.RiskScore),
		Status:             models.AlertPending,
		AssignedTeam:       v.AssignedTeam,
		InvestigationSteps: investigationSteps(v),
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	stored, created, err := g.repo.Insert(ctx, alert)
	if err != nil {
		return nil, false, fmt.Errorf("failed to persist alert: %w", err)
	}

	if created {
		g.logger.Info("alert created",
			zap.String("alert_id", stored.AlertID),
			zap.String("verdict_id", v.VerdictID),
			zap.String("priority", string(stored.Priority)),
		)
	}
	return stored, created, nil
}

// PriorityFor grades by risk score: <50 low, <70 medium, <80 high,
// else critical.
func PriorityFor(score float64) models.AlertPriority {
	switch {
	case score < 50:
		return models.PriorityLow
	case score < 70:
		return models.PriorityMedium
	case score < 80:
		return models.PriorityHigh
	default:
		return models.PriorityCritical
	}
}

// investigationSteps templates the checklist from the assigned team and the
// evidence types present on the verdict.
func investigationSteps(v *models.Verdict) []string {
	steps := []string{
		fmt.Sprintf("Review payment %s and its decision trail (trace %s).", v.PaymentID, v.TraceID),
	}

	switch v.AssignedTeam {
	case models.TeamLegal:
		steps = append(steps,
			"Confirm sanctions/prohibited-jurisdiction screening results against current lists.",
			"Determine regulatory filing obligations and deadlines.",
		)
	case models.TeamFrontOffice:
		steps = append(steps,
			"Contact the relationship manager to correct or confirm payment data.",
		)
	default:
		steps = append(steps,
			"Request supporting documentation for source and purpose of funds.",
		)
	}

	for i := range v.TriggeredRules {
		steps = append(steps, fmt.Sprintf("Verify rule %s evidence: %s.",
			v.TriggeredRules[i].RuleID, v.TriggeredRules[i].Description))
	}
	for i := range v.DetectedPatterns {
		steps = append(steps, fmt.Sprintf("Examine the %d transactions behind the %s pattern.",
			len(v.DetectedPatterns[i].Evidence), v.DetectedPatterns[i].PatternType))
	}

	if v.Category == models.VerdictFail {
		steps = append(steps, "Hold the payment until investigation concludes.")
	}

	return steps
}
