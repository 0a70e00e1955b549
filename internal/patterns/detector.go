package patterns

import (
	"go.uber.org/zap"

	"github.com/adilet/payment-risk-engine/internal/config"
	"github.com/adilet/payment-risk-engine/internal/models"
)

// Detector runs the five behavioral detectors over a payment and its
// historical window. Each detector is stateless and emits at most one
// pattern per call; none of them suppresses the others. Overlap handling
// belongs to the verdict calculator.
type Detector struct {
	cfg    config.EngineConfig
	logger *zap.Logger

	highRisk map[string]struct{}
}

func NewDetector(cfg config.EngineConfig, logger *zap.Logger) *Detector {
	highRisk := make(map[string]struct{}, len(cfg.HighRiskCountries))
	for _, c := range cfg.HighRiskCountries {
		highRisk[c] = struct{}{}
	}
	return &Detector{cfg: cfg, logger: logger, highRisk: highRisk}
}

// Detect never fails: an empty or missing history is the expected state for
// a new customer, not an error, and simply yields fewer patterns.
func (d *Detector) Detect(payment *models.PaymentTransaction, history []models.HistoricalTransaction) []models.DetectedPattern {
	var detected []models.DetectedPattern

	checks := []func(*models.PaymentTransaction, []models.HistoricalTransaction) *models.DetectedPattern{
		d.detectStructuring,
		d.detectVelocity,
		d.detectJurisdictional,
		d.detectRoundTripping,
		d.detectLayering,
	}

	for _, check := range checks {
		if p := check(payment, history); p != nil {
			detected = append(detected, *p)
			d.logger.Info("pattern detected",
				zap.String("payment_id", payment.PaymentID),
				zap.String("pattern", string(p.PatternType)),
				zap.Float64("confidence", p.Confidence),
			)
		}
	}

	return detected
}

func (d *Detector) multiplier(t models.PatternType) float64 {
	return d.cfg.Multipliers[string(t)]
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
