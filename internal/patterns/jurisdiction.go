package patterns

import (
	"fmt"

	"github.com/adilet/payment-risk-engine/internal/models"
)

// detectJurisdictional measures how concentrated the party's flow is in
// high-risk countries, over the history plus the current payment.
func (d *Detector) detectJurisdictional(payment *models.PaymentTransaction, history []models.HistoricalTransaction) *models.DetectedPattern {
	risky := 0
	evidence := []string{}

	for i := range history {
		tx := &history[i]
		if d.isHighRisk(tx.OriginatorCountry) || d.isHighRisk(tx.BeneficiaryCountry) {
			risky++
			evidence = append(evidence, tx.TransactionID)
		}
	}
	if d.isHighRisk(payment.OriginatorCountry) || d.isHighRisk(payment.BeneficiaryCountry) {
		risky++
		evidence = append(evidence, payment.PaymentID)
	}

	if risky == 0 {
		return nil
	}

	total := len(history) + 1
	fraction := float64(risky) / float64(total)

	byFraction := fraction >= d.cfg.ConcentrationFraction
	byCount := risky >= d.cfg.ConcentrationCount
	if !byFraction && !byCount {
		return nil
	}

	// Confidence tracks the concentration itself; an absolute-count trigger
	// over a long history keeps a floor so it still scores.
	confidence := clamp01(fraction)
	if byCount && confidence < 0.5 {
		confidence = 0.5
	}

	return &models.DetectedPattern{
		PatternType:    models.PatternJurisdictional,
		Confidence:     confidence,
		RiskMultiplier: d.multiplier(models.PatternJurisdictional),
		Description: fmt.Sprintf("%d of %d transactions touch high-risk jurisdictions (%.0f%%)",
			risky, total, fraction*100),
		Evidence: evidence,
	}
}

func (d *Detector) isHighRisk(country string) bool {
	_, ok := d.highRisk[country]
	return ok
}
