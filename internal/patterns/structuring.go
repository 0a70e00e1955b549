package patterns

import (
	"fmt"

	"github.com/adilet/payment-risk-engine/internal/models"
)

// detectStructuring flags a set of individually sub-threshold transactions
// in the window immediately before the payment whose total, including the
// payment, reaches the reporting threshold.
func (d *Detector) detectStructuring(payment *models.PaymentTransaction, history []models.HistoricalTransaction) *models.DetectedPattern {
	threshold := d.cfg.ReportingThreshold
	if payment.Amount >= threshold {
		// A single reportable transaction is a threshold rule's business,
		// not splitting behavior.
		return nil
	}

	windowStart := payment.TransactionDate.Add(-d.cfg.StructuringWindow)

	total := payment.Amount
	evidence := []string{}
	for i := range history {
		tx := &history[i]
		if tx.TransactionDate.Before(windowStart) || tx.TransactionDate.After(payment.TransactionDate) {
			continue
		}
		if tx.Amount >= threshold {
			// Someone already crossing the threshold openly is not structuring.
			return nil
		}
		total += tx.Amount
		evidence = append(evidence, tx.TransactionID)
	}

	if len(evidence) == 0 || total < threshold {
		return nil
	}
	evidence = append(evidence, payment.PaymentID)

	return &models.DetectedPattern{
		PatternType:    models.PatternStructuring,
		Confidence:     d.cfg.StructuringConfidence,
		RiskMultiplier: d.multiplier(models.PatternStructuring),
		Description: fmt.Sprintf("%d sub-threshold transactions totaling %.2f against a %.2f reporting threshold",
			len(evidence), total, threshold),
		Evidence: evidence,
	}
}
