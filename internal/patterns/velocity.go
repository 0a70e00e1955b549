package patterns

import (
	"fmt"
	"math"
	"time"

	"github.com/adilet/payment-risk-engine/internal/models"
)

const week = 7 * 24 * time.Hour

// detectVelocity compares the current week's transaction count against the
// weekly baseline over the configured lookback, as a z-score.
func (d *Detector) detectVelocity(payment *models.PaymentTransaction, history []models.HistoricalTransaction) *models.DetectedPattern {
	weeks := int(d.cfg.VelocityBaseline / week)
	if weeks < 2 {
		return nil
	}

	// Bucket 0 is the week ending at the payment; buckets 1..weeks-1 form
	// the baseline.
	counts := make([]float64, weeks)
	evidence := []string{}
	baselineStart := payment.TransactionDate.Add(-time.Duration(weeks) * week)

	inWindow := 0
	for i := range history {
		tx := &history[i]
		if tx.TransactionDate.Before(baselineStart) || tx.TransactionDate.After(payment.TransactionDate) {
			continue
		}
		bucket := int(payment.TransactionDate.Sub(tx.TransactionDate) / week)
		if bucket >= weeks {
			bucket = weeks - 1
		}
		counts[bucket]++
		inWindow++
		if bucket == 0 {
			evidence = append(evidence, tx.TransactionID)
		}
	}

	// A customer with no observed history has no baseline to deviate from;
	// that is the expected new-customer case, not an anomaly.
	if inWindow == 0 {
		return nil
	}

	current := counts[0] + 1 // the payment itself
	baseline := counts[1:]

	var mean float64
	for _, c := range baseline {
		mean += c
	}
	mean /= float64(len(baseline))

	var variance float64
	for _, c := range baseline {
		variance += (c - mean) * (c - mean)
	}
	stddev := math.Sqrt(variance / float64(len(baseline)))

	var confidence float64
	if stddev == 0 {
		// A zero-variance baseline is perfectly regular traffic. The current
		// week must already exceed the mean before the payment is counted;
		// the payment alone pushing past it is the baseline repeating.
		if counts[0] <= mean {
			return nil
		}
		confidence = 1.0
	} else {
		z := (current - mean) / stddev
		if z <= d.cfg.VelocitySigma {
			return nil
		}
		confidence = math.Min(z/10, 1.0)
	}

	evidence = append(evidence, payment.PaymentID)

	return &models.DetectedPattern{
		PatternType:    models.PatternVelocity,
		Confidence:     confidence,
		RiskMultiplier: d.multiplier(models.PatternVelocity),
		Description: fmt.Sprintf("current week count %.0f against baseline mean %.2f (stddev %.2f)",
			current, mean, stddev),
		Evidence: evidence,
	}
}
