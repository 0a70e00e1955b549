package narrative

import (
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/adilet/payment-risk-engine/internal/models"
)

const subject = "narrative.enrich"

// Enricher asks an external service to improve a verdict's prose. It runs
// after the categorical verdict and numeric score are final: whatever it
// returns can only replace the justification text, never the decision.
type Enricher struct {
	nc      *nats.Conn
	timeout time.Duration
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

func NewEnricher(nc *nats.Conn, timeout time.Duration, maxFailures uint32, cooldown time.Duration, logger *zap.Logger) *Enricher {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "narrative-enrichment",
		Timeout: cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("narrative breaker state change",
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	return &Enricher{nc: nc, timeout: timeout, breaker: breaker, logger: logger}
}

type enrichRequest struct {
	PaymentID        string                   `json:"payment_id"`
	Category         models.VerdictCategory   `json:"verdict"`
	RiskScore        float64                  `json:"risk_score"`
	Justification    string                   `json:"justification"`
	TriggeredRules   []models.TriggeredRule   `json:"triggered_rules"`
	DetectedPatterns []models.DetectedPattern `json:"detected_patterns"`
}

type enrichResponse struct {
	Narrative string `json:"narrative"`
}

// Enrich returns the improved narrative, or ErrEnrichmentUnavailable when
// the service is slow, failing, or short-circuited. Callers keep the
// templated justification in that case.
func (e *Enricher) Enrich(v *models.Verdict) (string, error) {
	if e.nc == nil {
		return "", models.ErrEnrichmentUnavailable
	}

	payload, err := json.Marshal(enrichRequest{
		PaymentID:        v.PaymentID,
		Category:         v.Category,
		RiskScore:        v.RiskScore,
		Justification:    v.Justification,
		TriggeredRules:   v.TriggeredRules,
		DetectedPatterns: v.DetectedPatterns,
	})
	if err != nil {
		return "", models.ErrEnrichmentUnavailable
	}

	result, err := e.breaker.Execute(func() (interface{}, error) {
		msg, err := e.nc.Request(subject, payload, e.timeout)
		if err != nil {
			return nil, err
		}
		var resp enrichResponse
		if err := json.Unmarshal(msg.Data, &resp); err != nil {
			return nil, err
		}
		return resp.Narrative, nil
	})
	if err != nil {
		e.logger.Warn("narrative enrichment skipped",
			zap.String("payment_id", v.PaymentID),
			zap.Error(err),
		)
		return "", models.ErrEnrichmentUnavailable
	}

	narrative, _ := result.(string)
	if narrative == "" {
		return "", models.ErrEnrichmentUnavailable
	}
	return narrative, nil
}
