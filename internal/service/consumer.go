package service

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/adilet/payment-risk-engine/internal/models"
	"github.com/adilet/payment-risk-engine/internal/telemetry"
)

// ConsumeDecisionRequests reads screening requests off kafka and runs each
// through the pipeline. Malformed or invalid messages are logged and
// skipped; the loop only stops when ctx is cancelled.
func (p *Pipeline) ConsumeDecisionRequests(ctx context.Context, kafkaBrokers string) {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  []string{kafkaBrokers},
		Topic:    "payment.screening.requested",
		GroupID:  "risk-decision-engine",
		MinBytes: 10e3,
		MaxBytes: 10e6,
	})
	defer reader.Close()

	telemetry.Logger.Info("started consuming payment.screening.requested")

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			telemetry.Logger.Error("error reading message from kafka", zap.Error(err))
			continue
		}

		var req models.DecisionRequest
		if err := json.Unmarshal(msg.Value, &req); err != nil {
			telemetry.Logger.Error("error unmarshaling decision request", zap.Error(err))
			continue
		}

		v, err := p.Decide(ctx, &req)
		if err != nil {
			var validation *models.ValidationError
			if errors.As(err, &validation) {
				telemetry.Logger.Warn("rejected invalid payment from stream",
					zap.String("payment_id", req.Payment.PaymentID),
					zap.String("field", validation.Field),
					zap.String("reason", validation.Reason),
				)
				continue
			}
			telemetry.Logger.Error("decision failed",
				zap.String("payment_id", req.Payment.PaymentID),
				zap.Error(err),
			)
			continue
		}

		telemetry.Logger.Info("streamed decision completed",
			zap.String("payment_id", req.Payment.PaymentID),
			zap.String("verdict", string(v.Category)),
		)
	}
}
