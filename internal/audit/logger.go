package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/adilet/payment-risk-engine/internal/interfaces"
	"github.com/adilet/payment-risk-engine/internal/models"
)

// Logger appends one immutable audit row per pipeline event and mirrors the
// event onto the audit topic for downstream consumers. The Postgres row is
// the record of truth; the kafka publish is best-effort.
type Logger struct {
	repo   interfaces.AuditRepository
	writer *kafka.Writer
	logger *zap.Logger
}

func NewLogger(repo interfaces.AuditRepository, writer *kafka.Writer, logger *zap.Logger) *Logger {
	return &Logger{repo: repo, writer: writer, logger: logger}
}

// Append records the event. Detail must already be serializable; a marshal
// failure degrades to an entry without detail rather than losing the event.
func (l *Logger) Append(ctx context.Context, traceID, paymentID string, eventType models.AuditEventType, detail any, warning string, degraded bool) error {
	entry := &models.AuditLogEntry{
		EntryID:    uuid.NewString(),
		TraceID:    traceID,
		PaymentID:  paymentID,
		EventType:  eventType,
		Warning:    warning,
		Degraded:   degraded,
		RecordedAt: time.Now().UTC(),
	}

	if detail != nil {
		raw, err := json.Marshal(detail)
		if err != nil {
			l.logger.Error("audit detail not serializable, recording event without it",
				zap.String("trace_id", traceID),
				zap.String("event", string(eventType)),
				zap.Error(err),
			)
		} else {
			entry.Detail = raw
		}
	}

	if err := l.repo.Append(ctx, entry); err != nil {
		return err
	}

	if l.writer != nil {
		payload, _ := json.Marshal(entry)
		if err := l.writer.WriteMessages(ctx, kafka.Message{
			Key:   []byte(traceID),
			Value: payload,
		}); err != nil {
			l.logger.Warn("audit event publish failed",
				zap.String("trace_id", traceID),
				zap.Error(err),
			)
		}
	}

	return nil
}
