package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/adilet/payment-risk-engine/internal/catalogue"
	"github.com/adilet/payment-risk-engine/internal/config"
	"github.com/adilet/payment-risk-engine/internal/interfaces"
	"github.com/adilet/payment-risk-engine/internal/metrics"
	"github.com/adilet/payment-risk-engine/internal/models"
	"github.com/adilet/payment-risk-engine/internal/telemetry"
	"github.com/adilet/payment-risk-engine/internal/verdict"
)

// The pipeline depends on behaviors, not concrete components, so tests can
// substitute any stage.
type (
	RuleEvaluator interface {
		Evaluate(payment *models.PaymentTransaction, activeRules []models.ComplianceRule) []models.TriggeredRule
	}
	PatternDetector interface {
		Detect(payment *models.PaymentTransaction, history []models.HistoricalTransaction) []models.DetectedPattern
	}
	AlertCreator interface {
		CreateIfNeeded(ctx context.Context, v *models.Verdict) (*models.Alert, bool, error)
	}
	AuditAppender interface {
		Append(ctx context.Context, traceID, paymentID string, eventType models.AuditEventType, detail any, warning string, degraded bool) error
	}
	NarrativeEnricher interface {
		Enrich(v *models.Verdict) (string, error)
	}
	CatalogueSource interface {
		Snapshot() (*catalogue.Snapshot, error)
	}
)

// Deps bundles the pipeline's collaborators. RedisClient, KafkaWriter and
// Enricher may be nil; the pipeline degrades without them.
type Deps struct {
	Catalogue   CatalogueSource
	Evaluator   RuleEvaluator
	Detector    PatternDetector
	Calculator  *verdict.Calculator
	Alerts      AlertCreator
	Audit       AuditAppender
	Enricher    NarrativeEnricher
	Verdicts    interfaces.VerdictRepository
	AlertLookup interfaces.AlertRepository
	RedisClient *redis.Client
	KafkaWriter *kafka.Writer
	Metrics     *metrics.Collector
	Logger      *zap.Logger
}

// Pipeline drives one payment through the decision state machine:
// Ingested -> (RulesChecked || PatternsDetected) -> VerdictAssigned ->
// {AlertCreated | Completed}. Rule evaluation and pattern detection fan out
// concurrently over the same frozen inputs and join at the calculator; a
// branch that misses its timeout contributes empty evidence instead of
// blocking the verdict.
type Pipeline struct {
	cfg  config.EngineConfig
	deps Deps
}

func NewPipeline(cfg config.EngineConfig, deps Deps) *Pipeline {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.BranchTimeout <= 0 {
		cfg.BranchTimeout = 2 * time.Second
	}
	if cfg.PipelineTimeout <= 0 {
		cfg.PipelineTimeout = 10 * time.Second
	}
	return &Pipeline{cfg: cfg, deps: deps}
}

var errInFlight = errors.New("payment decision already in flight")

// patternDrainGrace bounds how long the fan-in waits for the pattern branch
// after the shared branch deadline has already fired.
const patternDrainGrace = 10 * time.Millisecond

// Decide produces the verdict for one payment. Resubmitting the same
// payload returns the previously computed verdict and alert unchanged.
// Only a ValidationError rejects; every infrastructure failure degrades.
func (p *Pipeline) Decide(ctx context.Context, req *models.DecisionRequest) (*models.Verdict, error) {
	if err := req.Payment.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, p.cfg.PipelineTimeout)
	defer cancel()

	if telemetry.Tracer != nil {
		var span trace.Span
		ctx, span = telemetry.Tracer.Start(ctx, "decision")
		defer span.End()
	}

	idemKey := models.IdempotencyKey(&req.Payment)

	if prior := p.lookupPrior(ctx, idemKey); prior != nil {
		p.deps.Metrics.RecordDuplicate()
		return prior, nil
	}

	start := time.Now()

	// The attempt budget is the mandatory escape hatch: the pipeline
	// terminates after MaxAttempts even under repeated transient failures.
	var result *models.Verdict
	run := func() error {
		v, err := p.runOnce(ctx, req, idemKey)
		if err != nil {
			p.deps.Logger.Warn("decision attempt failed",
				zap.String("payment_id", req.Payment.PaymentID),
				zap.Error(err),
			)
			return err
		}
		result = v
		return nil
	}
	bo := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(p.cfg.MaxAttempts-1)),
		ctx,
	)
	if err := backoff.Retry(run, bo); err != nil {
		return nil, fmt.Errorf("decision for payment %s did not complete within %d attempts: %w",
			req.Payment.PaymentID, p.cfg.MaxAttempts, err)
	}

	p.deps.Metrics.RecordDecision(string(result.Category), result.RiskScore, time.Since(start), result.Degraded)
	return result, nil
}

func (p *Pipeline) lookupPrior(ctx context.Context, idemKey string) *models.Verdict {
	if p.deps.RedisClient != nil {
		if verdictID, err := p.deps.RedisClient.Get(ctx, "verdict_dedup:"+idemKey).Result(); err == nil {
			if v, err := p.deps.Verdicts.GetByID(ctx, verdictID); err == nil {
				p.attachAlert(ctx, v)
				return v
			}
		}
	}
	if v, err := p.deps.Verdicts.GetByIdempotencyKey(ctx, idemKey); err == nil {
		p.attachAlert(ctx, v)
		return v
	}
	return nil
}

func (p *Pipeline) runOnce(ctx context.Context, req *models.DecisionRequest, idemKey string) (*models.Verdict, error) {
	payment := &req.Payment
	traceID := traceIDFrom(ctx)

	if p.deps.RedisClient != nil {
		lockKey := "decision_lock:" + idemKey
		locked, err := p.deps.RedisClient.SetNX(ctx, lockKey, "1", 30*time.Second).Result()
		if err == nil && !locked {
			if prior := p.lookupPrior(ctx, idemKey); prior != nil {
				return prior, nil
			}
			return nil, errInFlight
		}
		if err == nil {
			defer p.deps.RedisClient.Del(context.WithoutCancel(ctx), lockKey)
		}
	}

	p.audit(ctx, traceID, payment.PaymentID, models.AuditIngested, map[string]any{
		"amount":   payment.Amount,
		"currency": payment.Currency,
		"history":  len(req.HistoricalTransactions),
	}, "", false)

	activeRules, catalogueWarning := p.activeRules(req)

	// Fan-out: both branches read the same frozen payment and history and
	// share no mutable state. The selects below form the fan-in barrier.
	rulesCh := make(chan []models.TriggeredRule, 1)
	patternsCh := make(chan []models.DetectedPattern, 1)

	go func() { rulesCh <- p.deps.Evaluator.Evaluate(payment, activeRules) }()
	go func() { patternsCh <- p.deps.Detector.Detect(payment, req.HistoricalTransactions) }()

	branchCtx, cancelBranches := context.WithTimeout(ctx, p.cfg.BranchTimeout)
	defer cancelBranches()

	var triggered []models.TriggeredRule
	var detected []models.DetectedPattern
	degraded := false

	select {
	case triggered = <-rulesCh:
	case <-branchCtx.Done():
		degraded = true
		p.deps.Metrics.RecordBranchTimeout("rules")
	}
	p.audit(ctx, traceID, payment.PaymentID, models.AuditRulesChecked, triggered, catalogueWarning, degraded)

	patternsTimedOut := false
	select {
	case detected = <-patternsCh:
	case <-branchCtx.Done():
		// The rules branch may have consumed the whole budget; an
		// almost-finished detector gets a short drain grace before the
		// decision degrades to rule evidence only.
		drain := time.NewTimer(patternDrainGrace)
		select {
		case detected = <-patternsCh:
			drain.Stop()
		case <-drain.C:
			patternsTimedOut = true
			degraded = true
			p.deps.Metrics.RecordBranchTimeout("patterns")
		}
	}
	var patternWarning string
	if patternsTimedOut {
		patternWarning = "pattern detection timed out; verdict uses rule evidence only"
	}
	p.audit(ctx, traceID, payment.PaymentID, models.AuditPatternsDetected, detected, patternWarning, degraded)

	calc := p.deps.Calculator.Calculate(triggered, detected)

	v := &models.Verdict{
		VerdictID:        uuid.NewString(),
		PaymentID:        payment.PaymentID,
		TraceID:          traceID,
		IdempotencyKey:   idemKey,
		Category:         calc.Category,
		RiskScore:        calc.RiskScore,
		AssignedTeam:     calc.AssignedTeam,
		Justification:    calc.Justification,
		TriggeredRules:   triggered,
		DetectedPatterns: detected,
		Degraded:         degraded,
		CreatedAt:        time.Now().UTC(),
	}

	// Category and score are final here. Enrichment can only improve prose.
	if p.deps.Enricher != nil {
		if narrative, err := p.deps.Enricher.Enrich(v); err == nil {
			v.Justification = narrative
		}
	}

	stored, created, err := p.deps.Verdicts.Insert(ctx, v)
	if err != nil {
		return nil, fmt.Errorf("failed to persist verdict: %w", err)
	}
	if !created {
		// A concurrent submission won the insert; adopt its decision.
		p.deps.Metrics.RecordDuplicate()
		p.attachAlert(ctx, stored)
		return stored, nil
	}

	p.audit(ctx, traceID, payment.PaymentID, models.AuditVerdictAssigned, map[string]any{
		"verdict_id": v.VerdictID,
		"verdict":    v.Category,
		"risk_score": v.RiskScore,
		"team":       v.AssignedTeam,
	}, "", degraded)

	if alert, alertCreated, err := p.deps.Alerts.CreateIfNeeded(ctx, v); err != nil {
		return nil, err
	} else if alert != nil {
		v.AlertID = &alert.AlertID
		if alertCreated {
			p.deps.Metrics.RecordAlert(string(alert.Priority))
			p.audit(ctx, traceID, payment.PaymentID, models.AuditAlertCreated, map[string]any{
				"alert_id": alert.AlertID,
				"priority": alert.Priority,
			}, "", false)
		}
	}

	if p.deps.RedisClient != nil {
		p.deps.RedisClient.Set(ctx, "verdict_dedup:"+idemKey, v.VerdictID, p.cfg.DedupWindow)
	}

	p.publishVerdict(ctx, v)
	p.audit(ctx, traceID, payment.PaymentID, models.AuditCompleted, nil, "", degraded)

	p.deps.Logger.Info("decision completed",
		zap.String("payment_id", payment.PaymentID),
		zap.String("verdict_id", v.VerdictID),
		zap.String("verdict", string(v.Category)),
		zap.Float64("risk_score", v.RiskScore),
		zap.String("team", string(v.AssignedTeam)),
		zap.Bool("degraded", v.Degraded),
	)
	return v, nil
}

// activeRules prefers a caller-supplied rule set, then the catalogue
// snapshot scoped to the originator's jurisdiction at the transaction date.
// A missing snapshot degrades to a pattern-only decision.
func (p *Pipeline) activeRules(req *models.DecisionRequest) ([]models.ComplianceRule, string) {
	if len(req.ActiveRules) > 0 {
		return req.ActiveRules, ""
	}
	snap, err := p.deps.Catalogue.Snapshot()
	if err != nil {
		return nil, "rule catalogue unavailable; decision made on pattern evidence only"
	}
	return snap.ActiveRules(req.Payment.OriginatorCountry, req.Payment.TransactionDate), ""
}

// audit failures are logged, never fatal: losing one mirror write must not
// block payment flow, and the attempt-level retry already covers storage
// blips on the critical entries.
func (p *Pipeline) audit(ctx context.Context, traceID, paymentID string, event models.AuditEventType, detail any, warning string, degraded bool) {
	if err := p.deps.Audit.Append(ctx, traceID, paymentID, event, detail, warning, degraded); err != nil {
		p.deps.Logger.Error("audit append failed",
			zap.String("trace_id", traceID),
			zap.String("event", string(event)),
			zap.Error(err),
		)
	}
}

func (p *Pipeline) attachAlert(ctx context.Context, v *models.Verdict) {
	if v.Category == models.VerdictPass || v.AlertID != nil || p.deps.AlertLookup == nil {
		return
	}
	if alert, err := p.deps.AlertLookup.GetByVerdictID(ctx, v.VerdictID); err == nil {
		v.AlertID = &alert.AlertID
	}
}

func (p *Pipeline) publishVerdict(ctx context.Context, v *models.Verdict) {
	if p.deps.KafkaWriter == nil {
		return
	}
	payload, _ := json.Marshal(v)
	if err := p.deps.KafkaWriter.WriteMessages(ctx, kafka.Message{
		Key:   []byte(v.PaymentID),
		Value: payload,
	}); err != nil {
		p.deps.Logger.Warn("verdict event publish failed",
			zap.String("verdict_id", v.VerdictID),
			zap.Error(err),
		)
	}
}

func traceIDFrom(ctx context.Context) string {
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		return sc.TraceID().String()
	}
	return uuid.NewString()
}
