package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/adilet/payment-risk-engine/internal/alerts"
	"github.com/adilet/payment-risk-engine/internal/catalogue"
	"github.com/adilet/payment-risk-engine/internal/config"
	"github.com/adilet/payment-risk-engine/internal/metrics"
	"github.com/adilet/payment-risk-engine/internal/models"
	"github.com/adilet/payment-risk-engine/internal/patterns"
	"github.com/adilet/payment-risk-engine/internal/rules"
	"github.com/adilet/payment-risk-engine/internal/verdict"
)

// --- fakes -----------------------------------------------------------------

type fakeCatalogue struct {
	snap *catalogue.Snapshot
	err  error
}

func (c *fakeCatalogue) Snapshot() (*catalogue.Snapshot, error) {
	if c.err != nil {
		return nil, c.err
	}
	return c.snap, nil
}

type fakeVerdictRepo struct {
	mu    sync.Mutex
	byKey map[string]*models.Verdict
	byID  map[string]*models.Verdict
}

func newFakeVerdictRepo() *fakeVerdictRepo {
	return &fakeVerdictRepo{byKey: map[string]*models.Verdict{}, byID: map[string]*models.Verdict{}}
}

func (r *fakeVerdictRepo) Insert(_ context.Context, v *models.Verdict) (*models.Verdict, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.byKey[v.IdempotencyKey]; ok {
		return existing, false, nil
	}
	copied := *v
	r.byKey[v.IdempotencyKey] = &copied
	r.byID[v.VerdictID] = &copied
	return &copied, true, nil
}

func (r *fakeVerdictRepo) GetByID(_ context.Context, id string) (*models.Verdict, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok := r.byID[id]; ok {
		copied := *v
		return &copied, nil
	}
	return nil, models.ErrVerdictNotFound
}

func (r *fakeVerdictRepo) GetByIdempotencyKey(_ context.Context, key string) (*models.Verdict, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok := r.byKey[key]; ok {
		copied := *v
		return &copied, nil
	}
	return nil, models.ErrVerdictNotFound
}

type fakeAlertRepo struct {
	mu        sync.Mutex
	byVerdict map[string]*models.Alert
}

func newFakeAlertRepo() *fakeAlertRepo {
	return &fakeAlertRepo{byVerdict: map[string]*models.Alert{}}
}

func (r *fakeAlertRepo) Insert(_ context.Context, a *models.Alert) (*models.Alert, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.byVerdict[a.VerdictID]; ok {
		return existing, false, nil
	}
	copied := *a
	r.byVerdict[a.VerdictID] = &copied
	return &copied, true, nil
}

func (r *fakeAlertRepo) GetByID(_ context.Context, id string) (*models.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.byVerdict {
		if a.AlertID == id {
			return a, nil
		}
	}
	return nil, models.ErrAlertNotFound
}

func (r *fakeAlertRepo) GetByVerdictID(_ context.Context, verdictID string) (*models.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.byVerdict[verdictID]; ok {
		return a, nil
	}
	return nil, models.ErrAlertNotFound
}

func (r *fakeAlertRepo) TransitionStatus(_ context.Context, alertID string, from, to models.AlertStatus) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.byVerdict {
		if a.AlertID == alertID && a.Status == from {
			a.Status = to
			return 1, nil
		}
	}
	return 0, nil
}

type auditRecord struct {
	event    models.AuditEventType
	warning  string
	degraded bool
}

type fakeAudit struct {
	mu      sync.Mutex
	records []auditRecord
}

func (f *fakeAudit) Append(_ context.Context, _, _ string, event models.AuditEventType, _ any, warning string, degraded bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, auditRecord{event: event, warning: warning, degraded: degraded})
	return nil
}

func (f *fakeAudit) events() []models.AuditEventType {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.AuditEventType, len(f.records))
	for i, r := range f.records {
		out[i] = r.event
	}
	return out
}

type slowDetector struct {
	delay time.Duration
}

func (d *slowDetector) Detect(*models.PaymentTransaction, []models.HistoricalTransaction) []models.DetectedPattern {
	time.Sleep(d.delay)
	return []models.DetectedPattern{{PatternType: models.PatternVelocity, Confidence: 1, RiskMultiplier: 10}}
}

type slowEvaluator struct {
	delay time.Duration
}

func (e *slowEvaluator) Evaluate(*models.PaymentTransaction, []models.ComplianceRule) []models.TriggeredRule {
	time.Sleep(e.delay)
	return nil
}

type fakeEnricher struct {
	narrative string
	err       error
}

func (f *fakeEnricher) Enrich(*models.Verdict) (string, error) {
	return f.narrative, f.err
}

// --- harness ----------------------------------------------------------------

func engineConfig() config.EngineConfig {
	return config.EngineConfig{
		SuspiciousThreshold: 30,
		FailThreshold:       70,

		ReportingThreshold:    10000,
		StructuringWindow:     24 * time.Hour,
		StructuringConfidence: 0.9,
		VelocityBaseline:      90 * 24 * time.Hour,
		VelocitySigma:         5,
		HighRiskCountries:     []string{"IR", "KP"},
		ConcentrationFraction: 0.3,
		ConcentrationCount:    5,
		RoundTripMaxHops:      3,
		RoundTripWindow:       7 * 24 * time.Hour,
		RoundTripConfidence:   0.85,

		LayeringMinIntermediaries: 3,
		LayeringWindow:            7 * 24 * time.Hour,
		LayeringAmountTolerance:   0.1,

		Multipliers: map[string]float64{
			"structuring": 1.0, "velocity": 6, "jurisdictional": 5,
			"round_tripping": 9, "layering": 9,
		},

		BranchTimeout:   time.Second,
		PipelineTimeout: 5 * time.Second,
		MaxAttempts:     3,
		DedupWindow:     time.Hour,
	}
}

type harness struct {
	pipeline  *Pipeline
	verdicts  *fakeVerdictRepo
	alertRepo *fakeAlertRepo
	audit     *fakeAudit
}

func newHarness(t *testing.T, cat CatalogueSource, mutate func(*Deps)) *harness {
	t.Helper()
	cfg := engineConfig()
	logger := zap.NewNop()

	h := &harness{
		verdicts:  newFakeVerdictRepo(),
		alertRepo: newFakeAlertRepo(),
		audit:     &fakeAudit{},
	}

	deps := Deps{
		Catalogue:   cat,
		Evaluator:   rules.NewEvaluator(logger),
		Detector:    patterns.NewDetector(cfg, logger),
		Calculator:  verdict.NewCalculator(cfg.SuspiciousThreshold, cfg.FailThreshold),
		Alerts:      alerts.NewGenerator(h.alertRepo, nil, cfg.DedupWindow, logger),
		Audit:       h.audit,
		Verdicts:    h.verdicts,
		AlertLookup: h.alertRepo,
		Metrics:     metrics.NewCollector(),
		Logger:      logger,
	}
	if mutate != nil {
		mutate(&deps)
	}

	h.pipeline = NewPipeline(cfg, deps)
	return h
}

func emptyCatalogue() *fakeCatalogue {
	return &fakeCatalogue{snap: catalogue.NewSnapshot(nil, time.Now())}
}

func sanctionsCatalogue(weight float64) *fakeCatalogue {
	return &fakeCatalogue{snap: catalogue.NewSnapshot([]models.ComplianceRule{{
		RuleID:         "sanc-1",
		RuleType:       models.RuleTypeSanctions,
		Jurisdiction:   "DE",
		SeverityWeight: weight,
		Condition:      json.RawMessage(`{"field":"sanctions_hit","operator":"==","value":true}`),
		EffectiveFrom:  time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		IsActive:       true,
	}}, time.Now())}
}

func cleanRequest() *models.DecisionRequest {
	return &models.DecisionRequest{
		Payment: models.PaymentTransaction{
			PaymentID:          "pay-clean",
			OriginatorAccount:  "ACC-A",
			OriginatorCountry:  "DE",
			BeneficiaryAccount: "ACC-B",
			BeneficiaryCountry: "FR",
			Amount:             5000,
			Currency:           "USD",
			TransactionDate:    time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC),
			SwiftMessageType:   "MT103",
		},
	}
}

// --- tests -------------------------------------------------------------------

func TestDecide_RejectsInvalidPayment(t *testing.T) {
	h := newHarness(t, emptyCatalogue(), nil)

	req := cleanRequest()
	req.Payment.Amount = -5

	_, err := h.pipeline.Decide(context.Background(), req)
	var validation *models.ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if validation.Field != "amount" {
		t.Errorf("expected amount field, got %s", validation.Field)
	}
	if len(h.audit.events()) != 0 {
		t.Error("a rejected payment must not leave a partial decision in the audit trail")
	}
	if len(h.verdicts.byKey) != 0 {
		t.Error("a rejected payment must not persist a verdict")
	}
}

func TestDecide_CleanPaymentPasses(t *testing.T) {
	h := newHarness(t, emptyCatalogue(), nil)

	v, err := h.pipeline.Decide(context.Background(), cleanRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if v.RiskScore != 0 {
		t.Errorf("expected risk score 0, got %f", v.RiskScore)
	}
	if v.Category != models.VerdictPass {
		t.Errorf("expected pass, got %s", v.Category)
	}
	if v.AlertID != nil {
		t.Error("pass verdicts never carry an alert")
	}
	if v.Degraded {
		t.Error("nothing timed out, decision must not be degraded")
	}

	events := h.audit.events()
	want := []models.AuditEventType{
		models.AuditIngested, models.AuditRulesChecked,
		models.AuditPatternsDetected, models.AuditVerdictAssigned, models.AuditCompleted,
	}
	if len(events) != len(want) {
		t.Fatalf("expected %d audit events, got %v", len(want), events)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Errorf("audit event %d: expected %s, got %s", i, want[i], events[i])
		}
	}
}

func TestDecide_SanctionsHitFailsToLegalWithCriticalAlert(t *testing.T) {
	h := newHarness(t, sanctionsCatalogue(80), nil)

	req := cleanRequest()
	req.Payment.SanctionsHit = true

	first, err := h.pipeline.Decide(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if first.RiskScore < 80 {
		t.Errorf("expected risk score >= 80, got %f", first.RiskScore)
	}
	if first.Category != models.VerdictFail {
		t.Errorf("expected fail, got %s", first.Category)
	}
	if first.AssignedTeam != models.TeamLegal {
		t.Errorf("expected legal, got %s", first.AssignedTeam)
	}
	if first.AlertID == nil {
		t.Fatal("expected an alert")
	}

	alert, err := h.alertRepo.GetByID(context.Background(), *first.AlertID)
	if err != nil {
		t.Fatalf("alert not stored: %v", err)
	}
	if alert.Priority != models.PriorityCritical {
		t.Errorf("expected critical priority, got %s", alert.Priority)
	}

	// Three upstream retries: same verdict, same alert, no duplicates.
	for i := 0; i < 3; i++ {
		again, err := h.pipeline.Decide(context.Background(), req)
		if err != nil {
			t.Fatalf("retry %d failed: %v", i, err)
		}
		if again.VerdictID != first.VerdictID {
			t.Errorf("retry %d: verdict id changed: %s vs %s", i, again.VerdictID, first.VerdictID)
		}
		if again.AlertID == nil || *again.AlertID != *first.AlertID {
			t.Errorf("retry %d: alert id changed", i)
		}
	}
	if len(h.verdicts.byKey) != 1 {
		t.Errorf("expected one stored verdict, got %d", len(h.verdicts.byKey))
	}
	if len(h.alertRepo.byVerdict) != 1 {
		t.Errorf("expected one stored alert, got %d", len(h.alertRepo.byVerdict))
	}
}

func TestDecide_PatternBranchTimeoutDegradesButCompletes(t *testing.T) {
	h := newHarness(t, sanctionsCatalogue(80), func(d *Deps) {
		d.Detector = &slowDetector{delay: 2 * time.Second}
	})
	// Tighten the branch budget well below the detector's delay.
	h.pipeline.cfg.BranchTimeout = 50 * time.Millisecond

	req := cleanRequest()
	req.Payment.SanctionsHit = true

	start := time.Now()
	v, err := h.pipeline.Decide(context.Background(), req)
	if err != nil {
		t.Fatalf("degraded decision must still complete: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("decision waited for the slow branch: %v", elapsed)
	}

	if !v.Degraded {
		t.Error("expected the verdict to be flagged degraded")
	}
	if len(v.DetectedPatterns) != 0 {
		t.Errorf("timed-out branch must contribute empty evidence, got %v", v.DetectedPatterns)
	}
	// The rule-only evidence still drives a fail verdict; the stalled
	// detector never blocks it.
	if v.Category != models.VerdictFail || v.AssignedTeam != models.TeamLegal {
		t.Errorf("expected rule-only fail/legal, got %s/%s", v.Category, v.AssignedTeam)
	}

	events := h.audit.events()
	if events[len(events)-1] != models.AuditCompleted {
		t.Errorf("pipeline must reach Completed, trail ends with %s", events[len(events)-1])
	}
}

func TestDecide_SlowRulesBranchKeepsFinishedPatternEvidence(t *testing.T) {
	// The rules branch eats the entire branch budget. The detector finished
	// long ago; its result must still reach the verdict instead of being
	// dropped at the fan-in.
	h := newHarness(t, emptyCatalogue(), func(d *Deps) {
		d.Evaluator = &slowEvaluator{delay: time.Second}
	})
	h.pipeline.cfg.BranchTimeout = 50 * time.Millisecond

	req := cleanRequest()
	req.Payment.Amount = 3100
	base := req.Payment.TransactionDate
	for i, amount := range []float64{3000, 3500, 3200} {
		req.HistoricalTransactions = append(req.HistoricalTransactions, models.HistoricalTransaction{
			TransactionID:      fmt.Sprintf("h%d", i+1),
			OriginatorAccount:  "ACC-A",
			OriginatorCountry:  "DE",
			BeneficiaryAccount: "ACC-B",
			BeneficiaryCountry: "FR",
			Amount:             amount,
			Currency:           "USD",
			TransactionDate:    base.Add(-time.Duration(i+2) * time.Hour),
		})
	}

	start := time.Now()
	v, err := h.pipeline.Decide(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("decision waited for the slow rules branch: %v", elapsed)
	}

	if !v.Degraded {
		t.Error("expected the verdict to be flagged degraded by the rules timeout")
	}
	if len(v.TriggeredRules) != 0 {
		t.Errorf("timed-out rules branch must contribute empty evidence, got %v", v.TriggeredRules)
	}
	if len(v.DetectedPatterns) == 0 {
		t.Error("finished pattern evidence was dropped at the fan-in")
	}
	var structuring bool
	for _, p := range v.DetectedPatterns {
		if p.PatternType == models.PatternStructuring {
			structuring = true
		}
	}
	if !structuring {
		t.Errorf("expected the structuring pattern in the verdict, got %v", v.DetectedPatterns)
	}
}

func TestDecide_CatalogueUnavailableDegradesToPatternsOnly(t *testing.T) {
	h := newHarness(t, &fakeCatalogue{err: models.ErrCatalogueUnavailable}, nil)

	v, err := h.pipeline.Decide(context.Background(), cleanRequest())
	if err != nil {
		t.Fatalf("catalogue loss must not block payment flow: %v", err)
	}
	if v.Category != models.VerdictPass {
		t.Errorf("clean payment with no rules should pass, got %s", v.Category)
	}

	h.audit.mu.Lock()
	defer h.audit.mu.Unlock()
	var warned bool
	for _, r := range h.audit.records {
		if r.event == models.AuditRulesChecked && strings.Contains(r.warning, "catalogue unavailable") {
			warned = true
		}
	}
	if !warned {
		t.Error("expected a catalogue warning on the rules_checked audit entry")
	}
}

func TestDecide_CallerSuppliedRulesOverrideCatalogue(t *testing.T) {
	h := newHarness(t, emptyCatalogue(), nil)

	req := cleanRequest()
	req.ActiveRules = []models.ComplianceRule{{
		RuleID:         "inline-1",
		RuleType:       models.RuleTypeThreshold,
		SeverityWeight: 45,
		Condition:      json.RawMessage(`{"field":"amount","operator":">=","value":1000}`),
		IsActive:       true,
	}}

	v, err := h.pipeline.Decide(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.RiskScore != 45 {
		t.Errorf("expected score 45 from the inline rule, got %f", v.RiskScore)
	}
	if v.Category != models.VerdictSuspicious {
		t.Errorf("expected suspicious, got %s", v.Category)
	}
}

func TestDecide_EnrichmentOnlyImprovesProse(t *testing.T) {
	// Enrichment succeeding replaces the justification text only.
	h := newHarness(t, sanctionsCatalogue(80), func(d *Deps) {
		d.Enricher = &fakeEnricher{narrative: "An analyst-grade narrative."}
	})
	req := cleanRequest()
	req.Payment.SanctionsHit = true

	v, err := h.pipeline.Decide(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Justification != "An analyst-grade narrative." {
		t.Errorf("expected enriched narrative, got %q", v.Justification)
	}
	if v.Category != models.VerdictFail || v.RiskScore < 80 {
		t.Error("enrichment must never alter category or score")
	}

	// Enrichment failing falls back to the deterministic template.
	h2 := newHarness(t, sanctionsCatalogue(80), func(d *Deps) {
		d.Enricher = &fakeEnricher{err: models.ErrEnrichmentUnavailable}
	})
	req2 := cleanRequest()
	req2.Payment.PaymentID = "pay-other"
	req2.Payment.SanctionsHit = true

	v2, err := h2.pipeline.Decide(context.Background(), req2)
	if err != nil {
		t.Fatalf("enrichment failure must not fail the decision: %v", err)
	}
	if !strings.Contains(v2.Justification, "Risk score") {
		t.Errorf("expected templated justification, got %q", v2.Justification)
	}
	if v2.Category != models.VerdictFail {
		t.Errorf("expected fail, got %s", v2.Category)
	}
}

func TestDecide_ConcurrentDuplicateSubmissions(t *testing.T) {
	h := newHarness(t, sanctionsCatalogue(80), nil)

	req := cleanRequest()
	req.Payment.SanctionsHit = true

	const n = 8
	results := make([]*models.Verdict, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := h.pipeline.Decide(context.Background(), req)
			if err != nil {
				t.Errorf("submission %d failed: %v", i, err)
				return
			}
			results[i] = v
		}(i)
	}
	wg.Wait()

	if len(h.verdicts.byKey) != 1 {
		t.Fatalf("expected one stored verdict under concurrency, got %d", len(h.verdicts.byKey))
	}
	if len(h.alertRepo.byVerdict) != 1 {
		t.Fatalf("expected one stored alert under concurrency, got %d", len(h.alertRepo.byVerdict))
	}
	for i := 1; i < n; i++ {
		if results[i] == nil || results[0] == nil {
			continue
		}
		if results[i].VerdictID != results[0].VerdictID {
			t.Errorf("submission %d got a different verdict id", i)
		}
	}
}
