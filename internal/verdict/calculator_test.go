package verdict

import (
	"testing"

	"github.com/adilet/payment-risk-engine/internal/models"
)

func newTestCalculator() *Calculator {
	return NewCalculator(30, 70)
}

func rule(t models.RuleType, weight float64) models.TriggeredRule {
	return models.TriggeredRule{RuleID: "r-" + string(t), RuleType: t, SeverityWeight: weight}
}

func pattern(t models.PatternType, confidence, multiplier float64) models.DetectedPattern {
	return models.DetectedPattern{PatternType: t, Confidence: confidence, RiskMultiplier: multiplier}
}

func TestCalculate_NoEvidenceIsPass(t *testing.T) {
	res := newTestCalculator().Calculate(nil, nil)

	if res.RiskScore != 0 {
		t.Errorf("expected score 0, got %f", res.RiskScore)
	}
	if res.Category != models.VerdictPass {
		t.Errorf("expected pass, got %s", res.Category)
	}
	if res.AssignedTeam != models.TeamCompliance {
		t.Errorf("expected compliance as the no-evidence default, got %s", res.AssignedTeam)
	}
}

func TestCalculate_Reproducible(t *testing.T) {
	calc := newTestCalculator()
	triggered := []models.TriggeredRule{rule(models.RuleTypeThreshold, 25), rule(models.RuleTypeEDDTrigger, 10)}
	detected := []models.DetectedPattern{pattern(models.PatternVelocity, 0.7, 6)}

	first := calc.Calculate(triggered, detected)
	for i := 0; i < 50; i++ {
		again := calc.Calculate(triggered, detected)
		if again != first {
			t.Fatalf("run %d diverged: %+v vs %+v", i, again, first)
		}
	}
}

func TestCalculate_Monotonic(t *testing.T) {
	calc := newTestCalculator()
	triggered := []models.TriggeredRule{rule(models.RuleTypeThreshold, 20)}
	detected := []models.DetectedPattern{pattern(models.PatternStructuring, 0.9, 8)}

	base := calc.Calculate(triggered, detected).RiskScore

	withRule := calc.Calculate(append(triggered, rule(models.RuleTypeDataQuality, 5)), detected).RiskScore
	if withRule < base {
		t.Errorf("adding a rule decreased the score: %f -> %f", base, withRule)
	}

	withPattern := calc.Calculate(triggered, append(detected, pattern(models.PatternLayering, 0.6, 9))).RiskScore
	if withPattern < base {
		t.Errorf("adding a pattern decreased the score: %f -> %f", base, withPattern)
	}
}

func TestCalculate_BoundaryExactness(t *testing.T) {
	calc := newTestCalculator()

	cases := []struct {
		weight float64
		want   models.VerdictCategory
	}{
		{29.999, models.VerdictPass},
		{30.0, models.VerdictSuspicious},
		{69.999, models.VerdictSuspicious},
		{70.0, models.VerdictFail},
	}
	for _, tc := range cases {
		res := calc.Calculate([]models.TriggeredRule{rule(models.RuleTypeThreshold, tc.weight)}, nil)
		if res.Category != tc.want {
			t.Errorf("score %v: expected %s, got %s", tc.weight, tc.want, res.Category)
		}
		if res.RiskScore != tc.weight {
			t.Errorf("score %v: expected exact score, got %f", tc.weight, res.RiskScore)
		}
	}
}

func TestCalculate_ClampsTo100(t *testing.T) {
	res := newTestCalculator().Calculate([]models.TriggeredRule{
		rule(models.RuleTypeSanctions, 80),
		rule(models.RuleTypeRegulatoryThreshold, 60),
	}, nil)

	if res.RiskScore != 100 {
		t.Errorf("expected clamp to 100, got %f", res.RiskScore)
	}
	if res.Category != models.VerdictFail {
		t.Errorf("expected fail, got %s", res.Category)
	}
}

func TestRouteTeam_Precedence(t *testing.T) {
	calc := newTestCalculator()

	// sanctions + edd_trigger and no patterns: legal wins, never compliance.
	res := calc.Calculate([]models.TriggeredRule{
		rule(models.RuleTypeEDDTrigger, 10),
		rule(models.RuleTypeSanctions, 80),
	}, nil)
	if res.AssignedTeam != models.TeamLegal {
		t.Errorf("expected legal, got %s", res.AssignedTeam)
	}

	// edd_trigger alone routes to compliance.
	res = calc.Calculate([]models.TriggeredRule{rule(models.RuleTypeEDDTrigger, 10)}, nil)
	if res.AssignedTeam != models.TeamCompliance {
		t.Errorf("expected compliance, got %s", res.AssignedTeam)
	}

	// Patterns outrank data_quality.
	res = calc.Calculate(
		[]models.TriggeredRule{rule(models.RuleTypeDataQuality, 5)},
		[]models.DetectedPattern{pattern(models.PatternVelocity, 0.5, 6)},
	)
	if res.AssignedTeam != models.TeamCompliance {
		t.Errorf("expected compliance, got %s", res.AssignedTeam)
	}

	// data_quality alone goes to the front office.
	res = calc.Calculate([]models.TriggeredRule{rule(models.RuleTypeDataQuality, 5)}, nil)
	if res.AssignedTeam != models.TeamFrontOffice {
		t.Errorf("expected front_office, got %s", res.AssignedTeam)
	}
}

func TestCalculate_SingleStructuringPatternStaysPass(t *testing.T) {
	// A 0.9-confidence structuring pattern with multiplier 1.0 contributes
	// exactly 0.9: far below the suspicious threshold.
	res := newTestCalculator().Calculate(nil, []models.DetectedPattern{
		pattern(models.PatternStructuring, 0.9, 1.0),
	})

	if res.RiskScore != 0.9 {
		t.Errorf("expected score 0.9, got %f", res.RiskScore)
	}
	if res.Category != models.VerdictPass {
		t.Errorf("expected pass, got %s", res.Category)
	}
	if res.AssignedTeam != models.TeamCompliance {
		t.Errorf("patterns route to compliance, got %s", res.AssignedTeam)
	}
}

func TestCalculate_SanctionsWeight80Fails(t *testing.T) {
	res := newTestCalculator().Calculate([]models.TriggeredRule{rule(models.RuleTypeSanctions, 80)}, nil)

	if res.RiskScore < 80 {
		t.Errorf("expected score >= 80, got %f", res.RiskScore)
	}
	if res.Category != models.VerdictFail {
		t.Errorf("expected fail, got %s", res.Category)
	}
	if res.AssignedTeam != models.TeamLegal {
		t.Errorf("expected legal, got %s", res.AssignedTeam)
	}
}

func TestJustification_Deterministic(t *testing.T) {
	calc := newTestCalculator()
	triggered := []models.TriggeredRule{rule(models.RuleTypeThreshold, 40), rule(models.RuleTypeEDDTrigger, 10)}
	detected := []models.DetectedPattern{pattern(models.PatternRoundTripping, 0.85, 9)}

	first := calc.Calculate(triggered, detected).Justification
	if first == "" {
		t.Fatal("expected a justification")
	}
	for i := 0; i < 10; i++ {
		if got := calc.Calculate(triggered, detected).Justification; got != first {
			t.Fatalf("justification diverged:\n%s\n%s", first, got)
		}
	}
}
