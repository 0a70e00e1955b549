package verdict

import (
	"fmt"
	"sort"
	"strings"

	"github.com/adilet/payment-risk-engine/internal/models"
)

// Calculator turns evidence into a verdict with deterministic arithmetic.
// It holds only thresholds, never state: the same evidence always yields
// the same score, category, and team, which is what makes audit replays
// possible.
type Calculator struct {
	suspiciousThreshold float64
	failThreshold       float64
}

func NewCalculator(suspiciousThreshold, failThreshold float64) *Calculator {
	return &Calculator{
		suspiciousThreshold: suspiciousThreshold,
		failThreshold:       failThreshold,
	}
}

type Result struct {
	Category      models.VerdictCategory
	RiskScore     float64
	AssignedTeam  models.Team
	Justification string
}

func (c *Calculator) Calculate(triggered []models.TriggeredRule, detected []models.DetectedPattern) Result {
	var ruleScore float64
	for i := range triggered {
		ruleScore += triggered[i].SeverityWeight
	}

	var patternScore float64
	for i := range detected {
		patternScore += detected[i].Confidence * detected[i].RiskMultiplier
	}

	total := ruleScore + patternScore
	if total < 0 {
		total = 0
	}
	if total > 100 {
		total = 100
	}

	return Result{
		Category:      c.categorize(total),
		RiskScore:     total,
		AssignedTeam:  routeTeam(triggered, detected),
		Justification: justify(total, ruleScore, patternScore, triggered, detected),
	}
}

// categorize applies inclusive lower bounds: a score of exactly the
// suspicious threshold is suspicious, exactly the fail threshold fails.
func (c *Calculator) categorize(score float64) models.VerdictCategory {
	switch {
	case score >= c.failThreshold:
		return models.VerdictFail
	case score >= c.suspiciousThreshold:
		return models.VerdictSuspicious
	default:
		return models.VerdictPass
	}
}

// routeTeam is rule-type driven, never score driven, and resolves multiple
// qualifying teams to the most senior: legal > compliance > front_office.
// No evidence at all routes to compliance as the safe default.
func routeTeam(triggered []models.TriggeredRule, detected []models.DetectedPattern) models.Team {
	hasEDD := false
	hasDataQuality := false
	for i := range triggered {
		switch triggered[i].RuleType {
		case models.RuleTypeSanctions, models.RuleTypeProhibitedJurisdiction, models.RuleTypeRegulatoryThreshold:
			return models.TeamLegal
		case models.RuleTypeEDDTrigger:
			hasEDD = true
		case models.RuleTypeDataQuality:
			hasDataQuality = true
		}
	}

	if len(detected) > 0 || hasEDD {
		return models.TeamCompliance
	}
	if hasDataQuality {
		return models.TeamFrontOffice
	}
	return models.TeamCompliance
}

// justify builds the deterministic fallback narrative. Enrichment may later
// replace this prose, but never the score or category it describes.
func justify(total, ruleScore, patternScore float64, triggered []models.TriggeredRule, detected []models.DetectedPattern) string {
	if len(triggered) == 0 && len(detected) == 0 {
		return "No compliance rules triggered and no behavioral patterns detected."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Risk score %.2f (rules %.2f, patterns %.2f).", total, ruleScore, patternScore)

	if len(triggered) > 0 {
		names := make([]string, len(triggered))
		for i := range triggered {
			names[i] = fmt.Sprintf("%s (weight %.1f)", triggered[i].RuleType, triggered[i].SeverityWeight)
		}
		sort.Strings(names)
		fmt.Fprintf(&b, " Triggered rules: %s.", strings.Join(names, ", "))
	}

	if len(detected) > 0 {
		names := make([]string, len(detected))
		for i := range detected {
			names[i] = fmt.Sprintf("%s (confidence %.2f)", detected[i].PatternType, detected[i].Confidence)
		}
		sort.Strings(names)
		fmt.Fprintf(&b, " Detected patterns: %s.", strings.Join(names, ", "))
	}

	return b.String()
}
