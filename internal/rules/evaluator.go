package rules

import (
	"encoding/json"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/adilet/payment-risk-engine/internal/models"
)

// Evaluator matches a payment against pre-filtered rules. It is pure: the
// caller supplies rules already scoped to jurisdiction and effective date,
// and the evaluator has no side effects beyond logging skipped rules.
type Evaluator struct {
	logger *zap.Logger
}

func NewEvaluator(logger *zap.Logger) *Evaluator {
	return &Evaluator{logger: logger}
}

// Condition is the structured payload stored on each rule: either a leaf
// (field/operator/value) or a composite (all/any of sub-conditions).
type Condition struct {
	All      []Condition     `json:"all,omitempty"`
	Any      []Condition     `json:"any,omitempty"`
	Field    string          `json:"field,omitempty"`
	Operator string          `json:"operator,omitempty"`
	Value    json.RawMessage `json:"value,omitempty"`
}

// Evaluate returns one TriggeredRule per matched rule. A malformed rule is
// logged and skipped; it never aborts evaluation of the remaining rules.
func (e *Evaluator) Evaluate(payment *models.PaymentTransaction, activeRules []models.ComplianceRule) []models.TriggeredRule {
	var triggered []models.TriggeredRule

	for i := range activeRules {
		rule := &activeRules[i]

		var cond Condition
		if err := json.Unmarshal(rule.Condition, &cond); err != nil {
			e.logger.Warn("skipping rule with malformed condition",
				zap.String("rule_id", rule.RuleID),
				zap.Error(err),
			)
			continue
		}

		evidence := map[string]string{}
		matched, err := e.check(cond, payment, evidence)
		if err != nil {
			e.logger.Warn("skipping rule with unevaluable condition",
				zap.String("rule_id", rule.RuleID),
				zap.Error(err),
			)
			continue
		}
		if !matched {
			continue
		}

		// Severity weight is copied now so later catalogue edits cannot
		// change what this decision's audit trail reproduces.
		triggered = append(triggered, models.TriggeredRule{
			RuleID:         rule.RuleID,
			RuleType:       rule.RuleType,
			SeverityWeight: rule.SeverityWeight,
			Description:    rule.Description,
			Evidence:       evidence,
		})
	}

	return triggered
}

func (e *Evaluator) check(cond Condition, p *models.PaymentTransaction, evidence map[string]string) (bool, error) {
	switch {
	case len(cond.All) > 0:
		for _, sub := range cond.All {
			ok, err := e.check(sub, p, evidence)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	case len(cond.Any) > 0:
		for _, sub := range cond.Any {
			ok, err := e.check(sub, p, evidence)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	}
	return e.checkLeaf(cond, p, evidence)
}

func (e *Evaluator) checkLeaf(cond Condition, p *models.PaymentTransaction, evidence map[string]string) (bool, error) {
	switch cond.Field {
	case "amount":
		return e.checkNumeric(cond, p.Amount, evidence)
	case "currency":
		return e.checkString(cond, p.Currency, evidence)
	case "originator_country":
		return e.checkString(cond, p.OriginatorCountry, evidence)
	case "beneficiary_country":
		return e.checkString(cond, p.BeneficiaryCountry, evidence)
	case "swift_message_type":
		return e.checkString(cond, p.SwiftMessageType, evidence)
	case "sanctions_hit":
		return e.checkBool(cond, p.SanctionsHit, evidence)
	case "pep_hit":
		return e.checkBool(cond, p.PEPHit, evidence)
	default:
		return false, fmt.Errorf("unknown condition field: %q", cond.Field)
	}
}

func (e *Evaluator) checkNumeric(cond Condition, value float64, evidence map[string]string) (bool, error) {
	var target float64
	if err := json.Unmarshal(cond.Value, &target); err != nil {
		return false, fmt.Errorf("field %s: non-numeric target: %w", cond.Field, err)
	}

	var matched bool
	switch cond.Operator {
	case ">":
		matched = value > target
	case ">=":
		matched = value >= target
	case "<":
		matched = value < target
	case "<=":
		matched = value <= target
	case "==":
		matched = value == target
	case "!=":
		matched = value != target
	default:
		return false, fmt.Errorf("field %s: unknown operator %q", cond.Field, cond.Operator)
	}

	if matched {
		evidence[cond.Field] = strconv.FormatFloat(value, 'f', -1, 64)
	}
	return matched, nil
}

func (e *Evaluator) checkString(cond Condition, value string, evidence map[string]string) (bool, error) {
	var matched bool
	switch cond.Operator {
	case "==", "!=":
		var target string
		if err := json.Unmarshal(cond.Value, &target); err != nil {
			return false, fmt.Errorf("field %s: non-string target: %w", cond.Field, err)
		}
		matched = (value == target) == (cond.Operator == "==")
	case "in", "not_in":
		var targets []string
		if err := json.Unmarshal(cond.Value, &targets); err != nil {
			return false, fmt.Errorf("field %s: target is not a string list: %w", cond.Field, err)
		}
		found := false
		for _, t := range targets {
			if t == value {
				found = true
				break
			}
		}
		matched = found == (cond.Operator == "in")
	default:
		return false, fmt.Errorf("field %s: unknown operator %q", cond.Field, cond.Operator)
	}

	if matched {
		evidence[cond.Field] = value
	}
	return matched, nil
}

func (e *Evaluator) checkBool(cond Condition, value bool, evidence map[string]string) (bool, error) {
	var target bool
	if err := json.Unmarshal(cond.Value, &target); err != nil {
		return false, fmt.Errorf("field %s: non-boolean target: %w", cond.Field, err)
	}

	var matched bool
	switch cond.Operator {
	case "==":
		matched = value == target
	case "!=":
		matched = value != target
	default:
		return false, fmt.Errorf("field %s: unknown operator %q", cond.Field, cond.Operator)
	}

	if matched {
		evidence[cond.Field] = strconv.FormatBool(value)
	}
	return matched, nil
}
