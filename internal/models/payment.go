package models

import (
	"strings"
	"time"
)

// PaymentTransaction is the immutable payment under decision. The engine
// never mutates it after validation.
type PaymentTransaction struct {
	PaymentID          string    `json:"payment_id"`
	OriginatorName     string    `json:"originator_name"`
	OriginatorAccount  string    `json:"originator_account"`
	OriginatorCountry  string    `json:"originator_country"`
	BeneficiaryName    string    `json:"beneficiary_name"`
	BeneficiaryAccount string    `json:"beneficiary_account"`
	BeneficiaryCountry string    `json:"beneficiary_country"`
	Amount             float64   `json:"amount"`
	Currency           string    `json:"currency"`
	TransactionDate    time.Time `json:"transaction_date"`
	SwiftMessageType   string    `json:"swift_message_type"`
	SanctionsHit       bool      `json:"sanctions_hit"`
	PEPHit             bool      `json:"pep_hit"`
}

// HistoricalTransaction is one prior transaction for the same parties,
// supplied by the caller as a bounded window.
type HistoricalTransaction struct {
	TransactionID      string    `json:"transaction_id"`
	OriginatorAccount  string    `json:"originator_account"`
	OriginatorCountry  string    `json:"originator_country"`
	BeneficiaryAccount string    `json:"beneficiary_account"`
	BeneficiaryCountry string    `json:"beneficiary_country"`
	Amount             float64   `json:"amount"`
	Currency           string    `json:"currency"`
	TransactionDate    time.Time `json:"transaction_date"`
}

// DecisionRequest is the engine's input contract: the payment, its bounded
// history window, and optionally a caller-supplied rule set overriding the
// catalogue snapshot.
type DecisionRequest struct {
	Payment                PaymentTransaction      `json:"payment"`
	HistoricalTransactions []HistoricalTransaction `json:"historical_transactions"`
	ActiveRules            []ComplianceRule        `json:"active_rules,omitempty"`
}

// Validate rejects a payment before the pipeline starts. Everything it
// reports is a ValidationError; no partial decision is recorded for these.
func (p *PaymentTransaction) Validate() error {
	switch {
	case strings.TrimSpace(p.PaymentID) == "":
		return &ValidationError{Field: "payment_id", Reason: "required"}
	case strings.TrimSpace(p.OriginatorAccount) == "":
		return &ValidationError{Field: "originator_account", Reason: "required"}
	case strings.TrimSpace(p.BeneficiaryAccount) == "":
		return &ValidationError{Field: "beneficiary_account", Reason: "required"}
	case p.Amount <= 0:
		return &ValidationError{Field: "amount", Reason: "must be positive"}
	case len(p.Currency) != 3:
		return &ValidationError{Field: "currency", Reason: "must be an ISO 4217 code"}
	case p.TransactionDate.IsZero():
		return &ValidationError{Field: "transaction_date", Reason: "required"}
	}
	return nil
}
