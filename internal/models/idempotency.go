package models

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// IdempotencyKey hashes the payment's immutable identity fields. Upstream
// retries of the same payload map to the same key; a different amount or
// date under a reused payment id does not.
func IdempotencyKey(p *PaymentTransaction) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|%s|%s|%.2f|%s|%s",
		p.PaymentID,
		p.OriginatorAccount, p.OriginatorCountry,
		p.BeneficiaryAccount, p.BeneficiaryCountry,
		p.Amount, p.Currency,
		p.TransactionDate.UTC().Format(time.RFC3339),
	)
	return hex.EncodeToString(h.Sum(nil))
}
