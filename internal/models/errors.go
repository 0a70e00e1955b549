package models

import (
	"errors"
	"fmt"
)

// ValidationError is the only terminal, caller-visible rejection. All other
// failure modes degrade and still produce a verdict.
type ValidationError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid payment: %s %s", e.Field, e.Reason)
}

var (
	// ErrCatalogueUnavailable means no rule snapshot could be obtained; the
	// decision proceeds on pattern evidence with an audit warning.
	ErrCatalogueUnavailable = errors.New("rule catalogue unavailable")

	// ErrEnrichmentUnavailable means the narrative service timed out or the
	// breaker is open; the templated justification is used instead.
	ErrEnrichmentUnavailable = errors.New("narrative enrichment unavailable")

	// ErrAlertNotFound / ErrVerdictNotFound are repository lookup misses.
	ErrAlertNotFound   = errors.New("alert not found")
	ErrVerdictNotFound = errors.New("verdict not found")

	// ErrInvalidAlertTransition rejects a status change that would move an
	// alert backwards through its one-way workflow.
	ErrInvalidAlertTransition = errors.New("invalid alert status transition")
)
