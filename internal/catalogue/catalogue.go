package catalogue

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/adilet/payment-risk-engine/internal/interfaces"
	"github.com/adilet/payment-risk-engine/internal/models"
)

// Snapshot is an immutable view of the rule set at one load. Decisions
// capture a snapshot once and use it for their whole invocation, so a
// refresh mid-decision is never observed.
type Snapshot struct {
	rules    []models.ComplianceRule
	loadedAt time.Time
}

func NewSnapshot(rules []models.ComplianceRule, loadedAt time.Time) *Snapshot {
	return &Snapshot{rules: rules, loadedAt: loadedAt}
}

func (s *Snapshot) LoadedAt() time.Time { return s.loadedAt }

func (s *Snapshot) Len() int { return len(s.rules) }

// ActiveRules pre-filters for the evaluator: jurisdiction match (or global
// rules with empty jurisdiction) and effective window containing asOf.
func (s *Snapshot) ActiveRules(jurisdiction string, asOf time.Time) []models.ComplianceRule {
	var out []models.ComplianceRule
	for i := range s.rules {
		rule := &s.rules[i]
		if rule.Jurisdiction != "" && rule.Jurisdiction != jurisdiction {
			continue
		}
		if !rule.InEffect(asOf) {
			continue
		}
		out = append(out, *rule)
	}
	return out
}

// Catalogue holds the current snapshot behind an atomic pointer and
// refreshes it out-of-band. There is no locking on the read path.
type Catalogue struct {
	repo    interfaces.RuleRepository
	logger  *zap.Logger
	current atomic.Pointer[Snapshot]
}

func New(repo interfaces.RuleRepository, logger *zap.Logger) *Catalogue {
	return &Catalogue{repo: repo, logger: logger}
}

// Refresh loads the rule set and swaps it in. A failed refresh keeps the
// previous snapshot; the error only matters when no snapshot exists yet.
func (c *Catalogue) Refresh(ctx context.Context) error {
	rules, err := c.repo.LoadActive(ctx)
	if err != nil {
		c.logger.Warn("catalogue refresh failed, keeping previous snapshot", zap.Error(err))
		return err
	}

	c.current.Store(NewSnapshot(rules, time.Now()))
	c.logger.Info("rule catalogue refreshed", zap.Int("rules", len(rules)))
	return nil
}

// Snapshot returns the current view, or ErrCatalogueUnavailable when no
// load has ever succeeded. Callers degrade to pattern-only decisions then.
func (c *Catalogue) Snapshot() (*Snapshot, error) {
	snap := c.current.Load()
	if snap == nil {
		return nil, models.ErrCatalogueUnavailable
	}
	return snap, nil
}

// Run refreshes on the given interval until ctx is cancelled.
func (c *Catalogue) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = c.Refresh(ctx)
		}
	}
}
