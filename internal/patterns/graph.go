package patterns

import (
	"fmt"
	"math"
	"time"

	"github.com/adilet/payment-risk-engine/internal/models"
)

// The flow graph maps party accounts to dense integer ids and keeps edges
// in index slices, so the bounded DFS below works on plain ints.
type flowGraph struct {
	ids      map[string]int
	outgoing [][]flowEdge
	incoming [][]flowEdge
}

type flowEdge struct {
	from, to int
	txID     string
	amount   float64
	at       time.Time
}

func newFlowGraph() *flowGraph {
	return &flowGraph{ids: make(map[string]int)}
}

func (g *flowGraph) node(account string) int {
	if id, ok := g.ids[account]; ok {
		return id
	}
	id := len(g.ids)
	g.ids[account] = id
	g.outgoing = append(g.outgoing, nil)
	g.incoming = append(g.incoming, nil)
	return id
}

func (g *flowGraph) addEdge(fromAccount, toAccount, txID string, amount float64, at time.Time) flowEdge {
	e := flowEdge{from: g.node(fromAccount), to: g.node(toAccount), txID: txID, amount: amount, at: at}
	g.outgoing[e.from] = append(g.outgoing[e.from], e)
	g.incoming[e.to] = append(g.incoming[e.to], e)
	return e
}

func buildFlowGraph(payment *models.PaymentTransaction, history []models.HistoricalTransaction, windowStart time.Time) (*flowGraph, flowEdge) {
	g := newFlowGraph()
	for i := range history {
		tx := &history[i]
		if tx.TransactionDate.Before(windowStart) || tx.TransactionDate.After(payment.TransactionDate) {
			continue
		}
		g.addEdge(tx.OriginatorAccount, tx.BeneficiaryAccount, tx.TransactionID, tx.Amount, tx.TransactionDate)
	}
	paymentEdge := g.addEdge(payment.OriginatorAccount, payment.BeneficiaryAccount,
		payment.PaymentID, payment.Amount, payment.TransactionDate)
	return g, paymentEdge
}

// detectRoundTripping looks for funds leaving the payment's originator and
// coming back within the window: the payment edge plus a historical path
// from the beneficiary back to the originator, at most maxHops edges total.
func (d *Detector) detectRoundTripping(payment *models.PaymentTransaction, history []models.HistoricalTransaction) *models.DetectedPattern {
	if payment.OriginatorAccount == payment.BeneficiaryAccount {
		return nil
	}

	windowStart := payment.TransactionDate.Add(-d.cfg.RoundTripWindow)
	g, paymentEdge := buildFlowGraph(payment, history, windowStart)

	origin := paymentEdge.from
	visited := make([]bool, len(g.ids))
	visited[origin] = true

	cycle := g.findReturnPath(paymentEdge.to, origin, d.cfg.RoundTripMaxHops-1, visited)
	if cycle == nil {
		return nil
	}

	evidence := []string{paymentEdge.txID}
	for _, e := range cycle {
		evidence = append(evidence, e.txID)
	}

	return &models.DetectedPattern{
		PatternType:    models.PatternRoundTripping,
		Confidence:     d.cfg.RoundTripConfidence,
		RiskMultiplier: d.multiplier(models.PatternRoundTripping),
		Description: fmt.Sprintf("funds return to originator through a %d-hop cycle", len(evidence)),
		Evidence:    evidence,
	}
}

// findReturnPath is a bounded DFS from `from` back to `target`, using at
// most `hops` edges and never revisiting a party.
func (g *flowGraph) findReturnPath(from, target, hops int, visited []bool) []flowEdge {
	if hops <= 0 {
		return nil
	}
	for _, e := range g.outgoing[from] {
		if e.to == target {
			return []flowEdge{e}
		}
		if visited[e.to] {
			continue
		}
		visited[e.to] = true
		if rest := g.findReturnPath(e.to, target, hops-1, visited); rest != nil {
			return append([]flowEdge{e}, rest...)
		}
		visited[e.to] = false
	}
	return nil
}

// detectLayering walks backwards from the payment through chains of prior
// transfers whose amounts decay by no more than the configured tolerance
// per hop, looking for enough distinct intermediaries.
func (d *Detector) detectLayering(payment *models.PaymentTransaction, history []models.HistoricalTransaction) *models.DetectedPattern {
	windowStart := payment.TransactionDate.Add(-d.cfg.LayeringWindow)
	g, paymentEdge := buildFlowGraph(payment, history, windowStart)

	visited := make([]bool, len(g.ids))
	visited[paymentEdge.from] = true
	visited[paymentEdge.to] = true

	chain := g.longestFeederChain(paymentEdge, d.cfg.LayeringAmountTolerance, visited)

	// Each feeder edge hands the funds to one intermediate party before
	// they reach the payment's originator.
	intermediaries := len(chain)
	if intermediaries < d.cfg.LayeringMinIntermediaries {
		return nil
	}

	evidence := make([]string, 0, len(chain)+1)
	for i := len(chain) - 1; i >= 0; i-- {
		evidence = append(evidence, chain[i].txID)
	}
	evidence = append(evidence, paymentEdge.txID)

	extra := intermediaries - d.cfg.LayeringMinIntermediaries
	confidence := clamp01(0.6 + 0.1*float64(extra))

	return &models.DetectedPattern{
		PatternType:    models.PatternLayering,
		Confidence:     confidence,
		RiskMultiplier: d.multiplier(models.PatternLayering),
		Description: fmt.Sprintf("payment terminates a %d-hop chain through %d intermediaries",
			len(evidence), intermediaries),
		Evidence: evidence,
	}
}

// longestFeederChain returns the longest backwards chain of edges feeding
// `next`: each predecessor ends where the next edge starts, happened no
// later, and its amount exceeds the next edge's by at most the tolerance.
func (g *flowGraph) longestFeederChain(next flowEdge, tolerance float64, visited []bool) []flowEdge {
	var best []flowEdge
	maxFeeder := next.amount / (1 - tolerance)
	if tolerance >= 1 {
		maxFeeder = math.Inf(1)
	}

	for _, e := range g.incoming[next.from] {
		if e.txID == next.txID || e.at.After(next.at) {
			continue
		}
		if e.amount < next.amount || e.amount > maxFeeder {
			continue
		}
		if visited[e.from] {
			continue
		}
		visited[e.from] = true
		chain := append([]flowEdge{e}, g.longestFeederChain(e, tolerance, visited)...)
		visited[e.from] = false

		if len(chain) > len(best) {
			best = chain
		}
	}
	return best
}
