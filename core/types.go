// Package core defines the shared domain types of the edge intelligence
// engine: market snapshots, source candidates, matches, per-source
// estimates and the terminal EdgeResult artifact.
package core

import (
	"time"
)

// Market is an immutable snapshot of a prediction market, supplied by the
// external catalog. The engine never mutates it.
type Market struct {
	ID        string    `json:"conditionId"`
	Question  string    `json:"question"`
	Price     float64   `json:"yesPrice"` // traded YES probability, 0-1
	CloseTime time.Time `json:"endDate,omitempty"`
}

// Candidate is a provider-specific item normalized by a source adapter.
// Transient: recomputed per request, never persisted.
type Candidate struct {
	SourceKey   string
	ExternalID  string
	Title       string
	Probability *float64 // nil when the entity has no resolvable probability yet
	Confidence  float64  // 0-1, source-specific corroboration strength
	ResolveTime time.Time
	Detail      string            // human-readable provenance, e.g. "3 books, devig"
	Meta        map[string]string // optional provider metadata
}

// Match pairs a market with the best candidate from one source.
type Match struct {
	Market    Market
	Candidate Candidate
	Quality   float64 // continuous match score, 0-1
	Validated bool    // structural checks passed (thresholds, periods)
}

// SourceEstimate is the unit the aggregator consumes: one independent
// probability estimate for a market, with its audit trail.
type SourceEstimate struct {
	Key            string  `json:"key"`
	Prob           float64 `json:"prob"`
	Confidence     float64 `json:"confidence"`
	Detail         string  `json:"detail"`
	MatchQuality   float64 `json:"matchQuality"`
	MatchValidated bool    `json:"matchValidated"`
}

// EdgeSignal is the directional read on a detected mispricing.
type EdgeSignal string

const (
	SignalNone        EdgeSignal = "NONE"
	SignalOverpriced  EdgeSignal = "OVERPRICED"  // consensus below market price
	SignalUnderpriced EdgeSignal = "UNDERPRICED" // consensus above market price
)

// EdgeGrade is the discrete trust band for a detected edge.
type EdgeGrade string

const (
	GradeA EdgeGrade = "A"
	GradeB EdgeGrade = "B"
	GradeC EdgeGrade = "C"
	GradeD EdgeGrade = "D"
)

// EdgeResult is the terminal artifact of one market analysis. Immutable
// once produced. Sources lists every estimate collected (validated or not)
// so the verdict stays auditable; SourceCount counts only validated ones.
type EdgeResult struct {
	MarketID    string           `json:"conditionId"`
	Question    string           `json:"question"`
	MarketPrice float64          `json:"marketPrice"`
	Consensus   float64          `json:"consensus"`
	Divergence  float64          `json:"divergence"` // consensus - marketPrice, signed
	SourceCount int              `json:"sourceCount"`
	Sources     []SourceEstimate `json:"sources"`
	Signal      EdgeSignal       `json:"edgeSignal"`
	Grade       EdgeGrade        `json:"edgeGrade"`
	Quality     int              `json:"edgeQuality"` // 0-100
}

// ValidatedCount returns the number of estimates that passed match
// validation. Invariant: equals SourceCount on any engine-produced result.
func (r *EdgeResult) ValidatedCount() int {
	n := 0
	for _, s := range r.Sources {
		if s.MatchValidated {
			n++
		}
	}
	return n
}
