// Package sources provides the source adapter contract and reference
// adapters for heterogeneous probability providers: forecasting platforms,
// peer prediction markets and sportsbook odds feeds.
package sources

import (
	"context"

	"github.com/marketplaymaker/edgeintel/core"
)

// Category buckets guide each adapter's provider-side query.
const (
	CategoryCrypto   = "crypto"
	CategorySports   = "sports"
	CategoryPolitics = "politics"
)

// Query describes what to look for on a provider.
type Query struct {
	Keywords []string // salient terms from the market question
	Category string   // one of the Category constants, or "" when unknown
}

// Term joins the keywords into a provider search term.
func (q Query) Term() string {
	term := ""
	for i, k := range q.Keywords {
		if i > 0 {
			term += " "
		}
		term += k
	}
	return term
}

// Adapter normalizes one provider type into candidate entities. Adapters
// are polymorphic over this capability pair; the matcher, aggregator and
// grader never see provider-specific shapes.
//
// A provider that is unreachable or returns a malformed payload surfaces
// an error from FetchCandidates; callers treat it as SourceUnavailable and
// proceed with the remaining sources.
type Adapter interface {
	// Key identifies the source in estimates, logs and metrics.
	Key() string

	// FetchCandidates returns the provider's candidate entities for the
	// query. An empty slice with a nil error means the provider simply has
	// nothing relevant.
	FetchCandidates(ctx context.Context, q Query) ([]core.Candidate, error)

	// NormalizeProbability converts a candidate into a probability in
	// [0,1], or reports false when the entity has no resolvable
	// probability yet.
	NormalizeProbability(c core.Candidate) (float64, bool)
}
