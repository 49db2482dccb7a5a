package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketplaymaker/edgeintel/core"
)

func cand(id, title string) core.Candidate {
	return core.Candidate{ExternalID: id, Title: title}
}

func TestMatcherBest_ThresholdGate(t *testing.T) {
	m := NewMatcher(nil)
	market := core.Market{
		ID:       "0xabc",
		Question: "Will Bitcoin reach $68,000 by December 2025?",
	}

	// Textually near-identical, numerically wrong. Must never win, no
	// matter how high the token overlap scores.
	match, ok := m.Best(market, []core.Candidate{
		cand("1", "Will Bitcoin reach $85,000 by December 2025?"),
	})
	require.False(t, ok)
	assert.Nil(t, match)

	// Same threshold wins even against the wrong-threshold twin.
	match, ok = m.Best(market, []core.Candidate{
		cand("1", "Will Bitcoin reach $85,000 by December 2025?"),
		cand("2", "Will Bitcoin reach $68,000 by December 2025?"),
	})
	require.True(t, ok)
	assert.Equal(t, "2", match.Candidate.ExternalID)
	assert.True(t, match.Validated)
}

func TestMatcherBest_DirectionGate(t *testing.T) {
	m := NewMatcher(nil)
	market := core.Market{Question: "Will ETH close above $4,000 in March 2026?"}

	_, ok := m.Best(market, []core.Candidate{
		cand("1", "Will ETH dip below $4,000 in March 2026?"),
	})
	assert.False(t, ok, "same threshold in the opposite direction is inadmissible")
}

func TestMatcherBest_PeriodGate(t *testing.T) {
	m := NewMatcher(nil)
	market := core.Market{Question: "Will Bitcoin reach $68,000 by December 2025?"}

	_, ok := m.Best(market, []core.Candidate{
		cand("1", "Will Bitcoin reach $68,000 by January 2026?"),
	})
	assert.False(t, ok, "recurring questions differing only by period must not match")
}

func TestMatcherBest_Unvalidated(t *testing.T) {
	m := NewMatcher(nil)

	// Market has no threshold; candidate has one. Textually plausible, so
	// it can still be the best match, but validation must fail.
	market := core.Market{Question: "Will Bitcoin rally in December 2025?"}
	match, ok := m.Best(market, []core.Candidate{
		cand("1", "Will Bitcoin reach $68,000 in December 2025?"),
	})
	if ok {
		assert.False(t, match.Validated, "one-sided threshold is never validated")
	}
}

func TestMatcherBest_UpOrDownValidation(t *testing.T) {
	m := NewMatcher(nil)
	market := core.Market{Question: "Bitcoin Up or Down - December 26?"}

	match, ok := m.Best(market, []core.Candidate{
		cand("1", "Bitcoin Up or Down - December 26?"),
	})
	require.True(t, ok)
	assert.True(t, match.Validated)

	match, ok = m.Best(market, []core.Candidate{
		cand("1", "Bitcoin higher in December?"),
	})
	if ok {
		assert.False(t, match.Validated, "up-or-down only validates against the same phrasing")
	}
}

func TestMatcherBest_MinScore(t *testing.T) {
	m := NewMatcher(nil)
	market := core.Market{Question: "Will Bitcoin reach $68,000 by December 2025?"}

	_, ok := m.Best(market, []core.Candidate{
		cand("1", "Will the Chiefs win the Super Bowl?"),
	})
	assert.False(t, ok, "unrelated candidate must not clear the minimum score")
}

func TestMatcherBest_TieBreaks(t *testing.T) {
	m := NewMatcher(nil)
	market := core.Market{Question: "Will the Chiefs win the Super Bowl?"}

	// Equal scores: longer normalized title wins.
	match, ok := m.Best(market, []core.Candidate{
		cand("2", "Chiefs win Super Bowl"),
		cand("1", "Chiefs win Super Bowl LX championship game"),
	})
	require.True(t, ok)
	assert.Equal(t, "1", match.Candidate.ExternalID)

	// Fully identical: smaller external ID wins, regardless of input order.
	match, ok = m.Best(market, []core.Candidate{
		cand("b", "Chiefs win Super Bowl"),
		cand("a", "Chiefs win Super Bowl"),
	})
	require.True(t, ok)
	assert.Equal(t, "a", match.Candidate.ExternalID)
}

func TestMatcherBest_Deterministic(t *testing.T) {
	m := NewMatcher(nil)
	market := core.Market{Question: "Will Bitcoin reach $68,000 by December 2025?"}
	candidates := []core.Candidate{
		cand("3", "Will Bitcoin reach $68,000 by December 2025?"),
		cand("1", "Bitcoin reaches $68,000 in December 2025"),
		cand("2", "Will Bitcoin reach $85,000 by December 2025?"),
	}

	first, ok := m.Best(market, candidates)
	require.True(t, ok)
	for i := 0; i < 10; i++ {
		again, ok := m.Best(market, candidates)
		require.True(t, ok)
		assert.Equal(t, first.Candidate.ExternalID, again.Candidate.ExternalID)
		assert.Equal(t, first.Quality, again.Quality)
	}
}

func TestMatcherScoreWeights(t *testing.T) {
	m := NewMatcher(&Config{
		MinScore:        0.45,
		TokenWeight:     0.60,
		ThresholdWeight: 0.25,
		DateWeight:      0.15,
	})

	market := core.Market{Question: "Will Bitcoin reach $68,000 by December 2025?"}
	match, ok := m.Best(market, []core.Candidate{
		cand("1", "Will Bitcoin reach $68,000 by December 2025?"),
	})
	require.True(t, ok)
	// Identical question: full marks on every component.
	assert.InDelta(t, 1.0, match.Quality, 1e-9)
}
